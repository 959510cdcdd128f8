package models

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderAccepted  OrderStatus = "accepted"
	OrderRefused   OrderStatus = "refused"
	OrderCompleted OrderStatus = "completed"
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderPending, OrderAccepted, OrderRefused, OrderCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

type CustomerInfo struct {
	Name    string `json:"name" bson:"name" binding:"required"`
	Email   string `json:"email" bson:"email" binding:"required,email"`
	Phone   string `json:"phone" bson:"phone" binding:"required"`
	Address string `json:"address" bson:"address" binding:"required"`
}

type OrderItem struct {
	ProductID   string  `json:"product_id" bson:"product_id" binding:"required"`
	ProductName string  `json:"product_name" bson:"product_name"`
	Price       float64 `json:"price" bson:"price" binding:"gte=0"`
	Quantity    int     `json:"quantity" bson:"quantity" binding:"gte=1"`
}

type Order struct {
	ID        string       `json:"id" bson:"id"`
	Customer  CustomerInfo `json:"customer" bson:"customer"`
	Items     []OrderItem  `json:"items" bson:"items"`
	Total     float64      `json:"total" bson:"total"`
	Status    OrderStatus  `json:"status" bson:"status"`
	CreatedAt time.Time    `json:"created_at" bson:"created_at"`
}

// OrderCreate is the payload of POST /api/orders.
type OrderCreate struct {
	Customer CustomerInfo `json:"customer" binding:"required"`
	Items    []OrderItem  `json:"items" binding:"required,min=1,dive"`
	Total    float64      `json:"total" binding:"gte=0"`
}

type OrderStatusUpdate struct {
	Status OrderStatus `json:"status" binding:"required"`
}
