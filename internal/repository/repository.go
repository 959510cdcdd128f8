// Package repository persists users, products and orders for the backend.
package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicate          = errors.New("already exists")
	ErrProductUnavailable = errors.New("product is not available")
	ErrInsufficientStock  = errors.New("insufficient stock")
	// ErrStatusChanged is returned by UpdateOrderStatus when the stored
	// status no longer matches the expected one.
	ErrStatusChanged = errors.New("order status changed")
)

// ItemError ties a stock reservation failure to the order line that caused it.
type ItemError struct {
	Item models.OrderItem
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Item.ProductName, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

type ProductStore interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	// ReserveStock decrements stock for every item or for none of them.
	// Products whose stock reaches zero are flagged unavailable.
	ReserveStock(ctx context.Context, items []models.OrderItem) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	// ListOrders returns orders newest first.
	ListOrders(ctx context.Context) ([]models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// UpdateOrderStatus sets the status to `to` only if it is still `from`.
	UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) (*models.Order, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type Store interface {
	ProductStore
	OrderStore
	UserStore
}
