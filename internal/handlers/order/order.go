package order

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/models"
	lifecycle "storefront/internal/order"
	"storefront/internal/repository"
	"storefront/internal/services"
	"storefront/internal/utils"
)

type Handler struct {
	store   repository.Store
	cache   *cache.ProductCache
	events  *services.OrderEvents
	auditor *utils.Auditor
	logger  *zap.Logger
}

func NewHandler(store repository.Store, cache *cache.ProductCache, events *services.OrderEvents, auditor *utils.Auditor, logger *zap.Logger) *Handler {
	return &Handler{store: store, cache: cache, events: events, auditor: auditor, logger: logger}
}

// CreateOrder reserves stock for every line, then stores the order as
// pending. The submitted total is kept as sent.
func (h *Handler) CreateOrder(c *gin.Context) {
	var input models.OrderCreate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.store.ReserveStock(ctx, input.Items); err != nil {
		status, msg := reserveError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to reserve stock", zap.Error(err))
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	o := &models.Order{
		ID:        uuid.NewString(),
		Customer:  input.Customer,
		Items:     input.Items,
		Total:     input.Total,
		Status:    models.OrderPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateOrder(ctx, o); err != nil {
		h.logger.Error("Failed to create order after reserving stock",
			zap.String("order_id", o.ID), zap.Any("items", o.Items), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.ProductID)
	}
	if err := h.cache.Invalidate(ctx, ids...); err != nil {
		h.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}

	h.events.Publish(ctx, services.OrderEvent{Type: services.EventOrderCreated, Order: o})
	h.auditor.LogAction(c, utils.ACTION_ORDER_CREATE, utils.RESOURCE_ORDER, o.ID, nil, o)
	h.logger.Info("Order created",
		zap.String("order_id", o.ID), zap.Int("lines", len(o.Items)), zap.Float64("total", o.Total))
	c.JSON(http.StatusOK, o)
}

func reserveError(err error) (int, string) {
	var itemErr *repository.ItemError
	if !errors.As(err, &itemErr) {
		return http.StatusInternalServerError, "Failed to create order"
	}
	name := itemErr.Item.ProductName
	if name == "" {
		name = itemErr.Item.ProductID
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, fmt.Sprintf("Product %s not found", itemErr.Item.ProductID)
	case errors.Is(err, repository.ErrProductUnavailable):
		return http.StatusBadRequest, fmt.Sprintf("Product %s is not available", name)
	case errors.Is(err, repository.ErrInsufficientStock):
		return http.StatusBadRequest, fmt.Sprintf("Insufficient stock for %s", name)
	}
	return http.StatusInternalServerError, "Failed to create order"
}

func (h *Handler) GetOrders(c *gin.Context) {
	orders, err := h.store.ListOrders(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// UpdateOrderStatus moves an order along pending -> accepted|refused and
// accepted -> completed. Anything else is a 409.
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, err := models.ParseOrderStatus(input.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	current, err := h.store.GetOrder(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get order", zap.String("order_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
		return
	}

	if _, err := lifecycle.Transition(current.Status, target); err != nil {
		c.Error(err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.store.UpdateOrderStatus(ctx, id, current.Status, target)
	switch {
	case errors.Is(err, repository.ErrStatusChanged):
		c.Error(err)
		c.JSON(http.StatusConflict, gin.H{"error": "Order status changed concurrently, reload and retry"})
		return
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	case err != nil:
		h.logger.Error("Failed to update order status", zap.String("order_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update order"})
		return
	}

	h.events.Publish(ctx, services.OrderEvent{
		Type:       services.EventOrderStatusChanged,
		Order:      updated,
		FromStatus: current.Status,
	})
	h.auditor.LogAction(c, utils.ACTION_ORDER_STATUS, utils.RESOURCE_ORDER, id,
		gin.H{"status": current.Status}, gin.H{"status": updated.Status})
	c.JSON(http.StatusOK, updated)
}
