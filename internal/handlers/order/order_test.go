package order

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"storefront/internal/models"
	"storefront/internal/repository"
)

func TestReserveError(t *testing.T) {
	item := models.OrderItem{ProductID: "p1", ProductName: "Mug", Quantity: 2}
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{&repository.ItemError{Item: item, Err: repository.ErrNotFound}, http.StatusNotFound, "Product p1 not found"},
		{&repository.ItemError{Item: item, Err: repository.ErrProductUnavailable}, http.StatusBadRequest, "Product Mug is not available"},
		{&repository.ItemError{Item: item, Err: repository.ErrInsufficientStock}, http.StatusBadRequest, "Insufficient stock for Mug"},
		{&repository.ItemError{Item: models.OrderItem{ProductID: "p2"}, Err: repository.ErrInsufficientStock}, http.StatusBadRequest, "Insufficient stock for p2"},
		{errors.New("connection reset"), http.StatusInternalServerError, "Failed to create order"},
	}
	for _, tt := range tests {
		status, msg := reserveError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.msg, msg)
	}
}
