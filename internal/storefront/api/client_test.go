package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		kind   error
		msg    string
	}{
		{http.StatusBadRequest, `{"error":"Insufficient stock for Mug"}`, ErrValidation, "Insufficient stock for Mug"},
		{http.StatusUnauthorized, `{"error":"Invalid token"}`, ErrAuth, "Invalid token"},
		{http.StatusForbidden, `{"error":"Admin access required"}`, ErrForbidden, "Admin access required"},
		{http.StatusNotFound, `{"detail":"Product not found"}`, ErrNotFound, "Product not found"},
		{http.StatusConflict, `{"error":"invalid order status transition"}`, ErrConflict, "invalid order status transition"},
		{http.StatusTooManyRequests, `{"error":"slow down"}`, ErrRateLimited, "slow down"},
		{http.StatusInternalServerError, `oops`, ErrServer, ""},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).ListProducts(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.msg, apiErr.Message)
			if tt.msg == "" {
				assert.Equal(t, "fallback", Message(err, "fallback"))
			} else {
				assert.Equal(t, tt.msg, Message(err, "fallback"))
			}
		})
	}
}

func TestTransportFailureIsServerError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).ListProducts(context.Background())
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, "Could not place order", Message(err, "Could not place order"))
}

func TestBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(models.User{Email: "m@shop.test", Role: models.RoleMerchant})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	_, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	c.SetToken("tok")
	u, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", got)
	assert.Equal(t, models.RoleMerchant, u.Role)
}

func TestCreateOrderPayload(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(models.Order{ID: "o1", Status: models.OrderPending})
	}))
	defer srv.Close()

	o, err := NewClient(srv.URL).CreateOrder(context.Background(), models.OrderCreate{
		Customer: models.CustomerInfo{Name: "Ada", Email: "ada@example.com", Phone: "1", Address: "x"},
		Items:    []models.OrderItem{{ProductID: "p1", ProductName: "Mug", Price: 9.5, Quantity: 2}},
		Total:    19,
	})
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)

	items := received["items"].([]interface{})
	line := items[0].(map[string]interface{})
	assert.Equal(t, "p1", line["product_id"])
	assert.Equal(t, "Mug", line["product_name"])
	assert.Equal(t, 2.0, line["quantity"])
	assert.Equal(t, 19.0, received["total"])
}

func TestCreateProductMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Lamp", r.FormValue("name"))
		assert.Equal(t, "Desk lamp", r.FormValue("description"))
		assert.Equal(t, "19.9", r.FormValue("price"))
		assert.Equal(t, "4", r.FormValue("stock"))
		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "lamp.jpg", hdr.Filename)
		assert.Equal(t, "jpeg", string(data))
		json.NewEncoder(w).Encode(models.Product{ID: "p9", Name: "Lamp", Stock: 4, Available: true})
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL).CreateProduct(context.Background(), ProductForm{
		Name:        "Lamp",
		Description: "Desk lamp",
		Price:       decimal.RequireFromString("19.90"),
		Stock:       4,
		ImageName:   "lamp.jpg",
		Image:       strings.NewReader("jpeg"),
	})
	require.NoError(t, err)
	assert.Equal(t, "p9", p.ID)
}

func TestDeleteProductIgnoresBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/products/p%201", r.URL.EscapedPath())
		io.WriteString(w, `{"message":"Product deleted"}`)
	}))
	defer srv.Close()

	assert.NoError(t, NewClient(srv.URL).DeleteProduct(context.Background(), "p 1"))
}
