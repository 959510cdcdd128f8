// Package checkout turns the cart into an order on the backend.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront/internal/models"
	"storefront/internal/storefront/api"
)

var (
	// ErrEmptyCart means there is nothing to submit; callers send the
	// shopper back to the cart instead of showing an error.
	ErrEmptyCart  = errors.New("cart is empty")
	ErrValidation = errors.New("invalid customer details")
)

const fallbackMessage = "Could not place the order, please try again"

// validate applies the same email rule the backend binds orders with.
var validate = validator.New()

// ValidationError lists the customer fields that are missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// SubmitError is a rejected or failed submission. The cart is left intact.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }

func (e *SubmitError) Unwrap() error { return e.Err }

// Cart is what the submitter needs from the cart engine.
type Cart interface {
	Items() models.Cart
	Clear(ctx context.Context) error
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, order models.OrderCreate) (*models.Order, error)
}

type Submitter struct {
	Cart   Cart
	Orders OrderCreator
}

// Validate checks presence of every field and the shape of the email.
func Validate(form models.CustomerInfo) error {
	var bad []string
	if strings.TrimSpace(form.Name) == "" {
		bad = append(bad, "name")
	}
	if strings.TrimSpace(form.Email) == "" || validate.Var(form.Email, "email") != nil {
		bad = append(bad, "email")
	}
	if strings.TrimSpace(form.Phone) == "" {
		bad = append(bad, "phone")
	}
	if strings.TrimSpace(form.Address) == "" {
		bad = append(bad, "address")
	}
	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}

// BuildOrder maps the cart lines to order items and totals them.
func BuildOrder(items models.Cart, customer models.CustomerInfo) models.OrderCreate {
	out := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, item.OrderItem())
	}
	return models.OrderCreate{
		Customer: customer,
		Items:    out,
		Total:    items.Total().InexactFloat64(),
	}
}

// Submit posts the cart as an order. The cart is cleared only when the
// backend accepted the order.
func (s *Submitter) Submit(ctx context.Context, customer models.CustomerInfo) (*models.Order, error) {
	items := s.Cart.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	if err := Validate(customer); err != nil {
		return nil, err
	}

	order, err := s.Orders.CreateOrder(ctx, BuildOrder(items, customer))
	if err != nil {
		return nil, &SubmitError{Message: api.Message(err, fallbackMessage), Err: err}
	}

	if err := s.Cart.Clear(ctx); err != nil {
		return order, fmt.Errorf("order %s placed but the cart could not be cleared: %w", order.ID, err)
	}
	return order, nil
}
