// Package cart keeps the shopper's pending line items and persists them to
// local storage after every successful change.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
	"storefront/internal/storefront/kv"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrUnavailable       = errors.New("product is not available")
	ErrNotInCart         = errors.New("product is not in the cart")
)

// StockError says which product ran out and how many units were asked for.
type StockError struct {
	ProductID string
	Name      string
	Requested int
	Stock     int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("only %d of %s in stock, %d requested", e.Stock, e.Name, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// Engine owns the in-memory cart. Stock checks use the stock recorded in
// each line's product snapshot; callers refresh products before relying on
// exact numbers. A failed change leaves both memory and storage untouched.
type Engine struct {
	mu    sync.Mutex
	store kv.Store
	items models.Cart
}

func New(store kv.Store) *Engine {
	return &Engine{store: store}
}

// Load replaces the in-memory cart with the persisted one. A missing or
// unreadable entry yields an empty cart.
func (e *Engine) Load(ctx context.Context) error {
	data, err := e.store.Get(ctx, kv.CartKey)
	if errors.Is(err, kv.ErrNotFound) {
		e.replace(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	var items models.Cart
	if err := json.Unmarshal(data, &items); err != nil {
		e.replace(nil)
		return nil
	}
	e.replace(sanitize(items))
	return nil
}

// sanitize drops lines that could not have been written by the engine and
// clamps quantities to the snapshot stock.
func sanitize(items models.Cart) models.Cart {
	out := make(models.Cart, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.Quantity > item.Stock {
			item.Quantity = item.Stock
		}
		if item.ID == "" || item.Quantity <= 0 || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out
}

func (e *Engine) replace(items models.Cart) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = items
}

func (e *Engine) AddOne(ctx context.Context, product models.Product) error {
	return e.Add(ctx, product, 1)
}

// Add merges qty units of product into the cart. The resulting line must
// not exceed product.Stock, so an out-of-stock product always fails.
func (e *Engine) Add(ctx context.Context, product models.Product, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if !product.Available {
		return fmt.Errorf("%s: %w", product.Name, ErrUnavailable)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.cloneLocked()
	idx := next.indexOf(product.ID)
	want := qty
	if idx >= 0 {
		want += next[idx].Quantity
	}
	if want > product.Stock {
		return &StockError{ProductID: product.ID, Name: product.Name, Requested: want, Stock: product.Stock}
	}

	if idx >= 0 {
		next[idx].Product = product
		next[idx].Quantity = want
	} else {
		next = append(next, models.CartItem{Product: product, Quantity: want})
	}
	return e.commitLocked(ctx, next.cart())
}

// SetQuantity clamps qty at zero and removes the line when it reaches zero.
func (e *Engine) SetQuantity(ctx context.Context, productID string, qty int) error {
	if qty < 0 {
		qty = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.cloneLocked()
	idx := next.indexOf(productID)
	if idx < 0 {
		return fmt.Errorf("%s: %w", productID, ErrNotInCart)
	}
	line := next[idx]
	if qty > line.Stock {
		return &StockError{ProductID: productID, Name: line.Name, Requested: qty, Stock: line.Stock}
	}
	if qty == 0 {
		next = append(next[:idx], next[idx+1:]...)
	} else {
		next[idx].Quantity = qty
	}
	return e.commitLocked(ctx, next.cart())
}

func (e *Engine) Increment(ctx context.Context, productID string) error {
	return e.step(ctx, productID, 1)
}

func (e *Engine) Decrement(ctx context.Context, productID string) error {
	return e.step(ctx, productID, -1)
}

func (e *Engine) step(ctx context.Context, productID string, delta int) error {
	item, ok := e.Item(productID)
	if !ok {
		return fmt.Errorf("%s: %w", productID, ErrNotInCart)
	}
	return e.SetQuantity(ctx, productID, item.Quantity+delta)
}

// Remove deletes the line if present and always persists.
func (e *Engine) Remove(ctx context.Context, productID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.cloneLocked()
	if idx := next.indexOf(productID); idx >= 0 {
		next = append(next[:idx], next[idx+1:]...)
	}
	return e.commitLocked(ctx, next.cart())
}

// Clear erases the persisted cart, then the in-memory one.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Delete(ctx, kv.CartKey); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	e.items = nil
	return nil
}

// Items returns a copy of the lines in insertion order.
func (e *Engine) Items() models.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cloneLocked().cart()
}

func (e *Engine) Item(productID string) (models.CartItem, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx := lines(e.items).indexOf(productID); idx >= 0 {
		return e.items[idx], true
	}
	return models.CartItem{}, false
}

// Count is the total number of units, shown as the cart badge.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, item := range e.items {
		n += item.Quantity
	}
	return n
}

// Len is the number of distinct lines.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

func (e *Engine) IsEmpty() bool {
	return e.Len() == 0
}

func (e *Engine) Total() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.items.Total()
}

func (e *Engine) commitLocked(ctx context.Context, next models.Cart) error {
	if next == nil {
		next = models.Cart{}
	}
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := e.store.Set(ctx, kv.CartKey, data); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	e.items = next
	return nil
}

type lines models.Cart

func (e *Engine) cloneLocked() lines {
	out := make(lines, len(e.items))
	copy(out, e.items)
	return out
}

func (l lines) indexOf(productID string) int {
	for i, item := range l {
		if item.ID == productID {
			return i
		}
	}
	return -1
}

func (l lines) cart() models.Cart {
	return models.Cart(l)
}
