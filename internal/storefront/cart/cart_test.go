package cart

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
	"storefront/internal/storefront/kv"
)

func product(id string, price float64, stock int) models.Product {
	return models.Product{ID: id, Name: "Product " + id, Price: price, Stock: stock, Available: true}
}

func newEngine(t *testing.T) (*Engine, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	e := New(store)
	require.NoError(t, e.Load(context.Background()))
	return e, store
}

// reloaded reads the cart back from storage into a fresh engine.
func reloaded(t *testing.T, store kv.Store) models.Cart {
	t.Helper()
	e := New(store)
	require.NoError(t, e.Load(context.Background()))
	return e.Items()
}

func TestAdd_MergesLines(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()
	p := product("p1", 10, 5)

	require.NoError(t, e.Add(ctx, p, 2))
	require.NoError(t, e.AddOne(ctx, p))

	items := e.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, 3, e.Count())
	assert.Equal(t, 1, e.Len())
	assert.Equal(t, items, reloaded(t, store))
}

func TestAdd_StockLimits(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()
	p := product("p1", 10, 3)

	require.NoError(t, e.Add(ctx, p, 2))
	err := e.Add(ctx, p, 2)
	require.ErrorIs(t, err, ErrInsufficientStock)
	var stockErr *StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 4, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Stock)

	assert.Equal(t, 2, e.Count(), "failed add leaves the cart unchanged")
	assert.Equal(t, 2, reloaded(t, store)[0].Quantity)

	require.NoError(t, e.Add(ctx, p, 1))
	assert.Equal(t, 3, e.Count())
}

func TestAdd_OutOfStockAlwaysFails(t *testing.T) {
	e, store := newEngine(t)
	for _, qty := range []int{1, 2, 100} {
		err := e.Add(context.Background(), product("p0", 5, 0), qty)
		assert.ErrorIs(t, err, ErrInsufficientStock)
	}
	assert.True(t, e.IsEmpty())
	_, err := store.Get(context.Background(), kv.CartKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestAdd_RejectsBadInput(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	assert.ErrorIs(t, e.Add(ctx, product("p1", 1, 5), 0), ErrInvalidQuantity)
	assert.ErrorIs(t, e.Add(ctx, product("p1", 1, 5), -3), ErrInvalidQuantity)

	unavailable := product("p2", 1, 5)
	unavailable.Available = false
	assert.ErrorIs(t, e.Add(ctx, unavailable, 1), ErrUnavailable)
	assert.True(t, e.IsEmpty())
}

func TestAdd_RefreshesSnapshot(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Add(ctx, product("p1", 10, 2), 1))
	require.NoError(t, e.Add(ctx, product("p1", 12, 6), 1))

	item, ok := e.Item("p1")
	require.True(t, ok)
	assert.Equal(t, 6, item.Stock)
	assert.Equal(t, 12.0, item.Price)
	assert.Equal(t, 2, item.Quantity)
}

func TestSetQuantity(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Add(ctx, product("p1", 10, 4), 1))
	require.NoError(t, e.Add(ctx, product("p2", 3, 9), 1))

	require.NoError(t, e.SetQuantity(ctx, "p1", 4))
	assert.ErrorIs(t, e.SetQuantity(ctx, "p1", 5), ErrInsufficientStock)
	item, _ := e.Item("p1")
	assert.Equal(t, 4, item.Quantity)

	assert.ErrorIs(t, e.SetQuantity(ctx, "ghost", 1), ErrNotInCart)

	require.NoError(t, e.SetQuantity(ctx, "p1", -7))
	_, ok := e.Item("p1")
	assert.False(t, ok, "clamped to zero removes the line")
	assert.Equal(t, 1, e.Len())

	require.NoError(t, e.SetQuantity(ctx, "p2", 0))
	assert.True(t, e.IsEmpty())
	assert.Empty(t, reloaded(t, store))
}

func TestIncrementDecrement(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Add(ctx, product("p1", 10, 2), 1))

	require.NoError(t, e.Increment(ctx, "p1"))
	assert.ErrorIs(t, e.Increment(ctx, "p1"), ErrInsufficientStock)
	assert.Equal(t, 2, e.Count())

	require.NoError(t, e.Decrement(ctx, "p1"))
	require.NoError(t, e.Decrement(ctx, "p1"))
	assert.True(t, e.IsEmpty())
	assert.ErrorIs(t, e.Decrement(ctx, "p1"), ErrNotInCart)
}

func TestRemove_Idempotent(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Add(ctx, product("p1", 10, 2), 1))
	require.NoError(t, e.Add(ctx, product("p2", 10, 2), 1))

	require.NoError(t, e.Remove(ctx, "p1"))
	require.NoError(t, e.Remove(ctx, "p1"))
	require.NoError(t, e.Remove(ctx, "never-added"))

	items := reloaded(t, store)
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ID)
}

func TestTotal(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Add(ctx, product("p1", 0.1, 10), 3))
	require.NoError(t, e.Add(ctx, product("p2", 19.99, 10), 2))

	assert.True(t, decimal.RequireFromString("40.28").Equal(e.Total()), e.Total().String())
}

func TestClear(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Add(ctx, product("p1", 1, 1), 1))

	require.NoError(t, e.Clear(ctx))
	assert.True(t, e.IsEmpty())
	_, err := store.Get(ctx, kv.CartKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	require.NoError(t, store.Set(ctx, kv.CartKey, []byte("not json")))
	e := New(store)
	require.NoError(t, e.Load(ctx))
	assert.True(t, e.IsEmpty())

	stored := `[
		{"id":"p1","name":"Mug","price":9.5,"stock":3,"available":true,"quantity":2},
		{"id":"p2","name":"Bad","price":1,"stock":3,"available":true,"quantity":0},
		{"id":"p1","name":"Dup","price":1,"stock":3,"available":true,"quantity":1}
	]`
	require.NoError(t, store.Set(ctx, kv.CartKey, []byte(stored)))
	require.NoError(t, e.Load(ctx))
	items := e.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Mug", items[0].Name)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestLoad_ClampsToSnapshotStock(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	stored := `[
		{"id":"p1","name":"Mug","price":9.5,"stock":3,"available":true,"quantity":9},
		{"id":"p2","name":"Gone","price":1,"stock":0,"available":false,"quantity":2}
	]`
	require.NoError(t, store.Set(ctx, kv.CartKey, []byte(stored)))

	e := New(store)
	require.NoError(t, e.Load(ctx))
	items := e.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, 3, e.Count())
}

type failingStore struct {
	kv.Store
	fail bool
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Store.Set(ctx, key, value)
}

func TestPersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: kv.NewMemoryStore()}
	e := New(store)
	require.NoError(t, e.Add(ctx, product("p1", 1, 5), 1))

	store.fail = true
	assert.Error(t, e.Add(ctx, product("p1", 1, 5), 1))
	assert.Error(t, e.Remove(ctx, "p1"))
	assert.Equal(t, 1, e.Count())
}

// TestInvariantsUnderRandomOperations drives the engine with random calls and
// checks that no line ever has a non-positive quantity or exceeds its stock,
// that product ids stay unique, and that storage mirrors memory.
func TestInvariantsUnderRandomOperations(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	catalog := []models.Product{
		product("a", 1.5, 0),
		product("b", 2.25, 1),
		product("c", 9.99, 3),
		product("d", 0.1, 10),
	}

	e, store := newEngine(t)
	for i := 0; i < 2000; i++ {
		p := catalog[rng.Intn(len(catalog))]
		switch rng.Intn(6) {
		case 0, 1:
			_ = e.Add(ctx, p, rng.Intn(4))
		case 2:
			_ = e.SetQuantity(ctx, p.ID, rng.Intn(14)-2)
		case 3:
			_ = e.Increment(ctx, p.ID)
		case 4:
			_ = e.Decrement(ctx, p.ID)
		case 5:
			_ = e.Remove(ctx, p.ID)
		}

		items := e.Items()
		seen := map[string]bool{}
		expected := decimal.Zero
		for _, item := range items {
			require.Greater(t, item.Quantity, 0)
			require.LessOrEqual(t, item.Quantity, item.Stock)
			require.False(t, seen[item.ID], "duplicate line %s", item.ID)
			seen[item.ID] = true
			expected = expected.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		require.True(t, expected.Equal(e.Total()))
		require.NotContains(t, seen, "a", "out of stock product never enters the cart")
	}
	assert.Equal(t, e.Items(), reloaded(t, store))
}
