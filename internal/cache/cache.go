package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/models"
)

const (
	ProductListKey  = "products:all"
	ProductListTTL  = time.Hour
	ProductCacheTTL = 10 * time.Minute
)

// ProductCache keeps the catalog listing and single products in Redis.
// Every catalog mutation and every order (stock changes) invalidates it.
type ProductCache struct {
	redis *redis.Client
}

func NewProductCache(client *redis.Client) *ProductCache {
	return &ProductCache{redis: client}
}

func productKey(id string) string {
	return "product:" + id
}

// GetAll returns the cached listing; ok is false on a miss.
func (c *ProductCache) GetAll(ctx context.Context) ([]models.Product, bool) {
	var products []models.Product
	if !c.getJSON(ctx, ProductListKey, &products) {
		return nil, false
	}
	return products, true
}

func (c *ProductCache) SetAll(ctx context.Context, products []models.Product) error {
	return c.setJSON(ctx, ProductListKey, products, ProductListTTL)
}

func (c *ProductCache) Get(ctx context.Context, id string) (*models.Product, bool) {
	var p models.Product
	if !c.getJSON(ctx, productKey(id), &p) {
		return nil, false
	}
	return &p, true
}

func (c *ProductCache) Set(ctx context.Context, p *models.Product) error {
	return c.setJSON(ctx, productKey(p.ID), p, ProductCacheTTL)
}

// Invalidate drops the listing and the given products.
func (c *ProductCache) Invalidate(ctx context.Context, ids ...string) error {
	keys := []string{ProductListKey}
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	return c.redis.Del(ctx, keys...).Err()
}

func (c *ProductCache) getJSON(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (c *ProductCache) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key, data, ttl).Err()
}
