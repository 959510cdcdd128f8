package product

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/services"
	"storefront/internal/utils"
)

type Handler struct {
	store   repository.ProductStore
	cache   *cache.ProductCache
	images  services.ImageStore
	auditor *utils.Auditor
	logger  *zap.Logger
}

func NewHandler(store repository.ProductStore, cache *cache.ProductCache, images services.ImageStore, auditor *utils.Auditor, logger *zap.Logger) *Handler {
	return &Handler{store: store, cache: cache, images: images, auditor: auditor, logger: logger}
}

func (h *Handler) GetAllProducts(c *gin.Context) {
	ctx := c.Request.Context()
	if products, ok := h.cache.GetAll(ctx); ok {
		c.JSON(http.StatusOK, products)
		return
	}

	products, err := h.store.ListProducts(ctx)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load products"})
		return
	}
	if err := h.cache.SetAll(ctx, products); err != nil {
		h.logger.Warn("Failed to cache products", zap.Error(err))
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) GetProduct(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if p, ok := h.cache.Get(ctx, id); ok {
		c.JSON(http.StatusOK, p)
		return
	}

	p, err := h.store.GetProduct(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get product", zap.String("product_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load product"})
		return
	}
	if err := h.cache.Set(ctx, p); err != nil {
		h.logger.Warn("Failed to cache product", zap.String("product_id", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, p)
}

// CreateProduct takes a multipart form: name, description, price, stock, image.
func (h *Handler) CreateProduct(c *gin.Context) {
	fields := []struct{ name, value string }{
		{"name", strings.TrimSpace(c.PostForm("name"))},
		{"description", strings.TrimSpace(c.PostForm("description"))},
		{"price", strings.TrimSpace(c.PostForm("price"))},
		{"stock", strings.TrimSpace(c.PostForm("stock"))},
	}
	var missing []string
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	image, err := c.FormFile("image")
	if err != nil {
		missing = append(missing, "image")
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: " + strings.Join(missing, ", ")})
		return
	}

	price, err := decimal.NewFromString(fields[2].value)
	if err != nil || price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price"})
		return
	}
	stock, err := strconv.Atoi(fields[3].value)
	if err != nil || stock < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stock"})
		return
	}

	ctx := c.Request.Context()
	imageURL, err := h.images.Save(ctx, image)
	if err != nil {
		h.logger.Error("Failed to store product image", zap.String("filename", image.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
		return
	}

	p := &models.Product{
		ID:          uuid.NewString(),
		Name:        fields[0].value,
		Description: fields[1].value,
		Price:       price.InexactFloat64(),
		Stock:       stock,
		Available:   true,
		ImageURL:    imageURL,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.CreateProduct(ctx, p); err != nil {
		h.logger.Error("Failed to create product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}

	h.invalidate(c, p.ID)
	h.auditor.LogAction(c, utils.ACTION_PRODUCT_CREATE, utils.RESOURCE_PRODUCT, p.ID, nil, p)
	c.JSON(http.StatusOK, p)
}

// UpdateProduct applies a partial JSON update. Merchants use it for stock
// and availability; name, description and price are accepted too.
func (h *Handler) UpdateProduct(c *gin.Context) {
	var update models.ProductUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if update.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}
	if update.Stock != nil && *update.Stock < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stock"})
		return
	}
	if update.Price != nil && *update.Price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	before, err := h.store.GetProduct(ctx, id)
	if err == nil {
		var updated *models.Product
		updated, err = h.store.UpdateProduct(ctx, id, update)
		if err == nil {
			h.invalidate(c, id)
			h.auditor.LogAction(c, utils.ACTION_PRODUCT_UPDATE, utils.RESOURCE_PRODUCT, id, before, updated)
			c.JSON(http.StatusOK, updated)
			return
		}
	}
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	h.logger.Error("Failed to update product", zap.String("product_id", id), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	before, err := h.store.GetProduct(ctx, id)
	if err == nil {
		err = h.store.DeleteProduct(ctx, id)
	}
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete product", zap.String("product_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}

	h.invalidate(c, id)
	h.auditor.LogAction(c, utils.ACTION_PRODUCT_DELETE, utils.RESOURCE_PRODUCT, id, before, nil)
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

func (h *Handler) invalidate(c *gin.Context, id string) {
	if err := h.cache.Invalidate(c.Request.Context(), id); err != nil {
		h.logger.Warn("Failed to invalidate product cache", zap.String("product_id", id), zap.Error(err))
	}
}
