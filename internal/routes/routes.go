package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/handlers/auth"
	"storefront/internal/handlers/order"
	"storefront/internal/handlers/product"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/services"
	"storefront/internal/utils"
)

// Dependencies is everything the router needs; cmd/server builds it from
// config, tests build it from in-memory fakes.
type Dependencies struct {
	Store       repository.Store
	Redis       *redis.Client
	Images      services.ImageStore
	Auditor     *utils.Auditor
	Issuer      *utils.TokenIssuer
	Logger      *zap.Logger
	CORSOrigins []string
	// UploadsDir is served at /uploads when images are stored locally.
	UploadsDir string
}

func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(cors.New(corsConfig(deps.CORSOrigins)))

	if deps.UploadsDir != "" {
		r.Static("/uploads", deps.UploadsDir)
	}

	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		redisStatus := "ok"
		if err := deps.Redis.Ping(c.Request.Context()).Err(); err != nil {
			status = http.StatusServiceUnavailable
			redisStatus = err.Error()
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "redis": redisStatus, "time": time.Now().UTC()})
	})

	productCache := cache.NewProductCache(deps.Redis)
	events := services.NewOrderEvents(deps.Redis, deps.Logger)

	authHandler := auth.NewHandler(deps.Store, deps.Issuer, deps.Auditor, deps.Logger)
	productHandler := product.NewHandler(deps.Store, productCache, deps.Images, deps.Auditor, deps.Logger)
	orderHandler := order.NewHandler(deps.Store, productCache, events, deps.Auditor, deps.Logger)

	authRequired := middleware.AuthRequired(deps.Issuer)
	audited := func(action, resource string) gin.HandlerFunc {
		return middleware.AuditFailures(deps.Auditor, action, resource)
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", middleware.LoginRateLimit(deps.Redis), authHandler.Login)
		authGroup.GET("/me", authRequired, authHandler.Me)
	}

	products := api.Group("/products")
	{
		products.GET("", productHandler.GetAllProducts)
		products.GET("/:id", productHandler.GetProduct)
		products.POST("", authRequired,
			audited(utils.ACTION_PRODUCT_CREATE, utils.RESOURCE_PRODUCT),
			middleware.RequirePermission(models.PermProductsCreate),
			productHandler.CreateProduct)
		products.DELETE("/:id", authRequired,
			audited(utils.ACTION_PRODUCT_DELETE, utils.RESOURCE_PRODUCT),
			middleware.RequirePermission(models.PermProductsDelete),
			productHandler.DeleteProduct)
		products.PATCH("/:id", authRequired,
			audited(utils.ACTION_PRODUCT_UPDATE, utils.RESOURCE_PRODUCT),
			middleware.RequirePermission(models.PermProductsEdit),
			productHandler.UpdateProduct)
	}

	orders := api.Group("/orders")
	{
		orders.POST("", orderHandler.CreateOrder)
		orders.GET("", authRequired, middleware.RequirePermission(models.PermOrdersView), orderHandler.GetOrders)
		orders.GET("/stream", authRequired, middleware.RequirePermission(models.PermOrdersView), orderHandler.StreamOrders)
		orders.PATCH("/:id/status", authRequired,
			audited(utils.ACTION_ORDER_STATUS, utils.RESOURCE_ORDER),
			middleware.RequirePermission(models.PermOrdersStatus),
			orderHandler.UpdateOrderStatus)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
