package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"storefront/internal/models"
	"storefront/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func protectedRouter(issuer *utils.TokenIssuer, perm models.Permission) *gin.Engine {
	r := gin.New()
	r.GET("/private", AuthRequired(issuer), RequirePermission(perm), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString("user_id"),
			"email":   c.GetString("email"),
		})
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	issuer := utils.NewTokenIssuer("secret", time.Hour)
	r := protectedRouter(issuer, models.PermOrdersView)

	merchant, err := issuer.Generate(models.User{ID: "u1", Email: "m@shop.test", Role: models.RoleMerchant})
	require.NoError(t, err)
	shopper, err := issuer.Generate(models.User{ID: "u2", Email: "s@shop.test", Role: models.RoleShopper})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"role lacks permission", "Bearer " + shopper, http.StatusForbidden},
		{"allowed", "Bearer " + merchant, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"email":"m@shop.test"`)
				assert.Contains(t, w.Body.String(), `"user_id":"u1"`)
			}
		})
	}
}

func TestAuthRequired_QueryTokenOnlyForWebsocket(t *testing.T) {
	issuer := utils.NewTokenIssuer("secret", time.Hour)
	r := protectedRouter(issuer, models.PermOrdersView)
	token, err := issuer.Generate(models.User{ID: "u1", Email: "m@shop.test", Role: models.RoleMerchant})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private?token="+token, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private?token="+token, nil)
	req.Header.Set("Connection", "upgrade")
	req.Header.Set("Upgrade", "websocket")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermission_ForbiddenListsRoles(t *testing.T) {
	issuer := utils.NewTokenIssuer("secret", time.Hour)
	r := protectedRouter(issuer, models.PermProductsDelete)

	for role, want := range map[models.Role]int{
		models.RoleShopper:  http.StatusForbidden,
		models.RoleMerchant: http.StatusForbidden,
		models.RoleAdmin:    http.StatusOK,
	} {
		token, err := issuer.Generate(models.User{ID: "u", Email: "x@shop.test", Role: role})
		require.NoError(t, err)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
		if want == http.StatusForbidden {
			assert.JSONEq(t, `{
				"error": "Insufficient permissions",
				"required_permission": "products.delete",
				"allowed_roles": ["admin"]
			}`, w.Body.String())
		}
	}
}

func loginRouter(client *redis.Client, password string) *gin.Engine {
	r := gin.New()
	r.POST("/login", LoginRateLimit(client), func(c *gin.Context) {
		var in struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = c.ShouldBindJSON(&in)
		if in.Password != password {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": in.Email})
	})
	return r
}

func postLogin(r *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestLoginRateLimit_LocksAfterFailures(t *testing.T) {
	mr, client := setupTestRedis(t)
	r := loginRouter(client, "right")

	for i := 0; i < LoginMaxAttempts; i++ {
		w := postLogin(r, `{"email":"a@shop.test","password":"wrong"}`)
		require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
	}
	assert.True(t, mr.Exists("login_cooldown:a@shop.test"))

	w := postLogin(r, `{"email":"a@shop.test","password":"right"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "retry_after")

	w = postLogin(r, `{"email":"b@shop.test","password":"right"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	mr.FastForward(LoginCooldown + time.Second)
	w = postLogin(r, `{"email":"a@shop.test","password":"right"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginRateLimit_SuccessResetsCounter(t *testing.T) {
	mr, client := setupTestRedis(t)
	r := loginRouter(client, "right")

	postLogin(r, `{"email":"a@shop.test","password":"wrong"}`)
	assert.True(t, mr.Exists("login_attempts:a@shop.test"))

	w := postLogin(r, `{"email":"a@shop.test","password":"right"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a@shop.test")
	assert.False(t, mr.Exists("login_attempts:a@shop.test"))
}

type recordingSink struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (s *recordingSink) WriteAudit(_ context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func TestAuditFailures(t *testing.T) {
	sink := &recordingSink{}
	auditor := utils.NewAuditor(sink, zap.NewNop())
	issuer := utils.NewTokenIssuer("secret", time.Hour)

	r := gin.New()
	r.DELETE("/products/:id",
		AuthRequired(issuer),
		AuditFailures(auditor, utils.ACTION_PRODUCT_DELETE, utils.RESOURCE_PRODUCT),
		RequirePermission(models.PermProductsDelete),
		func(c *gin.Context) { c.Status(http.StatusNoContent) })

	token, err := issuer.Generate(models.User{ID: "u1", Email: "m@shop.test", Role: models.RoleMerchant})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/products/p9", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	auditor.Wait()
	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	assert.Equal(t, utils.ACTION_PRODUCT_DELETE, entry.Action)
	assert.Equal(t, "p9", entry.ResourceID)
	assert.Equal(t, "u1", entry.UserID)
	assert.False(t, entry.Success)
	assert.Equal(t, "Forbidden", entry.ErrorMsg)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping?page=2", nil))
	assert.Equal(t, "pong", w.Body.String())

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/ping", fields["path"])
	assert.Equal(t, "page=2", fields["query"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}

func TestRequestLogger_RedactsToken(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/api/orders/stream", func(c *gin.Context) { c.Status(http.StatusUnauthorized) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/stream?token=SECRET.JWT.VALUE&since=1", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "since=1&token=REDACTED", entry.ContextMap()["query"])
	for _, f := range entry.Context {
		assert.NotContains(t, f.String, "SECRET.JWT.VALUE")
	}
}
