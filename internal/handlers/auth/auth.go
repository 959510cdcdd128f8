package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/utils"
)

type Handler struct {
	users   repository.UserStore
	issuer  *utils.TokenIssuer
	auditor *utils.Auditor
	logger  *zap.Logger
}

func NewHandler(users repository.UserStore, issuer *utils.TokenIssuer, auditor *utils.Auditor, logger *zap.Logger) *Handler {
	return &Handler{users: users, issuer: issuer, auditor: auditor, logger: logger}
}

// Register creates a shopper or merchant account. Admin accounts are only
// seeded from configuration.
func (h *Handler) Register(c *gin.Context) {
	var input models.UserCreate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := models.RoleMerchant
	if input.Role != "" {
		parsed, err := models.ParseRole(string(input.Role))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		role = parsed
	}
	if role == models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin accounts cannot be self-registered"})
		return
	}

	user, err := createUser(c.Request.Context(), h.users, input.Email, input.Password, role)
	if errors.Is(err, repository.ErrDuplicate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to register user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	h.respondWithToken(c, user)
}

func (h *Handler) Login(c *gin.Context) {
	var input models.UserLogin
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	email := normalizeEmail(input.Email)
	user, err := h.users.GetUserByEmail(c.Request.Context(), email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.logger.Error("Failed to load user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	if user == nil || !utils.VerifyPassword(input.Password, user.Password) {
		c.Set("email", email)
		h.auditor.LogFailedAction(c, utils.ACTION_LOGIN_FAILED, utils.RESOURCE_AUTH, "", "invalid credentials")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	c.Set("user_id", user.ID)
	c.Set("email", user.Email)
	h.auditor.LogAction(c, utils.ACTION_LOGIN_SUCCESS, utils.RESOURCE_AUTH, user.ID, nil, nil)
	h.respondWithToken(c, user)
}

// Me returns the account behind the bearer token.
func (h *Handler) Me(c *gin.Context) {
	user, err := h.users.GetUserByEmail(c.Request.Context(), c.GetString("email"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load current user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) respondWithToken(c *gin.Context, user *models.User) {
	token, err := h.issuer.Generate(*user)
	if err != nil {
		h.logger.Error("Failed to sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, models.AuthResponse{User: *user, Token: token})
}

// SeedAdmin creates the configured admin account if it does not exist yet.
func SeedAdmin(ctx context.Context, users repository.UserStore, email, password string, logger *zap.Logger) error {
	if email == "" || password == "" {
		logger.Warn("No admin account configured")
		return nil
	}
	_, err := users.GetUserByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}
	if _, err := createUser(ctx, users, email, password, models.RoleAdmin); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("seed admin: %w", err)
	}
	logger.Info("Admin account seeded", zap.String("email", email))
	return nil
}

func createUser(ctx context.Context, users repository.UserStore, email, password string, role models.Role) (*models.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:        uuid.NewString(),
		Email:     normalizeEmail(email),
		Role:      role,
		Password:  hash,
		CreatedAt: time.Now().UTC(),
	}
	if err := users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
