package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	LoginMaxAttempts = 5
	LoginCooldown    = 15 * time.Minute
)

// LoginRateLimit counts failed logins per email and locks the email out for
// LoginCooldown once LoginMaxAttempts is reached. A successful login resets it.
func LoginRateLimit(client *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Next()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		var input struct {
			Email string `json:"email"`
		}
		if err := json.Unmarshal(bodyBytes, &input); err != nil || input.Email == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		email := strings.ToLower(input.Email)
		key := "login_attempts:" + email
		cooldownKey := "login_cooldown:" + email

		if ttl := client.TTL(ctx, cooldownKey).Val(); ttl > 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       fmt.Sprintf("Too many failed attempts. Try again in %d minutes", int(ttl.Minutes())+1),
				"retry_after": int(ttl.Seconds()),
			})
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			attempts, err := client.Incr(ctx, key).Result()
			if err != nil {
				return
			}
			client.Expire(ctx, key, LoginCooldown)
			if attempts >= LoginMaxAttempts {
				client.Set(ctx, cooldownKey, "1", LoginCooldown)
				client.Del(ctx, key)
			}
		case http.StatusOK:
			client.Del(ctx, key, cooldownKey)
		}
	}
}
