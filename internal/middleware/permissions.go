package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/models"
)

// RequirePermission must run after AuthRequired.
func RequirePermission(permission models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := CurrentRole(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		if !role.Can(permission) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":               "Insufficient permissions",
				"required_permission": permission,
				"allowed_roles":       models.RolesWith(permission),
			})
			return
		}
		c.Next()
	}
}
