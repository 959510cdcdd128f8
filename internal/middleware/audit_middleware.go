package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/utils"
)

// AuditFailures records rejected privileged requests. Successful ones are
// audited by the handler, which knows the old and new values.
func AuditFailures(auditor *utils.Auditor, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		msg := http.StatusText(status)
		if len(c.Errors) > 0 {
			msg = c.Errors.Last().Error()
		}
		auditor.LogFailedAction(c, action, resource, c.Param("id"), msg)
	}
}
