package utils

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/models"
)

const (
	ACTION_PRODUCT_CREATE = "product.create"
	ACTION_PRODUCT_UPDATE = "product.update"
	ACTION_PRODUCT_DELETE = "product.delete"
	ACTION_ORDER_CREATE   = "order.create"
	ACTION_ORDER_STATUS   = "order.status"
	ACTION_LOGIN_SUCCESS  = "auth.login_success"
	ACTION_LOGIN_FAILED   = "auth.login_failed"
)

const (
	RESOURCE_PRODUCT = "product"
	RESOURCE_ORDER   = "order"
	RESOURCE_AUTH    = "auth"
)

// AuditSink persists audit records.
type AuditSink interface {
	WriteAudit(ctx context.Context, entry *models.AuditLog) error
}

// Auditor records privileged actions in the background so handlers never
// wait on the audit store.
type Auditor struct {
	sink    AuditSink
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAuditor(sink AuditSink, logger *zap.Logger) *Auditor {
	return &Auditor{sink: sink, logger: logger, timeout: 5 * time.Second}
}

func (a *Auditor) LogAction(c *gin.Context, action, resource, resourceID string, oldValue, newValue interface{}) {
	entry := a.entry(c, action, resource, resourceID)
	entry.OldValue = marshalValue(oldValue)
	entry.NewValue = marshalValue(newValue)
	entry.Success = true
	a.write(entry)
}

func (a *Auditor) LogFailedAction(c *gin.Context, action, resource, resourceID, errorMsg string) {
	entry := a.entry(c, action, resource, resourceID)
	entry.ErrorMsg = errorMsg
	a.write(entry)
}

// Wait blocks until pending audit writes have finished.
func (a *Auditor) Wait() {
	a.wg.Wait()
}

// entry copies what it needs out of the gin context; the context must not
// be touched once the handler returns.
func (a *Auditor) entry(c *gin.Context, action, resource, resourceID string) *models.AuditLog {
	return &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     c.GetString("user_id"),
		UserEmail:  c.GetString("email"),
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  c.ClientIP(),
		Timestamp:  time.Now().UTC(),
	}
}

func (a *Auditor) write(entry *models.AuditLog) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.sink.WriteAudit(ctx, entry); err != nil {
			a.logger.Error("Failed to write audit log",
				zap.String("action", entry.Action),
				zap.String("resource_id", entry.ResourceID),
				zap.Error(err))
		}
	}()
}

func marshalValue(v interface{}) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
