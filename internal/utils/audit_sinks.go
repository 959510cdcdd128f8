package utils

import (
	"context"

	"github.com/gocql/gocql"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"storefront/internal/models"
)

const auditTableCQL = `CREATE TABLE IF NOT EXISTS audit_logs (
	id uuid PRIMARY KEY,
	user_id text,
	user_email text,
	action text,
	resource text,
	resource_id text,
	old_value text,
	new_value text,
	ip_address text,
	success boolean,
	error_msg text,
	timestamp timestamp
)`

const auditInsertCQL = `INSERT INTO audit_logs (
	id, user_id, user_email, action, resource, resource_id,
	old_value, new_value, ip_address, success, error_msg, timestamp
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ScyllaAuditSink writes to the audit_logs table of the configured keyspace.
type ScyllaAuditSink struct {
	session *gocql.Session
}

func NewScyllaAuditSink(session *gocql.Session) (*ScyllaAuditSink, error) {
	if err := session.Query(auditTableCQL).Exec(); err != nil {
		return nil, err
	}
	return &ScyllaAuditSink{session: session}, nil
}

func (s *ScyllaAuditSink) WriteAudit(ctx context.Context, e *models.AuditLog) error {
	id, err := gocql.ParseUUID(e.ID)
	if err != nil {
		id = gocql.TimeUUID()
	}
	return s.session.Query(auditInsertCQL,
		id, e.UserID, e.UserEmail, e.Action, e.Resource, e.ResourceID,
		e.OldValue, e.NewValue, e.IPAddress, e.Success, e.ErrorMsg, e.Timestamp,
	).WithContext(ctx).Exec()
}

// MongoAuditSink appends to the audit_logs collection.
type MongoAuditSink struct {
	collection *mongo.Collection
}

func NewMongoAuditSink(db *mongo.Database) *MongoAuditSink {
	return &MongoAuditSink{collection: db.Collection("audit_logs")}
}

func (s *MongoAuditSink) WriteAudit(ctx context.Context, e *models.AuditLog) error {
	_, err := s.collection.InsertOne(ctx, e)
	return err
}

// LogAuditSink only logs; used when no audit store is configured.
type LogAuditSink struct {
	logger *zap.Logger
}

func NewLogAuditSink(logger *zap.Logger) *LogAuditSink {
	return &LogAuditSink{logger: logger}
}

func (s *LogAuditSink) WriteAudit(_ context.Context, e *models.AuditLog) error {
	s.logger.Info("audit",
		zap.String("action", e.Action),
		zap.String("resource", e.Resource),
		zap.String("resource_id", e.ResourceID),
		zap.String("user_id", e.UserID),
		zap.Bool("success", e.Success),
		zap.String("old", e.OldValue),
		zap.String("new", e.NewValue),
		zap.String("error", e.ErrorMsg))
	return nil
}
