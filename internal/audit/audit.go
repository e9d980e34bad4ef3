// Package audit implements the optional audit trail of registry
// mutations (register_service/refresh events), grounded on the
// teacher's SchemaChangeEvent model. Purely observational: the facade
// runs identically with this package absent.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusfed/gateway/internal/gateway"
	"github.com/nexusfed/gateway/internal/storage"
)

const collectionName = "schema_change_events"

// MutationDocument is the persisted shape of one gateway.MutationEvent.
type MutationDocument struct {
	ID        string    `bson:"_id"`
	Kind      string    `bson:"kind"`
	Service   string    `bson:"service,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
}

// Log records registry mutations to MongoDB. It implements
// gateway.AuditLog.
type Log struct {
	db     *storage.Mongo
	logger *zap.Logger
}

// NewLog constructs a Log over an already-connected Mongo handle.
func NewLog(db *storage.Mongo, logger *zap.Logger) *Log {
	return &Log{db: db, logger: logger}
}

// RecordMutation persists one registry mutation event. Failures are
// logged, never propagated.
func (l *Log) RecordMutation(ctx context.Context, event gateway.MutationEvent) {
	doc := MutationDocument{
		ID:        uuid.NewString(),
		Kind:      event.Kind,
		Service:   event.Service,
		Timestamp: event.Timestamp,
	}
	collection := l.db.Database.Collection(collectionName)
	if _, err := collection.InsertOne(ctx, doc); err != nil {
		l.logger.Warn("failed to record audit event", zap.Error(err), zap.String("kind", event.Kind))
	}
}
