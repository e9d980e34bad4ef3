// Package metrics implements the optional query-metrics sink: one
// persisted row per process_request call. Purely additive
// instrumentation grounded on the teacher's GraphQLQueryMetrics model
// and recordQueryMetrics method in federation_gateway_service.go; the
// facade runs identically with this package absent.
package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusfed/gateway/internal/gateway"
	"github.com/nexusfed/gateway/internal/storage"
)

// QueryMetricRecord is the persisted shape of one gateway.QueryMetric.
type QueryMetricRecord struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	RequestID     string `gorm:"index"`
	OperationName string
	ServiceCount  int
	ErrorCount    int
	DurationMs    int64
	Succeeded     bool
	CreatedAt     time.Time
}

// TableName pins the table name regardless of gorm's pluralization
// rules.
func (QueryMetricRecord) TableName() string { return "graphql_query_metrics" }

// Sink persists query metrics to Postgres via gorm. It implements
// gateway.MetricsSink.
type Sink struct {
	db     *storage.Postgres
	logger *zap.Logger
}

// NewSink constructs a Sink over an already-connected Postgres
// handle.
func NewSink(db *storage.Postgres, logger *zap.Logger) *Sink {
	return &Sink{db: db, logger: logger}
}

// Migrate creates/updates the metrics table. Call once at startup.
func (s *Sink) Migrate() error {
	return s.db.AutoMigrate(&QueryMetricRecord{})
}

// RecordQuery persists one metric observation. Failures are logged,
// never propagated — metrics recording must never fail a request.
func (s *Sink) RecordQuery(ctx context.Context, metric gateway.QueryMetric) {
	record := QueryMetricRecord{
		ID:            uuid.NewString(),
		RequestID:     metric.RequestID,
		OperationName: metric.OperationName,
		ServiceCount:  metric.ServiceCount,
		ErrorCount:    metric.ErrorCount,
		DurationMs:    metric.Duration.Milliseconds(),
		Succeeded:     metric.Succeeded,
		CreatedAt:     time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logger.Warn("failed to record query metric", zap.Error(err), zap.String("request_id", metric.RequestID))
	}
}
