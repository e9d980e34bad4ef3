// Package gateway implements the gateway facade (C5): it orchestrates
// a single request end to end — fetch the composed schema, plan,
// execute — and exposes process_request/register_service to the
// transport front-end.
//
// Grounded on federation_gateway_service.go's FederationGatewayService
// (ComposeSchema/ExecuteQuery orchestration, the optional
// metrics/audit side-channels recorded via recordQueryMetrics),
// generalized to delegate the actual composition/planning/execution
// work to internal/registry, internal/planner and internal/executor
// instead of the teacher's inline naive implementations.
package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexusfed/gateway/internal/core"
	"github.com/nexusfed/gateway/internal/executor"
	"github.com/nexusfed/gateway/internal/planner"
	"github.com/nexusfed/gateway/internal/registry"
)

// QueryMetric is one observation of a process_request call, handed to
// an optional MetricsSink.
type QueryMetric struct {
	RequestID     string
	OperationName string
	ServiceCount  int
	ErrorCount    int
	Duration      time.Duration
	Succeeded     bool
}

// MetricsSink records query metrics. Implemented by internal/metrics;
// the facade runs identically with a nil sink.
type MetricsSink interface {
	RecordQuery(ctx context.Context, metric QueryMetric)
}

// MutationEvent describes a registry mutation, handed to an optional
// AuditLog.
type MutationEvent struct {
	Kind      string // "register_service" or "refresh"
	Service   string
	Timestamp time.Time
}

// AuditLog records registry mutations. Implemented by internal/audit;
// the facade runs identically with a nil log.
type AuditLog interface {
	RecordMutation(ctx context.Context, event MutationEvent)
}

// Facade is the single entry point the transport front-end drives.
type Facade struct {
	registry *registry.Registry
	planner  *planner.Planner
	executor *executor.Executor
	logger   *zap.Logger

	metrics MetricsSink
	audit   AuditLog
}

// New constructs a Facade from its three collaborators. metrics and
// audit may be nil.
func New(reg *registry.Registry, p *planner.Planner, ex *executor.Executor, logger *zap.Logger, metrics MetricsSink, audit AuditLog) *Facade {
	return &Facade{
		registry: reg,
		planner:  p,
		executor: ex,
		logger:   logger,
		metrics:  metrics,
		audit:    audit,
	}
}

// ProcessRequest runs one client request through the composed schema,
// planner and executor and returns the merged response.
func (f *Facade) ProcessRequest(ctx context.Context, req core.GraphQLRequest) (*core.GraphQLResponse, error) {
	requestID := uuid.NewString()
	start := time.Now()
	log := f.logger.With(zap.String("request_id", requestID))

	schema, err := f.registry.GetSchema()
	if err != nil {
		log.Error("failed to obtain composed schema", zap.Error(err))
		f.recordMetric(ctx, requestID, req.OperationName, 0, 0, time.Since(start), false)
		return nil, err
	}

	plan, err := f.planner.Plan(req.Query, schema, req.Variables, req.OperationName)
	if err != nil {
		log.Info("query planning failed", zap.Error(err))
		f.recordMetric(ctx, requestID, req.OperationName, 0, 0, time.Since(start), false)
		return nil, err
	}

	resp, err := f.executor.Execute(ctx, plan, schema, req.AuthHeaders)
	errCount := 0
	if err != nil {
		errCount = 1
	} else if resp != nil {
		errCount = len(resp.Errors)
	}
	f.recordMetric(ctx, requestID, req.OperationName, len(plan.ServiceQueries), errCount, time.Since(start), err == nil)

	if err != nil {
		log.Warn("request execution failed", zap.Error(err))
		return nil, err
	}

	log.Debug("request completed", zap.Duration("duration", time.Since(start)), zap.Int("service_count", len(plan.ServiceQueries)))
	return resp, nil
}

func (f *Facade) recordMetric(ctx context.Context, requestID, operationName string, serviceCount, errCount int, duration time.Duration, succeeded bool) {
	if f.metrics == nil {
		return
	}
	f.metrics.RecordQuery(ctx, QueryMetric{
		RequestID:     requestID,
		OperationName: operationName,
		ServiceCount:  serviceCount,
		ErrorCount:    errCount,
		Duration:      duration,
		Succeeded:     succeeded,
	})
}

// RegisterService delegates to the registry and, when an audit log is
// configured, records the mutation.
func (f *Facade) RegisterService(ctx context.Context, cfg core.ServiceConfig) error {
	if err := f.registry.RegisterService(cfg); err != nil {
		return err
	}
	if f.audit != nil {
		f.audit.RecordMutation(ctx, MutationEvent{Kind: "register_service", Service: cfg.Name, Timestamp: time.Now()})
	}
	return nil
}

// Refresh invalidates the composed cache without touching the
// registered service set.
func (f *Facade) Refresh(ctx context.Context) {
	f.registry.Refresh()
	if f.audit != nil {
		f.audit.RecordMutation(ctx, MutationEvent{Kind: "refresh", Timestamp: time.Now()})
	}
}

// GetSchema exposes the current composed snapshot by delegating to
// the registry.
func (f *Facade) GetSchema() (*core.FederatedSchema, error) {
	return f.registry.GetSchema()
}
