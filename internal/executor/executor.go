// Package executor implements the query executor (C4): concurrent
// fan-out of a query plan's per-service operations, fail-fast error
// propagation, and deterministic merge of the subgraph responses.
//
// Grounded on original_source/src/query_executor.rs's try_join_all
// fan-out (translated to goroutines + a results channel, the
// idiomatic equivalent the design notes call for) and on
// service_discovery_service.go's http.Client/context.Context dispatch
// pattern for the request construction itself.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nexusfed/gateway/internal/core"
)

// DefaultTimeout is the per-request deadline applied when the caller
// does not specify one (spec section 4.4).
const DefaultTimeout = 30 * time.Second

// Executor dispatches a query plan's per-service operations over
// HTTP. It holds no per-request mutable state; the embedded
// http.Client's connection pool is safe for concurrent use.
type Executor struct {
	httpClient *http.Client
	logger     *zap.Logger
	timeout    time.Duration
}

// New constructs an Executor. A zero or negative timeout falls back
// to DefaultTimeout.
func New(logger *zap.Logger, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{
		httpClient: &http.Client{},
		logger:     logger,
		timeout:    timeout,
	}
}

type subgraphResponse struct {
	Data   map[string]interface{} `json:"data"`
	Errors []json.RawMessage      `json:"errors"`
}

type outcome struct {
	service  string
	response subgraphResponse
	err      error
}

// Execute dispatches every (service, operation) pair in plan
// concurrently, waits for all of them, and merges the successful
// responses in lexicographic service-name order. On the first
// transport or status failure (in completion order), it cancels the
// remaining in-flight calls and returns that error; no partial merge
// is returned.
func (e *Executor) Execute(ctx context.Context, plan *core.QueryPlan, schema *core.FederatedSchema, authHeaders map[string]string) (*core.GraphQLResponse, error) {
	names := make([]string, 0, len(plan.ServiceQueries))
	for name := range plan.ServiceQueries {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	results := make(chan outcome, len(names))
	for _, name := range names {
		name := name
		go func() {
			resp, err := e.callService(ctx, name, plan, schema, authHeaders)
			results <- outcome{service: name, response: resp, err: err}
		}()
	}

	byService := make(map[string]outcome, len(names))
	var firstErr error
	for i := 0; i < len(names); i++ {
		o := <-results
		byService[o.service] = o
		if o.err != nil && firstErr == nil {
			firstErr = o.err
			cancel()
		}
	}

	if firstErr != nil {
		e.logger.Warn("fan-out failed fast", zap.Error(firstErr))
		return nil, firstErr
	}

	merged := &core.GraphQLResponse{Data: make(map[string]interface{})}
	var errs []json.RawMessage
	for _, name := range names {
		o := byService[name]
		for k, v := range o.response.Data {
			merged.Data[k] = v
		}
		errs = append(errs, o.response.Errors...)
	}
	if len(merged.Data) == 0 && len(errs) > 0 {
		merged.Data = nil
	}
	if len(errs) > 0 {
		merged.Errors = errs
	}

	e.logger.Debug("fan-out merged", zap.Int("service_count", len(names)), zap.Int("error_count", len(errs)))
	return merged, nil
}

func (e *Executor) callService(ctx context.Context, service string, plan *core.QueryPlan, schema *core.FederatedSchema, authHeaders map[string]string) (subgraphResponse, error) {
	svc, ok := schema.Services[service]
	if !ok {
		return subgraphResponse{}, &core.ServiceNotFound{Service: service}
	}

	vars := plan.ServiceVariables[service]
	if vars == nil {
		vars = map[string]interface{}{}
	}

	bodyBytes, err := json.Marshal(map[string]interface{}{
		"query":     plan.ServiceQueries[service],
		"variables": vars,
	})
	if err != nil {
		return subgraphResponse{}, &core.UpstreamTransport{Service: service, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.URL, bytes.NewReader(bodyBytes))
	if err != nil {
		return subgraphResponse{}, &core.UpstreamTransport{Service: service, Cause: err}
	}

	for name, value := range authHeaders {
		req.Header.Set(name, value)
	}
	// Content-Type is set last so it always wins over a forwarded
	// auth header of the same name, per the dispatch contract.
	req.Header.Set("Content-Type", "application/json")

	e.logger.Debug("dispatching upstream call", zap.String("service", service), zap.String("url", svc.URL))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return subgraphResponse{}, &core.UpstreamTimeout{Service: service}
		}
		return subgraphResponse{}, &core.UpstreamTransport{Service: service, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return subgraphResponse{}, &core.UpstreamTransport{Service: service, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return subgraphResponse{}, &core.UpstreamStatus{Service: service, Status: resp.StatusCode, Body: string(body)}
	}

	var parsed subgraphResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return subgraphResponse{}, &core.UpstreamTransport{Service: service, Cause: fmt.Errorf("invalid JSON response: %w", err)}
	}
	return parsed, nil
}
