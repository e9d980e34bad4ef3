// Package registry implements the schema registry (C2): it owns the
// set of registered subgraphs and serves a cached, composed view built
// by parsing every subgraph's schema and indexing its types, fields
// and arguments by owning service.
//
// Grounded on schema_registry_service.go's use of gqlparser for
// parsing and hash-based change detection, generalized here to the
// copy-on-write snapshot the design notes call for: composition
// happens outside any lock and is installed with a single atomic
// pointer swap so readers never block.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"go.uber.org/zap"

	"github.com/nexusfed/gateway/internal/core"
)

// InvalidationHook is called after a registration or refresh
// invalidates the composed cache, before composition is attempted
// again. Used by internal/pubsub to broadcast the invalidation to
// sibling gateway processes; at most one hook is installed, and it may
// be nil.
type InvalidationHook func(serviceName string)

// Registry is the in-memory schema registry. The zero value is not
// usable; construct with New.
type Registry struct {
	logger *zap.Logger

	// Strict, if set, makes RegisterService fail immediately on a
	// non-parseable schema instead of deferring the error to the next
	// GetSchema call.
	Strict bool

	mu       sync.RWMutex
	services core.ServiceMap

	cache atomic.Pointer[core.FederatedSchema]

	onInvalidate InvalidationHook
}

// New constructs an empty registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger,
		services: make(core.ServiceMap),
	}
}

// OnInvalidate installs the hook invoked after every cache
// invalidation made by RegisterService or Refresh (InvalidateQuiet
// does not invoke it). Not safe to call concurrently with RegisterService or
// Refresh.
func (r *Registry) OnInvalidate(hook InvalidationHook) {
	r.onInvalidate = hook
}

// RegisterService inserts or replaces the subgraph named cfg.Name and
// invalidates the composed cache. In non-strict mode (the default) a
// malformed schema is logged and stored anyway; the parse error
// resurfaces on the next GetSchema that needs to (re)compose.
func (r *Registry) RegisterService(cfg core.ServiceConfig) error {
	if _, err := parser.ParseSchema(&ast.Source{Name: cfg.Name, Input: cfg.Schema}); err != nil {
		if r.Strict {
			return &core.SchemaInvalid{Service: cfg.Name, Cause: err}
		}
		r.logger.Warn("registered service has unparseable schema; deferring failure",
			zap.String("service", cfg.Name), zap.Error(err))
	}

	r.mu.Lock()
	r.services[cfg.Name] = cfg
	r.mu.Unlock()

	r.invalidate(cfg.Name)
	r.logger.Info("service registered", zap.String("service", cfg.Name), zap.String("url", cfg.URL))
	return nil
}

// Refresh invalidates the composed cache without touching the
// registered service set.
func (r *Registry) Refresh() {
	r.invalidate("")
}

// InvalidateQuiet drops the composed cache without firing the
// invalidation hook. Used by internal/pubsub when applying an
// invalidation that originated on a sibling gateway process, so the
// broadcast is not echoed back onto the same channel.
func (r *Registry) InvalidateQuiet() {
	r.cache.Store(nil)
}

func (r *Registry) invalidate(serviceName string) {
	r.cache.Store(nil)
	if r.onInvalidate != nil {
		r.onInvalidate(serviceName)
	}
}

// GetSchema returns the composed snapshot, building it if no valid
// cache exists. The returned value is a clone: callers may retain it
// across suspension points without racing a concurrent registration.
func (r *Registry) GetSchema() (*core.FederatedSchema, error) {
	if cached := r.cache.Load(); cached != nil {
		return cached.Clone(), nil
	}

	r.mu.RLock()
	services := make(core.ServiceMap, len(r.services))
	for k, v := range r.services {
		services[k] = v
	}
	r.mu.RUnlock()

	composed, err := compose(services)
	if err != nil {
		return nil, err
	}

	r.cache.Store(composed)
	r.logger.Debug("composition rebuilt",
		zap.Int("service_count", len(services)),
		zap.Int("index_key_count", len(composed.TypeToServiceMap)))
	return composed.Clone(), nil
}

// compose runs the deterministic composition algorithm: services are
// visited in lexicographic order of name, and every type/field/
// argument key they declare is appended to that key's owner list in
// that same order.
func compose(services core.ServiceMap) (*core.FederatedSchema, error) {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make(map[string][]string)
	appendKey := func(key, service string) {
		owners := index[key]
		for _, existing := range owners {
			if existing == service {
				return
			}
		}
		index[key] = append(owners, service)
	}

	for _, name := range names {
		cfg := services[name]
		doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: cfg.Schema})
		if err != nil {
			return nil, &core.SchemaInvalid{Service: name, Cause: err}
		}
		for _, def := range doc.Definitions {
			indexDefinition(def, name, appendKey)
		}
	}

	return &core.FederatedSchema{Services: services, TypeToServiceMap: index}, nil
}

func indexDefinition(def *ast.Definition, service string, appendKey func(key, service string)) {
	switch def.Kind {
	case ast.Object:
		appendKey(def.Name, service)
		for _, field := range def.Fields {
			fieldKey := fmt.Sprintf("%s.%s", def.Name, field.Name)
			appendKey(fieldKey, service)
			for _, arg := range field.Arguments {
				appendKey(fmt.Sprintf("%s.%s", fieldKey, arg.Name), service)
			}
		}
	case ast.Interface, ast.InputObject, ast.Enum, ast.Scalar, ast.Union:
		appendKey(def.Name, service)
	}
}
