package core

import "fmt"

// ConfigInvalid is raised by the manifest loader when the manifest
// document itself cannot be parsed or a referenced schema file cannot
// be read. Fatal at startup.
type ConfigInvalid struct {
	Path  string
	Cause error
}

func (e *ConfigInvalid) Error() string {
	return fmt.Sprintf("invalid configuration at %s: %v", e.Path, e.Cause)
}

func (e *ConfigInvalid) Unwrap() error { return e.Cause }

// SchemaInvalid is raised by registry composition when a registered
// service's schema text fails to parse. Fatal for the request in
// flight; the previous composed cache is retained.
type SchemaInvalid struct {
	Service string
	Cause   error
}

func (e *SchemaInvalid) Error() string {
	return fmt.Sprintf("schema invalid for service %q: %v", e.Service, e.Cause)
}

func (e *SchemaInvalid) Unwrap() error { return e.Cause }

// QueryParseError is raised by the planner when the client's query
// text fails to parse.
type QueryParseError struct {
	Cause error
}

func (e *QueryParseError) Error() string {
	return fmt.Sprintf("query parse error: %v", e.Cause)
}

func (e *QueryParseError) Unwrap() error { return e.Cause }

// UnroutableField is raised by the planner when a top-level field has
// no owning service in the composed index.
type UnroutableField struct {
	Operation string
	Field     string
}

func (e *UnroutableField) Error() string {
	return fmt.Sprintf("no service owns field %s.%s", e.Operation, e.Field)
}

// EmptyPlan is raised when a planned operation would route to no
// service at all.
type EmptyPlan struct{}

func (e *EmptyPlan) Error() string { return "query plan has no routed fields" }

// ServiceNotFound is raised by the executor when a plan references a
// service absent from the schema snapshot it was built against — a
// planner/snapshot mismatch, treated as an internal bug.
type ServiceNotFound struct {
	Service string
}

func (e *ServiceNotFound) Error() string {
	return fmt.Sprintf("service not found: %s", e.Service)
}

// UpstreamTransport is raised when the HTTP call to a subgraph fails
// below the application layer (dial, TLS, connection reset, ...).
type UpstreamTransport struct {
	Service string
	Cause   error
}

func (e *UpstreamTransport) Error() string {
	return fmt.Sprintf("transport error calling service %q: %v", e.Service, e.Cause)
}

func (e *UpstreamTransport) Unwrap() error { return e.Cause }

// UpstreamStatus is raised when a subgraph responds with a non-2xx
// HTTP status.
type UpstreamStatus struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamStatus) Error() string {
	return fmt.Sprintf("service %q returned status %d: %s", e.Service, e.Status, e.Body)
}

// UpstreamTimeout is raised when a subgraph call exceeds its
// per-request deadline.
type UpstreamTimeout struct {
	Service string
}

func (e *UpstreamTimeout) Error() string {
	return fmt.Sprintf("timeout calling service %q", e.Service)
}
