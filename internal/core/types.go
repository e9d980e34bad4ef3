// Package core holds the data model shared by the registry, planner,
// executor and gateway facade: service configuration, the composed
// federated schema snapshot, query plans and the client-facing request
// shape.
package core

import "encoding/json"

// ServiceConfig identifies a single subgraph: a unique name, its
// routing URL, and the schema text it owns. Never mutated in place —
// re-registering the same name replaces the prior value wholesale.
type ServiceConfig struct {
	Name   string `json:"name" yaml:"name"`
	URL    string `json:"url" yaml:"url"`
	Schema string `json:"schema" yaml:"-"`
}

// ServiceMap maps a service name to its configuration. Keys are
// unique; callers that need deterministic iteration must sort the
// keys themselves (see registry composition).
type ServiceMap map[string]ServiceConfig

// FederatedSchema is the registry's composed view: an immutable
// snapshot taken at a point in time. Handed out by value semantics —
// callers receive a snapshot that will never change underneath them.
type FederatedSchema struct {
	Services        ServiceMap
	TypeToServiceMap map[string][]string
}

// Clone returns a deep copy of the snapshot so a caller holding it
// across an await point never observes a mutation made by a
// subsequent registration.
func (f *FederatedSchema) Clone() *FederatedSchema {
	if f == nil {
		return nil
	}
	services := make(ServiceMap, len(f.Services))
	for k, v := range f.Services {
		services[k] = v
	}
	index := make(map[string][]string, len(f.TypeToServiceMap))
	for k, v := range f.TypeToServiceMap {
		cp := make([]string, len(v))
		copy(cp, v)
		index[k] = cp
	}
	return &FederatedSchema{Services: services, TypeToServiceMap: index}
}

// QueryPlan is the planner's output: one rewritten operation and one
// projected variables object per service that owns a routed field.
// ServiceQueries and ServiceVariables always share the same key set.
type QueryPlan struct {
	ServiceQueries   map[string]string
	ServiceVariables map[string]map[string]interface{}
}

// GraphQLRequest is the client-facing input accepted by the facade.
// AuthHeaders is populated by the transport layer from the inbound
// request's headers, never the JSON body, so its json:"-" tag excludes
// it from JSON (de)serialization.
type GraphQLRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
	AuthHeaders   map[string]string      `json:"-"`
}

// GraphQLResponse is the merged reply shape returned to the client:
// a top-level data object and/or a flat array of error objects.
type GraphQLResponse struct {
	Data   map[string]interface{} `json:"data,omitempty"`
	Errors []json.RawMessage      `json:"errors,omitempty"`
}

// ClientError is the shape errors take when surfaced to the client,
// per the error handling design: {"errors":[{"message": ...}]}.
type ClientError struct {
	Message string `json:"message"`
}

// ClientErrorResponse wraps one or more ClientError values for
// transport back to the caller.
type ClientErrorResponse struct {
	Errors []ClientError `json:"errors"`
}

// NewClientErrorResponse builds a single-error response body.
func NewClientErrorResponse(message string) ClientErrorResponse {
	return ClientErrorResponse{Errors: []ClientError{{Message: message}}}
}
