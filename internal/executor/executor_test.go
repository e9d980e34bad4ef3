package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexusfed/gateway/internal/core"
)

func jsonHandler(t *testing.T, status int, body string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestExecuteSingleServiceSuccess(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, http.StatusOK, `{"data":{"users":[{"id":"1","name":"a"}]}}`))
	defer server.Close()

	schema := &core.FederatedSchema{Services: core.ServiceMap{"users": {Name: "users", URL: server.URL}}}
	plan := &core.QueryPlan{
		ServiceQueries:   map[string]string{"users": "query { users { id name } }"},
		ServiceVariables: map[string]map[string]interface{}{"users": {}},
	}

	ex := New(zap.NewNop(), time.Second)
	resp, err := ex.Execute(context.Background(), plan, schema, nil)
	require.NoError(t, err)
	assert.Contains(t, resp.Data, "users")
}

func TestExecuteMergesMultipleServicesDeterministically(t *testing.T) {
	usersServer := httptest.NewServer(jsonHandler(t, http.StatusOK, `{"data":{"users":[{"id":"1"}]}}`))
	defer usersServer.Close()
	productsServer := httptest.NewServer(jsonHandler(t, http.StatusOK, `{"data":{"products":[{"id":"9"}]}}`))
	defer productsServer.Close()

	schema := &core.FederatedSchema{Services: core.ServiceMap{
		"users":    {Name: "users", URL: usersServer.URL},
		"products": {Name: "products", URL: productsServer.URL},
	}}
	plan := &core.QueryPlan{
		ServiceQueries: map[string]string{
			"users":    "query { users { id } }",
			"products": "query { products { id } }",
		},
		ServiceVariables: map[string]map[string]interface{}{"users": {}, "products": {}},
	}

	ex := New(zap.NewNop(), time.Second)
	resp, err := ex.Execute(context.Background(), plan, schema, nil)
	require.NoError(t, err)
	assert.Contains(t, resp.Data, "users")
	assert.Contains(t, resp.Data, "products")
}

func TestExecuteFailsFastOnNon2xx(t *testing.T) {
	usersServer := httptest.NewServer(jsonHandler(t, http.StatusOK, `{"data":{"users":[]}}`))
	defer usersServer.Close()
	productsServer := httptest.NewServer(jsonHandler(t, http.StatusInternalServerError, `internal error`))
	defer productsServer.Close()

	schema := &core.FederatedSchema{Services: core.ServiceMap{
		"users":    {Name: "users", URL: usersServer.URL},
		"products": {Name: "products", URL: productsServer.URL},
	}}
	plan := &core.QueryPlan{
		ServiceQueries: map[string]string{
			"users":    "query { users { id } }",
			"products": "query { products { id } }",
		},
		ServiceVariables: map[string]map[string]interface{}{"users": {}, "products": {}},
	}

	ex := New(zap.NewNop(), time.Second)
	_, err := ex.Execute(context.Background(), plan, schema, nil)
	require.Error(t, err)

	var statusErr *core.UpstreamStatus
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "products", statusErr.Service)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
}

func TestExecuteMergesErrors(t *testing.T) {
	usersServer := httptest.NewServer(jsonHandler(t, http.StatusOK, `{"data":{"users":[]},"errors":[{"message":"a"}]}`))
	defer usersServer.Close()
	productsServer := httptest.NewServer(jsonHandler(t, http.StatusOK, `{"data":{"products":[]},"errors":[{"message":"b"},{"message":"c"}]}`))
	defer productsServer.Close()

	schema := &core.FederatedSchema{Services: core.ServiceMap{
		"users":    {Name: "users", URL: usersServer.URL},
		"products": {Name: "products", URL: productsServer.URL},
	}}
	plan := &core.QueryPlan{
		ServiceQueries: map[string]string{
			"users":    "query { users { id } }",
			"products": "query { products { id } }",
		},
		ServiceVariables: map[string]map[string]interface{}{"users": {}, "products": {}},
	}

	ex := New(zap.NewNop(), time.Second)
	resp, err := ex.Execute(context.Background(), plan, schema, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Errors, 3)
}

func TestExecuteServiceNotFound(t *testing.T) {
	schema := &core.FederatedSchema{Services: core.ServiceMap{}}
	plan := &core.QueryPlan{
		ServiceQueries:   map[string]string{"ghost": "query { x }"},
		ServiceVariables: map[string]map[string]interface{}{"ghost": {}},
	}

	ex := New(zap.NewNop(), time.Second)
	_, err := ex.Execute(context.Background(), plan, schema, nil)
	require.Error(t, err)
	var notFound *core.ServiceNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestExecuteForwardsAuthHeadersAndAppliesContentType(t *testing.T) {
	var received http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	schema := &core.FederatedSchema{Services: core.ServiceMap{"users": {Name: "users", URL: server.URL}}}
	plan := &core.QueryPlan{
		ServiceQueries:   map[string]string{"users": "query { users { id } }"},
		ServiceVariables: map[string]map[string]interface{}{"users": {}},
	}

	ex := New(zap.NewNop(), time.Second)
	_, err := ex.Execute(context.Background(), plan, schema, map[string]string{
		"Authorization": "Bearer token",
		"Content-Type":  "text/plain",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer token", received.Get("Authorization"))
	assert.Equal(t, "application/json", received.Get("Content-Type"))
}

func TestExecuteTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	schema := &core.FederatedSchema{Services: core.ServiceMap{"users": {Name: "users", URL: server.URL}}}
	plan := &core.QueryPlan{
		ServiceQueries:   map[string]string{"users": "query { users { id } }"},
		ServiceVariables: map[string]map[string]interface{}{"users": {}},
	}

	ex := New(zap.NewNop(), 5*time.Millisecond)
	_, err := ex.Execute(context.Background(), plan, schema, nil)
	require.Error(t, err)
	var timeoutErr *core.UpstreamTimeout
	require.ErrorAs(t, err, &timeoutErr)
}

func TestSubgraphResponseRoundTrip(t *testing.T) {
	var parsed subgraphResponse
	require.NoError(t, json.Unmarshal([]byte(`{"data":{"a":1},"errors":[{"message":"x"}]}`), &parsed))
	assert.Equal(t, float64(1), parsed.Data["a"])
	assert.Len(t, parsed.Errors, 1)
}
