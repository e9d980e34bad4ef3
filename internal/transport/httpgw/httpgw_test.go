package httpgw

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexusfed/gateway/internal/core"
	"github.com/nexusfed/gateway/internal/executor"
	"github.com/nexusfed/gateway/internal/gateway"
	"github.com/nexusfed/gateway/internal/planner"
	"github.com/nexusfed/gateway/internal/registry"
)

func newTestServer(t *testing.T, upstream string) *Server {
	t.Helper()
	logger := zap.NewNop()
	reg := registry.New(logger)
	require.NoError(t, reg.RegisterService(core.ServiceConfig{
		Name: "users", URL: upstream,
		Schema: "type Query { users: [User!]! } type User { id: ID! name: String! }",
	}))
	facade := gateway.New(reg, planner.New(logger), executor.New(logger, time.Second), logger, nil, nil)
	return New(facade, logger, 5*time.Second, 5*time.Second, 5*time.Second)
}

func doRequest(t *testing.T, app *Server, method, path string, body []byte, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestHandleQuerySuccess(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"users":[{"id":"1","name":"a"}]}}`))
	}))
	defer upstream.Close()

	app := newTestServer(t, upstream.URL)
	body, _ := json.Marshal(core.GraphQLRequest{Query: "{ users { id name } }"})

	resp := doRequest(t, app, http.MethodPost, "/graphql", body, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "users")
}

func TestHandleQueryMalformedBody(t *testing.T) {
	app := newTestServer(t, "http://unused")
	resp := doRequest(t, app, http.MethodPost, "/graphql", []byte("{not json"), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleQueryUnroutableFieldReturnsBadRequest(t *testing.T) {
	app := newTestServer(t, "http://unused")
	body, _ := json.Marshal(core.GraphQLRequest{Query: "{ widgets { id } }"})

	resp := doRequest(t, app, http.MethodPost, "/graphql", body, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var clientErr core.ClientErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&clientErr))
	require.Len(t, clientErr.Errors, 1)
}

func TestHandleQueryUpstreamStatusReturnsBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer upstream.Close()

	app := newTestServer(t, upstream.URL)
	body, _ := json.Marshal(core.GraphQLRequest{Query: "{ users { id } }"})

	resp := doRequest(t, app, http.MethodPost, "/graphql", body, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	app := newTestServer(t, "http://unused")
	resp := doRequest(t, app, http.MethodGet, "/healthz", nil, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestForwardedHeadersPassesAuthorizationAndXHeadersOnly(t *testing.T) {
	var receivedAuth, receivedCustom, receivedCookie string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		receivedCustom = r.Header.Get("X-Tenant-Id")
		receivedCookie = r.Header.Get("Cookie")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer upstream.Close()

	app := newTestServer(t, upstream.URL)
	body, _ := json.Marshal(core.GraphQLRequest{Query: "{ users { id } }"})

	resp := doRequest(t, app, http.MethodPost, "/graphql", body, map[string]string{
		"Authorization": "Bearer abc",
		"X-Tenant-Id":   "tenant-1",
		"Cookie":        "session=xyz",
	})
	defer resp.Body.Close()

	assert.Equal(t, "Bearer abc", receivedAuth)
	assert.Equal(t, "tenant-1", receivedCustom)
	assert.Empty(t, receivedCookie)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForError(&core.QueryParseError{}))
	assert.Equal(t, http.StatusBadRequest, statusForError(&core.UnroutableField{}))
	assert.Equal(t, http.StatusBadRequest, statusForError(&core.EmptyPlan{}))
	assert.Equal(t, http.StatusGatewayTimeout, statusForError(&core.UpstreamTimeout{}))
	assert.Equal(t, http.StatusBadGateway, statusForError(&core.UpstreamStatus{}))
	assert.Equal(t, http.StatusBadGateway, statusForError(&core.UpstreamTransport{}))
	assert.Equal(t, http.StatusInternalServerError, statusForError(&core.ServiceNotFound{}))
	assert.Equal(t, http.StatusInternalServerError, statusForError(&core.SchemaInvalid{}))
}
