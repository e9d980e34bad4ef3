// Package httpgw is the thin HTTP transport front-end spec.md treats
// as an external collaborator: it terminates client connections,
// (de)serializes GraphQLRequest/response JSON, forwards auth headers
// opaquely, and otherwise does no federation logic of its own.
//
// Grounded on cmd/api/main.go's setupFiber/setupRoutes shape.
package httpgw

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nexusfed/gateway/internal/core"
	"github.com/nexusfed/gateway/internal/gateway"
)

const playgroundHTML = `<!DOCTYPE html>
<html>
<head><title>Federation Gateway</title></head>
<body>
<h1>Federation Gateway</h1>
<p>POST a GraphQLRequest JSON body to this same path to execute a query.</p>
<textarea id="query" rows="10" cols="80">{ }</textarea><br/>
<button onclick="run()">Run</button>
<pre id="result"></pre>
<script>
async function run() {
  const res = await fetch(window.location.pathname, {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({query: document.getElementById('query').value})
  });
  document.getElementById('result').textContent = await res.text();
}
</script>
</body>
</html>`

// Server wraps a fiber.App wired to a gateway.Facade.
type Server struct {
	app    *fiber.App
	facade *gateway.Facade
	logger *zap.Logger
}

// New constructs a Server with its routes registered.
func New(facade *gateway.Facade, logger *zap.Logger, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	})

	s := &Server{app: app, facade: facade, logger: logger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "time": time.Now().UTC()})
	})

	s.app.Get("/graphql", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/html; charset=utf-8")
		return c.SendString(playgroundHTML)
	})

	s.app.Post("/graphql", s.handleQuery)
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req core.GraphQLRequest
	if err := c.BodyParser(&req); err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(core.NewClientErrorResponse("malformed request body: " + err.Error()))
	}
	req.AuthHeaders = forwardedHeaders(c)

	resp, err := s.facade.ProcessRequest(c.Context(), req)
	if err != nil {
		c.Status(statusForError(err))
		return c.JSON(core.NewClientErrorResponse(err.Error()))
	}
	return c.JSON(resp)
}

// forwardedHeaders extracts the subset of inbound headers that are
// forwarded opaquely to upstream subgraphs: Authorization and any
// X-prefixed header. The gateway never inspects their values.
func forwardedHeaders(c *fiber.Ctx) map[string]string {
	headers := make(map[string]string)
	c.Request().Header.VisitAll(func(key, value []byte) {
		name := string(key)
		if strings.EqualFold(name, "Authorization") || strings.HasPrefix(strings.ToUpper(name), "X-") {
			headers[name] = string(value)
		}
	})
	if len(headers) == 0 {
		return nil
	}
	return headers
}

func statusForError(err error) int {
	switch err.(type) {
	case *core.QueryParseError, *core.UnroutableField, *core.EmptyPlan:
		return fiber.StatusBadRequest
	case *core.UpstreamTimeout:
		return fiber.StatusGatewayTimeout
	case *core.UpstreamStatus, *core.UpstreamTransport:
		return fiber.StatusBadGateway
	case *core.ServiceNotFound:
		return fiber.StatusInternalServerError
	case *core.SchemaInvalid:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}

// Listen starts serving on addr. Blocks until the server stops.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// ShutdownWithContext gracefully stops the server.
func (s *Server) ShutdownWithContext(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
