package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexusfed/gateway/internal/core"
)

const manifestYAML = `
subgraphs:
  users:
    routing_url: http://localhost:4001/graphql
    schema:
      file: users.graphql
  products:
    routing_url: http://localhost:4002/graphql
    schema:
      file: products.graphql
`

func writeManifestFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "supergraph.yaml"), []byte(manifestYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.graphql"), []byte("type Query { users: [ID!]! }"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.graphql"), []byte("type Query { products: [ID!]! }"), 0o644))
	return filepath.Join(dir, "supergraph.yaml")
}

func TestParseManifest(t *testing.T) {
	cfg, err := ParseManifest([]byte(manifestYAML))
	require.NoError(t, err)
	require.Len(t, cfg.Subgraphs, 2)
	assert.Equal(t, "http://localhost:4001/graphql", cfg.Subgraphs["users"].RoutingURL)
	assert.Equal(t, "users.graphql", cfg.Subgraphs["users"].Schema.File)
}

func TestParseManifestInvalidYAML(t *testing.T) {
	_, err := ParseManifest([]byte("not: valid: yaml: at: all:"))
	require.Error(t, err)
	var invalid *core.ConfigInvalid
	require.ErrorAs(t, err, &invalid)
}

func TestSchemaResolverLocalFile(t *testing.T) {
	manifestPath := writeManifestFixture(t)
	resolver := NewSchemaResolver(filepath.Dir(manifestPath), zap.NewNop())

	text, err := resolver.Resolve(context.Background(), "users.graphql")
	require.NoError(t, err)
	assert.Contains(t, text, "type Query")
}

func TestLoadSchemasRegistersEverySubgraphInOrder(t *testing.T) {
	manifestPath := writeManifestFixture(t)

	var registered []string
	err := LoadSchemas(context.Background(), manifestPath, zap.NewNop(), func(sc core.ServiceConfig) error {
		registered = append(registered, sc.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"products", "users"}, registered)
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest("/no/such/manifest.yaml")
	require.Error(t, err)
	var invalid *core.ConfigInvalid
	require.ErrorAs(t, err, &invalid)
}
