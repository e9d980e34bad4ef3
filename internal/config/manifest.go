// Package config implements the configuration-loader collaborator
// spec.md declares external: it parses the supergraph manifest (a
// document enumerating subgraphs and their schema files) and drives
// load_schemas() by resolving each schema file — local path or
// s3://bucket/key — and registering the resulting ServiceConfig.
//
// Grounded on original_source/src/federation_gateway.rs's
// SupergraphConfig/SubgraphConfig/SchemaConfig shape and on the
// teacher's s3_storage_provider.go for the aws-sdk-go-v2 object-fetch
// pattern, generalized from file storage to schema-file resolution.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nexusfed/gateway/internal/core"
)

// SchemaConfig names the file holding one subgraph's schema text.
type SchemaConfig struct {
	File string `yaml:"file"`
}

// SubgraphConfig is one entry in the manifest's subgraphs map.
type SubgraphConfig struct {
	RoutingURL string       `yaml:"routing_url"`
	Schema     SchemaConfig `yaml:"schema"`
}

// SupergraphConfig is the manifest document shape.
type SupergraphConfig struct {
	Subgraphs map[string]SubgraphConfig `yaml:"subgraphs"`
}

// ParseManifest decodes manifest YAML bytes.
func ParseManifest(data []byte) (*SupergraphConfig, error) {
	var cfg SupergraphConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &core.ConfigInvalid{Cause: err}
	}
	return &cfg, nil
}

// LoadManifest reads and parses the manifest file at path.
func LoadManifest(path string) (*SupergraphConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.ConfigInvalid{Path: path, Cause: err}
	}
	cfg, err := ParseManifest(data)
	if err != nil {
		if ci, ok := err.(*core.ConfigInvalid); ok {
			ci.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// SchemaResolver reads the contents of a schema file referenced by a
// manifest entry, local path or s3://bucket/key.
type SchemaResolver struct {
	baseDir  string
	s3Client *s3.Client
	logger   *zap.Logger
}

// NewSchemaResolver constructs a resolver rooted at baseDir (typically
// the manifest file's directory, for relative local paths). The S3
// client is created lazily on first use of an s3:// reference.
func NewSchemaResolver(baseDir string, logger *zap.Logger) *SchemaResolver {
	return &SchemaResolver{baseDir: baseDir, logger: logger}
}

// Resolve returns the schema text referenced by file.
func (r *SchemaResolver) Resolve(ctx context.Context, file string) (string, error) {
	if strings.HasPrefix(file, "s3://") {
		return r.resolveS3(ctx, file)
	}
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &core.ConfigInvalid{Path: path, Cause: err}
	}
	return string(data), nil
}

func (r *SchemaResolver) resolveS3(ctx context.Context, uri string) (string, error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return "", &core.ConfigInvalid{Path: uri, Cause: fmt.Errorf("malformed s3 uri, expected s3://bucket/key")}
	}
	bucket, key := parts[0], parts[1]

	client, err := r.s3ClientFor(ctx)
	if err != nil {
		return "", &core.ConfigInvalid{Path: uri, Cause: err}
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", &core.ConfigInvalid{Path: uri, Cause: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", &core.ConfigInvalid{Path: uri, Cause: err}
	}
	r.logger.Debug("resolved schema file from s3", zap.String("bucket", bucket), zap.String("key", key))
	return string(data), nil
}

func (r *SchemaResolver) s3ClientFor(ctx context.Context) (*s3.Client, error) {
	if r.s3Client != nil {
		return r.s3Client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	r.s3Client = s3.NewFromConfig(awsCfg)
	return r.s3Client, nil
}

// LoadSchemas implements load_schemas(): it loads the manifest at
// manifestPath, resolves every subgraph's schema text in
// lexicographic order of name (so registration order, and therefore
// composition order, is deterministic across runs), and invokes
// register for each resulting ServiceConfig.
func LoadSchemas(ctx context.Context, manifestPath string, logger *zap.Logger, register func(core.ServiceConfig) error) error {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return err
	}

	resolver := NewSchemaResolver(filepath.Dir(manifestPath), logger)

	names := make([]string, 0, len(manifest.Subgraphs))
	for name := range manifest.Subgraphs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sub := manifest.Subgraphs[name]
		schemaText, err := resolver.Resolve(ctx, sub.Schema.File)
		if err != nil {
			return err
		}
		cfg := core.ServiceConfig{Name: name, URL: sub.RoutingURL, Schema: schemaText}
		if err := register(cfg); err != nil {
			return err
		}
	}
	return nil
}
