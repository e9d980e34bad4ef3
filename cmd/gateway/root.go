// Command gateway is the federation gateway's process entrypoint.
// Grounded on the teacher's cmd/migrate use of spf13/cobra for
// operational subcommands and on cmd/api/main.go for the
// config/logger bootstrap sequence.
package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	gatewayconfig "github.com/nexusfed/gateway/internal/config"
	"github.com/nexusfed/gateway/internal/core"
	"github.com/nexusfed/gateway/internal/planner"
	"github.com/nexusfed/gateway/internal/registry"
	appconfig "github.com/nexusfed/gateway/pkg/config"
	"github.com/nexusfed/gateway/pkg/logger"
)

var manifestPath string

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Federation gateway for the query language",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "", "path to the supergraph manifest (defaults to GATEWAY_MANIFEST_PATH)")
	rootCmd.AddCommand(serveCmd, composeCmd, validateCmd)
}

// bootstrap loads process config, constructs the logger, and builds
// an empty registry/planner pair. Schema loading is left to the
// caller since compose/validate want different failure behavior than
// serve.
func bootstrap() (*appconfig.Config, *logger.Logger, *registry.Registry, *planner.Planner, error) {
	cfg, err := appconfig.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if manifestPath != "" {
		cfg.Gateway.ManifestPath = manifestPath
	}

	log, err := logger.NewLogger(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		OutputPath: cfg.Logger.OutputPath,
	})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	zapLogger := log.Desugar()
	reg := registry.New(zapLogger)
	reg.Strict = cfg.Gateway.StrictSchemas
	p := planner.New(zapLogger)

	return cfg, log, reg, p, nil
}

// loadSchemas drives load_schemas(): reads the manifest and registers
// every subgraph it names.
func loadSchemas(ctx context.Context, cfg *appconfig.Config, log *logger.Logger, reg *registry.Registry) error {
	return gatewayconfig.LoadSchemas(ctx, cfg.Gateway.ManifestPath, log.Desugar(), func(sc core.ServiceConfig) error {
		return reg.RegisterService(sc)
	})
}
