package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	gatewayconfig "github.com/nexusfed/gateway/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse every configured schema file and report parse errors without starting a server",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, log, _, _, err := bootstrap()
	if err != nil {
		return err
	}

	manifest, err := gatewayconfig.LoadManifest(cfg.Gateway.ManifestPath)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	resolver := gatewayconfig.NewSchemaResolver(filepath.Dir(cfg.Gateway.ManifestPath), log.Desugar())

	names := make([]string, 0, len(manifest.Subgraphs))
	for name := range manifest.Subgraphs {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx := context.Background()
	failed := 0
	for _, name := range names {
		sub := manifest.Subgraphs[name]
		schemaText, err := resolver.Resolve(ctx, sub.Schema.File)
		if err != nil {
			fmt.Printf("%s: FAILED to read schema file: %v\n", name, err)
			failed++
			continue
		}
		if _, err := parser.ParseSchema(&ast.Source{Name: name, Input: schemaText}); err != nil {
			fmt.Printf("%s: FAILED to parse: %v\n", name, err)
			failed++
			continue
		}
		fmt.Printf("%s: OK\n", name)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d subgraph schemas failed validation", failed, len(names))
	}
	return nil
}
