package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Load the manifest, compose the schema, and print the type-to-service index as JSON",
	RunE:  runCompose,
}

func runCompose(cmd *cobra.Command, args []string) error {
	cfg, log, reg, _, err := bootstrap()
	if err != nil {
		return err
	}

	if err := loadSchemas(context.Background(), cfg, log, reg); err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}

	schema, err := reg.GetSchema()
	if err != nil {
		return fmt.Errorf("failed to compose schema: %w", err)
	}

	encoded, err := json.MarshalIndent(schema.TypeToServiceMap, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
