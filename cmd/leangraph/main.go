// Package main provides the LeanGraph CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orneryd/leangraph/pkg/config"
	"github.com/orneryd/leangraph/pkg/cypher"
	"github.com/orneryd/leangraph/pkg/storage"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "leangraph",
		Short: "LeanGraph - embeddable openCypher graph database",
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("leangraph v%s\n", version)
		},
	})

	execCmd := &cobra.Command{
		Use:   "exec [cypher]",
		Short: "Execute a single Cypher statement against a database file",
		Args:  cobra.ExactArgs(1),
		RunE:  runExec,
	}
	execCmd.Flags().String("data-dir", "./data/leangraph.db", "Database file path")
	execCmd.Flags().String("params", "{}", "JSON object of query parameters")
	rootCmd.AddCommand(execCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runExec(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	paramsJSON, _ := cmd.Flags().GetString("params")

	var params map[string]any
	if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
		return fmt.Errorf("parsing --params: %w", err)
	}

	cfg := config.Defaults()
	cfg.DataPath = dataDir
	eng, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer eng.Close()

	result, err := cypher.Execute(context.Background(), eng, args[0], params)
	if err != nil {
		return fmt.Errorf("executing query: %w", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
