package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atelier-ops/atelier-sync/internal/api/tinysync"
	"github.com/atelier-ops/atelier-sync/internal/app"
	"github.com/atelier-ops/atelier-sync/internal/config"
	pkgsync "github.com/atelier-ops/atelier-sync/internal/sync"
)

// CLIActor is recorded as the creator of runs started from the command line
const CLIActor = "cli"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single sync and print the result",
	Long: `Run one sync against the configured ERP and database without starting
the HTTP server. The result is printed as JSON, in the same shape the
tiny-sync endpoint returns.

Examples:
  # Preview the product changes since October
  atelier-sync run --config config.yaml --entity products --dry-run --since 2026-10-01

  # Check the ERP token
  atelier-sync run --config config.yaml --test-only`,
	RunE: runSync,
}

func init() {
	runCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	runCmd.Flags().String("entity", "", "Entity to sync (contacts, products or orders)")
	runCmd.Flags().Bool("dry-run", false, "Compute the changes without writing them")
	runCmd.Flags().String("since", "", "Only fetch records changed since this date (dd/mm/yyyy, yyyy-mm-dd or RFC3339)")
	runCmd.Flags().Bool("test-only", false, "Only check the ERP credentials")

	if err := runCmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	return runOnce(ctx, cfg, req, cmd.OutOrStdout())
}

func requestFromFlags(cmd *cobra.Command) (pkgsync.Request, error) {
	var req pkgsync.Request
	var err error

	if req.Entity, err = cmd.Flags().GetString("entity"); err != nil {
		return req, fmt.Errorf("failed to get entity flag: %w", err)
	}
	if req.DryRun, err = cmd.Flags().GetBool("dry-run"); err != nil {
		return req, fmt.Errorf("failed to get dry-run flag: %w", err)
	}
	if req.TestOnly, err = cmd.Flags().GetBool("test-only"); err != nil {
		return req, fmt.Errorf("failed to get test-only flag: %w", err)
	}
	since, err := cmd.Flags().GetString("since")
	if err != nil {
		return req, fmt.Errorf("failed to get since flag: %w", err)
	}
	if since != "" {
		req.Since = &since
	}
	return req, nil
}

// runOnce builds the application without serving and runs req through the
// orchestrator, writing the JSON result to out
func runOnce(ctx context.Context, cfg *config.Config, req pkgsync.Request, out io.Writer, opts ...app.SyncAppOption) error {
	syncApp, err := app.NewSyncApp(ctx, append([]app.SyncAppOption{app.WithConfig(cfg)}, opts...)...)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer syncApp.Close()

	result, err := syncApp.Components().Orchestrator.Run(ctx, req, CLIActor)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(tinysync.NewResponse(result))
}
