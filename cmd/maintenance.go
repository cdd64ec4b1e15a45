package cmd

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticketbot/internal/observability"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run one retention sweep over every tenant and exit",
	RunE:  runCleanup,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Raise ticket counters to the highest sequence seen on the platform",
	RunE:  runReconcile,
}

func runCleanup(cmd *cobra.Command, args []string) error {
	return withApplication(func(ctx context.Context, app *application) error {
		report, err := app.cleanup.Run(ctx)
		log.Printf("cleanup: tenants=%d tickets_removed=%d requests_removed=%d failed=%v",
			report.Tenants, report.TicketsRemoved, report.RequestsRemoved, report.FailedTenantIDs)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		return nil
	})
}

func runReconcile(cmd *cobra.Command, args []string) error {
	return withApplication(func(ctx context.Context, app *application) error {
		values, err := app.reconcile.ReconcileAll(ctx)
		tenants := make([]string, 0, len(values))
		for id := range values {
			tenants = append(tenants, id)
		}
		sort.Strings(tenants)
		for _, id := range tenants {
			log.Printf("reconcile: tenant=%s counter=%d", id, values[id])
		}
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		return nil
	})
}

func withApplication(fn func(ctx context.Context, app *application) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}
