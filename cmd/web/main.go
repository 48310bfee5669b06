package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/EnowBibi/KontriVibeBackend/internal/app"
	"github.com/EnowBibi/KontriVibeBackend/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "kontrivibe",
		Short:        "KontriVibe API server",
		Long:         "KontriVibe serves the music streaming API and keeps premium subscriptions in step with Fapshi payments.",
		SilenceUsage: true,
	}

	var migrateFirst bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and scheduled workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if migrateFirst {
					if err := a.Migrate(ctx); err != nil {
						return err
					}
				}
				return a.Serve(ctx)
			})
		},
	}
	serveCmd.Flags().BoolVar(&migrateFirst, "migrate", false, "run database migrations before serving")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Migrate(ctx)
			})
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the subscription sweeps once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Sweep(ctx)
			})
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd)
	// Bare invocation serves, matching the container entrypoint.
	rootCmd.RunE = serveCmd.RunE
	return rootCmd
}

func withApp(ctx context.Context, run func(context.Context, *app.App) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to start", "error", err)
		return err
	}
	defer a.Close()

	if err := run(ctx, a); err != nil {
		logger.Error("Command failed", "error", err)
		return err
	}
	return nil
}
