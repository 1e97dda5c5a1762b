// Package cli provides the recipectl operator commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"recipe-ingest-service/internal/app"
	"recipe-ingest-service/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	configFile string
	verbose    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "recipectl",
	Short: "Operate the recipe ingestion service",
	Long: `recipectl runs maintenance tasks against the recipe ingestion store:
schema migration, job inspection, search and stale-job reaping. It reads the
same configuration file and environment as the api and worker binaries.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
		if cfg.Postgres.DSN == "" {
			return fmt.Errorf("postgres dsn is required (POSTGRES_DSN or postgres.dsn)")
		}
		return nil
	},
}

// openApp builds the full component graph for commands that need more than
// the database.
func openApp(ctx context.Context) (*app.App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return app.New(ctx, cfg, nil)
}

// Execute runs the root command; SIGINT and SIGTERM cancel its context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("CONFIG_FILE"), "config file (yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(reapCmd)
	rootCmd.AddCommand(ingestCmd)
}
