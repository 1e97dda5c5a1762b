package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"recipe-ingest-service/internal/repository/postgresql"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Applies the schema idempotently. The embedding column uses the configured
embedding dimensions; changing them later needs a manual migration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := postgresql.NewPool(ctx, cfg.Postgres.DSN, postgresql.PoolOptions{MaxConns: 2})
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := postgresql.Migrate(ctx, pool, cfg.AI.Dimensions); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema ready (embedding dimensions %d)\n", cfg.AI.Dimensions)
		return nil
	},
}
