package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recipe-ingest-service/internal/repository/postgresql"
	"recipe-ingest-service/internal/worker"
)

var reapOlderThan time.Duration

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Fail stuck jobs",
	Long: `Marks jobs that have been processing longer than --older-than, or were
created that long ago and never started, as failed (interrupted), so their
sources can be registered again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := postgresql.NewPool(ctx, cfg.Postgres.DSN, postgresql.PoolOptions{MaxConns: 2})
		if err != nil {
			return err
		}
		defer pool.Close()

		olderThan := reapOlderThan
		if olderThan <= 0 {
			olderThan = cfg.Pipeline.StaleAfter
		}
		reaper := worker.NewReaper(nil, postgresql.NewJobRepository(pool), olderThan, nil)
		_, failed := reaper.Sweep(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "failed %d stale jobs (older than %s)\n", failed, olderThan)
		return nil
	},
}

func init() {
	reapCmd.Flags().DurationVar(&reapOlderThan, "older-than", 0, "age threshold for processing or never-started jobs (default pipeline.stale_after)")
}
