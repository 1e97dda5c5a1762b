package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/repository/postgresql"
)

var jobCmd = &cobra.Command{
	Use:   "job <job-id>",
	Short: "Show a job and its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid job id: %w", err)
		}

		ctx := cmd.Context()
		pool, err := postgresql.NewPool(ctx, cfg.Postgres.DSN, postgresql.PoolOptions{MaxConns: 2})
		if err != nil {
			return err
		}
		defer pool.Close()

		job, err := postgresql.NewJobRepository(pool).GetJob(ctx, id)
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		printJob(cmd.OutOrStdout(), job)
		return nil
	},
}

func printJob(w io.Writer, job *entity.Job) {
	fmt.Fprintf(w, "job %s  source %s  %s\n", job.ID, job.SourceID, job.Status)
	if job.ErrorKind != nil {
		msg := ""
		if job.ErrorMessage != nil {
			msg = *job.ErrorMessage
		}
		fmt.Fprintf(w, "  error: %s: %s\n", *job.ErrorKind, msg)
	}
	for _, s := range job.Steps {
		line := fmt.Sprintf("  %d. %-20s %s", s.Order+1, s.Type, s.Status)
		if s.StartedAt != nil && s.CompletedAt != nil {
			line += fmt.Sprintf("  (%s)", s.CompletedAt.Sub(*s.StartedAt).Round(time.Millisecond))
		}
		if s.ErrorMessage != nil {
			line += "  " + *s.ErrorMessage
		}
		fmt.Fprintln(w, line)
	}
}
