package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"recipe-ingest-service/internal/entity"
	"recipe-ingest-service/internal/pipeline"
	"recipe-ingest-service/internal/registry"
	"recipe-ingest-service/internal/service"
	"recipe-ingest-service/internal/worker"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <url>",
	Short: "Ingest one video in this process and follow its progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		pool, err := worker.NewPool(1)
		if err != nil {
			return err
		}
		defer pool.Release(cfg.Worker.DrainTimeout)

		svc := service.NewIngestService(a.Registry, a.Jobs, a.Recipes, service.NewInlineDispatcher(pool, a.Executor))
		res, err := svc.Ingest(ctx, service.IngestRequest{URL: args[0], Kind: entity.KindYouTube, Observe: true})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch res.Status {
		case registry.StatusAlreadyExists:
			fmt.Fprintf(out, "recipe already exists: %s\n", res.RecipeID)
			return nil
		case registry.StatusInProgress:
			fmt.Fprintf(out, "ingestion already in progress: job %s\n", res.JobID)
			return nil
		}

		fmt.Fprintf(out, "job %s started\n", res.JobID)
		return follow(out, res.Stream)
	},
}

// follow prints events until the run ends and reports a failed run as an error.
func follow(out io.Writer, stream *pipeline.Stream) error {
	var last pipeline.Event
	for e := range stream.Events() {
		last = e
		switch e.Type {
		case pipeline.EventStepStarted:
			fmt.Fprintf(out, "  %s ...\n", e.Step)
		case pipeline.EventStepSucceeded:
			fmt.Fprintf(out, "  %s done (%s)\n", e.Step, e.OutputRef)
		case pipeline.EventStepFailed:
			fmt.Fprintf(out, "  %s failed: %s: %s\n", e.Step, e.ErrorKind, e.Message)
		case pipeline.EventPipelineCompleted:
			fmt.Fprintf(out, "recipe %s committed\n", e.RecipeID)
		}
	}
	if last.Type == pipeline.EventPipelineFailed {
		return fmt.Errorf("job failed: %s: %s", last.ErrorKind, last.Message)
	}
	return nil
}
