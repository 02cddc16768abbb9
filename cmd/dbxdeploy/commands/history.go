package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dbxdeploy/dbxdeploy/pkg/history"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded deployment runs",
		Long: `History lists past deployment runs from the local history database,
newest first. With --run it shows the per-stage breakdown of one run.`,
		Example: `  # Last 20 runs
  dbxdeploy history

  # Stage breakdown of one run
  dbxdeploy history --run 4f2c1a9e-...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.shutdown(ctx)

			if rt.cfg.HistoryPath == "" {
				return fmt.Errorf("history recording is disabled (history_path is empty)")
			}

			store, err := history.NewStore(rt.cfg.HistoryPath)
			if err != nil {
				return err
			}
			if err := store.Init(ctx); err != nil {
				return err
			}
			defer store.Close()

			if runID != "" {
				return printRunDetail(ctx, store, runID)
			}
			return printRuns(ctx, store, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show the stage breakdown of one run")

	return cmd
}

func printRuns(ctx context.Context, store *history.Store, limit int) error {
	runs, err := store.ListDeployments(ctx, limit, 0)
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(runs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(runs) == 0 {
		fmt.Println("No deployments recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tAPP\tMODE\tSTATUS\tSTARTED\tCOMPLETED")
	for _, run := range runs {
		completed := "-"
		if run.CompletedAt != nil {
			completed = run.CompletedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID, run.AppName, run.Mode, run.Status,
			run.StartedAt.Format("2006-01-02 15:04:05"), completed)
	}
	return w.Flush()
}

func printRunDetail(ctx context.Context, store *history.Store, runID string) error {
	run, err := store.GetDeployment(ctx, runID)
	if err != nil {
		return err
	}
	stages, err := store.ListStages(ctx, runID)
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(struct {
			Run    *history.Deployment `json:"run"`
			Stages []*history.Stage    `json:"stages"`
		}{run, stages}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Run:    %s\n", run.ID)
	fmt.Printf("App:    %s (%s)\n", run.AppName, run.AppFolder)
	fmt.Printf("Mode:   %s\n", run.Mode)
	fmt.Printf("Status: %s\n", run.Status)
	if run.Error != nil {
		fmt.Printf("Error:  %s\n", *run.Error)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nSTAGE\tSTATUS\tDURATION\tERROR")
	for _, stage := range stages {
		errText := "-"
		if stage.Error != nil {
			errText = *stage.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%dms\t%s\n", stage.Name, stage.Status, stage.DurationMS, errText)
	}
	return w.Flush()
}
