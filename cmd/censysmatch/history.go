package main

import (
	"fmt"

	"github.com/hakim/censysmatch/internal/models"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show previous classification runs",
	Long: `Display a table of past runs of the configured job, newest first.

Each row shows the run ID (truncated), start time, final status and the
line, parse error, match and persisted counters.

Use --limit to cap the number of rows shown (default: 10).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Step 1: Get flags
		limit, _ := cmd.Flags().GetInt("limit")
		ctx := cmd.Context()

		// Step 2: Open the store
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		// Step 3: List runs for the configured job, newest first
		runs, err := store.ListRuns(ctx, cfg.Job.Name)
		if err != nil {
			return fmt.Errorf("listing runs for %s: %w", cfg.Job.Name, err)
		}

		if len(runs) == 0 {
			fmt.Printf("No run history found for job %s\n", cfg.Job.Name)
			return nil
		}

		// Step 4: Apply limit
		if limit > 0 && len(runs) > limit {
			runs = runs[:limit]
		}

		// Step 5: Render the table
		const separator = "──────────────────────────────────────────────────────────────────────────────"

		fmt.Printf("\nRun History for %s\n", cfg.Job.Name)
		fmt.Println(separator)
		fmt.Printf("  %-3s  %-12s  %-17s  %-9s  %10s  %7s  %8s  %9s\n",
			"#", "Run ID", "Started", "Status", "Lines", "Errors", "Matched", "Persisted")
		fmt.Println(separator)

		for i, run := range runs {
			fmt.Printf("  %-3d  %-12s  %-17s  %-9s  %10d  %7d  %8d  %9d\n",
				i+1,
				shortRunID(run.ID),
				run.StartedAt.UTC().Format("2006-01-02 15:04"),
				formatStatus(run.Status),
				run.Stats.Lines,
				run.Stats.ParseErrors+run.Stats.PersistErrors,
				run.Stats.Matched,
				run.Stats.Persisted)
			if run.Error != "" {
				fmt.Printf("       error: %s\n", run.Error)
			}
		}

		fmt.Println(separator)
		fmt.Printf("Total: %d run(s)\n\n", len(runs))

		return nil
	},
}

// shortRunID returns the first 8 characters of a UUID followed by "..." for
// compact table display
func shortRunID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

func formatStatus(s models.RunStatus) string {
	if s == "" {
		return "-"
	}
	return string(s)
}

func init() {
	historyCmd.Flags().Int("limit", 10, "Maximum number of runs to display")
	rootCmd.AddCommand(historyCmd)
}
