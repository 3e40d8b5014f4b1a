package main

import (
	"context"

	"github.com/hakim/censysmatch/internal/classify"
	"github.com/hakim/censysmatch/internal/guard"
	"github.com/hakim/censysmatch/internal/pipeline"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify the current dataset (default command)",
	Long: `Checks the preconditions, loads zones, organizations and CIDR lists from the
store, clears the previous results and scans the dataset named in the pointer
file. The job record is set to COMPLETE only when the whole file was read.

A missing or unreadable dataset is logged and recorded as a failed run; the
process still exits with status 0 so the next scheduled invocation retries.`,
	Args: cobra.NoArgs,
	RunE: runJob,
}

func runJob(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Step 1: Guard settings from config
	settings := guardSettings()

	// Step 2: Run the pipeline. The store is opened only after the process
	// checks, so a second instance skips instead of waiting on the lock.
	_, err := pipeline.Run(ctx, pipeline.RunConfig{
		Guard:         settings,
		PointerFile:   cfg.Job.PointerFile,
		ProgressEvery: cfg.ProgressEvery,
		Notify:        &pipeline.NotifyConfig{WebhookURL: cfg.Notify.WebhookURL},
	}, guard.NewSystemProcesses(), func(ctx context.Context) (pipeline.StoreInterface, error) {
		store, err := openStore(ctx)
		if err != nil {
			return nil, err
		}
		return store, nil
	}, log)

	// Step 3: File-level failures exit 0 so the next invocation retries
	if err != nil {
		log.WithError(err).Error("Run failed")
		if classify.IsFileError(err) {
			return nil
		}
		return err
	}
	return nil
}

// guardSettings maps the loaded config onto the run preconditions
func guardSettings() guard.Settings {
	return guard.Settings{
		JobName:         cfg.Job.Name,
		DownloadProcess: cfg.Guard.DownloadProcess,
		SelfProcess:     cfg.Guard.SelfProcess,
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
