package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hakim/censysmatch/internal/classify"
	"github.com/hakim/censysmatch/internal/guard"
	"github.com/hakim/censysmatch/internal/storage"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether a run would start now",
	Long: `Evaluates every run precondition without classifying anything: the
download process, another classifier instance, the job status and the
pointer file. Exits non-zero when a run would not start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Step 1: Process conditions, evaluated before touching the store
		g := guard.New(guard.NewSystemProcesses(), guardSettings())
		conds := g.InspectProcesses(ctx)

		// Step 2: Job status, unless another instance holds the store
		store, err := openStore(ctx)
		switch {
		case errors.Is(err, storage.ErrStoreBusy):
			conds = append(conds, guard.Condition{Name: "job status", Detail: "store is held by another instance"})
		case err != nil:
			return err
		default:
			defer store.Close()
			conds = append(conds, g.InspectJob(ctx, store))
		}

		// Step 3: Pointer file and dataset
		pointer := guard.Condition{Name: "pointer file"}
		if dataset, err := classify.ReadPointerFile(cfg.Job.PointerFile); err != nil {
			pointer.Detail = err.Error()
		} else if _, err := os.Stat(dataset); err != nil {
			pointer.Detail = err.Error()
		} else {
			pointer.OK = true
			pointer.Detail = dataset
		}
		conds = append(conds, pointer)

		// Step 4: Render the table
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Condition\tStatus\tDetail")
		fmt.Fprintln(w, "---------\t------\t------")

		blocked := 0
		for _, c := range conds {
			status := "[+]"
			detail := c.Detail
			if c.Err != nil {
				status = "[!]"
				detail = c.Err.Error()
				blocked++
			} else if !c.OK {
				status = "[-]"
				blocked++
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, status, detail)
		}
		w.Flush()

		fmt.Println()
		if blocked > 0 {
			fmt.Printf("Summary: %d/%d conditions not met, a run would be skipped\n", blocked, len(conds))
			return fmt.Errorf("preconditions not met")
		}
		fmt.Printf("Summary: all %d conditions met\n", len(conds))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
