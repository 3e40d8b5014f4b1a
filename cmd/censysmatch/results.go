package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Print the stored match results",
	Long: `Lists the results of the last run: ip, cloud provider tags, matched zones
and DNS names. With --json every stored document is written as one JSON line,
including the original record fields.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		ctx := cmd.Context()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		results, err := store.ListResults(ctx)
		if err != nil {
			return fmt.Errorf("listing results: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			for _, r := range results {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		}

		if len(results) == 0 {
			fmt.Println("No stored results")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "IP\tAWS\tAzure\tZones\tDomains")
		fmt.Fprintln(w, "--\t---\t-----\t-----\t-------")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				r.IP,
				yesNo(r.AWS),
				yesNo(r.Azure),
				joinOrDash(r.Zones),
				joinOrDash(r.Domains))
		}
		w.Flush()

		fmt.Printf("\nTotal: %d result(s)\n", len(results))
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

func init() {
	resultsCmd.Flags().Bool("json", false, "write results as JSON lines")
	rootCmd.AddCommand(resultsCmd)
}
