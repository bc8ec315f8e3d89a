package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/spf13/cobra"
)

// runCmd runs one full reconciliation cycle and exits.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reconciliation cycle",
	Long: `Loads the reference data, then runs every phase of a cycle in order:
reference refresh, status reset, landing reconciliation, 14 day check,
reprocessing batch and resubmission. A failing phase does not stop the others.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		if err := a.loader.LoadAll(ctx); err != nil {
			return fmt.Errorf("loading reference data: %w", err)
		}

		res := a.engine.RunCycle(ctx)
		a.engine.Wait()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "PHASE\tRESULT\t")
		fmt.Fprintf(w, "statusReset\t%d entries\t\n", res.Reset)
		if r := res.Reconciliation; r != nil {
			fmt.Fprintf(w, "reconciliation\t%d queries, %d new landings, %d ignored, %d landed\t\n", len(r.Queries), len(r.Landings), r.Ignored, r.Landed)
		}
		fmt.Fprintf(w, "exceeding\t%d entries\t\n", res.Exceeding)
		if r := res.Reprocessed; r != nil {
			fmt.Fprintf(w, "reprocessing\t%d ids, %d certificates, %d remaining\t\n", len(r.Processed), r.Certificates, r.Remaining)
		}
		fmt.Fprintf(w, "resubmission\t%d certificates\t\n", res.Resubmitted)
		w.Flush()

		if len(res.Failed) > 0 {
			utils.Log.Warnf("Failed phases: %v", res.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
