package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/fes-tools/landrecon/pkg/landings"
	"github.com/fes-tools/landrecon/pkg/storage"
	"github.com/spf13/cobra"
)

// resolverInputs loads the reference data and the complete certificates.
func resolverInputs(ctx context.Context) (*landings.Resolver, []storage.CatchCertificate, error) {
	cache, _, err := loadedCache(ctx)
	if err != nil {
		return nil, nil, err
	}
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	certs, err := db.GetCatchCertificates(ctx, storage.CertificateFilter{Statuses: []string{storage.DocumentComplete}})
	if err != nil {
		return nil, nil, err
	}
	return &landings.Resolver{Vessels: cache, Log: utils.Log.WithField("component", "resolver")}, certs, nil
}

var missingCmd = &cobra.Command{
	Use:   "missing",
	Short: "List the landings still missing for pending catch entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, certs, err := resolverInputs(context.Background())
		if err != nil {
			return err
		}
		queries := resolver.ComputeMissing(certs, time.Now())
		if len(queries) == 0 {
			fmt.Println("No missing landings.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "RSS\tDATE LANDED\t")
		for _, q := range queries {
			fmt.Fprintf(w, "%s\t%s\t\n", q.RssNumber, q.DateLanded)
		}
		w.Flush()
		return nil
	},
}

var exceedingCmd = &cobra.Command{
	Use:   "exceeding",
	Short: "List the pending catch entries whose retrospective window has closed",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, certs, err := resolverInputs(context.Background())
		if err != nil {
			return err
		}
		rows := resolver.ComputeExceeding(certs, time.Now())
		if len(rows) == 0 {
			fmt.Println("No catch entries past the 14 day limit.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "DOCUMENT\tENTRY\tPLN\tRSS\tDATE LANDED\tSTATUS\t")
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", r.DocumentNumber, r.EntryID, r.PLN, r.RssNumber, r.DateLanded, r.Status)
		}
		w.Flush()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(missingCmd)
	rootCmd.AddCommand(exceedingCmd)
}
