package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/fes-tools/landrecon/pkg/refdata"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Load and query the reference data",
}

// loadedCache builds a cache and fills it from the configured source.
func loadedCache(ctx context.Context) (*refdata.Cache, *refdata.Loader, error) {
	cache := refdata.NewCache(utils.Log.WithField("component", "cache"))
	loader, err := newLoader(cache)
	if err != nil {
		return nil, nil, err
	}
	if err := loader.LoadAll(ctx); err != nil {
		return nil, nil, err
	}
	return cache, loader, nil
}

var cacheLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load every reference dataset and print what was loaded",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, _, err := loadedCache(context.Background())
		if err != nil {
			return err
		}
		snap := cache.Snapshot()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "DATASET\tROWS\t")
		fmt.Fprintf(w, "%s\t%d\t\n", refdata.DatasetVessels, len(snap.Vessels))
		fmt.Fprintf(w, "%s\t%d\t\n", refdata.DatasetSpecies, len(snap.Species))
		fmt.Fprintf(w, "%s\t%d\t\n", refdata.DatasetSpeciesAliases, len(snap.SpeciesAliases))
		fmt.Fprintf(w, "%s\t%d\t\n", refdata.DatasetConversionFactors, len(snap.ConversionFactors))
		fmt.Fprintf(w, "%s\t%d\t\n", refdata.DatasetVesselsOfInterest, len(snap.VesselsOfInterest))
		fmt.Fprintf(w, "%s\t%d\t\n", refdata.DatasetExporterBehaviour, len(snap.ExporterBehaviour))
		fmt.Fprintf(w, "%s\t%t\t\n", refdata.DatasetSpeciesToggle, snap.SpeciesRiskEnabled)
		w.Flush()
		return nil
	},
}

var cacheRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload the frequently edited datasets (weighting, species toggle, vessels of interest)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache := refdata.NewCache(utils.Log.WithField("component", "cache"))
		loader, err := newLoader(cache)
		if err != nil {
			return err
		}
		loader.Refresh(context.Background())
		return printJSON(cache.Weighting())
	},
}

var cacheVesselCmd = &cobra.Command{
	Use:   "vessel <pln> <YYYY-MM-DD>",
	Short: "Look up the vessel licensed under a PLN on a day",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := utils.ParseDay(args[1])
		if err != nil {
			return err
		}
		cache, _, err := loadedCache(context.Background())
		if err != nil {
			return err
		}
		v, ok := cache.LookupVessel(args[0], day)
		if !ok {
			return fmt.Errorf("no vessel licensed as %s on %s", args[0], utils.FormatDay(day))
		}
		return printJSON(v)
	},
}

var cacheRiskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Compute the risk score of an exporter, vessel and species combination",
	RunE: func(cmd *cobra.Command, args []string) error {
		var in refdata.RiskInput
		in.ExporterAccountID, _ = cmd.Flags().GetString("account")
		in.ExporterContactID, _ = cmd.Flags().GetString("contact")
		in.PLN, _ = cmd.Flags().GetString("pln")
		in.Species, _ = cmd.Flags().GetString("species")
		in.State, _ = cmd.Flags().GetString("state")
		in.Presentation, _ = cmd.Flags().GetString("presentation")

		cache, _, err := loadedCache(context.Background())
		if err != nil {
			return err
		}
		return printJSON(cache.RiskScore(in))
	},
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheLoadCmd)
	cacheCmd.AddCommand(cacheRefreshCmd)
	cacheCmd.AddCommand(cacheVesselCmd)
	cacheCmd.AddCommand(cacheRiskCmd)

	cacheRiskCmd.Flags().String("account", "", "Exporter account id")
	cacheRiskCmd.Flags().String("contact", "", "Exporter contact id")
	cacheRiskCmd.Flags().String("pln", "", "Vessel PLN")
	cacheRiskCmd.Flags().String("species", "", "Species code (FAO)")
	cacheRiskCmd.Flags().String("state", "", "Species state")
	cacheRiskCmd.Flags().String("presentation", "", "Species presentation")
}
