package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fes-tools/landrecon/internal/server"
	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job trigger server",
	Long: `Loads the reference data and serves the job triggers used by the scheduler:

  POST /jobs/landings       run one reconciliation cycle
  POST /jobs/reprocess      run one reprocessing batch
  POST /reference/refresh   reload weighting, species toggle and vessels of interest
  POST /reference/reload    reload every reference dataset
  GET  /reference/vessels   look up a vessel (?pln=&date=)
  GET  /api/stats           database statistics`,
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

		s := &server.Server{
			Engine:    a.engine,
			Queue:     a.queue,
			Reference: a.loader,
			Vessels:   a.cache,
			DB:        a.db,
			Username:  viper.GetString("server.username"),
			Password:  viper.GetString("server.password"),
			Log:       utils.Log.WithField("component", "server"),
		}

		if interval, _ := cmd.Flags().GetInt("refresh-interval"); interval > 0 {
			go s.StartRefresher(ctx, time.Duration(interval)*time.Minute)
		}

		listenAddr, _ := cmd.Flags().GetString("listen")
		return s.Start(listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("refresh-interval", 30, "Minutes between reference refreshes (0 to disable)")
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
}
