package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Manage the landing reprocessing queue",
}

var reprocessRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Reset the next batch of queued landings to pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		q := newQueue(db)
		if force, _ := cmd.Flags().GetBool("force"); force {
			q.Enabled = true
		}
		res, err := q.RunBatch(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Processed %d ids across %d certificates, %d left in queue.\n", len(res.Processed), res.Certificates, res.Remaining)
		return nil
	},
}

var reprocessAddCmd = &cobra.Command{
	Use:   "add <id>...",
	Short: "Append catch entry ids to the queue",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// The queue file is plain text; adding needs no database.
		n, err := newQueue(nil).Enqueue(args...)
		if err != nil {
			return err
		}
		fmt.Printf("Queued %d new ids in %s.\n", n, viper.GetString("reprocess.file"))
		return nil
	},
}

var reprocessListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the queued ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := newQueue(nil).List()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reprocessCmd)
	reprocessCmd.AddCommand(reprocessRunCmd)
	reprocessCmd.AddCommand(reprocessAddCmd)
	reprocessCmd.AddCommand(reprocessListCmd)

	reprocessCmd.PersistentFlags().String("file", "", "Queue file (default from reprocess.file)")
	reprocessRunCmd.Flags().Int("limit", 0, "Ids per batch (default from reprocess.limit)")
	reprocessRunCmd.Flags().Bool("force", false, "Run even when reprocess.enabled is false")

	viper.BindPFlag("reprocess.file", reprocessCmd.PersistentFlags().Lookup("file"))
	viper.BindPFlag("reprocess.limit", reprocessRunCmd.Flags().Lookup("limit"))
}
