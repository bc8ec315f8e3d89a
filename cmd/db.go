package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"text/tabwriter"

	"github.com/fes-tools/landrecon/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the landrecon database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := viper.GetString("db.path")

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		// Print schema first
		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the certificates and landings in the database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "CERTIFICATE STATUS\tCOUNT\t")
		total := 0
		for _, k := range sortedKeys(stats.CertificatesByStatus) {
			fmt.Fprintf(w, "%s\t%d\t\n", k, stats.CertificatesByStatus[k])
			total += stats.CertificatesByStatus[k]
		}
		fmt.Fprintf(w, "TOTAL\t%d\t\n", total)
		fmt.Fprintln(w, " \t \t")

		fmt.Fprintln(w, "LANDING SOURCE\tCOUNT\t")
		for _, k := range sortedKeys(stats.LandingsBySource) {
			fmt.Fprintf(w, "%s\t%d\t\n", k, stats.LandingsBySource[k])
		}
		fmt.Fprintf(w, "TOTAL\t%d\t\n", stats.Landings)
		fmt.Fprintln(w, " \t \t")

		fmt.Fprintf(w, "AUDIT PAYLOADS\t%d\t\n", stats.AuditPayloads)

		w.Flush()

		return nil
	},
}

// importCmd loads certificates exported as a JSON array.
var importCmd = &cobra.Command{
	Use:   "import <certificates.json>",
	Short: "Import catch certificates from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var certs []storage.CatchCertificate
		if err := json.Unmarshal(b, &certs); err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		for _, c := range certs {
			if err := db.SaveCertificate(ctx, c); err != nil {
				return fmt.Errorf("saving %s: %w", c.DocumentNumber, err)
			}
		}
		fmt.Printf("Imported %d certificates.\n", len(certs))
		return nil
	},
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.AddCommand(statsCmd)
	dbCmd.AddCommand(importCmd)
}
