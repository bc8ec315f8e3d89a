package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "landrecon",
	Short: "Reconciles catch certificates against upstream landing data.",
	Long: `landrecon keeps catch certificate records in step with the landing declarations,
electronic logs and catch app submissions reported for each vessel.

It maintains the reference data snapshot (vessels, species, conversion factors,
risk weighting), finds the landings still missing for pending catch entries,
fetches them, and flags entries that ran past their retrospective window.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.landrecon.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default: landrecon.sqlite in CWD)")
	rootCmd.PersistentFlags().Bool("dev", false, "Read reference data from local files instead of the object store")

	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
	viper.BindPFlag("dev", rootCmd.PersistentFlags().Lookup("dev"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".landrecon")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("landrecon")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.landrecon.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

func setDefaults() {
	viper.SetDefault("dev", false)
	viper.SetDefault("refdata.dir", "./data")

	viper.SetDefault("blob.endpoint", "")
	viper.SetDefault("blob.access_key", "")
	viper.SetDefault("blob.secret_key", "")
	viper.SetDefault("blob.bucket", "reference-data")
	viper.SetDefault("blob.ssl", true)

	viper.SetDefault("placeholder.enabled", false)
	viper.SetDefault("placeholder.name", "Vessel not found")
	viper.SetDefault("placeholder.pln", "N/A")

	viper.SetDefault("reprocess.enabled", false)
	viper.SetDefault("reprocess.limit", 100)
	viper.SetDefault("reprocess.file", "reprocess-landings.txt")

	viper.SetDefault("resubmission.enabled", false)
	viper.SetDefault("trade.url", "")

	viper.SetDefault("landingdata.url", "")
	viper.SetDefault("landingdata.token", "")
	viper.SetDefault("catchactivity.url", "")
	viper.SetDefault("catchactivity.token", "")
	viper.SetDefault("consolidation.url", "")

	viper.SetDefault("audit.sink", "db")
	viper.SetDefault("db.path", "landrecon.sqlite")

	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
}
