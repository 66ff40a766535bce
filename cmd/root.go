package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facesync/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "facesync",
	Short: "Sync curated Immich faces into a face recognition trainer",
	Long: `facesync reads people and their faces from an Immich instance, picks a
small, varied set of good quality face crops per person and uploads them to
Double Take (or writes them to a training directory). Already synced faces are
remembered, so repeated runs only process new faces.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := mustGetString(cmd, "log-level")
		if level == "" {
			level = os.Getenv("LOG_LEVEL")
		}
		format := mustGetString(cmd, "log-format")
		if format == "" {
			format = os.Getenv("LOG_FORMAT")
		}
		logging.Init(level, format)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (env LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console or json (env LOG_FORMAT)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
