package main

import (
	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/gridcalc/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	configFile string
	logLevel   string
	logFormat  string
	storeKind  string
)

var rootCmd = &cobra.Command{
	Use:           "gridcalc",
	Short:         "gridcalc - a single sheet formula engine",
	Version:       Version,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./gridcalc.yaml or ~/.config/gridcalc/gridcalc.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (env: GRIDCALC_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (env: GRIDCALC_LOG_FORMAT)")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "", "cell store for new tables: map or chunk (env: GRIDCALC_ENGINE_STORE)")

	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the configuration for cmd, letting any flag the
// user set override file and environment values
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}
