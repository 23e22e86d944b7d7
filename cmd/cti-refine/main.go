// Command cti-refine extracts and normalizes threat indicators found in
// text, CSV columns, HTTP requests and NATS messages.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/swarmguard/cti-refine/core/logging"
	"github.com/swarmguard/cti-refine/internal/config"
)

const appName = "cti-refine"

var (
	version = "0.1.0"

	configPath string
	logLevel   string
	jsonLog    bool
	noColor    bool

	cfg *config.Config

	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow)
	colorCyan   = color.New(color.FgCyan)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Extract and normalize CTI indicators (URLs, IPs, hashes, wallets, handles)",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if cmd.Flags().Changed("json-log") {
				cfg.Log.JSON = jsonLog
			}
			if noColor {
				color.NoColor = true
			}
			logging.Init(appName, logging.Options{JSON: cfg.Log.JSON, Level: cfg.Log.Level})
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ./cti-refine.yaml or /etc/cti-refine/cti-refine.yaml)")
	pf.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.BoolVar(&jsonLog, "json-log", false, "emit JSON logs on stderr")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newRunCmd(),
		newScanCmd(),
		newColumnCmd(),
		newOpsCmd(),
		newServeCmd(),
		newWatchCmd(),
	)
	return root
}
