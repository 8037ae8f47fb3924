// Package cmd implements the oracle CLI's subcommands. Grounded on the
// teacher's cmd/template-validator/cmd package split: a root command
// with global flags, one file per subcommand.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Mirror Dissonance governance Oracle",
	Long: `oracle evaluates a change event's governance state against the
registered rule set and emits a machine-readable decision.

Examples:
  # Evaluate a single change event read from a file
  oracle analyze --input event.json

  # Evaluate a change event piped in on stdin
  cat event.json | oracle analyze

  # Run as a long-lived HTTP service exposing /analyze and /metrics
  oracle serve --config config.yaml

  # Recompute consensus false-positive rates for every registered rule
  oracle calibrate`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(versionCmd)
}

var (
	version = "dev"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("oracle version %s (%s)\n", version, commit)
	},
}

// SetVersion is called from main to record build-time version metadata.
func SetVersion(v, c string) {
	version = v
	commit = c
}
