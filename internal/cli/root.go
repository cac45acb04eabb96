// Package cli implements the ifcview command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// Set by Execute from build flags.
var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "ifcview",
	Short: "IFC model viewer backend",
	Long: `Serves viewer sessions over HTTP: model loading, requirement-driven
classification, selection, view modes and snapshots.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	// Without a subcommand the server starts, so the binary can be launched
	// directly.
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to the XML config (default: next to the executable)")
}

// Execute runs the command line.
func Execute(v, built string) error {
	version = v
	buildTime = built
	rootCmd.SetOut(os.Stdout)
	return rootCmd.Execute()
}
