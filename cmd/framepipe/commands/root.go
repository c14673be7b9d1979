// Package commands implements the CLI commands for framepipe.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "framepipe",
	Short: "Asynchronous deduplicated frame writer",
	Long: `framepipe streams fixed-size frames to one or more destinations through
an asynchronous, deduplicated write-behind engine. Submissions return
immediately; a dedicated worker per destination delivers the queued frames
in order, and a frame that is still in flight is never queued twice for the
same destination.

Use "framepipe [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// GetConfigFile returns the config file path from the --config flag.
func GetConfigFile() string {
	return configFile
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (default: $XDG_CONFIG_HOME/framepipe/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(pipeCmd)
	rootCmd.AddCommand(benchCmd)
}
