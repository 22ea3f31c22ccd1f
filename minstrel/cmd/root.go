// Package cmd provides the command-line interface for Minstrel.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "minstrel",
	Short: "Minstrel CLI tool can inspect the calls recorded by an " +
		"instrumented program.",
	Long: `Minstrel CLI tool can inspect the calls recorded by an ` +
		`instrumented program. It replays the recorded calls, summarizes ` +
		`them per operation, and checks configuration files.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
