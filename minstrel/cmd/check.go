package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/minstrel/bootstrap"
)

var checkCmd = &cobra.Command{
	Use:   "check [config]",
	Short: "Validate a configuration file.",
	Long: "`check minstrel.yaml` validates the file. Without an argument, " +
		"the configuration is read from the environment and .env.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			cfg *bootstrap.Config
			err error
		)

		if len(args) == 1 {
			cfg, err = bootstrap.Load(args[0])
		} else {
			cfg, err = bootstrap.FromEnv(".env")
		}

		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "targets: %v\n", cfg.Targets)
		fmt.Fprintf(out, "record: %v %s\n", cfg.Record.Enabled, cfg.Record.Path)
		fmt.Fprintf(out, "monitor: %v %d\n", cfg.Monitor.Enabled, cfg.Monitor.Port)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
