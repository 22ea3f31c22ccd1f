package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/minstrel/datarecording"
)

var statsCmd = &cobra.Command{
	Use:   "stats [database]",
	Short: "Summarize the recorded calls per operation.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		summaries, err := reader.Summaries(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "OPERATION\tCALLS\tFAILED\tAVG\tMAX")

		for _, s := range summaries {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
				s.Name(), s.Count, s.Failed,
				time.Duration(s.AvgNs), time.Duration(s.MaxNs))
		}

		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
