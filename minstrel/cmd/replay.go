package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/minstrel/datarecording"
	"github.com/sarchlab/minstrel/event"
)

var replayCmd = &cobra.Command{
	Use:   "replay [database]",
	Short: "Print the recorded calls in the order they started.",
	Long: "`replay calls.sqlite3 --target Calculator#add` prints the " +
		"recorded calls, indented by call depth.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := replayParams(cmd)
		if err != nil {
			return err
		}

		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		calls, total, err := reader.ListCalls(cmd.Context(), params)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, c := range calls {
			printCall(out, c)
		}

		if len(calls) < total {
			fmt.Fprintf(out, "... %d of %d calls shown\n", len(calls), total)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().String("target", "",
		"Only show the calls of a type or a Type#op")
	replayCmd.Flags().Bool("failed", false, "Only show failed calls")
	replayCmd.Flags().Int("limit", 0, "Maximum number of calls to show")
	replayCmd.Flags().Int("offset", 0, "Number of calls to skip")
}

func replayParams(cmd *cobra.Command) (datarecording.QueryParams, error) {
	params := datarecording.QueryParams{}

	target, _ := cmd.Flags().GetString("target")
	if target != "" {
		f, err := event.ParseTarget(target)
		if err != nil {
			return params, err
		}

		params.Target = f.Target
		params.Operation = f.Operation
	}

	params.FailedOnly, _ = cmd.Flags().GetBool("failed")
	params.Limit, _ = cmd.Flags().GetInt("limit")
	params.Offset, _ = cmd.Flags().GetInt("offset")

	return params, nil
}

func printCall(w io.Writer, c datarecording.CallRecord) {
	indent := c.Depth - 1
	if indent < 0 {
		indent = 0
	}

	line := fmt.Sprintf("%s%s (%d args) %s",
		strings.Repeat("  ", indent), c.Name(), c.NumArgs,
		time.Duration(c.DurationNs))

	if c.Failed {
		line += " !" + c.Error
	}

	fmt.Fprintln(w, line)
}
