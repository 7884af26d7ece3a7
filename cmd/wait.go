package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/api/models"
)

// CreateExecCmd creates the exec command.
func CreateExecCmd() *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:   "exec <command> <pattern>",
		Short: "Send a console command and wait for a matching line",
		Long: `Sends a console command to the managed server and prints the first output line ` +
			`matching the pattern. Exits non-zero when the wait times out.`,
		Example: `  candy-tools exec list '^There are (\d+) of a max of (\d+) players online:(.*)$' --match`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result models.WaitResultData
			err := newClient(&flags).post("/api/execute", models.ExecuteRequestData{
				Command: args[0],
				Pattern: args[1],
				Timeout: flags.timeout.Seconds(),
			}, &result)
			if err != nil {
				return err
			}
			return printWaitResult(cmd, &flags, result)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.match, "match", false, "Print capture groups as JSON instead of the line")
	return cmd
}

// CreateListenCmd creates the listen command.
func CreateListenCmd() *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:     "listen <pattern>",
		Short:   "Wait for a matching server line without sending anything",
		Example: `  candy-tools listen '^(?<player>\w+) joined the game$' --timeout 2m --match`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result models.WaitResultData
			err := newClient(&flags).post("/api/listen", models.ListenRequestData{
				Pattern: args[0],
				Timeout: flags.timeout.Seconds(),
			}, &result)
			if err != nil {
				return err
			}
			return printWaitResult(cmd, &flags, result)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.match, "match", false, "Print capture groups as JSON instead of the line")
	return cmd
}

func printWaitResult(cmd *cobra.Command, flags *clientFlags, result models.WaitResultData) error {
	if !result.Matched || result.Match == nil {
		return fmt.Errorf("%w: %s", errNoMatch, result.Outcome)
	}
	if flags.match {
		return printJSON(cmd.OutOrStdout(), result.Match)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), result.Match.Line)
	return err
}
