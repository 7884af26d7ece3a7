package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/api/models"
)

// CreateStatusCmd creates the status command.
func CreateStatusCmd() *cobra.Command {
	var flags clientFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show bridge epoch, pending waits, server state and carpet status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var status models.StatusData
			if err := newClient(&flags).get("/api/status", nil, &status); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), status)
			}
			return printStatus(cmd.OutOrStdout(), status)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

func printStatus(w io.Writer, s models.StatusData) error {
	carpet := "unknown"
	if s.Carpet.Known {
		carpet = fmt.Sprintf("%t", s.Carpet.Present)
	}
	if _, err := fmt.Fprintf(w, "epoch:   %d (running=%t)\npending: %d\ncarpet:  %s\n",
		s.Epoch, s.Running, s.Pending, carpet); err != nil {
		return err
	}
	if s.Server == nil {
		return nil
	}
	_, err := fmt.Fprintf(w, "server:  %s pid=%d restarts=%d\n", s.Server.State, s.Server.PID, s.Server.RestartCount)
	if err == nil && s.Server.LastError != "" {
		_, err = fmt.Fprintf(w, "error:   %s\n", s.Server.LastError)
	}
	return err
}
