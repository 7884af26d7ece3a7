package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/api/models"
)

// CreateCarpetCmd creates the carpet command.
func CreateCarpetCmd() *cobra.Command {
	var flags clientFlags
	var reprobe bool

	cmd := &cobra.Command{
		Use:   "carpet",
		Short: "Report whether the carpet mod is loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var result models.CarpetData
			err := newClient(&flags).get("/api/carpet", map[string]string{
				"reprobe": strconv.FormatBool(reprobe),
			}, &result)
			if err != nil {
				return err
			}
			source := "probe"
			if result.Cached {
				source = "cached"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "carpet: %t (%s)\n", result.Present, source)
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&reprobe, "reprobe", false, "Ignore the cached answer and probe again")
	return cmd
}
