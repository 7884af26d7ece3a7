package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/api/models"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/config"
)

// CreateRegionsCmd creates the regions command.
func CreateRegionsCmd() *cobra.Command {
	var flags clientFlags
	var preset string

	cmd := &cobra.Command{
		Use:   "regions [file.toml]",
		Short: "Read an attribute of every player inside the given regions",
		Long: `Loads a region query from a TOML file (attribute, timeout and [[regions."<dimension>"]] boxes) ` +
			`or names a server-side preset, and prints one "player<TAB>value" line per player.`,
		Example: "  candy-tools regions spawn.toml\n  candy-tools regions --preset spawn",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := regionRequest(args, preset, flags.timeout.Seconds())
			if err != nil {
				return err
			}

			var result models.RegionData
			if err := newClient(&flags).post("/api/regions", req, &result); err != nil {
				return err
			}
			if !result.Complete {
				return fmt.Errorf("%w: region query incomplete", errNoMatch)
			}
			if flags.match {
				return printJSON(cmd.OutOrStdout(), result.Players)
			}
			for _, name := range slices.Sorted(maps.Keys(result.Players)) {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, result.Players[name]); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&preset, "preset", "", "Use a named preset from the server's presets file")
	cmd.Flags().BoolVar(&flags.match, "match", false, "Print the player map as JSON")
	return cmd
}

// regionRequest builds the request body from a query file or a preset name.
func regionRequest(args []string, preset string, timeout float64) (models.RegionRequestData, error) {
	req := models.RegionRequestData{Preset: preset, Timeout: timeout}
	if len(args) == 0 {
		if preset == "" {
			return req, fmt.Errorf("either a query file or --preset is required")
		}
		return req, nil
	}

	q, err := config.LoadRegionQuery(args[0])
	if err != nil {
		return req, err
	}
	req.Attribute = q.Attribute
	req.Regions = make(map[string][]models.BoxData, len(q.Regions))
	for dim, boxes := range q.Regions {
		for _, b := range boxes {
			req.Regions[dim] = append(req.Regions[dim], models.BoxData{
				X1: b.X1, Y1: b.Y1, Z1: b.Z1,
				X2: b.X2, Y2: b.Y2, Z2: b.Z2,
			})
		}
	}
	if req.Timeout == 0 {
		d, err := q.TimeoutDuration()
		if err != nil {
			return req, err
		}
		req.Timeout = d.Seconds()
	}
	return req, nil
}
