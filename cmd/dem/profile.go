package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twpayne/go-dem"
)

func newProfileCommand(a *app) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile FILE LAT,LON LAT,LON...",
		Short: "Sample altitudes along a path",
		Long: `Sample altitudes along a path, one point per line.

Each line contains the latitude, longitude, distance along the path, and
altitude of a point. Distances are in coordinate units.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := make([]dem.Coordinate, 0, len(args)-1)
			for _, arg := range args[1:] {
				coord, err := parseCoordinate(arg)
				if err != nil {
					return err
				}
				path = append(path, coord)
			}
			step, _ := cmd.Flags().GetFloat64("step")
			interpolate, _ := cmd.Flags().GetBool("interpolate")

			s, err := dem.Open(args[0], a.config.SamplerOptions()...)
			if err != nil {
				a.logger.Error().Err(err).Str("filename", args[0]).Msg("open")
				return err
			}
			defer s.Close()

			points, err := dem.Profile(cmd.Context(), s, path, step, interpolate)
			if err != nil {
				return err
			}
			for _, point := range points {
				fmt.Fprintf(a.stdout, "%s %s %s %s\n",
					formatFloat(point.Latitude),
					formatFloat(point.Longitude),
					formatFloat(point.Distance),
					formatFloat(point.Altitude),
				)
			}
			return nil
		},
	}
	profileCmd.Flags().Float64("step", 0, "distance between points, in coordinate units (required)")
	profileCmd.Flags().Bool("interpolate", false, "interpolate bilinearly")
	_ = profileCmd.MarkFlagRequired("step")
	return profileCmd
}
