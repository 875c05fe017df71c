package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twpayne/go-dem"
)

func newAltitudeCommand(a *app) *cobra.Command {
	altitudeCmd := &cobra.Command{
		Use:   "altitude FILE LAT LON",
		Short: "Get the altitude at a location",
		Long: `Get the altitude at a location.

Examples:
  dem altitude srtm.tif 45.8326 6.8652
  dem altitude --interpolate --input-crs EPSG:4326 eu_dem_v11_E40N20.TIF 45.8326 6.8652`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			latitude, longitude, err := parseLatLon(args[1], args[2])
			if err != nil {
				return err
			}

			s, err := dem.Open(args[0], a.config.SamplerOptions()...)
			if err != nil {
				a.logger.Error().Err(err).Str("filename", args[0]).Msg("open")
				return err
			}
			defer s.Close()
			a.logger.Debug().Str("filename", args[0]).Msg("open")

			var altitude float64
			if interpolate, _ := cmd.Flags().GetBool("interpolate"); interpolate {
				altitude = s.InterpolatedAltitude(cmd.Context(), latitude, longitude)
			} else {
				altitude = s.Altitude(cmd.Context(), latitude, longitude)
			}
			if altitude == s.NoData() {
				a.logger.Warn().Float64("latitude", latitude).Float64("longitude", longitude).Msg("no data")
			}
			fmt.Fprintln(a.stdout, formatFloat(altitude))
			return nil
		},
	}
	altitudeCmd.Flags().Bool("interpolate", false, "interpolate bilinearly")
	return altitudeCmd
}
