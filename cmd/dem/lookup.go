package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/twpayne/go-dem"
)

func newLookupCommand(a *app) *cobra.Command {
	lookupCmd := &cobra.Command{
		Use:   "lookup DIR LAT LON",
		Short: "Get the altitude at a location from a directory of rasters",
		Long: `Get the altitude at a location from a directory of rasters.

The first raster, in name order, that contains the location is used. NaN is
printed if no raster contains it.

Examples:
  dem lookup --glob 'eu_dem_v11_*.TIF' --input-crs EPSG:4326 /data/eu_dem 45.8326 6.8652`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			latitude, longitude, err := parseLatLon(args[1], args[2])
			if err != nil {
				return err
			}
			glob, _ := cmd.Flags().GetString("glob")

			catalog, err := dem.NewCatalog(slices.Concat(
				[]dem.CatalogOption{
					dem.WithFS(os.DirFS(args[0])),
					dem.WithGlob(glob),
					dem.WithLogger(a.logger),
				},
				a.config.CatalogOptions(),
			)...)
			if err != nil {
				return err
			}
			defer catalog.Close()
			a.logger.Debug().Int("files", len(catalog.Filenames())).Str("dir", args[0]).Msg("catalog")

			var altitude float64
			if interpolate, _ := cmd.Flags().GetBool("interpolate"); interpolate {
				altitude, err = catalog.InterpolatedAltitude(cmd.Context(), latitude, longitude)
			} else {
				altitude, err = catalog.Altitude(cmd.Context(), latitude, longitude)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, formatFloat(altitude))
			return nil
		},
	}
	lookupCmd.Flags().String("glob", "*.tif", "pattern matching raster files in DIR")
	lookupCmd.Flags().Bool("interpolate", false, "interpolate bilinearly")
	return lookupCmd
}
