package main

import (
	"github.com/spf13/cobra"

	"github.com/twpayne/go-dem"
)

func newClipCommand(a *app) *cobra.Command {
	clipCmd := &cobra.Command{
		Use:   "clip --bbox S,W,N,E --output OUT FILE",
		Short: "Write the pixels of a raster that intersect a bounding box",
		Long: `Write the pixels of a raster that intersect a bounding box to a new GeoTIFF.

Example:
  dem clip --bbox 45.5,6.5,46,7 --output mont-blanc.tif eu_dem_v11_E40N20.TIF`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bbox, _ := cmd.Flags().GetString("bbox")
			bounds, err := parseBBox(bbox)
			if err != nil {
				return err
			}

			g, err := openGeoTIFF(args[0])
			if err != nil {
				a.logger.Error().Err(err).Str("filename", args[0]).Msg("open")
				return err
			}
			defer g.Close()

			clipped, err := dem.Clip(cmd.Context(), g, a.config.Band, bounds)
			if err != nil {
				return err
			}
			return a.writeOutput(cmd, clipped)
		},
	}
	clipCmd.Flags().String("bbox", "", "bounding box as SOUTH,WEST,NORTH,EAST (required)")
	addOutputFlags(clipCmd)
	_ = clipCmd.MarkFlagRequired("bbox")
	return clipCmd
}
