package main

import (
	"github.com/spf13/cobra"

	"github.com/twpayne/go-dem"
)

func newMergeCommand(a *app) *cobra.Command {
	mergeCmd := &cobra.Command{
		Use:   "merge --output OUT FILE...",
		Short: "Merge aligned rasters into one",
		Long: `Merge aligned rasters into one GeoTIFF. Where rasters overlap, each pixel is
the median of the valid samples.

Example:
  dem merge --nodata -9999 --output merged.tif a.tif b.tif c.tif`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			datasets := make([]dem.Dataset, 0, len(args))
			defer func() {
				for _, ds := range datasets {
					ds.Close()
				}
			}()
			for _, path := range args {
				g, err := openGeoTIFF(path)
				if err != nil {
					a.logger.Error().Err(err).Str("filename", path).Msg("open")
					return err
				}
				datasets = append(datasets, g)
			}

			noData, _ := cmd.Flags().GetFloat64("nodata")
			merged, err := dem.Merge(cmd.Context(), datasets, a.config.Band, noData)
			if err != nil {
				return err
			}
			return a.writeOutput(cmd, merged)
		},
	}
	mergeCmd.Flags().Float64("nodata", -9999, "no-data value of the output")
	addOutputFlags(mergeCmd)
	return mergeCmd
}
