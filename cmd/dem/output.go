package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/twpayne/go-dem"
)

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "output GeoTIFF (required)")
	cmd.Flags().Bool("deflate", true, "compress the output")
	cmd.Flags().Int("tile-size", 0, "write tiles of this size instead of strips")
	_ = cmd.MarkFlagRequired("output")
}

// writeOutput writes ds to the GeoTIFF named by the output flag of cmd.
func (a *app) writeOutput(cmd *cobra.Command, ds dem.Dataset) (err error) {
	output, _ := cmd.Flags().GetString("output")
	var options []dem.GeoTIFFWriterOption
	if deflate, _ := cmd.Flags().GetBool("deflate"); deflate {
		options = append(options, dem.WithDeflate(true))
	}
	if tileSize, _ := cmd.Flags().GetInt("tile-size"); tileSize > 0 {
		options = append(options, dem.WithTileSize(tileSize, tileSize))
	}

	file, err := os.Create(output)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, file.Close())
		if err != nil {
			os.Remove(output)
		}
	}()
	if err := dem.WriteGeoTIFF(cmd.Context(), file, ds, options...); err != nil {
		return err
	}

	rows, columns := ds.Size()
	a.logger.Info().Str("filename", output).Int("rows", rows).Int("columns", columns).Msg("write")
	return nil
}
