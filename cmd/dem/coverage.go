package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/twpayne/go-dem"
)

func newCoverageCommand(a *app) *cobra.Command {
	coverageCmd := &cobra.Command{
		Use:   "coverage --bbox S,W,N,E FILE...",
		Short: "List the rasters that intersect a bounding box",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bbox, _ := cmd.Flags().GetString("bbox")
			bounds, err := parseBBox(bbox)
			if err != nil {
				return err
			}
			for _, path := range args {
				covered, err := dem.Coverage(os.DirFS(filepath.Dir(path)), []string{filepath.Base(path)}, bounds)
				if err != nil {
					return err
				}
				if len(covered) > 0 {
					fmt.Fprintln(a.stdout, path)
				} else {
					a.logger.Debug().Str("filename", path).Msg("not covered")
				}
			}
			return nil
		},
	}
	coverageCmd.Flags().String("bbox", "", "bounding box as SOUTH,WEST,NORTH,EAST (required)")
	_ = coverageCmd.MarkFlagRequired("bbox")
	return coverageCmd
}
