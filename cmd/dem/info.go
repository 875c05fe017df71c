package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twpayne/go-dem"
)

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE...",
		Short: "Describe rasters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for i, path := range args {
				ds, err := openGeoTIFF(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				a.logger.Debug().Str("filename", path).Msg("open")
				description, err := dem.Describe(ds)
				_ = ds.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if i > 0 {
					fmt.Fprintln(a.stdout)
				}
				fmt.Fprintf(a.stdout, "%s:\n%s", path, description)
			}
			return nil
		},
	}
}
