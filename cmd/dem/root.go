package main

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/twpayne/go-dem/internal/logger"
)

// An app holds the state shared by all commands.
type app struct {
	stdout io.Writer
	stderr io.Writer
	config Config
	logger zerolog.Logger
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		stdout: stdout,
		stderr: stderr,
	}

	rootCmd := &cobra.Command{
		Use:   "dem",
		Short: "Sample elevations from Digital Elevation Model rasters",
		Long: `dem reads GeoTIFF Digital Elevation Model rasters and samples elevations.

Configuration can be set with flags or with DEM_* environment variables.
Flags take precedence.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.config = LoadConfig(cmd)
			a.logger = logger.Build(logger.Config{
				Level:     a.config.LogLevel,
				Console:   a.config.LogFormat != "json",
				Component: cmd.Name(),
			}, a.stderr)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if metrics, _ := cmd.Flags().GetBool("metrics"); metrics {
				return writeMetrics(a.stderr, prometheus.DefaultGatherer)
			}
			return nil
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	persistentFlags := rootCmd.PersistentFlags()
	persistentFlags.Int("band", 1, "raster band, counted from 1")
	persistentFlags.Float64("nodata-fallback", 0, "no-data value when the raster declares none or declares 0")
	persistentFlags.String("input-crs", "", "coordinate reference system of query coordinates, e.g. EPSG:4326")
	persistentFlags.String("log-level", "info", "log level (debug, info, warn, error)")
	persistentFlags.String("log-format", "console", "log format (console, json)")
	persistentFlags.Int("cache-size", 32, "number of open files in a catalog")
	persistentFlags.Bool("metrics", false, "write metrics to stderr on exit")

	rootCmd.AddCommand(
		newInfoCommand(a),
		newAltitudeCommand(a),
		newProfileCommand(a),
		newCoverageCommand(a),
		newLookupCommand(a),
		newClipCommand(a),
		newMergeCommand(a),
	)

	return rootCmd
}

// writeMetrics writes the metrics gathered by gatherer to w in the
// Prometheus text format.
func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	metricFamilies, err := gatherer.Gather()
	if err != nil {
		return err
	}
	for _, metricFamily := range metricFamilies {
		if _, err := expfmt.MetricFamilyToText(w, metricFamily); err != nil {
			return err
		}
	}
	return nil
}
