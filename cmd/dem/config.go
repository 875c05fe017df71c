package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/twpayne/go-dem"
)

// Config holds the command's configuration.
type Config struct {
	Band              int
	NoDataFallback    float64
	HasNoDataFallback bool
	InputCRS          string
	LogLevel          string
	LogFormat         string
	CacheSize         int
}

// LoadConfig loads configuration from command flags and environment
// variables. Flags take precedence over environment variables.
func LoadConfig(cmd *cobra.Command) Config {
	cfg := Config{}
	cfg.Band = getConfigInt(cmd, "band", "DEM_BAND", 1)
	cfg.NoDataFallback, cfg.HasNoDataFallback = getConfigOptionalFloat(cmd, "nodata-fallback", "DEM_NODATA_FALLBACK")
	cfg.InputCRS = getConfigString(cmd, "input-crs", "DEM_INPUT_CRS", "")
	cfg.LogLevel = getConfigString(cmd, "log-level", "DEM_LOG_LEVEL", "info")
	cfg.LogFormat = getConfigString(cmd, "log-format", "DEM_LOG_FORMAT", "console")
	cfg.CacheSize = getConfigInt(cmd, "cache-size", "DEM_CACHE_SIZE", 32)
	return cfg
}

// SamplerOptions returns the options for opening a single file.
func (c *Config) SamplerOptions() []dem.SamplerOption {
	options := c.catalogSamplerOptions()
	if c.InputCRS != "" {
		options = append(options, dem.WithInputCRS(c.InputCRS))
	}
	return options
}

// CatalogOptions returns the options for a catalog.
func (c *Config) CatalogOptions() []dem.CatalogOption {
	options := []dem.CatalogOption{
		dem.WithCacheSize(c.CacheSize),
		dem.WithSamplerOptions(c.catalogSamplerOptions()...),
	}
	if c.InputCRS != "" {
		options = append(options, dem.WithCatalogInputCRS(c.InputCRS))
	}
	return options
}

func (c *Config) catalogSamplerOptions() []dem.SamplerOption {
	options := []dem.SamplerOption{
		dem.WithBand(c.Band),
	}
	if c.HasNoDataFallback {
		options = append(options, dem.WithNoDataFallback(c.NoDataFallback))
	}
	return options
}

// getConfigString gets a string value from flag, then env, then default.
func getConfigString(cmd *cobra.Command, flagName, envName, defaultValue string) string {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetString(flagName)
		return val
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return defaultValue
}

// getConfigInt gets an int value from flag, then env, then default.
func getConfigInt(cmd *cobra.Command, flagName, envName string, defaultValue int) int {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetInt(flagName)
		return val
	}
	if v := os.Getenv(envName); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// getConfigOptionalFloat gets a float64 value from flag, then env. It
// returns false if neither is set.
func getConfigOptionalFloat(cmd *cobra.Command, flagName, envName string) (float64, bool) {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetFloat64(flagName)
		return val, true
	}
	if v := os.Getenv(envName); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
