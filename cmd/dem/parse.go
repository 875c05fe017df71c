package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/twpayne/go-dem"
)

// parseFloats parses n comma-separated floats from s.
func parseFloats(s string, n int) ([]float64, error) {
	fields := strings.Split(s, ",")
	if len(fields) != n {
		return nil, fmt.Errorf("%s: expected %d comma-separated values", s, n)
	}
	values := make([]float64, n)
	for i, field := range fields {
		value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, err
		}
		values[i] = value
	}
	return values, nil
}

// parseLatLon parses a coordinate from separate latitude and longitude
// arguments.
func parseLatLon(latitudeArg, longitudeArg string) (float64, float64, error) {
	latitude, err := strconv.ParseFloat(latitudeArg, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	longitude, err := strconv.ParseFloat(longitudeArg, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	return latitude, longitude, nil
}

// parseCoordinate parses a coordinate of the form LAT,LON.
func parseCoordinate(s string) (dem.Coordinate, error) {
	values, err := parseFloats(s, 2)
	if err != nil {
		return dem.Coordinate{}, err
	}
	return dem.Coordinate{Latitude: values[0], Longitude: values[1]}, nil
}

// parseBBox parses a bounding box of the form SOUTH,WEST,NORTH,EAST.
func parseBBox(s string) (dem.Bounds, error) {
	values, err := parseFloats(s, 4)
	if err != nil {
		return dem.Bounds{}, err
	}
	south, west, north, east := values[0], values[1], values[2], values[3]
	if south >= north || west >= east {
		return dem.Bounds{}, fmt.Errorf("%s: empty bounding box", s)
	}
	return dem.NewBounds(south, west, north, east), nil
}

// openGeoTIFF opens the GeoTIFF at path.
func openGeoTIFF(path string) (*dem.GeoTIFF, error) {
	return dem.OpenGeoTIFF(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
