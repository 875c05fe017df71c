package dem

import (
	"context"
	"fmt"
	"math"
)

// A ProfilePoint is a sample along a path.
type ProfilePoint struct {
	Coordinate
	Distance float64 // From the start of the path, in coordinate units.
	Altitude float64
}

// Profile samples s along path every step coordinate units. Each segment's
// endpoints are always sampled. If interpolate is true then altitudes are
// interpolated, otherwise the nearest pixel is used.
func Profile(ctx context.Context, s *Sampler, path []Coordinate, step float64, interpolate bool) ([]ProfilePoint, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("%d points: %w", len(path), ErrInvalidPath)
	}
	if !(step > 0) {
		return nil, fmt.Errorf("step %g: %w", step, ErrInvalidPath)
	}

	altitude := s.Altitude
	if interpolate {
		altitude = s.InterpolatedAltitude
	}

	var points []ProfilePoint
	appendPoint := func(coord Coordinate, distance float64) {
		points = append(points, ProfilePoint{
			Coordinate: coord,
			Distance:   distance,
			Altitude:   altitude(ctx, coord.Latitude, coord.Longitude),
		})
	}

	appendPoint(path[0], 0)
	distance := 0.0
	for i := 1; i < len(path); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start, end := path[i-1], path[i]
		dLat, dLon := end.Latitude-start.Latitude, end.Longitude-start.Longitude
		length := math.Hypot(dLat, dLon)
		if length == 0 {
			continue
		}
		for k := 1; float64(k)*step < length; k++ {
			f := float64(k) * step / length
			appendPoint(Coordinate{
				Latitude:  start.Latitude + f*dLat,
				Longitude: start.Longitude + f*dLon,
			}, distance+float64(k)*step)
		}
		distance += length
		appendPoint(end, distance)
	}
	return points, nil
}
