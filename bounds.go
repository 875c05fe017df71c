package dem

import "fmt"

// A Coordinate is a latitude and longitude, or a northing and easting for
// projected rasters.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// NewCoordinate returns a new Coordinate, checking that it is a valid
// geographic coordinate.
func NewCoordinate(latitude, longitude float64) (Coordinate, error) {
	if latitude < -90 || 90 < latitude || longitude < -180 || 180 < longitude {
		return Coordinate{}, fmt.Errorf("(%f:%f): %w", latitude, longitude, ErrInvalidCoordinate)
	}
	return Coordinate{
		Latitude:  latitude,
		Longitude: longitude,
	}, nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%g, %g)", c.Latitude, c.Longitude)
}

// Bounds are the corners of a raster.
type Bounds struct {
	NW Coordinate
	NE Coordinate
	SW Coordinate
	SE Coordinate
}

// NewBounds returns the Bounds of the box with the given edges.
func NewBounds(south, west, north, east float64) Bounds {
	return Bounds{
		NW: Coordinate{Latitude: north, Longitude: west},
		NE: Coordinate{Latitude: north, Longitude: east},
		SW: Coordinate{Latitude: south, Longitude: west},
		SE: Coordinate{Latitude: south, Longitude: east},
	}
}

// Contains returns whether (latitude, longitude) is inside b. The southern
// and western edges are inside, the northern and eastern edges are not.
func (b Bounds) Contains(latitude, longitude float64) bool {
	return b.SW.Latitude <= latitude && latitude < b.NE.Latitude &&
		b.SW.Longitude <= longitude && longitude < b.NE.Longitude
}

// Intersects returns whether b and other share any area.
func (b Bounds) Intersects(other Bounds) bool {
	return b.SW.Latitude < other.NE.Latitude && other.SW.Latitude < b.NE.Latitude &&
		b.SW.Longitude < other.NE.Longitude && other.SW.Longitude < b.NE.Longitude
}

// Union returns the smallest Bounds containing both b and other.
func (b Bounds) Union(other Bounds) Bounds {
	return NewBounds(
		min(b.SW.Latitude, other.SW.Latitude),
		min(b.SW.Longitude, other.SW.Longitude),
		max(b.NE.Latitude, other.NE.Latitude),
		max(b.NE.Longitude, other.NE.Longitude),
	)
}
