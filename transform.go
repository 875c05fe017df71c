package dem

import (
	"fmt"

	"github.com/twpayne/go-proj/v11"
)

// A coordTransformer transforms query coordinates into a raster's
// projection.
type coordTransformer struct {
	pj *proj.PJ
}

// newCoordTransformer returns a coordTransformer from inputCRS to
// projection. Axis order is normalized so that longitudes and eastings come
// first.
func newCoordTransformer(inputCRS, projection string) (*coordTransformer, error) {
	if projection == "" {
		return nil, fmt.Errorf("%w: raster has no projection", ErrOpenFailure)
	}
	pj, err := proj.NewCRSToCRS(inputCRS, projection, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailure, err)
	}
	normalizedPJ, err := pj.NormalizeForVisualization()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailure, err)
	}
	return &coordTransformer{
		pj: normalizedPJ,
	}, nil
}

// transform returns (latitude, longitude) in the raster's projection, as a
// northing and easting.
func (t *coordTransformer) transform(latitude, longitude float64) (float64, float64, error) {
	coord, err := t.pj.Forward(proj.Coord{longitude, latitude, 0, 0})
	if err != nil {
		coordTransformFailures.Inc()
		return 0, 0, err
	}
	return coord[1], coord[0], nil
}
