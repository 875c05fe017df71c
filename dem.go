// Package dem samples elevations from Digital Elevation Model rasters.
package dem

import (
	"context"
	"errors"
)

var (
	ErrEmptyWindow          = errors.New("empty window")
	ErrFileNotFound         = errors.New("file not found")
	ErrInvalidBand          = errors.New("invalid raster band")
	ErrInvalidCoordinate    = errors.New("invalid coordinate")
	ErrInvalidPath          = errors.New("invalid path")
	ErrMisaligned           = errors.New("misaligned rasters")
	ErrOpenFailure          = errors.New("failed to open raster")
	ErrOutOfRange           = errors.New("pixel out of range")
	ErrTransformUnavailable = errors.New("geo-transform unavailable")
)

// A GeoTransform is an affine map from pixel (column, row) to coordinates:
//
//	x = t[0] + column*t[1] + row*t[2]
//	y = t[3] + column*t[4] + row*t[5]
type GeoTransform [6]float64

// A Dataset is a source of raster pixels. Bands are numbered from 1.
type Dataset interface {
	BandCount() int
	Size() (rows, columns int)
	GeoTransform() (GeoTransform, error)
	Projection() string
	DataType(band int) DataType
	NoDataValue(band int) (float64, bool)
	ReadPixel(ctx context.Context, band, row, column int) (float64, error)
	Close() error
}
