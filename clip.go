package dem

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Clip returns the pixels of band of ds that intersect bounds as a new
// single band MemDataset. The window is widened to whole pixels and its
// geo-transform is shifted to the window's origin.
func Clip(ctx context.Context, ds Dataset, band int, bounds Bounds) (*MemDataset, error) {
	if err := checkBand(ds, band); err != nil {
		return nil, err
	}
	t, err := ds.GeoTransform()
	if err != nil {
		return nil, err
	}
	if t[2] != 0 || t[4] != 0 {
		return nil, fmt.Errorf("rotated geo-transform: %w", errors.ErrUnsupported)
	}
	if t[1] == 0 || t[5] == 0 {
		return nil, fmt.Errorf("zero resolution: %w", ErrTransformUnavailable)
	}

	rows, columns := ds.Size()
	row0, row1 := pixelRange(bounds.NE.Latitude, bounds.SW.Latitude, t[3], t[5], rows)
	column0, column1 := pixelRange(bounds.SW.Longitude, bounds.NE.Longitude, t[0], t[1], columns)
	if row1 <= row0 || column1 <= column0 {
		return nil, fmt.Errorf("%v: %w", bounds, ErrEmptyWindow)
	}

	windowRows, windowColumns := row1-row0, column1-column0
	samples := make([]float64, 0, windowRows*windowColumns)
	for row := row0; row < row1; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for column := column0; column < column1; column++ {
			sample, err := ds.ReadPixel(ctx, band, row, column)
			if err != nil {
				return nil, err
			}
			samples = append(samples, sample)
		}
	}

	geoTransform := GeoTransform{
		t[0] + float64(column0)*t[1], t[1], 0,
		t[3] + float64(row0)*t[5], 0, t[5],
	}
	options := []MemDatasetOption{
		WithMemDataType(ds.DataType(band)),
		WithMemProjection(ds.Projection()),
	}
	if noData, ok := ds.NoDataValue(band); ok {
		options = append(options, WithMemNoData(noData))
	}
	return NewMemDataset(windowRows, windowColumns, geoTransform, [][]float64{samples}, options...)
}

// pixelRange returns the half-open range of pixels along one axis, of size
// n, origin origin, and resolution resolution, that intersects the
// coordinates between a and b.
func pixelRange(a, b, origin, resolution float64, n int) (int, int) {
	fa := (a - origin) / resolution
	fb := (b - origin) / resolution
	lo := int(math.Floor(math.Min(fa, fb)))
	hi := int(math.Ceil(math.Max(fa, fb)))
	return max(lo, 0), min(hi, n)
}
