package dem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
)

// alignmentTolerance is the largest fraction of a pixel by which rasters'
// grids may differ and still be merged.
const alignmentTolerance = 1e-6

// Merge composites band of each of datasets onto one grid covering all of
// them. Each output pixel is the median of the inputs' values at that pixel,
// ignoring their no-data values. Pixels with no value are set to noData.
// The result has data type Float64.
//
// All datasets must be north-up and share resolution, projection, and pixel
// grid.
func Merge(ctx context.Context, datasets []Dataset, band int, noData float64) (*MemDataset, error) {
	if len(datasets) == 0 {
		return nil, errors.New("no datasets")
	}

	type input struct {
		ds           Dataset
		rows         int
		columns      int
		rowOffset    int
		columnOffset int
		noData       float64
		hasNoData    bool
	}

	var t0 GeoTransform
	projection := datasets[0].Projection()
	inputs := make([]input, len(datasets))
	var west, north, east, south float64
	for i, ds := range datasets {
		if err := checkBand(ds, band); err != nil {
			return nil, fmt.Errorf("dataset %d: %w", i, err)
		}
		t, err := ds.GeoTransform()
		if err != nil {
			return nil, fmt.Errorf("dataset %d: %w", i, err)
		}
		if t[1] <= 0 || t[2] != 0 || t[4] != 0 || t[5] >= 0 {
			return nil, fmt.Errorf("dataset %d: not north-up: %w", i, ErrMisaligned)
		}
		rows, columns := ds.Size()
		switch {
		case i == 0:
			t0 = t
			west, north = t[0], t[3]
			east, south = t[0]+float64(columns)*t[1], t[3]+float64(rows)*t[5]
		case t[1] != t0[1] || t[5] != t0[5]:
			return nil, fmt.Errorf("dataset %d: resolution (%g, %g) differs from (%g, %g): %w", i, t[5], t[1], t0[5], t0[1], ErrMisaligned)
		case ds.Projection() != projection:
			return nil, fmt.Errorf("dataset %d: projection %q differs from %q: %w", i, ds.Projection(), projection, ErrMisaligned)
		default:
			west, north = min(west, t[0]), max(north, t[3])
			east, south = max(east, t[0]+float64(columns)*t[1]), min(south, t[3]+float64(rows)*t[5])
		}
		inputs[i].ds = ds
		inputs[i].rows, inputs[i].columns = rows, columns
		inputs[i].noData, inputs[i].hasNoData = ds.NoDataValue(band)
	}

	for i := range inputs {
		t, _ := inputs[i].ds.GeoTransform()
		var ok bool
		if inputs[i].columnOffset, ok = gridOffset(t[0]-west, t0[1]); !ok {
			return nil, fmt.Errorf("dataset %d: columns not aligned: %w", i, ErrMisaligned)
		}
		if inputs[i].rowOffset, ok = gridOffset(t[3]-north, t0[5]); !ok {
			return nil, fmt.Errorf("dataset %d: rows not aligned: %w", i, ErrMisaligned)
		}
	}

	rows := int(math.Round((south - north) / t0[5]))
	columns := int(math.Round((east - west) / t0[1]))
	samples := make([]float64, rows*columns)
	values := make([]float64, 0, len(inputs))
	for row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for column := range columns {
			values = values[:0]
			for _, input := range inputs {
				r, c := row-input.rowOffset, column-input.columnOffset
				if r < 0 || input.rows <= r || c < 0 || input.columns <= c {
					continue
				}
				value, err := input.ds.ReadPixel(ctx, band, r, c)
				if err != nil {
					return nil, err
				}
				if input.hasNoData && value == input.noData || math.IsNaN(value) {
					continue
				}
				values = append(values, value)
			}
			if len(values) == 0 {
				samples[row*columns+column] = noData
			} else {
				samples[row*columns+column] = median(values)
			}
		}
	}

	geoTransform := GeoTransform{west, t0[1], 0, north, 0, t0[5]}
	return NewMemDataset(rows, columns, geoTransform, [][]float64{samples},
		WithMemNoData(noData),
		WithMemProjection(projection),
	)
}

// gridOffset returns distance in whole pixels of size resolution, and
// whether distance is a whole number of pixels.
func gridOffset(distance, resolution float64) (int, bool) {
	offset := distance / resolution
	rounded := math.Round(offset)
	return int(rounded), math.Abs(offset-rounded) <= alignmentTolerance
}

// median returns the median of values, averaging the two middle values when
// there is an even number. values is sorted in place.
func median(values []float64) float64 {
	slices.Sort(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}
