package dem

import (
	"context"
	"fmt"
)

// A MemDataset is an in-memory Dataset. Samples are stored row-major, one
// slice per band.
type MemDataset struct {
	rows         int
	columns      int
	geoTransform GeoTransform
	projection   string
	dataType     DataType
	noData       *float64
	bands        [][]float64
}

// A MemDatasetOption sets an option on a MemDataset.
type MemDatasetOption func(*MemDataset)

// NewMemDataset returns a new MemDataset with the given size, geo-transform,
// and bands. Samples are converted to the dataset's data type, Float64 by
// default.
func NewMemDataset(rows, columns int, geoTransform GeoTransform, bands [][]float64, options ...MemDatasetOption) (*MemDataset, error) {
	if rows < 1 || columns < 1 {
		return nil, fmt.Errorf("%dx%d: invalid size", rows, columns)
	}
	d := &MemDataset{
		rows:         rows,
		columns:      columns,
		geoTransform: geoTransform,
		dataType:     Float64,
	}
	for _, option := range options {
		option(d)
	}
	d.bands = make([][]float64, len(bands))
	for i, band := range bands {
		if len(band) != rows*columns {
			return nil, fmt.Errorf("band %d: got %d samples, expected %d", i+1, len(band), rows*columns)
		}
		d.bands[i] = make([]float64, len(band))
		for j, sample := range band {
			d.bands[i][j] = d.dataType.Convert(sample)
		}
	}
	return d, nil
}

func WithMemDataType(dataType DataType) MemDatasetOption {
	return func(d *MemDataset) {
		d.dataType = dataType
	}
}

func WithMemNoData(noData float64) MemDatasetOption {
	return func(d *MemDataset) {
		d.noData = &noData
	}
}

func WithMemProjection(projection string) MemDatasetOption {
	return func(d *MemDataset) {
		d.projection = projection
	}
}

func (d *MemDataset) BandCount() int {
	return len(d.bands)
}

func (d *MemDataset) Size() (int, int) {
	return d.rows, d.columns
}

func (d *MemDataset) GeoTransform() (GeoTransform, error) {
	return d.geoTransform, nil
}

func (d *MemDataset) Projection() string {
	return d.projection
}

func (d *MemDataset) DataType(band int) DataType {
	return d.dataType
}

func (d *MemDataset) NoDataValue(band int) (float64, bool) {
	if d.noData == nil {
		return 0, false
	}
	return *d.noData, true
}

func (d *MemDataset) ReadPixel(ctx context.Context, band, row, column int) (float64, error) {
	if band < 1 || band > len(d.bands) {
		return 0, ErrInvalidBand
	}
	if row < 0 || d.rows <= row || column < 0 || d.columns <= column {
		return 0, fmt.Errorf("(%d, %d): %w", row, column, ErrOutOfRange)
	}
	return d.bands[band-1][row*d.columns+column], nil
}

// Close does nothing. It exists to implement Dataset.
func (d *MemDataset) Close() error {
	return nil
}
