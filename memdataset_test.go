package dem

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestMemDataset(t *testing.T) {
	ds, err := NewMemDataset(2, 2, GeoTransform{0, 1, 0, 0, 0, -1}, [][]float64{{1.5, 2.5, -3.5, 4}},
		WithMemDataType(Int16),
		WithMemNoData(-1),
		WithMemProjection("EPSG:4326"),
	)
	assert.NoError(t, err)
	assert.Equal(t, 1, ds.BandCount())
	rows, columns := ds.Size()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, columns)
	assert.Equal(t, Int16, ds.DataType(1))
	assert.Equal(t, "EPSG:4326", ds.Projection())
	noData, ok := ds.NoDataValue(1)
	assert.True(t, ok)
	assert.Equal(t, -1.0, noData)
	assert.Equal(t, []float64{1, 2, -3, 4}, readAllPixels(t, ds, 1))

	_, err = ds.ReadPixel(t.Context(), 1, 2, 0)
	assert.IsError(t, err, ErrOutOfRange)
	_, err = ds.ReadPixel(t.Context(), 0, 0, 0)
	assert.IsError(t, err, ErrInvalidBand)
	assert.NoError(t, ds.Close())
}

func TestNewMemDatasetErrors(t *testing.T) {
	_, err := NewMemDataset(0, 1, GeoTransform{}, nil)
	assert.Error(t, err)
	_, err = NewMemDataset(2, 2, GeoTransform{}, [][]float64{{1, 2, 3}})
	assert.Error(t, err)
}
