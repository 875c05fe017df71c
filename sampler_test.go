package dem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"testing"

	"github.com/alecthomas/assert/v2"
)

// newTestSampler returns a Sampler over the 2x2 raster
//
//	10 20
//	30 40
//
// with origin (0, 0) and resolution (1, -1).
func newTestSampler(t *testing.T, options ...SamplerOption) *Sampler {
	t.Helper()
	ds, err := NewMemDataset(2, 2, GeoTransform{0, 1, 0, 0, 0, -1}, [][]float64{{10, 20, 30, 40}})
	assert.NoError(t, err)
	s, err := NewSampler(ds, options...)
	assert.NoError(t, err)
	return s
}

// A countingDataset records the pixels read from it.
type countingDataset struct {
	Dataset
	reads      int
	maxRow     int
	maxColumn  int
	closeCalls int
}

func (d *countingDataset) ReadPixel(ctx context.Context, band, row, column int) (float64, error) {
	d.reads++
	d.maxRow = max(d.maxRow, row)
	d.maxColumn = max(d.maxColumn, column)
	return d.Dataset.ReadPixel(ctx, band, row, column)
}

func (d *countingDataset) Close() error {
	d.closeCalls++
	return nil
}

// A failingDataset fails every read.
type failingDataset struct {
	Dataset
}

func (d *failingDataset) ReadPixel(ctx context.Context, band, row, column int) (float64, error) {
	return 0, errors.New("read failed")
}

func TestSamplerMetadata(t *testing.T) {
	s := newTestSampler(t)
	assert.Equal(t, Metadata{
		Band:        1,
		Rows:        2,
		Columns:     2,
		YMin:        -2,
		XMin:        0,
		YMax:        0,
		XMax:        2,
		YResolution: -1,
		XResolution: 1,
		NoData:      -math.MaxFloat64,
		DataType:    Float64,
	}, s.Metadata())
	assert.Equal(t, NewBounds(-2, 0, 0, 2), s.Bounds())
}

func TestSamplerCheckBounds(t *testing.T) {
	s := newTestSampler(t)
	for _, tc := range []struct {
		latitude  float64
		longitude float64
		expected  bool
	}{
		{latitude: -1, longitude: 1, expected: true},
		{latitude: -2, longitude: 0, expected: true},
		{latitude: -2, longitude: 1.999, expected: true},
		{latitude: 0, longitude: 1, expected: false},
		{latitude: -1, longitude: 2, expected: false},
		{latitude: -2.001, longitude: 1, expected: false},
		{latitude: -1, longitude: -0.001, expected: false},
	} {
		t.Run(strconv.FormatFloat(tc.latitude, 'g', -1, 64)+"_"+strconv.FormatFloat(tc.longitude, 'g', -1, 64), func(t *testing.T) {
			assert.Equal(t, tc.expected, s.CheckBounds(tc.latitude, tc.longitude))
			_, ok := s.Index(tc.latitude, tc.longitude)
			assert.Equal(t, tc.expected, ok)
		})
	}
}

func TestSamplerIndex(t *testing.T) {
	s := newTestSampler(t)
	index, ok := s.Index(-0.5, 1.25)
	assert.True(t, ok)
	assert.Equal(t, Index{Row: 0.5, Column: 1.25}, index)
}

func TestSamplerOutOfBounds(t *testing.T) {
	s := newTestSampler(t)
	noData := s.NoData()
	for _, coord := range []Coordinate{
		{Latitude: 0, Longitude: 1},
		{Latitude: -1, Longitude: 2},
		{Latitude: 10, Longitude: 10},
		{Latitude: -3, Longitude: -1},
	} {
		assert.Equal(t, noData, s.Altitude(t.Context(), coord.Latitude, coord.Longitude))
		assert.Equal(t, noData, s.InterpolatedAltitude(t.Context(), coord.Latitude, coord.Longitude))
	}
}

func TestSamplerAltitude(t *testing.T) {
	s := newTestSampler(t)
	for _, tc := range []struct {
		name      string
		latitude  float64
		longitude float64
		expected  float64
	}{
		{name: "row_1_column_0", latitude: -1, longitude: 0, expected: 30},
		{name: "row_1_column_1", latitude: -1, longitude: 1, expected: 40},
		{name: "rounds_to_row_0", latitude: -0.25, longitude: 0.25, expected: 10},
		{name: "rounds_to_column_1", latitude: -0.25, longitude: 0.75, expected: 20},
		{name: "south_edge", latitude: -2, longitude: 0, expected: 30},
		{name: "south_east_corner", latitude: -1.9, longitude: 1.9, expected: 40},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, s.Altitude(t.Context(), tc.latitude, tc.longitude))
		})
	}
}

func TestSamplerInterpolatedAltitude(t *testing.T) {
	s := newTestSampler(t)
	for _, tc := range []struct {
		name      string
		latitude  float64
		longitude float64
		expected  float64
	}{
		{name: "raster_center", latitude: -0.5, longitude: 0.5, expected: 25},
		{name: "pixel_row_1_column_0", latitude: -1, longitude: 0, expected: 30},
		{name: "pixel_row_1_column_1", latitude: -1, longitude: 1, expected: 40},
		{name: "top_edge_half_way", latitude: -0.5, longitude: 0, expected: 20},
		{name: "across_half_way", latitude: -1, longitude: 0.5, expected: 35},
		{name: "quarter", latitude: -0.25, longitude: 0.25, expected: 17.5},
		{name: "last_column", latitude: -0.5, longitude: 1.5, expected: 30},
		{name: "south_edge", latitude: -2, longitude: 0.5, expected: 35},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, s.InterpolatedAltitude(t.Context(), tc.latitude, tc.longitude))
		})
	}
}

func TestSamplerPixelCenters(t *testing.T) {
	samples := []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	ds, err := NewMemDataset(3, 3, GeoTransform{100, 0.5, 0, 50, 0, -0.5}, [][]float64{samples})
	assert.NoError(t, err)
	s, err := NewSampler(ds)
	assert.NoError(t, err)

	// Row 0 lies on the excluded northern edge.
	for row := 1; row < 3; row++ {
		for column := range 3 {
			latitude := 50 - 0.5*float64(row)
			longitude := 100 + 0.5*float64(column)
			expected := samples[3*row+column]
			assert.Equal(t, expected, s.Altitude(t.Context(), latitude, longitude))
			assert.Equal(t, expected, s.InterpolatedAltitude(t.Context(), latitude, longitude))
		}
	}
}

func TestSamplerLastRowAndColumn(t *testing.T) {
	memDataset, err := NewMemDataset(2, 2, GeoTransform{0, 1, 0, 0, 0, -1}, [][]float64{{10, 20, 30, 40}})
	assert.NoError(t, err)
	ds := &countingDataset{Dataset: memDataset}
	s, err := NewSampler(ds)
	assert.NoError(t, err)

	for _, coord := range []Coordinate{
		{Latitude: -2, Longitude: 0},
		{Latitude: -1.75, Longitude: 1.75},
		{Latitude: -1.5, Longitude: 1.999},
		{Latitude: -1.999, Longitude: 1.999},
	} {
		assert.NotEqual(t, s.NoData(), s.Altitude(t.Context(), coord.Latitude, coord.Longitude))
		assert.NotEqual(t, s.NoData(), s.InterpolatedAltitude(t.Context(), coord.Latitude, coord.Longitude))
	}
	assert.True(t, ds.reads > 0)
	assert.Equal(t, 1, ds.maxRow)
	assert.Equal(t, 1, ds.maxColumn)
}

func TestSamplerReadFailure(t *testing.T) {
	memDataset, err := NewMemDataset(2, 2, GeoTransform{0, 1, 0, 0, 0, -1}, [][]float64{{10, 20, 30, 40}})
	assert.NoError(t, err)
	s, err := NewSampler(&failingDataset{Dataset: memDataset}, WithNoDataFallback(-1))
	assert.NoError(t, err)
	assert.Equal(t, -1.0, s.Altitude(t.Context(), -1, 1))
	assert.Equal(t, -1.0, s.InterpolatedAltitude(t.Context(), -0.5, 0.5))
}

func TestSamplerNoData(t *testing.T) {
	for _, tc := range []struct {
		name           string
		dataType       DataType
		noData         *float64
		options        []SamplerOption
		expectedNoData float64
	}{
		{
			name:           "declared",
			dataType:       Int16,
			noData:         ptr(-9999.0),
			expectedNoData: -9999,
		},
		{
			name:           "declared_zero_int16",
			dataType:       Int16,
			noData:         ptr(0.0),
			expectedNoData: math.MinInt16,
		},
		{
			name:           "declared_zero_with_fallback",
			dataType:       Int16,
			noData:         ptr(0.0),
			options:        []SamplerOption{WithNoDataFallback(-1)},
			expectedNoData: -1,
		},
		{
			name:           "absent_float32",
			dataType:       Float32,
			expectedNoData: -math.MaxFloat32,
		},
		{
			name:           "absent_uint16",
			dataType:       UInt16,
			expectedNoData: 0,
		},
		{
			name:           "declared_ignores_fallback",
			dataType:       Float32,
			noData:         ptr(-32768.0),
			options:        []SamplerOption{WithNoDataFallback(-1)},
			expectedNoData: -32768,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			memDatasetOptions := []MemDatasetOption{WithMemDataType(tc.dataType)}
			if tc.noData != nil {
				memDatasetOptions = append(memDatasetOptions, WithMemNoData(*tc.noData))
			}
			ds, err := NewMemDataset(1, 1, GeoTransform{0, 1, 0, 0, 0, -1}, [][]float64{{1}}, memDatasetOptions...)
			assert.NoError(t, err)
			s, err := NewSampler(ds, tc.options...)
			assert.NoError(t, err)
			assert.Equal(t, tc.expectedNoData, s.NoData())
			assert.Equal(t, tc.expectedNoData, s.Altitude(t.Context(), 1, 1))
		})
	}
}

func TestSamplerBand(t *testing.T) {
	ds, err := NewMemDataset(1, 2, GeoTransform{0, 1, 0, 0, 0, -1}, [][]float64{{1, 2}, {3, 4}})
	assert.NoError(t, err)

	s, err := NewSampler(ds, WithBand(2))
	assert.NoError(t, err)
	assert.Equal(t, 4.0, s.Altitude(t.Context(), -1, 1))
	assert.Equal(t, 2, s.Metadata().Band)

	for _, band := range []int{0, 3} {
		_, err := NewSampler(ds, WithBand(band))
		assert.IsError(t, err, ErrInvalidBand)
		assert.Equal(t, fmt.Sprintf("%d of 2: invalid raster band", band), err.Error())
	}
}

func TestSamplerAltitudes(t *testing.T) {
	s := newTestSampler(t)
	coords := []Coordinate{
		{Latitude: -1, Longitude: 0},
		{Latitude: -0.5, Longitude: 0.5},
		{Latitude: 5, Longitude: 5},
	}
	assert.Equal(t, []float64{30, 40, s.NoData()}, s.Altitudes(t.Context(), coords))
	assert.Equal(t, []float64{30, 25, s.NoData()}, s.InterpolatedAltitudes(t.Context(), coords))
}

func TestSamplerString(t *testing.T) {
	s := newTestSampler(t, WithNoDataFallback(-9999))
	assert.Equal(t, ""+
		"Projection : \n"+
		"Data Type : Float64\n"+
		"Rows : 2\n"+
		"Columns : 2\n"+
		"Resolution (latitudinal, longitudinal) : (-1, 1)\n"+
		"Bounded Region {\n"+
		"    North West : (0, 0)\n"+
		"    South East : (-2, 2)\n"+
		"}\n"+
		"No Data Value : -9999",
		s.String())
}

func TestSamplerCloneAndClose(t *testing.T) {
	memDataset, err := NewMemDataset(2, 2, GeoTransform{0, 1, 0, 0, 0, -1}, [][]float64{{10, 20, 30, 40}})
	assert.NoError(t, err)
	ds := &countingDataset{Dataset: memDataset}
	s, err := NewSampler(ds, WithNoDataFallback(-1))
	assert.NoError(t, err)

	clone, err := s.Clone()
	assert.NoError(t, err)
	assert.Equal(t, s.Metadata(), clone.Metadata())
	assert.Equal(t, 25.0, clone.InterpolatedAltitude(t.Context(), -0.5, 0.5))

	assert.NoError(t, clone.Close())
	assert.NoError(t, clone.Close())
	assert.NoError(t, s.Close())
	assert.Equal(t, 0, ds.closeCalls)
}

func TestOpenFS(t *testing.T) {
	fsys := &trackingFS{
		FS: testFS(t, map[string]*testGeoTIFF{
			"test.tif": {
				rows:            2,
				columns:         2,
				dataType:        Int16,
				bands:           [][]float64{{10, 20, 30, 40}},
				modelPixelScale: []float64{1, 1, 0},
				modelTiepoint:   []float64{0, 0, 0, 0, 0, 0},
				geoKeyDirectory: geographicGeoKeys,
				gdalNoData:      "-9999",
			},
			"nogeotransform.tif": {
				rows:     1,
				columns:  1,
				dataType: Int16,
				bands:    [][]float64{{1}},
			},
		}),
	}

	t.Run("ok", func(t *testing.T) {
		s, err := OpenFS(fsys, "test.tif")
		assert.NoError(t, err)
		assert.Equal(t, 1, fsys.open)
		assert.Equal(t, "EPSG:4326", s.Metadata().Projection)
		assert.Equal(t, -9999.0, s.NoData())
		assert.Equal(t, 25.0, s.InterpolatedAltitude(t.Context(), -0.5, 0.5))
		assert.Equal(t, 40.0, s.Altitude(t.Context(), -1, 1))

		clone, err := s.Clone()
		assert.NoError(t, err)
		assert.Equal(t, 2, fsys.open)
		assert.Equal(t, 40.0, clone.Altitude(t.Context(), -1, 1))

		assert.NoError(t, s.Close())
		assert.Equal(t, 1, fsys.open)
		assert.Equal(t, 40.0, clone.Altitude(t.Context(), -1, 1))
		assert.NoError(t, clone.Close())
		assert.Equal(t, 0, fsys.open)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := OpenFS(fsys, "missing.tif")
		assert.IsError(t, err, ErrFileNotFound)
	})

	t.Run("invalid_band", func(t *testing.T) {
		_, err := OpenFS(fsys, "test.tif", WithBand(2))
		assert.IsError(t, err, ErrInvalidBand)
		assert.Equal(t, 0, fsys.open)
	})

	t.Run("no_geotransform", func(t *testing.T) {
		_, err := OpenFS(fsys, "nogeotransform.tif")
		assert.IsError(t, err, ErrTransformUnavailable)
		assert.Equal(t, 0, fsys.open)
	})
}

func TestOpen(t *testing.T) {
	_, err := Open("testdata/missing.tif")
	assert.IsError(t, err, ErrFileNotFound)
}

func TestSamplerInputCRS(t *testing.T) {
	samples := make([]float64, 20*20)
	for i := range samples {
		samples[i] = float64(i)
	}
	ds, err := NewMemDataset(20, 20, GeoTransform{-1000, 100, 0, 1000, 0, -100}, [][]float64{samples},
		WithMemProjection("EPSG:3857"),
	)
	assert.NoError(t, err)

	s, err := NewSampler(ds, WithInputCRS("EPSG:4326"))
	assert.NoError(t, err)
	defer s.Close()
	assert.Equal(t, samples[10*20+10], s.Altitude(t.Context(), 0, 0))
	assert.Equal(t, s.NoData(), s.Altitude(t.Context(), 45, 45))

	noProjection, err := NewMemDataset(1, 1, GeoTransform{0, 1, 0, 0, 0, -1}, [][]float64{{1}})
	assert.NoError(t, err)
	_, err = NewSampler(noProjection, WithInputCRS("EPSG:4326"))
	assert.IsError(t, err, ErrOpenFailure)
}

func ptr[T any](value T) *T {
	return &value
}
