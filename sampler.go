package dem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pixelReadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dem_pixel_read_failures_total",
		Help: "The total number of pixel reads that failed and were reported as no data",
	})
	coordTransformFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dem_coord_transform_failures_total",
		Help: "The total number of query coordinates that could not be transformed",
	})
)

// An Index is a fractional pixel position.
type Index struct {
	Row    float64
	Column float64
}

// A Sampler samples elevations from one band of a Dataset.
//
// A Sampler created with Open or OpenFS owns its Dataset and closes it in
// Close. A Sampler created with NewSampler never closes its Dataset.
type Sampler struct {
	metadata       *Metadata
	bounds         Bounds
	ds             Dataset
	owned          bool
	closeOnce      sync.Once
	closeErr       error
	fsys           fs.FS
	name           string
	band           int
	noDataFallback *float64
	inputCRS       string
	transformer    *coordTransformer
	geoTIFFOptions []GeoTIFFOption
}

// A SamplerOption sets an option on a Sampler.
type SamplerOption func(*Sampler)

// WithBand sets the band to sample, counted from 1. The default is 1.
func WithBand(band int) SamplerOption {
	return func(s *Sampler) {
		s.band = band
	}
}

// WithNoDataFallback sets the no-data value used when the raster declares
// none or declares zero. The default is the lowest value of the band's data
// type.
func WithNoDataFallback(noDataFallback float64) SamplerOption {
	return func(s *Sampler) {
		s.noDataFallback = &noDataFallback
	}
}

// WithInputCRS sets the coordinate reference system of query coordinates,
// for example "EPSG:4326". Query coordinates are transformed into the
// raster's projection before sampling.
func WithInputCRS(crs string) SamplerOption {
	return func(s *Sampler) {
		s.inputCRS = crs
	}
}

// WithGeoTIFFOptions sets the options used when opening GeoTIFF files.
func WithGeoTIFFOptions(geoTIFFOptions ...GeoTIFFOption) SamplerOption {
	return func(s *Sampler) {
		s.geoTIFFOptions = geoTIFFOptions
	}
}

// Open opens the raster file at path.
func Open(path string, options ...SamplerOption) (*Sampler, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
	}
	return OpenFS(os.DirFS(filepath.Dir(path)), filepath.Base(path), options...)
}

// OpenFS opens the raster file name in fsys.
func OpenFS(fsys fs.FS, name string, options ...SamplerOption) (*Sampler, error) {
	s := newSampler(options)
	s.fsys = fsys
	s.name = name
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSampler returns a new Sampler over ds. The caller remains responsible
// for closing ds.
func NewSampler(ds Dataset, options ...SamplerOption) (*Sampler, error) {
	s := newSampler(options)
	if err := s.init(ds); err != nil {
		return nil, err
	}
	return s, nil
}

func newSampler(options []SamplerOption) *Sampler {
	s := &Sampler{
		band: 1,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// open opens s's file and initializes s from it. On failure the file is
// closed.
func (s *Sampler) open() error {
	ds, err := OpenGeoTIFF(s.fsys, s.name, s.geoTIFFOptions...)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", s.name, ErrFileNotFound)
	case err != nil:
		return fmt.Errorf("%s: %w: %w", s.name, ErrOpenFailure, err)
	}
	if err := s.init(ds); err != nil {
		_ = ds.Close()
		return fmt.Errorf("%s: %w", s.name, err)
	}
	s.owned = true
	return nil
}

func (s *Sampler) init(ds Dataset) error {
	if err := checkBand(ds, s.band); err != nil {
		return err
	}
	noDataFallback := ds.DataType(s.band).Lowest()
	if s.noDataFallback != nil {
		noDataFallback = *s.noDataFallback
	}
	metadata, err := NewMetadata(ds, s.band, noDataFallback)
	if err != nil {
		return err
	}
	if s.inputCRS != "" {
		if s.transformer, err = newCoordTransformer(s.inputCRS, metadata.Projection); err != nil {
			return err
		}
	}
	s.metadata = metadata
	s.bounds = metadata.Bounds()
	s.ds = ds
	return nil
}

// Clone returns a new Sampler with the same configuration as s. If s opened
// its own file then the clone opens an independent handle to the same file,
// otherwise the clone shares s's Dataset.
func (s *Sampler) Clone() (*Sampler, error) {
	c := &Sampler{
		fsys:           s.fsys,
		name:           s.name,
		band:           s.band,
		noDataFallback: s.noDataFallback,
		inputCRS:       s.inputCRS,
		geoTIFFOptions: s.geoTIFFOptions,
	}
	if !s.owned {
		if err := c.init(s.ds); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

// Close releases s's resources. It closes s's Dataset only if s opened it.
// It is safe to call Close more than once.
func (s *Sampler) Close() error {
	s.closeOnce.Do(func() {
		if s.owned {
			s.closeErr = s.ds.Close()
		}
	})
	return s.closeErr
}

// Metadata returns s's metadata.
func (s *Sampler) Metadata() Metadata {
	return *s.metadata
}

// Bounds returns s's bounds.
func (s *Sampler) Bounds() Bounds {
	return s.bounds
}

// NoData returns the value returned when no elevation is available.
func (s *Sampler) NoData() float64 {
	return s.metadata.NoData
}

// CheckBounds returns whether (latitude, longitude) is inside s's raster.
func (s *Sampler) CheckBounds(latitude, longitude float64) bool {
	return s.bounds.Contains(latitude, longitude)
}

// Index returns the fractional pixel index of (latitude, longitude). It
// returns false if the coordinate is outside s's raster.
func (s *Sampler) Index(latitude, longitude float64) (Index, bool) {
	if !s.bounds.Contains(latitude, longitude) {
		return Index{}, false
	}
	return Index{
		Row:    (latitude - s.metadata.YMax) / s.metadata.YResolution,
		Column: (longitude - s.metadata.XMin) / s.metadata.XResolution,
	}, true
}

// Altitude returns the value of the pixel nearest to (latitude, longitude).
// It returns s.NoData() if the coordinate is outside s's raster or the
// pixel cannot be read.
func (s *Sampler) Altitude(ctx context.Context, latitude, longitude float64) float64 {
	index, ok := s.queryIndex(latitude, longitude)
	if !ok {
		return s.metadata.NoData
	}

	r := int(math.Round(index.Row))
	c := int(math.Round(index.Column))
	if r == s.metadata.Rows {
		r--
	}
	if c == s.metadata.Columns {
		c--
	}

	altitude, err := s.ds.ReadPixel(ctx, s.band, r, c)
	if err != nil {
		pixelReadFailures.Inc()
		return s.metadata.NoData
	}
	return altitude
}

// InterpolatedAltitude returns the bilinear interpolation of the four pixels
// around (latitude, longitude). At the last row or column the neighbouring
// pixel is the pixel itself. No-data pixels are not masked. It returns
// s.NoData() if the coordinate is outside s's raster or any pixel cannot be
// read.
func (s *Sampler) InterpolatedAltitude(ctx context.Context, latitude, longitude float64) float64 {
	index, ok := s.queryIndex(latitude, longitude)
	if !ok {
		return s.metadata.NoData
	}

	lastRow, lastColumn := s.metadata.Rows-1, s.metadata.Columns-1
	r := min(int(math.Floor(index.Row)), lastRow)
	c := min(int(math.Floor(index.Column)), lastColumn)
	dLat := math.Min(index.Row, float64(lastRow)) - float64(r)
	dLon := math.Min(index.Column, float64(lastColumn)) - float64(c)

	nextR, nextC := 1, 1
	if r == lastRow {
		nextR = 0
	}
	if c == lastColumn {
		nextC = 0
	}

	var samples [4]float64
	for i, rc := range [4][2]int{
		{r, c},
		{r, c + nextC},
		{r + nextR, c},
		{r + nextR, c + nextC},
	} {
		sample, err := s.ds.ReadPixel(ctx, s.band, rc[0], rc[1])
		if err != nil {
			pixelReadFailures.Inc()
			return s.metadata.NoData
		}
		samples[i] = sample
	}

	return bilinear(samples[0], samples[1], samples[2], samples[3], dLat, dLon)
}

// Altitudes returns the nearest altitude at each of coords.
func (s *Sampler) Altitudes(ctx context.Context, coords []Coordinate) []float64 {
	altitudes := make([]float64, len(coords))
	for i, coord := range coords {
		altitudes[i] = s.Altitude(ctx, coord.Latitude, coord.Longitude)
	}
	return altitudes
}

// InterpolatedAltitudes returns the interpolated altitude at each of coords.
func (s *Sampler) InterpolatedAltitudes(ctx context.Context, coords []Coordinate) []float64 {
	altitudes := make([]float64, len(coords))
	for i, coord := range coords {
		altitudes[i] = s.InterpolatedAltitude(ctx, coord.Latitude, coord.Longitude)
	}
	return altitudes
}

func (s *Sampler) String() string {
	return s.metadata.String()
}

// queryIndex transforms (latitude, longitude) into s's projection, if
// needed, and returns its index.
func (s *Sampler) queryIndex(latitude, longitude float64) (Index, bool) {
	if s.transformer != nil {
		var err error
		if latitude, longitude, err = s.transformer.transform(latitude, longitude); err != nil {
			return Index{}, false
		}
	}
	return s.Index(latitude, longitude)
}
