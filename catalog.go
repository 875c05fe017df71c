package dem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	missingFileCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dem_missing_file_cache_hits_total",
		Help: "The total number of hits on the missing file cache",
	})
	samplerCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dem_sampler_cache_hits_total",
		Help: "The total number of hits on the sampler cache",
	})
	samplerCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dem_sampler_cache_misses_total",
		Help: "The total number of misses on the sampler cache",
	})
	samplerCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dem_sampler_cache_evictions_total",
		Help: "The total number of evictions from the sampler cache",
	})
)

// A Catalog is a set of DEM files which are sampled as one. Files are opened
// on demand and kept open in an LRU cache.
type Catalog struct {
	mutex          sync.Mutex
	fsys           fs.FS
	glob           string
	filenames      []string
	samplerOptions []SamplerOption
	inputCRS       string
	transformer    *coordTransformer
	cacheSize      int
	logger         zerolog.Logger
	bounds         map[string]Bounds
	missingFiles   sync.Map
	samplerCache   *lru.Cache[string, *Sampler]
}

// A CatalogOption sets an option on a Catalog.
type CatalogOption func(*Catalog)

// NewCatalog returns a new Catalog with the given options. The bounds of
// every file are read immediately. Files that cannot be read are logged and
// ignored.
func NewCatalog(options ...CatalogOption) (*Catalog, error) {
	c := &Catalog{
		glob:      "*.tif",
		cacheSize: 32,
		logger:    zerolog.Nop(),
	}
	for _, option := range options {
		option(c)
	}
	if c.fsys == nil {
		return nil, errors.New("no filesystem")
	}

	if c.filenames == nil {
		filenames, err := fs.Glob(c.fsys, c.glob)
		if err != nil {
			return nil, err
		}
		c.filenames = filenames
	}
	slices.Sort(c.filenames)

	var err error
	c.samplerCache, err = lru.NewWithEvict(c.cacheSize, func(filename string, sampler *Sampler) {
		if err := sampler.Close(); err != nil {
			c.logger.Warn().Err(err).Str("filename", filename).Msg("close")
		}
	})
	if err != nil {
		return nil, err
	}

	if err := c.readBounds(); err != nil {
		return nil, err
	}

	return c, nil
}

func WithCacheSize(cacheSize int) CatalogOption {
	return func(c *Catalog) {
		c.cacheSize = cacheSize
	}
}

// WithCatalogInputCRS sets the coordinate reference system of query
// coordinates. All files in the catalog must declare the same projection,
// otherwise NewCatalog returns an error wrapping ErrOpenFailure.
func WithCatalogInputCRS(crs string) CatalogOption {
	return func(c *Catalog) {
		c.inputCRS = crs
	}
}

func WithFS(fsys fs.FS) CatalogOption {
	return func(c *Catalog) {
		c.fsys = fsys
	}
}

// WithFilenames sets the files in the catalog. It overrides WithGlob.
func WithFilenames(filenames ...string) CatalogOption {
	return func(c *Catalog) {
		c.filenames = slices.Clone(filenames)
	}
}

// WithGlob sets the pattern used to find files. The default is "*.tif".
func WithGlob(glob string) CatalogOption {
	return func(c *Catalog) {
		c.glob = glob
	}
}

func WithLogger(logger zerolog.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithSamplerOptions sets the options used to open each file. They must not
// include WithInputCRS, use WithCatalogInputCRS instead.
func WithSamplerOptions(samplerOptions ...SamplerOption) CatalogOption {
	return func(c *Catalog) {
		c.samplerOptions = samplerOptions
	}
}

// Filenames returns the files in c whose bounds could be read.
func (c *Catalog) Filenames() []string {
	filenames := make([]string, 0, len(c.bounds))
	for _, filename := range c.filenames {
		if _, ok := c.bounds[filename]; ok {
			filenames = append(filenames, filename)
		}
	}
	return filenames
}

// Altitude returns the nearest altitude at (latitude, longitude) from the
// first file that contains it. Missing altitudes are represented by NaN.
func (c *Catalog) Altitude(ctx context.Context, latitude, longitude float64) (float64, error) {
	altitudes, err := c.Altitudes(ctx, []Coordinate{{Latitude: latitude, Longitude: longitude}})
	if err != nil {
		return 0, err
	}
	return altitudes[0], nil
}

// InterpolatedAltitude returns the interpolated altitude at (latitude,
// longitude) from the first file that contains it. Missing altitudes are
// represented by NaN.
func (c *Catalog) InterpolatedAltitude(ctx context.Context, latitude, longitude float64) (float64, error) {
	altitudes, err := c.InterpolatedAltitudes(ctx, []Coordinate{{Latitude: latitude, Longitude: longitude}})
	if err != nil {
		return 0, err
	}
	return altitudes[0], nil
}

// Altitudes returns the nearest altitudes at coords. Missing altitudes are
// represented by NaN.
func (c *Catalog) Altitudes(ctx context.Context, coords []Coordinate) ([]float64, error) {
	return c.samples(ctx, coords, (*Sampler).Altitude)
}

// InterpolatedAltitudes returns the interpolated altitudes at coords.
// Missing altitudes are represented by NaN.
func (c *Catalog) InterpolatedAltitudes(ctx context.Context, coords []Coordinate) ([]float64, error) {
	return c.samples(ctx, coords, (*Sampler).InterpolatedAltitude)
}

// Close closes all open files. c must not be used after Close returns.
func (c *Catalog) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.samplerCache.Purge()
	return nil
}

// samples returns the result of sampleFunc at each of coords.
func (c *Catalog) samples(ctx context.Context, coords []Coordinate, sampleFunc func(*Sampler, context.Context, float64, float64) float64) ([]float64, error) {
	samples := make([]float64, len(coords))

	// Group indexes by filename.
	type groupStruct struct {
		coords  []Coordinate
		indexes []int
	}
	groupsByFilename := make(map[string]groupStruct)
	for index, coord := range coords {
		localCoord, filename, ok := c.locate(coord)
		if !ok {
			samples[index] = math.NaN()
			continue
		}
		group := groupsByFilename[filename]
		group.coords = append(group.coords, localCoord)
		group.indexes = append(group.indexes, index)
		groupsByFilename[filename] = group
	}

	// Populate samples one file at a time.
	for filename, group := range groupsByFilename {
		sampler, err := c.getSamplerCached(filename)
		if err != nil {
			return nil, err
		}
		if sampler == nil {
			for _, index := range group.indexes {
				samples[index] = math.NaN()
			}
			continue
		}
		noData := sampler.NoData()
		for localIndex, index := range group.indexes {
			coord := group.coords[localIndex]
			if sample := sampleFunc(sampler, ctx, coord.Latitude, coord.Longitude); sample == noData {
				samples[index] = math.NaN()
			} else {
				samples[index] = sample
			}
		}
	}

	return samples, nil
}

// locate transforms coord into the catalog's projection and returns the
// first file that contains it.
func (c *Catalog) locate(coord Coordinate) (Coordinate, string, bool) {
	if c.transformer != nil {
		latitude, longitude, err := c.transformer.transform(coord.Latitude, coord.Longitude)
		if err != nil {
			return Coordinate{}, "", false
		}
		coord = Coordinate{Latitude: latitude, Longitude: longitude}
	}
	for _, filename := range c.filenames {
		if bounds, ok := c.bounds[filename]; ok && bounds.Contains(coord.Latitude, coord.Longitude) {
			return coord, filename, true
		}
	}
	return Coordinate{}, "", false
}

// readBounds reads the bounds of every file in c.
func (c *Catalog) readBounds() error {
	c.bounds = make(map[string]Bounds, len(c.filenames))
	projection, hasProjection := "", false
	for _, filename := range c.filenames {
		metadata, err := readMetadata(c.fsys, filename)
		if err != nil {
			c.logger.Warn().Err(err).Str("filename", filename).Msg("read bounds")
			c.missingFiles.Store(filename, struct{}{})
			continue
		}
		if c.inputCRS != "" {
			switch {
			case metadata.Projection == "":
				return fmt.Errorf("%s: no projection to transform %s into: %w", filename, c.inputCRS, ErrOpenFailure)
			case !hasProjection:
				projection, hasProjection = metadata.Projection, true
			case metadata.Projection != projection:
				return fmt.Errorf("%s: projection %q differs from %q: %w", filename, metadata.Projection, projection, ErrOpenFailure)
			}
		}
		c.bounds[filename] = metadata.Bounds()
	}
	if hasProjection {
		var err error
		if c.transformer, err = newCoordTransformer(c.inputCRS, projection); err != nil {
			return err
		}
	}
	c.logger.Debug().Int("files", len(c.bounds)).Msg("catalog")
	return nil
}

// getSampler opens the sampler for filename. If the file cannot be opened
// then it is remembered as missing.
func (c *Catalog) getSampler(filename string) (*Sampler, error) {
	switch sampler, err := OpenFS(c.fsys, filename, c.samplerOptions...); {
	case errors.Is(err, ErrFileNotFound):
		c.missingFiles.Store(filename, struct{}{})
		c.logger.Warn().Str("filename", filename).Msg("missing")
		return nil, nil
	case err != nil:
		return nil, err
	default:
		c.logger.Debug().Str("filename", filename).Msg("open")
		return sampler, nil
	}
}

// getSamplerCached returns the sampler for filename, using the cache if
// possible.
func (c *Catalog) getSamplerCached(filename string) (*Sampler, error) {
	if _, ok := c.missingFiles.Load(filename); ok {
		missingFileCacheHits.Inc()
		return nil, nil
	}

	if sampler, ok := c.samplerCache.Get(filename); ok {
		samplerCacheHits.Inc()
		return sampler, nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.missingFiles.Load(filename); ok {
		missingFileCacheHits.Inc()
		return nil, nil
	}

	if sampler, ok := c.samplerCache.Get(filename); ok {
		samplerCacheHits.Inc()
		return sampler, nil
	}

	samplerCacheMisses.Inc()

	sampler, err := c.getSampler(filename)
	if err != nil || sampler == nil {
		return nil, err
	}

	if eviction := c.samplerCache.Add(filename, sampler); eviction {
		samplerCacheEvictions.Inc()
	}

	return sampler, nil
}
