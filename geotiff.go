package dem

import (
	"bytes"
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"strconv"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	"github.com/klauspost/compress/zlib"
	"github.com/maypok86/otter/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/image/tiff/lzw"
)

const (
	compressionNone         = 1
	compressionLZW          = 5
	compressionAdobeDeflate = 8
	compressionDeflate      = 32946

	predictorNone       = 1
	predictorHorizontal = 2

	planarConfigurationChunky = 1
	planarConfigurationPlanar = 2
)

var (
	errShortRead = errors.New("short read")

	blockDecodes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dem_block_decodes_total",
		Help: "The total number of GeoTIFF blocks decoded",
	})
)

// A GeoTIFF is an open GeoTIFF file. It implements Dataset.
//
// Pixels are stored in blocks, which are either tiles or strips. Decoded
// blocks are cached.
type GeoTIFF struct {
	file                fs.File
	r                   io.ReaderAt
	byteOrder           binary.ByteOrder
	rows                int
	columns             int
	bandCount           int
	dataType            DataType
	planar              bool
	tiled               bool
	compression         uint16
	predictor           uint16
	blockWidth          int
	blockLength         int
	blocksAcross        int
	blocksDown          int
	blockOffsets        []uint64
	blockByteCounts     []uint64
	geoTransform        GeoTransform
	hasGeoTransform     bool
	projection          string
	noData              float64
	hasNoData           bool
	blockCacheSizeBytes int
	blockCache          *otter.Cache[blockKey, []float64]
}

// A GeoTIFFOption sets an option on a GeoTIFF.
type GeoTIFFOption func(*GeoTIFF)

// A blockKey identifies a block. Plane is always zero for chunky files.
type blockKey struct {
	plane int
	index int
}

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth             uint32    `tiff:"field,tag=256"`
	ImageLength            uint32    `tiff:"field,tag=257"`
	BitsPerSample          []uint16  `tiff:"field,tag=258"`
	Compression            uint16    `tiff:"field,tag=259"`
	StripOffsets           []uint64  `tiff:"field,tag=273"`
	SamplesPerPixel        uint16    `tiff:"field,tag=277"`
	RowsPerStrip           uint32    `tiff:"field,tag=278"`
	StripByteCounts        []uint64  `tiff:"field,tag=279"`
	PlanarConfiguration    uint16    `tiff:"field,tag=284"`
	Predictor              uint16    `tiff:"field,tag=317"`
	TileWidth              uint32    `tiff:"field,tag=322"`
	TileLength             uint32    `tiff:"field,tag=323"`
	TileOffsets            []uint64  `tiff:"field,tag=324"`
	TileByteCounts         []uint64  `tiff:"field,tag=325"`
	SampleFormat           []uint16  `tiff:"field,tag=339"`
	ModelPixelScaleTag     []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag       []float64 `tiff:"field,tag=33922"`
	ModelTransformationTag []float64 `tiff:"field,tag=34264"`
	GeoKeyDirectoryTag     []uint16  `tiff:"field,tag=34735"`
	GeoDoubleParamsTag     []float64 `tiff:"field,tag=34736"`
	GeoASCIIParamsTag      string    `tiff:"field,tag=34737"`
	GDALNoData             string    `tiff:"field,tag=42113"`
}

// OpenGeoTIFF opens the GeoTIFF file name in fsys.
func OpenGeoTIFF(fsys fs.FS, name string, options ...GeoTIFFOption) (*GeoTIFF, error) {
	ok := false

	g := &GeoTIFF{
		blockCacheSizeBytes: 64 << 20, // 64MB.
	}
	for _, option := range options {
		option(g)
	}

	file, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if !ok {
			_ = file.Close()
		}
	}()
	readAtReadSeeker, isReadAtReadSeeker := file.(tiff.ReadAtReadSeeker)
	if !isReadAtReadSeeker {
		return nil, errors.ErrUnsupported
	}
	g.file = file
	g.r = readAtReadSeeker

	if g.byteOrder, err = readByteOrder(readAtReadSeeker); err != nil {
		return nil, err
	}
	tiffTIFF, err := tiff.Parse(readAtReadSeeker, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, err
	}

	// Further IFDs are overviews or masks.
	if len(tiffTIFF.IFDs()) == 0 {
		return nil, errors.New("no IFDs")
	}
	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, err
	}

	if err := g.setLayout(&ifd); err != nil {
		return nil, err
	}
	if err := g.setGeoreferencing(&ifd); err != nil {
		return nil, err
	}
	if noData := strings.TrimSpace(strings.TrimRight(ifd.GDALNoData, "\x00")); noData != "" {
		g.noData, err = strconv.ParseFloat(noData, 64)
		if err != nil {
			return nil, fmt.Errorf("GDAL_NODATA: %w", err)
		}
		g.hasNoData = true
	}

	blockBytes := g.blockWidth * g.blockLength * g.samplesPerBlockPixel() * 8
	g.blockCache, err = otter.New(&otter.Options[blockKey, []float64]{
		MaximumSize: max(g.blockCacheSizeBytes/blockBytes, 1),
	})
	if err != nil {
		return nil, err
	}

	ok = true
	return g, nil
}

// WithBlockCacheSize sets the approximate size in bytes of the decoded block
// cache.
func WithBlockCacheSize(blockCacheSize int) GeoTIFFOption {
	return func(g *GeoTIFF) {
		g.blockCacheSizeBytes = blockCacheSize
	}
}

// setLayout sets g's sample and block layout from ifd.
func (g *GeoTIFF) setLayout(ifd *geoTIFFIFD) error {
	g.rows = int(ifd.ImageLength)
	g.columns = int(ifd.ImageWidth)
	if g.rows == 0 || g.columns == 0 {
		return fmt.Errorf("%dx%d: invalid image size", g.columns, g.rows)
	}

	g.bandCount = int(cmp.Or(ifd.SamplesPerPixel, 1))
	if len(ifd.BitsPerSample) == 0 {
		return errors.New("missing BitsPerSample")
	}
	sampleFormat := uint16(1)
	if len(ifd.SampleFormat) > 0 {
		sampleFormat = ifd.SampleFormat[0]
	}
	for _, bitsPerSample := range ifd.BitsPerSample[1:] {
		if bitsPerSample != ifd.BitsPerSample[0] {
			return errors.ErrUnsupported
		}
	}
	var ok bool
	if g.dataType, ok = dataTypeFromTIFF(sampleFormat, ifd.BitsPerSample[0]); !ok {
		return errors.ErrUnsupported
	}

	switch cmp.Or(ifd.PlanarConfiguration, planarConfigurationChunky) {
	case planarConfigurationChunky:
	case planarConfigurationPlanar:
		g.planar = true
	default:
		return errors.ErrUnsupported
	}

	g.compression = cmp.Or(ifd.Compression, compressionNone)
	switch g.compression {
	case compressionNone, compressionLZW, compressionAdobeDeflate, compressionDeflate:
	default:
		return errors.ErrUnsupported
	}

	g.predictor = cmp.Or(ifd.Predictor, predictorNone)
	switch {
	case g.predictor == predictorNone:
	case g.predictor == predictorHorizontal && g.dataType != Float32 && g.dataType != Float64:
	default:
		return errors.ErrUnsupported
	}

	if ifd.TileWidth != 0 && ifd.TileLength != 0 {
		g.tiled = true
		g.blockWidth = int(ifd.TileWidth)
		g.blockLength = int(ifd.TileLength)
		g.blockOffsets = ifd.TileOffsets
		g.blockByteCounts = ifd.TileByteCounts
	} else {
		g.blockWidth = g.columns
		g.blockLength = min(int(cmp.Or(ifd.RowsPerStrip, uint32(g.rows))), g.rows)
		g.blockOffsets = ifd.StripOffsets
		g.blockByteCounts = ifd.StripByteCounts
	}
	g.blocksAcross = (g.columns + g.blockWidth - 1) / g.blockWidth
	g.blocksDown = (g.rows + g.blockLength - 1) / g.blockLength

	blocksPerImage := g.blocksAcross * g.blocksDown
	if g.planar {
		blocksPerImage *= g.bandCount
	}
	if len(g.blockOffsets) != blocksPerImage || len(g.blockByteCounts) != blocksPerImage {
		return errors.New("incorrect number of block byte counts or offsets")
	}
	return nil
}

// setGeoreferencing sets g's geo-transform and projection from ifd.
func (g *GeoTIFF) setGeoreferencing(ifd *geoTIFFIFD) error {
	var geoKeys *ParsedGeoKeys
	if len(ifd.GeoKeyDirectoryTag) != 0 {
		var err error
		geoKeys, err = ParseGeoKeys(ifd.GeoKeyDirectoryTag, ifd.GeoDoubleParamsTag, []byte(ifd.GeoASCIIParamsTag))
		if err != nil {
			return err
		}
		g.projection = geoKeys.Projection()
	}

	switch m, scale, tiepoint := ifd.ModelTransformationTag, ifd.ModelPixelScaleTag, ifd.ModelTiepointTag; {
	case len(m) == 16:
		g.geoTransform = GeoTransform{m[3], m[0], m[1], m[7], m[4], m[5]}
	case len(scale) >= 2 && len(tiepoint) >= 6:
		i, j := tiepoint[0], tiepoint[1]
		x, y := tiepoint[3], tiepoint[4]
		g.geoTransform = GeoTransform{x - i*scale[0], scale[0], 0, y + j*scale[1], 0, -scale[1]}
	default:
		return nil
	}
	g.hasGeoTransform = true

	// Move the origin from the center to the corner of the first pixel.
	if geoKeys != nil && geoKeys.PixelIsPoint() {
		t := &g.geoTransform
		t[0] -= 0.5*t[1] + 0.5*t[2]
		t[3] -= 0.5*t[4] + 0.5*t[5]
	}
	return nil
}

func (g *GeoTIFF) BandCount() int {
	return g.bandCount
}

func (g *GeoTIFF) Size() (int, int) {
	return g.rows, g.columns
}

func (g *GeoTIFF) GeoTransform() (GeoTransform, error) {
	if !g.hasGeoTransform {
		return GeoTransform{}, ErrTransformUnavailable
	}
	return g.geoTransform, nil
}

func (g *GeoTIFF) Projection() string {
	return g.projection
}

// DataType returns the data type of g's samples, which is the same for all
// bands.
func (g *GeoTIFF) DataType(band int) DataType {
	return g.dataType
}

// NoDataValue returns g's GDAL_NODATA value, which applies to all bands.
func (g *GeoTIFF) NoDataValue(band int) (float64, bool) {
	return g.noData, g.hasNoData
}

func (g *GeoTIFF) Close() error {
	return g.file.Close()
}

// ReadPixel returns the sample of band at (row, column).
func (g *GeoTIFF) ReadPixel(ctx context.Context, band, row, column int) (float64, error) {
	if band < 1 || g.bandCount < band {
		return 0, ErrInvalidBand
	}
	if row < 0 || g.rows <= row || column < 0 || g.columns <= column {
		return 0, fmt.Errorf("(%d, %d): %w", row, column, ErrOutOfRange)
	}

	key := blockKey{
		index: column/g.blockWidth + g.blocksAcross*(row/g.blockLength),
	}
	if g.planar {
		key.plane = band - 1
	}
	blockSamples, err := g.getBlockSamplesCached(ctx, key)
	if err != nil {
		return 0, err
	}

	pixelIndex := column%g.blockWidth + (row%g.blockLength)*g.blockWidth
	if g.planar {
		return blockSamples[pixelIndex], nil
	}
	return blockSamples[pixelIndex*g.bandCount+band-1], nil
}

// samplesPerBlockPixel returns the number of samples per pixel in each block.
func (g *GeoTIFF) samplesPerBlockPixel() int {
	if g.planar {
		return 1
	}
	return g.bandCount
}

// blockRows returns the number of rows stored in the block at key. Strips at
// the bottom of the image may be shorter than the others, tiles never are.
func (g *GeoTIFF) blockRows(key blockKey) int {
	if g.tiled {
		return g.blockLength
	}
	return min(g.blockLength, g.rows-key.index*g.blockLength)
}

// getCompressedBlockData returns the compressed data of the block at key.
func (g *GeoTIFF) getCompressedBlockData(key blockKey) ([]byte, error) {
	blockIndex := key.plane*g.blocksAcross*g.blocksDown + key.index
	blockByteCount := g.blockByteCounts[blockIndex]
	blockOffset := g.blockOffsets[blockIndex]
	compressedData := make([]byte, blockByteCount)
	switch n, err := g.r.ReadAt(compressedData, int64(blockOffset)); {
	case n == int(blockByteCount):
		return compressedData, nil
	case err != nil:
		return nil, err
	default:
		return nil, errShortRead
	}
}

// decompressBlockData decompresses compressedData into size bytes.
func (g *GeoTIFF) decompressBlockData(compressedData []byte, size int) ([]byte, error) {
	var r io.Reader
	switch g.compression {
	case compressionNone:
		if len(compressedData) < size {
			return nil, errShortRead
		}
		return compressedData[:size], nil
	case compressionLZW:
		lzwReader := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
		defer lzwReader.Close()
		r = lzwReader
	case compressionAdobeDeflate, compressionDeflate:
		zlibReader, err := zlib.NewReader(bytes.NewReader(compressedData))
		if err != nil {
			return nil, err
		}
		defer zlibReader.Close()
		r = zlibReader
	}
	blockData := make([]byte, size)
	if _, err := io.ReadFull(r, blockData); err != nil {
		return nil, err
	}
	return blockData, nil
}

// undoHorizontalPredictor reverses horizontal differencing in place.
func (g *GeoTIFF) undoHorizontalPredictor(blockData []byte, rows int) {
	samplesPerPixel := g.samplesPerBlockPixel()
	sampleSize := g.dataType.Size()
	rowStride := g.blockWidth * samplesPerPixel
	for row := range rows {
		for i := row*rowStride + samplesPerPixel; i < (row+1)*rowStride; i++ {
			j := i - samplesPerPixel
			switch sampleSize {
			case 1:
				blockData[i] += blockData[j]
			case 2:
				sum := g.byteOrder.Uint16(blockData[2*i:]) + g.byteOrder.Uint16(blockData[2*j:])
				g.byteOrder.PutUint16(blockData[2*i:], sum)
			case 4:
				sum := g.byteOrder.Uint32(blockData[4*i:]) + g.byteOrder.Uint32(blockData[4*j:])
				g.byteOrder.PutUint32(blockData[4*i:], sum)
			}
		}
	}
}

// decodeBlockData decodes blockData into samples.
func (g *GeoTIFF) decodeBlockData(blockData []byte, blockSamples []float64) {
	sampleSize := g.dataType.Size()
	for i := range len(blockData) / sampleSize {
		b := blockData[i*sampleSize : (i+1)*sampleSize]
		switch g.dataType {
		case Byte:
			blockSamples[i] = float64(b[0])
		case UInt16:
			blockSamples[i] = float64(g.byteOrder.Uint16(b))
		case Int16:
			blockSamples[i] = float64(int16(g.byteOrder.Uint16(b)))
		case UInt32:
			blockSamples[i] = float64(g.byteOrder.Uint32(b))
		case Int32:
			blockSamples[i] = float64(int32(g.byteOrder.Uint32(b)))
		case Float32:
			blockSamples[i] = float64(math.Float32frombits(g.byteOrder.Uint32(b)))
		case Float64:
			blockSamples[i] = math.Float64frombits(g.byteOrder.Uint64(b))
		}
	}
}

// getBlockSamples returns the decoded samples of the block at key. Sparse
// blocks, with no stored data, are filled with the no-data value.
func (g *GeoTIFF) getBlockSamples(ctx context.Context, key blockKey) ([]float64, error) {
	blockSamples := make([]float64, g.blockWidth*g.blockLength*g.samplesPerBlockPixel())

	compressedBlockData, err := g.getCompressedBlockData(key)
	if err != nil {
		return nil, err
	}
	if len(compressedBlockData) == 0 {
		for i := range blockSamples {
			blockSamples[i] = g.noData
		}
		return blockSamples, nil
	}

	rows := g.blockRows(key)
	size := g.blockWidth * rows * g.samplesPerBlockPixel() * g.dataType.Size()
	blockData, err := g.decompressBlockData(compressedBlockData, size)
	if err != nil {
		return nil, err
	}
	if g.predictor == predictorHorizontal {
		g.undoHorizontalPredictor(blockData, rows)
	}
	g.decodeBlockData(blockData, blockSamples)
	blockDecodes.Inc()

	return blockSamples, nil
}

// getBlockSamplesCached returns the block at key using g's cache.
func (g *GeoTIFF) getBlockSamplesCached(ctx context.Context, key blockKey) ([]float64, error) {
	return g.blockCache.Get(ctx, key, otter.LoaderFunc[blockKey, []float64](g.getBlockSamples))
}

// readByteOrder returns the byte order declared in a TIFF header.
func readByteOrder(r io.ReaderAt) (binary.ByteOrder, error) {
	header := make([]byte, 2)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, err
	}
	switch string(header) {
	case "II":
		return binary.LittleEndian, nil
	case "MM":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("%q: invalid byte order", header)
	}
}
