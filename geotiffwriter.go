package dem

import (
	"bytes"
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/klauspost/compress/zlib"
)

const (
	tiffTypeASCII  = 2
	tiffTypeShort  = 3
	tiffTypeLong   = 4
	tiffTypeDouble = 12

	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfiguration = 284
	tagPredictor           = 317
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGDALNoData          = 42113

	modelTypeUserDefined  = userDefined
	rasterTypePixelIsArea = 1

	defaultStripSize = 64 << 10
)

// A tiffByteOrder encodes and appends integers in a TIFF's byte order.
type tiffByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// A tiffEntry is an IFD entry with its encoded value.
type tiffEntry struct {
	tag      uint16
	tiffType uint16
	count    int
	data     []byte
}

type tiffEntryEncoder struct {
	byteOrder tiffByteOrder
	entries   []tiffEntry
}

func (e *tiffEntryEncoder) shorts(tag uint16, values ...uint16) {
	var data []byte
	for _, value := range values {
		data = e.byteOrder.AppendUint16(data, value)
	}
	e.entries = append(e.entries, tiffEntry{tag: tag, tiffType: tiffTypeShort, count: len(values), data: data})
}

func (e *tiffEntryEncoder) longs(tag uint16, values ...uint32) {
	var data []byte
	for _, value := range values {
		data = e.byteOrder.AppendUint32(data, value)
	}
	e.entries = append(e.entries, tiffEntry{tag: tag, tiffType: tiffTypeLong, count: len(values), data: data})
}

func (e *tiffEntryEncoder) doubles(tag uint16, values ...float64) {
	var data []byte
	for _, value := range values {
		data = e.byteOrder.AppendUint64(data, math.Float64bits(value))
	}
	e.entries = append(e.entries, tiffEntry{tag: tag, tiffType: tiffTypeDouble, count: len(values), data: data})
}

func (e *tiffEntryEncoder) ascii(tag uint16, value string) {
	data := append([]byte(value), 0)
	e.entries = append(e.entries, tiffEntry{tag: tag, tiffType: tiffTypeASCII, count: len(data), data: data})
}

// encodeTIFF returns a classic TIFF file with a single IFD containing
// entries followed by blocks. The values of offsetsTag and byteCountsTag are
// filled in from blocks. Empty blocks are written as sparse blocks.
func (e *tiffEntryEncoder) encodeTIFF(blocks [][]byte, offsetsTag, byteCountsTag uint16) ([]byte, error) {
	e.longs(offsetsTag, make([]uint32, len(blocks))...)
	e.longs(byteCountsTag, make([]uint32, len(blocks))...)
	entries := slices.SortedFunc(slices.Values(e.entries), func(a, b tiffEntry) int {
		return cmp.Compare(a.tag, b.tag)
	})

	const ifdOffset = 8
	valuesOffset := ifdOffset + 2 + 12*len(entries) + 4
	valuesSize := 0
	for _, entry := range entries {
		if len(entry.data) > 4 {
			valuesSize += len(entry.data) + len(entry.data)%2
		}
	}
	blocksSize := 0
	for _, block := range blocks {
		blocksSize += len(block)
	}
	if size := valuesOffset + valuesSize + blocksSize; size > math.MaxUint32 {
		return nil, fmt.Errorf("%d bytes: too large for a classic TIFF", size)
	}

	for _, entry := range entries {
		switch entry.tag {
		case offsetsTag:
			offset := valuesOffset + valuesSize
			for i, block := range blocks {
				if len(block) == 0 {
					continue
				}
				e.byteOrder.PutUint32(entry.data[4*i:], uint32(offset))
				offset += len(block)
			}
		case byteCountsTag:
			for i, block := range blocks {
				e.byteOrder.PutUint32(entry.data[4*i:], uint32(len(block)))
			}
		}
	}

	var header []byte
	if e.byteOrder == tiffByteOrder(binary.BigEndian) {
		header = []byte("MM")
	} else {
		header = []byte("II")
	}
	header = e.byteOrder.AppendUint16(header, 42)
	header = e.byteOrder.AppendUint32(header, ifdOffset)

	buf := bytes.NewBuffer(header)
	buf.Write(e.byteOrder.AppendUint16(nil, uint16(len(entries))))
	values := make([]byte, 0, valuesSize)
	for _, entry := range entries {
		buf.Write(e.byteOrder.AppendUint16(nil, entry.tag))
		buf.Write(e.byteOrder.AppendUint16(nil, entry.tiffType))
		buf.Write(e.byteOrder.AppendUint32(nil, uint32(entry.count)))
		if len(entry.data) <= 4 {
			var inline [4]byte
			copy(inline[:], entry.data)
			buf.Write(inline[:])
			continue
		}
		buf.Write(e.byteOrder.AppendUint32(nil, uint32(valuesOffset+len(values))))
		values = append(values, entry.data...)
		if len(entry.data)%2 == 1 {
			values = append(values, 0)
		}
	}
	buf.Write(e.byteOrder.AppendUint32(nil, 0))
	buf.Write(values)
	for _, block := range blocks {
		buf.Write(block)
	}
	return buf.Bytes(), nil
}

// A GeoTIFFWriterOption sets an option when writing a GeoTIFF.
type GeoTIFFWriterOption func(*geoTIFFWriter)

type geoTIFFWriter struct {
	deflate      bool
	predictor    bool
	tileWidth    int
	tileLength   int
	rowsPerStrip int
}

// WithDeflate sets whether blocks are Deflate compressed. Horizontal
// differencing is used for integer samples.
func WithDeflate(deflate bool) GeoTIFFWriterOption {
	return func(w *geoTIFFWriter) {
		w.deflate = deflate
		w.predictor = deflate
	}
}

// WithRowsPerStrip sets the number of rows in each strip. The default is
// chosen so that each strip is about 64KiB.
func WithRowsPerStrip(rowsPerStrip int) GeoTIFFWriterOption {
	return func(w *geoTIFFWriter) {
		w.rowsPerStrip = rowsPerStrip
	}
}

// WithTileSize sets the size of tiles. Both must be multiples of 16.
func WithTileSize(tileWidth, tileLength int) GeoTIFFWriterOption {
	return func(w *geoTIFFWriter) {
		w.tileWidth = tileWidth
		w.tileLength = tileLength
	}
}

// WriteGeoTIFF writes every band of ds to w as a little-endian GeoTIFF. All
// bands must share a data type. The projection is written as the GeoTIFF
// citation, which OpenGeoTIFF reads back unchanged.
func WriteGeoTIFF(ctx context.Context, w io.Writer, ds Dataset, options ...GeoTIFFWriterOption) error {
	gw := &geoTIFFWriter{}
	for _, option := range options {
		option(gw)
	}

	rows, columns := ds.Size()
	if rows < 1 || columns < 1 {
		return fmt.Errorf("%dx%d: %w", rows, columns, ErrEmptyWindow)
	}
	bandCount := ds.BandCount()
	if bandCount < 1 {
		return ErrInvalidBand
	}
	dataType := ds.DataType(1)
	for band := 2; band <= bandCount; band++ {
		if ds.DataType(band) != dataType {
			return fmt.Errorf("band %d: mixed data types: %w", band, errors.ErrUnsupported)
		}
	}
	sampleFormat, ok := dataType.tiffSampleFormat()
	if !ok {
		return fmt.Errorf("%s: %w", dataType, errors.ErrUnsupported)
	}
	geoTransform, err := ds.GeoTransform()
	hasGeoTransform := err == nil
	if err != nil && !errors.Is(err, ErrTransformUnavailable) {
		return err
	}

	tiled := gw.tileWidth > 0 && gw.tileLength > 0
	if tiled && (gw.tileWidth%16 != 0 || gw.tileLength%16 != 0) {
		return fmt.Errorf("%dx%d: tile size must be a multiple of 16", gw.tileWidth, gw.tileLength)
	}
	blockWidth, blockLength := gw.tileWidth, gw.tileLength
	if !tiled {
		blockWidth = columns
		blockLength = gw.rowsPerStrip
		if blockLength <= 0 {
			blockLength = max(defaultStripSize/(columns*bandCount*dataType.Size()), 1)
		}
		blockLength = min(blockLength, rows)
	}
	blocksAcross := (columns + blockWidth - 1) / blockWidth
	blocksDown := (rows + blockLength - 1) / blockLength
	predictor := gw.predictor && dataType != Float32 && dataType != Float64

	byteOrder := binary.LittleEndian
	blocks := make([][]byte, 0, blocksAcross*blocksDown)
	for blockRow := range blocksDown {
		if err := ctx.Err(); err != nil {
			return err
		}
		for blockColumn := range blocksAcross {
			blockRows := blockLength
			if !tiled {
				blockRows = min(blockLength, rows-blockRow*blockLength)
			}
			data := make([]byte, 0, blockWidth*blockRows*bandCount*dataType.Size())
			for r := range blockRows {
				for c := range blockWidth {
					row, column := blockRow*blockLength+r, blockColumn*blockWidth+c
					for band := 1; band <= bandCount; band++ {
						value := 0.0
						if row < rows && column < columns {
							if value, err = ds.ReadPixel(ctx, band, row, column); err != nil {
								return err
							}
						}
						data = dataType.appendSample(data, byteOrder, value)
					}
				}
			}
			if predictor {
				applyHorizontalPredictor(data, byteOrder, dataType.Size(), blockRows, blockWidth*bandCount, bandCount)
			}
			if gw.deflate {
				if data, err = deflate(data); err != nil {
					return err
				}
			}
			blocks = append(blocks, data)
		}
	}

	e := &tiffEntryEncoder{byteOrder: byteOrder}
	e.longs(tagImageWidth, uint32(columns))
	e.longs(tagImageLength, uint32(rows))
	e.shorts(tagBitsPerSample, slices.Repeat([]uint16{uint16(8 * dataType.Size())}, bandCount)...)
	e.shorts(tagSamplesPerPixel, uint16(bandCount))
	e.shorts(tagSampleFormat, slices.Repeat([]uint16{sampleFormat}, bandCount)...)
	e.shorts(tagPlanarConfiguration, planarConfigurationChunky)
	if gw.deflate {
		e.shorts(tagCompression, compressionAdobeDeflate)
	} else {
		e.shorts(tagCompression, compressionNone)
	}
	if predictor {
		e.shorts(tagPredictor, predictorHorizontal)
	}
	offsetsTag, byteCountsTag := uint16(tagStripOffsets), uint16(tagStripByteCounts)
	if tiled {
		offsetsTag, byteCountsTag = tagTileOffsets, tagTileByteCounts
		e.longs(tagTileWidth, uint32(blockWidth))
		e.longs(tagTileLength, uint32(blockLength))
	} else {
		e.longs(tagRowsPerStrip, uint32(blockLength))
	}

	switch t := geoTransform; {
	case !hasGeoTransform:
	case t[2] == 0 && t[4] == 0:
		e.doubles(tagModelPixelScale, t[1], -t[5], 0)
		e.doubles(tagModelTiepoint, 0, 0, 0, t[0], t[3], 0)
	default:
		e.doubles(tagModelTransformation,
			t[1], t[2], 0, t[0],
			t[4], t[5], 0, t[3],
			0, 0, 0, 0,
			0, 0, 0, 1,
		)
	}
	if projection := ds.Projection(); len(projection) >= math.MaxUint16 {
		return fmt.Errorf("projection too long: %d bytes", len(projection))
	} else if projection != "" {
		e.shorts(tagGeoKeyDirectory,
			1, 1, 0, 3,
			uint16(GeoKeyGTModelType), 0, 1, modelTypeUserDefined,
			uint16(GeoKeyGTRasterType), 0, 1, rasterTypePixelIsArea,
			uint16(GeoKeyGTCitation), tagGeoASCIIParams, uint16(len(projection)+1), 0,
		)
		e.ascii(tagGeoASCIIParams, projection+"|")
	} else {
		e.shorts(tagGeoKeyDirectory,
			1, 1, 0, 1,
			uint16(GeoKeyGTRasterType), 0, 1, rasterTypePixelIsArea,
		)
	}
	if noData, ok := ds.NoDataValue(1); ok {
		e.ascii(tagGDALNoData, strconv.FormatFloat(noData, 'g', -1, 64))
	}

	data, err := e.encodeTIFF(blocks, offsetsTag, byteCountsTag)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// appendSample appends value encoded as a sample of type t.
func (t DataType) appendSample(b []byte, byteOrder tiffByteOrder, value float64) []byte {
	switch t {
	case Byte:
		return append(b, uint8(value))
	case UInt16:
		return byteOrder.AppendUint16(b, uint16(value))
	case Int16:
		return byteOrder.AppendUint16(b, uint16(int16(value)))
	case UInt32:
		return byteOrder.AppendUint32(b, uint32(value))
	case Int32:
		return byteOrder.AppendUint32(b, uint32(int32(value)))
	case Float32:
		return byteOrder.AppendUint32(b, math.Float32bits(float32(value)))
	default:
		return byteOrder.AppendUint64(b, math.Float64bits(value))
	}
}

// tiffSampleFormat returns the TIFF SampleFormat of t.
func (t DataType) tiffSampleFormat() (uint16, bool) {
	switch t {
	case Byte, UInt16, UInt32:
		return 1, true
	case Int16, Int32:
		return 2, true
	case Float32, Float64:
		return 3, true
	default:
		return 0, false
	}
}

// applyHorizontalPredictor replaces each integer sample in data with its
// difference from the same sample of the previous pixel.
func applyHorizontalPredictor(data []byte, byteOrder tiffByteOrder, sampleSize, rows, rowStride, samplesPerPixel int) {
	for row := range rows {
		for i := (row+1)*rowStride - 1; i >= row*rowStride+samplesPerPixel; i-- {
			j := i - samplesPerPixel
			switch sampleSize {
			case 1:
				data[i] -= data[j]
			case 2:
				byteOrder.PutUint16(data[2*i:], byteOrder.Uint16(data[2*i:])-byteOrder.Uint16(data[2*j:]))
			case 4:
				byteOrder.PutUint32(data[4*i:], byteOrder.Uint32(data[4*i:])-byteOrder.Uint32(data[4*j:]))
			}
		}
	}
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
