package dem

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errParse = errors.New("parse error")

// A GeoKey is a GeoTIFF key.
type GeoKey uint16

const (
	GeoKeyGTModelType  GeoKey = 1024
	GeoKeyGTRasterType GeoKey = 1025
	GeoKeyGTCitation   GeoKey = 1026

	GeoKeyGeodeticCRS   GeoKey = 2048
	GeoKeyGeogCitation  GeoKey = 2049
	GeoKeyGeodeticDatum GeoKey = 2050
	GeoKeyAngularUnits  GeoKey = 2054

	GeoKeyProjectedCRS GeoKey = 3072
	GeoKeyPCSCitation  GeoKey = 3073
	GeoKeyProjection   GeoKey = 3074
	GeoKeyLinearUnits  GeoKey = 3076

	GeoKeyVertical GeoKey = 4096
)

const (
	modelTypeGeographic = 2

	rasterTypePixelIsPoint = 2

	userDefined = 32767
)

// esriPEStringPrefix prefixes WKT in citations written by ESRI software.
const esriPEStringPrefix = "ESRI PE String = "

const (
	tagGeoDoubleParams = 34736
	tagGeoASCIIParams  = 34737
)

// ParsedGeoKeys are the values of a GeoTIFF key directory.
type ParsedGeoKeys struct {
	Params       map[GeoKey]int
	DoubleParams map[GeoKey]float64
	ASCIIParams  map[GeoKey]string
}

// ParseGeoKeys parses a GeoKeyDirectoryTag and its referenced parameters.
func ParseGeoKeys(directory []uint16, doubleParams []float64, asciiParams []byte) (*ParsedGeoKeys, error) {
	if len(directory) < 4 {
		return nil, fmt.Errorf("%w: short key directory", errParse)
	}

	if keyDirectoryVersion := int(directory[0]); keyDirectoryVersion != 1 {
		return nil, fmt.Errorf("%w: key directory version %d", errParse, keyDirectoryVersion)
	}
	if keyRevision := int(directory[1]); keyRevision != 1 {
		return nil, fmt.Errorf("%w: key revision %d", errParse, keyRevision)
	}
	if minorRevision := int(directory[2]); minorRevision != 0 && minorRevision != 1 {
		return nil, fmt.Errorf("%w: minor revision %d", errParse, minorRevision)
	}
	numberOfKeys := int(directory[3])
	if len(directory) != 4+4*numberOfKeys {
		return nil, fmt.Errorf("%w: %d keys in %d entries", errParse, numberOfKeys, len(directory))
	}

	parsedGeoKeys := &ParsedGeoKeys{
		Params:       make(map[GeoKey]int),
		DoubleParams: make(map[GeoKey]float64),
		ASCIIParams:  make(map[GeoKey]string),
	}
	for i := range numberOfKeys {
		keyValues := directory[4+4*i : 4+4*(i+1)]
		key := GeoKey(keyValues[0])
		tiffTagLocation := int(keyValues[1])
		numberOfValues := int(keyValues[2])
		switch tiffTagLocation {
		case 0:
			if numberOfValues != 1 {
				return nil, fmt.Errorf("%w: key %d: %d values", errParse, key, numberOfValues)
			}
			parsedGeoKeys.Params[key] = int(keyValues[3])
		case tagGeoDoubleParams:
			index := int(keyValues[3])
			if numberOfValues != 1 {
				return nil, errors.ErrUnsupported
			}
			if index >= len(doubleParams) {
				return nil, fmt.Errorf("%w: key %d: double index %d", errParse, key, index)
			}
			parsedGeoKeys.DoubleParams[key] = doubleParams[index]
		case tagGeoASCIIParams:
			index := int(keyValues[3])
			if index+numberOfValues > len(asciiParams) {
				return nil, fmt.Errorf("%w: key %d: ASCII index %d", errParse, key, index)
			}
			parsedGeoKeys.ASCIIParams[key] = string(asciiParams[index : index+numberOfValues])
		default:
			return nil, errors.ErrUnsupported
		}
	}
	return parsedGeoKeys, nil
}

// PixelIsPoint returns whether raster coordinates refer to pixel centers.
func (k *ParsedGeoKeys) PixelIsPoint() bool {
	return k.Params[GeoKeyGTRasterType] == rasterTypePixelIsPoint
}

// Projection returns a description of the coordinate reference system
// described by k, preferably as an EPSG code.
func (k *ParsedGeoKeys) Projection() string {
	var codeKey, citationKey GeoKey
	switch k.Params[GeoKeyGTModelType] {
	case modelTypeGeographic:
		codeKey, citationKey = GeoKeyGeodeticCRS, GeoKeyGeogCitation
	default:
		codeKey, citationKey = GeoKeyProjectedCRS, GeoKeyPCSCitation
	}
	if code, ok := k.Params[codeKey]; ok && code != 0 && code != userDefined {
		return "EPSG:" + strconv.Itoa(code)
	}
	for _, key := range []GeoKey{citationKey, GeoKeyGTCitation} {
		citation := strings.TrimRight(k.ASCIIParams[key], "|\x00")
		if wkt, ok := strings.CutPrefix(citation, esriPEStringPrefix); ok {
			return wkt
		}
		if citation != "" {
			return citation
		}
	}
	return ""
}
