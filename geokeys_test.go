package dem

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
)

const etrs89LAEAWKT = "PROJCS[\"ETRS89_ETRS_LAEA\",GEOGCS[\"GCS_ETRS_1989\",DATUM[\"D_ETRS_1989\",SPHEROID[\"GRS_1980\",6378137.0,298.257222101]],PRIMEM[\"Greenwich\",0.0],UNIT[\"Degree\",0.0174532925199433]],PROJECTION[\"Lambert_Azimuthal_Equal_Area\"],PARAMETER[\"false_easting\",4321000.0],PARAMETER[\"false_northing\",3210000.0],PARAMETER[\"central_meridian\",10.0],PARAMETER[\"latitude_of_origin\",52.0],UNIT[\"Meter\",1.0]]"

func TestParseGeoKeys(t *testing.T) {
	directory := []uint16{
		1, 1, 0, 22,
		1024, 0, 1, 1,
		1025, 0, 1, 1,
		1026, 34737, 28, 0,
		2048, 0, 1, 4258,
		2049, 34737, 86, 28,
		2050, 0, 1, 6258,
		2051, 0, 1, 8901,
		2054, 0, 1, 9102,
		2055, 34736, 1, 4,
		2056, 0, 1, 7019,
		2057, 34736, 1, 5,
		2059, 34736, 1, 6,
		2061, 34736, 1, 7,
		3072, 0, 1, 32767,
		3073, 34737, 400, 114,
		3074, 0, 1, 32767,
		3075, 0, 1, 10,
		3076, 0, 1, 9001,
		3082, 34736, 1, 2,
		3083, 34736, 1, 3,
		3088, 34736, 1, 1,
		3089, 34736, 1, 0,
	}
	doubleParams := []float64{
		52,
		10,
		4321000,
		3210000,
		0.0174532925199433,
		6378137, 298.257222101,
		0,
	}
	asciiParams := []byte("" +
		"PCS Name = ETRS89_ETRS_LAEA|" +
		"GCS Name = GCS_ETRS_1989|Datum = D_ETRS_1989|Ellipsoid = GRS_1980|Primem = Greenwich||" +
		"ESRI PE String = " + etrs89LAEAWKT + "|",
	)

	actual, err := ParseGeoKeys(directory, doubleParams, asciiParams)
	assert.NoError(t, err)

	assert.Equal(t, map[GeoKey]int{
		GeoKeyGTModelType:   1,
		GeoKeyGTRasterType:  1,
		GeoKeyGeodeticCRS:   4258,
		GeoKeyGeodeticDatum: 6258,
		2051:                8901,
		GeoKeyAngularUnits:  9102,
		2056:                7019,
		GeoKeyProjection:    32767,
		3075:                10,
		GeoKeyLinearUnits:   9001,
		GeoKeyProjectedCRS:  32767,
	}, actual.Params)
	assert.Equal(t, map[GeoKey]float64{
		2055: 0.0174532925199433,
		2057: 6378137,
		2059: 298.257222101,
		2061: 0,
		3082: 4321000,
		3083: 3210000,
		3088: 10,
		3089: 52,
	}, actual.DoubleParams)
	assert.Equal(t, "PCS Name = ETRS89_ETRS_LAEA|", actual.ASCIIParams[GeoKeyGTCitation])
	assert.Equal(t, "ESRI PE String = "+etrs89LAEAWKT+"|", actual.ASCIIParams[GeoKeyPCSCitation])

	assert.False(t, actual.PixelIsPoint())
	assert.Equal(t, etrs89LAEAWKT, actual.Projection())
}

func TestParseGeoKeysErrors(t *testing.T) {
	for _, tc := range []struct {
		name         string
		directory    []uint16
		doubleParams []float64
		asciiParams  []byte
	}{
		{
			name:      "short",
			directory: []uint16{1, 1, 0},
		},
		{
			name:      "version",
			directory: []uint16{2, 1, 0, 0},
		},
		{
			name:      "key_count",
			directory: []uint16{1, 1, 0, 2, 1024, 0, 1, 1},
		},
		{
			name:      "double_index",
			directory: []uint16{1, 1, 0, 1, 2057, 34736, 1, 3},
		},
		{
			name:        "ascii_index",
			directory:   []uint16{1, 1, 0, 1, 1026, 34737, 10, 0},
			asciiParams: []byte("short|"),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGeoKeys(tc.directory, tc.doubleParams, tc.asciiParams)
			assert.True(t, errors.Is(err, errParse))
		})
	}
}

func TestParsedGeoKeysProjection(t *testing.T) {
	for _, tc := range []struct {
		name     string
		geoKeys  ParsedGeoKeys
		expected string
	}{
		{
			name: "projected_epsg",
			geoKeys: ParsedGeoKeys{
				Params: map[GeoKey]int{
					GeoKeyGTModelType:  1,
					GeoKeyProjectedCRS: 3035,
				},
			},
			expected: "EPSG:3035",
		},
		{
			name: "geographic_epsg",
			geoKeys: ParsedGeoKeys{
				Params: map[GeoKey]int{
					GeoKeyGTModelType:  2,
					GeoKeyGeodeticCRS:  4326,
					GeoKeyProjectedCRS: 3035,
				},
			},
			expected: "EPSG:4326",
		},
		{
			name: "citation",
			geoKeys: ParsedGeoKeys{
				Params: map[GeoKey]int{
					GeoKeyGTModelType:  1,
					GeoKeyProjectedCRS: 32767,
				},
				ASCIIParams: map[GeoKey]string{
					GeoKeyGTCitation: "WGS 84 / UTM zone 32N|",
				},
			},
			expected: "WGS 84 / UTM zone 32N",
		},
		{
			name:     "empty",
			expected: "",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.geoKeys.Projection())
		})
	}
}

func TestParsedGeoKeysPixelIsPoint(t *testing.T) {
	geoKeys := ParsedGeoKeys{
		Params: map[GeoKey]int{
			GeoKeyGTRasterType: 2,
		},
	}
	assert.True(t, geoKeys.PixelIsPoint())
}
