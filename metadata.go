package dem

import (
	"fmt"
	"strconv"
	"strings"
)

// Metadata describes one band of a raster.
type Metadata struct {
	Band        int
	Rows        int
	Columns     int
	YMin        float64 // Southern edge.
	XMin        float64 // Western edge.
	YMax        float64 // Northern edge.
	XMax        float64 // Eastern edge.
	YResolution float64 // Usually negative, row 0 is north.
	XResolution float64
	NoData      float64
	DataType    DataType
	Projection  string
}

// checkBand returns an error wrapping ErrInvalidBand if ds has no band band.
func checkBand(ds Dataset, band int) error {
	if bandCount := ds.BandCount(); band < 1 || band > bandCount {
		return fmt.Errorf("%d of %d: %w", band, bandCount, ErrInvalidBand)
	}
	return nil
}

// NewMetadata returns the Metadata of band of ds. If ds declares no no-data
// value, or declares zero, then noDataFallback is used instead.
func NewMetadata(ds Dataset, band int, noDataFallback float64) (*Metadata, error) {
	if err := checkBand(ds, band); err != nil {
		return nil, err
	}

	t, err := ds.GeoTransform()
	if err != nil {
		return nil, err
	}
	if t[1] == 0 || t[5] == 0 {
		return nil, fmt.Errorf("zero resolution: %w", ErrTransformUnavailable)
	}

	rows, columns := ds.Size()
	noData, ok := ds.NoDataValue(band)
	if !ok || noData == 0 {
		noData = noDataFallback
	}

	return &Metadata{
		Band:        band,
		Rows:        rows,
		Columns:     columns,
		XResolution: t[1],
		YResolution: t[5],
		XMin:        t[0],
		YMax:        t[3],
		XMax:        t[0] + float64(columns)*t[1] + float64(rows)*t[2],
		YMin:        t[3] + float64(columns)*t[4] + float64(rows)*t[5],
		NoData:      noData,
		DataType:    ds.DataType(band),
		Projection:  ds.Projection(),
	}, nil
}

// Bounds returns m's bounding box.
func (m *Metadata) Bounds() Bounds {
	return NewBounds(m.YMin, m.XMin, m.YMax, m.XMax)
}

func (m *Metadata) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Projection : %s\n", m.Projection)
	fmt.Fprintf(&sb, "Data Type : %s\n", m.DataType)
	fmt.Fprintf(&sb, "Rows : %d\n", m.Rows)
	fmt.Fprintf(&sb, "Columns : %d\n", m.Columns)
	fmt.Fprintf(&sb, "Resolution (latitudinal, longitudinal) : (%s, %s)\n", formatFloat(m.YResolution), formatFloat(m.XResolution))
	sb.WriteString("Bounded Region {\n")
	fmt.Fprintf(&sb, "    North West : (%s, %s)\n", formatFloat(m.YMax), formatFloat(m.XMin))
	fmt.Fprintf(&sb, "    South East : (%s, %s)\n", formatFloat(m.YMin), formatFloat(m.XMax))
	sb.WriteString("}\n")
	fmt.Fprintf(&sb, "No Data Value : %s", formatFloat(m.NoData))
	return sb.String()
}

// Describe returns a description of every band of ds.
func Describe(ds Dataset) (string, error) {
	t, err := ds.GeoTransform()
	if err != nil {
		return "", err
	}
	rows, columns := ds.Size()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Projection : %s\n", ds.Projection())
	fmt.Fprintf(&sb, "Rows : %d\n", rows)
	fmt.Fprintf(&sb, "Columns : %d\n", columns)
	fmt.Fprintf(&sb, "Resolution (latitudinal, longitudinal) : (%s, %s)\n", formatFloat(t[5]), formatFloat(t[1]))
	sb.WriteString("Bounded Region {\n")
	fmt.Fprintf(&sb, "    North West : (%s, %s)\n", formatFloat(t[3]), formatFloat(t[0]))
	fmt.Fprintf(&sb, "    South East : (%s, %s)\n",
		formatFloat(t[3]+float64(columns)*t[4]+float64(rows)*t[5]),
		formatFloat(t[0]+float64(columns)*t[1]+float64(rows)*t[2]),
	)
	sb.WriteString("}\n")
	for band := 1; band <= ds.BandCount(); band++ {
		noData := "none"
		if value, ok := ds.NoDataValue(band); ok {
			noData = formatFloat(value)
		}
		fmt.Fprintf(&sb, "Raster (%d) {\n", band)
		fmt.Fprintf(&sb, "    Data Type : %s\n", ds.DataType(band))
		fmt.Fprintf(&sb, "    No Data Value : %s\n", noData)
		sb.WriteString("}\n")
	}
	return sb.String(), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
