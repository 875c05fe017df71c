package dem

import "math"

// A DataType is the encoding of a band's samples.
type DataType int

const (
	Unknown DataType = iota
	Byte
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
)

var dataTypeNames = map[DataType]string{
	Unknown: "Unknown",
	Byte:    "Byte",
	UInt16:  "UInt16",
	Int16:   "Int16",
	UInt32:  "UInt32",
	Int32:   "Int32",
	Float32: "Float32",
	Float64: "Float64",
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return dataTypeNames[Unknown]
}

// Size returns the size of a single sample in bytes.
func (t DataType) Size() int {
	switch t {
	case Byte:
		return 1
	case UInt16, Int16:
		return 2
	case UInt32, Int32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// Lowest returns the most negative value representable by t. It is the
// default no-data fallback.
func (t DataType) Lowest() float64 {
	switch t {
	case Int16:
		return math.MinInt16
	case Int32:
		return math.MinInt32
	case Float32:
		return -math.MaxFloat32
	case Float64:
		return -math.MaxFloat64
	default:
		return 0
	}
}

// Convert returns value as it would be stored in a sample of type t.
func (t DataType) Convert(value float64) float64 {
	switch t {
	case Byte:
		return float64(uint8(value))
	case UInt16:
		return float64(uint16(value))
	case Int16:
		return float64(int16(value))
	case UInt32:
		return float64(uint32(value))
	case Int32:
		return float64(int32(value))
	case Float32:
		return float64(float32(value))
	default:
		return value
	}
}

// dataTypeFromTIFF returns the DataType for a TIFF SampleFormat and
// BitsPerSample pair.
func dataTypeFromTIFF(sampleFormat, bitsPerSample uint16) (DataType, bool) {
	switch sampleFormat {
	case 0, 1: // Unsigned integer, the default.
		switch bitsPerSample {
		case 8:
			return Byte, true
		case 16:
			return UInt16, true
		case 32:
			return UInt32, true
		}
	case 2: // Signed integer.
		switch bitsPerSample {
		case 16:
			return Int16, true
		case 32:
			return Int32, true
		}
	case 3: // IEEE floating point.
		switch bitsPerSample {
		case 32:
			return Float32, true
		case 64:
			return Float64, true
		}
	}
	return Unknown, false
}
