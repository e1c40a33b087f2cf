package tealeaf

import "fmt"

// Binary container constants. Little-endian throughout.
const (
	// Magic is the four-byte file signature of .tlbx containers.
	Magic = "TLBX"
	// VersionMajor is the container major version; readers reject any
	// other major.
	VersionMajor uint16 = 2
	// VersionMinor is the container minor version; minors are
	// compatible within a major.
	VersionMinor uint16 = 0
	// HeaderSize is the fixed byte length of the container header.
	HeaderSize = 64
)

// Header flag bits.
const (
	flagCompressed uint32 = 1 << 0
	flagRootArray  uint32 = 1 << 1
)

// Section index flag bits.
const (
	sectionFlagCompressed byte = 1 << 0
	sectionFlagIsArray    byte = 1 << 1
)

// Schema field flag bits.
const (
	fieldFlagNullable byte = 1 << 0
	fieldFlagArray    byte = 1 << 1
)

// noSchema is the sentinel for "no schema index" in section records and
// the field extra slot.
const noSchema = 0xFFFF

// WireType is the fixed byte enumeration of payload encodings in the
// binary container, mirroring the value kinds with scalar widths
// distinguished.
type WireType byte

// Wire type bytes. The values are part of the .tlbx format and must not
// be reordered.
const (
	WireNull       WireType = 0x00
	WireBool       WireType = 0x01
	WireInt8       WireType = 0x02
	WireInt16      WireType = 0x03
	WireInt32      WireType = 0x04
	WireInt64      WireType = 0x05
	WireUInt8      WireType = 0x06
	WireUInt16     WireType = 0x07
	WireUInt32     WireType = 0x08
	WireUInt64     WireType = 0x09
	WireFloat32    WireType = 0x0A
	WireFloat64    WireType = 0x0B
	WireString     WireType = 0x0C
	WireBytes      WireType = 0x0D
	WireTimestamp  WireType = 0x0E
	WireArray      WireType = 0x0F
	WireObject     WireType = 0x10
	WireStruct     WireType = 0x11
	WireMap        WireType = 0x12
	WireRef        WireType = 0x13
	WireTagged     WireType = 0x14
	WireTuple      WireType = 0x15
	WireJSONNumber WireType = 0x16
)

// heterogeneousMarker replaces the single element-type byte of an array
// payload whose elements do not share one type.
const heterogeneousMarker byte = 0xFF

// parseWireType validates a wire-type byte read from untrusted input.
func parseWireType(b byte) (WireType, error) {
	if b > byte(WireJSONNumber) {
		return 0, fmt.Errorf("%w 0x%02X", ErrUnknownWireType, b)
	}

	return WireType(b), nil
}

// wireType maps a declared field type to its wire encoding. Schema
// references (any non-builtin base) encode as WireStruct.
func (ft FieldType) wireType() WireType {
	switch ft.Base {
	case "bool":
		return WireBool
	case "int8":
		return WireInt8
	case "int16":
		return WireInt16
	case "int32":
		return WireInt32
	case "int", "int64":
		return WireInt64
	case "uint8":
		return WireUInt8
	case "uint16":
		return WireUInt16
	case "uint32":
		return WireUInt32
	case "uint", "uint64":
		return WireUInt64
	case "float32":
		return WireFloat32
	case "float", "float64":
		return WireFloat64
	case "string":
		return WireString
	case "bytes":
		return WireBytes
	case "timestamp":
		return WireTimestamp
	default:
		return WireStruct
	}
}

// baseNameForWire is the inverse of wireType for schema decoding: it
// recovers a field's base type name from its wire byte. Struct types
// carry their schema name in the field's extra slot instead.
func baseNameForWire(t WireType) string {
	switch t {
	case WireBool:
		return "bool"
	case WireInt8:
		return "int8"
	case WireInt16:
		return "int16"
	case WireInt32:
		return "int32"
	case WireInt64:
		return "int"
	case WireUInt8:
		return "uint8"
	case WireUInt16:
		return "uint16"
	case WireUInt32:
		return "uint32"
	case WireUInt64:
		return "uint"
	case WireFloat32:
		return "float32"
	case WireFloat64:
		return "float"
	case WireString:
		return "string"
	case WireBytes:
		return "bytes"
	case WireTimestamp:
		return "timestamp"
	default:
		return "string"
	}
}
