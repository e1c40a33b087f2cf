package tealeaf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/klauspost/compress/zlib"
)

// compressThreshold is the payload size above which the writer attempts
// zlib compression.
const compressThreshold = 64

// compressKeepRatio: a compressed payload is kept only if it is at
// least 10% smaller than the original.
const compressKeepRatio = 0.9

// Writer serialises a document into the .tlbx binary container. It
// interns strings, lays out the string/schema/index/data tables, and
// encodes schema-typed rows with null bitmaps.
//
// String interning is scoped to the writer; there is no process-wide
// interner. A Writer is single-use and not safe for concurrent use.
type Writer struct {
	strings   []string
	stringIdx map[string]uint32

	schemas   []*Schema
	schemaIdx map[string]uint16

	sections  []section
	rootArray bool
}

type section struct {
	key       string
	data      []byte
	schemaIdx int // -1 when untyped
	wire      WireType
	isArray   bool
	itemCount uint32
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	return &Writer{
		stringIdx: make(map[string]uint32),
		schemaIdx: make(map[string]uint16),
	}
}

// SetRootArray records that the document's logical top level is an
// array (header flag bit 1).
func (w *Writer) SetRootArray(rootArray bool) {
	w.rootArray = rootArray
}

// Intern adds s to the string table and returns its index. Identical
// strings share one slot; insertion order is preserved so indices are
// stable across a single writer invocation.
func (w *Writer) Intern(s string) uint32 {
	if idx, ok := w.stringIdx[s]; ok {
		return idx
	}

	idx := uint32(len(w.strings))
	w.strings = append(w.strings, s)
	w.stringIdx[s] = idx

	return idx
}

// AddSchema registers a schema and returns its table index. The schema
// name and all field names are interned.
func (w *Writer) AddSchema(s *Schema) uint16 {
	if idx, ok := w.schemaIdx[s.Name]; ok {
		return idx
	}

	for _, f := range s.Fields {
		w.Intern(f.Name)
	}

	w.Intern(s.Name)

	idx := uint16(len(w.schemas))
	w.schemaIdx[s.Name] = idx
	w.schemas = append(w.schemas, s)

	return idx
}

// AddSection encodes value under the given top-level key. When schema
// is non-nil and the value is an array of objects, rows are encoded in
// the compact struct-array form.
func (w *Writer) AddSection(key string, value Value, schema *Schema) {
	w.Intern(key)

	schemaIdx := -1
	if schema != nil {
		if idx, ok := w.schemaIdx[schema.Name]; ok {
			schemaIdx = int(idx)
		}
	}

	data, wire, isArray, count := w.encodeValue(value, schema)

	w.sections = append(w.sections, section{
		key:       key,
		data:      data,
		schemaIdx: schemaIdx,
		wire:      wire,
		isArray:   isArray,
		itemCount: count,
	})
}

// WriteFile serialises the container to path. When compress is true,
// payloads above the size threshold are zlib-encoded (and kept only if
// meaningfully smaller).
func (w *Writer) WriteFile(path string, compress bool) error {
	data, err := w.Bytes(compress)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// Bytes serialises the container into memory: the header and index
// regions are reserved first, payloads are streamed behind them while
// each section's offset and sizes are recorded, then both reserved
// regions are filled in place.
func (w *Writer) Bytes(compress bool) ([]byte, error) {
	for _, s := range w.strings {
		if len(s) > math.MaxUint16 {
			return nil, fmt.Errorf("interned string exceeds %d bytes", math.MaxUint16)
		}
	}

	strTableSize := w.stringTableSize()
	schTableSize := w.schemaTableSize()
	indexSize := 8 + len(w.sections)*32

	strOff := uint64(HeaderSize)
	schOff := strOff + uint64(strTableSize)
	idxOff := schOff + uint64(schTableSize)
	dataOff := idxOff + uint64(indexSize)

	buf := make([]byte, 0, int(dataOff))
	buf = append(buf, make([]byte, HeaderSize)...)
	buf = w.appendStringTable(buf)
	buf = w.appendSchemaTable(buf)
	buf = append(buf, make([]byte, indexSize)...)

	type indexEntry struct {
		keyIdx       uint32
		offset       uint64
		storedSize   uint32
		originalSize uint32
		schemaIdx    uint16
		wire         WireType
		flags        byte
		itemCount    uint32
	}

	entries := make([]indexEntry, 0, len(w.sections))
	anyCompressed := false
	cur := dataOff

	for _, sec := range w.sections {
		stored := sec.data
		compressed := false

		if compress && len(sec.data) > compressThreshold {
			if c, err := zlibCompress(sec.data); err == nil &&
				float64(len(c)) < float64(len(sec.data))*compressKeepRatio {
				stored = c
				compressed = true
				anyCompressed = true
			}
		}

		buf = append(buf, stored...)

		flags := byte(0)
		if compressed {
			flags |= sectionFlagCompressed
		}

		if sec.isArray {
			flags |= sectionFlagIsArray
		}

		schemaIdx := uint16(noSchema)
		if sec.schemaIdx >= 0 {
			schemaIdx = uint16(sec.schemaIdx)
		}

		entries = append(entries, indexEntry{
			keyIdx:       w.stringIdx[sec.key],
			offset:       cur,
			storedSize:   uint32(len(stored)),
			originalSize: uint32(len(sec.data)),
			schemaIdx:    schemaIdx,
			wire:         sec.wire,
			flags:        flags,
			itemCount:    sec.itemCount,
		})

		cur += uint64(len(stored))
	}

	// Header.
	h := buf[:0:HeaderSize]
	h = append(h, Magic...)
	h = binary.LittleEndian.AppendUint16(h, VersionMajor)
	h = binary.LittleEndian.AppendUint16(h, VersionMinor)

	flags := uint32(0)
	if anyCompressed {
		flags |= flagCompressed
	}

	if w.rootArray {
		flags |= flagRootArray
	}

	h = binary.LittleEndian.AppendUint32(h, flags)
	h = binary.LittleEndian.AppendUint32(h, 0) // reserved
	h = binary.LittleEndian.AppendUint64(h, strOff)
	h = binary.LittleEndian.AppendUint64(h, schOff)
	h = binary.LittleEndian.AppendUint64(h, idxOff)
	h = binary.LittleEndian.AppendUint64(h, dataOff)
	h = binary.LittleEndian.AppendUint32(h, uint32(len(w.strings)))
	h = binary.LittleEndian.AppendUint32(h, uint32(len(w.schemas)))
	h = binary.LittleEndian.AppendUint32(h, uint32(len(w.sections)))
	binary.LittleEndian.AppendUint32(h, 0) // reserved

	// Section index.
	idx := buf[idxOff:idxOff:dataOff]
	idx = binary.LittleEndian.AppendUint32(idx, uint32(indexSize))
	idx = binary.LittleEndian.AppendUint32(idx, uint32(len(entries)))

	for _, e := range entries {
		idx = binary.LittleEndian.AppendUint32(idx, e.keyIdx)
		idx = binary.LittleEndian.AppendUint64(idx, e.offset)
		idx = binary.LittleEndian.AppendUint32(idx, e.storedSize)
		idx = binary.LittleEndian.AppendUint32(idx, e.originalSize)
		idx = binary.LittleEndian.AppendUint16(idx, e.schemaIdx)
		idx = append(idx, byte(e.wire), e.flags)
		idx = binary.LittleEndian.AppendUint32(idx, e.itemCount)
		idx = binary.LittleEndian.AppendUint32(idx, 0) // reserved
	}

	return buf, nil
}

func (w *Writer) stringTableSize() int {
	size := 8 + len(w.strings)*6
	for _, s := range w.strings {
		size += len(s)
	}

	return size
}

func (w *Writer) schemaTableSize() int {
	size := 8 + len(w.schemas)*4
	for _, s := range w.schemas {
		size += 8 + len(s.Fields)*8
	}

	return size
}

func (w *Writer) appendStringTable(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(w.stringTableSize()))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(w.strings)))

	off := uint32(0)
	for _, s := range w.strings {
		buf = binary.LittleEndian.AppendUint32(buf, off)
		off += uint32(len(s))
	}

	for _, s := range w.strings {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	}

	for _, s := range w.strings {
		buf = append(buf, s...)
	}

	return buf
}

func (w *Writer) appendSchemaTable(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(w.schemaTableSize()))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(w.schemas)))

	off := uint32(0)
	for _, s := range w.schemas {
		buf = binary.LittleEndian.AppendUint32(buf, off)
		off += uint32(8 + len(s.Fields)*8)
	}

	for _, s := range w.schemas {
		buf = binary.LittleEndian.AppendUint32(buf, w.stringIdx[s.Name])
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s.Fields)))
		buf = binary.LittleEndian.AppendUint16(buf, 0) // reserved

		for _, f := range s.Fields {
			buf = binary.LittleEndian.AppendUint32(buf, w.stringIdx[f.Name])
			buf = append(buf, byte(f.Type.wireType()))

			flags := byte(0)
			if f.Type.Nullable {
				flags |= fieldFlagNullable
			}

			if f.Type.IsArray {
				flags |= fieldFlagArray
			}

			buf = append(buf, flags)

			// Struct-typed fields carry the element schema name in the
			// extra slot; 0xFFFF means none.
			extra := uint16(noSchema)
			if f.Type.wireType() == WireStruct {
				if idx, ok := w.stringIdx[f.Type.Base]; ok && idx < noSchema {
					extra = uint16(idx)
				}
			}

			buf = binary.LittleEndian.AppendUint16(buf, extra)
		}
	}

	return buf
}

// encodeValue encodes a value generically, returning its payload, wire
// type, array flag, and item count. When schema is non-nil and the
// value is an array of objects, the compact struct-array form is used.
func (w *Writer) encodeValue(value Value, schema *Schema) ([]byte, WireType, bool, uint32) {
	switch v := value.(type) {
	case nil, Null:
		return nil, WireNull, false, 0
	case Bool:
		if v {
			return []byte{1}, WireBool, false, 0
		}

		return []byte{0}, WireBool, false, 0
	case Int:
		data, wire := encodeInt(int64(v))

		return data, wire, false, 0
	case UInt:
		data, wire := encodeUInt(uint64(v))

		return data, wire, false, 0
	case Float:
		return binary.LittleEndian.AppendUint64(nil, math.Float64bits(float64(v))),
			WireFloat64, false, 0
	case JSONNumber:
		idx := w.Intern(string(v))

		return binary.LittleEndian.AppendUint32(nil, idx), WireJSONNumber, false, 0
	case String:
		idx := w.Intern(string(v))

		return binary.LittleEndian.AppendUint32(nil, idx), WireString, false, 0
	case Bytes:
		buf := binary.AppendUvarint(nil, uint64(len(v)))
		buf = append(buf, v...)

		return buf, WireBytes, false, 0
	case Timestamp:
		// The tz offset is reserved for a future minor-version
		// extension; the wire carries UTC millis only.
		return binary.LittleEndian.AppendUint64(nil, uint64(v.Millis)),
			WireTimestamp, false, 0
	case Array:
		return w.encodeArray(v, schema)
	case *Object:
		return w.encodeObject(v), WireObject, false, 0
	case Map:
		return w.encodeMapValue(v), WireMap, false, uint32(len(v))
	case Ref:
		idx := w.Intern(string(v))

		return binary.LittleEndian.AppendUint32(nil, idx), WireRef, false, 0
	case Tagged:
		tagIdx := w.Intern(v.Tag)
		inner, innerWire, _, _ := w.encodeValue(v.Inner, nil)

		buf := binary.LittleEndian.AppendUint32(nil, tagIdx)
		buf = append(buf, byte(innerWire))
		buf = append(buf, inner...)

		return buf, WireTagged, false, 0
	}

	return nil, WireNull, false, 0
}

func (w *Writer) encodeObject(obj *Object) []byte {
	buf := binary.LittleEndian.AppendUint16(nil, uint16(obj.Len()))

	obj.Range(func(key string, v Value) bool {
		buf = binary.LittleEndian.AppendUint32(buf, w.Intern(key))

		data, wire, _, _ := w.encodeValue(v, nil)
		buf = append(buf, byte(wire))
		buf = append(buf, data...)

		return true
	})

	return buf
}

func (w *Writer) encodeMapValue(pairs Map) []byte {
	buf := binary.LittleEndian.AppendUint32(nil, uint32(len(pairs)))

	for _, entry := range pairs {
		kd, kt, _, _ := w.encodeValue(entry.Key, nil)
		vd, vt, _, _ := w.encodeValue(entry.Val, nil)

		buf = append(buf, byte(kt))
		buf = append(buf, kd...)
		buf = append(buf, byte(vt))
		buf = append(buf, vd...)
	}

	return buf
}

func (w *Writer) encodeArray(arr Array, schema *Schema) ([]byte, WireType, bool, uint32) {
	if schema != nil && len(arr) > 0 && allObjects(arr) {
		return w.encodeStructArray(arr, schema)
	}

	buf := binary.LittleEndian.AppendUint32(nil, uint32(len(arr)))
	if len(arr) == 0 {
		return buf, WireArray, true, 0
	}

	// A single element-type byte plus raw payloads when all elements
	// share a wire type; otherwise the 0xFF marker with per-element
	// (type, payload) pairs.
	if elemWire, ok := w.uniformElementType(arr); ok {
		buf = append(buf, byte(elemWire))

		for _, v := range arr {
			buf = append(buf, w.encodeScalarAs(v, elemWire)...)
		}

		return buf, WireArray, true, uint32(len(arr))
	}

	buf = append(buf, heterogeneousMarker)

	for _, v := range arr {
		data, wire, _, _ := w.encodeValue(v, nil)
		buf = append(buf, byte(wire))
		buf = append(buf, data...)
	}

	return buf, WireArray, true, uint32(len(arr))
}

// uniformElementType reports the shared wire type of a homogeneous
// scalar array. Integer widths are widened to the largest element.
func (w *Writer) uniformElementType(arr Array) (WireType, bool) {
	switch arr[0].(type) {
	case Int:
		widest := WireInt8

		for _, v := range arr {
			i, ok := v.(Int)
			if !ok {
				return 0, false
			}

			if wire := intWidth(int64(i)); wire > widest {
				widest = wire
			}
		}

		return widest, true
	case UInt:
		widest := WireUInt8

		for _, v := range arr {
			u, ok := v.(UInt)
			if !ok {
				return 0, false
			}

			if wire := uintWidth(uint64(u)); wire > widest {
				widest = wire
			}
		}

		return widest, true
	case Float:
		for _, v := range arr {
			if _, ok := v.(Float); !ok {
				return 0, false
			}
		}

		return WireFloat64, true
	case String:
		for _, v := range arr {
			if _, ok := v.(String); !ok {
				return 0, false
			}
		}

		return WireString, true
	case Bool:
		for _, v := range arr {
			if _, ok := v.(Bool); !ok {
				return 0, false
			}
		}

		return WireBool, true
	}

	return 0, false
}

// encodeScalarAs encodes a scalar with a fixed wire type, used for
// uniform arrays and typed struct fields.
func (w *Writer) encodeScalarAs(v Value, wire WireType) []byte {
	switch wire {
	case WireBool:
		if b, ok := v.(Bool); ok && bool(b) {
			return []byte{1}
		}

		return []byte{0}
	case WireInt8:
		return []byte{byte(int8(coerceInt(v)))}
	case WireInt16:
		return binary.LittleEndian.AppendUint16(nil, uint16(int16(coerceInt(v))))
	case WireInt32:
		return binary.LittleEndian.AppendUint32(nil, uint32(int32(coerceInt(v))))
	case WireInt64:
		return binary.LittleEndian.AppendUint64(nil, uint64(coerceInt(v)))
	case WireUInt8:
		return []byte{byte(coerceUInt(v))}
	case WireUInt16:
		return binary.LittleEndian.AppendUint16(nil, uint16(coerceUInt(v)))
	case WireUInt32:
		return binary.LittleEndian.AppendUint32(nil, uint32(coerceUInt(v)))
	case WireUInt64:
		return binary.LittleEndian.AppendUint64(nil, coerceUInt(v))
	case WireFloat32:
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(coerceFloat(v))))
	case WireFloat64:
		return binary.LittleEndian.AppendUint64(nil, math.Float64bits(coerceFloat(v)))
	case WireString:
		s, _ := v.(String)

		return binary.LittleEndian.AppendUint32(nil, w.Intern(string(s)))
	case WireBytes:
		b, _ := v.(Bytes)
		buf := binary.AppendUvarint(nil, uint64(len(b)))

		return append(buf, b...)
	case WireTimestamp:
		ts, _ := v.(Timestamp)

		return binary.LittleEndian.AppendUint64(nil, uint64(ts.Millis))
	}

	data, _, _, _ := w.encodeValue(v, nil)

	return data
}

func (w *Writer) encodeStructArray(arr Array, schema *Schema) ([]byte, WireType, bool, uint32) {
	buf := binary.LittleEndian.AppendUint32(nil, uint32(len(arr)))
	buf = binary.LittleEndian.AppendUint16(buf, w.schemaIdx[schema.Name])

	bitmapBytes := schema.bitmapBytes()
	buf = binary.LittleEndian.AppendUint16(buf, uint16(bitmapBytes))

	for _, v := range arr {
		obj, ok := v.(*Object)
		if !ok {
			continue
		}

		buf = w.appendStructRow(buf, obj, schema)
	}

	return buf, WireStruct, true, uint32(len(arr))
}

// appendStructRow writes one row: little-endian null bitmap (bit set =
// null), then payloads of the non-null fields in field order, each
// encoded according to its declared type.
func (w *Writer) appendStructRow(buf []byte, obj *Object, schema *Schema) []byte {
	var bitmap uint64

	for i, f := range schema.Fields {
		fv, ok := obj.Get(f.Name)
		if !ok || IsNull(fv) {
			bitmap |= 1 << i
		}
	}

	for bi := range schema.bitmapBytes() {
		buf = append(buf, byte(bitmap>>(bi*8)))
	}

	for i, f := range schema.Fields {
		if bitmap&(1<<i) != 0 {
			continue
		}

		fv, _ := obj.Get(f.Name)
		buf = append(buf, w.encodeTypedValue(fv, f.Type)...)
	}

	return buf
}

// encodeTypedValue encodes a value according to its declared field type
// rather than its runtime type, enabling compact fixed-width rows.
// Coercions permitted: Int ↔ UInt within range, Int → Float, and
// Float → Int when the float is an integral value in range.
func (w *Writer) encodeTypedValue(value Value, ft FieldType) []byte {
	if ft.IsArray {
		arr, ok := value.(Array)
		if !ok {
			return binary.LittleEndian.AppendUint32(nil, 0)
		}

		buf := binary.LittleEndian.AppendUint32(nil, uint32(len(arr)))
		if len(arr) == 0 {
			return buf
		}

		elem := NewFieldType(ft.Base)
		buf = append(buf, byte(elem.wireType()))

		for _, v := range arr {
			buf = append(buf, w.encodeTypedValue(v, elem)...)
		}

		return buf
	}

	wire := ft.wireType()
	if wire != WireStruct {
		return w.encodeScalarAs(value, wire)
	}

	// Nested struct record: u16 schema index, bitmap, non-null field
	// payloads.
	obj, objOK := value.(*Object)
	schema := w.schemaByName(ft.Base)

	if !objOK || schema == nil {
		data, _, _, _ := w.encodeValue(value, nil)

		return data
	}

	buf := binary.LittleEndian.AppendUint16(nil, w.schemaIdx[schema.Name])

	return w.appendStructRow(buf, obj, schema)
}

func (w *Writer) schemaByName(name string) *Schema {
	if idx, ok := w.schemaIdx[name]; ok {
		return w.schemas[idx]
	}

	return nil
}

func allObjects(arr Array) bool {
	for _, v := range arr {
		if _, ok := v.(*Object); !ok {
			return false
		}
	}

	return true
}

// coerceInt extracts a signed integer, accepting UInt in range and
// integral floats.
func coerceInt(v Value) int64 {
	switch n := v.(type) {
	case Int:
		return int64(n)
	case UInt:
		if uint64(n) <= maxInt64 {
			return int64(n)
		}
	case Float:
		f := float64(n)
		if f == math.Trunc(f) && f >= math.MinInt64 && f < float64(math.MaxInt64) {
			return int64(f)
		}
	}

	return 0
}

// coerceUInt extracts an unsigned integer, accepting non-negative Int
// and integral non-negative floats.
func coerceUInt(v Value) uint64 {
	switch n := v.(type) {
	case UInt:
		return uint64(n)
	case Int:
		if n >= 0 {
			return uint64(n)
		}
	case Float:
		f := float64(n)
		if f == math.Trunc(f) && f >= 0 && f < float64(math.MaxUint64) {
			return uint64(f)
		}
	}

	return 0
}

// coerceFloat extracts a float, accepting integers.
func coerceFloat(v Value) float64 {
	switch n := v.(type) {
	case Float:
		return float64(n)
	case Int:
		return float64(n)
	case UInt:
		return float64(n)
	}

	return 0
}

// intWidth returns the smallest signed wire type that fits i.
func intWidth(i int64) WireType {
	switch {
	case i >= math.MinInt8 && i <= math.MaxInt8:
		return WireInt8
	case i >= math.MinInt16 && i <= math.MaxInt16:
		return WireInt16
	case i >= math.MinInt32 && i <= math.MaxInt32:
		return WireInt32
	default:
		return WireInt64
	}
}

// uintWidth returns the smallest unsigned wire type that fits u.
func uintWidth(u uint64) WireType {
	switch {
	case u <= math.MaxUint8:
		return WireUInt8
	case u <= math.MaxUint16:
		return WireUInt16
	case u <= math.MaxUint32:
		return WireUInt32
	default:
		return WireUInt64
	}
}

func encodeInt(i int64) ([]byte, WireType) {
	switch wire := intWidth(i); wire {
	case WireInt8:
		return []byte{byte(int8(i))}, wire
	case WireInt16:
		return binary.LittleEndian.AppendUint16(nil, uint16(int16(i))), wire
	case WireInt32:
		return binary.LittleEndian.AppendUint32(nil, uint32(int32(i))), wire
	default:
		return binary.LittleEndian.AppendUint64(nil, uint64(i)), WireInt64
	}
}

func encodeUInt(u uint64) ([]byte, WireType) {
	switch wire := uintWidth(u); wire {
	case WireUInt8:
		return []byte{byte(u)}, wire
	case WireUInt16:
		return binary.LittleEndian.AppendUint16(nil, uint16(u)), wire
	case WireUInt32:
		return binary.LittleEndian.AppendUint32(nil, uint32(u)), wire
	default:
		return binary.LittleEndian.AppendUint64(nil, u), WireUInt64
	}
}

func zlibCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	enc := zlib.NewWriter(&buf)
	if _, err := enc.Write(data); err != nil {
		return nil, err
	}

	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
