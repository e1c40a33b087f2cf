package tealeaf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/zlib"
)

// MaxDecodeDepth bounds recursive decode of binary payloads to prevent
// stack exhaustion on hostile inputs. It matches [MaxParseDepth].
const MaxDecodeDepth = 256

// Reader provides random access to a .tlbx binary container. The
// string and schema tables are parsed eagerly at open; section payloads
// are decoded lazily per [Reader.Get] call, and only the targeted
// section's bytes are touched.
//
// A Reader may be shared by multiple goroutines for concurrent Get
// calls: the tables are immutable after open and per-call decode
// allocates fresh values.
type Reader struct {
	data []byte

	// mapped and file are set when the backing bytes are a memory map;
	// they are released by Close.
	mapped mmap.MMap
	file   *os.File

	stringOffsets []uint32
	stringLengths []uint16
	stringDataOff int
	stringDataEnd int

	schemas []*Schema

	sections map[string]sectionInfo
	keys     []string

	rootArray bool
}

type sectionInfo struct {
	offset       uint64
	storedSize   uint32
	originalSize uint32
	schemaIdx    int // -1 when untyped
	wire         WireType
	compressed   bool
	isArray      bool
	itemCount    uint32
}

// Open reads a binary TeaLeaf file into memory.
func Open(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return FromBytes(data)
}

// OpenMmap memory-maps a binary TeaLeaf file for zero-copy access. The
// file must not be modified while the reader exists; call
// [Reader.Close] to release the mapping.
func OpenMmap(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}

	r, err := FromBytes(m)
	if err != nil {
		_ = m.Unmap()
		_ = f.Close()

		return nil, err
	}

	r.mapped = m
	r.file = f

	return r, nil
}

// FromBytes builds a reader over an in-memory container image.
func FromBytes(data []byte) (*Reader, error) {
	if len(data) < HeaderSize || string(data[0:4]) != Magic {
		return nil, ErrInvalidMagic
	}

	major := binary.LittleEndian.Uint16(data[4:6])
	minor := binary.LittleEndian.Uint16(data[6:8])

	if major != VersionMajor {
		return nil, fmt.Errorf("%w %d.%d", ErrInvalidVersion, major, minor)
	}

	flags := binary.LittleEndian.Uint32(data[8:12])

	strOff := binary.LittleEndian.Uint64(data[16:24])
	schOff := binary.LittleEndian.Uint64(data[24:32])
	idxOff := binary.LittleEndian.Uint64(data[32:40])
	strCnt := binary.LittleEndian.Uint32(data[48:52])
	schCnt := binary.LittleEndian.Uint32(data[52:56])
	secCnt := binary.LittleEndian.Uint32(data[56:60])

	r := &Reader{
		data:      data,
		sections:  make(map[string]sectionInfo),
		rootArray: flags&flagRootArray != 0,
	}

	if err := r.parseStringTable(strOff, strCnt); err != nil {
		return nil, err
	}

	if err := r.parseSchemaTable(schOff, schCnt); err != nil {
		return nil, err
	}

	if err := r.parseIndex(idxOff, secCnt); err != nil {
		return nil, err
	}

	return r, nil
}

// Close releases the memory map and file handle of a reader created
// with [OpenMmap]. It is a no-op for in-memory readers.
func (r *Reader) Close() error {
	if r.mapped != nil {
		if err := r.mapped.Unmap(); err != nil {
			_ = r.file.Close()

			return fmt.Errorf("unmapping: %w", err)
		}

		r.mapped = nil
	}

	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("closing: %w", err)
		}

		r.file = nil
	}

	return nil
}

// region checks that [off, off+size) lies within the buffer and returns
// the slice.
func (r *Reader) region(off, size uint64) ([]byte, error) {
	end := off + size
	if end < off || end > uint64(len(r.data)) {
		return nil, fmt.Errorf("%w: range [%d, %d) exceeds %d bytes",
			ErrTruncated, off, end, len(r.data))
	}

	return r.data[off:end], nil
}

func (r *Reader) parseStringTable(off uint64, count uint32) error {
	header, err := r.region(off, 8)
	if err != nil {
		return err
	}

	tableSize := binary.LittleEndian.Uint32(header[0:4])

	if _, err := r.region(off, uint64(tableSize)); err != nil {
		return err
	}

	entries, err := r.region(off+8, uint64(count)*6)
	if err != nil {
		return err
	}

	r.stringOffsets = make([]uint32, count)
	r.stringLengths = make([]uint16, count)

	for i := range int(count) {
		r.stringOffsets[i] = binary.LittleEndian.Uint32(entries[i*4 : i*4+4])
	}

	lenBase := int(count) * 4
	for i := range int(count) {
		r.stringLengths[i] = binary.LittleEndian.Uint16(entries[lenBase+i*2 : lenBase+i*2+2])
	}

	r.stringDataOff = int(off) + 8 + int(count)*6
	r.stringDataEnd = int(off) + int(tableSize)

	if r.stringDataEnd > len(r.data) || r.stringDataEnd < r.stringDataOff {
		return fmt.Errorf("%w: string table", ErrTruncated)
	}

	// Every offset/length pair must land inside the string-data region.
	region := r.stringDataEnd - r.stringDataOff
	for i := range int(count) {
		end := int(r.stringOffsets[i]) + int(r.stringLengths[i])
		if end > region {
			return fmt.Errorf("%w: string %d exceeds string data region", ErrTruncated, i)
		}
	}

	return nil
}

// stringAt returns the interned string at idx, bounds-checked.
func (r *Reader) stringAt(idx uint32) (string, error) {
	if int(idx) >= len(r.stringOffsets) {
		return "", fmt.Errorf("%w: string index %d of %d",
			ErrIndexOutOfBounds, idx, len(r.stringOffsets))
	}

	start := r.stringDataOff + int(r.stringOffsets[idx])
	end := start + int(r.stringLengths[idx])

	return string(r.data[start:end]), nil
}

func (r *Reader) parseSchemaTable(off uint64, count uint32) error {
	if count == 0 {
		return nil
	}

	header, err := r.region(off, 8)
	if err != nil {
		return err
	}

	tableSize := binary.LittleEndian.Uint32(header[0:4])

	table, err := r.region(off, uint64(tableSize))
	if err != nil {
		return err
	}

	if 8+uint64(count)*4 > uint64(len(table)) {
		return fmt.Errorf("%w: schema table", ErrTruncated)
	}

	recordBase := 8 + int(count)*4

	for i := range int(count) {
		recOff := binary.LittleEndian.Uint32(table[8+i*4 : 8+i*4+4])

		so := recordBase + int(recOff)
		if so+8 > len(table) {
			return fmt.Errorf("%w: schema record %d", ErrTruncated, i)
		}

		nameIdx := binary.LittleEndian.Uint32(table[so : so+4])
		fieldCount := binary.LittleEndian.Uint16(table[so+4 : so+6])

		name, err := r.stringAt(nameIdx)
		if err != nil {
			return err
		}

		schema := NewSchema(name)

		fo := so + 8
		for range int(fieldCount) {
			if fo+8 > len(table) {
				return fmt.Errorf("%w: schema %q fields", ErrTruncated, name)
			}

			fnameIdx := binary.LittleEndian.Uint32(table[fo : fo+4])
			wireByte := table[fo+4]
			fflags := table[fo+5]
			extra := binary.LittleEndian.Uint16(table[fo+6 : fo+8])

			fname, err := r.stringAt(fnameIdx)
			if err != nil {
				return err
			}

			wire, err := parseWireType(wireByte)
			if err != nil {
				return err
			}

			var base string

			if wire == WireStruct {
				if extra != noSchema {
					base, err = r.stringAt(uint32(extra))
					if err != nil {
						return err
					}
				} else {
					base = "string"
				}
			} else {
				base = baseNameForWire(wire)
			}

			ft := FieldType{
				Base:     base,
				Nullable: fflags&fieldFlagNullable != 0,
				IsArray:  fflags&fieldFlagArray != 0,
			}

			schema.AddField(fname, ft)
			fo += 8
		}

		r.schemas = append(r.schemas, schema)
	}

	return nil
}

func (r *Reader) parseIndex(off uint64, count uint32) error {
	records, err := r.region(off+8, uint64(count)*32)
	if err != nil {
		return err
	}

	for i := range int(count) {
		rec := records[i*32 : i*32+32]

		keyIdx := binary.LittleEndian.Uint32(rec[0:4])
		offset := binary.LittleEndian.Uint64(rec[4:12])
		storedSize := binary.LittleEndian.Uint32(rec[12:16])
		originalSize := binary.LittleEndian.Uint32(rec[16:20])
		schemaIdx := binary.LittleEndian.Uint16(rec[20:22])
		wireByte := rec[22]
		flags := rec[23]
		itemCount := binary.LittleEndian.Uint32(rec[24:28])

		key, err := r.stringAt(keyIdx)
		if err != nil {
			return err
		}

		wire, err := parseWireType(wireByte)
		if err != nil {
			return err
		}

		if _, err := r.region(offset, uint64(storedSize)); err != nil {
			return err
		}

		info := sectionInfo{
			offset:       offset,
			storedSize:   storedSize,
			originalSize: originalSize,
			schemaIdx:    -1,
			wire:         wire,
			compressed:   flags&sectionFlagCompressed != 0,
			isArray:      flags&sectionFlagIsArray != 0,
			itemCount:    itemCount,
		}

		if schemaIdx != noSchema {
			info.schemaIdx = int(schemaIdx)
		}

		if _, dup := r.sections[key]; !dup {
			r.keys = append(r.keys, key)
		}

		r.sections[key] = info
	}

	return nil
}

// Keys returns the section keys in index order.
func (r *Reader) Keys() []string {
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)

	return keys
}

// Schemas returns the schema definitions carried by the container, in
// table order.
func (r *Reader) Schemas() []*Schema {
	schemas := make([]*Schema, len(r.schemas))
	copy(schemas, r.schemas)

	return schemas
}

// Unions returns the union definitions carried by the container. The
// binary format has no union table — unions round-trip through text
// only — so this is always empty for .tlbx inputs; the accessor exists
// for surface parity with [Document].
func (r *Reader) Unions() []*Union {
	return nil
}

// IsRootArray reports header flag bit 1: the document's logical top
// level is an array.
func (r *Reader) IsRootArray() bool {
	return r.rootArray
}

// Has reports whether the container has a section under key.
func (r *Reader) Has(key string) bool {
	_, ok := r.sections[key]

	return ok
}

// Get decodes and returns the section stored under key. Only this
// section's bytes are touched; the returned value shares no memory with
// the reader's backing buffer.
func (r *Reader) Get(key string) (Value, error) {
	info, ok := r.sections[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingSection, key)
	}

	payload, err := r.region(info.offset, uint64(info.storedSize))
	if err != nil {
		return nil, err
	}

	if info.compressed {
		payload, err = zlibDecompress(payload, info.originalSize)
		if err != nil {
			return nil, err
		}
	}

	cur := &cursor{data: payload}

	if info.isArray && info.schemaIdx >= 0 {
		return r.decodeStructArray(cur, info.schemaIdx, 0)
	}

	return r.decodeValue(cur, info.wire, 0)
}

// GetPath traverses a dotted path whose first segment names a section,
// e.g. "users[2].name".
func (r *Reader) GetPath(path string) (Value, error) {
	segments, err := splitPath(path)
	if err != nil || len(segments) == 0 {
		return nil, fmt.Errorf("invalid path %q", path)
	}

	root, err := r.Get(segments[0].key)
	if err != nil {
		return nil, err
	}

	v, ok := applyIndexes(root, segments[0].indexes)
	if !ok {
		return nil, fmt.Errorf("path %q: index out of range", path)
	}

	v, ok = lookupSegments(v, segments[1:])
	if !ok {
		return nil, fmt.Errorf("path %q not found", path)
	}

	return v, nil
}

// Document reconstructs a full document from the container: every
// section decoded, schemas attached, root-array flag carried over.
func (r *Reader) Document() (*Document, error) {
	doc := NewDocument()
	doc.SetRootArray(r.rootArray)

	for _, schema := range r.schemas {
		doc.AddSchema(schema)
	}

	for _, key := range r.keys {
		v, err := r.Get(key)
		if err != nil {
			return nil, err
		}

		doc.Set(key, v)
	}

	return doc, nil
}

func (r *Reader) decodeStructArray(cur *cursor, schemaIdx, depth int) (Value, error) {
	count, err := cur.readUint32()
	if err != nil {
		return nil, err
	}

	if _, err := cur.readUint16(); err != nil { // schema index, known from the section record
		return nil, err
	}

	bitmapBytes, err := cur.readUint16()
	if err != nil {
		return nil, err
	}

	if schemaIdx >= len(r.schemas) {
		return nil, fmt.Errorf("%w: schema index %d of %d",
			ErrIndexOutOfBounds, schemaIdx, len(r.schemas))
	}

	// Every row consumes at least its bitmap, so a count beyond the
	// remaining payload is hostile.
	if int(count) > cur.remaining() && count > 0 {
		return nil, fmt.Errorf("%w: struct array count %d", ErrTruncated, count)
	}

	schema := r.schemas[schemaIdx]
	result := make(Array, 0, min(int(count), 4096))

	for range int(count) {
		obj, err := r.decodeStructRow(cur, schema, int(bitmapBytes), depth)
		if err != nil {
			return nil, err
		}

		result = append(result, obj)
	}

	return result, nil
}

// decodeStructRow reads one bitmap + non-null field payloads row. Each
// field decodes according to its declared type.
func (r *Reader) decodeStructRow(cur *cursor, schema *Schema, bitmapBytes, depth int) (Value, error) {
	if depth > MaxDecodeDepth {
		return nil, fmt.Errorf("%w (limit %d)", ErrDepthExceeded, MaxDecodeDepth)
	}

	var bitmap uint64

	for bi := range bitmapBytes {
		b, err := cur.readByte()
		if err != nil {
			return nil, err
		}

		if bi < 8 {
			bitmap |= uint64(b) << (bi * 8)
		}
	}

	obj := NewObject()

	for i, field := range schema.Fields {
		if i < 64 && bitmap&(1<<i) != 0 {
			obj.Set(field.Name, Null{})

			continue
		}

		v, err := r.decodeTypedValue(cur, field.Type, depth+1)
		if err != nil {
			return nil, err
		}

		obj.Set(field.Name, v)
	}

	return obj, nil
}

// decodeTypedValue mirrors the writer's declared-type field encoding.
func (r *Reader) decodeTypedValue(cur *cursor, ft FieldType, depth int) (Value, error) {
	if depth > MaxDecodeDepth {
		return nil, fmt.Errorf("%w (limit %d)", ErrDepthExceeded, MaxDecodeDepth)
	}

	if ft.IsArray {
		return r.decodeArray(cur, depth)
	}

	wire := ft.wireType()
	if wire == WireStruct {
		return r.decodeStruct(cur, depth)
	}

	return r.decodeValue(cur, wire, depth)
}

func (r *Reader) decodeArray(cur *cursor, depth int) (Value, error) {
	if depth > MaxDecodeDepth {
		return nil, fmt.Errorf("%w (limit %d)", ErrDepthExceeded, MaxDecodeDepth)
	}

	count, err := cur.readUint32()
	if err != nil {
		return nil, err
	}

	if count == 0 {
		return Array{}, nil
	}

	// Writer-produced elements consume at least one byte each.
	if int(count) > cur.remaining() {
		return nil, fmt.Errorf("%w: array count %d", ErrTruncated, count)
	}

	elemByte, err := cur.readByte()
	if err != nil {
		return nil, err
	}

	result := make(Array, 0, min(int(count), 4096))

	if elemByte == heterogeneousMarker {
		for range int(count) {
			tb, err := cur.readByte()
			if err != nil {
				return nil, err
			}

			wire, err := parseWireType(tb)
			if err != nil {
				return nil, err
			}

			v, err := r.decodeValue(cur, wire, depth+1)
			if err != nil {
				return nil, err
			}

			result = append(result, v)
		}

		return result, nil
	}

	wire, err := parseWireType(elemByte)
	if err != nil {
		return nil, err
	}

	for range int(count) {
		v, err := r.decodeValue(cur, wire, depth+1)
		if err != nil {
			return nil, err
		}

		result = append(result, v)
	}

	return result, nil
}

func (r *Reader) decodeObject(cur *cursor, depth int) (Value, error) {
	if depth > MaxDecodeDepth {
		return nil, fmt.Errorf("%w (limit %d)", ErrDepthExceeded, MaxDecodeDepth)
	}

	count, err := cur.readUint16()
	if err != nil {
		return nil, err
	}

	obj := NewObject()

	for range int(count) {
		keyIdx, err := cur.readUint32()
		if err != nil {
			return nil, err
		}

		tb, err := cur.readByte()
		if err != nil {
			return nil, err
		}

		wire, err := parseWireType(tb)
		if err != nil {
			return nil, err
		}

		key, err := r.stringAt(keyIdx)
		if err != nil {
			return nil, err
		}

		v, err := r.decodeValue(cur, wire, depth+1)
		if err != nil {
			return nil, err
		}

		obj.Set(key, v)
	}

	return obj, nil
}

// decodeStruct reads a single struct record: u16 schema index, null
// bitmap, then non-null field payloads.
func (r *Reader) decodeStruct(cur *cursor, depth int) (Value, error) {
	if depth > MaxDecodeDepth {
		return nil, fmt.Errorf("%w (limit %d)", ErrDepthExceeded, MaxDecodeDepth)
	}

	schemaIdx, err := cur.readUint16()
	if err != nil {
		return nil, err
	}

	if int(schemaIdx) >= len(r.schemas) {
		return nil, fmt.Errorf("%w: schema index %d of %d",
			ErrIndexOutOfBounds, schemaIdx, len(r.schemas))
	}

	schema := r.schemas[schemaIdx]

	return r.decodeStructRow(cur, schema, schema.bitmapBytes(), depth)
}

func (r *Reader) decodeMap(cur *cursor, depth int) (Value, error) {
	if depth > MaxDecodeDepth {
		return nil, fmt.Errorf("%w (limit %d)", ErrDepthExceeded, MaxDecodeDepth)
	}

	count, err := cur.readUint32()
	if err != nil {
		return nil, err
	}

	if int(count) > cur.remaining() && count > 0 {
		return nil, fmt.Errorf("%w: map count %d", ErrTruncated, count)
	}

	pairs := make(Map, 0, min(int(count), 4096))

	for range int(count) {
		kb, err := cur.readByte()
		if err != nil {
			return nil, err
		}

		keyWire, err := parseWireType(kb)
		if err != nil {
			return nil, err
		}

		key, err := r.decodeValue(cur, keyWire, depth+1)
		if err != nil {
			return nil, err
		}

		vb, err := cur.readByte()
		if err != nil {
			return nil, err
		}

		valWire, err := parseWireType(vb)
		if err != nil {
			return nil, err
		}

		val, err := r.decodeValue(cur, valWire, depth+1)
		if err != nil {
			return nil, err
		}

		pairs = append(pairs, MapEntry{Key: key, Val: val})
	}

	return pairs, nil
}

func (r *Reader) decodeValue(cur *cursor, wire WireType, depth int) (Value, error) {
	if depth > MaxDecodeDepth {
		return nil, fmt.Errorf("%w (limit %d)", ErrDepthExceeded, MaxDecodeDepth)
	}

	switch wire {
	case WireNull:
		return Null{}, nil
	case WireBool:
		b, err := cur.readByte()
		if err != nil {
			return nil, err
		}

		return Bool(b != 0), nil
	case WireInt8:
		b, err := cur.readByte()
		if err != nil {
			return nil, err
		}

		return Int(int8(b)), nil
	case WireInt16:
		v, err := cur.readUint16()
		if err != nil {
			return nil, err
		}

		return Int(int16(v)), nil
	case WireInt32:
		v, err := cur.readUint32()
		if err != nil {
			return nil, err
		}

		return Int(int32(v)), nil
	case WireInt64:
		v, err := cur.readUint64()
		if err != nil {
			return nil, err
		}

		return Int(int64(v)), nil
	case WireUInt8:
		b, err := cur.readByte()
		if err != nil {
			return nil, err
		}

		return UInt(b), nil
	case WireUInt16:
		v, err := cur.readUint16()
		if err != nil {
			return nil, err
		}

		return UInt(v), nil
	case WireUInt32:
		v, err := cur.readUint32()
		if err != nil {
			return nil, err
		}

		return UInt(v), nil
	case WireUInt64:
		v, err := cur.readUint64()
		if err != nil {
			return nil, err
		}

		return UInt(v), nil
	case WireFloat32:
		v, err := cur.readUint32()
		if err != nil {
			return nil, err
		}

		return Float(math.Float32frombits(v)), nil
	case WireFloat64:
		v, err := cur.readUint64()
		if err != nil {
			return nil, err
		}

		return Float(math.Float64frombits(v)), nil
	case WireString:
		idx, err := cur.readUint32()
		if err != nil {
			return nil, err
		}

		s, err := r.stringAt(idx)
		if err != nil {
			return nil, err
		}

		return String(s), nil
	case WireJSONNumber:
		idx, err := cur.readUint32()
		if err != nil {
			return nil, err
		}

		s, err := r.stringAt(idx)
		if err != nil {
			return nil, err
		}

		return JSONNumber(s), nil
	case WireBytes:
		n, err := cur.readUvarint()
		if err != nil {
			return nil, err
		}

		b, err := cur.readBytes(n)
		if err != nil {
			return nil, err
		}

		return Bytes(b), nil
	case WireTimestamp:
		v, err := cur.readUint64()
		if err != nil {
			return nil, err
		}

		return Timestamp{Millis: int64(v)}, nil
	case WireArray, WireTuple:
		return r.decodeArray(cur, depth)
	case WireObject:
		return r.decodeObject(cur, depth)
	case WireStruct:
		return r.decodeStruct(cur, depth)
	case WireMap:
		return r.decodeMap(cur, depth)
	case WireRef:
		idx, err := cur.readUint32()
		if err != nil {
			return nil, err
		}

		s, err := r.stringAt(idx)
		if err != nil {
			return nil, err
		}

		return Ref(s), nil
	case WireTagged:
		tagIdx, err := cur.readUint32()
		if err != nil {
			return nil, err
		}

		tb, err := cur.readByte()
		if err != nil {
			return nil, err
		}

		innerWire, err := parseWireType(tb)
		if err != nil {
			return nil, err
		}

		tag, err := r.stringAt(tagIdx)
		if err != nil {
			return nil, err
		}

		inner, err := r.decodeValue(cur, innerWire, depth+1)
		if err != nil {
			return nil, err
		}

		return Tagged{Tag: tag, Inner: inner}, nil
	}

	return nil, fmt.Errorf("%w 0x%02X", ErrUnknownWireType, byte(wire))
}

// cursor is a bounds-checked reader over a payload slice. Every read
// returns an error instead of panicking when the payload is truncated.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int {
	return len(c.data) - c.pos
}

func (c *cursor) readByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, fmt.Errorf("%w: payload", ErrTruncated)
	}

	b := c.data[c.pos]
	c.pos++

	return b, nil
}

func (c *cursor) readUint16() (uint16, error) {
	if c.pos+2 > len(c.data) {
		return 0, fmt.Errorf("%w: payload", ErrTruncated)
	}

	v := binary.LittleEndian.Uint16(c.data[c.pos : c.pos+2])
	c.pos += 2

	return v, nil
}

func (c *cursor) readUint32() (uint32, error) {
	if c.pos+4 > len(c.data) {
		return 0, fmt.Errorf("%w: payload", ErrTruncated)
	}

	v := binary.LittleEndian.Uint32(c.data[c.pos : c.pos+4])
	c.pos += 4

	return v, nil
}

func (c *cursor) readUint64() (uint64, error) {
	if c.pos+8 > len(c.data) {
		return 0, fmt.Errorf("%w: payload", ErrTruncated)
	}

	v := binary.LittleEndian.Uint64(c.data[c.pos : c.pos+8])
	c.pos += 8

	return v, nil
}

func (c *cursor) readUvarint() (int, error) {
	v, n := binary.Uvarint(c.data[c.pos:])
	if n <= 0 || v > uint64(len(c.data)) {
		return 0, fmt.Errorf("%w: varint", ErrTruncated)
	}

	c.pos += n

	return int(v), nil
}

func (c *cursor) readBytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, fmt.Errorf("%w: payload", ErrTruncated)
	}

	// Copy so the returned value does not alias the backing buffer.
	out := make([]byte, n)
	copy(out, c.data[c.pos:c.pos+n])

	c.pos += n

	return out, nil
}

func zlibDecompress(data []byte, sizeHint uint32) ([]byte, error) {
	dec, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompressing section: %w", err)
	}
	defer dec.Close()

	out := make([]byte, 0, min(int(sizeHint), 1<<24))

	buf := make([]byte, 32*1024)

	for {
		n, err := dec.Read(buf)
		out = append(out, buf[:n]...)

		if err == io.EOF {
			return out, nil
		}

		if err != nil {
			return nil, fmt.Errorf("decompressing section: %w", err)
		}
	}
}
