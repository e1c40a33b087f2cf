package tealeaf

import (
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"strings"
)

// TextOptions configures text-format emission.
type TextOptions struct {
	// Compact strips insignificant whitespace for token-efficient
	// output.
	Compact bool
	// CompactFloats rewrites whole-number floats as integers (42.0
	// becomes 42). Re-parsing may reclassify such values from Float to
	// Int/UInt; this is the one documented round-trip asymmetry.
	CompactFloats bool
}

// inlineLimit is the rendered length above which pretty mode switches a
// composite value from inline to an indented block.
const inlineLimit = 60

// Text re-emits the document as .tl text: schema and union definitions
// first (alphabetical), then one top-level key per line. Arrays whose
// objects exactly match a registered schema are emitted in the compact
// @table form.
func (d *Document) Text(opts TextOptions) string {
	tw := &textWriter{doc: d, opts: opts}

	return tw.emit()
}

type textWriter struct {
	doc  *Document
	opts TextOptions
	sb   strings.Builder
}

func (tw *textWriter) emit() string {
	if tw.doc.rootArray {
		tw.sb.WriteString("@root-array\n")

		if !tw.opts.Compact {
			tw.sb.WriteByte('\n')
		}
	}

	schemaNames := tw.doc.SchemaNames()
	sort.Strings(schemaNames)

	for _, name := range schemaNames {
		schema, _ := tw.doc.Schema(name)
		tw.writeSchemaDef(schema)
	}

	unionNames := tw.doc.UnionNames()
	sort.Strings(unionNames)

	for _, name := range unionNames {
		union, _ := tw.doc.Union(name)
		tw.writeUnionDef(union)
	}

	if (len(schemaNames) > 0 || len(unionNames) > 0) && !tw.opts.Compact && tw.doc.Len() > 0 {
		tw.sb.WriteByte('\n')
	}

	tw.doc.Range(func(key string, v Value) bool {
		tw.writeKey(key)
		tw.colon()
		tw.writeTopValue(v)
		tw.sb.WriteByte('\n')

		return true
	})

	return tw.sb.String()
}

func (tw *textWriter) colon() {
	if tw.opts.Compact {
		tw.sb.WriteByte(':')
	} else {
		tw.sb.WriteString(": ")
	}
}

func (tw *textWriter) comma() {
	if tw.opts.Compact {
		tw.sb.WriteByte(',')
	} else {
		tw.sb.WriteString(", ")
	}
}

func (tw *textWriter) writeSchemaDef(s *Schema) {
	tw.sb.WriteString("@struct ")
	tw.sb.WriteString(s.Name)

	if tw.opts.Compact {
		tw.sb.WriteByte('(')
	} else {
		tw.sb.WriteString(" (")
	}

	for i, f := range s.Fields {
		if i > 0 {
			tw.comma()
		}

		tw.sb.WriteString(f.Name)
		tw.colon()
		tw.sb.WriteString(f.Type.String())
	}

	tw.sb.WriteString(")\n")
}

func (tw *textWriter) writeUnionDef(u *Union) {
	tw.sb.WriteString("@union ")
	tw.sb.WriteString(u.Name)

	if tw.opts.Compact {
		tw.sb.WriteByte('{')
	} else {
		tw.sb.WriteString(" {\n")
	}

	for i, v := range u.Variants {
		if tw.opts.Compact {
			if i > 0 {
				tw.sb.WriteByte(',')
			}
		} else {
			tw.sb.WriteString("  ")
		}

		tw.sb.WriteString(v.Name)
		tw.sb.WriteByte('(')

		for j, f := range v.Fields {
			if j > 0 {
				tw.comma()
			}

			tw.sb.WriteString(f.Name)
			tw.colon()
			tw.sb.WriteString(f.Type.String())
		}

		tw.sb.WriteByte(')')

		if !tw.opts.Compact {
			if i < len(u.Variants)-1 {
				tw.sb.WriteByte(',')
			}

			tw.sb.WriteByte('\n')
		}
	}

	tw.sb.WriteString("}\n")
}

// writeTopValue emits a top-level value, preferring the @table form
// when the value is an array of objects matching a registered schema.
func (tw *textWriter) writeTopValue(v Value) {
	if schema := tw.doc.findSchemaForValue(v); schema != nil {
		tw.writeTable(v.(Array), schema)

		return
	}

	tw.writeValue(v, 0)
}

func (tw *textWriter) writeTable(rows Array, schema *Schema) {
	tw.sb.WriteString("@table ")
	tw.sb.WriteString(schema.Name)

	if tw.opts.Compact {
		tw.sb.WriteByte('[')

		for i, row := range rows {
			if i > 0 {
				tw.sb.WriteByte(',')
			}

			tw.writeRow(row.(*Object), schema)
		}

		tw.sb.WriteByte(']')

		return
	}

	tw.sb.WriteString(" [\n")

	for i, row := range rows {
		tw.sb.WriteString("  ")
		tw.writeRow(row.(*Object), schema)

		if i < len(rows)-1 {
			tw.sb.WriteByte(',')
		}

		tw.sb.WriteByte('\n')
	}

	tw.sb.WriteByte(']')
}

// writeRow emits one table row as a tuple in schema field order.
func (tw *textWriter) writeRow(obj *Object, schema *Schema) {
	tw.sb.WriteByte('(')

	for i, f := range schema.Fields {
		if i > 0 {
			tw.comma()
		}

		fv, ok := obj.Get(f.Name)
		if !ok {
			fv = Null{}
		}

		tw.writeFieldValue(fv, f.Type)
	}

	tw.sb.WriteByte(')')
}

// writeFieldValue emits a row slot according to its declared type:
// nested struct values render as tuples, struct arrays as lists of
// tuples.
func (tw *textWriter) writeFieldValue(v Value, ft FieldType) {
	if IsNull(v) {
		tw.sb.WriteByte('~')

		return
	}

	if ft.IsArray {
		arr, ok := v.(Array)
		if !ok {
			tw.writeValue(v, 0)

			return
		}

		tw.sb.WriteByte('[')

		elem := NewFieldType(ft.Base)

		for i, e := range arr {
			if i > 0 {
				tw.comma()
			}

			tw.writeFieldValue(e, elem)
		}

		tw.sb.WriteByte(']')

		return
	}

	if !ft.isBuiltin() {
		if nested, ok := tw.doc.Schema(ft.Base); ok {
			if obj, isObj := v.(*Object); isObj {
				tw.writeRow(obj, nested)

				return
			}
		}
	}

	tw.writeValue(v, 0)
}

func (tw *textWriter) writeValue(v Value, indent int) {
	switch val := v.(type) {
	case nil, Null:
		tw.sb.WriteByte('~')
	case Bool:
		if val {
			tw.sb.WriteString("true")
		} else {
			tw.sb.WriteString("false")
		}
	case Int:
		tw.sb.WriteString(strconv.FormatInt(int64(val), 10))
	case UInt:
		tw.sb.WriteString(strconv.FormatUint(uint64(val), 10))
	case Float:
		tw.sb.WriteString(tw.formatFloat(float64(val)))
	case JSONNumber:
		tw.sb.WriteString(string(val))
	case String:
		tw.writeString(string(val))
	case Bytes:
		tw.sb.WriteString(`b"`)
		tw.sb.WriteString(hex.EncodeToString(val))
		tw.sb.WriteByte('"')
	case Timestamp:
		tw.sb.WriteString(formatISO8601(val.Millis))
	case Ref:
		tw.sb.WriteByte('!')
		tw.sb.WriteString(string(val))
	case Tagged:
		tw.sb.WriteByte(':')
		tw.sb.WriteString(val.Tag)
		tw.sb.WriteByte(' ')
		tw.writeValue(val.Inner, indent)
	case Array:
		tw.writeArray(val, indent)
	case *Object:
		tw.writeObject(val, indent)
	case Map:
		tw.writeMap(val, indent)
	}
}

func (tw *textWriter) writeArray(arr Array, indent int) {
	if tw.opts.Compact || tw.fitsInline(arr) {
		tw.sb.WriteByte('[')

		for i, v := range arr {
			if i > 0 {
				tw.comma()
			}

			tw.writeValue(v, indent)
		}

		tw.sb.WriteByte(']')

		return
	}

	tw.sb.WriteString("[\n")

	for i, v := range arr {
		tw.pad(indent + 1)
		tw.writeValue(v, indent+1)

		if i < len(arr)-1 {
			tw.sb.WriteByte(',')
		}

		tw.sb.WriteByte('\n')
	}

	tw.pad(indent)
	tw.sb.WriteByte(']')
}

func (tw *textWriter) writeObject(obj *Object, indent int) {
	if tw.opts.Compact || tw.fitsInline(obj) {
		tw.sb.WriteByte('{')

		first := true

		obj.Range(func(key string, v Value) bool {
			if !first {
				tw.comma()
			}

			first = false

			tw.writeKey(key)
			tw.colon()
			tw.writeValue(v, indent)

			return true
		})

		tw.sb.WriteByte('}')

		return
	}

	tw.sb.WriteString("{\n")

	i := 0
	last := obj.Len() - 1

	obj.Range(func(key string, v Value) bool {
		tw.pad(indent + 1)
		tw.writeKey(key)
		tw.colon()
		tw.writeValue(v, indent+1)

		if i < last {
			tw.sb.WriteByte(',')
		}

		tw.sb.WriteByte('\n')
		i++

		return true
	})

	tw.pad(indent)
	tw.sb.WriteByte('}')
}

func (tw *textWriter) writeMap(pairs Map, indent int) {
	tw.sb.WriteString("@map ")

	tw.sb.WriteByte('{')

	for i, entry := range pairs {
		if i > 0 {
			tw.comma()
		}

		tw.writeValue(entry.Key, indent)
		tw.colon()
		tw.writeValue(entry.Val, indent)
	}

	tw.sb.WriteByte('}')
}

func (tw *textWriter) pad(indent int) {
	for range indent {
		tw.sb.WriteString("  ")
	}
}

// fitsInline renders v compactly off to the side and reports whether it
// is short enough to stay on one line.
func (tw *textWriter) fitsInline(v Value) bool {
	probe := &textWriter{doc: tw.doc, opts: TextOptions{Compact: true, CompactFloats: tw.opts.CompactFloats}}
	probe.writeValue(v, 0)

	return probe.sb.Len() <= inlineLimit
}

// writeKey emits a pair key: ref keys keep the ! sigil unquoted, other
// keys quote when not identifier-safe.
func (tw *textWriter) writeKey(key string) {
	if strings.HasPrefix(key, "!") && isIdentifier(key[1:]) {
		tw.sb.WriteString(key)

		return
	}

	// A key is always followed by a colon, so a bare "b" key cannot fold
	// into a bytes literal the way a bare "b" value could.
	if key == "b" {
		tw.sb.WriteString(key)

		return
	}

	tw.writeString(key)
}

func (tw *textWriter) writeString(s string) {
	if needsQuoting(s) {
		tw.sb.WriteByte('"')
		tw.sb.WriteString(escapeString(s))
		tw.sb.WriteByte('"')

		return
	}

	tw.sb.WriteString(s)
}

func (tw *textWriter) formatFloat(f float64) string {
	// The text surface has no NaN/Inf literals.
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "~"
	}

	if tw.opts.CompactFloats && f == math.Trunc(f) &&
		f >= math.MinInt64 && f < float64(math.MaxInt64) {
		return strconv.FormatInt(int64(f), 10)
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}

	return s
}

// needsQuoting reports whether a string must be quoted to re-parse as
// an equal String value. The predicate is sound: any string it passes
// as bare lexes as a single Word token spelling the same text.
func needsQuoting(s string) bool {
	if s == "" {
		return true
	}

	// Reserved words re-parse as other token kinds. A lone "b" is
	// quoted so it can never be glued to a following quoted string into
	// a bytes literal.
	switch s {
	case "true", "false", "null", "~", "b":
		return true
	}

	first := s[0]
	if !isWordStart(first) {
		return true
	}

	for i := 1; i < len(s); i++ {
		c := s[i]
		if !(isWordStart(c) || isDigit(c) || c == '-' || c == '.') {
			return true
		}
	}

	return false
}

func escapeString(s string) string {
	var sb strings.Builder

	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		default:
			sb.WriteRune(r)
		}
	}

	return sb.String()
}
