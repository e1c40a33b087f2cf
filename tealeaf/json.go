package tealeaf

import (
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// FromJSON imports plain JSON into a document.
//
// The import follows the plain-JSON policy — no magic coercion:
// {"$ref": …} and {"$tag": …, "$value": …} stay plain objects,
// "0xdeadbeef" and "2024-01-15T10:30:00Z" stay strings. Reconstructing
// TeaLeaf specials is exclusively the text format's job.
//
// Numbers import as the first of int64, uint64, finite float64 that
// fits; anything else keeps its lexeme as [JSONNumber]. A bare
// top-level array is stored under the key "root" with the root-array
// flag set.
func FromJSON(input string) (*Document, error) {
	dec := json.NewDecoder(strings.NewReader(input))
	dec.UseNumber()

	value, err := decodeJSONValue(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	doc := NewDocument()

	switch v := value.(type) {
	case *Object:
		v.Range(func(key string, val Value) bool {
			doc.Set(key, val)

			return true
		})
	case Array:
		doc.Set("root", v)
		doc.SetRootArray(true)
	default:
		doc.Set("root", v)
	}

	return doc, nil
}

// FromJSONWithSchemas is [FromJSON] plus schema inference: arrays of
// uniformly-shaped objects produce synthesised @struct definitions so
// the text writer can emit them in @table form.
func FromJSONWithSchemas(input string) (*Document, error) {
	doc, err := FromJSON(input)
	if err != nil {
		return nil, err
	}

	inferSchemas(doc)

	return doc, nil
}

func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	return decodeJSONToken(dec, tok)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()

			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}

				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", keyTok)
				}

				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}

				obj.Set(key, val)
			}

			// Closing brace.
			if _, err := dec.Token(); err != nil {
				return nil, err
			}

			return obj, nil
		case '[':
			arr := Array{}

			for dec.More() {
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}

				arr = append(arr, val)
			}

			if _, err := dec.Token(); err != nil {
				return nil, err
			}

			return arr, nil
		}

		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null{}, nil
	case json.Number:
		return numberToValue(t.String()), nil
	case float64:
		// Reached only when UseNumber is off; kept for safety.
		return Float(t), nil
	}

	return nil, fmt.Errorf("unexpected token %T", tok)
}

// numberToValue applies the import number policy to a JSON number
// lexeme.
func numberToValue(lexeme string) Value {
	if strings.ContainsAny(lexeme, ".eE") {
		if f, err := strconv.ParseFloat(lexeme, 64); err == nil &&
			!math.IsInf(f, 0) && !math.IsNaN(f) {
			return Float(f)
		}

		return JSONNumber(lexeme)
	}

	if i, err := strconv.ParseInt(lexeme, 10, 64); err == nil {
		return Int(i)
	}

	if u, err := strconv.ParseUint(lexeme, 10, 64); err == nil {
		return UInt(u)
	}

	if f, err := strconv.ParseFloat(lexeme, 64); err == nil &&
		!math.IsInf(f, 0) && !math.IsNaN(f) {
		return Float(f)
	}

	return JSONNumber(lexeme)
}

// JSON exports the document with the fixed, contractually stable
// TeaLeaf→JSON representation:
//
//	Bytes      → "0x<lowercase hex>"
//	Timestamp  → ISO-8601 UTC (".fff" when millis > 0)
//	Ref        → {"$ref": "name"}
//	Tagged     → {"$tag": "name", "$value": …}
//	Map        → array of [key, value] pairs
//	NaN / ±Inf → null
//	JSONNumber → raw number token
//
// When the document is a root array, the "root" key unwraps to a bare
// array instead of nesting into an object.
func (d *Document) JSON(pretty bool) (string, error) {
	enc := &jsonEncoder{pretty: pretty}

	if d.rootArray {
		if root, ok := d.data.Get("root"); ok {
			enc.writeValue(root, 0)

			return enc.sb.String(), nil
		}
	}

	enc.writeDataObject(d)

	return enc.sb.String(), nil
}

// WriteJSON exports the document to w.
func (d *Document) WriteJSON(w io.Writer, pretty bool) error {
	out, err := d.JSON(pretty)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("writing json: %w", err)
	}

	return nil
}

type jsonEncoder struct {
	sb     strings.Builder
	pretty bool
}

func (e *jsonEncoder) writeDataObject(d *Document) {
	if d.data.Len() == 0 {
		e.sb.WriteString("{}")

		return
	}

	e.sb.WriteByte('{')

	i := 0
	last := d.data.Len() - 1

	d.Range(func(key string, v Value) bool {
		e.newlineIndent(1)
		e.writeJSONString(key)
		e.colon()
		e.writeValue(v, 1)

		if i < last {
			e.sb.WriteByte(',')
		}

		i++

		return true
	})

	e.newlineIndent(0)
	e.sb.WriteByte('}')
}

func (e *jsonEncoder) colon() {
	if e.pretty {
		e.sb.WriteString(": ")
	} else {
		e.sb.WriteByte(':')
	}
}

func (e *jsonEncoder) newlineIndent(depth int) {
	if !e.pretty {
		return
	}

	e.sb.WriteByte('\n')

	for range depth {
		e.sb.WriteString("  ")
	}
}

func (e *jsonEncoder) writeValue(v Value, depth int) {
	switch val := v.(type) {
	case nil, Null:
		e.sb.WriteString("null")
	case Bool:
		if val {
			e.sb.WriteString("true")
		} else {
			e.sb.WriteString("false")
		}
	case Int:
		e.sb.WriteString(strconv.FormatInt(int64(val), 10))
	case UInt:
		e.sb.WriteString(strconv.FormatUint(uint64(val), 10))
	case Float:
		e.writeFloat(float64(val))
	case JSONNumber:
		e.sb.WriteString(string(val))
	case String:
		e.writeJSONString(string(val))
	case Bytes:
		e.sb.WriteString(`"0x`)
		e.sb.WriteString(hex.EncodeToString(val))
		e.sb.WriteByte('"')
	case Timestamp:
		e.sb.WriteByte('"')
		e.sb.WriteString(formatISO8601(val.Millis))
		e.sb.WriteByte('"')
	case Ref:
		e.sb.WriteString(`{"$ref":`)

		if e.pretty {
			e.sb.WriteByte(' ')
		}

		e.writeJSONString(string(val))
		e.sb.WriteByte('}')
	case Tagged:
		e.sb.WriteString(`{"$tag":`)

		if e.pretty {
			e.sb.WriteByte(' ')
		}

		e.writeJSONString(val.Tag)
		e.sb.WriteString(`,"$value":`)

		if e.pretty {
			e.sb.WriteByte(' ')
		}

		e.writeValue(val.Inner, depth)
		e.sb.WriteByte('}')
	case Array:
		e.writeArray(val, depth)
	case *Object:
		e.writeObject(val, depth)
	case Map:
		pairs := make(Array, len(val))
		for i, entry := range val {
			pairs[i] = Array{entry.Key, entry.Val}
		}

		e.writeArray(pairs, depth)
	}
}

func (e *jsonEncoder) writeArray(arr Array, depth int) {
	if len(arr) == 0 {
		e.sb.WriteString("[]")

		return
	}

	e.sb.WriteByte('[')

	for i, v := range arr {
		e.newlineIndent(depth + 1)
		e.writeValue(v, depth+1)

		if i < len(arr)-1 {
			e.sb.WriteByte(',')
		}
	}

	e.newlineIndent(depth)
	e.sb.WriteByte(']')
}

func (e *jsonEncoder) writeObject(obj *Object, depth int) {
	if obj.Len() == 0 {
		e.sb.WriteString("{}")

		return
	}

	e.sb.WriteByte('{')

	i := 0
	last := obj.Len() - 1

	obj.Range(func(key string, v Value) bool {
		e.newlineIndent(depth + 1)
		e.writeJSONString(key)
		e.colon()
		e.writeValue(v, depth+1)

		if i < last {
			e.sb.WriteByte(',')
		}

		i++

		return true
	})

	e.newlineIndent(depth)
	e.sb.WriteByte('}')
}

func (e *jsonEncoder) writeFloat(f float64) {
	// JSON has no NaN or Infinity.
	if math.IsNaN(f) || math.IsInf(f, 0) {
		e.sb.WriteString("null")

		return
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)

	// Keep the float/int distinction visible in the output: a
	// whole-number float renders with a trailing .0.
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}

	e.sb.WriteString(s)
}

func (e *jsonEncoder) writeJSONString(s string) {
	out, err := json.Marshal(s)
	if err != nil {
		// Marshal of a string cannot fail; guard anyway.
		e.sb.WriteString(`""`)

		return
	}

	e.sb.Write(out)
}
