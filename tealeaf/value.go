package tealeaf

import (
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Value is the TeaLeaf value model: a sealed sum of scalars, composites,
// and the four special variants (Ref, Tagged, Timestamp, Map).
//
// Concrete types are [Null], [Bool], [Int], [UInt], [Float], [JSONNumber],
// [String], [Bytes], [Timestamp], [Array], [*Object], [Map], [Ref], and
// [Tagged]. Consumers dispatch with a type switch.
type Value interface {
	isValue()
}

// Null is the absent value, written as ~ in text.
type Null struct{}

// Bool is a boolean value.
type Bool bool

// Int is a signed 64-bit integer.
type Int int64

// UInt is an unsigned 64-bit integer, produced by positive literals too
// large for [Int].
type UInt uint64

// Float is an IEEE-754 double. NaN and ±Inf serialise to JSON null.
type Float float64

// JSONNumber is a decimal lexeme that fits neither int64 nor uint64 and
// is not a finite float64. It round-trips as text.
type JSONNumber string

// String is a UTF-8 string value.
type String string

// Bytes is an opaque byte sequence, written b"hexpairs" in text.
type Bytes []byte

// Timestamp is a point in time as signed milliseconds since the Unix
// epoch, plus the numeric timezone offset (in minutes) the source
// carried. The binary container stores only the milliseconds.
type Timestamp struct {
	Millis    int64
	TZMinutes int16
}

// Array is an ordered, possibly heterogeneous sequence of values.
type Array []Value

// Map is an ordered sequence of key/value pairs whose keys are
// themselves values. Text-format map keys are restricted to strings,
// names, and integers.
type Map []MapEntry

// MapEntry is one key/value pair of a [Map].
type MapEntry struct {
	Key Value
	Val Value
}

// Ref is a reference to another key, written !name in text.
type Ref string

// Tagged wraps a value with an identifier tag, written :tag value in
// text.
type Tagged struct {
	Tag   string
	Inner Value
}

// Object is an ordered string-keyed mapping. Key order is preserved
// across every conversion path.
type Object struct {
	entries *orderedmap.OrderedMap[string, Value]
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{entries: orderedmap.New[string, Value]()}
}

// Set stores v under key, appending the key if it is new and replacing
// the value in place (order preserved) if it already exists.
func (o *Object) Set(key string, v Value) {
	o.entries.Set(key, v)
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	return o.entries.Get(key)
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.entries.Get(key)

	return ok
}

// Len returns the number of entries.
func (o *Object) Len() int {
	return o.entries.Len()
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, o.entries.Len())
	for pair := o.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}

	return keys
}

// Range calls fn for each entry in insertion order until fn returns
// false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	for pair := o.entries.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

func (Null) isValue()       {}
func (Bool) isValue()       {}
func (Int) isValue()        {}
func (UInt) isValue()       {}
func (Float) isValue()      {}
func (JSONNumber) isValue() {}
func (String) isValue()     {}
func (Bytes) isValue()      {}
func (Timestamp) isValue()  {}
func (Array) isValue()      {}
func (*Object) isValue()    {}
func (Map) isValue()        {}
func (Ref) isValue()        {}
func (Tagged) isValue()     {}

// IsNull reports whether v is the [Null] value.
func IsNull(v Value) bool {
	_, ok := v.(Null)

	return ok
}

// AsInt returns the signed integer payload of v. [UInt] values in int64
// range and [JSONNumber] lexemes that parse as int64 coerce.
func AsInt(v Value) (int64, bool) {
	switch n := v.(type) {
	case Int:
		return int64(n), true
	case UInt:
		if uint64(n) <= maxInt64 {
			return int64(n), true
		}
	case JSONNumber:
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return i, true
		}
	}

	return 0, false
}

// AsUInt returns the unsigned integer payload of v. Non-negative [Int]
// values coerce.
func AsUInt(v Value) (uint64, bool) {
	switch n := v.(type) {
	case UInt:
		return uint64(n), true
	case Int:
		if n >= 0 {
			return uint64(n), true
		}
	case JSONNumber:
		if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
			return u, true
		}
	}

	return 0, false
}

// AsFloat returns the floating-point payload of v. Integer values
// coerce.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Float:
		return float64(n), true
	case Int:
		return float64(n), true
	case UInt:
		return float64(n), true
	}

	return 0, false
}

// AsString returns the string payload of v.
func AsString(v Value) (string, bool) {
	s, ok := v.(String)

	return string(s), ok
}

// AsBool returns the boolean payload of v.
func AsBool(v Value) (bool, bool) {
	b, ok := v.(Bool)

	return bool(b), ok
}

const maxInt64 = uint64(1<<63 - 1)
