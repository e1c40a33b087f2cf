package tealeaf

import (
	"bytes"
	"math"
	"strconv"
)

// Equal reports structural equality of two values.
//
// Comparison rules:
//   - NaN floats compare by bit pattern, so NaN == NaN.
//   - Int, UInt, and JSONNumber compare across variants when they
//     denote the same integer.
//   - Object comparison requires identical key order (order is part of
//     a document's identity across round trips).
//
// Float/Int substitution for whole-number values is NOT tolerated here;
// use [EqualCompactFloats] for comparisons across a compact-floats
// rewrite, the one documented round-trip asymmetry.
func Equal(a, b Value) bool {
	return equalValues(a, b, false)
}

// EqualCompactFloats is [Equal] plus the compact-floats tolerance:
// Float(42.0) compares equal to Int(42) and UInt(42).
func EqualCompactFloats(a, b Value) bool {
	return equalValues(a, b, true)
}

func equalValues(a, b Value, compactFloats bool) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)

		return ok
	case Bool:
		bv, ok := b.(Bool)

		return ok && av == bv
	case Int:
		return equalNumeric(int64(av), true, 0, a, b, compactFloats)
	case UInt:
		return equalNumeric(0, false, uint64(av), a, b, compactFloats)
	case Float:
		return equalFloat(float64(av), b, compactFloats)
	case JSONNumber:
		return equalJSONNumber(string(av), b)
	case String:
		bv, ok := b.(String)

		return ok && av == bv
	case Bytes:
		bv, ok := b.(Bytes)

		return ok && bytes.Equal(av, bv)
	case Timestamp:
		bv, ok := b.(Timestamp)

		return ok && av.Millis == bv.Millis
	case Ref:
		bv, ok := b.(Ref)

		return ok && av == bv
	case Tagged:
		bv, ok := b.(Tagged)

		return ok && av.Tag == bv.Tag && equalValues(av.Inner, bv.Inner, compactFloats)
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}

		for i := range av {
			if !equalValues(av[i], bv[i], compactFloats) {
				return false
			}
		}

		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}

		for i := range av {
			if !equalValues(av[i].Key, bv[i].Key, compactFloats) ||
				!equalValues(av[i].Val, bv[i].Val, compactFloats) {
				return false
			}
		}

		return true
	case *Object:
		bv, ok := b.(*Object)
		if !ok || av.Len() != bv.Len() {
			return false
		}

		aKeys := av.Keys()
		bKeys := bv.Keys()

		for i, key := range aKeys {
			if key != bKeys[i] {
				return false
			}

			x, _ := av.Get(key)
			y, _ := bv.Get(key)

			if !equalValues(x, y, compactFloats) {
				return false
			}
		}

		return true
	}

	return false
}

// equalNumeric compares an integer (signed or unsigned) against any
// numeric variant of b.
func equalNumeric(i int64, signed bool, u uint64, _, b Value, compactFloats bool) bool {
	switch bv := b.(type) {
	case Int:
		if signed {
			return i == int64(bv)
		}

		return int64(bv) >= 0 && u == uint64(bv)
	case UInt:
		if signed {
			return i >= 0 && uint64(i) == uint64(bv)
		}

		return u == uint64(bv)
	case JSONNumber:
		if signed {
			parsed, err := strconv.ParseInt(string(bv), 10, 64)

			return err == nil && parsed == i
		}

		parsed, err := strconv.ParseUint(string(bv), 10, 64)

		return err == nil && parsed == u
	case Float:
		if !compactFloats {
			return false
		}

		f := float64(bv)
		if signed {
			return f == math.Trunc(f) && f == float64(i)
		}

		return f == math.Trunc(f) && f == float64(u)
	}

	return false
}

func equalFloat(f float64, b Value, compactFloats bool) bool {
	switch bv := b.(type) {
	case Float:
		// NaN compares by bit pattern.
		return math.Float64bits(f) == math.Float64bits(float64(bv))
	case Int:
		return compactFloats && f == math.Trunc(f) && f == float64(int64(bv))
	case UInt:
		return compactFloats && f == math.Trunc(f) && f == float64(uint64(bv))
	}

	return false
}

func equalJSONNumber(s string, b Value) bool {
	switch bv := b.(type) {
	case JSONNumber:
		return s == string(bv)
	case Int:
		parsed, err := strconv.ParseInt(s, 10, 64)

		return err == nil && parsed == int64(bv)
	case UInt:
		parsed, err := strconv.ParseUint(s, 10, 64)

		return err == nil && parsed == uint64(bv)
	}

	return false
}
