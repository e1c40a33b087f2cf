package tealeaf

import "strings"

// Schema inference for JSON imports: arrays whose elements are objects
// with one shared shape produce a synthesised schema, enabling @table
// output. The walk mirrors the structural inference in the teacher's
// schema generator — per-element type detection with widening — applied
// to the TeaLeaf field-type vocabulary.

// inferSchemas walks the document's data and registers a schema for
// every uniform array of objects it finds. Non-uniform arrays are left
// as plain arrays.
func inferSchemas(doc *Document) {
	inf := &inferrer{doc: doc}

	doc.Range(func(key string, v Value) bool {
		inf.walk(key, v)

		return true
	})
}

type inferrer struct {
	doc *Document
}

// walk descends into composites, inferring schemas for uniform object
// arrays bottom-up so nested table shapes register before their
// parents.
func (inf *inferrer) walk(key string, v Value) {
	switch val := v.(type) {
	case Array:
		inf.inferArray(key, val)
	case *Object:
		val.Range(func(childKey string, child Value) bool {
			inf.walk(childKey, child)

			return true
		})
	}
}

// inferArray registers a schema for arr when every element is an object
// with the same field names and compatible per-field scalar types.
// Returns the schema name, or "" when the array is not uniform.
func (inf *inferrer) inferArray(key string, arr Array) string {
	if len(arr) == 0 {
		return ""
	}

	objs := make([]*Object, 0, len(arr))

	for _, v := range arr {
		obj, ok := v.(*Object)
		if !ok {
			// Not an object array: still look inside nested arrays.
			if inner, isArr := v.(Array); isArr {
				inf.inferArray(key, inner)
			}

			return ""
		}

		objs = append(objs, obj)
	}

	shape := objs[0].Keys()

	for _, obj := range objs[1:] {
		if !sameKeySet(shape, obj) {
			return ""
		}
	}

	schema := NewSchema(inf.schemaName(key, shape))

	for _, fieldName := range shape {
		if !isIdentifier(fieldName) {
			return ""
		}

		ft, ok := inf.inferFieldType(fieldName, objs)
		if !ok {
			return ""
		}

		schema.AddField(fieldName, ft)
	}

	inf.doc.AddSchema(schema)

	return schema.Name
}

// inferFieldType finds the most specific field type fitting every
// occurrence of fieldName across the rows.
func (inf *inferrer) inferFieldType(fieldName string, objs []*Object) (FieldType, bool) {
	base := ""
	nullable := false
	sawArray := false
	arrayElem := ""

	for _, obj := range objs {
		v, _ := obj.Get(fieldName)

		switch fv := v.(type) {
		case Null:
			nullable = true
		case Bool:
			base = widenBase(base, "bool")
		case Int:
			base = widenBase(base, "int")
		case UInt:
			if uint64(fv) > maxInt64 {
				base = widenBase(base, "uint")
			} else {
				base = widenBase(base, "int")
			}
		case Float:
			base = widenBase(base, "float")
		case String:
			base = widenBase(base, "string")
		case Array:
			// A nested uniform object array recurses into its own
			// schema; anything else defeats inference for this array.
			name := inf.inferArray(fieldName, fv)
			if name == "" {
				return FieldType{}, false
			}

			sawArray = true

			if arrayElem != "" && arrayElem != name {
				return FieldType{}, false
			}

			arrayElem = name
		default:
			return FieldType{}, false
		}

		if base == "incompatible" {
			return FieldType{}, false
		}
	}

	if sawArray {
		if base != "" {
			return FieldType{}, false
		}

		ft := NewFieldType(arrayElem).ArrayOf()
		ft.Nullable = nullable

		return ft, true
	}

	if base == "" {
		// Only nulls seen.
		base = "string"
	}

	ft := NewFieldType(base)
	ft.Nullable = nullable

	return ft, true
}

// widenBase merges two scalar bases: identical types keep, int+float
// widens to float, int+uint widens to uint, anything else is
// incompatible.
func widenBase(a, b string) string {
	switch {
	case a == "" || a == b:
		return b
	case (a == "int" && b == "float") || (a == "float" && b == "int"):
		return "float"
	case (a == "int" && b == "uint") || (a == "uint" && b == "int"):
		return "uint"
	default:
		return "incompatible"
	}
}

// schemaName derives a schema name from the parent key: singularise
// where possible, fall back to parent + "_item". Collisions with a
// differently-shaped existing schema append "_item".
func (inf *inferrer) schemaName(key string, shape []string) string {
	name := singularize(key)
	if !isIdentifier(name) {
		name = "item"
	}

	if existing, ok := inf.doc.Schema(name); ok && !sameFieldNames(existing, shape) {
		name += "_item"
	}

	return name
}

// singularize turns a plural key into a singular schema name:
// "entries" → "entry", "products" → "product". Keys with no plural
// suffix get an "_item" suffix.
func singularize(key string) string {
	switch {
	case strings.HasSuffix(key, "ies") && len(key) > 3:
		return key[:len(key)-3] + "y"
	case strings.HasSuffix(key, "ses") && len(key) > 3:
		return key[:len(key)-2]
	case strings.HasSuffix(key, "s") && !strings.HasSuffix(key, "ss") && len(key) > 1:
		return key[:len(key)-1]
	default:
		return key + "_item"
	}
}

func sameKeySet(shape []string, obj *Object) bool {
	if obj.Len() != len(shape) {
		return false
	}

	for _, key := range shape {
		if !obj.Has(key) {
			return false
		}
	}

	return true
}

func sameFieldNames(schema *Schema, shape []string) bool {
	if len(schema.Fields) != len(shape) {
		return false
	}

	for i, f := range schema.Fields {
		if f.Name != shape[i] {
			return false
		}
	}

	return true
}
