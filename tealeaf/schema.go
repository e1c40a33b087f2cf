package tealeaf

// FieldType describes the declared type of a schema field: a base name,
// an array marker, and a nullable marker. Base names are either a
// built-in scalar keyword (bool, int8/16/32/64, int, uint8/16/32/64,
// uint, float32, float, string, bytes, timestamp) or the name of another
// schema defined in the same document.
type FieldType struct {
	Base     string
	IsArray  bool
	Nullable bool
}

// NewFieldType returns a non-array, non-nullable field type with the
// given base name.
func NewFieldType(base string) FieldType {
	return FieldType{Base: base}
}

// ArrayOf returns a copy of ft with the array marker set.
func (ft FieldType) ArrayOf() FieldType {
	ft.IsArray = true

	return ft
}

// NullableOf returns a copy of ft with the nullable marker set.
func (ft FieldType) NullableOf() FieldType {
	ft.Nullable = true

	return ft
}

// String renders the field type in text-format notation, e.g.
// "[]string?".
func (ft FieldType) String() string {
	s := ft.Base
	if ft.IsArray {
		s = "[]" + s
	}

	if ft.Nullable {
		s += "?"
	}

	return s
}

// isBuiltin reports whether the base name is a built-in scalar keyword
// rather than a schema reference.
func (ft FieldType) isBuiltin() bool {
	switch ft.Base {
	case "bool",
		"int8", "int16", "int32", "int64", "int",
		"uint8", "uint16", "uint32", "uint64", "uint",
		"float32", "float64", "float",
		"string", "bytes", "timestamp":
		return true
	}

	return false
}

// Field is one named, typed slot of a [Schema] or [Variant].
type Field struct {
	Name string
	Type FieldType
}

// Schema is a named record type with an ordered field list. Rows of a
// @table directive and binary struct payloads are encoded against it.
type Schema struct {
	Name   string
	Fields []Field
}

// NewSchema returns an empty schema with the given name.
func NewSchema(name string) *Schema {
	return &Schema{Name: name}
}

// AddField appends a field and returns the schema for chaining.
func (s *Schema) AddField(name string, ft FieldType) *Schema {
	s.Fields = append(s.Fields, Field{Name: name, Type: ft})

	return s
}

// FieldNames returns the field names in declaration order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}

	return names
}

// bitmapBytes returns the size of the per-row null bitmap for this
// schema.
func (s *Schema) bitmapBytes() int {
	return (len(s.Fields) + 7) / 8
}

// Variant is one alternative of a [Union]: a named record with its own
// field list.
type Variant struct {
	Name   string
	Fields []Field
}

// Union is a named set of variants. Unions are parsed and round-tripped
// through text; at runtime a [Tagged] value whose tag matches a variant
// name satisfies the union.
type Union struct {
	Name     string
	Variants []Variant
}

// NewUnion returns an empty union with the given name.
func NewUnion(name string) *Union {
	return &Union{Name: name}
}

// AddVariant appends a variant and returns the union for chaining.
func (u *Union) AddVariant(v Variant) *Union {
	u.Variants = append(u.Variants, v)

	return u
}

// Variant returns the variant with the given name.
func (u *Union) Variant(name string) (Variant, bool) {
	for _, v := range u.Variants {
		if v.Name == name {
			return v, true
		}
	}

	return Variant{}, false
}

// isIdentifier reports whether s matches [A-Za-z_][A-Za-z0-9_-]*, the
// shape required of field, key, and identifier names.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9', c == '-':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}

	return true
}
