package tlschema

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/krishjag/tealeaf/tealeaf"
)

// JSON Schema type constants.
const (
	typeBoolean = "boolean"
	typeInteger = "integer"
	typeNumber  = "number"
	typeString  = "string"
	typeArray   = "array"
	typeObject  = "object"
)

// FromDocument renders a document's TeaLeaf schema and union
// definitions as a JSON Schema: every @struct and @union becomes a
// $defs entry, and each top-level key whose value matches a registered
// schema gets a typed property referencing it.
func FromDocument(doc *tealeaf.Document) *jsonschema.Schema {
	root := &jsonschema.Schema{
		Schema:     "http://json-schema.org/draft-07/schema#",
		Type:       typeObject,
		Defs:       map[string]*jsonschema.Schema{},
		Properties: map[string]*jsonschema.Schema{},
	}

	for _, name := range doc.SchemaNames() {
		schema, _ := doc.Schema(name)
		root.Defs[name] = fromSchema(schema)
	}

	for _, name := range doc.UnionNames() {
		union, _ := doc.Union(name)
		root.Defs[name] = fromUnion(union)
	}

	for _, key := range doc.Keys() {
		schema, ok := doc.TableSchema(key)
		if !ok {
			root.Properties[key] = &jsonschema.Schema{}

			continue
		}

		root.Properties[key] = &jsonschema.Schema{
			Type:  typeArray,
			Items: refTo(schema.Name),
		}
	}

	if len(root.Defs) == 0 {
		root.Defs = nil
	}

	if len(root.Properties) == 0 {
		root.Properties = nil
	}

	return root
}

// fromSchema converts one record definition into an object schema with
// every field required unless nullable.
func fromSchema(s *tealeaf.Schema) *jsonschema.Schema {
	out := &jsonschema.Schema{
		Type:       typeObject,
		Properties: make(map[string]*jsonschema.Schema, len(s.Fields)),
	}

	for _, f := range s.Fields {
		out.Properties[f.Name] = fromFieldType(f.Type)

		if !f.Type.Nullable {
			out.Required = append(out.Required, f.Name)
		}
	}

	return out
}

// fromUnion converts a union into a oneOf over its variants, each
// discriminated by a $tag constant.
func fromUnion(u *tealeaf.Union) *jsonschema.Schema {
	variants := make([]*jsonschema.Schema, 0, len(u.Variants))

	for _, v := range u.Variants {
		vs := &jsonschema.Schema{
			Type: typeObject,
			Properties: map[string]*jsonschema.Schema{
				"$tag": {Type: typeString, Const: jsonschema.Ptr(any(v.Name))},
			},
			Required: []string{"$tag"},
		}

		for _, f := range v.Fields {
			vs.Properties[f.Name] = fromFieldType(f.Type)
		}

		variants = append(variants, vs)
	}

	return &jsonschema.Schema{OneOf: variants}
}

func fromFieldType(ft tealeaf.FieldType) *jsonschema.Schema {
	var elem *jsonschema.Schema

	switch ft.Base {
	case "bool":
		elem = &jsonschema.Schema{Type: typeBoolean}
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64":
		elem = &jsonschema.Schema{Type: typeInteger}
	case "float", "float32", "float64":
		elem = &jsonschema.Schema{Type: typeNumber}
	case "string", "bytes":
		elem = &jsonschema.Schema{Type: typeString}
	case "timestamp":
		elem = &jsonschema.Schema{Type: typeString, Format: "date-time"}
	default:
		// A schema reference.
		elem = refTo(ft.Base)
	}

	if ft.IsArray {
		elem = &jsonschema.Schema{Type: typeArray, Items: elem}
	}

	if ft.Nullable {
		return nullable(elem)
	}

	return elem
}

// nullable widens a schema to also accept null.
func nullable(s *jsonschema.Schema) *jsonschema.Schema {
	if s.Type != "" && s.Ref == "" {
		return &jsonschema.Schema{Types: []string{s.Type, "null"}, Items: s.Items, Format: s.Format}
	}

	return &jsonschema.Schema{AnyOf: []*jsonschema.Schema{s, {Type: "null"}}}
}

func refTo(name string) *jsonschema.Schema {
	return &jsonschema.Schema{Ref: "#/$defs/" + name}
}
