package tealeaf

import (
	"fmt"
	"os"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Document is a parsed TeaLeaf document: schema and union definitions
// plus the ordered top-level data mapping. Documents are immutable once
// constructed; writers consume them by reference.
type Document struct {
	schemas   *orderedmap.OrderedMap[string, *Schema]
	unions    *orderedmap.OrderedMap[string, *Union]
	data      *orderedmap.OrderedMap[string, Value]
	rootArray bool
}

// NewDocument returns an empty document for programmatic construction.
// For parsing, use [Parse], [Load], or [FromJSON].
func NewDocument() *Document {
	return &Document{
		schemas: orderedmap.New[string, *Schema](),
		unions:  orderedmap.New[string, *Union](),
		data:    orderedmap.New[string, Value](),
	}
}

// Parse parses TeaLeaf text.
func Parse(input string) (*Document, error) {
	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		return nil, err
	}

	parser := NewParser(tokens)

	data, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	return &Document{
		schemas:   parser.Schemas(),
		unions:    parser.Unions(),
		data:      data,
		rootArray: parser.IsRootArray(),
	}, nil
}

// Load parses a TeaLeaf text file. Include paths resolve relative to
// the loaded file's directory.
func Load(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	tokens, err := NewLexer(string(content)).Tokenize()
	if err != nil {
		return nil, err
	}

	parser := NewParser(tokens).WithBasePath(path)

	data, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	return &Document{
		schemas:   parser.Schemas(),
		unions:    parser.Unions(),
		data:      data,
		rootArray: parser.IsRootArray(),
	}, nil
}

// Get returns the value stored under a top-level key.
func (d *Document) Get(key string) (Value, bool) {
	return d.data.Get(key)
}

// Keys returns the top-level data keys in source order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, d.data.Len())
	for pair := d.data.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}

	return keys
}

// Len returns the number of top-level data keys.
func (d *Document) Len() int {
	return d.data.Len()
}

// Set stores a value under a top-level key. It is intended for
// programmatic document construction before the document is handed to
// a writer.
func (d *Document) Set(key string, v Value) {
	d.data.Set(key, v)
}

// Schema returns the schema with the given name.
func (d *Document) Schema(name string) (*Schema, bool) {
	return d.schemas.Get(name)
}

// SchemaNames returns schema names in definition order.
func (d *Document) SchemaNames() []string {
	names := make([]string, 0, d.schemas.Len())
	for pair := d.schemas.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}

	return names
}

// AddSchema registers a schema definition, replacing any previous
// schema of the same name.
func (d *Document) AddSchema(s *Schema) {
	d.schemas.Set(s.Name, s)
}

// Union returns the union with the given name.
func (d *Document) Union(name string) (*Union, bool) {
	return d.unions.Get(name)
}

// UnionNames returns union names in definition order.
func (d *Document) UnionNames() []string {
	names := make([]string, 0, d.unions.Len())
	for pair := d.unions.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}

	return names
}

// AddUnion registers a union definition.
func (d *Document) AddUnion(u *Union) {
	d.unions.Set(u.Name, u)
}

// IsRootArray reports whether the document's logical top level is an
// array rather than a mapping (the @root-array directive in text, flag
// bit 1 in binary).
func (d *Document) IsRootArray() bool {
	return d.rootArray
}

// SetRootArray records that the logical top-level shape is an array.
func (d *Document) SetRootArray(rootArray bool) {
	d.rootArray = rootArray
}

// Range calls fn for each top-level entry in source order until fn
// returns false.
func (d *Document) Range(fn func(key string, v Value) bool) {
	for pair := d.data.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// Compile serialises the document to a binary .tlbx file.
func (d *Document) Compile(path string, compress bool) error {
	w := NewWriter()
	w.SetRootArray(d.rootArray)

	for pair := d.schemas.Oldest(); pair != nil; pair = pair.Next() {
		w.AddSchema(pair.Value)
	}

	for pair := d.data.Oldest(); pair != nil; pair = pair.Next() {
		w.AddSection(pair.Key, pair.Value, d.findSchemaForValue(pair.Value))
	}

	return w.WriteFile(path, compress)
}

// findSchemaForValue searches the registered schemas for one whose
// fields exactly match the keys of the objects in an array value.
// Resolution is by name-set match in definition order; the first
// registered schema wins.
func (d *Document) findSchemaForValue(v Value) *Schema {
	arr, ok := v.(Array)
	if !ok || len(arr) == 0 {
		return nil
	}

	objs := make([]*Object, len(arr))

	for i, elem := range arr {
		obj, isObj := elem.(*Object)
		if !isObj {
			return nil
		}

		objs[i] = obj
	}

	for pair := d.schemas.Oldest(); pair != nil; pair = pair.Next() {
		schema := pair.Value

		match := true

		for _, obj := range objs {
			if len(schema.Fields) != obj.Len() {
				match = false

				break
			}

			for _, f := range schema.Fields {
				if !obj.Has(f.Name) {
					match = false

					break
				}
			}

			if !match {
				break
			}
		}

		if match {
			return schema
		}
	}

	return nil
}

// TableSchema returns the registered schema whose fields exactly match
// the objects stored under the given top-level key, if any. This is the
// same resolution the text and binary writers use for @table
// compaction.
func (d *Document) TableSchema(key string) (*Schema, bool) {
	v, ok := d.data.Get(key)
	if !ok {
		return nil, false
	}

	schema := d.findSchemaForValue(v)

	return schema, schema != nil
}

// GetPath traverses the document by a dotted path with optional array
// indices, e.g. "users[2].name". See [PathLookup].
func (d *Document) GetPath(path string) (Value, bool) {
	segments, err := splitPath(path)
	if err != nil || len(segments) == 0 {
		return nil, false
	}

	root, ok := d.data.Get(segments[0].key)
	if !ok {
		return nil, false
	}

	v, ok := applyIndexes(root, segments[0].indexes)
	if !ok {
		return nil, false
	}

	return lookupSegments(v, segments[1:])
}
