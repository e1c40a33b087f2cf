package tealeaf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishjag/tealeaf/tealeaf"
)

func fromJSONWithSchemas(t *testing.T, input string) *tealeaf.Document {
	t.Helper()

	doc, err := tealeaf.FromJSONWithSchemas(input)
	require.NoError(t, err)

	return doc
}

func TestInferUniformArray(t *testing.T) {
	t.Parallel()

	doc := fromJSONWithSchemas(t,
		`{"products": [{"id": 1, "name": "a"}, {"id": 2, "name": "b"}]}`)

	schema, ok := doc.Schema("product")
	require.True(t, ok, "expected singularised schema name")
	require.Len(t, schema.Fields, 2)

	assert.Equal(t, "id", schema.Fields[0].Name)
	assert.Equal(t, "int", schema.Fields[0].Type.Base)
	assert.Equal(t, "name", schema.Fields[1].Name)
	assert.Equal(t, "string", schema.Fields[1].Type.Base)

	// The schema matches the array, so text output compacts to @table.
	text := doc.Text(tealeaf.TextOptions{})
	assert.Contains(t, text, "@struct product (id: int, name: string)")
	assert.Contains(t, text, "products: @table product [")
}

func TestInferSchemaNames(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		key  string
		want string
	}{
		"plural s":    {key: "users", want: "user"},
		"ies plural":  {key: "entries", want: "entry"},
		"ses plural":  {key: "statuses", want: "status"},
		"no plural":   {key: "data", want: "data_item"},
		"double s":    {key: "class", want: "class_item"},
		"single char": {key: "s", want: "s_item"},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			doc := fromJSONWithSchemas(t,
				`{"`+tc.key+`": [{"x": 1}, {"x": 2}]}`)

			_, ok := doc.Schema(tc.want)
			assert.True(t, ok, "expected schema %q, have %v", tc.want, doc.SchemaNames())
		})
	}
}

func TestInferNullable(t *testing.T) {
	t.Parallel()

	doc := fromJSONWithSchemas(t,
		`{"rows": [{"a": "x", "b": 1}, {"a": null, "b": 2}]}`)

	schema, ok := doc.Schema("row")
	require.True(t, ok)

	assert.True(t, schema.Fields[0].Type.Nullable)
	assert.Equal(t, "string", schema.Fields[0].Type.Base)
	assert.False(t, schema.Fields[1].Type.Nullable)
}

func TestInferNumericWidening(t *testing.T) {
	t.Parallel()

	doc := fromJSONWithSchemas(t,
		`{"points": [{"v": 1}, {"v": 2.5}]}`)

	schema, ok := doc.Schema("point")
	require.True(t, ok)
	assert.Equal(t, "float", schema.Fields[0].Type.Base)
}

func TestInferNonUniformLeftPlain(t *testing.T) {
	t.Parallel()

	tcs := map[string]string{
		"different keys":     `{"rows": [{"a": 1}, {"b": 2}]}`,
		"incompatible types": `{"rows": [{"a": 1}, {"a": true}]}`,
		"mixed elements":     `{"rows": [{"a": 1}, 5]}`,
		"object field":       `{"rows": [{"a": {"x": 1}}, {"a": {"x": 2}}]}`,
		"scalar array":       `{"rows": [1, 2, 3]}`,
	}

	for name, input := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			doc := fromJSONWithSchemas(t, input)
			assert.Empty(t, doc.SchemaNames(), "no schema expected for %s", input)
		})
	}
}

func TestInferNestedUniformArrays(t *testing.T) {
	t.Parallel()

	doc := fromJSONWithSchemas(t, `{
		"teams": [
			{"name": "a", "members": [{"id": 1}, {"id": 2}]},
			{"name": "b", "members": [{"id": 3}]}
		]
	}`)

	members, ok := doc.Schema("member")
	require.True(t, ok, "nested uniform array gets its own schema")
	assert.Equal(t, "id", members.Fields[0].Name)

	team, ok := doc.Schema("team")
	require.True(t, ok)

	require.Len(t, team.Fields, 2)
	assert.Equal(t, "member", team.Fields[1].Type.Base)
	assert.True(t, team.Fields[1].Type.IsArray)
}

func TestInferInsideNestedObjects(t *testing.T) {
	t.Parallel()

	doc := fromJSONWithSchemas(t,
		`{"report": {"items": [{"sku": "a", "qty": 1}, {"sku": "b", "qty": 2}]}}`)

	_, ok := doc.Schema("item")
	assert.True(t, ok, "inference descends into nested objects")
}

func TestInferRootArray(t *testing.T) {
	t.Parallel()

	doc := fromJSONWithSchemas(t, `[{"id": 1}, {"id": 2}]`)

	require.True(t, doc.IsRootArray())
	assert.NotEmpty(t, doc.SchemaNames())

	// S4: export returns the bare array, not {"root": ...}.
	out, err := doc.JSON(false)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1},{"id":2}]`, out)
}

func TestInferredTableBinaryRoundTrip(t *testing.T) {
	t.Parallel()

	doc := fromJSONWithSchemas(t,
		`{"users": [{"id": 1, "name": "a"}, {"id": 2, "name": "b"}]}`)

	r := requireBinaryRoundTrip(t, doc, true)

	v, err := r.GetPath("users[1].name")
	require.NoError(t, err)
	assert.Equal(t, tealeaf.String("b"), v)
}
