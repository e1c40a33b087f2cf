package tealeaf_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishjag/tealeaf/tealeaf"
)

func parse(t *testing.T, input string) *tealeaf.Document {
	t.Helper()

	doc, err := tealeaf.Parse(input)
	require.NoError(t, err)

	return doc
}

func get(t *testing.T, doc *tealeaf.Document, key string) tealeaf.Value {
	t.Helper()

	v, ok := doc.Get(key)
	require.True(t, ok, "missing key %q", key)

	return v
}

func TestParseScalars(t *testing.T) {
	t.Parallel()

	doc := parse(t, "a: 1, b: hello, c: true, d: ~, e: 3.5, f: b\"cafe\"")

	assert.Equal(t, tealeaf.Int(1), get(t, doc, "a"))
	assert.Equal(t, tealeaf.String("hello"), get(t, doc, "b"))
	assert.Equal(t, tealeaf.Bool(true), get(t, doc, "c"))
	assert.Equal(t, tealeaf.Null{}, get(t, doc, "d"))
	assert.Equal(t, tealeaf.Float(3.5), get(t, doc, "e"))
	assert.Equal(t, tealeaf.Bytes{0xCA, 0xFE}, get(t, doc, "f"))
}

func TestParseKeyOrderPreserved(t *testing.T) {
	t.Parallel()

	doc := parse(t, "zulu: 1\nalpha: 2\nmike: 3")
	assert.Equal(t, []string{"zulu", "alpha", "mike"}, doc.Keys())
}

func TestParseObject(t *testing.T) {
	t.Parallel()

	doc := parse(t, "obj: {x: 1, y: 2}")

	obj, ok := get(t, doc, "obj").(*tealeaf.Object)
	require.True(t, ok)

	x, _ := obj.Get("x")
	assert.Equal(t, tealeaf.Int(1), x)
	assert.Equal(t, []string{"x", "y"}, obj.Keys())
}

func TestParseArrayAndTuple(t *testing.T) {
	t.Parallel()

	doc := parse(t, "arr: [1, 2, 3]\ntup: (4, five, 6.0)")

	arr, ok := get(t, doc, "arr").(tealeaf.Array)
	require.True(t, ok)
	require.Len(t, arr, 3)
	assert.Equal(t, tealeaf.Int(1), arr[0])

	// Tuples are arrays on the wire.
	tup, ok := get(t, doc, "tup").(tealeaf.Array)
	require.True(t, ok)
	require.Len(t, tup, 3)
	assert.Equal(t, tealeaf.String("five"), tup[1])
}

func TestParseNestedComposites(t *testing.T) {
	t.Parallel()

	doc := parse(t, "outer: {inner: {x: [1, [2, 3]]}}")

	v, ok := doc.GetPath("outer.inner.x[1][0]")
	require.True(t, ok)
	assert.Equal(t, tealeaf.Int(2), v)
}

func TestParseStructAndTable(t *testing.T) {
	t.Parallel()

	doc := parse(t, `
		@struct point (x: int, y: int)
		points: @table point [
			(1, 2),
			(3, 4),
		]
	`)

	schema, ok := doc.Schema("point")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, schema.FieldNames())

	points, ok := get(t, doc, "points").(tealeaf.Array)
	require.True(t, ok)
	require.Len(t, points, 2)

	p0, ok := points[0].(*tealeaf.Object)
	require.True(t, ok)

	x, _ := p0.Get("x")
	y, _ := p0.Get("y")
	assert.Equal(t, tealeaf.Int(1), x)
	assert.Equal(t, tealeaf.Int(2), y)
}

func TestParseTableNullableColumn(t *testing.T) {
	t.Parallel()

	doc := parse(t, `
		@struct r (name: string, email: string?)
		r: @table r [
			("a", "x@y"),
			("b", ~),
		]
	`)

	rows, ok := get(t, doc, "r").(tealeaf.Array)
	require.True(t, ok)
	require.Len(t, rows, 2)

	row1, ok := rows[1].(*tealeaf.Object)
	require.True(t, ok)

	email, _ := row1.Get("email")
	assert.Equal(t, tealeaf.Null{}, email)
}

func TestParseTableNestedStruct(t *testing.T) {
	t.Parallel()

	doc := parse(t, `
		@struct point (x: int, y: int)
		@struct line (start: point, end: point)
		lines: @table line [
			((1, 2), (3, 4)),
		]
	`)

	v, ok := doc.GetPath("lines[0].start.y")
	require.True(t, ok)
	assert.Equal(t, tealeaf.Int(2), v)
}

func TestParseTableArrayField(t *testing.T) {
	t.Parallel()

	doc := parse(t, `
		@struct user (name: string, scores: []int)
		users: @table user [
			(alice, [90, 85]),
		]
	`)

	v, ok := doc.GetPath("users[0].scores[1]")
	require.True(t, ok)
	assert.Equal(t, tealeaf.Int(85), v)
}

func TestParseTableUnknownStruct(t *testing.T) {
	t.Parallel()

	_, err := tealeaf.Parse("rows: @table missing [(1)]")
	require.ErrorIs(t, err, tealeaf.ErrUnknownStruct)
}

func TestParseTableRedefinitionReplaces(t *testing.T) {
	t.Parallel()

	doc := parse(t, `
		@struct p (x: int)
		@struct p (x: int, y: int)
		rows: @table p [(1, 2)]
	`)

	schema, ok := doc.Schema("p")
	require.True(t, ok)
	assert.Len(t, schema.Fields, 2)
}

func TestParseValueOnlyFieldTypesRejected(t *testing.T) {
	t.Parallel()

	for _, base := range []string{"object", "map", "tuple", "ref", "tagged"} {
		t.Run(base, func(t *testing.T) {
			t.Parallel()

			_, err := tealeaf.Parse("@struct s (f: " + base + ")")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "value type")

			// Array forms are rejected too.
			_, err = tealeaf.Parse("@struct s (f: []" + base + ")")
			require.Error(t, err)
		})
	}
}

func TestParseUnion(t *testing.T) {
	t.Parallel()

	doc := parse(t, `
		@union Shape {
			Circle(radius: float),
			Rectangle(width: float, height: float),
			Point(),
		}
		shape: :Circle {radius: 5.0}
	`)

	union, ok := doc.Union("Shape")
	require.True(t, ok)
	require.Len(t, union.Variants, 3)
	assert.Equal(t, "Circle", union.Variants[0].Name)
	assert.Len(t, union.Variants[1].Fields, 2)
	assert.Empty(t, union.Variants[2].Fields)

	tagged, ok := get(t, doc, "shape").(tealeaf.Tagged)
	require.True(t, ok)
	assert.Equal(t, "Circle", tagged.Tag)

	_, ok = union.Variant("Circle")
	assert.True(t, ok)
}

func TestParseMap(t *testing.T) {
	t.Parallel()

	doc := parse(t, `m: @map {1: one, "two": 2, key: three}`)

	m, ok := get(t, doc, "m").(tealeaf.Map)
	require.True(t, ok)
	require.Len(t, m, 3)

	assert.Equal(t, tealeaf.Int(1), m[0].Key)
	assert.Equal(t, tealeaf.String("one"), m[0].Val)
	assert.Equal(t, tealeaf.String("two"), m[1].Key)
	assert.Equal(t, tealeaf.String("key"), m[2].Key)
}

func TestParseMapRejectsCompositeKey(t *testing.T) {
	t.Parallel()

	_, err := tealeaf.Parse("m: @map {[1]: x}")
	require.Error(t, err)

	var unexpected *tealeaf.UnexpectedTokenError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, "map key", unexpected.Expected)
}

func TestParseRefAndTagged(t *testing.T) {
	t.Parallel()

	doc := parse(t, `
		config: !base_config
		status: :ok 200
		nothing: :none ~
	`)

	assert.Equal(t, tealeaf.Ref("base_config"), get(t, doc, "config"))

	status, ok := get(t, doc, "status").(tealeaf.Tagged)
	require.True(t, ok)
	assert.Equal(t, "ok", status.Tag)
	assert.Equal(t, tealeaf.Int(200), status.Inner)

	nothing, ok := get(t, doc, "nothing").(tealeaf.Tagged)
	require.True(t, ok)
	assert.Equal(t, tealeaf.Null{}, nothing.Inner)
}

func TestParseRefKeys(t *testing.T) {
	t.Parallel()

	doc := parse(t, "!base: {x: 1}\nderived: !base")

	v, ok := doc.Get("!base")
	require.True(t, ok)

	_, isObj := v.(*tealeaf.Object)
	assert.True(t, isObj)

	// Ref keys inside objects work the same way.
	doc = parse(t, "obj: {!inner: 5}")

	v, ok = doc.GetPath("obj.!inner")
	require.True(t, ok)
	assert.Equal(t, tealeaf.Int(5), v)
}

func TestParseRootArrayDirective(t *testing.T) {
	t.Parallel()

	doc := parse(t, "@root-array\nroot: [1, 2, 3]")
	assert.True(t, doc.IsRootArray())

	doc = parse(t, "root: [1, 2, 3]")
	assert.False(t, doc.IsRootArray())
}

func TestParseUnknownDirectives(t *testing.T) {
	t.Parallel()

	// Top level: the same-line argument is consumed, following pairs
	// survive.
	doc := parse(t, "@custom foo\nkey: 1")
	assert.Equal(t, tealeaf.Int(1), get(t, doc, "key"))
	_, hasFoo := doc.Get("foo")
	assert.False(t, hasFoo)

	// Value position: the argument is consumed and the value is null.
	doc = parse(t, "key: @future {a: 1}")
	assert.Equal(t, tealeaf.Null{}, get(t, doc, "key"))
}

func TestParseQuotedKeys(t *testing.T) {
	t.Parallel()

	doc := parse(t, `"key with spaces": 1`)
	assert.Equal(t, tealeaf.Int(1), get(t, doc, "key with spaces"))
}

func TestParseTimestampValue(t *testing.T) {
	t.Parallel()

	doc := parse(t, "at: 2024-01-15T10:30:00.123Z")

	ts, ok := get(t, doc, "at").(tealeaf.Timestamp)
	require.True(t, ok)
	assert.Equal(t, int64(1705314600123), ts.Millis)
}

func TestParseDepthLimit(t *testing.T) {
	t.Parallel()

	// 500 nested brackets must fail with a depth error, not a stack
	// overflow.
	input := "d: " + strings.Repeat("[", 500)

	_, err := tealeaf.Parse(input)
	require.ErrorIs(t, err, tealeaf.ErrDepthExceeded)

	// Same for objects and tags.
	_, err = tealeaf.Parse("d: " + strings.Repeat("{k: ", 400))
	require.ErrorIs(t, err, tealeaf.ErrDepthExceeded)

	_, err = tealeaf.Parse("d: " + strings.Repeat(":t ", 400) + "1")
	require.ErrorIs(t, err, tealeaf.ErrDepthExceeded)
}

func TestParseDepthWithinLimit(t *testing.T) {
	t.Parallel()

	input := "d: " + strings.Repeat("[", 100) + "1" + strings.Repeat("]", 100)

	doc := parse(t, input)

	v := get(t, doc, "d")
	for range 100 {
		arr, ok := v.(tealeaf.Array)
		require.True(t, ok)
		require.Len(t, arr, 1)

		v = arr[0]
	}

	assert.Equal(t, tealeaf.Int(1), v)
}

func TestParseGluedColons(t *testing.T) {
	t.Parallel()

	// A colon glued to a bare word lexes as a tag token; the parser
	// folds it back wherever colon-then-word is grammatical.
	doc := parse(t, "@struct user (id:int, name:string, email:string?)\n"+
		"users: @table user [(1,alice,~)]\n"+
		"word:hello\n"+
		"flag:true\n"+
		"off:false\n"+
		"gone:null\n"+
		"bin:b\"cafe\"\n"+
		"m: @map {1:one, k:two}\n"+
		"!anchor:word")

	schema, ok := doc.Schema("user")
	require.True(t, ok)
	require.Len(t, schema.Fields, 3)
	assert.Equal(t, "int", schema.Fields[0].Type.Base)
	assert.True(t, schema.Fields[2].Type.Nullable)

	assert.Equal(t, tealeaf.String("hello"), get(t, doc, "word"))
	assert.Equal(t, tealeaf.Bool(true), get(t, doc, "flag"))
	assert.Equal(t, tealeaf.Bool(false), get(t, doc, "off"))
	assert.Equal(t, tealeaf.Null{}, get(t, doc, "gone"))
	assert.Equal(t, tealeaf.Bytes{0xCA, 0xFE}, get(t, doc, "bin"))
	assert.Equal(t, tealeaf.String("word"), get(t, doc, "!anchor"))

	m, ok := get(t, doc, "m").(tealeaf.Map)
	require.True(t, ok)
	assert.Equal(t, tealeaf.String("one"), m[0].Val)
	assert.Equal(t, tealeaf.String("two"), m[1].Val)

	v, ok := doc.GetPath("users[0].name")
	require.True(t, ok)
	assert.Equal(t, tealeaf.String("alice"), v)
}

func TestParseGluedValueTypeRejected(t *testing.T) {
	t.Parallel()

	_, err := tealeaf.Parse("@struct s (f:map)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value type")
}

func TestParseUnexpectedToken(t *testing.T) {
	t.Parallel()

	_, err := tealeaf.Parse("key: }")
	require.Error(t, err)

	var unexpected *tealeaf.UnexpectedTokenError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, "value", unexpected.Expected)
	assert.Positive(t, unexpected.Line)
}
