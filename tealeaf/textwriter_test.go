package tealeaf_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishjag/tealeaf/stringtest"
	"github.com/krishjag/tealeaf/tealeaf"
)

func TestTextSimplePairs(t *testing.T) {
	t.Parallel()

	doc := parse(t, "a: 1\nb: hello\nc: true")

	got := doc.Text(tealeaf.TextOptions{})

	assert.Equal(t, stringtest.JoinLines(
		"a: 1",
		"b: hello",
		"c: true",
	), got)
}

func TestTextTableEmission(t *testing.T) {
	t.Parallel()

	doc := parse(t, `
		@struct user (id: int, name: string)
		users: @table user [(1, alice), (2, bob)]
	`)

	got := doc.Text(tealeaf.TextOptions{})

	assert.Equal(t, stringtest.JoinLines(
		"@struct user (id: int, name: string)",
		"",
		"users: @table user [",
		"  (1, alice),",
		"  (2, bob)",
		"]",
	), got)
}

func TestTextSchemasEmittedAlphabetically(t *testing.T) {
	t.Parallel()

	doc := parse(t, `
		@struct zebra (x: int)
		@struct apple (y: int)
	`)

	got := doc.Text(tealeaf.TextOptions{})

	assert.Equal(t, stringtest.JoinLines(
		"@struct apple (y: int)",
		"@struct zebra (x: int)",
	), got)
}

func TestTextRootArrayDirective(t *testing.T) {
	t.Parallel()

	doc := parse(t, "@root-array\nroot: [1, 2, 3]")

	got := doc.Text(tealeaf.TextOptions{})

	assert.Equal(t, stringtest.JoinLines(
		"@root-array",
		"",
		"root: [1, 2, 3]",
	), got)
}

func TestTextCompact(t *testing.T) {
	t.Parallel()

	doc := parse(t, "a: [1, 2]\nb: {x: 1, y: 2}")

	got := doc.Text(tealeaf.TextOptions{Compact: true})

	assert.Equal(t, stringtest.JoinLines(
		"a:[1,2]",
		"b:{x:1,y:2}",
	), got)
}

func TestTextSpecialValues(t *testing.T) {
	t.Parallel()

	doc := tealeaf.NewDocument()
	doc.Set("bin", tealeaf.Bytes{0xCA, 0xFE})
	doc.Set("at", tealeaf.Timestamp{Millis: 1705314600123})
	doc.Set("link", tealeaf.Ref("other"))
	doc.Set("status", tealeaf.Tagged{Tag: "ok", Inner: tealeaf.Int(200)})
	doc.Set("m", tealeaf.Map{{Key: tealeaf.Int(1), Val: tealeaf.String("one")}})

	got := doc.Text(tealeaf.TextOptions{})

	assert.Equal(t, stringtest.JoinLines(
		`bin: b"cafe"`,
		"at: 2024-01-15T10:30:00.123Z",
		"link: !other",
		"status: :ok 200",
		"m: @map {1: one}",
	), got)
}

func TestTextFloatFormatting(t *testing.T) {
	t.Parallel()

	doc := tealeaf.NewDocument()
	doc.Set("whole", tealeaf.Float(42))
	doc.Set("frac", tealeaf.Float(3.5))

	got := doc.Text(tealeaf.TextOptions{})
	assert.Equal(t, stringtest.JoinLines(
		"whole: 42.0",
		"frac: 3.5",
	), got)

	got = doc.Text(tealeaf.TextOptions{CompactFloats: true})
	assert.Equal(t, stringtest.JoinLines(
		"whole: 42",
		"frac: 3.5",
	), got)
}

func TestTextCompactFloatsAsymmetry(t *testing.T) {
	t.Parallel()

	doc := tealeaf.NewDocument()
	doc.Set("v", tealeaf.Float(42))

	reparsed, err := tealeaf.Parse(doc.Text(tealeaf.TextOptions{CompactFloats: true}))
	require.NoError(t, err)

	v := get(t, reparsed, "v")

	// Re-parsing reclassifies the whole-number float as an integer;
	// only the compact-floats equality predicate tolerates this.
	assert.Equal(t, tealeaf.Int(42), v)
	assert.True(t, tealeaf.EqualCompactFloats(tealeaf.Float(42), v))
	assert.False(t, tealeaf.Equal(tealeaf.Float(42), v))
}

func TestTextRoundTrip(t *testing.T) {
	t.Parallel()

	tcs := map[string]string{
		"scalars":      "a: 1, b: -7, c: 3.5, d: true, e: ~, f: hello",
		"uint":         "big: 18446744073709551615",
		"json number":  "huge: 123456789012345678901234567890",
		"strings":      `q: "with space", esc: "line\nbreak", bare: word`,
		"bytes":        `data: b"deadbeef"`,
		"timestamps":   "at: 2024-01-15T10:30:00Z, day: 2024-01-15",
		"arrays":       "arr: [1, two, 3.0, [4, 5]]",
		"objects":      "obj: {x: 1, nested: {y: 2}}",
		"tuples":       "tup: (1, 2, 3)",
		"map":          `m: @map {1: one, key: 2}`,
		"refs":         "link: !target\n!anchor: 5",
		"tagged":       "s: :ok 200, n: :wrap {x: 1}",
		"table":        "@struct p (x: int, y: int)\npts: @table p [(1, 2), (3, 4)]",
		"nullable":     "@struct r (a: string, b: string?)\nr: @table r [(x, ~)]",
		"nested table": "@struct pt (x: int, y: int)\n@struct ln (s: pt, e: pt)\nl: @table ln [((1, 2), (3, 4))]",
		"array field":  "@struct u (n: string, s: []int)\nu: @table u [(a, [1, 2])]",
		"union":        "@union Shape { Circle(r: float), Dot() }\ns: :Circle {r: 1.5}",
		"root array":   "@root-array\nroot: [1, 2, 3]",
	}

	for name, input := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			doc := parse(t, input)

			for _, opts := range []tealeaf.TextOptions{
				{},
				{Compact: true},
			} {
				emitted := doc.Text(opts)

				reparsed, err := tealeaf.Parse(emitted)
				require.NoError(t, err, "reparse failed for %q", emitted)

				require.Equal(t, doc.Keys(), reparsed.Keys(), "keys differ for %q", emitted)
				assert.Equal(t, doc.IsRootArray(), reparsed.IsRootArray())

				for _, key := range doc.Keys() {
					a := get(t, doc, key)
					b := get(t, reparsed, key)
					assert.True(t, tealeaf.Equal(a, b),
						"value mismatch at %q in %q: %#v vs %#v", key, emitted, a, b)
				}
			}
		})
	}
}

func TestTextQuotingSoundness(t *testing.T) {
	t.Parallel()

	// Any string the writer leaves bare must re-parse as a String equal
	// to itself; anything else must be quoted.
	samples := []string{
		"hello",
		"b",
		"with space",
		"true",
		"false",
		"null",
		"~",
		"",
		"123",
		"-5",
		"3.14",
		"0xff",
		"0b10",
		"2024-01-15",
		"2024-01-15T10:30:00Z",
		"a.b",
		"v1.2-rc1",
		"trailing-",
		"_private",
		"has\"quote",
		"back\\slash",
		"line\nbreak",
		"!ref",
		"@directive",
		"#comment",
		":tagish",
		"(paren",
		"[bracket",
		"{brace",
		"comma,here",
		"colon:here",
		"ключ",
		"emoji🙂",
	}

	for _, s := range samples {
		doc := tealeaf.NewDocument()
		doc.Set("k", tealeaf.String(s))

		emitted := doc.Text(tealeaf.TextOptions{})

		reparsed, err := tealeaf.Parse(emitted)
		require.NoError(t, err, "reparse failed for %q -> %q", s, emitted)

		v := get(t, reparsed, "k")
		assert.Equal(t, tealeaf.String(s), v, "round trip changed %q via %q", s, emitted)
	}
}

func TestTextMultilineObjectBlock(t *testing.T) {
	t.Parallel()

	doc := tealeaf.NewDocument()

	obj := tealeaf.NewObject()
	obj.Set("description", tealeaf.String("a rather long description value here"))
	obj.Set("count", tealeaf.Int(10))
	obj.Set("enabled", tealeaf.Bool(true))
	doc.Set("config", obj)

	got := doc.Text(tealeaf.TextOptions{})

	assert.Equal(t, stringtest.JoinLines(
		"config: {",
		`  description: "a rather long description value here",`,
		"  count: 10,",
		"  enabled: true",
		"}",
	), got)

	// The block form re-parses to the same document.
	reparsed, err := tealeaf.Parse(got)
	require.NoError(t, err)

	v := get(t, reparsed, "config")
	assert.True(t, tealeaf.Equal(obj, v))
}

func TestTextNaNAndInfEmitAsNull(t *testing.T) {
	t.Parallel()

	doc := tealeaf.NewDocument()
	doc.Set("nan", tealeaf.Float(math.NaN()))
	doc.Set("inf", tealeaf.Float(math.Inf(1)))

	got := doc.Text(tealeaf.TextOptions{})

	assert.Equal(t, stringtest.JoinLines(
		"nan: ~",
		"inf: ~",
	), got)
}
