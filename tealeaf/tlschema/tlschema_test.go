package tlschema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishjag/tealeaf/tealeaf"
	"github.com/krishjag/tealeaf/tealeaf/tlschema"
)

func TestFromDocumentStructs(t *testing.T) {
	t.Parallel()

	doc, err := tealeaf.Parse(`
		@struct user (id: int, name: string, email: string?, scores: []int)
		users: @table user [(1, alice, ~, [90])]
	`)
	require.NoError(t, err)

	schema := tlschema.FromDocument(doc)

	assert.Equal(t, "http://json-schema.org/draft-07/schema#", schema.Schema)
	assert.Equal(t, "object", schema.Type)

	user, ok := schema.Defs["user"]
	require.True(t, ok)
	assert.Equal(t, "object", user.Type)

	assert.Equal(t, "integer", user.Properties["id"].Type)
	assert.Equal(t, "string", user.Properties["name"].Type)

	// Nullable fields widen to include null and drop out of required.
	email := user.Properties["email"]
	assert.Equal(t, []string{"string", "null"}, email.Types)
	assert.NotContains(t, user.Required, "email")
	assert.Contains(t, user.Required, "id")

	scores := user.Properties["scores"]
	assert.Equal(t, "array", scores.Type)
	require.NotNil(t, scores.Items)
	assert.Equal(t, "integer", scores.Items.Type)

	// The users key references the matched schema.
	users, ok := schema.Properties["users"]
	require.True(t, ok)
	assert.Equal(t, "array", users.Type)
	require.NotNil(t, users.Items)
	assert.Equal(t, "#/$defs/user", users.Items.Ref)
}

func TestFromDocumentStructReferences(t *testing.T) {
	t.Parallel()

	doc, err := tealeaf.Parse(`
		@struct pt (x: int, y: int)
		@struct line (start: pt, end: pt)
		lines: @table line [((1, 2), (3, 4))]
	`)
	require.NoError(t, err)

	schema := tlschema.FromDocument(doc)

	line, ok := schema.Defs["line"]
	require.True(t, ok)
	assert.Equal(t, "#/$defs/pt", line.Properties["start"].Ref)
}

func TestFromDocumentUnions(t *testing.T) {
	t.Parallel()

	doc, err := tealeaf.Parse(`
		@union Shape {
			Circle(radius: float),
			Dot(),
		}
	`)
	require.NoError(t, err)

	schema := tlschema.FromDocument(doc)

	shape, ok := schema.Defs["Shape"]
	require.True(t, ok)
	require.Len(t, shape.OneOf, 2)

	circle := shape.OneOf[0]
	assert.Equal(t, "number", circle.Properties["radius"].Type)
	assert.Contains(t, circle.Required, "$tag")
}

func TestFromDocumentTimestampFormat(t *testing.T) {
	t.Parallel()

	doc, err := tealeaf.Parse(`
		@struct ev (at: timestamp, payload: bytes)
		evs: @table ev [(2024-01-15, b"00")]
	`)
	require.NoError(t, err)

	schema := tlschema.FromDocument(doc)

	ev := schema.Defs["ev"]
	require.NotNil(t, ev)
	assert.Equal(t, "date-time", ev.Properties["at"].Format)
	assert.Equal(t, "string", ev.Properties["payload"].Type)
}

func TestFromDocumentEmpty(t *testing.T) {
	t.Parallel()

	doc, err := tealeaf.Parse("a: 1")
	require.NoError(t, err)

	schema := tlschema.FromDocument(doc)

	assert.Nil(t, schema.Defs)
	require.NotNil(t, schema.Properties)

	// Untyped keys get a permissive schema.
	_, ok := schema.Properties["a"]
	assert.True(t, ok)
}
