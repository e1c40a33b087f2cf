package tealeaf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishjag/tealeaf/tealeaf"
)

func TestGetPath(t *testing.T) {
	t.Parallel()

	doc := parse(t, `
		@struct user (id: int, name: string)
		users: @table user [(1, alice), (2, bob)]
		config: {server: {host: localhost, ports: [80, 443]}}
		m: @map {first: 1, second: 2}
		tagged: :wrap {inner: 5}
	`)

	tcs := map[string]struct {
		path string
		want tealeaf.Value
		ok   bool
	}{
		"top level":        {path: "config", ok: true},
		"object key":       {path: "config.server.host", want: tealeaf.String("localhost"), ok: true},
		"array index":      {path: "config.server.ports[1]", want: tealeaf.Int(443), ok: true},
		"table row field":  {path: "users[0].name", want: tealeaf.String("alice"), ok: true},
		"second row":       {path: "users[1].id", want: tealeaf.Int(2), ok: true},
		"map string key":   {path: "m.second", want: tealeaf.Int(2), ok: true},
		"map by position":  {path: "m[0]", want: tealeaf.Int(1), ok: true},
		"through tag":      {path: "tagged.inner", want: tealeaf.Int(5), ok: true},
		"missing key":      {path: "nope", ok: false},
		"missing nested":   {path: "config.absent", ok: false},
		"index past end":   {path: "users[9].id", ok: false},
		"negative index":   {path: "users[-1]", ok: false},
		"index non-array":  {path: "config[0]", ok: false},
		"key into scalar":  {path: "users[0].name.x", ok: false},
		"empty path":       {path: "", ok: false},
		"malformed index":  {path: "users[x]", ok: false},
		"unclosed bracket": {path: "users[0", ok: false},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			v, ok := doc.GetPath(tc.path)
			require.Equal(t, tc.ok, ok)

			if tc.want != nil {
				assert.Equal(t, tc.want, v)
			}
		})
	}
}

func TestPathLookupOnValue(t *testing.T) {
	t.Parallel()

	obj := tealeaf.NewObject()
	obj.Set("list", tealeaf.Array{tealeaf.Int(10), tealeaf.Int(20)})

	v, ok := tealeaf.PathLookup(obj, "list[1]")
	require.True(t, ok)
	assert.Equal(t, tealeaf.Int(20), v)
}
