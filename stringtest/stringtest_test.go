package stringtest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/krishjag/tealeaf/stringtest"
)

func TestJoinLF(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a\nb\nc", stringtest.JoinLF("a", "b", "c"))
	assert.Equal(t, "only", stringtest.JoinLF("only"))
	assert.Empty(t, stringtest.JoinLF())
}

func TestJoinLines(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a\nb\n", stringtest.JoinLines("a", "b"))
	assert.Equal(t, "\n", stringtest.JoinLines(""))
}
