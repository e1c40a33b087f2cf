// Package stringtest provides helpers for constructing expected
// multi-line test output with explicit line endings.
package stringtest

import "strings"

// JoinLF joins multiple strings with LF line endings.
// Use this to construct expected test output with explicit line endings.
//
// Example:
//
//	want := stringtest.JoinLF(
//		"line1",
//		"line2",
//		"line3",
//	) // -> "line1\nline2\nline3"
func JoinLF(ss ...string) string {
	var sb strings.Builder
	for i, s := range ss {
		if i > 0 {
			sb.WriteByte('\n')
		}

		sb.WriteString(s)
	}

	return sb.String()
}

// JoinLines joins multiple strings with LF line endings and appends a
// trailing newline, matching emitter output that ends every document
// with one.
//
// Example:
//
//	want := stringtest.JoinLines(
//		"a: 1",
//		"b: 2",
//	) // -> "a: 1\nb: 2\n"
func JoinLines(ss ...string) string {
	return JoinLF(ss...) + "\n"
}
