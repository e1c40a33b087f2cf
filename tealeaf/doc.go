// Package tealeaf implements the TeaLeaf schema-aware data interchange
// format: a human-editable text surface (.tl), a compact indexed binary
// container (.tlbx), and a bidirectional mapping to and from JSON.
//
// The text surface is parsed with [Parse] or [Load]; the resulting
// [Document] can be re-emitted as text with [Document.Text], compiled to
// the binary container with [Document.Compile], or exported as JSON with
// [Document.JSON]. Binary files are opened with [Open], [OpenMmap], or
// [FromBytes], which return a [Reader] exposing random section access with
// lazy per-section decode.
//
// JSON enters through [FromJSON] (plain-JSON policy, no magic coercions)
// or [FromJSONWithSchemas], which additionally synthesises @struct
// definitions for arrays of uniformly-shaped objects so the text writer
// can use the compact @table form.
//
// Typical round trip:
//
//	doc, err := tealeaf.Parse(src)
//	if err != nil { ... }
//	if err := doc.Compile("out.tlbx", true); err != nil { ... }
//
//	r, err := tealeaf.Open("out.tlbx")
//	if err != nil { ... }
//	defer r.Close()
//	users, err := r.Get("users")
package tealeaf
