// Package tlschema exports TeaLeaf schema and union definitions as JSON
// Schema documents.
//
// The conversion is one-way and lossy by design: it describes the JSON
// projection of a TeaLeaf document (the shape produced by
// [github.com/krishjag/tealeaf/tealeaf.Document.JSON]), so bytes and
// timestamp fields map to strings and unions map to tagged oneOf
// variants.
package tlschema
