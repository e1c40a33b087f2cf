package tealeaf

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// hexDecodeEven decodes an even-length hex string, the payload shape of
// a bytes literal.
func hexDecodeEven(s string) ([]byte, bool) {
	if len(s)%2 != 0 {
		return nil, false
	}

	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}

	return decoded, true
}

// MaxParseDepth bounds nesting for arrays, objects, tuples, tags, and
// maps. It matches the binary reader's MaxDecodeDepth so text and
// binary accept the same documents.
const MaxParseDepth = 256

// maxIncludeDepth bounds the @include chain.
const maxIncludeDepth = 32

// Parser consumes a token stream into (schemas, unions, data) plus the
// root-array flag. All parse errors are returned to the caller; the
// parser never aborts the process.
type Parser struct {
	tokens []Token
	pos    int

	schemas *orderedmap.OrderedMap[string, *Schema]
	unions  *orderedmap.OrderedMap[string, *Union]

	basePath     string
	includeStack []string
	rootArray    bool
}

// NewParser returns a parser over the given token sequence.
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens:  tokens,
		schemas: orderedmap.New[string, *Schema](),
		unions:  orderedmap.New[string, *Union](),
	}
}

// WithBasePath sets the directory against which @include paths resolve,
// normally the directory of the file being parsed.
func (p *Parser) WithBasePath(path string) *Parser {
	p.basePath = filepath.Dir(path)

	return p
}

// Parse runs the top-level loop and returns the data mapping. Schemas
// and unions accumulate on the parser; retrieve them with
// [Parser.Schemas] and [Parser.Unions].
func (p *Parser) Parse() (*orderedmap.OrderedMap[string, Value], error) {
	result := orderedmap.New[string, Value]()

	for !p.atEnd() {
		tok := p.current()

		switch tok.Kind {
		case TokDirective:
			p.advance()

			switch tok.Str {
			case "struct":
				if err := p.parseStructDef(); err != nil {
					return nil, err
				}
			case "union":
				if err := p.parseUnionDef(); err != nil {
					return nil, err
				}
			case "include":
				included, err := p.parseInclude()
				if err != nil {
					return nil, err
				}

				for pair := included.Oldest(); pair != nil; pair = pair.Next() {
					result.Set(pair.Key, pair.Value)
				}
			case "root-array":
				p.rootArray = true
			default:
				// Unknown top-level directive: consume one same-line
				// value argument if present, then ignore it. Forward
				// compatibility.
				if !p.atEnd() && p.current().Line == tok.Line && p.canStartValue() {
					if _, err := p.parseValue(0); err != nil {
						return nil, err
					}
				}
			}
		case TokWord, TokString:
			key, value, err := p.parsePair(0)
			if err != nil {
				return nil, err
			}

			result.Set(key, value)
		case TokRef:
			p.advance()

			value, err := p.parsePairValue(0)
			if err != nil {
				return nil, err
			}

			result.Set("!"+tok.Str, value)
		case TokEOF:
			return result, nil
		default:
			p.advance()
		}
	}

	return result, nil
}

// Schemas returns the schema definitions accumulated during Parse, in
// definition order.
func (p *Parser) Schemas() *orderedmap.OrderedMap[string, *Schema] {
	return p.schemas
}

// Unions returns the union definitions accumulated during Parse.
func (p *Parser) Unions() *orderedmap.OrderedMap[string, *Union] {
	return p.unions
}

// IsRootArray reports whether the @root-array directive was present.
func (p *Parser) IsRootArray() bool {
	return p.rootArray
}

func (p *Parser) parseStructDef() error {
	name, err := p.expectWord()
	if err != nil {
		return err
	}

	if err := p.expect(TokLParen); err != nil {
		return err
	}

	schema := NewSchema(name)

	for !p.check(TokRParen) {
		// Field names must be bare words per the grammar.
		fieldName, ft, err := p.parseFieldDef()
		if err != nil {
			return err
		}

		schema.AddField(fieldName, ft)

		if p.check(TokComma) {
			p.advance()
		}
	}

	if err := p.expect(TokRParen); err != nil {
		return err
	}

	// Redefinition replaces the previous schema of the same name.
	p.schemas.Set(name, schema)

	return nil
}

// parseFieldDef parses one `name [: type]` field of a struct or union
// variant. A `name:type` spelling without spaces lexes the colon and
// base type as a single tag token, so both shapes are accepted.
func (p *Parser) parseFieldDef() (string, FieldType, error) {
	fieldName, err := p.expectWord()
	if err != nil {
		return "", FieldType{}, err
	}

	ft := NewFieldType("string")

	switch tok := p.current(); tok.Kind {
	case TokColon:
		p.advance()

		ft, err = p.parseFieldType()
		if err != nil {
			return "", FieldType{}, err
		}
	case TokTag:
		p.advance()

		ft, err = p.fieldTypeFromBase(tok.Str, tok.Line, tok.Col)
		if err != nil {
			return "", FieldType{}, err
		}
	}

	return fieldName, ft, nil
}

// fieldTypeFromBase builds a field type whose base name arrived inside
// a tag token, applying the same value-type rejection and nullable
// suffix handling as parseFieldType.
func (p *Parser) fieldTypeFromBase(base string, line, col int) (FieldType, error) {
	switch base {
	case "object", "map", "tuple", "ref", "tagged":
		return FieldType{}, syntaxErrorf(line, col,
			"%q is a value type and cannot be used as a schema field type", base)
	}

	ft := NewFieldType(base)

	if p.check(TokQuestion) {
		p.advance()

		ft.Nullable = true
	}

	return ft, nil
}

func (p *Parser) parseUnionDef() error {
	name, err := p.expectWord()
	if err != nil {
		return err
	}

	if err := p.expect(TokLBrace); err != nil {
		return err
	}

	union := NewUnion(name)

	for !p.check(TokRBrace) {
		variantName, err := p.expectWord()
		if err != nil {
			return err
		}

		if err := p.expect(TokLParen); err != nil {
			return err
		}

		variant := Variant{Name: variantName}

		for !p.check(TokRParen) {
			fieldName, ft, err := p.parseFieldDef()
			if err != nil {
				return err
			}

			variant.Fields = append(variant.Fields, Field{Name: fieldName, Type: ft})

			if p.check(TokComma) {
				p.advance()
			}
		}

		if err := p.expect(TokRParen); err != nil {
			return err
		}

		union.AddVariant(variant)

		if p.check(TokComma) {
			p.advance()
		}
	}

	if err := p.expect(TokRBrace); err != nil {
		return err
	}

	p.unions.Set(name, union)

	return nil
}

func (p *Parser) parseInclude() (*orderedmap.OrderedMap[string, Value], error) {
	tok := p.current()

	var pathStr string

	switch tok.Kind {
	case TokString, TokWord:
		pathStr = tok.Str
	default:
		return nil, p.unexpected("file path")
	}

	p.advance()

	includePath := pathStr
	if p.basePath != "" {
		includePath = filepath.Join(p.basePath, pathStr)
	}

	// Canonicalise for cycle detection, falling back to the raw path.
	canonical, err := filepath.Abs(includePath)
	if err != nil {
		canonical = includePath
	}

	if resolved, err := filepath.EvalSymlinks(canonical); err == nil {
		canonical = resolved
	}

	if slices.Contains(p.includeStack, canonical) {
		return nil, syntaxErrorf(tok.Line, tok.Col,
			"circular include detected: %s", canonical)
	}

	if len(p.includeStack) >= maxIncludeDepth {
		return nil, syntaxErrorf(tok.Line, tok.Col,
			"include depth exceeds limit of %d", maxIncludeDepth)
	}

	content, err := os.ReadFile(includePath)
	if err != nil {
		return nil, syntaxErrorf(tok.Line, tok.Col,
			"failed to include %s: %v", pathStr, err)
	}

	tokens, err := NewLexer(string(content)).Tokenize()
	if err != nil {
		return nil, fmt.Errorf("include %s: %w", pathStr, err)
	}

	child := NewParser(tokens)
	child.basePath = filepath.Dir(includePath)

	// The child inherits the include stack and the schemas and unions
	// accumulated so far, so sibling includes can share definitions.
	child.includeStack = append(slices.Clone(p.includeStack), canonical)
	child.schemas = p.schemas
	child.unions = p.unions

	data, err := child.Parse()
	if err != nil {
		return nil, fmt.Errorf("include %s: %w", pathStr, err)
	}

	return data, nil
}

func (p *Parser) parseFieldType() (FieldType, error) {
	var ft FieldType

	if p.check(TokLBracket) {
		p.advance()

		if err := p.expect(TokRBracket); err != nil {
			return ft, err
		}

		ft.IsArray = true
	}

	base, err := p.expectWord()
	if err != nil {
		return ft, err
	}

	// Value-only names cannot be declared as field types.
	switch base {
	case "object", "map", "tuple", "ref", "tagged":
		return ft, syntaxErrorf(p.current().Line, p.current().Col,
			"%q is a value type and cannot be used as a schema field type", base)
	}

	ft.Base = base

	if p.check(TokQuestion) {
		p.advance()

		ft.Nullable = true
	}

	return ft, nil
}

func (p *Parser) parsePair(depth int) (string, Value, error) {
	tok := p.current()

	var key string

	switch tok.Kind {
	case TokWord, TokString:
		key = tok.Str
	default:
		return "", nil, p.unexpected("key")
	}

	p.advance()

	value, err := p.parsePairValue(depth)
	if err != nil {
		return "", nil, err
	}

	return key, value, nil
}

// parsePairValue parses the `: value` part of a pair. A colon glued to
// a bare word (`key:word`) lexes as a single tag token, so that shape
// is folded back into a plain word value here; `key:b"hex"` similarly
// splits into a tag and a string and is folded back into bytes.
func (p *Parser) parsePairValue(depth int) (Value, error) {
	switch tok := p.current(); tok.Kind {
	case TokColon:
		p.advance()

		return p.parseValue(depth)
	case TokTag:
		p.advance()

		return p.foldTagValue(tok), nil
	default:
		return nil, p.unexpected("':'")
	}
}

// foldTagValue re-interprets a tag token that stood for colon-plus-word
// in pair position.
func (p *Parser) foldTagValue(tok Token) Value {
	if tok.Str == "b" && p.check(TokString) {
		if decoded, ok := hexDecodeEven(p.current().Str); ok {
			p.advance()

			return Bytes(decoded)
		}
	}

	switch tok.Str {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "null":
		return Null{}
	}

	return String(tok.Str)
}

func (p *Parser) parseValue(depth int) (Value, error) {
	if depth > MaxParseDepth {
		return nil, fmt.Errorf("%w (limit %d)", ErrDepthExceeded, MaxParseDepth)
	}

	tok := p.current()

	switch tok.Kind {
	case TokNull:
		p.advance()

		return Null{}, nil
	case TokBool:
		p.advance()

		return Bool(tok.Bool), nil
	case TokInt:
		p.advance()

		return Int(tok.Int), nil
	case TokUInt:
		p.advance()

		return UInt(tok.UInt), nil
	case TokFloat:
		p.advance()

		return Float(tok.Float), nil
	case TokJSONNumber:
		p.advance()

		return JSONNumber(tok.Str), nil
	case TokString, TokWord:
		p.advance()

		return String(tok.Str), nil
	case TokBytes:
		p.advance()

		return Bytes(tok.Bytes), nil
	case TokTimestamp:
		p.advance()

		return Timestamp{Millis: tok.Int, TZMinutes: tok.TZMinutes}, nil
	case TokRef:
		p.advance()

		return Ref(tok.Str), nil
	case TokTag:
		p.advance()

		inner, err := p.parseValue(depth + 1)
		if err != nil {
			return nil, err
		}

		return Tagged{Tag: tok.Str, Inner: inner}, nil
	case TokDirective:
		p.advance()

		return p.parseDirectiveValue(tok.Str, depth)
	case TokLBrace:
		return p.parseObject(depth + 1)
	case TokLBracket:
		return p.parseArray(depth + 1)
	case TokLParen:
		return p.parseTuple(depth + 1)
	default:
		return nil, p.unexpected("value")
	}
}

func (p *Parser) parseDirectiveValue(directive string, depth int) (Value, error) {
	switch directive {
	case "table":
		return p.parseTable(depth)
	case "map":
		return p.parseMap(depth)
	default:
		// Unknown directive in value position: consume its argument for
		// forward compatibility and yield null.
		if p.canStartValue() {
			if _, err := p.parseValue(depth + 1); err != nil {
				return nil, err
			}
		}

		return Null{}, nil
	}
}

// canStartValue reports whether the current token can begin a value
// expression.
func (p *Parser) canStartValue() bool {
	switch p.current().Kind {
	case TokNull, TokBool, TokInt, TokUInt, TokFloat, TokJSONNumber,
		TokString, TokBytes, TokWord, TokRef, TokTimestamp, TokTag,
		TokDirective, TokLBrace, TokLBracket, TokLParen:
		return true
	}

	return false
}

func (p *Parser) parseMap(depth int) (Value, error) {
	if err := p.expect(TokLBrace); err != nil {
		return nil, err
	}

	var pairs Map

	for !p.check(TokRBrace) {
		tok := p.current()

		// Map keys in text are limited to string, name, or integer.
		var key Value

		switch tok.Kind {
		case TokString, TokWord:
			key = String(tok.Str)
		case TokInt:
			key = Int(tok.Int)
		case TokUInt:
			key = UInt(tok.UInt)
		default:
			return nil, p.unexpected("map key")
		}

		p.advance()

		value, err := p.parsePairValue(depth + 1)
		if err != nil {
			return nil, err
		}

		pairs = append(pairs, MapEntry{Key: key, Val: value})

		if p.check(TokComma) {
			p.advance()
		}
	}

	if err := p.expect(TokRBrace); err != nil {
		return nil, err
	}

	return pairs, nil
}

func (p *Parser) parseTable(depth int) (Value, error) {
	tok := p.current()

	structName, err := p.expectWord()
	if err != nil {
		return nil, err
	}

	schema, ok := p.schemas.Get(structName)
	if !ok {
		return nil, fmt.Errorf("%w %q at line %d, col %d",
			ErrUnknownStruct, structName, tok.Line, tok.Col)
	}

	if err := p.expect(TokLBracket); err != nil {
		return nil, err
	}

	var rows Array

	for !p.check(TokRBracket) {
		row, err := p.parseTupleWithSchema(schema, depth+1)
		if err != nil {
			return nil, err
		}

		rows = append(rows, row)

		if p.check(TokComma) {
			p.advance()
		}
	}

	if err := p.expect(TokRBracket); err != nil {
		return nil, err
	}

	if rows == nil {
		rows = Array{}
	}

	return rows, nil
}

func (p *Parser) parseTupleWithSchema(schema *Schema, depth int) (Value, error) {
	if err := p.expect(TokLParen); err != nil {
		return nil, err
	}

	obj := NewObject()

	for _, field := range schema.Fields {
		value, err := p.parseValueForField(field.Type, depth)
		if err != nil {
			return nil, err
		}

		obj.Set(field.Name, value)

		if p.check(TokComma) {
			p.advance()
		}
	}

	if err := p.expect(TokRParen); err != nil {
		return nil, err
	}

	return obj, nil
}

func (p *Parser) parseValueForField(ft FieldType, depth int) (Value, error) {
	if depth > MaxParseDepth {
		return nil, fmt.Errorf("%w (limit %d)", ErrDepthExceeded, MaxParseDepth)
	}

	if p.check(TokNull) {
		p.advance()

		return Null{}, nil
	}

	// Nested struct rows: schema names shadow built-in type names, so
	// resolve by name. The LParen guard disambiguates — struct tuples
	// always start with '(' while scalar values never do.
	if !ft.IsArray && p.check(TokLParen) {
		if schema, ok := p.schemas.Get(ft.Base); ok {
			return p.parseTupleWithSchema(schema, depth+1)
		}
	}

	if ft.IsArray {
		if err := p.expect(TokLBracket); err != nil {
			return nil, err
		}

		arr := Array{}
		inner := NewFieldType(ft.Base)

		for !p.check(TokRBracket) {
			v, err := p.parseValueForField(inner, depth+1)
			if err != nil {
				return nil, err
			}

			arr = append(arr, v)

			if p.check(TokComma) {
				p.advance()
			}
		}

		if err := p.expect(TokRBracket); err != nil {
			return nil, err
		}

		return arr, nil
	}

	return p.parseValue(depth)
}

func (p *Parser) parseObject(depth int) (Value, error) {
	if err := p.expect(TokLBrace); err != nil {
		return nil, err
	}

	obj := NewObject()

	for !p.check(TokRBrace) {
		if tok := p.current(); tok.Kind == TokRef {
			p.advance()

			value, err := p.parsePairValue(depth)
			if err != nil {
				return nil, err
			}

			obj.Set("!"+tok.Str, value)
		} else {
			key, value, err := p.parsePair(depth)
			if err != nil {
				return nil, err
			}

			obj.Set(key, value)
		}

		if p.check(TokComma) {
			p.advance()
		}
	}

	if err := p.expect(TokRBrace); err != nil {
		return nil, err
	}

	return obj, nil
}

func (p *Parser) parseArray(depth int) (Value, error) {
	if err := p.expect(TokLBracket); err != nil {
		return nil, err
	}

	arr := Array{}

	for !p.check(TokRBracket) {
		v, err := p.parseValue(depth)
		if err != nil {
			return nil, err
		}

		arr = append(arr, v)

		if p.check(TokComma) {
			p.advance()
		}
	}

	if err := p.expect(TokRBracket); err != nil {
		return nil, err
	}

	return arr, nil
}

// parseTuple parses a parenthesised value list. Tuples are arrays on
// the wire.
func (p *Parser) parseTuple(depth int) (Value, error) {
	if err := p.expect(TokLParen); err != nil {
		return nil, err
	}

	arr := Array{}

	for !p.check(TokRParen) {
		v, err := p.parseValue(depth)
		if err != nil {
			return nil, err
		}

		arr = append(arr, v)

		if p.check(TokComma) {
			p.advance()
		}
	}

	if err := p.expect(TokRParen); err != nil {
		return nil, err
	}

	return arr, nil
}

func (p *Parser) current() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}

	return Token{Kind: TokEOF}
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *Parser) check(kind TokenKind) bool {
	return p.current().Kind == kind
}

func (p *Parser) expect(kind TokenKind) error {
	if !p.check(kind) {
		return p.unexpected(kind.String())
	}

	p.advance()

	return nil
}

func (p *Parser) expectWord() (string, error) {
	tok := p.current()
	if tok.Kind != TokWord {
		return "", p.unexpected("word")
	}

	p.advance()

	return tok.Str, nil
}

func (p *Parser) unexpected(expected string) error {
	tok := p.current()

	return &UnexpectedTokenError{
		Expected: expected,
		Got:      tok.Kind.String(),
		Line:     tok.Line,
		Col:      tok.Col,
	}
}

func (p *Parser) atEnd() bool {
	return p.check(TokEOF)
}
