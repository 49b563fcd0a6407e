package lang

import (
	"slices"
	"strconv"
)

// TokenKind identifies the lexical category of a [Token].
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenText
	TokenBlockStart
	TokenBlockEnd
	TokenVarStart
	TokenVarEnd
	TokenName
	TokenNumber
	TokenString
	TokenOperator
	TokenPunctuation
)

var tokenKindNames = [...]struct{ short, english string }{
	TokenEOF:         {"EOF", "end of template"},
	TokenText:        {"TEXT", "text"},
	TokenBlockStart:  {"BLOCK_START", "begin of statement block"},
	TokenBlockEnd:    {"BLOCK_END", "end of statement block"},
	TokenVarStart:    {"VAR_START", "begin of print statement"},
	TokenVarEnd:      {"VAR_END", "end of print statement"},
	TokenName:        {"NAME", "name"},
	TokenNumber:      {"NUMBER", "number"},
	TokenString:      {"STRING", "string"},
	TokenOperator:    {"OPERATOR", "operator"},
	TokenPunctuation: {"PUNCTUATION", "punctuation"},
}

// String returns the constant-style name of the kind, e.g. "BLOCK_START".
func (k TokenKind) String() string {
	if k < 0 || int(k) >= len(tokenKindNames) {
		return "TokenKind(" + strconv.Itoa(int(k)) + ")"
	}

	return tokenKindNames[k].short
}

// English returns the name of the kind used in diagnostics.
func (k TokenKind) English() string {
	if k < 0 || int(k) >= len(tokenKindNames) {
		return k.String()
	}

	return tokenKindNames[k].english
}

// Token is an immutable lexical unit.
//
// Value holds the unescaped content of strings, the literal digits of
// numbers, the normalized symbol of operators, and the raw text of TEXT
// tokens.
type Token struct {
	Value string
	Kind  TokenKind
	Line  int
}

// Test reports whether the token is of the given kind and, if any values are
// given, whether its value equals one of them.
func (t Token) Test(kind TokenKind, values ...string) bool {
	if t.Kind != kind {
		return false
	}

	return len(values) == 0 || slices.Contains(values, t.Value)
}

// String returns the token formatted as KIND(value).
func (t Token) String() string {
	return t.Kind.String() + "(" + t.Value + ")"
}
