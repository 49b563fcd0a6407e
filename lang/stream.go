package lang

import (
	"strings"
)

// TokenStream is an ordered sequence of tokens with a cursor.
// The final token is always [TokenEOF].
type TokenStream struct {
	tokens []Token
	name   string
	source string
	pos    int
}

// NewTokenStream returns a stream over tokens. If tokens does not end with
// an EOF token, one is appended.
func NewTokenStream(tokens []Token, name, source string) *TokenStream {
	if n := len(tokens); n == 0 || tokens[n-1].Kind != TokenEOF {
		line := 1
		if n > 0 {
			line = tokens[n-1].Line
		}

		tokens = append(tokens, Token{Kind: TokenEOF, Line: line})
	}

	return &TokenStream{tokens: tokens, name: name, source: source}
}

// Name returns the name of the template the tokens were read from.
func (s *TokenStream) Name() string { return s.name }

// Source returns the template source the tokens were read from.
func (s *TokenStream) Source() string { return s.source }

// Tokens returns a copy of every token in the stream.
func (s *TokenStream) Tokens() []Token {
	return append([]Token(nil), s.tokens...)
}

// Current returns the token under the cursor.
func (s *TokenStream) Current() Token { return s.tokens[s.pos] }

// Next returns the token under the cursor and advances past it.
func (s *TokenStream) Next() (Token, error) {
	if s.pos+1 >= len(s.tokens) {
		return Token{}, ErrSyntax.Errorf("Unexpected end of template").
			At(s.name, s.tokens[s.pos].Line)
	}

	s.pos++

	return s.tokens[s.pos-1], nil
}

// Look returns the token n positions ahead of the cursor without moving it.
func (s *TokenStream) Look(n int) (Token, error) {
	if s.pos+n < 0 || s.pos+n >= len(s.tokens) {
		return Token{}, ErrSyntax.Errorf("Unexpected end of template").
			At(s.name, s.tokens[len(s.tokens)-1].Line)
	}

	return s.tokens[s.pos+n], nil
}

// Test reports whether the current token matches kind and any of values.
func (s *TokenStream) Test(kind TokenKind, values ...string) bool {
	return s.Current().Test(kind, values...)
}

// NextIf advances past the current token if it matches kind and any of
// values, reporting whether it did.
func (s *TokenStream) NextIf(kind TokenKind, values ...string) (Token, bool) {
	if !s.Test(kind, values...) {
		return Token{}, false
	}

	tok, err := s.Next()

	return tok, err == nil
}

// Expect advances past the current token if it is of the given kind (and
// value, when not empty), otherwise it returns a SyntaxError. The optional
// message prefixes the diagnostic.
func (s *TokenStream) Expect(
	kind TokenKind,
	value string,
	message string,
) (Token, error) {
	tok := s.Current()

	var matched bool
	if value == "" {
		matched = tok.Test(kind)
	} else {
		matched = tok.Test(kind, value)
	}

	if !matched {
		if message != "" {
			message += ". "
		}

		with := ""
		if value != "" {
			with = ` with value "` + value + `"`
		}

		return Token{}, ErrSyntax.Errorf(
			`%sUnexpected token "%s" of value "%s" ("%s" expected%s)`,
			message, tok.Kind.English(), tok.Value, kind.English(), with,
		).At(s.name, tok.Line)
	}

	return s.Next()
}

// IsEOF reports whether the cursor is on the EOF token.
func (s *TokenStream) IsEOF() bool { return s.Current().Kind == TokenEOF }

// String returns one token per line.
func (s *TokenStream) String() string {
	var sb strings.Builder

	for _, tok := range s.tokens {
		sb.WriteString(tok.String())
		sb.WriteByte('\n')
	}

	return sb.String()
}
