package lang

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ardnew/razr/log"
)

// lexState is a state of the lexer's state machine.
type lexState int

const (
	stateData lexState = iota
	stateBlock
	stateVar
	stateVarExpression
)

const punctuation = "()[]{}?:.,|"

// TagIntroducer is the character that starts every tag.
const TagIntroducer = '@'

// Lexer converts template source into a [TokenStream].
//
// A Lexer is immutable once built and may be shared by concurrent
// tokenizations.
type Lexer struct {
	tags      map[string]struct{}
	operators []string
	logger    log.Logger
}

// NewLexer returns a Lexer recognizing the given tag names and operator
// symbols. Operators are tried in the order given, so callers should sort
// them longest first.
func NewLexer(tags, operators []string, logger log.Logger) *Lexer {
	l := &Lexer{
		tags:      make(map[string]struct{}, len(tags)),
		operators: operators,
		logger:    logger.Component("lexer"),
	}

	for _, tag := range tags {
		l.tags[tag] = struct{}{}
	}

	return l
}

type bracket struct {
	char byte
	line int
}

// scanner holds the state of a single tokenization.
type scanner struct {
	*Lexer

	code     string
	name     string
	tokens   []Token
	states   []lexState
	brackets []bracket
	cursor   int
	search   int // first offset to search for the next tag introducer
	line     int
	tagLine  int
	state    lexState
}

// Tokenize scans source, attributing errors to the template name.
func (l *Lexer) Tokenize(
	ctx context.Context,
	source, name string,
) (*TokenStream, error) {
	s := &scanner{
		Lexer: l,
		code:  strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(source),
		name:  name,
		line:  1,
	}

	for s.cursor < len(s.code) {
		var err error

		switch s.state {
		case stateData:
			err = s.lexData()
		case stateBlock:
			err = s.lexBlock()
		case stateVar:
			err = s.lexVar()
		case stateVarExpression:
			err = s.lexVarExpression()
		}

		if err != nil {
			l.logger.DebugContext(ctx, "tokenize failed",
				slog.String("template", name),
				slog.Any("error", err),
			)

			return nil, err
		}
	}

	if n := len(s.brackets); n > 0 {
		b := s.brackets[n-1]

		return nil, s.errorf(b.line, `Unclosed "%c"`, b.char)
	}

	switch s.state {
	case stateVar:
		s.push(TokenVarEnd, "")
		s.popState()

	case stateBlock:
		return nil, s.errorf(s.tagLine, `Unclosed "block"`)

	case stateVarExpression:
		return nil, s.errorf(s.tagLine, `Unclosed "variable"`)
	}

	s.push(TokenEOF, "")

	l.logger.TraceContext(ctx, "tokenized",
		slog.String("template", name),
		slog.Int("tokens", len(s.tokens)),
		slog.Int("lines", s.line),
	)

	return NewTokenStream(s.tokens, name, s.code), nil
}

func (s *scanner) errorf(line int, format string, args ...any) error {
	return ErrSyntax.Errorf(format, args...).At(s.name, line)
}

// nextTag returns the offset of the next tag introducer at or after from,
// and whether it is the escaped form "@@".
func (s *scanner) nextTag(from int) (pos int, escaped, ok bool) {
	for from < len(s.code) {
		i := strings.IndexByte(s.code[from:], TagIntroducer)
		if i < 0 {
			return 0, false, false
		}

		pos = from + i
		if pos+1 < len(s.code) {
			switch c := s.code[pos+1]; {
			case c == TagIntroducer:
				return pos, true, true
			case c == '(' || isNameStart(c):
				return pos, false, true
			}
		}

		from = pos + 1
	}

	return 0, false, false
}

func (s *scanner) lexData() error {
	pos, escaped, ok := s.nextTag(max(s.cursor, s.search))
	if !ok {
		s.push(TokenText, s.code[s.cursor:])
		s.cursor = len(s.code)

		return nil
	}

	s.push(TokenText, s.code[s.cursor:pos])
	s.move(pos - s.cursor)

	// skip the introducer
	s.cursor++

	if escaped {
		// the second introducer is emitted as text by the next pass
		s.search = s.cursor + 1

		return nil
	}

	s.tagLine = s.line

	if s.code[s.cursor] == '(' {
		s.pushState(stateVarExpression)
		s.push(TokenVarStart, "")
		s.move(1)

		return s.lexExpression()
	}

	name := s.scanName()
	open := s.cursor + len(name)

	for open < len(s.code) && isSpace(s.code[open]) {
		open++
	}

	paren := open < len(s.code) && s.code[open] == '('

	if _, isTag := s.tags[name]; !isTag {
		s.pushState(stateVar)
		s.push(TokenVarStart, "")
		s.push(TokenName, name)
		s.move(len(name))

		return s.lexVar()
	}

	s.push(TokenBlockStart, "")
	s.push(TokenName, name)

	if paren {
		s.move(open + 1 - s.cursor)
		s.pushState(stateBlock)

		return s.lexBlock()
	}

	s.move(len(name))

	if s.cursor < len(s.code) && s.code[s.cursor] == '\n' {
		s.move(1)
	}

	s.push(TokenBlockEnd, "")

	return nil
}

func (s *scanner) lexBlock() error {
	if len(s.brackets) == 0 {
		if part, name := s.matchTagPart(); part {
			return s.lexTagPart(name)
		}

		if n := s.matchTagEnd(); n > 0 {
			if s.cursor+n < len(s.code) && s.code[s.cursor+n] == '\n' {
				n++
			}

			s.move(n)
			s.push(TokenBlockEnd, "")
			s.popState()

			return nil
		}
	}

	return s.lexExpression()
}

func (s *scanner) lexVar() error {
	if len(s.brackets) == 0 {
		if part, name := s.matchTagPart(); part {
			return s.lexTagPart(name)
		}

		s.push(TokenVarEnd, "")
		s.popState()

		return nil
	}

	return s.lexExpression()
}

func (s *scanner) lexVarExpression() error {
	if len(s.brackets) == 0 {
		if n := s.matchTagEnd(); n > 0 {
			s.move(n)
			s.push(TokenVarEnd, "")
			s.popState()

			return nil
		}
	}

	return s.lexExpression()
}

// lexTagPart lexes the punctuation that continues a tag, followed by the
// attribute or filter name when there is one.
func (s *scanner) lexTagPart(name string) error {
	if err := s.lexExpression(); err != nil {
		return err
	}

	if name != "" {
		s.push(TokenName, name)
		s.move(len(name))
	}

	return nil
}

// matchTagPart reports whether the input continues a tag with "(", "[",
// ".name" or "|name", returning the name for the latter two.
func (s *scanner) matchTagPart() (bool, string) {
	if s.cursor >= len(s.code) {
		return false, ""
	}

	switch s.code[s.cursor] {
	case '(', '[':
		return true, ""

	case '.', '|':
		if s.cursor+1 < len(s.code) && isNameStart(s.code[s.cursor+1]) {
			s.cursor++
			name := s.scanName()
			s.cursor--

			return true, name
		}
	}

	return false, ""
}

// matchTagEnd returns the length of optional whitespace followed by ")" at
// the cursor, or 0.
func (s *scanner) matchTagEnd() int {
	i := s.cursor
	for i < len(s.code) && isSpace(s.code[i]) {
		i++
	}

	if i < len(s.code) && s.code[i] == ')' {
		return i + 1 - s.cursor
	}

	return 0
}

// unclosed reports an expression cut off by the end of the source. The
// innermost open bracket wins over the enclosing tag.
func (s *scanner) unclosed() error {
	if n := len(s.brackets); n > 0 {
		b := s.brackets[n-1]

		return s.errorf(b.line, `Unclosed "%c"`, b.char)
	}

	kind := "variable"
	if s.state == stateBlock {
		kind = "block"
	}

	return s.errorf(s.tagLine, `Unclosed "%s"`, kind)
}

func (s *scanner) lexExpression() error {
	if s.cursor >= len(s.code) {
		return s.unclosed()
	}

	// whitespace
	if n := s.countSpace(); n > 0 {
		s.move(n)

		if s.cursor >= len(s.code) {
			return s.unclosed()
		}
	}

	c := s.code[s.cursor]

	if op, n := s.matchOperator(); n > 0 {
		s.push(TokenOperator, op)
		s.move(n)

		return nil
	}

	if isNameStart(c) {
		name := s.scanName()
		s.push(TokenName, name)
		s.move(len(name))

		return nil
	}

	if isDigit(c) {
		num := s.scanNumber()
		s.push(TokenNumber, num)
		s.move(len(num))

		return nil
	}

	if strings.IndexByte(punctuation, c) >= 0 {
		switch c {
		case '(', '[', '{':
			s.brackets = append(s.brackets, bracket{c, s.line})

		case ')', ']', '}':
			n := len(s.brackets)
			if n == 0 {
				return s.errorf(s.line, `Unexpected "%c"`, c)
			}

			open := s.brackets[n-1]
			s.brackets = s.brackets[:n-1]

			if c != closerOf(open.char) {
				return s.errorf(open.line, `Unclosed "%c"`, open.char)
			}
		}

		s.push(TokenPunctuation, string(c))
		s.cursor++

		return nil
	}

	if c == '"' || c == '\'' {
		if n := s.scanString(c); n > 0 {
			s.push(TokenString, stripCSlashes(s.code[s.cursor+1:s.cursor+n-1]))
			s.move(n)

			return nil
		}
	}

	r, _ := utf8.DecodeRuneInString(s.code[s.cursor:])

	return s.errorf(s.line, `Unexpected character "%c"`, r)
}

// matchOperator returns the operator at the cursor with internal whitespace
// normalized, and the number of bytes it spans.
func (s *scanner) matchOperator() (string, int) {
	for _, op := range s.operators {
		if n := s.matchSymbol(op); n > 0 {
			return op, n
		}
	}

	return "", 0
}

// matchSymbol matches op at the cursor. Spaces in op match any run of
// whitespace, and an operator ending in a letter must be followed by
// whitespace or a parenthesis.
func (s *scanner) matchSymbol(op string) int {
	i := s.cursor

	for w, word := range strings.Split(op, " ") {
		if w > 0 {
			j := i
			for j < len(s.code) && isSpace(s.code[j]) {
				j++
			}

			if j == i {
				return 0
			}

			i = j
		}

		if !strings.HasPrefix(s.code[i:], word) {
			return 0
		}

		i += len(word)
	}

	if last := op[len(op)-1]; isLetter(last) {
		if i >= len(s.code) {
			return 0
		}

		if c := s.code[i]; !isSpace(c) && c != '(' && c != ')' {
			return 0
		}
	}

	return i - s.cursor
}

// scanString returns the length of the quoted string at the cursor
// including both quotes, or 0 when it is not terminated.
func (s *scanner) scanString(quote byte) int {
	for i := s.cursor + 1; i < len(s.code); i++ {
		switch s.code[i] {
		case '\\':
			i++
		case quote:
			return i + 1 - s.cursor
		}
	}

	return 0
}

func (s *scanner) scanName() string {
	i := s.cursor
	if i >= len(s.code) || !isNameStart(s.code[i]) {
		return ""
	}

	for i++; i < len(s.code) && isNameChar(s.code[i]); i++ {
	}

	return s.code[s.cursor:i]
}

func (s *scanner) scanNumber() string {
	i := s.cursor
	for i < len(s.code) && isDigit(s.code[i]) {
		i++
	}

	if i+1 < len(s.code) && s.code[i] == '.' && isDigit(s.code[i+1]) {
		for i++; i < len(s.code) && isDigit(s.code[i]); i++ {
		}
	}

	return s.code[s.cursor:i]
}

func (s *scanner) countSpace() int {
	i := s.cursor
	for i < len(s.code) && isSpace(s.code[i]) {
		i++
	}

	return i - s.cursor
}

func (s *scanner) push(kind TokenKind, value string) {
	if kind == TokenText && value == "" {
		return
	}

	s.tokens = append(s.tokens, Token{Kind: kind, Value: value, Line: s.line})
}

// move advances the cursor by n bytes, counting lines.
func (s *scanner) move(n int) {
	s.line += strings.Count(s.code[s.cursor:s.cursor+n], "\n")
	s.cursor += n
}

func (s *scanner) pushState(state lexState) {
	s.states = append(s.states, s.state)
	s.state = state
}

func (s *scanner) popState() {
	if n := len(s.states); n > 0 {
		s.state = s.states[n-1]
		s.states = s.states[:n-1]
	}
}

func closerOf(c byte) byte {
	switch c {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' ||
		c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLetter(c byte) bool { return (c|0x20) >= 'a' && (c|0x20) <= 'z' }

func isNameStart(c byte) bool { return c == '_' || isLetter(c) }

func isNameChar(c byte) bool { return isNameStart(c) || isDigit(c) }

// stripCSlashes interprets C-style backslash escapes.
func stripCSlashes(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var sb strings.Builder

	sb.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)

			continue
		}

		i++

		switch c = s[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'a':
			sb.WriteByte('\a')
		case 'v':
			sb.WriteByte('\v')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'x':
			v, n := 0, 0
			for n < 2 && i+1 < len(s) && isHex(s[i+1]) {
				i++
				n++
				v = v<<4 | hexVal(s[i])
			}

			if n == 0 {
				sb.WriteByte('x')
			} else {
				sb.WriteByte(byte(v))
			}
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v := int(c - '0')
			for n := 1; n < 3 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '7'; n++ {
				i++
				v = v<<3 | int(s[i]-'0')
			}

			sb.WriteByte(byte(v))
		default:
			sb.WriteByte(c)
		}
	}

	return sb.String()
}

func isHex(c byte) bool {
	return isDigit(c) || ((c|0x20) >= 'a' && (c|0x20) <= 'f')
}

func hexVal(c byte) int {
	if isDigit(c) {
		return int(c - '0')
	}

	return int(c|0x20-'a') + 10
}
