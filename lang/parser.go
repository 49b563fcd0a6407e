package lang

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ardnew/razr/log"
)

// TagParser parses the statement introduced by a tag.
//
// Parse is called with the stream positioned after the tag name. It returns
// the node to insert into the enclosing body, or nil when the tag produces
// no node of its own.
type TagParser interface {
	Tag() string
	// Continuations names the tags that may appear inside the construct,
	// such as "else" or "endif". The lexer treats them as tags too.
	Continuations() []string
	Parse(p *Parser, tok Token) (Node, error)
}

// stopFunc decides whether subparse should return at a tag name token.
type stopFunc func(tok Token) bool

// endTags returns a stopFunc matching any of the given tag names.
func endTags(names ...string) stopFunc {
	return func(tok Token) bool { return tok.Test(TokenName, names...) }
}

// construct is a tag whose body is being parsed.
type construct struct {
	tag  string
	ends []string
	line int
}

// Parser builds a [Module] from a token stream. A Parser holds the state of
// a single parse and must not be reused.
type Parser struct {
	env        *Environment
	stream     *TokenStream
	expr       *ExpressionParser
	parent     Expr
	blocks     map[string]*Block
	order      []*Block
	blockStack []string
	constructs []construct
	logger     log.Logger
}

func newParser(env *Environment, stream *TokenStream) *Parser {
	p := &Parser{
		env:    env,
		stream: stream,
		blocks: make(map[string]*Block),
		logger: env.logger.Component("parser"),
	}
	p.expr = &ExpressionParser{p: p, ops: env.ops}

	return p
}

// Stream returns the token stream being parsed.
func (p *Parser) Stream() *TokenStream { return p.stream }

// Expression returns the expression parser bound to this parse.
func (p *Parser) Expression() *ExpressionParser { return p.expr }

// Errorf returns a SyntaxError attributed to the template at line.
func (p *Parser) Errorf(line int, format string, args ...any) error {
	return ErrSyntax.Errorf(format, args...).At(p.stream.Name(), line)
}

func (p *Parser) parse(ctx context.Context) (*Module, error) {
	body, err := p.subparse(nil, false)
	if err != nil {
		return nil, err
	}

	if p.parent != nil {
		if body, err = p.filterBody(body); err != nil {
			return nil, err
		}

		if body == nil {
			body = &Body{pos: at(1)}
		}
	}

	m := &Module{
		Body:   body,
		Parent: p.parent,
		Blocks: p.order,
		Name:   p.stream.Name(),
		Source: p.stream.Source(),
		pos:    at(1),
	}

	p.logger.TraceContext(ctx, "parsed template",
		slog.String("name", m.Name),
		slog.Int("blocks", len(m.Blocks)),
		slog.Bool("extends", m.Parent != nil))

	return m, nil
}

// Subparse parses statements until stop matches a tag name. With drop, the
// matching tag name is consumed.
func (p *Parser) Subparse(stop func(Token) bool, drop bool) (Node, error) {
	return p.subparse(stop, drop)
}

func (p *Parser) subparse(stop stopFunc, drop bool) (Node, error) {
	s := p.stream
	line := s.Current().Line

	var nodes []Node

	for !s.IsEOF() {
		tok := s.Current()

		switch tok.Kind {
		case TokenText:
			if _, err := s.Next(); err != nil {
				return nil, err
			}

			nodes = append(nodes, &Text{Data: tok.Value, pos: at(tok.Line)})

		case TokenVarStart:
			if _, err := s.Next(); err != nil {
				return nil, err
			}

			expr, err := p.expr.ParseExpression(0)
			if err != nil {
				return nil, err
			}

			if _, err := s.Expect(TokenVarEnd, "", ""); err != nil {
				return nil, err
			}

			if parent, ok := expr.(*Parent); ok {
				nodes = append(nodes, &ParentBlockReference{
					Name: parent.Name,
					pos:  at(tok.Line),
				})
			} else {
				nodes = append(nodes, &Print{Expr: expr, pos: at(tok.Line)})
			}

		case TokenBlockStart:
			if _, err := s.Next(); err != nil {
				return nil, err
			}

			tok = s.Current()
			if tok.Kind != TokenName {
				return nil, p.Errorf(tok.Line, "A block must start with a tag name")
			}

			if stop != nil && stop(tok) {
				if drop {
					if _, err := s.Next(); err != nil {
						return nil, err
					}
				}

				return collapse(nodes, line), nil
			}

			tp, ok := p.env.tag(tok.Value)
			if !ok {
				return nil, p.unknownTag(tok, stop != nil)
			}

			if _, err := s.Next(); err != nil {
				return nil, err
			}

			node, err := tp.Parse(p, tok)
			if err != nil {
				return nil, err
			}

			if node != nil {
				nodes = append(nodes, node)
			}

		default:
			return nil, p.Errorf(tok.Line,
				"Lexer or parser ended up in unsupported state")
		}
	}

	if stop != nil {
		return nil, p.unexpectedEnd()
	}

	return collapse(nodes, line), nil
}

func collapse(nodes []Node, line int) Node {
	if len(nodes) == 1 {
		return nodes[0]
	}

	return &Body{Nodes: nodes, pos: at(line)}
}

func (p *Parser) unknownTag(tok Token, nested bool) error {
	if nested {
		if c, ok := p.construct(); ok {
			return p.Errorf(tok.Line,
				`Unexpected tag name "%s" (expecting closing tag for the "%s" tag defined near line %d)`,
				tok.Value, c.tag, c.line)
		}
	}

	return p.Errorf(tok.Line, "%s", didYouMean(
		`Unknown tag name "`+tok.Value+`"`,
		alternatives(tok.Value, p.env.tagNames()),
	))
}

func (p *Parser) unexpectedEnd() error {
	line := p.stream.Current().Line

	c, ok := p.construct()
	if !ok || len(c.ends) == 0 {
		return p.Errorf(line, "Unexpected end of template")
	}

	return p.Errorf(line,
		`Unexpected end of template. Expected were the following tags %s to close the "%s" block started at line %d`,
		quoteList(c.ends), c.tag, c.line)
}

// quoteList formats names as "a", "b", or "c".
func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = strconv.Quote(n)
	}

	switch len(quoted) {
	case 1:
		return quoted[0]
	case 2:
		return quoted[0] + " or " + quoted[1]
	default:
		return strings.Join(quoted[:len(quoted)-1], ", ") +
			", or " + quoted[len(quoted)-1]
	}
}

// Enter records that the body of a tag is being parsed, for diagnostics.
// ends lists the tags that may close it.
func (p *Parser) Enter(tag string, line int, ends ...string) {
	p.constructs = append(p.constructs, construct{tag: tag, ends: ends, line: line})
}

// Leave undoes the most recent [Parser.Enter].
func (p *Parser) Leave() {
	if n := len(p.constructs); n > 0 {
		p.constructs = p.constructs[:n-1]
	}
}

func (p *Parser) construct() (construct, bool) {
	if n := len(p.constructs); n > 0 {
		return p.constructs[n-1], true
	}

	return construct{}, false
}

// SetParent records the template this one extends.
func (p *Parser) SetParent(parent Expr) { p.parent = parent }

// Parent returns the parent expression set by [Parser.SetParent].
func (p *Parser) Parent() Expr { return p.parent }

// IsMainScope reports whether no block is open.
func (p *Parser) IsMainScope() bool { return len(p.blockStack) == 0 }

// HasBlock reports whether a block with the given name was defined.
func (p *Parser) HasBlock(name string) bool {
	_, ok := p.blocks[name]

	return ok
}

// SetBlock defines a block. Blocks keep their definition order.
func (p *Parser) SetBlock(block *Block) {
	p.blocks[block.Name] = block
	p.order = append(p.order, block)
}

// Block returns the block defined with the given name.
func (p *Parser) Block(name string) (*Block, bool) {
	b, ok := p.blocks[name]

	return b, ok
}

// PushBlock marks the named block as open.
func (p *Parser) PushBlock(name string) { p.blockStack = append(p.blockStack, name) }

// PopBlock closes the innermost open block.
func (p *Parser) PopBlock() {
	if n := len(p.blockStack); n > 0 {
		p.blockStack = p.blockStack[:n-1]
	}
}

func (p *Parser) currentBlock() (string, bool) {
	if n := len(p.blockStack); n > 0 {
		return p.blockStack[n-1], true
	}

	return "", false
}

// filterBody removes whitespace and block references from the body of a
// template that extends another, rejecting any other output. It returns nil
// when nothing remains of node.
func (p *Parser) filterBody(node Node) (Node, error) {
	switch n := node.(type) {
	case *Text:
		if strings.TrimSpace(n.Data) != "" {
			return nil, p.noBody(n)
		}

		return nil, nil
	case *BlockReference:
		return nil, nil
	case *Print, *ParentBlockReference:
		return nil, p.noBody(n)
	case *Set:
		return n, nil
	case *Body:
		kept := n.Nodes[:0:0]
		for _, child := range n.Nodes {
			c, err := p.filterBody(child)
			if err != nil {
				return nil, err
			}

			if c != nil {
				kept = append(kept, c)
			}
		}

		n.Nodes = kept

		return n, nil
	case *If:
		for i := range n.Tests {
			body, err := p.filterBody(n.Tests[i].Body)
			if err != nil {
				return nil, err
			}

			n.Tests[i].Body = orEmpty(body, n.Tests[i].Body)
		}

		if n.Else != nil {
			body, err := p.filterBody(n.Else)
			if err != nil {
				return nil, err
			}

			n.Else = orEmpty(body, n.Else)
		}

		return n, nil
	case *Foreach:
		body, err := p.filterBody(n.Body)
		if err != nil {
			return nil, err
		}

		n.Body = orEmpty(body, n.Body)

		return n, nil
	case *While:
		body, err := p.filterBody(n.Body)
		if err != nil {
			return nil, err
		}

		n.Body = orEmpty(body, n.Body)

		return n, nil
	default:
		return n, nil
	}
}

func orEmpty(node, was Node) Node {
	if node != nil {
		return node
	}

	return &Body{pos: at(was.Line())}
}

func (p *Parser) noBody(n Node) error {
	return p.Errorf(n.Line(), "A template that extends another one cannot have a body")
}
