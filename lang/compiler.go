package lang

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/ardnew/razr/log"
)

// Compiler translates a [Module] into a [Unit]. It writes a listing of the
// template and, in lockstep, builds the instructions executed by the
// interpreter, recording the template line of each listing line.
//
// A Compiler holds the state of a single compilation.
type Compiler struct {
	env       *Environment
	name      string
	buf       strings.Builder
	debugInfo map[int]int
	indent    int
	line      int
	lastLine  int
	logger    log.Logger
}

func newCompiler(env *Environment) *Compiler {
	return &Compiler{
		env:       env,
		debugInfo: make(map[int]int),
		line:      1,
		logger:    env.logger.Component("compiler"),
	}
}

// Source returns the listing written so far.
func (c *Compiler) Source() string { return c.buf.String() }

// DebugInfo returns the map from listing lines to template lines.
func (c *Compiler) DebugInfo() map[int]int { return c.debugInfo }

// Raw appends s to the listing.
func (c *Compiler) Raw(s ...string) *Compiler {
	for _, p := range s {
		c.buf.WriteString(p)
		c.line += strings.Count(p, "\n")
	}

	return c
}

// Write appends s to the listing after the current indentation.
func (c *Compiler) Write(s ...string) *Compiler {
	c.buf.WriteString(strings.Repeat("    ", c.indent))

	return c.Raw(s...)
}

// Indent increases the indentation of subsequent writes.
func (c *Compiler) Indent() *Compiler {
	c.indent++

	return c
}

// Outdent decreases the indentation of subsequent writes.
func (c *Compiler) Outdent() error {
	if c.indent == 0 {
		return ErrLogic.Errorf(
			"Unable to call outdent() as the indentation would become negative")
	}

	c.indent--

	return nil
}

// Repr appends the literal representation of v.
func (c *Compiler) Repr(v any) *Compiler {
	return c.Raw(repr(v))
}

// AddDebugInfo maps the current listing line to the line of n, when it
// differs from the last line recorded.
func (c *Compiler) AddDebugInfo(n Node) *Compiler {
	if n.Line() != c.lastLine {
		c.debugInfo[c.line] = n.Line()
		c.lastLine = n.Line()
	}

	return c
}

func repr(v any) string {
	switch v := normalize(v).(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.ContainsAny(s, ".IN") {
			s += ".0"
		}

		return s
	case string:
		return strconv.Quote(v)
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = repr(item)
		}

		return "array(" + strings.Join(items, ", ") + ")"
	case *Hash:
		items := make([]string, 0, v.Len())
		for k, item := range v.All() {
			items = append(items, strconv.Quote(k)+" => "+repr(item))
		}

		return "array(" + strings.Join(items, ", ") + ")"
	default:
		return strconv.Quote(toString(v))
	}
}

func (c *Compiler) errorf(line int, format string, args ...any) error {
	return ErrSyntax.Errorf(format, args...).At(c.name, line)
}

// Compile compiles m into an executable unit.
func (c *Compiler) Compile(ctx context.Context, m *Module) (*Unit, error) {
	c.name = m.Name

	u := &Unit{
		name:   m.Name,
		source: m.Source,
		index:  m.Index,
		blocks: make(map[string][]instr, len(m.Blocks)),
	}

	c.Write("template ", strconv.Quote(m.Name), " {\n").Indent()

	if m.Parent != nil {
		c.AddDebugInfo(m.Parent).Write("parent = ")
		u.parentGen = c.line

		var err error
		if u.parent, err = c.expr(m.Parent); err != nil {
			return nil, err
		}

		c.Raw("\n")
	}

	c.Write("display(context, blocks) {\n").Indent()

	body, err := c.stmt(m.Body)
	if err != nil {
		return nil, err
	}

	u.body = body

	if err := c.close(); err != nil {
		return nil, err
	}

	for _, b := range m.Blocks {
		c.AddDebugInfo(b).
			Write("block ", strconv.Quote(b.Name), "(context, blocks) {\n").
			Indent()

		code, err := c.stmt(b.Body)
		if err != nil {
			return nil, err
		}

		if err := c.close(); err != nil {
			return nil, err
		}

		u.blocks[b.Name] = code
		u.order = append(u.order, b.Name)
	}

	if err := c.close(); err != nil {
		return nil, err
	}

	u.code = c.Source()
	u.debugInfo = c.debugInfo
	u.genLines = slices.Sorted(maps.Keys(c.debugInfo))

	c.logger.TraceContext(ctx, "compiled template",
		slog.String("name", u.name),
		slog.Int("index", u.index),
		slog.Int("lines", c.line-1))

	return u, nil
}

// close ends the innermost braced section of the listing.
func (c *Compiler) close() error {
	if err := c.Outdent(); err != nil {
		return err
	}

	c.Write("}\n")

	return nil
}

func (c *Compiler) stmt(node Node) ([]instr, error) {
	switch n := node.(type) {
	case nil:
		return nil, nil

	case *Body:
		var code []instr

		for _, child := range n.Nodes {
			sub, err := c.stmt(child)
			if err != nil {
				return nil, err
			}

			code = append(code, sub...)
		}

		return code, nil

	case *Text:
		c.AddDebugInfo(n)
		in := instr{op: opText, text: n.Data, gen: c.line}
		c.Write("echo ").Repr(n.Data).Raw("\n")

		return []instr{in}, nil

	case *Print:
		c.AddDebugInfo(n)
		in := instr{op: opPrint, gen: c.line}
		c.Write("echo escape(")

		var err error
		if in.expr, err = c.expr(n.Expr); err != nil {
			return nil, err
		}

		c.Raw(")\n")

		return []instr{in}, nil

	case *Set:
		c.AddDebugInfo(n)
		in := instr{op: opSet, gen: c.line}
		c.Write("set ")

		for i, name := range n.Names {
			if i > 0 {
				c.Raw(", ")
			}

			c.Raw(name.Name, " = ")

			value, err := c.expr(n.Values[i])
			if err != nil {
				return nil, err
			}

			in.names = append(in.names, name.Name)
			in.exprs = append(in.exprs, value)
		}

		c.Raw("\n")

		return []instr{in}, nil

	case *If:
		return c.compileIf(n)

	case *Foreach:
		c.AddDebugInfo(n)
		in := instr{op: opForeach, gen: c.line, names: []string{n.Key.Name, n.Value.Name}}
		c.Write("for ", n.Key.Name, ", ", n.Value.Name, " := range iterable(")

		var err error
		if in.expr, err = c.expr(n.Seq); err != nil {
			return nil, err
		}

		c.Raw(") {\n").Indent()

		body, err := c.stmt(n.Body)
		if err != nil {
			return nil, err
		}

		in.bodies = [][]instr{body}

		return []instr{in}, c.close()

	case *While:
		c.AddDebugInfo(n)
		in := instr{op: opWhile, gen: c.line}
		c.Write("while ")

		var err error
		if in.expr, err = c.expr(n.Cond); err != nil {
			return nil, err
		}

		c.Raw(" {\n").Indent()

		body, err := c.stmt(n.Body)
		if err != nil {
			return nil, err
		}

		in.bodies = [][]instr{body}

		return []instr{in}, c.close()

	case *BlockReference:
		c.AddDebugInfo(n)
		in := instr{op: opDisplayBlock, text: n.Name, gen: c.line}
		c.Write("displayBlock(", strconv.Quote(n.Name), ", context, blocks)\n")

		return []instr{in}, nil

	case *ParentBlockReference:
		c.AddDebugInfo(n)
		in := instr{op: opDisplayParentBlock, text: n.Name, gen: c.line}
		c.Write("displayParentBlock(", strconv.Quote(n.Name), ", context, blocks)\n")

		return []instr{in}, nil

	default:
		return nil, ErrLogic.Errorf("Unable to compile node of kind %s", node.Kind()).
			At(c.name, node.Line())
	}
}

func (c *Compiler) compileIf(n *If) ([]instr, error) {
	in := instr{op: opIf}

	for i, test := range n.Tests {
		if i == 0 {
			c.AddDebugInfo(n)
			in.gen = c.line
			c.Write("if ")
		} else {
			if err := c.Outdent(); err != nil {
				return nil, err
			}

			c.AddDebugInfo(test.Cond).Write("} else if ")
		}

		in.gens = append(in.gens, c.line)

		cond, err := c.expr(test.Cond)
		if err != nil {
			return nil, err
		}

		c.Raw(" {\n").Indent()

		body, err := c.stmt(test.Body)
		if err != nil {
			return nil, err
		}

		in.exprs = append(in.exprs, cond)
		in.bodies = append(in.bodies, body)
	}

	if n.Else != nil {
		if err := c.Outdent(); err != nil {
			return nil, err
		}

		c.Write("} else {\n").Indent()

		body, err := c.stmt(n.Else)
		if err != nil {
			return nil, err
		}

		in.bodies = append(in.bodies, body)
	}

	return []instr{in}, c.close()
}

func (c *Compiler) expr(node Expr) (*expr, error) {
	switch n := node.(type) {
	case *Constant:
		c.Repr(n.Value)

		return &expr{kind: exConst, value: normalize(n.Value)}, nil

	case *Name:
		switch n.Name {
		case "_self":
			c.Raw("this")
		case "_context":
			c.Raw("context")
		case "_charset":
			c.Raw("charset")
		default:
			c.Raw("context[", strconv.Quote(n.Name), "]")
		}

		return &expr{kind: exName, name: n.Name}, nil

	case *Array:
		return c.array(n)

	case *Conditional:
		e := &expr{kind: exCond}
		c.Raw("((")

		for i, part := range []Expr{n.Cond, n.Then, n.Else} {
			switch i {
			case 1:
				c.Raw(") ? (")
			case 2:
				c.Raw(") : (")
			}

			arg, err := c.expr(part)
			if err != nil {
				return nil, err
			}

			e.args = append(e.args, arg)
		}

		c.Raw("))")

		return e, nil

	case *Unary:
		c.Raw("(", n.Symbol, " ")

		operand, err := c.expr(n.Operand)
		if err != nil {
			return nil, err
		}

		c.Raw(")")

		return &expr{kind: exUnary, op: n.Op, args: []*expr{operand}}, nil

	case *Binary:
		c.Raw("(")

		left, err := c.expr(n.Left)
		if err != nil {
			return nil, err
		}

		c.Raw(" ", n.Symbol, " ")

		right, err := c.expr(n.Right)
		if err != nil {
			return nil, err
		}

		c.Raw(")")

		return &expr{kind: exBinary, op: n.Op, args: []*expr{left, right}}, nil

	case *GetAttr:
		e := &expr{kind: exAttr, call: n.Call}
		c.Raw("getAttribute(")

		target, err := c.expr(n.Target)
		if err != nil {
			return nil, err
		}

		c.Raw(", ")

		attr, err := c.expr(n.Attr)
		if err != nil {
			return nil, err
		}

		c.Raw(", array(")

		e.args = []*expr{target, attr}

		for i, a := range n.Args {
			if i > 0 {
				c.Raw(", ")
			}

			arg, err := c.expr(a)
			if err != nil {
				return nil, err
			}

			e.args = append(e.args, arg)
		}

		c.Raw("), ", strconv.Quote(n.Call.String()), ")")

		return e, nil

	case *FunctionCall:
		fn, ok := c.env.function(n.Name)
		if !ok {
			return nil, c.errorf(n.Line(), `The function "%s" does not exist`, n.Name)
		}

		args, err := c.callArgs("function", n.Name, fn.Params, n.Args, n.Line())
		if err != nil {
			return nil, err
		}

		c.Raw(n.Name, "(")

		e := &expr{kind: exFunction, name: n.Name, function: fn}
		if e.args, err = c.list(args); err != nil {
			return nil, err
		}

		c.Raw(")")

		return e, nil

	case *FilterCall:
		f, ok := c.env.filter(n.Name)
		if !ok {
			return nil, c.errorf(n.Line(), `The filter "%s" does not exist`, n.Name)
		}

		args, err := c.callArgs("filter", n.Name, f.Params, n.Args, n.Line())
		if err != nil {
			return nil, err
		}

		c.Raw("applyFilter(", strconv.Quote(n.Name), ", ")

		e := &expr{kind: exFilter, name: n.Name, filter: f}
		if e.args, err = c.list(append([]Expr{n.Target}, args...)); err != nil {
			return nil, err
		}

		c.Raw(")")

		return e, nil

	case *Parent:
		c.Raw("parentBlock(", strconv.Quote(n.Name), ", context, blocks)")

		return &expr{kind: exParent, name: n.Name}, nil

	default:
		return nil, ErrLogic.Errorf("Unable to compile expression of kind %s", node.Kind()).
			At(c.name, node.Line())
	}
}

// list compiles comma-separated expressions. Nil entries compile as null.
func (c *Compiler) list(nodes []Expr) ([]*expr, error) {
	out := make([]*expr, len(nodes))

	for i, node := range nodes {
		if i > 0 {
			c.Raw(", ")
		}

		if node == nil {
			c.Raw("null")
			out[i] = &expr{kind: exConst}

			continue
		}

		e, err := c.expr(node)
		if err != nil {
			return nil, err
		}

		out[i] = e
	}

	return out, nil
}

func (c *Compiler) array(n *Array) (*expr, error) {
	c.Raw("array(")

	if !n.IsHash() {
		e := &expr{kind: exList}

		var err error
		if e.args, err = c.list(n.Values); err != nil {
			return nil, err
		}

		c.Raw(")")

		return e, nil
	}

	e := &expr{kind: exHash}

	for i, k := range n.Keys {
		if i > 0 {
			c.Raw(", ")
		}

		key, ok := k.(*Constant)
		if !ok {
			return nil, c.errorf(k.Line(), "A hash key must be a quoted string or a number")
		}

		name := toString(key.Value)
		c.Raw(strconv.Quote(name), " => ")

		value, err := c.expr(n.Values[i])
		if err != nil {
			return nil, err
		}

		e.keys = append(e.keys, name)
		e.args = append(e.args, value)
	}

	c.Raw(")")

	return e, nil
}

// callArgs orders the arguments of a call by parameter position. Named
// arguments fill the slot of their parameter and skipped slots are nil.
func (c *Compiler) callArgs(
	kind, name string,
	params []string,
	args []Arg,
	line int,
) ([]Expr, error) {
	var (
		out   []Expr
		named bool
	)

	for _, a := range args {
		if a.Name == "" {
			if named {
				return nil, c.errorf(line,
					`Positional arguments cannot be used after named arguments for %s "%s"`,
					kind, name)
			}

			out = append(out, a.Value)

			continue
		}

		named = true

		i := slices.Index(params, a.Name)
		if i < 0 {
			return nil, c.errorf(line, "%s", didYouMean(
				`Unknown argument "`+a.Name+`" for `+kind+` "`+name+`"`,
				alternatives(a.Name, params),
			))
		}

		for len(out) <= i {
			out = append(out, nil)
		}

		if out[i] != nil {
			return nil, c.errorf(line,
				`Argument "%s" is defined twice for %s "%s"`, a.Name, kind, name)
		}

		out[i] = a.Value
	}

	return out, nil
}
