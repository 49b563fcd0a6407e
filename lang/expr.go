package lang

import (
	"strconv"
	"strings"
)

// ExpressionParser parses expressions from the token stream of a [Parser]
// by precedence climbing.
type ExpressionParser struct {
	p   *Parser
	ops *operatorTable
}

func (e *ExpressionParser) stream() *TokenStream { return e.p.stream }

func (e *ExpressionParser) errorf(line int, format string, args ...any) error {
	return ErrSyntax.Errorf(format, args...).At(e.p.stream.Name(), line)
}

// ParseExpression parses an expression whose binary operators bind at least
// as tightly as minPrecedence. At precedence 0 the result may be the
// condition of a ternary.
func (e *ExpressionParser) ParseExpression(minPrecedence int) (Expr, error) {
	expr, err := e.parsePrimary()
	if err != nil {
		return nil, err
	}

	tok := e.stream().Current()
	for {
		op, ok := e.binary(tok)
		if !ok || op.Precedence < minPrecedence {
			break
		}

		if _, err := e.stream().Next(); err != nil {
			return nil, err
		}

		next := op.Precedence
		if op.Assoc == AssocLeft {
			next++
		}

		right, err := e.ParseExpression(next)
		if err != nil {
			return nil, err
		}

		expr = &Binary{
			Left:   expr,
			Right:  right,
			Symbol: op.Symbol,
			Op:     op.Op,
			pos:    at(tok.Line),
		}
		tok = e.stream().Current()
	}

	if minPrecedence == 0 {
		return e.parseConditional(expr)
	}

	return expr, nil
}

func (e *ExpressionParser) binary(tok Token) (BinaryOperator, bool) {
	if tok.Kind != TokenOperator {
		return BinaryOperator{}, false
	}

	op, ok := e.ops.binary[tok.Value]

	return op, ok
}

func (e *ExpressionParser) unary(tok Token) (UnaryOperator, bool) {
	if tok.Kind != TokenOperator {
		return UnaryOperator{}, false
	}

	op, ok := e.ops.unary[tok.Value]

	return op, ok
}

func (e *ExpressionParser) parsePrimary() (Expr, error) {
	tok := e.stream().Current()

	if op, ok := e.unary(tok); ok {
		if _, err := e.stream().Next(); err != nil {
			return nil, err
		}

		operand, err := e.ParseExpression(op.Precedence)
		if err != nil {
			return nil, err
		}

		return e.parsePostfix(&Unary{
			Operand: operand,
			Symbol:  op.Symbol,
			Op:      op.Op,
			pos:     at(tok.Line),
		})
	}

	if tok.Test(TokenPunctuation, "(") {
		if _, err := e.stream().Next(); err != nil {
			return nil, err
		}

		expr, err := e.ParseExpression(0)
		if err != nil {
			return nil, err
		}

		if _, err := e.stream().Expect(
			TokenPunctuation, ")", "An opened parenthesis is not properly closed",
		); err != nil {
			return nil, err
		}

		return e.parsePostfix(expr)
	}

	return e.parsePrimaryExpression()
}

func (e *ExpressionParser) parseConditional(expr Expr) (Expr, error) {
	s := e.stream()

	for {
		tok, ok := s.NextIf(TokenPunctuation, "?")
		if !ok {
			return expr, nil
		}

		var then, els Expr

		if _, elvis := s.NextIf(TokenPunctuation, ":"); elvis {
			then = expr

			var err error
			if els, err = e.ParseExpression(0); err != nil {
				return nil, err
			}
		} else {
			var err error
			if then, err = e.ParseExpression(0); err != nil {
				return nil, err
			}

			if _, ok := s.NextIf(TokenPunctuation, ":"); ok {
				if els, err = e.ParseExpression(0); err != nil {
					return nil, err
				}
			} else {
				els = &Constant{Value: "", pos: at(tok.Line)}
			}
		}

		expr = &Conditional{Cond: expr, Then: then, Else: els, pos: at(tok.Line)}
	}
}

func (e *ExpressionParser) parsePrimaryExpression() (Expr, error) {
	s := e.stream()
	tok := s.Current()

	var node Expr

	switch tok.Kind {
	case TokenName:
		if _, err := s.Next(); err != nil {
			return nil, err
		}

		switch tok.Value {
		case "true", "TRUE":
			node = &Constant{Value: true, pos: at(tok.Line)}
		case "false", "FALSE":
			node = &Constant{Value: false, pos: at(tok.Line)}
		case "null", "NULL", "none", "NONE":
			node = &Constant{Value: nil, pos: at(tok.Line)}
		default:
			if s.Test(TokenPunctuation, "(") {
				var err error
				if node, err = e.parseFunction(tok.Value, tok.Line); err != nil {
					return nil, err
				}
			} else {
				node = &Name{Name: tok.Value, pos: at(tok.Line)}
			}
		}

	case TokenNumber:
		if _, err := s.Next(); err != nil {
			return nil, err
		}

		node = &Constant{Value: numberValue(tok.Value), pos: at(tok.Line)}

	case TokenString:
		if _, err := s.Next(); err != nil {
			return nil, err
		}

		node = &Constant{Value: tok.Value, pos: at(tok.Line)}

	case TokenOperator:
		if !isWord(tok.Value) {
			return nil, e.errorf(tok.Line,
				`Unexpected token "%s" of value "%s"`, tok.Kind.English(), tok.Value)
		}

		if _, err := s.Next(); err != nil {
			return nil, err
		}

		node = &Name{Name: tok.Value, pos: at(tok.Line)}

	default:
		if !tok.Test(TokenPunctuation, "[") {
			return nil, e.errorf(tok.Line,
				`Unexpected token "%s" of value "%s"`, tok.Kind.English(), tok.Value)
		}

		var err error
		if node, err = e.parseArray(); err != nil {
			return nil, err
		}
	}

	return e.parsePostfix(node)
}

// numberValue converts a NUMBER token to an int, or a float64 when the
// literal has a fraction or overflows int.
func numberValue(lit string) any {
	if !strings.ContainsAny(lit, ".eE") {
		if n, err := strconv.Atoi(lit); err == nil {
			return n
		}
	}

	f, _ := strconv.ParseFloat(lit, 64)

	return f
}

func isWord(s string) bool {
	for i := range len(s) {
		if !isNameChar(s[i]) && s[i] != ' ' {
			return false
		}
	}

	return s != "" && isNameStart(s[0])
}

func (e *ExpressionParser) parseArray() (Expr, error) {
	s := e.stream()

	open, err := s.Expect(TokenPunctuation, "[", "An array element was expected")
	if err != nil {
		return nil, err
	}

	node := &Array{pos: at(open.Line)}
	hash := false

	for first := true; !s.Test(TokenPunctuation, "]"); first = false {
		if !first {
			if _, err := s.Expect(
				TokenPunctuation, ",", "An array element must be followed by a comma",
			); err != nil {
				return nil, err
			}

			if s.Test(TokenPunctuation, "]") {
				break
			}
		} else if next, err := s.Look(1); err == nil &&
			next.Test(TokenOperator, "=>") {
			hash = true
			node.Keys = []Expr{}
		}

		if hash {
			tok := s.Current()
			if tok.Kind != TokenString && tok.Kind != TokenNumber {
				return nil, e.errorf(tok.Line,
					`A hash key must be a quoted string or a number (unexpected token "%s" of value "%s")`,
					tok.Kind.English(), tok.Value)
			}

			key, err := e.parsePrimaryExpression()
			if err != nil {
				return nil, err
			}

			if _, err := s.Expect(
				TokenOperator, "=>", "A hash key must be followed by an arrow",
			); err != nil {
				return nil, err
			}

			node.Keys = append(node.Keys, key)
		}

		value, err := e.ParseExpression(0)
		if err != nil {
			return nil, err
		}

		node.Values = append(node.Values, value)
	}

	if _, err := s.Expect(
		TokenPunctuation, "]", "An opened array is not properly closed",
	); err != nil {
		return nil, err
	}

	return node, nil
}

func (e *ExpressionParser) parsePostfix(node Expr) (Expr, error) {
	for {
		tok := e.stream().Current()
		if tok.Kind != TokenPunctuation {
			return node, nil
		}

		var err error

		switch tok.Value {
		case ".", "[":
			node, err = e.parseSubscript(node)
		case "|":
			node, err = e.parseFilters(node)
		default:
			return node, nil
		}

		if err != nil {
			return nil, err
		}
	}
}

func (e *ExpressionParser) parseSubscript(node Expr) (Expr, error) {
	s := e.stream()

	tok, err := s.Next()
	if err != nil {
		return nil, err
	}

	if tok.Value == "." {
		name, err := s.Next()
		if err != nil {
			return nil, err
		}

		var attr Expr

		switch {
		case name.Kind == TokenName, name.Kind == TokenOperator && isWord(name.Value):
			attr = &Constant{Value: name.Value, pos: at(name.Line)}
		case name.Kind == TokenNumber:
			attr = &Constant{Value: numberValue(name.Value), pos: at(name.Line)}
		default:
			return nil, e.errorf(name.Line, "Expected name or number")
		}

		get := &GetAttr{Target: node, Attr: attr, Call: CallAny, pos: at(tok.Line)}

		if s.Test(TokenPunctuation, "(") {
			args, err := e.ParseArguments(false, false)
			if err != nil {
				return nil, err
			}

			get.Call = CallMethod
			get.Args = argValues(args)
		}

		return get, nil
	}

	var (
		attr  Expr
		slice bool
	)

	if s.Test(TokenPunctuation, ":") {
		slice = true
		attr = &Constant{Value: 0, pos: at(tok.Line)}
	} else if attr, err = e.ParseExpression(0); err != nil {
		return nil, err
	}

	if _, ok := s.NextIf(TokenPunctuation, ":"); ok {
		slice = true
	}

	if slice {
		var length Expr = &Constant{pos: at(tok.Line)}
		if !s.Test(TokenPunctuation, "]") {
			if length, err = e.ParseExpression(0); err != nil {
				return nil, err
			}
		}

		if _, err := s.Expect(TokenPunctuation, "]", ""); err != nil {
			return nil, err
		}

		return &FilterCall{
			Target: node,
			Name:   "slice",
			Args:   []Arg{{Value: attr}, {Value: length}},
			pos:    at(tok.Line),
		}, nil
	}

	if _, err := s.Expect(TokenPunctuation, "]", ""); err != nil {
		return nil, err
	}

	return &GetAttr{Target: node, Attr: attr, Call: CallArray, pos: at(tok.Line)}, nil
}

func argValues(args []Arg) []Expr {
	values := make([]Expr, len(args))
	for i, a := range args {
		values[i] = a.Value
	}

	return values
}

func (e *ExpressionParser) parseFilters(node Expr) (Expr, error) {
	s := e.stream()

	for {
		if _, err := s.Next(); err != nil { // |
			return nil, err
		}

		tok, err := s.Expect(TokenName, "", "")
		if err != nil {
			return nil, err
		}

		if _, ok := e.p.env.filter(tok.Value); !ok {
			return nil, e.errorf(tok.Line, "%s", didYouMean(
				`The filter "`+tok.Value+`" does not exist`,
				alternatives(tok.Value, e.p.env.filterNames()),
			))
		}

		var args []Arg
		if s.Test(TokenPunctuation, "(") {
			if args, err = e.ParseArguments(true, false); err != nil {
				return nil, err
			}
		}

		node = &FilterCall{Target: node, Name: tok.Value, Args: args, pos: at(tok.Line)}

		if !s.Test(TokenPunctuation, "|") {
			return node, nil
		}
	}
}

func (e *ExpressionParser) parseFunction(name string, line int) (Expr, error) {
	switch name {
	case "parent":
		if _, err := e.ParseArguments(false, false); err != nil {
			return nil, err
		}

		block, ok := e.p.currentBlock()
		if !ok {
			return nil, e.errorf(line, `Calling "parent" outside a block is forbidden`)
		}

		if e.p.parent == nil {
			return nil, e.errorf(line,
				`Calling "parent" on a template that does not extend another template is forbidden`)
		}

		return &Parent{Name: block, pos: at(line)}, nil

	case "attribute":
		args, err := e.ParseArguments(false, false)
		if err != nil {
			return nil, err
		}

		if len(args) < 2 {
			return nil, e.errorf(line,
				`The "attribute" function takes at least two arguments (the variable and the attributes)`)
		}

		get := &GetAttr{
			Target: args[0].Value,
			Attr:   args[1].Value,
			Call:   CallAny,
			pos:    at(line),
		}

		if len(args) > 2 {
			list, ok := args[2].Value.(*Array)
			if !ok || list.IsHash() {
				return nil, e.errorf(line,
					`The third argument of "attribute" must be an array of arguments`)
			}

			get.Args = list.Values
			get.Call = CallMethod
		}

		return get, nil
	}

	if _, ok := e.p.env.function(name); !ok {
		return nil, e.errorf(line, "%s", didYouMean(
			`The function "`+name+`" does not exist`,
			alternatives(name, e.p.env.functionNames()),
		))
	}

	args, err := e.ParseArguments(true, false)
	if err != nil {
		return nil, err
	}

	return &FunctionCall{Name: name, Args: args, pos: at(line)}, nil
}

// ParseArguments parses a parenthesized argument list. With named, an
// argument may be given as name = value. With definition, every argument is
// a name with an optional constant default.
func (e *ExpressionParser) ParseArguments(named, definition bool) ([]Arg, error) {
	s := e.stream()

	if _, err := s.Expect(
		TokenPunctuation, "(", "A list of arguments must begin with an opening parenthesis",
	); err != nil {
		return nil, err
	}

	var args []Arg

	for !s.Test(TokenPunctuation, ")") {
		if len(args) > 0 {
			if _, err := s.Expect(
				TokenPunctuation, ",", "Arguments must be separated by a comma",
			); err != nil {
				return nil, err
			}
		}

		if definition {
			tok, err := s.Expect(TokenName, "", "An argument must be a name")
			if err != nil {
				return nil, err
			}

			arg := Arg{Name: tok.Value}

			if _, ok := s.NextIf(TokenOperator, "="); ok {
				if arg.Value, err = e.parsePrimary(); err != nil {
					return nil, err
				}

				if !isConstant(arg.Value) {
					return nil, e.errorf(tok.Line,
						"A default value for an argument must be a constant (a boolean, a string, a number, or an array).")
				}
			}

			args = append(args, arg)

			continue
		}

		value, err := e.ParseExpression(0)
		if err != nil {
			return nil, err
		}

		if named {
			if tok, ok := s.NextIf(TokenOperator, "="); ok {
				name, isName := value.(*Name)
				if !isName {
					return nil, e.errorf(tok.Line,
						`A parameter name must be a string, "%s" given`, value.Kind())
				}

				if value, err = e.ParseExpression(0); err != nil {
					return nil, err
				}

				args = append(args, Arg{Name: name.Name, Value: value})

				continue
			}
		}

		args = append(args, Arg{Value: value})
	}

	if _, err := s.Expect(
		TokenPunctuation, ")", "A list of arguments must be closed by a parenthesis",
	); err != nil {
		return nil, err
	}

	return args, nil
}

// isConstant reports whether expr is a literal, a signed numeric literal, or
// an array of constants.
func isConstant(expr Expr) bool {
	switch n := expr.(type) {
	case *Constant:
		return true
	case *Unary:
		c, ok := n.Operand.(*Constant)

		return ok && (n.Op == OpNeg || n.Op == OpPos) && isNumeric(c.Value)
	case *Array:
		for _, k := range n.Keys {
			if !isConstant(k) {
				return false
			}
		}

		for _, v := range n.Values {
			if !isConstant(v) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// ParseAssignmentExpression parses name = expr pairs separated by commas.
func (e *ExpressionParser) ParseAssignmentExpression() (
	[]*AssignName, []Expr, error,
) {
	var (
		names  []*AssignName
		values []Expr
	)

	for {
		name, err := e.parseAssignName()
		if err != nil {
			return nil, nil, err
		}

		if _, err := e.stream().Expect(TokenOperator, "=", ""); err != nil {
			return nil, nil, err
		}

		value, err := e.ParseExpression(0)
		if err != nil {
			return nil, nil, err
		}

		names = append(names, name)
		values = append(values, value)

		if _, ok := e.stream().NextIf(TokenPunctuation, ","); !ok {
			return names, values, nil
		}
	}
}

func (e *ExpressionParser) parseAssignName() (*AssignName, error) {
	tok, err := e.stream().Expect(TokenName, "", "Only variables can be assigned to")
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(tok.Value) {
	case "true", "false", "none", "null":
		return nil, e.errorf(tok.Line, `You cannot assign a value to "%s"`, tok.Value)
	}

	return &AssignName{Name: tok.Value, pos: at(tok.Line)}, nil
}
