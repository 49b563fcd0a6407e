package lang

// ifTag parses @if(cond) ... @elseif(cond) ... @else ... @endif.
type ifTag struct{}

func (ifTag) Tag() string { return "if" }

func (ifTag) Continuations() []string { return []string{"elseif", "else", "endif"} }

func (ifTag) Parse(p *Parser, tok Token) (Node, error) {
	s := p.Stream()

	p.Enter("if", tok.Line, "else", "elseif", "endif")
	defer p.Leave()

	cond, err := p.Expression().ParseExpression(0)
	if err != nil {
		return nil, err
	}

	if _, err := s.Expect(TokenBlockEnd, "", ""); err != nil {
		return nil, err
	}

	body, err := p.subparse(endTags("elseif", "else", "endif"), false)
	if err != nil {
		return nil, err
	}

	node := &If{Tests: []IfTest{{Cond: cond, Body: body}}, pos: tagged(tok.Line, "if")}

	for end := false; !end; {
		next, err := s.Next()
		if err != nil {
			return nil, err
		}

		switch next.Value {
		case "else":
			if _, err := s.Expect(TokenBlockEnd, "", ""); err != nil {
				return nil, err
			}

			if node.Else, err = p.subparse(endTags("endif"), true); err != nil {
				return nil, err
			}

			end = true
		case "elseif":
			cond, err := p.Expression().ParseExpression(0)
			if err != nil {
				return nil, err
			}

			if _, err := s.Expect(TokenBlockEnd, "", ""); err != nil {
				return nil, err
			}

			body, err := p.subparse(endTags("elseif", "else", "endif"), false)
			if err != nil {
				return nil, err
			}

			node.Tests = append(node.Tests, IfTest{Cond: cond, Body: body})
		case "endif":
			end = true
		default:
			return nil, p.Errorf(next.Line,
				`Unexpected end of template. Expected were the following tags %s to close the "if" block started at line %d`,
				quoteList([]string{"else", "elseif", "endif"}), tok.Line)
		}
	}

	if _, err := s.Expect(TokenBlockEnd, "", ""); err != nil {
		return nil, err
	}

	return node, nil
}

// foreachTag parses @foreach(seq as [key =>] value) ... @endforeach.
type foreachTag struct{}

func (foreachTag) Tag() string { return "foreach" }

func (foreachTag) Continuations() []string { return []string{"endforeach"} }

func (foreachTag) Parse(p *Parser, tok Token) (Node, error) {
	s := p.Stream()

	p.Enter("foreach", tok.Line, "endforeach")
	defer p.Leave()

	seq, err := p.Expression().ParseExpression(0)
	if err != nil {
		return nil, err
	}

	if _, err := s.Expect(TokenName, "as", ""); err != nil {
		return nil, err
	}

	value, err := p.Expression().parseAssignName()
	if err != nil {
		return nil, err
	}

	key := &AssignName{Name: "_key", pos: at(tok.Line)}

	if _, ok := s.NextIf(TokenOperator, "=>"); ok {
		key = value
		if value, err = p.Expression().parseAssignName(); err != nil {
			return nil, err
		}
	}

	if _, err := s.Expect(TokenBlockEnd, "", ""); err != nil {
		return nil, err
	}

	body, err := p.subparse(endTags("endforeach"), true)
	if err != nil {
		return nil, err
	}

	if _, err := s.Expect(TokenBlockEnd, "", ""); err != nil {
		return nil, err
	}

	return &Foreach{
		Key:   key,
		Value: value,
		Seq:   seq,
		Body:  body,
		pos:   tagged(tok.Line, "foreach"),
	}, nil
}

// whileTag parses @while(cond) ... @endwhile.
type whileTag struct{}

func (whileTag) Tag() string { return "while" }

func (whileTag) Continuations() []string { return []string{"endwhile"} }

func (whileTag) Parse(p *Parser, tok Token) (Node, error) {
	s := p.Stream()

	p.Enter("while", tok.Line, "endwhile")
	defer p.Leave()

	cond, err := p.Expression().ParseExpression(0)
	if err != nil {
		return nil, err
	}

	if _, err := s.Expect(TokenBlockEnd, "", ""); err != nil {
		return nil, err
	}

	body, err := p.subparse(endTags("endwhile"), true)
	if err != nil {
		return nil, err
	}

	if _, err := s.Expect(TokenBlockEnd, "", ""); err != nil {
		return nil, err
	}

	return &While{Cond: cond, Body: body, pos: tagged(tok.Line, "while")}, nil
}

// setTag parses @set(name = expr, ...).
type setTag struct{}

func (setTag) Tag() string { return "set" }

func (setTag) Continuations() []string { return nil }

func (setTag) Parse(p *Parser, tok Token) (Node, error) {
	names, values, err := p.Expression().ParseAssignmentExpression()
	if err != nil {
		return nil, err
	}

	if _, err := p.Stream().Expect(TokenBlockEnd, "", ""); err != nil {
		return nil, err
	}

	return &Set{Names: names, Values: values, pos: tagged(tok.Line, "set")}, nil
}

// blockTag parses @block("name") ... @endblock and @block("name", expr).
type blockTag struct{}

func (blockTag) Tag() string { return "block" }

func (blockTag) Continuations() []string { return []string{"endblock"} }

func (blockTag) Parse(p *Parser, tok Token) (Node, error) {
	s := p.Stream()

	nameTok := s.Current()
	if nameTok.Kind != TokenString && nameTok.Kind != TokenName {
		_, err := s.Expect(TokenString, "", "A block must have a name")

		return nil, err
	}

	if _, err := s.Next(); err != nil {
		return nil, err
	}

	name := nameTok.Value

	if b, ok := p.Block(name); ok {
		return nil, p.Errorf(s.Current().Line,
			`The block "%s" has already been defined line %d`, name, b.Line())
	}

	block := &Block{Name: name, Body: &Body{pos: at(tok.Line)}, pos: tagged(tok.Line, "block")}
	p.SetBlock(block)
	p.PushBlock(name)
	defer p.PopBlock()

	if _, ok := s.NextIf(TokenBlockEnd); ok {
		p.Enter("block", tok.Line, "endblock")
		defer p.Leave()

		body, err := p.subparse(endTags("endblock"), true)
		if err != nil {
			return nil, err
		}

		if end, ok := s.NextIf(TokenString); ok && end.Value != name {
			return nil, p.Errorf(end.Line,
				`Expected endblock for block "%s" (but "%s" given)`, name, end.Value)
		} else if end, ok := s.NextIf(TokenName); ok && end.Value != name {
			return nil, p.Errorf(end.Line,
				`Expected endblock for block "%s" (but "%s" given)`, name, end.Value)
		}

		block.Body = body
	} else {
		s.NextIf(TokenPunctuation, ",")

		expr, err := p.Expression().ParseExpression(0)
		if err != nil {
			return nil, err
		}

		block.Body = &Print{Expr: expr, pos: at(tok.Line)}
	}

	if _, err := s.Expect(TokenBlockEnd, "", ""); err != nil {
		return nil, err
	}

	return &BlockReference{Name: name, pos: tagged(tok.Line, "block")}, nil
}

// extendsTag parses @extends(expr).
type extendsTag struct{}

func (extendsTag) Tag() string { return "extends" }

func (extendsTag) Continuations() []string { return nil }

func (extendsTag) Parse(p *Parser, tok Token) (Node, error) {
	if !p.IsMainScope() {
		return nil, p.Errorf(tok.Line, "Cannot extend from a block")
	}

	if p.Parent() != nil {
		return nil, p.Errorf(tok.Line, "Multiple extends tags are forbidden")
	}

	parent, err := p.Expression().ParseExpression(0)
	if err != nil {
		return nil, err
	}

	if _, err := p.Stream().Expect(TokenBlockEnd, "", ""); err != nil {
		return nil, err
	}

	p.SetParent(parent)

	return nil, nil
}
