package lang

import (
	"errors"
	"maps"
)

// exec runs code in frame f. Errors are attributed to the template and
// line of the failing instruction unless already attributed.
func (t *Template) exec(s *State, code []instr, f *frame) error {
	prev := s.frame
	s.frame = f

	defer func() { s.frame = prev }()

	for i := range code {
		if err := t.step(s, &code[i], f); err != nil {
			return t.fail(err, code[i].gen)
		}
	}

	return nil
}

func (t *Template) fail(err error, gen int) error {
	return WrapError(err).attribute(t.Name(), t.unit.TemplateLine(gen))
}

func (t *Template) step(s *State, in *instr, f *frame) error {
	switch in.op {
	case opText:
		s.write(in.text)

	case opPrint:
		v, err := t.eval(s, in.expr, f)
		if err != nil {
			return err
		}

		s.write(escape(v))

	case opSet:
		for i, name := range in.names {
			v, err := t.eval(s, in.exprs[i], f)
			if err != nil {
				return err
			}

			f.vars[name] = v
		}

	case opIf:
		for i, cond := range in.exprs {
			v, err := t.eval(s, cond, f)
			if err != nil {
				return t.fail(err, in.gens[i])
			}

			if toBool(v) {
				return t.exec(s, in.bodies[i], f)
			}
		}

		if len(in.bodies) > len(in.exprs) {
			return t.exec(s, in.bodies[len(in.bodies)-1], f)
		}

	case opForeach:
		return t.foreach(s, in, f)

	case opWhile:
		for {
			v, err := t.eval(s, in.expr, f)
			if err != nil {
				return err
			}

			if !toBool(v) {
				return nil
			}

			if err := t.exec(s, in.bodies[0], f); err != nil {
				return err
			}
		}

	case opDisplayBlock:
		return t.displayBlock(s, in.text, f.vars, f.blocks, true)

	case opDisplayParentBlock:
		return t.displayParentBlock(s, in.text, f.vars, f.blocks)

	default:
		return ErrLogic.Errorf("Unknown instruction %d", in.op)
	}

	return nil
}

// foreach runs the loop body for each element of the sequence with the key,
// value, and loop variables set. Afterwards the loop variables are restored
// and variables first assigned inside the loop are dropped.
func (t *Template) foreach(s *State, in *instr, f *frame) error {
	seq, err := t.eval(s, in.expr, f)
	if err != nil {
		return err
	}

	type pair struct{ k, v any }

	var items []pair
	for k, v := range iterate(seq) {
		items = append(items, pair{k, v})
	}

	before := maps.Clone(f.vars)
	key, value := in.names[0], in.names[1]

	loop := NewHash()
	n := len(items)
	loop.Set("length", n)

	if parent, ok := f.vars["loop"]; ok {
		loop.Set("parent", parent)
	}

	for i, item := range items {
		f.vars[key] = item.k
		f.vars[value] = item.v

		loop.Set("index", i+1)
		loop.Set("index0", i)
		loop.Set("revindex", n-i)
		loop.Set("revindex0", n-i-1)
		loop.Set("first", i == 0)
		loop.Set("last", i == n-1)
		f.vars["loop"] = loop

		if err := t.exec(s, in.bodies[0], f); err != nil {
			return err
		}
	}

	for name := range f.vars {
		if _, ok := before[name]; !ok {
			delete(f.vars, name)
		}
	}

	for _, name := range []string{key, value, "loop"} {
		if v, ok := before[name]; ok {
			f.vars[name] = v
		}
	}

	return nil
}

func (t *Template) eval(s *State, e *expr, f *frame) (any, error) {
	switch e.kind {
	case exConst:
		return e.value, nil

	case exName:
		return t.lookup(e.name, f)

	case exList:
		list := make([]any, len(e.args))

		for i, arg := range e.args {
			v, err := t.eval(s, arg, f)
			if err != nil {
				return nil, err
			}

			list[i] = v
		}

		return list, nil

	case exHash:
		h := NewHash()

		for i, arg := range e.args {
			v, err := t.eval(s, arg, f)
			if err != nil {
				return nil, err
			}

			h.Set(e.keys[i], v)
		}

		return h, nil

	case exCond:
		cond, err := t.eval(s, e.args[0], f)
		if err != nil {
			return nil, err
		}

		if toBool(cond) {
			return t.eval(s, e.args[1], f)
		}

		return t.eval(s, e.args[2], f)

	case exUnary:
		v, err := t.eval(s, e.args[0], f)
		if err != nil {
			return nil, err
		}

		return unary(e.op, v)

	case exBinary:
		return t.binary(s, e, f)

	case exAttr:
		args, err := t.evalAll(s, e.args, f)
		if err != nil {
			return nil, err
		}

		return t.env.attrs.resolve(args[0], args[1], args[2:], e.call)

	case exFunction:
		args, err := t.evalAll(s, e.args, f)
		if err != nil {
			return nil, err
		}

		return e.function.Fn(s, args)

	case exFilter:
		target, err := t.eval(s, e.args[0], f)
		if err != nil {
			// default supplies the value of undefined variables in strict mode
			if e.name != "default" || !errors.Is(err, ErrUndefined) {
				return nil, err
			}
		}

		args, err := t.evalAll(s, e.args[1:], f)
		if err != nil {
			return nil, err
		}

		return e.filter.Fn(s, target, args)

	case exParent:
		out, err := s.capture(func() error {
			return t.displayParentBlock(s, e.name, f.vars, f.blocks)
		})
		if err != nil {
			return nil, err
		}

		return Safe(out), nil
	}

	return nil, ErrLogic.Errorf("Unknown expression kind %d", e.kind)
}

func (t *Template) evalAll(s *State, exprs []*expr, f *frame) ([]any, error) {
	values := make([]any, len(exprs))

	for i, e := range exprs {
		v, err := t.eval(s, e, f)
		if err != nil {
			return nil, err
		}

		values[i] = v
	}

	return values, nil
}

func (t *Template) lookup(name string, f *frame) (any, error) {
	switch name {
	case "_self":
		return t, nil
	case "_context":
		return maps.Clone(f.vars), nil
	case "_charset":
		return t.env.charset, nil
	}

	if v, ok := f.vars[name]; ok {
		return v, nil
	}

	if t.env.attrs.strict {
		return nil, ErrUndefined.Errorf(`Variable "%s" does not exist`, name)
	}

	return nil, nil
}

func unary(op Op, v any) (any, error) {
	switch op {
	case OpNot:
		return !toBool(v), nil
	case OpNeg:
		return arithmetic(OpSub, 0, v)
	case OpPos:
		return arithmetic(OpAdd, 0, v)
	}

	return nil, ErrLogic.Errorf(`Unknown unary operator "%s"`, op)
}

func (t *Template) binary(s *State, e *expr, f *frame) (any, error) {
	left, err := t.eval(s, e.args[0], f)
	if err != nil {
		return nil, err
	}

	switch e.op {
	case OpAnd:
		if !toBool(left) {
			return false, nil
		}
	case OpOr:
		if toBool(left) {
			return true, nil
		}
	}

	right, err := t.eval(s, e.args[1], f)
	if err != nil {
		return nil, err
	}

	switch e.op {
	case OpAnd, OpOr:
		return toBool(right), nil
	case OpEqual:
		return looseEqual(left, right), nil
	case OpNotEqual:
		return !looseEqual(left, right), nil
	case OpIdentical:
		return identical(left, right), nil
	case OpNotIdentical:
		return !identical(left, right), nil
	case OpLess:
		return compare(left, right) < 0, nil
	case OpGreater:
		return compare(left, right) > 0, nil
	case OpLessEqual:
		return compare(left, right) <= 0, nil
	case OpGreaterEqual:
		return compare(left, right) >= 0, nil
	case OpIn:
		return contains(left, right), nil
	case OpNotIn:
		return !contains(left, right), nil
	case OpRange:
		return makeRange(left, right, nil)
	case OpConcat:
		return toString(left) + toString(right), nil
	default:
		return arithmetic(e.op, left, right)
	}
}
