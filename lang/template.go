package lang

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// maxDepth bounds nested block, include, and inheritance calls in a render.
const maxDepth = 256

// Template is a loaded, compiled template bound to its environment.
// A Template is immutable; the state of a render lives in a [State].
type Template struct {
	env  *Environment
	unit *Unit
}

// Name returns the template name.
func (t *Template) Name() string { return t.unit.name }

// String returns the template name.
func (t *Template) String() string { return t.unit.name }

// Unit returns the compiled unit executed by the template.
func (t *Template) Unit() *Unit { return t.unit }

// Environment returns the environment that loaded the template.
func (t *Template) Environment() *Environment { return t.env }

// Render executes the template with data and returns the output. No output
// is returned when rendering fails.
func (t *Template) Render(ctx context.Context, data map[string]any) (string, error) {
	s := newState(ctx, t.env)

	out, err := s.capture(func() error {
		return t.display(s, maps.Clone(data), nil)
	})

	logger := t.env.logger.Component("render")
	if err != nil {
		logger.DebugContext(ctx, "render failed",
			slog.String("name", t.Name()), slog.Any("error", err))

		return "", err
	}

	logger.TraceContext(ctx, "rendered template",
		slog.String("name", t.Name()), slog.Int("bytes", len(out)))

	return out, nil
}

// Display renders the template to w. Nothing is written when rendering
// fails.
func (t *Template) Display(ctx context.Context, w io.Writer, data map[string]any) error {
	out, err := t.Render(ctx, data)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, out)

	return err
}

// RenderBlock renders a single block of the template with data.
func (t *Template) RenderBlock(
	ctx context.Context,
	name string,
	data map[string]any,
) (string, error) {
	s := newState(ctx, t.env)

	return s.capture(func() error {
		vars := t.env.mergeGlobals(data)

		return t.displayBlock(s, name, vars, t.ownBlocks(), true)
	})
}

// parentStatus is a step of per-render parent resolution.
type parentStatus int

const (
	parentUnresolved parentStatus = iota
	parentResolving
	parentResolved
)

type parentState struct {
	tpl    *Template
	status parentStatus
}

// blockRef is a block procedure and the template defining it.
type blockRef struct {
	t    *Template
	code []instr
}

type blockMap map[string]blockRef

// merge returns the entries of a overridden by those of b.
func (a blockMap) merge(b blockMap) blockMap {
	m := make(blockMap, len(a)+len(b))
	maps.Copy(m, a)
	maps.Copy(m, b)

	return m
}

// frame is the executing template with its variables and overriding blocks.
type frame struct {
	t      *Template
	vars   map[string]any
	blocks blockMap
}

// State is the state of a single render: the output buffers, the resolved
// parents of the templates involved, and the frame being executed.
// Filters and functions receive it to reach the render.
type State struct {
	ctx     context.Context
	env     *Environment
	out     []*strings.Builder
	parents map[*Template]*parentState
	loaded  map[string]*Template
	chain   []string
	frame   *frame
	depth   int
}

func newState(ctx context.Context, env *Environment) *State {
	if ctx == nil {
		ctx = context.Background()
	}

	return &State{
		ctx:     ctx,
		env:     env,
		parents: make(map[*Template]*parentState),
		loaded:  make(map[string]*Template),
	}
}

// Context returns the context of the render.
func (s *State) Context() context.Context { return s.ctx }

// Environment returns the environment of the render.
func (s *State) Environment() *Environment { return s.env }

// Template returns the template being executed.
func (s *State) Template() *Template {
	if s.frame == nil {
		return nil
	}

	return s.frame.t
}

// Vars returns the variables of the executing template. The map is live;
// callers must not modify it.
func (s *State) Vars() map[string]any {
	if s.frame == nil {
		return nil
	}

	return s.frame.vars
}

func (s *State) write(str string) {
	if n := len(s.out); n > 0 {
		s.out[n-1].WriteString(str)
	}
}

// capture runs fn with a fresh output buffer and returns what it wrote.
func (s *State) capture(fn func() error) (string, error) {
	buf := &strings.Builder{}
	s.out = append(s.out, buf)

	err := fn()

	s.out = s.out[:len(s.out)-1]

	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *State) enter() error {
	if s.depth >= maxDepth {
		return ErrRuntime.Errorf("Maximum nesting level of %d reached", maxDepth)
	}

	s.depth++

	return nil
}

func (s *State) leave() { s.depth-- }

// load returns the named template, loading it at most once per render.
func (s *State) load(name string) (*Template, error) {
	if t, ok := s.loaded[name]; ok {
		return t, nil
	}

	t, err := s.env.LoadTemplate(s.ctx, name, 0)
	if err != nil {
		return nil, err
	}

	s.loaded[name] = t

	return t, nil
}

// resolve returns the first loadable template among candidates.
func (s *State) resolve(v any) (*Template, error) {
	switch x := v.(type) {
	case *Template:
		return x, nil
	case string:
		return s.load(x)
	case Safe:
		return s.load(string(x))
	}

	list, ok := asList(v)
	if !ok {
		return s.load(toString(v))
	}

	names := make([]string, 0, len(list))

	for _, c := range list {
		if t, ok := c.(*Template); ok {
			return t, nil
		}

		name := toString(c)

		t, err := s.load(name)
		if err == nil {
			return t, nil
		}

		if !isNotFound(err) || len(list) == 1 {
			return nil, err
		}

		names = append(names, name)
	}

	return nil, ErrTemplateNotFound.Errorf(
		"Unable to find one of the following templates: %s", quoteJoin(names))
}

// RenderBlock renders the named block of the executing template, honoring
// overriding blocks, and returns its output.
func (s *State) RenderBlock(name string) (Safe, error) {
	f := s.frame
	if f == nil {
		return "", ErrRuntime.Errorf(`Unable to render block "%s" outside a template`, name)
	}

	out, err := s.capture(func() error {
		return f.t.displayBlock(s, name, f.vars, f.blocks, true)
	})

	return Safe(out), err
}

// Include renders the template named by tpl (a name, a list of candidate
// names, or a *Template) with the executing variables merged with vars.
func (s *State) Include(tpl any, vars map[string]any, only bool) (Safe, error) {
	t, err := s.resolve(tpl)
	if err != nil {
		return "", err
	}

	data := make(map[string]any, len(vars))
	if !only && s.frame != nil {
		maps.Copy(data, s.frame.vars)
	}

	maps.Copy(data, vars)

	chain := s.chain
	s.chain = nil

	defer func() { s.chain = chain }()

	out, err := s.capture(func() error {
		return t.display(s, data, nil)
	})

	return Safe(out), err
}

func (t *Template) ownBlocks() blockMap {
	m := make(blockMap, len(t.unit.blocks))
	for name, code := range t.unit.blocks {
		m[name] = blockRef{t: t, code: code}
	}

	return m
}

// parent returns the template t extends, or nil. The parent is resolved at
// most once per render.
func (t *Template) parent(s *State, vars map[string]any) (*Template, error) {
	if t.unit.parent == nil {
		return nil, nil
	}

	ps, ok := s.parents[t]
	if !ok {
		ps = &parentState{}
		s.parents[t] = ps
	}

	switch ps.status {
	case parentResolved:
		return ps.tpl, nil
	case parentResolving:
		return nil, ErrInheritanceCycle.Errorf(
			`Unable to resolve the parent of template "%s" while it is being resolved`,
			t.Name())
	}

	ps.status = parentResolving

	line := t.unit.TemplateLine(t.unit.parentGen)

	v, err := t.eval(s, t.unit.parent, &frame{t: t, vars: vars})
	if err != nil {
		ps.status = parentUnresolved

		return nil, WrapError(err).attribute(t.Name(), line)
	}

	var tpl *Template

	if v != nil && v != false {
		if tpl, err = s.resolve(v); err != nil {
			ps.status = parentUnresolved

			return nil, WrapError(err).attribute(t.Name(), line)
		}
	}

	ps.tpl, ps.status = tpl, parentResolved

	return tpl, nil
}

// display runs the body of t, then the parent's display with the blocks of
// t overridden by blocks.
func (t *Template) display(s *State, vars map[string]any, blocks blockMap) error {
	if slices.Contains(s.chain, t.Name()) {
		return ErrInheritanceCycle.Errorf(
			`Circular reference detected for template "%s", path: %s -> %s`,
			t.Name(), strings.Join(s.chain, " -> "), t.Name())
	}

	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	s.chain = append(s.chain, t.Name())
	defer func() { s.chain = s.chain[:len(s.chain)-1] }()

	vars = t.env.mergeGlobals(vars)

	parent, err := t.parent(s, vars)
	if err != nil {
		return err
	}

	if err := t.exec(s, t.unit.body, &frame{t: t, vars: vars, blocks: blocks}); err != nil {
		return err
	}

	if parent != nil {
		return parent.display(s, vars, t.ownBlocks().merge(blocks))
	}

	return nil
}

// displayBlock runs the named block: the overriding block when useBlocks,
// else the block of t, else the parent's. A block defined nowhere outputs
// nothing.
func (t *Template) displayBlock(
	s *State,
	name string,
	vars map[string]any,
	blocks blockMap,
	useBlocks bool,
) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	if ref, ok := blocks[name]; ok && useBlocks {
		rest := maps.Clone(blocks)
		delete(rest, name)

		return ref.t.runBlock(s, ref.code, vars, rest)
	}

	if code, ok := t.unit.blocks[name]; ok {
		return t.runBlock(s, code, vars, blocks)
	}

	parent, err := t.parent(s, vars)
	if err != nil {
		return err
	}

	if parent != nil {
		return parent.displayBlock(s, name, vars, t.ownBlocks().merge(blocks), true)
	}

	return nil
}

// displayParentBlock runs the version of a block defined by the parent of t.
func (t *Template) displayParentBlock(
	s *State,
	name string,
	vars map[string]any,
	blocks blockMap,
) error {
	parent, err := t.parent(s, vars)
	if err != nil {
		return err
	}

	if parent == nil {
		return ErrRuntime.Errorf(
			`The template has no parent defining the "%s" block`, name)
	}

	return parent.displayBlock(s, name, vars, blocks, false)
}

func (t *Template) runBlock(
	s *State,
	code []instr,
	vars map[string]any,
	blocks blockMap,
) error {
	return t.exec(s, code, &frame{t: t, vars: maps.Clone(vars), blocks: blocks})
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

func quoteJoin(names []string) string {
	return `"` + strings.Join(names, `", "`) + `"`
}
