package lang

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ardnew/razr/log"
)

// Environment holds the configuration, registries, and compiled-unit cache
// shared by all templates it loads.
//
// Extensions, filters, functions, tags, operators, and globals may be added
// until the first template is tokenized, parsed, compiled, or loaded. The
// registries are then sealed and further registration fails with
// [ErrSealed]. An Environment is safe for concurrent use once sealed.
type Environment struct {
	loader     Loader
	logger     log.Logger
	charset    string
	autoReload bool

	mu         sync.Mutex
	once       sync.Once
	sealed     atomic.Bool
	extensions []Extension
	extra      *localExtension
	globals    map[string]any

	tags      map[string]TagParser
	filters   map[string]*Filter
	functions map[string]*Function
	ops       *operatorTable
	lexer     *Lexer

	attrs *attributes
	cache unitCache
}

// New returns an Environment with the core extension and the given options
// applied.
func New(opts ...Option) *Environment {
	e := &Environment{
		charset:    DefaultCharset,
		extensions: []Extension{coreExtension{}},
		extra:      &localExtension{},
		globals:    make(map[string]any),
		attrs:      &attributes{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	if e.loader == nil {
		e.loader = NewMapLoader(nil)
	}

	return e
}

// localExtension collects filters, functions, tags, and operators added
// directly to an environment.
type localExtension struct {
	BaseExtension

	tags      []TagParser
	filters   []Filter
	functions []Function
	unary     []UnaryOperator
	binary    []BinaryOperator
}

func (*localExtension) Name() string                        { return "local" }
func (x *localExtension) Tags() []TagParser                 { return x.tags }
func (x *localExtension) Filters() []Filter                 { return x.filters }
func (x *localExtension) Functions() []Function             { return x.functions }
func (x *localExtension) UnaryOperators() []UnaryOperator   { return x.unary }
func (x *localExtension) BinaryOperators() []BinaryOperator { return x.binary }

// register runs fn under the registration lock unless the environment is
// sealed.
func (e *Environment) register(kind, name string, fn func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sealed.Load() {
		return ErrSealed.Errorf(
			`Unable to add %s "%s" as extensions have already been initialized`,
			kind, name).With(slog.String(kind, name))
	}

	fn()

	return nil
}

// AddExtension registers an extension.
func (e *Environment) AddExtension(ext Extension) error {
	return e.register("extension", ext.Name(), func() {
		e.extensions = append(e.extensions, ext)
	})
}

// AddFilter registers a filter.
func (e *Environment) AddFilter(f Filter) error {
	return e.register("filter", f.Name, func() {
		e.extra.filters = append(e.extra.filters, f)
	})
}

// AddFunction registers a function.
func (e *Environment) AddFunction(f Function) error {
	return e.register("function", f.Name, func() {
		e.extra.functions = append(e.extra.functions, f)
	})
}

// AddTag registers a tag parser.
func (e *Environment) AddTag(t TagParser) error {
	return e.register("tag", t.Tag(), func() {
		e.extra.tags = append(e.extra.tags, t)
	})
}

// AddUnaryOperator registers a prefix operator.
func (e *Environment) AddUnaryOperator(op UnaryOperator) error {
	return e.register("operator", op.Symbol, func() {
		e.extra.unary = append(e.extra.unary, op)
	})
}

// AddBinaryOperator registers an infix operator.
func (e *Environment) AddBinaryOperator(op BinaryOperator) error {
	return e.register("operator", op.Symbol, func() {
		e.extra.binary = append(e.extra.binary, op)
	})
}

// AddGlobal registers a variable visible to every template.
func (e *Environment) AddGlobal(name string, value any) error {
	return e.register("global", name, func() {
		e.globals[name] = value
	})
}

// init seals the registries, building them from the extensions in
// registration order. Later registrations of a name replace earlier ones.
func (e *Environment) init() {
	e.once.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		e.sealed.Store(true)

		e.tags = make(map[string]TagParser)
		e.filters = make(map[string]*Filter)
		e.functions = make(map[string]*Function)

		var (
			unary  []UnaryOperator
			binary []BinaryOperator
		)

		globals := make(map[string]any)

		for _, ext := range append(slices.Clone(e.extensions), e.extra) {
			for _, t := range ext.Tags() {
				e.tags[t.Tag()] = t
			}

			for _, f := range ext.Filters() {
				e.filters[f.Name] = &f
			}

			for _, f := range ext.Functions() {
				e.functions[f.Name] = &f
			}

			unary = append(unary, ext.UnaryOperators()...)
			binary = append(binary, ext.BinaryOperators()...)

			maps.Copy(globals, ext.Globals())
		}

		maps.Copy(globals, e.globals)
		e.globals = globals

		e.ops = newOperatorTable(unary, binary)
		e.lexer = NewLexer(e.lexerTags(), e.ops.symbols(), e.logger)

		e.logger.Component("env").Trace("sealed environment",
			slog.Int("extensions", len(e.extensions)),
			slog.Int("tags", len(e.tags)),
			slog.Int("filters", len(e.filters)),
			slog.Int("functions", len(e.functions)))
	})
}

func (e *Environment) lexerTags() []string {
	var names []string

	for name, t := range e.tags {
		names = append(names, name)
		names = append(names, t.Continuations()...)
	}

	return names
}

func (e *Environment) tag(name string) (TagParser, bool) {
	e.init()

	t, ok := e.tags[name]

	return t, ok
}

func (e *Environment) filter(name string) (*Filter, bool) {
	e.init()

	f, ok := e.filters[name]

	return f, ok
}

func (e *Environment) function(name string) (*Function, bool) {
	e.init()

	f, ok := e.functions[name]

	return f, ok
}

func (e *Environment) tagNames() []string {
	e.init()

	return slices.Sorted(maps.Keys(e.tags))
}

func (e *Environment) filterNames() []string {
	e.init()

	return slices.Sorted(maps.Keys(e.filters))
}

func (e *Environment) functionNames() []string {
	e.init()

	return slices.Sorted(maps.Keys(e.functions))
}

// Filter returns the registered filter of the given name.
func (e *Environment) Filter(name string) (Filter, bool) {
	if f, ok := e.filter(name); ok {
		return *f, true
	}

	return Filter{}, false
}

// Function returns the registered function of the given name.
func (e *Environment) Function(name string) (Function, bool) {
	if f, ok := e.function(name); ok {
		return *f, true
	}

	return Function{}, false
}

// Filters returns the names of the registered filters.
func (e *Environment) Filters() []string { return e.filterNames() }

// Functions returns the names of the registered functions.
func (e *Environment) Functions() []string { return e.functionNames() }

// Tags returns the names of the registered tags.
func (e *Environment) Tags() []string { return e.tagNames() }

// Globals returns a copy of the global variables.
func (e *Environment) Globals() map[string]any {
	e.init()

	return maps.Clone(e.globals)
}

// Loader returns the template loader.
func (e *Environment) Loader() Loader { return e.loader }

// Charset returns the value of the _charset variable.
func (e *Environment) Charset() string { return e.charset }

// IsStrict reports whether undefined variables and attributes are errors.
func (e *Environment) IsStrict() bool { return e.attrs.strict }

// mergeGlobals returns vars with the globals it does not define added.
func (e *Environment) mergeGlobals(vars map[string]any) map[string]any {
	e.init()

	m := make(map[string]any, len(e.globals)+len(vars))
	maps.Copy(m, e.globals)
	maps.Copy(m, vars)

	return m
}

// Tokenize converts source into a token stream.
func (e *Environment) Tokenize(ctx context.Context, source, name string) (*TokenStream, error) {
	e.init()

	return e.lexer.Tokenize(ctx, source, name)
}

// Parse builds the syntax tree of a token stream.
func (e *Environment) Parse(ctx context.Context, stream *TokenStream) (*Module, error) {
	e.init()

	return newParser(e, stream).parse(ctx)
}

// Compile compiles a syntax tree into an executable unit.
func (e *Environment) Compile(ctx context.Context, m *Module) (*Unit, error) {
	e.init()

	return newCompiler(e).Compile(ctx, m)
}

// CompileSource tokenizes, parses, and compiles source.
func (e *Environment) CompileSource(ctx context.Context, source, name string) (*Unit, error) {
	return e.compileSource(ctx, source, name, 0)
}

func (e *Environment) compileSource(
	ctx context.Context,
	source, name string,
	index int,
) (*Unit, error) {
	stream, err := e.Tokenize(ctx, source, name)
	if err != nil {
		return nil, err
	}

	m, err := e.Parse(ctx, stream)
	if err != nil {
		return nil, err
	}

	m.Index = index

	return e.Compile(ctx, m)
}

// FromString compiles source into a template that is not cached.
func (e *Environment) FromString(ctx context.Context, source, name string) (*Template, error) {
	u, err := e.CompileSource(ctx, source, name)
	if err != nil {
		return nil, err
	}

	return &Template{env: e, unit: u}, nil
}

// Render loads the named template and renders it with data.
func (e *Environment) Render(
	ctx context.Context,
	name string,
	data map[string]any,
) (string, error) {
	t, err := e.LoadTemplate(ctx, name, 0)
	if err != nil {
		return "", err
	}

	return t.Render(ctx, data)
}

// Display loads the named template and renders it to w. Nothing is written
// when rendering fails.
func (e *Environment) Display(
	ctx context.Context,
	w io.Writer,
	name string,
	data map[string]any,
) error {
	t, err := e.LoadTemplate(ctx, name, 0)
	if err != nil {
		return err
	}

	return t.Display(ctx, w, data)
}
