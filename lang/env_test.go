package lang

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type greetExtension struct{ BaseExtension }

func (greetExtension) Name() string { return "greet" }

func (greetExtension) Filters() []Filter {
	return []Filter{{
		Name:   "greet",
		Params: []string{"punct"},
		Fn: func(_ *State, v any, args []any) (any, error) {
			punct := "!"
			if p := arg(args, 0); p != nil {
				punct = toString(p)
			}

			return "Hello, " + toString(v) + punct, nil
		},
	}}
}

func (greetExtension) Globals() map[string]any {
	return map[string]any{"who": "ext", "site": "ext"}
}

// skipTag parses @skip(expr) and outputs nothing.
type skipTag struct{}

func (skipTag) Tag() string { return "skip" }

func (skipTag) Continuations() []string { return nil }

func (skipTag) Parse(p *Parser, _ Token) (Node, error) {
	if _, err := p.Expression().ParseExpression(0); err != nil {
		return nil, err
	}

	_, err := p.Stream().Expect(TokenBlockEnd, "", "")

	return nil, err
}

func TestEnvironment_Extensions(t *testing.T) {
	env := New(
		WithLoader(NewMapLoader(map[string]string{
			"page": `@(who|greet)@(who|greet(punct = "?"))@skip(1)@(1 plus 2)@(shout("x"))@(site)`,
		})),
		WithExtensions(greetExtension{}),
		WithGlobals(map[string]any{"site": "env"}),
	)

	if err := env.AddBinaryOperator(BinaryOperator{
		Symbol: "plus", Precedence: 30, Assoc: AssocLeft, Op: OpAdd,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := env.AddTag(skipTag{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := env.AddFunction(Function{
		Name: "shout",
		Fn: func(_ *State, args []any) (any, error) {
			return strings.ToUpper(toString(arg(args, 0))) + "!", nil
		},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := env.Render(t.Context(), "page", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := "Hello, ext!Hello, ext?3X!env"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestEnvironment_Sealed(t *testing.T) {
	env := New()

	if err := env.AddGlobal("a", 1); err != nil {
		t.Fatalf("unexpected error before sealing: %v", err)
	}

	if _, err := env.FromString(t.Context(), "x", "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		add  func() error
		want string
	}{
		{
			name: "filter",
			add:  func() error { return env.AddFilter(Filter{Name: "f"}) },
			want: `Unable to add filter "f" as extensions have already been initialized`,
		},
		{
			name: "function",
			add:  func() error { return env.AddFunction(Function{Name: "g"}) },
			want: `Unable to add function "g" as extensions have already been initialized`,
		},
		{
			name: "extension",
			add:  func() error { return env.AddExtension(greetExtension{}) },
			want: `Unable to add extension "greet" as extensions have already been initialized`,
		},
		{
			name: "global",
			add:  func() error { return env.AddGlobal("b", 2) },
			want: `Unable to add global "b" as extensions have already been initialized`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.add()
			if !errors.Is(err, ErrSealed) {
				t.Fatalf("expected sealed error, got %v", err)
			}

			if !errors.Is(err, ErrLogic) {
				t.Errorf("expected sealed errors to be logic errors, got %v", err)
			}

			if err.Error() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, err.Error())
			}
		})
	}

	if g := env.Globals(); g["a"] != 1 || len(g) != 1 {
		t.Errorf("expected globals {a: 1}, got %v", g)
	}
}

func TestEnvironment_Registries(t *testing.T) {
	env := New(WithCharset("ISO-8859-1"), WithStrict(true))

	for _, name := range []string{"escape", "upper", "default", "join", "json"} {
		if _, ok := env.filter(name); !ok {
			t.Errorf("expected filter %q to be registered", name)
		}
	}

	if got := strings.Join(env.Tags(), ","); got != "block,extends,foreach,if,set,while" {
		t.Errorf("expected sorted core tags, got %q", got)
	}

	if len(env.Functions()) != 7 {
		t.Errorf("expected 7 core functions, got %v", env.Functions())
	}

	if env.Charset() != "ISO-8859-1" || !env.IsStrict() {
		t.Errorf("expected options to apply, got charset %q strict %v",
			env.Charset(), env.IsStrict())
	}
}

func TestEnvironment_Cache(t *testing.T) {
	loader := NewMapLoader(map[string]string{"page": "v1"})
	env := New(WithLoader(loader))

	first, err := env.LoadTemplate(t.Context(), "page", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := env.LoadTemplate(t.Context(), "page", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Unit() != second.Unit() {
		t.Error("expected the compiled unit to be cached")
	}

	if !env.IsTemplateFresh("page", time.Now()) {
		t.Error("expected cached template to be fresh")
	}

	if env.IsTemplateFresh("other", time.Now()) {
		t.Error("expected unknown template not to be fresh")
	}

	time.Sleep(time.Millisecond)
	loader.Set("page", "v2")

	if got, _ := env.Render(t.Context(), "page", nil); got != "v1" {
		t.Errorf("expected cached output %q without auto reload, got %q", "v1", got)
	}

	env.ClearCache()

	if got, _ := env.Render(t.Context(), "page", nil); got != "v2" {
		t.Errorf("expected %q after clearing the cache, got %q", "v2", got)
	}

	loader.Set("broken", "@if(")

	if _, err := env.LoadTemplate(t.Context(), "broken", 0); !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", err)
	}

	loader.Set("broken", "fixed")

	if got, err := env.Render(t.Context(), "broken", nil); err != nil || got != "fixed" {
		t.Errorf("expected failed compilations not to be cached, got %q (%v)", got, err)
	}
}

// flakyLoader panics on the first Source call for a template.
type flakyLoader struct {
	*MapLoader
	failed map[string]bool
}

func (l *flakyLoader) Source(name string) (string, error) {
	if !l.failed[name] {
		l.failed[name] = true
		panic("loader failure")
	}

	return l.MapLoader.Source(name)
}

func TestEnvironment_CacheFailedCompile(t *testing.T) {
	loader := &flakyLoader{
		MapLoader: NewMapLoader(map[string]string{"page": "ok"}),
		failed:    map[string]bool{"broken": true},
	}
	env := New(WithLoader(loader))

	if _, err := env.LoadTemplate(t.Context(), "page", 0); !errors.Is(err, ErrLogic) {
		t.Fatalf("expected logic error, got %v", err)
	}

	tmpl, err := env.LoadTemplate(t.Context(), "page", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tmpl.Unit() == nil {
		t.Fatal("expected compiled unit after retry")
	}

	if got, err := env.Render(t.Context(), "page", nil); err != nil || got != "ok" {
		t.Errorf("expected %q, got %q (%v)", "ok", got, err)
	}

	for _, src := range []string{"@if(", "@(", "text @("} {
		loader.Set("broken", src)

		if _, err := env.LoadTemplate(t.Context(), "broken", 0); !errors.Is(err, ErrSyntax) {
			t.Errorf("%q: expected syntax error, got %v", src, err)
		}
	}
}

func TestEnvironment_AutoReload(t *testing.T) {
	loader := NewMapLoader(map[string]string{"page": "v1"})
	env := New(WithLoader(loader), WithAutoReload(true))

	first, err := env.LoadTemplate(t.Context(), "page", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(time.Millisecond)
	loader.Set("page", "v1")

	same, err := env.LoadTemplate(t.Context(), "page", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if same.Unit() != first.Unit() {
		t.Error("expected unchanged source not to be recompiled")
	}

	time.Sleep(time.Millisecond)
	loader.Set("page", "v2")

	got, err := env.Render(t.Context(), "page", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "v2" {
		t.Errorf("expected reloaded output %q, got %q", "v2", got)
	}
}

func TestEnvironment_ResolveTemplate(t *testing.T) {
	env := New(WithLoader(NewMapLoader(map[string]string{"b": "B"})))

	tests := []struct {
		name  string
		names []any
		want  string
		err   string
	}{
		{name: "first found", names: []any{"a", "b"}, want: "b"},
		{name: "single missing", names: []any{"a"}, err: `Template "a" is not defined`},
		{
			name:  "all missing",
			names: []any{"a", "c"},
			err:   `Unable to find one of the following templates: "a", "c"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, err := env.ResolveTemplate(t.Context(), tt.names...)

			if tt.err != "" {
				if !errors.Is(err, ErrTemplateNotFound) {
					t.Fatalf("expected not found error, got %v", err)
				}

				if err.Error() != tt.err {
					t.Errorf("expected %q, got %q", tt.err, err.Error())
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tpl.Name() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, tpl.Name())
			}

			again, err := env.ResolveTemplate(t.Context(), tpl)
			if err != nil || again != tpl {
				t.Errorf("expected a template to resolve to itself, got %v (%v)", again, err)
			}
		})
	}
}
