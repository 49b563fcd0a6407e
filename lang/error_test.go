package lang

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func TestError_Format(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		want    string
		message string
	}{
		{
			name:    "message only",
			err:     ErrLogic.Errorf("Bad call"),
			want:    "Bad call",
			message: "Bad call",
		},
		{
			name:    "attributed",
			err:     ErrSyntax.Errorf(`Unexpected "%s"`, "]").At("page", 3),
			want:    `Unexpected "]" in "page" at line 3`,
			message: `Unexpected "]"`,
		},
		{
			name:    "name without line",
			err:     ErrLoader.Errorf("Missing").At("page", 0),
			want:    `Missing in "page"`,
			message: "Missing",
		},
		{
			name:    "wrapped",
			err:     ErrRuntime.Wrap(io.EOF).At("page", 2),
			want:    `runtime error in "page" at line 2: EOF`,
			message: "runtime error",
		},
		{
			name:    "cause",
			err:     ErrRuntime.Cause(io.EOF).At("page", 2),
			want:    `EOF in "page" at line 2`,
			message: "EOF",
		},
		{
			name:    "sentinel",
			err:     ErrUndefined,
			want:    "undefined variable or attribute",
			message: "undefined variable or attribute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}

			if got := tt.err.Message(); got != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, got)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		is    []error
		isNot []error
		class Class
	}{
		{
			name:  "syntax",
			err:   ErrSyntax.Errorf("x").At("t", 1),
			is:    []error{ErrSyntax},
			isNot: []error{ErrRuntime, ErrLogic, ErrLoader},
			class: ClassSyntax,
		},
		{
			name:  "derived",
			err:   ErrTemplateNotFound.Errorf(`Template "x" is not defined`),
			is:    []error{ErrTemplateNotFound, ErrLoader},
			isNot: []error{ErrSyntax},
			class: ClassLoader,
		},
		{
			name:  "derived twice",
			err:   ErrUndefined.Errorf("x").At("t", 1).With(slog.String("k", "v")),
			is:    []error{ErrUndefined, ErrRuntime},
			isNot: []error{ErrInheritanceCycle},
			class: ClassRuntime,
		},
		{
			name:  "wrapped cause",
			err:   fmt.Errorf("render: %w", ErrRuntime.Wrap(io.EOF)),
			is:    []error{ErrRuntime, io.EOF},
			isNot: []error{ErrSealed},
			class: ClassRuntime,
		},
		{
			name:  "sealed",
			err:   ErrSealed.Errorf("x"),
			is:    []error{ErrSealed, ErrLogic},
			isNot: []error{ErrRuntime},
			class: ClassLogic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, target := range tt.is {
				if !errors.Is(tt.err, target) {
					t.Errorf("expected %v to match %v", tt.err, target)
				}
			}

			for _, target := range tt.isNot {
				if errors.Is(tt.err, target) {
					t.Errorf("expected %v not to match %v", tt.err, target)
				}
			}

			var e *Error
			if !errors.As(tt.err, &e) {
				t.Fatalf("expected %v to be an *Error", tt.err)
			}

			if e.Class() != tt.class {
				t.Errorf("expected class %v, got %v", tt.class, e.Class())
			}
		})
	}
}

func TestError_Wrap(t *testing.T) {
	if WrapError(nil) != nil {
		t.Error("expected nil to stay nil")
	}

	inner := ErrSealed.Errorf("inner")
	if got := WrapError(fmt.Errorf("outer: %w", inner)); got != inner {
		t.Errorf("expected the wrapped *Error to be returned, got %v", got)
	}

	plain := WrapError(errors.New("plain"))
	if !errors.Is(plain, ErrRuntime) || plain.Error() != "plain" {
		t.Errorf("expected a runtime error with the original message, got %v", plain)
	}
}

func TestError_Attribute(t *testing.T) {
	err := ErrSyntax.Errorf("m").attribute("page", 4)
	if err.Name() != "page" || err.Line() != 4 {
		t.Errorf("expected page:4, got %s:%d", err.Name(), err.Line())
	}

	kept := ErrSyntax.Errorf("m").At("inner", 2).attribute("page", 4)
	if kept.Name() != "inner" || kept.Line() != 2 {
		t.Errorf("expected existing attribution to be kept, got %s:%d", kept.Name(), kept.Line())
	}

	partial := ErrSyntax.Errorf("m").At("inner", 0).attribute("page", 4)
	if partial.Name() != "inner" || partial.Line() != 4 {
		t.Errorf("expected only the line to be filled in, got %s:%d", partial.Name(), partial.Line())
	}

	if ErrSyntax.Name() != "" || ErrSyntax.Line() != 0 {
		t.Error("expected the sentinel to stay unattributed")
	}
}

func TestError_LogValue(t *testing.T) {
	err := ErrRuntime.Wrap(io.EOF).At("page", 2).With(slog.String("k", "v"))

	var keys []string
	for _, a := range err.LogValue().Group() {
		keys = append(keys, a.Key)
	}

	want := []string{"class", "error", "template", "line", "cause", "k"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("expected keys %v, got %v", want, keys)
	}
}

func TestError_Snippet(t *testing.T) {
	source := "a\nb\n  c d\ne\nf"

	want := "  1 | a\n" +
		"  2 | b\n" +
		"  3 |   c d\n" +
		"        ^^^\n" +
		"  4 | e\n"

	if got := ErrSyntax.Errorf("m").At("t", 3).Snippet(source); got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}

	for _, line := range []int{0, 6} {
		if got := ErrSyntax.Errorf("m").At("t", line).Snippet(source); got != "" {
			t.Errorf("expected no snippet for line %d, got %q", line, got)
		}
	}
}

func TestAlternatives(t *testing.T) {
	candidates := []string{"upper", "lower", "escape", "url_encode", "slow", "up"}

	tests := []struct {
		name string
		want []string
	}{
		{"uper", []string{"upper"}},
		{"low", []string{"slow", "lower"}},
		{"upper", nil},
		{"zzzz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := alternatives(tt.name, candidates)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if got := didYouMean("Unknown", nil); got != "Unknown" {
		t.Errorf("expected message unchanged, got %q", got)
	}

	if got := didYouMean("Unknown", []string{"a", "b"}); got != `Unknown. Did you mean "a", "b"` {
		t.Errorf("unexpected suggestion %q", got)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "", 3},
		{"same", "same", 0},
		{"flaw", "lawn", 2},
	}

	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q): expected %d, got %d", tt.a, tt.b, tt.want, got)
		}
	}
}
