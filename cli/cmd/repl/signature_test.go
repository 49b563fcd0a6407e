package repl

import (
	"slices"
	"strings"
	"testing"

	"github.com/ardnew/razr/lang"
)

func TestDetectFunctionCall(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		cursor    int
		wantName  string
		wantIndex int
		wantKind  callKind
	}{
		{"no call", "greeting", 8, "", 0, callNone},
		{"first arg", "range(", 6, "range", 0, callFunction},
		{"first arg value", "range(1", 7, "range", 0, callFunction},
		{"second arg", "range(1,", 8, "range", 1, callFunction},
		{"third arg", "range(1, 9, ", 12, "range", 2, callFunction},
		{"short form call", "@range(1, ", 10, "range", 1, callFunction},
		{"inside print", "@(cycle(['a', 'b'], ", 20, "cycle", 1, callFunction},
		{"nested inner", "max(min(1, 2", 12, "min", 1, callFunction},
		{"nested closed", "max(min(1, 2), ", 15, "max", 1, callFunction},
		{"array arg commas", "include('x', [1, 2, ", 20, "include", 1, callFunction},
		{"hash arg commas", `include('x', ["a" => 1, `, 24, "include", 1, callFunction},
		{"filter", "items|join(", 11, "join", 0, callFilter},
		{"filter spaced", "items | slice(1, ", 17, "slice", 1, callFilter},
		{"method", "user.greet(", 11, "", 0, callNone},
		{"grouping", "(1 + ", 5, "", 0, callNone},
		{"print", "@(name", 6, "", 0, callNone},
		{"closed call", "range(1, 3) ~ ", 14, "", 0, callNone},
		{"cursor in middle", "range(1, 3)", 7, "range", 0, callFunction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectFunctionCall(tt.input, tt.cursor)

			if got.kind != tt.wantKind {
				t.Fatalf("expected kind %d, got %d", tt.wantKind, got.kind)
			}

			if got.name != tt.wantName {
				t.Errorf("expected name %q, got %q", tt.wantName, got.name)
			}

			if got.argIndex != tt.wantIndex {
				t.Errorf("expected arg index %d, got %d", tt.wantIndex, got.argIndex)
			}
		})
	}
}

func TestSignature(t *testing.T) {
	env := lang.New()

	tests := []struct {
		name       string
		call       functionCall
		wantName   string
		wantParams []string
		wantOK     bool
	}{
		{
			name:       "function",
			call:       functionCall{name: "range", kind: callFunction},
			wantName:   "range",
			wantParams: []string{"low", "high", "step"},
			wantOK:     true,
		},
		{
			name:       "filter",
			call:       functionCall{name: "join", kind: callFilter},
			wantName:   "|join",
			wantParams: []string{"glue"},
			wantOK:     true,
		},
		{
			name: "filter as function",
			call: functionCall{name: "join", kind: callFunction},
		},
		{
			name: "unknown",
			call: functionCall{name: "nope", kind: callFunction},
		},
		{
			name: "none",
			call: functionCall{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, params, ok := signature(env, tt.call)

			if ok != tt.wantOK {
				t.Fatalf("expected ok %v, got %v", tt.wantOK, ok)
			}

			if name != tt.wantName {
				t.Errorf("expected name %q, got %q", tt.wantName, name)
			}

			if !slices.Equal(params, tt.wantParams) {
				t.Errorf("expected params %v, got %v", tt.wantParams, params)
			}
		})
	}
}

func TestRenderSignatureHint(t *testing.T) {
	tests := []struct {
		name   string
		params []string
		want   []string
	}{
		{"params", []string{"low", "high", "step"}, []string{"range", "low", "high", "step"}},
		{"variadic", nil, []string{"max", "..."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := tt.want[0]
			got := renderSignatureHint(fn, tt.params, 1)

			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("expected %q in %q", want, got)
				}
			}
		})
	}
}
