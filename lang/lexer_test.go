package lang

import (
	"errors"
	"strings"
	"testing"
)

func tokenize(t *testing.T, src string) *TokenStream {
	t.Helper()

	stream, err := New().Tokenize(t.Context(), src, "test")
	if err != nil {
		t.Fatalf("tokenize %q: %v", src, err)
	}

	return stream
}

func tokenStrings(stream *TokenStream) []string {
	var out []string
	for _, tok := range stream.Tokens() {
		out = append(out, tok.String())
	}

	return out
}

func TestLexer_Tokenize(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "text",
			src:  "Hello",
			want: []string{"TEXT(Hello)", "EOF()"},
		},
		{
			name: "escaped introducer",
			src:  "a@@b",
			want: []string{"TEXT(a)", "TEXT(@b)", "EOF()"},
		},
		{
			name: "lone introducer",
			src:  "a @ b",
			want: []string{"TEXT(a @ b)", "EOF()"},
		},
		{
			name: "print expression",
			src:  "Hello @(name)!",
			want: []string{
				"TEXT(Hello )", "VAR_START()", "NAME(name)", "VAR_END()",
				"TEXT(!)", "EOF()",
			},
		},
		{
			name: "short form",
			src:  "@user.name|upper",
			want: []string{
				"VAR_START()", "NAME(user)", "PUNCTUATION(.)", "NAME(name)",
				"PUNCTUATION(|)", "NAME(upper)", "VAR_END()", "EOF()",
			},
		},
		{
			name: "short form ends at text",
			src:  "@name, hi",
			want: []string{
				"VAR_START()", "NAME(name)", "VAR_END()", "TEXT(, hi)", "EOF()",
			},
		},
		{
			name: "block tag",
			src:  "@if(a > 1)x@endif",
			want: []string{
				"BLOCK_START()", "NAME(if)", "NAME(a)", "OPERATOR(>)", "NUMBER(1)",
				"BLOCK_END()", "TEXT(x)", "BLOCK_START()", "NAME(endif)",
				"BLOCK_END()", "EOF()",
			},
		},
		{
			name: "tag without paren consumes newline",
			src:  "@else\nx",
			want: []string{
				"BLOCK_START()", "NAME(else)", "BLOCK_END()", "TEXT(x)", "EOF()",
			},
		},
		{
			name: "tag end consumes newline",
			src:  "@set(a = 1)\nx",
			want: []string{
				"BLOCK_START()", "NAME(set)", "NAME(a)", "OPERATOR(=)", "NUMBER(1)",
				"BLOCK_END()", "TEXT(x)", "EOF()",
			},
		},
		{
			name: "strings",
			src:  `@("a\"b" ~ 'c')`,
			want: []string{
				"VAR_START()", `STRING(a"b)`, "OPERATOR(~)", "STRING(c)",
				"VAR_END()", "EOF()",
			},
		},
		{
			name: "multi-word operator",
			src:  "@(a not  in b)",
			want: []string{
				"VAR_START()", "NAME(a)", "OPERATOR(not in)", "NAME(b)",
				"VAR_END()", "EOF()",
			},
		},
		{
			name: "word operator prefix of name",
			src:  "@(index)",
			want: []string{"VAR_START()", "NAME(index)", "VAR_END()", "EOF()"},
		},
		{
			name: "numbers and range",
			src:  "@(1.5 .. 2)",
			want: []string{
				"VAR_START()", "NUMBER(1.5)", "OPERATOR(..)", "NUMBER(2)",
				"VAR_END()", "EOF()",
			},
		},
		{
			name: "nested brackets in tag",
			src:  "@foreach(f(a) as v)",
			want: []string{
				"BLOCK_START()", "NAME(foreach)", "NAME(f)", "PUNCTUATION(()",
				"NAME(a)", "PUNCTUATION())", "NAME(as)", "NAME(v)", "BLOCK_END()",
				"EOF()",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenStrings(tokenize(t, tt.src))

			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestLexer_TextReconstructsSource(t *testing.T) {
	src := "Dear @name,\nyou have @(count + 1) messages.@@\n@if(x)yes@endif done"
	want := "Dear ,\nyou have  messages.@\nyes done"

	var sb strings.Builder

	for _, tok := range tokenize(t, src).Tokens() {
		if tok.Kind == TokenText {
			sb.WriteString(tok.Value)
		}
	}

	if sb.String() != want {
		t.Errorf("expected %q, got %q", want, sb.String())
	}
}

func TestLexer_LineNumbers(t *testing.T) {
	stream := tokenize(t, "a\r\nb\r@(x)\n@(y)")

	var lines []int

	for _, tok := range stream.Tokens() {
		if tok.Kind == TokenName {
			lines = append(lines, tok.Line)
		}
	}

	if len(lines) != 2 || lines[0] != 3 || lines[1] != 4 {
		t.Errorf("expected name tokens at lines [3 4], got %v", lines)
	}

	if strings.Contains(stream.Source(), "\r") {
		t.Error("expected normalized line endings in source")
	}
}

func TestLexer_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
		line int
	}{
		{"unclosed paren at opener line", "x\n@(foo(\nbar", `Unclosed "("`, 2},
		{"unexpected closer", "@(a])", `Unexpected "]"`, 1},
		{"mismatched closer", "@(a[1)", `Unclosed "["`, 1},
		{"unclosed block", "x\n@if(a", `Unclosed "block"`, 2},
		{"unclosed variable", "@(a\n", `Unclosed "variable"`, 1},
		{"source ends after variable opener", "@(", `Unclosed "variable"`, 1},
		{"source ends after text and opener", "text\n@(", `Unclosed "variable"`, 2},
		{"source ends after block opener", "@if(", `Unclosed "block"`, 1},
		{"trailing newline inside paren", "@(foo(bar\n", `Unclosed "("`, 1},
		{"trailing newline names inner paren line", "@(a +\n(b\n", `Unclosed "("`, 2},
		{"trailing space inside block paren", "@if(f(a ", `Unclosed "("`, 1},
		{"unexpected character", "@(a $ b)", `Unexpected character "$"`, 1},
		{"unterminated string", `@("abc)`, `Unexpected character """`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Tokenize(t.Context(), tt.src, "test")
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			if !errors.Is(err, ErrSyntax) {
				t.Errorf("expected syntax error, got %v", err)
			}

			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *Error, got %T", err)
			}

			if e.Message() != tt.msg {
				t.Errorf("expected message %q, got %q", tt.msg, e.Message())
			}

			if e.Line() != tt.line {
				t.Errorf("expected line %d, got %d", tt.line, e.Line())
			}

			if e.Name() != "test" {
				t.Errorf("expected name %q, got %q", "test", e.Name())
			}
		})
	}
}

func BenchmarkLexer_Tokenize(b *testing.B) {
	env := New()
	src := strings.Repeat(
		"<li>@item.name|upper @if(item.count > 1)(@(item.count))@endif</li>\n", 64)

	b.ReportAllocs()

	for b.Loop() {
		if _, err := env.Tokenize(b.Context(), src, "bench"); err != nil {
			b.Fatal(err)
		}
	}
}
