package lang

import (
	"errors"
	"testing"
)

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "extends with text body",
			src:  `@extends("base")Hello`,
			want: `A template that extends another one cannot have a body in "test" at line 1`,
		},
		{
			name: "extends with print body",
			src:  "@extends(\"base\")\n@(x)",
			want: `A template that extends another one cannot have a body in "test" at line 2`,
		},
		{
			name: "extends with output nested in if",
			src:  "@extends(\"base\")\n@if(a)\nx\n@endif",
			want: `A template that extends another one cannot have a body in "test" at line 3`,
		},
		{
			name: "multiple extends",
			src:  "@extends(\"a\")\n@extends(\"b\")",
			want: `Multiple extends tags are forbidden in "test" at line 2`,
		},
		{
			name: "extends in block",
			src:  `@block("a")@extends("b")@endblock`,
			want: `Cannot extend from a block in "test" at line 1`,
		},
		{
			name: "duplicate block",
			src:  "@block(\"a\")@endblock\n@block(\"a\")@endblock",
			want: `The block "a" has already been defined line 1 in "test" at line 2`,
		},
		{
			name: "endblock name mismatch",
			src:  `@block("a")x@endblock("b")`,
			want: `Expected endblock for block "a" (but "b" given) in "test" at line 1`,
		},
		{
			name: "stray continuation",
			src:  "x\n@endif",
			want: `Unknown tag name "endif" in "test" at line 2`,
		},
		{
			name: "unexpected continuation",
			src:  "@if(a)\n@endforeach",
			want: `Unexpected tag name "endforeach" (expecting closing tag for the "if" tag defined near line 1) in "test" at line 2`,
		},
		{
			name: "unterminated if",
			src:  "@if(a)x",
			want: `Unexpected end of template. Expected were the following tags "else", "elseif", or "endif" to close the "if" block started at line 1 in "test" at line 1`,
		},
		{
			name: "unterminated foreach",
			src:  "@foreach(a as v)\nx\n",
			want: `Unexpected end of template. Expected were the following tags "endforeach" to close the "foreach" block started at line 1 in "test" at line 2`,
		},
		{
			name: "foreach without as",
			src:  "@foreach(a v)@endforeach",
			want: `Unexpected token "name" of value "v" ("name" expected with value "as") in "test" at line 1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseTemplate(t, New(), tt.src)
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			if !errors.Is(err, ErrSyntax) {
				t.Errorf("expected syntax error, got %v", err)
			}

			if err.Error() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestParser_ExtendsBody(t *testing.T) {
	src := "@extends(\"base\")\n\n@set(a = 1)\n@block(\"title\")T@endblock\n  \n"

	m, err := parseTemplate(t, New(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Parent == nil {
		t.Fatal("expected a parent expression")
	}

	body, ok := m.Body.(*Body)
	if !ok {
		t.Fatalf("expected body, got %T", m.Body)
	}

	if len(body.Nodes) != 1 || body.Nodes[0].Kind() != KindSet {
		t.Errorf("expected only the set statement to remain, got %v", body.Nodes)
	}

	if b, ok := m.Block("title"); !ok || b.Line() != 4 {
		t.Errorf("expected block %q at line 4, got %v", "title", b)
	}
}

func TestParser_Structure(t *testing.T) {
	src := "@if(a)A@elseif(b)B@else\nC@endif" +
		"@foreach(xs as k => v)@(v)@endforeach" +
		"@while(n)@set(n = n - 1)@endwhile" +
		`@block("one")1@endblock@block("two", 2)`

	m, err := parseTemplate(t, New(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var kinds []NodeKind

	Walk(m.Body, func(n Node) bool {
		if n != nil {
			kinds = append(kinds, n.Kind())
		}

		return true
	})

	counts := map[NodeKind]int{}
	for _, k := range kinds {
		counts[k]++
	}

	want := map[NodeKind]int{
		KindIf:             1,
		KindForeach:        1,
		KindWhile:          1,
		KindBlockReference: 2,
	}

	for k, n := range want {
		if counts[k] != n {
			t.Errorf("expected %d %s nodes, got %d", n, k, counts[k])
		}
	}

	if len(m.Blocks) != 2 || m.Blocks[0].Name != "one" || m.Blocks[1].Name != "two" {
		t.Errorf("expected blocks [one two] in order, got %v", m.Blocks)
	}

	var ifNode *If

	Walk(m.Body, func(n Node) bool {
		if i, ok := n.(*If); ok {
			ifNode = i
		}

		return ifNode == nil
	})

	if ifNode == nil || len(ifNode.Tests) != 2 || ifNode.Else == nil {
		t.Fatalf("expected if with two tests and an else, got %v", ifNode)
	}

	if text, ok := ifNode.Else.(*Text); !ok || text.Data != "C" {
		t.Errorf("expected else body %q, got %v", "C", ifNode.Else)
	}

	var fe *Foreach

	Walk(m.Body, func(n Node) bool {
		if f, ok := n.(*Foreach); ok {
			fe = f
		}

		return true
	})

	if fe == nil || fe.Key == nil || fe.Key.Name != "k" || fe.Value.Name != "v" {
		t.Errorf("expected foreach over k => v, got %v", fe)
	}
}

func TestParser_ForeachDefaultKey(t *testing.T) {
	m, err := parseTemplate(t, New(), "@foreach(xs as v)@endforeach")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fe, ok := m.Body.(*Foreach)
	if !ok {
		t.Fatalf("expected foreach, got %T", m.Body)
	}

	if fe.Key == nil || fe.Key.Name != "_key" {
		t.Errorf("expected default key %q, got %v", "_key", fe.Key)
	}
}
