package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/razr/lang"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

// withStdin replaces stdin for the duration of the test.
func withStdin(t *testing.T, content string) {
	t.Helper()

	prev := stdin
	stdin = strings.NewReader(content)

	t.Cleanup(func() { stdin = prev })
}

func testEnvironment(t *testing.T) context.Context {
	t.Helper()

	env := lang.New(lang.WithLoader(lang.NewMapLoader(map[string]string{
		"hello":  "Hello @(name)!",
		"base":   `<title>@block("title")Base@endblock</title>@block("body")B@endblock`,
		"child":  `@extends("base")@block("title")Child@endblock`,
		"broken": "@if(x)",
	})))

	return WithEnvironment(t.Context(), env)
}

func readAll(t *testing.T, sources []dataSource) []string {
	t.Helper()

	var out []string

	for _, src := range sources {
		b, err := io.ReadAll(src)
		if err != nil {
			t.Fatal(err)
		}

		out = append(out, string(b))
	}

	return out
}

func TestOpenDataFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", "a")
	b := writeFile(t, dir, "b.yaml", "b")
	link := filepath.Join(dir, "link.yaml")

	if err := os.Symlink(a, link); err != nil {
		t.Fatal(err)
	}

	rel, err := filepath.Rel(".", a)
	if err != nil {
		rel = a
	}

	tests := []struct {
		name  string
		paths []string
		want  []string
	}{
		{"empty", nil, nil},
		{"single", []string{a}, []string{"a"}},
		{"ordered", []string{b, a}, []string{"b", "a"}},
		{"duplicate", []string{a, b, a}, []string{"a", "b"}},
		{"relative duplicate", []string{a, rel}, []string{"a"}},
		{"symlink duplicate", []string{link, a}, []string{"a"}},
		{"stdin last", []string{"-", a}, []string{"a", "stdin"}},
		{"stdin collapsed", []string{"-", a, "-"}, []string{"a", "stdin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withStdin(t, "stdin")

			sources, closeAll, err := openDataFiles(tt.paths)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer closeAll()

			got := readAll(t, sources)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestOpenDataFiles_Missing(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", "a")

	_, closeAll, err := openDataFiles([]string{a, filepath.Join(dir, "missing.yaml")})
	defer closeAll()

	if !errors.Is(err, ErrReadData) {
		t.Errorf("expected ErrReadData, got %v", err)
	}
}

func TestDecodeData(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		check   func(t *testing.T, data map[string]any)
		wantErr error
	}{
		{
			name: "yaml",
			src:  "name: Ann\nage: 7\ntags: [a, b]\n",
			check: func(t *testing.T, data map[string]any) {
				if data["name"] != "Ann" {
					t.Errorf("expected name Ann, got %v", data["name"])
				}

				if tags, ok := data["tags"].([]any); !ok || len(tags) != 2 {
					t.Errorf("expected two tags, got %v", data["tags"])
				}
			},
		},
		{
			name: "json",
			src:  `{"name": "Ann", "ok": true}`,
			check: func(t *testing.T, data map[string]any) {
				if data["ok"] != true {
					t.Errorf("expected ok true, got %v", data["ok"])
				}
			},
		},
		{
			name: "nested order",
			src:  "user:\n  z: 1\n  a: 2\n  m: 3\n",
			check: func(t *testing.T, data map[string]any) {
				h, ok := data["user"].(*lang.Hash)
				if !ok {
					t.Fatalf("expected *lang.Hash, got %T", data["user"])
				}

				if got := strings.Join(h.Keys(), ","); got != "z,a,m" {
					t.Errorf("expected keys z,a,m, got %s", got)
				}
			},
		},
		{
			name: "non-string keys",
			src:  "1: one\ntrue: yes\n",
			check: func(t *testing.T, data map[string]any) {
				if data["1"] != "one" {
					t.Errorf("expected key 1, got %v", data)
				}
			},
		},
		{
			name: "empty",
			src:  "",
			check: func(t *testing.T, data map[string]any) {
				if len(data) != 0 {
					t.Errorf("expected empty data, got %v", data)
				}
			},
		},
		{name: "sequence", src: "- a\n- b\n", wantErr: ErrDataFormat},
		{name: "scalar", src: "hello\n", wantErr: ErrDataFormat},
		{name: "malformed", src: "a: [b\n", wantErr: ErrReadData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := decodeData(strings.NewReader(tt.src), tt.name)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			tt.check(t, data)
		})
	}
}

func TestApplySets(t *testing.T) {
	tests := []struct {
		name    string
		sets    []string
		key     string
		want    any
		wantErr error
	}{
		{"string", []string{`name="Bob"`}, "name", "Bob", nil},
		{"number", []string{"n=2*21"}, "n", 42, nil},
		{"bool", []string{"on=true"}, "on", true, nil},
		{"reference", []string{"x=3", "y=x+1"}, "y", 4, nil},
		{"existing", []string{`greeting=name + "!"`}, "greeting", "Ann!", nil},
		{"spaced key", []string{` k =1`}, "k", 1, nil},
		{"missing equals", []string{"name"}, "", nil, ErrSetFormat},
		{"empty key", []string{"=1"}, "", nil, ErrSetFormat},
		{"bad expression", []string{"x=1 +"}, "", nil, ErrSetEval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := map[string]any{"name": "Ann"}

			err := applySets(t.Context(), data, tt.sets)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if data[tt.key] != tt.want {
				t.Errorf("expected %v (%T), got %v (%T)",
					tt.want, tt.want, data[tt.key], data[tt.key])
			}
		})
	}
}

func TestLoadContext(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", "name: A\nonly_a: 1\n")
	b := writeFile(t, dir, "b.json", `{"name": "B"}`)

	data, err := loadContext(t.Context(), []string{a, b}, []string{`title=name + "?"`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if data["name"] != "B" {
		t.Errorf("expected later file to win, got %v", data["name"])
	}

	if _, ok := data["only_a"]; !ok {
		t.Error("expected keys from earlier file to be kept")
	}

	if data["title"] != "B?" {
		t.Errorf("expected title B?, got %v", data["title"])
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		render  Render
		stdin   string
		want    string
		wantErr error
	}{
		{
			name:   "named",
			render: Render{Template: "hello", Set: []string{`name="Ann"`}},
			want:   "Hello Ann!",
		},
		{
			name:   "stdin template",
			render: Render{Template: "-", Set: []string{"n=2"}},
			stdin:  "@(n * 3)",
			want:   "6",
		},
		{
			name:   "stdin data",
			render: Render{Template: "hello", Data: []string{"-"}},
			stdin:  "name: Stdin\n",
			want:   "Hello Stdin!",
		},
		{
			name:   "inheritance",
			render: Render{Template: "child"},
			want:   "<title>Child</title>B",
		},
		{
			name:   "block",
			render: Render{Template: "child", Block: "title"},
			want:   "Child",
		},
		{
			name:    "stdin conflict",
			render:  Render{Template: "-", Data: []string{"-"}},
			wantErr: ErrStdinConflict,
		},
		{
			name:    "missing",
			render:  Render{Template: "nope"},
			wantErr: lang.ErrTemplateNotFound,
		},
		{
			name:    "syntax",
			render:  Render{Template: "broken"},
			wantErr: lang.ErrSyntax,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withStdin(t, tt.stdin)

			var buf bytes.Buffer

			r := tt.render
			r.stdout = &buf

			err := r.Run(testEnvironment(t))

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if buf.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, buf.String())
			}
		})
	}
}

func TestRender_OutputFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.html")

	r := Render{Template: "hello", Set: []string{`name="File"`}, Output: out}
	if err := r.Run(testEnvironment(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	if string(b) != "Hello File!" {
		t.Errorf("expected %q, got %q", "Hello File!", b)
	}
}

func TestRender_NoEnvironment(t *testing.T) {
	r := Render{Template: "hello"}
	if err := r.Run(t.Context()); !errors.Is(err, ErrNoEnvironment) {
		t.Errorf("expected ErrNoEnvironment, got %v", err)
	}
}

func TestTokens(t *testing.T) {
	var buf bytes.Buffer

	tok := Tokens{Template: "hello", stdout: &buf}
	if err := tok.Run(testEnvironment(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	if lines[0] != "TEXT(Hello )" {
		t.Errorf("expected first token TEXT(Hello ), got %s", lines[0])
	}

	if last := lines[len(lines)-1]; last != "EOF()" {
		t.Errorf("expected last token EOF(), got %s", last)
	}
}

func TestTokens_Stdin(t *testing.T) {
	withStdin(t, "plain")

	var buf bytes.Buffer

	tok := Tokens{Template: "-", stdout: &buf}
	if err := tok.Run(testEnvironment(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if buf.String() != "TEXT(plain)\nEOF()\n" {
		t.Errorf("expected %q, got %q", "TEXT(plain)\nEOF()\n", buf.String())
	}
}

func TestCompile(t *testing.T) {
	tests := []struct {
		format string
		decode func([]byte, any) error
	}{
		{"yaml", func(b []byte, v any) error { return yaml.Unmarshal(b, v) }},
		{"json", json.Unmarshal},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer

			c := Compile{Template: "child", Format: tt.format, Indent: 2, stdout: &buf}
			if err := c.Run(testEnvironment(t)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var dump unitDump
			if err := tt.decode(buf.Bytes(), &dump); err != nil {
				t.Fatalf("decode %s: %v", tt.format, err)
			}

			if dump.Name != "child" {
				t.Errorf("expected name child, got %q", dump.Name)
			}

			if !dump.Parent {
				t.Error("expected child to have a parent")
			}

			if strings.Join(dump.Blocks, ",") != "title" {
				t.Errorf("expected blocks [title], got %v", dump.Blocks)
			}

			if len(dump.Code) == 0 {
				t.Error("expected generated code")
			}
		})
	}
}

func TestCompile_Listing(t *testing.T) {
	var buf bytes.Buffer

	c := Compile{Template: "hello", Format: "listing", stdout: &buf}

	ctx := testEnvironment(t)
	if err := c.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env, err := environmentFrom(ctx)
	if err != nil {
		t.Fatal(err)
	}

	tpl, err := env.LoadTemplate(ctx, "hello", 0)
	if err != nil {
		t.Fatal(err)
	}

	if buf.String() != tpl.Unit().Code() {
		t.Errorf("expected listing %q, got %q", tpl.Unit().Code(), buf.String())
	}
}
