package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
)

func resolveFlag(t *testing.T, r kong.Resolver, name string) any {
	t.Helper()

	val, err := r.Resolve(nil, nil, &kong.Flag{Value: &kong.Value{Name: name}})
	if err != nil {
		t.Fatalf("Resolve(%q) failed: %v", name, err)
	}

	return val
}

func TestResolve(t *testing.T) {
	const src = `
log_level: debug
log-format: json
log:
  pretty: false
  time_layout: Kitchen
count: 3
ratio: 0.5
path:
  - ./templates
  - 7
`

	r, err := resolve(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		flag string
		want any
	}{
		{"log-level", "debug"},
		{"log-format", "json"},
		{"log-pretty", false},
		{"log-time-layout", "Kitchen"},
		{"count", "3"},
		{"ratio", "0.5"},
		{"missing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			if got := resolveFlag(t, r, tt.flag); got != tt.want {
				t.Errorf("expected %v (%T), got %v (%T)", tt.want, tt.want, got, got)
			}
		})
	}

	list, ok := resolveFlag(t, r, "path").([]any)
	if !ok || len(list) != 2 || list[0] != "./templates" || list[1] != "7" {
		t.Errorf("expected path [./templates 7], got %v", resolveFlag(t, r, "path"))
	}
}

func TestResolve_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"sequence", "- a\n- b\n"},
		{"malformed", "a: [b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := resolve(strings.NewReader(tt.src))
			if err != nil {
				t.Fatalf("expected empty config, got error %v", err)
			}

			if got := resolveFlag(t, r, "a"); got != nil {
				t.Errorf("expected nil, got %v", got)
			}

			if err := r.Validate(nil); err != nil {
				t.Errorf("unexpected validate error: %v", err)
			}
		})
	}
}

type failingReader struct{}

var errRead = errors.New("read failed")

func (failingReader) Read([]byte) (int, error) { return 0, errRead }

func TestResolve_ReadError(t *testing.T) {
	if _, err := resolve(failingReader{}); !errors.Is(err, errRead) {
		t.Errorf("expected %v, got %v", errRead, err)
	}
}

func TestResolve_Kong(t *testing.T) {
	var cli struct {
		Level string   `default:"info"`
		Path  []string `short:"P"`
		Count int
	}

	r, err := resolve(strings.NewReader("level: warn\npath: [a, b]\ncount: 4\n"))
	if err != nil {
		t.Fatal(err)
	}

	parser, err := kong.New(&cli, kong.Resolvers(r))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := parser.Parse([]string{"--level=error"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cli.Level != "error" {
		t.Errorf("expected command line to override config, got %q", cli.Level)
	}

	if strings.Join(cli.Path, ",") != "a,b" {
		t.Errorf("expected path [a b], got %v", cli.Path)
	}

	if cli.Count != 4 {
		t.Errorf("expected count 4, got %d", cli.Count)
	}
}
