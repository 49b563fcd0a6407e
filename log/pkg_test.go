package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// useDefault installs a JSON logger writing to a buffer as the package
// default for the duration of the test.
func useDefault(t *testing.T, opts ...Option) *bytes.Buffer {
	t.Helper()

	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	var buf bytes.Buffer

	SetDefault(Make(&buf, append([]Option{WithFormat(FormatJSON)}, opts...)...))

	return &buf
}

func TestPackage_LevelFunctions(t *testing.T) {
	buf := useDefault(t, WithLevel(LevelTrace))

	tests := []struct {
		name  string
		plain func(string, ...slog.Attr)
		ctx   func(context.Context, string, ...slog.Attr)
		level string
	}{
		{"trace", Trace, TraceContext, "TRACE"},
		{"debug", Debug, DebugContext, "DEBUG"},
		{"info", Info, InfoContext, "INFO"},
		{"warn", Warn, WarnContext, "WARN"},
		{"error", Error, ErrorContext, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, emit := range []func(){
				func() { tt.plain("compiled unit", slog.String("template", "page")) },
				func() { tt.ctx(t.Context(), "compiled unit", slog.String("template", "page")) },
			} {
				buf.Reset()
				emit()

				out := buf.String()
				if !strings.Contains(out, `"level":"`+tt.level+`"`) {
					t.Errorf("expected level %s, got %s", tt.level, out)
				}

				if !strings.Contains(out, `"template":"page"`) {
					t.Errorf("expected template attribute, got %s", out)
				}
			}
		})
	}
}

func TestPackage_ConfigFiltersLevel(t *testing.T) {
	buf := useDefault(t)

	Config(WithLevel(LevelWarn))
	Info("cache miss")

	if buf.Len() != 0 {
		t.Errorf("expected info suppressed at warn level, got %s", buf.String())
	}

	Warn("template is stale")

	if !strings.Contains(buf.String(), "template is stale") {
		t.Errorf("expected warn message, got %s", buf.String())
	}

	if got := Default().Level(); got != LevelWarn {
		t.Errorf("expected level %s, got %s", LevelWarn, got)
	}
}

func TestPackage_WithComponent(t *testing.T) {
	buf := useDefault(t)

	With(slog.String("render", "r1")).Component("lang").Info("rendered")

	for _, want := range []string{`"component":"lang"`, `"render":"r1"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %s in %s", want, buf.String())
		}
	}
}

func TestPackage_ConcurrentConfig(t *testing.T) {
	useDefault(t)

	var wg sync.WaitGroup

	for i := range 8 {
		wg.Add(2)

		go func() {
			defer wg.Done()

			Config(WithCaller(i%2 == 0))
		}()

		go func() {
			defer wg.Done()

			Debug("concurrent", slog.Int("i", i))
		}()
	}

	wg.Wait()
}
