package log

import (
	"slices"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelTrace, "trace"},
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LevelInfo + 2, "info+2"},
		{LevelError + 4, "error+4"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"WARN", LevelWarn},
		{"error", LevelError},
		{"info+2", LevelInfo + 2},
		{"bogus", DefaultLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	for name := range Levels() {
		if got := ParseLevel(name).String(); got != name {
			t.Errorf("expected round trip of %q, got %q", name, got)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if got := ParseFormat("JSON"); got != FormatJSON {
		t.Errorf("expected json, got %v", got)
	}
	if got := ParseFormat(" text "); got != FormatText {
		t.Errorf("expected text, got %v", got)
	}
	if got := ParseFormat("yaml"); got != DefaultFormat {
		t.Errorf("expected default, got %v", got)
	}

	if got := slices.Collect(Formats()); !slices.Equal(got, []string{"text", "json"}) {
		t.Errorf("unexpected formats %v", got)
	}
}

func TestOptions_OnZeroConfig(t *testing.T) {
	cfg := apply(config{},
		WithLevel(LevelDebug),
		WithCaller(true),
		WithPretty(true),
		WithFormat(FormatJSON),
		WithOutput(nil),
	)

	if cfg.level != LevelDebug {
		t.Errorf("expected debug, got %v", cfg.level)
	}
	if !cfg.caller || !cfg.pretty {
		t.Errorf("expected caller and pretty enabled, got %v %v", cfg.caller, cfg.pretty)
	}
	if cfg.format != FormatJSON {
		t.Errorf("expected json, got %v", cfg.format)
	}
	if cfg.output == nil {
		t.Error("expected discard writer for nil output")
	}
}

func TestMakeFormatTimeFunc(t *testing.T) {
	ts := time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		layout string
		want   string
	}{
		{"RFC3339", "2024-03-05T07:08:09Z"},
		{"kitchen", "7:08AM"},
		{"date-time", "2024-03-05 07:08:09"},
		{"2006/01/02", "2024/03/05"},
		{"none", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			if got := makeFormatTimeFunc(tt.layout)(ts); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
