package repl

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestHistory_AddLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), baseHistory)

	h := NewHistory(path)
	if err := h.Load(); err != nil {
		t.Fatalf("expected missing history to load, got %v", err)
	}

	for _, e := range []HistoryEntry{
		{"1 + 2", modeEval},
		{"vars", modeCtrl},
		{"Hello @(name)", modeEval},
		{"1 + 2", modeEval},
	} {
		if err := h.Add(e.Line, e.Mode); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	want := []HistoryEntry{
		{"vars", modeCtrl},
		{"Hello @(name)", modeEval},
		{"1 + 2", modeEval},
	}

	reloaded := NewHistory(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, hist := range []*History{h, reloaded} {
		if hist.Len() != len(want) {
			t.Fatalf("expected %d entries, got %d", len(want), hist.Len())
		}

		for i, w := range want {
			got, err := hist.Entry(i)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != w {
				t.Errorf("entry %d: expected %+v, got %+v", i, w, got)
			}
		}
	}
}

func TestHistory_Entry(t *testing.T) {
	h := NewHistory("")

	if err := h.Add("x", modeEval); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, i := range []int{-1, 1} {
		if _, err := h.Entry(i); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("index %d: expected ErrOutOfBounds, got %v", i, err)
		}
	}
}

func TestParseHistoryLine(t *testing.T) {
	tests := []struct {
		line string
		want HistoryEntry
	}{
		{"E:1 + 2", HistoryEntry{"1 + 2", modeEval}},
		{"C:vars", HistoryEntry{"vars", modeCtrl}},
		{"legacy", HistoryEntry{"legacy", modeEval}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := parseHistoryLine(tt.line); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}
