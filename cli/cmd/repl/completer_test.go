package repl

import (
	"slices"
	"testing"

	"github.com/ardnew/razr/lang"
)

func testCompleter() completer {
	env := lang.New(lang.WithGlobals(map[string]any{"site": "example.org"}))

	return completer{
		env: env,
		data: map[string]any{
			"user": map[string]any{
				"name":    "Ann",
				"address": map[string]any{"city": "Oslo", "zip": "0150"},
			},
			"items": []any{"a", "b"},
		},
	}
}

func TestWordBounds(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		cursor    int
		wantWord  string
		wantStart int
		wantEnd   int
	}{
		{"simple", "foo", 3, "foo", 0, 3},
		{"after tag marker", "@fo", 3, "fo", 1, 3},
		{"dot separated", "user.na", 7, "na", 5, 7},
		{"after plus", "a + fo", 6, "fo", 4, 6},
		{"after paren", "@(fo", 4, "fo", 2, 4},
		{"after comma", "range(1, fo", 11, "fo", 9, 11},
		{"after pipe", "name|up", 7, "up", 5, 7},
		{"after concat", "a~fo", 4, "fo", 2, 4},
		{"empty at boundary", "a + ", 4, "", 4, 4},
		{"mid word", "foobar", 3, "foobar", 0, 6},
		{"at start", "foo", 0, "foo", 0, 3},
		{"between operators", "a+b", 2, "b", 2, 3},
		{"underscore", "url_en", 6, "url_en", 0, 6},
		{"empty after dot", "user.", 5, "", 5, 5},
		{"cursor past end", "foo", 10, "foo", 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			word, start, end := wordBounds(tt.input, tt.cursor)
			if word != tt.wantWord || start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("wordBounds(%q, %d) = (%q, %d, %d), want (%q, %d, %d)",
					tt.input, tt.cursor, word, start, end,
					tt.wantWord, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestParentPath(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wordStart int
		want      string
	}{
		{"top level", "fo", 0, ""},
		{"simple chain", "user.address.", 13, "user.address"},
		{"after operator", "x ~ user.address.", 17, "user.address"},
		{"after tag marker", "@user.", 6, "user"},
		{"after paren", "@(user.", 7, "user"},
		{"no chain", "a + ", 4, ""},
		{"deep chain", "a.b.c.", 6, "a.b.c"},
		{"after equals", "@set(x = a.b.", 13, "a.b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parentPath(tt.input, tt.wordStart)
			if got != tt.want {
				t.Errorf("parentPath(%q, %d) = %q, want %q",
					tt.input, tt.wordStart, got, tt.want)
			}
		})
	}
}

func TestAfterPipe(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wordStart int
		want      bool
	}{
		{"filter", "name|", 5, true},
		{"filter with space", "name | ", 7, true},
		{"chained filter", "name|lower|", 11, true},
		{"top level", "name", 0, false},
		{"attribute", "user.", 5, false},
		{"logical or", "a or ", 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := afterPipe(tt.input, tt.wordStart); got != tt.want {
				t.Errorf("afterPipe(%q, %d) = %v, want %v",
					tt.input, tt.wordStart, got, tt.want)
			}
		})
	}
}

func TestCompleter_Candidates(t *testing.T) {
	c := testCompleter()

	tests := []struct {
		name      string
		input     string
		wordStart int
		contains  []string
		excludes  []string
	}{
		{
			name:     "top level",
			input:    "",
			contains: []string{"user", "items", "site", "range", "include"},
			excludes: []string{"upper"},
		},
		{
			name:      "filters",
			input:     "name|",
			wordStart: 5,
			contains:  []string{"upper", "lower", "join", "default"},
			excludes:  []string{"user", "range"},
		},
		{
			name:      "attributes",
			input:     "user.",
			wordStart: 5,
			contains:  []string{"name", "address"},
			excludes:  []string{"user", "upper"},
		},
		{
			name:      "nested attributes",
			input:     "user.address.",
			wordStart: 13,
			contains:  []string{"city", "zip"},
			excludes:  []string{"name"},
		},
		{
			name:      "indices",
			input:     "items.",
			wordStart: 6,
			contains:  []string{"0", "1"},
		},
		{
			name:      "unknown parent",
			input:     "nobody.",
			wordStart: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.candidates(tt.input, tt.wordStart)

			for _, want := range tt.contains {
				if !slices.Contains(got, want) {
					t.Errorf("expected candidate %q in %v", want, got)
				}
			}

			for _, reject := range tt.excludes {
				if slices.Contains(got, reject) {
					t.Errorf("expected no candidate %q in %v", reject, got)
				}
			}

			if tt.contains == nil && len(got) != 0 {
				t.Errorf("expected no candidates, got %v", got)
			}
		})
	}
}

func TestCompleter_CandidatesSorted(t *testing.T) {
	c := testCompleter()
	c.data["range"] = 1

	got := c.candidates("", 0)

	if !slices.IsSorted(got) {
		t.Errorf("expected sorted candidates, got %v", got)
	}

	if n := len(slices.Compact(slices.Clone(got))); n != len(got) {
		t.Errorf("expected unique candidates, got %v", got)
	}
}

func TestCompleter_HashAttributes(t *testing.T) {
	h := lang.NewHash()
	h.Set("b", 2)
	h.Set("a", 1)

	c := completer{env: lang.New(), data: map[string]any{"h": h}}

	got := c.attributes("h")
	if !slices.Equal(got, []string{"b", "a"}) {
		t.Errorf("expected insertion order [b a], got %v", got)
	}
}

func TestModel_ComputeMatches(t *testing.T) {
	tests := []struct {
		name      string
		mode      inputMode
		input     string
		wantFirst string
		wantNone  bool
	}{
		{"variable", modeEval, "use", "user", false},
		{"filter", modeEval, "name|uppe", "upper", false},
		{"empty top level", modeEval, "", "", true},
		{"empty after dot", modeEval, "user.", "address", false},
		{"command", modeCtrl, "fil", "filters", false},
		{"command argument", modeCtrl, "tokens fo", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel(t.Context(), testCompleter().env, testCompleter().data,
				NewHistory(""), testLogger())
			m.mode = tt.mode
			m.input.SetValue(tt.input)
			m.input.SetCursor(len(tt.input))

			matches, _, _, _ := m.computeMatches()

			if tt.wantNone {
				if len(matches) != 0 {
					t.Errorf("expected no matches, got %v", matches)
				}

				return
			}

			if len(matches) == 0 {
				t.Fatalf("expected matches for %q, got none", tt.input)
			}

			if matches[0].Str != tt.wantFirst {
				t.Errorf("expected first match %q, got %q", tt.wantFirst, matches[0].Str)
			}
		})
	}
}
