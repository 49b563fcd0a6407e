package repl

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/razr/lang"
)

// ctrlCommands are the available control-mode commands.
var ctrlCommands = []string{
	"help", "vars", "filters", "functions", "tokens", "clear", "quit",
}

// isWordBoundary reports whether r delimits a completion word: whitespace,
// the attribute dot, the tag marker, quotes, and operator or punctuation
// characters.
func isWordBoundary(r rune) bool {
	switch r {
	case '.', ' ', '\t', '@', '"', '\'',
		'(', ')', '[', ']', '{', '}',
		'+', '-', '*', '/', '%', '~',
		'<', '>', '=', '!',
		'&', '|', ',', '?', ':', ';':
		return true
	}

	return false
}

// wordBounds returns the word at the cursor and its byte boundaries within
// input. The word is empty when the cursor sits on a boundary.
func wordBounds(input string, cursor int) (word string, start, end int) {
	cursor = min(cursor, len(input))

	start = cursor

	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if isWordBoundary(r) {
			break
		}

		start -= size
	}

	end = cursor

	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if isWordBoundary(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// parentPath returns the attribute chain leading up to the word starting at
// wordStart. For "x ~ user.address.ci" and the word "ci" it is
// "user.address". Top-level words have no parent path.
func parentPath(input string, wordStart int) string {
	prefix := input[:wordStart]
	if !strings.HasSuffix(prefix, ".") {
		return ""
	}

	prefix = strings.TrimRight(prefix, ".")
	pos := len(prefix)

	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(prefix[:pos])
		if r != '.' && isWordBoundary(r) {
			break
		}

		pos -= size
	}

	return strings.TrimSpace(prefix[pos:])
}

// afterPipe reports whether the word starting at wordStart follows the
// filter operator.
func afterPipe(input string, wordStart int) bool {
	return strings.HasSuffix(strings.TrimRight(input[:wordStart], " \t"), "|")
}

// completer supplies completion candidates from an environment and the
// variables of the render context.
type completer struct {
	env  *lang.Environment
	data map[string]any
}

// scope returns the variables visible to templates.
func (c completer) scope() map[string]any {
	vars := c.env.Globals()
	maps.Copy(vars, c.data)

	return vars
}

// candidates returns the completions for the word starting at wordStart:
// filter names after "|", attribute names after ".", and variable and
// function names otherwise.
func (c completer) candidates(input string, wordStart int) []string {
	if afterPipe(input, wordStart) {
		return c.env.Filters()
	}

	if parent := parentPath(input, wordStart); parent != "" {
		return c.attributes(parent)
	}

	names := slices.Collect(maps.Keys(c.scope()))
	names = append(names, c.env.Functions()...)
	slices.Sort(names)

	return slices.Compact(names)
}

// attributes returns the member names of the value at the dotted path.
func (c completer) attributes(path string) []string {
	var v any = c.scope()

	for _, seg := range strings.Split(path, ".") {
		var ok bool
		if v, ok = member(v, seg); !ok {
			return nil
		}
	}

	return memberNames(v)
}

func member(v any, name string) (any, bool) {
	switch x := v.(type) {
	case map[string]any:
		m, ok := x[name]

		return m, ok

	case *lang.Hash:
		return x.Get(name)

	case []any:
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= len(x) {
			return nil, false
		}

		return x[i], true
	}

	return nil, false
}

func memberNames(v any) []string {
	switch x := v.(type) {
	case map[string]any:
		return slices.Sorted(maps.Keys(x))

	case *lang.Hash:
		return x.Keys()

	case []any:
		names := make([]string, len(x))
		for i := range x {
			names[i] = strconv.Itoa(i)
		}

		return names
	}

	return nil
}

// computeMatches calculates the fuzzy match results for the word at the
// cursor, ranked best-first. An empty top-level word has no matches so the
// hint line stays visible; an empty word after "." or "|" lists every
// candidate.
func (m model) computeMatches() (
	matches fuzzy.Matches,
	candidates []string,
	wordStart, wordEnd int,
) {
	input := m.input.Value()

	word, wordStart, wordEnd := wordBounds(input, m.input.Position())

	if m.mode == modeCtrl {
		if word == "" || wordStart > 0 {
			return nil, nil, wordStart, wordEnd
		}

		candidates = ctrlCommands
	} else {
		candidates = m.completer.candidates(input, wordStart)

		if word == "" {
			member := parentPath(input, wordStart) != "" || afterPipe(input, wordStart)
			if !member || len(candidates) == 0 {
				return nil, nil, wordStart, wordEnd
			}

			matches = make(fuzzy.Matches, len(candidates))
			for i, c := range candidates {
				matches[i] = fuzzy.Match{Str: c, Index: i}
			}

			return matches, candidates, wordStart, wordEnd
		}
	}

	if len(candidates) == 0 {
		return nil, nil, wordStart, wordEnd
	}

	return fuzzy.Find(word, candidates), candidates, wordStart, wordEnd
}

// renderCandidateBar builds the single-line completion bar, ellipsized to
// fit within width.
func renderCandidateBar(
	env *lang.Environment,
	matches fuzzy.Matches,
	suggIdx int,
	tabActive bool,
	width int,
) string {
	if len(matches) == 0 || width <= 0 {
		return ""
	}

	const sep = "  "

	sepWidth := lipgloss.Width(sep)
	ellipsis := hintStyle.Render("...")
	ellipsisWidth := lipgloss.Width(ellipsis)

	var b strings.Builder

	used := 0

	for i, match := range matches {
		rendered := renderCandidate(env, match, tabActive && i == suggIdx)

		entryWidth := lipgloss.Width(rendered)
		if i > 0 {
			entryWidth += sepWidth
		}

		if used+entryWidth+ellipsisWidth > width && i > 0 {
			b.WriteString(sep)
			b.WriteString(ellipsis)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(rendered)

		used += entryWidth
	}

	return b.String()
}

// renderCandidate renders a candidate with its matched characters
// highlighted. Functions are displayed with a "()" suffix.
func renderCandidate(env *lang.Environment, match fuzzy.Match, selected bool) string {
	baseStyle := suggestionStyle
	highlightStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("4")).
		Bold(true)

	if selected {
		baseStyle = selectedStyle
		highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4")).
			Bold(true)
	}

	matched := make(map[int]bool, len(match.MatchedIndexes))
	for _, idx := range match.MatchedIndexes {
		matched[idx] = true
	}

	var b strings.Builder

	for i, r := range match.Str {
		if matched[i] {
			b.WriteString(highlightStyle.Render(string(r)))
		} else {
			b.WriteString(baseStyle.Render(string(r)))
		}
	}

	if _, ok := env.Function(match.Str); ok {
		b.WriteString(baseStyle.Render("()"))
	}

	return b.String()
}
