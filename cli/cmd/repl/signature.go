package repl

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/ardnew/razr/lang"
)

var (
	signatureStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	signatureNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("6")).
				Bold(true)
	currentParamStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)
)

// callKind distinguishes function calls from filter applications.
type callKind int

const (
	callNone callKind = iota
	callFunction
	callFilter
)

// functionCall is the call enclosing the cursor.
type functionCall struct {
	name     string
	argIndex int
	kind     callKind
}

func isNameRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// detectFunctionCall finds the innermost unclosed parenthesis before the
// cursor and the name preceding it. A name preceded by "|" is a filter and
// one preceded by "." is a method. A parenthesis without a name, as in a
// grouped expression or an @( print, is not a call.
func detectFunctionCall(input string, cursor int) functionCall {
	cursor = min(cursor, len(input))

	depth := 0
	open := -1

	for i := cursor - 1; i >= 0 && open < 0; i-- {
		switch input[i] {
		case ')':
			depth++
		case '(':
			if depth == 0 {
				open = i
			}

			depth--
		}
	}

	if open < 0 {
		return functionCall{}
	}

	start := open
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if !isNameRune(r) {
			break
		}

		start -= size
	}

	name := input[start:open]
	if name == "" {
		return functionCall{}
	}

	kind := callFunction

	before := strings.TrimRight(input[:start], " \t")
	switch {
	case strings.HasSuffix(before, "|"):
		kind = callFilter
	case strings.HasSuffix(before, "."):
		return functionCall{}
	}

	argIndex := 0
	depth = 0

	for _, r := range input[open+1 : cursor] {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				argIndex++
			}
		}
	}

	return functionCall{name: name, argIndex: argIndex, kind: kind}
}

// signature returns the display name and parameter names of a call. Filter
// names are shown with a leading pipe.
func signature(env *lang.Environment, call functionCall) (string, []string, bool) {
	switch call.kind {
	case callFunction:
		if f, ok := env.Function(call.name); ok {
			return f.Name, f.Params, true
		}

	case callFilter:
		if f, ok := env.Filter(call.name); ok {
			return "|" + f.Name, f.Params, true
		}
	}

	return "", nil, false
}

// renderSignatureHint renders a signature with the parameter at
// currentArgIdx highlighted. Functions without declared parameters show
// "(...)".
func renderSignatureHint(name string, params []string, currentArgIdx int) string {
	var b strings.Builder

	b.WriteString(signatureNameStyle.Render(name))
	b.WriteString(signatureStyle.Render("("))

	if len(params) == 0 {
		b.WriteString(signatureStyle.Render("..."))
	}

	for i, param := range params {
		if i > 0 {
			b.WriteString(signatureStyle.Render(", "))
		}

		if i == currentArgIdx {
			b.WriteString(currentParamStyle.Render(param))
		} else {
			b.WriteString(signatureStyle.Render(param))
		}
	}

	b.WriteString(signatureStyle.Render(")"))

	return b.String()
}
