package lang

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// coreExtension provides the built-in tags, operators, filters, and
// functions.
type coreExtension struct{ BaseExtension }

func (coreExtension) Name() string { return "core" }

func (coreExtension) Tags() []TagParser {
	return []TagParser{
		ifTag{}, foreachTag{}, whileTag{}, setTag{}, blockTag{}, extendsTag{},
	}
}

func (coreExtension) UnaryOperators() []UnaryOperator { return coreUnaryOperators() }

func (coreExtension) BinaryOperators() []BinaryOperator { return coreBinaryOperators() }

func (coreExtension) Filters() []Filter {
	return []Filter{
		{Name: "escape", Fn: filterEscape, Params: []string{"strategy"}},
		{Name: "e", Fn: filterEscape, Params: []string{"strategy"}},
		{Name: "raw", Fn: filterRaw},
		{Name: "upper", Fn: stringFilter(cases.Upper(language.Und).String)},
		{Name: "lower", Fn: stringFilter(cases.Lower(language.Und).String)},
		{Name: "capitalize", Fn: stringFilter(capitalize)},
		{Name: "title", Fn: stringFilter(func(s string) string {
			return cases.Title(language.Und).String(s)
		})},
		{Name: "trim", Fn: filterTrim, Params: []string{"characters"}},
		{Name: "length", Fn: filterLength},
		{Name: "default", Fn: filterDefault, Params: []string{"default"}},
		{Name: "join", Fn: filterJoin, Params: []string{"glue"}},
		{Name: "keys", Fn: filterKeys},
		{Name: "first", Fn: filterFirst},
		{Name: "last", Fn: filterLast},
		{Name: "reverse", Fn: filterReverse},
		{Name: "sort", Fn: filterSort},
		{Name: "slice", Fn: filterSlice, Params: []string{"start", "length"}},
		{Name: "json", Fn: filterJSON},
		{Name: "format", Fn: filterFormat},
		{Name: "replace", Fn: filterReplace, Params: []string{"from"}},
		{Name: "abs", Fn: filterAbs},
		{Name: "round", Fn: filterRound, Params: []string{"precision", "method"}},
		{Name: "nl2br", Fn: filterNl2br},
		{Name: "striptags", Fn: stringFilter(stripTags)},
		{Name: "url_encode", Fn: filterURLEncode},
	}
}

func (coreExtension) Functions() []Function {
	return []Function{
		{Name: "block", Fn: fnBlock, Params: []string{"name"}},
		{Name: "include", Fn: fnInclude, Params: []string{"template", "variables", "with_context"}},
		{Name: "range", Fn: fnRange, Params: []string{"low", "high", "step"}},
		{Name: "constant", Fn: fnConstant, Params: []string{"name"}},
		{Name: "cycle", Fn: fnCycle, Params: []string{"values", "position"}},
		{Name: "max", Fn: extremum(1)},
		{Name: "min", Fn: extremum(-1)},
	}
}

// arg returns the argument at i, or nil when absent.
func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}

	return nil
}

func stringFilter(fn func(string) string) FilterFunc {
	return func(_ *State, v any, _ []any) (any, error) {
		return fn(toString(v)), nil
	}
}

func filterEscape(_ *State, v any, args []any) (any, error) {
	if s, ok := v.(Safe); ok {
		return s, nil
	}

	switch strategy := arg(args, 0); strategy {
	case nil, "html":
		return Safe(escapeHTML(toString(v))), nil
	case "url":
		return Safe(rawURLEncode(toString(v))), nil
	default:
		return nil, ErrRuntime.Errorf(
			`Invalid escaping strategy "%s" (valid ones: html, url)`, toString(strategy))
	}
}

func filterRaw(_ *State, v any, _ []any) (any, error) {
	if s, ok := v.(Safe); ok {
		return s, nil
	}

	return Safe(toString(v)), nil
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}

	return string(unicode.ToUpper(r)) + strings.ToLower(s[n:])
}

func filterTrim(_ *State, v any, args []any) (any, error) {
	if chars := arg(args, 0); chars != nil {
		return strings.Trim(toString(v), toString(chars)), nil
	}

	return strings.TrimSpace(toString(v)), nil
}

func filterLength(_ *State, v any, _ []any) (any, error) {
	return length(v), nil
}

// isEmpty reports whether v is null, false, the empty string, or an empty
// collection. Zero is not empty.
func isEmpty(v any) bool {
	switch x := normalize(v).(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	case Safe:
		return x == ""
	case int, float64:
		return false
	}

	if _, ok := asList(v); ok {
		return length(v) == 0
	}

	if _, ok := asHash(v); ok {
		return length(v) == 0
	}

	return false
}

func filterDefault(_ *State, v any, args []any) (any, error) {
	if isEmpty(v) {
		if d := arg(args, 0); d != nil || len(args) > 0 {
			return d, nil
		}

		return "", nil
	}

	return v, nil
}

func filterJoin(_ *State, v any, args []any) (any, error) {
	glue := toString(arg(args, 0))

	var parts []string
	for _, e := range iterate(v) {
		parts = append(parts, toString(e))
	}

	return strings.Join(parts, glue), nil
}

func filterKeys(_ *State, v any, _ []any) (any, error) {
	keys := []any{}
	for k := range iterate(v) {
		keys = append(keys, k)
	}

	return keys, nil
}

func filterFirst(_ *State, v any, _ []any) (any, error) {
	if s, ok := asString(normalize(v)); ok {
		r, n := utf8.DecodeRuneInString(s)
		if n == 0 {
			return "", nil
		}

		return string(r), nil
	}

	for _, e := range iterate(v) {
		return e, nil
	}

	return nil, nil
}

func filterLast(_ *State, v any, _ []any) (any, error) {
	if s, ok := asString(normalize(v)); ok {
		r, n := utf8.DecodeLastRuneInString(s)
		if n == 0 {
			return "", nil
		}

		return string(r), nil
	}

	var last any
	for _, e := range iterate(v) {
		last = e
	}

	return last, nil
}

func filterReverse(_ *State, v any, _ []any) (any, error) {
	if s, ok := asString(normalize(v)); ok {
		r := []rune(s)
		slices.Reverse(r)

		return string(r), nil
	}

	if h, ok := asHash(v); ok {
		out := NewHash()
		keys := h.Keys()

		for i := len(keys) - 1; i >= 0; i-- {
			val, _ := h.Get(keys[i])
			out.Set(keys[i], val)
		}

		return out, nil
	}

	list := collect(v)
	slices.Reverse(list)

	return list, nil
}

func collect(v any) []any {
	list := []any{}
	for _, e := range iterate(v) {
		list = append(list, e)
	}

	return list
}

// filterSort orders values ascending. Hashes keep their keys.
func filterSort(_ *State, v any, _ []any) (any, error) {
	if h, ok := asHash(v); ok {
		keys := h.Keys()
		slices.SortStableFunc(keys, func(a, b string) int {
			x, _ := h.Get(a)
			y, _ := h.Get(b)

			return compare(x, y)
		})

		out := NewHash()
		for _, k := range keys {
			val, _ := h.Get(k)
			out.Set(k, val)
		}

		return out, nil
	}

	list := collect(v)
	slices.SortStableFunc(list, compare)

	return list, nil
}

// sliceBounds converts a start and optional length, either of which may be
// negative to count from the end, into bounds within n.
func sliceBounds(n int, start, length any) (int, int) {
	from := toInt(start)
	if from < 0 {
		from = max(n+from, 0)
	}

	from = min(from, n)

	to := n

	if length != nil {
		l := toInt(length)
		if l < 0 {
			to = max(n+l, from)
		} else {
			to = min(from+l, n)
		}
	}

	return from, to
}

func filterSlice(_ *State, v any, args []any) (any, error) {
	start, length := arg(args, 0), arg(args, 1)

	if s, ok := asString(normalize(v)); ok {
		r := []rune(s)
		from, to := sliceBounds(len(r), start, length)

		return string(r[from:to]), nil
	}

	if h, ok := asHash(v); ok {
		keys := h.Keys()
		from, to := sliceBounds(len(keys), start, length)

		out := NewHash()
		for _, k := range keys[from:to] {
			val, _ := h.Get(k)
			out.Set(k, val)
		}

		return out, nil
	}

	list := collect(v)
	from, to := sliceBounds(len(list), start, length)

	return slices.Clone(list[from:to]), nil
}

// jsonEncode encodes v as JSON without escaping HTML characters.
func jsonEncode(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(normalize(v)); err != nil {
		return nil, ErrRuntime.Wrap(err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func filterJSON(_ *State, v any, _ []any) (any, error) {
	b, err := jsonEncode(v)
	if err != nil {
		return nil, err
	}

	return string(b), nil
}

func filterFormat(_ *State, v any, args []any) (any, error) {
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = normalize(a)
	}

	return fmt.Sprintf(toString(v), values...), nil
}

// filterReplace replaces each key of a hash with its value, in key order.
func filterReplace(_ *State, v any, args []any) (any, error) {
	h, ok := asHash(arg(args, 0))
	if !ok {
		return nil, ErrRuntime.Errorf(
			`The "replace" filter expects a hash as replacement values, got "%s"`,
			typeName(arg(args, 0)))
	}

	pairs := make([]string, 0, 2*h.Len())
	for k, r := range h.All() {
		pairs = append(pairs, k, toString(r))
	}

	return strings.NewReplacer(pairs...).Replace(toString(v)), nil
}

func filterAbs(_ *State, v any, _ []any) (any, error) {
	n, ok := toNumber(v)
	if !ok {
		return nil, ErrRuntime.Errorf(`Unable to take the absolute value of a %s`, typeName(v))
	}

	if i, ok := n.(int); ok {
		return max(i, -i), nil
	}

	return math.Abs(toFloat(n)), nil
}

func filterRound(_ *State, v any, args []any) (any, error) {
	precision := toInt(arg(args, 0))
	method := "common"

	if m := arg(args, 1); m != nil {
		method = toString(m)
	}

	f := toFloat(v)
	scale := math.Pow(10, float64(precision))

	switch method {
	case "common":
		return math.Round(f*scale) / scale, nil
	case "ceil":
		return math.Ceil(f*scale) / scale, nil
	case "floor":
		return math.Floor(f*scale) / scale, nil
	default:
		return nil, ErrRuntime.Errorf(
			`The round filter only supports the "common", "ceil", and "floor" methods`)
	}
}

func filterNl2br(_ *State, v any, _ []any) (any, error) {
	return Safe(strings.ReplaceAll(escape(v), "\n", "<br />\n")), nil
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string { return tagPattern.ReplaceAllString(s, "") }

func rawURLEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func filterURLEncode(_ *State, v any, _ []any) (any, error) {
	h, ok := asHash(v)
	if !ok {
		return rawURLEncode(toString(v)), nil
	}

	parts := make([]string, 0, h.Len())
	for k, val := range h.All() {
		parts = append(parts, rawURLEncode(k)+"="+rawURLEncode(toString(val)))
	}

	return strings.Join(parts, "&"), nil
}

func fnBlock(s *State, args []any) (any, error) {
	return s.RenderBlock(toString(arg(args, 0)))
}

func fnInclude(s *State, args []any) (any, error) {
	var vars map[string]any

	if v := arg(args, 1); v != nil {
		h, ok := asHash(v)
		if !ok {
			return nil, ErrRuntime.Errorf(
				`Variables passed to "include" must be a hash, got "%s"`, typeName(v))
		}

		vars = h.Map()
	}

	only := len(args) > 2 && args[2] != nil && !toBool(args[2])

	return s.Include(arg(args, 0), vars, only)
}

func fnRange(_ *State, args []any) (any, error) {
	return makeRange(arg(args, 0), arg(args, 1), arg(args, 2))
}

func fnConstant(s *State, args []any) (any, error) {
	name := toString(arg(args, 0))

	if v, ok := s.env.globals[name]; ok {
		return v, nil
	}

	return nil, ErrUndefined.Errorf(`Constant "%s" is undefined`, name)
}

func fnCycle(_ *State, args []any) (any, error) {
	values := collect(arg(args, 0))
	if len(values) == 0 {
		return nil, nil
	}

	i := toInt(arg(args, 1)) % len(values)
	if i < 0 {
		i += len(values)
	}

	return values[i], nil
}

// extremum returns a function yielding the largest (sign 1) or smallest
// (sign -1) of its arguments, or of the single collection it is given.
func extremum(sign int) FunctionFunc {
	return func(_ *State, args []any) (any, error) {
		values := args
		if len(args) == 1 {
			if _, ok := asString(normalize(args[0])); !ok {
				values = collect(args[0])
			}
		}

		if len(values) == 0 {
			return nil, nil
		}

		best := values[0]
		for _, v := range values[1:] {
			if compare(v, best)*sign > 0 {
				best = v
			}
		}

		return best, nil
	}
}
