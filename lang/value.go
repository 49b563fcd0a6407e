package lang

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Safe is a string that is already escaped for output and is written
// verbatim by print statements.
type Safe string

// Hash is an insertion-ordered map with string keys, the value of hash
// literals and of ordered data loaded from files.
type Hash struct {
	values map[string]any
	keys   []string
}

// NewHash returns an empty Hash.
func NewHash() *Hash {
	return &Hash{values: map[string]any{}}
}

// HashOf returns a Hash with the given key/value pairs in order.
func HashOf(pairs ...any) *Hash {
	h := NewHash()
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Set(toString(pairs[i]), pairs[i+1])
	}

	return h
}

// Set stores v under k, appending k if it is new.
func (h *Hash) Set(k string, v any) {
	if _, ok := h.values[k]; !ok {
		h.keys = append(h.keys, k)
	}

	h.values[k] = v
}

// Get returns the value stored under k.
func (h *Hash) Get(k string) (any, bool) {
	if h == nil {
		return nil, false
	}

	v, ok := h.values[k]

	return v, ok
}

// Delete removes k.
func (h *Hash) Delete(k string) {
	if _, ok := h.values[k]; !ok {
		return
	}

	delete(h.values, k)
	h.keys = slices.DeleteFunc(h.keys, func(s string) bool { return s == k })
}

// Len returns the number of entries.
func (h *Hash) Len() int {
	if h == nil {
		return 0
	}

	return len(h.keys)
}

// Keys returns the keys in insertion order.
func (h *Hash) Keys() []string {
	if h == nil {
		return nil
	}

	return slices.Clone(h.keys)
}

// All iterates over the entries in insertion order.
func (h *Hash) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if h == nil {
			return
		}

		for _, k := range h.keys {
			if !yield(k, h.values[k]) {
				return
			}
		}
	}
}

// Clone returns a shallow copy.
func (h *Hash) Clone() *Hash {
	if h == nil {
		return NewHash()
	}

	return &Hash{values: maps.Clone(h.values), keys: slices.Clone(h.keys)}
}

// Map returns the entries as a plain map.
func (h *Hash) Map() map[string]any {
	if h == nil {
		return map[string]any{}
	}

	return maps.Clone(h.values)
}

// MarshalJSON encodes the hash as a JSON object preserving key order.
func (h *Hash) MarshalJSON() ([]byte, error) {
	var sb strings.Builder

	sb.WriteByte('{')

	for i, k := range h.Keys() {
		if i > 0 {
			sb.WriteByte(',')
		}

		key, err := jsonEncode(k)
		if err != nil {
			return nil, err
		}

		val, err := jsonEncode(h.values[k])
		if err != nil {
			return nil, err
		}

		sb.Write(key)
		sb.WriteByte(':')
		sb.Write(val)
	}

	sb.WriteByte('}')

	return []byte(sb.String()), nil
}

// normalize converts Go numeric types to int or float64 and leaves every
// other value untouched.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, int, float64, string, Safe, []any, *Hash, map[string]any:
		return v
	case int8:
		return int(x)
	case int16:
		return int(x)
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint8:
		return int(x)
	case uint16:
		return int(x)
	case uint32:
		return int(x)
	case uint:
		return int(x)
	case uint64:
		return int(x)
	case float32:
		return float64(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64, reflect.Uintptr:
		return int(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}

	return v
}

// typeName returns a short name for the dynamic type of v as used in
// diagnostics.
func typeName(v any) string {
	switch v := normalize(v).(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int:
		return "integer"
	case float64:
		return "float"
	case string, Safe:
		return "string"
	case []any, *Hash, map[string]any:
		return "array"
	default:
		return reflect.TypeOf(v).String()
	}
}

// toBool converts v to a boolean with PHP semantics: nil, false, 0, 0.0,
// "", "0", and empty collections are false.
func toBool(v any) bool {
	switch x := normalize(v).(type) {
	case nil:
		return false
	case bool:
		return x
	case int:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != "" && x != "0"
	case Safe:
		return x != "" && x != "0"
	case []any:
		return len(x) > 0
	case *Hash:
		return x.Len() > 0
	case map[string]any:
		return len(x) > 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}

	return true
}

// toString converts v to its output form: nil and false are "", true is
// "1", floats use the shortest representation.
func toString(v any) string {
	switch x := normalize(v).(type) {
	case nil:
		return ""
	case bool:
		if x {
			return "1"
		}

		return ""
	case int:
		return strconv.Itoa(x)
	case float64:
		return formatFloat(x)
	case string:
		return x
	case Safe:
		return string(x)
	case []any, *Hash, map[string]any:
		return "Array"
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}

	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	case math.IsNaN(f):
		return "NAN"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatFloat(f, 'f', 0, 64)
	case math.Abs(f) >= 1e15 || math.Abs(f) < 1e-4:
		return strings.ToUpper(strconv.FormatFloat(f, 'g', 14, 64))
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

// toNumber converts v to an int or float64. Strings are parsed, and the
// second result is false for values without a numeric interpretation.
func toNumber(v any) (any, bool) {
	switch x := normalize(v).(type) {
	case nil:
		return 0, true
	case bool:
		if x {
			return 1, true
		}

		return 0, true
	case int, float64:
		return x, true
	case string:
		return parseNumber(x)
	case Safe:
		return parseNumber(string(x))
	}

	return nil, false
}

func parseNumber(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}

	return nil, false
}

func isNumeric(v any) bool {
	switch normalize(v).(type) {
	case int, float64:
		return true
	case string, Safe:
		_, ok := toNumber(v)

		return ok
	}

	return false
}

func toInt(v any) int {
	n, _ := toNumber(v)
	switch x := n.(type) {
	case int:
		return x
	case float64:
		return int(x)
	}

	return 0
}

func toFloat(v any) float64 {
	n, _ := toNumber(v)
	switch x := n.(type) {
	case int:
		return float64(x)
	case float64:
		return x
	}

	return 0
}

// looseEqual implements ==.
func looseEqual(a, b any) bool {
	a, b = normalize(a), normalize(b)

	if a == nil || b == nil {
		if a == nil && b == nil {
			return true
		}

		other := a
		if a == nil {
			other = b
		}

		return !toBool(other) && !isNumericString(other)
	}

	if x, ok := a.(bool); ok {
		return x == toBool(b)
	}

	if y, ok := b.(bool); ok {
		return y == toBool(a)
	}

	if isNumeric(a) && isNumeric(b) {
		return compareNumbers(a, b) == 0
	}

	if sa, ok := asString(a); ok {
		if sb, ok := asString(b); ok {
			return sa == sb
		}

		return false
	}

	la, aok := asList(a)
	lb, bok := asList(b)

	if aok && bok {
		if len(la) != len(lb) {
			return false
		}

		for i := range la {
			if !looseEqual(la[i], lb[i]) {
				return false
			}
		}

		return true
	}

	ha, aok := asHash(a)
	hb, bok := asHash(b)

	if aok && bok {
		if ha.Len() != hb.Len() {
			return false
		}

		for k, v := range ha.All() {
			w, ok := hb.Get(k)
			if !ok || !looseEqual(v, w) {
				return false
			}
		}

		return true
	}

	return reflect.DeepEqual(a, b)
}

// isNumericString reports whether v is a string holding "0", which compares
// unequal to nil even though it is falsy.
func isNumericString(v any) bool {
	s, ok := asString(v)

	return ok && s == "0"
}

// identical implements ===.
func identical(a, b any) bool {
	a, b = normalize(a), normalize(b)

	if sa, ok := a.(Safe); ok {
		a = string(sa)
	}

	if sb, ok := b.(Safe); ok {
		b = string(sb)
	}

	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}

	switch a.(type) {
	case nil, bool, int, float64, string:
		return a == b
	}

	return reflect.DeepEqual(a, b)
}

// compare orders a and b, numerically when both are numeric and as strings
// otherwise.
func compare(a, b any) int {
	if isNumeric(a) && isNumeric(b) {
		return compareNumbers(a, b)
	}

	if _, ok := normalize(a).(bool); ok {
		return cmp.Compare(toInt(toBool(a)), toInt(toBool(b)))
	}

	if _, ok := normalize(b).(bool); ok {
		return cmp.Compare(toInt(toBool(a)), toInt(toBool(b)))
	}

	return strings.Compare(toString(a), toString(b))
}

func compareNumbers(a, b any) int {
	na, _ := toNumber(a)
	nb, _ := toNumber(b)

	if x, ok := na.(int); ok {
		if y, ok := nb.(int); ok {
			return cmp.Compare(x, y)
		}
	}

	return cmp.Compare(toFloat(na), toFloat(nb))
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case Safe:
		return string(x), true
	}

	return "", false
}

func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case *Hash, map[string]any, string, Safe, nil:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}

	return list, true
}

func asHash(v any) (*Hash, bool) {
	switch x := v.(type) {
	case *Hash:
		return x, true
	case map[string]any:
		h := NewHash()
		for _, k := range slices.Sorted(maps.Keys(x)) {
			h.Set(k, x[k])
		}

		return h, true
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false
	}

	h := NewHash()

	keys := rv.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return strings.Compare(toString(a.Interface()), toString(b.Interface()))
	})

	for _, k := range keys {
		h.Set(toString(k.Interface()), rv.MapIndex(k).Interface())
	}

	return h, true
}

// iterate yields the key/value pairs of a list or map-like value. Values
// that are not iterable yield nothing.
func iterate(v any) iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		switch x := v.(type) {
		case nil:
			return
		case iter.Seq2[any, any]:
			x(yield)

			return
		case iter.Seq[any]:
			i := 0
			for e := range x {
				if !yield(i, e) {
					return
				}
				i++
			}

			return
		}

		if list, ok := asList(v); ok {
			for i, e := range list {
				if !yield(i, e) {
					return
				}
			}

			return
		}

		if h, ok := asHash(v); ok {
			for k, e := range h.All() {
				if !yield(k, e) {
					return
				}
			}
		}
	}
}

// length returns the number of elements of a collection or the number of
// characters of a string.
func length(v any) int {
	switch x := normalize(v).(type) {
	case nil:
		return 0
	case string:
		return len([]rune(x))
	case Safe:
		return len([]rune(string(x)))
	case int, float64, bool:
		return len([]rune(toString(x)))
	case []any:
		return len(x)
	case *Hash:
		return x.Len()
	case map[string]any:
		return len(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len()
	}

	return 1
}

// contains implements the in operator.
func contains(needle, haystack any) bool {
	if s, ok := asString(normalize(haystack)); ok {
		return strings.Contains(s, toString(needle))
	}

	for _, v := range iterate(haystack) {
		if looseEqual(needle, v) {
			return true
		}
	}

	return false
}

// -- arithmetic --------------------------------------------------------------

func numericOperands(op Op, a, b any) (any, any, error) {
	na, ok := toNumber(a)
	if !ok {
		return nil, nil, ErrRuntime.Errorf(
			`Unsupported operand types: %s %s %s`, typeName(a), op, typeName(b))
	}

	nb, ok := toNumber(b)
	if !ok {
		return nil, nil, ErrRuntime.Errorf(
			`Unsupported operand types: %s %s %s`, typeName(a), op, typeName(b))
	}

	return na, nb, nil
}

// arithmetic evaluates the numeric binary operators. Results stay integers
// when both operands are integers and the result is exact.
func arithmetic(op Op, a, b any) (any, error) {
	na, nb, err := numericOperands(op, a, b)
	if err != nil {
		return nil, err
	}

	x, xInt := na.(int)
	y, yInt := nb.(int)
	both := xInt && yInt
	fx, fy := toFloat(na), toFloat(nb)

	switch op {
	case OpAdd:
		if both {
			return x + y, nil
		}

		return fx + fy, nil

	case OpSub:
		if both {
			return x - y, nil
		}

		return fx - fy, nil

	case OpMul:
		if both {
			return x * y, nil
		}

		return fx * fy, nil

	case OpDiv:
		if fy == 0 {
			return nil, ErrRuntime.Errorf("Division by zero")
		}

		if both && x%y == 0 {
			return x / y, nil
		}

		return fx / fy, nil

	case OpFloorDiv:
		if fy == 0 {
			return nil, ErrRuntime.Errorf("Division by zero")
		}

		return int(math.Floor(fx / fy)), nil

	case OpMod:
		if toInt(nb) == 0 {
			return nil, ErrRuntime.Errorf("Modulo by zero")
		}

		return toInt(na) % toInt(nb), nil

	case OpPow:
		if both && y >= 0 {
			r := 1
			for range y {
				r *= x
			}

			return r, nil
		}

		return math.Pow(fx, fy), nil
	}

	return nil, ErrLogic.Errorf(`Unknown arithmetic operator "%s"`, op)
}

// makeRange returns the inclusive sequence from lo to hi. Single-character
// strings produce a character range.
func makeRange(lo, hi, step any) ([]any, error) {
	st := 1
	if step != nil {
		st = toInt(step)
	}

	if st == 0 {
		return nil, ErrRuntime.Errorf("The step of a range cannot be zero")
	}

	st = max(st, -st)

	ls, lok := asString(normalize(lo))
	hs, hok := asString(normalize(hi))

	if lok && hok && len(ls) == 1 && len(hs) == 1 && !isDigit(ls[0]) {
		var out []any

		a, b := int(ls[0]), int(hs[0])
		for i := a; (a <= b && i <= b) || (a > b && i >= b); {
			out = append(out, string(rune(i)))
			if a <= b {
				i += st
			} else {
				i -= st
			}
		}

		return out, nil
	}

	if !isNumeric(lo) || !isNumeric(hi) {
		return nil, ErrRuntime.Errorf(
			"Unsupported range bounds: %s .. %s", typeName(lo), typeName(hi))
	}

	a, b := toInt(lo), toInt(hi)

	out := make([]any, 0, max(b-a, a-b)/st+1)
	if a <= b {
		for i := a; i <= b; i += st {
			out = append(out, i)
		}
	} else {
		for i := a; i >= b; i -= st {
			out = append(out, i)
		}
	}

	return out, nil
}

// htmlEscaper converts special characters to HTML entities, quotes included.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

func escapeHTML(s string) string { return htmlEscaper.Replace(s) }

// escape returns the output form of v for print statements.
func escape(v any) string {
	if s, ok := v.(Safe); ok {
		return string(s)
	}

	return escapeHTML(toString(v))
}
