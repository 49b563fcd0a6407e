package lang

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Attributer is implemented by values that resolve their own attributes.
// The boolean result reports whether the attribute exists.
type Attributer interface {
	Attribute(name string) (any, bool)
}

// typeInfo is the reflection table of one Go type: exported fields and
// methods keyed by lowercase name.
type typeInfo struct {
	fields  map[string][]int
	methods map[string]int
}

// attributes resolves attributes of template values. It caches the
// reflection table of every type it has seen.
type attributes struct {
	types  sync.Map // reflect.Type -> *typeInfo
	strict bool
}

func (a *attributes) info(t reflect.Type) *typeInfo {
	if ti, ok := a.types.Load(t); ok {
		return ti.(*typeInfo) //nolint:forcetypeassert
	}

	ti := &typeInfo{fields: map[string][]int{}, methods: map[string]int{}}

	for i := range t.NumMethod() {
		m := t.Method(i)
		if m.IsExported() {
			ti.methods[strings.ToLower(m.Name)] = i
		}
	}

	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}

	if st.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(st) {
			if !f.IsExported() {
				continue
			}

			key := strings.ToLower(f.Name)
			if _, dup := ti.fields[key]; !dup {
				ti.fields[key] = f.Index
			}
		}
	}

	actual, _ := a.types.LoadOrStore(t, ti)

	return actual.(*typeInfo) //nolint:forcetypeassert
}

// resolve returns the attribute attr of obj, with args passed to methods.
func (a *attributes) resolve(
	obj any,
	attr any,
	args []any,
	call CallType,
) (any, error) {
	name := toString(attr)

	if call != CallMethod {
		v, ok, isArray := lookupKey(obj, attr)

		switch {
		case ok:
			return v, nil

		case isArray:
			return a.missing(ErrUndefined.Errorf(
				`Key "%s" for array with keys "%s" does not exist`,
				name, strings.Join(arrayKeys(obj), ", ")))

		case call == CallArray && obj != nil:
			return a.missing(ErrUndefined.Errorf(
				`Impossible to access a key ("%s") on a %s variable ("%s")`,
				name, typeName(obj), toString(obj)))
		}
	}

	if obj == nil {
		return a.missing(ErrUndefined.Errorf(
			`Impossible to access an attribute ("%s") on a null variable`, name))
	}

	if at, ok := obj.(Attributer); ok && call != CallMethod {
		if v, found := at.Attribute(name); found {
			return v, nil
		}
	}

	rv := reflect.ValueOf(obj)
	if !isObject(rv) {
		what := "access an attribute"
		if call == CallMethod {
			what = "invoke a method"
		}

		return a.missing(ErrUndefined.Errorf(
			`Impossible to %s ("%s") on a %s variable ("%s")`,
			what, name, typeName(obj), toString(obj)))
	}

	ti := a.info(rv.Type())
	key := strings.ToLower(name)

	if call != CallMethod {
		if idx, ok := ti.fields[key]; ok {
			sv := rv
			if sv.Kind() == reflect.Pointer {
				if sv.IsNil() {
					return a.missing(ErrUndefined.Errorf(
						`Impossible to access an attribute ("%s") on a null variable`, name))
				}

				sv = sv.Elem()
			}

			if f, err := sv.FieldByIndexErr(idx); err == nil {
				return f.Interface(), nil
			}
		}
	}

	for _, m := range []string{key, "get" + key, "is" + key} {
		if idx, ok := ti.methods[m]; ok {
			return callMethod(rv.Method(idx), args)
		}
	}

	return a.missing(ErrUndefined.Errorf(
		`Method "%s" for object "%s" does not exist`, name, rv.Type()))
}

// missing returns err in strict mode and nil otherwise.
func (a *attributes) missing(err *Error) (any, error) {
	if a.strict {
		return nil, err
	}

	return nil, nil
}

func isObject(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Struct, reflect.Pointer, reflect.Interface:
		return true
	}

	return rv.IsValid() && rv.NumMethod() > 0
}

// lookupKey indexes list and map-like values. isArray reports whether obj
// is indexable at all.
func lookupKey(obj, attr any) (v any, ok, isArray bool) {
	switch x := obj.(type) {
	case *Hash:
		v, ok = x.Get(toString(attr))

		return v, ok, true

	case map[string]any:
		v, ok = x[toString(attr)]

		return v, ok, true

	case []any:
		i, isInt := listIndex(attr, len(x))
		if !isInt {
			return nil, false, true
		}

		return x[i], true, true

	case nil, string, Safe:
		return nil, false, false
	}

	rv := reflect.ValueOf(obj)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		i, isInt := listIndex(attr, rv.Len())
		if !isInt {
			return nil, false, true
		}

		return rv.Index(i).Interface(), true, true

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false, true
		}

		kv := reflect.ValueOf(toString(attr)).Convert(rv.Type().Key())

		mv := rv.MapIndex(kv)
		if !mv.IsValid() {
			return nil, false, true
		}

		return mv.Interface(), true, true
	}

	return nil, false, false
}

func listIndex(attr any, n int) (int, bool) {
	num, ok := toNumber(attr)
	if !ok {
		return 0, false
	}

	i, isInt := num.(int)
	if !isInt || i < 0 || i >= n {
		return 0, false
	}

	return i, true
}

func arrayKeys(obj any) []string {
	if h, ok := asHash(obj); ok {
		return h.Keys()
	}

	keys := make([]string, length(obj))
	for i := range keys {
		keys[i] = strconv.Itoa(i)
	}

	return keys
}

// callMethod invokes fn with args converted to its parameter types. A
// trailing error result is returned as the call's error.
func callMethod(fn reflect.Value, args []any) (any, error) {
	ft := fn.Type()

	in, err := convertArgs(ft, args)
	if err != nil {
		return nil, err
	}

	out := fn.Call(in)

	if n := len(out); n > 0 && ft.Out(n-1) == reflect.TypeFor[error]() {
		if e, _ := out[n-1].Interface().(error); e != nil {
			return nil, e
		}

		out = out[:n-1]
	}

	if len(out) == 0 {
		return nil, nil
	}

	return out[0].Interface(), nil
}

func convertArgs(ft reflect.Type, args []any) ([]reflect.Value, error) {
	nin := ft.NumIn()
	if ft.IsVariadic() {
		if len(args) < nin-1 {
			return nil, ErrRuntime.Errorf(
				"Too few arguments: expected at least %d, got %d", nin-1, len(args))
		}
	} else if len(args) != nin {
		return nil, ErrRuntime.Errorf(
			"Wrong number of arguments: expected %d, got %d", nin, len(args))
	}

	in := make([]reflect.Value, len(args))

	for i, arg := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= nin-1 {
			pt = ft.In(nin - 1).Elem()
		} else {
			pt = ft.In(i)
		}

		v, err := convertValue(arg, pt)
		if err != nil {
			return nil, err
		}

		in[i] = v
	}

	return in, nil
}

func convertValue(arg any, pt reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(pt), nil
	}

	av := reflect.ValueOf(arg)
	if av.Type().AssignableTo(pt) {
		return av, nil
	}

	switch pt.Kind() {
	case reflect.String:
		return reflect.ValueOf(toString(arg)).Convert(pt), nil
	case reflect.Bool:
		return reflect.ValueOf(toBool(arg)).Convert(pt), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return reflect.ValueOf(toInt(arg)).Convert(pt), nil
	case reflect.Float32, reflect.Float64:
		return reflect.ValueOf(toFloat(arg)).Convert(pt), nil
	}

	if av.Type().ConvertibleTo(pt) {
		return av.Convert(pt), nil
	}

	return reflect.Value{}, ErrRuntime.Errorf(
		"Cannot use %s as argument of type %s", typeName(arg), pt)
}
