package lang

// FilterFunc implements a filter. v is the filtered value and args are the
// arguments in parameter order.
type FilterFunc func(s *State, v any, args []any) (any, error)

// FunctionFunc implements a template function.
type FunctionFunc func(s *State, args []any) (any, error)

// Filter is a named value transformation applied with the | operator.
//
// Params names the arguments after the filtered value, enabling named
// arguments in templates.
type Filter struct {
	Fn     FilterFunc
	Name   string
	Params []string
}

// Function is a named callable.
type Function struct {
	Fn     FunctionFunc
	Name   string
	Params []string
}

// Extension contributes tags, filters, functions, operators, and globals to
// an [Environment].
type Extension interface {
	Name() string
	Tags() []TagParser
	Filters() []Filter
	Functions() []Function
	UnaryOperators() []UnaryOperator
	BinaryOperators() []BinaryOperator
	Globals() map[string]any
}

// BaseExtension implements [Extension] with no contributions, for embedding.
type BaseExtension struct{}

func (BaseExtension) Tags() []TagParser                 { return nil }
func (BaseExtension) Filters() []Filter                 { return nil }
func (BaseExtension) Functions() []Function             { return nil }
func (BaseExtension) UnaryOperators() []UnaryOperator   { return nil }
func (BaseExtension) BinaryOperators() []BinaryOperator { return nil }
func (BaseExtension) Globals() map[string]any           { return nil }
