package lang

import (
	"cmp"
	"maps"
	"slices"
	"strings"
)

// Assoc is the associativity of a binary operator.
type Assoc int

const (
	AssocLeft Assoc = iota
	AssocRight
)

// Op identifies the semantics of an operator. The set is closed: every Op
// has exactly one evaluation rule in the interpreter.
type Op int

const (
	OpInvalid Op = iota

	// unary
	OpNot
	OpNeg
	OpPos

	// binary
	OpOr
	OpAnd
	OpEqual
	OpNotEqual
	OpIdentical
	OpNotIdentical
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpIn
	OpNotIn
	OpRange
	OpAdd
	OpSub
	OpConcat
	OpMul
	OpDiv
	OpFloorDiv
	OpMod
	OpPow
)

var opNames = [...]string{
	OpInvalid:      "invalid",
	OpNot:          "not",
	OpNeg:          "-",
	OpPos:          "+",
	OpOr:           "or",
	OpAnd:          "and",
	OpEqual:        "==",
	OpNotEqual:     "!=",
	OpIdentical:    "===",
	OpNotIdentical: "!==",
	OpLess:         "<",
	OpGreater:      ">",
	OpLessEqual:    "<=",
	OpGreaterEqual: ">=",
	OpIn:           "in",
	OpNotIn:        "not in",
	OpRange:        "..",
	OpAdd:          "+",
	OpSub:          "-",
	OpConcat:       "~",
	OpMul:          "*",
	OpDiv:          "/",
	OpFloorDiv:     "//",
	OpMod:          "%",
	OpPow:          "**",
}

// String returns the canonical symbol of the operator.
func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return opNames[OpInvalid]
	}

	return opNames[o]
}

// IsUnary reports whether o is a prefix operator.
func (o Op) IsUnary() bool { return o >= OpNot && o <= OpPos }

// BinaryOperator describes an infix operator.
type BinaryOperator struct {
	Symbol     string
	Precedence int
	Assoc      Assoc
	Op         Op
}

// UnaryOperator describes a prefix operator.
type UnaryOperator struct {
	Symbol     string
	Precedence int
	Op         Op
}

// coreUnaryOperators returns the built-in prefix operators.
func coreUnaryOperators() []UnaryOperator {
	return []UnaryOperator{
		{"not", 50, OpNot},
		{"!", 50, OpNot},
		{"-", 500, OpNeg},
		{"+", 500, OpPos},
	}
}

// coreBinaryOperators returns the built-in infix operators.
func coreBinaryOperators() []BinaryOperator {
	return []BinaryOperator{
		{"or", 10, AssocLeft, OpOr},
		{"||", 10, AssocLeft, OpOr},
		{"and", 15, AssocLeft, OpAnd},
		{"&&", 15, AssocLeft, OpAnd},
		{"==", 20, AssocLeft, OpEqual},
		{"!=", 20, AssocLeft, OpNotEqual},
		{"===", 20, AssocLeft, OpIdentical},
		{"!==", 20, AssocLeft, OpNotIdentical},
		{"<", 20, AssocLeft, OpLess},
		{">", 20, AssocLeft, OpGreater},
		{"<=", 20, AssocLeft, OpLessEqual},
		{">=", 20, AssocLeft, OpGreaterEqual},
		{"in", 20, AssocLeft, OpIn},
		{"not in", 20, AssocLeft, OpNotIn},
		{"..", 25, AssocLeft, OpRange},
		{"+", 30, AssocLeft, OpAdd},
		{"-", 30, AssocLeft, OpSub},
		{"~", 40, AssocLeft, OpConcat},
		{"*", 60, AssocLeft, OpMul},
		{"/", 60, AssocLeft, OpDiv},
		{"//", 60, AssocLeft, OpFloorDiv},
		{"%", 60, AssocLeft, OpMod},
		{"**", 200, AssocRight, OpPow},
	}
}

// operatorTable is the sealed set of operators known to an environment.
type operatorTable struct {
	unary  map[string]UnaryOperator
	binary map[string]BinaryOperator
}

func newOperatorTable(
	unary []UnaryOperator,
	binary []BinaryOperator,
) *operatorTable {
	t := &operatorTable{
		unary:  make(map[string]UnaryOperator, len(unary)),
		binary: make(map[string]BinaryOperator, len(binary)),
	}

	for _, op := range unary {
		t.unary[op.Symbol] = op
	}

	for _, op := range binary {
		t.binary[op.Symbol] = op
	}

	return t
}

// symbols returns every operator symbol plus the assignment and hash-pair
// markers, longest first, as the lexer must try them.
func (t *operatorTable) symbols() []string {
	set := map[string]struct{}{"=": {}, "=>": {}}

	for sym := range t.unary {
		set[sym] = struct{}{}
	}

	for sym := range t.binary {
		set[sym] = struct{}{}
	}

	return slices.SortedFunc(maps.Keys(set), func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}

		return strings.Compare(a, b)
	})
}
