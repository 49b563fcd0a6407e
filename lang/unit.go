package lang

import (
	"maps"
	"slices"
	"sort"
)

// opcode is the kind of an executable instruction.
type opcode int

const (
	opText opcode = iota
	opPrint
	opSet
	opIf
	opForeach
	opWhile
	opDisplayBlock
	opDisplayParentBlock
)

// instr is one executable statement of a compiled template.
type instr struct {
	expr   *expr     // printed value, loop sequence, or loop condition
	exprs  []*expr   // assigned values, or if conditions
	names  []string  // assigned names, or loop key and value
	bodies [][]instr // if branches (else last), or loop body
	gens   []int     // generated lines of if conditions
	text   string    // literal text, or block name
	op     opcode
	gen    int // generated line of the listing
}

// exprOp is the kind of an executable expression.
type exprOp int

const (
	exConst exprOp = iota
	exName
	exList
	exHash
	exCond
	exUnary
	exBinary
	exAttr
	exFunction
	exFilter
	exParent
)

// expr is an executable expression. Operands are held in args: the
// condition, then and else of a conditional; the single operand of a unary;
// left and right of a binary; target, attribute and call arguments of an
// attribute lookup; the filtered value then arguments of a filter.
type expr struct {
	value    any
	filter   *Filter
	function *Function
	args     []*expr
	keys     []string
	name     string
	op       Op
	call     CallType
	kind     exprOp
}

// Unit is a compiled template: a listing for diagnostics, a map from listing
// lines to template lines, and the procedures an interpreter executes.
//
// A Unit is immutable and may be shared by concurrent renders.
type Unit struct {
	name      string
	source    string
	code      string
	index     int
	debugInfo map[int]int
	genLines  []int
	parent    *expr
	parentGen int
	body      []instr
	blocks    map[string][]instr
	order     []string
}

// Name returns the template name.
func (u *Unit) Name() string { return u.name }

// Index returns the sub-template index within the source.
func (u *Unit) Index() int { return u.index }

// Source returns the normalized template source.
func (u *Unit) Source() string { return u.source }

// Code returns the listing of the compiled template.
func (u *Unit) Code() string { return u.code }

// DebugInfo returns a copy of the map from listing lines to template lines.
func (u *Unit) DebugInfo() map[int]int {
	return maps.Clone(u.debugInfo)
}

// Blocks returns the block names in definition order.
func (u *Unit) Blocks() []string { return slices.Clone(u.order) }

// HasParent reports whether the template extends another.
func (u *Unit) HasParent() bool { return u.parent != nil }

// TemplateLine returns the template line for a listing line: the line
// recorded for the nearest mapped listing line at or before gen.
func (u *Unit) TemplateLine(gen int) int {
	i := sort.SearchInts(u.genLines, gen+1) - 1
	if i < 0 {
		return 0
	}

	return u.debugInfo[u.genLines[i]]
}
