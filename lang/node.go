package lang

import "strconv"

// NodeKind identifies the variant of a [Node]. The set is closed.
type NodeKind int

const (
	// statements
	KindText NodeKind = iota + 1
	KindPrint
	KindSet
	KindIf
	KindForeach
	KindWhile
	KindBlock
	KindBlockReference
	KindParentBlockReference
	KindBody
	KindModule

	// expressions
	KindConstant
	KindName
	KindAssignName
	KindArray
	KindConditional
	KindUnary
	KindBinary
	KindGetAttr
	KindFunctionCall
	KindFilterCall
	KindParent
)

var nodeKindNames = [...]string{
	KindText:                 "Text",
	KindPrint:                "Print",
	KindSet:                  "Set",
	KindIf:                   "If",
	KindForeach:              "Foreach",
	KindWhile:                "While",
	KindBlock:                "Block",
	KindBlockReference:       "BlockReference",
	KindParentBlockReference: "ParentBlockReference",
	KindBody:                 "Body",
	KindModule:               "Module",
	KindConstant:             "Constant",
	KindName:                 "Name",
	KindAssignName:           "AssignName",
	KindArray:                "Array",
	KindConditional:          "Conditional",
	KindUnary:                "Unary",
	KindBinary:               "Binary",
	KindGetAttr:              "GetAttr",
	KindFunctionCall:         "FunctionCall",
	KindFilterCall:           "FilterCall",
	KindParent:               "Parent",
}

func (k NodeKind) String() string {
	if k <= 0 || int(k) >= len(nodeKindNames) {
		return "NodeKind(" + strconv.Itoa(int(k)) + ")"
	}

	return nodeKindNames[k]
}

// Node is an element of the abstract syntax tree. Children are owned by
// exactly one parent.
type Node interface {
	Kind() NodeKind
	// Line is the 1-based template line the node starts on.
	Line() int
	// Tag is the name of the tag that produced the node, if any.
	Tag() string
	// Children returns the direct child nodes in evaluation order.
	Children() []Node
}

// Expr is a [Node] that produces a value.
type Expr interface {
	Node
	expr()
}

// pos is embedded in every node.
type pos struct {
	tag  string
	line int
}

func (p pos) Line() int   { return p.line }
func (p pos) Tag() string { return p.tag }

func at(line int) pos { return pos{line: line} }

func tagged(line int, tag string) pos { return pos{line: line, tag: tag} }

// CallType selects how [GetAttr] resolves its attribute.
type CallType int

const (
	CallAny    CallType = iota // a.b
	CallArray                  // a[b]
	CallMethod                 // a.b()
)

func (c CallType) String() string {
	switch c {
	case CallArray:
		return "array"
	case CallMethod:
		return "method"
	default:
		return "any"
	}
}

// Arg is an argument of a function or filter call. Name is empty for
// positional arguments.
type Arg struct {
	Value Expr
	Name  string
}

func argNodes(args []Arg) []Node {
	nodes := make([]Node, 0, len(args))
	for _, a := range args {
		if a.Value != nil {
			nodes = append(nodes, a.Value)
		}
	}

	return nodes
}

// -- statements --------------------------------------------------------------

// Text outputs literal template text.
type Text struct {
	Data string
	pos
}

// Print outputs the escaped value of an expression.
type Print struct {
	Expr Expr
	pos
}

// Set assigns values to context variables.
type Set struct {
	Names  []*AssignName
	Values []Expr
	pos
}

// IfTest is one condition and body of an [If].
type IfTest struct {
	Cond Expr
	Body Node
}

// If runs the body of the first test whose condition holds, or Else.
type If struct {
	Else  Node
	Tests []IfTest
	pos
}

// Foreach runs Body once per element of Seq.
type Foreach struct {
	Key   *AssignName
	Value *AssignName
	Seq   Expr
	Body  Node
	pos
}

// While runs Body while Cond holds.
type While struct {
	Cond Expr
	Body Node
	pos
}

// Block is a named, overridable region of output.
type Block struct {
	Body Node
	Name string
	pos
}

// BlockReference displays the block with the given name.
type BlockReference struct {
	Name string
	pos
}

// ParentBlockReference displays the parent template's version of a block.
type ParentBlockReference struct {
	Name string
	pos
}

// Body is a sequence of statements.
type Body struct {
	Nodes []Node
	pos
}

// Module is the root of a parsed template.
type Module struct {
	Body   Node
	Parent Expr // nil unless the template extends another
	Blocks []*Block
	Name   string
	Source string
	Index  int
	pos
}

// Block returns the block definition with the given name.
func (m *Module) Block(name string) (*Block, bool) {
	for _, b := range m.Blocks {
		if b.Name == name {
			return b, true
		}
	}

	return nil, false
}

func (*Text) Kind() NodeKind                 { return KindText }
func (*Print) Kind() NodeKind                { return KindPrint }
func (*Set) Kind() NodeKind                  { return KindSet }
func (*If) Kind() NodeKind                   { return KindIf }
func (*Foreach) Kind() NodeKind              { return KindForeach }
func (*While) Kind() NodeKind                { return KindWhile }
func (*Block) Kind() NodeKind                { return KindBlock }
func (*BlockReference) Kind() NodeKind       { return KindBlockReference }
func (*ParentBlockReference) Kind() NodeKind { return KindParentBlockReference }
func (*Body) Kind() NodeKind                 { return KindBody }
func (*Module) Kind() NodeKind               { return KindModule }

func (*Text) Children() []Node                 { return nil }
func (n *Print) Children() []Node              { return []Node{n.Expr} }
func (*BlockReference) Children() []Node       { return nil }
func (*ParentBlockReference) Children() []Node { return nil }
func (n *Body) Children() []Node               { return n.Nodes }
func (n *While) Children() []Node              { return []Node{n.Cond, n.Body} }
func (n *Block) Children() []Node              { return []Node{n.Body} }

func (n *Set) Children() []Node {
	nodes := make([]Node, 0, len(n.Names)+len(n.Values))
	for _, name := range n.Names {
		nodes = append(nodes, name)
	}

	for _, v := range n.Values {
		nodes = append(nodes, v)
	}

	return nodes
}

func (n *If) Children() []Node {
	nodes := make([]Node, 0, 2*len(n.Tests)+1)
	for _, t := range n.Tests {
		nodes = append(nodes, t.Cond, t.Body)
	}

	if n.Else != nil {
		nodes = append(nodes, n.Else)
	}

	return nodes
}

func (n *Foreach) Children() []Node {
	return []Node{n.Key, n.Value, n.Seq, n.Body}
}

func (n *Module) Children() []Node {
	nodes := []Node{n.Body}
	if n.Parent != nil {
		nodes = append(nodes, n.Parent)
	}

	for _, b := range n.Blocks {
		nodes = append(nodes, b)
	}

	return nodes
}

// -- expressions -------------------------------------------------------------

// Constant is a literal value: nil, bool, int, float64, string, or a
// []any / *Hash of constants.
type Constant struct {
	Value any
	pos
}

// Name reads a context variable.
type Name struct {
	Name string
	pos
}

// AssignName is the target of an assignment.
type AssignName struct {
	Name string
	pos
}

// Array is a list literal, or a hash literal when Keys is not nil.
type Array struct {
	Keys   []Expr
	Values []Expr
	pos
}

// IsHash reports whether the literal has explicit keys.
func (n *Array) IsHash() bool { return n.Keys != nil }

// Conditional is the ternary operator.
type Conditional struct {
	Cond Expr
	Then Expr
	Else Expr
	pos
}

// Unary applies a prefix operator.
type Unary struct {
	Operand Expr
	Symbol  string
	Op      Op
	pos
}

// Binary applies an infix operator.
type Binary struct {
	Left   Expr
	Right  Expr
	Symbol string
	Op     Op
	pos
}

// GetAttr resolves an attribute, key, or method of Target.
type GetAttr struct {
	Target Expr
	Attr   Expr
	Args   []Expr
	Call   CallType
	pos
}

// FunctionCall calls a registered function.
type FunctionCall struct {
	Name string
	Args []Arg
	pos
}

// FilterCall applies a registered filter to Target.
type FilterCall struct {
	Target Expr
	Name   string
	Args   []Arg
	pos
}

// Parent renders the parent template's version of the named block.
type Parent struct {
	Name string
	pos
}

func (*Constant) Kind() NodeKind     { return KindConstant }
func (*Name) Kind() NodeKind         { return KindName }
func (*AssignName) Kind() NodeKind   { return KindAssignName }
func (*Array) Kind() NodeKind        { return KindArray }
func (*Conditional) Kind() NodeKind  { return KindConditional }
func (*Unary) Kind() NodeKind        { return KindUnary }
func (*Binary) Kind() NodeKind       { return KindBinary }
func (*GetAttr) Kind() NodeKind      { return KindGetAttr }
func (*FunctionCall) Kind() NodeKind { return KindFunctionCall }
func (*FilterCall) Kind() NodeKind   { return KindFilterCall }
func (*Parent) Kind() NodeKind       { return KindParent }

func (*Constant) Children() []Node     { return nil }
func (*Name) Children() []Node         { return nil }
func (*AssignName) Children() []Node   { return nil }
func (*Parent) Children() []Node       { return nil }
func (n *Unary) Children() []Node      { return []Node{n.Operand} }
func (n *Binary) Children() []Node     { return []Node{n.Left, n.Right} }
func (n *FunctionCall) Children() []Node { return argNodes(n.Args) }

func (n *Array) Children() []Node {
	nodes := make([]Node, 0, len(n.Keys)+len(n.Values))
	for i, v := range n.Values {
		if n.Keys != nil {
			nodes = append(nodes, n.Keys[i])
		}

		nodes = append(nodes, v)
	}

	return nodes
}

func (n *Conditional) Children() []Node {
	return []Node{n.Cond, n.Then, n.Else}
}

func (n *GetAttr) Children() []Node {
	nodes := []Node{n.Target, n.Attr}
	for _, a := range n.Args {
		nodes = append(nodes, a)
	}

	return nodes
}

func (n *FilterCall) Children() []Node {
	return append([]Node{n.Target}, argNodes(n.Args)...)
}

func (*Constant) expr()     {}
func (*Name) expr()         {}
func (*AssignName) expr()   {}
func (*Array) expr()        {}
func (*Conditional) expr()  {}
func (*Unary) expr()        {}
func (*Binary) expr()       {}
func (*GetAttr) expr()      {}
func (*FunctionCall) expr() {}
func (*FilterCall) expr()   {}
func (*Parent) expr()       {}

// Walk traverses the tree rooted at node depth-first, calling fn before
// visiting each node's children. Returning false from fn skips the children.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}

	for _, child := range node.Children() {
		Walk(child, fn)
	}
}
