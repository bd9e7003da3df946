// Package ast implements the typed abstract syntax tree: an
// arena-allocated node tree with a NodeKind tag, a source range, an
// ordered children slice, and a payload chosen by kind. A single concrete
// node type (rather than one struct per statement/expression kind) keeps
// child-slot rewriting simple: the checker inserts Cast nodes by
// replacing a child slot in place.
package ast

import (
	"strconv"

	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/symtab"
	"github.com/Goubermouche/sigma-sub002/internal/types"
)

// NodeKind tags the shape of an AstNode's payload and the meaning of its
// children.
type NodeKind int

const (
	KindProgram NodeKind = iota
	KindFunction
	KindParam // payload nil; Ident+Type live in FunctionPayload.Params instead
	KindBlock
	KindIf
	KindWhile
	KindReturn
	KindVarDecl
	KindExprStmt
	KindLiteral
	KindBoolLiteral
	KindIdent
	KindVariableAccess
	KindNamedTypeExpression
	KindBinary
	KindUnary
	KindAssign
	KindCall
	KindIndex
	KindField
	KindCast
	KindComparison
	KindSizeof
)

// BinaryOp enumerates the binary operators the parser can produce.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpLAnd
	OpLOr
)

// CompareOp enumerates the comparison operators; the checker annotates each
// ComparisonExpression with the dispatched Flavor.
type CompareOp int

const (
	CmpEq CompareOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// CompareFlavor is filled in by the type checker: which comparison family
// to lower a ComparisonExpression to.
type CompareFlavor int

const (
	FlavorUnset CompareFlavor = iota
	FlavorPointer
	FlavorFloat
	FlavorSignedInt
	FlavorUnsignedInt
)

// UnaryOp enumerates the unary operators.
type UnaryOp int

const (
	OpAddr UnaryOp = iota
	OpDeref
	OpNeg
	OpNot
	OpLNot
)

// FunctionPayload is the payload of a KindFunction node: its signature plus
// the has-var-args flag. The function body is the node's Children slice,
// in source order.
type FunctionPayload struct {
	Ident       symtab.Key
	ReturnType  *types.Type
	Params      []Param
	HasVarArgs  bool
}

// Param is one formal parameter: (Type, identifier key).
type Param struct {
	Ident symtab.Key
	Type  *types.Type
}

// CallPayload is the payload of a KindCall node. Signature is filled in by
// overload resolution; it is nil until then.
type CallPayload struct {
	NamespacePath []symtab.Key
	Name          symtab.Key
	Signature     *Signature
}

// Signature is a resolved function signature: used both to declare
// functions and to record which overload a call site picked.
type Signature struct {
	Ident      symtab.Key
	ReturnType *types.Type
	Params     []Param
	HasVarArgs bool
}

// IdentPayload carries an identifier key and, once resolved, a type. Used
// for KindIdent, KindVariableAccess and KindNamedTypeExpression.
type IdentPayload struct {
	Ident symtab.Key
	Type  *types.Type
}

// LiteralPayload carries the interned spelling of a numeric or string
// literal plus its type (initially the lexer's suggested type; the checker
// narrows it in place during literal checking).
type LiteralPayload struct {
	Value symtab.Key
	Type  *types.Type
	IsStr bool
}

// BoolLiteralPayload carries a literal true/false.
type BoolLiteralPayload struct {
	Value bool
}

// CastPayload is the payload of a KindCast node, inserted only by the type
// checker (never by the parser). The single child is the value being cast.
type CastPayload struct {
	From *types.Type
	To   *types.Type
}

// ComparisonPayload is the payload of a KindComparison node.
type ComparisonPayload struct {
	Op     CompareOp
	Flavor CompareFlavor
}

// BinaryPayload is the payload of a KindBinary node.
type BinaryPayload struct {
	Op BinaryOp
}

// UnaryPayload is the payload of a KindUnary node.
type UnaryPayload struct {
	Op UnaryOp
}

// VarDeclPayload is the payload of a KindVarDecl node; Children[0] is the
// initializer expression if HasInit.
type VarDeclPayload struct {
	Ident   symtab.Key
	Type    *types.Type
	HasInit bool
}

// FieldPayload carries a Field node's field name and whether it was
// reached through "->"; the object expression is its child. Index nodes
// have no payload type: their array and index expressions are children.
type FieldPayload struct {
	Field   symtab.Key
	IsArrow bool
}

// SizeofPayload carries the type being measured.
type SizeofPayload struct {
	Target *types.Type
}

// Node is the single arena-allocated AST record. Exactly
// one of the Payload types above is stored in Payload, chosen by Kind.
// Children is never nil-containing: every entry is a non-nil *Node.
type Node struct {
	Kind     NodeKind
	Range    diag.Range
	Children []*Node
	Payload  any

	// Type is the final type assigned by the checker to this node (valid
	// for every expression kind once type checking has completed).
	Type *types.Type
}

// Arena owns every node allocated for one function (or, for top-level
// declarations, one compilation unit). Go's garbage collector reclaims
// the nodes when the Arena itself becomes unreachable; Arena gives
// callers one place to allocate through so a function's whole tree is
// released in one step.
type Arena struct {
	nodes []*Node
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// New allocates a node with the given kind, range and children. Every
// element of children must be non-nil; New panics
// otherwise, since a nil child is a parser bug, not a user error.
func (a *Arena) New(kind NodeKind, r diag.Range, payload any, children ...*Node) *Node {
	for i, c := range children {
		if c == nil {
			panic("ast: nil child at index " + strconv.Itoa(i))
		}
	}
	n := &Node{Kind: kind, Range: r, Payload: payload, Children: children}
	a.nodes = append(a.nodes, n)
	return n
}

// ReplaceChild rewrites parent's child slot at index idx to newChild. Used
// by the type checker to splice in an implicit Cast node.
func (p *Node) ReplaceChild(idx int, newChild *Node) {
	if newChild == nil {
		panic("ast: ReplaceChild with nil")
	}
	p.Children[idx] = newChild
}

// Len reports how many nodes this arena has allocated.
func (a *Arena) Len() int { return len(a.nodes) }
