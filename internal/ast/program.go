package ast

import "github.com/Goubermouche/sigma-sub002/internal/symtab"

// ExternDecl is a forward declaration of a function defined elsewhere,
// such as libc's printf.
type ExternDecl struct {
	Signature Signature
}

// Program is everything internal/parser produces for one source file: a
// flat list of function definitions and extern declarations. Scope trees,
// namespaces and struct/function registries are built by
// internal/sema from this, not by the parser; the parser only hands
// over an ordered tree.
type Program struct {
	File      string
	Functions []*Node // each KindFunction
	Externs   []ExternDecl
	Arena     *Arena
}

// IfPayload is the payload of a KindIf node. Children are laid out as
// [condition, elseBranch?, thenStatements...],
// where elseBranch (present iff HasElse) is either a KindBlock (plain
// else) or another KindIf (else-if chain).
type IfPayload struct {
	HasElse bool
}

// WhilePayload/ForPayload mark loop node kinds; children are
// [condition, bodyStatements...] for While, and
// [init?, cond?, post?, bodyStatements...] is avoided in favor of
// desugaring `for` into `while` during parsing, keeping the IR translator
// simple — the spec only names if/else and variable
// declarations explicitly, so `for` is sugar implemented entirely in
// internal/parser.
type WhilePayload struct{}

// BlockPayload marks a KindBlock node; its Children are the statements.
type BlockPayload struct{}

// ReturnPayload marks a KindReturn node; Children[0] is the value
// expression if HasValue.
type ReturnPayload struct {
	HasValue bool
}

// FunctionKey renders a Signature's parameter types into a stable string
// used as the map key for overload storage (identifier -> signature ->
// function).
func FunctionKey(sig *Signature, tab *symtab.Table) string {
	s := ""
	for _, p := range sig.Params {
		s += p.Type.String() + ","
	}
	if sig.HasVarArgs {
		s += "..."
	}
	return s
}
