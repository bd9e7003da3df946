// Package sema implements the type checker: name resolution, overload
// resolution, implicit-cast insertion, control-flow validation and
// literal checking, all driven by a single recursive
// check(node, parent, expected) traversal over the parsed AST.
package sema

import (
	"strconv"

	"github.com/Goubermouche/sigma-sub002/internal/ast"
	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/symtab"
	"github.com/Goubermouche/sigma-sub002/internal/types"
)

// Checker holds the state threaded through one compilation unit's check.
type Checker struct {
	tab    *symtab.Table
	bag    *diag.Bag
	file   string
	global *ast.Scope
	scope  *ast.Scope
	fn     *ast.Node // enclosing KindFunction node, for return-type lookup
	arena  *ast.Arena
}

// NewChecker returns a Checker reporting into bag, interning through tab.
func NewChecker(file string, tab *symtab.Table, bag *diag.Bag) *Checker {
	return &Checker{tab: tab, bag: bag, file: file, global: ast.NewGlobalNamespace()}
}

// Global returns the root namespace scope built by Check, including every
// declared function and extern signature.
func (c *Checker) Global() *ast.Scope { return c.global }

// Check runs the full pass over prog: declares every function/extern
// signature into the global namespace, then type-checks each function
// body in turn. It returns true iff no error-severity diagnostic was
// raised.
func (c *Checker) Check(prog *ast.Program) bool {
	before := len(c.bag.All())
	c.arena = prog.Arena
	c.declareSignatures(prog)
	for _, fn := range prog.Functions {
		c.checkFunction(fn)
	}
	for _, d := range c.bag.All()[before:] {
		if d.Severity == diag.Error {
			return false
		}
	}
	return true
}

func (c *Checker) declareSignatures(prog *ast.Program) {
	for _, ext := range prog.Externs {
		c.addSignature(c.global.Externals, ext.Signature)
	}
	for _, fnNode := range prog.Functions {
		p := fnNode.Payload.(*ast.FunctionPayload)
		sig := &ast.Signature{Ident: p.Ident, ReturnType: p.ReturnType, Params: p.Params, HasVarArgs: p.HasVarArgs}
		c.addSignature(c.global.Functions, *sig)
	}
}

func (c *Checker) addSignature(table map[symtab.Key]map[string]*ast.Signature, sig ast.Signature) {
	s := sig
	if table[s.Ident] == nil {
		table[s.Ident] = make(map[string]*ast.Signature)
	}
	key := ast.FunctionKey(&s, c.tab)
	if _, dup := table[s.Ident][key]; dup {
		c.bag.Errorf(diag.DuplicateDeclaration, diag.Range{File: c.file}, "duplicate declaration of %q", c.tab.Get(s.Ident))
		return
	}
	table[s.Ident][key] = &s
}

func (c *Checker) checkFunction(fn *ast.Node) {
	p := fn.Payload.(*ast.FunctionPayload)
	prevFn := c.fn
	c.fn = fn
	c.scope = c.global.NewChild(ast.Unconditional)
	for _, param := range p.Params {
		c.scope.Declare(param.Ident, &ast.Variable{Type: param.Type, Flags: ast.FlagParam})
	}
	for i, stmt := range fn.Children {
		fn.Children[i] = c.checkStatement(fn, i, stmt)
	}
	if p.ReturnType.Kind != types.Void && !c.scope.ReturnsOnAllPaths() {
		c.bag.Errorf(diag.NotAllControlPathsReturn, rangeOf(c.file, fn), "not all control paths return a value")
	}
	c.fn = prevFn
}

func rangeOf(file string, n *ast.Node) diag.Range {
	r := n.Range
	if r.File == "" {
		r.File = file
	}
	return r
}

// checkStatement dispatches on a statement-level node kind, returning the
// (possibly cast-wrapped) replacement for parent.Children[idx].
func (c *Checker) checkStatement(parent *ast.Node, idx int, n *ast.Node) *ast.Node {
	switch n.Kind {
	case ast.KindBlock:
		child := c.scope.NewChild(c.scope.ControlKind)
		prev := c.scope
		c.scope = child
		for i, s := range n.Children {
			n.Children[i] = c.checkStatement(n, i, s)
		}
		c.scope = prev
		return n

	case ast.KindIf:
		return c.checkIf(n)

	case ast.KindWhile:
		cond := n.Children[0]
		n.Children[0] = c.check(n, 0, cond, types.New(types.Bool))
		child := c.scope.NewChild(ast.Conditional)
		prev := c.scope
		c.scope = child
		for i := 1; i < len(n.Children); i++ {
			n.Children[i] = c.checkStatement(n, i, n.Children[i])
		}
		c.scope = prev
		return n

	case ast.KindReturn:
		p := n.Payload.(*ast.ReturnPayload)
		fp := c.fn.Payload.(*ast.FunctionPayload)
		if p.HasValue {
			n.Children[0] = c.check(n, 0, n.Children[0], fp.ReturnType)
		} else if fp.ReturnType.Kind != types.Void {
			c.bag.Errorf(diag.TypeMismatch, rangeOf(c.file, n), "missing return value")
		}
		c.scope.HasReturn = true
		return n

	case ast.KindVarDecl:
		return c.checkVarDecl(n)

	case ast.KindExprStmt:
		n.Children[0] = c.check(n, 0, n.Children[0], types.New(types.Unknown))
		return n

	default:
		return c.check(parent, idx, n, types.New(types.Unknown))
	}
}

// checkIf mirrors the original's type_check_conditional_branch: the
// else chain is visited first, flattened into direct children of the
// *current* scope (a plain terminal else pushes an Unconditional scope;
// a nested else-if recurses without adding a wrapping scope of its own),
// and only then does the then-branch push its own Conditional scope. This
// order and flattening matters for ReturnsOnAllPaths: a terminal plain
// else's Unconditional tag must surface as a direct sibling of every
// then-branch in the chain, not be buried under an extra wrapper scope.
func (c *Checker) checkIf(n *ast.Node) *ast.Node {
	p := n.Payload.(*ast.IfPayload)
	n.Children[0] = c.check(n, 0, n.Children[0], types.New(types.Bool))

	thenStart := 1
	if p.HasElse {
		thenStart = 2
		elseBranch := n.Children[1]
		if elseBranch.Kind == ast.KindIf {
			n.Children[1] = c.checkIf(elseBranch)
		} else {
			elseScope := c.scope.NewChild(ast.Unconditional)
			prev := c.scope
			c.scope = elseScope
			for i, s := range elseBranch.Children {
				elseBranch.Children[i] = c.checkStatement(elseBranch, i, s)
			}
			c.scope = prev
		}
	}

	thenScope := c.scope.NewChild(ast.Conditional)
	prev := c.scope
	c.scope = thenScope
	for i := thenStart; i < len(n.Children); i++ {
		n.Children[i] = c.checkStatement(n, i, n.Children[i])
	}
	c.scope = prev
	return n
}

func (c *Checker) checkVarDecl(n *ast.Node) *ast.Node {
	p := n.Payload.(*ast.VarDeclPayload)
	if p.Type.Kind == types.Void && !p.Type.IsPointer() {
		c.bag.Errorf(diag.InvalidVoidUse, rangeOf(c.file, n), "variable %q cannot have type void", c.tab.Get(p.Ident))
	}
	if p.HasInit {
		n.Children[0] = c.check(n, 0, n.Children[0], p.Type)
	}
	c.scope.Declare(p.Ident, &ast.Variable{Type: p.Type})
	return n
}

// check assigns and returns node's final type, possibly replacing
// parent.Children[idx] with a Cast-wrapped version of node.
func (c *Checker) check(parent *ast.Node, idx int, n *ast.Node, expected *types.Type) *ast.Node {
	var t *types.Type
	switch n.Kind {
	case ast.KindLiteral:
		t = c.checkLiteral(n, expected)
	case ast.KindBoolLiteral:
		t = types.New(types.Bool)
	case ast.KindIdent:
		t = c.checkIdent(n)
	case ast.KindBinary:
		t = c.checkBinary(n, expected)
	case ast.KindUnary:
		t = c.checkUnary(n, expected)
	case ast.KindComparison:
		t = c.checkComparison(n)
	case ast.KindAssign:
		t = c.checkAssign(n)
	case ast.KindCall:
		return c.checkCall(parent, idx, n)
	case ast.KindField:
		t = c.checkField(n)
	case ast.KindIndex:
		t = c.checkIndex(n)
	case ast.KindSizeof:
		t = types.New(types.U64)
	default:
		t = types.New(types.Unknown)
	}
	n.Type = t
	return c.applyImplicitCast(parent, idx, n, t, expected)
}

func (c *Checker) checkLiteral(n *ast.Node, expected *types.Type) *types.Type {
	p := n.Payload.(*ast.LiteralPayload)
	numeric := !p.IsStr && p.Type.Kind != types.Char
	target := p.Type
	if expected.Kind != types.Unknown && expected.Kind != types.VarArgPromote && !expected.IsPointer() {
		target = expected
	}
	spelling := c.tab.Get(p.Value)
	if target.IsFloat() {
		v, err := strconv.ParseFloat(spelling, 64)
		if err == nil && target.Kind == types.F32 && (v > 3.4e38 || v < -3.4e38) {
			c.bag.Warnf(diag.LiteralOverflow, rangeOf(c.file, n), "literal %q overflows %s", spelling, target.String())
		}
	} else if target.IsIntegral() {
		bits := target.Size() * 8
		if target.IsSigned() {
			if _, err := strconv.ParseInt(spelling, 10, bits); err != nil {
				c.bag.Warnf(diag.LiteralOverflow, rangeOf(c.file, n), "literal %q overflows %s", spelling, target.String())
			}
		} else {
			if _, err := strconv.ParseUint(spelling, 10, bits); err != nil {
				c.bag.Warnf(diag.LiteralOverflow, rangeOf(c.file, n), "literal %q overflows %s", spelling, target.String())
			}
		}
	} else if numeric && target.Kind == types.Bool {
		c.bag.Warnf(diag.NumericalBool, rangeOf(c.file, n), "numeric literal used where bool is expected")
	} else if numeric && target.Kind == types.Char {
		c.bag.Warnf(diag.NumericalChar, rangeOf(c.file, n), "numeric literal used where char is expected")
	}
	p.Type = target
	return target
}

func (c *Checker) checkIdent(n *ast.Node) *types.Type {
	p := n.Payload.(*ast.IdentPayload)
	v, ok := c.scope.Lookup(p.Ident)
	if !ok {
		c.bag.Errorf(diag.UnknownVariable, rangeOf(c.file, n), "unknown variable %q", c.tab.Get(p.Ident))
		p.Type = types.New(types.Unknown)
		return p.Type
	}
	p.Type = v.Type
	return v.Type
}

func (c *Checker) checkBinary(n *ast.Node, expected *types.Type) *types.Type {
	n.Children[0] = c.check(n, 0, n.Children[0], types.New(types.Unknown))
	n.Children[1] = c.check(n, 1, n.Children[1], types.New(types.Unknown))
	result := types.Larger(n.Children[0].Type, n.Children[1].Type)
	n.Children[0] = c.applyImplicitCast(n, 0, n.Children[0], n.Children[0].Type, result)
	n.Children[1] = c.applyImplicitCast(n, 1, n.Children[1], n.Children[1].Type, result)
	return result
}

func (c *Checker) checkUnary(n *ast.Node, expected *types.Type) *types.Type {
	p := n.Payload.(*ast.UnaryPayload)
	switch p.Op {
	case ast.OpAddr:
		n.Children[0] = c.check(n, 0, n.Children[0], types.New(types.Unknown))
		return n.Children[0].Type.PointerTo()
	case ast.OpDeref:
		n.Children[0] = c.check(n, 0, n.Children[0], types.New(types.Unknown))
		if !n.Children[0].Type.IsPointer() {
			c.bag.Errorf(diag.InvalidCast, rangeOf(c.file, n), "cannot dereference non-pointer type %s", n.Children[0].Type.String())
			return types.New(types.Unknown)
		}
		return n.Children[0].Type.Deref()
	case ast.OpLNot:
		n.Children[0] = c.check(n, 0, n.Children[0], types.New(types.Bool))
		return types.New(types.Bool)
	default:
		n.Children[0] = c.check(n, 0, n.Children[0], types.New(types.Unknown))
		return n.Children[0].Type
	}
}

func (c *Checker) checkComparison(n *ast.Node) *types.Type {
	p := n.Payload.(*ast.ComparisonPayload)
	n.Children[0] = c.check(n, 0, n.Children[0], types.New(types.Unknown))
	n.Children[1] = c.check(n, 1, n.Children[1], types.New(types.Unknown))
	lt, rt := n.Children[0].Type, n.Children[1].Type
	switch {
	case lt.IsPointer() || rt.IsPointer():
		p.Flavor = ast.FlavorPointer
	case lt.IsFloat() || rt.IsFloat():
		p.Flavor = ast.FlavorFloat
	case lt.IsSigned() || rt.IsSigned():
		p.Flavor = ast.FlavorSignedInt
	default:
		p.Flavor = ast.FlavorUnsignedInt
	}
	result := types.Larger(lt, rt)
	n.Children[0] = c.applyImplicitCast(n, 0, n.Children[0], lt, result)
	n.Children[1] = c.applyImplicitCast(n, 1, n.Children[1], rt, result)
	return types.New(types.Bool)
}

func (c *Checker) checkAssign(n *ast.Node) *types.Type {
	n.Children[0] = c.check(n, 0, n.Children[0], types.New(types.Unknown))
	lt := n.Children[0].Type
	n.Children[1] = c.check(n, 1, n.Children[1], lt)
	return lt
}

func (c *Checker) checkField(n *ast.Node) *types.Type {
	p := n.Payload.(*ast.FieldPayload)
	n.Children[0] = c.check(n, 0, n.Children[0], types.New(types.Unknown))
	base := n.Children[0].Type
	if p.IsArrow {
		if !base.IsPointer() {
			c.bag.Errorf(diag.TypeMismatch, rangeOf(c.file, n), "-> requires a pointer operand")
			return types.New(types.Unknown)
		}
		base = base.Deref()
	}
	for _, m := range base.Members {
		if m.Name == p.Field {
			return m.Type
		}
	}
	c.bag.Errorf(diag.UnknownVariable, rangeOf(c.file, n), "unknown field %q", c.tab.Get(p.Field))
	return types.New(types.Unknown)
}

func (c *Checker) checkIndex(n *ast.Node) *types.Type {
	n.Children[0] = c.check(n, 0, n.Children[0], types.New(types.Unknown))
	n.Children[1] = c.check(n, 1, n.Children[1], types.New(types.I64))
	base := n.Children[0].Type
	if !base.IsPointer() {
		c.bag.Errorf(diag.TypeMismatch, rangeOf(c.file, n), "cannot index non-pointer type %s", base.String())
		return types.New(types.Unknown)
	}
	return base.Deref()
}

// candidate is one signature under consideration during overload
// resolution.
type candidate struct {
	sig  *ast.Signature
	cost int
}

const invalidCost = 1 << 30

func (c *Checker) checkCall(parent *ast.Node, idx int, n *ast.Node) *ast.Node {
	p := n.Payload.(*ast.CallPayload)
	argTypes := make([]*types.Type, len(n.Children))
	for i, arg := range n.Children {
		n.Children[i] = c.check(n, i, arg, types.New(types.Unknown))
		argTypes[i] = n.Children[i].Type
	}

	table := c.global.Functions[p.Name]
	externTable := c.global.Externals[p.Name]
	var candidates []candidate
	for _, sig := range table {
		if cost, ok := c.castCost(argTypes, sig); ok {
			candidates = append(candidates, candidate{sig, cost})
		}
	}
	for _, sig := range externTable {
		if cost, ok := c.castCost(argTypes, sig); ok {
			candidates = append(candidates, candidate{sig, cost})
		}
	}

	if len(candidates) == 0 {
		if len(table) == 0 && len(externTable) == 0 {
			c.bag.Errorf(diag.UnknownFunction, rangeOf(c.file, n), "unknown function %q", c.tab.Get(p.Name))
		} else {
			c.bag.Errorf(diag.NoCallOverload, rangeOf(c.file, n), "no overload of %q matches the given arguments", c.tab.Get(p.Name))
		}
		n.Type = types.New(types.Unknown)
		return n
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.cost < best.cost {
			best = cand
		}
	}
	p.Signature = best.sig
	n.Type = best.sig.ReturnType

	for i := range n.Children {
		if i < len(best.sig.Params) {
			n.Children[i] = c.applyImplicitCast(n, i, n.Children[i], argTypes[i], best.sig.Params[i].Type)
		} else if best.sig.HasVarArgs {
			promoted := types.Promote(argTypes[i])
			n.Children[i] = c.applyImplicitCast(n, i, n.Children[i], argTypes[i], promoted)
		}
	}
	return c.applyImplicitCast(parent, idx, n, n.Type, types.New(types.Unknown))
}

// castCost sums the per-argument conversion cost over the fixed
// parameters, or returns (0, false) if any fixed argument
// cannot legally convert, or if arity doesn't fit.
func (c *Checker) castCost(args []*types.Type, sig *ast.Signature) (int, bool) {
	n := len(sig.Params)
	if sig.HasVarArgs {
		if len(args) < n {
			return 0, false
		}
	} else if len(args) != n {
		return 0, false
	}
	total := 0
	for i := 0; i < n; i++ {
		cost, ok := castCost(args[i], sig.Params[i].Type)
		if !ok {
			return 0, false
		}
		total += cost
	}
	return total, true
}

func castCost(from, to *types.Type) (int, bool) {
	if from.Equal(to) {
		return 0, true
	}
	if from.PointerLevel != to.PointerLevel {
		return 0, false
	}
	if from.IsPointer() {
		return 0, false
	}
	if from.IsIntegral() && to.IsIntegral() {
		sf, st := from.Size(), to.Size()
		switch {
		case sf == st && from.IsSigned() != to.IsSigned():
			return 15, true
		case st > sf:
			return 1 * (st - sf), true
		case st < sf:
			return 2 * (sf - st), true
		default:
			return 0, true
		}
	}
	return 0, false
}

// applyImplicitCast makes a legal conversion explicit. It may replace
// parent.Children[idx] with a new Cast node wrapping n; it always returns
// the node that now occupies that slot.
func (c *Checker) applyImplicitCast(parent *ast.Node, idx int, n *ast.Node, from, to *types.Type) *ast.Node {
	if to.Kind == types.Unknown {
		return n
	}
	if to.Kind == types.VarArgPromote {
		to = types.Promote(from)
	}
	if from.Equal(to) {
		return n
	}
	if from.IsPointer() {
		if to.IsPointer() && to.Kind == types.Void {
			return c.insertCast(parent, idx, n, from, to)
		}
		c.bag.Errorf(diag.InvalidCast, rangeOf(c.file, n), "cannot implicitly cast pointer type %s to %s", from.String(), to.String())
		return n
	}
	if to.IsPointer() {
		c.bag.Errorf(diag.InvalidCast, rangeOf(c.file, n), "cannot implicitly cast %s to pointer type %s", from.String(), to.String())
		return n
	}

	sf, st := from.Size(), to.Size()
	switch {
	case st > sf:
		c.bag.Warnf(diag.ImplicitExtensionCast, rangeOf(c.file, n), "implicit widening cast from %s to %s", from.String(), to.String())
	case st < sf:
		c.bag.Warnf(diag.ImplicitTruncationCast, rangeOf(c.file, n), "implicit narrowing cast from %s to %s", from.String(), to.String())
	default:
		c.bag.Warnf(diag.ImplicitCast, rangeOf(c.file, n), "implicit cast from %s to %s", from.String(), to.String())
	}
	return c.insertCast(parent, idx, n, from, to)
}

func (c *Checker) insertCast(parent *ast.Node, idx int, n *ast.Node, from, to *types.Type) *ast.Node {
	cast := c.arena.New(ast.KindCast, n.Range, &ast.CastPayload{From: from, To: to}, n)
	cast.Type = to
	if parent != nil {
		parent.ReplaceChild(idx, cast)
	}
	return cast
}
