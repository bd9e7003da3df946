package ast_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/ast"
	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/symtab"
	"github.com/Goubermouche/sigma-sub002/internal/types"
)

func TestArenaNewPanicsOnNilChild(t *testing.T) {
	a := ast.NewArena()
	require.Panics(t, func() {
		a.New(ast.KindBlock, diag.Range{}, &ast.BlockPayload{}, nil)
	})
}

func TestArenaNewTracksAllocationCount(t *testing.T) {
	a := ast.NewArena()
	a.New(ast.KindLiteral, diag.Range{}, &ast.LiteralPayload{})
	a.New(ast.KindLiteral, diag.Range{}, &ast.LiteralPayload{})
	require.Equal(t, 2, a.Len())
}

func TestReplaceChildRewritesSlotInPlace(t *testing.T) {
	a := ast.NewArena()
	child := a.New(ast.KindLiteral, diag.Range{}, &ast.LiteralPayload{})
	cast := a.New(ast.KindCast, diag.Range{}, &ast.CastPayload{})
	parent := a.New(ast.KindExprStmt, diag.Range{}, nil, child)

	parent.ReplaceChild(0, cast)
	require.Same(t, cast, parent.Children[0])
}

func TestScopeLookupClimbsParentChain(t *testing.T) {
	global := ast.NewGlobalNamespace()
	tab := symtab.New()
	x := tab.Intern("x")

	outer := global.NewChild(ast.Unconditional)
	outer.Declare(x, &ast.Variable{Type: types.New(types.I32)})
	inner := outer.NewChild(ast.Conditional)

	v, ok := inner.Lookup(x)
	require.True(t, ok)
	require.Equal(t, types.I32, v.Type.Kind)

	_, ok = inner.Lookup(tab.Intern("never_declared"))
	require.False(t, ok)
}

func TestScopeLookupDoesNotSeeSiblingLocals(t *testing.T) {
	global := ast.NewGlobalNamespace()
	tab := symtab.New()
	x := tab.Intern("x")

	a := global.NewChild(ast.Unconditional)
	a.Declare(x, &ast.Variable{Type: types.New(types.I32)})
	b := global.NewChild(ast.Unconditional)

	_, ok := b.Lookup(x)
	require.False(t, ok)
}

func TestNewChildNamespaceIsIdempotentByName(t *testing.T) {
	global := ast.NewGlobalNamespace()
	tab := symtab.New()
	name := tab.Intern("math")

	ns1 := global.NewChildNamespace(name)
	ns2 := global.NewChildNamespace(name)
	require.Same(t, ns1, ns2)
}

func TestNewChildNamespacePanicsOnNonNamespaceScope(t *testing.T) {
	global := ast.NewGlobalNamespace()
	regular := global.NewChild(ast.Unconditional)
	tab := symtab.New()
	require.Panics(t, func() {
		regular.NewChildNamespace(tab.Intern("x"))
	})
}

// ReturnsOnAllPaths: a scope returns iff every child
// scope returns AND at least one child was reached unconditionally.
func TestReturnsOnAllPathsDirectReturn(t *testing.T) {
	s := ast.NewGlobalNamespace().NewChild(ast.Unconditional)
	s.HasReturn = true
	require.True(t, s.ReturnsOnAllPaths())
}

func TestReturnsOnAllPathsEmptyScopeDoesNotReturn(t *testing.T) {
	s := ast.NewGlobalNamespace().NewChild(ast.Unconditional)
	require.False(t, s.ReturnsOnAllPaths())
}

func TestReturnsOnAllPathsIfWithoutElseNeverSuffices(t *testing.T) {
	// if (cond) { ret 1; } -- only the conditional then-branch returns;
	// there's no unconditional sibling, so the enclosing scope must not
	// be considered to return on all paths.
	fn := ast.NewGlobalNamespace().NewChild(ast.Unconditional)
	thenBranch := fn.NewChild(ast.Conditional)
	thenBranch.HasReturn = true
	require.False(t, fn.ReturnsOnAllPaths())
}

func TestReturnsOnAllPathsIfElseBothReturning(t *testing.T) {
	fn := ast.NewGlobalNamespace().NewChild(ast.Unconditional)
	thenBranch := fn.NewChild(ast.Conditional)
	thenBranch.HasReturn = true
	elseBranch := fn.NewChild(ast.Unconditional)
	elseBranch.HasReturn = true
	require.True(t, fn.ReturnsOnAllPaths())
}

func TestReturnsOnAllPathsOneBranchMissingReturnFails(t *testing.T) {
	fn := ast.NewGlobalNamespace().NewChild(ast.Unconditional)
	thenBranch := fn.NewChild(ast.Conditional)
	thenBranch.HasReturn = true
	elseBranch := fn.NewChild(ast.Unconditional)
	// elseBranch never sets HasReturn.
	require.False(t, fn.ReturnsOnAllPaths())
	_ = elseBranch
}

func TestFunctionKeyDistinguishesParameterListsAndVarArgs(t *testing.T) {
	tab := symtab.New()
	sigI32 := &ast.Signature{Params: []ast.Param{{Type: types.New(types.I32)}}}
	sigI64 := &ast.Signature{Params: []ast.Param{{Type: types.New(types.I64)}}}
	sigVar := &ast.Signature{Params: []ast.Param{{Type: types.New(types.I32)}}, HasVarArgs: true}

	require.NotEqual(t, ast.FunctionKey(sigI32, tab), ast.FunctionKey(sigI64, tab))
	require.NotEqual(t, ast.FunctionKey(sigI32, tab), ast.FunctionKey(sigVar, tab))
	require.Equal(t, ast.FunctionKey(sigI32, tab), ast.FunctionKey(&ast.Signature{Params: []ast.Param{{Type: types.New(types.I32)}}}, tab))
}
