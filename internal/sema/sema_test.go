package sema_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/ast"
	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/lexer"
	"github.com/Goubermouche/sigma-sub002/internal/parser"
	"github.com/Goubermouche/sigma-sub002/internal/sema"
	"github.com/Goubermouche/sigma-sub002/internal/symtab"
)

func check(t *testing.T, src string) (*ast.Program, bool, *diag.Bag, *symtab.Table) {
	t.Helper()
	tab := symtab.New()
	bag := &diag.Bag{}
	toks := lexer.New("t.s", src, tab, bag).Lex()
	require.False(t, bag.HasErrors())
	prog := parser.New("t.s", toks, tab, bag).Parse()
	require.False(t, bag.HasErrors())
	ok := sema.NewChecker("t.s", tab, bag).Check(prog)
	return prog, ok, bag, tab
}

// An if/else-if/else where every arm returns satisfies the return-path
// check.
func TestControlFlowIfElseIfElseAllPathsReturn(t *testing.T) {
	src := `i32 main() {
		i32 x = 3;
		if (x == 1) { ret 10; } else if (x == 3) { ret 30; } else { ret 99; }
	}`
	_, ok, bag, _ := check(t, src)
	require.True(t, ok, "%v", bag.All())
}

// A missing return path is rejected.
func TestControlFlowMissingReturnPathIsRejected(t *testing.T) {
	src := `i32 main() { i32 x = 3; if (x == 1) { ret 1; } }`
	_, ok, bag, _ := check(t, src)
	require.False(t, ok)
	require.Equal(t, diag.NotAllControlPathsReturn, bag.Errors()[0].Code)
}

func TestControlFlowVoidFunctionNeverRequiresReturn(t *testing.T) {
	_, ok, bag, _ := check(t, "void main() { i32 x = 3; }")
	require.True(t, ok, "%v", bag.All())
}

// Overload selection prefers the exact match over one needing widening.
func TestOverloadSelectionPrefersExactMatch(t *testing.T) {
	src := `i32 f(i32 x) { ret x; }
	i64 f(i64 x) { ret x; }
	i32 main() { ret f(5); }`
	prog, ok, bag, tab := check(t, src)
	require.True(t, ok, "%v", bag.All())

	mainFn := prog.Functions[2]
	ret := mainFn.Children[0]
	call := ret.Children[0]
	require.Equal(t, ast.KindCall, call.Kind)
	p := call.Payload.(*ast.CallPayload)
	require.Equal(t, 4, p.Signature.Params[0].Type.Size()) // picked i32, not i64
	require.Equal(t, "f", tab.Get(p.Signature.Ident))
}

func TestOverloadSelectionSignMismatchStillResolves(t *testing.T) {
	// f(5u) must select i32 after a cost-15 sign cast, with no ambiguity
	// error.
	src := `i32 f(i32 x) { ret x; }
	i32 main() { ret f(5u); }`
	_, ok, bag, _ := check(t, src)
	require.True(t, ok, "%v", bag.All())
	require.False(t, bag.HasErrors())
}

func TestUnknownFunctionCallReportsDiagnostic(t *testing.T) {
	_, ok, bag, _ := check(t, "i32 main() { ret nope(1); }")
	require.False(t, ok)
	require.Equal(t, diag.UnknownFunction, bag.Errors()[0].Code)
}

func TestNoOverloadMatchesArityReportsDiagnostic(t *testing.T) {
	src := `i32 f(i32 x) { ret x; }
	i32 main() { ret f(1, 2); }`
	_, ok, bag, _ := check(t, src)
	require.False(t, ok)
	require.Equal(t, diag.NoCallOverload, bag.Errors()[0].Code)
}

func TestUnknownVariableReportsDiagnostic(t *testing.T) {
	_, ok, bag, _ := check(t, "i32 main() { ret y; }")
	require.False(t, ok)
	require.Equal(t, diag.UnknownVariable, bag.Errors()[0].Code)
}

func TestDuplicateDeclarationReportsDiagnostic(t *testing.T) {
	src := `i32 f(i32 x) { ret x; }
	i32 f(i32 y) { ret y; }
	i32 main() { ret 0; }`
	_, ok, bag, _ := check(t, src)
	require.False(t, ok)
	require.Equal(t, diag.DuplicateDeclaration, bag.Errors()[0].Code)
}

func TestImplicitWideningInsertsCastNode(t *testing.T) {
	_, ok, bag, _ := check(t, "i64 main() { i32 x = 3; ret x; }")
	require.True(t, ok, "%v", bag.All())
	// A widening i32 -> i64 on the return value should warn, not error.
	require.False(t, bag.HasErrors())
	found := false
	for _, d := range bag.All() {
		if d.Code == diag.ImplicitExtensionCast {
			found = true
		}
	}
	require.True(t, found)
}

func TestPointerToNonVoidPointerImplicitCastIsInvalid(t *testing.T) {
	_, ok, bag, _ := check(t, "i32 main() { i32 x = 3; i64* p = &x; ret 0; }")
	require.False(t, ok)
	require.Equal(t, diag.InvalidCast, bag.Errors()[0].Code)
}

func TestVoidPointerAcceptsAnyPointerImplicitly(t *testing.T) {
	_, ok, bag, _ := check(t, "i32 main() { i32 x = 3; void* p = &x; ret 0; }")
	require.True(t, ok, "%v", bag.All())
}

func TestLiteralOverflowWarnsNotErrors(t *testing.T) {
	_, ok, bag, _ := check(t, "i32 main() { i8 x = 500; ret 0; }")
	require.True(t, ok, "%v", bag.All())
	require.False(t, bag.HasErrors())
	require.Equal(t, diag.LiteralOverflow, bag.All()[0].Code)
}

func TestCastInsertedWrapsChildInParentSlot(t *testing.T) {
	prog, ok, bag, _ := check(t, "i64 main() { i32 x = 3; ret x; }")
	require.True(t, ok, "%v", bag.All())
	ret := prog.Functions[0].Children[1]
	require.Equal(t, ast.KindCast, ret.Children[0].Kind)
}
