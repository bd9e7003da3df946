package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Goubermouche/sigma-sub002/internal/ast"
	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/lexer"
	"github.com/Goubermouche/sigma-sub002/internal/parser"
	"github.com/Goubermouche/sigma-sub002/internal/symtab"
	"github.com/Goubermouche/sigma-sub002/internal/types"
)

func parseProgram(t *testing.T, src string) (*ast.Program, *symtab.Table, *diag.Bag) {
	t.Helper()
	tab := symtab.New()
	bag := &diag.Bag{}
	toks := lexer.New("t.s", src, tab, bag).Lex()
	prog := parser.New("t.s", toks, tab, bag).Parse()
	return prog, tab, bag
}

func TestParseSimpleFunctionSignature(t *testing.T) {
	prog, tab, bag := parseProgram(t, "i32 main() { ret 0; }")
	require.False(t, bag.HasErrors())
	require.Len(t, prog.Functions, 1)

	fn := prog.Functions[0]
	p := fn.Payload.(*ast.FunctionPayload)
	require.Equal(t, "main", tab.Get(p.Ident))
	require.Equal(t, types.I32, p.ReturnType.Kind)
	require.Len(t, fn.Children, 1)
	require.Equal(t, ast.KindReturn, fn.Children[0].Kind)
}

func TestParseParameterListAndPointerTypes(t *testing.T) {
	prog, tab, bag := parseProgram(t, "void f(i32 x, char* s) { ret; }")
	require.False(t, bag.HasErrors())
	p := prog.Functions[0].Payload.(*ast.FunctionPayload)
	require.Len(t, p.Params, 2)
	require.Equal(t, "x", tab.Get(p.Params[0].Ident))
	require.Equal(t, types.I32, p.Params[0].Type.Kind)
	require.Equal(t, "s", tab.Get(p.Params[1].Ident))
	require.True(t, p.Params[1].Type.IsPointer())
	require.Equal(t, types.Char, p.Params[1].Type.Kind)
}

func TestParseExternWithVarArgs(t *testing.T) {
	prog, tab, bag := parseProgram(t, `extern i32 printf(char* fmt, ...);`)
	require.False(t, bag.HasErrors())
	require.Len(t, prog.Externs, 1)
	sig := prog.Externs[0].Signature
	require.Equal(t, "printf", tab.Get(sig.Ident))
	require.True(t, sig.HasVarArgs)
	require.Len(t, sig.Params, 1)
}

func TestParseIfElseIfElseChainShape(t *testing.T) {
	src := `i32 main() {
		i32 x = 3;
		if (x == 1) { ret 10; } else if (x == 3) { ret 30; } else { ret 99; }
	}`
	prog, _, bag := parseProgram(t, src)
	require.False(t, bag.HasErrors())
	fn := prog.Functions[0]
	require.Len(t, fn.Children, 2) // var decl, if

	ifNode := fn.Children[1]
	require.Equal(t, ast.KindIf, ifNode.Kind)
	p := ifNode.Payload.(*ast.IfPayload)
	require.True(t, p.HasElse)
	// Children layout: [condition, elseBranch, thenStatements...]
	require.Equal(t, ast.KindComparison, ifNode.Children[0].Kind)
	require.Equal(t, ast.KindIf, ifNode.Children[1].Kind) // else-if nests directly
	require.Equal(t, ast.KindReturn, ifNode.Children[2].Kind)
}

func TestParseForDesugarsIntoBlockWrappingWhile(t *testing.T) {
	src := `i32 main() {
		for (i32 i = 0; i < 10; i = i + 1) { ret i; }
		ret 0;
	}`
	prog, _, bag := parseProgram(t, src)
	require.False(t, bag.HasErrors())
	fn := prog.Functions[0]
	require.Equal(t, ast.KindBlock, fn.Children[0].Kind)

	block := fn.Children[0]
	require.Len(t, block.Children, 2) // init var decl, while
	require.Equal(t, ast.KindVarDecl, block.Children[0].Kind)
	whileNode := block.Children[1]
	require.Equal(t, ast.KindWhile, whileNode.Kind)
	// body gains the post-expression appended as a trailing ExprStmt.
	last := whileNode.Children[len(whileNode.Children)-1]
	require.Equal(t, ast.KindExprStmt, last.Kind)
}

func TestParseOperatorPrecedenceMulBeforeAdd(t *testing.T) {
	prog, _, bag := parseProgram(t, "i32 main() { ret 1 + 2 * 3; }")
	require.False(t, bag.HasErrors())
	ret := prog.Functions[0].Children[0]
	top := ret.Children[0]
	require.Equal(t, ast.KindBinary, top.Kind)
	require.Equal(t, ast.OpAdd, top.Payload.(*ast.BinaryPayload).Op)
	rhs := top.Children[1]
	require.Equal(t, ast.OpMul, rhs.Payload.(*ast.BinaryPayload).Op)
}

func TestParseCallArgumentsInOrder(t *testing.T) {
	prog, tab, bag := parseProgram(t, `extern i32 printf(char* fmt, ...);
	i32 main() { printf("hello %d\n", 42); ret 0; }`)
	require.False(t, bag.HasErrors())
	fn := prog.Functions[0]
	callStmt := fn.Children[0]
	require.Equal(t, ast.KindExprStmt, callStmt.Kind)
	call := callStmt.Children[0]
	require.Equal(t, ast.KindCall, call.Kind)
	p := call.Payload.(*ast.CallPayload)
	require.Equal(t, "printf", tab.Get(p.Name))
	require.Len(t, call.Children, 2)
	require.Equal(t, ast.KindLiteral, call.Children[0].Kind)
}

func TestParseUnexpectedTokenReportsDiagnostic(t *testing.T) {
	_, _, bag := parseProgram(t, "i32 main() { ret 1 + ; }")
	require.True(t, bag.HasErrors())
	require.Equal(t, diag.UnexpectedToken, bag.Errors()[0].Code)
}
