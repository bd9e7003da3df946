// Package parser is a hand-written recursive-descent parser that
// consumes internal/lexer's token buffer and produces the arena-allocated
// AST of internal/ast. It covers the working surface syntax of the
// language: functions, i8..u64/bool/char/void types with any number of
// pointer levels, var decls, if/else-if/else, while/for, ret, calls, extern
// declarations, and binary/unary/assignment expressions.
package parser

import (
	"github.com/Goubermouche/sigma-sub002/internal/ast"
	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/lexer"
	"github.com/Goubermouche/sigma-sub002/internal/symtab"
	"github.com/Goubermouche/sigma-sub002/internal/types"
)

// Parser walks a token buffer by index.
type Parser struct {
	toks  []lexer.Token
	pos   int
	tab   *symtab.Table
	bag   *diag.Bag
	file  string
	arena *ast.Arena
}

// New returns a Parser over toks.
func New(file string, toks []lexer.Token, tab *symtab.Table, bag *diag.Bag) *Parser {
	return &Parser{toks: toks, tab: tab, bag: bag, file: file, arena: ast.NewArena()}
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) at(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) atText(s string) bool {
	t := p.cur()
	return (t.Kind == lexer.Punct || t.Kind == lexer.Keyword) && p.tab.Get(t.Symbol) == s
}

func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) rangeAt(t lexer.Token) diag.Range {
	pos := diag.Position{Line: t.Pos.Line, Col: t.Pos.Col}
	return diag.Range{File: p.file, Start: pos, End: pos}
}

func (p *Parser) expectText(s string) lexer.Token {
	if !p.atText(s) {
		p.bag.Errorf(diag.UnexpectedToken, p.rangeAt(p.cur()), "expected %q, got %q", s, p.tokenText())
		return p.cur()
	}
	return p.advance()
}

func (p *Parser) tokenText() string {
	t := p.cur()
	if t.Kind == lexer.EOF {
		return "<eof>"
	}
	return p.tab.Get(t.Symbol)
}

// Parse parses the full token buffer into a Program.
func (p *Parser) Parse() *ast.Program {
	prog := &ast.Program{File: p.file, Arena: p.arena}
	for !p.at(lexer.EOF) {
		if p.atText("extern") {
			prog.Externs = append(prog.Externs, p.parseExtern())
			continue
		}
		fn := p.parseFunction()
		if fn != nil {
			prog.Functions = append(prog.Functions, fn)
		}
	}
	return prog
}

func (p *Parser) parseExtern() ast.ExternDecl {
	p.expectText("extern")
	ret := p.parseType()
	name := p.advance()
	sig := ast.Signature{Ident: name.Symbol, ReturnType: ret}
	p.expectText("(")
	for !p.atText(")") {
		if p.atText("...") || p.atText(".") { // lexer emits three separate "." if not matched; tolerate both
			for p.atText(".") || p.atText("...") {
				p.advance()
			}
			sig.HasVarArgs = true
			break
		}
		pt := p.parseType()
		pname := p.advance()
		sig.Params = append(sig.Params, ast.Param{Ident: pname.Symbol, Type: pt})
		if p.atText(",") {
			p.advance()
		}
	}
	p.expectText(")")
	p.expectText(";")
	return ast.ExternDecl{Signature: sig}
}

// parseType parses a base type keyword followed by zero or more '*'.
func (p *Parser) parseType() *types.Type {
	t := p.cur()
	var base *types.Type
	switch p.tab.Get(t.Symbol) {
	case "void":
		base = types.New(types.Void)
	case "bool":
		base = types.New(types.Bool)
	case "char":
		base = types.New(types.Char)
	case "i8":
		base = types.New(types.I8)
	case "i16":
		base = types.New(types.I16)
	case "i32":
		base = types.New(types.I32)
	case "i64":
		base = types.New(types.I64)
	case "u8":
		base = types.New(types.U8)
	case "u16":
		base = types.New(types.U16)
	case "u32":
		base = types.New(types.U32)
	case "u64":
		base = types.New(types.U64)
	case "f32":
		base = types.New(types.F32)
	case "f64":
		base = types.New(types.F64)
	default:
		// Unresolved named type (struct); the checker resolves it later.
		base = &types.Type{Kind: types.Unresolved, Ident: t.Symbol}
	}
	p.advance()
	for p.atText("*") {
		p.advance()
		base = base.PointerTo()
	}
	return base
}

// looksLikeType reports whether the current token could start a type,
// used to disambiguate a statement that begins with a var declaration
// from one that begins with an expression.
func (p *Parser) looksLikeType() bool {
	if p.cur().Kind != lexer.Keyword {
		return false
	}
	switch p.tab.Get(p.cur().Symbol) {
	case "void", "bool", "char", "i8", "i16", "i32", "i64", "u8", "u16", "u32", "u64", "f32", "f64":
		return true
	}
	return false
}

func (p *Parser) parseFunction() *ast.Node {
	start := p.cur()
	ret := p.parseType()
	name := p.advance()
	payload := &ast.FunctionPayload{Ident: name.Symbol, ReturnType: ret}
	p.expectText("(")
	for !p.atText(")") {
		pt := p.parseType()
		pname := p.advance()
		payload.Params = append(payload.Params, ast.Param{Ident: pname.Symbol, Type: pt})
		if p.atText(",") {
			p.advance()
		}
	}
	p.expectText(")")
	body := p.parseStatementList()
	node := p.arena.New(ast.KindFunction, p.rangeAt(start), payload, body...)
	return node
}

func (p *Parser) parseStatementList() []*ast.Node {
	p.expectText("{")
	var stmts []*ast.Node
	for !p.atText("}") && !p.at(lexer.EOF) {
		stmts = append(stmts, p.parseStatement())
	}
	p.expectText("}")
	return stmts
}

func (p *Parser) parseStatement() *ast.Node {
	start := p.cur()
	switch {
	case p.atText("ret"):
		p.advance()
		if p.atText(";") {
			p.advance()
			return p.arena.New(ast.KindReturn, p.rangeAt(start), &ast.ReturnPayload{})
		}
		v := p.parseExpr()
		p.expectText(";")
		return p.arena.New(ast.KindReturn, p.rangeAt(start), &ast.ReturnPayload{HasValue: true}, v)

	case p.atText("if"):
		return p.parseIf()

	case p.atText("while"):
		p.advance()
		p.expectText("(")
		cond := p.parseExpr()
		p.expectText(")")
		body := p.parseStatementList()
		children := append([]*ast.Node{cond}, body...)
		return p.arena.New(ast.KindWhile, p.rangeAt(start), &ast.WhilePayload{}, children...)

	case p.atText("for"):
		return p.parseFor()

	case p.looksLikeType():
		return p.parseVarDecl()

	default:
		e := p.parseExpr()
		p.expectText(";")
		return p.arena.New(ast.KindExprStmt, p.rangeAt(start), nil, e)
	}
}

func (p *Parser) parseIf() *ast.Node {
	start := p.advance() // "if"
	p.expectText("(")
	cond := p.parseExpr()
	p.expectText(")")
	thenStmts := p.parseStatementList()

	if p.atText("else") {
		p.advance()
		var elseNode *ast.Node
		if p.atText("if") {
			elseNode = p.parseIf()
		} else {
			elseBody := p.parseStatementList()
			elseNode = p.arena.New(ast.KindBlock, p.rangeAt(start), &ast.BlockPayload{}, elseBody...)
		}
		children := append([]*ast.Node{cond, elseNode}, thenStmts...)
		return p.arena.New(ast.KindIf, p.rangeAt(start), &ast.IfPayload{HasElse: true}, children...)
	}

	children := append([]*ast.Node{cond}, thenStmts...)
	return p.arena.New(ast.KindIf, p.rangeAt(start), &ast.IfPayload{HasElse: false}, children...)
}

// parseFor desugars `for (init; cond; post) { body }` into
// `{ init; while (cond) { body; post; } }` at parse time (see
// ast.WhilePayload's doc comment).
func (p *Parser) parseFor() *ast.Node {
	start := p.advance() // "for"
	p.expectText("(")
	var init *ast.Node
	if !p.atText(";") {
		init = p.parseForClauseStatement()
	}
	p.expectText(";")
	var cond *ast.Node
	if !p.atText(";") {
		cond = p.parseExpr()
	}
	p.expectText(";")
	var post *ast.Node
	if !p.atText(")") {
		post = p.parseExpr()
	}
	p.expectText(")")
	body := p.parseStatementList()
	if cond == nil {
		cond = p.arena.New(ast.KindBoolLiteral, p.rangeAt(start), &ast.BoolLiteralPayload{Value: true})
	}
	if post != nil {
		body = append(body, p.arena.New(ast.KindExprStmt, p.rangeAt(start), nil, post))
	}
	whileChildren := append([]*ast.Node{cond}, body...)
	whileNode := p.arena.New(ast.KindWhile, p.rangeAt(start), &ast.WhilePayload{}, whileChildren...)
	if init == nil {
		return whileNode
	}
	return p.arena.New(ast.KindBlock, p.rangeAt(start), &ast.BlockPayload{}, init, whileNode)
}

func (p *Parser) parseForClauseStatement() *ast.Node {
	start := p.cur()
	if p.looksLikeType() {
		return p.parseVarDeclNoSemi()
	}
	e := p.parseExpr()
	return p.arena.New(ast.KindExprStmt, p.rangeAt(start), nil, e)
}

func (p *Parser) parseVarDecl() *ast.Node {
	n := p.parseVarDeclNoSemi()
	p.expectText(";")
	return n
}

func (p *Parser) parseVarDeclNoSemi() *ast.Node {
	start := p.cur()
	t := p.parseType()
	name := p.advance()
	payload := &ast.VarDeclPayload{Ident: name.Symbol, Type: t}
	var children []*ast.Node
	if p.atText("=") {
		p.advance()
		init := p.parseExpr()
		payload.HasInit = true
		children = append(children, init)
	}
	return p.arena.New(ast.KindVarDecl, p.rangeAt(start), payload, children...)
}

// --- Expressions: precedence-climbing over ||, &&, equality, relational,
// bitwise, shift, additive, multiplicative, unary, postfix, primary.

func (p *Parser) parseExpr() *ast.Node { return p.parseAssign() }

func (p *Parser) parseAssign() *ast.Node {
	lhs := p.parseLogicalOr()
	if p.atText("=") {
		start := p.advance()
		rhs := p.parseAssign()
		return p.arena.New(ast.KindAssign, p.rangeAt(start), nil, lhs, rhs)
	}
	return lhs
}

func (p *Parser) parseBinaryLevel(next func() *ast.Node, ops map[string]ast.BinaryOp) *ast.Node {
	lhs := next()
	for {
		t := p.cur()
		if t.Kind != lexer.Punct {
			return lhs
		}
		text := p.tab.Get(t.Symbol)
		op, ok := ops[text]
		if !ok {
			return lhs
		}
		p.advance()
		rhs := next()
		lhs = p.arena.New(ast.KindBinary, p.rangeAt(t), &ast.BinaryPayload{Op: op}, lhs, rhs)
	}
}

func (p *Parser) parseLogicalOr() *ast.Node {
	return p.parseBinaryLevel(p.parseLogicalAnd, map[string]ast.BinaryOp{"||": ast.OpLOr})
}
func (p *Parser) parseLogicalAnd() *ast.Node {
	return p.parseBinaryLevel(p.parseEquality, map[string]ast.BinaryOp{"&&": ast.OpLAnd})
}

func (p *Parser) parseEquality() *ast.Node {
	lhs := p.parseRelational()
	for {
		t := p.cur()
		if t.Kind != lexer.Punct {
			return lhs
		}
		var op ast.CompareOp
		switch p.tab.Get(t.Symbol) {
		case "==":
			op = ast.CmpEq
		case "!=":
			op = ast.CmpNe
		default:
			return lhs
		}
		p.advance()
		rhs := p.parseRelational()
		lhs = p.arena.New(ast.KindComparison, p.rangeAt(t), &ast.ComparisonPayload{Op: op}, lhs, rhs)
	}
}

func (p *Parser) parseRelational() *ast.Node {
	lhs := p.parseBitOr()
	for {
		t := p.cur()
		if t.Kind != lexer.Punct {
			return lhs
		}
		var op ast.CompareOp
		switch p.tab.Get(t.Symbol) {
		case "<":
			op = ast.CmpLt
		case "<=":
			op = ast.CmpLe
		case ">":
			op = ast.CmpGt
		case ">=":
			op = ast.CmpGe
		default:
			return lhs
		}
		p.advance()
		rhs := p.parseBitOr()
		lhs = p.arena.New(ast.KindComparison, p.rangeAt(t), &ast.ComparisonPayload{Op: op}, lhs, rhs)
	}
}

func (p *Parser) parseBitOr() *ast.Node {
	return p.parseBinaryLevel(p.parseBitXor, map[string]ast.BinaryOp{"|": ast.OpOr})
}
func (p *Parser) parseBitXor() *ast.Node {
	return p.parseBinaryLevel(p.parseBitAnd, map[string]ast.BinaryOp{"^": ast.OpXor})
}
func (p *Parser) parseBitAnd() *ast.Node {
	return p.parseBinaryLevel(p.parseShift, map[string]ast.BinaryOp{"&": ast.OpAnd})
}
func (p *Parser) parseShift() *ast.Node {
	return p.parseBinaryLevel(p.parseAdditive, map[string]ast.BinaryOp{"<<": ast.OpShl, ">>": ast.OpShr})
}
func (p *Parser) parseAdditive() *ast.Node {
	return p.parseBinaryLevel(p.parseMultiplicative, map[string]ast.BinaryOp{"+": ast.OpAdd, "-": ast.OpSub})
}
func (p *Parser) parseMultiplicative() *ast.Node {
	return p.parseBinaryLevel(p.parseUnary, map[string]ast.BinaryOp{"*": ast.OpMul, "/": ast.OpDiv, "%": ast.OpMod})
}

func (p *Parser) parseUnary() *ast.Node {
	t := p.cur()
	if t.Kind == lexer.Punct {
		switch p.tab.Get(t.Symbol) {
		case "-":
			p.advance()
			return p.arena.New(ast.KindUnary, p.rangeAt(t), &ast.UnaryPayload{Op: ast.OpNeg}, p.parseUnary())
		case "!":
			p.advance()
			return p.arena.New(ast.KindUnary, p.rangeAt(t), &ast.UnaryPayload{Op: ast.OpLNot}, p.parseUnary())
		case "~":
			p.advance()
			return p.arena.New(ast.KindUnary, p.rangeAt(t), &ast.UnaryPayload{Op: ast.OpNot}, p.parseUnary())
		case "&":
			p.advance()
			return p.arena.New(ast.KindUnary, p.rangeAt(t), &ast.UnaryPayload{Op: ast.OpAddr}, p.parseUnary())
		case "*":
			p.advance()
			return p.arena.New(ast.KindUnary, p.rangeAt(t), &ast.UnaryPayload{Op: ast.OpDeref}, p.parseUnary())
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() *ast.Node {
	n := p.parsePrimary()
	for {
		switch {
		case p.atText("("):
			n = p.finishCall(n)
		case p.atText("["):
			start := p.advance()
			idx := p.parseExpr()
			p.expectText("]")
			n = p.arena.New(ast.KindIndex, p.rangeAt(start), nil, n, idx)
		case p.atText(".") || p.atText("->"):
			arrow := p.atText("->")
			start := p.advance()
			field := p.advance()
			n = p.arena.New(ast.KindField, p.rangeAt(start), &ast.FieldPayload{Field: field.Symbol, IsArrow: arrow}, n)
		default:
			return n
		}
	}
}

func (p *Parser) finishCall(callee *ast.Node) *ast.Node {
	start := p.expectText("(")
	var name symtab.Key
	if callee.Kind == ast.KindIdent {
		name = callee.Payload.(*ast.IdentPayload).Ident
	}
	var args []*ast.Node
	for !p.atText(")") {
		args = append(args, p.parseExpr())
		if p.atText(",") {
			p.advance()
		}
	}
	p.expectText(")")
	payload := &ast.CallPayload{Name: name}
	return p.arena.New(ast.KindCall, p.rangeAt(start), payload, args...)
}

func (p *Parser) parsePrimary() *ast.Node {
	t := p.cur()
	switch t.Kind {
	case lexer.IntLiteral:
		p.advance()
		return p.arena.New(ast.KindLiteral, p.rangeAt(t), &ast.LiteralPayload{Value: t.Symbol, Type: types.New(types.I32)})
	case lexer.UintLiteral:
		p.advance()
		return p.arena.New(ast.KindLiteral, p.rangeAt(t), &ast.LiteralPayload{Value: t.Symbol, Type: types.New(types.U32)})
	case lexer.FloatLiteral:
		p.advance()
		return p.arena.New(ast.KindLiteral, p.rangeAt(t), &ast.LiteralPayload{Value: t.Symbol, Type: types.New(types.F64)})
	case lexer.CharLiteral:
		p.advance()
		return p.arena.New(ast.KindLiteral, p.rangeAt(t), &ast.LiteralPayload{Value: t.Symbol, Type: types.New(types.Char)})
	case lexer.StringLiteral:
		p.advance()
		return p.arena.New(ast.KindLiteral, p.rangeAt(t), &ast.LiteralPayload{Value: t.Symbol, Type: types.New(types.Char).PointerTo(), IsStr: true})
	case lexer.Keyword:
		switch p.tab.Get(t.Symbol) {
		case "true":
			p.advance()
			return p.arena.New(ast.KindBoolLiteral, p.rangeAt(t), &ast.BoolLiteralPayload{Value: true})
		case "false":
			p.advance()
			return p.arena.New(ast.KindBoolLiteral, p.rangeAt(t), &ast.BoolLiteralPayload{Value: false})
		case "sizeof":
			p.advance()
			p.expectText("(")
			ty := p.parseType()
			p.expectText(")")
			return p.arena.New(ast.KindSizeof, p.rangeAt(t), &ast.SizeofPayload{Target: ty})
		}
	case lexer.Ident:
		p.advance()
		return p.arena.New(ast.KindIdent, p.rangeAt(t), &ast.IdentPayload{Ident: t.Symbol})
	}
	if p.atText("(") {
		p.advance()
		e := p.parseExpr()
		p.expectText(")")
		return e
	}
	p.bag.Errorf(diag.UnexpectedToken, p.rangeAt(t), "unexpected token %q", p.tokenText())
	p.advance()
	return p.arena.New(ast.KindLiteral, p.rangeAt(t), &ast.LiteralPayload{Value: p.tab.Intern("0"), Type: types.New(types.I32)})
}
