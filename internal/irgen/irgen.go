// Package irgen is the AST→IR translator: a post-order walk over the
// type-checked AST that calls the corresponding internal/ir.Builder
// operation for each node kind.
package irgen

import (
	"math"
	"strconv"

	"github.com/Goubermouche/sigma-sub002/internal/ast"
	"github.com/Goubermouche/sigma-sub002/internal/diag"
	"github.com/Goubermouche/sigma-sub002/internal/ir"
	"github.com/Goubermouche/sigma-sub002/internal/symtab"
	"github.com/Goubermouche/sigma-sub002/internal/types"
)

// Module is the translation unit's output: every defined function's IR
// graph, keyed by name. Order preserves source declaration order so that
// repeated compilations of the same unit emit functions identically.
type Module struct {
	Functions map[string]*ir.Function
	Order     []string
}

// Generator holds the state threaded through one compilation unit's
// translation.
type Generator struct {
	tab *symtab.Table
	bag *diag.Bag
	// mangled maps a defined function's identity (name plus signature
	// key, so overloads stay distinct) to its object-file symbol: main
	// keeps its name, every other definition gets a monotonic f<n>.
	// Extern declarations are absent; their calls keep the plain name.
	mangled map[string]string
}

// New returns a Generator reading interned spellings through tab.
func New(tab *symtab.Table, bag *diag.Bag) *Generator {
	return &Generator{tab: tab, bag: bag, mangled: make(map[string]string)}
}

func (g *Generator) mangleKey(ident symtab.Key, sig *ast.Signature) string {
	return g.tab.Get(ident) + "/" + ast.FunctionKey(sig, g.tab)
}

// env is a chain of lexical variable scopes mapping a declared identifier
// to the LOCAL node holding it, mirroring ast.Scope's shape but carrying
// only what the translator needs.
type env struct {
	parent *env
	vars   map[symtab.Key]*ir.Node
}

func newEnv(parent *env) *env { return &env{parent: parent, vars: make(map[symtab.Key]*ir.Node)} }

func (e *env) declare(k symtab.Key, n *ir.Node) { e.vars[k] = n }

func (e *env) lookup(k symtab.Key) *ir.Node {
	for cur := e; cur != nil; cur = cur.parent {
		if n, ok := cur.vars[k]; ok {
			return n
		}
	}
	return nil
}

// legalize collapses a source-level Type to its IR-level DataType:
// signedness and struct both collapse away (struct becomes a pointer to
// its storage; the float kinds are carried at their matching integer bit
// width since this IR has no distinct float DataType).
func legalize(t *types.Type) ir.DataType {
	if t.IsPointer() {
		return ir.TypePtr
	}
	switch t.Kind {
	case types.Void:
		return ir.TypeVoid
	case types.Bool:
		return ir.TypeBool
	case types.I8, types.U8, types.Char:
		return ir.TypeI8
	case types.I16, types.U16:
		return ir.TypeI16
	case types.I32, types.U32, types.F32:
		return ir.TypeI32
	case types.I64, types.U64, types.F64:
		return ir.TypeI64
	case types.Struct:
		return ir.TypePtr
	default:
		return ir.TypeI32
	}
}

// GenProgram translates every function definition in prog into IR.
// Functions are keyed by their emitted symbol: main keeps its name and
// every other definition gets a monotonic f<n>, which also keeps
// overloads of one identifier apart in the container. extern
// declarations have no body and are not present as ir.Function values;
// calls to them are emitted as plain named CALLs, resolved at link time.
func (g *Generator) GenProgram(prog *ast.Program) *Module {
	mod := &Module{Functions: make(map[string]*ir.Function)}

	// Assign every definition's symbol up front so calls to functions
	// declared later in the file resolve.
	next := 0
	for _, fnNode := range prog.Functions {
		p := fnNode.Payload.(*ast.FunctionPayload)
		name := g.tab.Get(p.Ident)
		sym := name
		if name != "main" {
			sym = "f" + strconv.Itoa(next)
			next++
		}
		sig := &ast.Signature{Ident: p.Ident, ReturnType: p.ReturnType, Params: p.Params, HasVarArgs: p.HasVarArgs}
		g.mangled[g.mangleKey(p.Ident, sig)] = sym
	}

	for _, fnNode := range prog.Functions {
		p := fnNode.Payload.(*ast.FunctionPayload)
		sig := &ast.Signature{Ident: p.Ident, ReturnType: p.ReturnType, Params: p.Params, HasVarArgs: p.HasVarArgs}
		sym := g.mangled[g.mangleKey(p.Ident, sig)]
		mod.Functions[sym] = g.genFunction(fnNode, sym)
		mod.Order = append(mod.Order, sym)
	}
	return mod
}

func (g *Generator) genFunction(fnNode *ast.Node, name string) *ir.Function {
	p := fnNode.Payload.(*ast.FunctionPayload)

	paramTypes := make([]ir.DataType, len(p.Params))
	for i, param := range p.Params {
		paramTypes[i] = legalize(param.Type)
	}
	fn := ir.NewFunction(name, legalize(p.ReturnType), paramTypes)
	b := ir.NewBuilder(fn)
	top := newEnv(nil)

	for i, param := range p.Params {
		local := b.CreateLocal(param.Type.Size(), param.Type.Align(), g.tab.Get(param.Ident))
		b.CreateStore(local, b.GetFunctionParameter(i))
		top.declare(param.Ident, local)
	}

	terminated := g.genStatements(b, top, fnNode.Children)
	if !terminated {
		if p.ReturnType.Kind == types.Void {
			b.CreateReturn()
		} else {
			b.CreateUnreachable()
		}
	}
	return fn
}

// genStatements translates stmts in order, short-circuiting once a
// terminator (a return, or an if whose every arm terminates) has been
// emitted — anything textually after that point is unreachable. A while
// never terminates the list.
func (g *Generator) genStatements(b *ir.Builder, e *env, stmts []*ast.Node) bool {
	for _, s := range stmts {
		if g.genStatement(b, e, s) {
			return true
		}
	}
	return false
}

func (g *Generator) genStatement(b *ir.Builder, e *env, n *ast.Node) bool {
	switch n.Kind {
	case ast.KindBlock:
		child := newEnv(e)
		return g.genStatements(b, child, n.Children)

	case ast.KindReturn:
		p := n.Payload.(*ast.ReturnPayload)
		if p.HasValue {
			v := g.genExpr(b, e, n.Children[0])
			b.CreateReturn(v)
		} else {
			b.CreateReturn()
		}
		return true

	case ast.KindIf:
		return g.genIf(b, e, n)

	case ast.KindWhile:
		g.genWhile(b, e, n)
		return false

	case ast.KindVarDecl:
		g.genVarDecl(b, e, n)
		return false

	case ast.KindExprStmt:
		g.genExpr(b, e, n.Children[0])
		return false

	default:
		g.genExpr(b, e, n)
		return false
	}
}

// genIf lowers an if/else-if/else chain. Each if level creates its own
// end region, and every arm of that level that does not terminate
// CreateJumps to it. The chain does not share one end region: a nested
// else-if has its own end region, which then jumps on to the outer one.
func (g *Generator) genIf(b *ir.Builder, e *env, n *ast.Node) bool {
	p := n.Payload.(*ast.IfPayload)
	cond := g.genExpr(b, e, n.Children[0])

	trueRegion := b.CreateRegion()
	falseRegion := b.CreateRegion()
	endRegion := b.CreateRegion()
	b.CreateBranch(cond, trueRegion, falseRegion)

	thenStart := 1
	if p.HasElse {
		thenStart = 2
	}

	b.SetControl(trueRegion)
	thenTerminated := g.genStatements(b, newEnv(e), n.Children[thenStart:])
	if !thenTerminated {
		b.CreateJump(endRegion)
	}

	b.SetControl(falseRegion)
	elseTerminated := false
	if p.HasElse {
		elseBranch := n.Children[1]
		if elseBranch.Kind == ast.KindIf {
			elseTerminated = g.genIf(b, e, elseBranch)
		} else {
			elseTerminated = g.genStatements(b, newEnv(e), elseBranch.Children)
		}
	}
	if !elseTerminated {
		b.CreateJump(endRegion)
	}

	if thenTerminated && elseTerminated {
		return true
	}
	b.SetControl(endRegion)
	return false
}

func (g *Generator) genWhile(b *ir.Builder, e *env, n *ast.Node) {
	header := b.CreateRegion(b.Control())
	b.SetControl(header)
	cond := g.genExpr(b, e, n.Children[0])

	bodyRegion := b.CreateRegion()
	exitRegion := b.CreateRegion()
	b.CreateBranch(cond, bodyRegion, exitRegion)

	b.SetControl(bodyRegion)
	terminated := g.genStatements(b, newEnv(e), n.Children[1:])
	if !terminated {
		b.CreateJump(header) // back edge: header gains this block as a predecessor
	}

	b.SetControl(exitRegion)
}

func (g *Generator) genVarDecl(b *ir.Builder, e *env, n *ast.Node) {
	p := n.Payload.(*ast.VarDeclPayload)
	local := b.CreateLocal(p.Type.Size(), p.Type.Align(), g.tab.Get(p.Ident))
	e.declare(p.Ident, local)
	if p.HasInit {
		v := g.genExpr(b, e, n.Children[0])
		b.CreateStore(local, v)
	} else if p.Type.Kind == types.Bool {
		b.CreateStore(local, b.CreateBool(false))
	}
}

// genAddr returns the address-valued node for an assignable expression.
func (g *Generator) genAddr(b *ir.Builder, e *env, n *ast.Node) *ir.Node {
	switch n.Kind {
	case ast.KindIdent:
		p := n.Payload.(*ast.IdentPayload)
		local := e.lookup(p.Ident)
		if local == nil {
			panic("irgen: use of undeclared identifier after type checking")
		}
		return local
	case ast.KindUnary:
		p := n.Payload.(*ast.UnaryPayload)
		if p.Op == ast.OpDeref {
			return g.genExpr(b, e, n.Children[0])
		}
	}
	panic("irgen: expression is not assignable")
}

func (g *Generator) genExpr(b *ir.Builder, e *env, n *ast.Node) *ir.Node {
	switch n.Kind {
	case ast.KindLiteral:
		return g.genLiteral(b, n)

	case ast.KindBoolLiteral:
		p := n.Payload.(*ast.BoolLiteralPayload)
		return b.CreateBool(p.Value)

	case ast.KindIdent:
		p := n.Payload.(*ast.IdentPayload)
		local := e.lookup(p.Ident)
		if local == nil {
			panic("irgen: use of undeclared identifier after type checking")
		}
		return b.CreateLoad(local, legalize(p.Type))

	case ast.KindCast:
		// This IR has no explicit conversion node (see legalize's doc
		// comment); a cast is a no-op at this layer, the value keeps the
		// DataType its producer already gave it.
		return g.genExpr(b, e, n.Children[0])

	case ast.KindBinary:
		return g.genBinary(b, e, n)

	case ast.KindUnary:
		return g.genUnary(b, e, n)

	case ast.KindComparison:
		return g.genComparison(b, e, n)

	case ast.KindAssign:
		addr := g.genAddr(b, e, n.Children[0])
		v := g.genExpr(b, e, n.Children[1])
		b.CreateStore(addr, v)
		return v

	case ast.KindCall:
		return g.genCall(b, e, n)

	case ast.KindSizeof:
		p := n.Payload.(*ast.SizeofPayload)
		return b.CreateUnsignedInteger(int64(p.Target.Size()), 64)

	case ast.KindField, ast.KindIndex:
		addr := g.genAddr(b, e, n)
		return b.CreateLoad(addr, legalize(n.Type))

	default:
		panic("irgen: unhandled expression kind")
	}
}

func (g *Generator) genLiteral(b *ir.Builder, n *ast.Node) *ir.Node {
	p := n.Payload.(*ast.LiteralPayload)
	spelling := g.tab.Get(p.Value)
	if p.IsStr {
		return b.CreateString(spelling)
	}
	bits := p.Type.Size() * 8
	if bits == 0 {
		bits = 32
	}
	if p.Type.IsFloat() {
		v, _ := strconv.ParseFloat(spelling, 64)
		// This IR has no float DataType (see legalize's doc comment); the
		// bit pattern is carried as a same-width integer constant.
		if bits == 32 {
			return b.CreateSignedInteger(int64(int32(math.Float32bits(float32(v)))), bits)
		}
		return b.CreateSignedInteger(int64(math.Float64bits(v)), bits)
	}
	if p.Type.IsSigned() {
		v, _ := strconv.ParseInt(spelling, 10, 64)
		return b.CreateSignedInteger(v, bits)
	}
	v, _ := strconv.ParseUint(spelling, 10, 64)
	return b.CreateUnsignedInteger(int64(v), bits)
}

func (g *Generator) genBinary(b *ir.Builder, e *env, n *ast.Node) *ir.Node {
	p := n.Payload.(*ast.BinaryPayload)
	lhs := g.genExpr(b, e, n.Children[0])
	rhs := g.genExpr(b, e, n.Children[1])
	dt := legalize(n.Type)
	signed := n.Type != nil && n.Type.IsSigned()
	switch p.Op {
	case ast.OpAdd:
		return b.CreateAdd(lhs, rhs, dt)
	case ast.OpSub:
		return b.CreateSub(lhs, rhs, dt)
	case ast.OpMul:
		return b.CreateMul(lhs, rhs, dt)
	case ast.OpDiv:
		if signed {
			return b.CreateDivS(lhs, rhs, dt)
		}
		return b.CreateDivU(lhs, rhs, dt)
	case ast.OpMod:
		if signed {
			return b.CreateModS(lhs, rhs, dt)
		}
		return b.CreateModU(lhs, rhs, dt)
	case ast.OpAnd:
		return b.CreateAnd(lhs, rhs, dt)
	case ast.OpOr:
		return b.CreateOr(lhs, rhs, dt)
	case ast.OpXor:
		return b.CreateXor(lhs, rhs, dt)
	case ast.OpShl:
		return b.CreateShl(lhs, rhs, dt)
	case ast.OpShr:
		if signed {
			return b.CreateShrS(lhs, rhs, dt)
		}
		return b.CreateShrU(lhs, rhs, dt)
	case ast.OpLAnd:
		return b.CreateAnd(lhs, rhs, ir.TypeBool)
	case ast.OpLOr:
		return b.CreateOr(lhs, rhs, ir.TypeBool)
	default:
		panic("irgen: unhandled binary operator")
	}
}

func (g *Generator) genUnary(b *ir.Builder, e *env, n *ast.Node) *ir.Node {
	p := n.Payload.(*ast.UnaryPayload)
	switch p.Op {
	case ast.OpAddr:
		return g.genAddr(b, e, n.Children[0])
	case ast.OpDeref:
		addr := g.genExpr(b, e, n.Children[0])
		return b.CreateLoad(addr, legalize(n.Type))
	case ast.OpNeg:
		v := g.genExpr(b, e, n.Children[0])
		return b.CreateNeg(v, legalize(n.Type))
	case ast.OpNot:
		v := g.genExpr(b, e, n.Children[0])
		return b.CreateNot(v, legalize(n.Type))
	case ast.OpLNot:
		v := g.genExpr(b, e, n.Children[0])
		return b.CreateCmpEq(v, b.CreateBool(false))
	default:
		panic("irgen: unhandled unary operator")
	}
}

func (g *Generator) genComparison(b *ir.Builder, e *env, n *ast.Node) *ir.Node {
	p := n.Payload.(*ast.ComparisonPayload)
	lhs := g.genExpr(b, e, n.Children[0])
	rhs := g.genExpr(b, e, n.Children[1])
	unsigned := p.Flavor == ast.FlavorUnsignedInt || p.Flavor == ast.FlavorPointer
	switch p.Op {
	case ast.CmpEq:
		return b.CreateCmpEq(lhs, rhs)
	case ast.CmpNe:
		return b.CreateCmpNe(lhs, rhs)
	case ast.CmpLt:
		if unsigned {
			return b.CreateCmpLtU(lhs, rhs)
		}
		return b.CreateCmpLtS(lhs, rhs)
	case ast.CmpLe:
		if unsigned {
			return b.CreateCmpLeU(lhs, rhs)
		}
		return b.CreateCmpLeS(lhs, rhs)
	case ast.CmpGt:
		if unsigned {
			return b.CreateCmpGtU(lhs, rhs)
		}
		return b.CreateCmpGtS(lhs, rhs)
	case ast.CmpGe:
		if unsigned {
			return b.CreateCmpGeU(lhs, rhs)
		}
		return b.CreateCmpGeS(lhs, rhs)
	default:
		panic("irgen: unhandled comparison operator")
	}
}

func (g *Generator) genCall(b *ir.Builder, e *env, n *ast.Node) *ir.Node {
	p := n.Payload.(*ast.CallPayload)
	args := make([]*ir.Node, len(n.Children))
	for i, c := range n.Children {
		args[i] = g.genExpr(b, e, c)
	}
	name := g.tab.Get(p.Name)
	if p.Signature != nil {
		if sym, ok := g.mangled[g.mangleKey(p.Name, p.Signature)]; ok {
			name = sym
		}
	}
	return b.CreateCall(name, args, legalize(n.Type))
}
