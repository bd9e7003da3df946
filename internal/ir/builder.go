package ir

// Builder is the per-function graph construction API: it incrementally
// builds the node graph while tracking the "current control" cursor.
// Each constructor allocates the node, wires input edges, installs User
// records on every input's use-list, and for stateful nodes updates the
// cursor. Constant folding is not performed at this layer.
type Builder struct {
	Fn      *Function
	control *Node // current control cursor

	params []*Node // parameter projections, index-addressable
}

// NewBuilder returns a builder positioned at fn's entry. It immediately
// materializes one Projection per parameter, pinned so the scheduler
// never moves them off the entry.
func NewBuilder(fn *Function) *Builder {
	b := &Builder{Fn: fn, control: fn.Entry}
	for i := range fn.ParamTypes {
		p := fn.alloc(KindProjection, fn.ParamTypes[i], ProjectionPayload{Index: i})
		p.Pinned = true
		b.wire(p, fn.Entry)
		b.params = append(b.params, p)
	}
	return b
}

// wire appends input as the next input edge of n and installs the User
// record.
func (b *Builder) wire(n, input *Node) {
	slot := len(n.Inputs)
	n.Inputs = append(n.Inputs, input)
	b.Fn.addUser(input, n, slot)
}

// GetFunctionParameter returns the i'th parameter's projection node.
func (b *Builder) GetFunctionParameter(i int) *Node {
	return b.params[i]
}

// SetControl repositions the cursor at region, e.g. when translating an
// if/else branch's arms.
func (b *Builder) SetControl(region *Node) { b.control = region }

// Control returns the current control cursor.
func (b *Builder) Control() *Node { return b.control }

// CreateRegion allocates a new REGION node (a basic-block head) with the
// given predecessor control edges.
func (b *Builder) CreateRegion(preds ...*Node) *Node {
	r := b.Fn.alloc(KindRegion, TypeVoid, nil)
	r.Pinned = true
	for _, p := range preds {
		b.wire(r, p)
	}
	return r
}

// AddPredecessor appends one more predecessor control edge to an
// already-created region (used when a region's predecessor count isn't
// known up front, e.g. a loop header).
func (b *Builder) AddPredecessor(region, pred *Node) {
	b.wire(region, pred)
}

// CreateBranch terminates the current control with a BRANCH on condition,
// producing two Projection nodes (true/false) wired to trueRegion and
// falseRegion as new predecessors. Returns the branch node.
func (b *Builder) CreateBranch(condition *Node, trueRegion, falseRegion *Node) *Node {
	br := b.Fn.alloc(KindBranch, TypeTuple, nil)
	br.Pinned = true
	b.wire(br, b.control)
	b.wire(br, condition)

	tproj := b.Fn.alloc(KindProjection, TypeVoid, ProjectionPayload{Index: 0})
	tproj.Pinned = true
	b.wire(tproj, br)
	fproj := b.Fn.alloc(KindProjection, TypeVoid, ProjectionPayload{Index: 1})
	fproj.Pinned = true
	b.wire(fproj, br)
	br.Payload = BranchPayload{True: tproj, False: fproj}

	b.wire(trueRegion, tproj)
	b.wire(falseRegion, fproj)
	return br
}

// CreateJump terminates the current control with an unconditional jump by
// adding it as a predecessor of target (regions have no explicit "jump"
// node in a sea-of-nodes graph — the predecessor edge *is* the jump).
func (b *Builder) CreateJump(target *Node) {
	b.wire(target, b.control)
}

// CreateReturn terminates the current control with a RETURN carrying the
// given values (0 or 1 for this language: void or a single scalar) and
// wires it into the function Exit.
func (b *Builder) CreateReturn(values ...*Node) *Node {
	ret := b.Fn.alloc(KindReturn, TypeVoid, nil)
	ret.Pinned = true
	b.wire(ret, b.control)
	for _, v := range values {
		b.wire(ret, v)
	}
	b.wire(b.Fn.Exit, ret)
	return ret
}

// CreateUnreachable terminates the current control as dead code.
func (b *Builder) CreateUnreachable() *Node {
	u := b.Fn.alloc(KindUnreachable, TypeVoid, nil)
	u.Pinned = true
	b.wire(u, b.control)
	return u
}

// CreateLocal allocates a stack slot of the given size/alignment. Locals
// are pinned.
func (b *Builder) CreateLocal(size, align int, name string) *Node {
	n := b.Fn.alloc(KindLocal, TypePtr, LocalPayload{Size: size, Align: align, Name: name})
	n.Pinned = true
	return n
}

// CreateLoad loads dt from address addr, sequenced after the current
// control.
func (b *Builder) CreateLoad(addr *Node, dt DataType) *Node {
	n := b.Fn.alloc(KindLoad, dt, nil)
	b.wire(n, b.control)
	b.wire(n, addr)
	b.control = n
	return n
}

// CreateStore stores value to addr, sequenced after the current control.
func (b *Builder) CreateStore(addr, value *Node) *Node {
	n := b.Fn.alloc(KindStore, TypeVoid, nil)
	b.wire(n, b.control)
	b.wire(n, addr)
	b.wire(n, value)
	b.control = n
	return n
}

// CreateCall emits a call to callee with args, sequenced after the current
// control. ret is the IR-level return type (TypeVoid for a void callee).
func (b *Builder) CreateCall(callee string, args []*Node, ret DataType) *Node {
	n := b.Fn.alloc(KindCall, ret, CallPayload{Callee: callee, ArgCount: len(args)})
	b.wire(n, b.control)
	for _, a := range args {
		b.wire(n, a)
	}
	b.control = n
	return n
}

// binary allocates a pure binary data node; these are unpinned and left
// for the scheduler to place.
func (b *Builder) binary(kind Kind, dt DataType, l, r *Node) *Node {
	n := b.Fn.alloc(kind, dt, nil)
	b.wire(n, l)
	b.wire(n, r)
	return n
}

func (b *Builder) CreateAdd(l, r *Node, dt DataType) *Node  { return b.binary(KindAdd, dt, l, r) }
func (b *Builder) CreateSub(l, r *Node, dt DataType) *Node  { return b.binary(KindSub, dt, l, r) }
func (b *Builder) CreateMul(l, r *Node, dt DataType) *Node  { return b.binary(KindMul, dt, l, r) }
func (b *Builder) CreateDivS(l, r *Node, dt DataType) *Node { return b.binary(KindDivS, dt, l, r) }
func (b *Builder) CreateDivU(l, r *Node, dt DataType) *Node { return b.binary(KindDivU, dt, l, r) }
func (b *Builder) CreateModS(l, r *Node, dt DataType) *Node { return b.binary(KindModS, dt, l, r) }
func (b *Builder) CreateModU(l, r *Node, dt DataType) *Node { return b.binary(KindModU, dt, l, r) }
func (b *Builder) CreateAnd(l, r *Node, dt DataType) *Node  { return b.binary(KindAnd, dt, l, r) }
func (b *Builder) CreateOr(l, r *Node, dt DataType) *Node   { return b.binary(KindOr, dt, l, r) }
func (b *Builder) CreateXor(l, r *Node, dt DataType) *Node  { return b.binary(KindXor, dt, l, r) }
func (b *Builder) CreateShl(l, r *Node, dt DataType) *Node  { return b.binary(KindShl, dt, l, r) }
func (b *Builder) CreateShrS(l, r *Node, dt DataType) *Node { return b.binary(KindShrS, dt, l, r) }
func (b *Builder) CreateShrU(l, r *Node, dt DataType) *Node { return b.binary(KindShrU, dt, l, r) }

func (b *Builder) CreateNeg(v *Node, dt DataType) *Node {
	n := b.Fn.alloc(KindNeg, dt, nil)
	b.wire(n, v)
	return n
}
func (b *Builder) CreateNot(v *Node, dt DataType) *Node {
	n := b.Fn.alloc(KindNot, dt, nil)
	b.wire(n, v)
	return n
}

// compareKinds maps a source compare op and signedness/float-ness to an IR
// comparison Kind.
func (b *Builder) createCompare(kind Kind, l, r *Node) *Node {
	n := b.Fn.alloc(kind, TypeBool, nil)
	b.wire(n, l)
	b.wire(n, r)
	return n
}

func (b *Builder) CreateCmpEq(l, r *Node) *Node  { return b.createCompare(KindCmpEq, l, r) }
func (b *Builder) CreateCmpNe(l, r *Node) *Node  { return b.createCompare(KindCmpNe, l, r) }
func (b *Builder) CreateCmpLtS(l, r *Node) *Node { return b.createCompare(KindCmpLtS, l, r) }
func (b *Builder) CreateCmpLtU(l, r *Node) *Node { return b.createCompare(KindCmpLtU, l, r) }
func (b *Builder) CreateCmpLeS(l, r *Node) *Node { return b.createCompare(KindCmpLeS, l, r) }
func (b *Builder) CreateCmpLeU(l, r *Node) *Node { return b.createCompare(KindCmpLeU, l, r) }
func (b *Builder) CreateCmpGtS(l, r *Node) *Node { return b.createCompare(KindCmpGtS, l, r) }
func (b *Builder) CreateCmpGtU(l, r *Node) *Node { return b.createCompare(KindCmpGtU, l, r) }
func (b *Builder) CreateCmpGeS(l, r *Node) *Node { return b.createCompare(KindCmpGeS, l, r) }
func (b *Builder) CreateCmpGeU(l, r *Node) *Node { return b.createCompare(KindCmpGeU, l, r) }

// CreateSignedInteger/CreateUnsignedInteger/CreateBool/CreateString are
// the constant constructors.
func (b *Builder) CreateSignedInteger(value int64, bits int) *Node {
	return b.Fn.alloc(KindIntConst, bitsToType(bits), IntConstPayload{Value: value, Signed: true})
}
func (b *Builder) CreateUnsignedInteger(value int64, bits int) *Node {
	return b.Fn.alloc(KindIntConst, bitsToType(bits), IntConstPayload{Value: value, Signed: false})
}
func (b *Builder) CreateBool(value bool) *Node {
	v := int64(0)
	if value {
		v = 1
	}
	return b.Fn.alloc(KindIntConst, TypeBool, IntConstPayload{Value: v, Signed: false})
}
func (b *Builder) CreateString(s string) *Node {
	return b.Fn.alloc(KindStrConst, TypePtr, StrConstPayload{Value: s})
}

// CreateSymbol references a named external or global symbol.
func (b *Builder) CreateSymbol(name string) *Node {
	return b.Fn.alloc(KindSymbol, TypePtr, SymbolPayload{Name: name})
}

// CreatePhi allocates a PHI attached to region with the given per-
// predecessor inputs; input_count must equal region's input_count
//. PHIs are pinned.
func (b *Builder) CreatePhi(region *Node, dt DataType, inputs []*Node) *Node {
	if len(inputs) != len(region.Inputs) {
		panic("ir: phi input count must match region predecessor count")
	}
	n := b.Fn.alloc(KindPhi, dt, nil)
	n.Pinned = true
	b.wire(n, region)
	for _, in := range inputs {
		b.wire(n, in)
	}
	return n
}

func bitsToType(bits int) DataType {
	switch bits {
	case 8:
		return TypeI8
	case 16:
		return TypeI16
	case 32:
		return TypeI32
	case 64:
		return TypeI64
	}
	return TypeI32
}
