// Package isel implements the x64 instruction selector: it tiles
// scheduled IR into a doubly-threaded list of pseudo-register Instruction
// records, one per basic block in RPO order, ready for internal/liverange
// and internal/regalloc.
package isel

import (
	"fmt"
	"sort"

	"github.com/Goubermouche/sigma-sub002/internal/cfg"
	"github.com/Goubermouche/sigma-sub002/internal/ir"
)

// Opcode is a closed enum of instruction mnemonics. This IR legalizes
// every source-level float to a same-width integer bit pattern before it
// reaches the selector (internal/irgen's legalize doc comment), so no
// SSE opcode or XMM operand class is exercised by this corpus — the GPR
// subset below is the complete set the selector ever emits.
type Opcode int

const (
	OpLabel Opcode = iota
	OpMov
	OpMovAbs
	OpZero
	OpLea
	OpAdd
	OpSub
	OpIMul
	OpIDiv // signed division: dividend in RAX:RDX, quotient to RAX
	OpDiv  // unsigned division
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpSar // arithmetic (signed) shift right
	OpShr // logical (unsigned) shift right
	OpCmp
	OpTest
	OpSetE
	OpSetNE
	OpSetLS // signed less-than
	OpSetLU // unsigned less-than (below)
	OpSetLeS
	OpSetLeU
	OpSetGS
	OpSetGU
	OpSetGeS
	OpSetGeU
	OpMovzx // zero-extend a SETcc byte result into a full register
	OpLoad  // RM: dst = [base + disp]
	OpStore // MR: [base + disp] = src
	OpPush
	OpPop
	OpCall
	OpJmp
	OpJcc   // conditional jump; Cond field selects the flag test
	OpRet
	OpEpilogue // pseudo marking the function's single return point
	OpUD2      // unreachable trap
)

// Cond selects the flag test for a conditional SETcc/Jcc instruction.
type Cond int

const (
	CondEQ Cond = iota
	CondNE
	CondLS
	CondLU
	CondLeS
	CondLeU
	CondGS
	CondGU
	CondGeS
	CondGeU
	CondNZ // operand itself is nonzero (used for boolean branch conditions)
)

// DataType is the x64 operand width/class tag.
type DataType int

const (
	Byte DataType = iota
	Word
	Dword
	Qword
	Pointer
)

func DataTypeOf(dt ir.DataType) DataType {
	switch dt {
	case ir.TypeI8, ir.TypeBool:
		return Byte
	case ir.TypeI16:
		return Word
	case ir.TypeI32:
		return Dword
	case ir.TypeI64:
		return Qword
	case ir.TypePtr:
		return Pointer
	default:
		return Qword
	}
}

// Flag is a bitset of per-instruction modifiers.
type Flag uint16

const (
	FlagLock Flag = 1 << iota
	FlagRep
	FlagMem       // one operand is a memory reference, not a register
	FlagGlobal    // operand references a global/external symbol by name
	FlagImmediate // Imm carries a literal operand
	FlagAbsolute  // the immediate is an absolute 64-bit address (MOVABS)
	FlagIndexed   // memory operand uses base+index*scale
	FlagSpill     // inserted by internal/regalloc when splitting
)

// MemOperand is a [base + index*scale + disp] addressing form, or a
// frame-slot/global reference resolved later by internal/emit.
type MemOperand struct {
	BaseVReg  int // -1 if none (pure global reference)
	IndexVReg int // -1 if none
	Scale     int
	Disp      int32
	Slot      int    // >=0: a stack frame slot (internal/emit assigns rbp-relative offsets)
	HasSlot   bool
	Global    string // non-empty: RIP-relative global/external reference
}

// Instruction is one entry of the selected instruction list: an
// opcode, a flat operand slice of virtual-register indices in canonical
// order (outs, then ins, then temps), an x64 DataType, a flag bitset, an
// optional memory operand, an
// optional inline immediate/absolute/target payload, a Time stamp
// (filled by internal/liverange), and the Next link of the doubly-
// threaded list.
type Instruction struct {
	Op       Opcode
	Cond     Cond
	DataType DataType
	Flags    Flag

	Out  []int // vreg indices written
	In   []int // vreg indices read
	Tmp  []int // vreg indices clobbered, untagged for REG

	Mem  *MemOperand
	Imm  int64
	Abs  uint64
	Target *ir.Node // branch/call/label target
	Callee string

	Time int
	Prev, Next *Instruction
}

// AllOperands returns Out, In, Tmp concatenated in the canonical order
// internal/liverange's Pass A/C read operand positions in.
func (instr *Instruction) AllOperands() []int {
	all := make([]int, 0, len(instr.Out)+len(instr.In)+len(instr.Tmp))
	all = append(all, instr.Out...)
	all = append(all, instr.In...)
	all = append(all, instr.Tmp...)
	return all
}

// Physical GPR indices, 0..15 — the first 16 of the 32 fixed intervals
// the selector pre-allocates so calling conventions can pin specific
// physical registers by index.
const (
	RAX = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// XMM0 is the base index of the (unused by this corpus, see Opcode's
// doc comment) second bank of 16 fixed intervals.
const XMM0 = 16

// NumFixedRegs is the 32 pre-allocated fixed intervals (16 GPR + 16
// XMM).
const NumFixedRegs = 32

// CalleeSaved is the Win64 callee-saved GPR set; internal/regalloc reads
// this set to bias allocateFreeReg toward caller-saved registers unless
// spilling would be cheaper.
var CalleeSaved = map[int]bool{RBX: true, RBP: true, RSI: true, RDI: true, R12: true, R13: true, R14: true, R15: true}

// Win64GPRArgs is the Win64 parameter descriptor: rcx, rdx, r8, r9 for
// the first four GPR argument slots. Anything past index 3 is passed on
// the stack.
var Win64GPRArgs = []int{RCX, RDX, R8, R9}

// Win64CallerSaved is the Win64 caller-saved GPR mask baked into the
// selector's calling-convention table.
var Win64CallerSaved = map[int]bool{RAX: true, RCX: true, RDX: true, R8: true, R9: true, R10: true, R11: true}

// Function is one function's selected instruction list plus the vreg
// bookkeeping internal/liverange and internal/regalloc need.
type Function struct {
	Name       string
	First      *Instruction
	Last       *Instruction
	NumVRegs   int // includes the NumFixedRegs physical aliases
	Locals     []LocalSlot
	ReturnType DataType
	Blocks     []*cfg.BasicBlock // RPO order, for internal/liverange's block walk
	BlockOf    map[*Instruction]*cfg.BasicBlock
}

// LocalSlot is one stack-frame slot reserved for an ir.KindLocal node.
type LocalSlot struct {
	Size, Align int
	Name        string
}

// Select tiles every scheduled node into fn's Instruction list. fn's IR
// must already have a cfg.Graph g built over it.
func Select(irfn *ir.Function, g *cfg.Graph, sched map[*cfg.BasicBlock][]*ir.Node) *Function {
	s := &selector{
		irfn:    irfn,
		g:       g,
		sched:   sched,
		vreg:    make(map[*ir.Node]int),
		slot:    make(map[*ir.Node]int),
		fn:      &Function{Name: irfn.Name, ReturnType: DataTypeOf(irfn.ReturnType), BlockOf: make(map[*Instruction]*cfg.BasicBlock)},
		nextVReg: NumFixedRegs,
	}
	s.selectLocals()
	for _, b := range g.RPO {
		s.fn.Blocks = append(s.fn.Blocks, b)
		s.cur = b
		s.emit(OpLabel, nil)
		for _, n := range sched[b] {
			s.selectNode(b, n)
		}
		s.selectTerminator(b)
	}
	s.resolvePhis()
	s.fn.NumVRegs = s.nextVReg
	return s.fn
}

type selector struct {
	irfn *ir.Function
	g    *cfg.Graph
	sched map[*cfg.BasicBlock][]*ir.Node

	vreg map[*ir.Node]int // data node -> vreg holding its value
	slot map[*ir.Node]int // KindLocal node -> frame slot index

	fn  *Function
	cur *cfg.BasicBlock

	nextVReg int

	// phiCopies accumulates, per predecessor block, the (destVReg,
	// srcVReg) pairs a PHI's resolution needs inserted just before that
	// predecessor's terminator jump: classical SSA destruction, done at
	// selection time.
	phiCopies map[*cfg.BasicBlock][][2]int
}

func (s *selector) newVReg() int {
	v := s.nextVReg
	s.nextVReg++
	return v
}

func (s *selector) selectLocals() {
	for _, n := range s.irfn.Nodes() {
		if n.Kind == ir.KindLocal {
			p := n.Payload.(ir.LocalPayload)
			s.slot[n] = len(s.fn.Locals)
			s.fn.Locals = append(s.fn.Locals, LocalSlot{Size: p.Size, Align: p.Align, Name: p.Name})
		}
	}
}

func (s *selector) emit(op Opcode, outs []int, ins ...int) *Instruction {
	instr := &Instruction{Op: op, Out: outs, In: ins}
	s.append(instr)
	return instr
}

func (s *selector) append(instr *Instruction) {
	if s.fn.First == nil {
		s.fn.First = instr
	} else {
		s.fn.Last.Next = instr
		instr.Prev = s.fn.Last
	}
	s.fn.Last = instr
	s.fn.BlockOf[instr] = s.cur
}

func (s *selector) valueOf(n *ir.Node) int {
	if v, ok := s.vreg[n]; ok {
		return v
	}
	v := s.selectExpr(n)
	s.vreg[n] = v
	return v
}

// selectNode dispatches one scheduled node. Control/terminator nodes
// (BRANCH/RETURN/EXIT/UNREACHABLE) are handled by selectTerminator once
// per block instead, since their shape depends on the block's CFG
// successors, not just the node itself.
func (s *selector) selectNode(b *cfg.BasicBlock, n *ir.Node) {
	s.cur = b
	switch n.Kind {
	case ir.KindEntry, ir.KindExit, ir.KindRegion, ir.KindProjection, ir.KindLocal:
		// No code: Entry/Exit/Region are pure control markers, parameter
		// Projections are materialised by valueOf (paramVReg) at their
		// first use, and Local
		// is a frame slot already recorded by selectLocals.
		return
	case ir.KindBranch, ir.KindReturn, ir.KindUnreachable:
		return // handled by selectTerminator
	case ir.KindPhi:
		s.vreg[n] = s.newVReg() // destination only; sources wired in resolvePhis
		return
	case ir.KindStore:
		s.selectStore(n)
		return
	default:
		s.vreg[n] = s.valueOf(n)
	}
}

// selectStore has no result vreg, so it is
// selected directly from selectNode rather than through selectExpr/valueOf.
func (s *selector) selectStore(n *ir.Node) {
	addr := n.Inputs[1]
	value := s.valueOf(n.Inputs[2])
	mem := s.addrOf(addr)
	s.append(&Instruction{Op: OpStore, In: []int{value}, DataType: DataTypeOf(n.Inputs[2].Type), Flags: FlagMem, Mem: mem})
}

// selectExpr tiles a single data node into its defining instruction(s)
// and returns the vreg holding its result.
func (s *selector) selectExpr(n *ir.Node) int {
	dt := DataTypeOf(n.Type)
	switch n.Kind {
	case ir.KindEntry:
		return -1

	case ir.KindProjection:
		p := n.Payload.(ir.ProjectionPayload)
		if n.Inputs[0].Kind == ir.KindEntry {
			return s.paramVReg(p.Index, dt)
		}
		return -1

	case ir.KindIntConst:
		p := n.Payload.(ir.IntConstPayload)
		dst := s.newVReg()
		if p.Value == 0 {
			s.emit(OpZero, []int{dst})
			return dst
		}
		instr := &Instruction{Op: OpMov, Out: []int{dst}, DataType: dt, Flags: FlagImmediate, Imm: p.Value}
		if dt == Qword && (p.Value > 0x7fffffff || p.Value < -0x80000000) {
			instr.Op = OpMovAbs
			instr.Flags = FlagAbsolute
			instr.Abs = uint64(p.Value)
		}
		s.append(instr)
		return dst

	case ir.KindStrConst, ir.KindSymbol:
		dst := s.newVReg()
		name := globalName(n)
		// Target keeps the IR node so the emitter can tell a string
		// constant (whose bytes it must place in rodata) from a plain
		// symbol reference.
		instr := &Instruction{Op: OpLea, Out: []int{dst}, DataType: Pointer, Flags: FlagGlobal | FlagMem, Callee: name, Target: n}
		s.append(instr)
		return dst

	case ir.KindLoad:
		return s.selectLoad(n, dt)

	case ir.KindAdd, ir.KindSub, ir.KindMul, ir.KindAnd, ir.KindOr, ir.KindXor,
		ir.KindShl, ir.KindShrS, ir.KindShrU:
		return s.selectBinary(n, dt)

	case ir.KindDivS, ir.KindDivU, ir.KindModS, ir.KindModU:
		return s.selectDivMod(n, dt)

	case ir.KindNeg:
		v := s.valueOf(n.Inputs[0])
		dst := s.newVReg()
		s.emit(OpNeg, []int{dst}, v)
		return dst

	case ir.KindNot:
		v := s.valueOf(n.Inputs[0])
		dst := s.newVReg()
		s.emit(OpNot, []int{dst}, v)
		return dst

	case ir.KindCmpEq, ir.KindCmpNe, ir.KindCmpLtS, ir.KindCmpLtU, ir.KindCmpLeS,
		ir.KindCmpLeU, ir.KindCmpGtS, ir.KindCmpGtU, ir.KindCmpGeS, ir.KindCmpGeU:
		return s.selectCompare(n)

	case ir.KindCall:
		return s.selectCall(n, dt)

	default:
		panic(fmt.Sprintf("isel: unhandled node kind %d", n.Kind))
	}
}

// paramVReg materializes parameter i's incoming value. Win64 places the
// first four in RCX/RDX/R8/R9; this selector copies
// the fixed physical register into a fresh vreg at function entry so the
// allocator is free to choose any register for its lifetime thereafter.
func (s *selector) paramVReg(i int, dt DataType) int {
	dst := s.newVReg()
	if i < len(Win64GPRArgs) {
		s.emit(OpMov, []int{dst}, Win64GPRArgs[i])
		return dst
	}
	// Stack-passed argument; internal/emit resolves the frame offset of
	// the incoming-argument area above the return address.
	instr := &Instruction{Op: OpLoad, Out: []int{dst}, DataType: dt, Flags: FlagMem, Mem: &MemOperand{BaseVReg: RBP, Disp: int32(16 + 8*(i-len(Win64GPRArgs)))}}
	s.append(instr)
	return dst
}

func globalName(n *ir.Node) string {
	switch p := n.Payload.(type) {
	case ir.SymbolPayload:
		return p.Name
	case ir.StrConstPayload:
		return p.Value
	}
	return ""
}

func (s *selector) selectLoad(n *ir.Node, dt DataType) int {
	addr := n.Inputs[1]
	dst := s.newVReg()
	mem := s.addrOf(addr)
	instr := &Instruction{Op: OpLoad, Out: []int{dst}, DataType: dt, Flags: FlagMem, Mem: mem}
	s.append(instr)
	return dst
}

// addrOf resolves an address-valued node to a MemOperand: a LOCAL
// becomes a frame-slot reference, anything else a base register holding
// a pointer value with zero displacement.
func (s *selector) addrOf(addr *ir.Node) *MemOperand {
	if addr.Kind == ir.KindLocal {
		return &MemOperand{HasSlot: true, Slot: s.slot[addr]}
	}
	return &MemOperand{BaseVReg: s.valueOf(addr)}
}

func binaryOpcode(k ir.Kind) Opcode {
	switch k {
	case ir.KindAdd:
		return OpAdd
	case ir.KindSub:
		return OpSub
	case ir.KindMul:
		return OpIMul
	case ir.KindAnd:
		return OpAnd
	case ir.KindOr:
		return OpOr
	case ir.KindXor:
		return OpXor
	case ir.KindShl:
		return OpShl
	case ir.KindShrS:
		return OpSar
	case ir.KindShrU:
		return OpShr
	}
	panic("isel: not a binary opcode")
}

func (s *selector) selectBinary(n *ir.Node, dt DataType) int {
	l := s.valueOf(n.Inputs[0])
	r := s.valueOf(n.Inputs[1])
	dst := s.newVReg()
	instr := &Instruction{Op: binaryOpcode(n.Kind), Out: []int{dst}, In: []int{l, r}, DataType: dt}
	s.append(instr)
	return dst
}

// selectDivMod ties the dividend/divisor to RAX:RDX per the x64 DIV/IDIV
// contract; both the quotient and remainder are produced, RAX and RDX
// respectively, and only the one this node needs is returned — the
// other is left as a Tmp clobber so internal/liverange still accounts
// for it.
func (s *selector) selectDivMod(n *ir.Node, dt DataType) int {
	l := s.valueOf(n.Inputs[0])
	r := s.valueOf(n.Inputs[1])
	signed := n.Kind == ir.KindDivS || n.Kind == ir.KindModS
	op := OpDiv
	if signed {
		op = OpIDiv
	}
	quotient := s.newVReg()
	remainder := s.newVReg()
	instr := &Instruction{Op: op, Out: []int{quotient, remainder}, In: []int{l, r}, DataType: dt}
	s.append(instr)
	if n.Kind == ir.KindDivS || n.Kind == ir.KindDivU {
		return quotient
	}
	return remainder
}

var compareOpcode = map[ir.Kind]Opcode{
	ir.KindCmpEq: OpSetE, ir.KindCmpNe: OpSetNE,
	ir.KindCmpLtS: OpSetLS, ir.KindCmpLtU: OpSetLU,
	ir.KindCmpLeS: OpSetLeS, ir.KindCmpLeU: OpSetLeU,
	ir.KindCmpGtS: OpSetGS, ir.KindCmpGtU: OpSetGU,
	ir.KindCmpGeS: OpSetGeS, ir.KindCmpGeU: OpSetGeU,
}

var compareCond = map[ir.Kind]Cond{
	ir.KindCmpEq: CondEQ, ir.KindCmpNe: CondNE,
	ir.KindCmpLtS: CondLS, ir.KindCmpLtU: CondLU,
	ir.KindCmpLeS: CondLeS, ir.KindCmpLeU: CondLeU,
	ir.KindCmpGtS: CondGS, ir.KindCmpGtU: CondGU,
	ir.KindCmpGeS: CondGeS, ir.KindCmpGeU: CondGeU,
}

// selectCompare lowers a comparison to CMP + SETcc + MOVZX, a full
// register-valued boolean. internal/irgen already picked the right
// signed/unsigned/pointer Kind from sema's comparison flavor.
func (s *selector) selectCompare(n *ir.Node) int {
	l := s.valueOf(n.Inputs[0])
	r := s.valueOf(n.Inputs[1])
	s.emit(OpCmp, nil, l, r)
	byteDst := s.newVReg()
	set := &Instruction{Op: compareOpcode[n.Kind], Out: []int{byteDst}, DataType: Byte, Cond: compareCond[n.Kind]}
	s.append(set)
	dst := s.newVReg()
	s.emit(OpMovzx, []int{dst}, byteDst)
	return dst
}

func (s *selector) selectCall(n *ir.Node, dt DataType) int {
	p := n.Payload.(ir.CallPayload)
	argVRegs := make([]int, 0, p.ArgCount)
	for _, a := range n.Inputs[1:] {
		argVRegs = append(argVRegs, s.valueOf(a))
	}
	// Move each argument into its Win64 fixed register ahead of the call
	//; stack-passed args beyond
	// the fourth are stored at the call site's outgoing-argument area.
	var pinned []int
	for i, v := range argVRegs {
		if i < len(Win64GPRArgs) {
			s.emit(OpMov, []int{Win64GPRArgs[i]}, v)
			pinned = append(pinned, Win64GPRArgs[i])
		} else {
			s.emit(OpStore, nil, v).Mem = &MemOperand{BaseVReg: RSP, Disp: int32(8 * (i - len(Win64GPRArgs)))}
		}
	}
	clobbers := make([]int, 0, len(Win64CallerSaved))
	for r := range Win64CallerSaved {
		clobbers = append(clobbers, r)
	}
	sort.Ints(clobbers)
	instr := &Instruction{Op: OpCall, In: pinned, Tmp: clobbers, Callee: p.Callee}
	if n.Type == ir.TypeVoid {
		s.append(instr)
		return -1
	}
	instr.Out = []int{RAX}
	s.append(instr)
	dst := s.newVReg()
	s.emit(OpMov, []int{dst}, RAX)
	_ = dt
	return dst
}

// selectTerminator emits the control-transfer instruction(s) ending b,
// after every data node in b has already been selected.
func (s *selector) selectTerminator(b *cfg.BasicBlock) {
	s.cur = b
	end := b.End
	switch end.Kind {
	case ir.KindBranch:
		p := end.Payload.(ir.BranchPayload)
		cond := s.valueOf(end.Inputs[1])
		s.emit(OpTest, nil, cond, cond)
		trueBlock := s.g.NodeBlock[regionAfter(p.True)]
		falseBlock := s.g.NodeBlock[regionAfter(p.False)]
		jcc := &Instruction{Op: OpJcc, Cond: CondNZ, Target: trueBlock.Head}
		s.append(jcc)
		if !fallsThrough(b, falseBlock) {
			s.append(&Instruction{Op: OpJmp, Target: falseBlock.Head})
		}

	case ir.KindReturn:
		if len(end.Inputs) > 1 {
			v := s.valueOf(end.Inputs[1])
			s.emit(OpMov, []int{RAX}, v)
		}
		s.append(&Instruction{Op: OpEpilogue})

	case ir.KindUnreachable:
		s.append(&Instruction{Op: OpUD2})

	default:
		// An Exit or a plain fallthrough into the next RPO block: emit an
		// explicit jump unless b is immediately followed by its successor.
		if len(b.Succs) == 1 && !fallsThrough(b, b.Succs[0]) {
			s.append(&Instruction{Op: OpJmp, Target: b.Succs[0].Head})
		}
	}
}

func fallsThrough(b, succ *cfg.BasicBlock) bool {
	return succ != nil && succ.ID == b.ID+1
}

func regionAfter(proj *ir.Node) *ir.Node {
	for u := proj.Users; u != nil; u = u.Next {
		if u.User.Kind == ir.KindRegion {
			return u.User
		}
	}
	return proj
}

// resolvePhis lowers every PHI left in the IR into a parallel copy
// inserted just before each predecessor block's terminator jump/branch:
// classical SSA destruction performed at selection time rather than as
// part of internal/regalloc's edge-resolution pass, which handles split
// children only; PHI lowering itself happens here, one level up.
func (s *selector) resolvePhis() {
	for _, n := range s.irfn.Nodes() {
		if n.Kind != ir.KindPhi {
			continue
		}
		dst, ok := s.vreg[n]
		if !ok {
			continue
		}
		region := n.Inputs[0]
		destBlock := s.g.NodeBlock[region]
		for i, pred := range region.Inputs {
			srcVal := n.Inputs[i+1]
			srcVReg := s.valueOf(srcVal)
			predBlock := s.predecessorBlockOf(pred, destBlock)
			s.insertCopyBeforeTerminator(predBlock, dst, srcVReg)
		}
	}
}

func (s *selector) predecessorBlockOf(predEdge *ir.Node, destBlock *cfg.BasicBlock) *cfg.BasicBlock {
	if b, ok := s.g.NodeBlock[predEdge]; ok {
		return b
	}
	for _, p := range destBlock.Preds {
		return p
	}
	return destBlock
}

// insertCopyBeforeTerminator splices a MOV dst, src immediately before
// b's last instruction (its terminator jump/branch/return), so the copy
// still executes on the edge into the phi's block and not after.
func (s *selector) insertCopyBeforeTerminator(b *cfg.BasicBlock, dst, src int) {
	if dst == src {
		return
	}
	mov := &Instruction{Op: OpMov, Out: []int{dst}, In: []int{src}}
	last := s.lastInstructionOf(b)
	if last == nil {
		s.fn.BlockOf[mov] = b
		if s.fn.First == nil {
			s.fn.First = mov
		} else {
			s.fn.Last.Next = mov
			mov.Prev = s.fn.Last
		}
		s.fn.Last = mov
		return
	}
	prev := last.Prev
	mov.Prev = prev
	mov.Next = last
	if prev != nil {
		prev.Next = mov
	}
	last.Prev = mov
	if s.fn.First == last {
		s.fn.First = mov
	}
	s.fn.BlockOf[mov] = b
}

func (s *selector) lastInstructionOf(b *cfg.BasicBlock) *Instruction {
	var last *Instruction
	for i := s.fn.First; i != nil; i = i.Next {
		if s.fn.BlockOf[i] == b {
			last = i
		}
	}
	return last
}
