// Package emit walks the allocated instruction list to produce
// prologue/epilogue, textual Intel-syntax assembly, and the matching x64
// byte encoding (REX, ModR/M, SIB, displacement, immediate) side by
// side, plus the relocation list internal/objfile needs for calls and
// global references.
package emit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Goubermouche/sigma-sub002/internal/ir"
	"github.com/Goubermouche/sigma-sub002/internal/isel"
	"github.com/Goubermouche/sigma-sub002/internal/regalloc"
)

// ErrStackProbeUnsupported is returned for frames >= 4096 bytes, which
// need a __chkstk stack probe the emitter does not implement yet.
// Failing loudly beats emitting silently-wrong code.
var ErrStackProbeUnsupported = errors.New("emit: stack frames >= 4096 bytes require __chkstk, unimplemented")

// RelocType is the platform-agnostic kind of a code-section relocation;
// internal/objfile maps it to IMAGE_REL_AMD64_REL32 (COFF) or
// R_X86_64_PLT32 (ELF).
type RelocType int

const (
	RelPC32 RelocType = iota // 32-bit PC-relative displacement
)

// Relocation is one patch site in Code needing a symbol address filled
// in by the linker.
type Relocation struct {
	Offset int
	Symbol string
	Type   RelocType
}

// RodataString is one interned string constant placed in the read-only
// data section. Offset is the code offset of the first RIP-relative LEA
// that takes its address; later references reuse the same entry.
type RodataString struct {
	Value   string
	Offset  int
}

// Object is one function's emitted output: parallel textual assembly and
// bytes, plus the relocations and rodata entries
// internal/objfile assembles into a container.
type Object struct {
	Name      string
	Code      []byte
	Assembly  string
	Relocs    []Relocation
	Rodata    []RodataString
	FrameSize int
}

// patch is a not-yet-resolved branch/call target: a 32-bit displacement
// of 0 written at position, back-patched once the target label's offset
// is known. target is the ir.Node heading the destination block (the same node
// internal/isel's Instruction.Target carries); symbol == ".ret" is the
// special case of a jump to the function's single epilogue.
type patch struct {
	pos    int
	target *ir.Node
	symbol string
}

type emitter struct {
	fn     *isel.Function
	result *regalloc.Result

	code      []byte
	asm       strings.Builder
	relocs    []Relocation
	rodata    []RodataString
	rodataOff map[string]int

	labelOffset map[*ir.Node]int // block head node -> code offset of its label
	blockID     map[*ir.Node]int // block head node -> display id, for asm text
	patches     []patch
	retOffset   int

	frameSize int
	localDisp map[int]int32 // local slot index -> rbp-relative displacement
	spillDisp map[int]int32 // regalloc spill slot index -> rbp-relative displacement

	// curTime is the instruction currently being emitted's liverange
	// timestamp; regOf/operandDisp resolve a vreg's register/slot at
	// this point since a split interval's assignment can change
	// mid-function.
	curTime int
}

// Emit produces fn's Object. fn must already carry result's physical-
// register/spill assignment (internal/regalloc.Allocate's output).
func Emit(fn *isel.Function, result *regalloc.Result) (*Object, error) {
	e := &emitter{
		fn: fn, result: result,
		rodataOff:   make(map[string]int),
		labelOffset: make(map[*ir.Node]int),
		blockID:     make(map[*ir.Node]int),
		localDisp:   make(map[int]int32),
		spillDisp:   make(map[int]int32),
	}
	for i, b := range fn.Blocks {
		e.blockID[b.Head] = i
	}
	if err := e.layoutFrame(); err != nil {
		return nil, err
	}
	e.emitPrologue()
	for instr := fn.First; instr != nil; instr = instr.Next {
		e.emitInstruction(instr)
	}
	e.retOffset = len(e.code)
	e.emitEpilogue()
	e.resolvePatches()

	return &Object{
		Name: fn.Name, Code: e.code, Assembly: e.asm.String(),
		Relocs: e.relocs, Rodata: e.rodata, FrameSize: e.frameSize,
	}, nil
}

// internRodata records a string constant referenced by a RIP-relative
// LEA so internal/objfile places its bytes in the read-only section
// instead of leaving the reference as an undefined external. The first
// referencing code offset is kept; later references reuse the entry.
func (e *emitter) internRodata(s string) {
	if _, ok := e.rodataOff[s]; ok {
		return
	}
	e.rodataOff[s] = len(e.rodata)
	e.rodata = append(e.rodata, RodataString{Value: s, Offset: len(e.code)})
}

// layoutFrame assigns every declared local and spill slot an rbp-
// relative displacement and computes the 16-byte-aligned frame size.
func (e *emitter) layoutFrame() error {
	offset := int32(0)
	for i, loc := range e.fn.Locals {
		offset += int32(loc.Size)
		offset = alignUp32(offset, int32(loc.Align))
		e.localDisp[i] = -offset
	}
	for i := 0; i < e.result.NumSpillSlots; i++ {
		offset += 8
		e.spillDisp[i] = -offset
	}
	e.frameSize = int(alignUp32(offset, 16))
	if e.frameSize >= 4096 {
		return ErrStackProbeUnsupported
	}
	return nil
}

func alignUp32(v, a int32) int32 {
	if a <= 1 {
		return v
	}
	return (v + a - 1) / a * a
}

func (e *emitter) emitByte(b byte)    { e.code = append(e.code, b) }
func (e *emitter) emitBytes(b ...byte) { e.code = append(e.code, b...) }
func (e *emitter) emitU32(v uint32) {
	e.emitBytes(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
func (e *emitter) emitU64(v uint64) {
	e.emitU32(uint32(v))
	e.emitU32(uint32(v >> 32))
}
func (e *emitter) asmLine(s string) { e.asm.WriteString(s); e.asm.WriteByte('\n') }

// emitPrologue emits no frame only when the frame size is zero; any
// nonzero frame, however small (16 bytes included), gets push rbp;
// mov rbp, rsp; sub rsp, N.
func (e *emitter) emitPrologue() {
	if e.frameSize == 0 {
		e.asmLine("; no frame")
		return
	}
	e.asmLine("push rbp")
	e.emitByte(0x50 + byte(isel.RBP)&7)
	e.asmLine("mov rbp, rsp")
	e.emitRex(true, 0, 0, isel.RBP)
	e.emitByte(0x89)
	e.emitModRM(3, isel.RSP, isel.RBP)
	e.asmLine(fmt.Sprintf("sub rsp, %d", e.frameSize))
	e.emitRex(true, 0, 0, isel.RSP)
	e.emitByte(0x81)
	e.emitModRM(3, 5, isel.RSP)
	e.emitU32(uint32(e.frameSize))
}

// emitEpilogue restores rsp/rbp symmetrically to the prologue and emits
// ret. The .ret label is simply "here" since every RETURN lowers to
// a single OpEpilogue immediately before it (internal/isel's
// selectTerminator), so there is exactly one epilogue per function.
func (e *emitter) emitEpilogue() {
	e.asmLine(".ret:")
	if e.frameSize != 0 {
		e.asmLine("mov rsp, rbp")
		e.emitRex(true, 0, 0, isel.RSP)
		e.emitByte(0x89)
		e.emitModRM(3, isel.RBP, isel.RSP)
		e.asmLine("pop rbp")
		e.emitByte(0x58 + byte(isel.RBP)&7)
	}
	e.asmLine("ret")
	e.emitByte(0xC3)
}

func (e *emitter) emitInstruction(instr *isel.Instruction) {
	e.curTime = instr.Time
	switch instr.Op {
	case isel.OpLabel:
		b := e.fn.BlockOf[instr]
		e.labelOffset[b.Head] = len(e.code)
		e.asmLine(fmt.Sprintf("L%d:", e.blockID[b.Head]))
	case isel.OpMov:
		e.emitMov(instr)
	case isel.OpMovAbs:
		e.emitMovAbs(instr)
	case isel.OpZero:
		e.emitZero(instr)
	case isel.OpLea:
		e.emitLea(instr)
	case isel.OpAdd, isel.OpSub, isel.OpAnd, isel.OpOr, isel.OpXor:
		e.emitArith(instr)
	case isel.OpIMul:
		e.emitIMul(instr)
	case isel.OpIDiv, isel.OpDiv:
		e.emitDivMod(instr)
	case isel.OpNeg:
		e.emitUnary(instr, 3, "neg")
	case isel.OpNot:
		e.emitUnary(instr, 2, "not")
	case isel.OpShl, isel.OpSar, isel.OpShr:
		e.emitShift(instr)
	case isel.OpCmp:
		e.emitCompareOnly(instr)
	case isel.OpTest:
		e.emitTest(instr)
	case isel.OpSetE, isel.OpSetNE, isel.OpSetLS, isel.OpSetLU, isel.OpSetLeS,
		isel.OpSetLeU, isel.OpSetGS, isel.OpSetGU, isel.OpSetGeS, isel.OpSetGeU:
		e.emitSetcc(instr)
	case isel.OpMovzx:
		e.emitMovzx(instr)
	case isel.OpLoad:
		e.emitLoad(instr)
	case isel.OpStore:
		e.emitStore(instr)
	case isel.OpPush:
		e.emitPushPop(instr, true)
	case isel.OpPop:
		e.emitPushPop(instr, false)
	case isel.OpCall:
		e.emitCall(instr)
	case isel.OpJmp:
		e.emitJmp(instr)
	case isel.OpJcc:
		e.emitJcc(instr)
	case isel.OpRet:
		e.asmLine("ret")
		e.emitByte(0xC3)
	case isel.OpEpilogue:
		e.asmLine("jmp .ret")
		e.emitByte(0xE9)
		e.patches = append(e.patches, patch{pos: len(e.code), symbol: ".ret"})
		e.emitU32(0) // patched once the (single) epilogue's offset is known
	case isel.OpUD2:
		e.asmLine("ud2")
		e.emitBytes(0x0F, 0x0B)
	default:
		panic(fmt.Sprintf("emit: unhandled opcode %d", instr.Op))
	}
}

// regOf resolves a vreg operand at the currently-emitting instruction's
// time to its assigned physical register, following split children. This
// is the operand-fixing pass, performed lazily here rather than as a
// separate rewrite over the instruction list.
func (e *emitter) regOf(vreg int) (int, bool) {
	if vreg < 0 {
		return -1, false
	}
	return e.result.PhysRegAt(vreg, e.curTime)
}

// operandDisp resolves vreg to an rbp-relative memory displacement when
// it is spilled at the current instruction, or reports false when it
// lives in a register there.
func (e *emitter) operandDisp(vreg int) (int32, bool) {
	slot, ok := e.result.SlotAt(vreg, e.curTime)
	if !ok {
		return 0, false
	}
	return e.spillDisp[slot], true
}

func sizeSuffix(dt isel.DataType) string {
	switch dt {
	case isel.Byte:
		return "byte"
	case isel.Word:
		return "word"
	case isel.Dword:
		return "dword"
	default:
		return "qword"
	}
}
