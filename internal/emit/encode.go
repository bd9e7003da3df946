package emit

import (
	"fmt"

	"github.com/Goubermouche/sigma-sub002/internal/ir"
	"github.com/Goubermouche/sigma-sub002/internal/isel"
)

// emitRex emits a REX prefix iff one of its bits is actually needed.
func (e *emitter) emitRex(w bool, reg, index, rm int) {
	var r, x, b byte
	if reg >= 8 {
		r = 1
	}
	if index >= 8 {
		x = 1
	}
	if rm >= 8 {
		b = 1
	}
	if w || r != 0 || x != 0 || b != 0 {
		var wb byte
		if w {
			wb = 1
		}
		e.emitByte(0x40 | wb<<3 | r<<2 | x<<1 | b)
	}
}

func (e *emitter) emitModRM(mod, reg, rm int) {
	e.emitByte(byte(mod&3)<<6 | byte(reg&7)<<3 | byte(rm&7))
}

// resolvedMem is a memory operand fully resolved to either a RIP-
// relative global reference or a base-register + displacement form.
type resolvedMem struct {
	ripGlobal string
	baseReg   int
	disp      int32
}

// resolveMem materializes instr.Mem's base, reloading a spilled pointer
// value through the R10 scratch register if necessary (see
// internal/regalloc's reservedReg doc comment).
func (e *emitter) resolveMem(instr *isel.Instruction) resolvedMem {
	m := instr.Mem
	if instr.Flags&isel.FlagGlobal != 0 {
		return resolvedMem{ripGlobal: instr.Callee}
	}
	if m.HasSlot {
		return resolvedMem{baseReg: isel.RBP, disp: e.localDisp[m.Slot]}
	}
	if m.BaseVReg == isel.RBP || m.BaseVReg == isel.RSP {
		return resolvedMem{baseReg: m.BaseVReg, disp: m.Disp}
	}
	if r, ok := e.regOf(m.BaseVReg); ok {
		return resolvedMem{baseReg: r, disp: m.Disp}
	}
	disp, _ := e.operandDisp(m.BaseVReg)
	e.reloadScratch(isel.R10, disp)
	return resolvedMem{baseReg: isel.R10, disp: m.Disp}
}

func dispMod(disp int32) int {
	if disp == 0 {
		return 0
	}
	if disp >= -128 && disp <= 127 {
		return 1
	}
	return 2
}

// emitMemOperand encodes the ModR/M (+ SIB if the base is rsp/r12, +
// displacement) for rm with regField as the other ModR/M operand,
// choosing the shortest mod encoding that fits. base = rsp forces a SIB
// byte.
func (e *emitter) emitMemOperand(regField int, rm resolvedMem) {
	if rm.ripGlobal != "" {
		e.emitModRM(0, regField, 5)
		e.relocs = append(e.relocs, Relocation{Offset: len(e.code), Symbol: rm.ripGlobal, Type: RelPC32})
		e.emitU32(0)
		return
	}
	baseLow := rm.baseReg & 7
	mod := dispMod(rm.disp)
	if baseLow == 5 && mod == 0 {
		// disp8=0 form to avoid the implicit-RIP encoding for rbp with
		// zero displacement.
		mod = 1
	}
	if baseLow == 4 {
		e.emitModRM(mod, regField, 4)
		e.emitByte(0x24) // SIB: scale=00 index=none(100) base=rsp/r12(100)
	} else {
		e.emitModRM(mod, regField, rm.baseReg)
	}
	switch mod {
	case 1:
		e.emitByte(byte(int8(rm.disp)))
	case 2:
		e.emitU32(uint32(rm.disp))
	}
}

func (e *emitter) emitRexForMem(w bool, regField int, rm resolvedMem) {
	base := rm.baseReg
	if rm.ripGlobal != "" {
		base = 0
	}
	e.emitRex(w, regField, 0, base)
}

// reloadScratch loads the spilled value at disp(rbp) into scratch,
// materializing a resolved spill operand in place rather than as a
// separately inserted instruction.
func (e *emitter) reloadScratch(scratch int, disp int32) {
	e.asmLine(fmt.Sprintf("mov r%d, qword [rbp%+d]  ; reload spill", scratch, disp))
	e.emitRex(true, scratch, 0, isel.RBP)
	e.emitByte(0x8B)
	e.emitMemOperand(scratch, resolvedMem{baseReg: isel.RBP, disp: disp})
}

func (e *emitter) storeScratch(scratch int, disp int32) {
	e.asmLine(fmt.Sprintf("mov qword [rbp%+d], r%d  ; spill", disp, scratch))
	e.emitRex(true, scratch, 0, isel.RBP)
	e.emitByte(0x89)
	e.emitMemOperand(scratch, resolvedMem{baseReg: isel.RBP, disp: disp})
}

// regIn resolves an In/Tmp operand to a physical register, reloading
// through R10 if vreg is spilled.
func (e *emitter) regIn(vreg int) int {
	if r, ok := e.regOf(vreg); ok {
		return r
	}
	disp, _ := e.operandDisp(vreg)
	e.reloadScratch(isel.R10, disp)
	return isel.R10
}

// regOutPrepare returns the physical register to write vreg's result
// into — its assigned register if any, otherwise R11 — and returns a
// finish func that spills R11 back out if vreg turned out spilled.
func (e *emitter) regOutPrepare(vreg int) (int, func()) {
	if r, ok := e.regOf(vreg); ok {
		return r, func() {}
	}
	disp, _ := e.operandDisp(vreg)
	return isel.R11, func() { e.storeScratch(isel.R11, disp) }
}

var byteRegNames = []string{"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil",
	"r8b", "r9b", "r10b", "r11b", "r12b", "r13b", "r14b", "r15b"}

func regName(r int, dt isel.DataType) string {
	names64 := []string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
	if r < 0 || r >= len(names64) {
		return fmt.Sprintf("v%d", r)
	}
	switch dt {
	case isel.Byte:
		return byteRegNames[r]
	case isel.Dword:
		return "e" + names64[r][1:]
	default:
		return names64[r]
	}
}

func (e *emitter) emitMov(instr *isel.Instruction) {
	dst := instr.Out[0]
	if instr.Flags&isel.FlagImmediate != 0 {
		r, finish := e.regOutPrepare(dst)
		e.asmLine(fmt.Sprintf("mov %s, %d", regName(r, instr.DataType), instr.Imm))
		if instr.DataType == isel.Qword {
			// REX.W + C7 /0 sign-extends the imm32 into the full
			// register; REX.W + B8 would demand an imm64 (that form is
			// emitMovAbs). Constants outside imm32 range arrive as
			// MOVABS from the selector.
			e.emitRex(true, 0, 0, r)
			e.emitByte(0xC7)
			e.emitModRM(3, 0, r)
		} else {
			e.emitRex(false, 0, 0, r)
			e.emitByte(0xB8 + byte(r&7))
		}
		e.emitU32(uint32(instr.Imm))
		finish()
		return
	}
	src := instr.In[0]
	srcReg := e.regIn(src)
	dstReg, finish := e.regOutPrepare(dst)
	e.asmLine(fmt.Sprintf("mov %s, %s", regName(dstReg, instr.DataType), regName(srcReg, instr.DataType)))
	e.emitRex(true, srcReg, 0, dstReg)
	e.emitByte(0x89)
	e.emitModRM(3, srcReg, dstReg)
	finish()
}

func (e *emitter) emitMovAbs(instr *isel.Instruction) {
	dst := instr.Out[0]
	r, finish := e.regOutPrepare(dst)
	e.asmLine(fmt.Sprintf("movabs %s, %d", regName(r, isel.Qword), int64(instr.Abs)))
	e.emitRex(true, 0, 0, r)
	e.emitByte(0xB8 + byte(r&7))
	e.emitU64(instr.Abs)
	finish()
}

func (e *emitter) emitZero(instr *isel.Instruction) {
	dst := instr.Out[0]
	r, finish := e.regOutPrepare(dst)
	e.asmLine(fmt.Sprintf("xor %s, %s  ; zero idiom", regName(r, isel.Dword), regName(r, isel.Dword)))
	e.emitRex(false, r, 0, r)
	e.emitByte(0x31)
	e.emitModRM(3, r, r)
	finish()
}

func (e *emitter) emitLea(instr *isel.Instruction) {
	dst := instr.Out[0]
	if instr.Target != nil && instr.Target.Kind == ir.KindStrConst {
		e.internRodata(instr.Target.Payload.(ir.StrConstPayload).Value)
	}
	r, finish := e.regOutPrepare(dst)
	e.asmLine(fmt.Sprintf("lea %s, [rel %s]", regName(r, isel.Qword), instr.Callee))
	mem := resolvedMem{ripGlobal: instr.Callee}
	e.emitRexForMem(true, r, mem)
	e.emitByte(0x8D)
	e.emitMemOperand(r, mem)
	finish()
}

var arithOpcode = map[isel.Opcode]struct {
	op   byte
	name string
}{
	isel.OpAdd: {0x01, "add"},
	isel.OpSub: {0x29, "sub"},
	isel.OpAnd: {0x21, "and"},
	isel.OpOr:  {0x09, "or"},
	isel.OpXor: {0x31, "xor"},
}

// emitArith lowers a three-address dst = a op b instruction into
// dst = copy(a); dst op= b, since x64 arithmetic is two-operand.
func (e *emitter) emitArith(instr *isel.Instruction) {
	a, b := instr.In[0], instr.In[1]
	dst := instr.Out[0]
	info := arithOpcode[instr.Op]
	aReg := e.regIn(a)
	dstReg, finish := e.regOutPrepare(dst)
	if dstReg != aReg {
		e.asmLine(fmt.Sprintf("mov %s, %s", regName(dstReg, instr.DataType), regName(aReg, instr.DataType)))
		e.emitRex(true, aReg, 0, dstReg)
		e.emitByte(0x89)
		e.emitModRM(3, aReg, dstReg)
	}
	bReg := e.regIn(b)
	e.asmLine(fmt.Sprintf("%s %s, %s", info.name, regName(dstReg, instr.DataType), regName(bReg, instr.DataType)))
	e.emitRex(true, bReg, 0, dstReg)
	e.emitByte(info.op)
	e.emitModRM(3, bReg, dstReg)
	finish()
}

func (e *emitter) emitIMul(instr *isel.Instruction) {
	a, b := instr.In[0], instr.In[1]
	dst := instr.Out[0]
	aReg := e.regIn(a)
	dstReg, finish := e.regOutPrepare(dst)
	if dstReg != aReg {
		e.asmLine(fmt.Sprintf("mov %s, %s", regName(dstReg, instr.DataType), regName(aReg, instr.DataType)))
		e.emitRex(true, aReg, 0, dstReg)
		e.emitByte(0x89)
		e.emitModRM(3, aReg, dstReg)
	}
	bReg := e.regIn(b)
	e.asmLine(fmt.Sprintf("imul %s, %s", regName(dstReg, instr.DataType), regName(bReg, instr.DataType)))
	e.emitRex(true, dstReg, 0, bReg)
	e.emitBytes(0x0F, 0xAF)
	e.emitModRM(3, dstReg, bReg)
	finish()
}

// emitDivMod implements the DIV/IDIV x64 contract: dividend in
// rax(:rdx), quotient to rax, remainder to rdx (internal/isel's
// selectDivMod already wired Out=[quotient=rax-bound, remainder=rdx-
// bound] as a convention the allocator honors via the fixed-register
// pinning of RAX/RDX).
func (e *emitter) emitDivMod(instr *isel.Instruction) {
	dividend, divisor := instr.In[0], instr.In[1]
	divReg := e.regIn(dividend)
	if divReg != isel.RAX {
		e.asmLine(fmt.Sprintf("mov rax, %s", regName(divReg, isel.Qword)))
		e.emitRex(true, divReg, 0, isel.RAX)
		e.emitByte(0x89)
		e.emitModRM(3, divReg, isel.RAX)
	}
	signed := instr.Op == isel.OpIDiv
	if signed {
		e.asmLine("cqo")
		e.emitBytes(0x48, 0x99)
	} else {
		e.asmLine("xor rdx, rdx")
		e.emitRex(true, isel.RDX, 0, isel.RDX)
		e.emitByte(0x31)
		e.emitModRM(3, isel.RDX, isel.RDX)
	}
	divisorReg := e.regIn(divisor)
	name := "div"
	if signed {
		name = "idiv"
	}
	e.asmLine(fmt.Sprintf("%s %s", name, regName(divisorReg, isel.Qword)))
	e.emitRex(true, 0, 0, divisorReg)
	e.emitByte(0xF7)
	reg := 6
	if signed {
		reg = 7
	}
	e.emitModRM(3, reg, divisorReg)

	if len(instr.Out) > 0 {
		if qReg, finish := e.regOutPrepare(instr.Out[0]); qReg != isel.RAX {
			e.copyReg(qReg, isel.RAX, isel.Qword)
			finish()
		}
	}
	if len(instr.Out) > 1 {
		if rReg, finish := e.regOutPrepare(instr.Out[1]); rReg != isel.RDX {
			e.copyReg(rReg, isel.RDX, isel.Qword)
			finish()
		}
	}
}

func (e *emitter) copyReg(dst, src int, dt isel.DataType) {
	e.asmLine(fmt.Sprintf("mov %s, %s", regName(dst, dt), regName(src, dt)))
	e.emitRex(true, src, 0, dst)
	e.emitByte(0x89)
	e.emitModRM(3, src, dst)
}

func (e *emitter) emitUnary(instr *isel.Instruction, digit int, name string) {
	src := instr.In[0]
	dst := instr.Out[0]
	srcReg := e.regIn(src)
	dstReg, finish := e.regOutPrepare(dst)
	if dstReg != srcReg {
		e.copyReg(dstReg, srcReg, instr.DataType)
	}
	e.asmLine(fmt.Sprintf("%s %s", name, regName(dstReg, instr.DataType)))
	e.emitRex(true, 0, 0, dstReg)
	e.emitByte(0xF7)
	e.emitModRM(3, digit, dstReg)
	finish()
}

func (e *emitter) emitShift(instr *isel.Instruction) {
	value, amount := instr.In[0], instr.In[1]
	dst := instr.Out[0]
	valReg := e.regIn(value)
	dstReg, finish := e.regOutPrepare(dst)
	if dstReg != valReg {
		e.copyReg(dstReg, valReg, instr.DataType)
	}
	amtReg := e.regIn(amount)
	if amtReg != isel.RCX {
		e.copyReg(isel.RCX, amtReg, isel.Byte)
	}
	digit := 4
	name := "shl"
	if instr.Op == isel.OpSar {
		digit, name = 7, "sar"
	} else if instr.Op == isel.OpShr {
		digit, name = 5, "shr"
	}
	e.asmLine(fmt.Sprintf("%s %s, cl", name, regName(dstReg, instr.DataType)))
	e.emitRex(true, 0, 0, dstReg)
	e.emitByte(0xD3)
	e.emitModRM(3, digit, dstReg)
	finish()
}

func (e *emitter) emitCompareOnly(instr *isel.Instruction) {
	a, b := instr.In[0], instr.In[1]
	aReg, bReg := e.regIn(a), e.regIn(b)
	e.asmLine(fmt.Sprintf("cmp %s, %s", regName(aReg, isel.Qword), regName(bReg, isel.Qword)))
	e.emitRex(true, bReg, 0, aReg)
	e.emitByte(0x39)
	e.emitModRM(3, bReg, aReg)
}

func (e *emitter) emitTest(instr *isel.Instruction) {
	a, b := instr.In[0], instr.In[1]
	aReg, bReg := e.regIn(a), e.regIn(b)
	e.asmLine(fmt.Sprintf("test %s, %s", regName(aReg, isel.Qword), regName(bReg, isel.Qword)))
	e.emitRex(true, bReg, 0, aReg)
	e.emitByte(0x85)
	e.emitModRM(3, bReg, aReg)
}

var setcc = map[isel.Opcode]struct {
	code byte
	name string
}{
	isel.OpSetE: {0x94, "sete"}, isel.OpSetNE: {0x95, "setne"},
	isel.OpSetLS: {0x9C, "setl"}, isel.OpSetLU: {0x92, "setb"},
	isel.OpSetLeS: {0x9E, "setle"}, isel.OpSetLeU: {0x96, "setbe"},
	isel.OpSetGS: {0x9F, "setg"}, isel.OpSetGU: {0x97, "seta"},
	isel.OpSetGeS: {0x9D, "setge"}, isel.OpSetGeU: {0x93, "setae"},
}

func (e *emitter) emitSetcc(instr *isel.Instruction) {
	dst := instr.Out[0]
	r, finish := e.regOutPrepare(dst)
	info := setcc[instr.Op]
	e.asmLine(fmt.Sprintf("%s %s", info.name, regName(r, isel.Byte)))
	e.emitRex(false, 0, 0, r)
	e.emitBytes(0x0F, info.code)
	e.emitModRM(3, 0, r)
	finish()
}

func (e *emitter) emitMovzx(instr *isel.Instruction) {
	src := instr.In[0]
	dst := instr.Out[0]
	srcReg := e.regIn(src)
	dstReg, finish := e.regOutPrepare(dst)
	e.asmLine(fmt.Sprintf("movzx %s, byte %s", regName(dstReg, isel.Dword), regName(srcReg, isel.Byte)))
	e.emitRex(false, dstReg, 0, srcReg)
	e.emitBytes(0x0F, 0xB6)
	e.emitModRM(3, dstReg, srcReg)
	finish()
}

func (e *emitter) emitLoad(instr *isel.Instruction) {
	dst := instr.Out[0]
	mem := e.resolveMem(instr)
	dstReg, finish := e.regOutPrepare(dst)
	e.asmLine(fmt.Sprintf("mov %s, %s %s", regName(dstReg, instr.DataType), sizeSuffix(instr.DataType), memText(mem)))
	e.emitRexForMem(instr.DataType == isel.Qword || instr.DataType == isel.Pointer, dstReg, mem)
	e.emitByte(0x8B)
	e.emitMemOperand(dstReg, mem)
	finish()
}

func (e *emitter) emitStore(instr *isel.Instruction) {
	src := instr.In[0]
	mem := e.resolveMem(instr)
	srcReg := e.regIn(src)
	e.asmLine(fmt.Sprintf("mov %s %s, %s", sizeSuffix(instr.DataType), memText(mem), regName(srcReg, instr.DataType)))
	e.emitRexForMem(instr.DataType == isel.Qword || instr.DataType == isel.Pointer, srcReg, mem)
	e.emitByte(0x89)
	e.emitMemOperand(srcReg, mem)
}

func memText(mem resolvedMem) string {
	if mem.ripGlobal != "" {
		return fmt.Sprintf("[rel %s]", mem.ripGlobal)
	}
	return fmt.Sprintf("[%s%+d]", regName(mem.baseReg, isel.Qword), mem.disp)
}

func (e *emitter) emitPushPop(instr *isel.Instruction, push bool) {
	var r int
	finish := func() {}
	if push {
		r = e.regIn(instr.In[0])
		e.asmLine(fmt.Sprintf("push %s", regName(r, isel.Qword)))
	} else {
		r, finish = e.regOutPrepare(instr.Out[0])
		e.asmLine(fmt.Sprintf("pop %s", regName(r, isel.Qword)))
	}
	e.emitRex(false, 0, 0, r)
	base := byte(0x50)
	if !push {
		base = 0x58
	}
	e.emitByte(base + byte(r&7))
	finish()
}

func (e *emitter) emitCall(instr *isel.Instruction) {
	e.asmLine(fmt.Sprintf("call %s", instr.Callee))
	e.emitByte(0xE8)
	e.relocs = append(e.relocs, Relocation{Offset: len(e.code), Symbol: instr.Callee, Type: RelPC32})
	e.emitU32(0)
}

func (e *emitter) emitJmp(instr *isel.Instruction) {
	e.asmLine(fmt.Sprintf("jmp L%d", e.blockID[instr.Target]))
	e.emitByte(0xE9)
	e.patches = append(e.patches, patch{pos: len(e.code), target: instr.Target})
	e.emitU32(0)
}

func (e *emitter) emitJcc(instr *isel.Instruction) {
	e.asmLine(fmt.Sprintf("jnz L%d", e.blockID[instr.Target]))
	// Boolean branch conditions are already normalized to a preceding
	// TEST reg,reg by internal/isel's selectTerminator, so JNZ is the
	// only conditional jump the selector ever emits; SETcc/Jcc's wider
	// Cond enum is exercised only by the byte-valued comparison result,
	// not by the terminator itself.
	e.emitBytes(0x0F, 0x85)
	e.patches = append(e.patches, patch{pos: len(e.code), target: instr.Target})
	e.emitU32(0)
}

// resolvePatches back-patches every recorded jump/call displacement now
// that every block's code offset is known.
func (e *emitter) resolvePatches() {
	for _, p := range e.patches {
		var target int
		switch {
		case p.symbol == ".ret":
			target = e.retOffset
		case p.target != nil:
			target = e.labelOffset[p.target]
		default:
			continue
		}
		rel := int32(target - (p.pos + 4))
		e.code[p.pos] = byte(rel)
		e.code[p.pos+1] = byte(rel >> 8)
		e.code[p.pos+2] = byte(rel >> 16)
		e.code[p.pos+3] = byte(rel >> 24)
	}
}
