package arm64

import "github.com/oisee/bjit/internal/cfg"
import "github.com/oisee/bjit/internal/ir"

// frameSlotBytes is the stack-slot width for every SCC spill class,
// matching x64's choice so internal/module's frame-size bookkeeping
// doesn't need an arch switch.
const frameSlotBytes = 8

// calleeSaveSlotBytes is the per-register space this prologue reserves
// for X19-X28/D8-D15 callee-saves. AAPCS64 requires SP to stay 16-byte
// aligned at every public instruction boundary; reserving a full 16
// bytes per saved register (rather than packing pairs with STP) wastes
// some stack space but keeps the push/pop bookkeeping a single
// per-register loop, matching x64's PushR/PopR idiom.
const calleeSaveSlotBytes = 16

// RelocKind mirrors x64.RelocKind's taxonomy but the fixup shapes
// differ: arm64 has no rel32 field to overwrite independently of its
// instruction word, so Off always marks a whole instruction (or the
// first of the 4-instruction MOVZ/MOVK sequence for RelocProcAbs).
type RelocKind uint8

const (
	RelocProcAbs   RelocKind = iota // 4-instruction MOVZ/MOVK sequence loading a procedure's absolute address (lnp)
	RelocProcPCRel                  // BL's imm26, a near call to a procedure
	RelocPoolPCRel                  // LDR-literal's imm19, a load from the constant pool
)

// Reloc records a patch site that must be resolved once the target
// module's layout is known (spec §4.7).
type Reloc struct {
	Off     int // byte offset of the instruction (or first MOVZ) to patch
	Kind    RelocKind
	ProcIdx int32
	PoolIdx int32
}

// Emitted is one procedure's compiled form before linking.
type Emitted struct {
	Code      []byte
	Relocs    []Reloc
	FrameSize int32
}

// Emit lowers an allocated procedure into AArch64 machine code. p must
// already be past internal/regalloc.Allocate. pool collects every
// procedure's float/double constants and sign/abs masks, shared across
// a module the same way x64.Emit shares an *x64.Pool.
func Emit(p *ir.Procedure, maxSCC int32, pool *Pool) *Emitted {
	e := &emitter{p: p, asm: &Asm{}, pool: pool, blockOff: make(map[uint16]int), pending: make(map[uint16][]int)}
	e.frameSize = (maxSCC + 1) * frameSlotBytes
	if e.frameSize%16 != 0 {
		e.frameSize += 16 - e.frameSize%16
	}
	e.prologue()
	order := cfg.SchedulePostorder(p)
	for _, bid := range order {
		b := p.Block(bid)
		if !b.Live {
			continue
		}
		e.blockOff[bid] = e.asm.Pos()
		for _, id := range b.Ops {
			e.op(p.Op(id))
		}
	}
	e.patchLabels()
	return &Emitted{Code: e.asm.Code, Relocs: e.relocs, FrameSize: e.frameSize}
}

type emitter struct {
	p             *ir.Procedure
	asm           *Asm
	pool          *Pool
	frameSize     int32
	blockOff      map[uint16]int
	pending       map[uint16][]int // target -> B/BL imm26 patch offsets
	pendingWord19 []pendingFix      // Cbz/Cbnz imm19 patch offsets (fixed-label JzI/JnzI family)
	relocs        []Reloc
}

// prologue saves the frame-pointer/link-register pair, reserves the
// spill frame, and saves the callee-saved registers the allocator
// actually used.
func (e *emitter) prologue() {
	e.asm.SubImm(31, 31, 16)
	e.asm.StrX(encBits(X29), 31, 0)
	e.asm.StrX(encBits(X30), 31, 8) // TODO: a single STP would save one instruction; not yet implemented
	e.asm.MovRR(encBits(X29), 31)
	if e.frameSize > 0 {
		e.emitSubImm(31, 31, uint32(e.frameSize))
	}
	for _, r := range calleeSaved {
		if e.usesReg(r) {
			e.asm.SubImm(31, 31, calleeSaveSlotBytes)
			e.asm.StrX(encBits(r), 31, 0)
		}
	}
	for _, r := range calleeSavedV {
		if e.usesReg(r) {
			e.asm.SubImm(31, 31, calleeSaveSlotBytes)
			e.asm.StrD(encBits(r), 31, 0)
		}
	}
}

func (e *emitter) epilogue() {
	for i := len(calleeSavedV) - 1; i >= 0; i-- {
		r := calleeSavedV[i]
		if e.usesReg(r) {
			e.asm.LdrD(encBits(r), 31, 0)
			e.asm.AddImm(31, 31, calleeSaveSlotBytes)
		}
	}
	for i := len(calleeSaved) - 1; i >= 0; i-- {
		r := calleeSaved[i]
		if e.usesReg(r) {
			e.asm.LdrX(encBits(r), 31, 0)
			e.asm.AddImm(31, 31, calleeSaveSlotBytes)
		}
	}
	if e.frameSize > 0 {
		e.emitAddImm(31, 31, uint32(e.frameSize))
	}
	e.asm.MovRR(31, encBits(X29))
	e.asm.LdrX(encBits(X29), 31, 0)
	e.asm.LdrX(encBits(X30), 31, 8)
	e.asm.AddImm(31, 31, 16)
}

// emitAddImm/emitSubImm handle frame sizes past the 12-bit immediate
// field's 4095-byte reach by chaining instructions; a spill frame or
// callee-save area bigger than that is not expected from this
// baseline allocator but the chain keeps the emitter correct if it
// ever happens.
func (e *emitter) emitAddImm(d, n byte, v uint32) {
	for v > 0 {
		chunk := v
		if chunk > 0xFFF {
			chunk = 0xFFF
		}
		e.asm.AddImm(d, n, chunk)
		n = d
		v -= chunk
	}
}
func (e *emitter) emitSubImm(d, n byte, v uint32) {
	for v > 0 {
		chunk := v
		if chunk > 0xFFF {
			chunk = 0xFFF
		}
		e.asm.SubImm(d, n, chunk)
		n = d
		v -= chunk
	}
}

func (e *emitter) usesReg(r ir.Reg) bool {
	for i := 0; i < e.p.Arena.Len(); i++ {
		op := e.p.Op(ir.OpID(i))
		if !op.IsNop() && op.Reg == r {
			return true
		}
	}
	return false
}

func (e *emitter) slotDisp(scc int32) int32 { return frameSlotBytes * scc }

func (e *emitter) spillStore(op *ir.Op) {
	if !op.Spill || op.SCC < 0 {
		return
	}
	e.storeSlot(op.Type, op.Reg, op.SCC)
}

func (e *emitter) reloadOp(op *ir.Op) {
	e.loadSlot(op.Type, op.Reg, op.SCC)
}

// storeSlot/loadSlot address the spill area below the callee-save
// region using a negative offset from X29, mirroring x64's RBP-below
// convention; since AArch64's unsigned-offset LDR/STR can't encode a
// negative displacement, frame.go's slots are indexed from the bottom
// of the frame (SP at entry to the block body) instead of from X29.
func (e *emitter) storeSlot(t ir.Type, r ir.Reg, scc int32) {
	off := uint32(e.slotDisp(scc))
	rb := encBits(r)
	switch t {
	case ir.TF32:
		e.asm.StrS(rb, encBits(X29), off/4)
	case ir.TF64:
		e.asm.StrD(rb, encBits(X29), off/8)
	default:
		e.asm.StrX(rb, encBits(X29), off/8)
	}
}

func (e *emitter) loadSlot(t ir.Type, r ir.Reg, scc int32) {
	off := uint32(e.slotDisp(scc))
	rb := encBits(r)
	switch t {
	case ir.TF32:
		e.asm.LdrS(rb, encBits(X29), off/4)
	case ir.TF64:
		e.asm.LdrD(rb, encBits(X29), off/8)
	default:
		e.asm.LdrX(rb, encBits(X29), off/8)
	}
}

func (e *emitter) in(op *ir.Op, i int) *ir.Op {
	v := op.In[i]
	if v == ir.NoOp {
		return nil
	}
	return e.p.Op(v)
}

// mov emits a register-register copy only when source and destination
// differ, sized by typ.
func (e *emitter) mov(typ ir.Type, dst, src ir.Reg) {
	if dst == src {
		return
	}
	d, s := encBits(dst), encBits(src)
	switch typ {
	case ir.TF32:
		e.asm.FmovS(d, s)
	case ir.TF64:
		e.asm.FmovD(d, s)
	default:
		e.asm.MovRR(d, s)
	}
}

func (e *emitter) op(op *ir.Op) {
	switch op.Opcode {
	case ir.Nop, ir.Alloc, ir.Fence, ir.Phi:
	case ir.Reload:
		e.reloadOp(op)
	case ir.Rename:
		e.mov(op.Type, op.Reg, e.in(op, 0).Reg)
	case ir.Lci:
		e.loadImm64(encBits(op.Reg), op.Imm64)
	case ir.Lcf, ir.Lcd:
		var idx int
		if op.Opcode == ir.Lcf {
			idx = e.pool.AddF32(uint32(op.Imm64))
		} else {
			idx = e.pool.AddF64(op.Imm64)
		}
		e.loadPoolEntry(op.Opcode == ir.Lcd, encBits(op.Reg), idx)
	case ir.Lnp:
		off := e.asm.Pos()
		e.loadImm64Full(encBits(op.Reg), 0)
		e.relocs = append(e.relocs, Reloc{Off: off, Kind: RelocProcAbs, ProcIdx: op.Imm32})
	case ir.Iarg, ir.Farg, ir.Darg:
		e.loadArg(op)
	case ir.Ipass, ir.Fpass, ir.Dpass:
		e.storeArg(op)
	case ir.Icallp, ir.Icalln, ir.Fcallp, ir.Fcalln, ir.Dcallp, ir.Dcalln:
		e.call(op, false)
	case ir.Tcallp, ir.Tcalln:
		e.call(op, true)
	case ir.Iret, ir.Fret, ir.Dret:
		e.ret(op)
	case ir.IretI:
		e.loadImm64(encBits(X0), uint64(uint32(op.Imm32)))
		e.epilogue()
		e.asm.Ret()
	case ir.Jmp:
		e.branch(op.Label[0])
	case ir.Jz, ir.Jnz:
		e.condBranchZero(op)
	case ir.JzI, ir.JnzI:
		e.condBranchZeroImm(op)
	default:
		if isCompareOrBranch(op.Opcode) {
			e.compareOrBranch(op)
		} else if isArith(op.Opcode) {
			e.arith(op)
		} else if isConv(op.Opcode) {
			e.convert(op)
		} else if isLoad(op.Opcode) {
			e.load(op)
		} else if isStore(op.Opcode) {
			e.store(op)
		} else {
			panic("arm64: unsupported opcode " + op.Opcode.String())
		}
	}
	e.spillStore(op)
}

// loadImm64 materializes an arbitrary 64-bit constant with a MOVZ
// followed by up to three MOVK, skipping any all-zero 16-bit lane
// above the first (MOVZ already zeroes the rest of the register).
func (e *emitter) loadImm64(d byte, v uint64) {
	e.asm.MovzImm16(d, uint16(v), 0)
	for lane := byte(1); lane < 4; lane++ {
		chunk := uint16(v >> (16 * lane))
		if chunk != 0 {
			e.asm.MovkImm16(d, chunk, lane)
		}
	}
}

// loadImm64Full always emits the full four-instruction MOVZ/MOVK
// sequence, even for lanes that are currently zero. lnp's payload is a
// placeholder: internal/loader overwrites all four lanes once the
// procedure's mapped address is known, so every lane's instruction
// slot must exist at emit time regardless of the placeholder's value.
func (e *emitter) loadImm64Full(d byte, v uint64) {
	e.asm.MovzImm16(d, uint16(v), 0)
	for lane := byte(1); lane < 4; lane++ {
		e.asm.MovkImm16(d, uint16(v>>(16*lane)), lane)
	}
}

// loadPoolEntry emits a literal-pool load and records the relocation
// internal/module resolves once the pool's final position relative to
// this instruction is known.
func (e *emitter) loadPoolEntry(double bool, d byte, idx int) {
	var off int
	if double {
		off = e.asm.LdrDLit(d)
	} else {
		off = e.asm.LdrSLit(d)
	}
	e.relocs = append(e.relocs, Reloc{Off: off, Kind: RelocPoolPCRel, PoolIdx: int32(idx)})
}

func (e *emitter) branch(target uint16) {
	off := e.asm.B()
	e.recordPatch(target, off)
}

func (e *emitter) recordPatch(target uint16, off int) {
	if endOff, ok := e.blockOff[target]; ok {
		e.asm.PatchImm26(off, int32(endOff-off))
		return
	}
	e.pending[target] = append(e.pending[target], off)
}

func (e *emitter) patchLabels() {
	for target, offs := range e.pending {
		endOff, ok := e.blockOff[target]
		if !ok {
			continue
		}
		for _, off := range offs {
			e.asm.PatchImm26(off, int32(endOff-off))
		}
	}
	for _, fix := range e.pendingWord19 {
		endOff, ok := e.blockOff[fix.target]
		if !ok {
			continue
		}
		e.asm.PatchImm19At5(fix.off, int32(endOff-fix.off))
	}
}

func (e *emitter) condBranchZero(op *ir.Op) {
	cond := e.in(op, 0)
	r := encBits(cond.Reg)
	var off int
	if op.Opcode == ir.Jz {
		off = e.asm.Cbz(r)
	} else {
		off = e.asm.Cbnz(r)
	}
	e.recordPatch(op.Label[0], off)
	e.branch(op.Label[1])
}

func (e *emitter) condBranchZeroImm(op *ir.Op) {
	cond := e.in(op, 0)
	r := encBits(cond.Reg)
	var off int
	if op.Opcode == ir.JzI {
		off = e.asm.Cbz(r)
	} else {
		off = e.asm.Cbnz(r)
	}
	e.recordPatchWord19(uint16(op.Imm32), off)
	e.branch(op.Label[0])
}

// recordPatchWord19 is recordPatch for the Cbz/Cbnz imm19 field
// (bit-5-based), used by the JzI/JnzI fixed-label family.
func (e *emitter) recordPatchWord19(target uint16, off int) {
	if endOff, ok := e.blockOff[target]; ok {
		e.asm.PatchImm19At5(off, int32(endOff-off))
		return
	}
	e.pendingWord19 = append(e.pendingWord19, pendingFix{target, off})
}

type pendingFix struct {
	target uint16
	off    int
}

func (e *emitter) ret(op *ir.Op) {
	v := e.in(op, 0)
	if v != nil {
		dst := X0
		if op.Opcode != ir.Iret {
			dst = V(0)
		}
		e.mov(v.Type, dst, v.Reg)
	}
	e.epilogue()
	e.asm.Ret()
}

func (e *emitter) loadArg(op *ir.Op) {
	switch op.Opcode {
	case ir.Iarg:
		if int(op.ArgIndex) < len(IntArgRegs) {
			e.mov(op.Type, op.Reg, IntArgRegs[op.ArgIndex])
		} else {
			e.loadStackArg(op)
		}
	default:
		if int(op.ArgIndex) < len(FloatArgRegs) {
			e.mov(op.Type, op.Reg, FloatArgRegs[op.ArgIndex])
		} else {
			e.loadStackArg(op)
		}
	}
}

// loadStackArg reads an overflow argument from the caller's stack just
// above the saved FP/LR pair, mirroring x64's [rbp+16+...] convention.
// The spec's current 4-per-class argument cap means AAPCS64's 8
// register slots are never exhausted in practice, but the fallback
// stays correct if that cap is ever raised.
func (e *emitter) loadStackArg(op *ir.Op) {
	cutoff := len(IntArgRegs)
	disp := uint32(16 + 8*(int(op.ArgPos)-cutoff))
	rb := encBits(op.Reg)
	switch op.Type {
	case ir.TF32:
		e.asm.LdrS(rb, encBits(X29), disp/4)
	case ir.TF64:
		e.asm.LdrD(rb, encBits(X29), disp/8)
	default:
		e.asm.LdrX(rb, encBits(X29), disp/8)
	}
}

func (e *emitter) storeArg(op *ir.Op) {
	src := e.in(op, 0)
	switch op.Opcode {
	case ir.Ipass:
		if int(op.ArgIndex) < len(IntArgRegs) {
			e.mov(src.Type, IntArgRegs[op.ArgIndex], src.Reg)
			return
		}
	default:
		if int(op.ArgIndex) < len(FloatArgRegs) {
			e.mov(src.Type, FloatArgRegs[op.ArgIndex], src.Reg)
			return
		}
	}
	cutoff := len(IntArgRegs)
	disp := uint32(8 * (int(op.ArgPos) - cutoff))
	rb := encBits(src.Reg)
	switch src.Type {
	case ir.TF32:
		e.asm.StrS(rb, 31, disp/4)
	case ir.TF64:
		e.asm.StrD(rb, 31, disp/8)
	default:
		e.asm.StrX(rb, 31, disp/8)
	}
}

func (e *emitter) call(op *ir.Op, tail bool) {
	near := true
	switch op.Opcode {
	case ir.Icallp, ir.Fcallp, ir.Dcallp, ir.Tcallp:
		near = false
	}
	var ptrReg ir.Reg
	if !near {
		ptrReg = e.in(op, 0).Reg
		if tail {
			e.mov(ir.TInt, X0, ptrReg)
			ptrReg = X0
		}
	}
	if tail {
		e.epilogue()
	}
	if near {
		if tail {
			off := e.asm.B()
			e.relocs = append(e.relocs, Reloc{Off: off, Kind: RelocProcPCRel, ProcIdx: op.Imm32})
		} else {
			off := e.asm.BL()
			e.relocs = append(e.relocs, Reloc{Off: off, Kind: RelocProcPCRel, ProcIdx: op.Imm32})
		}
	} else if tail {
		e.asm.Br(encBits(ptrReg))
	} else {
		e.asm.Blr(encBits(ptrReg))
	}
	if tail {
		return
	}
	dst := op.Reg
	if dst == ir.NoReg {
		return
	}
	switch op.Type {
	case ir.TF32, ir.TF64:
		e.mov(op.Type, dst, V(0))
	default:
		e.mov(op.Type, dst, X0)
	}
}
