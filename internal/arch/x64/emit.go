package x64

import "github.com/oisee/bjit/internal/cfg"
import "github.com/oisee/bjit/internal/ir"

// frameSlotBytes is the stack-slot width for every SCC spill class;
// double-width (8 byte) covers both i64 and f64/f32 payloads, trading
// some stack space for a single, opcode-independent offset formula.
const frameSlotBytes = 8

// RelocKind distinguishes the three fixups emit.go cannot resolve on
// its own: a call/jmp target is another procedure's (not yet placed)
// offset, lnp's payload is that offset's absolute address, and a
// constant-pool load's displacement depends on the pool's final
// position relative to the load site.
type RelocKind uint8

const (
	RelocProcAbs   RelocKind = iota // imm64 absolute address of a procedure (lnp)
	RelocProcPCRel                  // rel32 near call/jmp to a procedure
	RelocPoolPCRel                  // rel32 RIP-relative load of a constant-pool entry
)

// Reloc records a patch site that must be resolved once the target
// module's layout is known (spec §4.7).
type Reloc struct {
	Off     int       // byte offset of the rel32/imm32/imm64 operand in Code
	Kind    RelocKind
	ProcIdx int32 // module-relative procedure index, valid for the RelocProc* kinds
	PoolIdx int32 // index into the module's shared constant pool, valid for RelocPoolPCRel
}

// Emitted is one procedure's compiled form before linking: code bytes
// (entry at offset 0), the fixups emit.go could not resolve on its own,
// and the spill frame size.
type Emitted struct {
	Code      []byte
	Relocs    []Reloc
	FrameSize int32
}

// Emit lowers an allocated procedure into x86-64 machine code. p must
// already be past internal/regalloc.Allocate: every op either carries
// a register or is marked Spill, and every block's ComeFrom/dominator
// bookkeeping is current.
// pool collects every procedure's float/double constants and
// sign/abs masks; share one Pool across all Emit calls in a module so
// a constant used by two procedures shares its slot (constpool.go).
// abi picks the calling convention iarg/ipass/calls lower against.
func Emit(p *ir.Procedure, maxSCC int32, pool *Pool, abi ABI) *Emitted {
	e := &emitter{p: p, asm: &Asm{}, pool: pool, abi: abi, blockOff: make(map[uint16]int), pending: make(map[uint16][]int)}
	e.frameSize = (maxSCC + 1) * frameSlotBytes
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
	p         *ir.Procedure
	asm       *Asm
	pool      *Pool
	abi       ABI
	frameSize int32
	blockOff  map[uint16]int
	pending   map[uint16][]int // label -> patch offsets still unresolved
	relocs    []Reloc
}

func (e *emitter) calleeSaved() []ir.Reg {
	if e.abi == Win64 {
		return calleeSavedWin64
	}
	return calleeSaved
}

// prologue pushes the callee-saved registers the allocator actually
// used and reserves the spill frame below RBP. The epilogue mirrors
// this in reverse at every return site (see retOp).
func (e *emitter) prologue() {
	e.asm.PushR(encBits(RBP))
	e.asm.MovRR(true, encBits(RBP), encBits(RSP))
	if e.frameSize > 0 {
		e.asm.AluImm32(true, digSub, encBits(RSP), e.frameSize)
	}
	for _, r := range e.calleeSaved() {
		if e.usesReg(r) {
			e.asm.PushR(encBits(r))
		}
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

func (e *emitter) epilogue() {
	saved := e.calleeSaved()
	for i := len(saved) - 1; i >= 0; i-- {
		r := saved[i]
		if e.usesReg(r) {
			e.asm.PopR(encBits(r))
		}
	}
	e.asm.MovRR(true, encBits(RSP), encBits(RBP))
	e.asm.PopR(encBits(RBP))
}

func (e *emitter) slotDisp(scc int32) int32 { return -frameSlotBytes * (scc + 1) }

// spillStore writes op's result to its SCC slot when op.Spill is set;
// emitted immediately after the op that produced the value.
func (e *emitter) spillStore(op *ir.Op) {
	if !op.Spill || op.SCC < 0 {
		return
	}
	d := e.slotDisp(op.SCC)
	r := encBits(op.Reg)
	switch op.Type {
	case ir.TF32:
		e.asm.StoreMemXMM(false, r, encBits(RBP), d)
	case ir.TF64:
		e.asm.StoreMemXMM(true, r, encBits(RBP), d)
	default:
		e.asm.StoreMem(true, 0x89, r, encBits(RBP), d)
	}
}

// reloadOp materializes a Reload op by reading its SCC slot into its
// assigned register.
func (e *emitter) reloadOp(op *ir.Op) {
	d := e.slotDisp(op.SCC)
	r := encBits(op.Reg)
	switch op.Type {
	case ir.TF32:
		e.asm.LoadMemXMM(false, r, encBits(RBP), d)
	case ir.TF64:
		e.asm.LoadMemXMM(true, r, encBits(RBP), d)
	default:
		e.asm.LoadMem(true, 0x8B, 0, false, r, encBits(RBP), d)
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
		e.asm.MovssRR(d, s)
	case ir.TF64:
		e.asm.MovsdRR(d, s)
	default:
		e.asm.MovRR(true, d, s)
	}
}

func (e *emitter) op(op *ir.Op) {
	switch op.Opcode {
	case ir.Nop, ir.Alloc, ir.Fence, ir.Phi:
		// Phi carries no code of its own; its value is whatever
		// register/shuffle already landed it there on entry.
	case ir.Reload:
		e.reloadOp(op)
	case ir.Rename:
		e.mov(op.Type, op.Reg, e.in(op, 0).Reg)
	case ir.Lci:
		e.asm.movImm64(int(encBits(op.Reg)), op.Imm64)
	case ir.Lcf, ir.Lcd:
		// immediate float/double payloads route through the module's
		// shared constant pool (constpool.go); internal/module rewrites
		// the RIP-relative displacement once the pool's final address
		// relative to this load is known.
		var idx int
		if op.Opcode == ir.Lcf {
			idx = e.pool.AddF32(uint32(op.Imm64))
		} else {
			idx = e.pool.AddF64(op.Imm64)
		}
		off := e.asm.LoadMemXMMRip(op.Type == ir.TF64, encBits(op.Reg))
		e.relocs = append(e.relocs, Reloc{Off: off, Kind: RelocPoolPCRel, PoolIdx: int32(idx)})
	case ir.Lnp:
		off := e.asm.Pos() + 2
		e.asm.movImm64(int(encBits(op.Reg)), 0)
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
		e.asm.movImm32(true, encBits(RAX), op.Imm32)
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
		}
	}
	e.spillStore(op)
}

func (e *emitter) branch(target uint16) {
	off := e.asm.JmpRel32()
	e.recordPatch(target, off)
}

func (e *emitter) recordPatch(target uint16, off int) {
	if endOff, ok := e.blockOff[target]; ok {
		e.asm.PatchRel32(off, int32(endOff-(off+4)))
		return
	}
	e.pending[target] = append(e.pending[target], off)
}

func (e *emitter) patchLabels() {
	for target, offs := range e.pending {
		endOff, ok := e.blockOff[target]
		if !ok {
			continue // unreachable label; dead code already dropped by opt
		}
		for _, off := range offs {
			e.asm.PatchRel32(off, int32(endOff-(off+4)))
		}
	}
}

func (e *emitter) condBranchZero(op *ir.Op) {
	cond := e.in(op, 0)
	r := encBits(cond.Reg)
	e.asm.TestRR(true, r, r)
	cc := byte(CcNe)
	if op.Opcode == ir.Jz {
		cc = CcE
	}
	off := e.asm.JccRel32(cc)
	e.recordPatch(op.Label[0], off)
	e.branch(op.Label[1])
}

func (e *emitter) condBranchZeroImm(op *ir.Op) {
	cond := e.in(op, 0)
	r := encBits(cond.Reg)
	e.asm.TestRR(true, r, r)
	cc := byte(CcNe)
	if op.Opcode == ir.JzI {
		cc = CcE
	}
	off := e.asm.JccRel32(cc)
	e.recordPatch(uint16(op.Imm32), off)
	e.branch(op.Label[0])
}

func (e *emitter) ret(op *ir.Op) {
	v := e.in(op, 0)
	if v != nil {
		dst := RAX
		if op.Opcode != ir.Iret {
			dst = XMM(0)
		}
		e.mov(v.Type, dst, v.Reg)
	}
	e.epilogue()
	e.asm.Ret()
}

// loadArg materializes an incoming argument. System V indexes the
// first six integer / first eight float args independently per type
// class; Win64 shares one register slot per argument position across
// both classes (op.ArgPos), with only four register-passed arguments
// total. Either way, overflow arguments come from the caller's stack
// above the return address.
func (e *emitter) loadArg(op *ir.Op) {
	if e.abi == Win64 {
		if int(op.ArgPos) < 4 {
			if op.Opcode == ir.Iarg {
				e.mov(op.Type, op.Reg, IntArgRegsWin64[op.ArgPos])
			} else {
				e.mov(op.Type, op.Reg, FloatArgRegsWin64[op.ArgPos])
			}
		} else {
			e.loadStackArg(op)
		}
		return
	}
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

// loadStackArg reads an argument spilled by the caller above the
// return address: [rbp+16], [rbp+24], ... for the overflow arguments
// in call order, mirroring the prologue's rbp-based frame. The
// register cutoff is 6 under SysV (per type class) and 4 under Win64
// (shared across classes); both conventions place the first stack
// argument at [rbp+16].
func (e *emitter) loadStackArg(op *ir.Op) {
	cutoff := 6
	if e.abi == Win64 {
		cutoff = 4
	}
	disp := int32(16 + 8*(int(op.ArgPos)-cutoff))
	r := encBits(op.Reg)
	switch op.Type {
	case ir.TF32:
		e.asm.LoadMemXMM(false, r, encBits(RBP), disp)
	case ir.TF64:
		e.asm.LoadMemXMM(true, r, encBits(RBP), disp)
	default:
		e.asm.LoadMem(true, 0x8B, 0, false, r, encBits(RBP), disp)
	}
}

func (e *emitter) storeArg(op *ir.Op) {
	src := e.in(op, 0)
	cutoff := 6
	if e.abi == Win64 {
		cutoff = 4
		if int(op.ArgPos) < 4 {
			if op.Opcode == ir.Ipass {
				e.mov(src.Type, IntArgRegsWin64[op.ArgPos], src.Reg)
			} else {
				e.mov(src.Type, FloatArgRegsWin64[op.ArgPos], src.Reg)
			}
			return
		}
	} else {
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
	}
	disp := int32(8 * (int(op.ArgPos) - cutoff))
	if e.abi == Win64 {
		disp += Win64ShadowSpace
	}
	r := encBits(src.Reg)
	switch src.Type {
	case ir.TF32:
		e.asm.StoreMemXMM(false, r, encBits(RSP), disp)
	case ir.TF64:
		e.asm.StoreMemXMM(true, r, encBits(RSP), disp)
	default:
		e.asm.StoreMem(true, 0x89, r, encBits(RSP), disp)
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
		// Stage the target into RAX before the epilogue runs, since the
		// epilogue restores any callee-saved register the pointer might
		// currently live in.
		ptrReg = e.in(op, 0).Reg
		if tail {
			e.mov(ir.TInt, RAX, ptrReg)
			ptrReg = RAX
		}
	}
	if tail {
		e.epilogue()
	}
	if near {
		if tail {
			off := e.asm.JmpRel32()
			e.relocs = append(e.relocs, Reloc{Off: off, Kind: RelocProcPCRel, ProcIdx: op.Imm32})
		} else {
			off := e.asm.CallRel32()
			e.relocs = append(e.relocs, Reloc{Off: off, Kind: RelocProcPCRel, ProcIdx: op.Imm32})
		}
	} else if tail {
		e.asm.JmpR(encBits(ptrReg))
	} else {
		e.asm.CallR(encBits(ptrReg))
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
		e.mov(op.Type, dst, XMM(0))
	default:
		e.mov(op.Type, dst, RAX)
	}
}
