package x64

import "github.com/oisee/bjit/internal/ir"

// This file lowers the arithmetic, compare/branch, conversion, and
// load/store opcode families. Each family shares one encoding shape,
// so a small opcode->parameters table replaces ~150 near-identical
// switch cases, the same per-opcode table idiom regs.go's doc comment
// describes.

var intBinReg = map[ir.Opcode]byte{ir.Iadd: opAdd, ir.Isub: opSub, ir.Iand: opAnd, ir.Ior: opOr, ir.Ixor: opXor}
var intBinImm = map[ir.Opcode]byte{ir.IaddI: digAdd, ir.IsubI: digSub, ir.IandI: digAnd, ir.IorI: digOr, ir.IxorI: digXor}

func isArith(op ir.Opcode) bool {
	switch op {
	case ir.Iadd, ir.Isub, ir.Imul, ir.Idiv, ir.Imod, ir.Udiv, ir.Umod,
		ir.IaddI, ir.IsubI, ir.ImulI,
		ir.Ineg, ir.Inot, ir.Iand, ir.Ior, ir.Ixor, ir.Ishl, ir.Ishr, ir.Ushr,
		ir.IandI, ir.IorI, ir.IxorI, ir.IshlI, ir.IshrI, ir.IushrI,
		ir.Fadd, ir.Fsub, ir.Fneg, ir.Fabs, ir.Fmul, ir.Fdiv,
		ir.Dadd, ir.Dsub, ir.Dneg, ir.Dabs, ir.Dmul, ir.Ddiv:
		return true
	}
	return false
}

func (e *emitter) arith(op *ir.Op) {
	dst := encBits(op.Reg)
	switch op.Opcode {
	case ir.Iadd, ir.Isub, ir.Iand, ir.Ior, ir.Ixor:
		e.arithRR(op, intBinReg[op.Opcode])
		return
	case ir.IaddI, ir.IsubI, ir.IandI, ir.IorI, ir.IxorI:
		e.mov(ir.TInt, op.Reg, e.in(op, 0).Reg)
		e.asm.AluImm32(true, intBinImm[op.Opcode], dst, op.Imm32)
		return
	case ir.Imul:
		e.arithCommRR(op, func(d, s byte) { e.asm.ImulRR(true, d, s) })
		return
	case ir.ImulI:
		e.asm.ImulImm32(true, dst, encBits(e.in(op, 0).Reg), op.Imm32)
		return
	case ir.Idiv, ir.Imod, ir.Udiv, ir.Umod:
		e.divmod(op)
		return
	case ir.Ishl, ir.Ishr, ir.Ushr:
		e.shiftRR(op)
		return
	case ir.IshlI, ir.IshrI, ir.IushrI:
		e.shiftImm(op)
		return
	case ir.Ineg:
		e.mov(ir.TInt, op.Reg, e.in(op, 0).Reg)
		e.asm.NegR(true, dst)
		return
	case ir.Inot:
		e.mov(ir.TInt, op.Reg, e.in(op, 0).Reg)
		e.asm.NotR(true, dst)
		return
	case ir.Fadd, ir.Fsub, ir.Fmul, ir.Fdiv, ir.Dadd, ir.Dsub, ir.Dmul, ir.Ddiv:
		e.floatArith(op)
		return
	case ir.Fneg, ir.Dneg, ir.Fabs, ir.Dabs:
		e.floatUnary(op)
		return
	}
}

// arithRR lowers a destructive `dst op= src` binary op. x86's ALU
// opcodes operate in place on the rm operand, so the first input's
// value must already be (or is first moved into) op's register.
func (e *emitter) arithRR(op *ir.Op, opcode byte) {
	in0, in1 := e.in(op, 0), e.in(op, 1)
	e.mov(ir.TInt, op.Reg, in0.Reg)
	e.asm.AluRR(true, opcode, encBits(op.Reg), encBits(in1.Reg))
}

// arithCommRR is arithRR for a commutative op encoded with the
// destination in ModRM.reg (IMUL's shape), where either operand may
// already coincide with the destination register.
func (e *emitter) arithCommRR(op *ir.Op, emit func(dst, src byte)) {
	in0, in1 := e.in(op, 0), e.in(op, 1)
	src := in1.Reg
	if op.Reg == in1.Reg {
		src = in0.Reg
	} else {
		e.mov(ir.TInt, op.Reg, in0.Reg)
	}
	emit(encBits(op.Reg), encBits(src))
}

// divmod stages the dividend/divisor through RAX/R11 regardless of
// where the allocator placed them (spec's baseline allocator has no
// fixed-register-constraint solver, so RAX/RDX/R11 are simply treated
// as clobbered across a division; see DESIGN.md).
func (e *emitter) divmod(op *ir.Op) {
	in0, in1 := e.in(op, 0), e.in(op, 1)
	e.mov(ir.TInt, ScratchDivisor, in1.Reg)
	e.mov(ir.TInt, RAX, in0.Reg)
	switch op.Opcode {
	case ir.Idiv, ir.Imod:
		e.asm.Cqo()
		e.asm.IdivR(true, encBits(ScratchDivisor))
	default:
		e.asm.AluRR(false, opXor, encBits(RDX), encBits(RDX))
		e.asm.DivR(true, encBits(ScratchDivisor))
	}
	result := RAX
	if op.Opcode == ir.Imod || op.Opcode == ir.Umod {
		result = RDX
	}
	e.mov(ir.TInt, op.Reg, result)
}

// ScratchDivisor holds the divisor during divmod; R11 is always
// caller-saved and never callee-saved, so clobbering it needs no
// special save/restore around a division.
const ScratchDivisor = R11

func (e *emitter) shiftRR(op *ir.Op) {
	in0, in1 := e.in(op, 0), e.in(op, 1)
	e.mov(ir.TInt, RCX, in1.Reg)
	e.mov(ir.TInt, op.Reg, in0.Reg)
	dst := encBits(op.Reg)
	switch op.Opcode {
	case ir.Ishl:
		e.asm.ShlCL(true, dst)
	case ir.Ishr:
		e.asm.SarCL(true, dst)
	default:
		e.asm.ShrCL(true, dst)
	}
}

func (e *emitter) shiftImm(op *ir.Op) {
	in0 := e.in(op, 0)
	e.mov(ir.TInt, op.Reg, in0.Reg)
	dst := encBits(op.Reg)
	imm := byte(op.Imm32)
	switch op.Opcode {
	case ir.IshlI:
		e.asm.regImm8(true, 0xC1, 4, int(dst), imm)
	case ir.IshrI:
		e.asm.regImm8(true, 0xC1, 7, int(dst), imm)
	default:
		e.asm.regImm8(true, 0xC1, 5, int(dst), imm)
	}
}

func (e *emitter) floatArith(op *ir.Op) {
	in0, in1 := e.in(op, 0), e.in(op, 1)
	e.mov(op.Type, op.Reg, in0.Reg)
	d, s := encBits(op.Reg), encBits(in1.Reg)
	double := op.Type == ir.TF64
	switch op.Opcode {
	case ir.Fadd, ir.Dadd:
		if double {
			e.asm.AddsdRR(d, s)
		} else {
			e.asm.AddssRR(d, s)
		}
	case ir.Fsub, ir.Dsub:
		if double {
			e.asm.SubsdRR(d, s)
		} else {
			e.asm.SubssRR(d, s)
		}
	case ir.Fmul, ir.Dmul:
		if double {
			e.asm.MulsdRR(d, s)
		} else {
			e.asm.MulssRR(d, s)
		}
	default:
		if double {
			e.asm.DivsdRR(d, s)
		} else {
			e.asm.DivssRR(d, s)
		}
	}
}

// floatUnary implements negate/abs via a sign-bit XOR/AND against a
// constant-pool mask, loaded RIP-relative the same way Lcf/Lcd load
// their payload; internal/module resolves the displacement once the
// pool's final placement is known.
func (e *emitter) floatUnary(op *ir.Op) {
	in0 := e.in(op, 0)
	e.mov(op.Type, op.Reg, in0.Reg)
	mask := ScratchXMM
	double := op.Type == ir.TF64
	var idx int
	switch op.Opcode {
	case ir.Fneg:
		idx = e.pool.SignMask32()
	case ir.Dneg:
		idx = e.pool.SignMask64()
	case ir.Fabs:
		idx = e.pool.AbsMask32()
	default: // Dabs
		idx = e.pool.AbsMask64()
	}
	off := e.asm.LoadMemXMMRip(double, encBits(mask))
	e.relocs = append(e.relocs, Reloc{Off: off, Kind: RelocPoolPCRel, PoolIdx: int32(idx)})
	d, s := encBits(op.Reg), encBits(mask)
	switch op.Opcode {
	case ir.Fneg, ir.Dneg:
		e.asm.XorpsRR(d, s)
	default:
		e.asm.AndpsRR(d, s)
	}
}

// ScratchXMM is XMM15, held out of SysVConfig's float pool precisely
// so floatUnary can stage the sign-bit mask here without ever
// colliding with a value the allocator assigned.
const ScratchXMM = ir.Reg(31)

func isConv(op ir.Opcode) bool {
	switch op {
	case ir.Ci2d, ir.Cd2i, ir.Ci2f, ir.Cf2i, ir.Cf2d, ir.Cd2f,
		ir.Bci2d, ir.Bcd2i, ir.Bci2f, ir.Bcf2i,
		ir.I8, ir.I16, ir.I32, ir.U8, ir.U16, ir.U32:
		return true
	}
	return false
}

func (e *emitter) convert(op *ir.Op) {
	in0 := e.in(op, 0)
	d, s := encBits(op.Reg), encBits(in0.Reg)
	switch op.Opcode {
	case ir.Ci2f:
		e.asm.CvtsiRR(false, true, d, s)
	case ir.Ci2d:
		e.asm.CvtsiRR(true, true, d, s)
	case ir.Bci2d:
		e.asm.MovqToXmm(d, s)
	case ir.Bci2f:
		e.asm.MovdToXmm(d, s)
	case ir.Cf2i:
		e.asm.CvttsRR(false, true, d, s)
	case ir.Bcf2i:
		e.asm.MovdFromXmm(d, s)
	case ir.Cd2i:
		e.asm.CvttsRR(true, true, d, s)
	case ir.Bcd2i:
		e.asm.MovqFromXmm(d, s)
	case ir.Cf2d:
		e.asm.CvtssToSd(d, s)
	case ir.Cd2f:
		e.asm.CvtsdToSs(d, s)
	case ir.I8:
		e.mov(ir.TInt, op.Reg, in0.Reg)
		e.asm.Movsx8(true, d, d)
	case ir.I16:
		e.mov(ir.TInt, op.Reg, in0.Reg)
		e.asm.Movsx16(true, d, d)
	case ir.I32:
		e.asm.Movsxd(d, s)
	case ir.U8:
		e.mov(ir.TInt, op.Reg, in0.Reg)
		e.asm.Movzx8(true, d, d)
	case ir.U16:
		e.mov(ir.TInt, op.Reg, in0.Reg)
		e.asm.Movzx16(true, d, d)
	case ir.U32:
		e.mov(ir.TInt, op.Reg, in0.Reg)
		e.asm.AluRR(false, opAnd, d, d) // 32-bit op clears the upper 32 bits, zero-extending
	}
}

var loadOpWidth = map[ir.Opcode]struct {
	twoByte       bool
	opc0, opc1    byte
	w             bool
	xmm, double   bool
}{
	ir.Li8:  {true, 0x0F, 0xBE, true, false, false},
	ir.Li16: {true, 0x0F, 0xBF, true, false, false},
	ir.Li32: {false, 0x63, 0, true, false, false},
	ir.Li64: {false, 0x8B, 0, true, false, false},
	ir.Lu8:  {true, 0x0F, 0xB6, true, false, false},
	ir.Lu16: {true, 0x0F, 0xB7, true, false, false},
	ir.Lu32: {false, 0x8B, 0, false, false, false},
}

func isLoad(op ir.Opcode) bool {
	switch op {
	case ir.Li8, ir.Li16, ir.Li32, ir.Li64, ir.Lu8, ir.Lu16, ir.Lu32, ir.Lf32, ir.Lf64,
		ir.L2i8, ir.L2i16, ir.L2i32, ir.L2i64, ir.L2u8, ir.L2u16, ir.L2u32, ir.L2f32, ir.L2f64:
		return true
	}
	return false
}

func isStore(op ir.Opcode) bool {
	switch op {
	case ir.Si8, ir.Si16, ir.Si32, ir.Si64, ir.Sf32, ir.Sf64,
		ir.S2i8, ir.S2i16, ir.S2i32, ir.S2i64, ir.S2f32, ir.S2f64:
		return true
	}
	return false
}

func (e *emitter) load(op *ir.Op) {
	ptr := e.in(op, 0)
	d := encBits(op.Reg)
	base := encBits(ptr.Reg)
	if op.Opcode == ir.Lf32 || op.Opcode == ir.Lf64 {
		e.asm.LoadMemXMM(op.Opcode == ir.Lf64, d, base, op.Imm32)
		return
	}
	if w, ok := loadOpWidth[op.Opcode]; ok {
		e.asm.LoadMem(w.w, w.opc0, w.opc1, w.twoByte, d, base, op.Imm32)
		return
	}
	// two-register-indexed family: In[1] holds the index register.
	idx := e.in(op, 1)
	e.loadIndexed(op, d, base, encBits(idx.Reg))
}

func (e *emitter) loadIndexed(op *ir.Op, d, base, idx byte) {
	switch op.Opcode {
	case ir.L2f32, ir.L2f64:
		e.asm.xmmMemPrefix(op.Opcode == ir.L2f64)
		if (d&8) != 0 || (idx&8) != 0 || (base&8) != 0 {
			e.asm.byte(rexByte(false, (d&8) != 0, (idx&8) != 0, (base&8) != 0))
		}
		e.asm.bytes(0x0F, 0x10)
		e.asm.memIndexed(d&7, base&7, idx&7)
	case ir.L2i8:
		e.asm.byte(rexByte(true, (d&8) != 0, (idx&8) != 0, (base&8) != 0))
		e.asm.bytes(0x0F, 0xBE)
		e.asm.memIndexed(d&7, base&7, idx&7)
	case ir.L2u8:
		e.asm.byte(rexByte(true, (d&8) != 0, (idx&8) != 0, (base&8) != 0))
		e.asm.bytes(0x0F, 0xB6)
		e.asm.memIndexed(d&7, base&7, idx&7)
	case ir.L2i16:
		e.asm.byte(rexByte(true, (d&8) != 0, (idx&8) != 0, (base&8) != 0))
		e.asm.bytes(0x0F, 0xBF)
		e.asm.memIndexed(d&7, base&7, idx&7)
	case ir.L2u16:
		e.asm.byte(rexByte(true, (d&8) != 0, (idx&8) != 0, (base&8) != 0))
		e.asm.bytes(0x0F, 0xB7)
		e.asm.memIndexed(d&7, base&7, idx&7)
	case ir.L2i32:
		e.asm.byte(rexByte(true, (d&8) != 0, (idx&8) != 0, (base&8) != 0))
		e.asm.byte(0x63)
		e.asm.memIndexed(d&7, base&7, idx&7)
	case ir.L2u32:
		if (d&8) != 0 || (idx&8) != 0 || (base&8) != 0 {
			e.asm.byte(rexByte(false, (d&8) != 0, (idx&8) != 0, (base&8) != 0))
		}
		e.asm.byte(0x8B)
		e.asm.memIndexed(d&7, base&7, idx&7)
	default: // L2i64
		e.asm.byte(rexByte(true, (d&8) != 0, (idx&8) != 0, (base&8) != 0))
		e.asm.byte(0x8B)
		e.asm.memIndexed(d&7, base&7, idx&7)
	}
}

func (e *emitter) store(op *ir.Op) {
	if op.Opcode >= ir.S2i8 {
		e.storeIndexed(op)
		return
	}
	ptr := e.in(op, 0)
	val := e.in(op, 1)
	base := encBits(ptr.Reg)
	s := encBits(val.Reg)
	switch op.Opcode {
	case ir.Sf32:
		e.asm.StoreMemXMM(false, s, base, op.Imm32)
	case ir.Sf64:
		e.asm.StoreMemXMM(true, s, base, op.Imm32)
	case ir.Si8:
		e.asm.StoreMem(false, 0x88, s, base, op.Imm32)
	case ir.Si16:
		e.asm.byte(0x66)
		e.asm.StoreMem(false, 0x89, s, base, op.Imm32)
	case ir.Si32:
		e.asm.StoreMem(false, 0x89, s, base, op.Imm32)
	default: // Si64
		e.asm.StoreMem(true, 0x89, s, base, op.Imm32)
	}
}

func (e *emitter) storeIndexed(op *ir.Op) {
	ptr := e.in(op, 0)
	idx := e.in(op, 1)
	val := e.p.Op(op.Label[0])
	base, index, s := encBits(ptr.Reg), encBits(idx.Reg), encBits(val.Reg)
	switch op.Opcode {
	case ir.S2f32, ir.S2f64:
		e.asm.xmmMemPrefix(op.Opcode == ir.S2f64)
		if (s&8) != 0 || (index&8) != 0 || (base&8) != 0 {
			e.asm.byte(rexByte(false, (s&8) != 0, (index&8) != 0, (base&8) != 0))
		}
		e.asm.bytes(0x0F, 0x11)
		e.asm.memIndexed(s&7, base&7, index&7)
	case ir.S2i8:
		if (s&8) != 0 || (index&8) != 0 || (base&8) != 0 {
			e.asm.byte(rexByte(false, (s&8) != 0, (index&8) != 0, (base&8) != 0))
		}
		e.asm.byte(0x88)
		e.asm.memIndexed(s&7, base&7, index&7)
	case ir.S2i16:
		e.asm.byte(0x66)
		if (s&8) != 0 || (index&8) != 0 || (base&8) != 0 {
			e.asm.byte(rexByte(false, (s&8) != 0, (index&8) != 0, (base&8) != 0))
		}
		e.asm.byte(0x89)
		e.asm.memIndexed(s&7, base&7, index&7)
	case ir.S2i32:
		if (s&8) != 0 || (index&8) != 0 || (base&8) != 0 {
			e.asm.byte(rexByte(false, (s&8) != 0, (index&8) != 0, (base&8) != 0))
		}
		e.asm.byte(0x89)
		e.asm.memIndexed(s&7, base&7, index&7)
	default: // S2i64
		e.asm.byte(rexByte(true, (s&8) != 0, (index&8) != 0, (base&8) != 0))
		e.asm.byte(0x89)
		e.asm.memIndexed(s&7, base&7, index&7)
	}
}

func isCompareOrBranch(op ir.Opcode) bool {
	switch op {
	case ir.Jilt, ir.Jige, ir.Jigt, ir.Jile, ir.Jieq, ir.Jine,
		ir.Jult, ir.Juge, ir.Jugt, ir.Jule,
		ir.Jflt, ir.Jfge, ir.Jfgt, ir.Jfle, ir.Jfeq, ir.Jfne,
		ir.Jdlt, ir.Jdge, ir.Jdgt, ir.Jdle, ir.Jdeq, ir.Jdne,
		ir.JiltI, ir.JigeI, ir.JigtI, ir.JileI, ir.JieqI, ir.JineI,
		ir.JultI, ir.JugeI, ir.JugtI, ir.JuleI,
		ir.Cilt, ir.Cige, ir.Cigt, ir.Cile, ir.Cieq, ir.Cine,
		ir.Cult, ir.Cuge, ir.Cugt, ir.Cule,
		ir.Cflt, ir.Cfge, ir.Cfgt, ir.Cfle, ir.Cfeq, ir.Cfne,
		ir.Cdlt, ir.Cdge, ir.Cdgt, ir.Cdle, ir.Cdeq, ir.Cdne,
		ir.CiltI, ir.CigeI, ir.CigtI, ir.CileI, ir.CieqI, ir.CineI,
		ir.CultI, ir.CugeI, ir.CugtI, ir.CuleI:
		return true
	}
	return false
}

// condCode maps a compare/branch opcode to its x86 condition code and
// whether the comparison is over floats/doubles (which need the
// unordered-safe Jp/Jnp guard).
var condCode = map[ir.Opcode]byte{
	ir.Jilt: CcL, ir.Jige: CcGe, ir.Jigt: CcG, ir.Jile: CcLe, ir.Jieq: CcE, ir.Jine: CcNe,
	ir.Jult: CcB, ir.Juge: CcAe, ir.Jugt: CcA, ir.Jule: CcBe,
	ir.Jflt: CcB, ir.Jfge: CcAe, ir.Jfgt: CcA, ir.Jfle: CcBe, ir.Jfeq: CcE, ir.Jfne: CcNe,
	ir.Jdlt: CcB, ir.Jdge: CcAe, ir.Jdgt: CcA, ir.Jdle: CcBe, ir.Jdeq: CcE, ir.Jdne: CcNe,
	ir.Cilt: CcL, ir.Cige: CcGe, ir.Cigt: CcG, ir.Cile: CcLe, ir.Cieq: CcE, ir.Cine: CcNe,
	ir.Cult: CcB, ir.Cuge: CcAe, ir.Cugt: CcA, ir.Cule: CcBe,
	ir.Cflt: CcB, ir.Cfge: CcAe, ir.Cfgt: CcA, ir.Cfle: CcBe, ir.Cfeq: CcE, ir.Cfne: CcNe,
	ir.Cdlt: CcB, ir.Cdge: CcAe, ir.Cdgt: CcA, ir.Cdle: CcBe, ir.Cdeq: CcE, ir.Cdne: CcNe,
	ir.JiltI: CcL, ir.JigeI: CcGe, ir.JigtI: CcG, ir.JileI: CcLe, ir.JieqI: CcE, ir.JineI: CcNe,
	ir.JultI: CcB, ir.JugeI: CcAe, ir.JugtI: CcA, ir.JuleI: CcBe,
	ir.CiltI: CcL, ir.CigeI: CcGe, ir.CigtI: CcG, ir.CileI: CcLe, ir.CieqI: CcE, ir.CineI: CcNe,
	ir.CultI: CcB, ir.CugeI: CcAe, ir.CugtI: CcA, ir.CuleI: CcBe,
}

func isFloatCompare(op ir.Opcode) bool {
	switch op {
	case ir.Jflt, ir.Jfge, ir.Jfgt, ir.Jfle, ir.Jfeq, ir.Jfne,
		ir.Jdlt, ir.Jdge, ir.Jdgt, ir.Jdle, ir.Jdeq, ir.Jdne,
		ir.Cflt, ir.Cfge, ir.Cfgt, ir.Cfle, ir.Cfeq, ir.Cfne,
		ir.Cdlt, ir.Cdge, ir.Cdgt, ir.Cdle, ir.Cdeq, ir.Cdne:
		return true
	}
	return false
}

// isImmCompare reports whether op's second operand is an immediate
// (the Imm32 field) rather than a second register.
func isImmCompare(op ir.Opcode) bool {
	switch op {
	case ir.JiltI, ir.JigeI, ir.JigtI, ir.JileI, ir.JieqI, ir.JineI,
		ir.JultI, ir.JugeI, ir.JugtI, ir.JuleI,
		ir.CiltI, ir.CigeI, ir.CigtI, ir.CileI, ir.CieqI, ir.CineI,
		ir.CultI, ir.CugeI, ir.CugtI, ir.CuleI:
		return true
	}
	return false
}

// isBranch reports whether op also carries two jump targets (the Jxx
// family) as opposed to producing a 0/1 value (the Cxx family).
func isBranch(op ir.Opcode) bool {
	switch op {
	case ir.Jilt, ir.Jige, ir.Jigt, ir.Jile, ir.Jieq, ir.Jine,
		ir.Jult, ir.Juge, ir.Jugt, ir.Jule,
		ir.Jflt, ir.Jfge, ir.Jfgt, ir.Jfle, ir.Jfeq, ir.Jfne,
		ir.Jdlt, ir.Jdge, ir.Jdgt, ir.Jdle, ir.Jdeq, ir.Jdne,
		ir.JiltI, ir.JigeI, ir.JigtI, ir.JileI, ir.JieqI, ir.JineI,
		ir.JultI, ir.JugeI, ir.JugtI, ir.JuleI:
		return true
	}
	return false
}

func (e *emitter) compareOrBranch(op *ir.Op) {
	in0 := e.in(op, 0)
	cc := condCode[op.Opcode]
	float := isFloatCompare(op.Opcode)
	switch {
	case float:
		in1 := e.in(op, 1)
		d, s := encBits(in0.Reg), encBits(in1.Reg)
		if in0.Type == ir.TF64 {
			e.asm.UcomisdRR(d, s)
		} else {
			e.asm.UcomissRR(d, s)
		}
	case isImmCompare(op.Opcode):
		e.asm.AluImm32(true, digCmp, encBits(in0.Reg), op.Imm32)
	default:
		in1 := e.in(op, 1)
		e.asm.AluRR(true, opCmp, encBits(in0.Reg), encBits(in1.Reg))
	}
	if isBranch(op.Opcode) {
		e.emitBranchCc(op, cc, float)
		return
	}
	e.emitSetccResult(op, cc, float)
}

// emitBranchCc emits the Jcc (and, for float compares, the PF guard
// that makes an unordered result take the "false" edge rather than
// falling through to whichever branch the raw condition code would
// otherwise pick).
func (e *emitter) emitBranchCc(op *ir.Op, cc byte, float bool) {
	thenLabel, elseLabel := op.Label[0], op.Label[1]
	if float {
		// An unordered comparison sets PF; route it to the else edge
		// before testing the real condition, matching IEEE 754 compare
		// semantics (every ordered relation is false against a NaN).
		poff := e.asm.JccRel32(CcP)
		e.recordPatch(elseLabel, poff)
	}
	off := e.asm.JccRel32(cc)
	e.recordPatch(thenLabel, off)
	e.branch(elseLabel)
}

func (e *emitter) emitSetccResult(op *ir.Op, cc byte, float bool) {
	dst := encBits(op.Reg)
	e.asm.SetccR(cc, dst)
	if float {
		// PF set (unordered) must force a false result for every
		// ordered predicate: clear what setcc wrote in that case.
		poff := e.asm.JccRel32(CcNp)
		e.asm.AluRR(false, opXor, dst, dst)
		e.asm.PatchRel32(poff, int32(e.asm.Pos()-(poff+4)))
	}
	// setcc writes only the low byte; zero-extend it into the register.
	e.asm.Movzx8(false, dst, dst)
}
