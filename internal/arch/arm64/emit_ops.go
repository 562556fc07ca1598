package arm64

import "github.com/oisee/bjit/internal/ir"

// This file lowers the arithmetic, compare/branch, conversion, and
// load/store opcode families, mirroring x64/emit_ops.go's shape:
// small opcode-keyed tables feeding a handful of emit functions rather
// than one switch case per opcode.

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
	case ir.Iadd:
		e.binRR(op, e.asm.AddRR)
	case ir.Isub:
		e.binRRNonComm(op, e.asm.SubRR)
	case ir.Iand:
		e.binRR(op, e.asm.AndRR)
	case ir.Ior:
		e.binRR(op, e.asm.OrrRR)
	case ir.Ixor:
		e.binRR(op, e.asm.EorRR)
	case ir.IaddI, ir.IsubI, ir.IandI, ir.IorI, ir.IxorI:
		e.binImm(op)
	case ir.Imul:
		e.binRR(op, e.asm.MulRR)
	case ir.ImulI:
		e.loadImm64(scratchGP, uint64(uint32(op.Imm32)))
		e.asm.MulRR(dst, encBits(e.in(op, 0).Reg), scratchGP)
	case ir.Idiv, ir.Imod, ir.Udiv, ir.Umod:
		e.divmod(op)
	case ir.Ishl, ir.Ishr, ir.Ushr:
		e.shiftRR(op)
	case ir.IshlI, ir.IshrI, ir.IushrI:
		e.shiftImm(op)
	case ir.Ineg:
		e.asm.NegR(dst, encBits(e.in(op, 0).Reg))
	case ir.Inot:
		e.asm.MvnR(dst, encBits(e.in(op, 0).Reg))
	case ir.Fadd, ir.Fsub, ir.Fmul, ir.Fdiv, ir.Dadd, ir.Dsub, ir.Dmul, ir.Ddiv:
		e.floatArith(op)
	case ir.Fneg, ir.Dneg, ir.Fabs, ir.Dabs:
		e.floatUnary(op)
	}
}

// binRR lowers a commutative two-register op; dst, in0 and in1's
// registers may all coincide so there's no need to move anything
// first the way x64's destructive ALU shape requires.
func (e *emitter) binRR(op *ir.Op, emit func(d, n, m byte)) {
	in0, in1 := e.in(op, 0), e.in(op, 1)
	emit(encBits(op.Reg), encBits(in0.Reg), encBits(in1.Reg))
}

func (e *emitter) binRRNonComm(op *ir.Op, emit func(d, n, m byte)) {
	in0, in1 := e.in(op, 0), e.in(op, 1)
	emit(encBits(op.Reg), encBits(in0.Reg), encBits(in1.Reg))
}

// binImm stages the 32-bit immediate through scratchGP, since AArch64
// data-processing immediates max out at 12 bits and this baseline
// emitter does not attempt the shifted-immediate or bitmask-immediate
// encodings that would cover more of the 32-bit space.
func (e *emitter) binImm(op *ir.Op) {
	in0 := e.in(op, 0)
	e.loadImm64(scratchGP, uint64(uint32(op.Imm32)))
	dst, n := encBits(op.Reg), encBits(in0.Reg)
	switch op.Opcode {
	case ir.IaddI:
		e.asm.AddRR(dst, n, scratchGP)
	case ir.IsubI:
		e.asm.SubRR(dst, n, scratchGP)
	case ir.IandI:
		e.asm.AndRR(dst, n, scratchGP)
	case ir.IorI:
		e.asm.OrrRR(dst, n, scratchGP)
	default: // IxorI
		e.asm.EorRR(dst, n, scratchGP)
	}
}

// divmod divides directly between the allocated registers (SDIV/UDIV
// need no fixed registers, unlike x64's RAX/RDX form); Imod/Umod put
// the quotient in scratchGP and recover the remainder with MSUB.
func (e *emitter) divmod(op *ir.Op) {
	in0, in1 := e.in(op, 0), e.in(op, 1)
	n0, n1 := encBits(in0.Reg), encBits(in1.Reg)
	dst := encBits(op.Reg)
	switch op.Opcode {
	case ir.Idiv:
		e.asm.SdivRR(dst, n0, n1)
	case ir.Udiv:
		e.asm.UdivRR(dst, n0, n1)
	case ir.Imod:
		e.asm.SdivRR(scratchGP, n0, n1)
		e.asm.MsubRR(dst, scratchGP, n1, n0)
	default: // Umod
		e.asm.UdivRR(scratchGP, n0, n1)
		e.asm.MsubRR(dst, scratchGP, n1, n0)
	}
}

func (e *emitter) shiftRR(op *ir.Op) {
	in0, in1 := e.in(op, 0), e.in(op, 1)
	dst, n, m := encBits(op.Reg), encBits(in0.Reg), encBits(in1.Reg)
	switch op.Opcode {
	case ir.Ishl:
		e.asm.LslvRR(dst, n, m)
	case ir.Ishr:
		e.asm.AsrvRR(dst, n, m)
	default:
		e.asm.LsrvRR(dst, n, m)
	}
}

// shiftImm stages the shift count through scratchGP via the register
// shift form; AArch64 has a dedicated immediate-shift (UBFM/SBFM)
// encoding this baseline emitter doesn't implement separately.
func (e *emitter) shiftImm(op *ir.Op) {
	in0 := e.in(op, 0)
	e.loadImm64(scratchGP, uint64(op.Imm32))
	dst, n := encBits(op.Reg), encBits(in0.Reg)
	switch op.Opcode {
	case ir.IshlI:
		e.asm.LslvRR(dst, n, scratchGP)
	case ir.IshrI:
		e.asm.AsrvRR(dst, n, scratchGP)
	default:
		e.asm.LsrvRR(dst, n, scratchGP)
	}
}

func (e *emitter) floatArith(op *ir.Op) {
	in0, in1 := e.in(op, 0), e.in(op, 1)
	d, n, m := encBits(op.Reg), encBits(in0.Reg), encBits(in1.Reg)
	double := op.Type == ir.TF64
	switch op.Opcode {
	case ir.Fadd, ir.Dadd:
		if double {
			e.asm.FaddD(d, n, m)
		} else {
			e.asm.FaddS(d, n, m)
		}
	case ir.Fsub, ir.Dsub:
		if double {
			e.asm.FsubD(d, n, m)
		} else {
			e.asm.FsubS(d, n, m)
		}
	case ir.Fmul, ir.Dmul:
		if double {
			e.asm.FmulD(d, n, m)
		} else {
			e.asm.FmulS(d, n, m)
		}
	default:
		if double {
			e.asm.FdivD(d, n, m)
		} else {
			e.asm.FdivS(d, n, m)
		}
	}
}

// floatUnary implements negate/abs via a sign-bit EOR/AND against a
// constant-pool mask, the NEON-register counterpart of x64's
// XORPS/ANDPS idiom.
func (e *emitter) floatUnary(op *ir.Op) {
	in0 := e.in(op, 0)
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
	e.loadPoolEntry(double, scratchV, idx)
	d, n := encBits(op.Reg), encBits(in0.Reg)
	switch op.Opcode {
	case ir.Fneg, ir.Dneg:
		e.asm.EorVV(d, n, scratchV)
	default:
		e.asm.AndVV(d, n, scratchV)
	}
}

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
		e.asm.ScvtfXS(d, s)
	case ir.Ci2d:
		e.asm.ScvtfXD(d, s)
	case ir.Bci2d:
		e.asm.FmovDX(d, s)
	case ir.Bci2f:
		e.asm.FmovSW(d, s)
	case ir.Cf2i:
		e.asm.FcvtzsSX(d, s)
	case ir.Bcf2i:
		e.asm.FmovWS(d, s)
	case ir.Cd2i:
		e.asm.FcvtzsDX(d, s)
	case ir.Bcd2i:
		e.asm.FmovXD(d, s)
	case ir.Cf2d:
		e.asm.FcvtDS(d, s)
	case ir.Cd2f:
		e.asm.FcvtSD(d, s)
	case ir.I8:
		e.asm.SxtbX(d, s)
	case ir.I16:
		e.asm.SxthX(d, s)
	case ir.I32:
		e.asm.SxtwX(d, s)
	case ir.U8:
		e.asm.UxtbW(d, s)
	case ir.U16:
		e.asm.UxthW(d, s)
	case ir.U32:
		e.asm.word(0x2A0003E0 | u5(s)<<16 | u5(d)) // ORR Wd, WZR, Wm: writing the W view zeroes the upper 32 bits
	}
}

var loadOp = map[ir.Opcode]func(a *Asm, t, n byte, imm12 uint32){
	(ir.Li8):  (*Asm).LdrsbX,
	(ir.Li16): (*Asm).LdrshX,
	(ir.Li32): (*Asm).LdrswX,
	(ir.Li64): (*Asm).LdrX,
	(ir.Lu8):  (*Asm).LdrbW,
	(ir.Lu16): (*Asm).LdrhW,
	(ir.Lu32): (*Asm).LdrW,
}

var storeOp = map[ir.Opcode]func(a *Asm, t, n byte, imm12 uint32){
	ir.Si8:  (*Asm).StrbW,
	ir.Si16: (*Asm).StrhW,
	ir.Si32: (*Asm).StrW,
	ir.Si64: (*Asm).StrX,
}

var loadOpReg = map[ir.Opcode]func(a *Asm, t, n, m byte){
	ir.L2i8:  (*Asm).LdrsbXReg,
	ir.L2i16: (*Asm).LdrshXReg,
	ir.L2i32: (*Asm).LdrswXReg,
	ir.L2i64: (*Asm).LdrXReg,
	ir.L2u8:  (*Asm).LdrbWReg,
	ir.L2u16: (*Asm).LdrhWReg,
	ir.L2u32: (*Asm).LdrWReg,
}

var storeOpReg = map[ir.Opcode]func(a *Asm, t, n, m byte){
	ir.S2i8:  (*Asm).StrbWReg,
	ir.S2i16: (*Asm).StrhWReg,
	ir.S2i32: (*Asm).StrWReg,
	ir.S2i64: (*Asm).StrXReg,
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

// scaleFor returns the byte-width divisor each load/store family's
// unsigned-immediate field is scaled by, so op.Imm32 (a byte offset)
// becomes the instruction's element-count immediate.
func scaleFor(op ir.Opcode) uint32 {
	switch op {
	case ir.Li16, ir.Lu16, ir.Si16:
		return 2
	case ir.Li32, ir.Lu32, ir.Si32, ir.Lf32:
		return 4
	case ir.Li64, ir.Si64, ir.Lf64:
		return 8
	default:
		return 1
	}
}

func (e *emitter) load(op *ir.Op) {
	ptr := e.in(op, 0)
	d := encBits(op.Reg)
	base := encBits(ptr.Reg)
	switch op.Opcode {
	case ir.Lf32:
		e.asm.LdrS(d, base, uint32(op.Imm32)/scaleFor(op.Opcode))
		return
	case ir.Lf64:
		e.asm.LdrD(d, base, uint32(op.Imm32)/scaleFor(op.Opcode))
		return
	}
	if fn, ok := loadOp[op.Opcode]; ok {
		fn(e.asm, d, base, uint32(op.Imm32)/scaleFor(op.Opcode))
		return
	}
	idx := e.in(op, 1)
	m := encBits(idx.Reg)
	switch op.Opcode {
	case ir.L2f32:
		e.asm.LdrSReg(d, base, m)
	case ir.L2f64:
		e.asm.LdrDReg(d, base, m)
	default:
		loadOpReg[op.Opcode](e.asm, d, base, m)
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
		e.asm.StrS(s, base, uint32(op.Imm32)/4)
	case ir.Sf64:
		e.asm.StrD(s, base, uint32(op.Imm32)/8)
	default:
		storeOp[op.Opcode](e.asm, s, base, uint32(op.Imm32)/scaleFor(op.Opcode))
	}
}

func (e *emitter) storeIndexed(op *ir.Op) {
	ptr := e.in(op, 0)
	idx := e.in(op, 1)
	val := e.p.Op(op.Label[0])
	base, index, s := encBits(ptr.Reg), encBits(idx.Reg), encBits(val.Reg)
	switch op.Opcode {
	case ir.S2f32:
		e.asm.StrSReg(s, base, index)
	case ir.S2f64:
		e.asm.StrDReg(s, base, index)
	default:
		storeOpReg[op.Opcode](e.asm, s, base, index)
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

// condCode maps a compare/branch opcode to its AArch64 condition code.
var condCode = map[ir.Opcode]byte{
	ir.Jilt: CcLt, ir.Jige: CcGe, ir.Jigt: CcGt, ir.Jile: CcLe, ir.Jieq: CcEq, ir.Jine: CcNe,
	ir.Jult: CcCc, ir.Juge: CcCs, ir.Jugt: CcHi, ir.Jule: CcLs,
	ir.Jflt: CcCc, ir.Jfge: CcCs, ir.Jfgt: CcHi, ir.Jfle: CcLs, ir.Jfeq: CcEq, ir.Jfne: CcNe,
	ir.Jdlt: CcCc, ir.Jdge: CcCs, ir.Jdgt: CcHi, ir.Jdle: CcLs, ir.Jdeq: CcEq, ir.Jdne: CcNe,
	ir.Cilt: CcLt, ir.Cige: CcGe, ir.Cigt: CcGt, ir.Cile: CcLe, ir.Cieq: CcEq, ir.Cine: CcNe,
	ir.Cult: CcCc, ir.Cuge: CcCs, ir.Cugt: CcHi, ir.Cule: CcLs,
	ir.Cflt: CcCc, ir.Cfge: CcCs, ir.Cfgt: CcHi, ir.Cfle: CcLs, ir.Cfeq: CcEq, ir.Cfne: CcNe,
	ir.Cdlt: CcCc, ir.Cdge: CcCs, ir.Cdgt: CcHi, ir.Cdle: CcLs, ir.Cdeq: CcEq, ir.Cdne: CcNe,
	ir.JiltI: CcLt, ir.JigeI: CcGe, ir.JigtI: CcGt, ir.JileI: CcLe, ir.JieqI: CcEq, ir.JineI: CcNe,
	ir.JultI: CcCc, ir.JugeI: CcCs, ir.JugtI: CcHi, ir.JuleI: CcLs,
	ir.CiltI: CcLt, ir.CigeI: CcGe, ir.CigtI: CcGt, ir.CileI: CcLe, ir.CieqI: CcEq, ir.CineI: CcNe,
	ir.CultI: CcCc, ir.CugeI: CcCs, ir.CugtI: CcHi, ir.CuleI: CcLs,
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
		n, m := encBits(in0.Reg), encBits(in1.Reg)
		if in0.Type == ir.TF64 {
			e.asm.FcmpD(n, m)
		} else {
			e.asm.FcmpS(n, m)
		}
	case isImmCompare(op.Opcode):
		e.loadImm64(scratchGP, uint64(uint32(op.Imm32)))
		e.asm.CmpRR(encBits(in0.Reg), scratchGP)
	default:
		in1 := e.in(op, 1)
		e.asm.CmpRR(encBits(in0.Reg), encBits(in1.Reg))
	}
	if isBranch(op.Opcode) {
		e.emitBranchCc(op, cc, float)
		return
	}
	e.emitSetccResult(op, cc, float)
}

// emitBranchCc emits B.cond (and, for float compares, the VS guard
// routing an unordered result to the else edge, AArch64's counterpart
// of x64's PF check).
func (e *emitter) emitBranchCc(op *ir.Op, cc byte, float bool) {
	thenLabel, elseLabel := op.Label[0], op.Label[1]
	if float {
		voff := e.asm.BCond(CcVs)
		e.recordPatch(elseLabel, voff)
	}
	off := e.asm.BCond(cc)
	e.recordPatch(thenLabel, off)
	e.branch(elseLabel)
}

func (e *emitter) emitSetccResult(op *ir.Op, cc byte, float bool) {
	d := encBits(op.Reg)
	e.asm.CsetR(d, cc)
	if float {
		// An unordered comparison (VS set) must force a false result
		// for every ordered predicate; clear d when VS is set instead
		// of trusting the FP condition flags CSET already read.
		skip := e.asm.BCond(invert(CcVs))
		e.loadImm64(d, 0)
		e.asm.PatchImm19At5(skip, int32(e.asm.Pos()-skip))
	}
}
