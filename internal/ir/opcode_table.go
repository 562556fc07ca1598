package ir

// OpInfo holds the static, opcode-indexed properties that drive the
// optimizer and register allocator: how many operands an op of this
// opcode carries, whether it has an immediate or 64-bit payload, and
// whether it may be hoisted, sunk, or commoned. This mirrors a
// per-opcode property-table idiom (static descriptors keyed by
// opcode, the same shape as the original implementation's ir-ops.cpp
// property array): rather than a class hierarchy per opcode, a single
// tagged Op record is interpreted through this table.
type OpInfo struct {
	Name       string
	NIn        int  // number of input operands (0-3)
	HasImm32   bool // carries a 32-bit signed immediate
	Has64      bool // carries a 64-bit integer/double payload
	CSEable    bool // participates in common subexpression elimination
	SideEffect bool // must not be deleted/reordered across other side effects
	Movable    bool // may be sunk/hoisted when otherwise dead-eligible
	FreeOutput bool // output register is unconstrained by the ISA
	IsJump     bool // terminator that transfers control
	IsCompare  bool // produces a 0/1 integer result
	Commutes   bool // operand order does not affect the result
	IsCall     bool // crosses a call boundary; clobbers the call-clobbered set
}

// OpTable maps each Opcode to its OpInfo. Populated once in init().
var OpTable [opcodeCount]OpInfo

func reg(op Opcode, info OpInfo) {
	info.Name = op.String()
	OpTable[op] = info
}

func init() {
	reg(Nop, OpInfo{NIn: 0, Movable: false})
	reg(Alloc, OpInfo{NIn: 0, HasImm32: true, SideEffect: true, FreeOutput: true})
	reg(Fence, OpInfo{NIn: 0, SideEffect: true})
	reg(Phi, OpInfo{NIn: 0, FreeOutput: true})
	reg(Rename, OpInfo{NIn: 1, FreeOutput: true})
	reg(Reload, OpInfo{NIn: 0, FreeOutput: true})

	reg(Lci, OpInfo{NIn: 0, Has64: true, CSEable: true, Movable: true, FreeOutput: true})
	reg(Lcf, OpInfo{NIn: 0, Has64: true, CSEable: true, Movable: true, FreeOutput: true})
	reg(Lcd, OpInfo{NIn: 0, Has64: true, CSEable: true, Movable: true, FreeOutput: true})
	reg(Lnp, OpInfo{NIn: 0, HasImm32: true, CSEable: true, Movable: true, FreeOutput: true})

	reg(Iarg, OpInfo{NIn: 0, FreeOutput: false})
	reg(Farg, OpInfo{NIn: 0, FreeOutput: false})
	reg(Darg, OpInfo{NIn: 0, FreeOutput: false})

	reg(Ipass, OpInfo{NIn: 1, SideEffect: true})
	reg(Fpass, OpInfo{NIn: 1, SideEffect: true})
	reg(Dpass, OpInfo{NIn: 1, SideEffect: true})
	reg(Icallp, OpInfo{NIn: 1, SideEffect: true, IsCall: true, FreeOutput: true})
	reg(Icalln, OpInfo{NIn: 0, HasImm32: true, SideEffect: true, IsCall: true, FreeOutput: true})
	reg(Fcallp, OpInfo{NIn: 1, SideEffect: true, IsCall: true, FreeOutput: true})
	reg(Fcalln, OpInfo{NIn: 0, HasImm32: true, SideEffect: true, IsCall: true, FreeOutput: true})
	reg(Dcallp, OpInfo{NIn: 1, SideEffect: true, IsCall: true, FreeOutput: true})
	reg(Dcalln, OpInfo{NIn: 0, HasImm32: true, SideEffect: true, IsCall: true, FreeOutput: true})

	reg(Iret, OpInfo{NIn: 1, SideEffect: true, IsJump: true})
	reg(Fret, OpInfo{NIn: 1, SideEffect: true, IsJump: true})
	reg(Dret, OpInfo{NIn: 1, SideEffect: true, IsJump: true})
	reg(IretI, OpInfo{NIn: 0, HasImm32: true, SideEffect: true, IsJump: true})
	reg(Tcallp, OpInfo{NIn: 1, SideEffect: true, IsJump: true, IsCall: true})
	reg(Tcalln, OpInfo{NIn: 0, HasImm32: true, SideEffect: true, IsJump: true, IsCall: true})

	reg(Jmp, OpInfo{NIn: 0, SideEffect: true, IsJump: true})
	for _, op := range []Opcode{Jz, Jnz} {
		reg(op, OpInfo{NIn: 1, SideEffect: true, IsJump: true})
	}
	for _, op := range []Opcode{JzI, JnzI} {
		reg(op, OpInfo{NIn: 0, HasImm32: true, SideEffect: true, IsJump: true})
	}
	for _, op := range []Opcode{
		Jilt, Jige, Jigt, Jile, Jieq, Jine,
		Jult, Juge, Jugt, Jule,
		Jflt, Jfge, Jfgt, Jfle, Jfeq, Jfne,
		Jdlt, Jdge, Jdgt, Jdle, Jdeq, Jdne,
	} {
		reg(op, OpInfo{NIn: 2, SideEffect: true, IsJump: true})
	}
	for _, op := range []Opcode{
		JiltI, JigeI, JigtI, JileI, JieqI, JineI,
		JultI, JugeI, JugtI, JuleI,
	} {
		reg(op, OpInfo{NIn: 1, HasImm32: true, SideEffect: true, IsJump: true})
	}

	cmpInfo := OpInfo{NIn: 2, CSEable: true, Movable: true, IsCompare: true}
	for _, op := range []Opcode{
		Cilt, Cige, Cigt, Cile, Cieq, Cine,
		Cult, Cuge, Cugt, Cule,
		Cflt, Cfge, Cfgt, Cfle, Cfeq, Cfne,
		Cdlt, Cdge, Cdgt, Cdle, Cdeq, Cdne,
	} {
		reg(op, cmpInfo)
	}
	cmpImmInfo := OpInfo{NIn: 1, HasImm32: true, CSEable: true, Movable: true, IsCompare: true}
	for _, op := range []Opcode{
		CiltI, CigeI, CigtI, CileI, CieqI, CineI,
		CultI, CugeI, CugtI, CuleI,
	} {
		reg(op, cmpImmInfo)
	}

	binArith := OpInfo{NIn: 2, CSEable: true, Movable: true}
	reg(Iadd, binArith.commute())
	reg(Isub, binArith)
	reg(Ineg, OpInfo{NIn: 1, CSEable: true, Movable: true})
	reg(Imul, binArith.commute())
	reg(Idiv, OpInfo{NIn: 2, SideEffect: true})
	reg(Imod, OpInfo{NIn: 2, SideEffect: true})
	reg(Udiv, OpInfo{NIn: 2, SideEffect: true})
	reg(Umod, OpInfo{NIn: 2, SideEffect: true})
	immArith := OpInfo{NIn: 1, HasImm32: true, CSEable: true, Movable: true}
	reg(IaddI, immArith)
	reg(IsubI, immArith)
	reg(ImulI, immArith)

	reg(Inot, OpInfo{NIn: 1, CSEable: true, Movable: true})
	reg(Iand, binArith.commute())
	reg(Ior, binArith.commute())
	reg(Ixor, binArith.commute())
	reg(Ishl, OpInfo{NIn: 2, CSEable: true, Movable: true})
	reg(Ishr, OpInfo{NIn: 2, CSEable: true, Movable: true})
	reg(Ushr, OpInfo{NIn: 2, CSEable: true, Movable: true})
	reg(IandI, immArith)
	reg(IorI, immArith)
	reg(IxorI, immArith)
	reg(IshlI, immArith)
	reg(IshrI, immArith)
	reg(IushrI, immArith)

	fArith := OpInfo{NIn: 2, CSEable: true, Movable: true}
	reg(Fadd, fArith.commute())
	reg(Fsub, fArith)
	reg(Fneg, OpInfo{NIn: 1, CSEable: true, Movable: true})
	reg(Fabs, OpInfo{NIn: 1, CSEable: true, Movable: true})
	reg(Fmul, fArith.commute())
	reg(Fdiv, fArith)
	reg(Dadd, fArith.commute())
	reg(Dsub, fArith)
	reg(Dneg, OpInfo{NIn: 1, CSEable: true, Movable: true})
	reg(Dabs, OpInfo{NIn: 1, CSEable: true, Movable: true})
	reg(Dmul, fArith.commute())
	reg(Ddiv, fArith)

	conv := OpInfo{NIn: 1, CSEable: true, Movable: true}
	for _, op := range []Opcode{Ci2d, Cd2i, Ci2f, Cf2i, Cf2d, Cd2f, Bci2d, Bcd2i, Bci2f, Bcf2i, I8, I16, I32, U8, U16, U32} {
		reg(op, conv)
	}

	load := OpInfo{NIn: 1, HasImm32: true, CSEable: true, Movable: true}
	for _, op := range []Opcode{Li8, Li16, Li32, Li64, Lu8, Lu16, Lu32, Lf32, Lf64} {
		reg(op, load)
	}
	store := OpInfo{NIn: 2, HasImm32: true, SideEffect: true}
	for _, op := range []Opcode{Si8, Si16, Si32, Si64, Sf32, Sf64} {
		reg(op, store)
	}
	load2 := OpInfo{NIn: 2, CSEable: true, Movable: true}
	for _, op := range []Opcode{L2i8, L2i16, L2i32, L2i64, L2u8, L2u16, L2u32, L2f32, L2f64} {
		reg(op, load2)
	}
	store2 := OpInfo{NIn: 3, SideEffect: true}
	for _, op := range []Opcode{S2i8, S2i16, S2i32, S2i64, S2f32, S2f64} {
		reg(op, store2)
	}
}

func (o OpInfo) commute() OpInfo {
	o.Commutes = true
	return o
}

// Info returns the static properties for opcode op.
func Info(op Opcode) OpInfo { return OpTable[op] }
