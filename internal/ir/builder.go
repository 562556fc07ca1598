package ir

// Label is a forward or backward jump target. NewLabel eagerly appends
// a phi per environment slot to the label's block (spec §4.1: "this
// guarantees (I6) without a separate seal step"); every Jmp/branch
// that targets the label records the current environment as that
// phi's alternative for the jumping block.
type Label struct {
	Block *Block
}

// Builder is the IR construction front-end interface of spec §4.1. It
// is the only thing that creates Ops; every value is typed at
// construction and a mixed-type binary op panics immediately rather
// than inserting an implicit conversion.
type Builder struct {
	P *Procedure

	SlotTypes []Type

	iArgN, fArgN, dArgN uint8
	argPos              uint8

	iPassN, fPassN, dPassN uint8
	passPos                uint8
}

// callKind is the type-class family a call/pass belongs to.
type callKind int

const (
	kindInt callKind = iota
	kindF32
	kindF64
)

// NewBuilder starts a procedure named name with incoming arguments
// described by argTypes ('i'=int, 'f'=f32, 'd'=f64), frameBytes of
// scratch reserved by the mandatory leading Alloc (spec §4.1: "alloc(n)
// must be the first op of block 0"), and one additional environment
// slot per entry of extraSlots, of that entry's type, for locals the
// front-end needs beyond the arguments (e.g. an induction variable).
func NewBuilder(name, argTypes string, frameBytes int32, extraSlots []Type) *Builder {
	p := NewProcedure(name, argTypes)
	b := &Builder{P: p}

	allocID, err := p.Arena.New(Alloc)
	if err != nil {
		panic(err)
	}
	ao := p.Op(allocID)
	ao.Imm32 = frameBytes
	ao.Type = TInt
	p.Blocks[0].AddOp(allocID)

	b.SlotTypes = append(b.SlotTypes, TInt)
	p.Env = append(p.Env, allocID)

	for _, r := range argTypes {
		var opc Opcode
		var typ Type
		switch r {
		case 'i':
			opc, typ = Iarg, TInt
		case 'f':
			opc, typ = Farg, TF32
		case 'd':
			opc, typ = Darg, TF64
		default:
			panic("bjit/ir: bad arg type tag " + string(r))
		}
		id, err := p.Arena.New(opc)
		if err != nil {
			panic(err)
		}
		op := p.Op(id)
		op.Type = typ
		switch typ {
		case TInt:
			op.ArgIndex = b.iArgN
			b.iArgN++
		case TF32:
			op.ArgIndex = b.fArgN
			b.fArgN++
		case TF64:
			op.ArgIndex = b.dArgN
			b.dArgN++
		}
		op.ArgPos = b.argPos
		b.argPos++
		p.Blocks[0].AddOp(id)
		b.SlotTypes = append(b.SlotTypes, typ)
		p.Env = append(p.Env, id)
	}

	for _, t := range extraSlots {
		b.SlotTypes = append(b.SlotTypes, t)
		p.Env = append(p.Env, NoOp)
	}

	return b
}

// FrameBase returns the op holding the Alloc-reserved scratch base
// (environment slot 0).
func (b *Builder) FrameBase() OpID { return b.P.Env[0] }

// Arg returns the op for incoming argument i (environment slot i+1).
func (b *Builder) Arg(i int) OpID { return b.P.Env[i+1] }

// GetSlot reads the current value of environment slot i.
func (b *Builder) GetSlot(i int) OpID { return b.P.Env[i] }

// SetSlot stores v into environment slot i, type-checked against the
// slot's declared type.
func (b *Builder) SetSlot(i int, v OpID) {
	if b.P.Op(v).Type != b.SlotTypes[i] {
		panic("bjit/ir: slot type mismatch")
	}
	b.P.Env[i] = v
}

func (b *Builder) must(id OpID, err error) OpID {
	if err != nil {
		panic(err)
	}
	return id
}

func (b *Builder) emit(opc Opcode, typ Type) *Op {
	id, err := b.P.Arena.New(opc)
	if err != nil {
		panic(err)
	}
	op := b.P.Op(id)
	op.Type = typ
	op.Block = b.P.Cur
	b.P.CurBlock().AddOp(id)
	return op
}

func (b *Builder) typeOf(id OpID) Type { return b.P.Op(id).Type }

func (b *Builder) checkBin(x, y OpID) Type {
	tx, ty := b.typeOf(x), b.typeOf(y)
	if tx != ty {
		panic("bjit/ir: mixed-type binary operation")
	}
	return tx
}

// pick selects the integer/float/double variant of a
// family of opcodes keyed by Type.
func pick(t Type, i, f, d Opcode) Opcode {
	switch t {
	case TInt:
		return i
	case TF32:
		return f
	case TF64:
		return d
	default:
		panic("bjit/ir: operand has no type")
	}
}

// --- arithmetic ---

func (b *Builder) binArith(opc Opcode, x, y OpID) OpID {
	t := b.checkBin(x, y)
	op := b.emit(opc, t)
	op.In[0], op.In[1] = x, y
	return op.Index
}

func (b *Builder) Iadd(x, y OpID) OpID { return b.binArith(Iadd, x, y) }
func (b *Builder) Isub(x, y OpID) OpID { return b.binArith(Isub, x, y) }
func (b *Builder) Imul(x, y OpID) OpID { return b.binArith(Imul, x, y) }
func (b *Builder) Idiv(x, y OpID) OpID { return b.binArith(Idiv, x, y) }
func (b *Builder) Imod(x, y OpID) OpID { return b.binArith(Imod, x, y) }
func (b *Builder) Udiv(x, y OpID) OpID { return b.binArith(Udiv, x, y) }
func (b *Builder) Umod(x, y OpID) OpID { return b.binArith(Umod, x, y) }
func (b *Builder) Iand(x, y OpID) OpID { return b.binArith(Iand, x, y) }
func (b *Builder) Ior(x, y OpID) OpID  { return b.binArith(Ior, x, y) }
func (b *Builder) Ixor(x, y OpID) OpID { return b.binArith(Ixor, x, y) }
func (b *Builder) Ishl(x, y OpID) OpID { return b.binArith(Ishl, x, y) }
func (b *Builder) Ishr(x, y OpID) OpID { return b.binArith(Ishr, x, y) }
func (b *Builder) Ushr(x, y OpID) OpID { return b.binArith(Ushr, x, y) }

func (b *Builder) Fadd(x, y OpID) OpID { return b.binArith(Fadd, x, y) }
func (b *Builder) Fsub(x, y OpID) OpID { return b.binArith(Fsub, x, y) }
func (b *Builder) Fmul(x, y OpID) OpID { return b.binArith(Fmul, x, y) }
func (b *Builder) Fdiv(x, y OpID) OpID { return b.binArith(Fdiv, x, y) }
func (b *Builder) Dadd(x, y OpID) OpID { return b.binArith(Dadd, x, y) }
func (b *Builder) Dsub(x, y OpID) OpID { return b.binArith(Dsub, x, y) }
func (b *Builder) Dmul(x, y OpID) OpID { return b.binArith(Dmul, x, y) }
func (b *Builder) Ddiv(x, y OpID) OpID { return b.binArith(Ddiv, x, y) }

func (b *Builder) unary(opc Opcode, x OpID) OpID {
	op := b.emit(opc, b.typeOf(x))
	op.In[0] = x
	return op.Index
}

func (b *Builder) Ineg(x OpID) OpID { return b.unary(Ineg, x) }
func (b *Builder) Inot(x OpID) OpID { return b.unary(Inot, x) }
func (b *Builder) Fneg(x OpID) OpID { return b.unary(Fneg, x) }
func (b *Builder) Fabs(x OpID) OpID { return b.unary(Fabs, x) }
func (b *Builder) Dneg(x OpID) OpID { return b.unary(Dneg, x) }
func (b *Builder) Dabs(x OpID) OpID { return b.unary(Dabs, x) }

// --- conversions / bit-casts / extensions ---

func (b *Builder) conv(opc Opcode, x OpID, out Type) OpID {
	op := b.emit(opc, out)
	op.In[0] = x
	return op.Index
}

func (b *Builder) Ci2d(x OpID) OpID  { return b.conv(Ci2d, x, TF64) }
func (b *Builder) Cd2i(x OpID) OpID  { return b.conv(Cd2i, x, TInt) }
func (b *Builder) Ci2f(x OpID) OpID  { return b.conv(Ci2f, x, TF32) }
func (b *Builder) Cf2i(x OpID) OpID  { return b.conv(Cf2i, x, TInt) }
func (b *Builder) Cf2d(x OpID) OpID  { return b.conv(Cf2d, x, TF64) }
func (b *Builder) Cd2f(x OpID) OpID  { return b.conv(Cd2f, x, TF32) }
func (b *Builder) Bci2d(x OpID) OpID { return b.conv(Bci2d, x, TF64) }
func (b *Builder) Bcd2i(x OpID) OpID { return b.conv(Bcd2i, x, TInt) }
func (b *Builder) Bci2f(x OpID) OpID { return b.conv(Bci2f, x, TF32) }
func (b *Builder) Bcf2i(x OpID) OpID { return b.conv(Bcf2i, x, TInt) }

func (b *Builder) I8(x OpID) OpID  { return b.conv(I8, x, TInt) }
func (b *Builder) I16(x OpID) OpID { return b.conv(I16, x, TInt) }
func (b *Builder) I32(x OpID) OpID { return b.conv(I32, x, TInt) }
func (b *Builder) U8(x OpID) OpID  { return b.conv(U8, x, TInt) }
func (b *Builder) U16(x OpID) OpID { return b.conv(U16, x, TInt) }
func (b *Builder) U32(x OpID) OpID { return b.conv(U32, x, TInt) }

// --- constants ---

func (b *Builder) Lci(v int64) OpID {
	op := b.emit(Lci, TInt)
	op.Imm64 = uint64(v)
	return op.Index
}

func (b *Builder) Lcf(v float32) OpID {
	op := b.emit(Lcf, TF32)
	op.Imm64 = uint64(f32bits(v))
	return op.Index
}

func (b *Builder) Lcd(v float64) OpID {
	op := b.emit(Lcd, TF64)
	op.Imm64 = f64bits(v)
	return op.Index
}

// Lnp materializes the address of procedure procIdx within the
// enclosing module (spec §6 "Constants: lnp").
func (b *Builder) Lnp(procIdx int32) OpID {
	op := b.emit(Lnp, TInt)
	op.Imm32 = procIdx
	return op.Index
}

// --- memory: ptr + offset16 ---

func (b *Builder) load(opc Opcode, ptr OpID, offset int16, typ Type) OpID {
	op := b.emit(opc, typ)
	op.In[0] = ptr
	op.Imm32 = int32(offset)
	return op.Index
}

func (b *Builder) Li8(ptr OpID, off int16) OpID  { return b.load(Li8, ptr, off, TInt) }
func (b *Builder) Li16(ptr OpID, off int16) OpID { return b.load(Li16, ptr, off, TInt) }
func (b *Builder) Li32(ptr OpID, off int16) OpID { return b.load(Li32, ptr, off, TInt) }
func (b *Builder) Li64(ptr OpID, off int16) OpID { return b.load(Li64, ptr, off, TInt) }
func (b *Builder) Lu8(ptr OpID, off int16) OpID  { return b.load(Lu8, ptr, off, TInt) }
func (b *Builder) Lu16(ptr OpID, off int16) OpID { return b.load(Lu16, ptr, off, TInt) }
func (b *Builder) Lu32(ptr OpID, off int16) OpID { return b.load(Lu32, ptr, off, TInt) }
func (b *Builder) Lf32(ptr OpID, off int16) OpID { return b.load(Lf32, ptr, off, TF32) }
func (b *Builder) Lf64(ptr OpID, off int16) OpID { return b.load(Lf64, ptr, off, TF64) }

func (b *Builder) store(opc Opcode, ptr OpID, offset int16, v OpID) {
	op := b.emit(opc, TNone)
	op.In[0] = ptr
	op.In[1] = v
	op.Imm32 = int32(offset)
}

func (b *Builder) Si8(ptr OpID, off int16, v OpID)  { b.store(Si8, ptr, off, v) }
func (b *Builder) Si16(ptr OpID, off int16, v OpID) { b.store(Si16, ptr, off, v) }
func (b *Builder) Si32(ptr OpID, off int16, v OpID) { b.store(Si32, ptr, off, v) }
func (b *Builder) Si64(ptr OpID, off int16, v OpID) { b.store(Si64, ptr, off, v) }
func (b *Builder) Sf32(ptr OpID, off int16, v OpID) { b.store(Sf32, ptr, off, v) }
func (b *Builder) Sf64(ptr OpID, off int16, v OpID) { b.store(Sf64, ptr, off, v) }

// --- memory: two-register-indexed ---

func (b *Builder) load2(opc Opcode, ptr, idx OpID, typ Type) OpID {
	op := b.emit(opc, typ)
	op.In[0], op.In[1] = ptr, idx
	return op.Index
}

func (b *Builder) L2i8(ptr, idx OpID) OpID  { return b.load2(L2i8, ptr, idx, TInt) }
func (b *Builder) L2i32(ptr, idx OpID) OpID { return b.load2(L2i32, ptr, idx, TInt) }
func (b *Builder) L2f64(ptr, idx OpID) OpID { return b.load2(L2f64, ptr, idx, TF64) }

func (b *Builder) S2i8(ptr, idx, v OpID)  { b.store2(S2i8, ptr, idx, v) }
func (b *Builder) S2i32(ptr, idx, v OpID) { b.store2(S2i32, ptr, idx, v) }
func (b *Builder) S2f64(ptr, idx, v OpID) { b.store2(S2f64, ptr, idx, v) }

// store2 emits a three-operand (ptr, idx, value) indexed store. Op's
// In array only holds two operands; the third rides in Label[0], which
// is otherwise unused on a non-jump op (spec §3: the output payload is
// "unioned with two label ids for jumps" — the reverse holds too, a
// non-jump op is free to reuse the label slots as extra operands).
func (b *Builder) store2(opc Opcode, ptr, idx, v OpID) {
	op := b.emit(opc, TNone)
	op.In[0], op.In[1] = ptr, idx
	op.Label[0] = v
}

// --- compares ---

func (b *Builder) cmp(i, f, d Opcode, x, y OpID) OpID {
	t := b.checkBin(x, y)
	opc := pick(t, i, f, d)
	op := b.emit(opc, TInt)
	op.In[0], op.In[1] = x, y
	return op.Index
}

func (b *Builder) Cilt(x, y OpID) OpID { return b.cmp(Cilt, Cflt, Cdlt, x, y) }
func (b *Builder) Cige(x, y OpID) OpID { return b.cmp(Cige, Cfge, Cdge, x, y) }
func (b *Builder) Cigt(x, y OpID) OpID { return b.cmp(Cigt, Cfgt, Cdgt, x, y) }
func (b *Builder) Cile(x, y OpID) OpID { return b.cmp(Cile, Cfle, Cdle, x, y) }
func (b *Builder) Cieq(x, y OpID) OpID { return b.cmp(Cieq, Cfeq, Cdeq, x, y) }
func (b *Builder) Cine(x, y OpID) OpID { return b.cmp(Cine, Cfne, Cdne, x, y) }

// Cult, Cuge, Cugt, Cule are the unsigned-integer comparisons; there is
// no float/double unsigned variant, so these take plain Opcodes rather
// than going through cmp's type-dispatch.
func (b *Builder) unsignedCmp(opc Opcode, x, y OpID) OpID {
	if b.typeOf(x) != TInt || b.typeOf(y) != TInt {
		panic("bjit/ir: unsigned compare requires integer operands")
	}
	op := b.emit(opc, TInt)
	op.In[0], op.In[1] = x, y
	return op.Index
}

func (b *Builder) Cult(x, y OpID) OpID { return b.unsignedCmp(Cult, x, y) }
func (b *Builder) Cuge(x, y OpID) OpID { return b.unsignedCmp(Cuge, x, y) }
func (b *Builder) Cugt(x, y OpID) OpID { return b.unsignedCmp(Cugt, x, y) }
func (b *Builder) Cule(x, y OpID) OpID { return b.unsignedCmp(Cule, x, y) }

// --- control flow ---

// NewLabel creates a fresh block and eagerly appends one phi per
// environment slot (spec §4.1). The label is not yet "placed"; code
// continues to append to the previously current block until Place
// switches the builder's cursor.
func (b *Builder) NewLabel() *Label {
	blk := b.P.AddBlock()
	blk.Phis = make([]Phi, len(b.SlotTypes))
	for i := range b.SlotTypes {
		id, err := b.P.Arena.New(Phi)
		if err != nil {
			panic(err)
		}
		op := b.P.Op(id)
		op.Type = b.SlotTypes[i]
		op.Block = blk.ID
		blk.Phis[i] = Phi{Dest: id}
	}
	return &Label{Block: blk}
}

// Place switches the builder's cursor to lbl's block and resets the
// environment to that block's phi outputs, so code built after Place
// reads the merged SSA values.
func (b *Builder) Place(lbl *Label) {
	b.P.Cur = lbl.Block.ID
	for i, ph := range lbl.Block.Phis {
		b.P.Env[i] = ph.Dest
	}
}

func (b *Builder) recordAlt(target *Block) {
	from := b.P.Cur
	target.ComeFrom = append(target.ComeFrom, from)
	for i := range target.Phis {
		target.Phis[i].Alts = append(target.Phis[i].Alts, PhiAlt{FromBlock: from, Value: b.P.Env[i]})
	}
}

// Jmp emits an unconditional jump to target, recording the current
// environment as target's phi alternatives for this block.
func (b *Builder) Jmp(target *Label) {
	op := b.emit(Jmp, TNone)
	op.Label[0] = target.Block.ID
	op.Label[1] = NoOp16
	b.recordAlt(target.Block)
}

// condJump emits a two-target conditional jump: opc(cond) ? thenL : elseL.
func (b *Builder) condJump(opc Opcode, in0, in1 OpID, thenL, elseL *Label) {
	op := b.emit(opc, TNone)
	op.In[0] = in0
	op.In[1] = in1
	op.Label[0] = thenL.Block.ID
	op.Label[1] = elseL.Block.ID
	b.recordAlt(thenL.Block)
	b.recordAlt(elseL.Block)
}

func (b *Builder) Jz(cond OpID, thenL, elseL *Label)  { b.condJump(Jz, cond, NoOp, thenL, elseL) }
func (b *Builder) Jnz(cond OpID, thenL, elseL *Label) { b.condJump(Jnz, cond, NoOp, thenL, elseL) }

func (b *Builder) Jilt(x, y OpID, thenL, elseL *Label) { b.condJump(Jilt, x, y, thenL, elseL) }
func (b *Builder) Jige(x, y OpID, thenL, elseL *Label) { b.condJump(Jige, x, y, thenL, elseL) }
func (b *Builder) Jigt(x, y OpID, thenL, elseL *Label) { b.condJump(Jigt, x, y, thenL, elseL) }
func (b *Builder) Jile(x, y OpID, thenL, elseL *Label) { b.condJump(Jile, x, y, thenL, elseL) }
func (b *Builder) Jieq(x, y OpID, thenL, elseL *Label) { b.condJump(Jieq, x, y, thenL, elseL) }
func (b *Builder) Jine(x, y OpID, thenL, elseL *Label) { b.condJump(Jine, x, y, thenL, elseL) }

// --- returns ---

func (b *Builder) Iret(v OpID) { op := b.emit(Iret, TNone); op.In[0] = v }
func (b *Builder) Fret(v OpID) { op := b.emit(Fret, TNone); op.In[0] = v }
func (b *Builder) Dret(v OpID) { op := b.emit(Dret, TNone); op.In[0] = v }
func (b *Builder) IretI(v int32) {
	op := b.emit(IretI, TNone)
	op.Imm32 = v
}

// --- calls ---

// Call emits outgoing argument passes for args (tagged by their
// position within their type class and their global position, per
// spec §4.1) followed by a near or indirect call op. target is either
// a module-relative procedure index (near) or an OpID holding a
// pointer value (indirect, ptr != NoOp).
func (b *Builder) Call(ptr OpID, procIdx int32, args []OpID, result Type) OpID {
	var iN, fN, dN, pos uint8
	for _, a := range args {
		t := b.typeOf(a)
		var opc Opcode
		var idx *uint8
		switch t {
		case TInt:
			opc, idx = Ipass, &iN
		case TF32:
			opc, idx = Fpass, &fN
		case TF64:
			opc, idx = Dpass, &dN
		}
		op := b.emit(opc, TNone)
		op.In[0] = a
		op.ArgIndex = *idx
		op.ArgPos = pos
		*idx++
		pos++
	}

	near := ptr == NoOp
	var opc Opcode
	switch {
	case near && result == TInt:
		opc = Icalln
	case near && result == TF32:
		opc = Fcalln
	case near && result == TF64:
		opc = Dcalln
	case !near && result == TInt:
		opc = Icallp
	case !near && result == TF32:
		opc = Fcallp
	case !near && result == TF64:
		opc = Dcallp
	default:
		panic("bjit/ir: unsupported call result type")
	}
	op := b.emit(opc, result)
	if near {
		op.Imm32 = procIdx
	} else {
		op.In[0] = ptr
	}
	return op.Index
}

// NoOp16 is NoOp truncated to the label-field width (both are uint16).
const NoOp16 = NoOp
