package arm64

// This file holds the raw AArch64 instruction encoders, one function
// per mnemonic. Register operands are already the 5-bit encoding
// (see encBits); w/d/n/m name the usual destination/first/second
// operand slots. Every encoder emits exactly one 32-bit word.

func u5(r byte) uint32 { return uint32(r & 0x1F) }

// --- data processing: register ---

func (a *Asm) AddRR(d, n, m byte) { a.word(0x8B000000 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) SubRR(d, n, m byte) { a.word(0xCB000000 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) AndRR(d, n, m byte) { a.word(0x8A000000 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) OrrRR(d, n, m byte) { a.word(0xAA000000 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) EorRR(d, n, m byte) { a.word(0xCA000000 | u5(m)<<16 | u5(n)<<5 | u5(d)) }

// MvnR is the bitwise-not alias ORN Rd, XZR, Rm.
func (a *Asm) MvnR(d, m byte) { a.word(0xAA2003E0 | u5(m)<<16 | u5(d)) }

// NegR is the alias SUB Rd, XZR, Rm.
func (a *Asm) NegR(d, m byte) { a.word(0xCB0003E0 | u5(m)<<16 | u5(d)) }

func (a *Asm) MulRR(d, n, m byte) { a.word(0x9B007C00 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) SdivRR(d, n, m byte) { a.word(0x9AC00C00 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) UdivRR(d, n, m byte) { a.word(0x9AC00800 | u5(m)<<16 | u5(n)<<5 | u5(d)) }

// MsubRR computes Rd = Ra - Rn*Rm, used with Ra holding the dividend
// and Rn the quotient from a preceding Sdiv/Udiv to recover a remainder.
func (a *Asm) MsubRR(d, n, m, ra byte) {
	a.word(0x9B008000 | u5(m)<<16 | u5(ra)<<10 | u5(n)<<5 | u5(d))
}

func (a *Asm) LslvRR(d, n, m byte) { a.word(0x9AC02000 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) LsrvRR(d, n, m byte) { a.word(0x9AC02400 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) AsrvRR(d, n, m byte) { a.word(0x9AC02800 | u5(m)<<16 | u5(n)<<5 | u5(d)) }

// AddImm/SubImm take an unshifted 12-bit unsigned immediate.
func (a *Asm) AddImm(d, n byte, imm12 uint32) { a.word(0x91000000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(d)) }
func (a *Asm) SubImm(d, n byte, imm12 uint32) { a.word(0xD1000000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(d)) }

// CmpRR is the alias SUBS XZR, Rn, Rm.
func (a *Asm) CmpRR(n, m byte) { a.word(0xEB00001F | u5(m)<<16 | u5(n)<<5) }

// MovzImm16/MovkImm16 move/insert a 16-bit immediate at the given
// 16-bit lane (0-3), used in sequence to materialize any 64-bit
// constant (Lci) and any absolute procedure address (Lnp).
func (a *Asm) MovzImm16(d byte, imm16 uint16, lane byte) {
	a.word(0xD2800000 | uint32(lane)<<21 | uint32(imm16)<<5 | u5(d))
}
func (a *Asm) MovkImm16(d byte, imm16 uint16, lane byte) {
	a.word(0xF2800000 | uint32(lane)<<21 | uint32(imm16)<<5 | u5(d))
}

// --- condition codes ---

const (
	CcEq = 0x0
	CcNe = 0x1
	CcCs = 0x2 // unsigned >=
	CcCc = 0x3 // unsigned <
	CcMi = 0x4
	CcPl = 0x5
	CcVs = 0x6
	CcVc = 0x7
	CcHi = 0x8 // unsigned >
	CcLs = 0x9 // unsigned <=
	CcGe = 0xA
	CcLt = 0xB
	CcGt = 0xC
	CcLe = 0xD
	CcAl = 0xE
)

// invert flips a condition to its logical negation; AArch64 condition
// codes are paired so the low bit alone does this (EQ/NE, LT/GE, ...).
func invert(cc byte) byte { return cc ^ 1 }

// CsetR is the alias CSINC Rd, XZR, XZR, invert(cc) ("Rd = cc ? 1 : 0").
func (a *Asm) CsetR(d byte, cc byte) { a.word(0x9A9F07E0 | uint32(invert(cc))<<12 | u5(d)) }

// --- branches ---

// BCond emits B.cond with a placeholder offset and returns the
// instruction's own byte offset, to be patched once the target is
// known (PatchImm19At5).
func (a *Asm) BCond(cc byte) int {
	off := a.Pos()
	a.word(0x54000000 | uint32(cc))
	return off
}

// B emits an unconditional branch with a placeholder offset.
func (a *Asm) B() int {
	off := a.Pos()
	a.word(0x14000000)
	return off
}

// BL emits a near call with a placeholder offset.
func (a *Asm) BL() int {
	off := a.Pos()
	a.word(0x94000000)
	return off
}

func (a *Asm) Blr(n byte) { a.word(0xD63F0000 | u5(n)<<5) }
func (a *Asm) Br(n byte)  { a.word(0xD61F0000 | u5(n)<<5) }
func (a *Asm) Ret()       { a.word(0xD65F03C0) }

// Cbz/Cbnz emit a compare-and-branch with a placeholder offset.
func (a *Asm) Cbz(t byte) int {
	off := a.Pos()
	a.word(0xB4000000 | u5(t))
	return off
}
func (a *Asm) Cbnz(t byte) int {
	off := a.Pos()
	a.word(0xB5000000 | u5(t))
	return off
}

// --- loads/stores, unsigned 12-bit scaled immediate offset ---

func (a *Asm) LdrX(t, n byte, imm12 uint32) { a.word(0xF9400000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) StrX(t, n byte, imm12 uint32) { a.word(0xF9000000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrW(t, n byte, imm12 uint32) { a.word(0xB9400000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) StrW(t, n byte, imm12 uint32) { a.word(0xB9000000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrbW(t, n byte, imm12 uint32) { a.word(0x39400000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) StrbW(t, n byte, imm12 uint32) { a.word(0x39000000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrhW(t, n byte, imm12 uint32) { a.word(0x79400000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) StrhW(t, n byte, imm12 uint32) { a.word(0x79000000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrsbX(t, n byte, imm12 uint32) { a.word(0x39800000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrsbW(t, n byte, imm12 uint32) { a.word(0x39C00000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrshX(t, n byte, imm12 uint32) { a.word(0x79800000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrshW(t, n byte, imm12 uint32) { a.word(0x79C00000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrswX(t, n byte, imm12 uint32) { a.word(0xB9800000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrD(t, n byte, imm12 uint32)  { a.word(0xFD400000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) StrD(t, n byte, imm12 uint32)  { a.word(0xFD000000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrS(t, n byte, imm12 uint32)  { a.word(0xBD400000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }
func (a *Asm) StrS(t, n byte, imm12 uint32)  { a.word(0xBD000000 | (imm12&0xFFF)<<10 | u5(n)<<5 | u5(t)) }

// --- loads/stores, register (two-register-indexed) offset, LSL #0 ---

func (a *Asm) LdrXReg(t, n, m byte)  { a.word(0xF8606800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) StrXReg(t, n, m byte)  { a.word(0xF8206800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrWReg(t, n, m byte)  { a.word(0xB8606800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) StrWReg(t, n, m byte)  { a.word(0xB8206800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrbWReg(t, n, m byte) { a.word(0x38606800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) StrbWReg(t, n, m byte) { a.word(0x38206800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrhWReg(t, n, m byte) { a.word(0x78606800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) StrhWReg(t, n, m byte) { a.word(0x78206800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrsbXReg(t, n, m byte) { a.word(0x38A06800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrsbWReg(t, n, m byte) { a.word(0x38E06800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrshXReg(t, n, m byte) { a.word(0x78A06800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrshWReg(t, n, m byte) { a.word(0x78E06800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrswXReg(t, n, m byte) { a.word(0xB8A06800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrDReg(t, n, m byte)  { a.word(0xFC606800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) StrDReg(t, n, m byte)  { a.word(0xFC206800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) LdrSReg(t, n, m byte)  { a.word(0xBC606800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }
func (a *Asm) StrSReg(t, n, m byte)  { a.word(0xBC206800 | u5(m)<<16 | u5(n)<<5 | u5(t)) }

// --- literal (PC-relative) loads, used for the constant pool ---

// LdrDLit/LdrSLit emit a literal-pool load with a placeholder imm19,
// returning the instruction's byte offset to patch once the pool's
// position relative to this site is known (PatchImm19At5).
func (a *Asm) LdrDLit(t byte) int {
	off := a.Pos()
	a.word(0x5C000000 | u5(t))
	return off
}
func (a *Asm) LdrSLit(t byte) int {
	off := a.Pos()
	a.word(0x1C000000 | u5(t))
	return off
}

// --- floating point, d=double (ftype=01), s=single (ftype=00) ---

func (a *Asm) FaddS(d, n, m byte) { a.word(0x1E202800 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) FaddD(d, n, m byte) { a.word(0x1E602800 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) FsubS(d, n, m byte) { a.word(0x1E203800 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) FsubD(d, n, m byte) { a.word(0x1E603800 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) FmulS(d, n, m byte) { a.word(0x1E200800 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) FmulD(d, n, m byte) { a.word(0x1E600800 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) FdivS(d, n, m byte) { a.word(0x1E201800 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) FdivD(d, n, m byte) { a.word(0x1E601800 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) FnegS(d, n byte)   { a.word(0x1E214000 | u5(n)<<5 | u5(d)) }
func (a *Asm) FnegD(d, n byte)   { a.word(0x1E614000 | u5(n)<<5 | u5(d)) }
func (a *Asm) FabsS(d, n byte)   { a.word(0x1E20C000 | u5(n)<<5 | u5(d)) }
func (a *Asm) FabsD(d, n byte)   { a.word(0x1E60C000 | u5(n)<<5 | u5(d)) }
func (a *Asm) FcmpS(n, m byte)   { a.word(0x1E202000 | u5(m)<<16 | u5(n)<<5) }
func (a *Asm) FcmpD(n, m byte)   { a.word(0x1E602000 | u5(m)<<16 | u5(n)<<5) }
func (a *Asm) FmovD(d, n byte)   { a.word(0x1E604000 | u5(n)<<5 | u5(d)) }
func (a *Asm) FmovS(d, n byte)   { a.word(0x1E204000 | u5(n)<<5 | u5(d)) }

// FmovXD/FmovDX bitcast between a GP register and the full 64 bits of
// a D register (used for Bci2d/Bcd2i-style raw-bit conversions).
func (a *Asm) FmovXD(d, n byte) { a.word(0x9E660000 | u5(n)<<5 | u5(d)) }
func (a *Asm) FmovDX(d, n byte) { a.word(0x9E670000 | u5(n)<<5 | u5(d)) }
func (a *Asm) FmovWS(d, n byte) { a.word(0x1E260000 | u5(n)<<5 | u5(d)) }
func (a *Asm) FmovSW(d, n byte) { a.word(0x1E270000 | u5(n)<<5 | u5(d)) }

// ScvtfXD converts a 64-bit signed GP value to double; ScvtfXS to single.
func (a *Asm) ScvtfXD(d, n byte) { a.word(0x9E620000 | u5(n)<<5 | u5(d)) }
func (a *Asm) ScvtfXS(d, n byte) { a.word(0x9E220000 | u5(n)<<5 | u5(d)) }

// FcvtzsDX truncates a double to a 64-bit signed GP value; FcvtzsSX
// truncates a single.
func (a *Asm) FcvtzsDX(d, n byte) { a.word(0x9E780000 | u5(n)<<5 | u5(d)) }
func (a *Asm) FcvtzsSX(d, n byte) { a.word(0x9E380000 | u5(n)<<5 | u5(d)) }

// FcvtSD narrows double to single; FcvtDS widens single to double.
func (a *Asm) FcvtSD(d, n byte) { a.word(0x1E624000 | u5(n)<<5 | u5(d)) }
func (a *Asm) FcvtDS(d, n byte) { a.word(0x1E22C000 | u5(n)<<5 | u5(d)) }

// EorVV/AndVV are the NEON byte-wise Vd.8B = Vn.8B OP Vm.8B forms,
// used against the low 64 bits of a D register to flip/mask its sign
// bit the same way x64's XORPS/ANDPS do against an XMM register.
func (a *Asm) EorVV(d, n, m byte) { a.word(0x2E201C00 | u5(m)<<16 | u5(n)<<5 | u5(d)) }
func (a *Asm) AndVV(d, n, m byte) { a.word(0x0E201C00 | u5(m)<<16 | u5(n)<<5 | u5(d)) }

// --- sign/zero extension (bitfield move aliases) ---

// SxtbX/SxthX/SxtwX sign-extend byte/halfword/word to a 64-bit
// register; aliases of SBFM.
func (a *Asm) SxtbX(d, n byte) { a.word(0x93401C00 | u5(n)<<5 | u5(d)) }
func (a *Asm) SxthX(d, n byte) { a.word(0x93403C00 | u5(n)<<5 | u5(d)) }
func (a *Asm) SxtwX(d, n byte) { a.word(0x93407C00 | u5(n)<<5 | u5(d)) }

// UxtbW/UxthW zero-extend byte/halfword into a 32-bit register
// (writing the W register already zeroes the upper 32 bits); aliases
// of UBFM. 32-bit-to-64-bit zero extension is a plain 32-bit register
// move, since every W-register write already zeroes the top half.
func (a *Asm) UxtbW(d, n byte) { a.word(0x53001C00 | u5(n)<<5 | u5(d)) }
func (a *Asm) UxthW(d, n byte) { a.word(0x53003C00 | u5(n)<<5 | u5(d)) }

// MovRR copies a 64-bit register via the ORR Rd, XZR, Rm alias.
func (a *Asm) MovRR(d, m byte) { a.OrrRR(d, 31, m) }
