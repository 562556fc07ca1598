package x64

import "encoding/binary"

// Asm accumulates the machine code for one procedure plus the fixups
// it will need once final block offsets and the module's constant pool
// and call targets are known (spec §4.6/§4.7).
type Asm struct {
	Code []byte
}

func (a *Asm) byte(b byte) { a.Code = append(a.Code, b) }

func (a *Asm) bytes(bs ...byte) { a.Code = append(a.Code, bs...) }

func (a *Asm) imm32(v int32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	a.Code = append(a.Code, buf[:]...)
}

func (a *Asm) imm64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	a.Code = append(a.Code, buf[:]...)
}

// Pos returns the current write offset, used to record relocation and
// branch-patch sites.
func (a *Asm) Pos() int { return len(a.Code) }

// PatchRel32 overwrites the 4-byte displacement at off (a call/jmp
// rel32 operand) once the target's final offset is known.
func (a *Asm) PatchRel32(off int, rel int32) {
	binary.LittleEndian.PutUint32(a.Code[off:off+4], uint32(rel))
}

// rexByte builds a REX prefix: w selects 64-bit operand size, r/x/b
// extend the ModRM.reg, SIB.index and ModRM.rm/SIB.base fields
// respectively (each true when the corresponding register encoding is
// 8-15). Always emitted when w or any extension bit is set; byte-sized
// operands on registers 4-7 that would otherwise collide with the
// legacy AH/BH/CH/DH encoding are out of scope for this back end.
func rexByte(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 1 << 3
	}
	if r {
		v |= 1 << 2
	}
	if x {
		v |= 1 << 1
	}
	if b {
		v |= 1
	}
	return v
}

func needsRex(w, r, x, b bool) bool { return w || r || x || b }

// modrm builds a ModRM byte: mod (0-3), reg (the /r extension or
// opcode-extension digit, low 3 bits), rm (low 3 bits).
func modrm(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | (rm & 7)
}

// sib builds a SIB byte with the given scale exponent (0=*1, 1=*2,
// 2=*4, 3=*8), index and base register encodings (low 3 bits each).
func sib(scale, index, base byte) byte {
	return scale<<6 | (index&7)<<3 | (base & 7)
}

const modDisp0 = 0
const modDisp8 = 1
const modDisp32 = 2
const modReg = 3

const noIndex = 4 // SIB.index == 4 means "no index register"
const sibMarker = 4 // ModRM.rm == 4 with mod != 3 means "SIB follows"

