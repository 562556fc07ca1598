package arm64

import "encoding/binary"

// Asm accumulates the 4-byte-aligned instruction words for one
// procedure plus the fixups it needs once block offsets, the module's
// constant pool, and call targets are known (spec §4.6/§4.7). Unlike
// x64's variable-length encoding, every AArch64 instruction is exactly
// one 32-bit word, so Pos always returns a multiple of 4.
type Asm struct {
	Code []byte
}

// word appends one little-endian instruction word.
func (a *Asm) word(w uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], w)
	a.Code = append(a.Code, buf[:]...)
}

// Pos returns the current write offset in bytes.
func (a *Asm) Pos() int { return len(a.Code) }

// PatchWord overwrites the instruction word at byte offset off.
func (a *Asm) PatchWord(off int, w uint32) {
	binary.LittleEndian.PutUint32(a.Code[off:off+4], w)
}

// PatchImm26 rewrites a B/BL instruction's imm26 field in place, given
// the byte distance (not yet divided by 4) from the instruction to its
// target. Exported so internal/module's link pass can apply it against
// a module's already-concatenated buffer, not just a live emitter's.
func (a *Asm) PatchImm26(off int, byteDist int32) {
	w := binary.LittleEndian.Uint32(a.Code[off : off+4])
	w = (w &^ 0x03FFFFFF) | (uint32(byteDist/4) & 0x03FFFFFF)
	binary.LittleEndian.PutUint32(a.Code[off:off+4], w)
}

// PatchImm19At5 rewrites the imm19 field starting at bit 5 (B.cond,
// CBZ/CBNZ, LDR-literal) given the byte distance to the target.
func (a *Asm) PatchImm19At5(off int, byteDist int32) {
	w := binary.LittleEndian.Uint32(a.Code[off : off+4])
	w = (w &^ (0x7FFFF << 5)) | ((uint32(byteDist/4) & 0x7FFFF) << 5)
	binary.LittleEndian.PutUint32(a.Code[off:off+4], w)
}

// PatchImm64Abs overwrites the imm16 lane of each of the 4 consecutive
// MOVZ/MOVK words starting at off with v's corresponding 16-bit chunk,
// leaving each word's opcode and destination register bits untouched.
// internal/loader calls this to resolve an lnp site (RelocProcAbs)
// once a module's load address is known; it never needs to know
// whether a given lane's word is MOVZ or MOVK since only bits
// [20:5] (the imm16 field) change.
func (a *Asm) PatchImm64Abs(off int, v uint64) {
	for lane := 0; lane < 4; lane++ {
		o := off + lane*4
		w := binary.LittleEndian.Uint32(a.Code[o : o+4])
		chunk := uint32(v >> (16 * lane))
		w = (w &^ (0xFFFF << 5)) | (chunk & 0xFFFF << 5)
		binary.LittleEndian.PutUint32(a.Code[o:o+4], w)
	}
}
