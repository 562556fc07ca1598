// Package arm64 implements the spec §4.6 emitter for AAPCS64: a
// documented subset of the AArch64 instruction set covering integer
// and float/double arithmetic, conditional branches and compares,
// loads/stores of every width spec §6 names, and near/indirect calls
// — the operations the end-to-end scenarios of spec §8 exercise. Per
// the spec's own Open Question about the original's incomplete
// AArch64 emitter ("either complete the lowering table or document
// the supported opcode subset explicitly"), unsupported opcodes panic
// with their mnemonic rather than silently miscompiling; the dispatch
// in emit.go's op method is the exact list of what is lowered.
package arm64

import "github.com/oisee/bjit/internal/ir"
import "github.com/oisee/bjit/internal/regalloc"

// General registers occupy bits 0-30 of the shared Reg space (X31 is
// SP/XZR depending on context and is never allocator-visible); V
// registers (used as D/S views) occupy bits 32-63, mirroring x64's
// disjoint-bank convention (regs.go) so a single RegMask still
// describes both banks for CallClobbered.
const (
	X0 ir.Reg = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	X29 // frame pointer
	X30 // link register
)

const vBase = 32

// V returns the Reg id for V register n (0-31), used as a D or S
// register depending on the op's Type.
func V(n int) ir.Reg { return ir.Reg(vBase + n) }

func isV(r ir.Reg) bool { return r >= vBase }

// encBits returns the 5-bit encoding field for r, independent of bank.
func encBits(r ir.Reg) byte {
	if isV(r) {
		return byte(r - vBase)
	}
	return byte(r)
}

var gpNames = [...]string{
	"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7", "x8", "x9",
	"x10", "x11", "x12", "x13", "x14", "x15", "x16", "x17", "x18", "x19",
	"x20", "x21", "x22", "x23", "x24", "x25", "x26", "x27", "x28", "x29", "x30",
}

// Name renders r for disassembly/debug output.
func Name(r ir.Reg) string {
	if r == ir.NoReg {
		return "?"
	}
	if isV(r) {
		return "v" + itoa(int(r-vBase))
	}
	return gpNames[r]
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// scratchGP is the encoding-bits value of X16 (IP0), used to stage
// shift counts and immediate operands (see emit_ops.go); X16 is
// excluded from Config's allocatable pool above so the allocator
// never assigns it a live value, the same technique x64's ScratchXMM
// uses. Declared untyped (rather than as ir.Reg) since every call site
// uses it directly as an instruction-encoding operand.
const scratchGP = 16

// scratchV is the fixed float scratch register for the
// Fneg/Dneg/Fabs/Dabs sign-bit-mask idiom (emit_ops.go), excluded from
// Config's float pool for the same reason.
const scratchV = 31 // V31

// Config returns the register file AAPCS64 exposes to the allocator.
// X16/X17 (IP0/IP1, reserved for linker veneers and this package's
// scratchGP), X18 (the platform register, reserved by several OS
// ABIs), X29/X30 (frame pointer/link register) and X31 (SP) are
// withheld; V31 is withheld as the float scratch register.
func Config() regalloc.Config {
	intPool := ir.RegMask(0)
	for _, r := range []ir.Reg{
		X0, X1, X2, X3, X4, X5, X6, X7, X8, X9, X10, X11, X12, X13, X14, X15,
		X19, X20, X21, X22, X23, X24, X25, X26, X27, X28,
	} {
		intPool = intPool.With(r)
	}
	floatPool := ir.RegMask(0)
	for n := 0; n < 31; n++ {
		floatPool = floatPool.With(V(n))
	}
	clobbered := ir.RegMask(0)
	for _, r := range []ir.Reg{X0, X1, X2, X3, X4, X5, X6, X7, X8, X9, X10, X11, X12, X13, X14, X15} {
		clobbered = clobbered.With(r)
	}
	for _, n := range []int{0, 1, 2, 3, 4, 5, 6, 7, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30} {
		clobbered = clobbered.With(V(n))
	}
	return regalloc.Config{IntRegs: intPool, FloatRegs: floatPool, CallClobbered: clobbered}
}

// calleeSaved is the subset of Config's IntRegs AAPCS64 requires the
// callee to preserve (X19-X28; X29/X30 are handled separately by the
// frame-pointer/link-register prologue idiom).
var calleeSaved = []ir.Reg{X19, X20, X21, X22, X23, X24, X25, X26, X27, X28}

// calleeSavedV is the callee-saved float bank (low 64 bits of D8-D15).
var calleeSavedV = []ir.Reg{V(8), V(9), V(10), V(11), V(12), V(13), V(14), V(15)}

// IntArgRegs/FloatArgRegs give the AAPCS64 argument-passing order.
var IntArgRegs = []ir.Reg{X0, X1, X2, X3, X4, X5, X6, X7}
var FloatArgRegs = []ir.Reg{V(0), V(1), V(2), V(3), V(4), V(5), V(6), V(7)}
