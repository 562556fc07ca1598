// Package x64 implements the spec §4.6 emitter for the System V AMD64
// ABI: instruction encoding (REX/ModRM/SIB), a constant pool, near-call
// relocations, and the prologue/epilogue/calling-convention glue that
// turns an allocated internal/ir.Procedure into a byte stream
// internal/loader can map executable. The instruction descriptors
// follow a per-opcode table idiom generalized from an 8-bit fantasy
// CPU encoder to a real ISA.
package x64

import "github.com/oisee/bjit/internal/ir"
import "github.com/oisee/bjit/internal/regalloc"

// General-purpose registers occupy bits 0-15 of the shared Reg space;
// XMM registers occupy bits 16-31. Keeping the two banks disjoint lets
// a single regalloc.Config.CallClobbered mask describe both without
// ambiguity (spec §9: "treat it as an opaque set of registers").
const (
	RAX ir.Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

const xmmBase = 16

// XMM returns the Reg id for XMM register n (0-15).
func XMM(n int) ir.Reg { return ir.Reg(xmmBase + n) }

// isXMM reports whether r names an XMM register.
func isXMM(r ir.Reg) bool { return r >= xmmBase }

// encBits returns the 4-bit encoding used in ModRM/SIB/REX for r,
// independent of which bank it belongs to.
func encBits(r ir.Reg) byte {
	if isXMM(r) {
		return byte(r - xmmBase)
	}
	return byte(r)
}

var gpNames = [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}

// Name renders r for disassembly/debug output.
func Name(r ir.Reg) string {
	if r == ir.NoReg {
		return "?"
	}
	if isXMM(r) {
		return "xmm" + itoa(int(r-xmmBase))
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

// SysVConfig returns the register file the System V AMD64 ABI exposes
// to the allocator: RSP/RBP are reserved for the frame, the remaining
// fourteen GP registers and fifteen of the sixteen XMM registers are
// allocatable. XMM15 is held back as a fixed scratch register for the
// Fneg/Dneg/Fabs/Dabs sign-bit-mask idiom in emit_ops.go, which needs
// an XMM register guaranteed free at the point it runs without
// threading a register-constraint solver through the allocator.
func SysVConfig() regalloc.Config {
	intPool := ir.RegMask(0)
	for _, r := range []ir.Reg{RAX, RCX, RDX, RBX, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15} {
		intPool = intPool.With(r)
	}
	floatPool := ir.RegMask(0)
	for n := 0; n < 15; n++ {
		floatPool = floatPool.With(XMM(n))
	}
	clobbered := ir.RegMask(0)
	for _, r := range []ir.Reg{RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11} {
		clobbered = clobbered.With(r)
	}
	clobbered = clobbered.Union(floatPool) // no callee-saved XMM in SysV

	return regalloc.Config{IntRegs: intPool, FloatRegs: floatPool, CallClobbered: clobbered}
}

// calleeSaved is the subset of IntRegs the prologue must preserve if
// the allocator actually used them (RBX, R12-R15; RSP/RBP are never
// allocator-visible).
var calleeSaved = []ir.Reg{RBX, R12, R13, R14, R15}

// IntArgRegs and FloatArgRegs give the System V argument-passing order
// for iarg/farg/darg materialization in the prologue.
var IntArgRegs = []ir.Reg{RDI, RSI, RDX, RCX, R8, R9}
var FloatArgRegs = []ir.Reg{XMM(0), XMM(1), XMM(2), XMM(3), XMM(4), XMM(5), XMM(6), XMM(7)}

// ABI selects which x86-64 calling convention the emitter lowers
// iarg/farg/darg/ipass/fpass/dpass/calls against (spec §6 "calling
// conventions honored: x86-64 System-V and Microsoft x64").
type ABI int

const (
	SysV ABI = iota
	Win64
)

// IntArgRegsWin64/FloatArgRegsWin64 give the Microsoft x64 argument
// registers. Unlike SysV, Win64 assigns one physical slot per argument
// *position* regardless of class — the second argument always lives
// in RDX or XMM1, never both — so the emitter indexes these by
// ArgPos, not the per-type ArgIndex SysV uses.
var IntArgRegsWin64 = []ir.Reg{RCX, RDX, R8, R9}
var FloatArgRegsWin64 = []ir.Reg{XMM(0), XMM(1), XMM(2), XMM(3)}

// Win64ShadowSpace is the 32 bytes of stack space a Win64 caller must
// reserve below the return address before any call, for the callee to
// spill its register arguments into if it needs to.
const Win64ShadowSpace = 32

// Win64Config returns the register file for the Microsoft x64 ABI:
// the allocatable set is the same physical registers as SysV, but the
// callee-saved set additionally includes RSI/RDI (SysV treats them as
// argument/caller-saved; Win64 does not) and XMM6-15 are callee-saved
// under Win64 (this baseline allocator, like SysVConfig, does not
// allocate XMM15 — see SysVConfig — so only XMM6-14 need saving here,
// and the emitter does not save float callee-saves at all).
func Win64Config() regalloc.Config {
	intPool := ir.RegMask(0)
	for _, r := range []ir.Reg{RAX, RCX, RDX, RBX, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15} {
		intPool = intPool.With(r)
	}
	floatPool := ir.RegMask(0)
	for n := 0; n < 15; n++ {
		floatPool = floatPool.With(XMM(n))
	}
	clobbered := ir.RegMask(0)
	for _, r := range []ir.Reg{RAX, RCX, RDX, R8, R9, R10, R11} {
		clobbered = clobbered.With(r)
	}
	for n := 0; n < 6; n++ {
		clobbered = clobbered.With(XMM(n))
	}
	return regalloc.Config{IntRegs: intPool, FloatRegs: floatPool, CallClobbered: clobbered}
}

// calleeSavedWin64 additionally preserves RSI/RDI, which Win64 treats
// as callee-saved but SysV does not.
var calleeSavedWin64 = []ir.Reg{RBX, RSI, RDI, R12, R13, R14, R15}
