// Package regalloc implements the linear-scan-style register allocator
// of spec §4.5: stack congruence class (SCC) assignment, phi
// reintroduction, a per-block scan that assigns physical registers and
// inserts rename/reload/spill bookkeeping, and edge-shuffle blocks that
// resolve register-assignment disagreements across block boundaries.
package regalloc

import "github.com/oisee/bjit/internal/ir"

// Config describes the register file an internal/arch backend exposes
// to the allocator: which registers are available for integer vs.
// float/double values, and which registers a call may clobber. Per-
// input ABI/SIMD masks (spec §4.5.3 step 1's finer-grained legality
// rules) are an internal/arch emitter concern layered on top of the
// plain physical assignment this package produces.
type Config struct {
	IntRegs       ir.RegMask
	FloatRegs     ir.RegMask
	CallClobbered ir.RegMask
}

func (c Config) poolFor(t ir.Type) ir.RegMask {
	if t == ir.TF32 || t == ir.TF64 {
		return c.FloatRegs
	}
	return c.IntRegs
}
