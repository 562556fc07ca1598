package opt

import (
	"github.com/oisee/bjit/internal/cfg"
	"github.com/oisee/bjit/internal/ir"
	"github.com/oisee/bjit/internal/live"
)

// maxIterations bounds the optimizer driver's fixed-point loop (spec
// §4.4: "passes iterate until none report progress, with a hard
// iteration cap as a termination guarantee independent of any single
// pass's own convergence proof").
const maxIterations = 256

// Run drives DCE, Fold, CSE, Sink, Reassoc and JumpOpt to a fixed
// point, recomputing dominators and liveness whenever a pass changes
// the CFG shape, and finishes with one final DCE pass so the result
// carries no dead ops left behind by the last productive pass.
func Run(p *ir.Procedure) {
	cfg.RebuildComeFrom(p)
	cfg.ComputeDominators(p)
	live.Scan(p)

	for i := 0; i < maxIterations; i++ {
		progress := false

		if DCE(p) {
			progress = true
		}
		if Fold(p) {
			progress = true
		}

		cfg.ComputeDominators(p)
		if CSE(p) {
			progress = true
			cfg.RebuildComeFrom(p)
		}
		if Sink(p) {
			progress = true
		}
		if Reassoc(p) {
			progress = true
		}
		if JumpOpt(p) {
			progress = true
			cfg.ComputeDominators(p)
		}

		live.Scan(p)
		if !progress {
			break
		}
	}

	DCE(p)
	cfg.ComputeDominators(p)
	cfg.ComputePostDominators(p)
	live.Scan(p)
}
