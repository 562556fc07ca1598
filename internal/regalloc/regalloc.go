package regalloc

import "github.com/oisee/bjit/internal/cfg"
import "github.com/oisee/bjit/internal/ir"
import "github.com/oisee/bjit/internal/live"

// Allocate runs the full spec §4.5 pipeline over p: phi reintroduction,
// stack congruence class assignment, a per-block linear scan that
// assigns physical registers and inserts reload/rematerialization ops,
// edge-shuffle blocks reconciling cross-block register disagreement,
// and a final dead-code sweep that removes any rename left behind that
// turned out to be an identity (spec §4.5.6).
func Allocate(p *ir.Procedure, cfg_ Config) {
	reintroducePhis(p)
	live.Scan(p)

	order := scanOrder(p)
	AssignSCC(p, order)

	for _, bid := range order {
		b := p.Block(bid)
		if b.Live {
			scanBlock(p, b, cfg_)
		}
	}

	for iter := 0; iter < 64; iter++ {
		if !insertEdgeShuffles(p, cfg_) {
			break
		}
	}

	removeIdentityRenames(p)
	cfg.ComputeDominators(p)
	live.Scan(p)

	for _, b := range p.Blocks {
		if b.Live {
			b.RegsDone = true
		}
	}
	p.RADone = true
}
