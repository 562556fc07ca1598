// Package live implements the liveness and use-count pass of spec
// §4.3: per-op use counts and an iterative fixed-point live-in
// computation, both consumed by the optimizer and the register
// allocator.
package live

import "github.com/oisee/bjit/internal/cfg"
import "github.com/oisee/bjit/internal/ir"

// Scan resets every op's use count, recomputes it over the procedure's
// live blocks, and computes each live block's LiveIn set to a fixed
// point. It requires ComeFrom to already be rebuilt (internal/cfg).
func Scan(p *ir.Procedure) {
	for i := range p.Arena.All() {
		p.Arena.All()[i].NUse = 0
	}

	live := liveIDs(p)
	defs := make(map[uint16]map[ir.OpID]bool, len(live))
	uses := make(map[uint16][]ir.OpID, len(live))

	for _, id := range live {
		b := p.Block(id)
		d := make(map[ir.OpID]bool)
		for _, ph := range b.Phis {
			d[ph.Dest] = true
		}
		for _, opid := range b.Ops {
			d[opid] = true
		}
		defs[id] = d
	}

	countUse := func(v ir.OpID) {
		if v == ir.NoOp {
			return
		}
		p.Op(v).NUse++
	}

	for _, id := range live {
		b := p.Block(id)
		var u []ir.OpID
		for _, opid := range b.Ops {
			op := p.Op(opid)
			info := ir.Info(op.Opcode)
			for k := 0; k < info.NIn && k < 2; k++ {
				if op.In[k] != ir.NoOp {
					u = append(u, op.In[k])
					countUse(op.In[k])
				}
			}
			if info.NIn == 3 && op.Label[0] != ir.NoOp {
				u = append(u, op.Label[0])
				countUse(op.Label[0])
			}
		}
		for _, succID := range cfg.Successors(p, b) {
			succ := p.Block(succID)
			for pi := range succ.Phis {
				if alt := succ.Phis[pi].AltFor(b.ID); alt != nil && alt.Value != ir.NoOp {
					u = append(u, alt.Value)
					countUse(alt.Value)
				}
			}
		}
		uses[id] = u
	}

	for _, id := range live {
		p.Block(id).LiveIn = nil
	}

	for changed := true; changed; {
		changed = false
		for _, id := range live {
			b := p.Block(id)
			liveOut := map[ir.OpID]bool{}
			for _, s := range cfg.Successors(p, b) {
				for v := range p.Block(s).LiveIn {
					liveOut[v] = true
				}
			}
			in := map[ir.OpID]bool{}
			for _, u := range uses[id] {
				in[u] = true
			}
			d := defs[id]
			for v := range liveOut {
				if !d[v] {
					in[v] = true
				}
			}
			if !setsEqual(in, b.LiveIn) {
				b.LiveIn = in
				changed = true
			}
		}
	}
}

func setsEqual(a, b map[ir.OpID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func liveIDs(p *ir.Procedure) []uint16 {
	var out []uint16
	for _, b := range p.Blocks {
		if b.Live {
			out = append(out, b.ID)
		}
	}
	return out
}
