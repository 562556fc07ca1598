// Package cfg implements the control-flow and dominator analysis of
// spec §4.2: come-from reconstruction, forward/post dominator trees,
// and critical-edge splitting. It operates directly on an *ir.Procedure,
// mutating each live ir.Block's ComeFrom/Dom/IDom/IPDom fields.
package cfg

import "github.com/oisee/bjit/internal/ir"

// virtualExit is the synthetic post-dominator-tree root unifying every
// return/tail-call block (spec §4.2: "the symmetric computation with
// an implicit virtual exit node unifying all return/tail-call blocks").
const virtualExit uint16 = 0xFFFF

// RebuildComeFrom rescans every live block's terminator and rebuilds
// ComeFrom lists, then drops phi alternatives whose source block is no
// longer live or whose value has been tombstoned (spec §4.2).
func RebuildComeFrom(p *ir.Procedure) {
	for _, b := range p.Blocks {
		b.ComeFrom = b.ComeFrom[:0]
	}
	for _, b := range p.Blocks {
		if !b.Live || len(b.Ops) == 0 {
			continue
		}
		last := p.Op(b.Ops[len(b.Ops)-1])
		info := ir.Info(last.Opcode)
		if !info.IsJump {
			continue
		}
		for _, lbl := range last.Label {
			if lbl == ir.NoOp {
				continue
			}
			succ := p.Block(lbl)
			if succ.Live && !containsID(succ.ComeFrom, b.ID) {
				succ.ComeFrom = append(succ.ComeFrom, b.ID)
			}
		}
	}
	for _, b := range p.Blocks {
		if !b.Live {
			continue
		}
		for pi := range b.Phis {
			ph := &b.Phis[pi]
			out := ph.Alts[:0]
			seen := map[uint16]bool{}
			for _, alt := range ph.Alts {
				if !isLive(p, alt.FromBlock) || seen[alt.FromBlock] {
					continue
				}
				if alt.Value != ir.NoOp && p.Op(alt.Value).IsNop() {
					continue
				}
				seen[alt.FromBlock] = true
				out = append(out, alt)
			}
			ph.Alts = out
		}
	}
}

func containsID(ids []uint16, id uint16) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func isLive(p *ir.Procedure, id uint16) bool {
	return int(id) < len(p.Blocks) && p.Block(id).Live
}

// Successors returns the live jump targets of block b, or nil if b has
// no terminator yet (still under construction) or falls through.
func Successors(p *ir.Procedure, b *ir.Block) []uint16 {
	if len(b.Ops) == 0 {
		return nil
	}
	last := p.Op(b.Ops[len(b.Ops)-1])
	if !ir.Info(last.Opcode).IsJump {
		return nil
	}
	var out []uint16
	for _, lbl := range last.Label {
		if lbl != ir.NoOp && isLive(p, lbl) {
			out = append(out, lbl)
		}
	}
	return out
}

func IsExitBlock(p *ir.Procedure, b *ir.Block) bool {
	if len(b.Ops) == 0 {
		return false
	}
	switch p.Op(b.Ops[len(b.Ops)-1]).Opcode {
	case ir.Iret, ir.Fret, ir.Dret, ir.IretI, ir.Tcallp, ir.Tcalln:
		return true
	}
	return false
}

type idset map[uint16]bool

func (s idset) clone() idset {
	out := make(idset, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func intersect(a, b idset) idset {
	out := make(idset)
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func equalSets(a, b idset) bool {
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

// ComputeDominators computes the forward dominator tree by iterating
// the least fixed point spec §4.2 defines directly: dom(entry)={entry},
// dom(b) = {b} ∪ ⋂ dom(p) over come-from predecessors p.
func ComputeDominators(p *ir.Procedure) {
	live := liveBlocks(p)
	dom := make(map[uint16]idset, len(live))
	all := make(idset, len(live))
	for _, id := range live {
		all[id] = true
	}
	entry := uint16(0)
	for _, id := range live {
		if id == entry {
			dom[id] = idset{entry: true}
		} else {
			dom[id] = all.clone()
		}
	}

	for changed := true; changed; {
		changed = false
		for _, id := range live {
			if id == entry {
				continue
			}
			b := p.Block(id)
			var acc idset
			for _, pred := range b.ComeFrom {
				if !isLive(p, pred) {
					continue
				}
				if acc == nil {
					acc = dom[pred].clone()
				} else {
					acc = intersect(acc, dom[pred])
				}
			}
			if acc == nil {
				acc = idset{}
			}
			acc[id] = true
			if !equalSets(acc, dom[id]) {
				dom[id] = acc
				changed = true
			}
		}
	}

	for _, id := range live {
		b := p.Block(id)
		b.Dom = chainOf(dom[id], dom)
		b.IDom = immediateOf(id, dom[id], dom)
	}
}

// ComputePostDominators mirrors ComputeDominators over the reverse
// graph, with a virtual exit unifying every return/tail-call block.
func ComputePostDominators(p *ir.Procedure) {
	live := liveBlocks(p)
	pdom := make(map[uint16]idset, len(live)+1)
	all := make(idset, len(live)+1)
	all[virtualExit] = true
	for _, id := range live {
		all[id] = true
	}
	pdom[virtualExit] = idset{virtualExit: true}
	for _, id := range live {
		pdom[id] = all.clone()
	}

	succOf := func(id uint16) []uint16 {
		if id == virtualExit {
			return nil
		}
		b := p.Block(id)
		if IsExitBlock(p, b) {
			return []uint16{virtualExit}
		}
		return Successors(p, b)
	}

	order := append([]uint16{}, live...)
	for changed := true; changed; {
		changed = false
		for _, id := range order {
			var acc idset
			for _, s := range succOf(id) {
				if acc == nil {
					acc = pdom[s].clone()
				} else {
					acc = intersect(acc, pdom[s])
				}
			}
			if acc == nil {
				acc = idset{}
			}
			acc[id] = true
			if !equalSets(acc, pdom[id]) {
				pdom[id] = acc
				changed = true
			}
		}
	}

	for _, id := range live {
		b := p.Block(id)
		ipdom := immediateOf(id, pdom[id], pdom)
		if ipdom != id {
			b.IPDom = ipdom
			b.HasIPDom = true
		} else {
			b.HasIPDom = false
		}
	}
}

// chainOf orders a dominator set into a root-to-b path by ascending
// size of each member's own dominator set, which is a total order in
// a reducible CFG (spec §4.2: "used for lexicographic closest common
// dominator lookup in CSE").
func chainOf(set idset, all map[uint16]idset) []uint16 {
	chain := make([]uint16, 0, len(set))
	for id := range set {
		chain = append(chain, id)
	}
	sortBySetSize(chain, all)
	return chain
}

func sortBySetSize(ids []uint16, all map[uint16]idset) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && len(all[ids[j-1]]) > len(all[ids[j]]); j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// immediateOf returns the unique dominator of id whose own dominator
// set has exactly one fewer element than id's (spec §4.2), or id
// itself if none exists (the root).
func immediateOf(id uint16, set idset, all map[uint16]idset) uint16 {
	want := len(set) - 1
	for cand := range set {
		if cand == id {
			continue
		}
		if len(all[cand]) == want {
			return cand
		}
	}
	return id
}

func liveBlocks(p *ir.Procedure) []uint16 {
	var out []uint16
	for _, b := range p.Blocks {
		if b.Live {
			out = append(out, b.ID)
		}
	}
	return out
}

// ClosestCommonDominator returns the deepest block dominating both a
// and b, by walking their ordered Dom chains in lockstep (spec §4.4.3).
func ClosestCommonDominator(p *ir.Procedure, a, b uint16) uint16 {
	ca, cb := p.Block(a).Dom, p.Block(b).Dom
	best := ca[0]
	for i := 0; i < len(ca) && i < len(cb); i++ {
		if ca[i] != cb[i] {
			break
		}
		best = ca[i]
	}
	return best
}
