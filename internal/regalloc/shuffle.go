package regalloc

import "github.com/oisee/bjit/internal/cfg"
import "github.com/oisee/bjit/internal/ir"

// move describes one value that must end up in register dest by the
// time control reaches the successor, given where it currently lives
// in the predecessor (src, or a spill slot if the value has no
// register at all there).
type move struct {
	value       ir.OpID
	typ         ir.Type
	dest        ir.Reg
	src         ir.Reg // NoReg if needsReload
	needsReload bool
	scc         int32
}

// insertEdgeShuffles implements spec §4.5.5: for every predecessor
// whose recorded RegsOut disagrees with a successor's phi-implied
// RegsIn, a synthetic block of rename/reload ops is spliced onto that
// edge to realize the permutation, and the successor's phi
// alternative for that edge is redirected to the new block's output.
func insertEdgeShuffles(p *ir.Procedure, cfg_ Config) bool {
	changed := false
	for _, succ := range append([]*ir.Block(nil), p.Blocks...) {
		if !succ.Live || len(succ.Phis) == 0 {
			continue
		}
		for _, pred := range append([]uint16(nil), succ.ComeFrom...) {
			predBlk := p.Block(pred)
			moves := collectMoves(p, predBlk, succ, pred)
			if len(moves) == 0 {
				continue
			}
			buildShuffle(p, predBlk, succ, pred, moves, cfg_)
			changed = true
		}
	}
	if changed {
		cfg.RebuildComeFrom(p)
	}
	return changed
}

func collectMoves(p *ir.Procedure, pred, succ *ir.Block, predID uint16) []move {
	var moves []move
	for pi := range succ.Phis {
		ph := &succ.Phis[pi]
		alt := ph.AltFor(predID)
		if alt == nil || alt.Value == ir.NoOp {
			continue
		}
		dest := p.Op(ph.Dest)
		src := p.Op(alt.Value)
		if dest.Reg == ir.NoReg {
			continue
		}
		srcReg, resident := regHeldIn(pred, alt.Value)
		if resident && srcReg == dest.Reg {
			continue
		}
		m := move{value: alt.Value, typ: dest.Type, dest: dest.Reg, scc: src.SCC}
		if resident {
			m.src = srcReg
		} else {
			m.needsReload = true
			src.Spill = true
		}
		moves = append(moves, m)
	}
	return moves
}

func regHeldIn(b *ir.Block, v ir.OpID) (ir.Reg, bool) {
	for r, holder := range b.RegsOut {
		if holder == v {
			return r, true
		}
	}
	return ir.NoReg, false
}

// buildShuffle splices a synthetic block onto pred->succ containing
// the ops realizing moves, then redirects succ's phi alternatives for
// that edge to the new block.
func buildShuffle(p *ir.Procedure, pred, succ *ir.Block, predID uint16, moves []move, cfg_ Config) {
	nb := p.AddBlock()
	nb.Synthetic = true

	last := p.Op(pred.Ops[len(pred.Ops)-1])
	for i := range last.Label {
		if last.Label[i] == succ.ID {
			last.Label[i] = nb.ID
		}
	}

	produced := map[ir.OpID]ir.OpID{} // original value -> the shuffle block's forwarding op
	for _, id := range sequence(p, nb, moves, cfg_) {
		produced[id.value] = id.forward
	}
	// nb ends holding what pred held, with each move's destination now
	// holding the forwarded value, so a later round finds this edge settled.
	nb.RegsOut = make(map[ir.Reg]ir.OpID, len(pred.RegsOut)+len(moves))
	for r, v := range pred.RegsOut {
		nb.RegsOut[r] = v
	}
	for _, m := range moves {
		nb.RegsOut[m.dest] = produced[m.value]
	}

	jmpID, err := p.Arena.New(ir.Jmp)
	if err != nil {
		panic(err)
	}
	jop := p.Op(jmpID)
	jop.Block = nb.ID
	jop.Label[0] = succ.ID
	nb.AddOp(jmpID)
	nb.ComeFrom = []uint16{predID}

	for pi := range succ.Phis {
		alt := succ.Phis[pi].AltFor(predID)
		if alt == nil {
			continue
		}
		alt.FromBlock = nb.ID
		if fwd, ok := produced[alt.Value]; ok {
			alt.Value = fwd
		}
	}
}

type forwarded struct {
	value   ir.OpID
	forward ir.OpID
}

// sequence realizes moves in nb, returning for each the id of the op
// that now holds the value in its destination register.
func sequence(p *ir.Procedure, nb *ir.Block, moves []move, cfg_ Config) []forwarded {
	var out []forwarded
	var direct, reg []move
	for _, m := range moves {
		if m.needsReload {
			direct = append(direct, m)
		} else if m.src != m.dest {
			reg = append(reg, m)
		}
	}
	for _, m := range direct {
		out = append(out, forwarded{m.value, emitReload(p, nb, m)})
	}
	out = append(out, sequenceRegMoves(p, nb, reg, cfg_)...)
	return out
}

func sequenceRegMoves(p *ir.Procedure, nb *ir.Block, moves []move, cfg_ Config) []forwarded {
	var out []forwarded
	remaining := moves
	for len(remaining) > 0 {
		progressed := false
		var next []move
		for _, m := range remaining {
			if destFree(m.dest, remaining) {
				out = append(out, forwarded{m.value, emitRename(p, nb, m)})
				progressed = true
			} else {
				next = append(next, m)
			}
		}
		remaining = next
		if progressed {
			continue
		}
		// only cycles remain; break one using a scratch register if the
		// pool has one not already claimed as a pending src or dest.
		used := ir.RegMask(0)
		for _, m := range remaining {
			used = used.With(m.src).With(m.dest)
		}
		pool := cfg_.poolFor(remaining[0].typ)
		scratch := pool.Intersect(used.Complement()).First()
		if scratch == ir.NoReg {
			// no room to break the cycle cleanly; apply in order as a
			// best-effort sequence (may transiently clobber a source).
			for _, m := range remaining {
				out = append(out, forwarded{m.value, emitRename(p, nb, m)})
			}
			return out
		}
		head := remaining[0]
		out = append(out, forwarded{head.value, emitRename(p, nb, move{value: head.value, typ: head.typ, dest: scratch, src: head.src})})
		remaining[0].src = scratch
	}
	return out
}

func destFree(dest ir.Reg, pending []move) bool {
	for _, m := range pending {
		if m.src == dest {
			return false
		}
	}
	return true
}

func emitRename(p *ir.Procedure, nb *ir.Block, m move) ir.OpID {
	id, err := p.Arena.New(ir.Rename)
	if err != nil {
		panic(err)
	}
	op := p.Op(id)
	op.Block = nb.ID
	op.Type = m.typ
	op.In[0] = m.value
	op.Reg = m.dest
	op.SCC = -1
	nb.AddOp(id)
	return id
}

func emitReload(p *ir.Procedure, nb *ir.Block, m move) ir.OpID {
	id, err := p.Arena.New(ir.Reload)
	if err != nil {
		panic(err)
	}
	op := p.Op(id)
	op.Block = nb.ID
	op.Type = m.typ
	op.Reg = m.dest
	op.SCC = m.scc
	nb.AddOp(id)
	return id
}
