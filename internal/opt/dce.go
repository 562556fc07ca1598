// Package opt implements the classic optimizer passes of spec §4.4:
// dead code elimination, constant folding/strength reduction, global
// common subexpression elimination, code sinking, reassociation, and
// jump optimization. Each pass is grounded on the original
// implementation's equivalent optimizer source and reports progress as
// a boolean so the driver can iterate passes to a fixed point.
package opt

import "github.com/oisee/bjit/internal/cfg"
import "github.com/oisee/bjit/internal/ir"
import "github.com/oisee/bjit/internal/live"

// DCE runs one round of dead code elimination (spec §4.4.1): it marks
// reachable blocks, threads jumps through empty blocks, collapses
// conditional jumps whose two targets coincide, replaces degenerate
// single-alternative phis with their value, and sweeps ops with a zero
// use count. It reports whether anything changed.
func DCE(p *ir.Procedure) bool {
	changed := false

	if markReachable(p) {
		changed = true
	}
	cfg.RebuildComeFrom(p)

	if threadJumps(p) {
		changed = true
		markReachable(p)
		cfg.RebuildComeFrom(p)
	}

	if collapseSameTargetBranches(p) {
		changed = true
		cfg.RebuildComeFrom(p)
	}

	if propagateDegeneratePhis(p) {
		changed = true
	}

	if resolveRenames(p) {
		changed = true
	}

	if sweepDeadOps(p) {
		changed = true
	}

	if changed {
		cfg.RebuildComeFrom(p)
		live.Scan(p)
	}
	return changed
}

// markReachable walks the jump graph from block 0 independent of
// ComeFrom (which may be stale) and sets Block.Live accordingly,
// returning whether any block's liveness flipped.
func markReachable(p *ir.Procedure) bool {
	seen := make([]bool, p.NumBlocks())
	var stack []uint16
	if p.NumBlocks() > 0 {
		stack = append(stack, 0)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		blk := p.Block(id)
		if len(blk.Ops) == 0 {
			continue
		}
		last := p.Op(blk.Ops[len(blk.Ops)-1])
		if !ir.Info(last.Opcode).IsJump {
			continue
		}
		for _, lbl := range last.Label {
			if lbl != ir.NoOp && !seen[lbl] {
				stack = append(stack, lbl)
			}
		}
	}

	changed := false
	for i := 0; i < p.NumBlocks(); i++ {
		blk := p.Block(uint16(i))
		if blk.Live != seen[i] {
			blk.Live = seen[i]
			changed = true
		}
	}
	return changed
}

// threadJumps rewrites a jump targeting a block whose only content is
// a single unconditional jmp to target that jmp's destination instead,
// repairing the skipped block's phi alternatives at the new target.
func threadJumps(p *ir.Procedure) bool {
	changed := false
	for _, b := range p.Blocks {
		if !b.Live || len(b.Ops) == 0 || b.Synthetic {
			continue
		}
		last := p.Op(b.Ops[len(b.Ops)-1])
		info := ir.Info(last.Opcode)
		if !info.IsJump {
			continue
		}
		for li, lbl := range last.Label {
			if lbl == ir.NoOp {
				continue
			}
			mid := p.Block(lbl)
			if mid.ID == b.ID || len(mid.Phis) > 0 || len(mid.Ops) != 1 {
				continue
			}
			jmp := p.Op(mid.Ops[0])
			if jmp.Opcode != ir.Jmp || jmp.Label[0] == mid.ID {
				continue
			}
			final := jmp.Label[0]
			finalBlk := p.Block(final)
			for pi := range finalBlk.Phis {
				alt := finalBlk.Phis[pi].AltFor(mid.ID)
				if alt != nil {
					alt.FromBlock = b.ID
				}
			}
			last.Label[li] = final
			changed = true
		}
	}
	return changed
}

// collapseSameTargetBranches rewrites a conditional jump whose two
// label slots name the same block into a plain jmp; the resulting
// duplicate come-from/phi-alternative entries are pruned by the next
// cfg.RebuildComeFrom.
func collapseSameTargetBranches(p *ir.Procedure) bool {
	changed := false
	for _, b := range p.Blocks {
		if !b.Live || len(b.Ops) == 0 {
			continue
		}
		last := p.Op(b.Ops[len(b.Ops)-1])
		info := ir.Info(last.Opcode)
		if !info.IsJump || last.Opcode == ir.Jmp {
			continue
		}
		if last.Label[0] != ir.NoOp && last.Label[0] == last.Label[1] {
			last.Opcode = ir.Jmp
			last.In[0] = ir.NoOp
			last.In[1] = ir.NoOp
			last.Label[1] = ir.NoOp
			changed = true
		}
	}
	return changed
}

// propagateDegeneratePhis replaces every phi with exactly one distinct
// alternative value with that value at every use, tombstoning the phi
// itself; it iterates to a local fixed point since resolving one phi
// can make another degenerate.
func propagateDegeneratePhis(p *ir.Procedure) bool {
	changed := false
	for again := true; again; {
		again = false
		for _, b := range p.Blocks {
			if !b.Live {
				continue
			}
			kept := b.Phis[:0]
			for _, ph := range b.Phis {
				val, ok := soleAlt(&ph)
				if !ok {
					kept = append(kept, ph)
					continue
				}
				replaceAllUses(p, ph.Dest, val)
				p.Op(ph.Dest).Opcode = ir.Nop
				changed = true
				again = true
			}
			b.Phis = kept
		}
	}
	return changed
}

// soleAlt returns the single distinct value among ph's alternatives
// and true, or false if there is more than one distinct value (or
// none are materialized yet).
func soleAlt(ph *ir.Phi) (ir.OpID, bool) {
	if len(ph.Alts) == 0 {
		return ir.NoOp, false
	}
	val := ph.Alts[0].Value
	for _, alt := range ph.Alts[1:] {
		if alt.Value != val {
			return ir.NoOp, false
		}
	}
	if val == ph.Dest {
		return ir.NoOp, false
	}
	return val, true
}

// replaceAllUses rewrites every reference to old across the procedure
// (op inputs, the third-operand field carried in Label[0] on 3-input
// ops, and phi alternatives) to new.
func replaceAllUses(p *ir.Procedure, old, new ir.OpID) {
	for i := range p.Arena.All() {
		op := p.Op(ir.OpID(i))
		if op.IsNop() {
			continue
		}
		info := ir.Info(op.Opcode)
		for k := 0; k < 2; k++ {
			if op.In[k] == old {
				op.In[k] = new
			}
		}
		if info.NIn == 3 && op.Label[0] == old {
			op.Label[0] = new
		}
	}
	for _, b := range p.Blocks {
		for pi := range b.Phis {
			for ai := range b.Phis[pi].Alts {
				if b.Phis[pi].Alts[ai].Value == old {
					b.Phis[pi].Alts[ai].Value = new
				}
			}
		}
	}
}

// resolveRenames propagates every Rename op (the forwarding stub Fold
// and CSE leave behind for a strength-reduced or commoned value) to
// its ultimate non-Rename target at every use site, then tombstones
// the Rename itself so later passes see the real producer directly.
func resolveRenames(p *ir.Procedure) bool {
	changed := false
	n := p.Arena.Len()
	for i := 0; i < n; i++ {
		id := ir.OpID(i)
		if p.Op(id).Opcode != ir.Rename {
			continue
		}
		dst := id
		for p.Op(dst).Opcode == ir.Rename {
			dst = p.Op(dst).In[0]
		}
		replaceAllUses(p, id, dst)
		p.Op(id).Opcode = ir.Nop
		changed = true
	}
	return changed
}

// sweepDeadOps tombstones every op with a zero use count that has no
// side effect, iterating to a fixed point since removing one op's use
// can make its own inputs dead in turn.
func sweepDeadOps(p *ir.Procedure) bool {
	changed := false
	for again := true; again; {
		again = false
		for _, b := range p.Blocks {
			if !b.Live {
				continue
			}
			kept := b.Ops[:0]
			for _, id := range b.Ops {
				op := p.Op(id)
				if op.IsNop() {
					continue
				}
				info := ir.Info(op.Opcode)
				if op.NUse == 0 && !info.SideEffect && !info.IsJump {
					for k := 0; k < 2; k++ {
						if op.In[k] != ir.NoOp {
							p.Op(op.In[k]).NUse--
						}
					}
					if info.NIn == 3 && op.Label[0] != ir.NoOp {
						p.Op(op.Label[0]).NUse--
					}
					op.Opcode = ir.Nop
					changed = true
					again = true
					continue
				}
				kept = append(kept, id)
			}
			b.Ops = kept
		}
	}
	return changed
}
