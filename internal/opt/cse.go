package opt

import (
	"fmt"

	"github.com/oisee/bjit/internal/cfg"
	"github.com/oisee/bjit/internal/ir"
)

// CSE implements spec §4.4.3: global common subexpression elimination.
// Ops sharing an opcode, operands and immediate are grouped; each
// group collapses to a single representative placed in the closest
// common dominator of every member's block, ordered before any member
// originally placed there, and every other occurrence is rewritten to
// a Rename of the representative. Requires Block.Dom chains to already
// be computed (internal/cfg.ComputeDominators).
func CSE(p *ir.Procedure) bool {
	groups := map[string][]ir.OpID{}
	for _, b := range p.Blocks {
		if !b.Live {
			continue
		}
		for _, id := range b.Ops {
			op := p.Op(id)
			if op.IsNop() || op.NoOpt {
				continue
			}
			if !ir.Info(op.Opcode).CSEable {
				continue
			}
			key := cseKey(op)
			groups[key] = append(groups[key], id)
		}
	}

	changed := false
	for _, ids := range groups {
		if len(ids) < 2 {
			continue
		}
		rep := ids[0]
		for _, id := range ids[1:] {
			rep = mergeClosest(p, rep, id)
		}
		for _, id := range ids {
			if id == rep {
				continue
			}
			op := p.Op(id)
			op.Opcode = ir.Rename
			op.In[0] = rep
			op.In[1] = ir.NoOp
			changed = true
		}
	}
	return changed
}

// cseKey identifies operand-and-opcode-equivalent ops. Commutative ops
// are keyed with their operands in canonical (sorted) order so a+b and
// b+a land in the same group.
func cseKey(op *ir.Op) string {
	in0, in1 := op.In[0], op.In[1]
	if ir.Info(op.Opcode).Commutes && in1 != ir.NoOp && in1 < in0 {
		in0, in1 = in1, in0
	}
	return fmt.Sprintf("%d|%d|%d|%d|%d", op.Opcode, in0, in1, op.Imm32, op.Imm64)
}

// mergeClosest adds id to rep's group and returns the group's
// representative: id itself when it already sits in the closest common
// dominator of both blocks ahead of rep, otherwise rep, moved to that
// dominator when it is strictly shallower than rep's current block.
// CSE renames every other member to the returned representative.
func mergeClosest(p *ir.Procedure, rep, id ir.OpID) ir.OpID {
	repOp, idOp := p.Op(rep), p.Op(id)
	target := cfg.ClosestCommonDominator(p, repOp.Block, idOp.Block)
	if target == idOp.Block {
		if target != repOp.Block {
			return id
		}
		for _, x := range p.Block(target).Ops {
			if x == id {
				return id
			}
			if x == rep {
				break
			}
		}
		return rep
	}
	if target != repOp.Block {
		moveOp(p, rep, target)
	}
	return rep
}

// moveOp relocates op to the end of dest's instruction list, just
// before its terminator if it has one, removing it from its current
// block.
func moveOp(p *ir.Procedure, id ir.OpID, dest uint16) {
	op := p.Op(id)
	src := p.Block(op.Block)
	out := src.Ops[:0]
	for _, x := range src.Ops {
		if x != id {
			out = append(out, x)
		}
	}
	src.Ops = out

	db := p.Block(dest)
	if n := len(db.Ops); n > 0 && ir.Info(p.Op(db.Ops[n-1]).Opcode).IsJump {
		db.Ops = append(db.Ops[:n-1], append([]ir.OpID{id}, db.Ops[n-1:]...)...)
	} else {
		db.Ops = append(db.Ops, id)
	}
	op.Block = dest
}
