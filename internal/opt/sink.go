package opt

import "github.com/oisee/bjit/internal/ir"

// Sink implements spec §4.4.4: code sinking. A movable op (typically a
// hoisted constant or CSE representative) whose every use lives in a
// single block other than its own definition block is relocated next
// to that block, so values only needed down one side of a branch stop
// paying for registers/slots on the other side.
func Sink(p *ir.Procedure) bool {
	changed := false
	for _, b := range p.Blocks {
		if !b.Live {
			continue
		}
		for _, id := range append([]ir.OpID(nil), b.Ops...) {
			op := p.Op(id)
			if op.IsNop() || op.NoOpt || op.NUse == 0 {
				continue
			}
			if !ir.Info(op.Opcode).Movable {
				continue
			}
			dest, ok := soleUseBlock(p, id)
			if !ok || dest == op.Block {
				continue
			}
			moveOp(p, id, dest)
			changed = true
		}
	}
	return changed
}

// soleUseBlock returns the single block every use of id lives in, and
// whether such a block exists (false if id has uses in more than one
// block, or a use is a phi alternative, which pins the value to the
// edge rather than a single block).
func soleUseBlock(p *ir.Procedure, id ir.OpID) (uint16, bool) {
	var found uint16
	have := false
	for _, b := range p.Blocks {
		if !b.Live {
			continue
		}
		for _, ph := range b.Phis {
			for _, alt := range ph.Alts {
				if alt.Value == id {
					return 0, false
				}
			}
		}
		for _, opid := range b.Ops {
			op := p.Op(opid)
			if op.IsNop() {
				continue
			}
			info := ir.Info(op.Opcode)
			uses := op.In[0] == id || op.In[1] == id
			if info.NIn == 3 && op.Label[0] == id {
				uses = true
			}
			if !uses {
				continue
			}
			if have && found != b.ID {
				return 0, false
			}
			found, have = b.ID, true
		}
	}
	return found, have
}
