package regalloc

import "github.com/oisee/bjit/internal/ir"

// removeIdentityRenames implements spec §4.5.6's closing sentence: "a
// final DCE removes renames that turned out identity." Only a rename
// whose output register matches its source's register is a true
// no-op; any other rename changed something real (which register, or
// moved a value out of a spill slot) and must survive into emission.
func removeIdentityRenames(p *ir.Procedure) bool {
	changed := false
	n := p.Arena.Len()
	for i := 0; i < n; i++ {
		id := ir.OpID(i)
		op := p.Op(id)
		if op.Opcode != ir.Rename {
			continue
		}
		src := op.In[0]
		if src == ir.NoOp || p.Op(src).Reg != op.Reg {
			continue
		}
		replaceUses(p, id, src)
		op.Opcode = ir.Nop
		changed = true
	}
	return changed
}

func replaceUses(p *ir.Procedure, old, new ir.OpID) {
	n := p.Arena.Len()
	for i := 0; i < n; i++ {
		op := p.Op(ir.OpID(i))
		if op.IsNop() {
			continue
		}
		if op.In[0] == old {
			op.In[0] = new
		}
		if op.In[1] == old {
			op.In[1] = new
		}
		if ir.Info(op.Opcode).NIn == 3 && op.Label[0] == old {
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
