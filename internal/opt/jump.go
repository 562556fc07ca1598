package opt

import "github.com/oisee/bjit/internal/cfg"
import "github.com/oisee/bjit/internal/ir"

// JumpOpt implements spec §4.4.6's tail-duplication loop optimization:
// a small, phi-free block reached from more than one predecessor is
// cloned into each predecessor in place of the jump to it, trading
// code size for removing the indirection and giving each predecessor
// its own copy to fold/CSE independently. Cloned ops are marked NoOpt
// so a later CSE pass does not immediately re-merge the copies back
// into a single shared block, which would undo the duplication.
const maxDuplicateOps = 4

func JumpOpt(p *ir.Procedure) bool {
	changed := false
	for _, b := range append([]*ir.Block(nil), p.Blocks...) {
		if !b.Live || b.Synthetic || len(b.Phis) != 0 {
			continue
		}
		if len(b.ComeFrom) < 2 || len(b.Ops) == 0 || len(b.Ops) > maxDuplicateOps {
			continue
		}
		if hasSideEffect(p, b) {
			continue
		}
		preds := append([]uint16(nil), b.ComeFrom...)
		for _, pred := range preds {
			duplicateInto(p, b, pred)
			changed = true
		}
	}
	return changed
}

func hasSideEffect(p *ir.Procedure, b *ir.Block) bool {
	for _, id := range b.Ops {
		op := p.Op(id)
		info := ir.Info(op.Opcode)
		if info.SideEffect && !info.IsJump {
			return true
		}
	}
	return false
}

// duplicateInto clones block b's ops into pred, remapping operands
// that referred to b's own ops to the freshly cloned copies, then
// retargets pred's terminator from b to b's own successors.
func duplicateInto(p *ir.Procedure, b *ir.Block, pred uint16) {
	predBlk := p.Block(pred)
	if len(predBlk.Ops) == 0 {
		return
	}
	oldTerm := p.Op(predBlk.Ops[len(predBlk.Ops)-1])
	if !ir.Info(oldTerm.Opcode).IsJump {
		return
	}

	remap := map[ir.OpID]ir.OpID{}
	var clones []ir.OpID
	for _, id := range b.Ops {
		orig := p.Op(id)
		nid, err := p.Arena.New(orig.Opcode)
		if err != nil {
			return
		}
		n := p.Op(nid)
		*n = *orig
		n.Index = nid
		n.Block = pred
		n.NoOpt = true
		n.Reg = ir.NoReg
		n.SCC = -1
		remap[id] = nid
		clones = append(clones, nid)
	}
	for _, nid := range clones {
		n := p.Op(nid)
		if v, ok := remap[n.In[0]]; ok {
			n.In[0] = v
		}
		if v, ok := remap[n.In[1]]; ok {
			n.In[1] = v
		}
	}

	newTerm := p.Op(clones[len(clones)-1])
	var succs []uint16
	for _, lbl := range newTerm.Label {
		if lbl != ir.NoOp {
			succs = append(succs, lbl)
		}
	}

	predBlk.Ops = append(predBlk.Ops[:len(predBlk.Ops)-1], clones...)
	oldTerm.Opcode = ir.Nop

	for _, s := range succs {
		succBlk := p.Block(s)
		for i := range succBlk.Phis {
			alt := succBlk.Phis[i].AltFor(b.ID)
			if alt == nil {
				continue
			}
			v := alt.Value
			if rv, ok := remap[v]; ok {
				v = rv
			}
			succBlk.Phis[i].Alts = append(succBlk.Phis[i].Alts, ir.PhiAlt{FromBlock: pred, Value: v})
		}
	}

	cfg.RebuildComeFrom(p)
}
