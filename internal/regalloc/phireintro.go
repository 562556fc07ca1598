package regalloc

import "github.com/oisee/bjit/internal/cfg"
import "github.com/oisee/bjit/internal/ir"

// reintroducePhis implements spec §4.5.2: every live-in value of every
// block is replaced, inside that block only, by a freshly materialized
// phi whose alternatives are the original value from every
// predecessor. This guarantees all cross-block value flow the scan
// sees is expressed as a phi, so the per-block scan (scan.go) never
// has to reason about a value arriving from "elsewhere" mid-block.
func reintroducePhis(p *ir.Procedure) {
	for _, b := range p.Blocks {
		if !b.Live || len(b.LiveIn) == 0 {
			continue
		}
		fresh := make(map[ir.OpID]ir.OpID, len(b.LiveIn))
		for v := range b.LiveIn {
			orig := p.Op(v)
			nid, err := p.Arena.New(ir.Phi)
			if err != nil {
				panic(err)
			}
			n := p.Op(nid)
			n.Block = b.ID
			n.Type = orig.Type
			alts := make([]ir.PhiAlt, 0, len(b.ComeFrom))
			for _, pred := range b.ComeFrom {
				alts = append(alts, ir.PhiAlt{FromBlock: pred, Value: v})
			}
			b.Phis = append(b.Phis, ir.Phi{Dest: nid, Alts: alts})
			fresh[v] = nid
		}
		rewriteBlockUses(p, b, fresh)
	}
	cfg.RebuildComeFrom(p)
}

// rewriteBlockUses replaces every reference to a remapped value within
// b's own straight-line ops (not other blocks, and not other blocks'
// phi alternatives, which still correctly name the original value).
func rewriteBlockUses(p *ir.Procedure, b *ir.Block, remap map[ir.OpID]ir.OpID) {
	for _, id := range b.Ops {
		op := p.Op(id)
		if op.IsNop() {
			continue
		}
		info := ir.Info(op.Opcode)
		for k := 0; k < 2; k++ {
			if nv, ok := remap[op.In[k]]; ok {
				op.In[k] = nv
			}
		}
		if info.NIn == 3 {
			if nv, ok := remap[op.Label[0]]; ok {
				op.Label[0] = nv
			}
		}
	}
}
