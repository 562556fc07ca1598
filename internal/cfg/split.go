package cfg

import "github.com/oisee/bjit/internal/ir"

// SplitCriticalEdges inserts a fresh jmp-only block on every edge that
// runs from a block with multiple successors into a block with
// multiple predecessors (spec §4.2). Call RebuildComeFrom and
// ComputeDominators again afterward; the new block inherits live=true
// so a single extra pass of both suffices.
func SplitCriticalEdges(p *ir.Procedure) bool {
	type edge struct {
		from, to uint16
	}
	var toSplit []edge

	for _, b := range p.Blocks {
		if !b.Live || len(b.Ops) == 0 {
			continue
		}
		last := p.Op(b.Ops[len(b.Ops)-1])
		if !ir.Info(last.Opcode).IsJump {
			continue
		}
		succs := Successors(p, b)
		if len(succs) < 2 {
			continue
		}
		for _, s := range succs {
			if len(p.Block(s).ComeFrom) >= 2 {
				toSplit = append(toSplit, edge{b.ID, s})
			}
		}
	}

	if len(toSplit) == 0 {
		return false
	}

	for _, e := range toSplit {
		splitEdge(p, e.from, e.to)
	}
	return true
}

// splitEdge inserts a new block on from->to containing a single jmp to
// to, rewriting from's terminator label and to's come-from/phi sources
// to point at the new block.
func splitEdge(p *ir.Procedure, from, to uint16) {
	nb := p.AddBlock()
	nb.Synthetic = true

	fromBlk := p.Block(from)
	lastID := fromBlk.Ops[len(fromBlk.Ops)-1]
	last := p.Op(lastID)
	for i := range last.Label {
		if last.Label[i] == to {
			last.Label[i] = nb.ID
		}
	}

	jmpID, err := p.Arena.New(ir.Jmp)
	if err != nil {
		panic(err)
	}
	jop := p.Op(jmpID)
	jop.Block = nb.ID
	jop.Label[0] = to
	jop.Label[1] = ir.NoOp
	nb.AddOp(jmpID)
	nb.ComeFrom = []uint16{from}

	toBlk := p.Block(to)
	toBlk.RemoveComeFrom(from)
	toBlk.ComeFrom = append(toBlk.ComeFrom, nb.ID)
	for i := range toBlk.Phis {
		alt := toBlk.Phis[i].AltFor(from)
		if alt != nil {
			alt.FromBlock = nb.ID
		}
	}
}
