package cfg

import "github.com/oisee/bjit/internal/ir"

// SchedulePostorder computes the block emission order spec §4.6 calls
// for: a depth-first walk starting at block 0 that threads each
// terminator's first live successor immediately after it whenever that
// successor has not already been placed, so each block's first jump
// target is usually laid out right after it. Any live block DCE
// left unreached from block 0 (should not occur in a well-formed
// procedure, but emit.go must still place its code somewhere) is
// appended afterward in id order.
func SchedulePostorder(p *ir.Procedure) []uint16 {
	var order []uint16
	visited := make(map[uint16]bool)
	var visit func(id uint16)
	visit = func(id uint16) {
		if visited[id] || !p.Block(id).Live {
			return
		}
		visited[id] = true
		order = append(order, id)
		for _, s := range Successors(p, p.Block(id)) {
			visit(s)
		}
	}
	visit(0)
	for _, b := range p.Blocks {
		if b.Live && !visited[b.ID] {
			visit(b.ID)
		}
	}
	return order
}
