package regalloc

import "github.com/oisee/bjit/internal/cfg"
import "github.com/oisee/bjit/internal/ir"

// scanOrder computes an approximate reverse-post-order over the live
// blocks (spec §4.5.3: "processed in live-scan (approximate reverse-
// post) order"), used both by SCC assignment and the per-block scan so
// a block's predecessors have always been visited - and so its
// register/class state is available to seed from - before it is.
func scanOrder(p *ir.Procedure) []uint16 {
	var post []uint16
	visited := make(map[uint16]bool)
	var visit func(id uint16)
	visit = func(id uint16) {
		if visited[id] || !p.Block(id).Live {
			return
		}
		visited[id] = true
		for _, s := range cfg.Successors(p, p.Block(id)) {
			visit(s)
		}
		post = append(post, id)
	}
	visit(0)
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}
