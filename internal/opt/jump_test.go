package opt

import (
	"testing"

	"github.com/oisee/bjit/internal/cfg"
	"github.com/oisee/bjit/internal/ir"
)

func TestJumpOptDuplicatesSharedTail(t *testing.T) {
	b := ir.NewBuilder("k", "i", 0, nil)
	cond := b.Arg(0)

	tail := b.NewLabel()
	thenL := b.NewLabel()
	elseL := b.NewLabel()
	b.Jnz(cond, thenL, elseL)

	// Both arms perform a store (a side effect) before reaching the
	// shared tail, so threadJumps does not collapse the first hop away.
	b.Place(thenL)
	b.Si32(cond, 0, cond)
	b.Jmp(tail)

	b.Place(elseL)
	b.Si32(cond, 4, cond)
	b.Jmp(tail)

	b.Place(tail)
	one := b.Lci(1)
	b.Iret(one)

	cfg.RebuildComeFrom(b.P)
	cfg.ComputeDominators(b.P)
	DCE(b.P) // collapses tail's degenerate unchanged-value phis to nothing

	if !JumpOpt(b.P) {
		t.Fatalf("expected the shared one-op tail to be duplicated into both predecessors")
	}

	for _, bid := range []uint16{thenL.Block.ID, elseL.Block.ID} {
		blk := b.P.Block(bid)
		if len(blk.Ops) == 0 {
			t.Fatalf("block %d lost its ops", bid)
		}
		last := b.P.Op(blk.Ops[len(blk.Ops)-1])
		if last.Opcode != ir.Iret {
			t.Fatalf("block %d should end with its own duplicated iret, got %v", bid, last.Opcode)
		}
	}
}
