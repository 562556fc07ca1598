package opt

import (
	"testing"

	"github.com/oisee/bjit/internal/cfg"
	"github.com/oisee/bjit/internal/ir"
)

func TestSinkMovesSoleUseConstant(t *testing.T) {
	b := ir.NewBuilder("k", "i", 0, nil)
	cond := b.Arg(0)
	c := b.Lci(7)

	thenL := b.NewLabel()
	elseL := b.NewLabel()
	b.Jnz(cond, thenL, elseL)

	b.Place(thenL)
	sum := b.Iadd(cond, c)
	b.Iret(sum)

	b.Place(elseL)
	b.Iret(cond)

	cfg.RebuildComeFrom(b.P)
	cfg.ComputeDominators(b.P)

	if b.P.Op(c).Block == thenL.Block.ID {
		t.Fatalf("constant should start in the entry block")
	}
	if !Sink(b.P) {
		t.Fatalf("expected the constant, used only in the then-branch, to sink")
	}
	if b.P.Op(c).Block != thenL.Block.ID {
		t.Fatalf("constant should have sunk into the then-branch, got block %d", b.P.Op(c).Block)
	}
}
