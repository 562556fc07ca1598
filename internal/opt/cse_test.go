package opt

import (
	"testing"

	"github.com/oisee/bjit/internal/cfg"
	"github.com/oisee/bjit/internal/ir"
)

func TestCSEMergesIdenticalAdds(t *testing.T) {
	b := ir.NewBuilder("k", "ii", 0, nil)
	x, y := b.Arg(0), b.Arg(1)
	s1 := b.Iadd(x, y)
	s2 := b.Iadd(x, y)
	sum := b.Iadd(s1, s2)
	b.Iret(sum)

	cfg.RebuildComeFrom(b.P)
	cfg.ComputeDominators(b.P)

	if !CSE(b.P) {
		t.Fatalf("expected CSE to find the duplicate add")
	}
	op2 := b.P.Op(s2)
	if op2.Opcode != ir.Rename || op2.In[0] != s1 {
		t.Fatalf("s2 should rename to s1, got opcode=%v in0=%v", op2.Opcode, op2.In[0])
	}
}

func TestCSECommutativeOperandOrder(t *testing.T) {
	b := ir.NewBuilder("k", "ii", 0, nil)
	x, y := b.Arg(0), b.Arg(1)
	s1 := b.Iadd(x, y)
	s2 := b.Iadd(y, x)
	b.Iret(b.Iadd(s1, s2))

	cfg.RebuildComeFrom(b.P)
	cfg.ComputeDominators(b.P)

	if !CSE(b.P) {
		t.Fatalf("x+y and y+x should be recognized as the same expression")
	}
}
