package opt

import (
	"testing"

	"github.com/oisee/bjit/internal/ir"
)

func TestCanonicalizeOperandsMovesConstantRight(t *testing.T) {
	b := ir.NewBuilder("k", "i", 0, nil)
	arg := b.Arg(0)
	c := b.Lci(5)
	sum := b.Iadd(c, arg)
	b.Iret(sum)

	op := b.P.Op(sum)
	if op.In[0] != c {
		t.Fatalf("setup check: expected the constant to start on the left")
	}
	if !canonicalizeOperands(b.P, op) {
		t.Fatalf("expected canonicalizeOperands to report a swap")
	}
	if op.In[0] != arg || op.In[1] != c {
		t.Fatalf("constant should now be on the right: in0=%v in1=%v", op.In[0], op.In[1])
	}
}

func TestCollapseChainCombinesConstants(t *testing.T) {
	b := ir.NewBuilder("k", "i", 0, nil)
	arg := b.Arg(0)
	c1 := b.Lci(2)
	c2 := b.Lci(3)
	inner := b.Iadd(arg, c1)
	outer := b.Iadd(inner, c2)
	b.Iret(outer)

	op := b.P.Op(outer)
	if !collapseChain(b.P, op) {
		t.Fatalf("expected (arg+2)+3 to collapse into arg+5")
	}
	if op.In[0] != arg {
		t.Fatalf("outer left operand should now be arg directly, got %v", op.In[0])
	}
	rhs := b.P.Op(op.In[1])
	if rhs.Opcode != ir.Lci || int64(rhs.Imm64) != 5 {
		t.Fatalf("combined constant should be 5, got opcode=%v value=%d", rhs.Opcode, int64(rhs.Imm64))
	}
}
