package opt

import (
	"testing"

	"github.com/oisee/bjit/internal/ir"
)

// TestRunFoldsStraightLineArithmetic exercises the full driver on a
// procedure whose result is a compile-time constant once folding, CSE
// and dead code elimination all run to a fixed point.
func TestRunFoldsStraightLineArithmetic(t *testing.T) {
	b := ir.NewBuilder("k", "", 0, nil)
	x := b.Lci(2)
	y := b.Lci(3)
	sum := b.Iadd(x, y)
	dup := b.Iadd(x, y)
	total := b.Iadd(sum, dup)
	b.Iret(total)

	Run(b.P)

	if err := ir.Verify(b.P); err != nil {
		t.Fatalf("Verify failed after optimization: %v", err)
	}

	entry := b.P.Block(0)
	last := b.P.Op(entry.Ops[len(entry.Ops)-1])
	if last.Opcode != ir.Iret {
		t.Fatalf("expected the block to still end in iret, got %v", last.Opcode)
	}
	ret := b.P.Op(last.In[0])
	if ret.Opcode != ir.Lci {
		t.Fatalf("fully constant arithmetic should fold to a single lci, got %v", ret.Opcode)
	}
	if int64(ret.Imm64) != 10 {
		t.Fatalf("2+3 + 2+3 should fold to 10, got %d", int64(ret.Imm64))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	b := ir.NewBuilder("k", "i", 0, nil)
	arg := b.Arg(0)
	cond := b.Cieq(arg, b.Lci(0))
	thenL := b.NewLabel()
	elseL := b.NewLabel()
	b.Jnz(cond, thenL, elseL)
	b.Place(thenL)
	b.Iret(b.Lci(1))
	b.Place(elseL)
	b.Iret(arg)

	Run(b.P)
	before := b.P.Dump()
	Run(b.P)
	after := b.P.Dump()
	if before != after {
		t.Fatalf("a second Run should be a no-op once fixed point is reached:\nbefore:\n%s\nafter:\n%s", before, after)
	}
}
