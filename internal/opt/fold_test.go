package opt

import (
	"testing"

	"github.com/oisee/bjit/internal/ir"
)

func TestFoldIntArithmetic(t *testing.T) {
	b := ir.NewBuilder("k", "", 0, nil)
	x := b.Lci(3)
	y := b.Lci(4)
	sum := b.Iadd(x, y)
	b.Iret(sum)

	for i := 0; i < 4 && Fold(b.P); i++ {
	}

	op := b.P.Op(sum)
	if op.Opcode != ir.Lci {
		t.Fatalf("sum opcode = %v, want lci", op.Opcode)
	}
	if int64(op.Imm64) != 7 {
		t.Fatalf("sum value = %d, want 7", int64(op.Imm64))
	}
}

func TestFoldDivideByZeroPreserved(t *testing.T) {
	b := ir.NewBuilder("k", "", 0, nil)
	x := b.Lci(5)
	zero := b.Lci(0)
	q := b.Idiv(x, zero)
	b.Iret(q)

	Fold(b.P)

	op := b.P.Op(q)
	if op.Opcode != ir.Idiv {
		t.Fatalf("division by a constant zero must not be folded away, got %v", op.Opcode)
	}
}

func TestStrengthReduceAddZero(t *testing.T) {
	b := ir.NewBuilder("k", "i", 0, nil)
	arg := b.Arg(0)
	zero := b.Lci(0)
	sum := b.Iadd(arg, zero)
	b.Iret(sum)

	Fold(b.P)

	op := b.P.Op(sum)
	if op.Opcode != ir.Rename || op.In[0] != arg {
		t.Fatalf("x+0 should reduce to a rename of x, got opcode=%v in0=%v", op.Opcode, op.In[0])
	}
}

func TestFoldDoubleArithmetic(t *testing.T) {
	b := ir.NewBuilder("k", "", 0, nil)
	x := b.Lcd(1.5)
	y := b.Lcd(2.5)
	sum := b.Dadd(x, y)
	b.Dret(sum)

	Fold(b.P)

	op := b.P.Op(sum)
	if op.Opcode != ir.Lcd {
		t.Fatalf("sum opcode = %v, want lcd", op.Opcode)
	}
}
