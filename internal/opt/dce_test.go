package opt

import (
	"testing"

	"github.com/oisee/bjit/internal/ir"
)

func TestSweepDeadOpsRemovesUnusedConstant(t *testing.T) {
	b := ir.NewBuilder("k", "", 0, nil)
	dead := b.Lci(99)
	live := b.Lci(1)
	b.Iret(live)

	cfgSetup(b.P)
	DCE(b.P)

	if op := b.P.Op(dead); !op.IsNop() {
		t.Fatalf("unused constant should have been swept, got opcode %v", op.Opcode)
	}
}

func TestDegeneratePhiPropagates(t *testing.T) {
	b := ir.NewBuilder("k", "i", 0, nil)
	arg := b.Arg(0)

	l1 := b.NewLabel()
	b.Jmp(l1)
	b.Place(l1)
	v := b.GetSlot(1)
	b.Iret(v)

	cfgSetup(b.P)
	DCE(b.P)

	ret := b.P.Op(l1.Block.Ops[len(l1.Block.Ops)-1])
	if ret.In[0] != arg {
		t.Fatalf("single-predecessor phi slot should resolve to the incoming arg")
	}
}

func TestThreadJumpsSkipsEmptyForwardingBlock(t *testing.T) {
	b := ir.NewBuilder("k", "", 0, nil)
	mid := b.NewLabel()
	final := b.NewLabel()
	b.Jmp(mid)
	b.Place(mid)
	b.Jmp(final)
	b.Place(final)
	c := b.Lci(1)
	b.Iret(c)

	cfgSetup(b.P)
	// NewLabel gives every block one phi per slot; clear the degenerate
	// ones first so mid is a bare forwarding jump.
	propagateDegeneratePhis(b.P)
	if !threadJumps(b.P) {
		t.Fatalf("expected threadJumps to collapse the empty forwarding block")
	}
	entry := b.P.Block(0)
	last := b.P.Op(entry.Ops[len(entry.Ops)-1])
	if last.Label[0] != final.Block.ID {
		t.Fatalf("entry block should jump directly to final, got target %d want %d", last.Label[0], final.Block.ID)
	}
}

func cfgSetup(p *ir.Procedure) {
	markReachable(p)
}
