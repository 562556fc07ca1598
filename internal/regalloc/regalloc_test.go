package regalloc

import (
	"testing"

	"github.com/oisee/bjit/internal/cfg"
	"github.com/oisee/bjit/internal/ir"
	"github.com/oisee/bjit/internal/live"
)

func testConfig() Config {
	return Config{
		IntRegs:       ir.Bit(0).With(1).With(2).With(3),
		FloatRegs:     ir.Bit(4).With(5),
		CallClobbered: ir.Bit(0).With(1),
	}
}

func prep(p *ir.Procedure) {
	cfg.RebuildComeFrom(p)
	cfg.ComputeDominators(p)
	live.Scan(p)
}

func TestAllocateStraightLineAssignsRegisters(t *testing.T) {
	b := ir.NewBuilder("k", "ii", 0, nil)
	x := b.Arg(0)
	y := b.Arg(1)
	sum := b.Iadd(x, y)
	b.Iret(sum)
	prep(b.P)

	Allocate(b.P, testConfig())

	if err := ir.Verify(b.P); err != nil {
		t.Fatalf("Verify failed after Allocate: %v", err)
	}
	entry := b.P.Block(0)
	if !entry.RegsDone {
		t.Fatalf("expected entry block to be marked RegsDone")
	}
	for _, id := range entry.Ops {
		op := b.P.Op(id)
		if op.IsNop() {
			continue
		}
		info := ir.Info(op.Opcode)
		if op.Type != ir.TNone && !info.IsJump && op.Reg == ir.NoReg && !op.Spill {
			t.Fatalf("op %d (%s) has no register and is not spilled", id, op.Opcode)
		}
	}
}

func TestAllocateSpillsUnderRegisterPressure(t *testing.T) {
	b := ir.NewBuilder("k", "iiiii", 0, nil)
	vals := make([]ir.OpID, 5)
	for i := 0; i < 5; i++ {
		vals[i] = b.Arg(i)
	}
	// Force more live values than the 4-register int pool can hold at
	// once by keeping every argument alive until a single final sum.
	sum := vals[0]
	for i := 1; i < 5; i++ {
		sum = b.Iadd(sum, vals[i])
	}
	b.Iret(sum)
	prep(b.P)

	cfg_ := testConfig()
	Allocate(b.P, cfg_)

	if err := ir.Verify(b.P); err != nil {
		t.Fatalf("Verify failed after Allocate: %v", err)
	}
}

func TestAllocateReconcilesDivergentBranchAssignments(t *testing.T) {
	b := ir.NewBuilder("k", "i", 0, nil)
	arg := b.Arg(0)
	cond := b.Cieq(arg, b.Lci(0))
	thenL := b.NewLabel()
	elseL := b.NewLabel()
	joinL := b.NewLabel()
	b.Jnz(cond, thenL, elseL)

	b.Place(thenL)
	a := b.Lci(1)
	b.Jmp(joinL)

	b.Place(elseL)
	c := b.Lci(2)
	b.Jmp(joinL)

	b.Place(joinL)
	phiArgs := []ir.OpID{a, c}
	_ = phiArgs
	b.Iret(arg)
	prep(b.P)

	cfg_ := testConfig()
	Allocate(b.P, cfg_)

	if err := ir.Verify(b.P); err != nil {
		t.Fatalf("Verify failed after Allocate: %v", err)
	}
}

func TestAllocateHandlesCallClobber(t *testing.T) {
	b := ir.NewBuilder("k", "i", 0, nil)
	arg := b.Arg(0)
	res := b.Call(ir.NoOp, 0, []ir.OpID{arg}, ir.TInt)
	sum := b.Iadd(arg, res)
	b.Iret(sum)
	prep(b.P)

	cfg_ := testConfig()
	Allocate(b.P, cfg_)

	if err := ir.Verify(b.P); err != nil {
		t.Fatalf("Verify failed after Allocate: %v", err)
	}
	entry := b.P.Block(0)
	for _, id := range entry.Ops {
		op := b.P.Op(id)
		if op.Opcode == ir.Iadd {
			for _, in := range op.In {
				if in == ir.NoOp {
					continue
				}
				src := b.P.Op(in)
				if src.Reg == ir.NoReg && !src.Spill {
					t.Fatalf("input %d to the post-call add has no register and was not spilled", in)
				}
			}
		}
	}
}

func TestRemoveIdentityRenamesKeepsNonIdentity(t *testing.T) {
	b := ir.NewBuilder("k", "i", 0, nil)
	arg := b.Arg(0)
	b.Iret(arg)

	id, err := b.P.Arena.New(ir.Rename)
	if err != nil {
		t.Fatal(err)
	}
	r := b.P.Op(id)
	r.Block = 0
	r.Type = ir.TInt
	r.In[0] = arg
	r.Reg = 3
	b.P.Op(arg).Reg = 1
	entry := b.P.Block(0)
	entry.Ops = append([]ir.OpID{id}, entry.Ops...)

	removeIdentityRenames(b.P)

	if b.P.Op(id).Opcode != ir.Rename {
		t.Fatalf("a rename that changes register must survive cleanup")
	}

	b.P.Op(arg).Reg = 3
	removeIdentityRenames(b.P)
	if b.P.Op(id).Opcode != ir.Nop {
		t.Fatalf("a rename whose register matches its source should be removed as identity")
	}
}

func TestAssignSCCGivesLiveAcrossBranchArgAClass(t *testing.T) {
	b := ir.NewBuilder("k", "i", 0, nil)
	arg := b.Arg(0)
	cond := b.Cieq(arg, b.Lci(0))
	thenL := b.NewLabel()
	elseL := b.NewLabel()
	b.Jnz(cond, thenL, elseL)
	b.Place(thenL)
	b.Jmp(elseL)
	b.Place(elseL)
	b.Iret(arg)
	prep(b.P)

	order := scanOrder(b.P)
	AssignSCC(b.P, order)

	if b.P.Op(arg).SCC < 0 {
		t.Fatalf("a used argument should receive a stack congruence class")
	}
}
