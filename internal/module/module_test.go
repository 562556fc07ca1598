package module

import (
	"testing"

	"github.com/oisee/bjit/internal/ir"
)

func addProc() *ir.Procedure {
	b := ir.NewBuilder("add", "ii", 0, nil)
	b.Iret(b.Iadd(b.Arg(0), b.Arg(1)))
	return b.P
}

func TestCompileAddReturnsIncreasingIndices(t *testing.T) {
	bld := NewBuilder(X64SysV)
	i0, err := bld.Compile(addProc())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if i0 != 0 {
		t.Fatalf("expected first procedure index 0, got %d", i0)
	}
	i1, err := bld.Compile(addProc())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if i1 != 1 {
		t.Fatalf("expected second procedure index 1, got %d", i1)
	}
}

func TestLinkLaysOutProcOffsetsAndPool(t *testing.T) {
	bld := NewBuilder(X64SysV)
	if _, err := bld.Compile(addProc()); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	m := bld.Link()

	if len(m.ProcOffset) != 1 {
		t.Fatalf("expected 1 procedure, got %d", len(m.ProcOffset))
	}
	if m.ProcOffset[0] != 0 {
		t.Fatalf("expected first procedure at offset 0, got %d", m.ProcOffset[0])
	}
	if m.ProcName[0] != "add" {
		t.Fatalf("expected procedure name %q, got %q", "add", m.ProcName[0])
	}
	if m.ProcStub[0] {
		t.Fatalf("compiled procedure should not be flagged as a stub")
	}
	if len(m.Code) == 0 {
		t.Fatalf("expected non-empty code")
	}
	for _, off := range m.PoolOffset {
		if off%poolAlign != 0 {
			t.Fatalf("pool entry at %d not %d-byte aligned", off, poolAlign)
		}
	}
}

// nearCallerProc calls calleeIdx directly (icalln): a near call, whose
// rel32/imm26 target Link resolves immediately since both procedures
// end up in the same module at well-known offsets.
func nearCallerProc(calleeIdx int32) *ir.Procedure {
	b := ir.NewBuilder("caller", "ii", 0, nil)
	x, y := b.Arg(0), b.Arg(1)
	r := b.Call(ir.NoOp, calleeIdx, []ir.OpID{x, y}, ir.TInt)
	b.Iret(r)
	return b.P
}

// lnpCallerProc loads calleeIdx's absolute address (lnp) and calls
// through it indirectly: the one case Link cannot resolve on its own,
// since the absolute address depends on a load address that doesn't
// exist until internal/loader maps the module.
func lnpCallerProc(calleeIdx int32) *ir.Procedure {
	b := ir.NewBuilder("caller", "ii", 0, nil)
	x, y := b.Arg(0), b.Arg(1)
	r := b.Call(b.Lnp(calleeIdx), 0, []ir.OpID{x, y}, ir.TInt)
	b.Iret(r)
	return b.P
}

func TestLinkResolvesNearCallBetweenProcedures(t *testing.T) {
	bld := NewBuilder(X64SysV)
	addIdx, err := bld.Compile(addProc())
	if err != nil {
		t.Fatalf("Compile add: %v", err)
	}
	if _, err := bld.Compile(nearCallerProc(int32(addIdx))); err != nil {
		t.Fatalf("Compile caller: %v", err)
	}
	m := bld.Link()

	if len(m.ProcOffset) != 2 {
		t.Fatalf("expected 2 procedures, got %d", len(m.ProcOffset))
	}
	// A direct icalln target is resolvable purely from the final flat
	// layout, so it must not show up as still-pending.
	if len(m.Pending) != 0 {
		t.Fatalf("expected no pending relocations for a near call, got %d", len(m.Pending))
	}
}

func TestLinkLeavesLnpAddressPending(t *testing.T) {
	bld := NewBuilder(X64SysV)
	addIdx, err := bld.Compile(addProc())
	if err != nil {
		t.Fatalf("Compile add: %v", err)
	}
	if _, err := bld.Compile(lnpCallerProc(int32(addIdx))); err != nil {
		t.Fatalf("Compile caller: %v", err)
	}
	m := bld.Link()

	// lnp's absolute-address fixup always stays pending until a load
	// address exists, regardless of whether it targets a procedure
	// compiled earlier or later in the same module.
	if len(m.Pending) == 0 {
		t.Fatalf("expected at least one pending lnp relocation")
	}
	for _, pa := range m.Pending {
		if pa.ProcIdx != int32(addIdx) {
			t.Fatalf("expected pending reloc to target proc %d, got %d", addIdx, pa.ProcIdx)
		}
		if pa.Offset < 0 || int(pa.Offset) >= len(m.Code) {
			t.Fatalf("pending reloc offset %d out of range", pa.Offset)
		}
	}
}

func TestAddStubReservesPatchableTrampoline(t *testing.T) {
	for _, arch := range []Arch{X64SysV, ARM64} {
		bld := NewBuilder(arch)
		idx := bld.AddStub("hello")
		if idx != 0 {
			t.Fatalf("%s: expected stub index 0, got %d", arch, idx)
		}
		m := bld.Link()
		if !m.ProcStub[0] {
			t.Fatalf("%s: expected ProcStub[0] true", arch)
		}
		target := m.StubTarget[0]
		if target < m.ProcOffset[0] || int(target) >= len(m.Code) {
			t.Fatalf("%s: stub target %d outside procedure's code", arch, target)
		}
	}
}

func TestSnapshotRoundTrips(t *testing.T) {
	bld := NewBuilder(X64SysV)
	if _, err := bld.Compile(addProc()); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	m := bld.Link()

	path := t.TempDir() + "/add.bjitmod"
	if err := Snapshot(path, m); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	got, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if string(got.Code) != string(m.Code) {
		t.Fatalf("round-tripped code differs")
	}
	if len(got.ProcOffset) != len(m.ProcOffset) || got.ProcOffset[0] != m.ProcOffset[0] {
		t.Fatalf("round-tripped ProcOffset differs")
	}
}
