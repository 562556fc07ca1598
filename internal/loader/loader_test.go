package loader

import (
	"encoding/binary"
	"testing"

	"github.com/oisee/bjit/internal/ir"
	"github.com/oisee/bjit/internal/module"
)

func TestLoadMapsStubAndPatchStubRewritesTarget(t *testing.T) {
	bld := module.NewBuilder(module.X64SysV)
	idx := bld.AddStub("hello")
	m := bld.Link()

	l, err := Load(m)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer l.Unload()

	procPtr, err := l.GetProcPtr(idx)
	if err != nil {
		t.Fatalf("GetProcPtr: %v", err)
	}
	if procPtr == 0 {
		t.Fatalf("expected non-zero proc pointer")
	}

	const helloAddr = 0x1000
	if err := l.PatchStub(idx, helloAddr); err != nil {
		t.Fatalf("PatchStub: %v", err)
	}
	target := m.StubTarget[idx]
	got := binary.LittleEndian.Uint64(l.mem[target : target+8])
	if got != helloAddr {
		t.Fatalf("expected patched target %#x, got %#x", helloAddr, got)
	}

	const helloAgainAddr = 0x2000
	if err := l.PatchStub(idx, helloAgainAddr); err != nil {
		t.Fatalf("second PatchStub: %v", err)
	}
	got = binary.LittleEndian.Uint64(l.mem[target : target+8])
	if got != helloAgainAddr {
		t.Fatalf("expected re-patched target %#x, got %#x", helloAgainAddr, got)
	}
}

func TestUnloadInvalidatesLoaded(t *testing.T) {
	bld := module.NewBuilder(module.X64SysV)
	idx := bld.AddStub("hello")
	m := bld.Link()

	l, err := Load(m)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := l.Unload(); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if _, err := l.GetProcPtr(idx); err != ErrNotLoaded {
		t.Fatalf("expected ErrNotLoaded after Unload, got %v", err)
	}
	if err := l.PatchStub(idx, 0x1000); err != ErrNotLoaded {
		t.Fatalf("expected ErrNotLoaded after Unload, got %v", err)
	}
	if err := l.Unload(); err != ErrNotLoaded {
		t.Fatalf("expected double-Unload to return ErrNotLoaded, got %v", err)
	}
}

func addProc() *ir.Procedure {
	b := ir.NewBuilder("add", "ii", 0, nil)
	b.Iret(b.Iadd(b.Arg(0), b.Arg(1)))
	return b.P
}

func callerProc(calleeIdx int32) *ir.Procedure {
	b := ir.NewBuilder("caller", "ii", 0, nil)
	x, y := b.Arg(0), b.Arg(1)
	r := b.Call(b.Lnp(calleeIdx), calleeIdx, []ir.OpID{x, y}, ir.TInt)
	b.Iret(r)
	return b.P
}

func TestLoadResolvesPendingProcAbsRelocation(t *testing.T) {
	bld := module.NewBuilder(module.X64SysV)
	addIdx, err := bld.Compile(addProc())
	if err != nil {
		t.Fatalf("Compile add: %v", err)
	}
	if _, err := bld.Compile(callerProc(int32(addIdx))); err != nil {
		t.Fatalf("Compile caller: %v", err)
	}
	m := bld.Link()
	if len(m.Pending) == 0 {
		t.Fatalf("expected at least one pending lnp relocation before loading")
	}

	l, err := Load(m)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer l.Unload()

	addPtr, err := l.GetProcPtr(addIdx)
	if err != nil {
		t.Fatalf("GetProcPtr: %v", err)
	}
	for _, pa := range m.Pending {
		got := binary.LittleEndian.Uint64(l.mem[pa.Offset : pa.Offset+8])
		if got != uint64(addPtr) {
			t.Fatalf("expected resolved lnp site to hold %#x, got %#x", addPtr, got)
		}
	}
}
