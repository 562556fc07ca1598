// Package loader maps a compiled module.Module into executable memory
// and resolves the absolute-address relocations (lnp) that
// internal/module's link pass could not, since they depend on the
// block's final address. Grounded on the original bjit::Module::load()/
// unload()/patchStub() (module.cpp, bjit.h): mmap a RW block, copy the
// code in, resolve pending relocations, then mprotect it RX.
package loader

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/oisee/bjit/internal/arch/arm64"
	"github.com/oisee/bjit/internal/module"
)

// ErrNotLoaded is returned by GetProcPtr/PatchStub/Unload against a
// Loaded value that has already been unloaded.
var ErrNotLoaded = errors.New("bjit/loader: module is not loaded")

// Allocator is the one OS-specific seam spec §9's "Loader isolation"
// design note calls for ("the allocator, protection-toggle, and
// cache-flush are the only OS-specific calls. Abstract them behind a
// small trait/interface with one of mmap+mprotect and
// VirtualAlloc+VirtualProtect implementations"). Map reserves size
// bytes of read+write anonymous memory; Protect toggles the whole
// mapping between read+write and read+execute; Unmap releases it.
type Allocator interface {
	Map(size int) ([]byte, error)
	Protect(mem []byte, exec bool) error
	Unmap(mem []byte) error
}

// Loaded is a module.Module copied into anonymous memory, normally
// mapped read+execute. mem's length is always len(mod.Code); this
// package never grows a mapping in place (the original's patch()
// in-place-resize behavior is Non-goal territory here — callers needing
// to add code unload()+load() a fresh Builder.Link result instead).
type Loaded struct {
	mod   *module.Module
	alloc Allocator
	mem   []byte
	rw    bool

	// mu serializes PatchStub/Unload against concurrent GetProcPtr lookups
	// (spec §4.7: "patch() will temporarily adjust memory access to
	// read-write and no-execute, and should not be called while
	// another thread is executing code in the module"), the same
	// single-flight mutex shape a worker pool uses to guard a shared
	// result table.
	mu sync.Mutex
}

// Load copies m's code into a fresh mapping from the platform's
// default Allocator (mmap+mprotect on unix, VirtualAlloc+VirtualProtect
// on Windows), resolves every pending RelocProcAbs (lnp) site against
// the mapping's base address, and switches it to read+execute.
func Load(m *module.Module) (*Loaded, error) {
	return LoadWith(m, newPlatformAllocator())
}

// LoadWith is Load with an explicit Allocator, for tests or a host
// that wants to supply its own memory-mapping strategy.
func LoadWith(m *module.Module, alloc Allocator) (*Loaded, error) {
	if len(m.Code) == 0 {
		return nil, errors.New("bjit/loader: empty module")
	}

	mem, err := alloc.Map(len(m.Code))
	if err != nil {
		return nil, errors.Wrap(err, "bjit/loader: map")
	}
	copy(mem, m.Code)

	l := &Loaded{mod: m, alloc: alloc, mem: mem, rw: true}
	base := uintptr(unsafe.Pointer(&mem[0]))
	for _, pa := range m.Pending {
		target := base + uintptr(m.GetProcOffset(int(pa.ProcIdx)))
		l.writeAbs(pa.Offset, uint64(target))
	}

	if err := l.protectExec(); err != nil {
		alloc.Unmap(mem)
		return nil, err
	}
	return l, nil
}

// GetProcPtr returns the mapped address of procedure idx, for a caller
// to cast to the appropriate func type via a small assembly or
// reflect-based trampoline. Mirrors the original's getPointer<T>().
func (l *Loaded) GetProcPtr(idx int) (uintptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mem == nil {
		return 0, ErrNotLoaded
	}
	off := l.mod.GetProcOffset(idx)
	if off < 0 {
		return 0, errors.Errorf("bjit/loader: procedure index %d out of range", idx)
	}
	return uintptr(unsafe.Pointer(&l.mem[0])) + uintptr(off), nil
}

// PatchStub overwrites stub idx's trampoline target with addr. The
// mapping is briefly switched to read+write for the duration of the
// write, then restored to read+execute (spec §4.7: "patch() will
// temporarily adjust memory access to read-write"). Concurrent callers
// of procedures in this module must not run while PatchStub is in
// progress.
func (l *Loaded) PatchStub(idx int, addr uintptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mem == nil {
		return ErrNotLoaded
	}
	if idx < 0 || idx >= len(l.mod.StubTarget) || !l.mod.ProcStub[idx] {
		return errors.Errorf("bjit/loader: index %d is not a stub", idx)
	}
	if err := l.protectRW(); err != nil {
		return err
	}
	l.writeAbs(l.mod.StubTarget[idx], uint64(addr))
	return l.protectExec()
}

// Unload releases the mapped block. The Loaded value must not be used
// afterward except to Load it again via a fresh call.
func (l *Loaded) Unload() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mem == nil {
		return ErrNotLoaded
	}
	err := l.alloc.Unmap(l.mem)
	l.mem = nil
	return err
}

func (l *Loaded) protectExec() error {
	if err := l.alloc.Protect(l.mem, true); err != nil {
		return errors.Wrap(err, "bjit/loader: protect rx")
	}
	l.rw = false
	return nil
}

func (l *Loaded) protectRW() error {
	if l.rw {
		return nil
	}
	if err := l.alloc.Protect(l.mem, false); err != nil {
		return errors.Wrap(err, "bjit/loader: protect rw")
	}
	l.rw = true
	return nil
}

// writeAbs patches one absolute-address field: x64's is 8 raw
// little-endian bytes following movabs's opcode (off already points
// past the opcode, per x64.Reloc's doc comment); arm64's is the 4-word
// MOVZ/MOVK sequence arm64.Asm.PatchImm64Abs knows how to rewrite.
func (l *Loaded) writeAbs(off int32, v uint64) {
	switch l.mod.Arch {
	case module.ARM64:
		asm := &arm64.Asm{Code: l.mem}
		asm.PatchImm64Abs(int(off), v)
	default:
		for i := 0; i < 8; i++ {
			l.mem[int(off)+i] = byte(v >> (8 * i))
		}
	}
}
