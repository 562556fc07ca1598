// Package module implements spec §4.7: the byte buffer a compiled
// procedure's machine code and a module's shared constant pool share,
// plus the link pass that resolves every relocation emit.go could not
// on its own (near calls between procedures, constant-pool loads) and
// records the absolute-address sites (lnp) that stay pending until
// internal/loader has mapped the module somewhere in memory.
package module

import (
	"encoding/gob"
	"fmt"
	"os"
	"sort"

	"github.com/oisee/bjit/internal/arch/arm64"
	"github.com/oisee/bjit/internal/arch/x64"
	"github.com/oisee/bjit/internal/ir"
	"github.com/oisee/bjit/internal/opt"
	"github.com/oisee/bjit/internal/regalloc"
)

// Arch selects which back-end Builder.Compile lowers procedures
// through; a Builder targets exactly one of these for its whole
// lifetime (spec §6: "calling conventions honored: x86-64 System-V and
// Microsoft x64; AArch64 AAPCS64").
type Arch int

const (
	X64SysV Arch = iota
	X64Win64
	ARM64
)

func (a Arch) String() string {
	switch a {
	case X64SysV:
		return "x64-sysv"
	case X64Win64:
		return "x64-win64"
	case ARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

// poolAlign is the byte alignment the shared constant pool is padded
// to before it is appended after the last procedure's code. 16 bytes
// covers every entry width (4/8) the pool currently stores.
const poolAlign = 16

// RelocKind mirrors the taxonomy internal/arch/x64 and internal/arch/arm64
// both already define (spec §4.7 "relocations are internal to a
// module"); Builder translates either architecture's own Reloc slice
// into this shared shape as soon as a procedure is compiled, so the
// link pass has one kind of record to walk regardless of Arch.
type RelocKind uint8

const (
	RelocProcAbs RelocKind = iota
	RelocProcPCRel
	RelocPoolPCRel
)

type reloc struct {
	off     int32 // byte offset within this procedure's own Code, before linking
	kind    RelocKind
	procIdx int32
	poolIdx int32
}

// PendingAbs records one lnp site whose absolute address could not be
// resolved at link time: Offset is where the address goes (an imm64 on
// x64, the first of four MOVZ/MOVK words on arm64) and ProcIdx names
// the procedure whose final mapped address belongs there. internal/loader
// walks this list once it knows the module's base address.
type PendingAbs struct {
	Offset  int32
	ProcIdx int32
}

// Module is the flat, linked artifact spec §4.7 describes: one byte
// buffer holding every compiled procedure's code followed by the
// shared constant pool, plus the offsets needed to find a procedure's
// entry point or a pool entry inside it. It has no relationship to
// executable memory yet — that is internal/loader's job.
type Module struct {
	Arch Arch

	Code []byte

	ProcOffset []int32
	ProcName   []string
	ProcStub   []bool

	// StubTarget[i] is the byte offset within Code of procedure i's
	// patchable absolute-address field, valid only where ProcStub[i] is
	// true; internal/loader's PatchStub writes the new target there. -1 for a
	// non-stub procedure.
	StubTarget []int32

	// ProcFrameSize[i] is the spill+callee-save frame size the emitter
	// computed for procedure i (0 for a stub); useful to a host
	// introspecting the module, not consulted by the link pass itself.
	ProcFrameSize []int32

	PoolOffset []int32

	Pending []PendingAbs
}

// GetProcOffset returns procedure idx's byte offset within Code, or
// -1 if idx is out of range.
func (m *Module) GetProcOffset(idx int) int32 {
	if idx < 0 || idx >= len(m.ProcOffset) {
		return -1
	}
	return m.ProcOffset[idx]
}

// compiledProc is one procedure's machine code plus the relocations
// emit.go left for the link pass, still addressed relative to the
// procedure's own Code (offset 0), before Builder.Link concatenates
// every procedure together.
type compiledProc struct {
	name       string
	stub       bool
	stubTarget int32 // byte offset, within code, of the stub's patchable field
	code       []byte
	relocs     []reloc
	frameSize  int32
}

// Builder accumulates compiled procedures (and bare stub placeholders
// for spec §8.5's retargeting scenario) across calls, then Link lays
// them out into a single Module and resolves every relocation that is
// resolvable without a load address.
type Builder struct {
	arch Arch
	abi  x64.ABI

	poolX64   *x64.Pool
	poolARM64 *arm64.Pool

	procs []compiledProc
}

// NewBuilder starts an empty module targeting arch. abi is only
// consulted for X64SysV/X64Win64; arm64 has a single calling
// convention (AAPCS64) so Compile ignores it for ARM64.
func NewBuilder(arch Arch) *Builder {
	b := &Builder{arch: arch}
	switch arch {
	case X64Win64:
		b.abi = x64.Win64
		b.poolX64 = x64.NewPool()
	case ARM64:
		b.poolARM64 = arm64.NewPool()
	default:
		b.abi = x64.SysV
		b.poolX64 = x64.NewPool()
	}
	return b
}

// NextIndex returns the module-relative index the next call to
// Compile or AddStub will assign. A front-end building a
// self-recursive procedure (spec §8's fib scenario: "uses icalln to
// self") needs this to bake its own index into an Lnp before that
// procedure itself has been compiled.
func (b *Builder) NextIndex() int { return len(b.procs) }

// Compile runs the full spec §4.4/§4.5/§4.6 pipeline over p — the
// optimizer to a fixed point, the register allocator, then this
// builder's architecture emitter — and appends the result as the next
// procedure in the module. The returned index is p's module-relative
// procedure index, the value an Lnp/Icalln/Tcalln referencing p must
// carry as Imm32.
func (b *Builder) Compile(p *ir.Procedure) (int, error) {
	if err := ir.Verify(p); err != nil {
		return 0, fmt.Errorf("module: %s: %w", p.Name, err)
	}
	opt.Run(p)
	regalloc.Allocate(p, b.config())
	if err := ir.Verify(p); err != nil {
		return 0, fmt.Errorf("module: %s: after regalloc: %w", p.Name, err)
	}

	cp := compiledProc{name: p.Name}
	switch b.arch {
	case ARM64:
		e := arm64.Emit(p, p.SpillSlots, b.poolARM64)
		cp.code = e.Code
		cp.frameSize = e.FrameSize
		for _, r := range e.Relocs {
			cp.relocs = append(cp.relocs, reloc{off: int32(r.Off), kind: RelocKind(r.Kind), procIdx: r.ProcIdx, poolIdx: r.PoolIdx})
		}
	default:
		e := x64.Emit(p, p.SpillSlots, b.poolX64, b.abi)
		cp.code = e.Code
		cp.frameSize = e.FrameSize
		for _, r := range e.Relocs {
			cp.relocs = append(cp.relocs, reloc{off: int32(r.Off), kind: RelocKind(r.Kind), procIdx: r.ProcIdx, poolIdx: r.PoolIdx})
		}
	}

	idx := len(b.procs)
	b.procs = append(b.procs, cp)
	return idx, nil
}

// AddStub reserves a procedure slot holding a bare indirection
// trampoline rather than compiled IR (spec §6: "external linkage is
// only via stub procedures (MOVABS + JMP on x86-64, equivalent on
// AArch64)"; spec §8.5's retargeting scenario: "compile one stub (no
// real code)"). Calling the stub's module index jumps to whatever
// address internal/loader's PatchStub last wrote into it; a freshly added
// stub targets address 0 until patched.
func (b *Builder) AddStub(name string) int {
	var code []byte
	var target int32
	switch b.arch {
	case ARM64:
		asm := &arm64.Asm{}
		target = int32(asm.Pos())
		asm.MovzImm16(scratchGPArm64, 0, 0)
		asm.MovkImm16(scratchGPArm64, 0, 1)
		asm.MovkImm16(scratchGPArm64, 0, 2)
		asm.MovkImm16(scratchGPArm64, 0, 3)
		asm.Br(scratchGPArm64)
		code = asm.Code
	default:
		asm := &x64.Asm{}
		target = int32(asm.Pos()) + 2 // past the REX+opcode prefix of movabs
		asm.MovImm64(scratchGPX64, 0)
		asm.JmpR(scratchGPX64)
		code = asm.Code
	}
	idx := len(b.procs)
	b.procs = append(b.procs, compiledProc{name: name, stub: true, stubTarget: target, code: code})
	return idx
}

// scratchGPArm64/scratchGPX64 are the trampoline's working register
// (X16/IP0 on arm64, RAX on x64) — encoded directly rather than
// imported from the emitter packages' own scratch-register constants,
// since a stub is built outside any internal/ir.Procedure and so never
// contends with the allocator for it.
const scratchGPArm64 = 16
const scratchGPX64 = 0

func (b *Builder) config() regalloc.Config {
	switch b.arch {
	case ARM64:
		return arm64.Config()
	case X64Win64:
		return x64.Win64Config()
	default:
		return x64.SysVConfig()
	}
}

// Link concatenates every compiled procedure's code, places the shared
// constant pool after it (16-byte aligned), and resolves every
// RelocProcPCRel/RelocPoolPCRel site against that final layout.
// RelocProcAbs sites (lnp) are left in Module.Pending for
// internal/loader, since their value depends on the module's eventual
// load address.
func (b *Builder) Link() *Module {
	m := &Module{Arch: b.arch}

	for _, p := range b.procs {
		base := int32(len(m.Code))
		m.ProcOffset = append(m.ProcOffset, base)
		m.ProcName = append(m.ProcName, p.name)
		m.ProcStub = append(m.ProcStub, p.stub)
		if p.stub {
			m.StubTarget = append(m.StubTarget, base+p.stubTarget)
		} else {
			m.StubTarget = append(m.StubTarget, -1)
		}
		m.ProcFrameSize = append(m.ProcFrameSize, p.frameSize)
		m.Code = append(m.Code, p.code...)
	}

	for len(m.Code)%poolAlign != 0 {
		m.Code = append(m.Code, 0)
	}
	poolBase := int32(len(m.Code))
	switch b.arch {
	case ARM64:
		buf, offs := b.poolARM64.Layout()
		m.Code = append(m.Code, buf...)
		for _, o := range offs {
			m.PoolOffset = append(m.PoolOffset, poolBase+int32(o))
		}
	default:
		buf, offs := b.poolX64.Layout()
		m.Code = append(m.Code, buf...)
		for _, o := range offs {
			m.PoolOffset = append(m.PoolOffset, poolBase+int32(o))
		}
	}

	for i, p := range b.procs {
		siteBase := m.ProcOffset[i]
		for _, r := range p.relocs {
			site := siteBase + r.off
			switch r.kind {
			case RelocProcAbs:
				m.Pending = append(m.Pending, PendingAbs{Offset: site, ProcIdx: r.procIdx})
			case RelocProcPCRel:
				// A B/BL imm26 on arm64, a rel32 on x64.
				b.patchImm26OrRel32(m, site, m.ProcOffset[r.procIdx])
			case RelocPoolPCRel:
				// Always an LDR-literal, imm19-encoded on arm64.
				b.patchPoolRel(m, site, m.PoolOffset[r.poolIdx])
			}
		}
	}
	// internal/loader walks Pending in file order when resolving lnp
	// sites against a freshly mapped base; sorting by Offset first
	// keeps that walk sequential through Code rather than jumping
	// around, and makes two modules built from the same procedures in
	// a different Compile order produce an identical Pending slice.
	sort.Slice(m.Pending, func(i, j int) bool { return m.Pending[i].Offset < m.Pending[j].Offset })
	return m
}

// patchImm26OrRel32 rewrites a near call/jump's PC-relative field: x64
// always uses a rel32 field relative to the end of that field; arm64's
// B/BL always use an imm26 field relative to the instruction word's
// own address.
func (b *Builder) patchImm26OrRel32(m *Module, site, target int32) {
	if b.arch == ARM64 {
		asm := &arm64.Asm{Code: m.Code}
		asm.PatchImm26(int(site), target-site)
		return
	}
	writeRel32(m.Code, site, target-(site+4))
}

// patchPoolRel rewrites a constant-pool load's PC-relative field: x64's
// RIP-relative disp32 is relative to the end of that field; arm64's
// LDR-literal imm19 is relative to the instruction word's own address.
func (b *Builder) patchPoolRel(m *Module, site, target int32) {
	if b.arch == ARM64 {
		asm := &arm64.Asm{Code: m.Code}
		asm.PatchImm19At5(int(site), target-site)
		return
	}
	writeRel32(m.Code, site, target-(site+4))
}

func writeRel32(code []byte, site, dist int32) {
	code[site] = byte(dist)
	code[site+1] = byte(dist >> 8)
	code[site+2] = byte(dist >> 16)
	code[site+3] = byte(dist >> 24)
}

// snapshot is the gob-serializable form of a Module, following a
// checkpoint save/load idiom — a module is exactly the kind of
// resumable, append-only state that pattern fits.
type snapshot struct {
	Arch       Arch
	Code       []byte
	ProcOffset []int32
	ProcName   []string
	ProcStub      []bool
	StubTarget    []int32
	ProcFrameSize []int32
	PoolOffset    []int32
	Pending       []PendingAbs
}

// Snapshot writes m to path as a gob stream, so a host can persist a
// compiled module across process restarts without recompiling.
func Snapshot(path string, m *Module) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	s := snapshot{
		Arch: m.Arch, Code: m.Code, ProcOffset: m.ProcOffset, ProcName: m.ProcName,
		ProcStub: m.ProcStub, StubTarget: m.StubTarget, ProcFrameSize: m.ProcFrameSize,
		PoolOffset: m.PoolOffset, Pending: m.Pending,
	}
	return gob.NewEncoder(f).Encode(&s)
}

// LoadSnapshot reads back a Module written by Snapshot.
func LoadSnapshot(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var s snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, err
	}
	return &Module{
		Arch: s.Arch, Code: s.Code, ProcOffset: s.ProcOffset, ProcName: s.ProcName,
		ProcStub: s.ProcStub, StubTarget: s.StubTarget, ProcFrameSize: s.ProcFrameSize,
		PoolOffset: s.PoolOffset, Pending: s.Pending,
	}, nil
}
