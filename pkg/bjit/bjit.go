// Package bjit is the public facade over the compiler's internal
// packages: build procedures with ir.Builder, compile and link them
// into a module.Module, then load that module into executable memory.
// cmd/bjitc only ever imports this package, never internal/ir,
// internal/module or internal/loader directly.
package bjit

import (
	"fmt"
	"io"

	"github.com/oisee/bjit/internal/ir"
	"github.com/oisee/bjit/internal/loader"
	"github.com/oisee/bjit/internal/module"
)

// Arch selects the target instruction set and calling convention
// (spec §6: "x86-64 System-V and Microsoft x64; AArch64 AAPCS64").
type Arch = module.Arch

const (
	X64SysV  = module.X64SysV
	X64Win64 = module.X64Win64
	ARM64    = module.ARM64
)

// Re-exported IR construction types, so a caller outside this module
// never needs to reach into internal/ir directly.
type (
	Builder   = ir.Builder
	Procedure = ir.Procedure
	OpID      = ir.OpID
	Type      = ir.Type
	Label     = ir.Label
)

const (
	TInt = ir.TInt
	TF32 = ir.TF32
	TF64 = ir.TF64
)

// NoOp is the sentinel OpID meaning "no value" — pass it as Call's ptr
// argument to request a near (icalln) rather than indirect call.
const NoOp = ir.NoOp

// NewBuilder starts a new procedure, see ir.NewBuilder.
func NewBuilder(name, argTypes string, frameBytes int32, extraSlots []Type) *Builder {
	return ir.NewBuilder(name, argTypes, frameBytes, extraSlots)
}

// Verify runs the structural sanity checker (op arena position, block
// ownership, dominance of inputs, phi/come-from agreement) over p.
// Compile already calls this before and after the optimize/regalloc
// pipeline; a caller can run it again beforehand to get a clean error
// before spending any compile time on a malformed procedure.
func Verify(p *Procedure) error { return ir.Verify(p) }

// Options carries compile-time configuration as a plain struct passed
// into the entry point, no external config file, since this is an
// embeddable library rather than a standalone service.
type Options struct {
	Arch Arch

	// Dump, when set, writes each procedure's IR to Log before and
	// after Compiler.Compile's optimize+regalloc pipeline runs — the
	// CLI's -dump flag.
	Dump bool
	Log  io.Writer
}

// Compiler drives internal/module.Builder's compile/link pipeline
// under the given Options.
type Compiler struct {
	opts Options
	b    *module.Builder
}

// NewCompiler starts an empty module under opts.
func NewCompiler(opts Options) *Compiler {
	if opts.Log == nil {
		opts.Log = io.Discard
	}
	return &Compiler{opts: opts, b: module.NewBuilder(opts.Arch)}
}

// NextIndex previews the module-relative index Compile or AddStub will
// assign next, letting a caller bake a self-recursive call (spec §8's
// fib scenario) into a procedure before that procedure is itself
// compiled.
func (c *Compiler) NextIndex() int { return c.b.NextIndex() }

// Compile runs p through the optimizer, register allocator and this
// compiler's architecture emitter, returning its module-relative
// index.
func (c *Compiler) Compile(p *Procedure) (int, error) {
	if c.opts.Dump {
		fmt.Fprintf(c.opts.Log, "-- %s (before optimize) --\n%s", p.Name, p.Dump())
	}
	idx, err := c.b.Compile(p)
	if err != nil {
		return 0, err
	}
	if c.opts.Dump {
		fmt.Fprintf(c.opts.Log, "-- %s (after regalloc) --\n%s", p.Name, p.Dump())
	}
	return idx, nil
}

// AddStub reserves a patchable indirection trampoline at the next
// module index (spec §6/§8.5).
func (c *Compiler) AddStub(name string) int { return c.b.AddStub(name) }

// Link finishes the module: every procedure's code is concatenated,
// the shared constant pool is appended, and every relocation
// resolvable without a load address is patched.
func (c *Compiler) Link() *module.Module { return c.b.Link() }

// Module, Loaded, PendingAbs and Snapshot/LoadSnapshot are re-exported
// so a caller never needs to import internal/module or internal/loader
// directly.
type (
	Module     = module.Module
	Loaded     = loader.Loaded
	PendingAbs = module.PendingAbs
)

// Load maps m into executable memory (spec §4.7).
func Load(m *Module) (*Loaded, error) { return loader.Load(m) }

// Snapshot persists a linked module to disk (gob).
func Snapshot(path string, m *Module) error { return module.Snapshot(path, m) }

// LoadSnapshot reads back a module written by Snapshot.
func LoadSnapshot(path string) (*Module, error) { return module.LoadSnapshot(path) }
