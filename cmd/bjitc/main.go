package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/oisee/bjit/pkg/bjit"
)

// main wires a cobra CLI over pkg/bjit: one root command, flat RunE
// closures per subcommand, flags declared next to the command that
// reads them.
func main() {
	rootCmd := &cobra.Command{
		Use:   "bjitc",
		Short: "baseline JIT compiler driver",
	}

	var archName string
	var dump bool
	rootCmd.PersistentFlags().StringVar(&archName, "arch", "sysv", "target: sysv, win64, or arm64")
	rootCmd.PersistentFlags().BoolVar(&dump, "dump", false, "print each procedure's IR before and after compilation")
	rootCmd.PersistentFlags().BoolVar(&verifyFlag, "verify", false, "run the structural sanity checker on each procedure before compiling it")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "compile, link and load one of the end-to-end scenarios",
	}

	scenarios := []struct {
		name  string
		short string
		run   func(c *bjit.Compiler) error
	}{
		{"addii", "iadd(arg0, arg1) over (int,int) -> int", runAddII},
		{"addff", "fadd(arg0, arg1) over (f32,f32) -> f32", runAddFF},
		{"fib", "recursive fib(n), icalln to self", runFib},
		{"sieve", "sieve of Eratosthenes over a byte buffer", runSieve},
		{"stub", "near-call stub retargeting", runStub},
		{"fields", "load/store coverage over a fixed-layout record", runFields},
	}
	for _, s := range scenarios {
		s := s
		runCmd.AddCommand(&cobra.Command{
			Use:   s.name,
			Short: s.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				arch, err := parseArch(archName)
				if err != nil {
					return err
				}
				c := bjit.NewCompiler(bjit.Options{Arch: arch, Dump: dump, Log: os.Stdout})
				return s.run(c)
			},
		})
	}
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// verifyFlag backs the CLI's --verify flag; scenario run functions
// read it through compile rather than threading it as a parameter.
var verifyFlag bool

// compile runs bjit.Verify over p first when --verify is set, then
// compiles it. Compile itself already verifies p before and after the
// optimize/regalloc pipeline; this surfaces a clean pre-compile error
// for a malformed procedure without spending any compile time on it.
func compile(c *bjit.Compiler, p *bjit.Procedure) (int, error) {
	if verifyFlag {
		if err := bjit.Verify(p); err != nil {
			return 0, errors.Wrapf(err, "verify %s", p.Name)
		}
	}
	return c.Compile(p)
}

func parseArch(name string) (bjit.Arch, error) {
	switch name {
	case "sysv":
		return bjit.X64SysV, nil
	case "win64":
		return bjit.X64Win64, nil
	case "arm64":
		return bjit.ARM64, nil
	default:
		return 0, errors.Errorf("bjitc: unknown -arch %q (want sysv, win64 or arm64)", name)
	}
}

// report prints a compiled module's structure: every procedure's
// index, name, byte offset and size, plus whether any lnp relocations
// are still waiting on a load address. Scenarios don't invoke the
// compiled machine code — there is no trampoline in this repository's
// dependency corpus that calls a raw code pointer from Go — so each
// scenario prints this layout and the result it expects; only the stub
// scenario loads the module, and it reports the patch calls without
// reading the patched bytes back.
func report(m *bjit.Module) {
	for i, name := range m.ProcName {
		end := int32(len(m.Code))
		if i+1 < len(m.ProcOffset) {
			end = m.ProcOffset[i+1]
		}
		kind := "proc"
		if m.ProcStub[i] {
			kind = "stub"
		}
		fmt.Printf("  [%d] %-8s %-12s offset=%-6d size=%-4d frame=%d\n",
			i, kind, name, m.ProcOffset[i], end-m.ProcOffset[i], m.ProcFrameSize[i])
	}
	fmt.Printf("  code: %d bytes, pending relocations: %d\n", len(m.Code), len(m.Pending))
}

func runAddII(c *bjit.Compiler) error {
	if _, err := compile(c, buildAddII()); err != nil {
		return errors.Wrap(err, "compile addii")
	}
	m := c.Link()
	report(m)
	fmt.Println("expected addii(2, 5) == 7")
	return nil
}

func runAddFF(c *bjit.Compiler) error {
	if _, err := compile(c, buildAddFF()); err != nil {
		return errors.Wrap(err, "compile addff")
	}
	m := c.Link()
	report(m)
	fmt.Println("expected addff(2.0, 5.0) == 7.0")
	return nil
}

func runFib(c *bjit.Compiler) error {
	self := int32(c.NextIndex())
	if _, err := compile(c, buildFib(self)); err != nil {
		return errors.Wrap(err, "compile fib")
	}
	m := c.Link()
	report(m)
	fmt.Println("expected fib(16) == 1597")
	return nil
}

func runSieve(c *bjit.Compiler) error {
	if _, err := compile(c, buildSieve()); err != nil {
		return errors.Wrap(err, "compile sieve")
	}
	m := c.Link()
	report(m)
	fmt.Println("expected sieve(buf, 819000) to match the reference prime count")
	return nil
}

func runStub(c *bjit.Compiler) error {
	stubIdx := c.AddStub("hello")
	if _, err := compile(c, buildStubCaller(int32(stubIdx))); err != nil {
		return errors.Wrap(err, "compile callstub")
	}
	m := c.Link()
	report(m)

	l, err := bjit.Load(m)
	if err != nil {
		return errors.Wrap(err, "load")
	}
	defer l.Unload()

	const helloAddr = 0x1000
	if err := l.PatchStub(stubIdx, helloAddr); err != nil {
		return errors.Wrap(err, "patch stub to hello")
	}
	fmt.Printf("  stub %d retargeted to %#x\n", stubIdx, helloAddr)

	if err := l.Unload(); err != nil {
		return errors.Wrap(err, "unload")
	}
	const helloAgainAddr = 0x2000
	l2, err := bjit.Load(m)
	if err != nil {
		return errors.Wrap(err, "reload")
	}
	defer l2.Unload()
	if err := l2.PatchStub(stubIdx, helloAgainAddr); err != nil {
		return errors.Wrap(err, "patch stub to helloAgain")
	}
	fmt.Printf("  stub %d retargeted to %#x after reload\n", stubIdx, helloAgainAddr)
	return nil
}

func runFields(c *bjit.Compiler) error {
	for _, f := range recordFields {
		if _, err := compile(c, buildGetter(f)); err != nil {
			return errors.Wrapf(err, "compile %s_get", f.name)
		}
		if _, err := compile(c, buildSetter(f)); err != nil {
			return errors.Wrapf(err, "compile %s_set", f.name)
		}
	}
	m := c.Link()
	report(m)
	fmt.Println("expected setter(v) followed by getter() to yield v for every field")
	return nil
}
