package ir

import (
	"fmt"
	"strings"
)

// Dump renders the procedure as human-readable text: one line per
// block header (id, come-from, live-in) followed by one line per phi
// and op. Grounded on the original implementation's debug.cpp block/op
// disassembly dumper (SPEC_FULL.md "SUPPLEMENTED FEATURES" #2); driven
// by the CLI's -dump flag.
func (p *Procedure) Dump() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "proc %s(%s)\n", p.Name, p.ArgTypes)
	for _, blk := range p.Blocks {
		if !blk.Live {
			fmt.Fprintf(&sb, "block %d [dead]\n", blk.ID)
			continue
		}
		fmt.Fprintf(&sb, "block %d  comeFrom=%v\n", blk.ID, blk.ComeFrom)
		for _, ph := range blk.Phis {
			op := p.Op(ph.Dest)
			fmt.Fprintf(&sb, "  %%%d = phi.%s", ph.Dest, op.Type)
			for _, alt := range ph.Alts {
				fmt.Fprintf(&sb, " [b%d: %%%d]", alt.FromBlock, alt.Value)
			}
			sb.WriteByte('\n')
		}
		for _, id := range blk.Ops {
			sb.WriteString("  ")
			sb.WriteString(p.dumpOp(id))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (p *Procedure) dumpOp(id OpID) string {
	op := p.Op(id)
	if op.IsNop() {
		return fmt.Sprintf("%%%d = nop", id)
	}
	info := Info(op.Opcode)
	var b strings.Builder
	if op.Type != TNone {
		fmt.Fprintf(&b, "%%%d.%s = %s", id, op.Type, op.Opcode)
	} else {
		fmt.Fprintf(&b, "%s", op.Opcode)
	}
	for i := 0; i < info.NIn && i < 2; i++ {
		fmt.Fprintf(&b, " %%%d", op.In[i])
	}
	if info.HasImm32 {
		fmt.Fprintf(&b, " #%d", op.Imm32)
	}
	if info.Has64 {
		fmt.Fprintf(&b, " #%d", op.Imm64)
	}
	if info.IsJump {
		if op.Label[0] != NoOp {
			fmt.Fprintf(&b, " ->b%d", op.Label[0])
		}
		if op.Label[1] != NoOp {
			fmt.Fprintf(&b, ",b%d", op.Label[1])
		}
	}
	if op.Reg != NoReg {
		fmt.Fprintf(&b, " r%d", op.Reg)
	}
	if op.Spill {
		fmt.Fprintf(&b, " spill(scc%d)", op.SCC)
	}
	return b.String()
}
