package opt

import "github.com/oisee/bjit/internal/ir"

// Reassoc implements spec §4.4.5: reassociation. It canonicalizes
// commutative ops so a known constant operand always lands on the
// right (exposing the *I immediate-form and strength-reduction
// patterns Fold and the instruction selector look for), and collapses
// a two-level chain of the same associative op applied to a constant
// at each level into one op plus a single combined constant, which a
// following Fold pass reduces to a literal.
func Reassoc(p *ir.Procedure) bool {
	changed := false
	for _, b := range p.Blocks {
		if !b.Live {
			continue
		}
		for _, id := range b.Ops {
			op := p.Op(id)
			if op.IsNop() || op.NoOpt {
				continue
			}
			if canonicalizeOperands(p, op) {
				changed = true
			}
			if collapseChain(p, op) {
				changed = true
			}
		}
	}
	return changed
}

func isAssociative(op ir.Opcode) bool {
	switch op {
	case ir.Iadd, ir.Imul, ir.Iand, ir.Ior, ir.Ixor:
		return true
	}
	return false
}

// canonicalizeOperands swaps a commutative op's operands so a constant
// right-hand operand results whenever exactly one side is constant.
func canonicalizeOperands(p *ir.Procedure, op *ir.Op) bool {
	if !ir.Info(op.Opcode).Commutes {
		return false
	}
	_, lok := constOf(p, op.In[0])
	_, rok := constOf(p, op.In[1])
	if lok && !rok {
		op.In[0], op.In[1] = op.In[1], op.In[0]
		return true
	}
	return false
}

// collapseChain rewrites (x op c1) op c2, with op associative and c1,
// c2 both constant, into x op (c1 op c2) by pointing op directly at x
// and replacing its right operand with a fresh combined constant op
// appended to op's own block just before op.
func collapseChain(p *ir.Procedure, op *ir.Op) bool {
	if !isAssociative(op.Opcode) {
		return false
	}
	outerC, outerOk := constOf(p, op.In[1])
	if !outerOk {
		return false
	}
	inner := p.Op(op.In[0])
	if inner.IsNop() || inner.Opcode != op.Opcode {
		return false
	}
	innerC, innerOk := constOf(p, inner.In[1])
	if !innerOk {
		return false
	}

	combined, err := p.Arena.New(constLoadOpcode(op.Opcode))
	if err != nil {
		return false
	}
	cop := p.Op(combined)
	cop.Block = op.Block
	cop.Type = inner.Type
	cop.Imm64 = combineImm(op.Opcode, innerC.Imm64, outerC.Imm64)
	insertBefore(p.Block(op.Block), op.Index, combined)

	op.In[0] = inner.In[0]
	op.In[1] = combined
	return true
}

func constLoadOpcode(op ir.Opcode) ir.Opcode {
	switch op {
	case ir.Iadd, ir.Imul, ir.Iand, ir.Ior, ir.Ixor:
		return ir.Lci
	}
	return ir.Lci
}

func combineImm(op ir.Opcode, a, b uint64) uint64 {
	switch op {
	case ir.Iadd:
		return uint64(int64(a) + int64(b))
	case ir.Imul:
		return uint64(int64(a) * int64(b))
	case ir.Iand:
		return a & b
	case ir.Ior:
		return a | b
	case ir.Ixor:
		return a ^ b
	}
	return 0
}

func insertBefore(b *ir.Block, before, id ir.OpID) {
	out := make([]ir.OpID, 0, len(b.Ops)+1)
	for _, x := range b.Ops {
		if x == before {
			out = append(out, id)
		}
		out = append(out, x)
	}
	b.Ops = out
}
