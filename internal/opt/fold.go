package opt

import (
	"math"

	"github.com/oisee/bjit/internal/ir"
)

// Fold implements spec §4.4.2: constant folding and a handful of
// algebraic strength reductions (identity add/sub/mul/and/or/xor,
// multiply by zero, shift-by-zero, integer double negation and double
// bit-not) recognized directly on the arithmetic opcodes.
// Folded ops become lci/lcf/lcd loads of the computed constant so a
// later DCE/CSE pass can fold them together with other constants.
func Fold(p *ir.Procedure) bool {
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
			if foldOne(p, op) {
				changed = true
			}
		}
	}
	return changed
}

func constOf(p *ir.Procedure, id ir.OpID) (*ir.Op, bool) {
	if id == ir.NoOp {
		return nil, false
	}
	op := p.Op(id)
	switch op.Opcode {
	case ir.Lci, ir.Lcf, ir.Lcd:
		return op, true
	}
	return nil, false
}

func foldOne(p *ir.Procedure, op *ir.Op) bool {
	switch op.Opcode {
	case ir.Iadd, ir.Isub, ir.Imul, ir.Idiv, ir.Imod, ir.Udiv, ir.Umod,
		ir.Iand, ir.Ior, ir.Ixor, ir.Ishl, ir.Ishr, ir.Ushr:
		return foldIntBin(p, op)
	case ir.Ineg, ir.Inot:
		return foldIntUn(p, op)
	case ir.Fadd, ir.Fsub, ir.Fmul, ir.Fdiv:
		return foldF32Bin(p, op)
	case ir.Fneg, ir.Fabs:
		return foldF32Un(p, op)
	case ir.Dadd, ir.Dsub, ir.Dmul, ir.Ddiv:
		return foldF64Bin(p, op)
	case ir.Dneg, ir.Dabs:
		return foldF64Un(p, op)
	}
	return false
}

func foldIntBin(p *ir.Procedure, op *ir.Op) bool {
	lc, lok := constOf(p, op.In[0])
	rc, rok := constOf(p, op.In[1])
	if !lok || !rok {
		return strengthReduceInt(p, op, lc, lok, rc, rok)
	}
	x, y := int64(lc.Imm64), int64(rc.Imm64)
	var res int64
	switch op.Opcode {
	case ir.Iadd:
		res = x + y
	case ir.Isub:
		res = x - y
	case ir.Imul:
		res = x * y
	case ir.Idiv:
		if y == 0 {
			return false // divide-by-zero preserved as a runtime trap, spec §8
		}
		res = x / y
	case ir.Imod:
		if y == 0 {
			return false
		}
		res = x % y
	case ir.Udiv:
		if uint64(y) == 0 {
			return false
		}
		res = int64(uint64(x) / uint64(y))
	case ir.Umod:
		if uint64(y) == 0 {
			return false
		}
		res = int64(uint64(x) % uint64(y))
	case ir.Iand:
		res = x & y
	case ir.Ior:
		res = x | y
	case ir.Ixor:
		res = x ^ y
	case ir.Ishl:
		res = x << uint(y&63)
	case ir.Ishr:
		res = x >> uint(y&63)
	case ir.Ushr:
		res = int64(uint64(x) >> uint(y&63))
	default:
		return false
	}
	op.Opcode = ir.Lci
	op.In[0], op.In[1] = ir.NoOp, ir.NoOp
	op.Imm64 = uint64(res)
	return true
}

// strengthReduceInt rewrites identity-element binary ops into a
// rename of their non-constant operand when exactly one side is a
// known constant (spec §4.4.2's "strength reduction" clause: x+0, x*1,
// x*0, x<<0, x>>0, x^0, x&-1, x|0 and their commuted forms).
func strengthReduceInt(p *ir.Procedure, op *ir.Op, lc *ir.Op, lok bool, rc *ir.Op, rok bool) bool {
	reduce := func(keep ir.OpID) bool {
		op.Opcode = ir.Rename
		op.In[0] = keep
		op.In[1] = ir.NoOp
		return true
	}
	zero := func(v int64) bool {
		op.Opcode = ir.Lci
		op.In[0], op.In[1] = ir.NoOp, ir.NoOp
		op.Imm64 = uint64(v)
		return true
	}
	switch op.Opcode {
	case ir.Iadd:
		if rok && int64(rc.Imm64) == 0 {
			return reduce(op.In[0])
		}
		if lok && int64(lc.Imm64) == 0 {
			return reduce(op.In[1])
		}
	case ir.Isub:
		if rok && int64(rc.Imm64) == 0 {
			return reduce(op.In[0])
		}
	case ir.Imul:
		if rok && int64(rc.Imm64) == 1 {
			return reduce(op.In[0])
		}
		if lok && int64(lc.Imm64) == 1 {
			return reduce(op.In[1])
		}
		if (rok && int64(rc.Imm64) == 0) || (lok && int64(lc.Imm64) == 0) {
			return zero(0)
		}
	case ir.Ishl, ir.Ishr, ir.Ushr:
		if rok && int64(rc.Imm64) == 0 {
			return reduce(op.In[0])
		}
	case ir.Ixor, ir.Ior:
		if rok && int64(rc.Imm64) == 0 {
			return reduce(op.In[0])
		}
		if lok && int64(lc.Imm64) == 0 {
			return reduce(op.In[1])
		}
	case ir.Iand:
		if rok && int64(rc.Imm64) == -1 {
			return reduce(op.In[0])
		}
		if lok && int64(lc.Imm64) == -1 {
			return reduce(op.In[1])
		}
	}
	return false
}

func foldIntUn(p *ir.Procedure, op *ir.Op) bool {
	c, ok := constOf(p, op.In[0])
	if !ok {
		// ineg(ineg x) and inot(inot x) are both x.
		if in := p.Op(op.In[0]); in.Opcode == op.Opcode {
			op.Opcode = ir.Rename
			op.In[0] = in.In[0]
			return true
		}
		return false
	}
	x := int64(c.Imm64)
	var res int64
	switch op.Opcode {
	case ir.Ineg:
		res = -x
	case ir.Inot:
		res = ^x
	}
	op.Opcode = ir.Lci
	op.In[0] = ir.NoOp
	op.Imm64 = uint64(res)
	return true
}

func foldF32Bin(p *ir.Procedure, op *ir.Op) bool {
	lc, lok := constOf(p, op.In[0])
	rc, rok := constOf(p, op.In[1])
	if !lok || !rok {
		return false
	}
	x, y := math.Float32frombits(uint32(lc.Imm64)), math.Float32frombits(uint32(rc.Imm64))
	var res float32
	switch op.Opcode {
	case ir.Fadd:
		res = x + y
	case ir.Fsub:
		res = x - y
	case ir.Fmul:
		res = x * y
	case ir.Fdiv:
		res = x / y
	}
	op.Opcode = ir.Lcf
	op.In[0], op.In[1] = ir.NoOp, ir.NoOp
	op.Imm64 = uint64(math.Float32bits(res))
	return true
}

func foldF32Un(p *ir.Procedure, op *ir.Op) bool {
	c, ok := constOf(p, op.In[0])
	if !ok {
		return false
	}
	x := math.Float32frombits(uint32(c.Imm64))
	var res float32
	switch op.Opcode {
	case ir.Fneg:
		res = -x
	case ir.Fabs:
		if x < 0 {
			res = -x
		} else {
			res = x
		}
	}
	op.Opcode = ir.Lcf
	op.In[0] = ir.NoOp
	op.Imm64 = uint64(math.Float32bits(res))
	return true
}

func foldF64Bin(p *ir.Procedure, op *ir.Op) bool {
	lc, lok := constOf(p, op.In[0])
	rc, rok := constOf(p, op.In[1])
	if !lok || !rok {
		return false
	}
	x, y := math.Float64frombits(lc.Imm64), math.Float64frombits(rc.Imm64)
	var res float64
	switch op.Opcode {
	case ir.Dadd:
		res = x + y
	case ir.Dsub:
		res = x - y
	case ir.Dmul:
		res = x * y
	case ir.Ddiv:
		res = x / y
	}
	op.Opcode = ir.Lcd
	op.In[0], op.In[1] = ir.NoOp, ir.NoOp
	op.Imm64 = math.Float64bits(res)
	return true
}

func foldF64Un(p *ir.Procedure, op *ir.Op) bool {
	c, ok := constOf(p, op.In[0])
	if !ok {
		return false
	}
	x := math.Float64frombits(c.Imm64)
	var res float64
	switch op.Opcode {
	case ir.Dneg:
		res = -x
	case ir.Dabs:
		if x < 0 {
			res = -x
		} else {
			res = x
		}
	}
	op.Opcode = ir.Lcd
	op.In[0] = ir.NoOp
	op.Imm64 = math.Float64bits(res)
	return true
}
