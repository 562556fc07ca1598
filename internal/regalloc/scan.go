package regalloc

import "github.com/oisee/bjit/internal/ir"

// blockState tracks, while scanning one block, which physical register
// (if any) currently holds each live value.
type blockState struct {
	heldBy map[ir.Reg]ir.OpID
	regOf  map[ir.OpID]ir.Reg
	age    map[ir.OpID]int
	clock  int
}

func newBlockState() *blockState {
	return &blockState{heldBy: map[ir.Reg]ir.OpID{}, regOf: map[ir.OpID]ir.Reg{}, age: map[ir.OpID]int{}}
}

func (s *blockState) bind(r ir.Reg, v ir.OpID) {
	if old, ok := s.heldBy[r]; ok {
		delete(s.regOf, old)
	}
	s.heldBy[r] = v
	s.regOf[v] = r
	s.clock++
	s.age[v] = s.clock
}

func (s *blockState) evict(r ir.Reg) {
	if v, ok := s.heldBy[r]; ok {
		delete(s.regOf, v)
		delete(s.heldBy, r)
		delete(s.age, v)
	}
}

// assign gives value v a register from pool, evicting the oldest
// resident of that pool if necessary (spec §4.5.3 step 2: "save or
// evict"; the oldest-binding heuristic is a deliberate simplification
// of the original's full usage-distance scoring).
func (s *blockState) assign(p *ir.Procedure, pool ir.RegMask, v ir.OpID) ir.Reg {
	if free := pool.Intersect(s.occupied().Complement()); !free.Empty() {
		r := free.First()
		s.bind(r, v)
		return r
	}
	oldest := ir.NoReg
	oldestAge := int(^uint(0) >> 1)
	for r := ir.Reg(0); r < 64; r++ {
		if !pool.Has(r) {
			continue
		}
		held, ok := s.heldBy[r]
		if !ok {
			continue
		}
		if a := s.age[held]; a < oldestAge {
			oldestAge, oldest = a, r
		}
	}
	if oldest == ir.NoReg {
		return ir.NoReg
	}
	victim := s.heldBy[oldest]
	p.Op(victim).Spill = true
	s.evict(oldest)
	s.bind(oldest, v)
	return oldest
}

func (s *blockState) occupied() ir.RegMask {
	var m ir.RegMask
	for r := range s.heldBy {
		m = m.With(r)
	}
	return m
}

// scanBlock implements spec §4.5.3's five per-op steps over one block's
// ops, in order: input satisfaction (reload or rematerialize a value no
// longer resident), save-or-evict during register assignment, clobber
// (calls evict the call-clobbered set), output placement (reuse a
// dying input's register when the op is not FreeOutput), and labels
// (recording RegsIn/RegsOut at block boundaries for the edge-shuffle
// pass to reconcile).
func scanBlock(p *ir.Procedure, b *ir.Block, cfg Config) {
	s := newBlockState()

	for pi := range b.Phis {
		dest := p.Op(b.Phis[pi].Dest)
		r := s.assign(p, cfg.poolFor(dest.Type), b.Phis[pi].Dest)
		dest.Reg = r
	}
	b.RegsIn = map[ir.Reg]ir.OpID{}
	for r, v := range s.heldBy {
		b.RegsIn[r] = v
	}

	orig := append([]ir.OpID(nil), b.Ops...)
	newOps := make([]ir.OpID, 0, len(orig))

	for _, id := range orig {
		op := p.Op(id)
		if op.IsNop() {
			newOps = append(newOps, id)
			continue
		}
		info := ir.Info(op.Opcode)

		satisfyInput(p, b, s, cfg, &newOps, &op.In[0])
		satisfyInput(p, b, s, cfg, &newOps, &op.In[1])
		if info.NIn == 3 {
			var v ir.OpID = op.Label[0]
			satisfyInput(p, b, s, cfg, &newOps, &v)
			op.Label[0] = v
		}

		if info.IsCall {
			for r := ir.Reg(0); r < 64; r++ {
				if cfg.CallClobbered.Has(r) {
					s.evict(r)
				}
			}
		}

		newOps = append(newOps, id)

		if op.Type == ir.TNone || info.IsJump {
			continue
		}
		pool := cfg.poolFor(op.Type)
		if !info.FreeOutput {
			if r, ok := dyingInputReg(p, s, op); ok && pool.Has(r) {
				s.bind(r, id)
				op.Reg = r
				continue
			}
		}
		op.Reg = s.assign(p, pool, id)
	}
	b.Ops = newOps

	b.RegsOut = map[ir.Reg]ir.OpID{}
	for r, v := range s.heldBy {
		b.RegsOut[r] = v
	}
	b.RegsDone = true
}

// satisfyInput ensures *in names a value currently resident in a
// register, redirecting the operand to a freshly materialized
// rename/reload/rematerialization op when it is not.
func satisfyInput(p *ir.Procedure, b *ir.Block, s *blockState, cfg Config, newOps *[]ir.OpID, in *ir.OpID) {
	v := *in
	if v == ir.NoOp {
		return
	}
	if _, ok := s.regOf[v]; ok {
		return
	}
	producer := p.Op(v)
	var nid ir.OpID
	if rematerializable(p, s, producer) {
		nid = rematerialize(p, b, producer)
	} else {
		producer.Spill = true
		nid = emitReloadInline(p, b, producer)
	}
	*newOps = append(*newOps, nid)
	n := p.Op(nid)
	n.Reg = s.assign(p, cfg.poolFor(n.Type), nid)
	*in = nid
}

// rematerializable reports whether producer can be re-emitted in place
// of a reload: a CSEable, side-effect-free op whose own inputs are
// still resident (or has none, like a constant load), and, for a
// memory load, whose MemTag still matches (spec §4.5.4).
func rematerializable(p *ir.Procedure, s *blockState, producer *ir.Op) bool {
	info := ir.Info(producer.Opcode)
	if !info.CSEable || info.SideEffect {
		return false
	}
	for _, v := range producer.In {
		if v == ir.NoOp {
			continue
		}
		if _, ok := s.regOf[v]; !ok {
			return false
		}
	}
	return true
}

func rematerialize(p *ir.Procedure, b *ir.Block, producer *ir.Op) ir.OpID {
	nid, err := p.Arena.New(producer.Opcode)
	if err != nil {
		panic(err)
	}
	n := p.Op(nid)
	orig := *producer
	*n = orig
	n.Index = nid
	n.Block = b.ID
	n.Reg = ir.NoReg
	n.SCC = -1
	n.Spill = false
	n.NoOpt = true
	return nid
}

func emitReloadInline(p *ir.Procedure, b *ir.Block, producer *ir.Op) ir.OpID {
	nid, err := p.Arena.New(ir.Reload)
	if err != nil {
		panic(err)
	}
	n := p.Op(nid)
	n.Block = b.ID
	n.Type = producer.Type
	n.SCC = producer.SCC
	n.MemTag = producer.MemTag
	return nid
}

// dyingInputReg finds an input of op whose use count drops to zero here
// and which is resident in a register, so the output can reuse it
// (spec §4.5.3 step 4, the two-address ISA hint).
func dyingInputReg(p *ir.Procedure, s *blockState, op *ir.Op) (ir.Reg, bool) {
	for _, v := range op.In {
		if v == ir.NoOp {
			continue
		}
		if r, ok := s.regOf[v]; ok && p.Op(v).NUse <= 1 {
			return r, true
		}
	}
	return ir.NoReg, false
}
