package regalloc

import "github.com/oisee/bjit/internal/ir"

// sccState is the sweep state of AssignSCC, which implements spec §4.5.1: a sweep in scan order over an
// unbounded set of stack congruence classes. Each live-in value keeps
// whatever class it already holds; each newly defined value takes the
// lowest free class; a class is freed once its value's last use has
// been scanned. Phis take the class of an alternative when one is
// already consistent, otherwise a fresh class (the per-edge rename
// this can require is left to the edge-shuffle pass, which already
// reconciles any register/slot disagreement across an edge).
type sccState struct {
	classOf map[ir.OpID]int32
	remain  map[ir.OpID]uint32
	free    []int32
	next    int32
}

func newSCCState(p *ir.Procedure) *sccState {
	s := &sccState{classOf: map[ir.OpID]int32{}, remain: map[ir.OpID]uint32{}}
	for i := range p.Arena.All() {
		op := p.Op(ir.OpID(i))
		if !op.IsNop() {
			s.remain[op.Index] = op.NUse
		}
	}
	return s
}

func (s *sccState) alloc() int32 {
	if n := len(s.free); n > 0 {
		c := s.free[n-1]
		s.free = s.free[:n-1]
		return c
	}
	c := s.next
	s.next++
	return c
}

func (s *sccState) release(c int32) {
	s.free = append(s.free, c)
}

func (s *sccState) touch(v ir.OpID) {
	if v == ir.NoOp {
		return
	}
	if s.remain[v] > 0 {
		s.remain[v]--
		if s.remain[v] == 0 {
			if c, ok := s.classOf[v]; ok {
				s.release(c)
			}
		}
	}
}

func (s *sccState) define(v ir.OpID) int32 {
	c := s.alloc()
	s.classOf[v] = c
	if s.remain[v] == 0 {
		// never used: free it immediately, matching a dead-on-arrival
		// definition that a following DCE pass would remove anyway.
		s.release(c)
	}
	return c
}

// AssignSCC also leaves p.SpillSlots set to the high-water class count
// reached, the frame size internal/module needs to pass an emitter's
// maxSCC parameter once RA has finished.
func AssignSCC(p *ir.Procedure, order []uint16) {
	s := newSCCState(p)
	for _, bid := range order {
		b := p.Block(bid)
		if !b.Live {
			continue
		}
		for pi := range b.Phis {
			dest := b.Phis[pi].Dest
			class := int32(-1)
			for _, alt := range b.Phis[pi].Alts {
				if c, ok := s.classOf[alt.Value]; ok {
					class = c
					break
				}
			}
			if class < 0 {
				class = s.define(dest)
			} else {
				s.classOf[dest] = class
			}
			p.Op(dest).SCC = class
			for _, alt := range b.Phis[pi].Alts {
				s.touch(alt.Value)
			}
		}
		for _, id := range b.Ops {
			op := p.Op(id)
			if op.IsNop() {
				continue
			}
			info := ir.Info(op.Opcode)
			for k := 0; k < 2; k++ {
				s.touch(op.In[k])
			}
			if info.NIn == 3 {
				s.touch(op.Label[0])
			}
			if op.Type != ir.TNone && !info.IsJump {
				op.SCC = s.define(id)
			}
		}
	}
	p.SpillSlots = s.next
}
