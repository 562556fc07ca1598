package ir

import "github.com/pkg/errors"

// Verify re-derives the structural invariants of spec §8 and returns
// the first violation found, or nil. It is the Go counterpart of the
// original implementation's sanity.cpp (SPEC_FULL.md supplement #1):
// internal/module's Builder.Compile runs it before and after the
// optimizer and register allocator, and tests or the CLI's -verify flag
// can call it after any pass.
func Verify(p *Procedure) error {
	seen := map[OpID]uint16{}

	for _, blk := range p.Blocks {
		if !blk.Live {
			continue
		}
		for _, ph := range blk.Phis {
			if err := checkPhi(p, blk, &ph); err != nil {
				return err
			}
			seen[ph.Dest] = blk.ID
		}
		for i, id := range blk.Ops {
			op := p.Op(id)
			if op.Index != id {
				return errors.Errorf("ir: I1 violated: op %d has Index %d", id, op.Index)
			}
			if op.IsNop() {
				continue
			}
			if prevBlk, ok := seen[id]; ok {
				return errors.Errorf("ir: I2 violated: op %d appears in both block %d and block %d", id, prevBlk, blk.ID)
			}
			seen[id] = blk.ID

			info := Info(op.Opcode)
			for k := 0; k < info.NIn && k < 2; k++ {
				if err := checkDominates(p, blk, op.In[k], id); err != nil {
					return err
				}
			}

			if info.IsJump && i != len(blk.Ops)-1 {
				return errors.Errorf("ir: I4 violated: jump op %d is not the last op of block %d", id, blk.ID)
			}
			if op.Opcode == Jmp && op.Label[1] != NoOp {
				return errors.Errorf("ir: I4 violated: jmp %d carries a second label", id)
			}
			switch op.Opcode {
			case Alloc:
				if blk.ID != 0 || i != 0 {
					return errors.Errorf("ir: I5 violated: alloc %d is not the first op of block 0", id)
				}
			case Iarg, Farg, Darg:
				if blk.ID != 0 {
					return errors.Errorf("ir: I5 violated: arg op %d outside block 0", id)
				}
			}
		}
		if blk.RegsDone {
			if err := checkRAOutputs(p, blk); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkPhi(p *Procedure, blk *Block, ph *Phi) error {
	dest := p.Op(ph.Dest)
	if len(ph.Alts) != len(blk.ComeFrom) {
		return errors.Errorf("ir: I6 violated: phi %d in block %d has %d alternatives, want %d (one per come-from)",
			ph.Dest, blk.ID, len(ph.Alts), len(blk.ComeFrom))
	}
	for _, pred := range blk.ComeFrom {
		alt := ph.AltFor(pred)
		if alt == nil {
			return errors.Errorf("ir: I6 violated: phi %d in block %d has no alternative from block %d", ph.Dest, blk.ID, pred)
		}
		if alt.Value != NoOp {
			if vt := p.Op(alt.Value).Type; vt != dest.Type {
				return errors.Errorf("ir: I6 violated: phi %d type %s, alternative from %d has type %s", ph.Dest, dest.Type, pred, vt)
			}
		}
	}
	return nil
}

// checkDominates verifies invariant I3: every input must be defined by
// an op that dominates the user. Dominance is only meaningful once
// internal/cfg has computed Block.Dom chains; before that, the check
// is skipped (dom chains are nil on a freshly built procedure).
func checkDominates(p *Procedure, userBlk *Block, input, user OpID) error {
	if input == NoOp {
		return nil
	}
	def := p.Op(input)
	if def.IsNop() {
		return nil
	}
	defBlk := p.Block(def.Block)
	if len(defBlk.Dom) == 0 && len(userBlk.Dom) == 0 {
		return nil // dominator info not computed yet
	}
	if defBlk.ID == userBlk.ID {
		// same block: definition must precede use in op order, except
		// phis which dominate everything in their own block by
		// definition.
		if def.Opcode == Phi {
			return nil
		}
		for _, id := range userBlk.Ops {
			if id == input {
				return nil
			}
			if id == user {
				break
			}
		}
		return errors.Errorf("ir: I3 violated: op %d uses %d which is defined later in the same block", user, input)
	}
	if !userBlk.DominatedBy(defBlk.ID) {
		return errors.Errorf("ir: I3 violated: op %d (block %d) uses %d (block %d) which does not dominate it", user, userBlk.ID, input, defBlk.ID)
	}
	return nil
}

// checkRAOutputs verifies the post-RA invariant of spec §8 that every
// op with an output has a register or is marked spilled. It does not
// compare a block's RegsOut with its successors' RegsIn.
func checkRAOutputs(p *Procedure, blk *Block) error {
	for _, id := range blk.Ops {
		op := p.Op(id)
		if op.IsNop() {
			continue
		}
		info := Info(op.Opcode)
		if op.Type != TNone && !info.IsJump && op.Reg == NoReg && !op.Spill {
			return errors.Errorf("ir: post-RA violated: op %d has output type %s but no register and is not spilled", id, op.Type)
		}
	}
	return nil
}
