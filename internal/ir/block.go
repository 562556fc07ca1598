package ir

// PhiAlt is one predecessor alternative of a phi (spec invariant I6:
// exactly one alternative per come-from entry, matching types).
type PhiAlt struct {
	FromBlock uint16
	Value     OpID
}

// Phi binds a destination op (always opcode Phi, or post-RA a
// materialized value) to its per-predecessor alternatives.
type Phi struct {
	Dest OpID
	Alts []PhiAlt
}

// AltFor returns the alternative coming from block `from`, or nil.
func (p *Phi) AltFor(from uint16) *PhiAlt {
	for i := range p.Alts {
		if p.Alts[i].FromBlock == from {
			return &p.Alts[i]
		}
	}
	return nil
}

// Block is one basic block (spec §3). Ops is the ordered instruction
// list; Phis holds block-argument dataflow, kept separate from Ops so
// optimizer passes can walk straight-line code without special-casing
// merge points, matching the original's block-argument design (spec
// §4.1: "a phi op per environment slot").
type Block struct {
	ID uint16

	Ops  []OpID
	Phis []Phi

	ComeFrom []uint16

	LiveIn map[OpID]bool

	// Dominator chain: Dom[0] is the entry block, Dom[len-1] is this
	// block itself — a root-to-b path, used for closest-common-dominator
	// lookups in CSE (spec §4.2).
	Dom   []uint16
	IDom  uint16
	IPDom uint16
	HasIPDom bool

	// Register-allocator block-boundary state, populated during RA
	// (spec §4.5.3 step 5, §4.5.5 edge shuffles).
	RegsIn  map[Reg]OpID
	RegsOut map[Reg]OpID

	Live     bool
	RegsDone bool
	CodeDone bool

	// Scheduling/emission state, set by internal/arch during emit.
	Offset int
	Synthetic bool // shuffle block or critical-edge split block
}

// NewBlock allocates a fresh, empty, live block with id `id`.
func NewBlock(id uint16) *Block {
	return &Block{ID: id, Live: true}
}

// AddOp appends op id to the block's instruction list.
func (b *Block) AddOp(id OpID) { b.Ops = append(b.Ops, id) }

// RemoveComeFrom deletes pred from the come-from list, if present.
func (b *Block) RemoveComeFrom(pred uint16) {
	out := b.ComeFrom[:0]
	for _, p := range b.ComeFrom {
		if p != pred {
			out = append(out, p)
		}
	}
	b.ComeFrom = out
}

// DominatedBy reports whether d is in b's dominator chain.
func (b *Block) DominatedBy(d uint16) bool {
	for _, x := range b.Dom {
		if x == d {
			return true
		}
	}
	return false
}
