package ir

// NearCallReloc records a near-call site so the module linker can patch
// in the callee's final offset once every procedure in the module has
// been laid out (spec §3 Procedure, §6 "Relocations are internal to a
// module").
type NearCallReloc struct {
	FromOp    OpID
	CalleeIdx int // module-relative procedure index
}

// Procedure owns one SSA function's arena, block list, and the
// builder/allocator scratch state that accumulates as it is
// constructed and then compiled (spec §3).
type Procedure struct {
	Name     string
	ArgTypes string
	Arena    Arena
	Blocks   []*Block

	// Builder cursor/environment (spec §4.1).
	cur OpID
	Cur uint16   // current block id
	Env []OpID   // current environment: slot -> defining op

	UsedRegs  RegMask // callee-save mask actually clobbered
	SpillSlots int32
	NearCalls []NearCallReloc

	RADone bool
	Unsafe bool // fast-math / unsafe-reassociation flag (spec §4.4, Non-goals)
}

// NewProcedure creates an empty procedure over the given argument-type
// string ("ii", "ff", "idf", ...) with a single entry block.
func NewProcedure(name, argTypes string) *Procedure {
	p := &Procedure{Name: name, ArgTypes: argTypes}
	// Pre-reserve the full MaxOps capacity so Arena.New's append never
	// reallocates the backing array: every *Op obtained from p.Op stays
	// valid for the procedure's lifetime, even across later op creation.
	p.Arena.ops = make([]Op, 0, MaxOps)
	entry := NewBlock(0)
	p.Blocks = append(p.Blocks, entry)
	p.Cur = 0
	return p
}

// Block returns the block with the given id.
func (p *Procedure) Block(id uint16) *Block { return p.Blocks[id] }

// CurBlock returns the block the builder is currently appending to.
func (p *Procedure) CurBlock() *Block { return p.Blocks[p.Cur] }

// Op returns the op record for id.
func (p *Procedure) Op(id OpID) *Op { return p.Arena.Get(id) }

// NumBlocks returns the number of blocks, live or not.
func (p *Procedure) NumBlocks() int { return len(p.Blocks) }

// AddBlock allocates and registers a new block, returning its id.
func (p *Procedure) AddBlock() *Block {
	b := NewBlock(uint16(len(p.Blocks)))
	p.Blocks = append(p.Blocks, b)
	return b
}

// ForEachLiveBlock calls f for every block currently flagged live, in
// id order (blocks are appended in creation order, which after
// DCE/jump-opt is not necessarily a valid schedule — emit.go performs
// its own depth-first walk for that).
func (p *Procedure) ForEachLiveBlock(f func(b *Block)) {
	for _, b := range p.Blocks {
		if b.Live {
			f(b)
		}
	}
}
