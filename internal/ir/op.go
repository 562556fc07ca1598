package ir

// OpID indexes into Procedure.Ops. Spec invariant I1: OpID(i) always
// equals Ops[i].Index.
type OpID = uint16

// NoOp marks an absent operand / label reference.
const NoOp OpID = 0xFFFF

// Op is one arena record (spec §3). Go has no tagged unions, so the
// payload fields below are a flat struct whose valid members are
// selected by Opcode through OpTable — exactly the "genuine
// discriminated union, modeled as a sum type but packed for
// convenience" that spec §9 calls for. Only the fields relevant to an
// op's opcode are meaningful; the rest are zero.
type Op struct {
	Index  OpID
	Opcode Opcode
	Block  uint16

	// Input payload: up to two input op indices and a 32-bit immediate,
	// OR a 64-bit integer/double payload, OR (for iarg/farg/darg) a
	// packed index-within-type-class / global-position pair.
	In       [2]OpID
	Imm32    int32
	Imm64    uint64
	ArgIndex uint8 // index within its type class (iarg/farg/darg)
	ArgPos   uint8 // global position among all incoming arguments

	// Jump payload: up to two target block ids. Mutually exclusive with
	// the scc/nUse output payload below in the original's union; here
	// simply separate fields.
	Label [2]uint16

	// Output payload.
	Type Type
	Reg  Reg
	SCC  int32  // spill slot id, -1 if none assigned
	NUse uint32 // use count, recomputed by live.Scan

	Spill bool // value must be stored to its SCC slot after production
	NoOpt bool // do not sink/hoist/CSE further (jump-opt loop copies)

	MemTag uint32 // memory-ordering snapshot, guards load rematerialization
}

// IsNop reports whether op has been tombstoned.
func (o *Op) IsNop() bool { return o.Opcode == Nop }

// Arena is the per-procedure op store. Ops are created monotonically
// and never physically removed; deletion turns an op into Nop (spec
// §3 Lifecycle).
type Arena struct {
	ops []Op
}

// New appends a fresh op and returns its id. Fails with ErrTooManyOps
// once the arena would exceed MaxOps entries.
func (a *Arena) New(opcode Opcode) (OpID, error) {
	if len(a.ops) >= MaxOps {
		return NoOp, ErrTooManyOps
	}
	id := OpID(len(a.ops))
	a.ops = append(a.ops, Op{
		Index: id, Opcode: opcode, Reg: NoReg, SCC: -1,
		In:    [2]OpID{NoOp, NoOp},
		Label: [2]uint16{NoOp, NoOp},
	})
	return id, nil
}

// Get returns a pointer to the op at id. NewProcedure reserves the
// arena's full MaxOps capacity up front, so New never reallocates its
// backing slice and the pointer stays valid for the procedure's life.
func (a *Arena) Get(id OpID) *Op { return &a.ops[id] }

// Len returns the number of ops ever created (including tombstones).
func (a *Arena) Len() int { return len(a.ops) }

// All returns the live backing slice, for iteration by index.
func (a *Arena) All() []Op { return a.ops }
