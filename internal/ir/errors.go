package ir

import "github.com/pkg/errors"

// ErrTooManyOps is the recoverable condition of spec §4.1/§7: the
// per-procedure op arena is capped at 65535 entries (a 16-bit index).
// Exceeding it is surfaced to the caller rather than panicking, since a
// front-end may want to report it as a normal compile failure instead
// of aborting the process.
var ErrTooManyOps = errors.New("bjit/ir: procedure exceeds 65535 ops")

// MaxOps is the hard cap on ops per procedure (spec §3: "16-bit-indexed
// record in a per-procedure arena (cap 65 535)").
const MaxOps = 65535
