// Scenario builders for bjitc's "run" subcommand, one per spec §8
// end-to-end scenario. Each function only touches pkg/bjit's
// re-exported ir.Builder surface, the same way a real front-end would
// sit entirely on the public facade rather than reaching into
// internal/ir directly.
package main

import "github.com/oisee/bjit/pkg/bjit"

// buildAddII is scenario 1: iadd(arg0, arg1) over "ii", f(2,5) == 7.
func buildAddII() *bjit.Procedure {
	b := bjit.NewBuilder("addii", "ii", 0, nil)
	b.Iret(b.Iadd(b.Arg(0), b.Arg(1)))
	return b.P
}

// buildAddFF is scenario 2: fadd over "ff", f(2.0,5.0) == 7.0.
func buildAddFF() *bjit.Procedure {
	b := bjit.NewBuilder("addff", "ff", 0, nil)
	b.Fret(b.Fadd(b.Arg(0), b.Arg(1)))
	return b.P
}

// buildFib is scenario 3: recursive fib(n), f(16) == 1597. selfIdx is
// this procedure's own about-to-be-assigned module index (from
// Compiler.NextIndex, queried before Compile runs), letting the body
// icalln itself. Exercises icalln, a conditional branch and the
// allocator under call pressure, same as spec §8 asks for.
func buildFib(selfIdx int32) *bjit.Procedure {
	b := bjit.NewBuilder("fib", "i", 0, nil)
	n := b.Arg(0)
	two := b.Lci(2)

	baseL, recurL := b.NewLabel(), b.NewLabel()
	b.Jilt(n, two, baseL, recurL)

	b.Place(baseL)
	b.Iret(n)

	b.Place(recurL)
	one := b.Lci(1)
	nMinus1 := b.Isub(n, one)
	nMinus2 := b.Isub(n, two)
	a := b.Call(bjit.NoOp, selfIdx, []bjit.OpID{nMinus1}, bjit.TInt)
	c := b.Call(bjit.NoOp, selfIdx, []bjit.OpID{nMinus2}, bjit.TInt)
	b.Iret(b.Iadd(a, c))
	return b.P
}

// buildSieve is scenario 4: sieve of Eratosthenes over a caller-owned
// byte buffer, returning the prime count. Argument 0 is the buffer
// pointer (non-zero bytes mean "still a candidate"), argument 1 is the
// buffer length n. The caller is responsible for memset'ing the buffer
// to 1 before the call (this procedure only clears composites and
// counts), mirroring how the reference sieve takes a pre-allocated
// output buffer.
//
// Local slots (beyond the two arguments): i, j, count.
func buildSieve() *bjit.Procedure {
	b := bjit.NewBuilder("sieve", "ii", 0, []bjit.Type{bjit.TInt, bjit.TInt, bjit.TInt})
	const (
		slotI = iota + 3
		slotJ
		slotCount
	)
	buf, n := b.Arg(0), b.Arg(1)
	zero, one, two := b.Lci(0), b.Lci(1), b.Lci(2)

	b.SetSlot(slotI, two)
	outerHead, outerBody, outerEnd := b.NewLabel(), b.NewLabel(), b.NewLabel()
	b.Jmp(outerHead)

	b.Place(outerHead)
	i := b.GetSlot(slotI)
	isq := b.Imul(i, i)
	b.Jigt(isq, n, outerEnd, outerBody)

	b.Place(outerBody)
	v := b.L2i8(buf, i)
	markL, skipL := b.NewLabel(), b.NewLabel()
	b.Jieq(v, zero, skipL, markL)

	b.Place(markL)
	b.SetSlot(slotJ, isq)
	innerHead, innerBody, innerEnd := b.NewLabel(), b.NewLabel(), b.NewLabel()
	b.Jmp(innerHead)

	b.Place(innerHead)
	j := b.GetSlot(slotJ)
	b.Jige(j, n, innerEnd, innerBody)

	b.Place(innerBody)
	b.S2i8(buf, j, zero)
	b.SetSlot(slotJ, b.Iadd(j, i))
	b.Jmp(innerHead)

	b.Place(innerEnd)
	b.Jmp(skipL)

	b.Place(skipL)
	b.SetSlot(slotI, b.Iadd(i, one))
	b.Jmp(outerHead)

	b.Place(outerEnd)
	b.SetSlot(slotCount, zero)
	b.SetSlot(slotI, two)
	countHead, countBody, countEnd := b.NewLabel(), b.NewLabel(), b.NewLabel()
	b.Jmp(countHead)

	b.Place(countHead)
	ci := b.GetSlot(slotI)
	b.Jige(ci, n, countEnd, countBody)

	b.Place(countBody)
	cv := b.L2i8(buf, ci)
	bumpL, nobumpL := b.NewLabel(), b.NewLabel()
	b.Jieq(cv, zero, nobumpL, bumpL)

	b.Place(bumpL)
	b.SetSlot(slotCount, b.Iadd(b.GetSlot(slotCount), one))
	b.Jmp(nobumpL)

	b.Place(nobumpL)
	b.SetSlot(slotI, b.Iadd(ci, one))
	b.Jmp(countHead)

	b.Place(countEnd)
	b.Iret(b.GetSlot(slotCount))
	return b.P
}

// buildStubCaller is scenario 5: a near call through module index
// stubIdx, the caller around spec §8.5's retargeting test ("compile a
// caller invoking module-index 0"). The stub itself is reserved with
// Compiler.AddStub, not built here.
func buildStubCaller(stubIdx int32) *bjit.Procedure {
	b := bjit.NewBuilder("callstub", "", 0, nil)
	b.Iret(b.Call(bjit.NoOp, stubIdx, nil, bjit.TInt))
	return b.P
}

// recordField describes one field of scenario 6's fixed-layout record
// (spec §8.6: "a record with {i8,u8,i16,u16,i32,u32,i64,f32,f64}
// fields at fixed offsets"). Offsets are 8-byte separated so every
// field, including the 8-byte ones, sits on a naturally aligned
// boundary without needing to reason about packing.
type recordField struct {
	name   string
	offset int16
	// argType is the setter's value-argument type tag ('i' for every
	// integer width bjit.Type can carry unsigned/signed, 'f'/'d' for
	// the floats), following ir.NewBuilder's argTypes convention.
	argType byte
}

var recordFields = []recordField{
	{"i8", 0, 'i'},
	{"u8", 8, 'i'},
	{"i16", 16, 'i'},
	{"u16", 24, 'i'},
	{"i32", 32, 'i'},
	{"u32", 40, 'i'},
	{"i64", 48, 'i'},
	{"f32", 56, 'f'},
	{"f64", 64, 'd'},
}

// buildGetter and buildSetter are scenario 6's per-field load/store
// coverage: a getter procedure "<name>_get(ptr i) -> field-typed" and
// a setter procedure "<name>_set(ptr i, v field-typed)". f.name must
// be one of recordFields' names.
func buildGetter(f recordField) *bjit.Procedure {
	b := bjit.NewBuilder(f.name+"_get", "i", 0, nil)
	ptr := b.Arg(0)
	switch f.name {
	case "i8":
		b.Iret(b.Li8(ptr, f.offset))
	case "u8":
		b.Iret(b.Lu8(ptr, f.offset))
	case "i16":
		b.Iret(b.Li16(ptr, f.offset))
	case "u16":
		b.Iret(b.Lu16(ptr, f.offset))
	case "i32":
		b.Iret(b.Li32(ptr, f.offset))
	case "u32":
		b.Iret(b.Lu32(ptr, f.offset))
	case "i64":
		b.Iret(b.Li64(ptr, f.offset))
	case "f32":
		b.Fret(b.Lf32(ptr, f.offset))
	case "f64":
		b.Dret(b.Lf64(ptr, f.offset))
	}
	return b.P
}

func buildSetter(f recordField) *bjit.Procedure {
	b := bjit.NewBuilder(f.name+"_set", "i"+string(f.argType), 0, nil)
	ptr, v := b.Arg(0), b.Arg(1)
	switch f.name {
	case "i8", "u8":
		b.Si8(ptr, f.offset, v)
	case "i16", "u16":
		b.Si16(ptr, f.offset, v)
	case "i32", "u32":
		b.Si32(ptr, f.offset, v)
	case "i64":
		b.Si64(ptr, f.offset, v)
	case "f32":
		b.Sf32(ptr, f.offset, v)
	case "f64":
		b.Sf64(ptr, f.offset, v)
	}
	b.IretI(0)
	return b.P
}
