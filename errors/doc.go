// Package errors provides the structured error type shared by the Roc host
// packages.
//
// Every error carries a Phase (alloc, encode, decode, release, transfer,
// runtime, ...) and a Kind. Conversion errors also record the element path
// and the Go and Roc type names involved:
//
//	err := errors.New(errors.PhaseEncode, errors.KindOverflow).
//		Path("items", "[3]").
//		GoType("int64").
//		RocType("U8").
//		Detail("value 300 overflows U8").
//		Build()
//
// Ownership failures have dedicated constructors and match targets:
//
//	if stderrors.Is(err, errors.ErrDoubleFree) { ... }
//
// A target without a phase matches on kind alone, so the Err* values match
// an error raised in any phase. Errors raised inside a host import keep
// their identity through the wasm call and can be matched the same way.
package errors
