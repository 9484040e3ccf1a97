// Package roc marshals values between Go and Roc's in-memory layout.
//
// A Roc value lives in foreign linear memory and is described on the Go
// side by a fixed-size record:
//
//	Str:  small form  [bytes... | 0x80|len]          (3 words, inline)
//	      big form    {bytes, len, cap}              (refcount at bytes-word)
//	List: {elements, length, capacity}               (refcount at elements-word)
//
// Heap payloads carry a signed refcount word directly in front of the data.
// The most negative word value means "exactly one reference"; values
// between it and zero mean shared; zero or positive means released.
//
// Str and List own their payload until Release or Transfer. They are not
// safe for concurrent use. Descriptors are immutable and shared
// process-wide through Lookup and ListOf.
package roc
