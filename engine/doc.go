// Package engine runs Roc guests compiled to wasm32 under wazero.
//
// A Roc application expects its platform to provide a handful of runtime
// functions. The engine installs them as the host module "env" in its
// wazero runtime and serves them from a host-side heap per guest:
//
//	roc_alloc(size, align) -> ptr
//	roc_realloc(ptr, new_size, old_size, align) -> ptr
//	roc_dealloc(ptr, align)
//	roc_panic(msg *RocStr, tag)
//	roc_memset(ptr, value, count) -> ptr
//	roc_dbg(loc *RocStr, msg *RocStr, src *RocStr)
//
// # Architecture
//
//	Engine   - owns the wazero runtime, the env module and per-guest bridges
//	Module   - a compiled guest whose imports all resolve against env
//	Instance - a running guest; Env() exposes its memory to package roc
//
// Each guest gets an alloc.Bridge over its own memory, created on the
// first host call or at instantiation, whichever comes first. The heap
// starts at Config.HeapBase, or after the guest's initial memory when
// that is zero, and grows guest memory as needed.
//
// # Faults
//
// Host imports report failures by panicking with *errors.Error. wazero
// unwinds the guest and returns the error wrapped, so callers can match
// errors.ErrForeignAbort or errors.ErrOutOfMemory with errors.Is.
//
// # Export names
//
// Functions are looked up by WIT name. A name such as "main-for-host"
// resolves to the first export present among "main-for-host",
// "main_for_host", "roc__mainForHost_1_exposed_generic" and
// "roc__mainForHost_1_exposed".
package engine
