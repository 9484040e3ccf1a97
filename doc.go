// Package rochost hosts values produced by Roc-compiled code inside Go.
//
// Roc strings and lists have a fixed binary layout with a hidden refcount
// word in front of every heap payload. This module reproduces that layout in
// a foreign linear memory (a wasm guest under wazero, or an in-process
// arena), converts values element by element between Go and Roc, and
// validates single ownership before giving memory back.
//
// # Architecture Overview
//
//	rochost/            Root package with Memory, Allocator and Bridge interfaces
//	├── runtime/        High-level API: load a guest, call it with Go values
//	├── engine/         wazero integration and the env.roc_* host imports
//	├── roc/            Str, List, type descriptors and layouts
//	├── alloc/          Heap over linear memory and the allocator bridge
//	├── memory/         In-process linear memory
//	├── resource/       Handle table for live Roc values
//	└── errors/         Structured error types
//
// # Quick Start
//
//	rt, err := runtime.New(ctx, runtime.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.LoadModule(ctx, wasmBytes, `greet: func(name: string) -> string;`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	result, err := inst.Call(ctx, "greet", "World")
//
// # Values Without a Guest
//
// The roc package works over any Memory. For tests and native hosts pair a
// memory.Linear with an alloc.Bridge:
//
//	mem := memory.NewLinear(1, 0)
//	env := roc.NewEnv(mem, alloc.NewBridge(mem, alloc.Config{Base: 16}), roc.Native64)
//	s, _ := roc.NewStrString(env, "a string too long to be stored inline")
//	defer s.Release()
//
// # Ownership
//
// Every Str and List wrapper owns exactly one reference to its payload.
// Release validates that the refcount word is still at RefcountOne and
// fails loudly with DoubleFree or StillShared otherwise. Transfer hands the
// reference to foreign code; Adopt takes one back.
//
// # Thread Safety
//
// Values and instances are not thread-safe. Runtime and the descriptor
// registry may be shared across goroutines.
package rochost
