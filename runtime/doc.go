// Package runtime runs Roc guests compiled to wasm32 and moves Str and
// List values across the call boundary.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx, runtime.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.LoadModule(ctx, wasmBytes, `
//	    greet: func(name: string) -> string;
//	    sum: func(items: list<s64>) -> s64;
//	`)
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
//	total, err := inst.Call(ctx, "sum", []int64{1, 2, 3}) // int64(6)
//	greeting, err := inst.CallHost(ctx, "greet", "World") // "Hello, World!"
//
// # Signatures
//
// Core wasm modules carry no type information, so LoadModule takes WIT
// text declaring each exported function. The supported WIT types are
// bool, s8..s64, u8..u64, f32, f64, string and list<T>; they map to the
// Roc types Bool, I8..I64, U8..U64, F32, F64, Str and List T. A WIT name
// resolves to the export with the same name, its snake_case form or the
// Roc roc__name_1_exposed symbols.
//
// # Calling Convention
//
// Scalars are passed as wasm values. A Str or List argument is written
// into a three-word record in guest memory and passed by pointer; the
// guest owns the payload afterwards. A function returning a Str or List
// takes a pointer to a result record as its first wasm parameter.
//
// # Values
//
// NewStr, NewList and New build values in guest memory. Each Value lives
// in the instance's table until it is released, passed to a guest or
// collected:
//
//	s, _ := inst.NewStr("hello")
//	defer s.Release()
//
// A Value that becomes unreachable without Release is queued by a
// runtime.AddCleanup hook and freed by the next Instance.Collect. Close
// releases everything still live.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Instance and Value are
// not; use one Instance per goroutine.
package runtime
