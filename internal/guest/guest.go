// Package guest builds a small wasm32 module that behaves like a Roc
// application: it imports the env.roc_* functions, builds values with the
// Roc layout and consumes the values it is given.
package guest

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/roc-host/internal/wasm"
)

// WIT lists the exported functions with their WIT signatures. Functions
// returning a Str or List take a return pointer as their first wasm
// parameter.
const WIT = `
alloc: func(size: u32, align: u32) -> u32;
realloc: func(ptr: u32, new-size: u32, old-size: u32, align: u32) -> u32;
dealloc: func(ptr: u32, align: u32);
memset: func(ptr: u32, value: u32, n: u32) -> u32;
fail: func(msg: string, tag: u32);
dbg: func(loc: string, msg: string, src: string);
retain: func(refcount-ptr: u32);
release-rc: func(refcount-ptr: u32);
str-identity: func(s: string) -> string;
repeat: func(c: u8, n: u32) -> string;
make-list: func(n: u32) -> list<s64>;
sum-list: func(items: list<s64>) -> s64;
`

// refcountOne is REFCOUNT_ONE for a 32-bit word.
const refcountOne int32 = -2147483648

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

func types(t ...api.ValueType) []api.ValueType { return t }

// Demo returns the encoded guest module. Memory starts at one page and is
// exported as "memory".
func Demo() []byte {
	b := wasm.NewModuleBuilder()

	rocAlloc := b.Import("env", "roc_alloc", types(i32, i32), types(i32))
	rocRealloc := b.Import("env", "roc_realloc", types(i32, i32, i32, i32), types(i32))
	rocDealloc := b.Import("env", "roc_dealloc", types(i32, i32), nil)
	rocPanic := b.Import("env", "roc_panic", types(i32, i32), nil)
	rocMemset := b.Import("env", "roc_memset", types(i32, i32, i32), types(i32))
	rocDbg := b.Import("env", "roc_dbg", types(i32, i32, i32), nil)

	b.Memory("memory", 1, 0)

	b.Func("alloc", types(i32, i32), types(i32), nil, wasm.Code{}.
		LocalGet(0).LocalGet(1).Call(rocAlloc).End())

	b.Func("realloc", types(i32, i32, i32, i32), types(i32), nil, wasm.Code{}.
		LocalGet(0).LocalGet(1).LocalGet(2).LocalGet(3).Call(rocRealloc).End())

	b.Func("dealloc", types(i32, i32), nil, nil, wasm.Code{}.
		LocalGet(0).LocalGet(1).Call(rocDealloc).End())

	b.Func("memset", types(i32, i32, i32), types(i32), nil, wasm.Code{}.
		LocalGet(0).LocalGet(1).LocalGet(2).Call(rocMemset).End())

	b.Func("fail", types(i32, i32), nil, nil, wasm.Code{}.
		LocalGet(0).LocalGet(1).Call(rocPanic).Unreachable().End())

	b.Func("dbg", types(i32, i32, i32), nil, nil, wasm.Code{}.
		LocalGet(0).LocalGet(1).LocalGet(2).Call(rocDbg).End())

	// retain/release_rc move a refcount word one step, the way Roc's
	// inc/dec do for a shared value.
	b.Func("retain", types(i32), nil, nil, wasm.Code{}.
		LocalGet(0).LocalGet(0).I32Load(0).I32Const(1).I32Add().I32Store(0).End())

	b.Func("release_rc", types(i32), nil, nil, wasm.Code{}.
		LocalGet(0).LocalGet(0).I32Load(0).I32Const(1).I32Sub().I32Store(0).End())

	// str_identity(ret, arg) moves the argument record into the result.
	b.Func("str_identity", types(i32, i32), nil, nil, copyRecord(wasm.Code{}).End())

	b.Func("repeat", types(i32, i32, i32), nil, types(i32), repeatBody(rocAlloc, rocMemset))
	b.Func("make_list", types(i32, i32), nil, types(i32, i32), makeListBody(rocAlloc))
	b.Func("sum_list", types(i32), types(i64), types(i32, i64, i32, i32), sumListBody(rocDealloc))

	return b.Build()
}

func copyRecord(c wasm.Code) wasm.Code {
	for _, off := range []uint32{0, 4, 8} {
		c = c.LocalGet(0).LocalGet(1).I32Load(off).I32Store(off)
	}
	return c
}

// repeatBody builds a big-form Str of n copies of c:
//
//	p = roc_alloc(n+4, 4); *p = REFCOUNT_ONE; roc_memset(p+4, c, n)
//	*ret = {p+4, n, n}
func repeatBody(rocAlloc, rocMemset uint32) wasm.Code {
	const ret, c, n, p = 0, 1, 2, 3
	return wasm.Code{}.
		LocalGet(n).I32Const(4).I32Add().I32Const(4).Call(rocAlloc).LocalSet(p).
		LocalGet(p).I32Const(refcountOne).I32Store(0).
		LocalGet(p).I32Const(4).I32Add().LocalGet(c).LocalGet(n).Call(rocMemset).Drop().
		LocalGet(ret).LocalGet(p).I32Const(4).I32Add().I32Store(0).
		LocalGet(ret).LocalGet(n).I32Store(4).
		LocalGet(ret).LocalGet(n).I32Store(8).
		End()
}

// makeListBody builds a List I64 holding 0..n-1. I64 elements need an
// 8-byte prefix, so the refcount sits at p+4 and elements at p+8. An
// empty list is {0, 0, 0} with no allocation.
func makeListBody(rocAlloc uint32) wasm.Code {
	const ret, n, p, i = 0, 1, 2, 3
	return wasm.Code{}.
		Block(wasm.BlockEmpty).
		LocalGet(n).I32Eqz().If(wasm.BlockEmpty).
		LocalGet(ret).I32Const(0).I32Store(0).
		LocalGet(ret).I32Const(0).I32Store(4).
		LocalGet(ret).I32Const(0).I32Store(8).
		Br(1).
		End().
		LocalGet(n).I32Const(8).I32Mul().I32Const(8).I32Add().I32Const(8).Call(rocAlloc).LocalSet(p).
		LocalGet(p).I32Const(refcountOne).I32Store(4).
		Block(wasm.BlockEmpty).Loop(wasm.BlockEmpty).
		LocalGet(i).LocalGet(n).I32GeU().BrIf(1).
		LocalGet(p).LocalGet(i).I32Const(8).I32Mul().I32Add().
		LocalGet(i).I64ExtendI32U().I64Store(8).
		LocalGet(i).I32Const(1).I32Add().LocalSet(i).
		Br(0).
		End().End().
		LocalGet(ret).LocalGet(p).I32Const(8).I32Add().I32Store(0).
		LocalGet(ret).LocalGet(n).I32Store(4).
		LocalGet(ret).LocalGet(n).I32Store(8).
		End().
		End()
}

// sumListBody adds up a List I64 passed by pointer and then frees it, as
// Roc does with an owned argument whose refcount drops to zero.
func sumListBody(rocDealloc uint32) wasm.Code {
	const arg, i, acc, elems, length = 0, 1, 2, 3, 4
	return wasm.Code{}.
		LocalGet(arg).I32Load(0).LocalSet(elems).
		LocalGet(arg).I32Load(4).LocalSet(length).
		Block(wasm.BlockEmpty).Loop(wasm.BlockEmpty).
		LocalGet(i).LocalGet(length).I32GeU().BrIf(1).
		LocalGet(acc).
		LocalGet(elems).LocalGet(i).I32Const(8).I32Mul().I32Add().I64Load(0).
		I64Add().LocalSet(acc).
		LocalGet(i).I32Const(1).I32Add().LocalSet(i).
		Br(0).
		End().End().
		LocalGet(arg).I32Load(8).
		If(wasm.BlockEmpty).
		LocalGet(elems).I32Const(8).I32Sub().I32Const(8).Call(rocDealloc).
		End().
		LocalGet(acc).
		End()
}
