package wasm

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

func instantiate(t *testing.T, bin []byte, host func(r wazero.Runtime)) api.Module {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { r.Close(ctx) })
	if host != nil {
		host(r)
	}
	mod, err := r.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return mod
}

func TestModuleBuilder_Arithmetic(t *testing.T) {
	b := NewModuleBuilder()
	b.Func("add", []api.ValueType{i32, i32}, []api.ValueType{i32}, nil,
		Code{}.LocalGet(0).LocalGet(1).I32Add().End())
	b.Func("widen", []api.ValueType{i32}, []api.ValueType{i64}, nil,
		Code{}.LocalGet(0).I64ExtendI32U().I64Const(1).I64Add().End())

	mod := instantiate(t, b.Build(), nil)
	ctx := context.Background()

	res, err := mod.ExportedFunction("add").Call(ctx, 40, 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res[0] != 42 {
		t.Errorf("add = %d, want 42", res[0])
	}

	res, err = mod.ExportedFunction("widen").Call(ctx, 0xFFFFFFFF)
	if err != nil {
		t.Fatalf("widen: %v", err)
	}
	if res[0] != 0x100000000 {
		t.Errorf("widen = %#x, want 0x100000000", res[0])
	}
}

func TestModuleBuilder_MemoryAndData(t *testing.T) {
	b := NewModuleBuilder()
	b.Memory("memory", 1, 2)
	b.Data(64, []byte{0x2a, 0, 0, 0})
	b.Func("load", []api.ValueType{i32}, []api.ValueType{i32}, nil,
		Code{}.LocalGet(0).I32Load(0).End())
	b.Func("store", []api.ValueType{i32, i32}, nil, nil,
		Code{}.LocalGet(0).LocalGet(1).I32Store(4).End())

	mod := instantiate(t, b.Build(), nil)
	ctx := context.Background()

	res, err := mod.ExportedFunction("load").Call(ctx, 64)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res[0] != 42 {
		t.Errorf("load = %d, want 42", res[0])
	}

	if _, err := mod.ExportedFunction("store").Call(ctx, 100, 7); err != nil {
		t.Fatalf("store: %v", err)
	}
	v, ok := mod.Memory().ReadUint32Le(104)
	if !ok || v != 7 {
		t.Errorf("memory[104] = %d, %v; want 7", v, ok)
	}
	if max, ok := mod.Memory().Definition().Max(); !ok || max != 2 {
		t.Errorf("memory max = %d, %v; want 2", max, ok)
	}
}

func TestModuleBuilder_ImportsAndLoops(t *testing.T) {
	var seen []uint32
	b := NewModuleBuilder()
	record := b.Import("env", "record", []api.ValueType{i32}, nil)

	// count(n) calls record(i) for i in [0, n) and returns n.
	const n, i = 0, 1
	b.Func("count", []api.ValueType{i32}, []api.ValueType{i32}, []api.ValueType{i32}, Code{}.
		Block(BlockEmpty).Loop(BlockEmpty).
		LocalGet(i).LocalGet(n).I32GeU().BrIf(1).
		LocalGet(i).Call(record).
		LocalGet(i).I32Const(1).I32Add().LocalSet(i).
		Br(0).
		End().End().
		LocalGet(i).End())

	mod := instantiate(t, b.Build(), func(r wazero.Runtime) {
		_, err := r.NewHostModuleBuilder("env").
			NewFunctionBuilder().
			WithFunc(func(v uint32) { seen = append(seen, v) }).
			Export("record").
			Instantiate(context.Background())
		if err != nil {
			t.Fatalf("host module: %v", err)
		}
	})

	res, err := mod.ExportedFunction("count").Call(context.Background(), 3)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if res[0] != 3 {
		t.Errorf("count = %d, want 3", res[0])
	}
	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Errorf("record calls = %v, want [0 1 2]", seen)
	}
}

func TestModuleBuilder_Unreachable(t *testing.T) {
	b := NewModuleBuilder()
	b.Func("trap", nil, nil, nil, Code{}.Unreachable().End())

	mod := instantiate(t, b.Build(), nil)
	if _, err := mod.ExportedFunction("trap").Call(context.Background()); err == nil {
		t.Fatal("expected trap")
	}
}

func TestModuleBuilder_ImportAfterFuncPanics(t *testing.T) {
	b := NewModuleBuilder()
	b.Func("f", nil, nil, nil, Code{}.End())
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	b.Import("env", "late", nil, nil)
}

func TestEncodeLocals(t *testing.T) {
	got := encodeLocals([]api.ValueType{i32, i32, i64, i32})
	want := []byte{3, 2, 0x7f, 1, 0x7e, 1, 0x7f}
	if string(got) != string(want) {
		t.Errorf("encodeLocals = %x, want %x", got, want)
	}
}
