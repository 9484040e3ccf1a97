package runtime

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/roc-host/alloc"
	"github.com/wippyai/roc-host/engine"
	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/internal/guest"
	"github.com/wippyai/roc-host/roc"
)

func errorKind(err error) errors.Kind {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Config
		wantErr errors.Kind
	}{
		{name: "empty", input: ""},
		{name: "empty object", input: "{}"},
		{
			name:  "full",
			input: `{"layout": "native64", "memory_limit_pages": 256, "heap_base": 65536, "extra": true}`,
			want:  Config{Layout: roc.Native64, MemoryLimitPages: 256, HeapBase: 65536},
		},
		{name: "wasm32", input: `{"layout": "wasm32"}`, want: Config{Layout: roc.Wasm32}},
		{name: "invalid json", input: `{"layout":`, wantErr: errors.KindInvalidInput},
		{name: "not an object", input: `[1, 2]`, wantErr: errors.KindInvalidInput},
		{name: "unknown layout", input: `{"layout": "wasm16"}`, wantErr: errors.KindInvalidInput},
		{name: "negative", input: `{"heap_base": -1}`, wantErr: errors.KindInvalidInput},
		{name: "fraction", input: `{"memory_limit_pages": 1.5}`, wantErr: errors.KindInvalidInput},
		{name: "too large", input: `{"heap_base": 4294967296}`, wantErr: errors.KindInvalidInput},
		{name: "string number", input: `{"heap_base": "16"}`, wantErr: errors.KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfig([]byte(tt.input))
			if tt.wantErr != "" {
				if errorKind(err) != tt.wantErr {
					t.Fatalf("error = %v, want kind %s", err, tt.wantErr)
				}
				if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: tt.wantErr}) {
					t.Errorf("error phase should be config: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseConfig: %v", err)
			}
			if got.Layout != tt.want.Layout || got.MemoryLimitPages != tt.want.MemoryLimitPages || got.HeapBase != tt.want.HeapBase {
				t.Errorf("ParseConfig = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNew_Logger(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(func() {
		SetLogger(nil)
		engine.SetLogger(nil)
		alloc.SetLogger(nil)
	})

	rt, err := New(ctx, Config{Logger: zap.New(core), Layout: roc.Native64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close(ctx)

	if rt.Layout() != roc.Native64 {
		t.Errorf("Layout = %v", rt.Layout())
	}
	entries := logs.FilterMessage("runtime created").All()
	if len(entries) != 1 {
		t.Fatalf("got %d runtime created entries", len(entries))
	}
	if got := entries[0].ContextMap()["layout"]; got != "native64" {
		t.Errorf("layout field = %v", got)
	}
	if engine.Logger().Core() != core || alloc.Logger().Core() != core {
		t.Error("engine and alloc loggers should follow the config")
	}
}

func TestLoadModule(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close(ctx)

	t.Run("demo", func(t *testing.T) {
		mod, err := rt.LoadModule(ctx, guest.Demo(), guest.WIT)
		if err != nil {
			t.Fatalf("LoadModule: %v", err)
		}
		sigs := mod.Signatures()
		if len(sigs) != 12 {
			t.Errorf("got %d signatures", len(sigs))
		}
		for i := 1; i < len(sigs); i++ {
			if sigs[i-1].Name >= sigs[i].Name {
				t.Fatalf("signatures not sorted: %s before %s", sigs[i-1].Name, sigs[i].Name)
			}
		}
		exports := mod.Exports()
		if len(exports) != 12 {
			t.Errorf("exports = %v", exports)
		}
	})

	t.Run("no WIT", func(t *testing.T) {
		mod, err := rt.LoadModule(ctx, guest.Demo(), "")
		if err != nil {
			t.Fatalf("LoadModule: %v", err)
		}
		if len(mod.Signatures()) != 0 {
			t.Error("expected no signatures")
		}
	})

	tests := []struct {
		name string
		wasm []byte
		wit  string
		kind errors.Kind
	}{
		{"invalid wasm", []byte("not wasm"), "", errors.KindInvalidData},
		{"missing export", guest.Demo(), "nope: func(x: u32) -> u32;", errors.KindNotFound},
		{"unsupported type", guest.Demo(), "alloc: func(size: char, align: u32) -> u32;", errors.KindUnsupported},
		{"malformed param", guest.Demo(), "alloc: func(u32, u32) -> u32;", errors.KindInvalidInput},
		{"no functions", guest.Demo(), "interface empty {}", errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rt.LoadModule(ctx, tt.wasm, tt.wit)
			if errorKind(err) != tt.kind {
				t.Fatalf("error = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestParseWitFunctions(t *testing.T) {
	sigs, err := parseWitFunctions(`
		export sum: func(items: list<list<s64>>, scale: f64) -> f64;
		greet: func(name: string) -> string;
		touch: func();
	`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	sum := sigs["sum"]
	if sum == nil || len(sum.Params) != 2 {
		t.Fatalf("sum = %+v", sum)
	}
	if sum.Params[0].Name != "items" || sum.Params[0].Type.Name() != "List (List I64)" {
		t.Errorf("sum param 0 = %s %s", sum.Params[0].Name, sum.Params[0].Type.Name())
	}
	if got := sum.String(); got != "sum : List (List I64), F64 -> F64" {
		t.Errorf("String = %q", got)
	}
	if sum.returnsRecord() {
		t.Error("F64 result is a scalar")
	}

	if greet := sigs["greet"]; !greet.returnsRecord() || greet.Result != roc.StrType {
		t.Errorf("greet = %+v", greet)
	}
	touch := sigs["touch"]
	if touch.Result != nil || len(touch.Params) != 0 {
		t.Errorf("touch = %+v", touch)
	}
	if got := touch.String(); got != "touch : {} -> {}" {
		t.Errorf("String = %q", got)
	}

	_, err = parseWitFunctions("a: func(); a: func();")
	if errorKind(err) != errors.KindInvalidInput {
		t.Errorf("duplicate function: %v", err)
	}
}

func TestSplitParams(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a: u32", []string{"a: u32"}},
		{"a: u32, b: list<s64>", []string{"a: u32", "b: list<s64>"}},
		{"a: tuple<u8, u8>, b: string", []string{"a: tuple<u8, u8>", "b: string"}},
		{" a: u8 , ", []string{"a: u8"}},
	}
	for _, tt := range tests {
		got := splitParams(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("splitParams(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewArena(t *testing.T) {
	env := NewArena(roc.Native64, 0)
	if env.Layout != roc.Native64 {
		t.Fatalf("Layout = %v", env.Layout)
	}

	s, err := roc.NewStrString(env, "a native string longer than twenty-three bytes")
	if err != nil {
		t.Fatalf("NewStrString: %v", err)
	}
	if s.IsSmall() {
		t.Error("expected a heap string")
	}
	if err := s.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
}
