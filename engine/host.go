package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/roc-host/alloc"
	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/roc"
)

// HostModule is the import module Roc guests link their runtime
// functions against.
const HostModule = "env"

// DbgHandler receives roc_dbg output: the source location, the rendered
// value and the source expression.
type DbgHandler func(ctx context.Context, location, message, source string)

var i32 = api.ValueTypeI32

// hostFunc describes one env import.
type hostFunc struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
	names   []string
	fn      func(e *Engine) api.GoModuleFunc
}

var hostFuncs = []hostFunc{
	{
		name:    "roc_alloc",
		params:  []api.ValueType{i32, i32},
		results: []api.ValueType{i32},
		names:   []string{"size", "alignment"},
		fn: func(e *Engine) api.GoModuleFunc {
			return func(_ context.Context, mod api.Module, stack []uint64) {
				b := e.bridgeFor(mod)
				ptr, err := b.Alloc(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
				if err != nil {
					panic(err)
				}
				stack[0] = api.EncodeU32(ptr)
			}
		},
	},
	{
		name:    "roc_realloc",
		params:  []api.ValueType{i32, i32, i32, i32},
		results: []api.ValueType{i32},
		names:   []string{"ptr", "new_size", "old_size", "alignment"},
		fn: func(e *Engine) api.GoModuleFunc {
			return func(_ context.Context, mod api.Module, stack []uint64) {
				b := e.bridgeFor(mod)
				ptr, err := b.Realloc(api.DecodeU32(stack[0]), api.DecodeU32(stack[1]),
					api.DecodeU32(stack[2]), api.DecodeU32(stack[3]))
				if err != nil {
					panic(err)
				}
				stack[0] = api.EncodeU32(ptr)
			}
		},
	},
	{
		name:   "roc_dealloc",
		params: []api.ValueType{i32, i32},
		names:  []string{"ptr", "alignment"},
		fn: func(e *Engine) api.GoModuleFunc {
			return func(_ context.Context, mod api.Module, stack []uint64) {
				if err := e.bridgeFor(mod).Dealloc(api.DecodeU32(stack[0]), api.DecodeU32(stack[1])); err != nil {
					panic(err)
				}
			}
		},
	},
	{
		name:   "roc_panic",
		params: []api.ValueType{i32, i32},
		names:  []string{"msg", "tag"},
		fn: func(e *Engine) api.GoModuleFunc {
			return func(_ context.Context, mod api.Module, stack []uint64) {
				b := e.bridgeFor(mod)
				msg := e.guestStr(mod, b, api.DecodeU32(stack[0]))
				panic(b.Abort(msg, api.DecodeU32(stack[1])))
			}
		},
	},
	{
		name:    "roc_memset",
		params:  []api.ValueType{i32, i32, i32},
		results: []api.ValueType{i32},
		names:   []string{"ptr", "value", "count"},
		fn: func(e *Engine) api.GoModuleFunc {
			return func(_ context.Context, mod api.Module, stack []uint64) {
				ptr := api.DecodeU32(stack[0])
				if err := e.bridgeFor(mod).Fill(ptr, byte(stack[1]), api.DecodeU32(stack[2])); err != nil {
					panic(err)
				}
				stack[0] = api.EncodeU32(ptr)
			}
		},
	},
	{
		name:   "roc_dbg",
		params: []api.ValueType{i32, i32, i32},
		names:  []string{"loc", "msg", "src"},
		fn: func(e *Engine) api.GoModuleFunc {
			return func(ctx context.Context, mod api.Module, stack []uint64) {
				b := e.bridgeFor(mod)
				loc := e.guestStr(mod, b, api.DecodeU32(stack[0]))
				msg := e.guestStr(mod, b, api.DecodeU32(stack[1]))
				src := e.guestStr(mod, b, api.DecodeU32(stack[2]))
				Logger().Debug("roc_dbg",
					zap.String("module", mod.Name()),
					zap.String("location", loc),
					zap.String("message", msg),
					zap.String("source", src))
				if e.cfg.Dbg != nil {
					e.cfg.Dbg(ctx, loc, msg, src)
				}
			}
		},
	},
}

// isHostImport reports whether name is provided by the env module.
func isHostImport(name string) bool {
	for _, f := range hostFuncs {
		if f.name == name {
			return true
		}
	}
	return false
}

// guestStr decodes a RocStr record in guest memory. A record that cannot
// be read is rendered as a placeholder so that aborts still surface.
func (e *Engine) guestStr(mod api.Module, b *alloc.Bridge, addr uint32) string {
	env := roc.NewEnv(NewWazeroMemory(mod.Memory()), b, roc.Wasm32)
	s, err := roc.ReadStr(env, addr)
	if err != nil {
		Logger().Warn("unreadable RocStr", zap.Uint32("addr", addr), zap.Error(err))
		return fmt.Sprintf("<unreadable RocStr at 0x%x>", addr)
	}
	return s
}

// instantiateHost registers the env module in the engine's runtime.
func (e *Engine) instantiateHost(ctx context.Context) error {
	builder := e.runtime.NewHostModuleBuilder(HostModule)
	for _, f := range hostFuncs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn(e), f.params, f.results).
			WithParameterNames(f.names...).
			Export(f.name)
	}
	if _, err := builder.Instantiate(ctx); err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindInstantiation, err, "instantiate env host module")
	}
	return nil
}

// bridgeFor returns the allocator bridge of the guest mod, creating it on
// the first host call. Bridges are keyed by module name, which wazero
// keeps unique per runtime.
func (e *Engine) bridgeFor(mod api.Module) *alloc.Bridge {
	name := mod.Name()

	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.bridges[name]; ok {
		return b
	}
	mem := mod.Memory()
	if mem == nil {
		panic(errors.NotInitialized(errors.PhaseHost, "guest memory of "+name))
	}
	b := alloc.NewBridge(NewWazeroMemory(mem), alloc.Config{Base: e.cfg.HeapBase})
	e.bridges[name] = b
	Logger().Debug("bridge created", zap.String("module", name), zap.Uint32("memory_size", mem.Size()))
	return b
}

func (e *Engine) dropBridge(name string) {
	e.mu.Lock()
	delete(e.bridges, name)
	e.mu.Unlock()
}
