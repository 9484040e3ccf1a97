package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/roc-host/alloc"
	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/roc"
)

// Engine runs Roc guests under wazero with the env host module installed.
type Engine struct {
	runtime wazero.Runtime
	bridges map[string]*alloc.Bridge
	cfg     Config
	seq     atomic.Uint64
	mu      sync.Mutex
}

// Config holds configuration for engine creation
type Config struct {
	// Dbg receives roc_dbg output in addition to the debug log.
	Dbg DbgHandler

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// HeapBase is the first guest address the host heap may hand out.
	// 0 places the heap after the guest's initial memory, which the host
	// then grows on demand.
	HeapBase uint32
}

// New creates an engine and instantiates the env host module.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	e := &Engine{bridges: make(map[string]*alloc.Bridge)}
	if cfg != nil {
		e.cfg = *cfg
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
	}

	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	if err := e.instantiateHost(ctx); err != nil {
		_ = e.runtime.Close(ctx)
		return nil, err
	}
	return e, nil
}

// LoadModule compiles a guest. Every function it imports must come from
// the env module.
func (e *Engine) LoadModule(ctx context.Context, wasmBytes []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile failed", err)
	}

	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if module != HostModule || !isHostImport(name) {
			_ = compiled.Close(ctx)
			return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
				Detail("unresolved import %s.%s", module, name).
				Build()
		}
	}

	return &Module{engine: e, compiled: compiled}, nil
}

// Close closes the runtime and every instance in it.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	clear(e.bridges)
	e.mu.Unlock()
	return e.runtime.Close(ctx)
}

// Module is a compiled guest.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// ExportNames returns the names of the exported functions, sorted.
func (m *Module) ExportNames() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExportedFunction returns the definition of an exported function.
func (m *Module) ExportedFunction(name string) (api.FunctionDefinition, bool) {
	def, ok := m.compiled.ExportedFunctions()[name]
	return def, ok
}

// Resolve maps a WIT function name to the export that implements it.
func (m *Module) Resolve(name string) (string, bool) {
	defs := m.compiled.ExportedFunctions()
	for _, sym := range exportCandidates(name) {
		if _, ok := defs[sym]; ok {
			return sym, true
		}
	}
	return "", false
}

// Instantiate creates a guest instance with its own memory and host heap.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	name := fmt.Sprintf("roc-%d", m.engine.seq.Add(1))
	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled,
		wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		m.engine.dropBridge(name)
		return nil, errors.Instantiation(err)
	}
	if mod.Memory() == nil {
		_ = mod.Close(ctx)
		return nil, errors.NotInitialized(errors.PhaseRuntime, "guest memory export")
	}

	bridge := m.engine.bridgeFor(mod)
	Logger().Debug("instance created",
		zap.String("module", name),
		zap.Uint32("memory_size", mod.Memory().Size()))

	return &Instance{
		module:    m,
		instance:  mod,
		memory:    NewWazeroMemory(mod.Memory()),
		bridge:    bridge,
		funcCache: make(map[string]api.Function),
	}, nil
}

// Instance is an instantiated guest. Calls on one instance must not run
// concurrently.
type Instance struct {
	module    *Module
	instance  api.Module
	memory    *WazeroMemory
	bridge    *alloc.Bridge
	funcCache map[string]api.Function
	cacheMu   sync.RWMutex
}

// Name returns the wazero module name.
func (i *Instance) Name() string {
	return i.instance.Name()
}

// Memory returns the guest memory.
func (i *Instance) Memory() *WazeroMemory {
	return i.memory
}

// Bridge returns the allocator bridge serving this guest's roc_* imports.
func (i *Instance) Bridge() *alloc.Bridge {
	return i.bridge
}

// Env returns a value environment over guest memory. Guests are wasm32.
func (i *Instance) Env() *roc.Env {
	return roc.NewEnv(i.memory, i.bridge, roc.Wasm32)
}

// MemorySize returns the current linear memory size in bytes, or 0 if no memory.
func (i *Instance) MemorySize() uint32 {
	if i.memory == nil {
		return 0
	}
	return i.memory.Size()
}

// Function resolves a WIT function name to an exported function.
func (i *Instance) Function(name string) (api.Function, error) {
	if i.instance == nil {
		return nil, errors.NotInitialized(errors.PhaseRuntime, "instance")
	}

	i.cacheMu.RLock()
	fn, ok := i.funcCache[name]
	i.cacheMu.RUnlock()
	if ok {
		return fn, nil
	}

	sym, ok := i.module.Resolve(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "function", name)
	}
	fn = i.instance.ExportedFunction(sym)

	i.cacheMu.Lock()
	i.funcCache[name] = fn
	i.cacheMu.Unlock()
	return fn, nil
}

// Call invokes an exported function with raw wasm values. Host faults
// raised by the env imports, such as ForeignAbort from roc_panic, are
// reachable with errors.As on the returned error.
func (i *Instance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn, err := i.Function(name)
	if err != nil {
		return nil, err
	}
	results, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	return results, nil
}

// Close releases the guest and its host heap.
func (i *Instance) Close(ctx context.Context) error {
	if i.instance == nil {
		return nil
	}
	name := i.instance.Name()
	err := i.instance.Close(ctx)
	i.module.engine.dropBridge(name)

	i.instance = nil
	i.memory = nil
	i.bridge = nil
	i.funcCache = nil
	return err
}
