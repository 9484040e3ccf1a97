package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/roc-host/alloc"
	"github.com/wippyai/roc-host/engine"
	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/memory"
	"github.com/wippyai/roc-host/roc"
)

// Runtime loads and runs Roc guests.
type Runtime struct {
	engine *engine.Engine
	cfg    Config
}

// New creates a runtime.
func New(ctx context.Context, cfg Config) (*Runtime, error) {
	if cfg.Logger != nil {
		SetLogger(cfg.Logger)
		engine.SetLogger(cfg.Logger)
		alloc.SetLogger(cfg.Logger)
	}

	eng, err := engine.New(ctx, &engine.Config{
		Dbg:              cfg.Dbg,
		MemoryLimitPages: cfg.MemoryLimitPages,
		HeapBase:         cfg.HeapBase,
	})
	if err != nil {
		return nil, errors.Load("create engine", err)
	}

	Logger().Debug("runtime created",
		zap.Stringer("layout", cfg.layout()),
		zap.Uint32("memory_limit_pages", cfg.MemoryLimitPages))

	return &Runtime{engine: eng, cfg: cfg}, nil
}

// Close releases all runtime resources.
// All instances must be closed before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Layout returns the configured host layout.
func (r *Runtime) Layout() roc.Layout {
	return r.cfg.layout()
}

// LoadModule compiles a guest. witText declares the exported functions
// with their WIT signatures, which Call uses to marshal arguments and
// results. Every declared function must be exported by the guest.
func (r *Runtime) LoadModule(ctx context.Context, wasm []byte, witText string) (*Module, error) {
	mod, err := r.engine.LoadModule(ctx, wasm)
	if err != nil {
		return nil, err
	}

	sigs, err := parseWitFunctions(witText)
	if err != nil {
		return nil, err
	}
	for name := range sigs {
		if _, ok := mod.Resolve(name); !ok {
			return nil, errors.NotFound(errors.PhaseLoad, "export for WIT function", name)
		}
	}

	Logger().Debug("module loaded",
		zap.Int("exports", len(mod.ExportNames())),
		zap.Int("signatures", len(sigs)))

	return &Module{runtime: r, mod: mod, sigs: sigs}, nil
}

// NewArena returns a value environment over an in-process memory of the
// given initial size in pages, using the runtime's layout. Values built
// in an arena never reach a guest.
func (r *Runtime) NewArena(pages uint32) *roc.Env {
	return NewArena(r.cfg.layout(), pages)
}

// NewArena returns a value environment over a fresh growable in-process
// memory. The first 16 bytes are never handed out so no value sits at
// address 0.
func NewArena(layout roc.Layout, pages uint32) *roc.Env {
	if pages == 0 {
		pages = 1
	}
	mem := memory.NewLinear(pages, 0)
	return roc.NewEnv(mem, alloc.NewBridge(mem, alloc.Config{Base: 16}), layout)
}
