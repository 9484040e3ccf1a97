package runtime

import (
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/wippyai/roc-host/engine"
	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/roc"
)

// Config holds runtime configuration.
type Config struct {
	// Logger, when set, becomes the logger of the runtime, engine and
	// alloc packages.
	Logger *zap.Logger

	// Dbg receives roc_dbg output from guests.
	Dbg engine.DbgHandler

	// Layout is the word size for host-side arenas created with NewArena.
	// Guests are always wasm32. Zero means Wasm32.
	Layout roc.Layout

	// MemoryLimitPages caps guest memory in 64KB pages. 0 means no cap
	// beyond wazero's default.
	MemoryLimitPages uint32

	// HeapBase is the first guest address the host heap may use. 0 places
	// the heap after the guest's initial memory.
	HeapBase uint32
}

// ParseConfig reads a JSON configuration:
//
//	{"layout": "native64", "memory_limit_pages": 256, "heap_base": 65536}
//
// Unknown keys are ignored.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if len(data) == 0 {
		return cfg, nil
	}
	if !gjson.ValidBytes(data) {
		return cfg, errors.InvalidInput(errors.PhaseConfig, "config is not valid JSON")
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return cfg, errors.InvalidInput(errors.PhaseConfig, "config must be a JSON object")
	}

	if v := root.Get("layout"); v.Exists() {
		l, err := roc.ParseLayout(v.String())
		if err != nil {
			return cfg, err
		}
		cfg.Layout = l
	}

	var err error
	if cfg.MemoryLimitPages, err = configU32(root, "memory_limit_pages"); err != nil {
		return cfg, err
	}
	if cfg.HeapBase, err = configU32(root, "heap_base"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func configU32(root gjson.Result, key string) (uint32, error) {
	v := root.Get(key)
	if !v.Exists() {
		return 0, nil
	}
	if v.Type != gjson.Number {
		return 0, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("%s must be a number", key))
	}
	f := v.Float()
	if f < 0 || f > float64(^uint32(0)) || f != float64(uint64(f)) {
		return 0, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("%s out of range: %s", key, v.Raw))
	}
	return uint32(f), nil
}

func (c Config) layout() roc.Layout {
	if c.Layout.Valid() {
		return c.Layout
	}
	return roc.Wasm32
}
