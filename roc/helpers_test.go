package roc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/roc-host/alloc"
	"github.com/wippyai/roc-host/memory"
)

var layouts = []Layout{Wasm32, Native64}

func newTestEnv(t *testing.T, layout Layout) (*Env, *alloc.Bridge, *memory.Linear) {
	t.Helper()
	mem := memory.NewLinear(1, 0)
	bridge := alloc.NewBridge(mem, alloc.Config{Base: 16})
	return NewEnv(mem, bridge, layout), bridge, mem
}

// newSlot allocates a three-word record slot in foreign memory.
func newSlot(t *testing.T, env *Env) uint32 {
	t.Helper()
	p, err := env.Alloc.Alloc(env.Layout.StrSize(), env.Layout.Word)
	require.NoError(t, err)
	return p
}

func liveBlocks(b *alloc.Bridge) uint64 {
	return b.Stats().Heap.LiveBlocks
}

func bytesOf(n int, c byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return b
}
