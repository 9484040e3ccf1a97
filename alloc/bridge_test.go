package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/memory"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })
	return logs
}

func TestBridge_AllocDealloc(t *testing.T) {
	logs := observeLogs(t)
	mem := memory.NewLinear(1, 1)
	b := NewBridge(mem, Config{Base: 64})

	p, err := b.Alloc(24, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(64), p)

	require.NoError(t, b.Dealloc(p, 4))
	assert.Equal(t, 1, logs.FilterMessage("roc_alloc").Len())
	assert.Equal(t, 1, logs.FilterMessage("roc_dealloc").Len())

	err = b.Dealloc(p, 4)
	assert.ErrorIs(t, err, errors.ErrInvalidFree)
	assert.Equal(t, 1, logs.FilterMessage("roc_dealloc failed").Len())
}

func TestBridge_OutOfMemory(t *testing.T) {
	logs := observeLogs(t)
	mem := memory.NewLinear(1, 1)
	b := NewBridge(mem, Config{Base: 16})

	_, err := b.Alloc(2*65536, 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrOutOfMemory)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.PhaseAlloc, e.Phase)
	assert.Equal(t, 1, logs.FilterMessage("roc_alloc failed").Len())
}

func TestBridge_Realloc(t *testing.T) {
	mem := memory.NewLinear(1, 1)
	b := NewBridge(mem, Config{Base: 16})

	p, err := b.Alloc(8, 8)
	require.NoError(t, err)
	require.NoError(t, mem.WriteU64(p, 0x1122334455667788))
	_, err = b.Alloc(8, 8)
	require.NoError(t, err)

	q, err := b.Realloc(p, 32, 8, 8)
	require.NoError(t, err)
	v, err := mem.ReadU64(q)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), v)

	_, err = b.Realloc(4, 32, 8, 8)
	assert.ErrorIs(t, err, errors.ErrInvalidFree)
}

func TestBridge_Abort(t *testing.T) {
	logs := observeLogs(t)
	b := NewBridge(memory.NewLinear(1, 1), Config{Base: 16})

	err := b.Abort("Integer subtraction overflowed!", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrForeignAbort)
	assert.Contains(t, err.Error(), "Integer subtraction overflowed!")
	assert.Equal(t, uint64(1), b.Stats().Aborts)

	entries := logs.FilterMessage("roc panic").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "Integer subtraction overflowed!", entries[0].ContextMap()["message"])
}

func TestBridge_Fill(t *testing.T) {
	mem := memory.NewLinear(1, 1)
	b := NewBridge(mem, Config{Base: 16})

	require.NoError(t, b.Fill(100, 0xaa, 10000))
	data, err := mem.Read(100, 10000)
	require.NoError(t, err)
	for i, c := range data {
		if c != 0xaa {
			t.Fatalf("byte %d = %#x, want 0xaa", i, c)
		}
	}

	before, err := mem.ReadU8(99)
	require.NoError(t, err)
	assert.Zero(t, before)
	after, err := mem.ReadU8(10100)
	require.NoError(t, err)
	assert.Zero(t, after)

	require.NoError(t, b.Fill(0, 1, 0))
	assert.Error(t, b.Fill(65530, 0, 16))
}
