package alloc

import (
	"bytes"

	"go.uber.org/zap"

	rochost "github.com/wippyai/roc-host"
	"github.com/wippyai/roc-host/errors"
)

// fillChunk bounds the scratch buffer used by Fill.
const fillChunk = 4096

// Stats combines heap usage with bridge-level counters.
type Stats struct {
	Heap   HeapStats
	Aborts uint64
}

// Bridge is the allocator bridge Roc values are built on. Every failure is
// reported with the errors taxonomy: OutOfMemory for exhausted memory,
// InvalidFree for unknown pointers, ForeignAbort for roc_panic.
type Bridge struct {
	heap   *Heap
	mem    rochost.Memory
	aborts uint64
}

var _ rochost.Bridge = (*Bridge)(nil)

// NewBridge creates a bridge with its own heap over mem.
func NewBridge(mem Memory, cfg Config) *Bridge {
	return &Bridge{
		heap: NewHeap(mem, cfg),
		mem:  mem,
	}
}

// Heap returns the underlying heap.
func (b *Bridge) Heap() *Heap {
	return b.heap
}

func (b *Bridge) Alloc(size, align uint32) (uint32, error) {
	ptr, err := b.heap.Alloc(size, align)
	if err != nil {
		Logger().Warn("roc_alloc failed",
			zap.Uint32("size", size),
			zap.Uint32("align", align),
			zap.Error(err))
		return 0, err
	}
	Logger().Debug("roc_alloc",
		zap.Uint32("size", size),
		zap.Uint32("align", align),
		zap.Uint32("ptr", ptr))
	return ptr, nil
}

func (b *Bridge) Realloc(ptr, newSize, oldSize, align uint32) (uint32, error) {
	moved, err := b.heap.Realloc(ptr, newSize, oldSize, align)
	if err != nil {
		Logger().Warn("roc_realloc failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("new_size", newSize),
			zap.Uint32("old_size", oldSize),
			zap.Error(err))
		return 0, err
	}
	Logger().Debug("roc_realloc",
		zap.Uint32("ptr", ptr),
		zap.Uint32("new_ptr", moved),
		zap.Uint32("new_size", newSize))
	return moved, nil
}

func (b *Bridge) Dealloc(ptr, align uint32) error {
	if err := b.heap.Dealloc(ptr, align); err != nil {
		Logger().Warn("roc_dealloc failed", zap.Uint32("ptr", ptr), zap.Error(err))
		return err
	}
	Logger().Debug("roc_dealloc", zap.Uint32("ptr", ptr))
	return nil
}

// Abort records a foreign panic and returns the error that carries it.
func (b *Bridge) Abort(msg string, tag uint32) error {
	b.aborts++
	Logger().Error("roc panic", zap.String("message", msg), zap.Uint32("tag", tag))
	return errors.ForeignAbort(msg, tag)
}

// Fill writes n copies of value starting at ptr.
func (b *Bridge) Fill(ptr uint32, value byte, n uint32) error {
	if n == 0 {
		return nil
	}
	if uint64(ptr)+uint64(n) > 1<<32 {
		return errors.New(errors.PhaseAlloc, errors.KindOutOfBounds).
			Detail("fill of %d bytes at 0x%x wraps the address space", n, ptr).
			Build()
	}
	chunk := bytes.Repeat([]byte{value}, int(min(n, fillChunk)))
	for n > 0 {
		k := min(n, uint32(len(chunk)))
		if err := b.mem.Write(ptr, chunk[:k]); err != nil {
			return err
		}
		ptr += k
		n -= k
	}
	return nil
}

// Stats returns heap and abort counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Heap:   b.heap.Stats(),
		Aborts: b.aborts,
	}
}
