// Package alloc implements the memory manager that backs Roc's roc_alloc
// family of imports.
//
// Heap is a first-fit free-list allocator over a linear memory. Block
// bookkeeping lives on the Go side, so payloads carry no in-memory header
// and a stray pointer can never be mistaken for a block. Bridge adapts a
// Heap to the rochost.Bridge contract and maps failures to the error
// taxonomy.
package alloc

import (
	"slices"

	"go.uber.org/zap"

	rochost "github.com/wippyai/roc-host"
	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/internal/abi"
)

// DefaultMinAlign is the smallest alignment the heap hands out.
const DefaultMinAlign = 8

// heapFloor keeps the null page's first bytes out of the heap so that 0 is
// never a valid payload address.
const heapFloor = 16

// Memory is what a Heap needs from linear memory.
type Memory interface {
	rochost.Memory
	rochost.MemorySizer
	rochost.MemoryGrower
}

// Config controls heap placement.
type Config struct {
	// Base is the first address the heap may use. 0 means "after the
	// current end of memory", leaving everything below to the guest.
	Base uint32

	// MinAlign raises every alignment request to at least this value.
	// 0 means DefaultMinAlign.
	MinAlign uint32
}

// HeapStats is a point-in-time view of heap usage.
type HeapStats struct {
	LiveBytes  uint64
	LiveBlocks uint64
	FreeBytes  uint64
	Allocs     uint64
	Frees      uint64
	Reallocs   uint64
	Grows      uint64
}

type span struct {
	start, end uint64
}

// Heap is not safe for concurrent use.
type Heap struct {
	mem      Memory
	live     map[uint32]uint32
	free     []span
	stats    HeapStats
	base     uint64
	minAlign uint32
}

// NewHeap creates a heap over mem.
func NewHeap(mem Memory, cfg Config) *Heap {
	minAlign := cfg.MinAlign
	if minAlign == 0 || !abi.IsPow2(minAlign) {
		minAlign = DefaultMinAlign
	}

	base := cfg.Base
	if base == 0 {
		base = mem.Size()
	}
	base = abi.AlignTo(max(base, heapFloor), heapFloor)

	h := &Heap{
		mem:      mem,
		live:     make(map[uint32]uint32),
		base:     uint64(base),
		minAlign: minAlign,
	}
	if size := uint64(mem.Size()); uint64(base) < size {
		h.release(span{start: uint64(base), end: size})
	}
	return h
}

// Alloc returns the address of a block of at least size bytes aligned to
// align. Non-power-of-two alignments are rejected.
func (h *Heap) Alloc(size, align uint32) (uint32, error) {
	align, err := h.normalizeAlign(align)
	if err != nil {
		return 0, err
	}
	if size > abi.MaxAlloc {
		return 0, errors.OutOfMemory(size, align, nil)
	}
	size = max(abi.AlignTo(size, h.minAlign), h.minAlign)

	if ptr, ok := h.carve(size, align); ok {
		h.stats.Allocs++
		return ptr, nil
	}
	if err := h.grow(uint64(size) + uint64(align)); err != nil {
		return 0, errors.OutOfMemory(size, align, err)
	}
	if ptr, ok := h.carve(size, align); ok {
		h.stats.Allocs++
		return ptr, nil
	}
	return 0, errors.OutOfMemory(size, align, nil)
}

// Realloc resizes the block at ptr, moving it when it cannot grow in place.
// A zero ptr behaves like Alloc.
func (h *Heap) Realloc(ptr, newSize, oldSize, align uint32) (uint32, error) {
	if ptr == 0 {
		return h.Alloc(newSize, align)
	}
	cur, ok := h.live[ptr]
	if !ok {
		return 0, errors.InvalidFree(ptr)
	}
	align, err := h.normalizeAlign(align)
	if err != nil {
		return 0, err
	}
	if newSize > abi.MaxAlloc {
		return 0, errors.OutOfMemory(newSize, align, nil)
	}
	want := max(abi.AlignTo(newSize, h.minAlign), h.minAlign)
	h.stats.Reallocs++

	if want <= cur {
		if cur-want >= h.minAlign {
			h.live[ptr] = want
			h.release(span{start: uint64(ptr) + uint64(want), end: uint64(ptr) + uint64(cur)})
		}
		return ptr, nil
	}

	if h.extend(ptr, cur, want) {
		return ptr, nil
	}

	dst, err := h.Alloc(newSize, align)
	if err != nil {
		return 0, err
	}
	n := min(oldSize, cur)
	if n > 0 {
		data, err := h.mem.Read(ptr, n)
		if err != nil {
			_ = h.Dealloc(dst, align)
			return 0, err
		}
		if err := h.mem.Write(dst, data); err != nil {
			_ = h.Dealloc(dst, align)
			return 0, err
		}
	}
	if err := h.Dealloc(ptr, align); err != nil {
		return 0, err
	}
	return dst, nil
}

// Dealloc returns the block at ptr to the free list.
func (h *Heap) Dealloc(ptr, _ uint32) error {
	size, ok := h.live[ptr]
	if !ok {
		return errors.InvalidFree(ptr)
	}
	delete(h.live, ptr)
	h.release(span{start: uint64(ptr), end: uint64(ptr) + uint64(size)})
	h.stats.Frees++
	return nil
}

// BlockSize reports the usable size of the live block at ptr.
func (h *Heap) BlockSize(ptr uint32) (uint32, bool) {
	size, ok := h.live[ptr]
	return size, ok
}

// Stats returns current usage counters.
func (h *Heap) Stats() HeapStats {
	s := h.stats
	s.LiveBlocks = uint64(len(h.live))
	s.LiveBytes = 0
	for _, size := range h.live {
		s.LiveBytes += uint64(size)
	}
	s.FreeBytes = 0
	for _, f := range h.free {
		s.FreeBytes += f.end - f.start
	}
	return s
}

func (h *Heap) normalizeAlign(align uint32) (uint32, error) {
	if align == 0 {
		return h.minAlign, nil
	}
	if !abi.IsPow2(align) {
		return 0, errors.New(errors.PhaseAlloc, errors.KindInvalidInput).
			Value(align).
			Detail("alignment %d is not a power of two", align).
			Build()
	}
	return max(align, h.minAlign), nil
}

// carve takes the first free span that fits, leaving any alignment gap and
// tail on the free list.
func (h *Heap) carve(size, align uint32) (uint32, bool) {
	for i, f := range h.free {
		p := alignUp(f.start, uint64(align))
		end := p + uint64(size)
		if end > f.end {
			continue
		}
		var rest []span
		if p > f.start {
			rest = append(rest, span{start: f.start, end: p})
		}
		if end < f.end {
			rest = append(rest, span{start: end, end: f.end})
		}
		h.free = slices.Replace(h.free, i, i+1, rest...)
		h.live[uint32(p)] = size
		return uint32(p), true
	}
	return 0, false
}

// extend grows a live block into the free span directly after it.
func (h *Heap) extend(ptr, cur, want uint32) bool {
	end := uint64(ptr) + uint64(cur)
	i, found := slices.BinarySearchFunc(h.free, end, func(f span, t uint64) int {
		switch {
		case f.start < t:
			return -1
		case f.start > t:
			return 1
		}
		return 0
	})
	if !found {
		return false
	}
	need := uint64(want - cur)
	f := h.free[i]
	if f.end-f.start < need {
		return false
	}
	if f.end-f.start == need {
		h.free = slices.Delete(h.free, i, i+1)
	} else {
		h.free[i].start += need
	}
	h.live[ptr] = want
	return true
}

func (h *Heap) grow(need uint64) error {
	pages := (need + rochost.PageSize - 1) / rochost.PageSize
	if pages > 0xffff {
		return errors.New(errors.PhaseAlloc, errors.KindOutOfMemory).
			Detail("request of %d bytes exceeds the address space", need).
			Build()
	}
	prev, ok := h.mem.Grow(uint32(pages))
	if !ok {
		return errors.New(errors.PhaseAlloc, errors.KindOutOfMemory).
			Detail("memory limit reached growing by %d pages from %d", pages, prev).
			Build()
	}
	start := uint64(prev) * rochost.PageSize
	end := start + pages*rochost.PageSize
	if lo := max(start, h.base); lo < end {
		h.release(span{start: lo, end: end})
	}
	h.stats.Grows++
	Logger().Debug("heap grown",
		zap.Uint64("pages", pages),
		zap.Uint32("previous_pages", prev),
		zap.Uint64("end", end))
	return nil
}

// release inserts s into the sorted free list, coalescing with neighbours.
func (h *Heap) release(s span) {
	i, _ := slices.BinarySearchFunc(h.free, s.start, func(f span, t uint64) int {
		switch {
		case f.start < t:
			return -1
		case f.start > t:
			return 1
		}
		return 0
	})
	if i > 0 && h.free[i-1].end == s.start {
		i--
		s.start = h.free[i].start
		h.free = slices.Delete(h.free, i, i+1)
	}
	if i < len(h.free) && h.free[i].start == s.end {
		s.end = h.free[i].end
		h.free = slices.Delete(h.free, i, i+1)
	}
	h.free = slices.Insert(h.free, i, s)
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
