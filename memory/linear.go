// Package memory provides an in-process linear memory with the same
// addressing and growth rules as a wasm guest memory.
package memory

import (
	"encoding/binary"

	rochost "github.com/wippyai/roc-host"
	"github.com/wippyai/roc-host/errors"
)

// MaxPages is the largest page count a Linear can reach; one page short of
// 4GiB keeps Size representable as uint32.
const MaxPages = 65535

// Linear is a growable little-endian byte arena. It is not safe for
// concurrent use.
type Linear struct {
	buf      []byte
	maxPages uint32
}

var (
	_ rochost.Memory       = (*Linear)(nil)
	_ rochost.MemorySizer  = (*Linear)(nil)
	_ rochost.MemoryGrower = (*Linear)(nil)
)

// NewLinear creates a memory of initialPages pages that may grow up to
// maxPages. A maxPages of 0 means MaxPages.
func NewLinear(initialPages, maxPages uint32) *Linear {
	if maxPages == 0 || maxPages > MaxPages {
		maxPages = MaxPages
	}
	if initialPages > maxPages {
		initialPages = maxPages
	}
	return &Linear{
		buf:      make([]byte, int(initialPages)*rochost.PageSize),
		maxPages: maxPages,
	}
}

// Size returns the current size in bytes.
func (l *Linear) Size() uint32 {
	return uint32(len(l.buf))
}

// Pages returns the current size in pages.
func (l *Linear) Pages() uint32 {
	return uint32(len(l.buf) / rochost.PageSize)
}

// Grow appends deltaPages zeroed pages.
func (l *Linear) Grow(deltaPages uint32) (uint32, bool) {
	prev := l.Pages()
	if deltaPages == 0 {
		return prev, true
	}
	if uint64(prev)+uint64(deltaPages) > uint64(l.maxPages) {
		return prev, false
	}
	l.buf = append(l.buf, make([]byte, int(deltaPages)*rochost.PageSize)...)
	return prev, true
}

// Bytes exposes the backing slice. It is invalidated by Grow.
func (l *Linear) Bytes() []byte {
	return l.buf
}

func (l *Linear) span(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(l.buf)) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Value(offset).
			Detail("access of %d bytes at 0x%x exceeds memory size %d", length, offset, len(l.buf)).
			Build()
	}
	return l.buf[offset:end:end], nil
}

// Read returns a view of length bytes at offset. The view is invalidated
// by Grow.
func (l *Linear) Read(offset, length uint32) ([]byte, error) {
	return l.span(offset, length)
}

func (l *Linear) Write(offset uint32, data []byte) error {
	dst, err := l.span(offset, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

func (l *Linear) ReadU8(offset uint32) (uint8, error) {
	b, err := l.span(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (l *Linear) ReadU16(offset uint32) (uint16, error) {
	b, err := l.span(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (l *Linear) ReadU32(offset uint32) (uint32, error) {
	b, err := l.span(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (l *Linear) ReadU64(offset uint32) (uint64, error) {
	b, err := l.span(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (l *Linear) WriteU8(offset uint32, value uint8) error {
	b, err := l.span(offset, 1)
	if err != nil {
		return err
	}
	b[0] = value
	return nil
}

func (l *Linear) WriteU16(offset uint32, value uint16) error {
	b, err := l.span(offset, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, value)
	return nil
}

func (l *Linear) WriteU32(offset uint32, value uint32) error {
	b, err := l.span(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}

func (l *Linear) WriteU64(offset uint32, value uint64) error {
	b, err := l.span(offset, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, value)
	return nil
}
