package roc

import (
	"encoding/binary"
	"math"

	rochost "github.com/wippyai/roc-host"
	"github.com/wippyai/roc-host/errors"
)

// Env is the foreign memory, allocator bridge and layout a value lives in.
type Env struct {
	Mem    rochost.Memory
	Alloc  rochost.Bridge
	Layout Layout
}

// NewEnv creates an Env. An invalid layout falls back to Wasm32.
func NewEnv(mem rochost.Memory, bridge rochost.Bridge, layout Layout) *Env {
	if !layout.Valid() {
		layout = Wasm32
	}
	return &Env{Mem: mem, Alloc: bridge, Layout: layout}
}

func (e *Env) readWord(addr uint32) (uint64, error) {
	if e.Layout.Word == 8 {
		return e.Mem.ReadU64(addr)
	}
	v, err := e.Mem.ReadU32(addr)
	return uint64(v), err
}

func (e *Env) writeWord(addr uint32, v uint64) error {
	if e.Layout.Word == 8 {
		return e.Mem.WriteU64(addr, v)
	}
	return e.Mem.WriteU32(addr, uint32(v))
}

func (e *Env) readRefcount(addr uint32) (int64, error) {
	if e.Layout.Word == 8 {
		v, err := e.Mem.ReadU64(addr)
		return int64(v), err
	}
	v, err := e.Mem.ReadU32(addr)
	return int64(int32(v)), err
}

func (e *Env) writeRefcount(addr uint32, rc int64) error {
	return e.writeWord(addr, uint64(rc))
}

// checkUnique validates the refcount word at rcAddr before a free.
func (e *Env) checkUnique(rocType string, rcAddr uint32) error {
	rc, err := e.readRefcount(rcAddr)
	if err != nil {
		return err
	}
	switch {
	case rc >= 0:
		return errors.DoubleFree(rocType, rcAddr, rc)
	case rc != e.Layout.RefcountOne():
		return errors.StillShared(rocType, rcAddr, rc)
	}
	return nil
}

// freeUnique validates and frees a refcounted block. The refcount word is
// zeroed first so a second release through a stale record is caught.
func (e *Env) freeUnique(rocType string, rcAddr, base, align uint32) error {
	if err := e.checkUnique(rocType, rcAddr); err != nil {
		return err
	}
	if err := e.writeRefcount(rcAddr, 0); err != nil {
		return err
	}
	return e.Alloc.Dealloc(base, align)
}

// word and putWord access the i-th word of a host-side record.
func (e *Env) word(rec []byte, i int) uint64 {
	w := int(e.Layout.Word)
	if w == 8 {
		return binary.LittleEndian.Uint64(rec[i*w:])
	}
	return uint64(binary.LittleEndian.Uint32(rec[i*w:]))
}

func (e *Env) putWord(rec []byte, i int, v uint64) {
	w := int(e.Layout.Word)
	if w == 8 {
		binary.LittleEndian.PutUint64(rec[i*w:], v)
		return
	}
	binary.LittleEndian.PutUint32(rec[i*w:], uint32(v))
}

// narrowPtr narrows a pointer word to a 32-bit address.
func narrowPtr(phase errors.Phase, rocType string, v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, errors.New(phase, errors.KindInvalidData).
			RocType(rocType).
			Detail("pointer 0x%x outside 32-bit address space", v).
			Build()
	}
	return uint32(v), nil
}

// isStillShared reports whether a release failed only because the payload
// is still referenced, leaving the wrapper owned.
func isStillShared(err error) bool {
	e, ok := err.(*errors.Error)
	return ok && e.Kind == errors.KindStillShared
}
