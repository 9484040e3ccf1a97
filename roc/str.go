package roc

import (
	"fmt"

	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/internal/abi"
)

// ownership tracks what a host-side wrapper may still do with its payload.
type ownership uint8

const (
	owned ownership = iota
	released
	transferred
)

func (o ownership) String() string {
	switch o {
	case owned:
		return "owned"
	case released:
		return "released"
	default:
		return "transferred"
	}
}

// Str is a Roc string held by the host. The record is kept on the Go side
// in the exact foreign layout; a big string's bytes live in foreign memory.
type Str struct {
	env   *Env
	rec   []byte
	state ownership
}

// NewStr builds a uniquely owned Str holding a copy of b.
func NewStr(env *Env, b []byte) (*Str, error) {
	l := env.Layout
	rec := make([]byte, l.StrSize())

	if len(b) <= int(l.SmallCap()) {
		copy(rec, b)
		rec[len(rec)-1] = 0x80 | byte(len(b))
		return &Str{env: env, rec: rec}, nil
	}
	if len(b) > abi.MaxStrLen {
		return nil, errors.Overflow(errors.PhaseEncode, nil, len(b), "Str")
	}

	n := uint32(len(b))
	w := l.Word
	words := abi.CeilDiv(n, w) + 1
	size := words * w

	p, err := env.Alloc.Alloc(size, w)
	if err != nil {
		return nil, err
	}
	if err := writeBigStr(env, p, size, b); err != nil {
		_ = env.Alloc.Dealloc(p, w)
		return nil, err
	}

	env.putWord(rec, 0, uint64(p+w))
	env.putWord(rec, 1, uint64(n))
	env.putWord(rec, 2, uint64((words-1)*w))
	return &Str{env: env, rec: rec}, nil
}

func writeBigStr(env *Env, p, size uint32, b []byte) error {
	w := env.Layout.Word
	if err := env.writeRefcount(p, env.Layout.RefcountOne()); err != nil {
		return err
	}
	if err := env.Alloc.Fill(p+size-w, 0, w); err != nil {
		return err
	}
	return env.Mem.Write(p+w, b)
}

// NewStrString is NewStr for a Go string.
func NewStrString(env *Env, s string) (*Str, error) {
	return NewStr(env, []byte(s))
}

// AdoptStr takes ownership of the Str record stored at addr. The record
// must hold the payload's only reference.
func AdoptStr(env *Env, addr uint32) (*Str, error) {
	rec, err := readStrRecord(env, addr)
	if err != nil {
		return nil, err
	}
	return &Str{env: env, rec: rec}, nil
}

// ReadStr decodes the Str record at addr without taking ownership.
func ReadStr(env *Env, addr uint32) (string, error) {
	rec, err := readStrRecord(env, addr)
	if err != nil {
		return "", err
	}
	s := Str{env: env, rec: rec}
	b, err := s.Bytes()
	return string(b), err
}

func readStrRecord(env *Env, addr uint32) ([]byte, error) {
	raw, err := env.Mem.Read(addr, env.Layout.StrSize())
	if err != nil {
		return nil, err
	}
	rec := append([]byte(nil), raw...)
	if err := validateStrRecord(env, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func validateStrRecord(env *Env, rec []byte) error {
	if isSmall(rec) {
		if n := uint32(rec[len(rec)-1] & 0x7f); n > env.Layout.SmallCap() {
			return errors.InvalidData(errors.PhaseDecode, nil, fmt.Sprintf("small Str length %d exceeds %d", n, env.Layout.SmallCap()))
		}
		return nil
	}
	p, n, c := env.word(rec, 0), env.word(rec, 1), env.word(rec, 2)
	if _, err := narrowPtr(errors.PhaseDecode, "Str", p); err != nil {
		return err
	}
	if p < uint64(env.Layout.Word) || n > c {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			RocType("Str").
			Detail("corrupt record {bytes 0x%x, len %d, cap %d}", p, n, c).
			Build()
	}
	return nil
}

// isSmall is the one discriminant between the inline and heap forms.
func isSmall(rec []byte) bool {
	return rec[len(rec)-1]&0x80 != 0
}

func (s *Str) live(phase errors.Phase) error {
	if s.state == owned {
		return nil
	}
	return errors.New(phase, errors.KindInvalidInput).
		RocType("Str").
		Detail("value already %s", s.state).
		Build()
}

// IsSmall reports whether the bytes are stored inline in the record.
func (s *Str) IsSmall() bool { return isSmall(s.rec) }

// Len returns the length in bytes.
func (s *Str) Len() int {
	if s.IsSmall() {
		return int(s.rec[len(s.rec)-1] & 0x7f)
	}
	return int(s.env.word(s.rec, 1))
}

// Cap returns the capacity in bytes.
func (s *Str) Cap() int {
	if s.IsSmall() {
		return int(s.env.Layout.SmallCap())
	}
	return int(s.env.word(s.rec, 2))
}

// Bytes returns a copy of the string's bytes.
func (s *Str) Bytes() ([]byte, error) {
	if err := s.live(errors.PhaseDecode); err != nil {
		return nil, err
	}
	n := s.Len()
	if s.IsSmall() {
		return append([]byte(nil), s.rec[:n]...), nil
	}
	raw, err := s.env.Mem.Read(uint32(s.env.word(s.rec, 0)), uint32(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), raw...), nil
}

// String returns the contents, or "" when they cannot be read.
func (s *Str) String() string {
	b, err := s.Bytes()
	if err != nil {
		return ""
	}
	return string(b)
}

// RefcountAddr returns the address of a big string's refcount word.
func (s *Str) RefcountAddr() (uint32, bool) {
	if s.IsSmall() {
		return 0, false
	}
	return uint32(s.env.word(s.rec, 0)) - s.env.Layout.Word, true
}

// Refcount reads a big string's refcount word.
func (s *Str) Refcount() (int64, error) {
	rcAddr, ok := s.RefcountAddr()
	if !ok {
		return 0, errors.Unsupported(errors.PhaseDecode, "small Str has no refcount")
	}
	return s.env.readRefcount(rcAddr)
}

// Release frees the payload. A big string must be uniquely owned; a
// released refcount is DoubleFree and a shared one is StillShared, in
// which case the Str stays owned. Release after Transfer is a no-op.
func (s *Str) Release() error {
	switch s.state {
	case transferred:
		return nil
	case released:
		return errors.New(errors.PhaseRelease, errors.KindDoubleFree).
			RocType("Str").
			Detail("value already released").
			Build()
	}
	if s.IsSmall() {
		s.state = released
		return nil
	}
	err := releaseBigStr(s.env, s.rec)
	if !isStillShared(err) {
		s.state = released
	}
	return err
}

// CheckUnique validates the refcount word without releasing anything. A
// small string is always unique.
func (s *Str) CheckUnique() error {
	rcAddr, ok := s.RefcountAddr()
	if !ok {
		return nil
	}
	return s.env.checkUnique("Str", rcAddr)
}

func releaseBigStr(env *Env, rec []byte) error {
	w := env.Layout.Word
	rcAddr := uint32(env.word(rec, 0)) - w
	return env.freeUnique("Str", rcAddr, rcAddr, w)
}

// Footprint returns the host and foreign bytes held by the value.
func (s *Str) Footprint() uint64 {
	if s.state != owned {
		return 0
	}
	l := s.env.Layout
	if s.IsSmall() {
		return uint64(l.StrSize())
	}
	return uint64(l.StrSize()) + (uint64(s.Cap())/uint64(l.Word)+1)*uint64(l.Word)
}

// Record returns a copy of the record bytes.
func (s *Str) Record() []byte {
	return append([]byte(nil), s.rec...)
}

// WriteRaw copies the record to addr. Ownership is unchanged, so after
// WriteRaw two records refer to the same payload.
func (s *Str) WriteRaw(addr uint32) error {
	if err := s.live(errors.PhaseTransfer); err != nil {
		return err
	}
	return s.env.Mem.Write(addr, s.rec)
}

// Transfer writes the record to addr and gives up ownership to whoever
// reads it there.
func (s *Str) Transfer(addr uint32) error {
	if err := s.WriteRaw(addr); err != nil {
		return err
	}
	s.state = transferred
	return nil
}

// TypeName returns "Str".
func (s *Str) TypeName() string { return "Str" }

// StrType is the descriptor for Str elements.
var StrType Descriptor = strType{}

type strType struct{}

func (strType) Name() string { return "Str" }
func (strType) Kind() Kind { return KindStr }
func (strType) Size(l Layout) uint32 { return l.StrSize() }
func (strType) Align(l Layout) uint32 { return l.Word }
func (strType) String() string { return "Str" }

// FromHost accepts string, []byte and *Str. A *Str is copied.
func (strType) FromHost(env *Env, addr uint32, v any) error {
	var b []byte
	switch x := v.(type) {
	case string:
		b = []byte(x)
	case []byte:
		b = x
	case *Str:
		var err error
		if b, err = x.Bytes(); err != nil {
			return err
		}
	default:
		return invalidInput("Str", v, "a string")
	}
	s, err := NewStr(env, b)
	if err != nil {
		return err
	}
	if err := s.Transfer(addr); err != nil {
		_ = s.Release()
		return err
	}
	return nil
}

func (strType) ToHost(env *Env, addr uint32) (any, error) {
	return ReadStr(env, addr)
}

func (strType) Destruct(env *Env, addr uint32) error {
	rec, err := readStrRecord(env, addr)
	if err != nil {
		return err
	}
	if isSmall(rec) {
		return nil
	}
	return releaseBigStr(env, rec)
}
