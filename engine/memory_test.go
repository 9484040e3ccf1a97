package engine

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/internal/wasm"
)

func newGuestMemory(t *testing.T, minPages, maxPages uint32) *WazeroMemory {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { r.Close(ctx) })

	b := wasm.NewModuleBuilder()
	b.Memory("memory", minPages, maxPages)
	mod, err := r.Instantiate(ctx, b.Build())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return NewWazeroMemory(mod.Memory())
}

func TestWazeroMemory_ReadWrite(t *testing.T) {
	m := newGuestMemory(t, 1, 2)

	if err := m.WriteU8(0, 0x11); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteU16(2, 0x2233); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteU32(4, 0x44556677); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteU64(8, 0x8899aabbccddeeff); err != nil {
		t.Fatal(err)
	}

	if v, _ := m.ReadU8(0); v != 0x11 {
		t.Errorf("ReadU8 = %#x", v)
	}
	if v, _ := m.ReadU16(2); v != 0x2233 {
		t.Errorf("ReadU16 = %#x", v)
	}
	if v, _ := m.ReadU32(4); v != 0x44556677 {
		t.Errorf("ReadU32 = %#x", v)
	}
	if v, _ := m.ReadU64(8); v != 0x8899aabbccddeeff {
		t.Errorf("ReadU64 = %#x", v)
	}

	data, err := m.Read(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if data[0] != 0x77 || data[3] != 0x44 {
		t.Errorf("little-endian layout broken: %x", data)
	}
}

func TestWazeroMemory_Bounds(t *testing.T) {
	m := newGuestMemory(t, 1, 2)
	size := m.Size()
	if size != 65536 {
		t.Fatalf("Size = %d, want 65536", size)
	}

	oob := &errors.Error{Kind: errors.KindOutOfBounds}
	checks := []struct {
		name string
		err  error
	}{
		{"Read", func() error { _, err := m.Read(size-2, 4); return err }()},
		{"Write", m.Write(size, []byte{1})},
		{"ReadU32", func() error { _, err := m.ReadU32(size - 3); return err }()},
		{"WriteU64", m.WriteU64(size-4, 1)},
		{"WriteU16", m.WriteU16(size-1, 1)},
	}
	for _, c := range checks {
		if !stderrors.Is(c.err, oob) {
			t.Errorf("%s: expected out of bounds, got %v", c.name, c.err)
		}
	}
}

func TestWazeroMemory_Grow(t *testing.T) {
	m := newGuestMemory(t, 1, 2)

	prev, ok := m.Grow(1)
	if !ok || prev != 1 {
		t.Fatalf("Grow(1) = %d, %v; want 1, true", prev, ok)
	}
	if m.Size() != 2*65536 {
		t.Errorf("Size after grow = %d", m.Size())
	}
	if _, ok := m.Grow(1); ok {
		t.Error("Grow past the declared maximum should fail")
	}
}
