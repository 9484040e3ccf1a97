package roc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/roc-host/errors"
)

// recorder is a U32-sized element that logs destruction order.
type recorder struct {
	destroyed *[]uint32
	failOn    uint32
}

func (recorder) Name() string { return "Rec" }
func (recorder) Kind() Kind { return KindCustom }
func (recorder) Size(Layout) uint32 { return 4 }
func (recorder) Align(Layout) uint32 { return 4 }
func (r recorder) ToHost(env *Env, addr uint32) (any, error) {
	return env.Mem.ReadU32(addr)
}

func (r recorder) FromHost(env *Env, addr uint32, v any) error {
	return env.Mem.WriteU32(addr, v.(uint32))
}

func (r recorder) Destruct(env *Env, addr uint32) error {
	v, err := env.Mem.ReadU32(addr)
	if err != nil {
		return err
	}
	*r.destroyed = append(*r.destroyed, v)
	if v == r.failOn {
		return errors.InvalidData(errors.PhaseRelease, nil, "refused")
	}
	return nil
}

func TestList_Empty(t *testing.T) {
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			env, bridge, _ := newTestEnv(t, layout)

			l, err := NewList(env, I64, []int64{})
			require.NoError(t, err)
			assert.True(t, l.IsEmpty())
			assert.Equal(t, make([]byte, layout.ListSize()), l.Record())
			assert.Equal(t, uint64(layout.ListSize()), l.Footprint())
			assert.Zero(t, bridge.Stats().Heap.Allocs)

			items, err := l.ToHost()
			require.NoError(t, err)
			assert.Empty(t, items)

			require.NoError(t, l.Release())
			assert.Zero(t, bridge.Stats().Heap.Frees)
		})
	}
}

func TestList_Construct(t *testing.T) {
	tests := []struct {
		layout    Layout
		elem      Descriptor
		seq       any
		want      []any
		prefix    uint32
		footprint uint64
	}{
		{Wasm32, I64, []int64{1, 2, 3}, []any{int64(1), int64(2), int64(3)}, 8, 12 + 24 + 8},
		{Wasm32, U8, []byte{7, 8}, []any{uint8(7), uint8(8)}, 4, 12 + 2 + 4},
		{Native64, U8, []int{7, 8}, []any{uint8(7), uint8(8)}, 8, 24 + 2 + 8},
		{Native64, F32, []any{1.5, float32(2)}, []any{float32(1.5), float32(2)}, 8, 24 + 8 + 8},
		{Wasm32, Bool, []bool{true, false}, []any{true, false}, 4, 12 + 2 + 4},
	}
	for _, tt := range tests {
		t.Run(tt.layout.String()+"/"+tt.elem.Name(), func(t *testing.T) {
			env, bridge, _ := newTestEnv(t, tt.layout)

			l, err := NewList(env, tt.elem, tt.seq)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), l.Len())
			assert.Equal(t, tt.footprint, l.Footprint())

			rc, err := l.Refcount()
			require.NoError(t, err)
			assert.Equal(t, tt.layout.RefcountOne(), rc)

			rcAddr, ok := l.RefcountAddr()
			require.True(t, ok)
			base := rcAddr + tt.layout.Word - tt.prefix
			_, ok = bridge.Heap().BlockSize(base)
			assert.True(t, ok, "allocation starts prefix bytes before the elements")

			items, err := l.ToHost()
			require.NoError(t, err)
			assert.Equal(t, tt.want, items)

			require.NoError(t, l.Release())
			assert.Zero(t, liveBlocks(bridge))
		})
	}
}

func TestList_OfStr(t *testing.T) {
	env, bridge, _ := newTestEnv(t, Wasm32)

	l, err := NewList(env, StrType, []string{"short", "a rather longer string", ""})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), liveBlocks(bridge), "list block plus one big string")

	items, err := l.ToHost()
	require.NoError(t, err)
	assert.Equal(t, []any{"short", "a rather longer string", ""}, items)

	require.NoError(t, l.Release())
	assert.Zero(t, liveBlocks(bridge))
}

func TestList_OfList(t *testing.T) {
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			env, bridge, _ := newTestEnv(t, layout)
			d, err := Lookup("List (List I64)")
			require.NoError(t, err)
			elem, ok := ElemOf(d)
			require.True(t, ok)

			l, err := NewList(env, elem, [][]int64{{1, 2}, {}, {3}})
			require.NoError(t, err)
			assert.Equal(t, "List (List I64)", l.TypeName())
			assert.Equal(t, uint64(3), liveBlocks(bridge), "outer block and two non-empty inner blocks")

			items, err := l.ToHost()
			require.NoError(t, err)
			assert.Equal(t, []any{
				[]any{int64(1), int64(2)},
				[]any{},
				[]any{int64(3)},
			}, items)

			require.NoError(t, l.Release())
			assert.Zero(t, liveBlocks(bridge))
		})
	}
}

func TestList_DestructorOrder(t *testing.T) {
	env, bridge, _ := newTestEnv(t, Wasm32)
	var destroyed []uint32
	rec := recorder{destroyed: &destroyed, failOn: 99}

	l, err := NewList(env, rec, []uint32{10, 20, 30})
	require.NoError(t, err)
	require.NoError(t, l.Release())
	assert.Equal(t, []uint32{10, 20, 30}, destroyed)
	assert.Zero(t, liveBlocks(bridge))
}

func TestList_DestructorFailureStillFrees(t *testing.T) {
	env, bridge, _ := newTestEnv(t, Wasm32)
	var destroyed []uint32
	rec := recorder{destroyed: &destroyed, failOn: 20}

	l, err := NewList(env, rec, []uint32{10, 20, 30})
	require.NoError(t, err)

	err = l.Release()
	require.Error(t, err)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, []string{"[1]"}, e.Path)
	assert.Equal(t, []uint32{10, 20, 30}, destroyed)
	assert.Zero(t, liveBlocks(bridge))
}

func TestList_PartialFailureCleansUp(t *testing.T) {
	env, bridge, _ := newTestEnv(t, Wasm32)

	_, err := NewList(env, StrType, []any{"first string on the heap", "second string on the heap", 42})
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidInput})

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, []string{"[2]"}, e.Path)
	assert.Zero(t, liveBlocks(bridge), "encoded elements and the block are freed")

	_, err = NewList(env, U8, []int{1, 300})
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindOverflow})
	assert.Zero(t, liveBlocks(bridge))
}

func TestList_NotASlice(t *testing.T) {
	env, _, _ := newTestEnv(t, Wasm32)
	_, err := NewList(env, I64, 42)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidInput})
}

func TestList_Get(t *testing.T) {
	env, _, _ := newTestEnv(t, Wasm32)
	l, err := NewList(env, I32, []int32{-1, 5})
	require.NoError(t, err)

	v, err := l.Get(0)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), v)

	_, err = l.Get(2)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindOutOfBounds})
}

func TestList_ReleaseValidation(t *testing.T) {
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			env, bridge, _ := newTestEnv(t, layout)
			slot := newSlot(t, env)

			l, err := NewList(env, I64, []int64{1, 2})
			require.NoError(t, err)
			require.NoError(t, l.WriteRaw(slot))

			rcAddr, _ := l.RefcountAddr()
			require.NoError(t, env.writeRefcount(rcAddr, layout.RefcountOne()+2))
			assert.ErrorIs(t, l.Release(), errors.ErrStillShared)

			require.NoError(t, env.writeRefcount(rcAddr, layout.RefcountOne()))
			require.NoError(t, l.Release())
			assert.ErrorIs(t, l.Release(), errors.ErrDoubleFree)

			stale, err := AdoptList(env, I64, slot)
			require.NoError(t, err)
			assert.ErrorIs(t, stale.Release(), errors.ErrDoubleFree)
			assert.Equal(t, uint64(1), liveBlocks(bridge), "only the slot remains")
		})
	}
}

func TestList_ReleaseWithSharedElement(t *testing.T) {
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			env, bridge, _ := newTestEnv(t, layout)

			outer, err := NewList(env, ListOf(I64), []any{[]int64{1}, []int64{2}})
			require.NoError(t, err)
			require.Equal(t, uint64(3), liveBlocks(bridge))

			inner, err := readListRecord(env, I64, elemAddr(outer, 0))
			require.NoError(t, err)
			innerRC, _ := inner.RefcountAddr()
			require.NoError(t, env.writeRefcount(innerRC, layout.RefcountOne()+1))

			err = outer.Release()
			assert.ErrorIs(t, err, errors.ErrStillShared)
			assert.Equal(t, uint64(1), liveBlocks(bridge), "only the shared inner block remains")
			assert.Zero(t, outer.Footprint())
			_, err = outer.Get(0)
			assert.Error(t, err)

			// The freed outer block may be reused; a second release must not touch it.
			s, err := NewStrString(env, "reuses the freed outer block")
			require.NoError(t, err)
			err = outer.Release()
			assert.ErrorIs(t, err, errors.ErrDoubleFree)
			require.NoError(t, s.Release())

			require.NoError(t, env.writeRefcount(innerRC, layout.RefcountOne()))
			require.NoError(t, inner.Release())
			assert.Zero(t, liveBlocks(bridge))
		})
	}
}

func TestList_CheckUnique(t *testing.T) {
	env, _, _ := newTestEnv(t, Wasm32)

	empty, err := NewList(env, I64, []int64{})
	require.NoError(t, err)
	assert.NoError(t, empty.CheckUnique())

	l, err := NewList(env, I64, []int64{1})
	require.NoError(t, err)
	assert.NoError(t, l.CheckUnique())

	rcAddr, _ := l.RefcountAddr()
	require.NoError(t, env.writeRefcount(rcAddr, Wasm32.RefcountOne()+1))
	assert.ErrorIs(t, l.CheckUnique(), errors.ErrStillShared)
	require.NoError(t, env.writeRefcount(rcAddr, Wasm32.RefcountOne()))
	require.NoError(t, l.Release())
}

func TestListType_FromHostTransferFailure(t *testing.T) {
	env, bridge, _ := newTestEnv(t, Wasm32)
	d := ListOf(I64)

	err := d.FromHost(env, 0xFFFFFFF0, []int64{1, 2, 3})
	assert.Error(t, err)
	assert.Zero(t, liveBlocks(bridge), "the encoded list is released")
}

func TestList_TransferAndAdopt(t *testing.T) {
	env, bridge, _ := newTestEnv(t, Wasm32)
	slot := newSlot(t, env)

	l, err := NewList(env, StrType, []string{"one", "two"})
	require.NoError(t, err)
	require.NoError(t, l.Transfer(slot))
	require.NoError(t, l.Release())

	items, err := ReadList(env, StrType, slot)
	require.NoError(t, err)
	assert.Equal(t, []any{"one", "two"}, items)

	adopted, err := AdoptList(env, StrType, slot)
	require.NoError(t, err)
	assert.Equal(t, 2, adopted.Len())
	require.NoError(t, adopted.Release())
	assert.Equal(t, uint64(1), liveBlocks(bridge))
}

func TestList_CorruptRecord(t *testing.T) {
	env, _, _ := newTestEnv(t, Wasm32)
	slot := newSlot(t, env)

	require.NoError(t, env.Mem.WriteU32(slot, 0))
	require.NoError(t, env.Mem.WriteU32(slot+4, 0))
	require.NoError(t, env.Mem.WriteU32(slot+8, 4))

	_, err := AdoptList(env, I64, slot)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindInvalidData})
}

func TestList_Append(t *testing.T) {
	env, bridge, _ := newTestEnv(t, Wasm32)

	l, err := NewList(env, I64, nil)
	require.NoError(t, err)
	for i := range 6 {
		require.NoError(t, l.Append(i*10))
	}
	assert.Equal(t, 6, l.Len())
	assert.Equal(t, 8, l.Cap())
	assert.Equal(t, uint64(1), bridge.Stats().Heap.Reallocs)

	got, err := ListToSlice[int](l)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 10, 20, 30, 40, 50}, got)

	rc, err := l.Refcount()
	require.NoError(t, err)
	assert.Equal(t, Wasm32.RefcountOne(), rc, "refcount survives the move")

	rcAddr, _ := l.RefcountAddr()
	require.NoError(t, env.writeRefcount(rcAddr, Wasm32.RefcountOne()+1))
	assert.ErrorIs(t, l.Append(60), errors.ErrStillShared)
	require.NoError(t, env.writeRefcount(rcAddr, Wasm32.RefcountOne()))

	require.NoError(t, l.Release())
	assert.Zero(t, liveBlocks(bridge))
}

func TestListType_FromHostList(t *testing.T) {
	env, bridge, _ := newTestEnv(t, Wasm32)
	slot := newSlot(t, env)
	inner, err := NewList(env, U16, []uint16{1, 2})
	require.NoError(t, err)

	err = ListOf(I64).FromHost(env, slot, inner)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindTypeMismatch})

	require.NoError(t, ListOf(U16).FromHost(env, slot, inner))
	require.NoError(t, inner.Release(), "ownership moved into the slot")

	require.NoError(t, ListOf(U16).(Destructor).Destruct(env, slot))
	assert.Equal(t, uint64(1), liveBlocks(bridge))
}

func TestTypedHelpers(t *testing.T) {
	env, _, _ := newTestEnv(t, Native64)

	l, err := ListFromSlice(env, []float64{0.5, 1.5})
	require.NoError(t, err)
	assert.Equal(t, "F64", l.Elem().Name())

	got, err := ListToSlice[float64](l)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5}, got)

	s, err := ListFromSlice(env, []string{"a", "b"})
	require.NoError(t, err)
	strs, err := ListToSlice[string](s)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, strs)

	_, err = ListToSlice[uint8](l)
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindTypeMismatch})

	assert.Equal(t, I64, DescriptorFor[int]())
	assert.Equal(t, U8, DescriptorFor[byte]())
}
