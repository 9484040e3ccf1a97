package roc

import (
	"fmt"
	"reflect"

	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/internal/abi"
)

// List is a Roc list held by the host: the {elements, length, capacity}
// record on the Go side, elements in foreign memory.
type List struct {
	env      *Env
	elem     Descriptor
	elems    uint32
	length   uint32
	capacity uint32
	state    ownership
}

// prefix is the distance from the allocation base to the first element.
// The refcount word occupies the last word of it.
func prefix(l Layout, elem Descriptor) uint32 {
	return max(l.Word, elem.Align(l))
}

func elemAddr(l *List, i uint32) uint32 {
	return l.elems + i*l.elem.Size(l.env.Layout)
}

// NewList builds a uniquely owned list from seq, which is []any or any Go
// slice or array. An empty sequence allocates nothing. When an element
// fails to encode, the elements already written are destroyed, the block
// is freed and the error carries the element index in its path.
func NewList(env *Env, elem Descriptor, seq any) (*List, error) {
	items, err := toItems(seq, elem)
	if err != nil {
		return nil, err
	}
	l := &List{env: env, elem: elem}
	if len(items) == 0 {
		return l, nil
	}
	if len(items) > abi.MaxListLen {
		return nil, errors.Overflow(errors.PhaseEncode, nil, len(items), l.TypeName())
	}

	n := uint32(len(items))
	if err := l.allocate(n); err != nil {
		return nil, err
	}
	for i, v := range items {
		if err := elem.FromHost(env, elemAddr(l, uint32(i)), v); err != nil {
			l.abandon(uint32(i))
			return nil, errors.WithPath(errors.PhaseEncode, err, fmt.Sprintf("[%d]", i))
		}
		l.length++
	}
	return l, nil
}

// allocate reserves room for capacity elements and marks the block
// uniquely owned.
func (l *List) allocate(capacity uint32) error {
	lay := l.env.Layout
	pre := prefix(lay, l.elem)
	data, ok := abi.SafeMulU32(capacity, l.elem.Size(lay))
	if !ok {
		return errors.Overflow(errors.PhaseAlloc, nil, capacity, l.TypeName())
	}
	size, ok := abi.SafeAddU32(data, pre)
	if !ok {
		return errors.Overflow(errors.PhaseAlloc, nil, capacity, l.TypeName())
	}

	base, err := l.env.Alloc.Alloc(size, pre)
	if err != nil {
		return err
	}
	if err := l.env.writeRefcount(base+pre-lay.Word, lay.RefcountOne()); err != nil {
		_ = l.env.Alloc.Dealloc(base, pre)
		return err
	}
	l.elems = base + pre
	l.capacity = capacity
	return nil
}

// abandon destroys the first n elements and frees the block after a failed
// construction.
func (l *List) abandon(n uint32) {
	for i := uint32(0); i < n; i++ {
		_ = destruct(l.env, l.elem, elemAddr(l, i))
	}
	_ = l.env.Alloc.Dealloc(l.elems-prefix(l.env.Layout, l.elem), prefix(l.env.Layout, l.elem))
	l.elems, l.length, l.capacity = 0, 0, 0
}

func toItems(seq any, elem Descriptor) ([]any, error) {
	switch s := seq.(type) {
	case nil:
		return nil, nil
	case []any:
		return s, nil
	}
	rv := reflect.ValueOf(seq)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, invalidInput("List "+argName(elem.Name()), seq, "a slice")
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

// AdoptList takes ownership of the List record stored at addr.
func AdoptList(env *Env, elem Descriptor, addr uint32) (*List, error) {
	l, err := readListRecord(env, elem, addr)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ReadList decodes the List record at addr without taking ownership.
func ReadList(env *Env, elem Descriptor, addr uint32) ([]any, error) {
	l, err := readListRecord(env, elem, addr)
	if err != nil {
		return nil, err
	}
	return l.ToHost()
}

func readListRecord(env *Env, elem Descriptor, addr uint32) (*List, error) {
	w := env.Layout.Word
	var words [3]uint32
	for i := range words {
		raw, err := env.readWord(addr + uint32(i)*w)
		if err != nil {
			return nil, err
		}
		if words[i], err = narrowPtr(errors.PhaseDecode, "List", raw); err != nil {
			return nil, err
		}
	}
	l := &List{env: env, elem: elem, elems: words[0], length: words[1], capacity: words[2]}
	if (l.elems == 0) != (l.capacity == 0) || l.length > l.capacity ||
		(l.elems != 0 && l.elems < prefix(env.Layout, elem)) {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			RocType(l.TypeName()).
			Detail("corrupt record {elements 0x%x, len %d, cap %d}", l.elems, l.length, l.capacity).
			Build()
	}
	return l, nil
}

func (l *List) live(phase errors.Phase) error {
	if l.state == owned {
		return nil
	}
	return errors.New(phase, errors.KindInvalidInput).
		RocType(l.TypeName()).
		Detail("value already %s", l.state).
		Build()
}

// Elem returns the element descriptor.
func (l *List) Elem() Descriptor { return l.elem }

// Type returns the List descriptor for this list.
func (l *List) Type() Descriptor { return ListOf(l.elem) }

// TypeName returns the Roc type, e.g. "List I64".
func (l *List) TypeName() string { return "List " + argName(l.elem.Name()) }

// Len returns the number of elements.
func (l *List) Len() int { return int(l.length) }

// Cap returns the number of element slots allocated.
func (l *List) Cap() int { return int(l.capacity) }

// IsEmpty reports whether the list has no allocation.
func (l *List) IsEmpty() bool { return l.capacity == 0 }

// Get decodes element i.
func (l *List) Get(i int) (any, error) {
	if err := l.live(errors.PhaseDecode); err != nil {
		return nil, err
	}
	if i < 0 || i >= int(l.length) {
		return nil, errors.OutOfBounds(errors.PhaseDecode, nil, i, int(l.length))
	}
	v, err := l.elem.ToHost(l.env, elemAddr(l, uint32(i)))
	if err != nil {
		return nil, errors.WithPath(errors.PhaseDecode, err, fmt.Sprintf("[%d]", i))
	}
	return v, nil
}

// ToHost decodes every element in order.
func (l *List) ToHost() ([]any, error) {
	if err := l.live(errors.PhaseDecode); err != nil {
		return nil, err
	}
	out := make([]any, l.length)
	for i := range out {
		v, err := l.elem.ToHost(l.env, elemAddr(l, uint32(i)))
		if err != nil {
			return nil, errors.WithPath(errors.PhaseDecode, err, fmt.Sprintf("[%d]", i))
		}
		out[i] = v
	}
	return out, nil
}

// RefcountAddr returns the address of the refcount word, if allocated.
func (l *List) RefcountAddr() (uint32, bool) {
	if l.capacity == 0 {
		return 0, false
	}
	return l.elems - l.env.Layout.Word, true
}

// Refcount reads the refcount word.
func (l *List) Refcount() (int64, error) {
	rcAddr, ok := l.RefcountAddr()
	if !ok {
		return 0, errors.Unsupported(errors.PhaseDecode, "empty List has no refcount")
	}
	return l.env.readRefcount(rcAddr)
}

// Append adds v at the end, growing the block through Realloc when full.
// The list must be uniquely owned.
func (l *List) Append(v any) error {
	if err := l.live(errors.PhaseEncode); err != nil {
		return err
	}
	if l.capacity == 0 {
		if err := l.allocate(4); err != nil {
			return err
		}
	} else {
		if err := l.env.checkUnique(l.TypeName(), l.elems-l.env.Layout.Word); err != nil {
			return err
		}
		if l.length == l.capacity {
			if err := l.grow(l.capacity * 2); err != nil {
				return err
			}
		}
	}
	if err := l.elem.FromHost(l.env, elemAddr(l, l.length), v); err != nil {
		return errors.WithPath(errors.PhaseEncode, err, fmt.Sprintf("[%d]", l.length))
	}
	l.length++
	return nil
}

func (l *List) grow(capacity uint32) error {
	lay := l.env.Layout
	pre := prefix(lay, l.elem)
	es := l.elem.Size(lay)
	newData, ok := abi.SafeMulU32(capacity, es)
	if !ok || capacity > abi.MaxListLen {
		return errors.Overflow(errors.PhaseAlloc, nil, capacity, l.TypeName())
	}
	base, err := l.env.Alloc.Realloc(l.elems-pre, newData+pre, l.capacity*es+pre, pre)
	if err != nil {
		return err
	}
	l.elems = base + pre
	l.capacity = capacity
	return nil
}

// Release destroys every element in order and frees the block. An empty
// list releases nothing. The refcount is validated first, as for Str; a
// shared list stays owned. If an element destructor fails, the rest are
// still destroyed and the block freed; the first failure is returned and
// the list is released regardless.
func (l *List) Release() error {
	switch l.state {
	case transferred:
		return nil
	case released:
		return errors.New(errors.PhaseRelease, errors.KindDoubleFree).
			RocType(l.TypeName()).
			Detail("value already released").
			Build()
	}
	if err := l.CheckUnique(); err != nil {
		if !isStillShared(err) {
			l.state = released
		}
		return err
	}
	l.state = released
	if l.capacity == 0 {
		return nil
	}
	return teardownList(l.env, l.elem, l.elems, l.length)
}

// CheckUnique validates the refcount word without releasing anything. An
// empty list is always unique.
func (l *List) CheckUnique() error {
	rcAddr, ok := l.RefcountAddr()
	if !ok {
		return nil
	}
	return l.env.checkUnique(l.TypeName(), rcAddr)
}

func releaseList(env *Env, elem Descriptor, elems, length, capacity uint32) error {
	if capacity == 0 {
		return nil
	}
	typeName := "List " + argName(elem.Name())
	if err := env.checkUnique(typeName, elems-env.Layout.Word); err != nil {
		return err
	}
	return teardownList(env, elem, elems, length)
}

// teardownList destroys the elements of a list whose block was already
// validated as unique, then frees the block.
func teardownList(env *Env, elem Descriptor, elems, length uint32) error {
	lay := env.Layout
	typeName := "List " + argName(elem.Name())
	rcAddr := elems - lay.Word

	var first error
	size := elem.Size(lay)
	for i := uint32(0); i < length; i++ {
		if err := destruct(env, elem, elems+i*size); err != nil && first == nil {
			first = errors.WithPath(errors.PhaseRelease, err, fmt.Sprintf("[%d]", i))
		}
	}
	pre := prefix(lay, elem)
	if err := env.freeUnique(typeName, rcAddr, elems-pre, pre); err != nil && first == nil {
		first = err
	}
	return first
}

// Footprint returns the host and foreign bytes held by the value.
func (l *List) Footprint() uint64 {
	if l.state != owned {
		return 0
	}
	lay := l.env.Layout
	rec := uint64(lay.ListSize())
	if l.capacity == 0 {
		return rec
	}
	return rec + uint64(l.capacity)*uint64(l.elem.Size(lay)) + uint64(prefix(lay, l.elem))
}

// Record returns the record bytes in the foreign layout.
func (l *List) Record() []byte {
	rec := make([]byte, l.env.Layout.ListSize())
	l.env.putWord(rec, 0, uint64(l.elems))
	l.env.putWord(rec, 1, uint64(l.length))
	l.env.putWord(rec, 2, uint64(l.capacity))
	return rec
}

// WriteRaw copies the record to addr without changing ownership.
func (l *List) WriteRaw(addr uint32) error {
	if err := l.live(errors.PhaseTransfer); err != nil {
		return err
	}
	return l.env.Mem.Write(addr, l.Record())
}

// Transfer writes the record to addr and gives up ownership.
func (l *List) Transfer(addr uint32) error {
	if err := l.WriteRaw(addr); err != nil {
		return err
	}
	l.state = transferred
	return nil
}

type listType struct {
	elem Descriptor
	name string
}

func newListType(elem Descriptor) *listType {
	return &listType{elem: elem, name: "List " + argName(elem.Name())}
}

func (t *listType) Name() string { return t.name }
func (t *listType) Kind() Kind { return KindList }
func (t *listType) Size(l Layout) uint32 { return l.ListSize() }
func (t *listType) Align(l Layout) uint32 { return l.Word }
func (t *listType) String() string { return t.name }

// Elem returns the element descriptor.
func (t *listType) Elem() Descriptor { return t.elem }

// FromHost accepts a Go slice or a *List of the same element type. A *List
// is transferred into the slot.
func (t *listType) FromHost(env *Env, addr uint32, v any) error {
	if src, ok := v.(*List); ok {
		if src.elem.Name() != t.elem.Name() {
			return errors.TypeMismatch(errors.PhaseEncode, nil, src.TypeName(), t.name)
		}
		return src.Transfer(addr)
	}
	l, err := NewList(env, t.elem, v)
	if err != nil {
		return err
	}
	if err := l.Transfer(addr); err != nil {
		_ = l.Release()
		return err
	}
	return nil
}

func (t *listType) ToHost(env *Env, addr uint32) (any, error) {
	return ReadList(env, t.elem, addr)
}

func (t *listType) Destruct(env *Env, addr uint32) error {
	l, err := readListRecord(env, t.elem, addr)
	if err != nil {
		return err
	}
	return releaseList(env, t.elem, l.elems, l.length, l.capacity)
}

// ElemOf returns the element descriptor of a List descriptor.
func ElemOf(d Descriptor) (Descriptor, bool) {
	t, ok := d.(*listType)
	if !ok {
		return nil, false
	}
	return t.elem, true
}
