package resource

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/wippyai/roc-host/errors"
)

// ErrClosed is returned by Insert after Close.
var ErrClosed = stderrors.New("resource table closed")

// Table tracks live Roc values by handle. It is safe for concurrent use;
// the values themselves are not.
type Table struct {
	store     *store
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{store: newStore()}
}

// Insert adds v and returns its handle.
func (t *Table) Insert(v Value) (Handle, error) {
	if v == nil {
		return 0, errors.InvalidInput(errors.PhaseRuntime, "nil value")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}
	h := t.store.put(v)
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, TypeName: v.TypeName(), Value: v})
	return h, nil
}

// Get returns the value under h.
func (t *Table) Get(h Handle) (Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.get(h)
}

// GetTyped returns the value under h if it has dynamic type T.
func GetTyped[T Value](t *Table, h Handle) (T, bool) {
	var zero T
	v, ok := t.Get(h)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Remove drops h from the table and releases its value. The handle is
// freed even when the release fails; the release error is returned.
func (t *Table) Remove(h Handle) error {
	t.mu.Lock()
	v, ok := t.store.take(h)
	t.mu.Unlock()
	if !ok {
		return errors.NotFound(errors.PhaseRelease, "handle", fmt.Sprint(h))
	}

	err := v.Release()
	t.notify(Event{Type: EventReleased, Handle: h, TypeName: v.TypeName(), Value: v, Err: err})
	return err
}

// Take drops h from the table without releasing its value. Ownership
// moves to the caller.
func (t *Table) Take(h Handle) (Value, bool) {
	t.mu.Lock()
	v, ok := t.store.take(h)
	t.mu.Unlock()
	if !ok {
		return nil, false
	}

	t.notify(Event{Type: EventTaken, Handle: h, TypeName: v.TypeName(), Value: v})
	return v, true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live values.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.len()
}

// Footprint sums the foreign memory held by every live value.
func (t *Table) Footprint() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total uint64
	t.store.each(func(_ Handle, v Value) bool {
		total += v.Footprint()
		return true
	})
	return total
}

// Each visits live values in handle order until fn returns false.
// fn must not call back into the table.
func (t *Table) Each(fn func(Handle, Value) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.store.each(fn)
}

// Clear releases every live value and joins the release errors.
func (t *Table) Clear() error {
	t.mu.RLock()
	handles := t.store.handles()
	t.mu.RUnlock()

	var errs []error
	for _, h := range handles {
		if err := t.Remove(h); err != nil {
			errs = append(errs, fmt.Errorf("handle %d: %w", h, err))
		}
	}
	return stderrors.Join(errs...)
}

// Close releases every live value and rejects further inserts.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	return t.Clear()
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
