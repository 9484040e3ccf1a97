package runtime

import (
	stderrors "errors"
	goruntime "runtime"
	"sync"

	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/resource"
	"github.com/wippyai/roc-host/roc"
)

// Value is a Str or List owned by an Instance. A Value dropped without
// Release is queued when the garbage collector reclaims it and freed by
// the next Instance.Collect.
type Value struct {
	inst    *Instance
	payload resource.Value
	cleanup goruntime.Cleanup
	handle  resource.Handle
}

// Handle returns the value's handle in the instance table, or 0 once the
// value has been released or passed to a guest.
func (v *Value) Handle() resource.Handle { return v.handle }

// TypeName returns the Roc type, e.g. "Str" or "List I64".
func (v *Value) TypeName() string { return v.payload.TypeName() }

// Footprint returns the bytes the value holds.
func (v *Value) Footprint() uint64 {
	if v.handle == 0 {
		return 0
	}
	return v.payload.Footprint()
}

// Str returns the underlying Str. The Value keeps ownership.
func (v *Value) Str() (*roc.Str, bool) {
	s, ok := v.payload.(*roc.Str)
	return s, ok && v.handle != 0
}

// List returns the underlying List. The Value keeps ownership.
func (v *Value) List() (*roc.List, bool) {
	l, ok := v.payload.(*roc.List)
	return l, ok && v.handle != 0
}

// ToHost decodes the value: a string for Str, []any for a List.
func (v *Value) ToHost() (any, error) {
	if err := v.live(errors.PhaseDecode); err != nil {
		return nil, err
	}
	switch p := v.payload.(type) {
	case *roc.Str:
		b, err := p.Bytes()
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case *roc.List:
		return p.ToHost()
	}
	return nil, errors.Unsupported(errors.PhaseDecode, v.TypeName())
}

// Release frees the value's payload now. A payload that is still shared
// is left in place and the Value stays live, so Release can be retried
// once the other references are gone.
func (v *Value) Release() error {
	if err := v.live(errors.PhaseRelease); err != nil {
		return err
	}
	if u, ok := v.payload.(uniqueChecker); ok {
		if err := u.CheckUnique(); stderrors.Is(err, errors.ErrStillShared) {
			return err
		}
	}
	h := v.detach()
	return v.inst.table.Remove(h)
}

// uniqueChecker is a payload that can validate its refcount without
// releasing it.
type uniqueChecker interface {
	CheckUnique() error
}

func (v *Value) live(phase errors.Phase) error {
	if v.handle != 0 {
		return nil
	}
	kind := errors.KindInvalidInput
	if phase == errors.PhaseRelease {
		kind = errors.KindDoubleFree
	}
	return errors.New(phase, kind).
		RocType(v.TypeName()).
		Detail("value already released").
		Build()
}

// take removes the payload from the table and hands it to the caller.
func (v *Value) take() (resource.Value, error) {
	if err := v.live(errors.PhaseTransfer); err != nil {
		return nil, err
	}
	h := v.detach()
	p, ok := v.inst.table.Take(h)
	if !ok {
		return nil, errors.NotFound(errors.PhaseTransfer, "handle", v.TypeName())
	}
	return p, nil
}

func (v *Value) detach() resource.Handle {
	h := v.handle
	v.handle = 0
	v.cleanup.Stop()
	return h
}

// cleanupQueue collects handles of values the garbage collector found
// unreachable. Cleanups run on their own goroutine, so pushes are locked.
type cleanupQueue struct {
	handles []resource.Handle
	mu      sync.Mutex
}

func (q *cleanupQueue) push(h resource.Handle) {
	q.mu.Lock()
	q.handles = append(q.handles, h)
	q.mu.Unlock()
}

func (q *cleanupQueue) drain() []resource.Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.handles
	q.handles = nil
	return out
}

func (q *cleanupQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.handles)
}
