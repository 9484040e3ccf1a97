package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	goruntime "runtime"

	"go.uber.org/zap"

	"github.com/wippyai/roc-host/alloc"
	"github.com/wippyai/roc-host/engine"
	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/resource"
	"github.com/wippyai/roc-host/roc"
)

// Instance is an instantiated guest with its own value table. It is not
// safe for concurrent use.
type Instance struct {
	module  *Module
	inst    *engine.Instance
	env     *roc.Env
	table   *resource.Table
	pending *cleanupQueue
}

func newInstance(m *Module, inst *engine.Instance) *Instance {
	return &Instance{
		module:  m,
		inst:    inst,
		env:     inst.Env(),
		table:   resource.NewTable(),
		pending: &cleanupQueue{},
	}
}

// Name returns the guest instance name, or "" after Close.
func (i *Instance) Name() string {
	if i.inst == nil {
		return ""
	}
	return i.inst.Name()
}

// Module returns the module the instance was created from.
func (i *Instance) Module() *Module { return i.module }

// Env returns the value environment over guest memory.
func (i *Instance) Env() *roc.Env { return i.env }

// Stats returns the guest heap counters.
func (i *Instance) Stats() alloc.Stats {
	if i.inst == nil {
		return alloc.Stats{}
	}
	return i.inst.Bridge().Stats()
}

// Footprint sums the bytes held by live values.
func (i *Instance) Footprint() uint64 { return i.table.Footprint() }

// Len returns the number of live values.
func (i *Instance) Len() int { return i.table.Len() }

// Pending returns the number of dropped values waiting for Collect.
func (i *Instance) Pending() int { return i.pending.len() }

// Subscribe registers an observer for value lifecycle events.
func (i *Instance) Subscribe(o resource.Observer) { i.table.Subscribe(o) }

// NewStr builds a Str in guest memory.
func (i *Instance) NewStr(s string) (*Value, error) {
	if err := i.ready(); err != nil {
		return nil, err
	}
	str, err := roc.NewStrString(i.env, s)
	if err != nil {
		return nil, err
	}
	return i.track(str)
}

// NewList builds a List of elem in guest memory from a Go slice.
func (i *Instance) NewList(elem roc.Descriptor, items any) (*Value, error) {
	if err := i.ready(); err != nil {
		return nil, err
	}
	l, err := roc.NewList(i.env, elem, items)
	if err != nil {
		return nil, err
	}
	return i.track(l)
}

// New builds a value of the named Roc type, e.g. "Str" or "List (List U8)".
func (i *Instance) New(typeName string, v any) (*Value, error) {
	if err := i.ready(); err != nil {
		return nil, err
	}
	d, err := roc.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	if roc.IsScalar(d) {
		return nil, errors.Unsupported(errors.PhaseEncode, d.Name()+" is passed by value")
	}

	slot, err := i.allocSlot(d)
	if err != nil {
		return nil, err
	}
	defer i.freeSlot(slot)

	if err := d.FromHost(i.env, slot, v); err != nil {
		return nil, err
	}
	p, err := adopt(i.env, d, slot)
	if err != nil {
		return nil, err
	}
	return i.track(p)
}

func (i *Instance) track(p resource.Value) (*Value, error) {
	h, err := i.table.Insert(p)
	if err != nil {
		_ = p.Release()
		return nil, err
	}
	v := &Value{inst: i, payload: p, handle: h}
	v.cleanup = goruntime.AddCleanup(v, i.pending.push, h)
	return v, nil
}

// Collect releases values that were dropped without Release. It returns
// the joined release errors.
func (i *Instance) Collect() error {
	handles := i.pending.drain()
	if len(handles) == 0 || i.inst == nil {
		return nil
	}

	var errs []error
	for _, h := range handles {
		if err := i.table.Remove(h); err != nil {
			errs = append(errs, fmt.Errorf("handle %d: %w", h, err))
		}
	}
	Logger().Debug("collected dropped values",
		zap.String("instance", i.Name()),
		zap.Int("count", len(handles)),
		zap.Int("errors", len(errs)))
	return stderrors.Join(errs...)
}

// Call invokes a declared guest function. Scalar arguments are passed as
// wasm values. Str and List arguments, given as Go values, *Value, *roc.Str
// or *roc.List, are written into argument records in guest memory and
// passed by pointer; the guest takes ownership of them. A Str or List
// result is returned as a *Value owned by the instance; scalar results
// are returned as the matching Go type.
func (i *Instance) Call(ctx context.Context, name string, args ...any) (any, error) {
	if err := i.ready(); err != nil {
		return nil, err
	}
	sig, ok := i.module.Signature(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "signature", name)
	}
	if len(args) != len(sig.Params) {
		return nil, errors.InvalidInput(errors.PhaseRuntime,
			fmt.Sprintf("%s takes %d arguments, got %d", name, len(sig.Params), len(args)))
	}

	f := &frame{inst: i}
	defer f.free()

	params := make([]uint64, 0, len(args)+1)
	var ret uint32
	if sig.returnsRecord() {
		var err error
		if ret, err = f.slot(sig.Result); err != nil {
			return nil, err
		}
		params = append(params, uint64(ret))
	}

	for k, p := range sig.Params {
		raw, err := f.arg(p.Type, args[k])
		if err != nil {
			f.abandon()
			return nil, errors.WithPath(errors.PhaseEncode, err, p.Name)
		}
		params = append(params, raw)
	}

	results, err := i.inst.Call(ctx, name, params...)
	if err != nil {
		return nil, err
	}

	switch {
	case sig.Result == nil:
		return nil, nil
	case sig.returnsRecord():
		p, err := adopt(i.env, sig.Result, ret)
		if err != nil {
			return nil, err
		}
		return i.track(p)
	case len(results) == 0:
		return nil, errors.InvalidData(errors.PhaseDecode, nil, name+" returned no value")
	default:
		return roc.FromWasm(sig.Result, results[0])
	}
}

// CallHost is Call with a Str or List result decoded to a Go value and
// released.
func (i *Instance) CallHost(ctx context.Context, name string, args ...any) (any, error) {
	res, err := i.Call(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	v, ok := res.(*Value)
	if !ok {
		return res, nil
	}
	out, err := v.ToHost()
	if relErr := v.Release(); err == nil {
		err = relErr
	}
	return out, err
}

// Close releases every live value and the guest.
func (i *Instance) Close(ctx context.Context) error {
	if i.inst == nil {
		return nil
	}
	i.pending.drain()
	tableErr := i.table.Close()
	closeErr := i.inst.Close(ctx)
	i.inst = nil
	return stderrors.Join(tableErr, closeErr)
}

func (i *Instance) ready() error {
	if i.inst == nil {
		return errors.NotInitialized(errors.PhaseRuntime, "instance")
	}
	return nil
}

func (i *Instance) allocSlot(d roc.Descriptor) (uint32, error) {
	l := i.env.Layout
	return i.env.Alloc.Alloc(d.Size(l), d.Align(l))
}

func (i *Instance) freeSlot(addr uint32) {
	if err := i.env.Alloc.Dealloc(addr, i.env.Layout.Word); err != nil {
		Logger().Warn("free argument slot", zap.Uint32("addr", addr), zap.Error(err))
	}
}

// adopt takes ownership of the Str or List record at addr.
func adopt(env *roc.Env, d roc.Descriptor, addr uint32) (resource.Value, error) {
	if d.Kind() == roc.KindStr {
		return roc.AdoptStr(env, addr)
	}
	elem, ok := roc.ElemOf(d)
	if !ok {
		return nil, errors.Unsupported(errors.PhaseDecode, "cannot adopt "+d.Name())
	}
	return roc.AdoptList(env, elem, addr)
}

// transferable is a wrapper that can hand its record to the guest.
type transferable interface {
	Transfer(addr uint32) error
	TypeName() string
}

// frame owns the argument and return slots of one call.
type frame struct {
	inst   *Instance
	slots  []uint32
	filled []filledSlot
}

type filledSlot struct {
	d    roc.Descriptor
	addr uint32
}

func (f *frame) slot(d roc.Descriptor) (uint32, error) {
	addr, err := f.inst.allocSlot(d)
	if err != nil {
		return 0, err
	}
	f.slots = append(f.slots, addr)
	return addr, nil
}

func (f *frame) arg(d roc.Descriptor, v any) (uint64, error) {
	if roc.IsScalar(d) {
		return roc.ToWasm(d, v)
	}

	addr, err := f.slot(d)
	if err != nil {
		return 0, err
	}

	switch src := v.(type) {
	case *Value:
		if src.inst != f.inst {
			return 0, errors.InvalidInput(errors.PhaseTransfer, "value belongs to another instance")
		}
		if src.TypeName() != d.Name() {
			return 0, errors.TypeMismatch(errors.PhaseTransfer, nil, src.TypeName(), d.Name())
		}
		p, err := src.take()
		if err != nil {
			return 0, err
		}
		if err := p.(transferable).Transfer(addr); err != nil {
			return 0, err
		}
	case transferable:
		if src.TypeName() != d.Name() {
			return 0, errors.TypeMismatch(errors.PhaseTransfer, nil, src.TypeName(), d.Name())
		}
		if err := src.Transfer(addr); err != nil {
			return 0, err
		}
	default:
		if err := d.FromHost(f.inst.env, addr, v); err != nil {
			return 0, err
		}
	}

	f.filled = append(f.filled, filledSlot{d: d, addr: addr})
	return uint64(addr), nil
}

// abandon releases the payloads of arguments already written when a
// later argument fails to encode.
func (f *frame) abandon() {
	for _, s := range f.filled {
		p, err := adopt(f.inst.env, s.d, s.addr)
		if err == nil {
			err = p.Release()
		}
		if err != nil {
			Logger().Warn("release abandoned argument",
				zap.String("type", s.d.Name()), zap.Error(err))
		}
	}
	f.filled = nil
}

func (f *frame) free() {
	for _, addr := range f.slots {
		f.inst.freeSlot(addr)
	}
	f.slots = nil
}
