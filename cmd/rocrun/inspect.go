package main

import (
	"fmt"

	"github.com/wippyai/roc-host/roc"
	"github.com/wippyai/roc-host/runtime"
)

// inspect encodes -value as -type in a host arena and prints the record
// the foreign side would see.
func inspect(opts options, out *printer) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	layout := cfg.Layout
	if !layout.Valid() {
		layout = roc.Wasm32
	}
	d, err := roc.Lookup(opts.typeName)
	if err != nil {
		return err
	}
	host, err := roc.ParseJSON(d, []byte(opts.value))
	if err != nil {
		return err
	}

	env := runtime.NewArena(layout, 1)
	out.heading(fmt.Sprintf("%s (%s, size %d, align %d)", d.Name(), layout, d.Size(layout), d.Align(layout)))

	switch d.Kind() {
	case roc.KindStr:
		return inspectStr(env, host, out)
	case roc.KindList:
		elem, _ := roc.ElemOf(d)
		return inspectList(env, elem, host, out)
	}

	slot, err := env.Alloc.Alloc(8, 8)
	if err != nil {
		return err
	}
	if err := d.FromHost(env, slot, host); err != nil {
		return err
	}
	raw, err := env.Mem.Read(slot, d.Size(layout))
	if err != nil {
		return err
	}
	out.record("bytes", raw)
	back, err := d.ToHost(env, slot)
	if err != nil {
		return err
	}
	out.value(back)
	return nil
}

func inspectStr(env *roc.Env, host any, out *printer) error {
	var s *roc.Str
	var err error
	switch v := host.(type) {
	case string:
		s, err = roc.NewStrString(env, v)
	case []byte:
		s, err = roc.NewStr(env, v)
	default:
		err = fmt.Errorf("unexpected %T for Str", host)
	}
	if err != nil {
		return err
	}

	form := "big"
	if s.IsSmall() {
		form = "small"
	}
	out.record("record", s.Record())
	out.dim(fmt.Sprintf("form       %s, len %d, cap %d, footprint %d", form, s.Len(), s.Cap(), s.Footprint()))
	if rc, err := s.Refcount(); err == nil {
		out.dim(fmt.Sprintf("refcount   %d (unique %v)", rc, rc == env.Layout.RefcountOne()))
	}
	out.value(s.String())
	return s.Release()
}

func inspectList(env *roc.Env, elem roc.Descriptor, host any, out *printer) error {
	l, err := roc.NewList(env, elem, host)
	if err != nil {
		return err
	}

	out.record("record", l.Record())
	out.dim(fmt.Sprintf("elements   %d of %s, cap %d, footprint %d", l.Len(), elem.Name(), l.Cap(), l.Footprint()))
	if rc, err := l.Refcount(); err == nil {
		out.dim(fmt.Sprintf("refcount   %d (unique %v)", rc, rc == env.Layout.RefcountOne()))
	}
	items, err := l.ToHost()
	if err != nil {
		_ = l.Release()
		return err
	}
	out.value(items)
	return l.Release()
}
