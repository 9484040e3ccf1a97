// Package wasm builds small core wasm modules in memory. It exists so that
// tests and the demo guest can exercise the roc_* host imports without a
// Roc toolchain.
package wasm

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// ModuleBuilder assembles a core module: function imports, defined
// functions, one optional exported memory and active data segments.
// Imports must be declared before the first defined function so that
// function indices are stable as soon as they are returned.
type ModuleBuilder struct {
	imports []importFunc
	funcs   []definedFunc
	data    []dataSegment
	memory  *memoryDef
}

type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

type importFunc struct {
	module string
	name   string
	sig    signature
}

type definedFunc struct {
	export string
	sig    signature
	locals []api.ValueType
	body   Code
}

type memoryDef struct {
	export   string
	min, max uint32
	hasMax   bool
}

type dataSegment struct {
	offset uint32
	bytes  []byte
}

// NewModuleBuilder creates an empty builder.
func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{}
}

// Import declares a function import and returns its function index.
func (b *ModuleBuilder) Import(module, name string, params, results []api.ValueType) uint32 {
	if len(b.funcs) > 0 {
		panic(fmt.Sprintf("wasm: import %s.%s declared after a defined function", module, name))
	}
	b.imports = append(b.imports, importFunc{
		module: module,
		name:   name,
		sig:    signature{params: params, results: results},
	})
	return uint32(len(b.imports) - 1)
}

// Func defines a function with the given body and returns its index. The
// body must end with End. An empty export name keeps the function private.
func (b *ModuleBuilder) Func(export string, params, results, locals []api.ValueType, body Code) uint32 {
	b.funcs = append(b.funcs, definedFunc{
		export: export,
		sig:    signature{params: params, results: results},
		locals: locals,
		body:   body,
	})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// Memory defines memory 0. A maxPages of 0 leaves it unbounded.
func (b *ModuleBuilder) Memory(export string, minPages, maxPages uint32) {
	b.memory = &memoryDef{
		export: export,
		min:    minPages,
		max:    maxPages,
		hasMax: maxPages > 0,
	}
}

// Data places bytes at offset in memory 0 at instantiation.
func (b *ModuleBuilder) Data(offset uint32, bytes []byte) {
	b.data = append(b.data, dataSegment{offset: offset, bytes: bytes})
}

// Build encodes the module.
func (b *ModuleBuilder) Build() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// One type per import and per defined function, in that order.
	var types []byte
	ntypes := 0
	for _, imp := range b.imports {
		types = append(types, encodeSig(imp.sig)...)
		ntypes++
	}
	for _, f := range b.funcs {
		types = append(types, encodeSig(f.sig)...)
		ntypes++
	}
	if ntypes > 0 {
		out = append(out, section(0x01, encodeVec(ntypes, types))...)
	}

	if len(b.imports) > 0 {
		var imps []byte
		for i, imp := range b.imports {
			imps = append(imps, encodeName(imp.module)...)
			imps = append(imps, encodeName(imp.name)...)
			imps = append(imps, 0x00)
			imps = append(imps, EncodeULEB128(uint32(i))...)
		}
		out = append(out, section(0x02, encodeVec(len(b.imports), imps))...)
	}

	if len(b.funcs) > 0 {
		var idx []byte
		for i := range b.funcs {
			idx = append(idx, EncodeULEB128(uint32(len(b.imports)+i))...)
		}
		out = append(out, section(0x03, encodeVec(len(b.funcs), idx))...)
	}

	if b.memory != nil {
		var limits []byte
		if b.memory.hasMax {
			limits = append(limits, 0x01)
			limits = append(limits, EncodeULEB128(b.memory.min)...)
			limits = append(limits, EncodeULEB128(b.memory.max)...)
		} else {
			limits = append(limits, 0x00)
			limits = append(limits, EncodeULEB128(b.memory.min)...)
		}
		out = append(out, section(0x05, encodeVec(1, limits))...)
	}

	var exps []byte
	nexps := 0
	if b.memory != nil && b.memory.export != "" {
		exps = append(exps, encodeName(b.memory.export)...)
		exps = append(exps, 0x02, 0x00)
		nexps++
	}
	for i, f := range b.funcs {
		if f.export == "" {
			continue
		}
		exps = append(exps, encodeName(f.export)...)
		exps = append(exps, 0x00)
		exps = append(exps, EncodeULEB128(uint32(len(b.imports)+i))...)
		nexps++
	}
	if nexps > 0 {
		out = append(out, section(0x07, encodeVec(nexps, exps))...)
	}

	if len(b.funcs) > 0 {
		var code []byte
		for _, f := range b.funcs {
			body := encodeLocals(f.locals)
			body = append(body, f.body...)
			code = append(code, EncodeULEB128(uint32(len(body)))...)
			code = append(code, body...)
		}
		out = append(out, section(0x0a, encodeVec(len(b.funcs), code))...)
	}

	if len(b.data) > 0 {
		var segs []byte
		for _, d := range b.data {
			segs = append(segs, 0x00)
			segs = append(segs, Code{}.I32Const(int32(d.offset)).End()...)
			segs = append(segs, EncodeULEB128(uint32(len(d.bytes)))...)
			segs = append(segs, d.bytes...)
		}
		out = append(out, section(0x0b, encodeVec(len(b.data), segs))...)
	}

	return out
}

func encodeSig(s signature) []byte {
	out := []byte{0x60}
	out = append(out, EncodeULEB128(uint32(len(s.params)))...)
	for _, t := range s.params {
		out = append(out, ValType(t))
	}
	out = append(out, EncodeULEB128(uint32(len(s.results)))...)
	for _, t := range s.results {
		out = append(out, ValType(t))
	}
	return out
}

// encodeLocals groups consecutive locals of the same type.
func encodeLocals(locals []api.ValueType) []byte {
	var groups []byte
	n := 0
	for i := 0; i < len(locals); {
		j := i
		for j < len(locals) && locals[j] == locals[i] {
			j++
		}
		groups = append(groups, EncodeULEB128(uint32(j-i))...)
		groups = append(groups, ValType(locals[i]))
		n++
		i = j
	}
	return encodeVec(n, groups)
}
