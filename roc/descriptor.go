package roc

import "strings"

// Kind identifies a descriptor variant.
type Kind uint8

const (
	KindI8 Kind = iota
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindBool
	KindStr
	KindList
	KindCustom
)

var kindNames = [...]string{
	KindI8:     "I8",
	KindI16:    "I16",
	KindI32:    "I32",
	KindI64:    "I64",
	KindU8:     "U8",
	KindU16:    "U16",
	KindU32:    "U32",
	KindU64:    "U64",
	KindF32:    "F32",
	KindF64:    "F64",
	KindBool:   "Bool",
	KindStr:    "Str",
	KindList:   "List",
	KindCustom: "Custom",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Descriptor describes how one element of a Roc type is laid out and
// converted. FromHost encodes v into the element slot at addr and takes
// ownership of any payload it allocates; ToHost decodes without taking
// ownership.
type Descriptor interface {
	Name() string
	Kind() Kind
	Align(l Layout) uint32
	Size(l Layout) uint32
	FromHost(env *Env, addr uint32, v any) error
	ToHost(env *Env, addr uint32) (any, error)
}

// Destructor is implemented by descriptors whose elements own heap
// payloads. Destruct releases the element at addr.
type Destructor interface {
	Destruct(env *Env, addr uint32) error
}

// destruct runs d's destructor on the element at addr, if it has one.
func destruct(env *Env, d Descriptor, addr uint32) error {
	if dd, ok := d.(Destructor); ok {
		return dd.Destruct(env, addr)
	}
	return nil
}

// argName parenthesizes a type name used as a type argument.
func argName(name string) string {
	if strings.ContainsRune(name, ' ') {
		return "(" + name + ")"
	}
	return name
}
