package roc

import (
	"fmt"
	"math"

	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/internal/abi"
)

// Scalar descriptors. Elements are stored little-endian with natural
// alignment and have no destructor.
var (
	I8   Descriptor = intType{kind: KindI8, bits: 8, signed: true}
	I16  Descriptor = intType{kind: KindI16, bits: 16, signed: true}
	I32  Descriptor = intType{kind: KindI32, bits: 32, signed: true}
	I64  Descriptor = intType{kind: KindI64, bits: 64, signed: true}
	U8   Descriptor = intType{kind: KindU8, bits: 8}
	U16  Descriptor = intType{kind: KindU16, bits: 16}
	U32  Descriptor = intType{kind: KindU32, bits: 32}
	U64  Descriptor = intType{kind: KindU64, bits: 64}
	F32  Descriptor = floatType{kind: KindF32, bits: 32}
	F64  Descriptor = floatType{kind: KindF64, bits: 64}
	Bool Descriptor = boolType{}
)

func invalidInput(rocType string, v any, expected string) error {
	return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
		GoType(abi.TypeName(v)).
		RocType(rocType).
		Value(v).
		Detail("expected %s", expected).
		Build()
}

func readScalar(env *Env, addr, size uint32) (uint64, error) {
	switch size {
	case 1:
		v, err := env.Mem.ReadU8(addr)
		return uint64(v), err
	case 2:
		v, err := env.Mem.ReadU16(addr)
		return uint64(v), err
	case 4:
		v, err := env.Mem.ReadU32(addr)
		return uint64(v), err
	default:
		return env.Mem.ReadU64(addr)
	}
}

func writeScalar(env *Env, addr, size uint32, v uint64) error {
	switch size {
	case 1:
		return env.Mem.WriteU8(addr, uint8(v))
	case 2:
		return env.Mem.WriteU16(addr, uint16(v))
	case 4:
		return env.Mem.WriteU32(addr, uint32(v))
	default:
		return env.Mem.WriteU64(addr, v)
	}
}

type intType struct {
	kind   Kind
	bits   uint
	signed bool
}

func (t intType) Name() string { return t.kind.String() }
func (t intType) Kind() Kind { return t.kind }
func (t intType) Size(Layout) uint32 { return uint32(t.bits / 8) }
func (t intType) Align(l Layout) uint32 { return t.Size(l) }
func (t intType) String() string { return t.Name() }

func (t intType) FromHost(env *Env, addr uint32, v any) error {
	raw, err := t.encode(v)
	if err != nil {
		return err
	}
	return writeScalar(env, addr, uint32(t.bits/8), raw)
}

func (t intType) encode(v any) (uint64, error) {
	if t.signed {
		if i, ok := abi.ToInt64(v); ok {
			if !abi.FitsSigned(i, t.bits) {
				return 0, errors.Overflow(errors.PhaseEncode, nil, v, t.Name())
			}
			return uint64(i), nil
		}
	} else if u, ok := abi.ToUint64(v); ok {
		if !abi.FitsUnsigned(u, t.bits) {
			return 0, errors.Overflow(errors.PhaseEncode, nil, v, t.Name())
		}
		return u, nil
	}

	f, ok := abi.ToFloat64(v)
	switch {
	case !ok:
		return 0, invalidInput(t.Name(), v, "an integer")
	case f != math.Trunc(f) || math.IsNaN(f):
		return 0, invalidInput(t.Name(), v, "an integral value")
	}
	return 0, errors.Overflow(errors.PhaseEncode, nil, v, t.Name())
}

func (t intType) ToHost(env *Env, addr uint32) (any, error) {
	raw, err := readScalar(env, addr, uint32(t.bits/8))
	if err != nil {
		return nil, err
	}
	switch t.kind {
	case KindI8:
		return int8(raw), nil
	case KindI16:
		return int16(raw), nil
	case KindI32:
		return int32(raw), nil
	case KindI64:
		return int64(raw), nil
	case KindU8:
		return uint8(raw), nil
	case KindU16:
		return uint16(raw), nil
	case KindU32:
		return uint32(raw), nil
	default:
		return raw, nil
	}
}

type floatType struct {
	kind Kind
	bits uint
}

func (t floatType) Name() string { return t.kind.String() }
func (t floatType) Kind() Kind { return t.kind }
func (t floatType) Size(Layout) uint32 { return uint32(t.bits / 8) }
func (t floatType) Align(l Layout) uint32 { return t.Size(l) }
func (t floatType) String() string { return t.Name() }

func (t floatType) FromHost(env *Env, addr uint32, v any) error {
	f, err := t.encode(v)
	if err != nil {
		return err
	}
	if t.bits == 32 {
		return env.Mem.WriteU32(addr, math.Float32bits(float32(f)))
	}
	return env.Mem.WriteU64(addr, math.Float64bits(f))
}

func (t floatType) encode(v any) (float64, error) {
	f, ok := abi.ToFloat64(v)
	if !ok {
		return 0, invalidInput(t.Name(), v, "a number")
	}
	if t.bits == 32 && !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
		return 0, errors.Overflow(errors.PhaseEncode, nil, v, t.Name())
	}
	return f, nil
}

func (t floatType) ToHost(env *Env, addr uint32) (any, error) {
	if t.bits == 32 {
		raw, err := env.Mem.ReadU32(addr)
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(raw), nil
	}
	raw, err := env.Mem.ReadU64(addr)
	if err != nil {
		return nil, err
	}
	return math.Float64frombits(raw), nil
}

type boolType struct{}

func (boolType) Name() string { return "Bool" }
func (boolType) Kind() Kind { return KindBool }
func (boolType) Size(Layout) uint32 { return 1 }
func (boolType) Align(Layout) uint32 { return 1 }
func (boolType) String() string { return "Bool" }

func (boolType) FromHost(env *Env, addr uint32, v any) error {
	b, err := boolType{}.encode(v)
	if err != nil {
		return err
	}
	var raw uint8
	if b {
		raw = 1
	}
	return env.Mem.WriteU8(addr, raw)
}

func (boolType) encode(v any) (bool, error) {
	b, ok := abi.ToBool(v)
	if !ok {
		return false, invalidInput("Bool", v, "a bool")
	}
	return b, nil
}

func (boolType) ToHost(env *Env, addr uint32) (any, error) {
	raw, err := env.Mem.ReadU8(addr)
	if err != nil {
		return nil, err
	}
	if raw > 1 {
		return nil, errors.InvalidData(errors.PhaseDecode, nil, fmt.Sprintf("invalid Bool byte 0x%02x", raw))
	}
	return raw == 1, nil
}
