package roc

import (
	"fmt"
	"math"

	"github.com/wippyai/roc-host/errors"
)

// wasmScalar is implemented by descriptors that travel as a single wasm
// value in a guest call.
type wasmScalar interface {
	toWasm(v any) (uint64, error)
	fromWasm(raw uint64) (any, error)
}

// IsScalar reports whether values of d are passed directly as wasm
// values rather than through a record in guest memory.
func IsScalar(d Descriptor) bool {
	_, ok := d.(wasmScalar)
	return ok
}

// ToWasm encodes a host value as the wasm parameter for d. 32-bit and
// narrower integers are passed as i32 with the upper bits clear.
func ToWasm(d Descriptor, v any) (uint64, error) {
	s, ok := d.(wasmScalar)
	if !ok {
		return 0, errors.Unsupported(errors.PhaseEncode, d.Name()+" is not a wasm scalar")
	}
	return s.toWasm(v)
}

// FromWasm decodes a wasm result for d into the same Go type ToHost
// returns.
func FromWasm(d Descriptor, raw uint64) (any, error) {
	s, ok := d.(wasmScalar)
	if !ok {
		return nil, errors.Unsupported(errors.PhaseDecode, d.Name()+" is not a wasm scalar")
	}
	return s.fromWasm(raw)
}

func (t intType) toWasm(v any) (uint64, error) {
	raw, err := t.encode(v)
	if err != nil {
		return 0, err
	}
	if t.bits == 64 {
		return raw, nil
	}
	return uint64(uint32(raw)), nil
}

func (t intType) fromWasm(raw uint64) (any, error) {
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

func (t floatType) toWasm(v any) (uint64, error) {
	f, err := t.encode(v)
	if err != nil {
		return 0, err
	}
	if t.bits == 32 {
		return uint64(math.Float32bits(float32(f))), nil
	}
	return math.Float64bits(f), nil
}

func (t floatType) fromWasm(raw uint64) (any, error) {
	if t.bits == 32 {
		return math.Float32frombits(uint32(raw)), nil
	}
	return math.Float64frombits(raw), nil
}

func (boolType) toWasm(v any) (uint64, error) {
	b, err := boolType{}.encode(v)
	if err != nil {
		return 0, err
	}
	if b {
		return 1, nil
	}
	return 0, nil
}

func (boolType) fromWasm(raw uint64) (any, error) {
	if uint32(raw) > 1 {
		return nil, errors.InvalidData(errors.PhaseDecode, nil, fmt.Sprintf("invalid Bool value %d", uint32(raw)))
	}
	return uint32(raw) == 1, nil
}
