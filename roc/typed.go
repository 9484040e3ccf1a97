package roc

import (
	"fmt"
	"reflect"

	"github.com/wippyai/roc-host/errors"
	"github.com/wippyai/roc-host/internal/abi"
)

// Scalar is the set of Go types with a Roc scalar counterpart.
type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~bool
}

// DescriptorFor returns the descriptor matching T's kind: int64 is I64,
// float32 is F32 and so on. int and uint map to the 64-bit types.
func DescriptorFor[T Scalar | ~string | ~int | ~uint]() Descriptor {
	var zero T
	switch reflect.TypeOf(zero).Kind() {
	case reflect.Int8:
		return I8
	case reflect.Int16:
		return I16
	case reflect.Int32:
		return I32
	case reflect.Int64, reflect.Int:
		return I64
	case reflect.Uint8:
		return U8
	case reflect.Uint16:
		return U16
	case reflect.Uint32:
		return U32
	case reflect.Uint64, reflect.Uint:
		return U64
	case reflect.Float32:
		return F32
	case reflect.Float64:
		return F64
	case reflect.Bool:
		return Bool
	default:
		return StrType
	}
}

// ListFromSlice builds a List whose element type follows T.
func ListFromSlice[T Scalar | ~string | ~int | ~uint](env *Env, items []T) (*List, error) {
	return NewList(env, DescriptorFor[T](), items)
}

// ListToSlice decodes a list into a []T, converting each element.
func ListToSlice[T Scalar | ~string | ~int | ~uint](l *List) ([]T, error) {
	items, err := l.ToHost()
	if err != nil {
		return nil, err
	}
	out := make([]T, len(items))
	for i, v := range items {
		x, err := convert[T](v)
		if err != nil {
			return nil, errors.WithPath(errors.PhaseDecode, err, fmt.Sprintf("[%d]", i))
		}
		out[i] = x
	}
	return out, nil
}

func convert[T any](v any) (T, error) {
	var zero T
	rt := reflect.TypeOf(zero)
	out := reflect.New(rt).Elem()

	mismatch := errors.TypeMismatch(errors.PhaseDecode, nil, abi.TypeName(v), rt.String())
	switch rt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := abi.ToInt64(v)
		if !ok || out.OverflowInt(i) {
			return zero, mismatch
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, ok := abi.ToUint64(v)
		if !ok || out.OverflowUint(u) {
			return zero, mismatch
		}
		out.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, ok := abi.ToFloat64(v)
		if !ok {
			return zero, mismatch
		}
		out.SetFloat(f)
	case reflect.Bool:
		b, ok := abi.ToBool(v)
		if !ok {
			return zero, mismatch
		}
		out.SetBool(b)
	case reflect.String:
		s, ok := v.(string)
		if !ok {
			return zero, mismatch
		}
		out.SetString(s)
	default:
		return zero, mismatch
	}
	return out.Interface().(T), nil
}
