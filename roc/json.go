package roc

import (
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/wippyai/roc-host/errors"
)

// ParseJSON decodes JSON text into the host value FromHost expects for d.
func ParseJSON(d Descriptor, data []byte) (any, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.InvalidInput(errors.PhaseParse, "invalid JSON")
	}
	return FromJSON(d, gjson.ParseBytes(data))
}

// FromJSON converts a gjson value to the host value FromHost expects for d.
// Integers are read from the raw literal so 64-bit values keep precision.
func FromJSON(d Descriptor, r gjson.Result) (any, error) {
	switch d.Kind() {
	case KindI8, KindI16, KindI32, KindI64:
		if r.Type != gjson.Number {
			return nil, jsonMismatch(d, r)
		}
		if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
			return i, nil
		}
		return r.Float(), nil
	case KindU8, KindU16, KindU32, KindU64:
		if r.Type != gjson.Number {
			return nil, jsonMismatch(d, r)
		}
		if u, err := strconv.ParseUint(r.Raw, 10, 64); err == nil {
			return u, nil
		}
		return r.Float(), nil
	case KindF32, KindF64:
		if r.Type != gjson.Number {
			return nil, jsonMismatch(d, r)
		}
		return r.Float(), nil
	case KindBool:
		if r.Type != gjson.True && r.Type != gjson.False {
			return nil, jsonMismatch(d, r)
		}
		return r.Bool(), nil
	case KindStr:
		if r.Type != gjson.String {
			return nil, jsonMismatch(d, r)
		}
		return r.String(), nil
	case KindList:
		elem, ok := ElemOf(d)
		if !ok || !r.IsArray() {
			return nil, jsonMismatch(d, r)
		}
		var (
			out []any
			err error
		)
		r.ForEach(func(_, v gjson.Result) bool {
			var x any
			if x, err = FromJSON(elem, v); err != nil {
				err = errors.WithPath(errors.PhaseParse, err, fmt.Sprintf("[%d]", len(out)))
				return false
			}
			out = append(out, x)
			return true
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, errors.Unsupported(errors.PhaseParse, "JSON input for "+d.Name())
}

func jsonMismatch(d Descriptor, r gjson.Result) error {
	return errors.TypeMismatch(errors.PhaseParse, nil, "JSON "+r.Type.String(), d.Name())
}
