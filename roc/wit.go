package roc

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/roc-host/errors"
)

// FromWIT maps a WIT type to its descriptor. Only the types with a Roc
// counterpart in this package are supported: bool, integers, floats,
// string and list.
func FromWIT(t wit.Type) (Descriptor, error) {
	switch t := t.(type) {
	case wit.Bool:
		return Bool, nil
	case wit.S8:
		return I8, nil
	case wit.S16:
		return I16, nil
	case wit.S32:
		return I32, nil
	case wit.S64:
		return I64, nil
	case wit.U8:
		return U8, nil
	case wit.U16:
		return U16, nil
	case wit.U32:
		return U32, nil
	case wit.U64:
		return U64, nil
	case wit.F32:
		return F32, nil
	case wit.F64:
		return F64, nil
	case wit.String:
		return StrType, nil
	case *wit.TypeDef:
		switch k := t.Kind.(type) {
		case *wit.List:
			elem, err := FromWIT(k.Type)
			if err != nil {
				return nil, err
			}
			return ListOf(elem), nil
		case wit.Type:
			return FromWIT(k)
		}
		return nil, errors.Unsupported(errors.PhaseParse, fmt.Sprintf("WIT type %T", t.Kind))
	case nil:
		return nil, errors.InvalidInput(errors.PhaseParse, "nil WIT type")
	}
	return nil, errors.Unsupported(errors.PhaseParse, fmt.Sprintf("WIT type %T", t))
}

// ParseWIT parses a WIT type expression. list<T> is handled here since
// wit.ParseType only knows primitive types.
func ParseWIT(s string) (wit.Type, error) {
	s = strings.TrimSpace(s)
	if inner, ok := strings.CutPrefix(s, "list<"); ok {
		inner, ok = strings.CutSuffix(inner, ">")
		if !ok {
			return nil, errors.ParseFailed("WIT type "+s, fmt.Errorf("unterminated list"))
		}
		elem, err := ParseWIT(inner)
		if err != nil {
			return nil, err
		}
		return &wit.TypeDef{Kind: &wit.List{Type: elem}}, nil
	}
	t, err := wit.ParseType(s)
	if err != nil {
		return nil, errors.ParseFailed("WIT type "+s, err)
	}
	return t, nil
}

// LookupWIT resolves a WIT type expression to a descriptor.
func LookupWIT(s string) (Descriptor, error) {
	t, err := ParseWIT(s)
	if err != nil {
		return nil, err
	}
	return FromWIT(t)
}
