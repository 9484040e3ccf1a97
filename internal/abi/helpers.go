package abi

import (
	"math"
	"reflect"
)

func SafeMulU32(a, b uint32) (uint32, bool) {
	if b != 0 && a > math.MaxUint32/b {
		return 0, false
	}
	return a * b, true
}

func SafeAddU32(a, b uint32) (uint32, bool) {
	if a > math.MaxUint32-b {
		return 0, false
	}
	return a + b, true
}

// TypeName returns "nil" for nil values, avoiding reflect.TypeOf(nil) panic.
func TypeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}

// AlignTo rounds offset up to align, which must be a power of two.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// CeilDiv returns ceil(a/b) for b > 0.
func CeilDiv(a, b uint32) uint32 {
	return a/b + boolToU32(a%b != 0)
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// IsPow2 reports whether v is a non-zero power of two.
func IsPow2(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

const (
	MaxStrLen  = 1 << 30 // 1 GB max string payload
	MaxListLen = 1 << 27 // 128M max elements
	MaxAlloc   = 1 << 30 // 1 GB max single allocation
)
