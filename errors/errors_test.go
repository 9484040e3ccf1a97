package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseEncode,
				Kind:    KindTypeMismatch,
				Path:    []string{"[2]", "[0]"},
				GoType:  "string",
				RocType: "I64",
				Detail:  "cannot convert",
			},
			contains: []string{"[encode]", "type_mismatch", "[2].[0]", "Go type string", "Roc type I64", "cannot convert"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[decode]", "out_of_bounds"},
		},
		{
			name: "roc type only",
			err: &Error{
				Phase:   PhaseRelease,
				Kind:    KindStillShared,
				RocType: "Str",
				Detail:  "refcount -2",
			},
			contains: []string{"[release]", "still_shared", "Roc type Str - refcount -2"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseAlloc,
				Kind:   KindOutOfMemory,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[alloc]", "out_of_memory", "memory full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseRelease,
		Kind:  KindDoubleFree,
		Path:  []string{"[1]"},
	}

	if !err.Is(&Error{Phase: PhaseRelease, Kind: KindDoubleFree}) {
		t.Error("Is should match same phase and kind")
	}

	if err.Is(&Error{Phase: PhaseDecode, Kind: KindDoubleFree}) {
		t.Error("Is should not match different phase")
	}

	if err.Is(&Error{Phase: PhaseRelease, Kind: KindStillShared}) {
		t.Error("Is should not match different kind")
	}

	if !errors.Is(err, ErrDoubleFree) {
		t.Error("errors.Is should match phase-less target")
	}

	if errors.Is(err, ErrStillShared) {
		t.Error("errors.Is should not match other kind")
	}
}

func TestError_IsThroughWrapping(t *testing.T) {
	abort := ForeignAbort("integer overflow", 0)
	wrapped := fmt.Errorf("%w (recovered by wazero)", abort)

	if !errors.Is(wrapped, ErrForeignAbort) {
		t.Error("errors.Is should see through fmt wrapping")
	}

	var e *Error
	if !errors.As(wrapped, &e) {
		t.Fatal("errors.As should find *Error")
	}
	if !strings.Contains(e.Detail, "integer overflow") {
		t.Errorf("Detail = %q", e.Detail)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseEncode, KindTypeMismatch).
		Path("[0]", "[3]").
		GoType("string").
		RocType("U32").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "number", "string").
		Build()

	if err.Phase != PhaseEncode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseEncode)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "[0]" || err.Path[1] != "[3]" {
		t.Errorf("Path = %v, want [[0] [3]]", err.Path)
	}
	if err.GoType != "string" {
		t.Errorf("GoType = %v, want 'string'", err.GoType)
	}
	if err.RocType != "U32" {
		t.Errorf("RocType = %v, want 'U32'", err.RocType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected number, got string" {
		t.Errorf("Detail = %v, want 'expected number, got string'", err.Detail)
	}
}

func TestBuilder_DetailWithoutArgs(t *testing.T) {
	// Call through a method value so vet's printf check does not flag the
	// intentional bare '%' in a no-args Detail call.
	detail := New(PhaseParse, KindInvalidData).Detail
	err := detail("100%").Build()
	if err.Detail != "100%" {
		t.Errorf("Detail = %q, want %q", err.Detail, "100%")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
		text  string
	}{
		{"OutOfMemory", OutOfMemory(1024, 8, nil), PhaseAlloc, KindOutOfMemory, "1024"},
		{"ForeignAbort", ForeignAbort("boom", 7), PhaseRuntime, KindForeignAbort, "tag 7"},
		{"DoubleFree", DoubleFree("Str", 0x40, 0), PhaseRelease, KindDoubleFree, "0x40"},
		{"StillShared", StillShared("List I64", 0x80, -2), PhaseRelease, KindStillShared, "refcount -2"},
		{"InvalidFree", InvalidFree(0x10), PhaseAlloc, KindInvalidFree, "0x10"},
		{"Unsupported", Unsupported(PhaseParse, "char"), PhaseParse, KindUnsupported, "char"},
		{"OutOfBounds", OutOfBounds(PhaseDecode, nil, 5, 3), PhaseDecode, KindOutOfBounds, "index 5"},
		{"Overflow", Overflow(PhaseEncode, nil, 300, "U8"), PhaseEncode, KindOverflow, "overflows U8"},
		{"InvalidData", InvalidData(PhaseDecode, nil, "bad tag"), PhaseDecode, KindInvalidData, "bad tag"},
		{"NotInitialized", NotInitialized(PhaseRuntime, "instance"), PhaseRuntime, KindNotInitialized, "instance not initialized"},
		{"NotFound", NotFound(PhaseRuntime, "function", "main"), PhaseRuntime, KindNotFound, `"main"`},
		{"InvalidInput", InvalidInput(PhaseConfig, "bad layout"), PhaseConfig, KindInvalidInput, "bad layout"},
		{"Instantiation", Instantiation(errors.New("x")), PhaseRuntime, KindInstantiation, "instantiate"},
		{"Load", Load("compile", errors.New("x")), PhaseLoad, KindInvalidData, "compile"},
		{"ParseFailed", ParseFailed("type", errors.New("x")), PhaseParse, KindInvalidData, "parse type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("Phase = %v, want %v", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if !strings.Contains(tt.err.Error(), tt.text) {
				t.Errorf("Error() = %q, want it to contain %q", tt.err.Error(), tt.text)
			}
		})
	}
}

func TestWithPath(t *testing.T) {
	inner := Overflow(PhaseEncode, []string{"[1]"}, 999, "U8")
	err := WithPath(PhaseEncode, inner, "[4]")

	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("expected *Error")
	}
	if got := strings.Join(e.Path, "."); got != "[4].[1]" {
		t.Errorf("Path = %q, want [4].[1]", got)
	}
	if len(inner.Path) != 1 {
		t.Error("WithPath must not mutate the original error")
	}

	plain := WithPath(PhaseDecode, errors.New("short read"), "[0]")
	if !errors.As(plain, &e) || e.Kind != KindInvalidData {
		t.Errorf("plain error should be wrapped as invalid data, got %v", plain)
	}
}
