package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseAlloc    Phase = "alloc"    // allocator bridge
	PhaseEncode   Phase = "encode"   // Go to Roc
	PhaseDecode   Phase = "decode"   // Roc to Go
	PhaseRelease  Phase = "release"  // ownership validation and free
	PhaseTransfer Phase = "transfer" // raw record copies across the call boundary
	PhaseRuntime  Phase = "runtime"  // guest calls
	PhaseLoad     Phase = "load"     // module loading
	PhaseHost     Phase = "host"     // host import registration
	PhaseParse    Phase = "parse"    // type and signature parsing
	PhaseConfig   Phase = "config"   // configuration
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfMemory    Kind = "out_of_memory"
	KindForeignAbort   Kind = "foreign_abort"
	KindDoubleFree     Kind = "double_free"
	KindStillShared    Kind = "still_shared"
	KindInvalidFree    Kind = "invalid_free"
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindOverflow       Kind = "overflow"
	KindNotFound       Kind = "not_found"
	KindNotInitialized Kind = "not_initialized"
	KindInvalidInput   Kind = "invalid_input"
	KindInstantiation  Kind = "instantiation"
)

// Match targets for errors.Is. They carry no phase, so they match any phase.
var (
	ErrOutOfMemory  = &Error{Kind: KindOutOfMemory}
	ErrForeignAbort = &Error{Kind: KindForeignAbort}
	ErrDoubleFree   = &Error{Kind: KindDoubleFree}
	ErrStillShared  = &Error{Kind: KindStillShared}
	ErrInvalidFree  = &Error{Kind: KindInvalidFree}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	RocType string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.RocType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.RocType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", Roc type ")
			b.WriteString(e.RocType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("Roc type ")
			b.WriteString(e.RocType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.RocType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && e.Phase != t.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// RocType sets the Roc type name
func (b *Builder) RocType(t string) *Builder {
	b.err.RocType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Ownership and allocation errors

// OutOfMemory creates an allocation failure error
func OutOfMemory(size, align uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindOutOfMemory,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Value:  size,
		Cause:  cause,
	}
}

// ForeignAbort creates the error raised when Roc code panics
func ForeignAbort(msg string, tag uint32) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindForeignAbort,
		Detail: fmt.Sprintf("roc panicked (tag %d): %s", tag, msg),
		Value:  tag,
	}
}

// DoubleFree creates the error for a payload whose refcount shows it was
// already released.
func DoubleFree(rocType string, addr uint32, refcount int64) *Error {
	return &Error{
		Phase:   PhaseRelease,
		Kind:    KindDoubleFree,
		RocType: rocType,
		Detail:  fmt.Sprintf("payload at 0x%x already freed (refcount %d)", addr, refcount),
		Value:   refcount,
	}
}

// StillShared creates the error for a payload that has outstanding
// references at release time.
func StillShared(rocType string, addr uint32, refcount int64) *Error {
	return &Error{
		Phase:   PhaseRelease,
		Kind:    KindStillShared,
		RocType: rocType,
		Detail:  fmt.Sprintf("payload at 0x%x still referenced (refcount %d)", addr, refcount),
		Value:   refcount,
	}
}

// InvalidFree creates the error for freeing an address the heap never
// handed out.
func InvalidFree(ptr uint32) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindInvalidFree,
		Detail: fmt.Sprintf("pointer 0x%x is not a live allocation", ptr),
		Value:  ptr,
	}
}

// Conversion errors

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, rocType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		GoType:  goType,
		RocType: rocType,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindOverflow,
		Path:    path,
		RocType: targetType,
		Detail:  fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:   value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// WithPath returns err with elem prepended to its path when err is an
// *Error; other errors are wrapped as invalid data at phase.
func WithPath(phase Phase, err error, elem string) error {
	if e, ok := err.(*Error); ok {
		cp := *e
		cp.Path = append([]string{elem}, e.Path...)
		return &cp
	}
	return &Error{
		Phase: phase,
		Kind:  KindInvalidData,
		Path:  []string{elem},
		Cause: err,
	}
}

// Runtime package convenience constructors

// NotInitialized creates a not-initialized error for missing module/instance
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
