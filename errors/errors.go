package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCompile Phase = "compile" // guest binary decoding and validation
	PhaseHost    Phase = "host"    // host function registration
	PhaseLinking Phase = "linking" // import resolution at instantiation
	PhaseStart   Phase = "start"   // start routine
	PhaseCall    Phase = "call"    // export invocation
	PhaseMemory  Phase = "memory"  // linear memory access
	PhaseEncode  Phase = "encode"  // host text to guest bytes
	PhaseDecode  Phase = "decode"  // guest bytes to host text
	PhaseLoad    Phase = "load"    // reading guest artifacts and config
)

// Kind categorizes the error
type Kind string

const (
	KindCompile           Kind = "compile"
	KindLink              Kind = "link"
	KindDuplicateImport   Kind = "duplicate_import"
	KindExportNotFound    Kind = "export_not_found"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindInvalidUTF8       Kind = "invalid_utf8"
	KindTrap              Kind = "trap"
	KindAllocation        Kind = "allocation"
	KindOwnership         Kind = "ownership"
	KindInvalidState      Kind = "invalid_state"
	KindInvalidInput      Kind = "invalid_input"
)

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrCompile           = &Error{Kind: KindCompile}
	ErrLink              = &Error{Kind: KindLink}
	ErrDuplicateImport   = &Error{Kind: KindDuplicateImport}
	ErrExportNotFound    = &Error{Kind: KindExportNotFound}
	ErrSignatureMismatch = &Error{Kind: KindSignatureMismatch}
	ErrOutOfBounds       = &Error{Kind: KindOutOfBounds}
	ErrEncoding          = &Error{Kind: KindInvalidUTF8}
	ErrTrap              = &Error{Kind: KindTrap}
	ErrAllocation        = &Error{Kind: KindAllocation}
	ErrOwnership         = &Error{Kind: KindOwnership}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	Namespace string
	Name      string
	Detail    string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Name != "" {
		b.WriteString(" at ")
		if e.Namespace != "" {
			b.WriteString(e.Namespace)
			b.WriteByte('.')
		}
		b.WriteString(e.Name)
	}

	if e.Detail != "" {
		b.WriteString(": ")
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

// Is reports whether target matches this error. A target with an empty
// Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
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

// Import sets the namespace and name of the offending import or export
func (b *Builder) Import(namespace, name string) *Builder {
	b.err.Namespace = namespace
	b.err.Name = name
	return b
}

// Name sets the name of the offending export
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
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

// Compile creates an error for a guest binary that fails to decode or validate
func Compile(cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindCompile,
		Detail: "invalid guest binary",
		Cause:  cause,
	}
}

// Link creates an error for a single import that cannot be satisfied
func Link(namespace, name, detail string) *Error {
	return &Error{
		Phase:     PhaseLinking,
		Kind:      KindLink,
		Namespace: namespace,
		Name:      name,
		Detail:    detail,
	}
}

// DuplicateImport creates an error for a re-registered (namespace, name) key
func DuplicateImport(namespace, name string) *Error {
	return &Error{
		Phase:     PhaseHost,
		Kind:      KindDuplicateImport,
		Namespace: namespace,
		Name:      name,
		Detail:    "import already defined",
	}
}

// ExportNotFound creates an error for a missing export
func ExportNotFound(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindExportNotFound,
		Name:   name,
		Detail: fmt.Sprintf("export %q not found", name),
	}
}

// SignatureMismatch creates an error for an arity or value-kind mismatch
func SignatureMismatch(phase Phase, name, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindSignatureMismatch,
		Name:   name,
		Detail: fmt.Sprintf("want %s, got %s", want, got),
	}
}

// OutOfBounds creates an error for a memory access past the current size
func OutOfBounds(phase Phase, ptr uint32, length uint64, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range [%d, %d) exceeds memory size %d", ptr, uint64(ptr)+length, size),
		Value:  ptr,
	}
}

// InvalidUTF8 creates an encoding error for bytes that are not valid UTF-8
func InvalidUTF8(phase Phase, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// EmbeddedNUL creates an encoding error for text that cannot be null-terminated
func EmbeddedNUL(phase Phase, index int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Detail: fmt.Sprintf("embedded zero byte at index %d", index),
		Value:  index,
	}
}

// Trap creates an error for a guest fault that aborted the call chain
func Trap(phase Phase, name string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTrap,
		Name:   name,
		Detail: "guest execution trapped",
		Cause:  cause,
	}
}

// HostFailure creates a trap raised by a host import returning an error
func HostFailure(namespace, name string, cause error) *Error {
	return &Error{
		Phase:     PhaseCall,
		Kind:      KindTrap,
		Namespace: namespace,
		Name:      name,
		Detail:    "host function failed",
		Cause:     cause,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Value:  size,
		Cause:  cause,
	}
}

// Ownership creates an error for freeing or handing off a pointer the host does not own
func Ownership(ptr uint32, detail string) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindOwnership,
		Detail: fmt.Sprintf("pointer %d: %s", ptr, detail),
		Value:  ptr,
	}
}

// InvalidState creates an error for an operation issued in the wrong lifecycle state
func InvalidState(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Detail: detail,
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

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// UnresolvedImport represents a single import that failed to link
type UnresolvedImport struct {
	Namespace string // e.g., "env"
	Function  string // e.g., "print"
	Reason    string // e.g., "not defined" or "want (i32, i32) -> (), got (i32) -> ()"
}

// UnresolvedImportsError is returned when instantiation fails because one or
// more declared imports have no matching registration or a mismatched signature.
type UnresolvedImportsError struct {
	Imports []UnresolvedImport
}

func (e *UnresolvedImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[linking] link: no imports specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[linking] link: %d unresolved import(s):\n", len(e.Imports))

	// Group by namespace for cleaner output
	byNS := make(map[string][]UnresolvedImport)
	var nsOrder []string
	for _, imp := range e.Imports {
		if _, exists := byNS[imp.Namespace]; !exists {
			nsOrder = append(nsOrder, imp.Namespace)
		}
		byNS[imp.Namespace] = append(byNS[imp.Namespace], imp)
	}

	for _, ns := range nsOrder {
		b.WriteString("\n  ")
		b.WriteString(ns)
		b.WriteString(":\n")
		for _, imp := range byNS[ns] {
			b.WriteString("    - ")
			b.WriteString(imp.Function)
			if imp.Reason != "" {
				b.WriteString(" (")
				b.WriteString(imp.Reason)
				b.WriteByte(')')
			}
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type. It also matches ErrLink.
func (e *UnresolvedImportsError) Is(target error) bool {
	switch t := target.(type) {
	case *UnresolvedImportsError:
		return true
	case *Error:
		return t.Kind == KindLink && (t.Phase == "" || t.Phase == PhaseLinking)
	}
	return false
}

// Load creates an artifact or config loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}
