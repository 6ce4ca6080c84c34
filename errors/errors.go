package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the widget lifecycle the error occurred
type Phase string

const (
	PhaseConfig Phase = "config" // configuration resolution
	PhaseLoad   Phase = "load"   // engine asset loading
	PhaseAttach Phase = "attach" // widget attachment
	PhaseSync   Phase = "sync"   // attribute/property synchronization
	PhaseResize Phase = "resize" // height computation
	PhaseEngine Phase = "engine" // calls into the wrapped engine
)

// Kind categorizes the error
type Kind string

const (
	KindMissingURL        Kind = "missing_url"
	KindDuplicateID       Kind = "duplicate_id"
	KindLoadFailed        Kind = "load_failed"
	KindCapabilityTimeout Kind = "capability_timeout"
	KindCursorRestore     Kind = "cursor_restore"
	KindNotAttached       Kind = "not_attached"
	KindNotInitialized    Kind = "not_initialized"
	KindInvalidInput      Kind = "invalid_input"
	KindClosed            Kind = "closed"
)

// Error is the structured error type used throughout the library
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	ID     string // widget instance id, when one is involved
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.ID != "" {
		b.WriteString(" (id ")
		b.WriteString(e.ID)
		b.WriteByte(')')
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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
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

// ID sets the widget instance id
func (b *Builder) ID(id string) *Builder {
	b.err.ID = id
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

// Convenience constructors for common error patterns

// MissingURL creates a configuration error for an unset engine asset URL.
// This failure leaves the widget inert rather than panicking.
func MissingURL() *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindMissingURL,
		Detail: "no engine asset URL configured",
	}
}

// DuplicateID creates the hard failure for an id collision at attach time
func DuplicateID(id string) *Error {
	return &Error{
		Phase:  PhaseAttach,
		Kind:   KindDuplicateID,
		ID:     id,
		Detail: "id already registered by a live widget",
	}
}

// LoadFailed wraps an engine asset fetch or bootstrap failure
func LoadFailed(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindLoadFailed,
		Detail: detail,
		Cause:  cause,
	}
}

// CapabilityTimeout is returned when the engine never registered its
// capability marker within the configured deadline
func CapabilityTimeout(waited string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindCapabilityTimeout,
		Detail: fmt.Sprintf("engine capability not registered after %s", waited),
	}
}

// CursorRestore creates the best-effort error for an out-of-range cursor
// position. Callers restoring a stale position swallow it.
func CursorRestore(row, col int) *Error {
	return &Error{
		Phase:  PhaseSync,
		Kind:   KindCursorRestore,
		Detail: fmt.Sprintf("position %d:%d out of range", row, col),
	}
}

// NotAttached creates an error for operations requiring a live widget
func NotAttached(id string) *Error {
	return &Error{
		Phase:  PhaseAttach,
		Kind:   KindNotAttached,
		ID:     id,
		Detail: "widget is not attached",
	}
}

// NotInitialized creates a not-initialized error for a missing component
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
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

// Closed creates an error for operations on a torn-down component
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", component),
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
