// Package errors provides structured error types for the editor-runtime library.
//
// Errors are categorized by Phase (where in the widget lifecycle the error
// occurred) and Kind (error category). The Error type carries the widget
// instance id where one is involved, plus a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindLoadFailed).
//		Detail("fetch %s", url).
//		Cause(fetchErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.DuplicateID("ace-editor-3")
//	err := errors.CapabilityTimeout("10s")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
