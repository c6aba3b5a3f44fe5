// Package validation defines the error taxonomy used across bindcore.
//
// Three kinds of failure exist:
//   - validation errors: the caller supplied a descriptor or issued a
//     command that violates an API rule. Always non-fatal to the device.
//   - internal errors: a state the validation layer should already have
//     ruled out was reached. These indicate a bug in bindcore.
//   - out-of-memory errors: a well-formed request could not be satisfied.
//
// Every error produced by bindcore is a *Error whose Unwrap returns one of
// the sentinels below, so callers classify failures with errors.Is:
//
//	if errors.Is(err, validation.ErrValidation) {
//	    // report to the application
//	}
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per Kind.
var (
	// ErrValidation is matched by every validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInternal is matched by failures of bindcore's own invariants.
	ErrInternal = errors.New("internal error")

	// ErrOutOfMemory is matched by allocation failures.
	ErrOutOfMemory = errors.New("out of memory")
)

// Kind classifies an Error.
type Kind uint8

const (
	// KindValidation is a user error.
	KindValidation Kind = iota
	// KindInternal is an unreachable state.
	KindInternal
	// KindOutOfMemory is a resource exhaustion failure.
	KindOutOfMemory
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindInternal:
		return "Internal"
	case KindOutOfMemory:
		return "OutOfMemory"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Error is a structured failure carrying a message and the chain of
// contexts ("while validating entries[2]") it was raised under.
type Error struct {
	Kind    Kind
	Message string

	// Contexts lists enclosing operations, innermost first.
	Contexts []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Contexts) == 0 {
		return e.Message
	}
	var b strings.Builder
	b.WriteString(e.Message)
	for _, c := range e.Contexts {
		b.WriteString("\n - While ")
		b.WriteString(c)
	}
	return b.String()
}

// Unwrap returns the sentinel for the error's kind.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindInternal:
		return ErrInternal
	case KindOutOfMemory:
		return ErrOutOfMemory
	default:
		return ErrValidation
	}
}

// Errorf returns a validation error.
func Errorf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Internalf returns an internal error.
func Internalf(format string, args ...any) error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// OutOfMemoryf returns an out-of-memory error.
func OutOfMemoryf(format string, args ...any) error {
	return &Error{Kind: KindOutOfMemory, Message: fmt.Sprintf(format, args...)}
}

// WithContext appends a context frame to err. Errors that are not *Error are
// wrapped into a validation error so the frame is not lost.
func WithContext(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	ctx := fmt.Sprintf(format, args...)
	var e *Error
	if errors.As(err, &e) {
		e.Contexts = append(e.Contexts, ctx)
		return e
	}
	return &Error{Kind: KindValidation, Message: err.Error(), Contexts: []string{ctx}}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsInternal reports whether err is an internal error.
func IsInternal(err error) bool { return errors.Is(err, ErrInternal) }
