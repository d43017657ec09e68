// Package errors implements the closed error taxonomy from the
// self-development control plane's error handling design: a fixed set of
// semantic error kinds that every subsystem wraps its failures in, so the
// orchestrator and the CLI can classify and report failures without string
// matching.
package errors

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy tags. It is never extended at runtime.
type Kind string

const (
	Configuration      Kind = "Configuration"
	SafetyViolation    Kind = "SafetyViolation"
	ProviderTransient  Kind = "ProviderTransient"
	ProviderPermanent  Kind = "ProviderPermanent"
	ProviderUnsupported Kind = "ProviderUnsupported"
	PlanningError      Kind = "PlanningError"
	CompileFail        Kind = "CompileFail"
	TestFail           Kind = "TestFail"
	ValidationFail     Kind = "ValidationFail"
	RollbackFailed     Kind = "RollbackFailed"
	DailyBudgetExceeded Kind = "DailyBudgetExceeded"
)

// Error is a taxonomy-tagged error. It wraps an underlying cause so
// errors.As/errors.Is and %w formatting keep working through the stack.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a taxonomy error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs a taxonomy error around an existing cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Wrapf is Wrap with formatted message text.
func Wrapf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the taxonomy Kind from err, walking Unwrap chains. The
// zero Kind ("") is returned when err carries no taxonomy tag.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Fatal reports whether a Kind should abort a process start (only
// Configuration) versus being recoverable within a cycle.
func (k Kind) Fatal() bool {
	return k == Configuration
}
