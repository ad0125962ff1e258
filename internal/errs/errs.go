// Package errs defines the refusal taxonomy shared by every layer of the
// plan workflow: bad input, illegal state moves, role/ownership refusals and
// unavailable collaborators. Each error carries a human-readable reason.
package errs

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a template, plan or profile does not exist.
var ErrNotFound = errors.New("not found")

// Class buckets an error for callers that need to decide how to react.
type Class int

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassTransition
	ClassAccessDenied
	ClassDependency
	ClassNotFound
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassTransition:
		return "transition"
	case ClassAccessDenied:
		return "access_denied"
	case ClassDependency:
		return "dependency_unavailable"
	case ClassNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// ValidationError reports malformed template or plan input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransitionError reports an illegal move of the plan state machine.
type TransitionError struct {
	From   string
	To     string
	Reason string
	Err    error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("illegal transition from %q to %q", e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return e.Err }

// Transition builds a TransitionError.
func Transition(from, to, format string, args ...any) error {
	return &TransitionError{From: from, To: to, Reason: fmt.Sprintf(format, args...)}
}

// RefusedTransition builds a TransitionError caused by a failed role or
// ownership check, so both IsTransition and errors.As on AccessDenied hold.
func RefusedTransition(from, to string, cause error) error {
	return &TransitionError{From: from, To: to, Reason: cause.Error(), Err: cause}
}

// AccessDenied reports a failed role or ownership check.
type AccessDenied struct {
	Role   string
	Reason string
}

func (e *AccessDenied) Error() string {
	if e.Role == "" {
		return "access denied: " + e.Reason
	}
	return fmt.Sprintf("access denied for role %q: %s", e.Role, e.Reason)
}

// Denied builds an AccessDenied.
func Denied(role, format string, args ...any) error {
	return &AccessDenied{Role: role, Reason: fmt.Sprintf(format, args...)}
}

// DependencyUnavailable reports a failed or timed-out call to the document
// store, blob store or grading capability.
type DependencyUnavailable struct {
	Dependency string
	Err        error
}

func (e *DependencyUnavailable) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyUnavailable) Unwrap() error { return e.Err }

// Unavailable wraps err as a DependencyUnavailable. A nil err stays nil, and
// errors that already carry a class are returned untouched.
func Unavailable(dependency string, err error) error {
	if err == nil {
		return nil
	}
	if ClassOf(err) != ClassUnknown {
		return err
	}
	return &DependencyUnavailable{Dependency: dependency, Err: err}
}

// ClassOf walks the wrap chain and reports the first classified error.
func ClassOf(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	var (
		ve *ValidationError
		te *TransitionError
		ad *AccessDenied
		du *DependencyUnavailable
	)
	switch {
	case errors.As(err, &ve):
		return ClassValidation
	case errors.As(err, &te):
		return ClassTransition
	case errors.As(err, &ad):
		return ClassAccessDenied
	case errors.As(err, &du):
		return ClassDependency
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	}
	return ClassUnknown
}

// IsAccessDenied reports whether err is a role or ownership refusal.
func IsAccessDenied(err error) bool { return ClassOf(err) == ClassAccessDenied }

// IsTransition reports whether err is an illegal state-machine move.
func IsTransition(err error) bool { return ClassOf(err) == ClassTransition }

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool { return ClassOf(err) == ClassValidation }

// IsUnavailable reports whether err is a collaborator failure.
func IsUnavailable(err error) bool { return ClassOf(err) == ClassDependency }
