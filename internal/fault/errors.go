// Package fault defines the structured error taxonomy shared by the store,
// registry, and dispatch layers.
//
// Every failure surfaced to callers is a *Error carrying a stable Code plus
// whatever identifying fields the failing operation had on hand. Faults are
// ordinary return values; the only panics in the repository are index
// corruption inside the store, which has no defined recovery.
package fault

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Code categorizes a fault.
type Code string

const (
	// CodeNotFound indicates an absent handle, slot, or registry name.
	CodeNotFound Code = "NOT_FOUND"

	// CodeTypeMismatch indicates a stored/expected type tag disagreement,
	// caller-side (bad handle or bad argument).
	CodeTypeMismatch Code = "TYPE_MISMATCH"

	// CodeDuplicateRegistration indicates a (namespace, name) pair is already
	// registered and overwrite was not requested.
	CodeDuplicateRegistration Code = "DUPLICATE_REGISTRATION"

	// CodeAmbiguousName indicates an unqualified name matched descriptors in
	// more than one namespace.
	CodeAmbiguousName Code = "AMBIGUOUS_NAME"

	// CodeEncodingError indicates a value that cannot be canonically encoded.
	CodeEncodingError Code = "ENCODING_ERROR"

	// CodeCapacityExceeded indicates a store resource limit was hit.
	CodeCapacityExceeded Code = "CAPACITY_EXCEEDED"

	// CodeContractViolation indicates plugin output that violates the
	// declared signature. Plugin-side bug, distinct from caller errors.
	CodeContractViolation Code = "CONTRACT_VIOLATION"

	// CodeCancelled indicates the call's cancellation signal fired.
	CodeCancelled Code = "CANCELLED"

	// CodeTimeout indicates the call's deadline expired.
	CodeTimeout Code = "TIMEOUT"

	// CodePluginFailure wraps an error raised by plugin logic itself, so
	// callers can tell "my call was malformed" from "the plugin failed
	// while doing its job".
	CodePluginFailure Code = "PLUGIN_FAILURE"
)

// Error is a structured fault. Fields beyond Code and Message are populated
// when the failing operation knows them and zero otherwise.
type Error struct {
	// Code identifies the fault category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Name and Namespace identify the plugin involved, if any.
	Name      string
	Namespace string

	// Position is the argument or output position for positional mismatches.
	// -1 when the fault is not positional.
	Position int

	// Details contains additional context.
	Details map[string]string

	// Err is the wrapped cause, set for plugin failures.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Name != "" && e.Position >= 0:
		return fmt.Sprintf("%s: %s (plugin=%s/%s, position=%d)", e.Code, e.Message, e.Namespace, e.Name, e.Position)
	case e.Name != "":
		return fmt.Sprintf("%s: %s (plugin=%s/%s)", e.Code, e.Message, e.Namespace, e.Name)
	case e.Position >= 0:
		return fmt.Sprintf("%s: %s (position=%d)", e.Code, e.Message, e.Position)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the fault code of err, or "" if err is not a fault.
// Unwraps as needed.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

func is(err error, code Code) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// IsNotFound returns true if the error is a NOT_FOUND fault.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool { return is(err, CodeNotFound) }

// IsTypeMismatch returns true if the error is a TYPE_MISMATCH fault.
func IsTypeMismatch(err error) bool { return is(err, CodeTypeMismatch) }

// IsDuplicateRegistration returns true if the error is a
// DUPLICATE_REGISTRATION fault.
func IsDuplicateRegistration(err error) bool { return is(err, CodeDuplicateRegistration) }

// IsAmbiguousName returns true if the error is an AMBIGUOUS_NAME fault.
func IsAmbiguousName(err error) bool { return is(err, CodeAmbiguousName) }

// IsEncodingError returns true if the error is an ENCODING_ERROR fault.
func IsEncodingError(err error) bool { return is(err, CodeEncodingError) }

// IsCapacityExceeded returns true if the error is a CAPACITY_EXCEEDED fault.
func IsCapacityExceeded(err error) bool { return is(err, CodeCapacityExceeded) }

// IsContractViolation returns true if the error is a CONTRACT_VIOLATION fault.
func IsContractViolation(err error) bool { return is(err, CodeContractViolation) }

// IsCancelled returns true if the error is a CANCELLED fault.
func IsCancelled(err error) bool { return is(err, CodeCancelled) }

// IsTimeout returns true if the error is a TIMEOUT fault.
func IsTimeout(err error) bool { return is(err, CodeTimeout) }

// IsPluginFailure returns true if the error is a PLUGIN_FAILURE fault.
func IsPluginFailure(err error) bool { return is(err, CodePluginFailure) }

// NewSlotNotFoundError creates a fault for a handle whose slot is absent or
// evicted.
func NewSlotNotFoundError(slot uint64) *Error {
	return &Error{
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("slot %d not found (evicted or never stored)", slot),
		Position: -1,
		Details:  map[string]string{"slot": fmt.Sprintf("%d", slot)},
	}
}

// NewNameNotFoundError creates a fault for an unregistered plugin name.
func NewNameNotFoundError(name, namespace string) *Error {
	return &Error{
		Code:      CodeNotFound,
		Message:   "no descriptor registered under name",
		Name:      name,
		Namespace: namespace,
		Position:  -1,
	}
}

// NewTypeMismatchError creates a fault for a type tag disagreement.
// position is the argument position for positional checks, -1 for
// store-level handle checks.
func NewTypeMismatchError(position int, want, got string) *Error {
	return &Error{
		Code:     CodeTypeMismatch,
		Message:  fmt.Sprintf("type tag mismatch: want %q, got %q", want, got),
		Position: position,
		Details:  map[string]string{"want": want, "got": got},
	}
}

// NewArityMismatchError creates a fault for an argument count disagreement.
func NewArityMismatchError(want, got int) *Error {
	return &Error{
		Code:     CodeTypeMismatch,
		Message:  fmt.Sprintf("argument count mismatch: want %d, got %d", want, got),
		Position: -1,
		Details: map[string]string{
			"want_arity": fmt.Sprintf("%d", want),
			"got_arity":  fmt.Sprintf("%d", got),
		},
	}
}

// NewDuplicateRegistrationError creates a fault for a repeated registration
// without overwrite.
func NewDuplicateRegistrationError(name, namespace string) *Error {
	return &Error{
		Code:      CodeDuplicateRegistration,
		Message:   "descriptor already registered (pass overwrite to replace)",
		Name:      name,
		Namespace: namespace,
		Position:  -1,
	}
}

// NewAmbiguousNameError creates a fault for an unqualified name that matches
// descriptors in several namespaces.
func NewAmbiguousNameError(name string, namespaces []string) *Error {
	return &Error{
		Code:     CodeAmbiguousName,
		Message:  fmt.Sprintf("name matches %d namespaces: %s", len(namespaces), strings.Join(namespaces, ", ")),
		Name:     name,
		Position: -1,
		Details:  map[string]string{"namespaces": strings.Join(namespaces, ",")},
	}
}

// NewEncodingError creates a fault for a value that cannot be canonicalized.
func NewEncodingError(format string, args ...any) *Error {
	return &Error{
		Code:     CodeEncodingError,
		Message:  fmt.Sprintf(format, args...),
		Position: -1,
	}
}

// NewCapacityExceededError creates a fault for a store limit.
// kind names the exhausted resource ("slots", "value_bytes").
func NewCapacityExceededError(kind string, limit int64) *Error {
	return &Error{
		Code:     CodeCapacityExceeded,
		Message:  fmt.Sprintf("store %s limit exceeded (limit %d)", kind, limit),
		Position: -1,
		Details: map[string]string{
			"kind":  kind,
			"limit": fmt.Sprintf("%d", limit),
		},
	}
}

// NewContractViolationError creates a fault for plugin output that violates
// the declared output signature. position is -1 for arity violations.
func NewContractViolationError(name, namespace string, position int, detail string) *Error {
	return &Error{
		Code:      CodeContractViolation,
		Message:   "plugin output violates declared signature: " + detail,
		Name:      name,
		Namespace: namespace,
		Position:  position,
	}
}

// NewCancelledError creates a fault for a fired cancellation signal.
func NewCancelledError() *Error {
	return &Error{Code: CodeCancelled, Message: "call cancelled", Position: -1}
}

// NewTimeoutError creates a fault for an expired deadline.
func NewTimeoutError() *Error {
	return &Error{Code: CodeTimeout, Message: "deadline expired", Position: -1}
}

// NewPluginFailureError wraps an error raised by plugin logic with the
// plugin's identity. panicked marks failures recovered from a panic.
func NewPluginFailureError(name, namespace string, err error, panicked bool) *Error {
	msg := "plugin returned an error"
	details := map[string]string(nil)
	if panicked {
		msg = "plugin panicked"
		details = map[string]string{"panic": "true"}
	}
	return &Error{
		Code:      CodePluginFailure,
		Message:   msg,
		Name:      name,
		Namespace: namespace,
		Position:  -1,
		Details:   details,
		Err:       err,
	}
}

// FromContext maps a context error to the corresponding fault:
// context.Canceled becomes CANCELLED, context.DeadlineExceeded becomes
// TIMEOUT. Any other error is returned unchanged.
func FromContext(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return NewCancelledError()
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError()
	default:
		return err
	}
}
