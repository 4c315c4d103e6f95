// Package faults defines the error taxonomy shared across the manager.
//
// Every recoverable failure in the system falls into one of four kinds:
//
//   - KindConfiguration: missing required settings key, unreadable or
//     malformed settings source. Fatal to the operation that detects it.
//   - KindRegistry: remote registry import/export failure or disconnect.
//   - KindLockConflict: target stage already held. Non-fatal; callers
//     skip and log, no retry within the cycle.
//   - KindStage: fault raised by a stage collaborator. Caught at the
//     per-project call site, logged, and answered by a forced lock
//     release so the next cycle can retry.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a fault for logging and recovery decisions.
type Kind string

// Fault kinds.
const (
	KindConfiguration Kind = "configuration"
	KindRegistry      Kind = "registry"
	KindLockConflict  Kind = "lock-conflict"
	KindStage         Kind = "stage"
)

// Fault is a classified error. The Kind drives the recovery policy at
// the call site; Err carries the underlying cause, if any.
type Fault struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s fault: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s fault: %s", f.Kind, f.Message)
}

// Unwrap returns the underlying cause.
func (f *Fault) Unwrap() error {
	return f.Err
}

// New creates a fault of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a fault of the given kind wrapping an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Configuration creates a configuration fault.
func Configuration(format string, args ...any) *Fault {
	return New(KindConfiguration, format, args...)
}

// Registry creates a registry fault.
func Registry(format string, args ...any) *Fault {
	return New(KindRegistry, format, args...)
}

// LockConflict creates a lock-conflict fault.
func LockConflict(format string, args ...any) *Fault {
	return New(KindLockConflict, format, args...)
}

// Stage creates a stage fault.
func Stage(format string, args ...any) *Fault {
	return New(KindStage, format, args...)
}

// KindOf returns the kind of the first Fault in err's chain. Errors
// outside the taxonomy classify as KindStage, matching how uncaught
// collaborator errors are treated at pipeline call sites.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindStage
}

// IsKind reports whether err's chain contains a Fault of the given kind.
func IsKind(err error, kind Kind) bool {
	var f *Fault
	return errors.As(err, &f) && f.Kind == kind
}
