// Package errors implements the IMS error taxonomy: every error an engine or
// the ingress dispatcher produces is classified by effect, not by concrete
// type, so callers can decide retry/defer/dead-letter behavior generically.
package errors

import "fmt"

// Kind classifies an error by the effect it should have on the caller.
type Kind int

const (
	// Validation: event/order rejected before any state mutation. Reported, not retried.
	Validation Kind = iota
	// Conflict: optimistic-concurrency version mismatch, or SOD-after-intraday.
	// Retried once by the caller; a second Conflict is treated as Permanent.
	Conflict
	// Transient: store/publish I/O error, timeout, lock-acquire timeout.
	// Retried with exponential backoff.
	Transient
	// Permanent: retries exhausted, corrupt payload, or a non-retryable failure.
	// Sent to the dead-letter sink, offset committed, critical alert raised.
	Permanent
	// Quarantine: a counter rollback failed; the key is excluded from all
	// further updates and reads until an operator clears it.
	Quarantine
	// Timeout: the operation's deadline expired. No state mutation persists.
	Timeout
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case Validation:
		return "Validation"
	case Conflict:
		return "Conflict"
	case Transient:
		return "Transient"
	case Permanent:
		return "Permanent"
	case Quarantine:
		return "Quarantine"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Error is a taxonomy-classified error. Component names the subsystem that
// raised it (e.g. "position", "inventory", "shortsell") for log correlation.
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s [%s]: %v", e.Component, e.Message, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s [%s]", e.Component, e.Message, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a classified Error.
func New(kind Kind, component, message string, err error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Err: err}
}

func NewValidation(component, message string, err error) *Error {
	return New(Validation, component, message, err)
}

func NewConflict(component, message string, err error) *Error {
	return New(Conflict, component, message, err)
}

func NewTransient(component, message string, err error) *Error {
	return New(Transient, component, message, err)
}

func NewPermanent(component, message string, err error) *Error {
	return New(Permanent, component, message, err)
}

func NewQuarantine(component, message string, err error) *Error {
	return New(Quarantine, component, message, err)
}

func NewTimeout(component, message string, err error) *Error {
	return New(Timeout, component, message, err)
}

// Classify returns the Kind of err, or Permanent if err does not carry one
// (an unclassified error is treated conservatively: dead-letter, don't retry
// forever).
func Classify(err error) Kind {
	var ie *Error
	if As(err, &ie) {
		return ie.Kind
	}
	return Permanent
}

// As walks err's single-error Unwrap chain and reports whether it contains
// an *Error, storing the first one found in target.
func As(err error, target **Error) bool {
	for err != nil {
		if ie, ok := err.(*Error); ok {
			*target = ie
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsRetryable reports whether an error's kind should be retried by the
// ingress dispatcher (Transient) as opposed to committed/dropped.
func IsRetryable(err error) bool {
	return Classify(err) == Transient
}
