package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes store errors.
type Kind string

const (
	// KindReducer marks a reducer that returned an error or panicked.
	KindReducer Kind = "REDUCER"

	// KindEffect marks an effect handler that returned an error or panicked.
	KindEffect Kind = "EFFECT"

	// KindSelector marks a selector whose combine function failed.
	KindSelector Kind = "SELECTOR"

	// KindSubscriber marks a subscriber callback that panicked.
	KindSubscriber Kind = "SUBSCRIBER"
)

// Error is the structured error carried through sinks and return values.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the failing unit: slice name, effect name, selector or
	// subscriber id.
	Op string

	// ActionType is the type of the action being processed, if any.
	ActionType string

	// CorrelationID links the failure to the originating action chain.
	CorrelationID string

	// Seq is the snapshot sequence the failure was observed against.
	Seq uint64

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.ActionType != "" && e.Op != "":
		return fmt.Sprintf("%s: %s (action=%s): %v", e.Kind, e.Op, e.ActionType, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// FromPanic converts a recovered panic value into an error.
// Values that already are errors are kept so errors.Is keeps working.
func FromPanic(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsReducer reports whether err is a reducer error.
func IsReducer(err error) bool { return is(err, KindReducer) }

// IsEffect reports whether err is an effect error.
func IsEffect(err error) bool { return is(err, KindEffect) }

// IsSelector reports whether err is a selector error.
func IsSelector(err error) bool { return is(err, KindSelector) }

// IsSubscriber reports whether err is a subscriber error.
func IsSubscriber(err error) bool { return is(err, KindSubscriber) }

func is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
