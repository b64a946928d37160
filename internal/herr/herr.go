// Package herr defines the taxonomy of error kinds that cross component
// boundaries in the core. Components map their internal failures onto this
// small set of kinds so callers can decide whether to recover locally or
// propagate without inspecting concrete error types.
package herr

import "fmt"

// Kind classifies a failure for the purpose of recovery and UI display.
type Kind string

const (
	UserInput Kind = "user_input"
	Config    Kind = "config"
	Storage   Kind = "storage"
	Protocol  Kind = "protocol"
	Tool      Kind = "tool"
	Model     Kind = "model"
	Cancelled Kind = "cancelled"
	Fatal     Kind = "fatal"
)

// Error is a tagged error carrying the operation that failed and the
// underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged error for op with no underlying cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap tags err with kind and the operation that observed it. Wrap(kind, op, nil)
// returns nil so call sites can wrap unconditionally after an `if err != nil`.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err if it (or something it wraps) is an *Error,
// otherwise Fatal — an untagged error crossing a component boundary is a bug.
func KindOf(err error) Kind {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return Fatal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
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
