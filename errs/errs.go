// Package errs classifies the failure modes of the taint engine described in
// spec.md §7 (Error Handling Design): parse errors, shape errors, invariant
// violations, and request errors. Each is a tagged wrapper around an
// underlying cause so callers can branch on Kind while the error chain still
// carries the contextual notes (function, pc, variable) that a plain
// sentinel would lose.
package errs

import (
	"errors"
	"fmt"
)

// Kind tags the category of failure, per spec.md §7.
type Kind int

const (
	// KindParse marks a malformed textual IR.
	KindParse Kind = iota
	// KindShape marks an undefined function/variable reference or a
	// self-recursive call without a base case at the requested pc.
	KindShape
	// KindInvariant marks a violation of an internal invariant: a fact
	// whose variable is not in the function's vars, an unresolved block
	// label, or a pc beyond the function's instructions.
	KindInvariant
	// KindRequest marks a malformed Request passed to a solver.
	KindRequest
)

// String renders the Kind for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindShape:
		return "shape"
	case KindInvariant:
		return "invariant"
	case KindRequest:
		return "request"
	default:
		return "unknown"
	}
}

// Error is the chained error type returned throughout the engine. Op names
// the operation that failed (e.g. "state.InitFunction"); Err is the
// underlying cause, which may itself be an *Error (building a chain of
// contextual notes, the Go analogue of anyhow::Context in the original
// Rust implementation).
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

// New builds a new chained error with the given kind, operation, and cause.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Wrap attaches op as a contextual note to err, preserving err's Kind if it
// is already an *Error; otherwise the error is classified as KindInvariant
// (the catch-all for unclassified internal failures).
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Op: op, Err: err}
	}

	return &Error{Kind: KindInvariant, Op: op, Err: err}
}

// Is reports whether the first *Error in err's chain (the outermost one
// errors.As finds) has the given Kind; an *Error wrapped beneath it is not
// consulted.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}

	return false
}
