// Package kit holds the sentinel errors for the analysis core's contract
// violations (spec.md §7: "Contract violation (fatal)") and the small
// panic helper that reports them. These are programmer errors, never user
// input errors, so they panic rather than return — mirroring the teacher's
// inferErrorf-style fatal constructor, but panicking instead of collecting
// diagnostics since there is no recovery path for a broken invariant.
package kit

import (
	"errors"
	"fmt"
)

var (
	// ErrKindLocked is raised by adding a constraint to a kind that has
	// already been locked and taken by a solver.
	ErrKindLocked = errors.New("kit: kind is locked")

	// ErrJoinAsRHS is raised by passing a Join as the rhs of a constraint;
	// the store's rhs slot is always a single Var or Const.
	ErrJoinAsRHS = errors.New("kit: join passed as constraint rhs")

	// ErrUnknownKind is raised by the solver for a combined solution over
	// an empty kind set and for an element of unknown type. Solving a kind
	// that was never created does not raise it: the store creates the kind
	// on first use and it solves to the empty solution.
	ErrUnknownKind = errors.New("kit: unknown constraint kind")

	// ErrEmptyJoin is raised by joining the empty set of elements.
	ErrEmptyJoin = errors.New("kit: join of empty element set")

	// ErrUnsupportedInstruction is raised by the generator encountering an
	// IR opcode outside the enumerated set (spec.md §7: "Unsupported
	// instruction (fatal)").
	ErrUnsupportedInstruction = errors.New("kit: unsupported instruction opcode")

	// ErrUnknownCall is raised when a call site reaches no accepting
	// signature. The ArgsToRet fallback accepts everything, so this
	// should never actually fire (spec.md §7: "Unknown call
	// (recoverable) ... if it does, treat as fatal").
	ErrUnknownCall = errors.New("kit: call site matched no signature")
)

// Fatalf panics with sentinel wrapped around a formatted detail message, so
// callers can still errors.Is() the panic value if they recover it (tests
// do, to assert which contract was violated).
func Fatalf(sentinel error, format string, args ...interface{}) {
	panic(fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}
