package lending

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrBoundsViolation   = errors.New("lending: value outside [0, MaxUint]")
	ErrDebtIncreased     = errors.New("lending: total debt increased")
	ErrOverRestore       = errors.New("lending: restored amount exceeds outstanding debt")
	ErrZeroShares        = errors.New("lending: operation resolves to zero shares")
	ErrAggregateMismatch = errors.New("lending: aggregate does not match sum of members")
	ErrNegativeOperand   = errors.New("lending: negative operand")
	ErrOverflow          = errors.New("lending: arithmetic overflow")
	ErrDivisionByZero    = errors.New("lending: division by zero")
	ErrNilAmount         = errors.New("lending: amount not provided")
	ErrForeignUser       = errors.New("lending: user belongs to another spoke")
)

// InvariantError reports a failed consistency check together with the
// state of the entity that failed it. Related holds the parent and children
// of that entity when they were available.
type InvariantError struct {
	Kind     error
	Field    string
	Value    *big.Int
	Expected *big.Int
	Before   *big.Int
	After    *big.Int
	// Cause is set when the field could not be evaluated at all.
	Cause   error
	Entity  Snapshot
	Related []Snapshot
}

func (e *InvariantError) Error() string {
	where := fmt.Sprintf("%s %s", e.Entity.Level, e.Entity.ID)
	switch {
	case e.Before != nil && e.After != nil:
		return fmt.Sprintf("%v at %s: before=%s after=%s", e.Kind, where, e.Before, e.After)
	case e.Cause != nil:
		return fmt.Sprintf("%v at %s: %s: %v", e.Kind, where, e.Field, e.Cause)
	case e.Expected != nil:
		return fmt.Sprintf("%v at %s: %s=%s expected=%s", e.Kind, where, e.Field, e.Value, e.Expected)
	case e.Field != "":
		return fmt.Sprintf("%v at %s: %s=%s", e.Kind, where, e.Field, e.Value)
	default:
		return fmt.Sprintf("%v at %s", e.Kind, where)
	}
}

func (e *InvariantError) Unwrap() error { return e.Kind }

func asInvariant(err error) (*InvariantError, bool) {
	var inv *InvariantError
	if errors.As(err, &inv) {
		return inv, true
	}
	return nil, false
}

// ErrorKind maps a ledger error to a stable label for metrics and reports.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrBoundsViolation):
		return "bounds"
	case errors.Is(err, ErrDebtIncreased):
		return "debt_increase"
	case errors.Is(err, ErrOverRestore):
		return "over_restore"
	case errors.Is(err, ErrAggregateMismatch):
		return "aggregate"
	case errors.Is(err, ErrZeroShares):
		return "zero_shares"
	case errors.Is(err, ErrForeignUser), errors.Is(err, ErrNilAmount), errors.Is(err, ErrNegativeOperand):
		return "input"
	default:
		return "arithmetic"
	}
}
