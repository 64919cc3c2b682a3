package lending

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
)

func TestErrorKindLabels(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&InvariantError{Kind: ErrBoundsViolation, Field: "offset"}, "bounds"},
		{&InvariantError{Kind: ErrDebtIncreased}, "debt_increase"},
		{fmt.Errorf("repay: %w", ErrOverRestore), "over_restore"},
		{ErrAggregateMismatch, "aggregate"},
		{ErrZeroShares, "zero_shares"},
		{fmt.Errorf("supply: %w", ErrForeignUser), "input"},
		{ErrNilAmount, "input"},
		{fmt.Errorf("withdraw: %w", ErrNegativeOperand), "input"},
		{ErrDivisionByZero, "arithmetic"},
		{ErrOverflow, "arithmetic"},
		{errors.New("unexpected"), "arithmetic"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestRejectedInputIsLabelledInput(t *testing.T) {
	h, _ := newTestHub()
	s1 := h.Spoke("s1")
	u2 := h.Spoke("s2").User("u2")

	_, err := s1.Borrow(big.NewInt(1), u2)
	if ErrorKind(err) != "input" {
		t.Fatalf("expected input kind for foreign user, got %q (%v)", ErrorKind(err), err)
	}
	_, err = u2.Supply(nil)
	if ErrorKind(err) != "input" {
		t.Fatalf("expected input kind for nil amount, got %q (%v)", ErrorKind(err), err)
	}
}
