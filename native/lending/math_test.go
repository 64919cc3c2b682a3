package lending

import (
	"errors"
	"math/big"
	"testing"
)

func bi(v int64) *big.Int { return big.NewInt(v) }

func TestMulDivRounding(t *testing.T) {
	cases := []struct {
		x, y, d  int64
		rounding Rounding
		want     int64
	}{
		{10, 10, 3, Floor, 33},
		{10, 10, 3, Ceil, 34},
		{10, 9, 3, Floor, 30},
		{10, 9, 3, Ceil, 30},
		{0, 7, 5, Ceil, 0},
		{400, 1000400, 1000440, Ceil, 400},
		{400, 1000440, 1000400, Floor, 400},
	}
	for _, tc := range cases {
		got, err := MulDiv(bi(tc.x), bi(tc.y), bi(tc.d), tc.rounding)
		if err != nil {
			t.Fatalf("MulDiv(%d, %d, %d, %s): %v", tc.x, tc.y, tc.d, tc.rounding, err)
		}
		if got.Int64() != tc.want {
			t.Fatalf("MulDiv(%d, %d, %d, %s) = %s, want %d", tc.x, tc.y, tc.d, tc.rounding, got, tc.want)
		}
	}
}

func TestMulDivUsesWideIntermediate(t *testing.T) {
	got, err := MulDiv(MaxUint, MaxUint, MaxUint, Floor)
	if err != nil {
		t.Fatalf("MulDiv: %v", err)
	}
	if got.Cmp(MaxUint) != 0 {
		t.Fatalf("expected MaxUint, got %s", got)
	}
}

func TestMulDivErrors(t *testing.T) {
	tooBig := new(big.Int).Add(MaxUint, bi(1))
	cases := []struct {
		name    string
		x, y, d *big.Int
		want    error
	}{
		{"zero denominator", bi(1), bi(1), bi(0), ErrDivisionByZero},
		{"negative operand", bi(-1), bi(1), bi(1), ErrNegativeOperand},
		{"operand above max", tooBig, bi(1), bi(1), ErrOverflow},
		{"result above max", MaxUint, bi(2), bi(1), ErrOverflow},
		{"nil operand", nil, bi(1), bi(1), ErrNilAmount},
	}
	for _, tc := range cases {
		if _, err := MulDiv(tc.x, tc.y, tc.d, Floor); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	// A quotient above MaxUint overflows under Ceil as well.
	if _, err := MulDiv(MaxUint, MaxUint, new(big.Int).Sub(MaxUint, bi(1)), Ceil); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestPercentMulRoundsHalfUp(t *testing.T) {
	cases := []struct {
		value int64
		bps   uint64
		want  int64
	}{
		{400, 1_000, 40},
		{5, 1_000, 1},
		{4, 1_000, 0},
		{12_345, PercentageFactor, 12_345},
		{12_345, 0, 0},
	}
	for _, tc := range cases {
		got, err := PercentMul(bi(tc.value), tc.bps)
		if err != nil {
			t.Fatalf("PercentMul(%d, %d): %v", tc.value, tc.bps, err)
		}
		if got.Int64() != tc.want {
			t.Fatalf("PercentMul(%d, %d) = %s, want %d", tc.value, tc.bps, got, tc.want)
		}
	}
	if _, err := PercentMul(bi(-1), 10); !errors.Is(err, ErrNegativeOperand) {
		t.Fatalf("expected negative operand error, got %v", err)
	}
}

func TestRayMulRoundsHalfUp(t *testing.T) {
	factor := new(big.Int).Div(new(big.Int).Mul(Ray(), bi(11)), bi(10))
	got, err := RayMul(bi(400), factor)
	if err != nil {
		t.Fatalf("RayMul: %v", err)
	}
	if got.Int64() != 440 {
		t.Fatalf("expected 440, got %s", got)
	}
	half := new(big.Int).Rsh(Ray(), 1)
	if got, _ := RayMul(bi(1), half); got.Int64() != 1 {
		t.Fatalf("expected half to round up to 1, got %s", got)
	}
	if got, _ := RayMul(bi(123), Ray()); got.Int64() != 123 {
		t.Fatalf("expected identity, got %s", got)
	}
}

func TestRoundingString(t *testing.T) {
	if Floor.String() != "floor" || Ceil.String() != "ceil" || Rounding(9).String() != "unknown" {
		t.Fatalf("unexpected rounding names")
	}
}
