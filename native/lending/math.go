package lending

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Rounding selects the direction applied when a fixed-point division leaves a
// remainder. Asset amounts owed to an account round down; shares and
// liabilities owed by an account round up.
type Rounding uint8

const (
	Floor Rounding = iota
	Ceil
)

func (r Rounding) String() string {
	switch r {
	case Floor:
		return "floor"
	case Ceil:
		return "ceil"
	default:
		return "unknown"
	}
}

const (
	// PercentageFactor is 100% expressed in basis points.
	PercentageFactor = 10_000
	halfPercentage   = PercentageFactor / 2
)

var (
	// MaxUint is the largest value any tracked quantity may hold (2^256 - 1).
	// Repaying MaxUint settles the full outstanding debt of an account.
	MaxUint = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// VirtualOffset is added to both sides of every exchange rate so that an
	// empty pool still converts at a sane rate.
	VirtualOffset = big.NewInt(1_000_000)

	ray     = mustBigInt("1000000000000000000000000000") // 1e27 precision
	halfRay = new(big.Int).Rsh(ray, 1)

	percentageFactor = big.NewInt(PercentageFactor)
	halfPercent      = big.NewInt(halfPercentage)

	maxUint256 = new(uint256.Int).SetAllOne()
)

// Ray returns a copy of the 1e27 fixed-point unit used by growth indexes.
func Ray() *big.Int { return new(big.Int).Set(ray) }

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return nil, ErrNilAmount
	}
	if v.Sign() < 0 {
		return nil, ErrNegativeOperand
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

func checkRange(values ...*big.Int) error {
	for _, v := range values {
		if _, err := toUint256(v); err != nil {
			return err
		}
	}
	return nil
}

// MulDiv computes x*y/denominator with a full 512-bit intermediate product and
// rounds the quotient in the requested direction.
func MulDiv(x, y, denominator *big.Int, rounding Rounding) (*big.Int, error) {
	ux, err := toUint256(x)
	if err != nil {
		return nil, err
	}
	uy, err := toUint256(y)
	if err != nil {
		return nil, err
	}
	ud, err := toUint256(denominator)
	if err != nil {
		return nil, err
	}
	if ud.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(ux, uy, ud)
	if overflow {
		return nil, ErrOverflow
	}
	if rounding == Ceil && !new(uint256.Int).MulMod(ux, uy, ud).IsZero() {
		if z.Eq(maxUint256) {
			return nil, ErrOverflow
		}
		z.AddUint64(z, 1)
	}
	return z.ToBig(), nil
}

// PercentMul scales value by a basis-point rate, rounding half up.
func PercentMul(value *big.Int, bps uint64) (*big.Int, error) {
	if err := checkRange(value); err != nil {
		return nil, err
	}
	product := new(big.Int).Mul(value, new(big.Int).SetUint64(bps))
	product.Add(product, halfPercent)
	product.Quo(product, percentageFactor)
	if err := checkRange(product); err != nil {
		return nil, err
	}
	return product, nil
}

// RayMul multiplies a by a ray-denominated factor b, rounding half up.
func RayMul(a, b *big.Int) (*big.Int, error) {
	if err := checkRange(a, b); err != nil {
		return nil, err
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, halfRay)
	product.Quo(product, ray)
	if err := checkRange(product); err != nil {
		return nil, err
	}
	return product, nil
}

func add(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) }

func sub(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) }

func clone(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
