package lending

import (
	"math/big"
	"sync/atomic"
)

// Clock reports the current tick. Accrual runs at most once per tick.
type Clock interface {
	Now() uint64
}

// IndexSource yields the ray-denominated growth factor applied to base debt
// when the hub accrues for the given tick.
type IndexSource interface {
	Index(tick uint64) *big.Int
}

// PremiumSampler yields the risk-premium rate, in basis points, assigned to
// a user whenever its rate is re-established.
type PremiumSampler interface {
	Sample() uint64
}

// ManualClock is a caller-driven tick counter. The zero value is not usable;
// construct it with NewManualClock.
type ManualClock struct {
	tick atomic.Uint64
}

// NewManualClock returns a clock positioned at tick 1 so that the first
// accrual of a fresh hub is applied.
func NewManualClock() *ManualClock {
	c := &ManualClock{}
	c.tick.Store(1)
	return c
}

func (c *ManualClock) Now() uint64 { return c.tick.Load() }

// Advance moves the clock forward by n ticks and returns the new tick.
func (c *ManualClock) Advance(n uint64) uint64 { return c.tick.Add(n) }

// FixedIndex applies the same growth factor on every tick.
type FixedIndex struct {
	Factor *big.Int
}

// NoGrowth is an index source that leaves base debt unchanged.
func NoGrowth() FixedIndex { return FixedIndex{Factor: Ray()} }

func (f FixedIndex) Index(uint64) *big.Int {
	if f.Factor == nil {
		return Ray()
	}
	return new(big.Int).Set(f.Factor)
}

// FixedPremium assigns the same rate to every user.
type FixedPremium uint64

func (f FixedPremium) Sample() uint64 { return uint64(f) }
