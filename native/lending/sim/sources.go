package sim

import (
	"math/big"
	"math/rand/v2"
)

// RandomPremium samples user risk premiums uniformly from [Min, Max] bps.
type RandomPremium struct {
	rng      *rand.Rand
	min, max uint64
}

// NewRandomPremium returns a seeded premium sampler. Bounds are swapped when
// given in the wrong order.
func NewRandomPremium(seed, minBps, maxBps uint64) *RandomPremium {
	if minBps > maxBps {
		minBps, maxBps = maxBps, minBps
	}
	return &RandomPremium{rng: newRand(seed, 0x9e3779b97f4a7c15), min: minBps, max: maxBps}
}

func (p *RandomPremium) Sample() uint64 {
	return p.min + p.rng.Uint64N(p.max-p.min+1)
}

// RandomIndex draws a ray-denominated growth index uniformly from
// [Min, Max] once per tick. Repeated queries for the same tick return the
// same value, so an accrual that is rolled back and replayed grows the
// ledger identically.
type RandomIndex struct {
	rng  *rand.Rand
	min  *big.Int
	span *big.Int
	tick uint64
	last *big.Int
}

func NewRandomIndex(seed uint64, minRay, maxRay *big.Int) *RandomIndex {
	lo, hi := minRay, maxRay
	if lo.Cmp(hi) > 0 {
		lo, hi = hi, lo
	}
	span := new(big.Int).Sub(hi, lo)
	span.Add(span, big.NewInt(1))
	return &RandomIndex{
		rng:  newRand(seed, 0xd1b54a32d192ed03),
		min:  new(big.Int).Set(lo),
		span: span,
	}
}

func (r *RandomIndex) Index(tick uint64) *big.Int {
	if r.last == nil || tick != r.tick {
		r.last = new(big.Int).Add(r.min, randBelow(r.rng, r.span))
		r.tick = tick
	}
	return new(big.Int).Set(r.last)
}

func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// randBelow returns a value in [0, n). n must be positive.
func randBelow(rng *rand.Rand, n *big.Int) *big.Int {
	if n.IsUint64() {
		return new(big.Int).SetUint64(rng.Uint64N(n.Uint64()))
	}
	// One extra word keeps the modulo bias negligible.
	words := n.BitLen()/64 + 2
	v := new(big.Int)
	for i := 0; i < words; i++ {
		v.Lsh(v, 64)
		v.Or(v, new(big.Int).SetUint64(rng.Uint64()))
	}
	return v.Mod(v, n)
}

// randBetween returns a value in [1, n]. n must be positive.
func randBetween(rng *rand.Rand, n *big.Int) *big.Int {
	v := randBelow(rng, n)
	return v.Add(v, big.NewInt(1))
}
