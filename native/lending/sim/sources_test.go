package sim

import (
	"math/big"
	"testing"

	"github.com/KZMKBL/aave-v4/native/lending"
)

func TestRandomPremiumStaysInRange(t *testing.T) {
	p := NewRandomPremium(1, 200, 300)
	for i := 0; i < 1_000; i++ {
		if v := p.Sample(); v < 200 || v > 300 {
			t.Fatalf("sample %d out of range", v)
		}
	}
	if v := NewRandomPremium(1, 50, 50).Sample(); v != 50 {
		t.Fatalf("expected fixed sample 50, got %d", v)
	}
	if v := NewRandomPremium(1, 90, 10).Sample(); v < 10 || v > 90 {
		t.Fatalf("swapped bounds not honoured: %d", v)
	}
}

func TestRandomIndexMemoisesPerTick(t *testing.T) {
	lo := lending.Ray()
	hi := new(big.Int).Add(lo, big.NewInt(1_000_000))
	idx := NewRandomIndex(4, lo, hi)

	first := idx.Index(5)
	if first.Cmp(lo) < 0 || first.Cmp(hi) > 0 {
		t.Fatalf("index %s out of range", first)
	}
	first.SetInt64(0)
	again := idx.Index(5)
	if again.Cmp(lo) < 0 {
		t.Fatalf("cached index was mutated through returned value: %s", again)
	}
	if idx.Index(5).Cmp(again) != 0 {
		t.Fatalf("index changed within a tick")
	}
	next := idx.Index(6)
	if next.Cmp(lo) < 0 || next.Cmp(hi) > 0 {
		t.Fatalf("index %s out of range", next)
	}
}

func TestRandBelowHandlesWideRanges(t *testing.T) {
	rng := newRand(1, 2)
	n := new(big.Int).Lsh(big.NewInt(1), 200)
	for i := 0; i < 100; i++ {
		v := randBelow(rng, n)
		if v.Sign() < 0 || v.Cmp(n) >= 0 {
			t.Fatalf("value %s outside [0, 2^200)", v)
		}
	}
	if v := randBetween(rng, big.NewInt(1)); v.Int64() != 1 {
		t.Fatalf("expected 1, got %s", v)
	}
}
