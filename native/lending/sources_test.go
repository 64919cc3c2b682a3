package lending

import (
	"math/big"
	"testing"
)

func TestManualClockStartsAtOne(t *testing.T) {
	c := NewManualClock()
	if c.Now() != 1 {
		t.Fatalf("expected tick 1, got %d", c.Now())
	}
	if got := c.Advance(3); got != 4 || c.Now() != 4 {
		t.Fatalf("expected tick 4, got %d", got)
	}
}

func TestFixedIndexReturnsCopies(t *testing.T) {
	idx := FixedIndex{Factor: big.NewInt(7)}
	v := idx.Index(1)
	v.SetInt64(0)
	if idx.Index(2).Int64() != 7 {
		t.Fatalf("factor mutated through returned value")
	}
	if (FixedIndex{}).Index(1).Cmp(Ray()) != 0 {
		t.Fatalf("zero FixedIndex should not grow debt")
	}
}

func TestAccrueRunsOncePerTick(t *testing.T) {
	h, clock := newTestHub(WithIndexSource(tenPercent()))
	u := h.Spoke("s").User("u")
	if _, err := u.Supply(big.NewInt(1_000)); err != nil {
		t.Fatalf("supply: %v", err)
	}
	if _, err := u.Borrow(big.NewInt(100)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := h.Accrue(); err != nil {
			t.Fatalf("accrue: %v", err)
		}
	}
	if h.DrawnAssets().Int64() != 100 {
		t.Fatalf("accrual repeated within tick 1: %s", h.DrawnAssets())
	}
	clock.Advance(1)
	if err := h.Accrue(); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if err := h.Accrue(); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if h.DrawnAssets().Int64() != 110 {
		t.Fatalf("expected 110 after one accrual, got %s", h.DrawnAssets())
	}
}
