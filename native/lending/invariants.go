package lending

import (
	"math/big"
)

var debtTolerance = big.NewInt(1)

func outOfBounds(v *big.Int) bool {
	return v == nil || v.Sign() < 0 || v.Cmp(MaxUint) > 0
}

// checkFields returns a bounds violation for the first field outside
// [0, MaxUint].
func checkFields(values []namedValue, entity func() Snapshot, related func() []Snapshot) error {
	for _, nv := range values {
		if outOfBounds(nv.value) {
			return &InvariantError{
				Kind:    ErrBoundsViolation,
				Field:   nv.name,
				Value:   clone(nv.value),
				Entity:  entity(),
				Related: related(),
			}
		}
	}
	return nil
}

func (h *Hub) checkHub() error {
	related := func() []Snapshot {
		out := make([]Snapshot, 0, len(h.order))
		for _, sp := range h.order {
			out = append(out, h.recordSnapshot(sp.id))
		}
		return out
	}
	values := append(h.position.fields(),
		namedValue{"drawnAssets", h.drawnAssets},
		namedValue{"availableLiquidity", h.availableLiquidity},
	)
	if err := checkFields(values, h.hubSnapshot, related); err != nil {
		return err
	}

	// Premium is evaluated rounding up so that a pool whose ghost shares
	// are worth less than their offset is rejected.
	derived := []struct {
		name string
		eval func() (*big.Int, error)
	}{
		{"totalSupplyAssets", func() (*big.Int, error) { return h.supplyAssetsTotal(Floor) }},
		{"totalOutstandingPremium", func() (*big.Int, error) { return h.premiumOf(h.position, Ceil) }},
	}
	for _, d := range derived {
		v, err := d.eval()
		if err != nil {
			return &InvariantError{Kind: ErrBoundsViolation, Field: d.name, Cause: err, Entity: h.hubSnapshot(), Related: related()}
		}
		if outOfBounds(v) {
			return &InvariantError{Kind: ErrBoundsViolation, Field: d.name, Value: v, Entity: h.hubSnapshot(), Related: related()}
		}
	}
	return nil
}

func (h *Hub) checkRecord(id string) error {
	return checkFields(h.records[id].fields(),
		func() Snapshot { return h.recordSnapshot(id) },
		func() []Snapshot { return []Snapshot{h.hubSnapshot()} },
	)
}

func (h *Hub) checkSpoke(s *Spoke) error {
	return checkFields(s.fields(),
		func() Snapshot { return h.spokeSnapshot(s, false) },
		func() []Snapshot {
			out := []Snapshot{h.hubSnapshot()}
			for _, u := range s.order {
				out = append(out, h.userSnapshot(u))
			}
			return out
		},
	)
}

func (h *Hub) checkUser(u *User) error {
	return checkFields(u.fields(),
		func() Snapshot { return h.userSnapshot(u) },
		func() []Snapshot { return []Snapshot{h.spokeSnapshot(u.spoke, false)} },
	)
}

// debtBefore values p's total debt, rounding up, ahead of a premium refresh.
func (h *Hub) debtBefore(p position, entity func() Snapshot) (*big.Int, error) {
	total, err := h.totalDebtOf(p, Ceil)
	if err != nil {
		return nil, &InvariantError{Kind: ErrBoundsViolation, Field: "totalDebt", Cause: err, Entity: entity()}
	}
	return total, nil
}

// checkDebt rejects a refresh that raised p's total debt by more than one
// unit of rounding.
func (h *Hub) checkDebt(before *big.Int, p position, entity func() Snapshot) error {
	after, err := h.totalDebtOf(p, Ceil)
	if err != nil {
		return &InvariantError{Kind: ErrBoundsViolation, Field: "totalDebt", Cause: err, Entity: entity()}
	}
	if new(big.Int).Sub(after, before).Cmp(debtTolerance) > 0 {
		return &InvariantError{Kind: ErrDebtIncreased, Field: "totalDebt", Before: before, After: after, Entity: entity()}
	}
	return nil
}

// Audit checks bounds on every entity and verifies that each aggregate
// equals the sum of its members: the hub against its spoke records, every
// record against the spoke it mirrors, and every spoke against its users.
func (h *Hub) Audit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.audit(); err != nil {
		h.telemetry.RecordViolation(ErrorKind(err), string(violationLevel(err)))
		return err
	}
	return nil
}

func (h *Hub) audit() error {
	if err := h.checkHub(); err != nil {
		return err
	}
	records := newPosition()
	for _, sp := range h.order {
		if err := h.checkRecord(sp.id); err != nil {
			return err
		}
		if err := h.checkSpoke(sp); err != nil {
			return err
		}
		record := *h.records[sp.id]
		records.add(record)
		if name, mine, theirs, ok := sp.firstMismatch(record); ok {
			return &InvariantError{
				Kind:     ErrAggregateMismatch,
				Field:    name,
				Value:    clone(mine),
				Expected: clone(theirs),
				Entity:   h.spokeSnapshot(sp, false),
				Related:  []Snapshot{h.recordSnapshot(sp.id)},
			}
		}

		users := newPosition()
		for _, u := range sp.order {
			if err := h.checkUser(u); err != nil {
				return err
			}
			users.add(u.position)
		}
		if name, mine, theirs, ok := sp.firstMismatch(users); ok {
			return &InvariantError{
				Kind:     ErrAggregateMismatch,
				Field:    name,
				Value:    clone(mine),
				Expected: clone(theirs),
				Entity:   h.spokeSnapshot(sp, true),
			}
		}
	}
	if name, mine, theirs, ok := h.position.firstMismatch(records); ok {
		return &InvariantError{
			Kind:     ErrAggregateMismatch,
			Field:    name,
			Value:    clone(mine),
			Expected: clone(theirs),
			Entity:   h.hubSnapshot(),
		}
	}
	return nil
}

func violationLevel(err error) Level {
	if inv, ok := asInvariant(err); ok {
		return inv.Entity.Level
	}
	return LevelHub
}
