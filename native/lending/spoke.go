package lending

import (
	"math/big"
)

// Spoke is a market attached to the hub. It aggregates the positions of its
// users and forwards liquidity movements to the hub.
type Spoke struct {
	hub *Hub
	id  string

	position

	users map[string]*User
	order []*User
}

func newSpoke(h *Hub, id string) *Spoke {
	return &Spoke{
		hub:      h,
		id:       id,
		position: newPosition(),
		users:    make(map[string]*User),
	}
}

func (s *Spoke) ID() string { return s.id }

func (s *Spoke) Hub() *Hub { return s.hub }

// User returns the user registered under id, creating it on first use with
// a freshly sampled risk premium.
func (s *Spoke) User(id string) *User {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u
	}
	u := &User{
		spoke:       s,
		id:          id,
		position:    newPosition(),
		riskPremium: s.hub.premiums.Sample(),
	}
	s.users[id] = u
	s.order = append(s.order, u)
	return u
}

// Users lists the registered users in creation order.
func (s *Spoke) Users() []*User {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return append([]*User(nil), s.order...)
}

// Snapshot captures the spoke and its users.
func (s *Spoke) Snapshot() Snapshot {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.hub.spokeSnapshot(s, true)
}

// prepare validates the common inputs of a mutating operation and accrues
// the hub.
func (s *Spoke) prepare(amount *big.Int, u *User) error {
	if u == nil || u.spoke != s {
		return ErrForeignUser
	}
	if amount == nil {
		return ErrNilAmount
	}
	if amount.Sign() < 0 {
		return ErrNegativeOperand
	}
	return s.hub.accrue()
}

// Supply deposits amount into the hub on behalf of u and returns the minted
// supply shares.
func (s *Spoke) Supply(amount *big.Int, u *User) (*big.Int, error) {
	var shares *big.Int
	err := s.hub.transact(ActionSupply, s, u, func() error {
		if err := s.prepare(amount, u); err != nil {
			return err
		}
		minted, err := s.hub.supply(amount, s.id)
		if err != nil {
			return err
		}
		s.suppliedShares = add(s.suppliedShares, minted)
		u.suppliedShares = add(u.suppliedShares, minted)
		shares = minted
		return s.updateUserRiskPremium(u)
	})
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// Withdraw removes amount from the hub on behalf of u and returns the burned
// supply shares.
func (s *Spoke) Withdraw(amount *big.Int, u *User) (*big.Int, error) {
	var shares *big.Int
	err := s.hub.transact(ActionWithdraw, s, u, func() error {
		if err := s.prepare(amount, u); err != nil {
			return err
		}
		burned, err := s.hub.withdraw(amount, s.id)
		if err != nil {
			return err
		}
		s.suppliedShares = sub(s.suppliedShares, burned)
		u.suppliedShares = sub(u.suppliedShares, burned)
		shares = burned
		return s.updateUserRiskPremium(u)
	})
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// Borrow draws amount from the hub for u, resets u's premium position
// against the new base debt and returns the drawn shares.
func (s *Spoke) Borrow(amount *big.Int, u *User) (*big.Int, error) {
	var shares *big.Int
	err := s.hub.transact(ActionBorrow, s, u, func() error {
		if err := s.prepare(amount, u); err != nil {
			return err
		}
		oldGhost, oldOffset := u.ghostDrawnShares, u.offset
		accrued, err := s.hub.drawnAssetsOf(oldGhost, Ceil)
		if err != nil {
			return err
		}
		accrued = sub(accrued, oldOffset)

		drawn, err := s.hub.draw(amount, s.id)
		if err != nil {
			return err
		}
		s.baseDrawnShares = add(s.baseDrawnShares, drawn)
		u.baseDrawnShares = add(u.baseDrawnShares, drawn)
		if err := s.reprice(u, Ceil); err != nil {
			return err
		}
		u.unrealisedPremium = add(u.unrealisedPremium, accrued)
		shares = drawn
		return s.refresh(sub(u.ghostDrawnShares, oldGhost), sub(u.offset, oldOffset), accrued, u)
	})
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// Repay settles up to amount of u's debt, premium first. MaxUint repays the
// whole debt. It returns the base-debt shares burned.
func (s *Spoke) Repay(amount *big.Int, u *User) (*big.Int, error) {
	var shares *big.Int
	err := s.hub.transact(ActionRepay, s, u, func() error {
		if err := s.prepare(amount, u); err != nil {
			return err
		}
		debt, err := s.hub.debtOf(u.position, Floor)
		if err != nil {
			return err
		}
		baseRestored, premiumRestored, err := s.deductFromPremium(debt, amount, u)
		if err != nil {
			return err
		}

		// Crystallise the remaining premium and release the ghost position.
		oldGhost, oldOffset, oldUnrealised := u.ghostDrawnShares, u.offset, u.unrealisedPremium
		u.ghostDrawnShares = big.NewInt(0)
		u.offset = big.NewInt(0)
		u.unrealisedPremium = sub(debt.Premium, premiumRestored)
		if err := s.refresh(
			sub(u.ghostDrawnShares, oldGhost),
			sub(u.offset, oldOffset),
			sub(u.unrealisedPremium, oldUnrealised),
			u,
		); err != nil {
			return err
		}

		burned, err := s.hub.restore(baseRestored, premiumRestored, s.id)
		if err != nil {
			return err
		}
		s.baseDrawnShares = sub(s.baseDrawnShares, burned)
		u.baseDrawnShares = sub(u.baseDrawnShares, burned)
		shares = burned

		// The ghost position was zeroed above, so the new values are the deltas.
		if err := s.reprice(u, Floor); err != nil {
			return err
		}
		return s.refresh(clone(u.ghostDrawnShares), clone(u.offset), big.NewInt(0), u)
	})
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// UpdateUserRiskPremium resamples u's rate and rebases its premium position,
// crystallising the premium accrued under the previous rate.
func (s *Spoke) UpdateUserRiskPremium(u *User) error {
	return s.hub.transact(ActionUpdateRiskPremium, s, u, func() error {
		if u == nil || u.spoke != s {
			return ErrForeignUser
		}
		if err := s.hub.accrue(); err != nil {
			return err
		}
		return s.updateUserRiskPremium(u)
	})
}

func (s *Spoke) updateUserRiskPremium(u *User) error {
	oldGhost, oldOffset := u.ghostDrawnShares, u.offset
	if err := s.reprice(u, Ceil); err != nil {
		return err
	}
	accrued, err := s.hub.drawnAssetsOf(oldGhost, Ceil)
	if err != nil {
		return err
	}
	accrued = sub(accrued, oldOffset)
	u.unrealisedPremium = add(u.unrealisedPremium, accrued)
	return s.refresh(sub(u.ghostDrawnShares, oldGhost), sub(u.offset, oldOffset), accrued, u)
}

// reprice samples a new rate for u and sets its ghost shares and offset
// against its current base shares.
func (s *Spoke) reprice(u *User, offsetRounding Rounding) error {
	u.riskPremium = s.hub.premiums.Sample()
	ghost, err := PercentMul(u.baseDrawnShares, u.riskPremium)
	if err != nil {
		return err
	}
	offset, err := s.hub.drawnAssetsOf(ghost, offsetRounding)
	if err != nil {
		return err
	}
	u.ghostDrawnShares = ghost
	u.offset = offset
	return nil
}

// deductFromPremium splits a repayment into its base and premium parts.
// Premium is paid first.
func (s *Spoke) deductFromPremium(debt Debt, amount *big.Int, u *User) (*big.Int, *big.Int, error) {
	if amount.Cmp(MaxUint) == 0 {
		return clone(debt.Base), clone(debt.Premium), nil
	}
	var baseRestored, premiumRestored *big.Int
	if amount.Cmp(debt.Premium) < 0 {
		baseRestored, premiumRestored = big.NewInt(0), clone(amount)
	} else {
		baseRestored, premiumRestored = sub(amount, debt.Premium), clone(debt.Premium)
	}
	overRestore := func(field string, value, owed *big.Int) error {
		return &InvariantError{
			Kind:     ErrOverRestore,
			Field:    field,
			Value:    value,
			Expected: clone(owed),
			Entity:   s.hub.userSnapshot(u),
			Related:  []Snapshot{s.hub.spokeSnapshot(s, false), s.hub.hubSnapshot()},
		}
	}
	if baseRestored.Cmp(debt.Base) > 0 {
		return nil, nil, overRestore("baseDebtRestored", baseRestored, debt.Base)
	}
	if premiumRestored.Cmp(debt.Premium) > 0 {
		return nil, nil, overRestore("premiumDebtRestored", premiumRestored, debt.Premium)
	}
	return baseRestored, premiumRestored, nil
}

// refresh applies a user's premium deltas to the spoke and then the hub.
func (s *Spoke) refresh(ghostDelta, offsetDelta, unrealisedDelta *big.Int, u *User) error {
	if err := s.hub.checkUser(u); err != nil {
		return err
	}
	entity := func() Snapshot { return s.hub.spokeSnapshot(s, false) }
	before, err := s.hub.debtBefore(s.position, entity)
	if err != nil {
		return err
	}
	s.applyPremium(ghostDelta, offsetDelta, unrealisedDelta)
	if err := s.hub.checkSpoke(s); err != nil {
		return err
	}
	if err := s.hub.checkDebt(before, s.position, entity); err != nil {
		return err
	}
	return s.hub.refresh(ghostDelta, offsetDelta, unrealisedDelta, s.id)
}

// Debt returns the spoke's aggregate base and premium debt.
func (s *Spoke) Debt(rounding Rounding) (Debt, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if err := s.hub.accrue(); err != nil {
		return Debt{}, err
	}
	return s.hub.debtOf(s.position, rounding)
}

// TotalDebt returns the spoke's base plus premium debt.
func (s *Spoke) TotalDebt(rounding Rounding) (*big.Int, error) {
	debt, err := s.Debt(rounding)
	if err != nil {
		return nil, err
	}
	return debt.Total(), nil
}

// UserDebt returns u's base and premium debt.
func (s *Spoke) UserDebt(u *User, rounding Rounding) (Debt, error) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if u == nil || u.spoke != s {
		return Debt{}, ErrForeignUser
	}
	if err := s.hub.accrue(); err != nil {
		return Debt{}, err
	}
	return s.hub.debtOf(u.position, rounding)
}

// UserTotalDebt returns u's base plus premium debt.
func (s *Spoke) UserTotalDebt(u *User, rounding Rounding) (*big.Int, error) {
	debt, err := s.UserDebt(u, rounding)
	if err != nil {
		return nil, err
	}
	return debt.Total(), nil
}
