package lending

import "math/big"

// User is an account within a single spoke. Its methods delegate to the
// spoke it was created by.
type User struct {
	spoke *Spoke
	id    string

	position
	riskPremium uint64
}

func (u *User) ID() string { return u.id }

func (u *User) Spoke() *Spoke { return u.spoke }

// RiskPremium returns the user's current premium rate in basis points.
func (u *User) RiskPremium() uint64 {
	u.spoke.hub.mu.Lock()
	defer u.spoke.hub.mu.Unlock()
	return u.riskPremium
}

func (u *User) Supply(amount *big.Int) (*big.Int, error) { return u.spoke.Supply(amount, u) }

func (u *User) Withdraw(amount *big.Int) (*big.Int, error) { return u.spoke.Withdraw(amount, u) }

func (u *User) Borrow(amount *big.Int) (*big.Int, error) { return u.spoke.Borrow(amount, u) }

func (u *User) Repay(amount *big.Int) (*big.Int, error) { return u.spoke.Repay(amount, u) }

func (u *User) UpdateRiskPremium() error { return u.spoke.UpdateUserRiskPremium(u) }

// Debt returns the user's base and premium debt, rounded down.
func (u *User) Debt() (Debt, error) { return u.spoke.UserDebt(u, Floor) }

// TotalDebt returns the user's base plus premium debt, rounded down.
func (u *User) TotalDebt() (*big.Int, error) { return u.spoke.UserTotalDebt(u, Floor) }

// SuppliedShares returns the supply shares held by the user.
func (u *User) SuppliedShares() *big.Int {
	u.spoke.hub.mu.Lock()
	defer u.spoke.hub.mu.Unlock()
	return clone(u.suppliedShares)
}

// BaseDrawnShares returns the base-debt shares owed by the user.
func (u *User) BaseDrawnShares() *big.Int {
	u.spoke.hub.mu.Lock()
	defer u.spoke.hub.mu.Unlock()
	return clone(u.baseDrawnShares)
}

// SuppliedBalance values the user's supply shares in assets, rounded down.
func (u *User) SuppliedBalance() (*big.Int, error) {
	h := u.spoke.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.accrue(); err != nil {
		return nil, err
	}
	return h.supplyAssetsOf(u.suppliedShares, Floor)
}

// Snapshot captures the user's position.
func (u *User) Snapshot() Snapshot {
	u.spoke.hub.mu.Lock()
	defer u.spoke.hub.mu.Unlock()
	return u.spoke.hub.userSnapshot(u)
}
