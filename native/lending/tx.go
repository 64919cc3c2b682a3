package lending

import (
	"fmt"
	"math/big"
)

type userState struct {
	position    position
	riskPremium uint64
}

// checkpoint is a restorable copy of the whole ledger tree.
type checkpoint struct {
	lastUpdate         uint64
	hub                position
	drawnAssets        *big.Int
	availableLiquidity *big.Int
	records            map[string]position
	spokes             map[*Spoke]position
	users              map[*User]userState
}

func (h *Hub) checkpoint() checkpoint {
	cp := checkpoint{
		lastUpdate:         h.lastUpdate,
		hub:                h.position.clone(),
		drawnAssets:        clone(h.drawnAssets),
		availableLiquidity: clone(h.availableLiquidity),
		records:            make(map[string]position, len(h.records)),
		spokes:             make(map[*Spoke]position, len(h.order)),
		users:              make(map[*User]userState),
	}
	for id, record := range h.records {
		cp.records[id] = record.clone()
	}
	for _, sp := range h.order {
		cp.spokes[sp] = sp.position.clone()
		for _, u := range sp.order {
			cp.users[u] = userState{position: u.position.clone(), riskPremium: u.riskPremium}
		}
	}
	return cp
}

// rollback restores cp. Entities registered after cp was taken are reset to
// an empty position.
func (h *Hub) rollback(cp checkpoint) {
	h.lastUpdate = cp.lastUpdate
	h.position = cp.hub
	h.drawnAssets = cp.drawnAssets
	h.availableLiquidity = cp.availableLiquidity
	for id, record := range h.records {
		if saved, ok := cp.records[id]; ok {
			*record = saved
		} else {
			*record = newPosition()
		}
	}
	for _, sp := range h.order {
		if saved, ok := cp.spokes[sp]; ok {
			sp.position = saved
		} else {
			sp.position = newPosition()
		}
		for _, u := range sp.order {
			if saved, ok := cp.users[u]; ok {
				u.position = saved.position
				u.riskPremium = saved.riskPremium
			} else {
				u.position = newPosition()
			}
		}
	}
}

// transact runs fn as a single atomic ledger operation. On failure the tree
// is rolled back and the failure logged with the state that caused it.
func (h *Hub) transact(action Action, s *Spoke, u *User, fn func() error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cp := h.checkpoint()
	if err := fn(); err != nil {
		h.rollback(cp)
		h.telemetry.RecordOperation(string(action), false)
		attrs := []any{"action", action, "spoke", s.id, "error", err}
		if u != nil {
			attrs = append(attrs, "user", u.id)
		}
		if inv, ok := asInvariant(err); ok {
			h.telemetry.RecordViolation(ErrorKind(err), string(inv.Entity.Level))
			attrs = append(attrs, "entity", inv.Entity)
			for i, rel := range inv.Related {
				attrs = append(attrs, fmt.Sprintf("related.%d", i), rel)
			}
			h.logger.Error("lending invariant violated", attrs...)
		} else {
			h.logger.Warn("lending operation rejected", attrs...)
		}
		return fmt.Errorf("%s: %w", action, err)
	}
	h.telemetry.RecordOperation(string(action), true)
	h.publish()
	return nil
}

func (h *Hub) publish() {
	if h.telemetry == nil {
		return
	}
	if debt, err := h.totalDebtOf(h.position, Floor); err == nil {
		h.telemetry.SetTotalDebt(debt)
	}
	h.telemetry.SetAvailableLiquidity(h.availableLiquidity)
}
