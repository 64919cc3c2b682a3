package lending

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/KZMKBL/aave-v4/observability/metrics"
)

// Action names a public ledger operation for logs and metrics.
type Action string

const (
	ActionSupply            Action = "supply"
	ActionWithdraw          Action = "withdraw"
	ActionBorrow            Action = "borrow"
	ActionRepay             Action = "repay"
	ActionUpdateRiskPremium Action = "update_risk_premium"
)

// Hub is the central liquidity pool. It owns the supply and debt exchange
// rates, the accrual tick and the authoritative aggregate of every spoke.
//
// All exported methods of Hub, Spoke and User serialise on the hub's mutex;
// a mutating operation either completes with every invariant satisfied or
// fails and leaves the whole tree as it was before the call.
type Hub struct {
	mu sync.Mutex

	clock     Clock
	index     IndexSource
	premiums  PremiumSampler
	logger    *slog.Logger
	telemetry *metrics.LendingMetrics

	position
	drawnAssets        *big.Int
	availableLiquidity *big.Int
	lastUpdate         uint64

	// records is the hub's own ledger entry per spoke. It receives the same
	// deltas as the spoke but is maintained independently of it.
	records map[string]*position
	spokes  map[string]*Spoke
	order   []*Spoke
}

// Option customises a Hub at construction.
type Option func(*Hub)

// WithClock sets the tick source used for accrual.
func WithClock(c Clock) Option {
	return func(h *Hub) {
		if c != nil {
			h.clock = c
		}
	}
}

// WithIndexSource sets the per-tick growth index applied to base debt.
func WithIndexSource(src IndexSource) Option {
	return func(h *Hub) {
		if src != nil {
			h.index = src
		}
	}
}

// WithPremiumSampler sets the source of user risk-premium rates.
func WithPremiumSampler(s PremiumSampler) Option {
	return func(h *Hub) {
		if s != nil {
			h.premiums = s
		}
	}
}

// WithLogger sets the logger used for failure diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetrics overrides the metrics registry. Passing nil disables metrics.
func WithMetrics(m *metrics.LendingMetrics) Option {
	return func(h *Hub) { h.telemetry = m }
}

// NewHub constructs an empty hub. Without options the hub uses a manual clock
// at tick 1, no interest growth and a zero risk premium.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clock:              NewManualClock(),
		index:              NoGrowth(),
		premiums:           FixedPremium(0),
		logger:             slog.Default(),
		telemetry:          metrics.Lending(),
		position:           newPosition(),
		drawnAssets:        big.NewInt(0),
		availableLiquidity: big.NewInt(0),
		records:            make(map[string]*position),
		spokes:             make(map[string]*Spoke),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Spoke returns the spoke registered under id, creating it on first use.
func (h *Hub) Spoke(id string) *Spoke {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.spoke(id)
}

func (h *Hub) spoke(id string) *Spoke {
	if s, ok := h.spokes[id]; ok {
		return s
	}
	s := newSpoke(h, id)
	record := newPosition()
	h.spokes[id] = s
	h.records[id] = &record
	h.order = append(h.order, s)
	return s
}

// Spokes lists the registered spokes in creation order.
func (h *Hub) Spokes() []*Spoke {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Spoke(nil), h.order...)
}

// LastUpdate returns the tick at which interest was last accrued.
func (h *Hub) LastUpdate() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastUpdate
}

// DrawnAssets returns the base debt principal as of the last accrual.
func (h *Hub) DrawnAssets() *big.Int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return clone(h.drawnAssets)
}

// AvailableLiquidity returns the assets currently held by the pool.
func (h *Hub) AvailableLiquidity() *big.Int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return clone(h.availableLiquidity)
}

// Accrue applies the growth index for the current tick. Calling it again
// within the same tick has no effect.
func (h *Hub) Accrue() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.accrue()
}

func (h *Hub) accrue() error {
	now := h.clock.Now()
	if now == h.lastUpdate {
		return nil
	}
	grown, err := RayMul(h.drawnAssets, h.index.Index(now))
	if err != nil {
		return fmt.Errorf("accrue tick %d: %w", now, err)
	}
	h.drawnAssets = grown
	h.lastUpdate = now
	h.telemetry.RecordAccrual()
	return nil
}

// ToDrawnAssets converts base-debt shares into assets.
func (h *Hub) ToDrawnAssets(shares *big.Int, rounding Rounding) (*big.Int, error) {
	return h.view(func() (*big.Int, error) { return h.drawnAssetsOf(shares, rounding) })
}

// ToDrawnShares converts assets into base-debt shares.
func (h *Hub) ToDrawnShares(assets *big.Int, rounding Rounding) (*big.Int, error) {
	return h.view(func() (*big.Int, error) { return h.drawnSharesOf(assets, rounding) })
}

// ToSupplyAssets converts supply shares into assets.
func (h *Hub) ToSupplyAssets(shares *big.Int, rounding Rounding) (*big.Int, error) {
	return h.view(func() (*big.Int, error) { return h.supplyAssetsOf(shares, rounding) })
}

// ToSupplyShares converts assets into supply shares.
func (h *Hub) ToSupplyShares(assets *big.Int, rounding Rounding) (*big.Int, error) {
	return h.view(func() (*big.Int, error) { return h.supplySharesOf(assets, rounding) })
}

// TotalOutstandingPremium returns the pool-wide premium debt not captured in
// base terms.
func (h *Hub) TotalOutstandingPremium(rounding Rounding) (*big.Int, error) {
	return h.view(func() (*big.Int, error) { return h.premiumOf(h.position, rounding) })
}

// TotalSupplyAssets returns the assets backing all supply shares, including
// the virtual offset.
func (h *Hub) TotalSupplyAssets(rounding Rounding) (*big.Int, error) {
	return h.view(func() (*big.Int, error) { return h.supplyAssetsTotal(rounding) })
}

// Debt returns the pool-wide base and premium debt.
func (h *Hub) Debt(rounding Rounding) (Debt, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.accrue(); err != nil {
		return Debt{}, err
	}
	return h.debtOf(h.position, rounding)
}

// TotalDebt returns base plus premium debt across the pool.
func (h *Hub) TotalDebt(rounding Rounding) (*big.Int, error) {
	return h.view(func() (*big.Int, error) { return h.totalDebtOf(h.position, rounding) })
}

func (h *Hub) view(fn func() (*big.Int, error)) (*big.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.accrue(); err != nil {
		return nil, err
	}
	return fn()
}

// Conversion helpers below read the current state without accruing.

func (h *Hub) totalDrawnAssets() *big.Int { return add(h.drawnAssets, VirtualOffset) }

func (h *Hub) totalDrawnShares() *big.Int { return add(h.baseDrawnShares, VirtualOffset) }

func (h *Hub) drawnAssetsOf(shares *big.Int, rounding Rounding) (*big.Int, error) {
	return MulDiv(shares, h.totalDrawnAssets(), h.totalDrawnShares(), rounding)
}

func (h *Hub) drawnSharesOf(assets *big.Int, rounding Rounding) (*big.Int, error) {
	return MulDiv(assets, h.totalDrawnShares(), h.totalDrawnAssets(), rounding)
}

// premiumOf values the premium debt of p: the live worth of its ghost shares
// less the offset fixed when they were issued, plus crystallised premium.
func (h *Hub) premiumOf(p position, rounding Rounding) (*big.Int, error) {
	ghost, err := h.drawnAssetsOf(p.ghostDrawnShares, rounding)
	if err != nil {
		return nil, err
	}
	return add(sub(ghost, p.offset), p.unrealisedPremium), nil
}

func (h *Hub) debtOf(p position, rounding Rounding) (Debt, error) {
	base, err := h.drawnAssetsOf(p.baseDrawnShares, rounding)
	if err != nil {
		return Debt{}, err
	}
	premium, err := h.premiumOf(p, rounding)
	if err != nil {
		return Debt{}, err
	}
	return Debt{Base: base, Premium: premium}, nil
}

func (h *Hub) totalDebtOf(p position, rounding Rounding) (*big.Int, error) {
	debt, err := h.debtOf(p, rounding)
	if err != nil {
		return nil, err
	}
	return debt.Total(), nil
}

func (h *Hub) supplyAssetsTotal(rounding Rounding) (*big.Int, error) {
	premium, err := h.premiumOf(h.position, rounding)
	if err != nil {
		return nil, err
	}
	total := add(h.availableLiquidity, h.drawnAssets)
	total.Add(total, premium)
	total.Add(total, VirtualOffset)
	return total, nil
}

func (h *Hub) supplySharesTotal() *big.Int { return add(h.suppliedShares, VirtualOffset) }

func (h *Hub) supplyAssetsOf(shares *big.Int, rounding Rounding) (*big.Int, error) {
	total, err := h.supplyAssetsTotal(rounding)
	if err != nil {
		return nil, err
	}
	return MulDiv(shares, total, h.supplySharesTotal(), rounding)
}

func (h *Hub) supplySharesOf(assets *big.Int, rounding Rounding) (*big.Int, error) {
	total, err := h.supplyAssetsTotal(rounding)
	if err != nil {
		return nil, err
	}
	return MulDiv(assets, h.supplySharesTotal(), total, rounding)
}

// supply mints supply shares for amount, rounding down.
func (h *Hub) supply(amount *big.Int, spokeID string) (*big.Int, error) {
	shares, err := h.supplySharesOf(amount, Floor)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 {
		return nil, ErrZeroShares
	}
	h.suppliedShares = add(h.suppliedShares, shares)
	h.availableLiquidity = add(h.availableLiquidity, amount)
	record := h.records[spokeID]
	record.suppliedShares = add(record.suppliedShares, shares)
	return shares, nil
}

// withdraw burns the supply shares worth amount, rounding up.
func (h *Hub) withdraw(amount *big.Int, spokeID string) (*big.Int, error) {
	shares, err := h.supplySharesOf(amount, Ceil)
	if err != nil {
		return nil, err
	}
	h.suppliedShares = sub(h.suppliedShares, shares)
	h.availableLiquidity = sub(h.availableLiquidity, amount)
	record := h.records[spokeID]
	record.suppliedShares = sub(record.suppliedShares, shares)
	return shares, nil
}

// draw lends amount out of the pool. Premium bookkeeping is stale until the
// caller follows up with refresh.
func (h *Hub) draw(amount *big.Int, spokeID string) (*big.Int, error) {
	shares, err := h.drawnSharesOf(amount, Ceil)
	if err != nil {
		return nil, err
	}
	h.availableLiquidity = sub(h.availableLiquidity, amount)
	h.baseDrawnShares = add(h.baseDrawnShares, shares)
	h.drawnAssets = add(h.drawnAssets, amount)
	record := h.records[spokeID]
	record.baseDrawnShares = add(record.baseDrawnShares, shares)
	return shares, nil
}

// restore takes back repaid base and premium. Premium bookkeeping is stale
// until the caller follows up with refresh.
func (h *Hub) restore(baseAmount, premiumAmount *big.Int, spokeID string) (*big.Int, error) {
	shares, err := h.drawnSharesOf(baseAmount, Ceil)
	if err != nil {
		return nil, err
	}
	h.availableLiquidity = add(h.availableLiquidity, add(baseAmount, premiumAmount))
	h.drawnAssets = sub(h.drawnAssets, baseAmount)
	h.baseDrawnShares = sub(h.baseDrawnShares, shares)
	record := h.records[spokeID]
	record.baseDrawnShares = sub(record.baseDrawnShares, shares)
	return shares, nil
}

// refresh applies premium deltas to the hub and to its record of the spoke,
// checking bounds and debt monotonicity at each level.
func (h *Hub) refresh(ghostDelta, offsetDelta, unrealisedDelta *big.Int, spokeID string) error {
	before, err := h.debtBefore(h.position, h.hubSnapshot)
	if err != nil {
		return err
	}
	h.applyPremium(ghostDelta, offsetDelta, unrealisedDelta)
	if err := h.checkHub(); err != nil {
		return err
	}
	if err := h.checkDebt(before, h.position, h.hubSnapshot); err != nil {
		return err
	}

	record := h.records[spokeID]
	recordSnapshot := func() Snapshot { return h.recordSnapshot(spokeID) }
	before, err = h.debtBefore(*record, recordSnapshot)
	if err != nil {
		return err
	}
	record.applyPremium(ghostDelta, offsetDelta, unrealisedDelta)
	if err := h.checkRecord(spokeID); err != nil {
		return err
	}
	return h.checkDebt(before, *record, recordSnapshot)
}

// Snapshot captures the hub, its spokes and their users.
func (h *Hub) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.treeSnapshot()
}

func (h *Hub) hubSnapshot() Snapshot {
	s := positionSnapshot(LevelHub, "", h.position)
	s.DrawnAssets = clone(h.drawnAssets)
	s.AvailableLiquidity = clone(h.availableLiquidity)
	s.LastUpdate = h.lastUpdate
	if v, err := h.supplyAssetsTotal(Floor); err == nil {
		s.TotalSupplyAssets = v
	}
	if v, err := h.premiumOf(h.position, Floor); err == nil {
		s.TotalOutstandingPremium = v
	}
	h.decorate(&s, h.position)
	return s
}

func (h *Hub) recordSnapshot(id string) Snapshot {
	s := positionSnapshot(LevelSpokeRecord, id, *h.records[id])
	h.decorate(&s, *h.records[id])
	return s
}

func (h *Hub) spokeSnapshot(sp *Spoke, withUsers bool) Snapshot {
	s := positionSnapshot(LevelSpoke, sp.id, sp.position)
	h.decorate(&s, sp.position)
	if withUsers {
		for _, u := range sp.order {
			s.Children = append(s.Children, h.userSnapshot(u))
		}
	}
	return s
}

func (h *Hub) userSnapshot(u *User) Snapshot {
	s := positionSnapshot(LevelUser, u.id, u.position)
	s.RiskPremiumBps = u.riskPremium
	h.decorate(&s, u.position)
	return s
}

func (h *Hub) treeSnapshot() Snapshot {
	s := h.hubSnapshot()
	for _, sp := range h.order {
		s.Children = append(s.Children, h.spokeSnapshot(sp, true))
	}
	return s
}

// decorate fills derived debt values, leaving them nil when the captured
// state cannot be valued.
func (h *Hub) decorate(s *Snapshot, p position) {
	if debt, err := h.debtOf(p, Floor); err == nil {
		s.Debt = &debt
	}
	if ghost, err := h.drawnAssetsOf(p.ghostDrawnShares, Ceil); err == nil {
		s.GhostDebt = sub(ghost, p.offset)
	}
}
