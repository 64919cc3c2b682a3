package lending

import "math/big"

// Level names the tier of the ledger an entity belongs to.
type Level string

const (
	LevelHub   Level = "hub"
	LevelSpoke Level = "spoke"
	LevelUser  Level = "user"

	// LevelSpokeRecord identifies the hub's own ledger entry for a spoke,
	// kept independently of the spoke's self-reported aggregate.
	LevelSpokeRecord Level = "hub.spoke"
)

// Debt splits an outstanding liability into its base-rate principal and its
// risk-premium surcharge.
type Debt struct {
	Base    *big.Int `json:"base" yaml:"base"`
	Premium *big.Int `json:"premium" yaml:"premium"`
}

// Total returns Base + Premium.
func (d Debt) Total() *big.Int {
	return add(clone(d.Base), clone(d.Premium))
}

// position holds the five accounting fields mirrored at every level.
type position struct {
	baseDrawnShares   *big.Int
	ghostDrawnShares  *big.Int
	offset            *big.Int
	unrealisedPremium *big.Int
	suppliedShares    *big.Int
}

func newPosition() position {
	return position{
		baseDrawnShares:   big.NewInt(0),
		ghostDrawnShares:  big.NewInt(0),
		offset:            big.NewInt(0),
		unrealisedPremium: big.NewInt(0),
		suppliedShares:    big.NewInt(0),
	}
}

func (p position) clone() position {
	return position{
		baseDrawnShares:   clone(p.baseDrawnShares),
		ghostDrawnShares:  clone(p.ghostDrawnShares),
		offset:            clone(p.offset),
		unrealisedPremium: clone(p.unrealisedPremium),
		suppliedShares:    clone(p.suppliedShares),
	}
}

// applyPremium adds the premium-side deltas carried by a refresh.
func (p *position) applyPremium(ghostDelta, offsetDelta, unrealisedDelta *big.Int) {
	p.ghostDrawnShares = add(p.ghostDrawnShares, ghostDelta)
	p.offset = add(p.offset, offsetDelta)
	p.unrealisedPremium = add(p.unrealisedPremium, unrealisedDelta)
}

func (p *position) add(o position) {
	p.baseDrawnShares = add(p.baseDrawnShares, o.baseDrawnShares)
	p.ghostDrawnShares = add(p.ghostDrawnShares, o.ghostDrawnShares)
	p.offset = add(p.offset, o.offset)
	p.unrealisedPremium = add(p.unrealisedPremium, o.unrealisedPremium)
	p.suppliedShares = add(p.suppliedShares, o.suppliedShares)
}

type namedValue struct {
	name  string
	value *big.Int
}

func (p position) fields() []namedValue {
	return []namedValue{
		{"baseDrawnShares", p.baseDrawnShares},
		{"ghostDrawnShares", p.ghostDrawnShares},
		{"offset", p.offset},
		{"unrealisedPremium", p.unrealisedPremium},
		{"suppliedShares", p.suppliedShares},
	}
}

// firstMismatch returns the name of the first field where p and o differ.
func (p position) firstMismatch(o position) (string, *big.Int, *big.Int, bool) {
	mine, theirs := p.fields(), o.fields()
	for i := range mine {
		if mine[i].value.Cmp(theirs[i].value) != 0 {
			return mine[i].name, mine[i].value, theirs[i].value, true
		}
	}
	return "", nil, nil, false
}
