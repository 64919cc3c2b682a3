package lending

import (
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Snapshot is a point-in-time copy of an entity's fields used for
// diagnostics and reporting. Derived values are nil when they could not be
// computed from the captured state.
type Snapshot struct {
	Level             Level    `json:"level" yaml:"level"`
	ID                string   `json:"id,omitempty" yaml:"id,omitempty"`
	BaseDrawnShares   *big.Int `json:"baseDrawnShares" yaml:"baseDrawnShares"`
	GhostDrawnShares  *big.Int `json:"ghostDrawnShares" yaml:"ghostDrawnShares"`
	Offset            *big.Int `json:"offset" yaml:"offset"`
	UnrealisedPremium *big.Int `json:"unrealisedPremium" yaml:"unrealisedPremium"`
	SuppliedShares    *big.Int `json:"suppliedShares" yaml:"suppliedShares"`
	RiskPremiumBps    uint64   `json:"riskPremiumBps,omitempty" yaml:"riskPremiumBps,omitempty"`
	GhostDebt         *big.Int `json:"ghostDebt,omitempty" yaml:"ghostDebt,omitempty"`
	Debt              *Debt    `json:"debt,omitempty" yaml:"debt,omitempty"`

	DrawnAssets             *big.Int `json:"drawnAssets,omitempty" yaml:"drawnAssets,omitempty"`
	AvailableLiquidity      *big.Int `json:"availableLiquidity,omitempty" yaml:"availableLiquidity,omitempty"`
	TotalSupplyAssets       *big.Int `json:"totalSupplyAssets,omitempty" yaml:"totalSupplyAssets,omitempty"`
	TotalOutstandingPremium *big.Int `json:"totalOutstandingPremium,omitempty" yaml:"totalOutstandingPremium,omitempty"`
	LastUpdate              uint64   `json:"lastUpdate,omitempty" yaml:"lastUpdate,omitempty"`

	Children []Snapshot `json:"children,omitempty" yaml:"children,omitempty"`
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "-"
	}
	if v.IsInt64() {
		return printer.Sprintf("%d", v.Int64())
	}
	return v.String()
}

func formatBps(bps uint64) string {
	return printer.Sprintf("%.2f%%", float64(bps)/100)
}

// String renders the snapshot and its children as an indented field dump.
func (s Snapshot) String() string {
	var b strings.Builder
	s.write(&b, 0)
	return b.String()
}

func (s Snapshot) write(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	if s.ID != "" {
		fmt.Fprintf(b, "%s--- %s %s ---\n", indent, s.Level, s.ID)
	} else {
		fmt.Fprintf(b, "%s--- %s ---\n", indent, s.Level)
	}
	line := func(name, value string) {
		fmt.Fprintf(b, "%s%-26s %s\n", indent, name, value)
	}
	if s.DrawnAssets != nil {
		line("drawnAssets", formatAmount(s.DrawnAssets))
	}
	line("baseDrawnShares", formatAmount(s.BaseDrawnShares))
	line("ghostDrawnShares", formatAmount(s.GhostDrawnShares))
	line("offset", formatAmount(s.Offset))
	line("ghostDebt", formatAmount(s.GhostDebt))
	line("unrealisedPremium", formatAmount(s.UnrealisedPremium))
	line("suppliedShares", formatAmount(s.SuppliedShares))
	if s.Level == LevelUser {
		line("riskPremium", formatBps(s.RiskPremiumBps))
	}
	if s.AvailableLiquidity != nil {
		line("availableLiquidity", formatAmount(s.AvailableLiquidity))
		line("totalSupplyAssets", formatAmount(s.TotalSupplyAssets))
		line("totalOutstandingPremium", formatAmount(s.TotalOutstandingPremium))
		line("lastUpdate", printer.Sprintf("%d", s.LastUpdate))
	}
	if s.Debt != nil {
		line("debt.base", formatAmount(s.Debt.Base))
		line("debt.premium", formatAmount(s.Debt.Premium))
		line("debt.total", formatAmount(s.Debt.Total()))
	}
	for _, child := range s.Children {
		child.write(b, depth+1)
	}
}

// LogValue flattens the snapshot into a slog group. Children are summarised
// by count to keep failure records bounded.
func (s Snapshot) LogValue() slog.Value {
	str := func(v *big.Int) string {
		if v == nil {
			return ""
		}
		return v.String()
	}
	attrs := []slog.Attr{
		slog.String("level", string(s.Level)),
		slog.String("id", s.ID),
		slog.String("baseDrawnShares", str(s.BaseDrawnShares)),
		slog.String("ghostDrawnShares", str(s.GhostDrawnShares)),
		slog.String("offset", str(s.Offset)),
		slog.String("unrealisedPremium", str(s.UnrealisedPremium)),
		slog.String("suppliedShares", str(s.SuppliedShares)),
	}
	if s.Level == LevelUser {
		attrs = append(attrs, slog.Uint64("riskPremiumBps", s.RiskPremiumBps))
	}
	if s.Debt != nil {
		attrs = append(attrs,
			slog.String("baseDebt", str(s.Debt.Base)),
			slog.String("premiumDebt", str(s.Debt.Premium)),
		)
	}
	if s.AvailableLiquidity != nil {
		attrs = append(attrs,
			slog.String("drawnAssets", str(s.DrawnAssets)),
			slog.String("availableLiquidity", str(s.AvailableLiquidity)),
			slog.String("totalSupplyAssets", str(s.TotalSupplyAssets)),
			slog.String("totalOutstandingPremium", str(s.TotalOutstandingPremium)),
			slog.Uint64("lastUpdate", s.LastUpdate),
		)
	}
	if len(s.Children) > 0 {
		attrs = append(attrs, slog.Int("children", len(s.Children)))
	}
	return slog.GroupValue(attrs...)
}

// Find returns the first snapshot in the tree with the given level and id.
func (s Snapshot) Find(level Level, id string) (Snapshot, bool) {
	if s.Level == level && s.ID == id {
		return s, true
	}
	for _, child := range s.Children {
		if found, ok := child.Find(level, id); ok {
			return found, true
		}
	}
	return Snapshot{}, false
}

func positionSnapshot(level Level, id string, p position) Snapshot {
	return Snapshot{
		Level:             level,
		ID:                id,
		BaseDrawnShares:   clone(p.baseDrawnShares),
		GhostDrawnShares:  clone(p.ghostDrawnShares),
		Offset:            clone(p.offset),
		UnrealisedPremium: clone(p.unrealisedPremium),
		SuppliedShares:    clone(p.suppliedShares),
	}
}
