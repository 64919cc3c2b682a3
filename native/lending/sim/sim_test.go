package sim

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/KZMKBL/aave-v4/config"
	"github.com/KZMKBL/aave-v4/native/lending"
	"github.com/KZMKBL/aave-v4/observability/metrics"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseConfig(seed uint64) Config {
	return Config{
		Seed:          seed,
		Steps:         400,
		Spokes:        2,
		UsersPerSpoke: 3,
		MaxAmount:     big.NewInt(1_000_000_000),
		MinPremiumBps: 0,
		MaxPremiumBps: 5_000,
		MinIndex:      lending.Ray(),
		MaxIndex:      lending.Ray(),
		Logger:        quietLogger(),
	}
}

func TestRunWithoutGrowthAcceptsEveryStep(t *testing.T) {
	cfg := baseConfig(7)
	s, err := New(cfg)
	require.NoError(t, err)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, cfg.Steps, report.Steps)
	require.Zero(t, report.TotalRejected(), "failures: %v", report.Failures)

	submitted := 0
	for _, n := range report.Actions {
		submitted += n
	}
	idle := 0
	for _, n := range report.Idle {
		idle += n
	}
	require.Equal(t, cfg.Steps, submitted+idle)

	// With a flat index every exchange rate stays at one, so pool assets
	// equal supply shares exactly.
	final := report.Final
	require.Equal(t, lending.LevelHub, final.Level)
	require.Len(t, final.Children, cfg.Spokes)
	assets := new(big.Int).Add(final.AvailableLiquidity, final.DrawnAssets)
	require.Zero(t, assets.Cmp(final.SuppliedShares), "assets %s shares %s", assets, final.SuppliedShares)
	require.Zero(t, final.DrawnAssets.Cmp(final.BaseDrawnShares))
	require.Equal(t, uint64(report.Actions[ActionSkip])+1, report.Ticks)
}

func TestRunWithGrowthKeepsLedgerConsistent(t *testing.T) {
	cfg := baseConfig(11)
	cfg.Steps = 600
	cfg.MaxIndex = new(big.Int).Add(lending.Ray(), new(big.Int).Div(lending.Ray(), big.NewInt(1_000)))

	s, err := New(cfg)
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, cfg.Steps, report.Steps)
	require.NoError(t, s.Hub().Audit())

	// Under growth, steps are only rejected by rounding at the bounds and debt checks.
	for kind := range report.Failures {
		require.Contains(t, []string{"bounds", "debt_increase"}, kind, "failures: %v", report.Failures)
	}

	for _, child := range report.Final.Children {
		require.Equal(t, lending.LevelSpoke, child.Level)
		require.Len(t, child.Children, cfg.UsersPerSpoke)
	}
}

func TestRunIsDeterministicForSeed(t *testing.T) {
	cfg := baseConfig(23)
	cfg.MaxIndex = new(big.Int).Add(lending.Ray(), big.NewInt(1_000_000_000_000_000_000))

	run := func() Report {
		s, err := New(cfg)
		require.NoError(t, err)
		report, err := s.Run(context.Background())
		require.NoError(t, err)
		return report
	}
	first, second := run(), run()
	require.Equal(t, first.Actions, second.Actions)
	require.Equal(t, first.Rejected, second.Rejected)
	require.Equal(t, first.Ticks, second.Ticks)
	require.Equal(t, first.Final.String(), second.Final.String())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	s, err := New(baseConfig(3))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, report.Steps)
	require.Equal(t, lending.LevelHub, report.Final.Level)
}

func TestRunRecordsStepMetrics(t *testing.T) {
	m := metrics.Lending()
	cfg := baseConfig(5)
	cfg.Metrics = m
	skips := m.SimStepsVec().WithLabelValues(ActionSkip, "ok")
	before := testutil.ToFloat64(skips)

	s, err := New(cfg)
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, float64(report.Actions[ActionSkip]), testutil.ToFloat64(skips)-before)
}

func TestNewAssignsStableIdentities(t *testing.T) {
	a, err := New(baseConfig(9))
	require.NoError(t, err)
	b, err := New(baseConfig(9))
	require.NoError(t, err)
	c, err := New(baseConfig(10))
	require.NoError(t, err)

	ids := func(s *Simulator) []string {
		var out []string
		for _, sp := range s.Hub().Spokes() {
			out = append(out, sp.ID())
			for _, u := range sp.Users() {
				out = append(out, u.ID())
			}
		}
		return out
	}
	require.Equal(t, ids(a), ids(b))
	require.NotEqual(t, ids(a), ids(c))
	require.Len(t, ids(a), 2+2*3)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"steps":  func(c *Config) { c.Steps = 0 },
		"spokes": func(c *Config) { c.Spokes = 0 },
		"users":  func(c *Config) { c.UsersPerSpoke = 0 },
		"amount": func(c *Config) { c.MaxAmount = big.NewInt(0) },
		"index":  func(c *Config) { c.MinIndex = nil },
	}
	for name, mutate := range cases {
		cfg := baseConfig(1)
		mutate(&cfg)
		_, err := New(cfg)
		require.Error(t, err, name)
	}
}

func TestFromConfig(t *testing.T) {
	cfg, err := FromConfig(config.Default())
	require.NoError(t, err)
	require.Equal(t, config.Default().Steps, cfg.Steps)
	require.Zero(t, cfg.MinIndex.Cmp(lending.Ray()))
	require.Equal(t, 1, cfg.MaxIndex.Cmp(cfg.MinIndex))
	require.NotNil(t, cfg.Metrics)
}
