// Package sim drives a liquidity hub with seeded random operations and audits
// the ledger after every step.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KZMKBL/aave-v4/config"
	"github.com/KZMKBL/aave-v4/native/lending"
	"github.com/KZMKBL/aave-v4/observability/metrics"
	"github.com/KZMKBL/aave-v4/observability/otel"
)

const tracerName = "github.com/KZMKBL/aave-v4/native/lending/sim"

// Step kinds beyond the ledger actions.
const (
	ActionRepayAll = "repay_all"
	ActionSkip     = "skip"
)

var idSpace = uuid.MustParse("6f1c3b0e-8a52-4c1d-9a43-5d2f0e7b9c11")

// Config parameterises a run.
type Config struct {
	Seed          uint64
	Steps         int
	Spokes        int
	UsersPerSpoke int
	MaxAmount     *big.Int
	MinPremiumBps uint64
	MaxPremiumBps uint64
	MinIndex      *big.Int
	MaxIndex      *big.Int

	Logger  *slog.Logger
	Metrics *metrics.LendingMetrics
}

// FromConfig builds a run configuration from a loaded config file.
func FromConfig(cfg *config.Config) (Config, error) {
	maxAmount, err := cfg.MaxAmountInt()
	if err != nil {
		return Config{}, err
	}
	lo, hi, err := cfg.Interest.Bounds()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Seed:          cfg.Seed,
		Steps:         cfg.Steps,
		Spokes:        cfg.Spokes,
		UsersPerSpoke: cfg.UsersPerSpoke,
		MaxAmount:     maxAmount,
		MinPremiumBps: cfg.RiskPremium.MinBps,
		MaxPremiumBps: cfg.RiskPremium.MaxBps,
		MinIndex:      lo,
		MaxIndex:      hi,
		Metrics:       metrics.Lending(),
	}, nil
}

// Report summarises a run.
type Report struct {
	Seed  uint64 `json:"seed" yaml:"seed"`
	Steps int    `json:"steps" yaml:"steps"`
	Ticks uint64 `json:"ticks" yaml:"ticks"`
	// Actions counts steps submitted to the ledger, by action.
	Actions map[string]int `json:"actions" yaml:"actions"`
	// Idle counts steps whose action had no legal amount to act on.
	Idle map[string]int `json:"idle,omitempty" yaml:"idle,omitempty"`
	// Rejected counts submitted steps that were rolled back, by action.
	Rejected map[string]int `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	// Failures counts rejected steps by error kind.
	Failures map[string]int   `json:"failures,omitempty" yaml:"failures,omitempty"`
	Final    lending.Snapshot `json:"final" yaml:"final"`
}

func newReport(cfg Config) Report {
	return Report{
		Seed:     cfg.Seed,
		Actions:  map[string]int{},
		Idle:     map[string]int{},
		Rejected: map[string]int{},
		Failures: map[string]int{},
	}
}

// TotalRejected sums rejected steps across actions.
func (r Report) TotalRejected() int {
	total := 0
	for _, n := range r.Rejected {
		total += n
	}
	return total
}

// Simulator owns a hub and the random stream that drives it.
type Simulator struct {
	cfg     Config
	hub     *lending.Hub
	clock   *lending.ManualClock
	rng     *rand.Rand
	users   []*lending.User
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics *metrics.LendingMetrics
}

// New validates cfg and registers the spokes and users of the run.
func New(cfg Config) (*Simulator, error) {
	switch {
	case cfg.Steps <= 0:
		return nil, fmt.Errorf("sim: steps must be positive")
	case cfg.Spokes <= 0 || cfg.UsersPerSpoke <= 0:
		return nil, fmt.Errorf("sim: spokes and users per spoke must be positive")
	case cfg.MaxAmount == nil || cfg.MaxAmount.Sign() <= 0:
		return nil, fmt.Errorf("sim: max amount must be positive")
	case cfg.MinIndex == nil || cfg.MaxIndex == nil:
		return nil, fmt.Errorf("sim: index bounds required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := lending.NewManualClock()
	hub := lending.NewHub(
		lending.WithClock(clock),
		lending.WithIndexSource(NewRandomIndex(cfg.Seed, cfg.MinIndex, cfg.MaxIndex)),
		lending.WithPremiumSampler(NewRandomPremium(cfg.Seed, cfg.MinPremiumBps, cfg.MaxPremiumBps)),
		lending.WithLogger(logger),
		lending.WithMetrics(cfg.Metrics),
	)
	s := &Simulator{
		cfg:     cfg,
		hub:     hub,
		clock:   clock,
		rng:     newRand(cfg.Seed, 0x2545f4914f6cdd1d),
		tracer:  otel.Tracer(tracerName),
		logger:  logger,
		metrics: cfg.Metrics,
	}
	for i := 0; i < cfg.Spokes; i++ {
		spoke := hub.Spoke(entityID(cfg.Seed, "spoke", i))
		for j := 0; j < cfg.UsersPerSpoke; j++ {
			s.users = append(s.users, spoke.User(entityID(cfg.Seed, spoke.ID()+"/user", j)))
		}
	}
	return s, nil
}

func entityID(seed uint64, kind string, n int) string {
	return uuid.NewSHA1(idSpace, []byte(fmt.Sprintf("%d/%s/%d", seed, kind, n))).String()
}

// Hub exposes the simulated ledger.
func (s *Simulator) Hub() *lending.Hub { return s.hub }

// Run executes the configured number of steps, auditing the ledger after
// each. It stops early when ctx is cancelled or an audit fails; the report
// reflects the steps executed so far.
func (s *Simulator) Run(ctx context.Context) (Report, error) {
	report := newReport(s.cfg)
	for step := 0; step < s.cfg.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return s.finish(report), err
		}
		action, submitted, err := s.step(ctx, step)
		report.Steps++
		switch {
		case !submitted:
			report.Idle[action]++
		case err != nil:
			report.Actions[action]++
			report.Rejected[action]++
			report.Failures[lending.ErrorKind(err)]++
		default:
			report.Actions[action]++
		}
		if submitted {
			s.metrics.RecordSimStep(action, err == nil)
		}
		if err := s.hub.Audit(); err != nil {
			s.logger.Error("ledger audit failed", "step", step, "action", action, "error", err)
			return s.finish(report), fmt.Errorf("audit after step %d (%s): %w", step, action, err)
		}
	}
	return s.finish(report), nil
}

func (s *Simulator) finish(report Report) Report {
	report.Ticks = s.clock.Now()
	report.Final = s.hub.Snapshot()
	return report
}

// step performs one random action. submitted is false when the action had
// nothing legal to do and the ledger was not called.
func (s *Simulator) step(ctx context.Context, n int) (action string, submitted bool, err error) {
	u := s.users[s.rng.IntN(len(s.users))]
	_, span := s.tracer.Start(ctx, "sim.step", trace.WithAttributes(
		attribute.Int("step", n),
		attribute.String("spoke", u.Spoke().ID()),
		attribute.String("user", u.ID()),
	))
	defer func() {
		span.SetAttributes(attribute.String("action", action), attribute.Bool("submitted", submitted))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, lending.ErrorKind(err))
		}
		span.End()
	}()

	var amount *big.Int
	switch roll := s.rng.IntN(12); {
	case roll < 3:
		action = string(lending.ActionSupply)
		amount = randBetween(s.rng, s.cfg.MaxAmount)
		_, err = u.Supply(amount)
	case roll < 5:
		action = string(lending.ActionWithdraw)
		limit, lerr := s.withdrawLimit(u)
		if lerr != nil || limit.Sign() == 0 {
			return action, false, lerr
		}
		amount = randBetween(s.rng, limit)
		_, err = u.Withdraw(amount)
	case roll < 8:
		action = string(lending.ActionBorrow)
		limit := minInt(s.hub.AvailableLiquidity(), s.cfg.MaxAmount)
		if limit.Sign() == 0 {
			return action, false, nil
		}
		amount = randBetween(s.rng, limit)
		_, err = u.Borrow(amount)
	case roll < 10:
		debt, derr := u.TotalDebt()
		if derr != nil || debt.Sign() <= 0 {
			return string(lending.ActionRepay), false, derr
		}
		if s.rng.IntN(3) == 0 {
			action, amount = ActionRepayAll, new(big.Int).Set(lending.MaxUint)
		} else {
			action, amount = string(lending.ActionRepay), randBetween(s.rng, debt)
		}
		_, err = u.Repay(amount)
	case roll < 11:
		action = string(lending.ActionUpdateRiskPremium)
		err = u.UpdateRiskPremium()
	default:
		action = ActionSkip
		s.clock.Advance(1)
		return action, true, nil
	}
	if amount != nil {
		span.SetAttributes(attribute.String("amount", amount.String()))
	}
	if err != nil {
		s.logger.Debug("sim step rejected", "step", n, "action", action, "user", u.ID(), "error", err)
	}
	return action, true, err
}

func (s *Simulator) withdrawLimit(u *lending.User) (*big.Int, error) {
	balance, err := u.SuppliedBalance()
	if err != nil {
		return nil, err
	}
	return minInt(balance, s.hub.AvailableLiquidity()), nil
}

func minInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}
