package metrics

import (
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics tracks ledger operations, rejected operations and the
// headline balances of the liquidity hub.
type LendingMetrics struct {
	operations         *prometheus.CounterVec
	violations         *prometheus.CounterVec
	accruals           prometheus.Counter
	totalDebt          prometheus.Gauge
	availableLiquidity prometheus.Gauge
	simSteps           *prometheus.CounterVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the lazily-initialised lending metrics registry.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hub",
				Subsystem: "lending",
				Name:      "operations_total",
				Help:      "Ledger operations segmented by action and outcome.",
			}, []string{"action", "outcome"}),
			violations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hub",
				Subsystem: "lending",
				Name:      "invariant_violations_total",
				Help:      "Failed consistency checks segmented by kind and ledger level.",
			}, []string{"kind", "level"}),
			accruals: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "hub",
				Subsystem: "lending",
				Name:      "accruals_total",
				Help:      "Number of ticks at which base debt growth was applied.",
			}),
			totalDebt: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "hub",
				Subsystem: "lending",
				Name:      "total_debt",
				Help:      "Base plus premium debt across the hub, rounded down.",
			}),
			availableLiquidity: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "hub",
				Subsystem: "lending",
				Name:      "available_liquidity",
				Help:      "Assets currently held by the hub.",
			}),
			simSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "hub",
				Subsystem: "sim",
				Name:      "steps_total",
				Help:      "Simulation steps segmented by action and outcome.",
			}, []string{"action", "outcome"}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.violations,
			lendingRegistry.accruals,
			lendingRegistry.totalDebt,
			lendingRegistry.availableLiquidity,
			lendingRegistry.simSteps,
		)
	})
	return lendingRegistry
}

func outcomeLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "rejected"
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "unknown"
	}
	return v
}

// RecordOperation counts a completed or rejected ledger operation.
func (m *LendingMetrics) RecordOperation(action string, ok bool) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(action), outcomeLabel(ok)).Inc()
}

// RecordViolation counts a failed consistency check.
func (m *LendingMetrics) RecordViolation(kind, level string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(normalizeLabel(kind), normalizeLabel(level)).Inc()
}

func (m *LendingMetrics) RecordAccrual() {
	if m == nil {
		return
	}
	m.accruals.Inc()
}

func (m *LendingMetrics) SetTotalDebt(amount *big.Int) {
	if m == nil {
		return
	}
	m.totalDebt.Set(bigToFloat(amount))
}

func (m *LendingMetrics) SetAvailableLiquidity(amount *big.Int) {
	if m == nil {
		return
	}
	m.availableLiquidity.Set(bigToFloat(amount))
}

// RecordSimStep counts a simulation step.
func (m *LendingMetrics) RecordSimStep(action string, ok bool) {
	if m == nil {
		return
	}
	m.simSteps.WithLabelValues(normalizeLabel(action), outcomeLabel(ok)).Inc()
}

// OperationsVec exposes the operations counter for scraping in tests.
func (m *LendingMetrics) OperationsVec() *prometheus.CounterVec { return m.operations }

// ViolationsVec exposes the violations counter for scraping in tests.
func (m *LendingMetrics) ViolationsVec() *prometheus.CounterVec { return m.violations }

func (m *LendingMetrics) AccrualsCounter() prometheus.Counter { return m.accruals }

func (m *LendingMetrics) TotalDebtGauge() prometheus.Gauge { return m.totalDebt }

func (m *LendingMetrics) AvailableLiquidityGauge() prometheus.Gauge { return m.availableLiquidity }

func (m *LendingMetrics) SimStepsVec() *prometheus.CounterVec { return m.simSteps }

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact && math.IsInf(f, 0) {
		return math.Copysign(math.MaxFloat64, f)
	}
	return f
}
