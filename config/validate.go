package config

import (
	"fmt"
	"math/big"
)

var (
	// MaxRiskPremiumBps caps sampled premium rates at 1000%.
	MaxRiskPremiumBps = uint64(100_000)

	oneRay, _ = new(big.Int).SetString(ray, 10)
)

// Validate rejects configurations the simulator cannot run.
func Validate(cfg *Config) error {
	if cfg.Steps <= 0 {
		return fmt.Errorf("steps: must be positive")
	}
	if cfg.Spokes <= 0 {
		return fmt.Errorf("spokes: must be positive")
	}
	if cfg.UsersPerSpoke <= 0 {
		return fmt.Errorf("users_per_spoke: must be positive")
	}
	maxAmount, err := cfg.MaxAmountInt()
	if err != nil {
		return err
	}
	if maxAmount.Sign() == 0 {
		return fmt.Errorf("max_amount: must be positive")
	}
	if cfg.RiskPremium.MinBps > cfg.RiskPremium.MaxBps {
		return fmt.Errorf("risk_premium: min_bps > max_bps")
	}
	if cfg.RiskPremium.MaxBps > MaxRiskPremiumBps {
		return fmt.Errorf("risk_premium: max_bps above %d", MaxRiskPremiumBps)
	}
	lo, hi, err := cfg.Interest.Bounds()
	if err != nil {
		return err
	}
	if lo.Cmp(oneRay) < 0 {
		return fmt.Errorf("interest: min_index_ray below one ray")
	}
	if lo.Cmp(hi) > 0 {
		return fmt.Errorf("interest: min_index_ray > max_index_ray")
	}
	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry: sample_ratio outside [0, 1]")
	}
	return nil
}
