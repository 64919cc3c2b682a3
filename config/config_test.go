package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "hubsim.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Steps != Default().Steps || cfg.Spokes != Default().Spokes {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if *reloaded != *cfg {
		t.Fatalf("reloaded config differs: %+v vs %+v", reloaded, cfg)
	}
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hubsim.toml")
	contents := `Seed = 42
Steps = 250
Spokes = 2
UsersPerSpoke = 3
MaxAmount = "5000000"

[RiskPremium]
MinBps = 100
MaxBps = 2500

[Interest]
MinIndexRay = "1000000000000000000000000000"
MaxIndexRay = "1000500000000000000000000000"

[Logging]
Env = "ci"
Level = "debug"

[Telemetry]
MetricsAddr = "127.0.0.1:9464"
Endpoint = "collector:4318"
Insecure = true
Traces = true
SampleRatio = 0.25
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Seed != 42 || cfg.Steps != 250 || cfg.Spokes != 2 || cfg.UsersPerSpoke != 3 {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.RiskPremium != (RiskPremium{MinBps: 100, MaxBps: 2500}) {
		t.Fatalf("unexpected risk premium: %+v", cfg.RiskPremium)
	}
	lo, hi, err := cfg.Interest.Bounds()
	if err != nil {
		t.Fatalf("interest bounds: %v", err)
	}
	if lo.String() != "1000000000000000000000000000" || hi.String() != "1000500000000000000000000000" {
		t.Fatalf("unexpected index bounds: %s %s", lo, hi)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.Metrics || cfg.Telemetry.SampleRatio != 0.25 || cfg.Telemetry.MetricsAddr != "127.0.0.1:9464" {
		t.Fatalf("unexpected telemetry: %+v", cfg.Telemetry)
	}
	max, err := cfg.MaxAmountInt()
	if err != nil || max.Int64() != 5_000_000 {
		t.Fatalf("unexpected max amount: %v %v", max, err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hubsim.toml")
	if err := os.WriteFile(path, []byte("Steps = 10\nCollateralFactor = 7\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "CollateralFactor") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero steps", func(c *Config) { c.Steps = 0 }, "steps"},
		{"zero spokes", func(c *Config) { c.Spokes = 0 }, "spokes"},
		{"zero users", func(c *Config) { c.UsersPerSpoke = 0 }, "users_per_spoke"},
		{"bad amount", func(c *Config) { c.MaxAmount = "1e18" }, "MaxAmount"},
		{"zero amount", func(c *Config) { c.MaxAmount = "0" }, "max_amount"},
		{"premium order", func(c *Config) { c.RiskPremium = RiskPremium{MinBps: 10, MaxBps: 5} }, "min_bps > max_bps"},
		{"premium cap", func(c *Config) { c.RiskPremium.MaxBps = MaxRiskPremiumBps + 1 }, "max_bps above"},
		{"index below ray", func(c *Config) { c.Interest.MinIndexRay = "999" }, "below one ray"},
		{"index order", func(c *Config) { c.Interest.MaxIndexRay = ray; c.Interest.MinIndexRay = "1000000000000000000000000001" }, "min_index_ray > max_index_ray"},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }, "sample_ratio"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
