package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config drives a hub simulation run.
type Config struct {
	Seed          uint64 `toml:"Seed"`
	Steps         int    `toml:"Steps"`
	Spokes        int    `toml:"Spokes"`
	UsersPerSpoke int    `toml:"UsersPerSpoke"`
	// MaxAmount caps a single supply or borrow, as a decimal integer.
	MaxAmount string `toml:"MaxAmount"`

	RiskPremium RiskPremium `toml:"RiskPremium"`
	Interest    Interest    `toml:"Interest"`
	Logging     Logging     `toml:"Logging"`
	Telemetry   Telemetry   `toml:"Telemetry"`
}

// RiskPremium bounds the rates sampled for users, in basis points.
type RiskPremium struct {
	MinBps uint64 `toml:"MinBps"`
	MaxBps uint64 `toml:"MaxBps"`
}

// Interest bounds the per-tick growth index, as ray-denominated decimals.
type Interest struct {
	MinIndexRay string `toml:"MinIndexRay"`
	MaxIndexRay string `toml:"MaxIndexRay"`
}

type Logging struct {
	Env    string `toml:"Env"`
	Level  string `toml:"Level"`
	Format string `toml:"Format"`
}

// Telemetry configures OTLP export and the prometheus listener. An empty
// endpoint disables export; an empty MetricsAddr disables the listener.
type Telemetry struct {
	MetricsAddr string  `toml:"MetricsAddr"`
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

const (
	ray        = "1000000000000000000000000000"
	defaultMax = "1000000000000000000000000"
)

// Default returns the configuration written when no file exists.
func Default() *Config {
	return &Config{
		Seed:          1,
		Steps:         1000,
		Spokes:        3,
		UsersPerSpoke: 4,
		MaxAmount:     defaultMax,
		RiskPremium:   RiskPremium{MinBps: 0, MaxBps: 5_000},
		Interest: Interest{
			MinIndexRay: ray,
			MaxIndexRay: "1000100000000000000000000000",
		},
		Logging: Logging{Env: "local", Level: "info", Format: "json"},
	}
}

// Load loads the configuration from the given path, writing and returning
// the default configuration when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// MaxAmountInt parses MaxAmount.
func (c *Config) MaxAmountInt() (*big.Int, error) {
	return parseAmount("MaxAmount", c.MaxAmount)
}

// Bounds parses the index bounds.
func (i Interest) Bounds() (*big.Int, *big.Int, error) {
	lo, err := parseAmount("Interest.MinIndexRay", i.MinIndexRay)
	if err != nil {
		return nil, nil, err
	}
	hi, err := parseAmount("Interest.MaxIndexRay", i.MaxIndexRay)
	if err != nil {
		return nil, nil, err
	}
	return lo, hi, nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s: value required", field)
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s: %q is not a decimal integer", field, raw)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%s: must not be negative", field)
	}
	return v, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
