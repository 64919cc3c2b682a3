package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/KZMKBL/aave-v4/config"
	"github.com/KZMKBL/aave-v4/native/lending/sim"
	"github.com/KZMKBL/aave-v4/observability/logging"
	"github.com/KZMKBL/aave-v4/observability/otel"
)

const serviceName = "hubsim"

// output is the document printed on stdout: the run report followed by the
// ledger metrics recorded during the run.
type output struct {
	sim.Report `yaml:",inline"`
	Metrics    map[string]float64 `yaml:"metrics,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "hubsim: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "./hubsim.toml", "Path to simulator configuration file")
	steps := fs.Int("steps", 0, "Override the configured number of steps")
	seed := fs.Uint64("seed", 0, "Override the configured seed")
	metricsAddr := fs.String("metrics-addr", "", "Serve prometheus metrics on this address while the run lasts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *steps > 0 {
		cfg.Steps = *steps
	}
	if *seed > 0 {
		cfg.Seed = *seed
	}
	if *metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = *metricsAddr
	}

	logger, err := logging.Setup(stderr, logging.Config{
		Service:     serviceName,
		Environment: cfg.Logging.Env,
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	if cfg.Telemetry.Endpoint != "" {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: serviceName,
			Environment: cfg.Logging.Env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     otel.ParseHeaders(cfg.Telemetry.Headers),
			Traces:      cfg.Telemetry.Traces,
			Metrics:     cfg.Telemetry.Metrics,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
	}

	if cfg.Telemetry.MetricsAddr != "" {
		_, shutdown, err := serveMetrics(cfg.Telemetry.MetricsAddr, logger)
		if err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(stopCtx); err != nil {
				logger.Warn("metrics shutdown failed", "error", err)
			}
		}()
	}

	simCfg, err := sim.FromConfig(cfg)
	if err != nil {
		return err
	}
	simCfg.Logger = logger
	simulator, err := sim.New(simCfg)
	if err != nil {
		return err
	}

	logger.Info("simulation starting", "seed", cfg.Seed, "steps", cfg.Steps, "spokes", cfg.Spokes, "usersPerSpoke", cfg.UsersPerSpoke)
	report, runErr := simulator.Run(ctx)
	logger.Info("simulation finished",
		"steps", report.Steps,
		"ticks", report.Ticks,
		"rejected", report.TotalRejected(),
	)

	series, err := gatherMetrics(prometheus.DefaultGatherer)
	if err != nil {
		logger.Warn("gather metrics failed", "error", err)
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(output{Report: report, Metrics: series}); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if errors.Is(runErr, context.Canceled) {
		logger.Warn("simulation interrupted", "steps", report.Steps)
		return nil
	}
	return runErr
}
