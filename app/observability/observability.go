// Package observability builds the logger, metrics registry and tracer that
// every module receives.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	leaderboardmetrics "github.com/thpsrun/website-sub000/app/observability/metrics/leaderboard"
)

// Config selects how logs are written and where metrics are served.
type Config struct {
	ServiceName    string
	Environment    string
	LogLevel       string
	LogFormat      string
	MetricsAddress string
	// Output receives log lines. Defaults to stdout.
	Output io.Writer
}

// Provider owns the process-wide logger.
type Provider struct {
	Logger *slog.Logger
}

// Registry holds the metrics and tracing handles modules record into.
type Registry struct {
	Prometheus         *prometheus.Registry
	Tracer             trace.Tracer
	LeaderboardMetrics leaderboardmetrics.LeaderboardMetrics
}

type Observability struct {
	Provider *Provider
	Registry *Registry
}

// Init wires logging, metrics and tracing. Spans go to the global otel
// provider, which is a no-op unless the process installs one.
func Init(ctx context.Context, cfg Config) (Observability, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	logger, err := NewLogger(out, cfg)
	if err != nil {
		return Observability{}, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	obs := Observability{
		Provider: &Provider{Logger: logger},
		Registry: &Registry{
			Prometheus:         reg,
			Tracer:             otel.Tracer(cfg.ServiceName),
			LeaderboardMetrics: leaderboardmetrics.NewPrometheusMetrics(reg),
		},
	}

	logger.InfoContext(ctx, "observability initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
	)
	return obs, nil
}

// NewNoop returns an Observability that discards logs, metrics and spans.
func NewNoop() Observability {
	return Observability{
		Provider: &Provider{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))},
		Registry: &Registry{
			Prometheus:         prometheus.NewRegistry(),
			Tracer:             noop.NewTracerProvider().Tracer("noop"),
			LeaderboardMetrics: leaderboardmetrics.NoOpMetrics{},
		},
	}
}

// NewLogger builds a JSON or text slog logger at the configured level.
func NewLogger(w io.Writer, cfg Config) (*slog.Logger, error) {
	var level slog.Level
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "", "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}

	logger := slog.New(handler)
	if cfg.ServiceName != "" {
		logger = logger.With(slog.String("service", cfg.ServiceName))
	}
	return logger, nil
}
