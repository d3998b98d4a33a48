package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thpsrun/website-sub000/app/observability"
	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig                 `yaml:"postgres"`
	Points        leaderboarddomain.PointsConfig `yaml:"points"`
	Streak        leaderboarddomain.StreakConfig `yaml:"streak"`
	Build         BuildConfig                    `yaml:"build"`
	Server        ServerConfig                   `yaml:"server"`
	Worker        WorkerConfig                   `yaml:"worker"`
	Observability ObservabilityConfig            `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// BuildConfig holds defaults for build-run-history.
type BuildConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// ServerConfig holds the HTTP read API settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// WorkerConfig holds the periodic job schedule. A zero interval disables the job.
type WorkerConfig struct {
	StreakInterval  time.Duration `yaml:"streak_interval"`
	RebuildInterval time.Duration `yaml:"rebuild_interval"`
	// RebuildRate caps leaderboards rebuilt per second by the worker.
	RebuildRate float64 `yaml:"rebuild_rate"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"` // json|text
	MetricsAddress string `yaml:"metrics_address"`
	Environment    string `yaml:"environment"`
}

// Default returns a config with every optional field filled in.
func Default() *Config {
	scoring := leaderboarddomain.DefaultScoringConfig()
	return &Config{
		Points: scoring.Points,
		Streak: scoring.Streak,
		Build:  BuildConfig{Concurrency: 1},
		Server: ServerConfig{Address: ":8080"},
		Worker: WorkerConfig{
			StreakInterval:  24 * time.Hour,
			RebuildInterval: 0,
			RebuildRate:     5,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Scoring returns the scoring settings the domain needs.
func (c *Config) Scoring() leaderboarddomain.ScoringConfig {
	return leaderboarddomain.ScoringConfig{Points: c.Points, Streak: c.Streak}
}

// LoadConfig loads the configuration from a YAML file, then applies
// environment overrides. A missing file falls back to environment only.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return loadConfigFromEnv()
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	cfg := Default()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("SRL_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"SRL_POINTS_MAX_FG", &cfg.Points.MaxFG},
		{"SRL_POINTS_MAX_IL", &cfg.Points.MaxIL},
		{"SRL_POINTS_MAX_CE", &cfg.Points.MaxCE},
		{"SRL_STREAK_MAX_MONTHS", &cfg.Streak.MaxMonths},
		{"SRL_BUILD_CONCURRENCY", &cfg.Build.Concurrency},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %v", e.name, err)
		}
		*e.dst = n
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"SRL_STREAK_BONUS_FG", &cfg.Streak.BonusFG},
		{"SRL_STREAK_BONUS_IL", &cfg.Streak.BonusIL},
		{"SRL_WORKER_REBUILD_RATE", &cfg.Worker.RebuildRate},
	}
	for _, e := range floats {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s value: %v", e.name, err)
		}
		*e.dst = f
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"SRL_WORKER_STREAK_INTERVAL", &cfg.Worker.StreakInterval},
		{"SRL_WORKER_REBUILD_INTERVAL", &cfg.Worker.RebuildInterval},
	}
	for _, e := range durations {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s value: %v", e.name, err)
		}
		*e.dst = d
	}
	return nil
}

func ToObsConfig(appCfg *Config) observability.Config {
	return observability.Config{
		ServiceName:    "srl",
		Environment:    appCfg.Observability.Environment,
		LogLevel:       appCfg.Observability.LogLevel,
		LogFormat:      appCfg.Observability.LogFormat,
		MetricsAddress: appCfg.Observability.MetricsAddress,
	}
}
