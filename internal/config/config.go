package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// APIConfig configures the HTTP API process.
type APIConfig struct {
	Addr            string        `envconfig:"KINGDOM_API_ADDR" default:":8080"`
	DatabaseURL     string        `envconfig:"DATABASE_URL" required:"true"`
	ServiceToken    string        `envconfig:"KINGDOM_SERVICE_TOKEN" required:"true"`
	AdminToken      string        `envconfig:"KINGDOM_ADMIN_TOKEN"`
	QuoteSigningKey string        `envconfig:"KINGDOM_QUOTE_SIGNING_KEY" required:"true"`
	QuoteTTL        time.Duration `envconfig:"KINGDOM_QUOTE_TTL" default:"30s"`
	AutoMigrate     bool          `envconfig:"KINGDOM_AUTO_MIGRATE" default:"true"`
	DBMaxConns      int32         `envconfig:"KINGDOM_DB_MAX_CONNS" default:"20"`
	DBMinConns      int32         `envconfig:"KINGDOM_DB_MIN_CONNS" default:"2"`
}

// WorkerConfig configures the background sweeper.
type WorkerConfig struct {
	DatabaseURL     string        `envconfig:"DATABASE_URL" required:"true"`
	QuoteSigningKey string        `envconfig:"KINGDOM_QUOTE_SIGNING_KEY" required:"true"`
	SweepEvery      time.Duration `envconfig:"KINGDOM_SWEEP_EVERY" default:"5m"`
	RunOnce         bool          `envconfig:"KINGDOM_WORKER_RUN_ONCE" default:"false"`
	DBMaxConns      int32         `envconfig:"KINGDOM_DB_MAX_CONNS" default:"5"`
	DBMinConns      int32         `envconfig:"KINGDOM_DB_MIN_CONNS" default:"1"`
}

// CLIConfig configures the kgd client.
type CLIConfig struct {
	APIBaseURL   string `envconfig:"KGD_API_BASE_URL" default:"http://localhost:8080"`
	ServiceToken string `envconfig:"KINGDOM_SERVICE_TOKEN"`
	AdminToken   string `envconfig:"KINGDOM_ADMIN_TOKEN"`
}

func LoadAPI() (APIConfig, error) {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("parse api config: %w", err)
	}
	if !strings.Contains(cfg.Addr, ":") {
		cfg.Addr = ":" + cfg.Addr
	}
	if cfg.QuoteTTL <= 0 {
		return cfg, fmt.Errorf("quote ttl must be positive")
	}
	return cfg, nil
}

func LoadWorker() (WorkerConfig, error) {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("parse worker config: %w", err)
	}
	if cfg.SweepEvery < time.Second {
		return cfg, fmt.Errorf("sweep interval too small: %s", cfg.SweepEvery)
	}
	return cfg, nil
}

func LoadCLI() (CLIConfig, error) {
	var cfg CLIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("parse cli config: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return cfg, nil
}
