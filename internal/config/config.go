// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"

	validatorv10 "github.com/go-playground/validator/v10"
)

// Config is the full process configuration. TOKEN is the one required
// credential; everything else has a default or is optional.
type Config struct {
	Token         string `validate:"required"`
	Mode          string `validate:"oneof=polling webhook"`
	LedgerBackend string `validate:"oneof=file dynamo"`
	LedgerFile    string
	LedgerTable   string `validate:"required_if=LedgerBackend dynamo"`

	// optional operational wiring
	ReconcileQueueURL string
	MetricsNamespace  string

	// webhook mode only
	RunLocal   bool
	ListenAddr string
}

// Load reads and validates configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Token:             os.Getenv("TOKEN"),
		Mode:              envOr("BOT_MODE", "polling"),
		LedgerBackend:     envOr("LEDGER_BACKEND", "file"),
		LedgerFile:        envOr("LEDGER_FILE", "user_data.json"),
		LedgerTable:       os.Getenv("LEDGER_TABLE"),
		ReconcileQueueURL: os.Getenv("RECONCILE_QUEUE_URL"),
		MetricsNamespace:  os.Getenv("METRICS_NAMESPACE"),
		RunLocal:          os.Getenv("RUN_LOCAL") == "true",
		ListenAddr:        envOr("LISTEN_ADDR", ":8080"),
	}

	v := validatorv10.New()
	if err := v.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
