// Package config defines per-service configuration structs loaded from
// TASKLOOP_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/taskloop/taskloop/internal/env"
)

// ErrJWTSecretRequired is returned when the token-signing secret is missing.
var ErrJWTSecretRequired = errors.New("TASKLOOP_JWT_SECRET is required")

// ErrCallbackBaseURLRequired is returned when the scheduler callback base URL
// is missing.
var ErrCallbackBaseURLRequired = errors.New("TASKLOOP_CALLBACK_BASE_URL is required")

// APIConfig is the Task API service configuration.
type APIConfig struct {
	Database      DatabaseConfig
	Bus           BusConfig
	Server        ServerConfig
	Observability ObservabilityConfig

	// JWTSecret is the HMAC secret shared with the token issuer.
	JWTSecret string `env:"TASKLOOP_JWT_SECRET"`

	// CallbackBaseURL is this service's own base URL as reachable by the
	// embedded scheduler, e.g. http://localhost:8080.
	CallbackBaseURL string `env:"TASKLOOP_CALLBACK_BASE_URL"`

	// Outbox dispatcher knobs (zero = defaults).
	OutboxPollInterval time.Duration `env:"TASKLOOP_OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `env:"TASKLOOP_OUTBOX_BATCH_SIZE"`
	OutboxMaxAttempts  int           `env:"TASKLOOP_OUTBOX_MAX_ATTEMPTS"`

	// OutboxHighWater is the pending backlog size above which writes are
	// rejected with 503. Zero disables backpressure.
	OutboxHighWater int `env:"TASKLOOP_OUTBOX_HIGH_WATER"`

	// Scheduler worker knobs (zero = defaults).
	SchedulerPollInterval time.Duration `env:"TASKLOOP_SCHEDULER_POLL_INTERVAL"`
}

// LoadAPI parses the Task API configuration from the environment.
func LoadAPI() (*APIConfig, error) {
	cfg := &APIConfig{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, ErrJWTSecretRequired
	}
	if cfg.CallbackBaseURL == "" {
		return nil, ErrCallbackBaseURLRequired
	}
	return cfg, nil
}
