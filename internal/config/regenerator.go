package config

import (
	"errors"
	"fmt"

	"github.com/taskloop/taskloop/internal/env"
)

// ErrTaskAPIBaseURLRequired is returned when the Task API base URL is missing.
var ErrTaskAPIBaseURLRequired = errors.New("TASKLOOP_TASK_API_BASE_URL is required")

// RegeneratorConfig is the recurring regenerator service configuration.
type RegeneratorConfig struct {
	Database      DatabaseConfig
	Bus           BusConfig
	Server        ServerConfig
	Observability ObservabilityConfig

	// TaskAPIBaseURL is the Task API's internal base URL for successor
	// creation, e.g. http://taskloop-api:8080.
	TaskAPIBaseURL string `env:"TASKLOOP_TASK_API_BASE_URL"`
}

// LoadRegenerator parses the regenerator configuration from the environment.
func LoadRegenerator() (*RegeneratorConfig, error) {
	cfg := &RegeneratorConfig{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.TaskAPIBaseURL == "" {
		return nil, ErrTaskAPIBaseURLRequired
	}
	if cfg.Bus.Group == "" {
		cfg.Bus.Group = "regenerator"
	}
	return cfg, nil
}
