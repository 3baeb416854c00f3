package config

import (
	"fmt"

	"github.com/taskloop/taskloop/internal/env"
)

// AuditConfig is the audit consumer service configuration. The service also
// exposes the ledger's query endpoint, so it carries the HTTP and JWT
// settings.
type AuditConfig struct {
	Database      DatabaseConfig
	Bus           BusConfig
	Server        ServerConfig
	Observability ObservabilityConfig

	JWTSecret string `env:"TASKLOOP_JWT_SECRET"`
}

// LoadAudit parses the audit service configuration from the environment.
func LoadAudit() (*AuditConfig, error) {
	cfg := &AuditConfig{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, ErrJWTSecretRequired
	}
	if cfg.Bus.Group == "" {
		cfg.Bus.Group = "audit"
	}
	return cfg, nil
}
