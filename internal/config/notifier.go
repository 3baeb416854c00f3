package config

import (
	"fmt"

	"github.com/taskloop/taskloop/internal/env"
)

// NotifierConfig is the notification consumer service configuration.
type NotifierConfig struct {
	Database      DatabaseConfig
	Bus           BusConfig
	Server        ServerConfig
	Observability ObservabilityConfig

	// SlackWebhookURL enables the Slack sink when set. The log sink is always
	// active.
	SlackWebhookURL string `env:"TASKLOOP_SLACK_WEBHOOK_URL"`
}

// LoadNotifier parses the notifier configuration from the environment.
func LoadNotifier() (*NotifierConfig, error) {
	cfg := &NotifierConfig{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Bus.Group == "" {
		cfg.Bus.Group = "notifier"
	}
	return cfg, nil
}
