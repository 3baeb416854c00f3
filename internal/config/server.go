package config

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `env:"TASKLOOP_HTTP_HOST"`
	Port         string `env:"TASKLOOP_HTTP_PORT"`
	MaxBodyBytes int64  `env:"TASKLOOP_HTTP_MAX_BODY_BYTES"`
}

// ObservabilityConfig holds telemetry configuration.
type ObservabilityConfig struct {
	OTelEnabled bool `env:"TASKLOOP_OTEL_ENABLED"`
}
