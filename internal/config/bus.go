package config

import "errors"

// ErrRedisURLRequired is returned when the bus URL is not configured.
var ErrRedisURLRequired = errors.New("TASKLOOP_REDIS_URL is required")

// BusConfig holds the Redis Streams bus connection and consumer settings.
type BusConfig struct {
	// URL is the Redis connection string: redis://[:password@]host:port/db
	URL string `env:"TASKLOOP_REDIS_URL"`

	// Group is the consumer group name; each service uses its own group so
	// every service sees every event.
	Group string `env:"TASKLOOP_BUS_GROUP"`

	// Consumer is this process's name within the group. Defaults to the
	// hostname when empty.
	Consumer string `env:"TASKLOOP_BUS_CONSUMER"`

	// Shards is the per-topic stream count; must match across producers and
	// consumers of one deployment.
	Shards int `env:"TASKLOOP_BUS_SHARDS"`
}

// Validate validates the bus configuration.
func (c *BusConfig) Validate() error {
	if c.URL == "" {
		return ErrRedisURLRequired
	}
	return nil
}
