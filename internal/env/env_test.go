package env

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nested struct {
	Port int `env:"TEST_ENV_PORT"`
}

func (n *nested) Validate() error {
	if n.Port < 0 {
		return errors.New("port must be non-negative")
	}
	return nil
}

type testConfig struct {
	Name     string        `env:"TEST_ENV_NAME"`
	Enabled  bool          `env:"TEST_ENV_ENABLED"`
	Count    int           `env:"TEST_ENV_COUNT"`
	Interval time.Duration `env:"TEST_ENV_INTERVAL"`
	Nested   nested
	Ignored  string
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_ENV_NAME", "taskloop")
	t.Setenv("TEST_ENV_ENABLED", "true")
	t.Setenv("TEST_ENV_COUNT", "42")
	t.Setenv("TEST_ENV_INTERVAL", "1m30s")
	t.Setenv("TEST_ENV_PORT", "8080")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "taskloop", cfg.Name)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 42, cfg.Count)
	assert.Equal(t, 90*time.Second, cfg.Interval)
	assert.Equal(t, 8080, cfg.Nested.Port)
	assert.Empty(t, cfg.Ignored)
}

func TestLoadLeavesUnsetFieldsAlone(t *testing.T) {
	cfg := testConfig{Name: "default", Count: 7}
	require.NoError(t, Load(&cfg))
	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, 7, cfg.Count)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad bool", key: "TEST_ENV_ENABLED", value: "maybe"},
		{name: "bad int", key: "TEST_ENV_COUNT", value: "many"},
		{name: "bad duration", key: "TEST_ENV_INTERVAL", value: "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			var cfg testConfig
			err := Load(&cfg)
			require.Error(t, err)

			var invalid ErrInvalidValue
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.key, invalid.EnvVar)
			assert.Equal(t, tt.value, invalid.Value)
		})
	}
}

func TestLoadValidatesNestedSections(t *testing.T) {
	t.Setenv("TEST_ENV_PORT", "-1")
	var cfg testConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port must be non-negative")
}

func TestLoadRequiresStructPointer(t *testing.T) {
	var notPtr ErrNotStructPointer
	assert.ErrorAs(t, Load(testConfig{}), &notPtr)
	assert.ErrorAs(t, Load(new(int)), &notPtr)
}
