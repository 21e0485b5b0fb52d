package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5000", cfg.BindAddr)
	assert.Equal(t, "127.0.0.1:18812", cfg.BridgeAddr)
	assert.Equal(t, 10*time.Second, cfg.DialTimeout)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.Equal(t, "EURUSD", cfg.DefaultSymbol)
	assert.Equal(t, 0.01, cfg.DefaultLotSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.LogFile)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("BIND_ADDR", "127.0.0.1:8080")
	t.Setenv("MT5_BRIDGE_ADDR", "127.0.0.1:9000")
	t.Setenv("MT5_CALL_TIMEOUT_SECONDS", "5")
	t.Setenv("DEFAULT_SYMBOL", "GBPUSD")
	t.Setenv("DEFAULT_LOT_SIZE", "0.1")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.BindAddr)
	assert.Equal(t, "127.0.0.1:9000", cfg.BridgeAddr)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	assert.Equal(t, "GBPUSD", cfg.DefaultSymbol)
	assert.Equal(t, 0.1, cfg.DefaultLotSize)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "malformed default lot size", key: "DEFAULT_LOT_SIZE", value: "tiny"},
		{name: "negative default lot size", key: "DEFAULT_LOT_SIZE", value: "-0.01"},
		{name: "non-positive call timeout", key: "MT5_CALL_TIMEOUT_SECONDS", value: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
