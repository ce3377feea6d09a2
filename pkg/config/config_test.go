package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8089", cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Gateway.Host)
	assert.Equal(t, 5000, cfg.Gateway.Port)
	assert.Equal(t, 1, cfg.Gateway.ClientID)
	assert.Equal(t, "https", cfg.Gateway.Scheme)
	assert.True(t, cfg.Gateway.InsecureTLS)
	assert.True(t, cfg.Gateway.Streaming)
	assert.Equal(t, 30*time.Second, cfg.Gateway.Timeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, ".", cfg.OutputDir)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IBKR_HOST", "gw.local")
	t.Setenv("IBKR_PORT", "5001")
	t.Setenv("IBKR_SCHEME", "http")
	t.Setenv("IBKR_STREAMING", "false")
	t.Setenv("IBKR_RATE_LIMIT", "2.5")
	t.Setenv("OUTPUT_DIR", "/tmp/scans")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gw.local", cfg.Gateway.Host)
	assert.Equal(t, 5001, cfg.Gateway.Port)
	assert.False(t, cfg.Gateway.Streaming)
	assert.InDelta(t, 2.5, cfg.Gateway.RateLimit, 1e-9)
	assert.Equal(t, "http://gw.local:5001/v1/api", cfg.Gateway.BaseURL())
	assert.Equal(t, "ws://gw.local:5001/v1/api/ws", cfg.Gateway.StreamURL())
	assert.Equal(t, "/tmp/scans", cfg.OutputDir)
}

func TestStreamURLFollowsScheme(t *testing.T) {
	g := GatewayConfig{Host: "127.0.0.1", Port: 5000, Scheme: "https", BasePath: "/v1/api"}
	assert.Equal(t, "wss://127.0.0.1:5000/v1/api/ws", g.StreamURL())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"invalid env", map[string]string{"ENV": "invalid"}},
		{"port out of range", map[string]string{"IBKR_PORT": "70000"}},
		{"bad scheme", map[string]string{"IBKR_SCHEME": "ftp"}},
		{"zero rate", map[string]string{"IBKR_RATE_LIMIT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "2h")
	assert.Equal(t, 2*time.Hour, getEnvAsDuration("TEST_DURATION", "1h"))

	t.Setenv("TEST_DURATION", "garbage")
	assert.Equal(t, time.Hour, getEnvAsDuration("TEST_DURATION", "1h"))
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("TEST_INT", "100")
	assert.Equal(t, 100, getEnvAsInt("TEST_INT", 50))

	t.Setenv("TEST_INT", "abc")
	assert.Equal(t, 50, getEnvAsInt("TEST_INT", 50))
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	assert.True(t, getEnvAsBool("TEST_BOOL", false))
}
