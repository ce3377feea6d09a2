package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/putscan/pkg/config"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel zerolog.Level
	}{
		{"debug level", "debug", zerolog.DebugLevel},
		{"info level", "info", zerolog.InfoLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(&config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"})
			require.NotNil(t, log)
			assert.Equal(t, tt.wantLevel, zerolog.GlobalLevel())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "production", LogLevel: "info", LogFormat: "json"}, &buf)

	log.WithFields(map[string]interface{}{
		"symbol": "NVDA",
		"stage":  "price",
	}).Info("price resolved")

	entry := decode(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "production", entry["env"])
	assert.Equal(t, "NVDA", entry["symbol"])
	assert.Equal(t, "price resolved", entry["message"])
}

func TestNewWithWriterConsole(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development", LogLevel: "info", LogFormat: "console"}, &buf)
	log.Info("test message")

	assert.Contains(t, buf.String(), "test message")
}

func TestFormattedMethods(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log := &Logger{zlog: zerolog.New(&buf)}

	tests := []struct {
		name      string
		logFunc   func()
		wantMsg   string
		wantLevel string
	}{
		{"debugf", func() { log.Debugf("symbol: %s", "AAPL") }, "symbol: AAPL", "debug"},
		{"infof", func() { log.Infof("rows: %d", 42) }, "rows: 42", "info"},
		{"warnf", func() { log.Warnf("skipped %d symbols", 3) }, "skipped 3 symbols", "warn"},
		{"errorf", func() { log.Errorf("gateway: %s", "timeout") }, "gateway: timeout", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()
			entry := decode(t, &buf)
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, tt.wantMsg, entry["message"])
		})
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log := &Logger{zlog: zerolog.New(&buf)}

	log.WithError(errors.New("no chains")).WithField("symbol", "TSLA").Error("stage failed")

	entry := decode(t, &buf)
	assert.Equal(t, "no chains", entry["error"])
	assert.Equal(t, "TSLA", entry["symbol"])
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().WithField("k", "v").Info("discarded")
	})
}
