package logger_test

import (
	"errors"

	"github.com/wonny/putscan/pkg/config"
	"github.com/wonny/putscan/pkg/logger"
)

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"symbol": "NVDA",
		"price":  120.5,
		"stage":  "price",
	}).Info("Price resolved")

	log.WithError(errors.New("no chains")).
		WithField("symbol", "TSLA").
		Warn("Symbol skipped")
}
