package logger_test

import (
	"errors"

	"github.com/wonny/talos/pkg/config"
	"github.com/wonny/talos/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	// Create logger (SSOT)
	log := logger.New(cfg)

	// Basic logging
	log.Debug("This won't appear (level is info)")
	log.Info("Engine started")
	log.Warn("Spread wider than usual")

	// Formatted logging
	log.Infof("Agent %s started", "market_scanner")
	log.Warnf("Retry attempt %d of %d", 3, 5)
}

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	// Add single field
	agentLog := log.WithField("agent", "depth")
	agentLog.Info("Signal published")

	// Add multiple fields
	tradeLog := log.WithFields(map[string]interface{}{
		"symbol": "BTC/CAD",
		"price":  72300.5,
		"qty":    0.01,
		"side":   "buy",
	})
	tradeLog.Info("Trade executed")
}

// Example_withError demonstrates error logging
func Example_withError() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "error",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	err := errors.New("ticker request timeout")
	log.WithError(err).Error("Failed to fetch market data")

	// Combine error with fields
	log.WithError(err).
		WithFields(map[string]interface{}{
			"retry_count": 3,
			"timeout_ms":  5000,
		}).
		Error("Connection failed after retries")
}
