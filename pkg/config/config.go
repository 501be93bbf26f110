package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Trading
	Trading TradingConfig

	// Execution tuning
	Execution ExecutionConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Exchange (live only)
	Kraken KrakenConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// TradingConfig holds the core trading limits and mode flags
type TradingConfig struct {
	Mode           string   // "paper" or "live"
	FeedMode       string   // "rest" or "ws"
	AllowedSymbols []string // symbol allow-list, e.g. BTC/CAD
	MaxPosition    float64  // per-symbol position cap (base units)
	OrderSize      float64  // default intent quantity
	MaxDailyLoss   float64  // daily realized loss limit (quote units)
	LongOnly       bool
}

// ExecutionConfig holds order state machine tuning knobs
type ExecutionConfig struct {
	PostOnlyOffset  float64       // limit offset from mid, as a fraction of spread
	MaxSpreadBps    float64       // skip execution above this quoted spread
	RepriceTimeout  time.Duration // cancel & reprice after this long resting
	RepriceMove     float64       // reprice if adverse move exceeds this many spreads
	PollInterval    time.Duration // live order status poll cadence
	TakerFeeBps     float64       // simulated taker fee in paper mode
	TradeHistoryCap int           // ring buffer capacity for trade records
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string // empty disables persistence

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// KrakenConfig holds Kraken API configuration
type KrakenConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
	WSURL     string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Trading: TradingConfig{
			Mode:           strings.ToLower(getEnv("MODE", "paper")),
			FeedMode:       strings.ToLower(getEnv("FEED_MODE", "rest")),
			AllowedSymbols: getEnvAsSymbols("ALLOWED_SYMBOLS", []string{"BTC/CAD", "ETH/CAD"}),
			MaxPosition:    getEnvAsFloat("MAX_POSITION", 50.0),
			OrderSize:      getEnvAsFloat("ORDER_SIZE", 10.0),
			MaxDailyLoss:   getEnvAsFloat("MAX_DAILY_LOSS", 100.0),
			LongOnly:       getEnvAsBool("LONG_ONLY", true),
		},

		Execution: ExecutionConfig{
			PostOnlyOffset:  getEnvAsFloat("POST_ONLY_OFFSET", 0.3),
			MaxSpreadBps:    getEnvAsFloat("MAX_SPREAD_BPS", 3.0),
			RepriceTimeout:  getEnvAsDuration("REPRICE_TIMEOUT", "6s"),
			RepriceMove:     getEnvAsFloat("REPRICE_MOVE", 0.5),
			PollInterval:    getEnvAsDuration("ORDER_POLL_INTERVAL", "500ms"),
			TakerFeeBps:     getEnvAsFloat("TAKER_FEE_BPS", 6.0),
			TradeHistoryCap: getEnvAsInt("TRADE_HISTORY_CAP", 1000),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Kraken: KrakenConfig{
			APIKey:    getEnv("KRAKEN_API_KEY", ""),
			APISecret: getEnv("KRAKEN_API_SECRET", ""),
			BaseURL:   getEnv("KRAKEN_BASE_URL", "https://api.kraken.com"),
			WSURL:     getEnv("KRAKEN_WS_URL", "wss://ws.kraken.com/v2"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// IsLive reports whether live trading codepaths should be used.
// MODE=live alone is not enough; API credentials must also be present.
func (c *Config) IsLive() bool {
	return c.Trading.Mode == "live" && c.Kraken.APIKey != "" && c.Kraken.APISecret != ""
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Trading.Mode != "paper" && c.Trading.Mode != "live" {
		return fmt.Errorf("MODE must be 'paper' or 'live'")
	}

	if c.Trading.FeedMode != "rest" && c.Trading.FeedMode != "ws" {
		return fmt.Errorf("FEED_MODE must be 'rest' or 'ws'")
	}

	if len(c.Trading.AllowedSymbols) == 0 {
		return fmt.Errorf("ALLOWED_SYMBOLS must contain at least one symbol")
	}

	if c.Trading.MaxPosition <= 0 {
		return fmt.Errorf("MAX_POSITION must be positive")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsSymbols parses a symbol list from CSV (e.g. "BTC/CAD,ETH/CAD"),
// tolerating stray brackets and quotes left over from JSON-style values.
func getEnvAsSymbols(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	valueStr = strings.Trim(valueStr, " []\"'")
	parts := strings.FieldsFunc(valueStr, func(r rune) bool {
		return r == ',' || r == ' '
	})

	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), "\"'")
		if p != "" {
			symbols = append(symbols, p)
		}
	}

	if len(symbols) == 0 {
		return defaultValue
	}

	return symbols
}
