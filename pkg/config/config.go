package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process-level configuration for the scanner
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server (scheduler daemon mode)
	Port string
	Env  string // development, staging, production

	// IBKR Client Portal gateway
	Gateway GatewayConfig

	// Redis
	Redis RedisConfig

	// Scan inputs/outputs
	ScanConfigPath string
	OutputDir      string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// GatewayConfig holds IBKR Client Portal gateway connection settings
type GatewayConfig struct {
	Host        string
	Port        int
	ClientID    int
	Scheme      string // https (gateway default) or http
	BasePath    string
	InsecureTLS bool    // gateway ships a self-signed certificate
	RateLimit   float64 // requests per second
	Streaming   bool    // WebSocket quotes; false = REST snapshot polling
	Timeout     time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// BaseURL returns the REST root, e.g. https://127.0.0.1:5000/v1/api
func (g GatewayConfig) BaseURL() string {
	return fmt.Sprintf("%s://%s%s", g.Scheme, net.JoinHostPort(g.Host, strconv.Itoa(g.Port)), g.BasePath)
}

// StreamURL returns the WebSocket endpoint that sits next to the REST root
func (g GatewayConfig) StreamURL() string {
	scheme := "wss"
	if g.Scheme == "http" {
		scheme = "ws"
	}
	return fmt.Sprintf("%s://%s%s/ws", scheme, net.JoinHostPort(g.Host, strconv.Itoa(g.Port)), g.BasePath)
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Gateway: GatewayConfig{
			Host:        getEnv("IBKR_HOST", "127.0.0.1"),
			Port:        getEnvAsInt("IBKR_PORT", 5000),
			ClientID:    getEnvAsInt("IBKR_CLIENT_ID", 1),
			Scheme:      getEnv("IBKR_SCHEME", "https"),
			BasePath:    getEnv("IBKR_BASE_PATH", "/v1/api"),
			InsecureTLS: getEnvAsBool("IBKR_INSECURE_TLS", true),
			RateLimit:   getEnvAsFloat("IBKR_RATE_LIMIT", 10),
			Streaming:   getEnvAsBool("IBKR_STREAMING", true),
			Timeout:     getEnvAsDuration("IBKR_TIMEOUT", "30s"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		ScanConfigPath: getEnv("SCAN_CONFIG", ""),
		OutputDir:      getEnv("OUTPUT_DIR", "."),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Gateway.Host == "" {
		return fmt.Errorf("IBKR_HOST is required")
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("IBKR_PORT must be in 1..65535, got %d", c.Gateway.Port)
	}
	if c.Gateway.Scheme != "https" && c.Gateway.Scheme != "http" {
		return fmt.Errorf("IBKR_SCHEME must be https or http")
	}
	if c.Gateway.RateLimit <= 0 {
		return fmt.Errorf("IBKR_RATE_LIMIT must be > 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

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
