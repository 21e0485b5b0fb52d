package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// HTTP surface
	BindAddr string // Address the gateway listens on

	// MT5 bridge
	BridgeAddr  string        // Address of the terminal bridge socket
	DialTimeout time.Duration // Timeout for establishing the bridge connection
	CallTimeout time.Duration // Per-call deadline on the bridge

	// Trade defaulting policy
	DefaultSymbol  string  // Symbol used when a trade request omits one
	DefaultLotSize float64 // Lot size used when a trade request omits one

	// Logging
	LogLevel string // debug, info, warn, error
	LogFile  string // Optional log file (rotated); empty disables file output
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.BindAddr = getEnv("BIND_ADDR", "0.0.0.0:5000")
	cfg.BridgeAddr = getEnv("MT5_BRIDGE_ADDR", "127.0.0.1:18812")

	dialTimeoutSeconds := getEnvAsInt("MT5_DIAL_TIMEOUT_SECONDS", 10)
	if dialTimeoutSeconds <= 0 {
		errs = append(errs, "MT5_DIAL_TIMEOUT_SECONDS must be positive")
	}
	cfg.DialTimeout = time.Duration(dialTimeoutSeconds) * time.Second

	callTimeoutSeconds := getEnvAsInt("MT5_CALL_TIMEOUT_SECONDS", 30)
	if callTimeoutSeconds <= 0 {
		errs = append(errs, "MT5_CALL_TIMEOUT_SECONDS must be positive")
	}
	cfg.CallTimeout = time.Duration(callTimeoutSeconds) * time.Second

	cfg.DefaultSymbol = getEnv("DEFAULT_SYMBOL", "EURUSD")
	if cfg.DefaultSymbol == "" {
		errs = append(errs, "DEFAULT_SYMBOL must be set")
	}

	cfg.DefaultLotSize, err = getEnvAsFloatRequired("DEFAULT_LOT_SIZE", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_LOT_SIZE: %v", err))
	} else if cfg.DefaultLotSize <= 0 {
		errs = append(errs, "DEFAULT_LOT_SIZE must be positive")
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFile = getEnv("LOG_FILE", "")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
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

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
