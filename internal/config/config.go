// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Supported state backends and codecs
var (
	stateBackends = []string{"memory", "file", "sqlite", "s3"}
	stateCodecs   = []string{"json", "msgpack"}
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases and the file state store (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Simulation SimulationConfig
	Regime     RegimeConfig
	Portfolio  PortfolioConfig
	State      StateConfig
	Jobs       JobsConfig
}

// SimulationConfig controls the price scheduler
type SimulationConfig struct {
	TickInterval    time.Duration
	HistoryCapacity int
	Seed            uint64 // 0 derives a seed from the clock
	Autostart       bool
}

// RegimeConfig controls the market regime controller
type RegimeConfig struct {
	CheckInterval     time.Duration
	ChangeProbability float64
}

// PortfolioConfig holds the ledger baseline and fee
type PortfolioConfig struct {
	StartingCash decimal.Decimal
	FeeRate      decimal.Decimal
}

// StateConfig selects where and how state is persisted
type StateConfig struct {
	Backend string // memory, file, sqlite or s3
	Codec   string // json or msgpack
	S3      S3Config
}

// S3Config locates the state object for the s3 backend
type S3Config struct {
	Bucket          string
	Key             string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// JobsConfig holds cron schedules for background jobs. An empty schedule disables the job.
type JobsConfig struct {
	AutosaveSchedule       string
	RegimeCleanupSchedule  string
	DatabaseCheckSchedule  string
	RegimeHistoryRetention int // days
}

// Load reads configuration from .env and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TRADESIM_DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("GO_PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Simulation: SimulationConfig{
			TickInterval:    getEnvAsDuration("SIM_TICK_INTERVAL", time.Second),
			HistoryCapacity: getEnvAsInt("SIM_HISTORY_CAPACITY", 23400),
			Seed:            uint64(getEnvAsInt("SIM_SEED", 0)),
			Autostart:       getEnvAsBool("SIM_AUTOSTART", true),
		},
		Regime: RegimeConfig{
			CheckInterval:     getEnvAsDuration("REGIME_CHECK_INTERVAL", time.Minute),
			ChangeProbability: getEnvAsFloat("REGIME_CHANGE_PROBABILITY", 0.05),
		},
		Portfolio: PortfolioConfig{
			StartingCash: getEnvAsDecimal("PORTFOLIO_STARTING_CASH", decimal.NewFromInt(100000)),
			FeeRate:      getEnvAsDecimal("PORTFOLIO_FEE_RATE", decimal.RequireFromString("0.001")),
		},
		State: StateConfig{
			Backend: strings.ToLower(getEnv("STATE_BACKEND", "sqlite")),
			Codec:   strings.ToLower(getEnv("STATE_CODEC", "json")),
			S3: S3Config{
				Bucket:          getEnv("S3_BUCKET", ""),
				Key:             getEnv("S3_KEY", "tradesim/state"),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
				Region:          getEnv("S3_REGION", "us-east-1"),
				AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			},
		},
		Jobs: JobsConfig{
			AutosaveSchedule:       getEnvAllowEmpty("STATE_AUTOSAVE_SCHEDULE", "@every 30s"),
			RegimeCleanupSchedule:  getEnvAllowEmpty("REGIME_HISTORY_CLEANUP_SCHEDULE", "@daily"),
			DatabaseCheckSchedule:  getEnvAllowEmpty("DB_CHECK_SCHEDULE", "@hourly"),
			RegimeHistoryRetention: getEnvAsInt("REGIME_HISTORY_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every setting is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("GO_PORT must be in 1..65535, got %d", c.Port)
	}
	if c.Simulation.TickInterval <= 0 {
		return fmt.Errorf("SIM_TICK_INTERVAL must be positive, got %s", c.Simulation.TickInterval)
	}
	if c.Simulation.HistoryCapacity < 1 {
		return fmt.Errorf("SIM_HISTORY_CAPACITY must be at least 1, got %d", c.Simulation.HistoryCapacity)
	}
	if c.Regime.CheckInterval <= 0 {
		return fmt.Errorf("REGIME_CHECK_INTERVAL must be positive, got %s", c.Regime.CheckInterval)
	}
	if c.Regime.ChangeProbability < 0 || c.Regime.ChangeProbability > 1 {
		return fmt.Errorf("REGIME_CHANGE_PROBABILITY must be in [0, 1], got %v", c.Regime.ChangeProbability)
	}
	if c.Portfolio.StartingCash.IsNegative() {
		return fmt.Errorf("PORTFOLIO_STARTING_CASH must not be negative, got %s", c.Portfolio.StartingCash)
	}
	if c.Portfolio.FeeRate.IsNegative() || c.Portfolio.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("PORTFOLIO_FEE_RATE must be in [0, 1), got %s", c.Portfolio.FeeRate)
	}
	if !contains(stateBackends, c.State.Backend) {
		return fmt.Errorf("STATE_BACKEND must be one of %s, got %q", strings.Join(stateBackends, ", "), c.State.Backend)
	}
	if !contains(stateCodecs, c.State.Codec) {
		return fmt.Errorf("STATE_CODEC must be one of %s, got %q", strings.Join(stateCodecs, ", "), c.State.Codec)
	}
	if c.State.Backend == "s3" && c.State.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when STATE_BACKEND=s3")
	}
	if c.Jobs.RegimeHistoryRetention < 0 {
		return fmt.Errorf("REGIME_HISTORY_RETENTION_DAYS must not be negative, got %d", c.Jobs.RegimeHistoryRetention)
	}
	return nil
}

// StateFilePath is where the file backend writes its document
func (c *Config) StateFilePath() string {
	return filepath.Join(c.DataDir, "state."+c.State.Codec)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an explicitly empty variable from an unset one
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
