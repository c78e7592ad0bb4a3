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
)

// Config holds application configuration
type Config struct {
	DataDir            string // Base directory for all databases (always absolute)
	Port               int
	DevMode            bool
	LogLevel           string
	AlphaVantageAPIKey string
	Symbols            []string // Default symbol universe for scheduled batch runs

	// Pipeline execution settings
	WorkerCount     int           // Concurrent symbol workers per stage
	ProviderTimeout time.Duration // Deadline applied to each provider call

	Retry      RetryConfig
	Thresholds *Thresholds
	Backup     *BackupConfig
	Schedule   *ScheduleConfig
}

// RetryConfig holds the backoff policy for failed symbol stages
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

// BackupConfig holds S3-compatible snapshot storage settings
type BackupConfig struct {
	Enabled         bool
	Endpoint        string // Custom endpoint for R2/MinIO style stores, empty for AWS
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int // 0 = keep forever
	MinBackupsKeep  int // Never rotate below this count
}

// ScheduleConfig holds cron expressions for recurring jobs
type ScheduleConfig struct {
	DailyBatchCron  string
	MaintenanceCron string
	BackupCron      string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check CONVEYOR_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("CONVEYOR_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	thresholds, err := LoadThresholds(getEnv("THRESHOLDS_FILE", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to load thresholds: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		Port:               getEnvAsInt("CONVEYOR_PORT", 8090),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AlphaVantageAPIKey: getEnv("ALPHAVANTAGE_API_KEY", ""),
		Symbols:            parseSymbolList(getEnv("CONVEYOR_SYMBOLS", "")),
		WorkerCount:        getEnvAsInt("CONVEYOR_WORKERS", 8),
		ProviderTimeout:    time.Duration(getEnvAsInt("PROVIDER_TIMEOUT_SECONDS", 30)) * time.Second,
		Retry: RetryConfig{
			MaxAttempts:   getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			InitialDelay:  time.Duration(getEnvAsInt("RETRY_INITIAL_DELAY_SECONDS", 60)) * time.Second,
			BackoffFactor: getEnvAsFloat("RETRY_BACKOFF_FACTOR", 2.0),
			MaxDelay:      time.Duration(getEnvAsInt("RETRY_MAX_DELAY_SECONDS", 3600)) * time.Second,
		},
		Thresholds: thresholds,
		Backup:     loadBackupConfig(),
		Schedule:   loadScheduleConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and consistent
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.WorkerCount)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BackoffFactor < 1.0 {
		return fmt.Errorf("retry backoff factor must be >= 1.0, got %g", c.Retry.BackoffFactor)
	}
	if c.Retry.InitialDelay <= 0 || c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("invalid retry delays: initial=%s max=%s", c.Retry.InitialDelay, c.Retry.MaxDelay)
	}
	if c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			return fmt.Errorf("backup enabled but S3_BUCKET is not set")
		}
		if c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "" {
			return fmt.Errorf("backup enabled but S3 credentials are not set")
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

// parseSymbolList splits a comma-separated symbol list, trimming whitespace
// and uppercasing entries. Returns nil for an empty input.
func parseSymbolList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadBackupConfig loads snapshot storage configuration
func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		Region:          getEnv("S3_REGION", "auto"),
		Bucket:          getEnv("S3_BUCKET", ""),
		AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		MinBackupsKeep:  getEnvAsInt("BACKUP_MIN_KEEP", 3),
	}
}

// DefaultSchedule returns the stock cron schedule: daily batch after
// US market close on weekdays, maintenance and backups in the early
// morning.
func DefaultSchedule() *ScheduleConfig {
	return &ScheduleConfig{
		DailyBatchCron:  "30 22 * * 1-5",
		MaintenanceCron: "0 3 * * *",
		BackupCron:      "0 4 * * *",
	}
}

// loadScheduleConfig loads cron expressions for recurring jobs.
func loadScheduleConfig() *ScheduleConfig {
	defaults := DefaultSchedule()
	return &ScheduleConfig{
		DailyBatchCron:  getEnv("DAILY_BATCH_CRON", defaults.DailyBatchCron),
		MaintenanceCron: getEnv("MAINTENANCE_CRON", defaults.MaintenanceCron),
		BackupCron:      getEnv("BACKUP_CRON", defaults.BackupCron),
	}
}
