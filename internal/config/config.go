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
	DataDir    string // Base directory for all databases (always absolute)
	Port       int
	LogLevel   string
	LogPretty  bool
	DevMode    bool
	BackendURL string // Drill-down backend; empty means in-process

	DrilldownLimit   int
	DrilldownTimeout time.Duration
	PanelIdleTimeout time.Duration
	SnapshotSchedule string

	RiskPolicyFile string // Optional YAML policy; empty uses defaults

	Backup *BackupConfig
}

// BackupConfig holds S3-compatible backup settings
type BackupConfig struct {
	Bucket          string
	Endpoint        string // Empty uses the AWS endpoint for Region
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string
	RetentionDays   int // 0 keeps every backup
}

// Enabled reports whether a backup bucket is configured
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("CARDRISK_DATA_DIR", "")
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

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8001),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getEnvAsBool("LOG_PRETTY", false),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		BackendURL:       strings.TrimRight(getEnv("BACKEND_URL", ""), "/"),
		DrilldownLimit:   getEnvAsInt("DRILLDOWN_LIMIT", 10),
		DrilldownTimeout: getEnvAsDuration("DRILLDOWN_TIMEOUT", 10*time.Second),
		PanelIdleTimeout: getEnvAsDuration("PANEL_IDLE_TIMEOUT", 30*time.Minute),
		SnapshotSchedule: getEnv("SNAPSHOT_SCHEDULE", "@hourly"),
		RiskPolicyFile:   getEnv("RISK_POLICY_FILE", ""),
		Backup: &BackupConfig{
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
			Schedule:        getEnv("BACKUP_SCHEDULE", "@daily"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if cfg.RiskPolicyFile != "" && !filepath.IsAbs(cfg.RiskPolicyFile) {
		abs, err := filepath.Abs(cfg.RiskPolicyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve risk policy path: %w", err)
		}
		cfg.RiskPolicyFile = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configured values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.DrilldownLimit < 1 || c.DrilldownLimit > 50 {
		return fmt.Errorf("DRILLDOWN_LIMIT must be between 1 and 50, got %d", c.DrilldownLimit)
	}
	if c.DrilldownTimeout <= 0 {
		return fmt.Errorf("DRILLDOWN_TIMEOUT must be positive")
	}
	if c.PanelIdleTimeout <= 0 {
		return fmt.Errorf("PANEL_IDLE_TIMEOUT must be positive")
	}
	if c.Backup.Enabled() && (c.Backup.AccessKeyID == "") != (c.Backup.SecretAccessKey == "") {
		return fmt.Errorf("BACKUP_ACCESS_KEY_ID and BACKUP_SECRET_ACCESS_KEY must be set together")
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
