package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fixed engine intervals. These are deliberately constants, not environment
// variables: the dedup bucket width and the snapshot reload cadence must stay
// aligned with each other and with the tick granularity.
const (
	TickInterval      = 60 * time.Second
	ReloadInterval    = 10 * time.Minute
	DeliveryTimeout   = 10 * time.Second
	DefaultTimezone   = "Europe/Moscow"
	DefaultBackupCron = "0 3 * * *"  // daily at 03:00
	DefaultLogCron    = "30 3 * * 0" // weekly, Sunday 03:30
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	TelegramToken string
	DatabaseURL   string
	AdminIDs      []int64 // Telegram IDs allowed to run admin commands
	PhonePay      string  // Payment phone number rendered into templates
	NamePay       string  // Payment recipient name rendered into templates
	Timezone      string
	Location      *time.Location // Resolved business timezone
	LogLevel      string
	Environment   string

	BackupDir          string
	BackupCronSpec     string
	BackupRetention    int
	LogRetentionDays   int
	LogCleanupCronSpec string
}

// IsAdmin reports whether the given Telegram ID is a configured administrator.
func (c *AppConfig) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.TelegramToken = os.Getenv("BOT_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	adminIDsStr := os.Getenv("ADMIN_IDS")
	for _, part := range strings.Split(adminIDsStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		cfg.AdminIDs = append(cfg.AdminIDs, id)
	}
	if len(cfg.AdminIDs) == 0 {
		return nil, fmt.Errorf("ADMIN_IDS is not set")
	}

	cfg.PhonePay = os.Getenv("PHONE_PAY")
	if cfg.PhonePay == "" {
		return nil, fmt.Errorf("PHONE_PAY is not set")
	}
	cfg.NamePay = os.Getenv("NAME_PAY")
	if cfg.NamePay == "" {
		return nil, fmt.Errorf("NAME_PAY is not set")
	}

	cfg.Timezone = os.Getenv("BUSINESS_TIMEZONE")
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.BackupDir = os.Getenv("BACKUP_DIR")
	if cfg.BackupDir == "" {
		cfg.BackupDir = "./data/backups"
	}
	cfg.BackupCronSpec = os.Getenv("CRON_SPEC_BACKUP")
	if cfg.BackupCronSpec == "" {
		cfg.BackupCronSpec = DefaultBackupCron
	}
	cfg.BackupRetention, err = intEnv("BACKUP_RETENTION", 14)
	if err != nil {
		return nil, err
	}
	cfg.LogRetentionDays, err = intEnv("LOG_RETENTION_DAYS", 90)
	if err != nil {
		return nil, err
	}
	cfg.LogCleanupCronSpec = os.Getenv("CRON_SPEC_LOG_CLEANUP")
	if cfg.LogCleanupCronSpec == "" {
		cfg.LogCleanupCronSpec = DefaultLogCron
	}

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}
