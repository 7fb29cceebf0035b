package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL         string
	LogLevel            string
	Environment         string
	CronSpecReminders   string         // daily reminder pass
	ReminderLocation    *time.Location // zone in which "today" is computed
	DispatchTimeout     time.Duration
	DispatchConcurrency int
	TelegramToken       string // empty disables Telegram delivery and admin commands
	AdminTelegramID     int64  // 0 disables admin commands
	RunMigrations       bool
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.CronSpecReminders = os.Getenv("CRON_SPEC_REMINDERS")
	if cfg.CronSpecReminders == "" {
		cfg.CronSpecReminders = "0 8 * * *" // 08:00 daily
	}

	cfg.ReminderLocation = time.Local
	if tz := os.Getenv("REMINDER_TIMEZONE"); tz != "" {
		cfg.ReminderLocation, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid REMINDER_TIMEZONE: %w", err)
		}
	}

	cfg.DispatchTimeout = 10 * time.Minute
	if v := os.Getenv("DISPATCH_TIMEOUT"); v != "" {
		cfg.DispatchTimeout, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DISPATCH_TIMEOUT: %w", err)
		}
	}

	cfg.DispatchConcurrency = 4
	if v := os.Getenv("DISPATCH_CONCURRENCY"); v != "" {
		cfg.DispatchConcurrency, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DISPATCH_CONCURRENCY: %w", err)
		}
		if cfg.DispatchConcurrency < 1 {
			return nil, fmt.Errorf("invalid DISPATCH_CONCURRENCY: must be at least 1, got %d", cfg.DispatchConcurrency)
		}
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")

	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.RunMigrations = true
	if v := os.Getenv("RUN_MIGRATIONS"); v != "" {
		cfg.RunMigrations, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RUN_MIGRATIONS: %w", err)
		}
	}

	return cfg, nil
}
