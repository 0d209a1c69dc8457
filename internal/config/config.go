package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBConn   string
	LogLevel string

	JWTSecret string

	// Scheme policy, injected into the ledger engine
	InterestRate   decimal.Decimal
	DueDay         int
	InitialDeposit decimal.Decimal
	CloseTolerance decimal.Decimal
	Currency       string

	// Optional cron spec for the overdue sweep; empty disables it
	SweepSchedule string

	// Optional SMTP settings for member notifications
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
}

// NewConfig loads configuration from the environment, reading a .env file
// first when one is present.
func NewConfig() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DBConn:        getEnv("DB_CONN", "host=localhost port=5432 user=sacco password=sacco dbname=sacco sslmode=disable"),
		LogLevel:      getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:     getEnv("JWT_SECRET", "secret"),
		Currency:      getEnv("CURRENCY", "SZL"),
		SweepSchedule: getEnv("SWEEP_SCHEDULE", ""),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SenderEmail:   getEnv("SENDER_EMAIL", ""),
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	var err error
	if cfg.InterestRate, err = decimal.NewFromString(getEnv("INTEREST_RATE", "0.2000")); err != nil {
		return nil, fmt.Errorf("invalid INTEREST_RATE: %w", err)
	}
	if cfg.InitialDeposit, err = decimal.NewFromString(getEnv("INITIAL_DEPOSIT", "1000.00")); err != nil {
		return nil, fmt.Errorf("invalid INITIAL_DEPOSIT: %w", err)
	}
	if cfg.CloseTolerance, err = decimal.NewFromString(getEnv("CLOSE_TOLERANCE", "0.01")); err != nil {
		return nil, fmt.Errorf("invalid CLOSE_TOLERANCE: %w", err)
	}
	if cfg.DueDay, err = strconv.Atoi(getEnv("DUE_DAY", "5")); err != nil {
		return nil, fmt.Errorf("invalid DUE_DAY: %w", err)
	}
	if cfg.DueDay < 1 || cfg.DueDay > 28 {
		return nil, fmt.Errorf("DUE_DAY must be between 1 and 28, got %d", cfg.DueDay)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
