package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	applog "tradein/internal/log"
)

type Config struct {
	Port        string
	DBDSN       string
	LogFile     string
	LogLevel    string
	QuoteTTL    time.Duration
	Currency    string
	CatalogSeed string
	SeedUsers   bool
}

const defaultQuoteTTL = 14 * 24 * time.Hour

// Load reads the configuration from the environment. A .env file, if any,
// has already been applied by the caller.
func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "tradein.db"
	} // sqlite file in project root
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	ttl := defaultQuoteTTL
	if raw := strings.TrimSpace(os.Getenv("QUOTE_TTL")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			ttl = d
		} else {
			applog.L().Warn("config.invalid", zap.String("key", "QUOTE_TTL"), zap.String("value", raw))
		}
	}
	currency := strings.ToUpper(strings.TrimSpace(os.Getenv("CURRENCY")))
	if currency == "" {
		currency = "USD"
	}
	seedUsers := true
	if raw := strings.TrimSpace(os.Getenv("SEED_USERS")); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			seedUsers = b
		}
	}

	cfg := Config{
		Port:        port,
		DBDSN:       dsn,
		LogFile:     os.Getenv("LOG_FILE"),
		LogLevel:    level,
		QuoteTTL:    ttl,
		Currency:    currency,
		CatalogSeed: os.Getenv("CATALOG_SEED"),
		SeedUsers:   seedUsers,
	}
	applog.L().Info("config",
		zap.String("port", cfg.Port),
		zap.String("db_dsn", cfg.DBDSN),
		zap.String("log_file", cfg.LogFile),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("quote_ttl", cfg.QuoteTTL),
		zap.String("currency", cfg.Currency),
		zap.String("catalog_seed", cfg.CatalogSeed),
		zap.Bool("seed_users", cfg.SeedUsers),
	)
	return cfg
}
