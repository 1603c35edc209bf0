// Package config loads application configuration from environment variables
// (optionally a .env file) via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config groups the application configuration.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Log        LogConfig
	CostPolicy CostPolicyConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Env  string // development, staging, production
	Name string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// DBConfig holds PostgreSQL settings. When DatabaseURL is set it is used as
// the full connection string; otherwise the DSN is built from parts.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
}

// ConnectionString returns DatabaseURL when set, the built DSN otherwise.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN builds a PostgreSQL connection string with URL-encoded credentials.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// RedisConfig holds optional redis settings for the distributed product lock.
// An empty Addr means the in-process keyed lock is used.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CostPolicyConfig controls how COGS is estimated for consigned products
// whose sale lines have no recorded batch allocations. The ratio is a
// fraction of sell price. There is deliberately no default: when unset,
// estimation is disabled and such lines are only flagged for reconciliation.
type CostPolicyConfig struct {
	EstimateRatio *decimal.Decimal
}

// Load reads configuration from environment variables, with an optional
// .env file in the working directory. Env vars take priority.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // missing file is fine

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:  getString(v, "APP_ENV", "development"),
			Name: getString(v, "APP_NAME", "koperasi-inventory"),
		},
		Log: LogConfig{
			Level: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "koperasi"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getString(v, "REDIS_ADDR", ""),
			Password: getString(v, "REDIS_PASSWORD", ""),
			DB:       getInt(v, "REDIS_DB", 0),
		},
	}

	if s := getString(v, "CONSIGNMENT_COST_ESTIMATE_RATIO", ""); s != "" {
		ratio, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("parse CONSIGNMENT_COST_ESTIMATE_RATIO: %w", err)
		}
		if ratio.IsNegative() || ratio.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("CONSIGNMENT_COST_ESTIMATE_RATIO must be in [0, 1], got %s", ratio)
		}
		cfg.CostPolicy.EstimateRatio = &ratio
	}

	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		return v.GetInt(key)
	}
	return def
}
