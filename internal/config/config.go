package config

import (
	"fmt"
	"time"

	"go-inventory-insights/internal/forecast"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	// Server
	Port int    `mapstructure:"PORT"`
	Env  string `mapstructure:"APP_ENV"` // development | production

	// Database
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`
	DBPort      string `mapstructure:"DB_PORT"`

	// Redis, optional. Empty keeps cache and broadcast in-process.
	RedisURL string `mapstructure:"REDIS_URL"`

	// Auth
	JWTSecret string `mapstructure:"JWT_SECRET"`

	// Insights
	CacheTTLSeconds        int     `mapstructure:"CACHE_TTL_SECONDS"`
	RefreshIntervalSeconds int     `mapstructure:"REFRESH_INTERVAL_SECONDS"`
	WarmupTopN             int     `mapstructure:"WARMUP_TOP_N"`
	BatchConcurrency       int     `mapstructure:"BATCH_CONCURRENCY"`
	RiskCutoff             int     `mapstructure:"RISK_CUTOFF"`
	BulkAlertMin           int     `mapstructure:"BULK_ALERT_MIN"`
	MinDataPoints          int     `mapstructure:"MIN_DATA_POINTS"`
	TrendThreshold         float64 `mapstructure:"TREND_THRESHOLD"`
	StockoutWeight         float64 `mapstructure:"STOCKOUT_WEIGHT"`
	ExpiryWeight           float64 `mapstructure:"EXPIRY_WEIGHT"`

	// Realtime
	WSSendBuffer int `mapstructure:"WS_SEND_BUFFER"`
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	defaults := map[string]interface{}{
		"PORT":                     3000,
		"APP_ENV":                  "development",
		"DATABASE_URL":             "",
		"DB_HOST":                  "localhost",
		"DB_USER":                  "postgres",
		"DB_PASSWORD":              "",
		"DB_NAME":                  "inventory",
		"DB_PORT":                  "5432",
		"REDIS_URL":                "",
		"JWT_SECRET":               "",
		"CACHE_TTL_SECONDS":        30,
		"REFRESH_INTERVAL_SECONDS": 300,
		"WARMUP_TOP_N":             20,
		"BATCH_CONCURRENCY":        4,
		"RISK_CUTOFF":              80,
		"BULK_ALERT_MIN":           3,
		"MIN_DATA_POINTS":          5,
		"TREND_THRESHOLD":          0.10,
		"STOCKOUT_WEIGHT":          0.6,
		"EXPIRY_WEIGHT":            0.4,
		"WS_SEND_BUFFER":           64,
	}
	// Registering a default also makes viper bind the key for AutomaticEnv.
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	// Optional .env file for local development, does not fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.CacheTTLSeconds <= 0 || c.RefreshIntervalSeconds <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS and REFRESH_INTERVAL_SECONDS must be positive")
	}
	if c.RiskCutoff < 1 || c.RiskCutoff > 100 {
		return fmt.Errorf("RISK_CUTOFF must be within 1..100, got %d", c.RiskCutoff)
	}
	if c.StockoutWeight < 0 || c.ExpiryWeight < 0 || c.StockoutWeight+c.ExpiryWeight == 0 {
		return fmt.Errorf("risk weights must be non-negative and not both zero")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// DSN prefers DATABASE_URL and falls back to the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

func (c *Config) Forecast() forecast.Config {
	fc := forecast.DefaultConfig()
	if c.MinDataPoints > 0 {
		fc.MinDataPoints = c.MinDataPoints
	}
	if c.TrendThreshold > 0 {
		fc.TrendThreshold = c.TrendThreshold
	}
	fc.StockoutWeight = c.StockoutWeight
	fc.ExpiryWeight = c.ExpiryWeight
	return fc
}
