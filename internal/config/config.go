package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	// Empty DatabaseURL runs the service on in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	// Comma separated.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	RabbitURL    string `mapstructure:"RABBIT_URL"`

	CatalogFile string `mapstructure:"CATALOG_FILE"`

	MatchTimeout       time.Duration `mapstructure:"MATCH_TIMEOUT"`
	MatchRetryInterval time.Duration `mapstructure:"MATCH_RETRY_INTERVAL"`
	MatchMaxAttempts   int           `mapstructure:"MATCH_MAX_ATTEMPTS"`
	MatchPolicy        string        `mapstructure:"MATCH_POLICY"`

	RateLimitPerMin int `mapstructure:"RATE_LIMIT_PER_MIN"`
}

// Load reads config.yaml (if present) and the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	v.SetDefault("APP_PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("RABBIT_URL", "")
	v.SetDefault("CATALOG_FILE", "")
	v.SetDefault("MATCH_TIMEOUT", "30s")
	v.SetDefault("MATCH_RETRY_INTERVAL", "2s")
	v.SetDefault("MATCH_MAX_ATTEMPTS", 5)
	v.SetDefault("MATCH_POLICY", "nearest")
	v.SetDefault("RATE_LIMIT_PER_MIN", 120)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return &cfg, nil
}

// Brokers splits KafkaBrokers, dropping blanks.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool { return c.Env == "production" }
