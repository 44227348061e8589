// Package config loads the relay's settings from the environment.
//
// LOADING ORDER:
//  1. .env files (if present) are read with godotenv. They never override
//     variables already set in the process environment.
//  2. The environment is parsed into Config with caarlos0/env struct tags;
//     envDefault supplies the defaults.
//  3. Validate checks the values that tags cannot express.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config is every setting the relay reads.
type Config struct {
	PrivyAppID           string `env:"PRIVY_APP_ID,required,notEmpty"`
	PrivyAppSecret       string `env:"PRIVY_APP_SECRET,required,notEmpty"`
	PrivyVerificationKey string `env:"PRIVY_VERIFICATION_KEY"`
	PrivyAPIURL          string `env:"PRIVY_API_URL" envDefault:"https://auth.privy.io"`
	TwitterAPIURL        string `env:"TWITTER_API_URL" envDefault:"https://api.twitter.com"`

	Port      int    `env:"PORT" envDefault:"3000"`
	StaticDir string `env:"STATIC_DIR" envDefault:"public"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DBPath      string `env:"DB_PATH" envDefault:"data/x-oauth.db"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"xoauth:"`

	UpstreamTimeout    time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`
	TweetRatePerMinute int           `env:"TWEET_RATE_PER_MINUTE" envDefault:"30"`
	TweetBurst         int           `env:"TWEET_BURST" envDefault:"5"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"text"`
	OTELEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load reads the given .env files (default ".env"), then the environment.
// Missing files are skipped.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be memory, sqlite or redis, got %q", c.StoreDriver))
	}
	if c.StoreDriver == DriverSQLite && c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
	}
	if c.StoreDriver == DriverRedis && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required for the redis driver"))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout))
	}
	if c.TweetRatePerMinute <= 0 || c.TweetBurst <= 0 {
		errs = append(errs, errors.New("TWEET_RATE_PER_MINUTE and TWEET_BURST must be positive"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel returns LOG_LEVEL as a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// JSONLogs reports whether LOG_FORMAT asks for JSON output.
func (c Config) JSONLogs() bool {
	return strings.EqualFold(c.LogFormat, "json")
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", s)
	}
	return lvl, nil
}
