package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"songrelay/logger"
)

// DefaultMusicAppURL is used when MUSIC_APP_API_URL is not set at all.
const DefaultMusicAppURL = "http://localhost:3000/api/tracks"

// Config is read once at startup and never mutated afterwards.
type Config struct {
	// MusicAppURL is resolved separately from the env tags: an explicitly empty
	// value means "not configured" and must not fall back to the default.
	MusicAppURL     string
	MusicAppAPIKey  string        `env:"MUSIC_APP_API_KEY"`
	MusicAppTimeout time.Duration `env:"MUSIC_APP_TIMEOUT" envDefault:"30s"`

	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8000"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads .env (without overriding the real environment) and parses the result.
func Load() (*Config, error) {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded, relying on process environment", logger.ErrorField(err))
	}
	return FromEnv()
}

// FromEnv parses configuration from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.MusicAppURL = getEnv("MUSIC_APP_API_URL", DefaultMusicAppURL)

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	if cfg.MusicAppTimeout <= 0 {
		return nil, fmt.Errorf("invalid MUSIC_APP_TIMEOUT %s", cfg.MusicAppTimeout)
	}
	return cfg, nil
}

// MusicAppConfigured reports whether a downstream URL is set.
func (c *Config) MusicAppConfigured() bool {
	return c.MusicAppURL != ""
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoggerConfig maps the logging settings onto the logger package.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      logger.LogLevel(c.LogLevel),
		OutputPath: c.LogFile,
		MaxSize:    c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAge:     c.LogMaxAgeDays,
		Compress:   true,
	}
}

// getEnv gets an environment variable or returns a default value.
// A variable that is set but empty is returned as empty.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
