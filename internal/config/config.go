package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	HTTP     HTTPConfig     `yaml:"http"`
	Batch    BatchConfig    `yaml:"batch"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`
}

type BotConfig struct {
	Token       string        `yaml:"token"`
	APIURL      string        `yaml:"api_url"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type RedisConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	Prefix     string        `yaml:"prefix"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type BatchConfig struct {
	StagingDir       string        `yaml:"staging_dir"`
	MaxFiles         int           `yaml:"max_files"`
	MinSizeRatio     float64       `yaml:"min_size_ratio"`
	FileTimeout      time.Duration `yaml:"file_timeout"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	RateLimitRetries uint64        `yaml:"rate_limit_retries"`
	Workers          int           `yaml:"workers"`
}

type SessionConfig struct {
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	ReapSchedule string        `yaml:"reap_schedule"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			APIURL:      "https://api.telegram.org",
			PollTimeout: 50 * time.Second,
			HTTPTimeout: 10 * time.Minute,
		},
		Redis: RedisConfig{
			Host:       "localhost",
			Port:       6379,
			Prefix:     "bot_renamer",
			SessionTTL: 24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Port: 10000,
		},
		Batch: BatchConfig{
			StagingDir:       filepath.Join(os.TempDir(), "bot_renamer"),
			MaxFiles:         30,
			MinSizeRatio:     0.98,
			FileTimeout:      30 * time.Minute,
			ProgressInterval: 5 * time.Second,
			MaxBackoff:       60 * time.Second,
			RateLimitRetries: 3,
			Workers:          3,
		},
		Session: SessionConfig{
			IdleTimeout:  30 * time.Minute,
			ReapSchedule: "@every 1m",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Load reads the YAML file over the defaults and then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Bot.Token == "" {
		errs = append(errs, errors.New("bot token is required (BOT_TOKEN)"))
	}
	if c.Batch.MaxFiles <= 0 {
		errs = append(errs, fmt.Errorf("max_files must be positive, got %d", c.Batch.MaxFiles))
	}
	if c.Batch.MinSizeRatio <= 0 || c.Batch.MinSizeRatio > 1 {
		errs = append(errs, fmt.Errorf("min_size_ratio must be in (0, 1], got %v", c.Batch.MinSizeRatio))
	}
	if c.Batch.StagingDir == "" {
		errs = append(errs, errors.New("staging_dir is required"))
	}
	if c.Batch.FileTimeout <= 0 {
		errs = append(errs, errors.New("file_timeout must be positive"))
	}
	if c.Batch.ProgressInterval <= 0 {
		errs = append(errs, errors.New("progress_interval must be positive"))
	}
	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, errors.New("idle_timeout must be positive"))
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid http port %d", c.HTTP.Port))
	}
	return errors.Join(errs...)
}

// EnsureDirectories creates required directories
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Batch.StagingDir, 0o755); err != nil {
		return err
	}
	if c.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.Log.File), 0o755); err != nil {
			return err
		}
	}
	return nil
}
