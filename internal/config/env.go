package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=VALUE pairs into the process environment.
// Variables that are already set win; a missing file is ignored.
func LoadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// ApplyEnv overrides cfg with any of the known environment variables.
func ApplyEnv(cfg *Config) error {
	var err error
	set := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	envString("BOT_TOKEN", &cfg.Bot.Token)
	envString("BOT_API_URL", &cfg.Bot.APIURL)

	envString("REDIS_HOST", &cfg.Redis.Host)
	set(envInt("REDIS_PORT", &cfg.Redis.Port))
	envString("REDIS_PASSWORD", &cfg.Redis.Password)
	set(envInt("REDIS_DB", &cfg.Redis.DB))
	envString("REDIS_PREFIX", &cfg.Redis.Prefix)

	envString("POSTGRES_DSN", &cfg.Postgres.DSN)
	set(envInt("PORT", &cfg.HTTP.Port))

	envString("STAGING_DIR", &cfg.Batch.StagingDir)
	set(envInt("MAX_FILES", &cfg.Batch.MaxFiles))
	set(envInt("BATCH_WORKERS", &cfg.Batch.Workers))
	set(envDuration("PROGRESS_INTERVAL", &cfg.Batch.ProgressInterval))
	set(envDuration("FILE_TIMEOUT", &cfg.Batch.FileTimeout))
	set(envDuration("IDLE_TIMEOUT", &cfg.Session.IdleTimeout))

	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FILE", &cfg.Log.File)

	return err
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

// envDuration accepts Go durations ("90s") or plain seconds ("90").
func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
