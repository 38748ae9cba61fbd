package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	require := require.New(t)

	cfg := DefaultConfig()
	require.Equal(30, cfg.Batch.MaxFiles)
	require.Equal(3, cfg.Batch.Workers)
	require.Equal(0.98, cfg.Batch.MinSizeRatio)
	require.Equal(5*time.Second, cfg.Batch.ProgressInterval)
	require.Equal(30*time.Minute, cfg.Session.IdleTimeout)
	require.Equal(10000, cfg.HTTP.Port)
	require.Equal("localhost:6379", cfg.Redis.Addr())

	require.ErrorContains(cfg.Validate(), "BOT_TOKEN")
	cfg.Bot.Token = "123:abc"
	require.NoError(cfg.Validate())

	cfg.Batch.MinSizeRatio = 1.5
	cfg.Batch.MaxFiles = 0
	cfg.Batch.FileTimeout = 0
	err := cfg.Validate()
	require.ErrorContains(err, "min_size_ratio")
	require.ErrorContains(err, "max_files")
	require.ErrorContains(err, "file_timeout")
}

func TestLoadYAMLAndEnv(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(os.WriteFile(path, []byte(`
bot:
  token: from-file
redis:
  host: redis.internal
  port: 6380
batch:
  max_files: 10
  file_timeout: 5m
session:
  idle_timeout: 45m
`), 0o600))

	t.Setenv("REDIS_HOST", "redis.env")
	t.Setenv("PROGRESS_INTERVAL", "3")
	t.Setenv("IDLE_TIMEOUT", "")

	cfg, err := Load(path)
	require.NoError(err)
	require.Equal("from-file", cfg.Bot.Token)
	require.Equal("redis.env:6380", cfg.Redis.Addr())
	require.Equal(10, cfg.Batch.MaxFiles)
	require.Equal(5*time.Minute, cfg.Batch.FileTimeout)
	require.Equal(3*time.Second, cfg.Batch.ProgressInterval)
	require.Equal(45*time.Minute, cfg.Session.IdleTimeout)
	require.Equal("@every 1m", cfg.Session.ReapSchedule)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Batch, cfg.Batch)
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("MAX_FILES", "many")
	_, err := Load("")
	require.ErrorContains(t, err, "MAX_FILES")

	t.Setenv("MAX_FILES", "5")
	t.Setenv("FILE_TIMEOUT", "soon")
	_, err = Load("")
	require.ErrorContains(t, err, "FILE_TIMEOUT")
}

func TestLoadEnvFile(t *testing.T) {
	require := require.New(t)

	require.NoError(LoadEnvFile(""))
	require.NoError(LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "config.env")
	require.NoError(os.WriteFile(path, []byte("RENAMER_TEST_A=from-file\nexport RENAMER_TEST_B=\"quoted\"\n# comment\n"), 0o600))

	t.Setenv("RENAMER_TEST_A", "from-env")
	t.Setenv("RENAMER_TEST_B", "")
	require.NoError(os.Unsetenv("RENAMER_TEST_B"))

	require.NoError(LoadEnvFile(path))
	require.Equal("from-env", os.Getenv("RENAMER_TEST_A"))
	require.Equal("quoted", os.Getenv("RENAMER_TEST_B"))
}
