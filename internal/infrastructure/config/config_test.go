package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		chdirTemp(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "cvr-ledger", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "cvr", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, "GBP", cfg.CVR.DefaultCurrency)
		assert.Equal(t, 200, cfg.CVR.BatchSize)
		assert.Equal(t, 30*time.Minute, cfg.CVR.LockTTL)
		assert.Equal(t, 3, cfg.CVR.MaxStatusRetries)
		assert.Equal(t, time.Hour, cfg.Scheduler.BackfillInterval)
		assert.Empty(t, cfg.Redis.Addr())
	})

	t.Run("loads values from environment variables with CVR prefix", func(t *testing.T) {
		chdirTemp(t)
		t.Setenv("CVR_APP_PORT", "9000")
		t.Setenv("CVR_DATABASE_DRIVER", "sqlite")
		t.Setenv("CVR_DATABASE_SQLITE_PATH", "file::memory:?cache=shared")
		t.Setenv("CVR_CVR_DEFAULT_CURRENCY", "EUR")
		t.Setenv("CVR_CVR_BATCH_SIZE", "500")
		t.Setenv("CVR_CVR_LOCK_TTL", "5m")
		t.Setenv("CVR_REDIS_HOST", "cache.local")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, "file::memory:?cache=shared", cfg.Database.DSN())
		assert.Equal(t, "EUR", cfg.CVR.DefaultCurrency)
		assert.Equal(t, 500, cfg.CVR.BatchSize)
		assert.Equal(t, 5*time.Minute, cfg.CVR.LockTTL)
		assert.Equal(t, "cache.local:6379", cfg.Redis.Addr())
	})

	t.Run("reads an explicit toml file", func(t *testing.T) {
		dir := chdirTemp(t)
		path := filepath.Join(dir, "cvr.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[app]
name = "ledger-test"

[cvr]
batches_per_second = 2.5
run_history_limit = 7
`), 0o600))

		cfg, err := LoadFrom(path)
		require.NoError(t, err)
		assert.Equal(t, "ledger-test", cfg.App.Name)
		assert.Equal(t, 2.5, cfg.CVR.BatchesPerSecond)
		assert.Equal(t, 7, cfg.CVR.RunHistoryLimit)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		chdirTemp(t)
		_, err := LoadFrom("does-not-exist.toml")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, base().validate())
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		cfg := base()
		cfg.Database.Driver = "mysql"
		assert.ErrorContains(t, cfg.validate(), "database.driver")
	})

	t.Run("rejects batch size above the hard limit", func(t *testing.T) {
		cfg := base()
		cfg.CVR.BatchSize = 5001
		assert.ErrorContains(t, cfg.validate(), "cvr.batch_size")
	})

	t.Run("rejects negative throttle", func(t *testing.T) {
		cfg := base()
		cfg.CVR.BatchesPerSecond = -1
		assert.Error(t, cfg.validate())
	})

	t.Run("rejects idle above open connections", func(t *testing.T) {
		cfg := base()
		cfg.Database.MaxIdleConns = 100
		assert.ErrorContains(t, cfg.validate(), "max_idle_conns")
	})

	t.Run("production requires secrets and postgres", func(t *testing.T) {
		cfg := base()
		cfg.App.Env = "production"
		assert.ErrorContains(t, cfg.validate(), "jwt.secret")

		cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
		cfg.JWT.Required = true
		cfg.Database.Password = "secret"
		cfg.Database.SSLMode = "require"
		assert.NoError(t, cfg.validate())

		cfg.Database.Driver = DriverSQLite
		assert.ErrorContains(t, cfg.validate(), "postgres in production")
	})

	t.Run("sampling ratio bounds", func(t *testing.T) {
		cfg := base()
		cfg.Telemetry.SamplingRatio = 1.5
		assert.ErrorContains(t, cfg.validate(), "sampling_ratio")
	})
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Driver: DriverPostgres, Host: "db", Port: 5432, User: "u", Password: "p@ss word", DBName: "cvr", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss%20word@db:5432/cvr?sslmode=disable", d.DSN())
}
