package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"FINFLOW_APP_NAME":                os.Getenv("FINFLOW_APP_NAME"),
		"FINFLOW_APP_ENV":                 os.Getenv("FINFLOW_APP_ENV"),
		"FINFLOW_APP_PORT":                os.Getenv("FINFLOW_APP_PORT"),
		"FINFLOW_DATABASE_DRIVER":         os.Getenv("FINFLOW_DATABASE_DRIVER"),
		"FINFLOW_DATABASE_HOST":           os.Getenv("FINFLOW_DATABASE_HOST"),
		"FINFLOW_DATABASE_PORT":           os.Getenv("FINFLOW_DATABASE_PORT"),
		"FINFLOW_DATABASE_USER":           os.Getenv("FINFLOW_DATABASE_USER"),
		"FINFLOW_DATABASE_PASSWORD":       os.Getenv("FINFLOW_DATABASE_PASSWORD"),
		"FINFLOW_DATABASE_DBNAME":         os.Getenv("FINFLOW_DATABASE_DBNAME"),
		"FINFLOW_DATABASE_SSLMODE":        os.Getenv("FINFLOW_DATABASE_SSLMODE"),
		"FINFLOW_DATABASE_MAX_OPEN_CONNS": os.Getenv("FINFLOW_DATABASE_MAX_OPEN_CONNS"),
		"FINFLOW_DATABASE_MAX_IDLE_CONNS": os.Getenv("FINFLOW_DATABASE_MAX_IDLE_CONNS"),
		"FINFLOW_CURRENCY_REPORTING":      os.Getenv("FINFLOW_CURRENCY_REPORTING"),
		"FINFLOW_JWT_SECRET":              os.Getenv("FINFLOW_JWT_SECRET"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "finflow-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "finflow", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, "AED", cfg.Currency.Reporting)
		assert.False(t, cfg.Telemetry.Enabled)
		assert.Equal(t, "localhost:4317", cfg.Telemetry.CollectorEndpoint)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
	})

	t.Run("loads values from environment variables with FINFLOW prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("FINFLOW_APP_NAME", "test-app")
		os.Setenv("FINFLOW_APP_PORT", "9000")
		os.Setenv("FINFLOW_DATABASE_HOST", "testdb.local")
		os.Setenv("FINFLOW_DATABASE_PORT", "5433")
		os.Setenv("FINFLOW_DATABASE_USER", "testuser")
		os.Setenv("FINFLOW_DATABASE_PASSWORD", "testpass")
		os.Setenv("FINFLOW_DATABASE_DBNAME", "testdb")
		os.Setenv("FINFLOW_DATABASE_SSLMODE", "require")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testuser", cfg.Database.User)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "testdb", cfg.Database.DBName)
		assert.Equal(t, "require", cfg.Database.SSLMode)
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		clearEnv()
		os.Setenv("FINFLOW_DATABASE_DRIVER", "oracle")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("FINFLOW_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("FINFLOW_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("production requires a strong jwt secret", func(t *testing.T) {
		clearEnv()
		os.Setenv("FINFLOW_APP_ENV", "production")
		os.Setenv("FINFLOW_JWT_SECRET", "short")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret")
	})

	t.Run("reporting currency override", func(t *testing.T) {
		clearEnv()
		os.Setenv("FINFLOW_CURRENCY_REPORTING", "SAR")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "SAR", cfg.Currency.Reporting)
	})
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "finflow",
		Password: "p@ss/word",
		DBName:   "finflow",
		SSLMode:  "require",
	}

	dsn := d.DSN()

	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	// special characters in credentials are escaped
	assert.NotContains(t, dsn, "p@ss/word")
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", r.Addr())
}
