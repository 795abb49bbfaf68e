package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "tavola.db", cfg.Path)
	assert.Equal(t, "wp_fson_", cfg.TablePrefix)
	assert.Equal(t, "none", cfg.Log.Format)
	assert.Equal(t, "tavola.db", cfg.DataSourceName())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, "tavola.yaml", `
driver: mysql
host: db.internal
user: booking
password: s3cret
database: restaurant
params:
  charset: utf8mb4
max_open_conns: 8
health_interval: 30s
log:
  format: json
  level: debug
`)
	t.Setenv("TAVOLA_DATABASE", "restaurant_test")
	t.Setenv("TAVOLA_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Driver)
	assert.Equal(t, 3306, cfg.Port)
	assert.Equal(t, "restaurant_test", cfg.Database)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 8, cfg.MaxOpenConns)
	assert.Equal(t, 30*time.Second, cfg.HealthInterval)
	assert.Equal(t, "booking:s3cret@tcp(db.internal:3306)/restaurant_test?charset=utf8mb4", cfg.DataSourceName())
}

func TestLoad_EnvFile(t *testing.T) {
	envPath := writeFile(t, ".env", "TAVOLA_DRIVER=pgx\nTAVOLA_HOST=localhost\nTAVOLA_DATABASE=tavola\nTAVOLA_USER=app\n")
	t.Cleanup(func() {
		for _, k := range []string{"TAVOLA_DRIVER", "TAVOLA_HOST", "TAVOLA_DATABASE", "TAVOLA_USER"} {
			_ = os.Unsetenv(k)
		}
	})

	cfg, err := Load("", envPath, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.Driver)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "host=localhost port=5432 dbname=tavola user=app", cfg.DataSourceName())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("TAVOLA_DRIVER", "oracle")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Driver")

	t.Setenv("TAVOLA_DRIVER", "mysql")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Host")
	assert.Contains(t, err.Error(), "Config.Database")

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_PostgresDSNQuoting(t *testing.T) {
	cfg := &Config{
		Driver:   "postgres",
		Host:     "db",
		Port:     5433,
		Database: "tavola",
		Password: "it's secret",
		Params:   map[string]string{"sslmode": "disable", "application_name": "tavola cli"},
	}
	assert.Equal(t,
		`host=db port=5433 dbname=tavola password='it\'s secret' application_name='tavola cli' sslmode=disable`,
		cfg.DataSourceName())
}

func TestConfig_Options(t *testing.T) {
	cfg := &Config{
		Driver:            "sqlite",
		TablePrefix:       "wp_",
		MaxOpenConns:      1,
		StmtCacheCapacity: 16,
		SensitiveFields:   []string{"phone"},
		Tracing:           TracingConfig{Enabled: true},
		Log:               LogConfig{Format: "zap", Level: "info"},
	}
	opts, err := cfg.Options(io.Discard)
	require.NoError(t, err)
	assert.Len(t, opts, 6)

	cfg.Log.Format = "xml"
	_, err = cfg.Options(io.Discard)
	assert.Error(t, err)
}
