// Package config loads database settings for tavola from an optional YAML
// file, a .env file and TAVOLA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/coregx/tavola/internal/core"
	"github.com/coregx/tavola/internal/logger"
	"github.com/coregx/tavola/internal/tracer"
)

// EnvPrefix is the prefix of environment overrides: TAVOLA_DRIVER,
// TAVOLA_LOG_LEVEL and so on.
const EnvPrefix = "TAVOLA"

// Config holds the connection and handle settings.
type Config struct {
	Driver   string            `mapstructure:"driver" yaml:"driver" validate:"required,oneof=mysql postgres pgx sqlite"`
	Host     string            `mapstructure:"host" yaml:"host" validate:"required_unless=Driver sqlite"`
	Port     int               `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	User     string            `mapstructure:"user" yaml:"user"`
	Password string            `mapstructure:"password" yaml:"-"`
	Database string            `mapstructure:"database" yaml:"database" validate:"required_unless=Driver sqlite"`
	Path     string            `mapstructure:"path" yaml:"path"`
	Params   map[string]string `mapstructure:"params" yaml:"params"`

	TablePrefix       string        `mapstructure:"table_prefix" yaml:"table_prefix"`
	MaxOpenConns      int           `mapstructure:"max_open_conns" yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns      int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns" validate:"gte=0"`
	StmtCacheCapacity int           `mapstructure:"stmt_cache_capacity" yaml:"stmt_cache_capacity" validate:"gte=0"`
	HealthInterval    time.Duration `mapstructure:"health_interval" yaml:"health_interval" validate:"gte=0"`
	SensitiveFields   []string      `mapstructure:"sensitive_fields" yaml:"sensitive_fields"`

	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LogConfig selects the statement logger.
type LogConfig struct {
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=none text json zap"`
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

// TracingConfig enables OpenTelemetry spans around statements.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func setDefaults(v *viper.Viper) {
	v.SetDefault("driver", "sqlite")
	v.SetDefault("host", "")
	v.SetDefault("port", 0)
	v.SetDefault("user", "")
	v.SetDefault("password", "")
	v.SetDefault("database", "")
	v.SetDefault("path", "tavola.db")
	v.SetDefault("params", map[string]string{})
	v.SetDefault("table_prefix", "wp_fson_")
	v.SetDefault("max_open_conns", 0)
	v.SetDefault("max_idle_conns", 0)
	v.SetDefault("stmt_cache_capacity", 0)
	v.SetDefault("health_interval", "0s")
	v.SetDefault("sensitive_fields", []string{})
	v.SetDefault("log.format", "none")
	v.SetDefault("log.level", "info")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "tavola")
}

// Load reads configFile when it is not empty, then the environment. Each
// env file is loaded into the process environment first; missing env files
// are skipped. Variables already set are not overridden.
func Load(configFile string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	c.Log.Format = strings.ToLower(c.Log.Format)
	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Port == 0 {
		switch c.Driver {
		case "mysql":
			c.Port = 3306
		case "postgres", "pgx":
			c.Port = 5432
		}
	}
}

// Validate checks the struct rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
				return fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			})
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// DataSourceName builds the DSN passed to sql.Open for Driver.
func (c *Config) DataSourceName() string {
	switch c.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.Database
		if len(c.Params) > 0 {
			mc.Params = c.Params
		}
		return mc.FormatDSN()
	case "postgres", "pgx":
		pairs := []string{
			"host=" + quoteValue(c.Host),
			"port=" + strconv.Itoa(c.Port),
			"dbname=" + quoteValue(c.Database),
		}
		if c.User != "" {
			pairs = append(pairs, "user="+quoteValue(c.User))
		}
		if c.Password != "" {
			pairs = append(pairs, "password="+quoteValue(c.Password))
		}
		keys := lo.Keys(c.Params)
		sort.Strings(keys)
		for _, k := range keys {
			pairs = append(pairs, k+"="+quoteValue(c.Params[k]))
		}
		return strings.Join(pairs, " ")
	default:
		return c.Path
	}
}

// quoteValue quotes a libpq key/value when it is empty or holds spaces,
// quotes or backslashes.
func quoteValue(s string) string {
	if s != "" && !strings.ContainsAny(s, ` '\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// Options maps the config to handle options. Log output goes to w.
func (c *Config) Options(w io.Writer) ([]core.Option, error) {
	log, err := logger.New(c.Log.Format, c.Log.Level, w)
	if err != nil {
		return nil, err
	}

	opts := []core.Option{
		core.WithLogger(log),
		core.WithTablePrefix(c.TablePrefix),
	}
	if c.MaxOpenConns > 0 {
		opts = append(opts, core.WithMaxOpenConns(c.MaxOpenConns))
	}
	if c.MaxIdleConns > 0 {
		opts = append(opts, core.WithMaxIdleConns(c.MaxIdleConns))
	}
	if c.StmtCacheCapacity > 0 {
		opts = append(opts, core.WithStmtCacheCapacity(c.StmtCacheCapacity))
	}
	if len(c.SensitiveFields) > 0 {
		opts = append(opts, core.WithSensitiveFields(c.SensitiveFields...))
	}
	if c.HealthInterval > 0 {
		opts = append(opts, core.WithHealthCheck(c.HealthInterval))
	}
	if c.Tracing.Enabled {
		opts = append(opts, core.WithTracer(tracer.FromProvider(otel.GetTracerProvider())))
	}
	return opts, nil
}
