// Package config loads the service configuration from YAML and environment.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Stats    StatsConfig    `yaml:"stats"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"3000"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	GinMode         string        `yaml:"gin_mode"         env:"GIN_MODE"                env-default:"release"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `yaml:"url"                env:"DB_URL"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DB_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"DB_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DB_MAX_CONN_LIFETIME"  env-default:"1h"`
	// Neon closes idle connections after ~5 minutes.
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" env-default:"4m"`
	// SimpleProtocol avoids "cached plan must not change result type" errors
	// from server-side prepared statement caches after schema changes.
	SimpleProtocol   bool          `yaml:"simple_protocol"   env:"DB_SIMPLE_PROTOCOL"   env-default:"true"`
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"DB_STATEMENT_TIMEOUT" env-default:"10s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string `yaml:"level"       env:"LOG_LEVEL" env-default:"info"`
	Development bool   `yaml:"development" env:"LOG_DEV"   env-default:"false"`
}

// StatsConfig tunes the daily aggregate and the stats endpoints.
type StatsConfig struct {
	MaxRangeDays     int           `yaml:"max_range_days"    env:"STATS_MAX_RANGE_DAYS"    env-default:"92"`
	RecomputeTimeout time.Duration `yaml:"recompute_timeout" env:"STATS_RECOMPUTE_TIMEOUT" env-default:"5s"`
	RangeConcurrency int           `yaml:"range_concurrency" env:"STATS_RANGE_CONCURRENCY" env-default:"8"`
	DefaultTimezone  string        `yaml:"default_timezone"  env:"STATS_DEFAULT_TIMEZONE"  env-default:"UTC"`
}
