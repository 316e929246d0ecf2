package config

import (
	"fmt"
	"slices"
	"time"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the loaded configuration. Load calls it automatically.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database.max_conns must be >= 1 (got %d)", c.Database.MaxConns)
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns must be in 0..max_conns (got %d)", c.Database.MinConns)
	}

	if !slices.Contains(logLevels, c.Log.Level) {
		return fmt.Errorf("log.level must be one of %v (got %q)", logLevels, c.Log.Level)
	}

	if err := c.Stats.validate(); err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	return nil
}

func (s *StatsConfig) validate() error {
	if s.MaxRangeDays < 1 || s.MaxRangeDays > 366 {
		return fmt.Errorf("max_range_days must be in 1..366 (got %d)", s.MaxRangeDays)
	}
	if s.RecomputeTimeout <= 0 {
		return fmt.Errorf("recompute_timeout must be > 0 (got %s)", s.RecomputeTimeout)
	}
	if s.RangeConcurrency < 1 {
		return fmt.Errorf("range_concurrency must be >= 1 (got %d)", s.RangeConcurrency)
	}
	if _, err := time.LoadLocation(s.DefaultTimezone); err != nil {
		return fmt.Errorf("default_timezone %q: %w", s.DefaultTimezone, err)
	}
	return nil
}
