// Package config loads the server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration. Every field has a default, so a
// bare environment yields a working development setup.
type Config struct {
	Host    string `env:"HOST" envDefault:"0.0.0.0"`
	Port    string `env:"PORT" envDefault:"8080"`
	GinMode string `env:"GIN_MODE" envDefault:"debug"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	IPRateLimitPerMin int     `env:"IP_RATE_LIMIT_PER_MIN" envDefault:"60"`
	RateLimitBurst    float64 `env:"RATE_LIMIT_BURST_MULTIPLIER" envDefault:"1.5"`

	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	RankingsTTL     time.Duration `env:"RANKINGS_TTL" envDefault:"15m"`
	RankingsRefresh time.Duration `env:"RANKINGS_REFRESH" envDefault:"10m"`

	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxInputLength  int           `env:"MAX_INPUT_LENGTH" envDefault:"102400"`

	// Engine bounds. Quality and fits default to [0, 1], criteria to
	// [0, 10].
	QualityMin   float64 `env:"QUALITY_MIN" envDefault:"0"`
	QualityMax   float64 `env:"QUALITY_MAX" envDefault:"1"`
	FitMin       float64 `env:"FIT_MIN" envDefault:"0"`
	FitMax       float64 `env:"FIT_MAX" envDefault:"1"`
	CriterionMin float64 `env:"CRITERION_MIN" envDefault:"0"`
	CriterionMax float64 `env:"CRITERION_MAX" envDefault:"10"`

	// DiminishingReturns makes damped derivatives the server-wide default
	// instead of an opt-in query parameter.
	DiminishingReturns bool `env:"DIMINISHING_RETURNS" envDefault:"false"`

	EnableProfiling bool `env:"ENABLE_PROFILING" envDefault:"false"`

	MemoryMonitorInterval time.Duration `env:"MEMORY_MONITOR_INTERVAL" envDefault:"30s"`
	GCThresholdMB         uint64        `env:"GC_THRESHOLD_MB" envDefault:"256"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.QualityMin >= c.QualityMax {
		return fmt.Errorf("quality bounds inverted: [%g, %g]", c.QualityMin, c.QualityMax)
	}
	if c.FitMin >= c.FitMax {
		return fmt.Errorf("fit bounds inverted: [%g, %g]", c.FitMin, c.FitMax)
	}
	if c.CriterionMin >= c.CriterionMax {
		return fmt.Errorf("criterion bounds inverted: [%g, %g]", c.CriterionMin, c.CriterionMax)
	}
	if c.IPRateLimitPerMin <= 0 {
		return fmt.Errorf("ip rate limit must be positive, got %d", c.IPRateLimitPerMin)
	}
	return nil
}

// Addr is the host:port the server listens on.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}
