package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, 60, cfg.IPRateLimitPerMin)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 0.0, cfg.QualityMin)
	assert.Equal(t, 1.0, cfg.QualityMax)
	assert.Equal(t, 10.0, cfg.CriterionMax)
	assert.False(t, cfg.DiminishingReturns)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("FIT_MAX", "2")
	t.Setenv("DIMINISHING_RETURNS", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("CACHE_TTL", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
	assert.Equal(t, 2.0, cfg.FitMax)
	assert.True(t, cfg.DiminishingReturns)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"inverted quality bounds", "QUALITY_MIN", "2"},
		{"inverted fit bounds", "FIT_MAX", "-1"},
		{"inverted criterion bounds", "CRITERION_MIN", "20"},
		{"zero rate limit", "IP_RATE_LIMIT_PER_MIN", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
