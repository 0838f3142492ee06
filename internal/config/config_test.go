package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8083", cfg.ServerPort)
	assert.Equal(t, "notifications", cfg.AMQPExchange)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 2500*time.Millisecond, cfg.ReloadBackoff)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxAttachment)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("SYNC_RELOAD_BACKOFF", "5s")
	t.Setenv("SESSION_TTL", "1h")

	cfg := Load()

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.ReloadBackoff)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
}

func TestDurationFallbackOnGarbage(t *testing.T) {
	t.Setenv("SYNC_RELOAD_BACKOFF", "soon")

	cfg := Load()
	assert.Equal(t, 2500*time.Millisecond, cfg.ReloadBackoff)
}
