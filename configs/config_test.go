package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, 5, cfg.JobConcurrency)
	assert.Equal(t, time.Hour, cfg.RefreshWindow)
	assert.Equal(t, 50, cfg.PostSweepPageSize)
	assert.Equal(t, 24*time.Hour, cfg.DuplicateWindow)
	assert.Equal(t, 50, cfg.UnfollowSummaryThreshold)
	assert.Equal(t, "https://api.x.com/2", cfg.XAPIBaseURL)
	assert.Equal(t, "@every 10m", cfg.Schedules.TokenRefresh)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("JOB_CONCURRENCY", "8")
	t.Setenv("CTA_REPLY_DELAY", "2s")
	t.Setenv("ENABLE_CRON", "false")
	t.Setenv("X_TOKEN_URL", "http://localhost/token")

	cfg := LoadConfig()

	assert.Equal(t, 8, cfg.JobConcurrency)
	assert.Equal(t, 2*time.Second, cfg.CTAReplyDelay)
	assert.False(t, cfg.EnableCron)
	assert.Equal(t, "http://localhost/token", cfg.XTokenURL)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("POST_MAX_ATTEMPTS", "many")
	t.Setenv("LOOP_LOCK_TTL", "soon")

	cfg := LoadConfig()

	assert.Equal(t, 3, cfg.PostMaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.LoopLockTTL)
}
