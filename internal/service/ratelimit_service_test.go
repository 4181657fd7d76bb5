package service

import (
	"context"
	"testing"
	"time"

	"github.com/maheshrc27/xpilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitRecord_OverwritesSnapshot(t *testing.T) {
	repo := &fakeRateLimitRepo{}
	tracker := NewRateLimitService(repo)
	ctx := context.Background()

	require.NoError(t, tracker.Record(ctx, "POST /2/tweets", "acc-1", "100", "50", "1700000000"))
	require.NoError(t, tracker.Record(ctx, "POST /2/tweets", "acc-1", "100", "8", "1700000900"))
	require.NoError(t, tracker.Record(ctx, "POST /2/tweets", "acc-2", "100", "25", ""))

	statuses, err := tracker.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	byScope := map[string]*RateLimitStatus{}
	for _, s := range statuses {
		byScope[s.TokenScope] = s
	}
	assert.Equal(t, 8, byScope["acc-1"].Remaining)
	assert.Equal(t, time.Unix(1700000900, 0), byScope["acc-1"].ResetAt)
	assert.Equal(t, models.RateLimitCritical, byScope["acc-1"].Severity)
	assert.InDelta(t, 25.0, byScope["acc-2"].RemainingPercent, 0.001)
	assert.Equal(t, models.RateLimitWarning, byScope["acc-2"].Severity)
}

func TestRateLimitRecord_IgnoresMissingHeaders(t *testing.T) {
	repo := &fakeRateLimitRepo{}
	tracker := NewRateLimitService(repo)

	require.NoError(t, tracker.Record(context.Background(), "GET /2/users/me", "acc-1", "", "", ""))
	assert.Empty(t, repo.records)
}

func TestRateLimitRecord_InvalidHeader(t *testing.T) {
	tracker := NewRateLimitService(&fakeRateLimitRepo{})
	assert.Error(t, tracker.Record(context.Background(), "GET /2/users/me", "acc-1", "lots", "1", ""))

	// the observer hook swallows it
	tracker.ObserveRateLimit(context.Background(), "GET /2/users/me", "acc-1", "lots", "1", "")
}
