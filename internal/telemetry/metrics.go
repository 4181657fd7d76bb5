// Package telemetry registers the prometheus metrics exposed on GET /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobRunsTotal counts job invocations by job name and outcome (ok, error).
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xpilot_job_runs_total",
			Help: "Total number of job invocations, by job and outcome.",
		},
		[]string{"job", "outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xpilot_job_duration_seconds",
			Help:    "Histogram of job run durations, by job.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"job"},
	)

	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xpilot_token_refresh_total",
			Help: "Token refresh attempts, by outcome (success, skipped, failed).",
		},
		[]string{"outcome"},
	)

	TokenSuspensionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xpilot_token_suspensions_total",
			Help: "Accounts marked suspended after the platform rejected them.",
		},
	)

	LoopLockAcquireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xpilot_loop_lock_acquire_total",
			Help: "Loop lock acquisition attempts, by result (acquired, contended, error).",
		},
		[]string{"result"},
	)

	PostsExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xpilot_posts_executed_total",
			Help: "Post executions, by final status and failure kind.",
		},
		[]string{"status", "failure_kind"},
	)

	DuplicateRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xpilot_duplicate_rejections_total",
			Help: "Posts rejected because the same content was already posted.",
		},
	)

	CTARepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xpilot_cta_replies_total",
			Help: "CTA replies, by outcome (replied, failed).",
		},
		[]string{"outcome"},
	)

	UnfollowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xpilot_unfollows_total",
			Help: "Scheduled unfollows, by outcome (unfollowed, skipped, failed).",
		},
		[]string{"outcome"},
	)

	// RateLimitRemainingPercent is the last observed headroom per endpoint across all accounts.
	RateLimitRemainingPercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "xpilot_x_rate_limit_remaining_percent",
			Help: "Last observed remaining quota percentage, by X API endpoint.",
		},
		[]string{"endpoint"},
	)
)
