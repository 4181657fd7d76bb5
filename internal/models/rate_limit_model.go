package models

import "time"

const (
	RateLimitCritical = "critical"
	RateLimitWarning  = "warning"
	RateLimitOK       = "ok"
)

type RateLimitRecord struct {
	Endpoint   string    `db:"endpoint" json:"endpoint"`
	TokenScope string    `db:"token_scope" json:"token_scope"`
	Remaining  int       `db:"remaining" json:"remaining"`
	LimitTotal int       `db:"limit_total" json:"limit_total"`
	ResetAt    time.Time `db:"reset_at" json:"reset_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

func (r *RateLimitRecord) RemainingPercent() float64 {
	if r.LimitTotal <= 0 {
		return 0
	}
	return float64(r.Remaining) / float64(r.LimitTotal) * 100
}

func (r *RateLimitRecord) Severity() string {
	pct := r.RemainingPercent()
	switch {
	case pct <= 10:
		return RateLimitCritical
	case pct <= 30:
		return RateLimitWarning
	default:
		return RateLimitOK
	}
}
