package xapi

import (
	"context"
	"net/http"
)

const (
	HeaderRateLimit     = "x-rate-limit-limit"
	HeaderRateRemaining = "x-rate-limit-remaining"
	HeaderRateReset     = "x-rate-limit-reset"
)

// RateLimitObserver receives the raw quota headers of every response.
// Endpoint is the route template, e.g. "GET /2/users/:id/tweets".
type RateLimitObserver interface {
	ObserveRateLimit(ctx context.Context, endpoint, scope, limit, remaining, reset string)
}

func observe(ctx context.Context, obs RateLimitObserver, endpoint, scope string, h http.Header) {
	if obs == nil {
		return
	}
	limit := h.Get(HeaderRateLimit)
	remaining := h.Get(HeaderRateRemaining)
	reset := h.Get(HeaderRateReset)
	if limit == "" && remaining == "" && reset == "" {
		return
	}
	obs.ObserveRateLimit(ctx, endpoint, scope, limit, remaining, reset)
}
