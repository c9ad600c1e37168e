// Package ratelimit guards the websocket upgrade boundary against login
// floods, the way the teacher backend's internal/v1/ratelimit package guards
// its HTTP and websocket entry points with github.com/ulule/limiter/v3.
package ratelimit

import (
	"context"
	"fmt"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/upperlevel/carcassonne-server/internal/logging"
	"github.com/upperlevel/carcassonne-server/internal/metrics"
)

// Limiter enforces a per-IP rate on websocket upgrade attempts.
type Limiter struct {
	inner *limiter.Limiter
}

// New builds a Limiter from a ulule/limiter formatted rate string
// (e.g. "20-M" for 20 per minute), backed by an in-process memory store.
// A Redis-backed store isn't needed here: unlike the teacher's multi-pod
// deployment, this coordinator is a single process with no horizontal
// scaling (see SPEC_FULL.md's non-goals), so per-process memory is already
// the authoritative limit.
func New(formattedRate string) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formattedRate)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: invalid rate %q: %w", formattedRate, err)
	}
	store := memory.NewStore()
	return &Limiter{inner: limiter.New(store, rate)}, nil
}

// Allow reports whether a new upgrade attempt from key (the remote IP) is
// within the configured rate. Store failures fail open: a rate limiter that
// cannot be consulted should never be the reason a login is rejected.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	res, err := l.inner.Get(ctx, key)
	if err != nil {
		logging.Warn(ctx, "ratelimit: store unavailable, failing open", zap.Error(err))
		return true
	}
	if res.Reached {
		metrics.RateLimitExceeded.WithLabelValues("login").Inc()
		return false
	}
	return true
}
