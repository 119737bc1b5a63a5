// Package ratelimit enforces a minimum spacing between outgoing Jira API
// requests. Apache Jira is a shared public instance; a configurable
// inter-request interval keeps the scraper well below abuse thresholds.
package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limiting.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jira_rate_limit_waits_total",
		Help: "Total number of requests delayed by the rate limiter",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "jira_rate_limit_wait_seconds",
		Help:    "Time spent waiting on the rate limiter",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
)

// Limiter gates requests so that consecutive permits are issued at least
// Interval apart, across all goroutines sharing the instance. The token
// bucket (burst 1) serializes the check-and-reserve sequence internally,
// so concurrent callers cannot undershoot the interval.
type Limiter struct {
	interval time.Duration
	bucket   *rate.Limiter
	logger   zerolog.Logger
}

// NewLimiter creates a limiter issuing at most one permit per interval.
// A non-positive interval disables rate limiting.
func NewLimiter(interval time.Duration, logger zerolog.Logger) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{
		interval: interval,
		bucket:   rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// Wait blocks until the caller may issue a request, or until ctx is
// cancelled. It is safe for concurrent use.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	if waited := time.Since(start); waited > time.Millisecond {
		rateLimitWaitsTotal.Inc()
		rateLimitWaitSeconds.Observe(waited.Seconds())
		l.logger.Debug().
			Dur("waited", waited).
			Msg("Rate limiter delayed request")
	}
	return nil
}

// Interval returns the configured minimum spacing between permits.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
