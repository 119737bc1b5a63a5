// Package client provides the core Jira HTTP client with rate limiting,
// retry classification, optional response caching, and error handling.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/issueforge/jira-harvest/pkg/cache"
	"github.com/issueforge/jira-harvest/pkg/ratelimit"
)

// Prometheus metrics for Jira client operations.
var (
	jiraRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_requests_total",
		Help: "Total Jira requests by operation and status",
	}, []string{"op", "status"})

	jiraRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jira_request_duration_seconds",
		Help:    "Jira request duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"op"})

	jiraErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_errors_total",
		Help: "Total Jira fetch errors by class",
	}, []string{"class"})

	jiraRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	jiraRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jira_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	jiraRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jira_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// DefaultBaseURL is the Apache Software Foundation Jira instance.
const DefaultBaseURL = "https://issues.apache.org/jira"

// Client is the rate-limited, retrying Jira fetch client. It is stateless
// across calls except for the shared connection pool and the rate-limiter
// clock, both owned internally.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Jira instance (default: Apache Jira).
	BaseURL string

	// User-Agent header sent on every request.
	UserAgent string

	// RateLimitInterval is the minimum spacing between requests.
	RateLimitInterval time.Duration

	// RequestTimeout applies to each individual HTTP call, independent of
	// the overall run.
	RequestTimeout time.Duration

	// PoolSize caps idle pooled connections to Jira.
	PoolSize int

	// PageSize is the search pagination page size.
	PageSize int

	// Retry is the retry policy for failed calls.
	Retry Policy

	// Redis enables the optional response cache when non-nil.
	Redis *redis.Client

	// CacheTTL is the response cache TTL (only used with Redis).
	CacheTTL time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		UserAgent:         userAgent,
		RateLimitInterval: 1 * time.Second,
		RequestTimeout:    30 * time.Second,
		PoolSize:          10,
		PageSize:          50,
		Retry:             DefaultPolicy(),
		CacheTTL:          5 * time.Minute,
	}
}

// New creates a new Jira client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultPolicy()
	}

	logger := log.With().Str("component", "jira-client").Logger()

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis, cfg.CacheTTL)
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		limiter: ratelimit.NewLimiter(cfg.RateLimitInterval, logger),
		cache:   cacheManager,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Do performs one logical API call: rate limit, HTTP attempt, outcome
// classification, and the internal retry loop. The returned Outcome is
// terminal; non-2xx responses are classified, never raised.
func (c *Client) Do(ctx context.Context, req Request) Outcome {
	startTime := time.Now()
	defer func() {
		jiraRequestDuration.WithLabelValues(req.Op).Observe(time.Since(startTime).Seconds())
	}()

	// Cache consult: search pages only. Issue fetches are deduplicated by
	// the resume state, so caching them buys nothing.
	if c.cache != nil && req.Op == OpSearch {
		key := cache.Key{Endpoint: req.Endpoint, QueryParams: req.Params}
		if entry, err := c.cache.Get(ctx, key); err == nil {
			c.logger.Debug().
				Str("endpoint", req.Endpoint).
				Msg("Response cache hit")
			return Outcome{Kind: KindSuccess, StatusCode: entry.StatusCode, Body: entry.Data}
		} else if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", req.Endpoint).Msg("Cache get error")
		}
	}

	var outcome Outcome
	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			outcome = Outcome{
				Kind:     KindConnectionFailure,
				Err:      fmt.Errorf("%w: %v", ErrContextCancelled, err),
				Attempts: attempt - 1,
			}
			return outcome
		}

		outcome = c.attempt(ctx, req)
		outcome.Attempts = attempt

		jiraRequestsTotal.WithLabelValues(req.Op, statusLabel(outcome)).Inc()

		if outcome.Success() {
			if attempt > 1 {
				c.logger.Info().
					Str("endpoint", req.Endpoint).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			c.storeInCache(ctx, req, outcome)
			return outcome
		}

		jiraErrorsTotal.WithLabelValues(outcome.Kind.String()).Inc()

		// A cancelled run must not burn the retry budget waiting.
		if ctx.Err() != nil {
			return outcome
		}

		delay, retry := c.config.Retry.Decide(outcome, attempt)
		if !retry {
			if outcome.Kind.Retryable() {
				jiraRetryExhaustedTotal.WithLabelValues(outcome.Kind.String()).Inc()
				c.logger.Error().
					Str("endpoint", req.Endpoint).
					Str("outcome", outcome.Kind.String()).
					Int("status_code", outcome.StatusCode).
					Int("max_attempts", c.config.Retry.MaxAttempts).
					Msg("Retry attempts exhausted")
			} else {
				c.logger.Warn().
					Str("endpoint", req.Endpoint).
					Int("status_code", outcome.StatusCode).
					Msg("Client error, not retrying")
			}
			return outcome
		}

		jiraRetriesTotal.WithLabelValues(outcome.Kind.String()).Inc()
		jiraRetryBackoffSeconds.WithLabelValues(outcome.Kind.String()).Observe(delay.Seconds())

		c.logger.Warn().
			Str("endpoint", req.Endpoint).
			Str("outcome", outcome.Kind.String()).
			Int("status_code", outcome.StatusCode).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			outcome.Err = fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
			return outcome
		case <-time.After(delay):
		}
	}
}

// attempt executes a single HTTP call and classifies the response.
func (c *Client) attempt(ctx context.Context, req Request) Outcome {
	url := c.config.BaseURL + req.Endpoint
	if len(req.Params) > 0 {
		url += "?" + req.Params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Outcome{Kind: KindClientError, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Outcome{Kind: classifyTransportError(err), Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return Outcome{
				Kind:       KindConnectionFailure,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("read response body: %w", readErr),
			}
		}
		return Outcome{Kind: KindSuccess, StatusCode: resp.StatusCode, Body: body}

	case resp.StatusCode == http.StatusTooManyRequests:
		drain(resp.Body)
		return Outcome{
			Kind:       KindRateLimited,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}

	case resp.StatusCode >= 500:
		drain(resp.Body)
		return Outcome{Kind: KindServerError, StatusCode: resp.StatusCode}

	default:
		drain(resp.Body)
		return Outcome{Kind: KindClientError, StatusCode: resp.StatusCode}
	}
}

// storeInCache writes a successful search response to the response cache.
func (c *Client) storeInCache(ctx context.Context, req Request, o Outcome) {
	if c.cache == nil || req.Op != OpSearch {
		return
	}
	key := cache.Key{Endpoint: req.Endpoint, QueryParams: req.Params}
	if err := c.cache.Store(ctx, key, o.Body, o.StatusCode); err != nil {
		c.logger.Warn().Err(err).Str("endpoint", req.Endpoint).Msg("Failed to cache response")
	}
}

// classifyTransportError separates timeouts from other network failures.
func classifyTransportError(err error) Kind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindConnectionFailure
}

// parseRetryAfter parses a Retry-After header in either the delay-seconds
// or the HTTP-date form. Unparsable or past values yield 0.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// statusLabel returns the jira_requests_total status label for an outcome.
func statusLabel(o Outcome) string {
	if o.StatusCode > 0 {
		return strconv.Itoa(o.StatusCode)
	}
	return o.Kind.String()
}

// drain consumes a response body so the pooled connection can be reused.
func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}
