// Package metrics provides the centralized Prometheus metrics registry for
// the Jira harvest engine. All metrics are defined in their respective
// packages (client, cache, ratelimit, scraper) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the harvest engine.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - jira_rate_limit_waits_total (Counter): Permits issued by the request rate limiter
//   - jira_rate_limit_wait_seconds (Histogram): Time spent waiting for a permit
//
// Cache Metrics (pkg/cache):
//   - jira_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - jira_cache_misses_total (Counter): Cache misses
//   - jira_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - jira_requests_total{op, status} (Counter): Total requests by operation and HTTP status
//   - jira_request_duration_seconds{op} (Histogram): Request duration by operation
//   - jira_errors_total{class} (Counter): Fetch errors by class
//
// Retry Metrics (pkg/client):
//   - jira_retries_total{error_class} (Counter): Retry attempts by error class
//   - jira_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - jira_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Scrape Metrics (pkg/scraper):
//   - jira_issues_processed_total{project, result} (Counter): Issues by project
//     and result (success, failed, validation_failed, already_done)
//   - jira_fetches_in_flight (Gauge): Detail fetches currently in flight
//   - jira_state_saves_total (Counter): Completion-state saves
//
// Example Prometheus Queries:
//
//   # Scrape Success Rate
//   sum(rate(jira_issues_processed_total{result="success"}[5m])) /
//   sum(rate(jira_issues_processed_total[5m]))
//
//   # Request Error Rate
//   rate(jira_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(jira_request_duration_seconds_bucket[5m]))
//
//   # Retry Pressure
//   rate(jira_retries_total[5m])
