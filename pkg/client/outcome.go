package client

import (
	"net/url"
	"time"
)

// Kind classifies the terminal result of an HTTP fetch attempt.
type Kind int

const (
	// KindSuccess is a 2xx response.
	KindSuccess Kind = iota

	// KindRateLimited is a 429 response, optionally with a Retry-After hint.
	KindRateLimited

	// KindServerError is a 5xx response.
	KindServerError

	// KindClientError is a non-429 4xx response. Retrying cannot help.
	KindClientError

	// KindTimeout is an attempt that exceeded the per-request timeout.
	KindTimeout

	// KindConnectionFailure is any other transport-level failure.
	KindConnectionFailure
)

// String returns the metric/log label for the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindClientError:
		return "client_error"
	case KindTimeout:
		return "timeout"
	case KindConnectionFailure:
		return "connection_failure"
	default:
		return "unknown"
	}
}

// Retryable reports whether outcomes of this kind may be retried.
// Client errors are terminal: the request is malformed or forbidden.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServerError, KindTimeout, KindConnectionFailure:
		return true
	default:
		return false
	}
}

// Outcome is the classified result of a fetch, terminal after the client's
// internal retry loop. Callers always receive a value; non-2xx statuses are
// not surfaced as Go errors, which keeps retry decisions uniform.
type Outcome struct {
	Kind       Kind
	StatusCode int

	// Body is the response body on success; nil otherwise.
	Body []byte

	// RetryAfter is the server-provided hint from a 429, zero if absent.
	RetryAfter time.Duration

	// Attempts is the number of HTTP calls made for this outcome.
	Attempts int

	// Err is the underlying transport error for timeout/connection kinds.
	Err error
}

// Success reports whether the fetch ultimately succeeded.
func (o Outcome) Success() bool {
	return o.Kind == KindSuccess
}

// Operation names for metric labels.
const (
	OpSearch = "search"
	OpIssue  = "issue"
)

// Request describes one logical API call.
type Request struct {
	// Endpoint is the API path, e.g. "/rest/api/2/search".
	Endpoint string

	// Params are the query parameters.
	Params url.Values

	// Op is the logical operation kind, used for metrics and cache policy.
	Op string
}
