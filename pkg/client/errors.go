package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during
	// a rate-limit wait or retry backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// JiraError represents a terminal fetch failure with its classification.
type JiraError struct {
	StatusCode int
	Kind       Kind
	Endpoint   string
	Attempts   int
	Err        error
}

// Error implements the error interface.
func (e *JiraError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jira %s error on %s (status %d, %d attempts): %v",
			e.Kind, e.Endpoint, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("jira %s error on %s (status %d, %d attempts)",
		e.Kind, e.Endpoint, e.StatusCode, e.Attempts)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *JiraError) Unwrap() error {
	return e.Err
}

// failureError converts a non-success outcome into a *JiraError. Outcomes
// of retryable kinds reached the attempt budget, so they wrap
// ErrRetryExhausted.
func failureError(endpoint string, o Outcome) error {
	if o.Success() {
		return nil
	}
	err := o.Err
	if o.Kind.Retryable() {
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrRetryExhausted, err)
		} else {
			err = ErrRetryExhausted
		}
	}
	return &JiraError{
		StatusCode: o.StatusCode,
		Kind:       o.Kind,
		Endpoint:   endpoint,
		Attempts:   o.Attempts,
		Err:        err,
	}
}
