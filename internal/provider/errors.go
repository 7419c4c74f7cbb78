package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketfeed/internal/market"
)

var ErrMissingCredential = errors.New("missing credential")

// RateLimitError means the provider asked us to slow down.
type RateLimitError struct {
	Source     market.Source
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("%s: rate limited", e.Source)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// AuthError means the credential is missing, invalid or not entitled.
type AuthError struct {
	Source market.Source
	Err    error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s: auth: %v", e.Source, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// TransientNetworkError covers timeouts, connection failures and 5xx responses.
type TransientNetworkError struct {
	Source market.Source
	Err    error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Source, e.Err)
}
func (e *TransientNetworkError) Unwrap() error { return e.Err }

// UnsupportedSymbolError means the provider cannot serve the symbol/interval pair.
type UnsupportedSymbolError struct {
	Source   market.Source
	Symbol   string
	Interval market.Interval
	Reason   string
}

func (e *UnsupportedSymbolError) Error() string {
	msg := fmt.Sprintf("%s: unsupported %s", e.Source, e.Symbol)
	if e.Interval != "" {
		msg += "@" + string(e.Interval)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// SchemaError means a payload did not have the provider's expected structure.
type SchemaError struct {
	Source market.Source
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: schema: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: schema: %s", e.Source, e.Reason)
}
func (e *SchemaError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt against the same provider may succeed.
func Retryable(err error) bool {
	var rl *RateLimitError
	var tn *TransientNetworkError
	return errors.As(err, &rl) || errors.As(err, &tn)
}

// RetryAfter returns the provider-requested delay carried by err, if any.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// Failure records why one provider was abandoned.
type Failure struct {
	Source   market.Source `json:"source"`
	Attempts int           `json:"attempts"`
	Err      error         `json:"-"`
}

func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Source   market.Source `json:"source"`
		Attempts int           `json:"attempts"`
		Error    string        `json:"error"`
	}{f.Source, f.Attempts, f.errString()})
}

func (f Failure) errString() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// AllSourcesExhaustedError is returned once every candidate provider failed.
// Failures are in the order the providers were tried.
type AllSourcesExhaustedError struct {
	Symbol   string
	Interval market.Interval
	Failures []Failure
}

func (e *AllSourcesExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s after %d attempt(s): %s", f.Source, f.Attempts, f.errString()))
	}
	return fmt.Sprintf("all sources exhausted for %s@%s: [%s]", e.Symbol, e.Interval, strings.Join(parts, "; "))
}

func (e *AllSourcesExhaustedError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			out = append(out, f.Err)
		}
	}
	return out
}
