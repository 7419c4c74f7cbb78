package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"marketfeed/internal/market"
)

// maxBody bounds how much of a response body is read.
const maxBody = 32 << 20

// Get performs a GET and classifies the outcome into the provider error
// taxonomy. Only a 200 response returns a body.
func Get(ctx context.Context, client HTTPClient, src market.Source, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, &TransientNetworkError{Source: src, Err: fmt.Errorf("performing request: %w", err)}
	}
	defer res.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err := ClassifyStatus(src, res, body); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, &TransientNetworkError{Source: src, Err: fmt.Errorf("reading body: %w", readErr)}
	}
	return body, nil
}

// ClassifyStatus maps a non-200 response onto the error taxonomy.
func ClassifyStatus(src market.Source, res *http.Response, body []byte) error {
	code := res.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &AuthError{Source: src, Err: fmt.Errorf("status %d: %s", code, snippet(body))}
	case code == http.StatusTooManyRequests:
		return &RateLimitError{Source: src, RetryAfter: ParseRetryAfter(res.Header.Get("Retry-After"), time.Now()), Message: snippet(body)}
	case code == http.StatusRequestTimeout || code >= 500:
		return &TransientNetworkError{Source: src, Err: fmt.Errorf("status %d: %s", code, snippet(body))}
	case code >= 400:
		return &UnsupportedSymbolError{Source: src, Reason: fmt.Sprintf("status %d: %s", code, snippet(body))}
	default:
		return &TransientNetworkError{Source: src, Err: fmt.Errorf("unexpected status code: %d", code)}
	}
}

// ParseRetryAfter accepts both delta-seconds and HTTP-date forms.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// IsContextError reports whether err stems from a canceled or expired context.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func snippet(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
