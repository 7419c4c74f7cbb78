package provider

import (
	"context"
	"net/http"
	"time"

	"marketfeed/internal/market"
)

// RateLimit is the request budget a provider tolerates. RequestsPerMinute
// takes precedence over MinInterval when both are set.
type RateLimit struct {
	RequestsPerMinute int
	Burst             int
	MinInterval       time.Duration
}

// Descriptor is the static description of a provider, fixed at construction.
type Descriptor struct {
	Source             market.Source
	BaseURL            string
	RateLimit          RateLimit
	CredentialKey      string
	CredentialOptional bool
}

// Payload is a raw provider response, not yet normalized.
type Payload struct {
	Source     market.Source
	Symbol     string
	Interval   market.Interval
	Body       []byte
	ReceivedAt time.Time
}

// Adapter fetches raw OHLCV payloads from one provider.
//
//go:generate mockgen -package=mock -destination=mock/provider.go -source=provider.go
type Adapter interface {
	Descriptor() Descriptor
	Fetch(ctx context.Context, req market.Request) (Payload, error)
}

// HTTPClient describes an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ConfigGetter resolves configuration values such as API keys.
type ConfigGetter interface {
	GetConfig(key string, def any) any
}
