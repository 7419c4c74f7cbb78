package alphavantage

import (
	"net/http"
	"net/url"

	"marketfeed/internal/market"
	"marketfeed/internal/provider"
)

const (
	baseURL = "https://www.alphavantage.co"

	// CredentialKey is the config key holding the API key.
	CredentialKey = "ALPHA_VANTAGE_API_KEY"
)

// Client is a client for the Alpha Vantage time series API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient provider.HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
	// rateLimit is the request budget advertised in the descriptor.
	rateLimit provider.RateLimit
}

// Option is a configuration option for the Alpha Vantage client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient provider.HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithRateLimit overrides the default free-tier budget.
func WithRateLimit(rl provider.RateLimit) Option {
	return func(c *Client) {
		if rl.RequestsPerMinute > 0 || rl.MinInterval > 0 {
			c.rateLimit = rl
		}
	}
}

// New creates a client, resolving the API key through cfg. A missing key
// fails here with *provider.AuthError.
func New(cfg provider.ConfigGetter, options ...Option) (*Client, error) {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
		rateLimit:  provider.RateLimit{RequestsPerMinute: 5, Burst: 1},
	}
	for _, option := range options {
		option(c)
	}
	key, err := provider.Credential(cfg, c.Descriptor())
	if err != nil {
		return nil, err
	}
	c.query.Set("apikey", key)
	return c, nil
}

func (c *Client) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Source:        market.SourceAlphaVantage,
		BaseURL:       c.baseURL,
		RateLimit:     c.rateLimit,
		CredentialKey: CredentialKey,
	}
}
