// Package polygon fetches aggregate bars from the Polygon REST API.
package polygon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"marketfeed/internal/market"
	"marketfeed/internal/provider"
)

const (
	baseURL       = "https://api.polygon.io"
	CredentialKey = "POLYGON_API_KEY"

	// maxAggregates is the largest page the aggregates endpoint returns.
	maxAggregates = 50000
	maxWindowDays = 50 * 365
)

type span struct {
	multiplier int
	timespan   string
}

var spans = map[market.Interval]span{
	market.Interval1m:  {1, "minute"},
	market.Interval5m:  {5, "minute"},
	market.Interval15m: {15, "minute"},
	market.Interval30m: {30, "minute"},
	market.Interval1h:  {1, "hour"},
	market.Interval4h:  {4, "hour"},
	market.Interval1d:  {1, "day"},
	market.Interval1w:  {1, "week"},
	market.Interval1M:  {1, "month"},
}

type Client struct {
	baseURL    string
	httpClient provider.HTTPClient
	header     http.Header
	rateLimit  provider.RateLimit
	now        func() time.Time
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(h provider.HTTPClient) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithRateLimit(rl provider.RateLimit) Option {
	return func(c *Client) {
		if rl.RequestsPerMinute > 0 || rl.MinInterval > 0 {
			c.rateLimit = rl
		}
	}
}

// WithClock replaces time.Now when computing the query window.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New resolves the API key through cfg and fails if it is absent.
func New(cfg provider.ConfigGetter, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		rateLimit:  provider.RateLimit{RequestsPerMinute: 5, Burst: 1},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	key, err := provider.Credential(cfg, c.Descriptor())
	if err != nil {
		return nil, err
	}
	c.header.Set("Authorization", "Bearer "+key)
	return c, nil
}

func (c *Client) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Source:        market.SourcePolygon,
		BaseURL:       c.baseURL,
		RateLimit:     c.rateLimit,
		CredentialKey: CredentialKey,
	}
}

// Fetch requests the newest aggregates covering at least req.Limit bars.
func (c *Client) Fetch(ctx context.Context, req market.Request) (provider.Payload, error) {
	sp, ok := spans[req.Interval]
	if !ok {
		return provider.Payload{}, &provider.UnsupportedSymbolError{Source: market.SourcePolygon, Symbol: req.Symbol, Interval: req.Interval, Reason: "interval not offered"}
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Symbol))
	from, to := window(c.now().UTC(), req.Interval, req.Limit)

	q := url.Values{}
	q.Set("adjusted", "true")
	q.Set("sort", "desc")
	q.Set("limit", fmt.Sprint(maxAggregates))
	u := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%d/%s/%s/%s?%s",
		c.baseURL, url.PathEscape(ticker), sp.multiplier, sp.timespan,
		from.Format(time.DateOnly), to.Format(time.DateOnly), q.Encode())

	body, err := provider.Get(ctx, c.httpClient, market.SourcePolygon, u, c.header)
	if err != nil {
		return provider.Payload{}, err
	}

	doc := gjson.ParseBytes(body)
	switch status := doc.Get("status").Str; status {
	case "ERROR", "NOT_AUTHORIZED":
		msg := doc.Get("error").Str
		if msg == "" {
			msg = doc.Get("message").Str
		}
		if status == "NOT_AUTHORIZED" {
			return provider.Payload{}, &provider.AuthError{Source: market.SourcePolygon, Err: errors.New(msg)}
		}
		return provider.Payload{}, &provider.TransientNetworkError{Source: market.SourcePolygon, Err: errors.New(msg)}
	}
	if doc.Get("resultsCount").Int() == 0 && len(doc.Get("results").Array()) == 0 {
		return provider.Payload{}, &provider.UnsupportedSymbolError{Source: market.SourcePolygon, Symbol: req.Symbol, Interval: req.Interval, Reason: "no results"}
	}

	return provider.Payload{
		Source:     market.SourcePolygon,
		Symbol:     req.Symbol,
		Interval:   req.Interval,
		Body:       body,
		ReceivedAt: c.now().UTC(),
	}, nil
}

// window returns a date range wide enough to hold limit bars once
// nights, weekends and holidays are skipped.
func window(now time.Time, iv market.Interval, limit int) (time.Time, time.Time) {
	slack := 2.0
	if iv.Intraday() {
		slack = 4.0
	}
	days := int(math.Ceil(float64(limit)*slack*iv.Duration().Hours()/24)) + 7
	if days > maxWindowDays {
		days = maxWindowDays
	}
	return now.AddDate(0, 0, -days), now
}
