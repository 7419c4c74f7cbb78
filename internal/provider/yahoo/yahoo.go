// Package yahoo fetches bars from the public Yahoo Finance chart API.
package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"marketfeed/internal/market"
	"marketfeed/internal/provider"
)

const (
	baseURL   = "https://query1.finance.yahoo.com"
	userAgent = "Mozilla/5.0 (compatible; marketfeed/1.0)"
)

var intervals = map[market.Interval]string{
	market.Interval1m:  "1m",
	market.Interval5m:  "5m",
	market.Interval15m: "15m",
	market.Interval30m: "30m",
	market.Interval1h:  "60m",
	market.Interval1d:  "1d",
	market.Interval1w:  "1wk",
	market.Interval1M:  "1mo",
}

type chartRange struct {
	name string
	span time.Duration
}

const day = 24 * time.Hour

var ranges = []chartRange{
	{"1d", day},
	{"5d", 5 * day},
	{"1mo", 30 * day},
	{"3mo", 90 * day},
	{"6mo", 180 * day},
	{"1y", 365 * day},
	{"2y", 730 * day},
	{"5y", 5 * 365 * day},
	{"10y", 10 * 365 * day},
	{"max", 0},
}

// Yahoo only keeps fine intraday history for a short while.
var maxRange = map[market.Interval]string{
	market.Interval1m:  "5d",
	market.Interval5m:  "1mo",
	market.Interval15m: "1mo",
	market.Interval30m: "1mo",
	market.Interval1h:  "1y",
}

type Client struct {
	baseURL    string
	httpClient provider.HTTPClient
	header     http.Header
	rateLimit  provider.RateLimit
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

// New needs no credential.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{"User-Agent": []string{userAgent}},
		rateLimit:  provider.RateLimit{MinInterval: 500 * time.Millisecond},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Descriptor() provider.Descriptor {
	return provider.Descriptor{
		Source:    market.SourceYahoo,
		BaseURL:   c.baseURL,
		RateLimit: c.rateLimit,
	}
}

func (c *Client) Fetch(ctx context.Context, req market.Request) (provider.Payload, error) {
	yiv, ok := intervals[req.Interval]
	if !ok {
		return provider.Payload{}, &provider.UnsupportedSymbolError{Source: market.SourceYahoo, Symbol: req.Symbol, Interval: req.Interval, Reason: "interval not offered"}
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	q := url.Values{}
	q.Set("interval", yiv)
	q.Set("range", RangeFor(req.Interval, req.Limit))
	q.Set("includePrePost", "false")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	body, err := provider.Get(ctx, c.httpClient, market.SourceYahoo, u, c.header)
	if err != nil {
		return provider.Payload{}, err
	}

	doc := gjson.ParseBytes(body)
	if e := doc.Get("chart.error"); e.Exists() && e.Type != gjson.Null {
		return provider.Payload{}, &provider.UnsupportedSymbolError{Source: market.SourceYahoo, Symbol: req.Symbol, Interval: req.Interval, Reason: e.Get("description").Str}
	}
	if !doc.Get("chart.result.0.timestamp").Exists() {
		return provider.Payload{}, &provider.UnsupportedSymbolError{Source: market.SourceYahoo, Symbol: req.Symbol, Interval: req.Interval, Reason: "no data"}
	}

	return provider.Payload{
		Source:     market.SourceYahoo,
		Symbol:     req.Symbol,
		Interval:   req.Interval,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
	}, nil
}

// RangeFor picks the smallest chart range that should contain limit bars,
// capped by how far back Yahoo serves the interval.
func RangeFor(iv market.Interval, limit int) string {
	slack := 2.0
	if iv.Intraday() {
		slack = 4.0
	}
	need := float64(limit) * slack * float64(iv.Duration())
	pick := "max"
	for _, r := range ranges {
		if r.span > 0 && float64(r.span) >= need {
			pick = r.name
			break
		}
	}
	if ceiling, ok := maxRange[iv]; ok && rangeIndex(pick) > rangeIndex(ceiling) {
		return ceiling
	}
	return pick
}

func rangeIndex(name string) int {
	for i, r := range ranges {
		if r.name == name {
			return i
		}
	}
	return len(ranges)
}
