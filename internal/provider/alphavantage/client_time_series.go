package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"marketfeed/internal/market"
	"marketfeed/internal/provider"
)

// compactSize is how many points outputsize=compact returns.
const compactSize = 100

// rateLimitPause is how long the free tier asks callers to back off.
const rateLimitPause = time.Minute

var intradayIntervals = map[market.Interval]string{
	market.Interval1m:  "1min",
	market.Interval5m:  "5min",
	market.Interval15m: "15min",
	market.Interval30m: "30min",
	market.Interval1h:  "60min",
}

// Fetch retrieves the raw time series document for req.
func (c *Client) Fetch(ctx context.Context, req market.Request) (provider.Payload, error) {
	query := maps.Clone(c.query)
	switch {
	case intradayIntervals[req.Interval] != "":
		query.Set("function", "TIME_SERIES_INTRADAY")
		query.Set("interval", intradayIntervals[req.Interval])
	case req.Interval == market.Interval1d:
		query.Set("function", "TIME_SERIES_DAILY")
	case req.Interval == market.Interval1w:
		query.Set("function", "TIME_SERIES_WEEKLY")
	case req.Interval == market.Interval1M:
		query.Set("function", "TIME_SERIES_MONTHLY")
	default:
		return provider.Payload{}, &provider.UnsupportedSymbolError{
			Source: market.SourceAlphaVantage, Symbol: req.Symbol, Interval: req.Interval,
			Reason: "interval not offered",
		}
	}
	query.Set("symbol", strings.ToUpper(strings.TrimSpace(req.Symbol)))
	query.Set("datatype", "json")
	if req.Limit > compactSize {
		query.Set("outputsize", "full")
	} else {
		query.Set("outputsize", "compact")
	}

	url := fmt.Sprintf("%s/query?%s", c.baseURL, query.Encode())
	body, err := provider.Get(ctx, c.httpClient, market.SourceAlphaVantage, url, c.header)
	if err != nil {
		return provider.Payload{}, err
	}
	if err := classifyEnvelope(body, req); err != nil {
		return provider.Payload{}, err
	}

	return provider.Payload{
		Source:     market.SourceAlphaVantage,
		Symbol:     req.Symbol,
		Interval:   req.Interval,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
	}, nil
}

// classifyEnvelope maps the 200-with-message answers Alpha Vantage uses
// for errors onto the provider error taxonomy.
func classifyEnvelope(body []byte, req market.Request) error {
	doc := gjson.ParseBytes(body)
	if msg := doc.Get("Error Message"); msg.Exists() {
		if mentionsKey(msg.Str) {
			return &provider.AuthError{Source: market.SourceAlphaVantage, Err: errors.New(msg.Str)}
		}
		return &provider.UnsupportedSymbolError{
			Source: market.SourceAlphaVantage, Symbol: req.Symbol, Interval: req.Interval, Reason: msg.Str,
		}
	}
	for _, field := range []string{"Note", "Information"} {
		msg := doc.Get(field)
		if !msg.Exists() {
			continue
		}
		lower := strings.ToLower(msg.Str)
		switch {
		case strings.Contains(lower, "rate limit") || strings.Contains(lower, "call frequency") || strings.Contains(lower, "requests per"):
			return &provider.RateLimitError{Source: market.SourceAlphaVantage, RetryAfter: rateLimitPause, Message: msg.Str}
		case mentionsKey(msg.Str) || strings.Contains(lower, "premium"):
			return &provider.AuthError{Source: market.SourceAlphaVantage, Err: errors.New(msg.Str)}
		}
	}
	return nil
}

func mentionsKey(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "apikey") || strings.Contains(lower, "api key")
}
