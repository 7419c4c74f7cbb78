// Package binance fetches spot klines through the go-binance SDK.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	"marketfeed/internal/market"
	"marketfeed/internal/provider"
)

const (
	CredentialKey = "BINANCE_API_KEY"
	SecretKey     = "BINANCE_API_SECRET"

	maxKlines = 1000
)

// Config tunes the adapter. Zero values select defaults.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	RateLimit  provider.RateLimit
}

// Client wraps the SDK spot client.
type Client struct {
	sdk       *gobinance.Client
	rateLimit provider.RateLimit
}

// New builds the adapter. Klines are public, so the key pair is optional.
func New(cfg provider.ConfigGetter, c Config) (*Client, error) {
	out := &Client{rateLimit: c.RateLimit}
	if out.rateLimit.RequestsPerMinute <= 0 && out.rateLimit.MinInterval <= 0 {
		out.rateLimit = provider.RateLimit{RequestsPerMinute: 1200, Burst: 20}
	}
	key, err := provider.Credential(cfg, out.descriptor(""))
	if err != nil {
		return nil, err
	}
	var secret string
	if cfg != nil {
		secret, _ = cfg.GetConfig(SecretKey, "").(string)
	}

	sdk := gobinance.NewClient(key, strings.TrimSpace(secret))
	if base := strings.TrimSpace(c.BaseURL); base != "" {
		sdk.BaseURL = strings.TrimRight(base, "/")
	}
	if c.HTTPClient != nil {
		sdk.HTTPClient = c.HTTPClient
	}
	out.sdk = sdk
	return out, nil
}

func (c *Client) Descriptor() provider.Descriptor { return c.descriptor(c.sdk.BaseURL) }

func (c *Client) descriptor(base string) provider.Descriptor {
	return provider.Descriptor{
		Source:             market.SourceBinance,
		BaseURL:            base,
		RateLimit:          c.rateLimit,
		CredentialKey:      CredentialKey,
		CredentialOptional: true,
	}
}

// kline is the payload row handed to the normalizer.
type kline struct {
	OpenTime  int64  `json:"openTime"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	CloseTime int64  `json:"closeTime"`
	Trades    int64  `json:"trades"`
}

type document struct {
	Symbol   string  `json:"symbol"`
	Interval string  `json:"interval"`
	Klines   []kline `json:"klines"`
}

// ExchangeSymbol maps "BTC/USDT", "btc-usdt" and "BTC_USDT" to "BTCUSDT".
func ExchangeSymbol(s string) string {
	return strings.ToUpper(strings.NewReplacer("/", "", "-", "", "_", "", " ", "").Replace(s))
}

func (c *Client) Fetch(ctx context.Context, req market.Request) (provider.Payload, error) {
	symbol := ExchangeSymbol(req.Symbol)
	limit := min(req.Limit, maxKlines)

	rows, err := c.sdk.NewKlinesService().
		Symbol(symbol).
		Interval(string(req.Interval)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return provider.Payload{}, classify(err, req)
	}
	if len(rows) == 0 {
		return provider.Payload{}, &provider.UnsupportedSymbolError{Source: market.SourceBinance, Symbol: req.Symbol, Interval: req.Interval, Reason: "no klines"}
	}

	doc := document{Symbol: symbol, Interval: string(req.Interval), Klines: make([]kline, 0, len(rows))}
	for _, k := range rows {
		if k == nil {
			continue
		}
		doc.Klines = append(doc.Klines, kline{
			OpenTime:  k.OpenTime,
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
			CloseTime: k.CloseTime,
			Trades:    k.TradeNum,
		})
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return provider.Payload{}, fmt.Errorf("encoding klines: %w", err)
	}

	return provider.Payload{
		Source:     market.SourceBinance,
		Symbol:     req.Symbol,
		Interval:   req.Interval,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
	}, nil
}

// classify maps SDK errors onto the provider taxonomy.
// See https://developers.binance.com/docs/binance-spot-api-docs/errors
func classify(err error, req market.Request) error {
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		return &provider.TransientNetworkError{Source: market.SourceBinance, Err: err}
	}
	switch apiErr.Code {
	case -1003, -1015:
		return &provider.RateLimitError{Source: market.SourceBinance, Message: apiErr.Message}
	case -1002, -1022, -2008, -2014, -2015:
		return &provider.AuthError{Source: market.SourceBinance, Err: apiErr}
	case -1100, -1102, -1120, -1121:
		return &provider.UnsupportedSymbolError{Source: market.SourceBinance, Symbol: req.Symbol, Interval: req.Interval, Reason: apiErr.Message}
	}
	if apiErr.Code == 0 || apiErr.Code > -1100 {
		return &provider.TransientNetworkError{Source: market.SourceBinance, Err: apiErr}
	}
	return &provider.UnsupportedSymbolError{Source: market.SourceBinance, Symbol: req.Symbol, Interval: req.Interval, Reason: apiErr.Error()}
}
