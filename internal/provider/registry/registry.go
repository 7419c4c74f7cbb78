// Package registry builds the configured set of source adapters.
package registry

import (
	"errors"

	"marketfeed/internal/config"
	"marketfeed/internal/httpx"
	"marketfeed/internal/logger"
	"marketfeed/internal/market"
	"marketfeed/internal/provider"
	"marketfeed/internal/provider/alphavantage"
	"marketfeed/internal/provider/binance"
	"marketfeed/internal/provider/polygon"
	"marketfeed/internal/provider/ratelimit"
	"marketfeed/internal/provider/yahoo"
)

type builder func(cfg provider.ConfigGetter, s config.Provider, client *httpx.Client) (provider.Adapter, error)

var builders = map[market.Source]builder{
	market.SourceAlphaVantage: func(cfg provider.ConfigGetter, s config.Provider, client *httpx.Client) (provider.Adapter, error) {
		return alphavantage.New(cfg,
			alphavantage.WithBaseURL(s.BaseURL),
			alphavantage.WithHTTPClient(client),
			alphavantage.WithRateLimit(rateLimit(s)),
		)
	},
	market.SourcePolygon: func(cfg provider.ConfigGetter, s config.Provider, client *httpx.Client) (provider.Adapter, error) {
		return polygon.New(cfg,
			polygon.WithBaseURL(s.BaseURL),
			polygon.WithHTTPClient(client),
			polygon.WithRateLimit(rateLimit(s)),
		)
	},
	market.SourceBinance: func(cfg provider.ConfigGetter, s config.Provider, client *httpx.Client) (provider.Adapter, error) {
		return binance.New(cfg, binance.Config{BaseURL: s.BaseURL, HTTPClient: client.HTTP, RateLimit: rateLimit(s)})
	},
	market.SourceYahoo: func(_ provider.ConfigGetter, s config.Provider, client *httpx.Client) (provider.Adapter, error) {
		return yahoo.New(
			yahoo.WithBaseURL(s.BaseURL),
			yahoo.WithHTTPClient(client),
			yahoo.WithRateLimit(rateLimit(s)),
		), nil
	},
}

func rateLimit(s config.Provider) provider.RateLimit {
	return provider.RateLimit{RequestsPerMinute: s.RequestsPerMinute, Burst: s.Burst, MinInterval: s.MinInterval}
}

// ErrNoClient is returned by Build when no session client is supplied.
var ErrNoClient = errors.New("registry: adapters need a session http client")

// Build constructs every enabled adapter, wrapped in its rate limiter.
// Every adapter shares client, which must come from the open session.
// Providers whose required credential is missing are logged and skipped.
func Build(settings config.Providers, cfg provider.ConfigGetter, client *httpx.Client) ([]provider.Adapter, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	var out []provider.Adapter
	for _, src := range market.Sources() {
		s := settings.Get(src)
		if !s.Enabled {
			logger.Infof("[registry] %s disabled", src)
			continue
		}
		a, err := builders[src](cfg, s, client)
		switch {
		case errors.Is(err, provider.ErrMissingCredential):
			logger.Warnf("[registry] %s skipped: %v", src, err)
			continue
		case err != nil:
			logger.Errorf("[registry] %s: %v", src, err)
			continue
		}
		out = append(out, ratelimit.Wrap(a))
		logger.Debugf("[registry] %s ready", src)
	}
	return out, nil
}
