package config

import (
	"errors"
	"fmt"
	"strings"

	"marketfeed/internal/market"
)

func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http.timeout must be positive"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Cache.MaxItems < 0 {
		errs = append(errs, errors.New("cache.max_items cannot be negative"))
	}
	if c.Fetch.MaxAttempts < 1 {
		errs = append(errs, errors.New("fetch.max_attempts must be at least 1"))
	}
	if c.Fetch.BaseDelay <= 0 || c.Fetch.MaxDelay < c.Fetch.BaseDelay {
		errs = append(errs, fmt.Errorf("fetch delays invalid: base %s, max %s", c.Fetch.BaseDelay, c.Fetch.MaxDelay))
	}
	if c.Fetch.AttemptTimeout <= 0 {
		errs = append(errs, errors.New("fetch.attempt_timeout must be positive"))
	}
	if _, err := c.Priority(); err != nil {
		errs = append(errs, err)
	}
	if c.Warmer.Enabled {
		if strings.TrimSpace(c.Warmer.Spec) == "" {
			errs = append(errs, errors.New("warmer.spec is required when the warmer is enabled"))
		}
		if _, err := c.WarmupRequests(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Store.Enabled && c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required when the store is enabled"))
	}
	return errors.Join(errs...)
}

// Priority parses fetch.priority, dropping disabled providers.
func (c *Config) Priority() ([]market.Source, error) {
	out := make([]market.Source, 0, len(c.Fetch.Priority))
	for _, raw := range c.Fetch.Priority {
		src, err := market.ParseSource(raw)
		if err != nil || src == market.SourceAuto {
			return nil, fmt.Errorf("fetch.priority: unknown source %q", raw)
		}
		if c.Providers.Get(src).Enabled {
			out = append(out, src)
		}
	}
	return out, nil
}

// WarmupRequests expands the warmer watchlist into fetch requests.
func (c *Config) WarmupRequests() ([]market.Request, error) {
	src, err := market.ParseSource(c.Warmer.Source)
	if err != nil {
		return nil, fmt.Errorf("warmer.source: %w", err)
	}
	var reqs []market.Request
	for _, raw := range c.Warmer.Intervals {
		iv, err := market.ParseInterval(raw)
		if err != nil {
			return nil, fmt.Errorf("warmer.intervals: %w", err)
		}
		for _, sym := range c.Warmer.Symbols {
			req := market.Request{Symbol: strings.TrimSpace(sym), Interval: iv, Limit: c.Warmer.Limit, Source: src}
			if err := req.Validate(); err != nil {
				return nil, fmt.Errorf("warmer: %w", err)
			}
			reqs = append(reqs, req)
		}
	}
	return reqs, nil
}
