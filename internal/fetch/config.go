package fetch

import (
	"time"

	"marketfeed/internal/market"
)

// Config controls retries and fallback.
type Config struct {
	// MaxAttempts is the number of tries per provider.
	MaxAttempts int
	// BaseDelay is the first backoff; each retry doubles it up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// AttemptTimeout bounds one adapter call plus normalization.
	AttemptTimeout time.Duration
	// Priority is the fallback order for market.SourceAuto.
	Priority []market.Source
	// CacheTTL applies when a call does not override it. Zero keeps the cache default.
	CacheTTL time.Duration
	// Concurrency bounds FetchMany.
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		AttemptTimeout: 30 * time.Second,
		Priority:       market.Sources(),
		Concurrency:    4,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = max(def.MaxDelay, c.BaseDelay)
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = def.AttemptTimeout
	}
	if len(c.Priority) == 0 {
		c.Priority = def.Priority
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	return c
}
