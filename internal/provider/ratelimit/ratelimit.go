// Package ratelimit gates provider adapters by their request budget.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"marketfeed/internal/logger"
	"marketfeed/internal/market"
	"marketfeed/internal/provider"
)

// Limiter hands out permission to call a provider.
type Limiter interface {
	Wait(ctx context.Context) error
	Pause(d time.Duration)
}

// Adapter wraps a provider.Adapter and takes one permit per call. A rate
// limit answer pauses the limiter for the delay the provider asked for.
type Adapter struct {
	A provider.Adapter
	L Limiter
}

// Wrap applies the budget from a's descriptor. A token bucket is used when
// a per-minute rate is set, otherwise a minimum interval, otherwise a is
// returned as is.
func Wrap(a provider.Adapter) provider.Adapter {
	rl := a.Descriptor().RateLimit
	switch {
	case rl.RequestsPerMinute > 0:
		return &Adapter{A: a, L: PerMinute(rl.RequestsPerMinute, rl.Burst)}
	case rl.MinInterval > 0:
		return &Adapter{A: a, L: &MinInterval{Interval: rl.MinInterval}}
	default:
		return a
	}
}

func (l *Adapter) Descriptor() provider.Descriptor { return l.A.Descriptor() }

func (l *Adapter) Fetch(ctx context.Context, req market.Request) (provider.Payload, error) {
	src := l.A.Descriptor().Source
	if err := l.L.Wait(ctx); err != nil {
		return provider.Payload{}, &provider.TransientNetworkError{Source: src, Err: fmt.Errorf("waiting for rate limit: %w", err)}
	}
	p, err := l.A.Fetch(ctx, req)
	if d := provider.RetryAfter(err); d > 0 {
		logger.Infof("[ratelimit] %s asked to back off for %s", src, d)
		l.L.Pause(d)
	}
	return p, err
}
