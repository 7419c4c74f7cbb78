// Package fetch is the single entry point for OHLCV data. It consults the
// cache, walks the provider fallback order and retries transient failures.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"golang.org/x/sync/errgroup"

	"marketfeed/internal/cache"
	"marketfeed/internal/logger"
	"marketfeed/internal/market"
	"marketfeed/internal/provider"
)

// ErrSourceNotConfigured is recorded when an explicit source has no adapter.
var ErrSourceNotConfigured = errors.New("source not configured")

// Normalizer converts raw payloads into series.
type Normalizer interface {
	Normalize(p provider.Payload, desc provider.Descriptor) (market.Series, error)
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	cfg      Config
	adapters map[market.Source]provider.Adapter
	order    []market.Source
	cache    *cache.Cache
	norm     Normalizer
	session  io.Closer
	sleep    func(context.Context, time.Duration) error

	// depth remembers how many bars each cached entry can serve.
	depthMu sync.Mutex
	depth   map[cache.Key]int

	stats     stats
	closeOnce sync.Once
}

type Option func(*Orchestrator)

// WithSession hands ownership of the HTTP session to the orchestrator.
func WithSession(c io.Closer) Option {
	return func(o *Orchestrator) { o.session = c }
}

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

func New(cfg Config, adapters []provider.Adapter, c *cache.Cache, n Normalizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg.withDefaults(),
		adapters: make(map[market.Source]provider.Adapter, len(adapters)),
		cache:    c,
		norm:     n,
		sleep:    sleepCtx,
		depth:    make(map[cache.Key]int),
	}
	if o.cache == nil {
		o.cache = cache.New()
	}
	for _, a := range adapters {
		o.adapters[a.Descriptor().Source] = a
	}
	for _, src := range o.cfg.Priority {
		if _, ok := o.adapters[src]; ok && !slices.Contains(o.order, src) {
			o.order = append(o.order, src)
		}
	}
	for _, src := range market.Sources() {
		if _, ok := o.adapters[src]; ok && !slices.Contains(o.order, src) {
			o.order = append(o.order, src)
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sources returns the configured providers in fallback order.
func (o *Orchestrator) Sources() []market.Source { return slices.Clone(o.order) }

// FetchOHLCV returns the newest limit bars of symbol at interval. source
// market.SourceAuto walks the fallback order; any other source is tried alone.
func (o *Orchestrator) FetchOHLCV(ctx context.Context, symbol string, interval market.Interval, limit int, source market.Source) (market.Series, error) {
	return o.Fetch(ctx, market.Request{Symbol: symbol, Interval: interval, Limit: limit, Source: source})
}

type fetchOptions struct {
	ttl     time.Duration
	refresh bool
}

type FetchOption func(*fetchOptions)

// WithTTL overrides the cache TTL for the entry this call may store.
func WithTTL(ttl time.Duration) FetchOption {
	return func(f *fetchOptions) { f.ttl = ttl }
}

// Refresh skips the cache lookup and replaces the entry.
func Refresh() FetchOption {
	return func(f *fetchOptions) { f.refresh = true }
}

func (o *Orchestrator) Fetch(ctx context.Context, req market.Request, opts ...FetchOption) (market.Series, error) {
	if req.Source == "" {
		req.Source = market.SourceAuto
	}
	if err := req.Validate(); err != nil {
		return market.Series{}, err
	}
	fo := fetchOptions{ttl: o.cfg.CacheTTL}
	for _, opt := range opts {
		opt(&fo)
	}

	o.stats.requests.Add(1)
	key := cache.KeyOf(req)
	if fo.refresh || o.loadedDepth(key) < req.Limit {
		o.cache.Invalidate(key)
	}

	load := func(ctx context.Context) (market.Series, error) {
		s, err := o.load(ctx, req)
		if err == nil {
			o.setDepth(key, max(req.Limit, s.Len()))
		}
		return s, err
	}
	s, hit, err := o.cache.GetOrLoad(ctx, key, fo.ttl, load)
	if err == nil && s.Len() < req.Limit && o.loadedDepth(key) < req.Limit {
		// Joined a shallower load that was already in flight.
		o.cache.Invalidate(key)
		s, hit, err = o.cache.GetOrLoad(ctx, key, fo.ttl, load)
	}
	if err != nil {
		var exhausted *provider.AllSourcesExhaustedError
		if errors.As(err, &exhausted) {
			o.stats.exhausted.Add(1)
		}
		return market.Series{}, err
	}
	if hit {
		o.stats.cacheHits.Add(1)
	}
	return s.Tail(req.Limit), nil
}

// Result is one FetchMany outcome.
type Result struct {
	Request market.Request
	Series  market.Series
	Err     error
}

// FetchMany runs reqs concurrently and returns results in request order.
func (o *Orchestrator) FetchMany(ctx context.Context, reqs []market.Request, opts ...FetchOption) []Result {
	out := make([]Result, len(reqs))
	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			s, err := o.Fetch(ctx, req, opts...)
			out[i] = Result{Request: req, Series: s, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Invalidate drops the cached entry for req.
func (o *Orchestrator) Invalidate(req market.Request) {
	if req.Source == "" {
		req.Source = market.SourceAuto
	}
	key := cache.KeyOf(req)
	o.cache.Invalidate(key)
	o.depthMu.Lock()
	delete(o.depth, key)
	o.depthMu.Unlock()
}

// Purge empties the cache.
func (o *Orchestrator) Purge() {
	o.cache.Purge()
	o.depthMu.Lock()
	o.depth = make(map[cache.Key]int)
	o.depthMu.Unlock()
}

// Close releases the HTTP session. Release problems are logged.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		if o.session == nil {
			return
		}
		if err := o.session.Close(); err != nil {
			logger.Warnf("[fetch] closing session: %v", err)
		}
	})
	return nil
}

func (o *Orchestrator) loadedDepth(key cache.Key) int {
	o.depthMu.Lock()
	defer o.depthMu.Unlock()
	return o.depth[key]
}

func (o *Orchestrator) setDepth(key cache.Key, limit int) {
	o.depthMu.Lock()
	o.depth[key] = limit
	o.depthMu.Unlock()
}

func (o *Orchestrator) candidates(src market.Source) []market.Source {
	if src == market.SourceAuto {
		return o.order
	}
	return []market.Source{src}
}

// load walks the candidates until one yields a non-empty series.
func (o *Orchestrator) load(ctx context.Context, req market.Request) (market.Series, error) {
	id := uuid.NewString()[:8]
	candidates := o.candidates(req.Source)
	logger.Debugf("[fetch] %s %s: candidates %v", id, req, candidates)

	var failures []provider.Failure
	for _, src := range candidates {
		a, ok := o.adapters[src]
		if !ok {
			failures = append(failures, provider.Failure{Source: src, Err: fmt.Errorf("%s: %w", src, ErrSourceNotConfigured)})
			continue
		}
		s, attempts, err := o.tryProvider(ctx, id, a, req)
		if err == nil {
			o.stats.record(src, attempts, false)
			logger.Infof("[fetch] %s %s served by %s (%d bars, %d attempt(s))", id, req, src, s.Len(), attempts)
			return s, nil
		}
		o.stats.record(src, attempts, true)
		failures = append(failures, provider.Failure{Source: src, Attempts: attempts, Err: err})
		if ctx.Err() != nil {
			break
		}
		logger.Warnf("[fetch] %s %s: %s abandoned after %d attempt(s): %v", id, req, src, attempts, err)
	}

	err := &provider.AllSourcesExhaustedError{Symbol: req.Symbol, Interval: req.Interval, Failures: failures}
	logger.Errorf("[fetch] %s %v", id, err)
	return market.Series{}, err
}

// tryProvider retries one provider with exponential backoff while its
// failures stay retryable.
func (o *Orchestrator) tryProvider(ctx context.Context, id string, a provider.Adapter, req market.Request) (market.Series, int, error) {
	b := &backoff.Backoff{Min: o.cfg.BaseDelay, Max: o.cfg.MaxDelay, Factor: 2}
	src := a.Descriptor().Source
	req.Source = src

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		s, err := o.attempt(ctx, a, req)
		if err == nil {
			return s, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return market.Series{}, attempt, joinCtx(ctx, err)
		}
		if !provider.Retryable(err) || attempt == o.cfg.MaxAttempts {
			return market.Series{}, attempt, err
		}

		wait := b.Duration()
		if ra := provider.RetryAfter(err); ra > wait {
			wait = ra
		}
		if wait > o.cfg.MaxDelay {
			logger.Warnf("[fetch] %s %s asked for %s, above the %s cap", id, src, wait, o.cfg.MaxDelay)
			return market.Series{}, attempt, err
		}
		logger.Infof("[fetch] %s %s attempt %d/%d failed: %v; retrying in %s", id, src, attempt, o.cfg.MaxAttempts, err, wait)
		if serr := o.sleep(ctx, wait); serr != nil {
			return market.Series{}, attempt, joinCtx(ctx, err)
		}
	}
	return market.Series{}, o.cfg.MaxAttempts, lastErr
}

// attempt is one bounded adapter call followed by normalization.
func (o *Orchestrator) attempt(ctx context.Context, a provider.Adapter, req market.Request) (market.Series, error) {
	desc := a.Descriptor()
	actx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
	defer cancel()

	p, err := a.Fetch(actx, req)
	if err != nil {
		return market.Series{}, classify(desc.Source, err)
	}
	s, err := o.norm.Normalize(p, desc)
	if err != nil {
		return market.Series{}, classify(desc.Source, err)
	}
	if s.Empty() {
		return market.Series{}, &provider.UnsupportedSymbolError{Source: desc.Source, Symbol: req.Symbol, Interval: req.Interval, Reason: "no valid bars"}
	}
	return s, nil
}

// classify keeps taxonomy errors and treats everything else as transient,
// so raw transport errors never escape.
func classify(src market.Source, err error) error {
	var (
		rl *provider.RateLimitError
		au *provider.AuthError
		tn *provider.TransientNetworkError
		us *provider.UnsupportedSymbolError
		se *provider.SchemaError
	)
	switch {
	case errors.As(err, &rl), errors.As(err, &au), errors.As(err, &tn), errors.As(err, &us), errors.As(err, &se):
		return err
	}
	return &provider.TransientNetworkError{Source: src, Err: err}
}

// joinCtx makes the caller's cancellation visible next to the last provider error.
func joinCtx(ctx context.Context, err error) error {
	if errors.Is(err, ctx.Err()) {
		return err
	}
	return errors.Join(ctx.Err(), err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
