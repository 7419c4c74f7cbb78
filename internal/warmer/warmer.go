// Package warmer refreshes a watchlist of cache entries on a cron schedule.
package warmer

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"marketfeed/internal/fetch"
	"marketfeed/internal/logger"
	"marketfeed/internal/market"
)

// Fetcher is the part of the orchestrator the warmer drives.
type Fetcher interface {
	FetchMany(ctx context.Context, reqs []market.Request, opts ...fetch.FetchOption) []fetch.Result
}

type Warmer struct {
	cron    *cron.Cron
	fetcher Fetcher
	reqs    []market.Request
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	runs    atomic.Int64
}

// New registers the refresh job. spec uses the six-field cron syntax with
// seconds, or descriptors such as "@every 5m".
func New(ctx context.Context, spec string, reqs []market.Request, f Fetcher) (*Warmer, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := &Warmer{
		cron:    cron.New(cron.WithSeconds()),
		fetcher: f,
		reqs:    reqs,
		ctx:     ctx,
		cancel:  cancel,
	}
	if _, err := w.cron.AddFunc(spec, w.job); err != nil {
		cancel()
		return nil, fmt.Errorf("register warm-up job %q: %w", spec, err)
	}
	return w, nil
}

func (w *Warmer) Start() {
	w.cron.Start()
	logger.Infof("[warmer] started with %d request(s)", len(w.reqs))
}

// Stop cancels a running refresh and waits for it to return.
func (w *Warmer) Stop() {
	w.cancel()
	<-w.cron.Stop().Done()
	logger.Infof("[warmer] stopped")
}

// Runs reports how many refresh passes have completed.
func (w *Warmer) Runs() int64 { return w.runs.Load() }

func (w *Warmer) job() {
	if !w.running.CompareAndSwap(false, true) {
		logger.Warnf("[warmer] previous pass still running, skipping")
		return
	}
	defer w.running.Store(false)
	w.RunNow(w.ctx)
}

// RunNow refreshes every watched request once and returns the failure count.
func (w *Warmer) RunNow(ctx context.Context) (failed int) {
	if len(w.reqs) == 0 {
		return 0
	}
	for _, r := range w.fetcher.FetchMany(ctx, w.reqs, fetch.Refresh()) {
		if r.Err != nil {
			failed++
			logger.Warnf("[warmer] %s: %v", r.Request, r.Err)
		}
	}
	w.runs.Add(1)
	logger.Infof("[warmer] refreshed %d/%d", len(w.reqs)-failed, len(w.reqs))
	return failed
}
