package fetch

import (
	"sync"
	"sync/atomic"

	"marketfeed/internal/market"
)

// SourceStats counts work done against one provider.
type SourceStats struct {
	Attempts  int64 `json:"attempts"`
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
}

// Stats is a snapshot of orchestrator counters.
type Stats struct {
	Requests  int64                         `json:"requests"`
	CacheHits int64                         `json:"cache_hits"`
	Exhausted int64                         `json:"exhausted"`
	Sources   map[market.Source]SourceStats `json:"sources"`
}

type stats struct {
	requests  atomic.Int64
	cacheHits atomic.Int64
	exhausted atomic.Int64

	mu      sync.Mutex
	sources map[market.Source]SourceStats
}

func (s *stats) record(src market.Source, attempts int, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sources == nil {
		s.sources = make(map[market.Source]SourceStats)
	}
	st := s.sources[src]
	st.Attempts += int64(attempts)
	if failed {
		st.Failures++
	} else {
		st.Successes++
	}
	s.sources[src] = st
}

func (o *Orchestrator) Stats() Stats {
	o.stats.mu.Lock()
	sources := make(map[market.Source]SourceStats, len(o.stats.sources))
	for k, v := range o.stats.sources {
		sources[k] = v
	}
	o.stats.mu.Unlock()
	return Stats{
		Requests:  o.stats.requests.Load(),
		CacheHits: o.stats.cacheHits.Load(),
		Exhausted: o.stats.exhausted.Load(),
		Sources:   sources,
	}
}
