package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MinInterval spaces calls at least Interval apart. Concurrent callers
// reserve consecutive slots.
type MinInterval struct {
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Wait(ctx context.Context) error {
	m.mu.Lock()
	now := time.Now()
	slot := m.next
	if slot.Before(now) {
		slot = now
	}
	m.next = slot.Add(m.Interval)
	m.mu.Unlock()

	if wait := time.Until(slot); wait > 0 {
		return sleep(ctx, wait)
	}
	return nil
}

// Pause pushes the next free slot at least d into the future.
func (m *MinInterval) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	if until := time.Now().Add(d); until.After(m.next) {
		m.next = until
	}
	m.mu.Unlock()
}
