// Package session owns the pooled HTTP transport shared by every provider
// call and guarantees it is torn down exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"marketfeed/internal/httpx"
	"marketfeed/internal/logger"
)

var (
	ErrClosed       = errors.New("session closed")
	ErrDrainTimeout = errors.New("in-flight requests still running at close")
)

// Config controls the pooled client. Timeout bounds each request end to end.
type Config struct {
	Timeout      time.Duration
	DrainTimeout time.Duration
	UserAgent    string
	Pool         httpx.Pool
}

func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		DrainTimeout: 5 * time.Second,
		UserAgent:    httpx.DefaultUserAgent,
		Pool:         httpx.DefaultPool(),
	}
}

// Manager opens sessions with a fixed configuration.
type Manager struct {
	cfg Config
}

func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	return &Manager{cfg: cfg}
}

// Open acquires a new session. The caller must Close it.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := httpx.NewTransport(m.cfg.Pool)
	gt := &guardedTransport{base: base}
	client := httpx.NewWithTransport(m.cfg.Timeout, gt)
	client.UserAgent = m.cfg.UserAgent
	s := &Session{
		id:           uuid.NewString(),
		client:       client,
		transport:    gt,
		drainTimeout: m.cfg.DrainTimeout,
	}
	logger.Debugf("[session] %s opened (timeout=%s)", s.id, m.cfg.Timeout)
	return s, nil
}

// Run opens a session, hands it to fn and releases it on every exit path,
// panics included. Release problems are logged, not returned.
func (m *Manager) Run(ctx context.Context, fn func(context.Context, *Session) error) error {
	s, err := m.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.Warnf("[session] %s release: %v", s.id, cerr)
		}
	}()
	return fn(ctx, s)
}

// Session is one acquired HTTP pool.
type Session struct {
	id           string
	client       *httpx.Client
	transport    *guardedTransport
	drainTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func (s *Session) ID() string { return s.id }

// Client implements provider.HTTPClient.
func (s *Session) Client() *httpx.Client { return s.client }

// HTTP exposes the underlying *http.Client for SDKs that require one.
func (s *Session) HTTP() *http.Client { return s.client.HTTP }

func (s *Session) Closed() bool { return s.transport.isClosed() }

// InFlight counts requests whose response bodies are still open.
func (s *Session) InFlight() int64 { return s.transport.inflight.Load() }

// Close stops new requests, waits for in-flight ones up to the drain
// timeout and closes idle connections. Later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.transport.close()
		done := make(chan struct{})
		go func() {
			s.transport.wg.Wait()
			close(done)
		}()
		timer := time.NewTimer(s.drainTimeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			s.closeErr = fmt.Errorf("%w: %d", ErrDrainTimeout, s.transport.inflight.Load())
		}
		s.transport.base.CloseIdleConnections()
		logger.Debugf("[session] %s closed", s.id)
	})
	return s.closeErr
}

// guardedTransport refuses requests once closed and counts open responses.
type guardedTransport struct {
	base *http.Transport

	mu       sync.RWMutex
	closed   bool
	wg       sync.WaitGroup
	inflight atomic.Int64
}

func (t *guardedTransport) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

func (t *guardedTransport) close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *guardedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return nil, ErrClosed
	}
	t.wg.Add(1)
	t.inflight.Add(1)
	t.mu.RUnlock()

	res, err := t.base.RoundTrip(req)
	if err != nil {
		t.done()
		return nil, err
	}
	res.Body = &trackedBody{ReadCloser: res.Body, done: t.done}
	return res, nil
}

func (t *guardedTransport) done() {
	t.inflight.Add(-1)
	t.wg.Done()
}

type trackedBody struct {
	io.ReadCloser
	once sync.Once
	done func()
}

func (b *trackedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.done)
	return err
}
