package config

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"marketfeed/internal/logger"
)

// ActiveDocument is the store document UpdateConfig mirrors into.
const ActiveDocument = "active"

//go:generate mockgen -package=mock -destination=mock/mirror.go -source=manager.go

// Mirror persists config updates outside the process.
type Mirror interface {
	Mirror(ctx context.Context, document string, values map[string]any) error
	Load(ctx context.Context, document string) (map[string]any, error)
}

// Manager resolves runtime config values: local cache first, then the
// environment. It is safe for concurrent use.
type Manager struct {
	mu            sync.RWMutex
	values        map[string]any
	mirror        Mirror
	lookup        func(string) (string, bool)
	mirrorTimeout time.Duration
}

type ManagerOption func(*Manager)

// WithMirror enables best-effort persistence of updates.
func WithMirror(m Mirror) ManagerOption {
	return func(c *Manager) { c.mirror = m }
}

// WithLookup replaces os.LookupEnv.
func WithLookup(fn func(string) (string, bool)) ManagerOption {
	return func(c *Manager) { c.lookup = fn }
}

// WithEnvFiles loads dotenv files into the process environment. Missing
// files are skipped; variables already set win.
func WithEnvFiles(files ...string) ManagerOption {
	return func(c *Manager) {
		for _, f := range files {
			if f == "" {
				continue
			}
			if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
				logger.Warnf("[config] loading %s: %v", f, err)
			}
		}
	}
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		values:        make(map[string]any),
		lookup:        os.LookupEnv,
		mirrorTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetConfig returns the value for key or def when neither the cache nor the
// environment has it. Environment values starting with { or [ are decoded as
// JSON; anything else is returned as a string.
func (m *Manager) GetConfig(key string, def any) any {
	m.mu.RLock()
	v, ok := m.values[key]
	m.mu.RUnlock()
	if ok {
		return v
	}

	raw, ok := m.lookup(key)
	if !ok {
		return def
	}
	val := decodeEnv(raw)
	m.mu.Lock()
	if cur, ok := m.values[key]; ok {
		val = cur
	} else {
		m.values[key] = val
	}
	m.mu.Unlock()
	return val
}

func decodeEnv(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
		logger.Debugf("[config] value starts like JSON but does not parse, keeping the string")
	}
	return raw
}

// UpdateConfig stores value under key and mirrors it when a Mirror is set.
// Mirror failures are logged only.
func (m *Manager) UpdateConfig(key string, value any) {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()

	if m.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.mirrorTimeout)
	defer cancel()
	if err := m.mirror.Mirror(ctx, ActiveDocument, map[string]any{key: value}); err != nil {
		logger.Errorf("[config] mirroring %s failed: %v", key, err)
	}
}

// Restore preloads the cache from the mirror's active document.
func (m *Manager) Restore(ctx context.Context) error {
	if m.mirror == nil {
		return nil
	}
	values, err := m.mirror.Load(ctx, ActiveDocument)
	if err != nil {
		return err
	}
	m.mu.Lock()
	for k, v := range values {
		m.values[k] = v
	}
	m.mu.Unlock()
	logger.Infof("[config] restored %d key(s)", len(values))
	return nil
}

// Keys lists the cached keys.
func (m *Manager) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.values))
	for k := range m.values {
		out = append(out, k)
	}
	return out
}
