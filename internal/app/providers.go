// Package app assembles the marketfeed components.
package app

import (
	"context"
	"time"

	"marketfeed/internal/cache"
	"marketfeed/internal/config"
	"marketfeed/internal/configstore"
	"marketfeed/internal/fetch"
	"marketfeed/internal/logger"
	"marketfeed/internal/normalize"
	"marketfeed/internal/provider"
	"marketfeed/internal/provider/registry"
	"marketfeed/internal/session"
	httpapi "marketfeed/internal/transport/http"
	"marketfeed/internal/warmer"
)

// ConfigPath is the settings file location; empty means defaults only.
type ConfigPath string

func ProvideSettings(path ConfigPath) (*config.Config, error) {
	cfg, err := config.Load(string(path))
	if err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.Log.Level)
	return cfg, nil
}

// ProvideMirror opens the sqlite config store, or returns nil when it is disabled.
func ProvideMirror(cfg *config.Config) (config.Mirror, func(), error) {
	if !cfg.Store.Enabled {
		return nil, func() {}, nil
	}
	st, err := configstore.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	return st, func() {
		if err := st.Close(); err != nil {
			logger.Warnf("[app] closing config store: %v", err)
		}
	}, nil
}

func ProvideManager(cfg *config.Config, mirror config.Mirror) *config.Manager {
	opts := []config.ManagerOption{config.WithEnvFiles(cfg.EnvFiles...)}
	if mirror != nil {
		opts = append(opts, config.WithMirror(mirror))
	}
	m := config.NewManager(opts...)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Restore(ctx); err != nil {
		logger.Warnf("[app] restoring config: %v", err)
	}
	return m
}

// ProvideSession opens the HTTP session. Its cleanup covers injector
// failures before the orchestrator takes ownership; closing twice is a no-op.
func ProvideSession(cfg *config.Config) (*session.Session, func(), error) {
	s, err := session.NewManager(session.Config{
		Timeout:      cfg.HTTP.Timeout,
		DrainTimeout: cfg.HTTP.DrainTimeout,
		UserAgent:    cfg.HTTP.UserAgent,
	}).Open(context.Background())
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}

func ProvideAdapters(cfg *config.Config, m *config.Manager, s *session.Session) ([]provider.Adapter, error) {
	return registry.Build(cfg.Providers, m, s.Client())
}

func ProvideCache(cfg *config.Config) *cache.Cache {
	return cache.New(cache.WithTTL(cfg.Cache.TTL), cache.WithMaxItems(cfg.Cache.MaxItems))
}

func ProvideNormalizer() (*normalize.Normalizer, error) { return normalize.New() }

// FetchConfig maps settings onto the orchestrator's retry policy.
func FetchConfig(cfg *config.Config) (fetch.Config, error) {
	prio, err := cfg.Priority()
	if err != nil {
		return fetch.Config{}, err
	}
	return fetch.Config{
		MaxAttempts:    cfg.Fetch.MaxAttempts,
		BaseDelay:      cfg.Fetch.BaseDelay,
		MaxDelay:       cfg.Fetch.MaxDelay,
		AttemptTimeout: cfg.Fetch.AttemptTimeout,
		Priority:       prio,
		CacheTTL:       cfg.Cache.TTL,
		Concurrency:    cfg.Fetch.Concurrency,
	}, nil
}

// ProvideOrchestrator hands the session to the orchestrator; cleanup closes both.
func ProvideOrchestrator(cfg *config.Config, adapters []provider.Adapter, c *cache.Cache, n fetch.Normalizer, s *session.Session) (*fetch.Orchestrator, func(), error) {
	fc, err := FetchConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	o := fetch.New(fc, adapters, c, n, fetch.WithSession(s))
	logger.Infof("[app] fetch order %v", o.Sources())
	return o, func() { _ = o.Close() }, nil
}

func ProvideServer(cfg *config.Config, o *fetch.Orchestrator, m *config.Manager) (*httpapi.Server, error) {
	return httpapi.NewServer(httpapi.ServerConfig{
		Addr:            cfg.Server.Addr,
		Fetcher:         o,
		Config:          m,
		RequestTimeout:  cfg.Server.RequestTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
}

// ProvideWarmer returns nil when warm-up is disabled.
func ProvideWarmer(cfg *config.Config, o *fetch.Orchestrator) (*warmer.Warmer, error) {
	if !cfg.Warmer.Enabled {
		return nil, nil
	}
	reqs, err := cfg.WarmupRequests()
	if err != nil {
		return nil, err
	}
	return warmer.New(context.Background(), cfg.Warmer.Spec, reqs, o)
}
