package app

import (
	"context"

	"marketfeed/internal/config"
	"marketfeed/internal/fetch"
	"marketfeed/internal/logger"
	"marketfeed/internal/provider"
	httpapi "marketfeed/internal/transport/http"
	"marketfeed/internal/warmer"
)

// Server is everything cmd/server runs.
type Server struct {
	Path    ConfigPath
	Config  *config.Config
	Manager *config.Manager
	Fetcher *fetch.Orchestrator
	HTTP    *httpapi.Server
	Warmer  *warmer.Warmer
}

// Run serves until ctx is done. The warmer and the log-level watch run alongside.
func (s *Server) Run(ctx context.Context) error {
	if s.Path != "" {
		err := config.Watch(string(s.Path), func(c *config.Config) {
			logger.SetLevel(c.Log.Level)
			logger.Infof("[app] config reloaded, log level %s", c.Log.Level)
		}, func(err error) {
			logger.Warnf("[app] ignoring config change: %v", err)
		})
		if err != nil {
			logger.Warnf("[app] config watch disabled: %v", err)
		}
	}
	if s.Warmer != nil {
		s.Warmer.Start()
		defer s.Warmer.Stop()
	}
	return s.HTTP.Start(ctx)
}

// Fetcher is everything cmd/fetch needs.
type Fetcher struct {
	Config       *config.Config
	Orchestrator *fetch.Orchestrator
	Adapters     []provider.Adapter
}

// Adapter returns the configured adapter for src.
func (f *Fetcher) Adapter(src string) (provider.Adapter, bool) {
	for _, a := range f.Adapters {
		if string(a.Descriptor().Source) == src {
			return a, true
		}
	}
	return nil, false
}
