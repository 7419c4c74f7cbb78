// Package httpapi exposes the fetch orchestrator over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marketfeed/internal/fetch"
	"marketfeed/internal/logger"
	"marketfeed/internal/market"
)

// Fetcher is the orchestrator surface the API serves.
type Fetcher interface {
	Fetch(ctx context.Context, req market.Request, opts ...fetch.FetchOption) (market.Series, error)
	FetchMany(ctx context.Context, reqs []market.Request, opts ...fetch.FetchOption) []fetch.Result
	Invalidate(req market.Request)
	Purge()
	Stats() fetch.Stats
	Sources() []market.Source
}

// ConfigStore is the runtime config collaborator.
type ConfigStore interface {
	GetConfig(key string, def any) any
	UpdateConfig(key string, value any)
}

type ServerConfig struct {
	Addr            string
	Fetcher         Fetcher
	Config          ConfigStore
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	addr            string
	router          *gin.Engine
	shutdownTimeout time.Duration
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("http server requires a fetcher")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), requestTimeout(cfg.RequestTimeout))

	h := &handlers{fetcher: cfg.Fetcher, config: cfg.Config}
	router.GET("/healthz", h.health)
	api := router.Group("/api")
	api.GET("/ohlcv", h.getOHLCV)
	api.POST("/ohlcv/batch", h.postBatch)
	api.DELETE("/cache", h.deleteCache)
	api.GET("/stats", h.stats)
	if cfg.Config != nil {
		api.GET("/config/:key", h.getConfig)
		api.PUT("/config/:key", h.putConfig)
	}

	return &Server{addr: cfg.Addr, router: router, shutdownTimeout: cfg.ShutdownTimeout}, nil
}

func (s *Server) Addr() string { return s.addr }

func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[http] listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			logger.Warnf("[http] shutdown: %v", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("[http] %s %s status=%d ip=%s dur=%s", c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
