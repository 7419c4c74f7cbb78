package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"marketfeed/internal/fetch"
	"marketfeed/internal/market"
	"marketfeed/internal/provider"
)

const maxBatch = 100

type handlers struct {
	fetcher Fetcher
	config  ConfigStore
}

type ohlcvQuery struct {
	Symbol   string `form:"symbol"`
	Interval string `form:"interval"`
	Limit    int    `form:"limit"`
	Source   string `form:"source"`
	TTL      int    `form:"ttl"`
	Refresh  bool   `form:"refresh"`
}

// requestItem is the wire form of one fetch request; names accept aliases.
type requestItem struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Limit    int    `json:"limit"`
	Source   string `json:"source"`
}

func (r requestItem) toRequest() (market.Request, error) {
	if r.Interval == "" {
		r.Interval = string(market.Interval1d)
	}
	if r.Limit == 0 {
		r.Limit = 100
	}
	iv, err := market.ParseInterval(r.Interval)
	if err != nil {
		return market.Request{}, fmt.Errorf("%w: %v", market.ErrInvalidRequest, err)
	}
	src, err := market.ParseSource(r.Source)
	if err != nil {
		return market.Request{}, fmt.Errorf("%w: %v", market.ErrInvalidRequest, err)
	}
	req := market.Request{Symbol: strings.TrimSpace(r.Symbol), Interval: iv, Limit: r.Limit, Source: src}
	return req, req.Validate()
}

func fetchOptions(ttlSec int, refresh bool) []fetch.FetchOption {
	var opts []fetch.FetchOption
	if ttlSec > 0 {
		opts = append(opts, fetch.WithTTL(time.Duration(ttlSec)*time.Second))
	}
	if refresh {
		opts = append(opts, fetch.Refresh())
	}
	return opts
}

type errorResponse struct {
	Error    string             `json:"error"`
	Failures []provider.Failure `json:"failures,omitempty"`
}

func errorBody(err error) (int, errorResponse) {
	var exhausted *provider.AllSourcesExhaustedError
	switch {
	case errors.Is(err, market.ErrInvalidRequest):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.As(err, &exhausted):
		return http.StatusBadGateway, errorResponse{Error: err.Error(), Failures: exhausted.Failures}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: err.Error()}
	}
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sources": h.fetcher.Sources()})
}

func (h *handlers) getOHLCV(c *gin.Context) {
	var q ohlcvQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	req, err := requestItem{Symbol: q.Symbol, Interval: q.Interval, Limit: q.Limit, Source: q.Source}.toRequest()
	if err != nil {
		c.JSON(errorBody(err))
		return
	}
	s, err := h.fetcher.Fetch(c.Request.Context(), req, fetchOptions(q.TTL, q.Refresh)...)
	if err != nil {
		c.JSON(errorBody(err))
		return
	}
	c.JSON(http.StatusOK, s)
}

type batchBody struct {
	Requests []requestItem `json:"requests"`
	TTL      int           `json:"ttl"`
	Refresh  bool          `json:"refresh"`
}

type batchResult struct {
	Request  market.Request     `json:"request"`
	Series   *market.Series     `json:"series,omitempty"`
	Error    string             `json:"error,omitempty"`
	Failures []provider.Failure `json:"failures,omitempty"`
}

func (h *handlers) postBatch(c *gin.Context) {
	var body batchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if len(body.Requests) == 0 || len(body.Requests) > maxBatch {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("requests must hold 1..%d items", maxBatch)})
		return
	}
	reqs := make([]market.Request, 0, len(body.Requests))
	for i, item := range body.Requests {
		req, err := item.toRequest()
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("requests[%d]: %v", i, err)})
			return
		}
		reqs = append(reqs, req)
	}

	results := h.fetcher.FetchMany(c.Request.Context(), reqs, fetchOptions(body.TTL, body.Refresh)...)
	out := make([]batchResult, 0, len(results))
	for _, r := range results {
		br := batchResult{Request: r.Request}
		if r.Err != nil {
			_, eb := errorBody(r.Err)
			br.Error, br.Failures = eb.Error, eb.Failures
		} else {
			s := r.Series
			br.Series = &s
		}
		out = append(out, br)
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

// deleteCache drops one entry when symbol is given, otherwise everything.
func (h *handlers) deleteCache(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		h.fetcher.Purge()
		c.Status(http.StatusNoContent)
		return
	}
	req, err := requestItem{Symbol: symbol, Interval: c.Query("interval"), Limit: 1, Source: c.Query("source")}.toRequest()
	if err != nil {
		c.JSON(errorBody(err))
		return
	}
	h.fetcher.Invalidate(req)
	c.Status(http.StatusNoContent)
}

func (h *handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.fetcher.Stats())
}

// secret reports whether key names a credential whose value must not be echoed.
func secret(key string) bool {
	k := strings.ToUpper(key)
	return strings.HasSuffix(k, "_KEY") || strings.HasSuffix(k, "_SECRET") || strings.Contains(k, "TOKEN")
}

func (h *handlers) getConfig(c *gin.Context) {
	key := c.Param("key")
	v := h.config.GetConfig(key, nil)
	if v == nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown config key " + key})
		return
	}
	if secret(key) {
		v = "***"
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": v})
}

func (h *handlers) putConfig(c *gin.Context) {
	var body struct {
		Value any `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Value == nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: `body must be {"value": ...}`})
		return
	}
	h.config.UpdateConfig(c.Param("key"), body.Value)
	c.Status(http.StatusNoContent)
}
