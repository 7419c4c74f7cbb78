package httpx

import (
	"net"
	"net/http"
	"time"
)

// DefaultUserAgent is sent when a request carries none.
const DefaultUserAgent = "marketfeed/1.0"

// Pool sizes the shared transport.
type Pool struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
}

func DefaultPool() Pool {
	return Pool{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewTransport builds the pooled transport every provider call goes through.
func NewTransport(p Pool) *http.Transport {
	if p.MaxIdleConns <= 0 {
		p = DefaultPool()
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          p.MaxIdleConns,
		MaxIdleConnsPerHost:   p.MaxIdleConnsPerHost,
		MaxConnsPerHost:       p.MaxConnsPerHost,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       p.IdleConnTimeout,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
	}
}

// Client is a small wrapper around http.Client that fills in default headers.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

// New returns a client over a fresh pooled transport.
func New(timeout time.Duration) *Client {
	return NewWithTransport(timeout, NewTransport(DefaultPool()))
}

// NewWithTransport returns a client whose total per-request time is bounded by timeout.
func NewWithTransport(timeout time.Duration, rt http.RoundTripper) *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: timeout, Transport: rt},
		UserAgent: DefaultUserAgent,
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req)
}
