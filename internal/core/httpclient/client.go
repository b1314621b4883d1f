// Package httpclient configures the HTTP client used to fetch upstream tiles.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

const DefaultTimeout = 10 * time.Second

type Option func(*http.Client, *http.Transport)

// WithTimeout bounds a whole upstream round trip including the body read.
func WithTimeout(d time.Duration) Option {
	return func(c *http.Client, _ *http.Transport) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

func WithMaxIdlePerHost(n int) Option {
	return func(_ *http.Client, t *http.Transport) {
		if n > 0 {
			t.MaxIdleConnsPerHost = n
		}
	}
}

// NewOutbound creates a new outbound http client
func NewOutbound(opts ...Option) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	c := &http.Client{
		Transport: transport,
		Timeout:   DefaultTimeout,
	}
	for _, o := range opts {
		o(c, transport)
	}
	return c
}
