package netkit

import (
	"net/http"
	"time"

	"github.com/keboola/go-netkit/pkg/request"
)

type callConfig struct {
	timeout time.Duration
	header  http.Header
}

type CallOption func(*callConfig)

// WithTimeout sets the deadline for the whole request/response cycle.
// By default, the client timeout is used, see client.RequestTimeout.
func WithTimeout(timeout time.Duration) CallOption {
	return func(c *callConfig) {
		c.timeout = timeout
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) CallOption {
	return func(c *callConfig) {
		c.header.Set(key, value)
	}
}

func newCallConfig(opts []CallOption) callConfig {
	cfg := callConfig{header: make(http.Header)}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func (a *API) newRequest(method, url string, opts []CallOption) request.HTTPRequest {
	cfg := newCallConfig(opts)
	req := request.NewHTTPRequest(a.sender).WithMethod(method).WithURL(url)
	if cfg.timeout > 0 {
		req = req.WithTimeout(cfg.timeout)
	}
	for k := range cfg.header {
		req = req.AndHeader(k, cfg.header.Get(k))
	}
	return req
}
