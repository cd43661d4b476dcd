// Package client provides the default implementation of the request.Sender interface.
//
// Use request.HTTPRequest interface to define immutable HTTP requests, see request.NewHTTPRequest function.
// Client is based on the standard net/http package and contains tracing/telemetry support.
// It is easy to implement your custom HTTP client, by implementing request.Sender interface.
//
// Every request is normalized to a request.Outcome:
//   - a response with any status code is an outcome, success is true only for status 200,
//   - an invalid URL results in request.ErrInvalidURL,
//   - a transport failure, a timeout or an unreadable body results in request.ErrResponseFailed,
//   - a body which is not valid UTF-8 text results in request.ErrDecodingDataFailed.
//
// Requests are never retried. The timeout is a hard deadline for the whole request/response cycle.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/keboola/go-netkit/pkg/client/trace"
	"github.com/keboola/go-netkit/pkg/request"
)

// RequestTimeout - default request timeout.
const RequestTimeout = 60 * time.Second

// Client is a default and configurable implementation of the request.Sender interface by Go native http.Client.
// It supports tracing/telemetry.
type Client struct {
	transport      http.RoundTripper
	baseURL        *url.URL
	header         http.Header
	timeout        time.Duration
	traceFactories []trace.Factory
}

// New creates new HTTP Client.
func New() Client {
	c := Client{transport: DefaultTransport(), header: make(http.Header), timeout: RequestTimeout}
	c.header.Set("User-Agent", "keboola-go-netkit")
	c.header.Set("Accept-Encoding", "gzip, br")
	return c
}

// WithBaseURL returns a clone of the Client with base url set.
func (c Client) WithBaseURL(baseURLStr string) Client {
	baseURL, err := url.Parse(strings.TrimRight(baseURLStr, "/"))
	if err != nil {
		panic(fmt.Errorf(`base url "%s" is not valid: %w`, baseURLStr, err))
	}
	// Normalize base URL, so c.baseURL.ResolveReference(...) will work
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/"
	c.baseURL = baseURL
	return c
}

// WithUserAgent returns a clone of the Client with user agent set.
func (c Client) WithUserAgent(v string) Client {
	return c.WithHeader("User-Agent", v)
}

// WithHeader returns a clone of the Client with common header set.
func (c Client) WithHeader(key, value string) Client {
	c.header = c.header.Clone()
	c.header.Set(key, value)
	return c
}

// WithHeaders returns a clone of the Client with common headers set.
func (c Client) WithHeaders(headers map[string]string) Client {
	c.header = c.header.Clone()
	for k, v := range headers {
		c.header.Set(k, v)
	}
	return c
}

// WithTransport returns a clone of the Client with a HTTP transport set.
func (c Client) WithTransport(transport http.RoundTripper) Client {
	if transport == nil {
		panic(fmt.Errorf("transport cannot be nil"))
	}
	c.transport = transport
	return c
}

// WithTimeout returns a clone of the Client with the default request timeout set.
// The timeout can be overridden per request, see request.HTTPRequest.WithTimeout.
func (c Client) WithTimeout(timeout time.Duration) Client {
	c.timeout = timeout
	return c
}

// AndTrace returns a clone of the Client with Trace hooks added.
func (c Client) AndTrace(fn trace.Factory) Client {
	c.traceFactories = append(c.traceFactories[:len(c.traceFactories):len(c.traceFactories)], fn)
	return c
}

// Send method sends HTTP request and returns the normalized outcome, it implements the request.Sender interface.
func (c Client) Send(ctx context.Context, reqDef request.HTTPRequest) (outcome request.Outcome, err error) {
	// Method cannot be called on an empty value
	if c.transport == nil {
		panic(fmt.Errorf("client value is not initialized"))
	}

	// If method is not set, panic occurs. So we get the value first.
	method := reqDef.Method()

	// Deadline for the whole request/response cycle
	timeout := reqDef.Timeout()
	if timeout <= 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Init trace
	var tc *trace.ClientTrace
	for _, fn := range c.traceFactories {
		var t *trace.ClientTrace
		ctx, t = fn(ctx, reqDef)
		if t != nil {
			t.Compose(tc)
			tc = t
		}
	}
	if tc != nil {
		ctx = httptrace.WithClientTrace(ctx, &tc.ClientTrace)
	}

	// The detailed error is reported only to trace hooks, the caller gets the sentinel
	var detailedErr error
	if tc != nil && tc.RequestProcessed != nil {
		defer func() {
			tc.RequestProcessed(outcome, detailedErr)
		}()
	}
	fail := func(sentinel *request.Error, cause error) (request.Outcome, error) {
		detailedErr = fmt.Errorf("%w: %w", sentinel, cause)
		return request.FailedOutcome(), sentinel
	}

	// Validate url
	reqURL, err := c.requestURL(reqDef.URL())
	if err != nil {
		return fail(request.ErrInvalidURL, err)
	}

	// Create request
	var body io.Reader
	if v := reqDef.RequestBody(); v != nil {
		body = bytes.NewReader(v)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return fail(request.ErrInvalidURL, err)
	}

	// Global headers
	for k, values := range c.header {
		for _, v := range values {
			req.Header.Set(k, v)
		}
	}

	// Request headers
	for k, values := range reqDef.RequestHeader() {
		req.Header.Del(k) // clear global values
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	// Setup native client, the deadline is handled by the context
	nativeClient := http.Client{
		Transport: roundTripper{trace: tc, wrapped: c.transport}, // wrapped transport for trace
	}

	// Send request
	startedAt := time.Now()
	res, err := nativeClient.Do(req)
	if err != nil {
		return fail(request.ErrResponseFailed, handleSendError(startedAt, req, err))
	}

	// Read body
	text, err := readResponseBody(res, tc)
	if err != nil {
		return fail(request.ErrResponseFailed, fmt.Errorf(`cannot read response body %s "%s": %w`, req.Method, req.URL.String(), handleSendError(startedAt, req, err)))
	}
	if !utf8.Valid(text) {
		return fail(request.ErrDecodingDataFailed, fmt.Errorf(`response body %s "%s" is not valid UTF-8 text`, req.Method, req.URL.String()))
	}

	return request.Outcome{
		Body:       string(text),
		Success:    request.IsSuccess(res.StatusCode),
		StatusCode: res.StatusCode,
		Header:     res.Header,
	}, nil
}

// requestURL converts the URL to an absolute url with a http/https scheme and a host.
func (c Client) requestURL(rawURL string) (*url.URL, error) {
	reqURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if c.baseURL != nil && !reqURL.IsAbs() {
		reqURL.Path = strings.TrimLeft(reqURL.Path, "/")
		reqURL = c.baseURL.ResolveReference(reqURL)
	}
	if reqURL.Scheme != "http" && reqURL.Scheme != "https" {
		return nil, fmt.Errorf(`url "%s" must be absolute with http or https scheme`, rawURL)
	}
	if reqURL.Host == "" {
		return nil, fmt.Errorf(`url "%s" has no host`, rawURL)
	}
	return reqURL, nil
}

func handleSendError(startedAt time.Time, req *http.Request, err error) error {
	// Timeout
	var netErr net.Error
	if deadline, ok := req.Context().Deadline(); ok && errors.Is(err, context.DeadlineExceeded) {
		err = urlError(req, fmt.Errorf("timeout after %s", deadline.Sub(startedAt)))
	} else if errors.Is(err, context.Canceled) {
		err = urlError(req, fmt.Errorf("canceled after %s", time.Since(startedAt)))
	} else if errors.As(err, &netErr) && netErr.Timeout() {
		err = urlError(req, fmt.Errorf("timeout after %s", time.Since(startedAt)))
	}

	// Url error
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf(`request %s "%s" failed: %w`, strings.ToUpper(urlErr.Op), urlErr.URL, urlErr.Err)
	}

	return err
}

// roundTripper wraps a http.RoundTripper and adds trace functionality.
type roundTripper struct {
	trace   *trace.ClientTrace
	wrapped http.RoundTripper
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Trace request start
	if rt.trace != nil && rt.trace.HTTPRequestStart != nil {
		rt.trace.HTTPRequestStart(req)
	}

	// Send
	res, err := rt.wrapped.RoundTrip(req)

	// Trace request done
	if rt.trace != nil && rt.trace.HTTPRequestDone != nil {
		rt.trace.HTTPRequestDone(res, err)
	}

	return res, err
}

func urlError(req *http.Request, err error) *url.Error {
	return &url.Error{Op: req.Method, URL: req.URL.String(), Err: err}
}
