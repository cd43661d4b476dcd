package request

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/keboola/go-netkit/pkg/params"
)

const (
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// HTTPRequest is an immutable HTTP request.
type HTTPRequest interface {
	httpRequestReadOnly
	// WithGet is shortcut for WithMethod(http.MethodGet).WithURL(url)
	WithGet(url string) HTTPRequest
	// WithPost is shortcut for WithMethod(http.MethodPost).WithURL(url)
	WithPost(url string) HTTPRequest
	// WithMethod method sets the HTTP method.
	WithMethod(method string) HTTPRequest
	// WithBaseURL method sets the base URL, relative URLs are resolved against it.
	WithBaseURL(baseURL string) HTTPRequest
	// WithURL method sets the URL. The URL is validated when the request is sent.
	WithURL(url string) HTTPRequest
	// AndHeader method sets a single header field and its value.
	AndHeader(header string, value string) HTTPRequest
	// AndQueryParam method sets single parameter and its value.
	AndQueryParam(param, value string) HTTPRequest
	// WithQueryParams method sets multiple parameters and its values.
	WithQueryParams(params map[string]string) HTTPRequest
	// WithFormBody method sets Form parameters and Content-Type header to "application/x-www-form-urlencoded".
	WithFormBody(form map[string]string) HTTPRequest
	// WithBody method sets raw request body and its Content-Type.
	WithBody(body []byte, contentType string) HTTPRequest
	// WithTimeout method sets a deadline for the whole request/response cycle.
	WithTimeout(timeout time.Duration) HTTPRequest
	// WithOnComplete method registers callback to be executed when the request is completed.
	WithOnComplete(func(ctx context.Context, outcome Outcome, err error) error) HTTPRequest
	// WithOnSuccess method registers callback to be executed when the request is completed with status code 200.
	WithOnSuccess(func(ctx context.Context, outcome Outcome) error) HTTPRequest
	// WithOnError method registers callback to be executed when the request failed.
	WithOnError(func(ctx context.Context, err error) error) HTTPRequest
	// Send method sends defined request and returns the outcome.
	Send(ctx context.Context) (Outcome, error)
	SendOrErr(ctx context.Context) error
}

type httpRequestReadOnly interface {
	// Method returns HTTP method.
	Method() string
	// URL method returns the HTTP URL with the encoded query parameters.
	URL() string
	// RequestHeader method returns HTTP request headers.
	RequestHeader() http.Header
	// QueryParams method returns HTTP query parameters.
	QueryParams() map[string]string
	// RequestBody method returns the raw request body, if any.
	RequestBody() []byte
	// Timeout method returns the request timeout, 0 means the sender default.
	Timeout() time.Duration
}

// NewHTTPRequest creates immutable HTTP request.
func NewHTTPRequest(sender Sender) HTTPRequest {
	return httpRequest{sender: sender, header: make(http.Header)}
}

// httpRequest implements HTTPRequest interface.
type httpRequest struct {
	sender      Sender
	method      string
	baseURL     string
	url         string
	header      http.Header
	queryParams map[string]string
	body        []byte
	timeout     time.Duration
	listeners   []func(ctx context.Context, outcome Outcome, err error) error
}

func (r httpRequest) Method() string {
	if r.method == "" {
		panic(fmt.Errorf("request method is not set"))
	}
	return r.method
}

// URL appends the encoded query parameters after "?", or after "&" if the URL already contains a query.
// The fragment, if any, is kept at the end.
func (r httpRequest) URL() string {
	out := r.url
	if r.baseURL != "" && !isAbs(out) {
		out = strings.TrimRight(r.baseURL, "/") + "/" + strings.TrimLeft(out, "/")
	}
	query := params.Encode(r.queryParams)
	if query == "" {
		return out
	}
	out, fragment, hasFragment := strings.Cut(out, "#")
	if strings.Contains(out, "?") {
		out += "&" + query
	} else {
		out += "?" + query
	}
	if hasFragment {
		out += "#" + fragment
	}
	return out
}

func (r httpRequest) RequestHeader() http.Header {
	return r.header
}

func (r httpRequest) QueryParams() map[string]string {
	return r.queryParams
}

func (r httpRequest) RequestBody() []byte {
	return r.body
}

func (r httpRequest) Timeout() time.Duration {
	return r.timeout
}

func (r httpRequest) WithGet(url string) HTTPRequest {
	return r.WithMethod(http.MethodGet).WithURL(url)
}

func (r httpRequest) WithPost(url string) HTTPRequest {
	return r.WithMethod(http.MethodPost).WithURL(url)
}

func (r httpRequest) WithMethod(method string) HTTPRequest {
	r.method = method
	return r
}

func (r httpRequest) WithURL(url string) HTTPRequest {
	r.url = url
	return r
}

func (r httpRequest) WithBaseURL(baseURL string) HTTPRequest {
	r.baseURL = baseURL
	return r
}

func (r httpRequest) AndHeader(header string, value string) HTTPRequest {
	r.header = r.header.Clone()
	r.header.Set(header, value)
	return r
}

func (r httpRequest) AndQueryParam(key, value string) HTTPRequest {
	r.queryParams = cloneParams(r.queryParams)
	r.queryParams[key] = value
	return r
}

func (r httpRequest) WithQueryParams(params map[string]string) HTTPRequest {
	r.queryParams = cloneParams(params)
	return r
}

func (r httpRequest) WithFormBody(form map[string]string) HTTPRequest {
	return r.WithBody([]byte(params.Encode(form)), ContentTypeForm)
}

func (r httpRequest) WithBody(body []byte, contentType string) HTTPRequest {
	r.body = body
	if contentType == "" {
		return r
	}
	return r.AndHeader("Content-Type", contentType)
}

func (r httpRequest) WithTimeout(timeout time.Duration) HTTPRequest {
	r.timeout = timeout
	return r
}

func (r httpRequest) WithOnComplete(fn func(ctx context.Context, outcome Outcome, err error) error) HTTPRequest {
	r.listeners = append(r.listeners[:len(r.listeners):len(r.listeners)], fn)
	return r
}

func (r httpRequest) WithOnSuccess(fn func(ctx context.Context, outcome Outcome) error) HTTPRequest {
	return r.WithOnComplete(func(ctx context.Context, outcome Outcome, err error) error {
		if err == nil && outcome.Success {
			return fn(ctx, outcome)
		}
		return err
	})
}

func (r httpRequest) WithOnError(fn func(ctx context.Context, err error) error) HTTPRequest {
	return r.WithOnComplete(func(ctx context.Context, outcome Outcome, err error) error {
		if err != nil {
			return fn(ctx, err)
		}
		return err
	})
}

func (r httpRequest) Send(ctx context.Context) (Outcome, error) {
	// Stop if context has been cancelled
	if err := ctx.Err(); err != nil {
		return FailedOutcome(), ErrResponseFailed
	}

	// Send request
	outcome, err := r.sender.Send(ctx, r)

	// Invoke listeners
	for _, fn := range r.listeners {
		err = fn(ctx, outcome, err)
	}

	return outcome, err
}

func (r httpRequest) SendOrErr(ctx context.Context) error {
	_, err := r.Send(ctx)
	return err
}

func isAbs(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.IsAbs()
}

func cloneParams(in map[string]string) (out map[string]string) {
	out = make(map[string]string, len(in))
	maps.Copy(out, in)
	return out
}
