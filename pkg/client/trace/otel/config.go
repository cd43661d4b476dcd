package otel

import (
	"strings"

	"go.opentelemetry.io/otel/propagation"
)

const masked = "****"

// Headers which are always redacted.
var sensitiveHeaders = []string{ //nolint:gochecknoglobals
	"Authorization",
	"Proxy-Authorization",
	"WWW-Authenticate",
	"Proxy-Authenticate",
	"Cookie",
	"Set-Cookie",
}

type Option func(*config)

type config struct {
	propagators propagation.TextMapPropagator
	redact      redactor
}

// redactor masks secret values in span attributes, keys are compared case-insensitively.
type redactor struct {
	queryParams map[string]bool
	headers     map[string]bool
}

// WithPropagators injects the trace context to headers of each round trip.
func WithPropagators(v propagation.TextMapPropagator) Option {
	return func(c *config) {
		c.propagators = v
	}
}

// WithRedactedQueryParam masks values of the query parameters.
func WithRedactedQueryParam(params ...string) Option {
	return func(c *config) {
		for _, p := range params {
			c.redact.queryParams[strings.ToLower(p)] = true
		}
	}
}

// WithRedactedHeaders masks values of the request and response headers.
func WithRedactedHeaders(headers ...string) Option {
	return func(c *config) {
		for _, h := range headers {
			c.redact.headers[strings.ToLower(h)] = true
		}
	}
}

func newConfig(opts []Option) config {
	cfg := config{redact: redactor{queryParams: make(map[string]bool), headers: make(map[string]bool)}}
	WithRedactedHeaders(sensitiveHeaders...)(&cfg)
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

func (r redactor) queryParam(key, value string) string {
	if r.queryParams[strings.ToLower(key)] {
		return masked
	}
	return value
}

func (r redactor) header(key string, values []string) string {
	if r.headers[strings.ToLower(key)] {
		return masked
	}
	return strings.Join(values, ";")
}
