package otel

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/keboola/go-netkit/pkg/request"
)

type attributes struct {
	config config
	// definitionPath is used as the resource name of the root span
	definitionPath string
	// definition attributes for span and metrics
	definition []attribute.KeyValue
	// definitionExtra attributes for span only
	definitionExtra []attribute.KeyValue
	// httpRequest attributes for span and metrics
	httpRequest []attribute.KeyValue
	// httpRequestExtra attributes for span only
	httpRequestExtra []attribute.KeyValue
	// httpResponse attributes for span and metrics
	httpResponse []attribute.KeyValue
	// httpResponseExtra attributes for span only
	httpResponseExtra []attribute.KeyValue
	// outcome attributes for span and metrics
	outcome []attribute.KeyValue
}

func newAttributes(cfg config, reqDef request.HTTPRequest) *attributes {
	out := &attributes{config: cfg}

	// The URL is validated later by the client, invalid URL is reported as it is
	var host, fullURL string
	if reqURL, err := url.Parse(reqDef.URL()); err == nil {
		host = reqURL.Host
		out.definitionPath = reqURL.Path
		reqURL.RawQuery = ""
		fullURL = reqURL.String()
	} else {
		fullURL = reqDef.URL()
	}

	// Definition base
	out.definition = []attribute.KeyValue{
		attribute.String("definition.method", reqDef.Method()),
		attribute.String("definition.url.host", host),
	}
	out.definitionExtra = []attribute.KeyValue{
		attribute.String("definition.url.full", fullURL),
		attribute.String("definition.url.path", out.definitionPath),
	}

	// Definition params
	var paramsAttrs []attribute.KeyValue
	for k, values := range reqDef.RequestHeader() {
		paramsAttrs = append(paramsAttrs, attribute.String("definition.header."+k, cfg.redact.header(k, values)))
	}
	for k, v := range reqDef.QueryParams() {
		paramsAttrs = append(paramsAttrs, attribute.String("definition.params.query."+k, cfg.redact.queryParam(k, v)))
	}
	sortAttrs(paramsAttrs)
	out.definitionExtra = append(out.definitionExtra, paramsAttrs...)

	return out
}

func (v *attributes) SetFromRequest(req *http.Request) {
	if req == nil {
		v.httpRequest = nil
		v.httpRequestExtra = nil
		return
	}

	// Base
	v.httpRequest = []attribute.KeyValue{
		semconv.HTTPMethodKey.String(req.Method),
		semconv.NetPeerNameKey.String(req.URL.Hostname()),
	}

	// Extra, query is removed, it may contain secrets
	reqURL := *req.URL
	reqURL.RawQuery = ""
	attrs := []attribute.KeyValue{
		semconv.HTTPURLKey.String(reqURL.String()),
	}
	for key, values := range req.Header {
		attrs = append(attrs, attribute.String("http.header."+strings.ToLower(key), v.config.redact.header(key, values)))
	}
	sortAttrs(attrs)
	v.httpRequestExtra = attrs
}

func (v *attributes) SetFromResponse(res *http.Response, err error) {
	if res == nil {
		v.httpResponse = nil
		v.httpResponseExtra = nil
	} else {
		// Base
		v.httpResponse = []attribute.KeyValue{
			semconv.HTTPStatusCodeKey.Int(res.StatusCode),
		}

		// Extra
		var attrs []attribute.KeyValue
		for key, values := range res.Header {
			attrs = append(attrs, attribute.String("http.response.header."+strings.ToLower(key), v.config.redact.header(key, values)))
		}
		sortAttrs(attrs)
		v.httpResponseExtra = attrs
	}

	// Error
	var netErr net.Error
	errors.As(err, &netErr)
	v.httpResponse = append(v.httpResponse,
		attribute.Bool("http.response.error.has", err != nil),
		attribute.Bool("http.response.error.timeout", netErr != nil && netErr.Timeout()),
		attribute.Bool("http.response.error.cancelled", errors.Is(err, context.Canceled)),
		attribute.Bool("http.response.error.deadline_exceeded", errors.Is(err, context.DeadlineExceeded)),
	)
}

func (v *attributes) SetFromOutcome(outcome request.Outcome, err error) {
	var kind string
	var reqErr *request.Error
	if errors.As(err, &reqErr) {
		kind = reqErr.Kind().String()
	}
	v.outcome = []attribute.KeyValue{
		attribute.Bool("outcome.success", err == nil && outcome.Success),
		attribute.String("outcome.error", kind),
	}
}

func sortAttrs(attrs []attribute.KeyValue) {
	sort.SliceStable(attrs, func(i, j int) bool {
		return attrs[i].Key < attrs[j].Key
	})
}
