// Package otel reports OpenTelemetry spans and metrics of requests sent by the client.Client.
//
// Each Send call is one "keboola.go.netkit.request" span. Its children are:
//   - "http.request" for each HTTP round trip, redirects included, with low-level "http.*" children
//     (dns, getconn, connect, tls, headers, send, receive),
//   - "keboola.go.netkit.response.body" for reading the final response body.
//
// Metrics are prefixed by "keboola.go.netkit." for whole requests and "keboola.go.netkit.http." for round trips,
// see the newMeters function.
package otel

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelMetric "go.opentelemetry.io/otel/metric"
	metricNoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/keboola/go-netkit/pkg/client/trace"
	"github.com/keboola/go-netkit/pkg/request"
)

const (
	instrumentationName = "github.com/keboola/go-netkit"

	requestSpanName      = "keboola.go.netkit.request"
	responseBodySpanName = "keboola.go.netkit.response.body"
	roundTripSpanName    = "http.request"

	attrResourceName      = attribute.Key("resource.name")
	attrSpanKind          = attribute.Key("span.kind")
	attrSpanType          = attribute.Key("span.type")
	attrDNSAddresses      = attribute.Key("http.dns.addrs")
	attrRemoteAddr        = attribute.Key("http.remote")
	attrLocalAddr         = attribute.Key("http.local")
	attrConnReused        = attribute.Key("http.conn.reused")
	attrConnWasIdle       = attribute.Key("http.conn.wasidle")
	attrConnIdleTime      = attribute.Key("http.conn.idletime")
	attrConnStartNetwork  = attribute.Key("http.conn.start.network")
	attrConnDoneNetwork   = attribute.Key("http.conn.done.network")
	attrConnDoneAddr      = attribute.Key("http.conn.done.addr")
	attrResponseReadBytes = attribute.Key("http.read_bytes")
)

// NewTrace creates the trace.Factory which reports spans and metrics of each request.
// Nil providers are replaced by no-op implementations.
func NewTrace(tracerProvider otelTrace.TracerProvider, meterProvider otelMetric.MeterProvider, opts ...Option) trace.Factory {
	if tracerProvider == nil {
		tracerProvider = noop.NewTracerProvider()
	}
	if meterProvider == nil {
		meterProvider = metricNoop.NewMeterProvider()
	}
	t := &tracer{
		config: newConfig(opts),
		tracer: tracerProvider.Tracer(instrumentationName),
		meters: newMeters(meterProvider.Meter(instrumentationName)),
	}
	return func(ctx context.Context, reqDef request.HTTPRequest) (context.Context, *trace.ClientTrace) {
		rt := t.start(ctx, reqDef)
		return rt.ctx, rt.hooks()
	}
}

type tracer struct {
	config config
	tracer otelTrace.Tracer
	meters *meters
}

// requestTrace is the state of one Send call.
// Hooks of one request are called sequentially, so no locking is needed.
type requestTrace struct {
	*tracer
	attrs     *attributes
	ctx       context.Context
	startedAt time.Time
	span      otelTrace.Span

	// current round trip
	roundTripCtx     context.Context
	roundTripStarted time.Time
	roundTripSpan    otelTrace.Span
	receiveSpan      otelTrace.Span
	bodySpan         otelTrace.Span

	// low-level phases of the current round trip
	phases map[string]otelTrace.Span
}

func (t *tracer) start(ctx context.Context, reqDef request.HTTPRequest) *requestTrace {
	rt := &requestTrace{tracer: t, attrs: newAttributes(t.config, reqDef), startedAt: time.Now(), phases: make(map[string]otelTrace.Span)}
	t.meters.requestInFlight.Add(ctx, 1, otelMetric.WithAttributes(rt.attrs.definition...))
	rt.ctx, rt.span = t.tracer.Start(ctx, requestSpanName,
		otelTrace.WithSpanKind(otelTrace.SpanKindClient),
		otelTrace.WithAttributes(clientSpanAttrs(rt.attrs.definitionPath)...),
		otelTrace.WithAttributes(rt.attrs.definition...),
		otelTrace.WithAttributes(rt.attrs.definitionExtra...),
	)
	rt.roundTripCtx = rt.ctx
	return rt
}

func (rt *requestTrace) hooks() *trace.ClientTrace {
	tc := &trace.ClientTrace{
		HTTPRequestStart: rt.roundTripStart,
		HTTPRequestDone:  rt.roundTripDone,
		BodyReadDone:     rt.bodyReadDone,
		RequestProcessed: rt.processed,
	}

	// The low-level phases are children of the current round trip
	tc.DNSStart = func(info httptrace.DNSStartInfo) {
		rt.startPhase("dns", semconv.NetHostName(info.Host))
	}
	tc.DNSDone = func(info httptrace.DNSDoneInfo) {
		addrs := make([]string, 0, len(info.Addrs))
		for _, addr := range info.Addrs {
			addrs = append(addrs, addr.String())
		}
		rt.endPhase("dns", info.Err, attrDNSAddresses.String(strings.Join(addrs, ";")))
	}
	tc.GetConn = func(host string) {
		rt.startPhase("getconn", semconv.NetHostName(host))
	}
	tc.GotConn = func(info httptrace.GotConnInfo) {
		attrs := []attribute.KeyValue{
			attrRemoteAddr.String(info.Conn.RemoteAddr().String()),
			attrLocalAddr.String(info.Conn.LocalAddr().String()),
			attrConnReused.Bool(info.Reused),
			attrConnWasIdle.Bool(info.WasIdle),
		}
		if info.WasIdle {
			attrs = append(attrs, attrConnIdleTime.String(info.IdleTime.String()))
		}
		rt.endPhase("getconn", nil, attrs...)
	}
	tc.ConnectStart = func(network, addr string) {
		rt.startPhase("connect", attrRemoteAddr.String(addr), attrConnStartNetwork.String(network))
	}
	tc.ConnectDone = func(network, addr string, err error) {
		rt.endPhase("connect", err, attrConnDoneAddr.String(addr), attrConnDoneNetwork.String(network))
	}
	// Not reported if the http2.Transport is used directly.
	tc.TLSHandshakeStart = func() {
		rt.startPhase("tls")
	}
	tc.TLSHandshakeDone = func(_ tls.ConnectionState, err error) {
		rt.endPhase("tls", err)
	}
	tc.WroteHeaderField = func(_ string, _ []string) {
		if _, ok := rt.phases["headers"]; !ok {
			rt.startPhase("headers")
		}
	}
	tc.WroteHeaders = func() {
		rt.endPhase("headers", nil)
		rt.startPhase("send")
	}
	tc.WroteRequest = func(info httptrace.WroteRequestInfo) {
		rt.endPhase("send", info.Err)
	}
	tc.GotFirstResponseByte = func() {
		_, rt.receiveSpan = rt.tracer.tracer.Start(rt.roundTripCtx, "http.receive", otelTrace.WithSpanKind(otelTrace.SpanKindClient))
	}
	return tc
}

func (rt *requestTrace) roundTripStart(req *http.Request) {
	rt.roundTripStarted = time.Now()
	rt.attrs.SetFromRequest(req)
	rt.roundTripCtx, rt.roundTripSpan = rt.tracer.tracer.Start(rt.ctx, roundTripSpanName,
		otelTrace.WithSpanKind(otelTrace.SpanKindClient),
		otelTrace.WithAttributes(clientSpanAttrs(req.URL.Path)...),
		otelTrace.WithAttributes(rt.attrs.httpRequest...),
		otelTrace.WithAttributes(rt.attrs.httpRequestExtra...),
	)
	if rt.config.propagators != nil {
		rt.config.propagators.Inject(rt.roundTripCtx, propagation.HeaderCarrier(req.Header))
	}
	rt.meters.roundTripInFlight.Add(rt.ctx, 1, otelMetric.WithAttributes(rt.attrs.httpRequest...))
}

func (rt *requestTrace) roundTripDone(res *http.Response, err error) {
	// In-flight counter must be decremented with the same attributes as it was incremented
	rt.meters.roundTripInFlight.Add(rt.ctx, -1, otelMetric.WithAttributes(rt.attrs.httpRequest...))
	rt.attrs.SetFromResponse(res, err)
	rt.meters.roundTripDuration.Record(rt.ctx, milliseconds(time.Since(rt.roundTripStarted)),
		otelMetric.WithAttributes(rt.attrs.httpRequest...),
		otelMetric.WithAttributes(rt.attrs.httpResponse...),
	)

	endSpan(&rt.receiveSpan, nil)
	if rt.roundTripSpan != nil {
		rt.roundTripSpan.SetAttributes(rt.attrs.httpResponse...)
		rt.roundTripSpan.SetAttributes(rt.attrs.httpResponseExtra...)
		if err == nil && res != nil && !isRedirection(res) && !request.IsSuccess(res.StatusCode) {
			err = fmt.Errorf(`HTTP status code: %d %s`, res.StatusCode, http.StatusText(res.StatusCode))
		}
		endSpan(&rt.roundTripSpan, err)
	}
	rt.endPhases()

	// Only the body of the final response is read by the client
	if err == nil && res != nil && !isRedirection(res) {
		_, rt.bodySpan = rt.tracer.tracer.Start(rt.ctx, responseBodySpanName,
			otelTrace.WithSpanKind(otelTrace.SpanKindClient),
			otelTrace.WithAttributes(rt.attrs.httpResponse...),
		)
	}
}

func (rt *requestTrace) bodyReadDone(_ *http.Response, bytes int64, err error) {
	rt.meters.responseBodySize.Add(rt.ctx, bytes,
		otelMetric.WithAttributes(rt.attrs.httpRequest...),
		otelMetric.WithAttributes(rt.attrs.httpResponse...),
	)
	if rt.bodySpan != nil {
		rt.bodySpan.SetAttributes(attrResponseReadBytes.Int64(bytes))
		endSpan(&rt.bodySpan, err)
	}
}

func (rt *requestTrace) processed(outcome request.Outcome, err error) {
	rt.attrs.SetFromOutcome(outcome, err)
	rt.meters.requestInFlight.Add(rt.ctx, -1, otelMetric.WithAttributes(rt.attrs.definition...))
	rt.meters.requestDuration.Record(rt.ctx, milliseconds(time.Since(rt.startedAt)),
		otelMetric.WithAttributes(rt.attrs.definition...),
		otelMetric.WithAttributes(rt.attrs.outcome...),
	)

	// Spans left open by a failure
	rt.endPhases()
	endSpan(&rt.bodySpan, nil)
	endSpan(&rt.receiveSpan, nil)
	endSpan(&rt.roundTripSpan, nil)

	if rt.span == nil {
		return
	}
	rt.span.SetAttributes(rt.attrs.httpResponse...)
	rt.span.SetAttributes(rt.attrs.httpResponseExtra...)
	rt.span.SetAttributes(rt.attrs.outcome...)
	if err != nil {
		rt.span.RecordError(err)
		rt.span.SetStatus(codes.Error, err.Error())
		rt.span.End(otelTrace.WithStackTrace(true))
	} else {
		rt.span.End()
	}
	rt.span = nil
}

func (rt *requestTrace) startPhase(name string, attrs ...attribute.KeyValue) {
	_, span := rt.tracer.tracer.Start(rt.roundTripCtx, "http."+name,
		otelTrace.WithSpanKind(otelTrace.SpanKindClient),
		otelTrace.WithAttributes(attrs...),
	)
	rt.phases[name] = span
}

func (rt *requestTrace) endPhase(name string, err error, attrs ...attribute.KeyValue) {
	span, ok := rt.phases[name]
	if !ok {
		return
	}
	delete(rt.phases, name)
	span.SetAttributes(attrs...)
	endSpan(&span, err)
}

func (rt *requestTrace) endPhases() {
	for _, span := range rt.phases {
		span.End()
	}
	clear(rt.phases)
}

// endSpan ends the span, if any, and marks it as failed if err is not nil.
func endSpan(span *otelTrace.Span, err error) {
	if *span == nil {
		return
	}
	if err != nil {
		(*span).RecordError(err)
		(*span).SetStatus(codes.Error, err.Error())
	}
	(*span).End()
	*span = nil
}

func clientSpanAttrs(resource string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attrResourceName.String(resource),
		attrSpanKind.String("client"),
		attrSpanType.String("http"),
	}
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func isRedirection(r *http.Response) bool {
	return r.StatusCode >= http.StatusMultipleChoices && r.StatusCode < http.StatusBadRequest && r.Header.Get("Location") != ""
}
