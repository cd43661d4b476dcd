package otel

import otelMetric "go.opentelemetry.io/otel/metric"

// meters of whole requests and of single round trips.
type meters struct {
	requestInFlight   otelMetric.Int64UpDownCounter
	requestDuration   otelMetric.Float64Histogram
	roundTripInFlight otelMetric.Int64UpDownCounter
	roundTripDuration otelMetric.Float64Histogram
	responseBodySize  otelMetric.Int64Counter
}

func newMeters(meter otelMetric.Meter) *meters {
	const (
		requestPrefix   = "keboola.go.netkit.request."
		roundTripPrefix = "keboola.go.netkit.http."
	)
	return &meters{
		requestInFlight: mustInstrument(meter.Int64UpDownCounter(requestPrefix+"in_flight",
			otelMetric.WithDescription("Requests in progress, from Send call to the outcome."))),
		requestDuration: mustInstrument(meter.Float64Histogram(requestPrefix+"duration",
			otelMetric.WithDescription("Duration of requests, including redirects and body read."), otelMetric.WithUnit("ms"))),
		roundTripInFlight: mustInstrument(meter.Int64UpDownCounter(roundTripPrefix+"request.in_flight",
			otelMetric.WithDescription("HTTP round trips waiting for response headers."))),
		roundTripDuration: mustInstrument(meter.Float64Histogram(roundTripPrefix+"request.duration",
			otelMetric.WithDescription("Duration of HTTP round trips, until response headers are received."), otelMetric.WithUnit("ms"))),
		responseBodySize: mustInstrument(meter.Int64Counter(roundTripPrefix+"response.body.size",
			otelMetric.WithDescription("Raw size of read response bodies."), otelMetric.WithUnit("By"))),
	}
}

func mustInstrument[T any](instrument T, err error) T {
	if err != nil {
		panic(err)
	}
	return instrument
}
