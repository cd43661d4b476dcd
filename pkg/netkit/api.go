// Package netkit provides GET, POST and multipart upload calls with optional typed JSON decoding.
//
// Each call has two forms:
//   - The blocking form runs on the calling goroutine and returns the request.Outcome or a decoded value,
//     or one of the request.Err* errors.
//   - The callback form runs the request on a background goroutine and delivers the result to a callback
//     on the dispatch queue, by default the dispatch.Main queue. Failures are reported only as an
//     empty/unsuccessful result, the error kind is not exposed.
//
// A response with a status code other than 200 is not an error, it is reported as an unsuccessful outcome.
package netkit

import (
	"go.uber.org/zap"

	"github.com/keboola/go-netkit/pkg/asset"
	"github.com/keboola/go-netkit/pkg/client"
	"github.com/keboola/go-netkit/pkg/client/trace"
	"github.com/keboola/go-netkit/pkg/dispatch"
	"github.com/keboola/go-netkit/pkg/request"
)

// API sends requests and delivers callbacks. It is safe for concurrent use.
type API struct {
	sender   request.Sender
	queue    dispatch.Queue
	resolver asset.Resolver
	images   asset.ImageEncoder
	logger   *zap.Logger
}

type APIOption func(*API)

// WithClient sets the HTTP client, see client.New.
func WithClient(c client.Client) APIOption {
	return func(a *API) {
		a.sender = c
	}
}

// WithSender sets a custom request sender.
func WithSender(sender request.Sender) APIOption {
	return func(a *API) {
		a.sender = sender
	}
}

// WithQueue sets the queue on which callbacks are delivered.
func WithQueue(queue dispatch.Queue) APIOption {
	return func(a *API) {
		a.queue = queue
	}
}

// WithResolver sets the resolver of video and audio file references.
func WithResolver(resolver asset.Resolver) APIOption {
	return func(a *API) {
		a.resolver = resolver
	}
}

// WithImageEncoder sets the encoder of uploaded images.
func WithImageEncoder(encoder asset.ImageEncoder) APIOption {
	return func(a *API) {
		a.images = encoder
	}
}

// WithLogger sets the logger, by default nothing is logged.
// If the default client is used, its requests are logged too, see trace.ZapTracer.
func WithLogger(logger *zap.Logger) APIOption {
	return func(a *API) {
		a.logger = logger
	}
}

// New creates the API with default client, main queue, default resolver and JPEG encoder.
func New(opts ...APIOption) *API {
	a := &API{
		queue:    dispatch.Main(),
		resolver: asset.DefaultResolver(),
		images:   asset.JPEGEncoder(),
	}
	for _, o := range opts {
		o(a)
	}

	logged := a.logger != nil
	if logged {
		a.logger = a.logger.Named("netkit")
	} else {
		a.logger = zap.NewNop()
	}

	if a.sender == nil {
		c := client.New()
		if logged {
			c = c.AndTrace(trace.ZapTracer(a.logger.Named("http")))
		}
		a.sender = c
	}

	return a
}

// deliver runs the function in a new goroutine and dispatches its callback to the queue.
func (a *API) deliver(fn func() func()) {
	go func() {
		callback := fn()
		a.queue.Dispatch(callback)
	}()
}
