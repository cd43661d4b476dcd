package netkit

import (
	"context"
	"net/http"

	"github.com/keboola/go-netkit/pkg/request"
)

// Get sends the GET request, the params are encoded to the URL query.
func (a *API) Get(ctx context.Context, url string, params map[string]string, opts ...CallOption) (request.Outcome, error) {
	return a.newRequest(http.MethodGet, url, opts).WithQueryParams(params).Send(ctx)
}

// Post sends the POST request, the params are encoded to the form body.
func (a *API) Post(ctx context.Context, url string, params map[string]string, opts ...CallOption) (request.Outcome, error) {
	return a.newRequest(http.MethodPost, url, opts).WithFormBody(params).Send(ctx)
}

// GetCallback is the callback form of the Get method.
// On failure the callback gets an empty body and false.
func (a *API) GetCallback(ctx context.Context, url string, params map[string]string, callback func(body string, ok bool), opts ...CallOption) {
	a.deliver(func() func() {
		outcome, err := a.Get(ctx, url, params, opts...)
		return outcomeCallback(outcome, err, callback)
	})
}

// PostCallback is the callback form of the Post method.
// On failure the callback gets an empty body and false.
func (a *API) PostCallback(ctx context.Context, url string, params map[string]string, callback func(body string, ok bool), opts ...CallOption) {
	a.deliver(func() func() {
		outcome, err := a.Post(ctx, url, params, opts...)
		return outcomeCallback(outcome, err, callback)
	})
}

// outcomeCallback binds the outcome to the callback, any error is reported as the failed outcome.
func outcomeCallback(outcome request.Outcome, err error, callback func(body string, ok bool)) func() {
	if err != nil {
		outcome = request.FailedOutcome()
	}
	return func() {
		callback(outcome.Body, outcome.Success)
	}
}
