// Package trace extends the httptrace.ClientTrace and adds additional HTTPRequest hooks.
// A custom ClientTrace definition can be registered in the client.Client by the AndTrace method.
package trace

import (
	"context"
	"net/http"
	"net/http/httptrace"
	"reflect"

	"github.com/keboola/go-netkit/pkg/request"
)

// Factory creates ClientTrace hooks for a request.
type Factory func(ctx context.Context, request request.HTTPRequest) (context.Context, *ClientTrace)

// ClientTrace is a set of hooks to run at various stages of an outgoing HTTPRequest.
type ClientTrace struct {
	httptrace.ClientTrace // native, low level trace
	// HTTPRequestStart is called when the request begins. It includes redirects.
	HTTPRequestStart func(request *http.Request)
	// HTTPRequestDone is called when the response headers are received. It includes redirects.
	HTTPRequestDone func(response *http.Response, err error)
	// BodyReadDone is called when the response body has been read and closed.
	// The bytes value is the raw (encoded) size of the body.
	BodyReadDone func(response *http.Response, bytes int64, err error)
	// RequestProcessed is called when Client.Send method is done.
	// The err wraps one of the request.Err* sentinels and the original cause.
	RequestProcessed func(outcome request.Outcome, err error)
}

// Compose makes t call the hooks of old first, then its own hooks.
// The embedded httptrace hooks are composed too.
func (t *ClientTrace) Compose(old *ClientTrace) {
	if old == nil {
		return
	}
	composeHooks(reflect.ValueOf(&t.ClientTrace).Elem(), reflect.ValueOf(&old.ClientTrace).Elem())
	composeHooks(reflect.ValueOf(t).Elem(), reflect.ValueOf(old).Elem())
}

// composeHooks replaces each func field of dst by a func calling the src hook and then the dst hook.
func composeHooks(dst, src reflect.Value) {
	for i := range dst.NumField() {
		dstHook, srcHook := dst.Field(i), src.Field(i)
		if dstHook.Kind() != reflect.Func || srcHook.IsNil() {
			continue
		}
		if dstHook.IsNil() {
			dstHook.Set(srcHook)
			continue
		}

		first := reflect.ValueOf(srcHook.Interface())
		second := reflect.ValueOf(dstHook.Interface())
		dstHook.Set(reflect.MakeFunc(dstHook.Type(), func(args []reflect.Value) []reflect.Value {
			first.Call(args)
			return second.Call(args)
		}))
	}
}
