package netkit

import (
	"context"

	"github.com/keboola/go-netkit/pkg/codec"
	"github.com/keboola/go-netkit/pkg/request"
)

// GetObject sends the GET request and decodes the response as a JSON object.
func GetObject[T any](ctx context.Context, api *API, url string, params map[string]string, opts ...CallOption) (T, error) {
	return decodeObject[T](api.Get(ctx, url, params, opts...))
}

// PostObject sends the POST request and decodes the response as a JSON object.
func PostObject[T any](ctx context.Context, api *API, url string, params map[string]string, opts ...CallOption) (T, error) {
	return decodeObject[T](api.Post(ctx, url, params, opts...))
}

// GetObjectArray sends the GET request and decodes the response as a JSON array of objects.
func GetObjectArray[T any](ctx context.Context, api *API, url string, params map[string]string, opts ...CallOption) ([]T, error) {
	return decodeObjectArray[T](api.Get(ctx, url, params, opts...))
}

// PostObjectArray sends the POST request and decodes the response as a JSON array of objects.
func PostObjectArray[T any](ctx context.Context, api *API, url string, params map[string]string, opts ...CallOption) ([]T, error) {
	return decodeObjectArray[T](api.Post(ctx, url, params, opts...))
}

// GetObjectCallback is the callback form of the GetObject function.
// On failure the callback gets nil.
func GetObjectCallback[T any](ctx context.Context, api *API, url string, params map[string]string, callback func(*T), opts ...CallOption) {
	api.deliver(func() func() {
		value, err := GetObject[T](ctx, api, url, params, opts...)
		return objectCallback(value, err, callback)
	})
}

// PostObjectCallback is the callback form of the PostObject function.
// On failure the callback gets nil.
func PostObjectCallback[T any](ctx context.Context, api *API, url string, params map[string]string, callback func(*T), opts ...CallOption) {
	api.deliver(func() func() {
		value, err := PostObject[T](ctx, api, url, params, opts...)
		return objectCallback(value, err, callback)
	})
}

// GetObjectArrayCallback is the callback form of the GetObjectArray function.
// On failure the callback gets nil.
func GetObjectArrayCallback[T any](ctx context.Context, api *API, url string, params map[string]string, callback func([]T), opts ...CallOption) {
	api.deliver(func() func() {
		value, err := GetObjectArray[T](ctx, api, url, params, opts...)
		return arrayCallback(value, err, callback)
	})
}

// PostObjectArrayCallback is the callback form of the PostObjectArray function.
// On failure the callback gets nil.
func PostObjectArrayCallback[T any](ctx context.Context, api *API, url string, params map[string]string, callback func([]T), opts ...CallOption) {
	api.deliver(func() func() {
		value, err := PostObjectArray[T](ctx, api, url, params, opts...)
		return arrayCallback(value, err, callback)
	})
}

func decodeObject[T any](outcome request.Outcome, err error) (T, error) {
	if err != nil {
		var empty T
		return empty, err
	}
	return codec.DecodeObject[T](outcome)
}

func decodeObjectArray[T any](outcome request.Outcome, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	return codec.DecodeObjectArray[T](outcome)
}

func objectCallback[T any](value T, err error, callback func(*T)) func() {
	return func() {
		if err != nil {
			callback(nil)
		} else {
			callback(&value)
		}
	}
}

func arrayCallback[T any](values []T, err error, callback func([]T)) func() {
	return func() {
		if err != nil {
			values = nil
		}
		callback(values)
	}
}
