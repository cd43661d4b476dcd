package client

import (
	"errors"
	"io"
	"net/http"

	"github.com/keboola/go-netkit/pkg/client/decode"
	"github.com/keboola/go-netkit/pkg/client/trace"
)

// readResponseBody reads the whole decoded body into memory.
// Number of raw bytes read is reported to the BodyReadDone hook.
func readResponseBody(res *http.Response, tc *trace.ClientTrace) ([]byte, error) {
	body := &countingReadCloser{wrapped: res.Body}
	if tc != nil && tc.BodyReadDone != nil {
		body.onClose = func(bytes int64, err error) {
			tc.BodyReadDone(res, bytes, err)
		}
	}
	defer body.Close()

	// Process content encoding
	bodyReader, err := decode.Decode(body, res.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}

	return io.ReadAll(bodyReader)
}

// countingReadCloser wraps the response body to count bytes read.
type countingReadCloser struct {
	wrapped io.ReadCloser
	onClose func(bytes int64, err error)
	bytes   int64
	readErr error
}

func (r *countingReadCloser) Read(b []byte) (int, error) {
	n, err := r.wrapped.Read(b)
	r.bytes += int64(n)
	r.readErr = err
	return n, err
}

func (r *countingReadCloser) Close() error {
	closeErr := r.wrapped.Close()
	if r.onClose != nil {
		// Prefer read error before close error, it is usually more useful
		err := closeErr
		if r.readErr != nil && !errors.Is(r.readErr, io.EOF) {
			err = r.readErr
		}
		r.onClose(r.bytes, err)
	}
	return closeErr
}
