// Package decode unwraps response bodies according to the Content-Encoding header.
package decode

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// Decode wraps the body with a decompressing reader.
// Unknown or empty encoding returns the body as it is.
// Closing the returned reader closes the body.
func Decode(body io.ReadCloser, contentEncoding string) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		if v, err := gzip.NewReader(body); err == nil {
			return readCloser{Reader: v, closer: body}, nil
		} else {
			return nil, fmt.Errorf("cannot decode gzip: %w", err)
		}
	case "deflate":
		return decodeDeflate(body)
	case "br":
		return readCloser{Reader: brotli.NewReader(body), closer: body}, nil
	default:
		return body, nil
	}
}

// decodeDeflate reads the zlib format, some servers send a raw deflate stream without the zlib header.
func decodeDeflate(body io.ReadCloser) (io.ReadCloser, error) {
	buffered := bufio.NewReader(body)
	if header, err := buffered.Peek(2); err == nil && isZlibHeader(header) {
		v, err := zlib.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("cannot decode deflate: %w", err)
		}
		return readCloser{Reader: v, closer: body}, nil
	}
	return readCloser{Reader: flate.NewReader(buffered), closer: body}, nil
}

// isZlibHeader checks the compression method and the header checksum, see RFC 1950.
func isZlibHeader(header []byte) bool {
	return header[0]&0x0f == 8 && (uint16(header[0])<<8|uint16(header[1]))%31 == 0
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (v readCloser) Close() error {
	return v.closer.Close()
}
