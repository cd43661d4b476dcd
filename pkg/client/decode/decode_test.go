package decode_test

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keboola/go-netkit/pkg/client/decode"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	const content = `{"foo":"bar"}`

	var gzipBody bytes.Buffer
	gzipWriter := gzip.NewWriter(&gzipBody)
	_, _ = gzipWriter.Write([]byte(content))
	require.NoError(t, gzipWriter.Close())

	var flateBody bytes.Buffer
	flateWriter, err := flate.NewWriter(&flateBody, flate.DefaultCompression)
	require.NoError(t, err)
	_, _ = flateWriter.Write([]byte(content))
	require.NoError(t, flateWriter.Close())

	var zlibBody bytes.Buffer
	zlibWriter := zlib.NewWriter(&zlibBody)
	_, _ = zlibWriter.Write([]byte(content))
	require.NoError(t, zlibWriter.Close())

	var brBody bytes.Buffer
	brWriter := brotli.NewWriter(&brBody)
	_, _ = brWriter.Write([]byte(content))
	require.NoError(t, brWriter.Close())

	cases := []struct {
		encoding string
		raw      []byte
	}{
		{"", []byte(content)},
		{"identity", []byte(content)},
		{"gzip", gzipBody.Bytes()},
		{"GZIP", gzipBody.Bytes()},
		{"deflate", zlibBody.Bytes()},
		{"deflate", flateBody.Bytes()},
		{"br", brBody.Bytes()},
	}
	for _, tc := range cases {
		encoding, raw := tc.encoding, tc.raw
		reader, err := decode.Decode(io.NopCloser(bytes.NewReader(raw)), encoding)
		require.NoError(t, err, encoding)
		out, err := io.ReadAll(reader)
		require.NoError(t, err, encoding)
		assert.Equal(t, content, string(out), encoding)
		assert.NoError(t, reader.Close(), encoding)
	}
}

func TestDecode_InvalidGzip(t *testing.T) {
	t.Parallel()
	_, err := decode.Decode(io.NopCloser(bytes.NewReader([]byte("not gzip"))), "gzip")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot decode gzip")
}
