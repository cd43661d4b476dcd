package trace_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/keboola/go-netkit/pkg/client"
	. "github.com/keboola/go-netkit/pkg/client/trace"
	. "github.com/keboola/go-netkit/pkg/request"
)

func TestTrace(t *testing.T) {
	t.Parallel()

	// Mocked response
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com/redirect`, func(request *http.Request) (*http.Response, error) {
		header := make(http.Header)
		header.Set("Location", "https://example.com/index")
		return &http.Response{
			StatusCode: http.StatusMovedPermanently,
			Header:     header,
		}, nil
	})
	transport.RegisterResponder("GET", `https://example.com/index`, func(request *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("OK")),
		}, nil
	})

	// Logs for trace testing
	var logs strings.Builder

	// Create client
	ctx := context.Background()
	c := New().
		WithTransport(transport).
		AndTrace(func(ctx context.Context, reqDef HTTPRequest) (context.Context, *ClientTrace) {
			logs.WriteString(fmt.Sprintf("GotRequest        %s %s\n", reqDef.Method(), reqDef.URL()))
			return ctx, &ClientTrace{
				RequestProcessed: func(outcome Outcome, err error) {
					s := spew.NewDefaultConfig()
					s.DisablePointerAddresses = true
					s.DisableCapacities = true
					outcome.Header = nil
					logs.WriteString(fmt.Sprintf("RequestProcessed  outcome=%s err=%v\n", strings.TrimSpace(s.Sdump(outcome)), err))
				},
				HTTPRequestStart: func(request *http.Request) {
					logs.WriteString(fmt.Sprintf("HTTPRequestStart  %s %s\n", request.Method, request.URL))
				},
				HTTPRequestDone: func(response *http.Response, err error) {
					logs.WriteString(fmt.Sprintf("HTTPRequestDone   %d %s err=%v\n", response.StatusCode, http.StatusText(response.StatusCode), err))
				},
				BodyReadDone: func(response *http.Response, bytes int64, err error) {
					logs.WriteString(fmt.Sprintf("BodyReadDone      %d bytes err=%v\n", bytes, err))
				},
			}
		})

	// Expected events
	expected := `
GotRequest        GET https://example.com/redirect
HTTPRequestStart  GET https://example.com/redirect
HTTPRequestDone   301 Moved Permanently err=<nil>
HTTPRequestStart  GET https://example.com/index
HTTPRequestDone   200 OK err=<nil>
BodyReadDone      2 bytes err=<nil>
RequestProcessed  outcome=(request.Outcome) {
 Body: (string) (len=2) "OK",
 Success: (bool) true,
 StatusCode: (int) 200,
 Header: (http.Header) <nil>
} err=<nil>
`

	// Test
	outcome, err := NewHTTPRequest(c).WithGet("https://example.com/redirect").Send(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OK", outcome.Body)
	assert.Equal(t, strings.TrimLeft(expected, "\n"), logs.String())
}

func TestTrace_RequestProcessedError(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", `https://example.com`, httpmock.NewErrorResponder(fmt.Errorf("connection reset")))

	var processedErr error
	c := New().WithTransport(transport).AndTrace(func(ctx context.Context, _ HTTPRequest) (context.Context, *ClientTrace) {
		return ctx, &ClientTrace{
			RequestProcessed: func(_ Outcome, err error) {
				processedErr = err
			},
		}
	})

	// The caller gets the sentinel, the trace gets the cause too
	outcome, err := NewHTTPRequest(c).WithGet("https://example.com").Send(context.Background())
	assert.Same(t, ErrResponseFailed, err)
	assert.Equal(t, FailedOutcome(), outcome)
	require.Error(t, processedErr)
	assert.ErrorIs(t, processedErr, ErrResponseFailed)
	assert.Equal(t, `response failed: request GET "https://example.com" failed: connection reset`, processedErr.Error())
}

func TestClientTrace_Compose(t *testing.T) {
	t.Parallel()

	var calls []string
	oldTrace := &ClientTrace{
		HTTPRequestStart: func(*http.Request) { calls = append(calls, "old start") },
		RequestProcessed: func(Outcome, error) { calls = append(calls, "old processed") },
	}
	oldTrace.WroteHeaders = func() { calls = append(calls, "old wrote headers") }

	newTrace := &ClientTrace{
		HTTPRequestStart: func(*http.Request) { calls = append(calls, "new start") },
	}
	newTrace.WroteHeaders = func() { calls = append(calls, "new wrote headers") }
	newTrace.Compose(oldTrace)

	newTrace.HTTPRequestStart(nil)
	newTrace.WroteHeaders()
	newTrace.RequestProcessed(Outcome{}, nil)

	assert.Equal(t, []string{
		"old start",
		"new start",
		"old wrote headers",
		"new wrote headers",
		"old processed",
	}, calls)
}
