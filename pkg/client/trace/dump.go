package trace

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/umisama/go-regexpcache"

	"github.com/keboola/go-netkit/pkg/client/decode"
	"github.com/keboola/go-netkit/pkg/request"
)

const (
	dumpMaxLength = 2000
	// Only bodies of these content types are dumped, others are summarized by size.
	textContentTypeRegexp = `^(text/[a-z0-9.+\-]+|application/([a-zA-Z0-9.\-]+\+)?(json|xml)|application/x-www-form-urlencoded)$`
)

// DumpTracer dumps all round trips of a request, and the outcome, to the writer.
// The dump of a request is written at once, when the request is processed.
// Output may contain unmasked tokens, do not use it in production!
func DumpTracer(wr io.Writer) Factory {
	var lock sync.Mutex
	return func(ctx context.Context, reqDef request.HTTPRequest) (context.Context, *ClientTrace) {
		d := &requestDump{startedAt: time.Now()}
		t := &ClientTrace{}
		t.HTTPRequestStart = func(r *http.Request) {
			d.section("REQUEST")
			if v, err := httputil.DumpRequestOut(r, isTextContentType(r.Header.Get("Content-Type"))); err == nil {
				d.text(string(v))
			} else {
				d.line("cannot dump request: ", err)
			}
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			d.headersAt = time.Now()
			if err != nil {
				d.section("ERROR")
				d.line(err)
				return
			}
			d.section("RESPONSE")
			if v, err := httputil.DumpResponse(r, false); err == nil {
				d.line(strings.TrimSpace(string(v)))
			} else {
				d.line("cannot dump response headers: ", err)
			}
			if r.Body != nil && r.Body != http.NoBody {
				d.section("BODY")
				d.body(r)
			}
		}
		t.RequestProcessed = func(outcome request.Outcome, err error) {
			d.section("OUTCOME")
			summary := fmt.Sprintf(`%s "%s" | status=%d | success=%t`, reqDef.Method(), reqDef.URL(), outcome.StatusCode, outcome.Success)
			if err != nil {
				summary += fmt.Sprintf(" | error=%s", err)
			}
			if !d.headersAt.IsZero() {
				summary += fmt.Sprintf(" | headers after %s", d.headersAt.Sub(d.startedAt))
			}
			d.line(summary, fmt.Sprintf(" | done after %s", time.Since(d.startedAt)))

			lock.Lock()
			defer lock.Unlock()
			_, _ = fmt.Fprintf(wr, ">>>>>> HTTP DUMP\n%s<<<<<< HTTP DUMP END\n\n", d.out.String())
		}
		return ctx, t
	}
}

type requestDump struct {
	out       strings.Builder
	startedAt time.Time
	headersAt time.Time
}

// body dumps the decoded body and sets the raw body back to the response, for the client.
func (d *requestDump) body(r *http.Response) {
	raw, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		// The client gets the read bytes and then the same error
		r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), errReader{err: err}))
		d.line("cannot read body: ", err)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	if contentType := r.Header.Get("Content-Type"); contentType != "" && !isTextContentType(contentType) {
		d.line(fmt.Sprintf("<%d bytes of %s>", len(raw), contentType))
		return
	}

	reader, err := decode.Decode(io.NopCloser(bytes.NewReader(raw)), r.Header.Get("Content-Encoding"))
	if err != nil {
		d.line("cannot decode body: ", err)
		return
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		d.line("cannot decode body: ", err)
	}
	d.text(string(decoded))
}

func (d *requestDump) section(name string) {
	d.line("------ ", name)
}

// text writes a trimmed text, it is shortened if it is too long.
func (d *requestDump) text(s string) {
	s = strings.TrimSpace(s)
	if len(s) > dumpMaxLength && os.Getenv("HTTP_DUMP_TRACE_FULL") != "true" { //nolint:forbidigo
		d.line(s[:dumpMaxLength])
		d.line("... (set env HTTP_DUMP_TRACE_FULL=true to see full output)")
		return
	}
	d.line(s)
}

func (d *requestDump) line(a ...any) {
	_, _ = fmt.Fprint(&d.out, a...)
	d.out.WriteByte('\n')
}

func isTextContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	return regexpcache.MustCompile(textContentTypeRegexp).MatchString(strings.ToLower(strings.TrimSpace(mediaType)))
}

// errReader returns the error on each read.
type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}
