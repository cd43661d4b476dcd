package trace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/keboola/go-netkit/pkg/request"
)

// LogTracer writes one line per request stage to the writer.
// Lines of one request share the "HTTP[<id>]" prefix, the id is unique within the tracer.
func LogTracer(wr io.Writer) Factory {
	var lastID atomic.Uint64
	return func(ctx context.Context, reqDef request.HTTPRequest) (context.Context, *ClientTrace) {
		l := &requestLog{wr: wr, id: lastID.Add(1)}
		t := &ClientTrace{}
		t.ConnectStart = func(_, _ string) {
			l.connectStart = time.Now()
		}
		t.GotConn = func(info httptrace.GotConnInfo) {
			if info.Reused {
				l.printf(`CONN    reused, idle %s`, info.IdleTime)
			} else {
				l.printf(`CONN    new %s -> %s | %s`, info.Conn.LocalAddr(), info.Conn.RemoteAddr(), time.Since(l.connectStart))
			}
		}
		t.HTTPRequestStart = func(r *http.Request) {
			l.startedAt = time.Now()
			l.printf(`START   %s "%s"`, r.Method, r.URL)
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			l.headersAt = time.Now()
			if err != nil {
				l.printf(`HEADERS error | %s | %s`, l.headersAt.Sub(l.startedAt), err)
			} else {
				l.printf(`HEADERS %d | %s`, r.StatusCode, l.headersAt.Sub(l.startedAt))
			}
		}
		t.BodyReadDone = func(_ *http.Response, bytes int64, err error) {
			if err != nil {
				l.printf(`BODY    %d bytes | %s | %s`, bytes, time.Since(l.headersAt), err)
			} else {
				l.printf(`BODY    %d bytes | %s`, bytes, time.Since(l.headersAt))
			}
		}
		t.RequestProcessed = func(outcome request.Outcome, err error) {
			if err != nil {
				l.printf(`FAILED  %s "%s" | %s`, reqDef.Method(), reqDef.URL(), err)
			} else {
				l.printf(`OUTCOME %d | success=%t | %d chars`, outcome.StatusCode, outcome.Success, utf8.RuneCountInString(outcome.Body))
			}
		}
		return ctx, t
	}
}

type requestLog struct {
	wr           io.Writer
	id           uint64
	connectStart time.Time
	startedAt    time.Time
	headersAt    time.Time
}

func (l *requestLog) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(l.wr, "HTTP[%04d] "+format+"\n", append([]any{l.id}, a...)...)
}
