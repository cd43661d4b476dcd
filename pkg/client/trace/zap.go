package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/keboola/go-netkit/pkg/request"
)

// ZapTracer logs request stages as structured entries.
// Request start and response headers are logged at debug level,
// the processed request at info level, or at warn level if it failed.
func ZapTracer(logger *zap.Logger) Factory {
	var idGenerator uint64
	return func(ctx context.Context, reqDef request.HTTPRequest) (context.Context, *ClientTrace) {
		requestID := atomic.AddUint64(&idGenerator, 1)
		log := logger.With(
			zap.Uint64("request.id", requestID),
			zap.String("http.method", reqDef.Method()),
		)

		var startTime time.Time
		var statusCode int
		var bodyBytes int64

		t := &ClientTrace{}
		t.HTTPRequestStart = func(r *http.Request) {
			startTime = time.Now()
			log.Debug("http request started", zap.String("http.url", r.URL.String()))
		}
		t.HTTPRequestDone = func(r *http.Response, err error) {
			if err != nil {
				log.Debug("http request failed", zap.Duration("duration", time.Since(startTime)), zap.Error(err))
				return
			}
			statusCode = r.StatusCode
			log.Debug("http response received", zap.Int("http.status_code", statusCode), zap.Duration("duration", time.Since(startTime)))
		}
		t.BodyReadDone = func(_ *http.Response, bytes int64, _ error) {
			bodyBytes = bytes
		}
		t.RequestProcessed = func(outcome request.Outcome, err error) {
			fields := []zap.Field{
				zap.String("http.url", reqDef.URL()),
				zap.Int("http.status_code", statusCode),
				zap.Bool("success", outcome.Success),
				zap.Int64("http.response_bytes", bodyBytes),
			}
			if !startTime.IsZero() {
				fields = append(fields, zap.Duration("duration", time.Since(startTime)))
			}
			if err != nil {
				log.Warn("http request processed", append(fields, zap.Error(err))...)
			} else {
				log.Info("http request processed", fields...)
			}
		}
		return ctx, t
	}
}
