package httpmw

import (
	"fmt"
	"net/http"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
)

// Logger logs each request at debug level, or warn for 5xx responses.
// It must run inside StatusWriterMiddleware.
func Logger(log slog.Logger, clock quartz.Clock) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			start := clock.Now()

			sw, ok := rw.(*StatusWriter)
			if !ok {
				panic(fmt.Sprintf("ResponseWriter not a *httpmw.StatusWriter; got %T", rw))
			}

			httplog := log.With(
				slog.F("path", r.URL.Path),
				slog.F("proto", r.Proto),
				slog.F("remote_addr", r.RemoteAddr),
				slog.F("start", start),
			)

			next.ServeHTTP(sw, r)

			// Health checks are polled constantly.
			if r.URL.Path == "/healthz" && sw.Status == http.StatusOK {
				return
			}

			took := clock.Since(start)
			httplog = httplog.With(
				slog.F("took", took),
				slog.F("status_code", sw.Status),
				slog.F("latency_ms", float64(took/time.Millisecond)),
			)

			// 5xx is not logged at error level: slogtest fails tests on
			// errors and upstream failures already log on their own.
			logLevelFn := httplog.Debug
			if sw.Status >= http.StatusInternalServerError {
				logLevelFn = httplog.Warn
			}
			logLevelFn(r.Context(), r.Method)
		})
	}
}
