package httpmw

import (
	"net/http"
	"runtime/debug"

	"cdr.dev/slog/v3"

	"github.com/openclaw/dashboard/dashd/httpapi"
)

// Recover turns a handler panic into a 500. Nothing is written when the
// response already started or the connection was hijacked.
func Recover(log slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				log.Warn(r.Context(), "recovered panic in http handler",
					slog.F("method", r.Method),
					slog.F("path", r.URL.Path),
					slog.F("panic", p),
					slog.F("stack", string(debug.Stack())),
				)
				if sw, ok := rw.(*StatusWriter); ok && (sw.Hijacked || sw.wrote) {
					return
				}
				httpapi.InternalServerError(rw, nil)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}
