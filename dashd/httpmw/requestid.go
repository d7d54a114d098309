package httpmw

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"cdr.dev/slog/v3"
)

// RequestIDHeader echoes the request id back to the caller.
const RequestIDHeader = "X-Dashboard-Request-Id"

type requestIDKey struct{}

// RequestID returns the id AttachRequestID stored on the request. It is
// uuid.Nil when the middleware did not run.
func RequestID(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(requestIDKey{}).(uuid.UUID)
	return id
}

// AttachRequestID tags every request, and every log line written with
// its context, with a fresh id.
func AttachRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := uuid.New()
		ctx := slog.With(context.WithValue(r.Context(), requestIDKey{}, id), slog.F("request_id", id))
		rw.Header().Set(RequestIDHeader, id.String())
		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}
