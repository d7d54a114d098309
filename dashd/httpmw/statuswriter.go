package httpmw

import (
	"bufio"
	"net"
	"net/http"

	"golang.org/x/xerrors"
)

// StatusWriter records the response status and whether the connection
// was hijacked.
type StatusWriter struct {
	http.ResponseWriter
	Status   int
	Hijacked bool
	wrote    bool
}

func (w *StatusWriter) WriteHeader(status int) {
	if !w.wrote {
		w.Status = status
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *StatusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.Status = http.StatusOK
		w.wrote = true
	}
	return w.ResponseWriter.Write(b)
}

// Hijack is required for websocket upgrades.
func (w *StatusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, xerrors.Errorf("%T is not a http.Hijacker", w.ResponseWriter)
	}
	w.Hijacked = true
	if !w.wrote {
		w.Status = http.StatusSwitchingProtocols
		w.wrote = true
	}
	return hijacker.Hijack()
}

func (w *StatusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *StatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// StatusWriterMiddleware wraps every response in a *StatusWriter. The
// logging, recovery and metrics middleware rely on it.
func StatusWriterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		sw, ok := rw.(*StatusWriter)
		if !ok {
			sw = &StatusWriter{ResponseWriter: rw}
		}
		next.ServeHTTP(sw, r)
	})
}
