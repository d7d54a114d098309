package httpmw

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/openclaw/dashboard/dashd/httpapi"
)

// TokenQueryParam carries the token for clients that cannot set headers,
// such as browser websockets.
const TokenQueryParam = "token"

// RequireAPIToken rejects requests that do not present token as a bearer
// credential. An empty token disables the check.
func RequireAPIToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			got := bearerToken(r)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httpapi.Unauthorized(rw)
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(value)
		}
		return ""
	}
	return r.URL.Query().Get(TokenQueryParam)
}
