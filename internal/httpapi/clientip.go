package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the originating client address for a request. Proxy
// headers win over the socket address: the first entry of X-Forwarded-For,
// then X-Real-IP, then RemoteAddr with any port stripped.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientIPFromContext returns the address resolved by ClientIPMiddleware,
// or an empty string when the middleware is not installed.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey).(string)
	return ip
}

// ClientIPMiddleware resolves the client address once per request and
// stores it in the context. The request logger and the guard rejection
// logs read it from there.
func ClientIPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPContextKey, ClientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
