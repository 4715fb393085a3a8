// pkg/middleware/endpoint.go
package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxEndpointKey struct{}

// Endpoint derives the tenant endpoint from the request's effective host and
// stores it in the context. Resolution of bindings happens later, per call:
// an endpoint with no registered servers is not an error here.
func Endpoint() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := r.Host
			if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
				host = fwd
			}
			if i := strings.Index(host, ":"); i > 0 {
				host = host[:i]
			}
			ctx := context.WithValue(r.Context(), ctxEndpointKey{}, strings.ToLower(host))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func EndpointFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxEndpointKey{}).(string); ok {
		return v
	}
	return ""
}
