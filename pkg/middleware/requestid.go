// pkg/middleware/requestid.go
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxCorrKey struct{}

// CorrelationID establishes a per-request correlation id (from X-Request-Id
// when the caller supplies one, generated otherwise) and echoes it back.
// Every log emission for the request carries this id.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = uuid.NewString()[:8]
			}
			w.Header().Set("X-Request-Id", id)
			next.ServeHTTP(w, r.WithContext(WithCorrelationID(r.Context(), id)))
		})
	}
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxCorrKey{}, id)
}

func CorrelationIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxCorrKey{}).(string); ok {
		return v
	}
	return ""
}
