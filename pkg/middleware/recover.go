// pkg/middleware/recover.go
package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"searchrelay/pkg/problems"
)

// Recover converts panics into problem+json 500s, keeping the correlation
// id attached so the stack trace can be matched to the failed request.
func Recover(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Errorw("panic",
						"err", rec,
						"correlation_id", CorrelationIDFrom(r.Context()),
						"stack", string(debug.Stack()))
					problems.Write(w, http.StatusInternalServerError,
						"internal", "Internal Server Error", "unexpected failure")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
