package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware caps how long a request's context stays alive.
// Cancellation is cooperative: handlers doing slow work must watch
// ctx.Done() themselves. Webhook handlers stay well under this bound
// because all slow I/O happens outside the request path. A non-positive
// timeout disables the middleware.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
