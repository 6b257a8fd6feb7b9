package httputil

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/cwrk-planet/rendezvous/pkg/logger"
)

const HeaderRequestID = "X-Request-ID"

// MiddlewareRequestID propagates X-Request-ID or generates a fresh one.
func MiddlewareRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)

		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), reqID)))
	})
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return logger.RequestID(ctx)
}
