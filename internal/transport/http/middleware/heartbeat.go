package httpmw

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cwrk-planet/rendezvous/internal/domain"
)

type HeartbeatToucher interface {
	Touch(id domain.ParticipantID) error
}

// HeartbeatMiddleware refreshes last-seen for the {userId} in the path.
// Unknown ids are left for the handler to report.
func HeartbeatMiddleware(engine HeartbeatToucher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := chi.URLParam(r, "userId"); id != "" {
				_ = engine.Touch(domain.ParticipantID(id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
