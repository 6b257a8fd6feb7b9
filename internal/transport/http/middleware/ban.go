package httpmw

import (
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/rendezvous/pkg/httputil"
)

type BanChecker interface {
	IsBanned(origin string) bool
}

// BanGuard rejects requests from banned origins before they reach the engine.
func BanGuard(bans BanChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := httputil.OriginKey(r)
			if bans.IsBanned(origin) {
				slog.Info("request from banned origin refused", "origin", origin, "path", r.URL.Path)
				httputil.Error(w, http.StatusForbidden, "banned", "origin is banned")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
