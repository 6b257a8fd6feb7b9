package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	httpmw "github.com/cwrk-planet/rendezvous/internal/transport/http/middleware"
	"github.com/cwrk-planet/rendezvous/internal/transport/ws"
	"github.com/cwrk-planet/rendezvous/pkg/httputil"
)

type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(h *Handler, wsServer *ws.Server, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middlewareChi.RealIP)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging)
	r.Use(middlewareChi.Recoverer)

	// WS endpoint, outside the request timeout
	if wsServer != nil {
		r.Get("/ws", wsServer.HandleWS)
	}

	r.Group(func(api chi.Router) {
		api.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{httputil.HeaderRequestID},
			MaxAge:         300,
		}))
		api.Use(middlewareChi.Timeout(cfg.RequestTimeout))

		api.Route("/api", func(rt chi.Router) {
			rt.With(httpmw.BanGuard(h.engine)).Post("/join", h.Join)
			rt.Get("/poll/{userId}", h.Poll)
			rt.With(httpmw.HeartbeatMiddleware(h.engine)).Get("/events/{userId}", h.Events)
			rt.Post("/relay", h.Relay)
			rt.Post("/requeue", h.Requeue)
			rt.Post("/leave", h.Leave)
			rt.Post("/report", h.Report)
			rt.Post("/ban-me", h.BanMe)
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, StatusResponse{Status: "ok"})
	})

	return r
}
