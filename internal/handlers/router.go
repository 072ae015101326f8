package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"saferide/go-backend/internal/models"
	"saferide/go-backend/internal/services"
)

// CORS allows the dashboard to call the API from another origin.
func CORS(origins string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request through zerolog.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func baseRouter(corsOrigins string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS(corsOrigins))
	return r
}

// NewServerRouter wires the backend API and the live feed.
func NewServerRouter(api *API, hub *Hub, metrics *services.Metrics, corsOrigins string) *chi.Mux {
	r := baseRouter(corsOrigins)

	r.Get("/health", Ping)
	r.Get("/ws", hub.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", api.Health)
		r.Get("/metrics", MetricsHandler(metrics))

		r.Post("/signup", api.Signup)
		r.Post("/login", api.Login)

		r.Get("/status/{vehicle_id}", api.Status)
		r.Get("/history/{vehicle_id}", api.History)
		r.Get("/alerts/{vehicle_id}", api.Alerts)

		r.Get("/points/{vehicle_id}", api.Points)
		r.Post("/redeem-points", api.RedeemPoints)
	})
	return r
}

// NewAgentRouter wires the tracker link and the agent's own status.
func NewAgentRouter(tracker *Tracker, metrics *services.Metrics, brokerUp func() bool) *chi.Mux {
	r := baseRouter("*")

	r.Get("/health", Ping)
	r.Get("/ws", tracker.ServeWS)
	r.Get("/api/metrics", MetricsHandler(metrics))
	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		status := "healthy"
		up := brokerUp != nil && brokerUp()
		if !up {
			status = "degraded"
		}
		writeJSON(w, http.StatusOK, models.HealthStatus{
			Status:        status,
			Broker:        up,
			ActiveClients: tracker.Active(),
			UptimeSec:     int64(metrics.Uptime().Seconds()),
			Version:       Version,
		})
	})
	return r
}
