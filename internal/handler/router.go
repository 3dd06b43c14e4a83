package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/packvault/internal/repository"
)

// Router assembles the HTTP surface.
type Router struct {
	api    *APIHandler
	health repository.DatabaseHealth
	logger zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	API    *APIHandler
	Health repository.DatabaseHealth
	Logger zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		api:    cfg.API,
		health: cfg.Health,
		logger: cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", rt.handleHealth)
	rt.api.RegisterRoutes(r)

	return r
}

// handleHealth handles health check requests. Degrades to 503 when the
// database is unreachable.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := rt.health.Ping(r.Context()); err != nil {
		rt.logger.Warn().Err(err).Msg("health check failed")
		writeError(w, http.StatusServiceUnavailable, "unhealthy", "database unreachable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// requestLogger logs one line per request with latency and status.
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rt.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
