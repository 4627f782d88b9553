package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/monitors", func(r chi.Router) {
			r.Get("/", s.handleListMonitors)

			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", s.handleGetMonitor)
				r.Put("/brightness", s.handleSetBrightness)
				r.Put("/contrast", s.handleSetContrast)
				r.Post("/refresh", s.handleRefreshMonitor)
				r.Get("/history", s.handleGetHistory)
			})
		})

		r.Post("/rescan", s.handleRescan)
		r.Get("/diagnostics", s.handleDiagnostics)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
//
// The service is "ok" when every monitor is controllable and "degraded"
// otherwise, including when no monitor was found.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	states := s.registry.States()
	controllable := 0
	for _, st := range states {
		if st.Controllable {
			controllable++
		}
	}

	status := "ok"
	if len(states) == 0 || controllable < len(states) {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"version":      s.version,
		"monitors":     len(states),
		"controllable": controllable,
	})
}
