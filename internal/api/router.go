package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/ranges", s.handleListRanges)

			r.Route("/sensors", func(r chi.Router) {
				r.Get("/", s.handleListSensors)

				r.Route("/{serial}", func(r chi.Router) {
					r.Get("/", s.handleGetSensor)
					r.Get("/events", s.handleSensorEvents)
					r.Post("/start", s.handleStartSensor)
					r.Post("/stop", s.handleStopSensor)
					r.Post("/reboot", s.handleRebootSensor)
					r.Get("/exposure", s.handleGetExposure)
					r.Put("/exposure", s.handleSetExposure)
					r.Get("/intrinsics", s.handleGetIntrinsics)
					r.Get("/imu", s.handleGetIMU)
				})
			})

			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
