package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency probe in handleHealth.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/ws", s.handleWebSocket)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleListSettings)
			r.Get("/{device}/{setting}", s.handleGetSetting)
			r.Put("/{device}/{setting}", s.handlePutSetting)
		})

		r.Route("/devices/{device}/busy", func(r chi.Router) {
			r.Get("/", s.handlePeekBusy)
			r.Post("/", s.handleMarkBusy)
		})

		r.Route("/camera", func(r chi.Router) {
			r.Get("/", s.handleCameraStatus)
			r.Post("/snap", s.handleSnap)
			r.Post("/sequence", s.handleStartSequence)
			r.Delete("/sequence", s.handleStopSequence)
		})

		r.Route("/frames", func(r chi.Router) {
			r.Get("/", s.handleListFrames)
			r.Get("/{nr}", s.handleGetFrame)
			r.Get("/{nr}/raw", s.handleGetFrameRaw)
		})
	})

	return r
}

// handleHealth returns the server health status.
//
// The tester is "ok" when the database answers (or none is configured);
// MQTT being offline only degrades it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.db.HealthCheck(ctx)
		cancel()
		if err != nil {
			checks["database"] = err.Error()
			status = "unhealthy"
		} else {
			checks["database"] = "ok"
		}
	}

	switch {
	case s.mqtt == nil:
		checks["mqtt"] = "disabled"
	case s.mqtt.IsConnected():
		checks["mqtt"] = "ok"
	default:
		checks["mqtt"] = "disconnected"
		if status == "ok" {
			status = "degraded"
		}
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
