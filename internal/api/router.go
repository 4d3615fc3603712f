package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/r2upnpav/internal/renderer"
	"github.com/nerrad567/r2upnpav/internal/upnp"
)

// rendererListTimeout bounds the wait for the reactor.
const rendererListTimeout = 5 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// GENA callbacks from renderers
	r.Mount(upnp.EventPathPrefix, s.events)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/renderers", s.handleListRenderers)
		r.Get("/ws", s.handleWebSocket)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
	})

	return r
}

// handleHealth returns the bridge health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": s.version,
		})
		return
	}

	msg := s.health.Current()
	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            msg.Status,
		"version":           s.version,
		"reason":            msg.Reason,
		"uptime_seconds":    msg.UptimeSeconds,
		"renderers":         msg.Renderers,
		"inputs":            msg.Inputs,
		"websocket_clients": clients,
	})
}

// handleListRenderers returns the registered renderers and their cached state.
func (s *Server) handleListRenderers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), rendererListTimeout)
	defer cancel()

	list, err := s.renderers.Renderers(ctx)
	if err != nil {
		s.logger.Warn("listing renderers failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "renderer registry unavailable")
		return
	}
	if list == nil {
		list = []renderer.Snapshot{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"renderers": list,
		"count":     len(list),
	})
}
