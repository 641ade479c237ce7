// Presence - Biometric Terminal Attendance Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presence

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/presence/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	wsHandler     http.Handler
}

// NewRouter creates a Router. wsHandler serves /api/v1/ws and may be nil,
// in which case the route is not mounted.
func NewRouter(handler *Handler, chiMw *ChiMiddleware, wsHandler http.Handler) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		chiMiddleware: chiMw,
		wsHandler:     wsHandler,
	}
}

// SetupChi configures all HTTP routes using Chi router.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging())
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// ========================
	// Terminal Webhook
	// ========================
	r.Route("/webhook/hikvision", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitWebhook())
		r.Use(middleware.PrometheusMetrics)

		r.Post("/", router.handler.HikvisionWebhook)
		r.Get("/test", router.handler.HikvisionWebhookTest)
		r.Post("/test", router.handler.HikvisionWebhookTest)
		r.Get("/status", router.handler.HikvisionWebhookStatus)
	})

	// ========================
	// Read API
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Get("/devices", router.handler.Devices)
			r.Get("/attendance", router.handler.Attendance)
			r.Get("/attendance/absent", router.handler.Absent)
			r.Get("/people", router.handler.People)
		})

		if router.wsHandler != nil {
			r.With(router.chiMiddleware.RateLimitWebSocket()).Get("/ws", router.wsHandler.ServeHTTP)
		}
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed", nil)
	})

	return r
}
