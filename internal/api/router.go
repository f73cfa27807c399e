// VPNShield - VPN and Proxy Detection for Game Server Proxies
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vpnshield

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the chi router for the sidecar.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a router. A nil middleware uses DefaultMiddlewareConfig.
func NewRouter(handler *Handler, middleware *Middleware) *Router {
	if middleware == nil {
		middleware = NewMiddleware(nil)
	}
	return &Router{handler: handler, middleware: middleware}
}

// Setup returns the configured http.Handler.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(Metrics())
	r.Use(rt.middleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	r.Get("/healthz", rt.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(rt.middleware.RateLimit())

		r.Get("/check", rt.handler.Check)

		r.Route("/whitelist", func(r chi.Router) {
			r.Get("/", rt.handler.ListWhitelist)
			r.Post("/{ip}", rt.handler.AddWhitelist)
			r.Delete("/{ip}", rt.handler.RemoveWhitelist)
		})

		r.Post("/reload", rt.handler.Reload)
		r.Delete("/cache", rt.handler.ClearCache)
	})

	return r
}
