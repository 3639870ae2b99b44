// Package httptransport assembles the public HTTP surface. It owns routing
// and middleware order only; all behavior lives in the domain handlers.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aegis/internal/platform/middleware"
)

// Registrar is anything that mounts routes onto the router. Every domain
// handler satisfies this.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires the middleware chain and mounts all handlers. Order
// matters: request metadata first so even auth failures log with a request
// id, auth last so everything behind it can trust the context claims.
func NewRouter(validator middleware.TokenValidator, logger *slog.Logger, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(middleware.RequestTime)
		r.Use(middleware.ClientMetadata)
		r.Use(middleware.RequireAuth(validator, logger))

		for _, h := range handlers {
			h.Register(r)
		}
	})
	return r
}
