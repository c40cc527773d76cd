package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/application"
)

// Handler is the HTTP adapter for the management surface of the gateway.
type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// NewRouter registers probe, instance and admin routes with the shared middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/instance", handler.instance)
	})

	r.Route("/admin/v1", func(r chi.Router) {
		r.Post("/shutdown", handler.shutdown)
	})

	return r
}
