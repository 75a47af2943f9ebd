package conversations

import (
	"github.com/go-chi/chi/v5"

	"github.com/malykhin/ragchat-backend/internal/api/middleware"
)

// RegisterRoutes mounts the conversation endpoints.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/conversations", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/migrate", h.Migrate)
		r.Get("/{id}/export", h.Export)
	})
}
