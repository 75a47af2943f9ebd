package chat

import (
	"github.com/go-chi/chi/v5"

	"github.com/malykhin/ragchat-backend/internal/api/middleware"
)

// RegisterRoutes mounts the chat endpoints.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/chat", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Post("/", h.Respond)
		r.Post("/stream", h.RespondStream)
	})
}
