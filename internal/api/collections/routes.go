package collections

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the collection registry endpoints. These are admin
// operations; the gateway in front of this service restricts access.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/collections", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/default", h.GetDefault)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/default", h.SetDefault)
	})
}
