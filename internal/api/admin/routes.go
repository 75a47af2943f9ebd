package admin

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the admin endpoints. Access control is enforced by
// the gateway in front of this service.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/settings/{category}", h.ListSettings)
		r.Put("/settings/{category}/{key}", h.PutSetting)
		r.Delete("/settings/{category}/{key}", h.DeleteSetting)
		r.Post("/users/{user_id}/purge", h.PurgeUserData)
		r.Get("/conversations/unclassified", h.ListUnclassified)
	})
}
