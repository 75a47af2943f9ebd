package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/api/admin"
	"github.com/malykhin/ragchat-backend/internal/api/chat"
	"github.com/malykhin/ragchat-backend/internal/api/collections"
	"github.com/malykhin/ragchat-backend/internal/api/conversations"
	"github.com/malykhin/ragchat-backend/internal/api/docs"
	"github.com/malykhin/ragchat-backend/internal/api/middleware"
	"github.com/malykhin/ragchat-backend/internal/pkg/response"
)

// requestTimeout bounds non-streaming handlers. Streaming endpoints manage
// their own lifetime.
const requestTimeout = 120 * time.Second

type Handlers struct {
	Chat          *chat.Handler
	Conversations *conversations.Handler
	Collections   *collections.Handler
	Admin         *admin.Handler
}

// NewRouter builds the HTTP routing tree.
func NewRouter(logger *zap.Logger, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.Success(w, map[string]string{"status": "ok"})
	})

	docs.RegisterRoutes(r)

	r.Route("/api/v1", func(r chi.Router) {
		chat.RegisterRoutes(r, h.Chat)
		conversations.RegisterRoutes(r, h.Conversations)
		collections.RegisterRoutes(r, h.Collections)
		admin.RegisterRoutes(r, h.Admin)
	})

	return r
}
