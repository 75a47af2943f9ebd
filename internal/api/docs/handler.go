package docs

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

//go:embed openapi.yaml
var openapiSpec []byte

// RegisterRoutes mounts the Swagger UI at /docs and the raw spec next to it.
func RegisterRoutes(r chi.Router) {
	r.Get("/docs/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(openapiSpec)
	})

	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/openapi.yaml"),
	))
}
