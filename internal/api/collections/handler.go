package collections

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/collection"
	"github.com/malykhin/ragchat-backend/internal/entity"
	"github.com/malykhin/ragchat-backend/internal/pkg/response"
	"github.com/malykhin/ragchat-backend/internal/repository"
)

type Handler struct {
	lifecycle *collection.Manager
}

func NewHandler(lifecycle *collection.Manager) *Handler {
	return &Handler{lifecycle: lifecycle}
}

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AdminOnly   bool   `json:"admin_only"`
}

// Create handles POST /collections. Creating an existing name returns the
// existing entry with 200 instead of 201.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		response.Error(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	coll, created, err := h.lifecycle.Create(r.Context(), req.Name, req.Description, req.AdminOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if created {
		response.Created(w, coll)
		return
	}

	response.Success(w, coll)
}

// List handles GET /collections?include_admin=true.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	includeAdmin, _ := strconv.ParseBool(r.URL.Query().Get("include_admin"))

	colls, err := h.lifecycle.List(r.Context(), includeAdmin)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if colls == nil {
		colls = []*entity.Collection{}
	}

	response.Success(w, colls)
}

// Get handles GET /collections/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	coll, err := h.lifecycle.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, coll)
}

type deleteResult struct {
	Deleted bool `json:"deleted"`
}

// Delete handles DELETE /collections/{id}. Idempotent: deleting an unknown
// id reports deleted=false with 200.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.lifecycle.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, deleteResult{Deleted: deleted})
}

// SetDefault handles POST /collections/{id}/default.
func (h *Handler) SetDefault(w http.ResponseWriter, r *http.Request) {
	if err := h.lifecycle.SetGlobalDefault(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	response.NoContent(w)
}

// GetDefault handles GET /collections/default.
func (h *Handler) GetDefault(w http.ResponseWriter, r *http.Request) {
	coll, err := h.lifecycle.CurrentDefault(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, coll)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrCollectionNotFound):
		response.Error(w, http.StatusNotFound, "collection not found")
	case errors.Is(err, collection.ErrNoGlobalDefault):
		response.Error(w, http.StatusNotFound, "no global default collection configured")
	case errors.Is(err, repository.ErrCollectionExists):
		response.Error(w, http.StatusConflict, "collection already exists")
	default:
		ctxzap.Error(r.Context(), "collection request failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
