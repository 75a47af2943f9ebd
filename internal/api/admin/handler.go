package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/entity"
	"github.com/malykhin/ragchat-backend/internal/pkg/response"
	"github.com/malykhin/ragchat-backend/internal/settings"
	"github.com/malykhin/ragchat-backend/internal/usecase/maintenance"
)

type Handler struct {
	settings    *settings.Service
	maintenance *maintenance.MaintenanceUsecase
}

func NewHandler(settings *settings.Service, maintenance *maintenance.MaintenanceUsecase) *Handler {
	return &Handler{settings: settings, maintenance: maintenance}
}

// ListSettings handles GET /admin/settings/{category}.
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	items, err := h.settings.List(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if items == nil {
		items = []*entity.Setting{}
	}

	response.Success(w, items)
}

type settingValue struct {
	Value string `json:"value"`
}

// PutSetting handles PUT /admin/settings/{category}/{key}.
func (h *Handler) PutSetting(w http.ResponseWriter, r *http.Request) {
	var req settingValue
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.settings.Set(r.Context(), chi.URLParam(r, "category"), chi.URLParam(r, "key"), req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.NoContent(w)
}

// DeleteSetting handles DELETE /admin/settings/{category}/{key}, reverting
// the value to its built-in default.
func (h *Handler) DeleteSetting(w http.ResponseWriter, r *http.Request) {
	err := h.settings.Delete(r.Context(), chi.URLParam(r, "category"), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.NoContent(w)
}

// PurgeUserData handles POST /admin/users/{user_id}/purge: deletes every
// conversation the user owns and returns the per-item report.
func (h *Handler) PurgeUserData(w http.ResponseWriter, r *http.Request) {
	report, err := h.maintenance.DeleteUserData(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, report)
}

// ListUnclassified handles GET /admin/conversations/unclassified?limit=N,
// surfacing legacy rows with a missing or unknown type.
func (h *Handler) ListUnclassified(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	convs, err := h.maintenance.ListUnclassified(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if convs == nil {
		convs = []*entity.Conversation{}
	}

	response.Success(w, convs)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, settings.ErrSettingNotFound):
		response.Error(w, http.StatusNotFound, "setting not found")
	default:
		ctxzap.Error(r.Context(), "admin request failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
