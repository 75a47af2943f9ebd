package conversations

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/api/middleware"
	"github.com/malykhin/ragchat-backend/internal/collection"
	"github.com/malykhin/ragchat-backend/internal/entity"
	"github.com/malykhin/ragchat-backend/internal/pkg/formatter"
	"github.com/malykhin/ragchat-backend/internal/pkg/response"
	"github.com/malykhin/ragchat-backend/internal/repository"
	chatuc "github.com/malykhin/ragchat-backend/internal/usecase/chat"
)

type Handler struct {
	chat *chatuc.ChatUsecase
}

func NewHandler(chat *chatuc.ChatUsecase) *Handler {
	return &Handler{chat: chat}
}

// List handles GET /conversations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	convs, err := h.chat.ListConversations(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if convs == nil {
		convs = []*entity.Conversation{}
	}

	response.Success(w, convs)
}

type conversationDetail struct {
	*entity.Conversation
	Messages []*entity.Message `json:"messages"`
}

// Get handles GET /conversations/{id}: the conversation with full history.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	conv, messages, err := h.chat.GetConversation(r.Context(),
		middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if messages == nil {
		messages = []*entity.Message{}
	}

	response.Success(w, conversationDetail{Conversation: conv, Messages: messages})
}

// Delete handles DELETE /conversations/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.chat.DeleteConversation(r.Context(),
		middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.NoContent(w)
}

// Migrate handles POST /conversations/{id}/migrate: re-pins a locked
// conversation to the current global default.
func (h *Handler) Migrate(w http.ResponseWriter, r *http.Request) {
	conv, err := h.chat.Migrate(r.Context(),
		middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Success(w, conv)
}

// Export handles GET /conversations/{id}/export?format=pdf: downloads the
// transcript as a document.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "pdf"
	}

	f, err := formatter.ForFormat(format)
	if err != nil {
		response.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, messages, err := h.chat.GetConversation(r.Context(),
		middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	title := "Conversation"
	if conv.Title != nil {
		title = *conv.Title
	}

	doc, err := f.Format(title, messages)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="conversation-%s.%s"`, conv.ID, f.FileExtension()))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrConversationNotFound):
		response.Error(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, collection.ErrNoGlobalDefault):
		response.Error(w, http.StatusConflict, "no global default collection configured")
	default:
		ctxzap.Error(r.Context(), "conversation request failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
