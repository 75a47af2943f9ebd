package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/api/middleware"
	"github.com/malykhin/ragchat-backend/internal/collection"
	"github.com/malykhin/ragchat-backend/internal/entity"
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

// Respond handles POST /chat: one batched chat turn.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.chat.Respond(r.Context(), req)
	if err != nil {
		writeChatError(w, r, err)
		return
	}

	response.Success(w, result)
}

// streamEvent is the SSE payload shape for one event.
type streamEvent struct {
	Content string             `json:"content,omitempty"`
	Result  *entity.ChatResult `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// RespondStream handles POST /chat/stream: one chat turn delivered as
// server-sent events. Event names: "chunk" for increments, "done" with the
// final result, "error" on failure.
func (h *Handler) RespondStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, err := h.chat.RespondStream(r.Context(), req)
	if err != nil {
		writeChatError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		switch {
		case ev.Err != nil:
			ctxzap.Error(r.Context(), "chat stream failed", zap.Error(ev.Err))
			writeSSE(w, "error", streamEvent{Error: "response generation failed"})
			flusher.Flush()
			return
		case ev.Done:
			writeSSE(w, "done", streamEvent{Content: ev.Content, Result: ev.Result})
			flusher.Flush()
			return
		default:
			writeSSE(w, "chunk", streamEvent{Content: ev.Content})
			flusher.Flush()
		}
	}
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (entity.ChatRequest, bool) {
	var req entity.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Message == "" {
		response.Error(w, http.StatusBadRequest, "message must not be empty")
		return req, false
	}

	req.UserID = middleware.UserID(r.Context())

	return req, true
}

func writeSSE(w http.ResponseWriter, event string, payload streamEvent) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	w.Write([]byte("event: " + event + "\ndata: " + string(data) + "\n\n"))
}

func writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrConversationNotFound):
		response.Error(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, collection.ErrNoGlobalDefault):
		response.Error(w, http.StatusConflict, "no global default collection configured")
	default:
		ctxzap.Error(r.Context(), "chat request failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
