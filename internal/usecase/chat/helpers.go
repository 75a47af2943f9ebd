package chat

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/entity"
	"github.com/malykhin/ragchat-backend/internal/rag"
)

// globalBackingName resolves the vector collection behind a conversation's
// pinned registry entry. A dangling link degrades to no retrieval instead of
// failing the turn.
func (uc *ChatUsecase) globalBackingName(ctx context.Context, conv *entity.Conversation) string {
	if conv.LinkedGlobalCollectionID == nil {
		return ""
	}

	name, err := uc.lifecycle.BackingNameByID(ctx, *conv.LinkedGlobalCollectionID)
	if err != nil {
		ctxzap.Warn(ctx, "linked collection unresolvable, answering without retrieval",
			zap.String("collection_id", *conv.LinkedGlobalCollectionID), zap.Error(err))
		return ""
	}

	return name
}

func (uc *ChatUsecase) loadHistory(ctx context.Context, conversationID string) ([]entity.ChatMessage, error) {
	stored, err := uc.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	history := make([]entity.ChatMessage, 0, len(stored))
	for _, m := range stored {
		history = append(history, entity.ChatMessage{Role: m.Role, Content: m.Content})
	}

	return history, nil
}

// assembleInput builds the completion-model input for a turn: retrieval (when
// the turn has a backing collection), prompt selection and message assembly.
// Retrieval failures degrade to a context-free answer; the returned ragContext
// is non-nil only when retrieved context actually went into the prompt.
func (uc *ChatUsecase) assembleInput(ctx context.Context, t *turn, userMessage string) ([]entity.ChatMessage, *string) {
	contextStr := uc.buildContext(ctx, t, userMessage)

	systemPrompt := uc.systemPrompt(ctx, t, contextStr)

	messages := make([]entity.ChatMessage, 0, len(t.history)+2)
	messages = append(messages, entity.ChatMessage{Role: entity.MessageRoleSystem, Content: systemPrompt})
	messages = append(messages, t.history...)
	messages = append(messages, entity.ChatMessage{Role: entity.MessageRoleUser, Content: userMessage})

	var ragContext *string
	if contextStr != "" {
		ragContext = &contextStr
	}

	return messages, ragContext
}

// buildContext runs contextualize-and-retrieve and formats the hits into one
// context string. Empty when the turn has no collection, the collection has
// no relevant fragments, or retrieval failed.
func (uc *ChatUsecase) buildContext(ctx context.Context, t *turn, userMessage string) string {
	if t.backingCollection == "" {
		return ""
	}

	query := uc.rewriter.Rewrite(ctx, t.history, userMessage)

	fragments, err := uc.retriever.Retrieve(ctx, t.backingCollection, query)
	if err != nil {
		ctxzap.Warn(ctx, "retrieval failed, answering without context",
			zap.String("collection", t.backingCollection), zap.Error(err))
		return ""
	}
	if len(fragments) == 0 {
		return ""
	}

	return rag.FormatFragments(fragments)
}

// systemPrompt selects and fills the system prompt. Turns that ended up with
// no context use the regular template even when a collection was configured,
// so the model is not instructed to cite context it never received.
func (uc *ChatUsecase) systemPrompt(ctx context.Context, t *turn, contextStr string) string {
	classifyAs := t.backingCollection
	if contextStr == "" {
		classifyAs = ""
	}

	template, err := uc.prompts.Select(ctx, classifyAs)
	if err != nil {
		ctxzap.Warn(ctx, "prompt selection failed, using built-in default", zap.Error(err))
		template, _ = uc.prompts.Select(ctx, "")
	}

	if contextStr == "" {
		return template
	}

	return rag.InjectContext(template, contextStr)
}

// finishTurn persists the assistant message, activates a fresh conversation
// and schedules title generation.
func (uc *ChatUsecase) finishTurn(ctx context.Context, t *turn, userMessage, response string, ragContext *string) error {
	if _, err := uc.messages.Append(ctx, t.conv.ID, entity.MessageRoleAssistant, response, ragContext); err != nil {
		return fmt.Errorf("persist assistant message: %w", err)
	}

	if t.conv.IsEmpty {
		if err := uc.conversations.MarkActive(ctx, t.conv.ID); err != nil {
			ctxzap.Error(ctx, "failed to mark conversation active", zap.Error(err))
		}
	}

	uc.scheduleTitle(ctx, t.conv, userMessage)

	return nil
}
