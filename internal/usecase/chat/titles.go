package chat

import (
	"context"
	"strings"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/entity"
)

const titlePrompt = `Write a short title (at most six words) summarizing the topic of the ` +
	`user's message. Use the same language as the message. Output only the title, ` +
	`no quotes, no punctuation at the end.`

const (
	titleMaxTokens = 32
	titleMaxRunes  = 80
	titleTimeout   = 30 * time.Second
)

// scheduleTitle generates a conversation title from the first user message in
// the background. Best effort: failures are logged and the conversation
// simply stays untitled.
func (uc *ChatUsecase) scheduleTitle(ctx context.Context, conv *entity.Conversation, userMessage string) {
	if conv.Title != nil {
		return
	}

	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), titleTimeout)

	go func() {
		defer cancel()

		title, err := uc.llm.Complete(bgCtx, []entity.ChatMessage{
			{Role: entity.MessageRoleSystem, Content: titlePrompt},
			{Role: entity.MessageRoleUser, Content: userMessage},
		}, entity.CompletionOptions{
			MaxTokens:        titleMaxTokens,
			DisableReasoning: true,
		})
		if err != nil {
			ctxzap.Warn(bgCtx, "title generation failed", zap.Error(err))
			return
		}

		title = trimTitle(title)
		if title == "" {
			return
		}

		if err := uc.conversations.UpdateTitle(bgCtx, conv.ID, title); err != nil {
			ctxzap.Warn(bgCtx, "title update failed", zap.Error(err))
		}
	}()
}

func trimTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.Trim(title, `"'`)

	runes := []rune(title)
	if len(runes) > titleMaxRunes {
		title = string(runes[:titleMaxRunes])
	}

	return strings.TrimSpace(title)
}
