package rag

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/entity"
)

const contextualizePrompt = `Given the chat history and the latest user question, ` +
	`rewrite the question as a standalone search query. Resolve pronouns and ` +
	`references using the history. Keep the original language of the question. ` +
	`If the question is already self-contained, return it unchanged. ` +
	`Output only the rewritten query, nothing else.`

// contextualizeMaxTokens caps the rewrite output; a search query never needs
// more than this.
const contextualizeMaxTokens = 256

// Contextualizer rewrites follow-up questions into standalone search queries
// using the conversation history.
type Contextualizer struct {
	llm CompletionClient
}

func NewContextualizer(llm CompletionClient) *Contextualizer {
	return &Contextualizer{llm: llm}
}

// Rewrite returns a standalone query for utterance. With no history the
// utterance is already standalone. Rewrite failures fall back to the original
// utterance rather than failing the turn; retrieval with the raw question is
// still better than no retrieval.
func (c *Contextualizer) Rewrite(ctx context.Context, history []entity.ChatMessage, utterance string) string {
	if len(history) == 0 {
		return utterance
	}

	messages := make([]entity.ChatMessage, 0, len(history)+2)
	messages = append(messages, entity.ChatMessage{
		Role:    entity.MessageRoleSystem,
		Content: contextualizePrompt,
	})
	messages = append(messages, history...)
	messages = append(messages, entity.ChatMessage{
		Role:    entity.MessageRoleUser,
		Content: utterance,
	})

	rewritten, err := c.llm.Complete(ctx, messages, entity.CompletionOptions{
		Temperature:      0,
		TopP:             1,
		MaxTokens:        contextualizeMaxTokens,
		DisableReasoning: true,
	})
	if err != nil {
		ctxzap.Warn(ctx, "query rewrite failed, using original utterance", zap.Error(err))
		return utterance
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return utterance
	}

	return rewritten
}
