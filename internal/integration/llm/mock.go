package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/entity"
)

// MockConnector is a development stand-in for the completion endpoint. It
// echoes a canned answer without any network calls.
type MockConnector struct{}

func NewMockConnector() *MockConnector {
	return &MockConnector{}
}

func (m *MockConnector) Complete(ctx context.Context, messages []entity.ChatMessage, opts entity.CompletionOptions) (string, error) {
	ctxzap.Info(ctx, "[MOCK] chat completion",
		zap.Int("messages", len(messages)),
		zap.Bool("reasoning_disabled", opts.DisableReasoning))

	return m.cannedResponse(messages), nil
}

func (m *MockConnector) CompleteStream(ctx context.Context, messages []entity.ChatMessage, _ entity.CompletionOptions) (<-chan entity.CompletionDelta, error) {
	ctxzap.Info(ctx, "[MOCK] chat completion stream", zap.Int("messages", len(messages)))

	out := make(chan entity.CompletionDelta)

	go func() {
		defer close(out)

		for _, word := range strings.SplitAfter(m.cannedResponse(messages), " ") {
			select {
			case out <- entity.CompletionDelta{Content: word}:
				time.Sleep(20 * time.Millisecond)
			case <-ctx.Done():
				select {
				case out <- entity.CompletionDelta{Err: ctx.Err()}:
				default:
				}
				return
			}
		}

		select {
		case out <- entity.CompletionDelta{Done: true}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

func (m *MockConnector) cannedResponse(messages []entity.ChatMessage) string {
	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == entity.MessageRoleUser {
			last = messages[i].Content
			break
		}
	}

	return fmt.Sprintf("This is a mock response to: %q", last)
}
