package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/avast/retry-go/v4"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/config"
	"github.com/malykhin/ragchat-backend/internal/entity"
)

// Connector talks to an OpenAI-compatible completion endpoint (vLLM in
// production).
type Connector struct {
	client *openai.Client
	cfg    config.LLMConfig
}

func NewConnector(cfg config.LLMConfig) *Connector {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return &Connector{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

// model picks the serving alias for a call. Reasoning-off calls go to the
// dedicated non-reasoning alias when one is configured.
func (c *Connector) model(opts entity.CompletionOptions) string {
	if opts.DisableReasoning && c.cfg.RewriteModel != "" {
		return c.cfg.RewriteModel
	}
	return c.cfg.Model
}

func (c *Connector) buildRequest(messages []entity.ChatMessage, opts entity.CompletionOptions) openai.ChatCompletionRequest {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       c.model(opts),
		Messages:    chatMessages,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		MaxTokens:   opts.MaxTokens,
	}
}

// Complete performs a blocking completion call with retries.
func (c *Connector) Complete(ctx context.Context, messages []entity.ChatMessage, opts entity.CompletionOptions) (string, error) {
	req := c.buildRequest(messages, opts)

	var content string
	err := retry.Do(
		func() error {
			resp, err := c.client.CreateChatCompletion(ctx, req)
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}
			content = resp.Choices[0].Message.Content
			return nil
		},
		append(c.cfg.Retry.ToRetryOptions(), retry.Context(ctx))...,
	)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	return content, nil
}

// CompleteStream starts a streaming completion call and returns a channel of
// deltas. At most one terminal delta is sent: Done on success or Err on
// failure, after which the channel is closed. Streaming calls are not
// retried; a mid-stream failure surfaces as an Err delta. Every send is
// guarded against ctx so a consumer that stops receiving cannot strand the
// goroutine on the channel; the stream is always closed.
func (c *Connector) CompleteStream(ctx context.Context, messages []entity.ChatMessage, opts entity.CompletionOptions) (<-chan entity.CompletionDelta, error) {
	req := c.buildRequest(messages, opts)
	req.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("start chat completion stream: %w", err)
	}

	out := make(chan entity.CompletionDelta)

	send := func(d entity.CompletionDelta) bool {
		select {
		case out <- d:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				send(entity.CompletionDelta{Done: true})
				return
			}
			if err != nil {
				ctxzap.Error(ctx, "completion stream failed", zap.Error(err))
				send(entity.CompletionDelta{Err: fmt.Errorf("receive stream delta: %w", err)})
				return
			}

			if len(resp.Choices) == 0 {
				continue
			}

			if content := resp.Choices[0].Delta.Content; content != "" {
				if !send(entity.CompletionDelta{Content: content}) {
					// Consumer is gone; flag the cancellation only if someone
					// is still draining, never at the cost of blocking.
					select {
					case out <- entity.CompletionDelta{Err: ctx.Err()}:
					default:
					}
					return
				}
			}
		}
	}()

	return out, nil
}
