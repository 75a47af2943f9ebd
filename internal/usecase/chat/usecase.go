package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/collection"
	"github.com/malykhin/ragchat-backend/internal/config"
	"github.com/malykhin/ragchat-backend/internal/entity"
	"github.com/malykhin/ragchat-backend/internal/repository"
)

// User-facing texts for the two short-circuit outcomes.
const (
	processingMessage = "Your files are still being processed. Please try again in a moment."
)

// emptyConversationTTL is how long a conversation that never received a
// message survives before the reaper removes it.
const emptyConversationTTL = 24 * time.Hour

// ChatUsecase runs the full conversation pipeline: classify, resolve
// staleness, contextualize, retrieve, select prompt, complete, persist.
type ChatUsecase struct {
	conversations ConversationRepository
	messages      MessageRepository
	files         FileRepository
	lifecycle     LifecycleManager
	retriever     Retriever
	rewriter      Contextualizer
	prompts       PromptSelector
	llm           CompletionConnector
	clock         Clock

	defaultOpts entity.CompletionOptions
}

func NewChatUsecase(
	conversations ConversationRepository,
	messages MessageRepository,
	files FileRepository,
	lifecycle LifecycleManager,
	retriever Retriever,
	rewriter Contextualizer,
	prompts PromptSelector,
	llm CompletionConnector,
	llmCfg config.LLMConfig,
) *ChatUsecase {
	return &ChatUsecase{
		conversations: conversations,
		messages:      messages,
		files:         files,
		lifecycle:     lifecycle,
		retriever:     retriever,
		rewriter:      rewriter,
		prompts:       prompts,
		llm:           llm,
		clock:         systemClock{},
		defaultOpts: entity.CompletionOptions{
			Temperature: float32(llmCfg.Temperature),
			TopP:        float32(llmCfg.TopP),
			MaxTokens:   llmCfg.MaxTokens,
		},
	}
}

// Respond runs one batched chat turn.
func (uc *ChatUsecase) Respond(ctx context.Context, req entity.ChatRequest) (*entity.ChatResult, error) {
	t, err := uc.prepareTurn(ctx, req)
	if err != nil {
		return nil, err
	}
	if t.shortCircuit != nil {
		return t.shortCircuit, nil
	}

	if _, err := uc.messages.Append(ctx, t.conv.ID, entity.MessageRoleUser, req.Message, nil); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	messages, ragContext := uc.assembleInput(ctx, t, req.Message)

	response, err := uc.llm.Complete(ctx, messages, uc.defaultOpts)
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	if err := uc.finishTurn(ctx, t, req.Message, response, ragContext); err != nil {
		return nil, err
	}

	return &entity.ChatResult{
		ConversationID: t.conv.ID,
		Response:       response,
		UsedRetrieval:  ragContext != nil,
		Status:         entity.ChatStatusAnswered,
	}, nil
}

// RespondStream runs one streaming chat turn. Increments are delivered on the
// returned channel; the assistant message is persisted only after the stream
// completes, so an interrupted stream leaves no partial assistant record. The
// persisted content is byte-identical to what the batched path would store.
func (uc *ChatUsecase) RespondStream(ctx context.Context, req entity.ChatRequest) (<-chan entity.StreamEvent, error) {
	t, err := uc.prepareTurn(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan entity.StreamEvent)

	if t.shortCircuit != nil {
		go func() {
			defer close(out)
			out <- entity.StreamEvent{
				Content: t.shortCircuit.Response,
				Result:  t.shortCircuit,
				Done:    true,
			}
		}()
		return out, nil
	}

	if _, err := uc.messages.Append(ctx, t.conv.ID, entity.MessageRoleUser, req.Message, nil); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	messages, ragContext := uc.assembleInput(ctx, t, req.Message)

	deltas, err := uc.llm.CompleteStream(ctx, messages, uc.defaultOpts)
	if err != nil {
		return nil, fmt.Errorf("start completion stream: %w", err)
	}

	go func() {
		defer close(out)

		// Sends race the caller's context so an abandoned consumer cannot
		// strand this goroutine on the channel.
		send := func(ev entity.StreamEvent) {
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}

		var buf strings.Builder
		for delta := range deltas {
			switch {
			case delta.Err != nil:
				send(entity.StreamEvent{Err: delta.Err})
				return
			case delta.Done:
				response := buf.String()

				// Persistence must survive the client hanging up right
				// after the last delta.
				bgCtx := context.WithoutCancel(ctx)
				if err := uc.finishTurn(bgCtx, t, req.Message, response, ragContext); err != nil {
					send(entity.StreamEvent{Err: err})
					return
				}

				send(entity.StreamEvent{
					Result: &entity.ChatResult{
						ConversationID: t.conv.ID,
						Response:       response,
						UsedRetrieval:  ragContext != nil,
						Status:         entity.ChatStatusAnswered,
					},
					Done: true,
				})
				return
			default:
				buf.WriteString(delta.Content)
				select {
				case out <- entity.StreamEvent{Content: delta.Content}:
				case <-ctx.Done():
					select {
					case out <- entity.StreamEvent{Err: ctx.Err()}:
					default:
					}
					return
				}
			}
		}

		// Channel closed without a terminal delta.
		send(entity.StreamEvent{Err: fmt.Errorf("completion stream ended unexpectedly")})
	}()

	return out, nil
}

// Migrate re-pins a conversation to the current global default on explicit
// user request, clearing the locked state.
func (uc *ChatUsecase) Migrate(ctx context.Context, userID, conversationID string) (*entity.Conversation, error) {
	if _, err := uc.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	return uc.lifecycle.Migrate(ctx, conversationID)
}

// ListConversations returns the user's conversations, most recent first.
func (uc *ChatUsecase) ListConversations(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	return uc.conversations.ListByUser(ctx, userID)
}

// GetConversation returns a conversation with its full message history.
func (uc *ChatUsecase) GetConversation(ctx context.Context, userID, conversationID string) (*entity.Conversation, []*entity.Message, error) {
	conv, err := uc.ownedConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, nil, err
	}

	messages, err := uc.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("list messages: %w", err)
	}

	return conv, messages, nil
}

// DeleteConversation removes a conversation, its messages (via cascade) and,
// for user-files conversations, the backing vector collection.
func (uc *ChatUsecase) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	conv, err := uc.ownedConversation(ctx, userID, conversationID)
	if err != nil {
		return err
	}

	if conv.Type == entity.ConversationTypeUserFiles {
		if err := uc.lifecycle.DropConversationCollection(ctx, conversationID); err != nil {
			return fmt.Errorf("drop conversation collection: %w", err)
		}
	}

	if err := uc.conversations.Delete(ctx, conversationID); err != nil {
		return err
	}

	ctxzap.Info(ctx, "conversation deleted",
		zap.String("conversation_id", conversationID), zap.String("user_id", userID))

	return nil
}

// turn carries everything prepareTurn resolved for one inbound message.
type turn struct {
	conv    *entity.Conversation
	history []entity.ChatMessage

	// backingCollection is the vector collection to search; empty when the
	// turn does not use retrieval.
	backingCollection string

	// shortCircuit is set when the turn terminates before the model is
	// called (locked conversation, files still processing).
	shortCircuit *entity.ChatResult
}

// prepareTurn resolves the conversation, classifies it and runs the
// pre-persistence checks. Short-circuit outcomes are decided here, before
// the user message is stored, so a locked or still-processing turn leaves
// no trace in history.
func (uc *ChatUsecase) prepareTurn(ctx context.Context, req entity.ChatRequest) (*turn, error) {
	conv, err := uc.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	ctxzap.AddFields(ctx,
		zap.String("conversation_id", conv.ID),
		zap.String("conversation_type", string(conv.Type)))

	t := &turn{conv: conv}

	switch conv.Type {
	case entity.ConversationTypeGlobalCollection:
		res, err := uc.lifecycle.CheckAndResolveStaleness(ctx, conv)
		if err != nil {
			return nil, fmt.Errorf("staleness check: %w", err)
		}

		if res.Status == collection.StalenessLocked {
			t.shortCircuit = &entity.ChatResult{
				ConversationID: conv.ID,
				Response:       res.Message,
				Status:         entity.ChatStatusLocked,
			}
			return t, nil
		}

		t.conv = res.Conversation
		t.backingCollection = uc.globalBackingName(ctx, res.Conversation)

	case entity.ConversationTypeUserFiles:
		files, err := uc.files.ListByConversation(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("list conversation files: %w", err)
		}

		for _, f := range files {
			if !f.IsProcessed {
				t.shortCircuit = &entity.ChatResult{
					ConversationID: conv.ID,
					Response:       processingMessage,
					Status:         entity.ChatStatusProcessing,
				}
				return t, nil
			}
		}

		t.backingCollection = collection.ConversationCollectionName(conv.ID)

	default:
		// REGULAR and UNCLASSIFIED answer without retrieval.
	}

	history, err := uc.loadHistory(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	t.history = history

	return t, nil
}

func (uc *ChatUsecase) resolveConversation(ctx context.Context, req entity.ChatRequest) (*entity.Conversation, error) {
	if req.ConversationID != nil {
		conv, err := uc.conversations.GetByID(ctx, *req.ConversationID)
		switch {
		case err == nil:
			// A conversation owned by someone else reads as not found so
			// callers cannot enumerate other users' ids.
			if conv.UserID != req.UserID {
				return nil, repository.ErrConversationNotFound
			}
			return conv, nil
		case errors.Is(err, repository.ErrConversationNotFound):
			// An id nothing matches starts a fresh conversation instead of
			// failing the turn.
			ctxzap.Info(ctx, "unrecognized conversation id, starting a new conversation",
				zap.String("requested_id", *req.ConversationID))
		default:
			return nil, err
		}
	}

	convType := entity.ConversationTypeRegular
	if req.NewConversationType != nil {
		convType = *req.NewConversationType
	}

	conv := entity.Conversation{
		ID:     uuid.New().String(),
		UserID: req.UserID,
		Type:   convType,
	}

	expires := uc.clock.Now().Add(emptyConversationTTL)
	conv.ExpiresAt = &expires

	if convType == entity.ConversationTypeGlobalCollection {
		def, err := uc.lifecycle.CurrentDefault(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve global default for new conversation: %w", err)
		}
		conv.LinkedGlobalCollectionID = &def.ID
		conv.OriginalGlobalCollectionName = &def.Name
	}

	created, err := uc.conversations.Create(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	ctxzap.Info(ctx, "conversation created",
		zap.String("conversation_id", created.ID),
		zap.String("conversation_type", string(created.Type)))

	return created, nil
}

// ownedConversation loads a conversation and verifies ownership. A foreign
// conversation reads as not found so callers cannot enumerate other users' ids.
func (uc *ChatUsecase) ownedConversation(ctx context.Context, userID, conversationID string) (*entity.Conversation, error) {
	conv, err := uc.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, repository.ErrConversationNotFound
	}

	return conv, nil
}
