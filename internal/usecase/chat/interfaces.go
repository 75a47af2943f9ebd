package chat

import (
	"context"
	"time"

	"github.com/malykhin/ragchat-backend/internal/collection"
	"github.com/malykhin/ragchat-backend/internal/entity"
)

type ConversationRepository interface {
	Create(ctx context.Context, conv entity.Conversation) (*entity.Conversation, error)
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Conversation, error)
	MarkActive(ctx context.Context, id string) error
	UpdateTitle(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
}

type MessageRepository interface {
	Append(ctx context.Context, conversationID string, role entity.MessageRole, content string, ragContext *string) (*entity.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*entity.Message, error)
}

type FileRepository interface {
	ListByConversation(ctx context.Context, conversationID string) ([]*entity.CollectionFile, error)
}

// LifecycleManager covers the collection-side operations a chat turn needs.
type LifecycleManager interface {
	CheckAndResolveStaleness(ctx context.Context, conv *entity.Conversation) (*collection.StalenessResult, error)
	CurrentDefault(ctx context.Context) (*entity.Collection, error)
	BackingNameByID(ctx context.Context, id string) (string, error)
	Migrate(ctx context.Context, conversationID string) (*entity.Conversation, error)
	DropConversationCollection(ctx context.Context, conversationID string) error
}

type Retriever interface {
	Retrieve(ctx context.Context, collectionName, query string) ([]entity.Fragment, error)
}

type Contextualizer interface {
	Rewrite(ctx context.Context, history []entity.ChatMessage, utterance string) string
}

type PromptSelector interface {
	Select(ctx context.Context, collectionName string) (string, error)
}

// CompletionConnector is the completion capability in both delivery modes.
type CompletionConnector interface {
	Complete(ctx context.Context, messages []entity.ChatMessage, opts entity.CompletionOptions) (string, error)
	CompleteStream(ctx context.Context, messages []entity.ChatMessage, opts entity.CompletionOptions) (<-chan entity.CompletionDelta, error)
}

// Clock is injected so tests can pin expiry timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
