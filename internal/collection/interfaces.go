package collection

import (
	"context"

	"github.com/malykhin/ragchat-backend/internal/entity"
	"github.com/malykhin/ragchat-backend/internal/settings"
)

// VectorStore is the subset of vector-database operations the lifecycle
// manager needs.
type VectorStore interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	EnsureCollection(ctx context.Context, name string) error
	DeleteCollection(ctx context.Context, name string) error
}

// SettingsProvider exposes the runtime settings that drive collection
// behavior.
type SettingsProvider interface {
	PredefinedCollectionName(ctx context.Context) (string, error)
	GlobalCollectionBehavior(ctx context.Context) (settings.GlobalCollectionPolicy, error)
}

// CollectionRepository persists registry entries.
type CollectionRepository interface {
	Create(ctx context.Context, coll entity.Collection) (*entity.Collection, error)
	GetByID(ctx context.Context, id string) (*entity.Collection, error)
	GetByName(ctx context.Context, name string) (*entity.Collection, error)
	List(ctx context.Context, includeAdminOnly bool) ([]*entity.Collection, error)
	GetGlobalDefault(ctx context.Context) (*entity.Collection, error)
	SetGlobalDefault(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// ConversationRepository is the subset of conversation persistence the
// lifecycle manager needs for migrations.
type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	UpdateGlobalLink(ctx context.Context, id, collectionID, collectionName string) (*entity.Conversation, error)
}
