package rag

import (
	"context"

	"github.com/malykhin/ragchat-backend/internal/entity"
)

// Embedder turns a query string into a dense vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher is the narrow search surface of the vector store. Adapters
// normalize upstream payload shapes into RetrievedDocument before returning.
type VectorSearcher interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	Search(ctx context.Context, collectionName string, vector []float32, limit int) ([]entity.RetrievedDocument, error)
}

// CompletionClient is the non-streaming completion surface used for query
// rewriting.
type CompletionClient interface {
	Complete(ctx context.Context, messages []entity.ChatMessage, opts entity.CompletionOptions) (string, error)
}

// SettingsProvider exposes the admin-tunable retrieval and prompt settings.
type SettingsProvider interface {
	TopK(ctx context.Context) (int, error)
	PredefinedCollectionName(ctx context.Context) (string, error)
	PromptTemplate(ctx context.Context, key, fallback string) (string, error)
}
