package rag

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/entity"
)

// genericSourceLabel is used when a hit carries neither a filename nor a
// document id.
const genericSourceLabel = "uploaded document"

// Retriever answers similarity queries against a named collection and returns
// attributed text fragments.
type Retriever struct {
	embedder Embedder
	searcher VectorSearcher
	settings SettingsProvider
}

func NewRetriever(embedder Embedder, searcher VectorSearcher, settings SettingsProvider) *Retriever {
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		settings: settings,
	}
}

// Retrieve returns the top-K fragments most relevant to query. A collection
// that does not exist yields an empty result, not an error, so callers can
// degrade to a context-free answer.
func (r *Retriever) Retrieve(ctx context.Context, collectionName, query string) ([]entity.Fragment, error) {
	exists, err := r.searcher.CollectionExists(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("check collection %q: %w", collectionName, err)
	}
	if !exists {
		ctxzap.Debug(ctx, "retrieval skipped, collection does not exist",
			zap.String("collection", collectionName))
		return nil, nil
	}

	topK, err := r.settings.TopK(ctx)
	if err != nil {
		return nil, fmt.Errorf("read top_k setting: %w", err)
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	docs, err := r.searcher.Search(ctx, collectionName, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("search collection %q: %w", collectionName, err)
	}

	fragments := make([]entity.Fragment, 0, len(docs))
	for _, doc := range docs {
		fragments = append(fragments, entity.Fragment{
			Text:        doc.Content,
			SourceLabel: sourceLabel(doc),
		})
	}

	ctxzap.Debug(ctx, "retrieval completed",
		zap.String("collection", collectionName),
		zap.Int("top_k", topK),
		zap.Int("hits", len(fragments)))

	return fragments, nil
}

func sourceLabel(doc entity.RetrievedDocument) string {
	if doc.Filename != "" {
		return doc.Filename
	}
	if doc.DocumentID != "" {
		return doc.DocumentID
	}
	return genericSourceLabel
}
