package vector

import (
	"context"
	"sync"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/entity"
)

// MockConnector is an in-memory stand-in for the vector store, used in
// development mode. Collections hold pre-seeded documents; Search returns
// them in insertion order regardless of the query vector.
type MockConnector struct {
	mu          sync.RWMutex
	collections map[string][]entity.RetrievedDocument
}

func NewMockConnector() *MockConnector {
	return &MockConnector{collections: make(map[string][]entity.RetrievedDocument)}
}

func (m *MockConnector) CollectionExists(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.collections[name]
	return ok, nil
}

func (m *MockConnector) EnsureCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[name]; !ok {
		m.collections[name] = nil
		ctxzap.Info(ctx, "[MOCK] vector collection created", zap.String("collection", name))
	}

	return nil
}

func (m *MockConnector) DeleteCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collections, name)
	ctxzap.Info(ctx, "[MOCK] vector collection deleted", zap.String("collection", name))

	return nil
}

func (m *MockConnector) Search(ctx context.Context, collectionName string, _ []float32, limit int) ([]entity.RetrievedDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.collections[collectionName]
	if limit < len(docs) {
		docs = docs[:limit]
	}

	ctxzap.Info(ctx, "[MOCK] vector search",
		zap.String("collection", collectionName), zap.Int("hits", len(docs)))

	out := make([]entity.RetrievedDocument, len(docs))
	copy(out, docs)

	return out, nil
}

// Seed adds documents to a collection for local testing.
func (m *MockConnector) Seed(name string, docs ...entity.RetrievedDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.collections[name] = append(m.collections[name], docs...)
}
