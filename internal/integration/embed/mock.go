package embed

import (
	"context"
	"hash/fnv"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector produces deterministic pseudo-vectors without any network
// calls, for development mode.
type MockConnector struct {
	dimensions int
}

func NewMockConnector(dimensions int) *MockConnector {
	if dimensions <= 0 {
		dimensions = 8
	}
	return &MockConnector{dimensions: dimensions}
}

func (m *MockConnector) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctxzap.Info(ctx, "[MOCK] embed query", zap.Int("text_len", len(text)))

	return m.vectorFor(text), nil
}

func (m *MockConnector) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctxzap.Info(ctx, "[MOCK] embed batch", zap.Int("texts", len(texts)))

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vectorFor(t)
	}

	return out, nil
}

func (m *MockConnector) vectorFor(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, m.dimensions)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000)/1000 - 0.5
	}

	return vec
}
