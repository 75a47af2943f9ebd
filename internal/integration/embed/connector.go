package embed

import (
	"context"
	"fmt"
	"net/http"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/config"
	pkgHttp "github.com/malykhin/ragchat-backend/pkg/http"
)

// Connector calls an OpenAI-compatible embeddings endpoint.
type Connector struct {
	connector *pkgHttp.Connector
	cfg       config.EmbedConfig
}

func NewConnector(cfg config.EmbedConfig, logger *zap.Logger) *Connector {
	opts := []pkgHttp.HttpOpts{
		pkgHttp.WithConnClientTimeout(cfg.ConnTimeout),
		pkgHttp.WithRequestTimeout(cfg.RequestTimeout),
		pkgHttp.WithClientKeepAlive(cfg.KeepAlive),
		pkgHttp.WithIdleConnTimeout(cfg.IdleConnTimeout),
		pkgHttp.WithResponseHeaderTimeout(cfg.ResponseHeaderTimeout),
		pkgHttp.WithRequestLogging(),
	}
	if cfg.Token != "" {
		opts = append(opts, pkgHttp.WithAuthToken(cfg.Token))
	}

	connector := pkgHttp.NewConnector(&pkgHttp.ConnectorConfig{
		BaseURL: cfg.Url,
		Logger:  logger,
	}, opts...)

	return &Connector{connector: connector, cfg: cfg}
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// EmbedQuery returns the dense vector for a single query string.
func (c *Connector) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embeddings response is empty")
	}

	return vectors[0], nil
}

// Embed returns one vector per input text, in input order.
func (c *Connector) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := embeddingRequest{
		Input:      texts,
		Model:      c.cfg.Model,
		Dimensions: c.cfg.Dimensions,
	}

	var resp embeddingResponse
	err := retry.Do(
		func() error {
			return c.connector.DoRequest(ctx, http.MethodPost, "/embeddings", req, &resp)
		},
		append(c.cfg.Retry.ToRetryOptions(), retry.Context(ctx))...,
	)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings response index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}

	return vectors, nil
}
