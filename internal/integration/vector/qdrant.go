package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/malykhin/ragchat-backend/internal/config"
	"github.com/malykhin/ragchat-backend/internal/entity"
)

// QdrantConnector implements the vector-store capability over the Qdrant
// gRPC API. It normalizes search hits into entity.RetrievedDocument so no
// upstream payload shapes leak past this package.
type QdrantConnector struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	vectorSize  uint64
}

func NewQdrantConnector(cfg config.QdrantConfig, vectorSize int) (*QdrantConnector, error) {
	conn, err := grpc.NewClient(cfg.Address(), dialOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	return &QdrantConnector{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		vectorSize:  uint64(vectorSize),
	}, nil
}

func (c *QdrantConnector) Close() error {
	return c.conn.Close()
}

func (c *QdrantConnector) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, err := c.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: name})
	if err == nil {
		return true, nil
	}
	if status.Code(err) == codes.NotFound {
		return false, nil
	}

	return false, fmt.Errorf("get collection info: %w", err)
}

// EnsureCollection creates a collection with cosine distance if it does not
// exist yet. Idempotent.
func (c *QdrantConnector) EnsureCollection(ctx context.Context, name string) error {
	exists, err := c.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = c.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     c.vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil
		}
		return fmt.Errorf("create collection: %w", err)
	}

	ctxzap.Info(ctx, "qdrant collection created", zap.String("collection", name))

	return nil
}

// DeleteCollection removes a collection. Deleting a missing collection is
// not an error.
func (c *QdrantConnector) DeleteCollection(ctx context.Context, name string) error {
	_, err := c.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name})
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("delete collection: %w", err)
	}

	return nil
}

func (c *QdrantConnector) Search(ctx context.Context, collectionName string, vector []float32, limit int) ([]entity.RetrievedDocument, error) {
	resp, err := c.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collectionName,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	docs := make([]entity.RetrievedDocument, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		docs = append(docs, normalizeHit(pt))
	}

	return docs, nil
}

// Payload key aliases seen across ingestion pipelines; normalizeHit probes
// them in order so the rest of the system only ever sees one shape.
var (
	contentKeys  = []string{"content", "text", "page_content"}
	filenameKeys = []string{"filename", "file_name", "source"}
	idKeys       = []string{"document_id", "doc_id", "id"}
)

func normalizeHit(pt *pb.ScoredPoint) entity.RetrievedDocument {
	payload := pt.GetPayload()

	doc := entity.RetrievedDocument{
		Content:    firstString(payload, contentKeys),
		Filename:   firstString(payload, filenameKeys),
		DocumentID: firstString(payload, idKeys),
		Score:      float64(pt.GetScore()),
	}

	if doc.DocumentID == "" {
		if id := pt.GetId().GetUuid(); id != "" {
			doc.DocumentID = id
		}
	}

	return doc
}

func firstString(payload map[string]*pb.Value, keys []string) string {
	for _, key := range keys {
		if v, ok := payload[key]; ok {
			if s := strings.TrimSpace(v.GetStringValue()); s != "" {
				return s
			}
		}
	}

	return ""
}

func dialOptions(cfg config.QdrantConfig) []grpc.DialOption {
	opts := make([]grpc.DialOption, 0, 2)
	if cfg.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(nil)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	if strings.TrimSpace(cfg.APIKey) != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(apiKeyCredentials{
			apiKey:     cfg.APIKey,
			requireTLS: cfg.UseTLS,
		}))
	}

	return opts
}

type apiKeyCredentials struct {
	apiKey     string
	requireTLS bool
}

func (a apiKeyCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"api-key": a.apiKey}, nil
}

func (a apiKeyCredentials) RequireTransportSecurity() bool {
	return a.requireTLS
}
