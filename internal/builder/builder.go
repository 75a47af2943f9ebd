package builder

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/api"
	adminapi "github.com/malykhin/ragchat-backend/internal/api/admin"
	chatapi "github.com/malykhin/ragchat-backend/internal/api/chat"
	collectionsapi "github.com/malykhin/ragchat-backend/internal/api/collections"
	conversationsapi "github.com/malykhin/ragchat-backend/internal/api/conversations"
	"github.com/malykhin/ragchat-backend/internal/collection"
	"github.com/malykhin/ragchat-backend/internal/config"
	"github.com/malykhin/ragchat-backend/internal/integration/embed"
	"github.com/malykhin/ragchat-backend/internal/integration/llm"
	"github.com/malykhin/ragchat-backend/internal/integration/vector"
	"github.com/malykhin/ragchat-backend/internal/rag"
	"github.com/malykhin/ragchat-backend/internal/repository"
	"github.com/malykhin/ragchat-backend/internal/settings"
	"github.com/malykhin/ragchat-backend/internal/telegram"
	chatuc "github.com/malykhin/ragchat-backend/internal/usecase/chat"
	"github.com/malykhin/ragchat-backend/internal/usecase/maintenance"
)

// core holds everything both entry points (HTTP server, Telegram bot) share.
type core struct {
	pool        *pgxpool.Pool
	chat        *chatuc.ChatUsecase
	maintenance *maintenance.MaintenanceUsecase
	lifecycle   *collection.Manager
	settings    *settings.Service
	cleanup     []func() error
}

func buildCore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*core, error) {
	if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := NewDatabasePool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c := &core{pool: pool}
	c.cleanup = append(c.cleanup, func() error {
		pool.Close()
		return nil
	})

	conversationRepo := repository.NewConversationPostgres(pool)
	messageRepo := repository.NewMessagePostgres(pool)
	collectionRepo := repository.NewCollectionPostgres(pool)
	fileRepo := repository.NewCollectionFilePostgres(pool)
	settingRepo := repository.NewSettingPostgres(pool)

	c.settings = settings.NewService(settingRepo, cfg.SettingsCacheTTL)

	var (
		completions chatuc.CompletionConnector
		embedder    rag.Embedder
		vectors     interface {
			collection.VectorStore
			rag.VectorSearcher
		}
	)

	if cfg.EnableMocks {
		logger.Warn("mocks enabled, external capabilities are stubbed")
		completions = llm.NewMockConnector()
		embedder = embed.NewMockConnector(cfg.EmbedCfg.Dimensions)
		vectors = vector.NewMockConnector()
	} else {
		completions = llm.NewConnector(cfg.LLMCfg)
		embedder = embed.NewConnector(cfg.EmbedCfg, logger)

		qdrant, err := vector.NewQdrantConnector(cfg.QdrantCfg, cfg.EmbedCfg.Dimensions)
		if err != nil {
			pool.Close()
			return nil, err
		}
		c.cleanup = append(c.cleanup, qdrant.Close)
		vectors = qdrant
	}

	c.lifecycle = collection.NewManager(collectionRepo, conversationRepo, vectors, c.settings)

	retriever := rag.NewRetriever(embedder, vectors, c.settings)
	contextualizer := rag.NewContextualizer(completions)
	promptSelector := rag.NewPromptSelector(c.settings)

	c.chat = chatuc.NewChatUsecase(
		conversationRepo, messageRepo, fileRepo, c.lifecycle,
		retriever, contextualizer, promptSelector, completions, cfg.LLMCfg,
	)

	c.maintenance = maintenance.NewMaintenanceUsecase(conversationRepo, c.lifecycle)

	return c, nil
}

// Build wires the HTTP application.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	c, err := buildCore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	router := api.NewRouter(logger, api.Handlers{
		Chat:          chatapi.NewHandler(c.chat),
		Conversations: conversationsapi.NewHandler(c.chat),
		Collections:   collectionsapi.NewHandler(c.lifecycle),
		Admin:         adminapi.NewHandler(c.settings, c.maintenance),
	})

	server := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	return &App{
		cfg:         cfg,
		logger:      logger,
		server:      server,
		maintenance: c.maintenance,
		cleanup:     c.cleanup,
	}, nil
}

// BuildTelegramBot wires the Telegram bot entry point.
func BuildTelegramBot(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*telegram.Bot, []func() error, error) {
	c, err := buildCore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	linkRepo := repository.NewTelegramLinkPostgres(c.pool)

	bot, err := telegram.NewBot(cfg.TelegramCfg, c.chat, linkRepo, logger)
	if err != nil {
		for _, fn := range c.cleanup {
			fn()
		}
		return nil, nil, err
	}

	return bot, c.cleanup, nil
}
