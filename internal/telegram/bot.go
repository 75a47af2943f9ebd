package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/config"
	"github.com/malykhin/ragchat-backend/internal/entity"
	"github.com/malykhin/ragchat-backend/internal/repository"
)

// LinkRepository pins each Telegram user to their active conversation.
type LinkRepository interface {
	Get(ctx context.Context, userID int64) (*entity.TelegramLink, error)
	Set(ctx context.Context, userID int64, conversationID string) error
	Delete(ctx context.Context, userID int64) error
}

// ChatService is the chat surface the bot drives.
type ChatService interface {
	Respond(ctx context.Context, req entity.ChatRequest) (*entity.ChatResult, error)
}

// Bot is a long-polling Telegram frontend. Each Telegram user has one active
// conversation at a time; /new starts a fresh one.
type Bot struct {
	api    *tgbotapi.BotAPI
	chat   ChatService
	links  LinkRepository
	cfg    config.TelegramConfig
	logger *zap.Logger
}

func NewBot(cfg config.TelegramConfig, chat ChatService, links LinkRepository, logger *zap.Logger) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is not configured")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Bot{api: api, chat: chat, links: links, cfg: cfg, logger: logger}, nil
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("telegram bot starting", zap.String("username", b.api.Self.UserName))

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = b.cfg.UpdateTimeout

	updates := b.api.GetUpdatesChan(updateCfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}

			msgCtx := ctxzap.ToContext(ctx, b.logger.With(
				zap.Int64("telegram_user_id", update.Message.From.ID)))

			go b.handleMessage(msgCtx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	b.handleChat(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.reply(ctx, msg,
			"Hi! Send me a message and I will answer. Use /new to start a fresh conversation.")
	case "new":
		if err := b.links.Delete(ctx, msg.From.ID); err != nil &&
			!errors.Is(err, repository.ErrTelegramLinkNotFound) {
			ctxzap.Error(ctx, "failed to reset conversation link", zap.Error(err))
			b.reply(ctx, msg, "Something went wrong, please try again.")
			return
		}
		b.reply(ctx, msg, "Started a new conversation.")
	default:
		b.reply(ctx, msg, "Unknown command. Use /new to start a fresh conversation.")
	}
}

func (b *Bot) handleChat(ctx context.Context, msg *tgbotapi.Message) {
	req := entity.ChatRequest{
		UserID:  fmt.Sprintf("tg:%d", msg.From.ID),
		Message: msg.Text,
	}

	link, err := b.links.Get(ctx, msg.From.ID)
	switch {
	case err == nil:
		req.ConversationID = &link.ConversationID
	case errors.Is(err, repository.ErrTelegramLinkNotFound):
		// First message or after /new; a new conversation is created.
	default:
		ctxzap.Error(ctx, "failed to load conversation link", zap.Error(err))
		b.reply(ctx, msg, "Something went wrong, please try again.")
		return
	}

	b.api.Send(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping))

	result, err := b.chat.Respond(ctx, req)
	if err != nil {
		// The pinned conversation may have been deleted elsewhere; retry
		// once with a fresh one.
		if req.ConversationID != nil && errors.Is(err, repository.ErrConversationNotFound) {
			req.ConversationID = nil
			result, err = b.chat.Respond(ctx, req)
		}
		if err != nil {
			ctxzap.Error(ctx, "chat turn failed", zap.Error(err))
			b.reply(ctx, msg, "Something went wrong, please try again.")
			return
		}
	}

	if err := b.links.Set(ctx, msg.From.ID, result.ConversationID); err != nil {
		ctxzap.Error(ctx, "failed to store conversation link", zap.Error(err))
	}

	b.reply(ctx, msg, result.Response)
}

func (b *Bot) reply(ctx context.Context, msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.api.Send(reply); err != nil {
		ctxzap.Error(ctx, "failed to send telegram reply", zap.Error(err))
	}
}
