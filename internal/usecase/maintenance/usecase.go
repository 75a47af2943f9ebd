package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/entity"
)

// reapBatchSize bounds one reaper pass so a large backlog cannot hold a
// transactionless scan open for long.
const reapBatchSize = 200

type ConversationRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*entity.Conversation, error)
	ListExpiredEmpty(ctx context.Context, now time.Time, limit int) ([]*entity.Conversation, error)
	ListUnclassified(ctx context.Context, limit int) ([]*entity.Conversation, error)
	Delete(ctx context.Context, id string) error
}

type VectorCleaner interface {
	DropConversationCollection(ctx context.Context, conversationID string) error
}

// MaintenanceUsecase owns background cleanup: reaping abandoned empty
// conversations and bulk-deleting a user's data.
type MaintenanceUsecase struct {
	conversations ConversationRepository
	vectors       VectorCleaner
}

func NewMaintenanceUsecase(conversations ConversationRepository, vectors VectorCleaner) *MaintenanceUsecase {
	return &MaintenanceUsecase{conversations: conversations, vectors: vectors}
}

// ReapExpired deletes empty conversations whose expiry has passed. Each
// deletion is attempted independently; one bad row does not stop the pass.
func (uc *MaintenanceUsecase) ReapExpired(ctx context.Context) (*entity.BulkReport, error) {
	expired, err := uc.conversations.ListExpiredEmpty(ctx, time.Now(), reapBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list expired conversations: %w", err)
	}

	report := &entity.BulkReport{}
	for _, conv := range expired {
		report.Record(conv.ID, uc.deleteConversation(ctx, conv))
	}

	if report.Attempted > 0 {
		ctxzap.Info(ctx, "reaper pass completed",
			zap.Int("attempted", report.Attempted),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", len(report.Errors)))
	}

	return report, nil
}

// DeleteUserData removes every conversation a user owns, including backing
// vector collections. Attempts all conversations and reports per-item
// outcomes instead of aborting on the first failure.
func (uc *MaintenanceUsecase) DeleteUserData(ctx context.Context, userID string) (*entity.BulkReport, error) {
	convs, err := uc.conversations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user conversations: %w", err)
	}

	report := &entity.BulkReport{}
	for _, conv := range convs {
		report.Record(conv.ID, uc.deleteConversation(ctx, conv))
	}

	ctxzap.Info(ctx, "user data deleted",
		zap.String("user_id", userID),
		zap.Int("attempted", report.Attempted),
		zap.Int("succeeded", report.Succeeded))

	return report, nil
}

// ListUnclassified surfaces conversations whose stored type is missing or
// unknown, for operators cleaning up legacy rows.
func (uc *MaintenanceUsecase) ListUnclassified(ctx context.Context, limit int) ([]*entity.Conversation, error) {
	if limit <= 0 {
		limit = reapBatchSize
	}
	return uc.conversations.ListUnclassified(ctx, limit)
}

// Run executes reaper passes at the given interval until the context is
// cancelled. Pass failures are logged, never fatal.
func (uc *MaintenanceUsecase) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctxzap.Info(ctx, "maintenance reaper started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			ctxzap.Info(ctx, "maintenance reaper stopped")
			return
		case <-ticker.C:
			if _, err := uc.ReapExpired(ctx); err != nil {
				ctxzap.Error(ctx, "reaper pass failed", zap.Error(err))
			}
		}
	}
}

func (uc *MaintenanceUsecase) deleteConversation(ctx context.Context, conv *entity.Conversation) error {
	if conv.Type == entity.ConversationTypeUserFiles {
		if err := uc.vectors.DropConversationCollection(ctx, conv.ID); err != nil {
			return fmt.Errorf("drop vector collection: %w", err)
		}
	}

	if err := uc.conversations.Delete(ctx, conv.ID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	return nil
}
