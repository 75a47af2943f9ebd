package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malykhin/ragchat-backend/internal/entity"
	"github.com/malykhin/ragchat-backend/internal/repository"
)

type fakeConvRepo struct {
	byID      map[string]*entity.Conversation
	deleteErr map[string]error
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{byID: map[string]*entity.Conversation{}, deleteErr: map[string]error{}}
}

func (f *fakeConvRepo) add(conv entity.Conversation) *entity.Conversation {
	c := conv
	f.byID[c.ID] = &c
	return &c
}

func (f *fakeConvRepo) ListByUser(_ context.Context, userID string) ([]*entity.Conversation, error) {
	var out []*entity.Conversation
	for _, c := range f.byID {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConvRepo) ListExpiredEmpty(_ context.Context, now time.Time, limit int) ([]*entity.Conversation, error) {
	var out []*entity.Conversation
	for _, c := range f.byID {
		if c.IsEmpty && c.ExpiresAt != nil && c.ExpiresAt.Before(now) && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConvRepo) ListUnclassified(_ context.Context, limit int) ([]*entity.Conversation, error) {
	var out []*entity.Conversation
	for _, c := range f.byID {
		if c.Type == entity.ConversationTypeUnclassified && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConvRepo) Delete(_ context.Context, id string) error {
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	if _, ok := f.byID[id]; !ok {
		return repository.ErrConversationNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeCleaner struct {
	dropped []string
	err     error
}

func (f *fakeCleaner) DropConversationCollection(_ context.Context, conversationID string) error {
	if f.err != nil {
		return f.err
	}
	f.dropped = append(f.dropped, conversationID)
	return nil
}

func expiredConv(userID string, convType entity.ConversationType) entity.Conversation {
	past := time.Now().Add(-time.Hour)
	return entity.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      convType,
		IsEmpty:   true,
		ExpiresAt: &past,
	}
}

func TestReapExpired_DeletesOnlyExpiredEmpty(t *testing.T) {
	repo := newFakeConvRepo()
	cleaner := &fakeCleaner{}
	uc := NewMaintenanceUsecase(repo, cleaner)

	expired := repo.add(expiredConv("u1", entity.ConversationTypeRegular))

	future := time.Now().Add(time.Hour)
	fresh := repo.add(entity.Conversation{
		ID: uuid.New().String(), UserID: "u1",
		Type: entity.ConversationTypeRegular, IsEmpty: true, ExpiresAt: &future,
	})
	active := repo.add(entity.Conversation{
		ID: uuid.New().String(), UserID: "u1", Type: entity.ConversationTypeRegular,
	})

	report, err := uc.ReapExpired(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Succeeded)
	assert.NotContains(t, repo.byID, expired.ID)
	assert.Contains(t, repo.byID, fresh.ID)
	assert.Contains(t, repo.byID, active.ID)
}

func TestReapExpired_DropsUserFilesCollections(t *testing.T) {
	repo := newFakeConvRepo()
	cleaner := &fakeCleaner{}
	uc := NewMaintenanceUsecase(repo, cleaner)

	conv := repo.add(expiredConv("u1", entity.ConversationTypeUserFiles))

	_, err := uc.ReapExpired(context.Background())
	require.NoError(t, err)
	assert.Contains(t, cleaner.dropped, conv.ID)
}

func TestReapExpired_ContinuesPastFailures(t *testing.T) {
	repo := newFakeConvRepo()
	uc := NewMaintenanceUsecase(repo, &fakeCleaner{})

	bad := repo.add(expiredConv("u1", entity.ConversationTypeRegular))
	repo.add(expiredConv("u1", entity.ConversationTypeRegular))
	repo.deleteErr[bad.ID] = errors.New("db error")

	report, err := uc.ReapExpired(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, bad.ID, report.Errors[0].Item)
}

func TestDeleteUserData_RemovesAllOwnedConversations(t *testing.T) {
	repo := newFakeConvRepo()
	cleaner := &fakeCleaner{}
	uc := NewMaintenanceUsecase(repo, cleaner)

	files := repo.add(entity.Conversation{
		ID: uuid.New().String(), UserID: "u1", Type: entity.ConversationTypeUserFiles,
	})
	regular := repo.add(entity.Conversation{
		ID: uuid.New().String(), UserID: "u1", Type: entity.ConversationTypeRegular,
	})
	other := repo.add(entity.Conversation{
		ID: uuid.New().String(), UserID: "u2", Type: entity.ConversationTypeRegular,
	})

	report, err := uc.DeleteUserData(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Succeeded)
	assert.NotContains(t, repo.byID, files.ID)
	assert.NotContains(t, repo.byID, regular.ID)
	assert.Contains(t, repo.byID, other.ID)
	assert.Equal(t, []string{files.ID}, cleaner.dropped)
}

func TestDeleteUserData_VectorFailureRecordedNotFatal(t *testing.T) {
	repo := newFakeConvRepo()
	cleaner := &fakeCleaner{err: errors.New("qdrant down")}
	uc := NewMaintenanceUsecase(repo, cleaner)

	files := repo.add(entity.Conversation{
		ID: uuid.New().String(), UserID: "u1", Type: entity.ConversationTypeUserFiles,
	})
	regular := repo.add(entity.Conversation{
		ID: uuid.New().String(), UserID: "u1", Type: entity.ConversationTypeRegular,
	})

	report, err := uc.DeleteUserData(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, files.ID, report.Errors[0].Item)
	// The conversation with the failed vector cleanup is kept for retry.
	assert.Contains(t, repo.byID, files.ID)
	assert.NotContains(t, repo.byID, regular.ID)
}
