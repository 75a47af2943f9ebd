package collection

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malykhin/ragchat-backend/internal/entity"
	"github.com/malykhin/ragchat-backend/internal/repository"
	"github.com/malykhin/ragchat-backend/internal/settings"
)

type fakeCollectionRepo struct {
	byID          map[string]*entity.Collection
	globalDefault string
	createErr     error
}

func newFakeCollectionRepo() *fakeCollectionRepo {
	return &fakeCollectionRepo{byID: map[string]*entity.Collection{}}
}

func (f *fakeCollectionRepo) add(coll entity.Collection) *entity.Collection {
	c := coll
	f.byID[c.ID] = &c
	return &c
}

func (f *fakeCollectionRepo) Create(_ context.Context, coll entity.Collection) (*entity.Collection, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, c := range f.byID {
		if c.Name == coll.Name {
			return nil, repository.ErrCollectionExists
		}
	}
	return f.add(coll), nil
}

func (f *fakeCollectionRepo) GetByID(_ context.Context, id string) (*entity.Collection, error) {
	if c, ok := f.byID[id]; ok {
		return c, nil
	}
	return nil, repository.ErrCollectionNotFound
}

func (f *fakeCollectionRepo) GetByName(_ context.Context, name string) (*entity.Collection, error) {
	for _, c := range f.byID {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, repository.ErrCollectionNotFound
}

func (f *fakeCollectionRepo) List(_ context.Context, includeAdminOnly bool) ([]*entity.Collection, error) {
	var out []*entity.Collection
	for _, c := range f.byID {
		if c.IsAdminOnly && !includeAdminOnly {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCollectionRepo) GetGlobalDefault(_ context.Context) (*entity.Collection, error) {
	if c, ok := f.byID[f.globalDefault]; ok {
		return c, nil
	}
	return nil, repository.ErrNoGlobalDefault
}

func (f *fakeCollectionRepo) SetGlobalDefault(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return repository.ErrCollectionNotFound
	}
	f.globalDefault = id
	return nil
}

func (f *fakeCollectionRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return repository.ErrCollectionNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeConvRepo struct {
	byID map[string]*entity.Conversation
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{byID: map[string]*entity.Conversation{}}
}

func (f *fakeConvRepo) GetByID(_ context.Context, id string) (*entity.Conversation, error) {
	if c, ok := f.byID[id]; ok {
		return c, nil
	}
	return nil, repository.ErrConversationNotFound
}

func (f *fakeConvRepo) UpdateGlobalLink(_ context.Context, id, collectionID, collectionName string) (*entity.Conversation, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrConversationNotFound
	}
	c.LinkedGlobalCollectionID = &collectionID
	c.OriginalGlobalCollectionName = &collectionName
	return c, nil
}

type fakeVectorStore struct {
	collections map[string]bool
	ensureErr   error
	deleted     []string
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{collections: map[string]bool{}}
}

func (f *fakeVectorStore) CollectionExists(_ context.Context, name string) (bool, error) {
	return f.collections[name], nil
}

func (f *fakeVectorStore) EnsureCollection(_ context.Context, name string) error {
	if f.ensureErr != nil {
		return f.ensureErr
	}
	f.collections[name] = true
	return nil
}

func (f *fakeVectorStore) DeleteCollection(_ context.Context, name string) error {
	delete(f.collections, name)
	f.deleted = append(f.deleted, name)
	return nil
}

type fakeSettings struct {
	predefined string
	policy     settings.GlobalCollectionPolicy
}

func (f *fakeSettings) PredefinedCollectionName(context.Context) (string, error) {
	return f.predefined, nil
}

func (f *fakeSettings) GlobalCollectionBehavior(context.Context) (settings.GlobalCollectionPolicy, error) {
	if f.policy == "" {
		return settings.PolicyAutoUpdate, nil
	}
	return f.policy, nil
}

func newManagerFixture() (*Manager, *fakeCollectionRepo, *fakeConvRepo, *fakeVectorStore, *fakeSettings) {
	colls := newFakeCollectionRepo()
	convs := newFakeConvRepo()
	vectors := newFakeVectorStore()
	cfg := &fakeSettings{}
	return NewManager(colls, convs, vectors, cfg), colls, convs, vectors, cfg
}

func globalConversation(collID, collName string) *entity.Conversation {
	return &entity.Conversation{
		ID:                           uuid.New().String(),
		UserID:                       "user-1",
		Type:                         entity.ConversationTypeGlobalCollection,
		LinkedGlobalCollectionID:     &collID,
		OriginalGlobalCollectionName: &collName,
	}
}

func TestCreate_ProvisionsBackingAndRegistry(t *testing.T) {
	m, colls, _, vectors, _ := newManagerFixture()

	created, isNew, err := m.Create(context.Background(), "Q3 Reports", "quarterly reports", false)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "Q3 Reports", created.Name)
	assert.True(t, created.IsActive)
	assert.True(t, vectors.collections["Q3_Reports"], "backing collection uses the sanitized name")
	assert.Len(t, colls.byID, 1)
}

func TestCreate_AdminOnlyUsesPrefixedBacking(t *testing.T) {
	m, _, _, vectors, _ := newManagerFixture()

	_, _, err := m.Create(context.Background(), "policies", "", true)
	require.NoError(t, err)
	assert.True(t, vectors.collections["admin_policies"])
}

func TestCreate_ExistingNameIsIdempotent(t *testing.T) {
	m, colls, _, vectors, _ := newManagerFixture()
	existing := colls.add(entity.Collection{ID: uuid.New().String(), Name: "reports", IsActive: true})

	got, isNew, err := m.Create(context.Background(), "reports", "other description", false)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, existing.ID, got.ID)
	assert.Empty(t, vectors.collections, "no new backing for an existing entry")
}

func TestCreate_SanitizedNameCollisionIsIdempotent(t *testing.T) {
	m, colls, _, vectors, _ := newManagerFixture()

	first, isNew, err := m.Create(context.Background(), "my docs", "", false)
	require.NoError(t, err)
	assert.True(t, isNew)

	// "my_docs" sanitizes to the same backing as "my docs", so this is the
	// same collection, not a new one.
	got, isNew, err := m.Create(context.Background(), "my_docs", "", false)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.ID, got.ID)
	assert.Len(t, colls.byID, 1, "one registry row for one backing")
	assert.Len(t, vectors.collections, 1)
	assert.True(t, vectors.collections["my_docs"])
}

func TestCreate_AdoptsOrphanedBacking(t *testing.T) {
	m, colls, _, vectors, _ := newManagerFixture()
	vectors.collections["reports"] = true

	got, isNew, err := m.Create(context.Background(), "reports", "", false)
	require.NoError(t, err)
	assert.False(t, isNew, "an existing backing is adopted, not re-created")
	assert.Equal(t, "reports", got.Name)
	assert.Len(t, colls.byID, 1)
}

func TestCreate_RegistryFailureRollsBackBacking(t *testing.T) {
	m, colls, _, vectors, _ := newManagerFixture()
	colls.createErr = errors.New("db down")

	_, _, err := m.Create(context.Background(), "reports", "", false)
	require.Error(t, err)
	assert.False(t, vectors.collections["reports"], "backing must be rolled back")
	assert.Contains(t, vectors.deleted, "reports")
}

func TestDelete_Idempotent(t *testing.T) {
	m, colls, _, vectors, _ := newManagerFixture()
	coll := colls.add(entity.Collection{ID: uuid.New().String(), Name: "reports"})
	vectors.collections["reports"] = true

	deleted, err := m.Delete(context.Background(), coll.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, vectors.collections["reports"])

	deleted, err = m.Delete(context.Background(), coll.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "second delete reports nothing to do")
}

func TestCurrentDefault_FallsBackToPredefinedName(t *testing.T) {
	m, colls, _, _, cfg := newManagerFixture()
	coll := colls.add(entity.Collection{ID: uuid.New().String(), Name: "handbook"})
	cfg.predefined = "handbook"

	got, err := m.CurrentDefault(context.Background())
	require.NoError(t, err)
	assert.Equal(t, coll.ID, got.ID)
}

func TestCurrentDefault_NoneConfigured(t *testing.T) {
	m, _, _, _, _ := newManagerFixture()

	_, err := m.CurrentDefault(context.Background())
	assert.ErrorIs(t, err, ErrNoGlobalDefault)
}

func TestStaleness_NonGlobalConversationIsFresh(t *testing.T) {
	m, _, _, _, _ := newManagerFixture()
	conv := &entity.Conversation{ID: uuid.New().String(), Type: entity.ConversationTypeRegular}

	res, err := m.CheckAndResolveStaleness(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, StalenessFresh, res.Status)
}

func TestStaleness_MatchingPinIsFresh(t *testing.T) {
	m, colls, _, _, _ := newManagerFixture()
	def := colls.add(entity.Collection{ID: uuid.New().String(), Name: "handbook"})
	colls.globalDefault = def.ID

	res, err := m.CheckAndResolveStaleness(context.Background(), globalConversation(def.ID, def.Name))
	require.NoError(t, err)
	assert.Equal(t, StalenessFresh, res.Status)
}

func TestStaleness_NoDefaultUnderAutoUpdateLeavesPinUsable(t *testing.T) {
	m, _, _, _, cfg := newManagerFixture()
	cfg.policy = settings.PolicyAutoUpdate

	res, err := m.CheckAndResolveStaleness(context.Background(), globalConversation(uuid.New().String(), "old"))
	require.NoError(t, err)
	assert.Equal(t, StalenessFresh, res.Status)
}

func TestStaleness_NoDefaultUnderReadonlyLocks(t *testing.T) {
	m, _, _, _, cfg := newManagerFixture()
	cfg.policy = settings.PolicyReadonlyOnChange

	res, err := m.CheckAndResolveStaleness(context.Background(), globalConversation(uuid.New().String(), "old"))
	require.NoError(t, err)
	assert.Equal(t, StalenessLocked, res.Status)
	assert.Equal(t, LockedMessage, res.Message)
}

func TestStaleness_AutoUpdateMigrates(t *testing.T) {
	m, colls, convs, _, cfg := newManagerFixture()
	cfg.policy = settings.PolicyAutoUpdate

	def := colls.add(entity.Collection{ID: uuid.New().String(), Name: "handbook-v2"})
	colls.globalDefault = def.ID

	conv := globalConversation(uuid.New().String(), "handbook-v1")
	convs.byID[conv.ID] = conv

	res, err := m.CheckAndResolveStaleness(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, StalenessMigrated, res.Status)
	require.NotNil(t, res.Conversation.LinkedGlobalCollectionID)
	assert.Equal(t, def.ID, *res.Conversation.LinkedGlobalCollectionID)
	assert.Equal(t, def.Name, *res.Conversation.OriginalGlobalCollectionName)
}

func TestStaleness_ReadonlyPolicyLocks(t *testing.T) {
	m, colls, _, _, cfg := newManagerFixture()
	cfg.policy = settings.PolicyReadonlyOnChange

	def := colls.add(entity.Collection{ID: uuid.New().String(), Name: "handbook-v2"})
	colls.globalDefault = def.ID

	res, err := m.CheckAndResolveStaleness(context.Background(), globalConversation(uuid.New().String(), "handbook-v1"))
	require.NoError(t, err)
	assert.Equal(t, StalenessLocked, res.Status)
	assert.Equal(t, LockedMessage, res.Message)
}

func TestStaleness_RenamedDefaultIsStale(t *testing.T) {
	m, colls, convs, _, _ := newManagerFixture()

	def := colls.add(entity.Collection{ID: uuid.New().String(), Name: "handbook-renamed"})
	colls.globalDefault = def.ID

	// Same registry id, but the snapshot name no longer matches.
	conv := globalConversation(def.ID, "handbook")
	convs.byID[conv.ID] = conv

	res, err := m.CheckAndResolveStaleness(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, StalenessMigrated, res.Status)
	assert.Equal(t, "handbook-renamed", *res.Conversation.OriginalGlobalCollectionName)
}

func TestMigrate_RepinsToCurrentDefault(t *testing.T) {
	m, colls, convs, _, _ := newManagerFixture()

	def := colls.add(entity.Collection{ID: uuid.New().String(), Name: "handbook-v2"})
	colls.globalDefault = def.ID

	conv := globalConversation(uuid.New().String(), "handbook-v1")
	convs.byID[conv.ID] = conv

	updated, err := m.Migrate(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, def.ID, *updated.LinkedGlobalCollectionID)
}

func TestMigrate_FailsWithoutDefault(t *testing.T) {
	m, _, convs, _, _ := newManagerFixture()

	conv := globalConversation(uuid.New().String(), "handbook-v1")
	convs.byID[conv.ID] = conv

	_, err := m.Migrate(context.Background(), conv.ID)
	assert.ErrorIs(t, err, ErrNoGlobalDefault)
}

func TestMigrate_RejectsNonGlobalConversation(t *testing.T) {
	m, _, convs, _, _ := newManagerFixture()

	conv := &entity.Conversation{ID: uuid.New().String(), Type: entity.ConversationTypeRegular}
	convs.byID[conv.ID] = conv

	_, err := m.Migrate(context.Background(), conv.ID)
	assert.Error(t, err)
}

func TestConversationCollections(t *testing.T) {
	m, _, _, vectors, _ := newManagerFixture()
	convID := uuid.New().String()

	name, err := m.EnsureConversationCollection(context.Background(), convID)
	require.NoError(t, err)
	assert.True(t, vectors.collections[name])

	require.NoError(t, m.DropConversationCollection(context.Background(), convID))
	assert.False(t, vectors.collections[name])

	// Dropping again is a no-op.
	require.NoError(t, m.DropConversationCollection(context.Background(), convID))
}
