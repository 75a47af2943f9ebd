package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/entity"
	"github.com/malykhin/ragchat-backend/internal/repository"
	"github.com/malykhin/ragchat-backend/internal/settings"
)

// ErrNoGlobalDefault is returned by Migrate when no global default collection
// is configured anywhere.
var ErrNoGlobalDefault = repository.ErrNoGlobalDefault

// StalenessStatus classifies the outcome of a staleness check on a
// conversation pinned to a global collection.
type StalenessStatus string

const (
	// StalenessFresh means the pinned collection still matches the current
	// default (or the conversation does not use a global collection at all).
	StalenessFresh StalenessStatus = "FRESH"
	// StalenessMigrated means the conversation was silently re-pinned to the
	// new default under the auto_update policy.
	StalenessMigrated StalenessStatus = "MIGRATED"
	// StalenessLocked means the conversation is stale and the readonly policy
	// blocks further turns until the user migrates explicitly.
	StalenessLocked StalenessStatus = "LOCKED"
)

// LockedMessage is the user-facing explanation attached to a LOCKED outcome.
const LockedMessage = "The knowledge base this conversation was using has been replaced. " +
	"Migrate the conversation to the new knowledge base or start a new one."

// StalenessResult carries the outcome of CheckAndResolveStaleness. On
// MIGRATED the Conversation field holds the re-pinned conversation.
type StalenessResult struct {
	Status       StalenessStatus
	Conversation *entity.Conversation
	Message      string
}

// Manager owns the two-phase lifecycle of knowledge collections: every
// registry entry is backed by a vector-store collection, and the two are
// created and destroyed together.
type Manager struct {
	collections   CollectionRepository
	conversations ConversationRepository
	vectors       VectorStore
	settings      SettingsProvider
}

func NewManager(
	collections CollectionRepository,
	conversations ConversationRepository,
	vectors VectorStore,
	settings SettingsProvider,
) *Manager {
	return &Manager{
		collections:   collections,
		conversations: conversations,
		vectors:       vectors,
		settings:      settings,
	}
}

// Create registers a collection and provisions its vector-store backing.
// Idempotent on the sanitized backing name: two display names that sanitize
// to the same backing ("my docs" and "my_docs") are the same collection, and
// the second call returns the existing entry with created=false. The vector
// collection is provisioned before the registry row so a visible entry always
// has a backing; on registry failure a freshly provisioned backing is rolled
// back.
func (m *Manager) Create(ctx context.Context, name, description string, adminOnly bool) (*entity.Collection, bool, error) {
	if name == "" {
		return nil, false, fmt.Errorf("collection name must not be empty")
	}

	existing, err := m.collections.GetByName(ctx, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrCollectionNotFound) {
		return nil, false, fmt.Errorf("check existing collection: %w", err)
	}

	backing := BackingName(name, adminOnly)

	existing, err = m.entryByBackingName(ctx, backing)
	if err != nil {
		return nil, false, fmt.Errorf("check existing backing %q: %w", backing, err)
	}
	if existing != nil {
		return existing, false, nil
	}

	// The registry has no entry sanitizing to this backing, but the backing
	// itself may still exist (a crash between provisioning and registration).
	// Adopt it instead of treating it as new.
	backingExists, err := m.vectors.CollectionExists(ctx, backing)
	if err != nil {
		return nil, false, fmt.Errorf("check vector collection %q: %w", backing, err)
	}

	provisioned := !backingExists
	if provisioned {
		if err := m.vectors.EnsureCollection(ctx, backing); err != nil {
			return nil, false, fmt.Errorf("provision vector collection %q: %w", backing, err)
		}
	}

	created, err := m.collections.Create(ctx, entity.Collection{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		IsAdminOnly: adminOnly,
		IsActive:    true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrCollectionExists) {
			// Lost a race with a concurrent creator; the backing is shared.
			existing, gerr := m.collections.GetByName(ctx, name)
			if gerr != nil {
				return nil, false, fmt.Errorf("get collection after create race: %w", gerr)
			}
			return existing, false, nil
		}

		if provisioned {
			if derr := m.vectors.DeleteCollection(ctx, backing); derr != nil {
				ctxzap.Error(ctx, "failed to roll back vector collection after registry error",
					zap.String("collection", backing), zap.Error(derr))
			}
		}

		return nil, false, fmt.Errorf("register collection: %w", err)
	}

	ctxzap.Info(ctx, "collection created",
		zap.String("collection_id", created.ID),
		zap.String("name", created.Name),
		zap.String("backing", backing),
		zap.Bool("admin_only", created.IsAdminOnly),
		zap.Bool("backing_adopted", !provisioned))

	return created, provisioned, nil
}

// entryByBackingName scans the registry for an entry whose display name
// sanitizes to the given backing name. Returns nil when none matches.
func (m *Manager) entryByBackingName(ctx context.Context, backing string) (*entity.Collection, error) {
	all, err := m.collections.List(ctx, true)
	if err != nil {
		return nil, err
	}

	for _, c := range all {
		if BackingName(c.Name, c.IsAdminOnly) == backing {
			return c, nil
		}
	}

	return nil, nil
}

// Delete removes a registry entry and its vector-store backing. Idempotent:
// deleting an unknown id reports deleted=false without error, and a missing
// backing does not block removal of the registry row.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	coll, err := m.collections.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCollectionNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get collection: %w", err)
	}

	backing := BackingName(coll.Name, coll.IsAdminOnly)
	if err := m.vectors.DeleteCollection(ctx, backing); err != nil {
		return false, fmt.Errorf("delete vector collection %q: %w", backing, err)
	}

	if err := m.collections.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCollectionNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("delete collection registry entry: %w", err)
	}

	ctxzap.Info(ctx, "collection deleted",
		zap.String("collection_id", id), zap.String("name", coll.Name))

	return true, nil
}

// SetGlobalDefault flags one collection as the default for new
// GLOBAL_COLLECTION conversations.
func (m *Manager) SetGlobalDefault(ctx context.Context, id string) error {
	if err := m.collections.SetGlobalDefault(ctx, id); err != nil {
		return err
	}

	ctxzap.Info(ctx, "global default collection changed", zap.String("collection_id", id))

	return nil
}

// List returns registry entries, hiding admin-only ones unless asked.
func (m *Manager) List(ctx context.Context, includeAdminOnly bool) ([]*entity.Collection, error) {
	return m.collections.List(ctx, includeAdminOnly)
}

func (m *Manager) Get(ctx context.Context, id string) (*entity.Collection, error) {
	return m.collections.GetByID(ctx, id)
}

// CurrentDefault resolves the collection new GLOBAL_COLLECTION conversations
// pin to: the flagged global default first, then the configured predefined
// collection name. Returns ErrNoGlobalDefault when neither is set.
func (m *Manager) CurrentDefault(ctx context.Context) (*entity.Collection, error) {
	coll, err := m.collections.GetGlobalDefault(ctx)
	if err == nil {
		return coll, nil
	}
	if !errors.Is(err, repository.ErrNoGlobalDefault) {
		return nil, err
	}

	name, err := m.settings.PredefinedCollectionName(ctx)
	if err != nil {
		return nil, fmt.Errorf("read predefined collection setting: %w", err)
	}
	if name == "" {
		return nil, ErrNoGlobalDefault
	}

	coll, err = m.collections.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrCollectionNotFound) {
			return nil, ErrNoGlobalDefault
		}
		return nil, err
	}

	return coll, nil
}

// CheckAndResolveStaleness compares a conversation's pinned global collection
// against the current default and applies the configured policy when they
// diverge. Conversations that do not use a global collection are always fresh.
func (m *Manager) CheckAndResolveStaleness(ctx context.Context, conv *entity.Conversation) (*StalenessResult, error) {
	if conv.Type != entity.ConversationTypeGlobalCollection {
		return &StalenessResult{Status: StalenessFresh, Conversation: conv}, nil
	}

	policy, err := m.settings.GlobalCollectionBehavior(ctx)
	if err != nil {
		return nil, fmt.Errorf("read staleness policy: %w", err)
	}

	current, err := m.CurrentDefault(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoGlobalDefault) {
			return nil, fmt.Errorf("resolve current default: %w", err)
		}

		if policy == settings.PolicyReadonlyOnChange {
			ctxzap.Info(ctx, "conversation locked, no current global default",
				zap.String("conversation_id", conv.ID))

			return &StalenessResult{
				Status:       StalenessLocked,
				Conversation: conv,
				Message:      LockedMessage,
			}, nil
		}

		// Nothing to ride to; the pinned collection stays in use.
		return &StalenessResult{Status: StalenessFresh, Conversation: conv}, nil
	}

	if m.pinnedMatches(conv, current) {
		return &StalenessResult{Status: StalenessFresh, Conversation: conv}, nil
	}

	if policy == settings.PolicyReadonlyOnChange {
		ctxzap.Info(ctx, "conversation locked on stale global collection",
			zap.String("conversation_id", conv.ID),
			zap.String("current_default", current.Name))

		return &StalenessResult{
			Status:       StalenessLocked,
			Conversation: conv,
			Message:      LockedMessage,
		}, nil
	}

	updated, err := m.conversations.UpdateGlobalLink(ctx, conv.ID, current.ID, current.Name)
	if err != nil {
		return nil, fmt.Errorf("re-pin conversation to current default: %w", err)
	}

	ctxzap.Info(ctx, "conversation migrated to current global default",
		zap.String("conversation_id", conv.ID),
		zap.String("collection_id", current.ID),
		zap.String("collection_name", current.Name))

	return &StalenessResult{Status: StalenessMigrated, Conversation: updated}, nil
}

// Migrate explicitly re-pins a conversation to the current global default.
// This is the user-driven escape from the LOCKED state.
func (m *Manager) Migrate(ctx context.Context, conversationID string) (*entity.Conversation, error) {
	conv, err := m.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if conv.Type != entity.ConversationTypeGlobalCollection {
		return nil, fmt.Errorf("conversation %s does not use a global collection", conversationID)
	}

	current, err := m.CurrentDefault(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := m.conversations.UpdateGlobalLink(ctx, conv.ID, current.ID, current.Name)
	if err != nil {
		return nil, fmt.Errorf("update global link: %w", err)
	}

	ctxzap.Info(ctx, "conversation migrated on request",
		zap.String("conversation_id", conv.ID),
		zap.String("collection_name", current.Name))

	return updated, nil
}

// BackingNameByID resolves a registry entry to its vector-store backing name.
func (m *Manager) BackingNameByID(ctx context.Context, id string) (string, error) {
	coll, err := m.collections.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	return BackingName(coll.Name, coll.IsAdminOnly), nil
}

// EnsureConversationCollection provisions the per-conversation vector
// collection for user-uploaded files.
func (m *Manager) EnsureConversationCollection(ctx context.Context, conversationID string) (string, error) {
	name := ConversationCollectionName(conversationID)
	if err := m.vectors.EnsureCollection(ctx, name); err != nil {
		return "", fmt.Errorf("provision conversation collection: %w", err)
	}

	return name, nil
}

// DropConversationCollection removes the per-conversation vector collection.
// Missing collections are not an error.
func (m *Manager) DropConversationCollection(ctx context.Context, conversationID string) error {
	name := ConversationCollectionName(conversationID)

	exists, err := m.vectors.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check conversation collection: %w", err)
	}
	if !exists {
		return nil
	}

	if err := m.vectors.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("delete conversation collection: %w", err)
	}

	return nil
}

func (m *Manager) pinnedMatches(conv *entity.Conversation, current *entity.Collection) bool {
	if conv.LinkedGlobalCollectionID == nil || conv.OriginalGlobalCollectionName == nil {
		return false
	}

	return *conv.LinkedGlobalCollectionID == current.ID &&
		*conv.OriginalGlobalCollectionName == current.Name
}
