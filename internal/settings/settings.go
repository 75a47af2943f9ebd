package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/malykhin/ragchat-backend/internal/entity"
	"github.com/malykhin/ragchat-backend/internal/repository"
)

// Well-known setting coordinates. Values live in the settings table and can
// change at runtime; the typed accessors below fall back to these defaults
// when a key is absent.
const (
	CategoryRAG     = "rag"
	CategoryPrompts = "prompts"

	KeyTopK                     = "top_k"
	KeyPredefinedCollection     = "predefined_collection"
	KeyGlobalCollectionBehavior = "global_collection_behavior"

	KeyPromptGlobalRAG = "global_rag"
	KeyPromptUserRAG   = "user_rag"
	KeyPromptRegular   = "regular"
)

// GlobalCollectionPolicy controls what happens to an existing conversation
// when the global default collection it was pinned to changes.
type GlobalCollectionPolicy string

const (
	// PolicyAutoUpdate silently re-pins stale conversations to the new default.
	PolicyAutoUpdate GlobalCollectionPolicy = "auto_update"
	// PolicyReadonlyOnChange locks stale conversations until the user migrates
	// explicitly.
	PolicyReadonlyOnChange GlobalCollectionPolicy = "readonly_on_change"
)

const (
	DefaultTopK = 4

	// TopK is clamped to this range regardless of what an admin stored.
	MinTopK = 1
	MaxTopK = 100
)

var ErrSettingNotFound = repository.ErrSettingNotFound

// Service is a typed read-through cache over the settings table. Reads hit the
// cache first; writes go straight to the table and invalidate the cached entry,
// so other replicas converge within the cache TTL.
type Service struct {
	repo  repository.SettingRepository
	cache *gocache.Cache
}

func NewService(repo repository.SettingRepository, ttl time.Duration) *Service {
	return &Service{
		repo:  repo,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func cacheKey(category, key string) string {
	return category + "/" + key
}

// GetString returns the raw stored value, or fallback when the key is absent.
func (s *Service) GetString(ctx context.Context, category, key, fallback string) (string, error) {
	ck := cacheKey(category, key)
	if v, ok := s.cache.Get(ck); ok {
		return v.(string), nil
	}

	setting, err := s.repo.Get(ctx, category, key)
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			return fallback, nil
		}
		return "", fmt.Errorf("get setting %s: %w", ck, err)
	}

	s.cache.SetDefault(ck, setting.Value)

	return setting.Value, nil
}

func (s *Service) GetInt(ctx context.Context, category, key string, fallback int) (int, error) {
	raw, err := s.GetString(ctx, category, key, strconv.Itoa(fallback))
	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("setting %s is not an integer: %w", cacheKey(category, key), err)
	}

	return n, nil
}

func (s *Service) GetFloat(ctx context.Context, category, key string, fallback float64) (float64, error) {
	raw, err := s.GetString(ctx, category, key, strconv.FormatFloat(fallback, 'f', -1, 64))
	if err != nil {
		return 0, err
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s is not a float: %w", cacheKey(category, key), err)
	}

	return f, nil
}

func (s *Service) GetBool(ctx context.Context, category, key string, fallback bool) (bool, error) {
	raw, err := s.GetString(ctx, category, key, strconv.FormatBool(fallback))
	if err != nil {
		return false, err
	}

	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("setting %s is not a bool: %w", cacheKey(category, key), err)
	}

	return b, nil
}

// GetJSON unmarshals the stored value into out. Returns ErrSettingNotFound
// when the key is absent; JSON settings have no implicit fallback.
func (s *Service) GetJSON(ctx context.Context, category, key string, out any) error {
	ck := cacheKey(category, key)

	raw, ok := s.cache.Get(ck)
	if !ok {
		setting, err := s.repo.Get(ctx, category, key)
		if err != nil {
			return err
		}
		raw = setting.Value
		s.cache.SetDefault(ck, setting.Value)
	}

	if err := json.Unmarshal([]byte(raw.(string)), out); err != nil {
		return fmt.Errorf("setting %s is not valid JSON: %w", ck, err)
	}

	return nil
}

// Set persists a value and drops the cached copy.
func (s *Service) Set(ctx context.Context, category, key, value string) error {
	if err := s.repo.Upsert(ctx, category, key, value); err != nil {
		return err
	}
	s.cache.Delete(cacheKey(category, key))

	return nil
}

// Delete removes a value, reverting reads to the accessor's fallback.
func (s *Service) Delete(ctx context.Context, category, key string) error {
	if err := s.repo.Delete(ctx, category, key); err != nil {
		return err
	}
	s.cache.Delete(cacheKey(category, key))

	return nil
}

func (s *Service) List(ctx context.Context, category string) ([]*entity.Setting, error) {
	return s.repo.ListByCategory(ctx, category)
}

// TopK returns the retrieval depth, clamped to [MinTopK, MaxTopK]. The value
// is admin-editable at runtime, so a stored value that does not parse as an
// integer falls back to DefaultTopK instead of failing the turn.
func (s *Service) TopK(ctx context.Context) (int, error) {
	raw, err := s.GetString(ctx, CategoryRAG, KeyTopK, strconv.Itoa(DefaultTopK))
	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultTopK, nil
	}

	if n < MinTopK {
		n = MinTopK
	}
	if n > MaxTopK {
		n = MaxTopK
	}

	return n, nil
}

// PredefinedCollectionName returns the registry name of the admin-curated
// collection new GLOBAL_COLLECTION conversations should pin to when no
// explicit global default is flagged. Empty when unset.
func (s *Service) PredefinedCollectionName(ctx context.Context) (string, error) {
	return s.GetString(ctx, CategoryRAG, KeyPredefinedCollection, "")
}

// GlobalCollectionBehavior returns the staleness policy, defaulting to
// auto_update. Unknown stored values also fall back to auto_update.
func (s *Service) GlobalCollectionBehavior(ctx context.Context) (GlobalCollectionPolicy, error) {
	raw, err := s.GetString(ctx, CategoryRAG, KeyGlobalCollectionBehavior, string(PolicyAutoUpdate))
	if err != nil {
		return "", err
	}

	switch GlobalCollectionPolicy(raw) {
	case PolicyAutoUpdate, PolicyReadonlyOnChange:
		return GlobalCollectionPolicy(raw), nil
	default:
		return PolicyAutoUpdate, nil
	}
}

// PromptTemplate returns the stored system prompt for the given key, or
// fallback when no override is configured.
func (s *Service) PromptTemplate(ctx context.Context, key, fallback string) (string, error) {
	return s.GetString(ctx, CategoryPrompts, key, fallback)
}
