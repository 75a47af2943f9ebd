package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malykhin/ragchat-backend/internal/entity"
	"github.com/malykhin/ragchat-backend/internal/repository"
)

type fakeSettingRepo struct {
	values map[string]string
	gets   int
}

func newFakeSettingRepo(values map[string]string) *fakeSettingRepo {
	if values == nil {
		values = map[string]string{}
	}
	return &fakeSettingRepo{values: values}
}

func (f *fakeSettingRepo) Get(_ context.Context, category, key string) (*entity.Setting, error) {
	f.gets++
	v, ok := f.values[category+"/"+key]
	if !ok {
		return nil, repository.ErrSettingNotFound
	}
	return &entity.Setting{Category: category, Key: key, Value: v}, nil
}

func (f *fakeSettingRepo) ListByCategory(_ context.Context, category string) ([]*entity.Setting, error) {
	var out []*entity.Setting
	for k, v := range f.values {
		if len(k) > len(category) && k[:len(category)] == category {
			out = append(out, &entity.Setting{Category: category, Key: k[len(category)+1:], Value: v})
		}
	}
	return out, nil
}

func (f *fakeSettingRepo) Upsert(_ context.Context, category, key, value string) error {
	f.values[category+"/"+key] = value
	return nil
}

func (f *fakeSettingRepo) Delete(_ context.Context, category, key string) error {
	ck := category + "/" + key
	if _, ok := f.values[ck]; !ok {
		return repository.ErrSettingNotFound
	}
	delete(f.values, ck)
	return nil
}

func TestGetString_FallbackWhenAbsent(t *testing.T) {
	svc := NewService(newFakeSettingRepo(nil), time.Minute)

	v, err := svc.GetString(context.Background(), CategoryRAG, "missing", "default")
	require.NoError(t, err)
	assert.Equal(t, "default", v)
}

func TestGetString_CachesReads(t *testing.T) {
	repo := newFakeSettingRepo(map[string]string{"rag/top_k": "7"})
	svc := NewService(repo, time.Minute)

	for i := 0; i < 3; i++ {
		v, err := svc.GetString(context.Background(), CategoryRAG, KeyTopK, "")
		require.NoError(t, err)
		assert.Equal(t, "7", v)
	}

	assert.Equal(t, 1, repo.gets, "repeated reads should hit the cache")
}

func TestSet_InvalidatesCache(t *testing.T) {
	repo := newFakeSettingRepo(map[string]string{"rag/top_k": "7"})
	svc := NewService(repo, time.Minute)

	v, err := svc.GetString(context.Background(), CategoryRAG, KeyTopK, "")
	require.NoError(t, err)
	assert.Equal(t, "7", v)

	require.NoError(t, svc.Set(context.Background(), CategoryRAG, KeyTopK, "9"))

	v, err = svc.GetString(context.Background(), CategoryRAG, KeyTopK, "")
	require.NoError(t, err)
	assert.Equal(t, "9", v)
}

func TestTopK_Clamping(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   int
	}{
		{"absent uses default", "", DefaultTopK},
		{"in range", "10", 10},
		{"below minimum", "0", MinTopK},
		{"negative", "-5", MinTopK},
		{"above maximum", "500", MaxTopK},
		{"non-numeric uses default", "many", DefaultTopK},
		{"fractional uses default", "4.5", DefaultTopK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]string{}
			if tt.stored != "" {
				values["rag/top_k"] = tt.stored
			}
			svc := NewService(newFakeSettingRepo(values), time.Minute)

			got, err := svc.TopK(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTopK_NonNumericValueFallsBack(t *testing.T) {
	svc := NewService(newFakeSettingRepo(map[string]string{"rag/top_k": "many"}), time.Minute)

	got, err := svc.TopK(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, got)
}

func TestGlobalCollectionBehavior(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   GlobalCollectionPolicy
	}{
		{"absent defaults to auto_update", "", PolicyAutoUpdate},
		{"readonly", "readonly_on_change", PolicyReadonlyOnChange},
		{"auto", "auto_update", PolicyAutoUpdate},
		{"unknown falls back to auto_update", "explode", PolicyAutoUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]string{}
			if tt.stored != "" {
				values["rag/global_collection_behavior"] = tt.stored
			}
			svc := NewService(newFakeSettingRepo(values), time.Minute)

			got, err := svc.GlobalCollectionBehavior(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetJSON(t *testing.T) {
	svc := NewService(newFakeSettingRepo(map[string]string{
		"rag/weights": `{"alpha": 0.5}`,
	}), time.Minute)

	var out struct {
		Alpha float64 `json:"alpha"`
	}
	require.NoError(t, svc.GetJSON(context.Background(), CategoryRAG, "weights", &out))
	assert.Equal(t, 0.5, out.Alpha)

	err := svc.GetJSON(context.Background(), CategoryRAG, "missing", &out)
	assert.ErrorIs(t, err, ErrSettingNotFound)
}
