package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/biodoia/nutrillm/pkg/cache"
	"github.com/biodoia/nutrillm/pkg/database"
	"github.com/biodoia/nutrillm/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(&database.Config{Type: "sqlite", Connection: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDBStore_ContextOldestFirst(t *testing.T) {
	db := newTestDB(t)
	store := NewDBStore(db.DB, WithContextTurns(2))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Append(ctx, 1, 2, fmt.Sprintf("вопрос %d", i), fmt.Sprintf("ответ %d", i), "nutrition"))
	}

	text, err := store.GetContext(ctx, 1, 2, "nutrition")
	require.NoError(t, err)
	assert.Equal(t, "Пользователь: вопрос 2\nАссистент: ответ 2\nПользователь: вопрос 3\nАссистент: ответ 3", text)
}

func TestDBStore_IsolatesUsersAndTopics(t *testing.T) {
	db := newTestDB(t)
	store := NewDBStore(db.DB)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, 1, 2, "питание", "ok", "nutrition"))
	require.NoError(t, store.Append(ctx, 1, 2, "план", "ok", "planning"))
	require.NoError(t, store.Append(ctx, 1, 3, "чужое", "ok", "nutrition"))
	require.NoError(t, store.Append(ctx, 1, 2, "без темы", "ok", ""))

	text, err := store.GetContext(ctx, 1, 2, "nutrition")
	require.NoError(t, err)
	assert.Equal(t, "Пользователь: питание\nАссистент: ok", text)

	general, err := store.GetContext(ctx, 1, 2, "  ")
	require.NoError(t, err)
	assert.Contains(t, general, "без темы")

	empty, err := store.GetContext(ctx, 9, 9, "nutrition")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDBStore_CacheInvalidatedOnAppend(t *testing.T) {
	db := newTestDB(t)
	mc := cache.NewMemoryCache(100, time.Minute)
	defer mc.Close()

	store := NewDBStore(db.DB, WithCache(mc, time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, 1, 2, "первый", "ответ", "simple"))

	first, err := store.GetContext(ctx, 1, 2, "simple")
	require.NoError(t, err)
	_, err = store.GetContext(ctx, 1, 2, "simple")
	require.NoError(t, err)
	assert.Equal(t, int64(1), mc.Stats().Hits)

	require.NoError(t, store.Append(ctx, 1, 2, "второй", "ответ", "simple"))

	second, err := store.GetContext(ctx, 1, 2, "simple")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Contains(t, second, "второй")
}

func TestDBStore_Clear(t *testing.T) {
	db := newTestDB(t)
	store := NewDBStore(db.DB)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, 1, 2, "вопрос", "ответ", "simple"))
	require.NoError(t, store.Clear(ctx, 1, 2))

	text, err := store.GetContext(ctx, 1, 2, "simple")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestProfileStore_SaveAndUpdate(t *testing.T) {
	db := newTestDB(t)
	profiles := NewProfileStore(db.DB)
	ctx := context.Background()

	_, err := profiles.Get(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrProfileNotFound)

	facts, err := profiles.Facts(ctx, 1, 2)
	require.NoError(t, err)
	assert.Empty(t, facts)

	require.NoError(t, profiles.Save(ctx, &models.Profile{ChatID: 1, UserID: 2, Gender: models.GenderMale, Age: 30, Weight: 70}))
	require.NoError(t, profiles.Save(ctx, &models.Profile{ChatID: 1, UserID: 2, Gender: models.GenderMale, Age: 31, Weight: 72, Height: 180}))

	profile, err := profiles.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 31, profile.Age)
	assert.Equal(t, 180.0, profile.Height)

	var count int64
	db.Model(&models.Profile{}).Count(&count)
	assert.Equal(t, int64(1), count)

	facts, err = profiles.Facts(ctx, 1, 2)
	require.NoError(t, err)
	assert.Contains(t, facts, "рост: 180 см")
}

func TestDBStore_History(t *testing.T) {
	db := newTestDB(t)
	store := NewDBStore(db.DB)
	ctx := context.Background()

	topics := []string{"nutrition", "planning", "simple"}
	for i := 1; i <= 12; i++ {
		require.NoError(t, store.Append(ctx, 1, 2, fmt.Sprintf("вопрос %d", i), "ответ", topics[i%3]))
	}
	require.NoError(t, store.Append(ctx, 1, 3, "чужое", "ответ", "simple"))

	tests := []struct {
		name  string
		n     int
		first string
		count int
	}{
		{"default", 0, "вопрос 10", DefaultHistoryTurns},
		{"explicit", 5, "вопрос 8", 5},
		{"capped", 50, "вопрос 3", MaxHistoryTurns},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns, err := store.History(ctx, 1, 2, tt.n)
			require.NoError(t, err)
			require.Len(t, turns, tt.count)
			assert.Equal(t, tt.first, turns[0].UserMessage)
			assert.Equal(t, "вопрос 12", turns[len(turns)-1].UserMessage)
		})
	}

	empty, err := store.History(ctx, 9, 9, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDBStore_StaleContextNotCachedAfterAppend(t *testing.T) {
	db := newTestDB(t)
	mc := cache.NewMemoryCache(100, time.Minute)
	defer mc.Close()

	store := NewDBStore(db.DB, WithCache(mc, time.Minute))
	ctx := context.Background()
	key := contextKey(1, 2, "simple")

	// lettura iniziata prima di una scrittura concorrente
	gen := store.generation()
	require.NoError(t, store.Append(ctx, 1, 2, "новый", "ответ", "simple"))
	store.cacheContext(ctx, key, "", gen)

	_, err := mc.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	text, err := store.GetContext(ctx, 1, 2, "simple")
	require.NoError(t, err)
	assert.Contains(t, text, "новый")
}
