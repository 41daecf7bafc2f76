package snapshotstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/concoursapp/catalogsync/internal/domain/catalog"
)

func sampleCategories() []catalog.Category {
	return []catalog.Category{
		{
			ID:    "c1",
			Title: "Mathématiques",
			Questions: []catalog.Question{
				{ID: "q1", CategoryID: "c1", Text: "2+2 ?", CorrectAnswer: "4"},
			},
		},
		{ID: "c2", Title: "Culture générale"},
	}
}

func TestMemoryStoreEmptyLoad(t *testing.T) {
	store := NewMemoryStore()

	got, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)
}

func TestMemoryStoreSaveThenLoad(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), sampleCategories(), 0))

	got, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sampleCategories(), got)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), sampleCategories(), 20*time.Millisecond))

	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	_, ok, err = store.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStoreZeroTTLNeverExpires(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), sampleCategories(), 0))

	time.Sleep(20 * time.Millisecond)

	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryStoreLoadReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), sampleCategories(), 0))

	first, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	first[0].Title = "mutated"

	second, _, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Mathématiques", second[0].Title)
}

func TestMemoryStoreSaveReplacesPreviousEntry(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), sampleCategories(), 0))
	require.NoError(t, store.Save(context.Background(), []catalog.Category{{ID: "c9", Title: "Histoire"}}, 0))

	got, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	require.Equal(t, "c9", got[0].ID)
}
