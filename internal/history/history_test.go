package history

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphdesk/internal/storage"
)

func newTestAPI() *storage.API {
	return storage.NewAPI(storage.NewMemStore())
}

func TestQueryStorePushEvictsOldest(t *testing.T) {
	api := newTestAPI()
	store := NewQueryStore("queries", api, 2)

	store.Push(Item{Query: "{ a }"})
	store.Push(Item{Query: "{ b }"})
	store.Push(Item{Query: "{ c }"})

	require.Equal(t, 2, store.Len())
	require.Equal(t, "{ b }", store.Items()[0].Query)
	require.Equal(t, "{ c }", store.Items()[1].Query)
}

func TestQueryStoreRoundTrip(t *testing.T) {
	api := newTestAPI()
	store := NewQueryStore("queries", api, 0)
	store.Push(Item{Query: "{ a }", Label: "first"})

	reloaded := NewQueryStore("queries", api, 0)
	require.Equal(t, 1, reloaded.Len())
	require.Equal(t, "first", reloaded.Items()[0].Label)
}

func TestQueryStoreEditByIndex(t *testing.T) {
	api := newTestAPI()
	store := NewQueryStore("queries", api, 0)
	store.Push(Item{Query: "{ a }"})
	store.Push(Item{Query: "{ a }"})

	store.Edit(Item{Query: "{ a }", Label: "second"}, 1)
	require.Equal(t, "", store.Items()[0].Label)
	require.Equal(t, "second", store.Items()[1].Label)
}

func TestQueryStoreDelete(t *testing.T) {
	api := newTestAPI()
	store := NewQueryStore("queries", api, 0)
	store.Push(Item{Query: "{ a }"})
	store.Push(Item{Query: "{ b }"})

	store.Delete(Item{Query: "{ a }"})
	require.Equal(t, 1, store.Len())
	require.Equal(t, "{ b }", store.Items()[0].Query)
}

// quotaBackend rejects values larger than maxLen to exercise push retries.
type quotaBackend struct {
	*storage.MemStore
	maxLen int
}

func (b *quotaBackend) SetItem(key, value string) error {
	if len(value) > b.maxLen {
		return &storage.QuotaError{Key: key}
	}
	return b.MemStore.SetItem(key, value)
}

func TestQueryStorePushRetriesOnQuota(t *testing.T) {
	backend := &quotaBackend{MemStore: storage.NewMemStore(), maxLen: 120}
	api := storage.NewAPI(backend)
	store := NewQueryStore("queries", api, 0)

	for i := 0; i < 6; i++ {
		store.Push(Item{Query: "{ field" + strings.Repeat("x", i) + " }"})
	}
	// Older entries were shed to make room; the latest push always survives.
	require.Greater(t, store.Len(), 0)
	recent, ok := store.FetchRecent()
	require.True(t, ok)
	require.Contains(t, recent.Query, "xxxxx")
}

func TestStoreUpdateSkipsInvalidAndDuplicate(t *testing.T) {
	store := NewStore(newTestAPI(), 20)

	store.Update(Item{Query: "{ hero { name } }"})
	require.Len(t, store.Queries(), 1)

	// Same query and variables again is a duplicate.
	store.Update(Item{Query: "{ hero { name } }"})
	require.Len(t, store.Queries(), 1)

	// The same query merely gaining variables is still treated as a duplicate.
	store.Update(Item{Query: "{ hero { name } }", Variables: `{"id":1}`})
	require.Len(t, store.Queries(), 1)

	// A different query is a new entry.
	store.Update(Item{Query: "{ villain { name } }"})
	require.Len(t, store.Queries(), 2)

	// Unparsable queries are never recorded.
	store.Update(Item{Query: "{ hero {"})
	require.Len(t, store.Queries(), 2)

	// Empty and oversized queries are skipped.
	store.Update(Item{Query: ""})
	store.Update(Item{Query: "{ " + strings.Repeat("a", maxQuerySize) + " }"})
	require.Len(t, store.Queries(), 2)
}

func TestStoreToggleFavorite(t *testing.T) {
	store := NewStore(newTestAPI(), 20)
	store.Update(Item{Query: "{ hero { name } }"})

	item := store.Queries()[0]
	store.ToggleFavorite(item)

	queries := store.Queries()
	require.Len(t, queries, 1)
	require.True(t, queries[0].Favorite)

	store.ToggleFavorite(queries[0])
	queries = store.Queries()
	require.Len(t, queries, 1)
	require.False(t, queries[0].Favorite)
}

func TestStoreEditLabel(t *testing.T) {
	store := NewStore(newTestAPI(), 20)
	store.Update(Item{Query: "{ hero { name } }"})

	item := store.Queries()[0]
	item.Label = "heroes"
	store.EditLabel(item, 0)

	require.Equal(t, "heroes", store.Queries()[0].Label)
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(newTestAPI(), 20)
	store.Update(Item{Query: "{ a }"})
	store.Update(Item{Query: "{ b }"})

	store.Delete(Item{Query: "{ a }"}, false)
	queries := store.Queries()
	require.Len(t, queries, 1)
	require.Equal(t, "{ b }", queries[0].Query)
}
