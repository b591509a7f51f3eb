package plugins

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphdesk/internal/storage"
)

func TestNewStoreRejectsDuplicateTitles(t *testing.T) {
	_, err := NewStore(Options{
		Plugins: []*Plugin{{Title: "Docs"}, {Title: "History"}, {Title: "Docs"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unique titles")
	require.Contains(t, err.Error(), "Docs")
}

func TestNewStoreRejectsEmptyTitle(t *testing.T) {
	_, err := NewStore(Options{Plugins: []*Plugin{{Title: ""}}})
	require.Error(t, err)
}

func TestSetVisibleTogglesAndPersists(t *testing.T) {
	api := storage.NewAPI(storage.NewMemStore())
	docs := &Plugin{Title: "Docs"}
	hist := &Plugin{Title: "History"}

	var toggled []*Plugin
	store, err := NewStore(Options{
		Plugins:  []*Plugin{docs, hist},
		Storage:  api,
		OnToggle: func(p *Plugin) { toggled = append(toggled, p) },
	})
	require.NoError(t, err)
	require.Nil(t, store.Visible())

	store.SetVisible(docs)
	require.Equal(t, docs, store.Visible())
	require.Equal(t, "Docs", api.Get(StorageKey))

	// Setting the same plugin again changes nothing and fires no callback.
	store.SetVisible(docs)
	require.Len(t, toggled, 1)

	store.SetVisibleTitle("History")
	require.Equal(t, hist, store.Visible())

	store.SetVisible(nil)
	require.Nil(t, store.Visible())
	require.Equal(t, "", api.Get(StorageKey))
	require.Equal(t, []*Plugin{docs, hist, nil}, toggled)
}

func TestSetVisibleMatchesByTitleNotPointer(t *testing.T) {
	docs := &Plugin{Title: "Docs"}
	store, err := NewStore(Options{Plugins: []*Plugin{docs}})
	require.NoError(t, err)

	store.SetVisible(&Plugin{Title: "Docs"})
	require.Same(t, docs, store.Visible())
}

func TestVisiblePluginRestoredFromStorage(t *testing.T) {
	api := storage.NewAPI(storage.NewMemStore())
	require.NoError(t, api.Set(StorageKey, "History"))

	hist := &Plugin{Title: "History"}
	store, err := NewStore(Options{
		Plugins: []*Plugin{{Title: "Docs"}, hist},
		Storage: api,
	})
	require.NoError(t, err)
	require.Same(t, hist, store.Visible())
}

func TestVisibleTitleOptionOverridesStorage(t *testing.T) {
	api := storage.NewAPI(storage.NewMemStore())
	require.NoError(t, api.Set(StorageKey, "History"))

	docs := &Plugin{Title: "Docs"}
	store, err := NewStore(Options{
		Plugins:      []*Plugin{docs, {Title: "History"}},
		VisibleTitle: "Docs",
		Storage:      api,
	})
	require.NoError(t, err)
	require.Same(t, docs, store.Visible())
}
