package theme

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphdesk/internal/storage"
)

func TestNewStoreDefaultsToSystem(t *testing.T) {
	api := storage.NewAPI(storage.NewMemStore())
	store := NewStore(api, System, nil)
	require.Equal(t, System, store.Theme())
}

func TestNewStoreRestoresPersistedTheme(t *testing.T) {
	api := storage.NewAPI(storage.NewMemStore())
	require.NoError(t, api.Set(StorageKey, "dark"))

	store := NewStore(api, System, nil)
	require.Equal(t, Dark, store.Theme())
}

func TestNewStoreClearsCorruptValue(t *testing.T) {
	api := storage.NewAPI(storage.NewMemStore())
	require.NoError(t, api.Set(StorageKey, "solarized"))

	store := NewStore(api, System, nil)
	require.Equal(t, System, store.Theme())
	require.Equal(t, "", api.Get(StorageKey))
}

func TestNewStoreDefaultUsedWhenNothingStored(t *testing.T) {
	api := storage.NewAPI(storage.NewMemStore())
	store := NewStore(api, Light, nil)
	require.Equal(t, Light, store.Theme())
}

func TestSetPersistsAndNotifies(t *testing.T) {
	api := storage.NewAPI(storage.NewMemStore())
	var seen []Theme
	store := NewStore(api, System, func(theme Theme) { seen = append(seen, theme) })

	store.Set(Dark)
	require.Equal(t, Dark, store.Theme())
	require.Equal(t, "dark", api.Get(StorageKey))

	store.Set(System)
	require.Equal(t, System, store.Theme())
	require.Equal(t, "", api.Get(StorageKey))

	require.Equal(t, []Theme{Dark, System}, seen)
}
