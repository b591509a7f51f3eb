// Package theme tracks the UI color scheme preference.
package theme

import (
	"sync"

	"github.com/hanpama/graphdesk/internal/storage"
)

// StorageKey persists the forced theme across sessions.
const StorageKey = "theme"

// Theme is a forced color scheme. The zero value means "follow the system".
type Theme string

const (
	System Theme = ""
	Light  Theme = "light"
	Dark   Theme = "dark"
)

// Store resolves the persisted preference and publishes changes.
type Store struct {
	mu       sync.Mutex
	theme    Theme
	storage  *storage.API
	onChange func(Theme)
}

// NewStore loads the persisted theme. Anything other than the two known
// values is treated as corrupt: the entry is cleared and the system default
// applies.
func NewStore(api *storage.API, defaultTheme Theme, onChange func(Theme)) *Store {
	s := &Store{storage: api, onChange: onChange}

	switch stored := Theme(api.Get(StorageKey)); stored {
	case Light, Dark:
		s.theme = stored
	default:
		if stored != System {
			api.Set(StorageKey, "")
		}
		s.theme = defaultTheme
	}
	return s
}

// Theme returns the active preference; System means no forced theme.
func (s *Store) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// Set forces a theme, persists it and notifies. System clears the persisted
// entry.
func (s *Store) Set(theme Theme) {
	s.mu.Lock()
	s.theme = theme
	onChange := s.onChange
	s.mu.Unlock()

	s.storage.Set(StorageKey, string(theme))
	if onChange != nil {
		onChange(theme)
	}
}
