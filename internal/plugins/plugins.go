// Package plugins manages the registry of side-panel plugins and which one,
// if any, is currently visible.
package plugins

import (
	"fmt"
	"sync"

	"github.com/hanpama/graphdesk/internal/storage"
)

// StorageKey persists the visible plugin's title across sessions.
const StorageKey = "visiblePlugin"

// Plugin describes one installable side panel. Content is opaque to the
// store; hosts render it however they like.
type Plugin struct {
	Title   string
	Content any
}

// Options configure a plugin Store.
type Options struct {
	Plugins []*Plugin
	// VisibleTitle preselects a plugin by title, overriding the persisted
	// choice.
	VisibleTitle string
	// OnToggle is invoked whenever the visible plugin changes, with nil for
	// "none".
	OnToggle func(*Plugin)
	Storage  *storage.API
}

// Store holds the plugin registry. The registry is validated once at
// construction; duplicate or empty titles are configuration errors.
type Store struct {
	mu       sync.Mutex
	plugins  []*Plugin
	visible  *Plugin
	onToggle func(*Plugin)
	storage  *storage.API
}

func NewStore(opts Options) (*Store, error) {
	seen := make(map[string]bool, len(opts.Plugins))
	for i, plugin := range opts.Plugins {
		if plugin == nil {
			return nil, fmt.Errorf("plugin at index %d is nil", i)
		}
		if plugin.Title == "" {
			return nil, fmt.Errorf("plugin at index %d has no title", i)
		}
		if seen[plugin.Title] {
			return nil, fmt.Errorf("all plugins must have unique titles, found two plugins with the title %q", plugin.Title)
		}
		seen[plugin.Title] = true
	}

	s := &Store{
		plugins:  opts.Plugins,
		onToggle: opts.OnToggle,
		storage:  opts.Storage,
	}

	title := opts.VisibleTitle
	if title == "" {
		title = opts.Storage.Get(StorageKey)
	}
	if title != "" {
		s.visible = s.lookup(title)
	}
	return s, nil
}

// Plugins returns the registered plugins in registration order.
func (s *Store) Plugins() []*Plugin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plugins
}

// Visible returns the currently visible plugin, or nil when none is shown.
func (s *Store) Visible() *Plugin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// SetVisible shows the given registered plugin, or hides the panel when nil.
// Plugins are matched by title, so an equivalent descriptor works as well as
// the registered pointer. Setting the current value again is a no-op.
func (s *Store) SetVisible(plugin *Plugin) {
	title := ""
	if plugin != nil {
		title = plugin.Title
	}
	s.setVisibleTitle(title)
}

// SetVisibleTitle shows the registered plugin with the given title; an empty
// or unknown title hides the panel.
func (s *Store) SetVisibleTitle(title string) {
	s.setVisibleTitle(title)
}

func (s *Store) setVisibleTitle(title string) {
	s.mu.Lock()
	var next *Plugin
	if title != "" {
		next = s.lookup(title)
	}
	if next == s.visible {
		s.mu.Unlock()
		return
	}
	s.visible = next
	onToggle := s.onToggle
	s.mu.Unlock()

	persisted := ""
	if next != nil {
		persisted = next.Title
	}
	s.storage.Set(StorageKey, persisted)
	if onToggle != nil {
		onToggle(next)
	}
}

// lookup must be called with the registry settled; it matches by title.
func (s *Store) lookup(title string) *Plugin {
	for _, plugin := range s.plugins {
		if plugin.Title == title {
			return plugin
		}
	}
	return nil
}
