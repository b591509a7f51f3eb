// Package history records executed operations so they can be replayed,
// labelled and starred later.
package history

import (
	"encoding/json"

	"github.com/hanpama/graphdesk/internal/language"
	"github.com/hanpama/graphdesk/internal/storage"
)

// Queries larger than this are never recorded.
const maxQuerySize = 100_000

// Item is one recorded operation.
type Item struct {
	Query         string `json:"query,omitempty"`
	Variables     string `json:"variables,omitempty"`
	Headers       string `json:"headers,omitempty"`
	OperationName string `json:"operationName,omitempty"`
	Label         string `json:"label,omitempty"`
	Favorite      bool   `json:"favorite,omitempty"`
}

// matches compares the identity fields, ignoring label and favorite flag.
func (i Item) matches(other Item) bool {
	return i.Query == other.Query &&
		i.Variables == other.Variables &&
		i.Headers == other.Headers &&
		i.OperationName == other.OperationName
}

// QueryStore is a bounded, persisted list of items under one storage key.
// A maxSize of zero means unbounded.
type QueryStore struct {
	key     string
	storage *storage.API
	maxSize int
	items   []Item
}

func NewQueryStore(key string, api *storage.API, maxSize int) *QueryStore {
	s := &QueryStore{key: key, storage: api, maxSize: maxSize}
	s.items = s.fetchAll()
	return s
}

func (s *QueryStore) Items() []Item { return s.items }

func (s *QueryStore) Len() int { return len(s.items) }

func (s *QueryStore) Contains(item Item) bool {
	for _, existing := range s.items {
		if existing.matches(item) {
			return true
		}
	}
	return false
}

// FetchRecent returns the most recently pushed item.
func (s *QueryStore) FetchRecent() (Item, bool) {
	if len(s.items) == 0 {
		return Item{}, false
	}
	return s.items[len(s.items)-1], true
}

// Edit replaces a stored item in place. When index points at a matching item
// it is replaced directly, so duplicates can be edited individually;
// otherwise the first matching item is replaced.
func (s *QueryStore) Edit(item Item, index int) {
	if index >= 0 && index < len(s.items) && s.items[index].matches(item) {
		s.items[index] = item
		s.save()
		return
	}
	for i, existing := range s.items {
		if existing.matches(item) {
			s.items[i] = item
			s.save()
			return
		}
	}
}

func (s *QueryStore) Delete(item Item) {
	for i, existing := range s.items {
		if existing.matches(item) {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.save()
			return
		}
	}
}

// Push appends an item, evicting the oldest entry when over capacity. If the
// write is rejected for quota, older entries are dropped until it fits; other
// write failures leave the in-memory list unchanged.
func (s *QueryStore) Push(item Item) {
	items := append(append([]Item{}, s.items...), item)
	if s.maxSize > 0 && len(items) > s.maxSize {
		items = items[1:]
	}
	for {
		err := s.storage.Set(s.key, encodeItems(s.key, items))
		if err == nil {
			s.items = items
			return
		}
		if !storage.IsQuotaError(err) || len(items) == 0 {
			return
		}
		items = items[1:]
	}
}

func (s *QueryStore) save() {
	s.storage.Set(s.key, encodeItems(s.key, s.items))
}

func (s *QueryStore) fetchAll() []Item {
	raw := s.storage.Get(s.key)
	if raw == "" {
		return nil
	}
	var parsed map[string][]Item
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil
	}
	return parsed[s.key]
}

func encodeItems(key string, items []Item) string {
	if items == nil {
		items = []Item{}
	}
	encoded, err := json.Marshal(map[string][]Item{key: items})
	if err != nil {
		return ""
	}
	return string(encoded)
}

// Store combines the rolling history list with the unbounded favorites list.
type Store struct {
	history  *QueryStore
	favorite *QueryStore
}

func NewStore(api *storage.API, maxHistoryLength int) *Store {
	return &Store{
		history: NewQueryStore("queries", api, maxHistoryLength),
		// Favorites are only removed explicitly, so no cap applies.
		favorite: NewQueryStore("favorites", api, 0),
	}
}

// Queries returns history entries followed by favorites.
func (s *Store) Queries() []Item {
	out := make([]Item, 0, len(s.history.items)+len(s.favorite.items))
	out = append(out, s.history.items...)
	out = append(out, s.favorite.items...)
	return out
}

// Update records an executed operation. Unparsable, oversized and
// immediately-duplicate queries are skipped.
func (s *Store) Update(item Item) {
	last, hasLast := s.history.FetchRecent()
	if !s.shouldSave(item, last, hasLast) {
		return
	}
	s.history.Push(Item{
		Query:         item.Query,
		Variables:     item.Variables,
		Headers:       item.Headers,
		OperationName: item.OperationName,
	})
}

func (s *Store) shouldSave(item, last Item, hasLast bool) bool {
	if item.Query == "" {
		return false
	}
	if _, err := language.ParseQuery(item.Query); err != nil {
		return false
	}
	if len(item.Query) > maxQuerySize {
		return false
	}
	if !hasLast {
		return true
	}
	if item.Query == last.Query {
		if item.Variables == last.Variables {
			if item.Headers == last.Headers {
				return false
			}
			if item.Headers != "" && last.Headers == "" {
				return false
			}
		}
		if item.Variables != "" && last.Variables == "" {
			return false
		}
	}
	return true
}

// ToggleFavorite moves an item between the history and favorites lists,
// flipping its favorite flag.
func (s *Store) ToggleFavorite(item Item) {
	entry := Item{
		Query:         item.Query,
		Variables:     item.Variables,
		Headers:       item.Headers,
		OperationName: item.OperationName,
		Label:         item.Label,
	}
	if item.Favorite {
		entry.Favorite = false
		s.favorite.Delete(entry)
		s.history.Push(entry)
	} else {
		entry.Favorite = true
		s.favorite.Push(entry)
		s.history.Delete(entry)
	}
}

// EditLabel updates the label of a stored item, targeting the list the item's
// favorite flag indicates.
func (s *Store) EditLabel(item Item, index int) {
	entry := Item{
		Query:         item.Query,
		Variables:     item.Variables,
		Headers:       item.Headers,
		OperationName: item.OperationName,
		Label:         item.Label,
	}
	if item.Favorite {
		entry.Favorite = true
		s.favorite.Edit(entry, index)
	} else {
		s.history.Edit(entry, index)
	}
}

// Delete removes an item from the list its favorite flag indicates; with
// clearFavorites set, both lists are searched.
func (s *Store) Delete(item Item, clearFavorites bool) {
	deleteFrom := func(store *QueryStore) {
		for _, existing := range store.items {
			if existing.matches(item) {
				store.Delete(existing)
				return
			}
		}
	}
	if item.Favorite || clearFavorites {
		deleteFrom(s.favorite)
	}
	if !item.Favorite || clearFavorites {
		deleteFrom(s.history)
	}
}
