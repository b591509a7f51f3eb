// Package storage provides the persistent key-value store used by the
// workbench for tab state, history, theme and panel selection. The interface
// mirrors web localStorage semantics so embedders can plug in their own
// backend; absence of a backend degrades to in-memory-only behaviour.
package storage

import (
	"strings"
	"sync"
)

// Storage is the pluggable backend contract.
type Storage interface {
	// GetItem returns the stored value for key, or "" when absent.
	GetItem(key string) string

	// SetItem stores value under key, overwriting any previous value.
	// It returns an error when the write is rejected (e.g. quota).
	SetItem(key, value string) error

	// RemoveItem deletes the value for key. Unknown keys are a no-op.
	RemoveItem(key string)

	// Clear removes all items.
	Clear()

	// Len reports the number of stored items.
	Len() int
}

const namespace = "graphdesk"

// API wraps a backend with key namespacing and value hygiene. A nil backend
// yields a no-op API: gets return "", sets succeed silently.
type API struct {
	backend Storage
}

func NewAPI(backend Storage) *API { return &API{backend: backend} }

func (a *API) Get(name string) string {
	if a == nil || a.backend == nil {
		return ""
	}
	key := namespace + ":" + name
	value := a.backend.GetItem(key)
	// Clean up any inadvertently saved null/undefined values.
	if value == "null" || value == "undefined" {
		a.backend.RemoveItem(key)
		return ""
	}
	return value
}

// Set stores value under name. Empty values remove the entry. Write failures
// are reported but never panic; IsQuotaError distinguishes capacity errors.
func (a *API) Set(name, value string) error {
	if a == nil || a.backend == nil {
		return nil
	}
	key := namespace + ":" + name
	if value == "" {
		a.backend.RemoveItem(key)
		return nil
	}
	return a.backend.SetItem(key, value)
}

func (a *API) Clear() {
	if a != nil && a.backend != nil {
		a.backend.Clear()
	}
}

// QuotaError marks a write rejected because the backend is full.
type QuotaError struct{ Key string }

func (e *QuotaError) Error() string { return "storage quota exceeded for " + e.Key }

func IsQuotaError(err error) bool {
	_, ok := err.(*QuotaError)
	return ok
}

// MemStore is an in-memory Storage, the default fallback and test double.
type MemStore struct {
	mu    sync.Mutex
	items map[string]string
	// MaxItems simulates a bounded backend; 0 means unbounded.
	MaxItems int
}

func NewMemStore() *MemStore { return &MemStore{items: map[string]string{}} }

func (m *MemStore) GetItem(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[key]
}

func (m *MemStore) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[key]; !exists && m.MaxItems > 0 && len(m.items) >= m.MaxItems {
		return &QuotaError{Key: key}
	}
	m.items[key] = value
	return nil
}

func (m *MemStore) RemoveItem(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

func (m *MemStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = map[string]string{}
}

func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.items {
		if strings.HasPrefix(key, namespace+":") {
			n++
		}
	}
	return n
}
