// Package editor defines the contract of the externally owned editor widget
// instances the workbench reads from and writes to, plus an in-memory
// implementation used by the daemon and in tests. The workbench never owns
// rendering; it owns the policy of when editor contents are read, written
// and persisted.
package editor

import "sync"

// Editor is an opaque handle to one editor widget.
type Editor interface {
	GetValue() string
	SetValue(value string)

	// OnChange registers fn to run after every content change. The returned
	// function removes the registration.
	OnChange(fn func(value string)) (unsubscribe func())
}

// Buffer is a plain text buffer satisfying Editor.
type Buffer struct {
	mu       sync.Mutex
	value    string
	handlers map[int]func(string)
	nextID   int
}

func NewBuffer(value string) *Buffer {
	return &Buffer{value: value, handlers: map[int]func(string){}}
}

func (b *Buffer) GetValue() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

func (b *Buffer) SetValue(value string) {
	b.mu.Lock()
	if b.value == value {
		b.mu.Unlock()
		return
	}
	b.value = value
	handlers := make([]func(string), 0, len(b.handlers))
	for _, fn := range b.handlers {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()
	for _, fn := range handlers {
		fn(value)
	}
}

func (b *Buffer) OnChange(fn func(string)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}
