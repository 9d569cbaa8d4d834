package theme

import (
	"context"
	"sync"
)

// SchemeFeed is an Environment whose value is pushed in from outside, e.g. a
// browser reporting prefers-color-scheme changes.
type SchemeFeed struct {
	mu      sync.Mutex
	current Resolved
	nextID  int
	subs    map[int]func(Resolved)
}

// NewSchemeFeed returns a feed starting at initial.
func NewSchemeFeed(initial Resolved) *SchemeFeed {
	return &SchemeFeed{current: initial, subs: make(map[int]func(Resolved))}
}

// Current returns the latest value.
func (f *SchemeFeed) Current() Resolved {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Set updates the value and notifies subscribers when it changed.
func (f *SchemeFeed) Set(v Resolved) {
	f.mu.Lock()
	if v == f.current {
		f.mu.Unlock()
		return
	}
	f.current = v
	subs := make([]func(Resolved), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

// Subscribe registers fn for change notifications.
func (f *SchemeFeed) Subscribe(fn func(Resolved)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Listeners reports the number of active subscriptions.
func (f *SchemeFeed) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// MemoryStore is an in-process Store, used when no durable store is
// configured and in tests.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}
