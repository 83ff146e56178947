package app

import (
	"context"
	"sync"
)

// Memory is the in-process App Registry backend, grounded on the
// original implementation's "array" app manager: a fixed list of apps
// held entirely in memory, with no backing store to refresh from.
type Memory struct {
	mu      sync.RWMutex
	byID    map[string]App
	byKey   map[string]App
}

// NewMemory returns a Memory registry preloaded with apps.
func NewMemory(apps []App) *Memory {
	m := &Memory{byID: make(map[string]App), byKey: make(map[string]App)}
	for _, a := range apps {
		m.byID[a.ID] = a
		m.byKey[a.Key] = a
	}
	return m
}

func (m *Memory) ByKey(ctx context.Context, key string) (App, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byKey[key]
	if !ok {
		return App{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) ByID(ctx context.Context, id string) (App, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byID[id]
	if !ok {
		return App{}, ErrNotFound
	}
	return a, nil
}

// Put inserts or replaces an app record, used by boot-time demo app
// registration and by tests.
func (m *Memory) Put(a App) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[a.ID] = a
	m.byKey[a.Key] = a
}

func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

func (m *Memory) Close() error { return nil }
