package data

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// StaticSource holds definitions registered from code.
// Thread-safe; Put and Delete do not invalidate layers, callers do.
type StaticSource[T Record] struct {
	name     string
	priority int

	mu    sync.RWMutex
	items map[string]T
}

// NewStaticSource creates an empty code-registration source.
func NewStaticSource[T Record](name string, priority int) *StaticSource[T] {
	return &StaticSource[T]{
		name:     name,
		priority: priority,
		items:    make(map[string]T),
	}
}

func (s *StaticSource[T]) SourceType() string      { return s.name }
func (s *StaticSource[T]) Priority() int           { return s.priority }
func (s *StaticSource[T]) SupportsHotReload() bool { return false }
func (s *StaticSource[T]) Available() bool         { return true }

// Load returns a copy of the registered definitions.
func (s *StaticSource[T]) Load(context.Context) (map[string]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.items), nil
}

// Put validates and stores def, replacing any definition with the same id.
func (s *StaticSource[T]) Put(def T) error {
	id := def.RecordID()
	if id == "" {
		return ErrMissingID
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("registering %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = def
	return nil
}

// Delete removes id; returns false when it was not registered.
func (s *StaticSource[T]) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

// Len returns the number of registered definitions.
func (s *StaticSource[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
