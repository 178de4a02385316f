package element

import (
	"maps"
	"sync"

	"github.com/udisondev/elemcore/internal/model"
)

// MemoryStore is an in-process ElementStore and Liveness.
// Used by the simulator and tests in place of a host engine.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[model.ActorID]map[model.ElementID]float64
	alive  map[model.ActorID]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[model.ActorID]map[model.ElementID]float64),
		alive:  make(map[model.ActorID]bool),
	}
}

// Spawn marks actor alive.
func (s *MemoryStore) Spawn(actor model.ActorID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive[actor] = true
}

// Kill marks actor dead and drops its values.
func (s *MemoryStore) Kill(actor model.ActorID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.alive, actor)
	delete(s.values, actor)
}

func (s *MemoryStore) Alive(actor model.ActorID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alive[actor]
}

func (s *MemoryStore) ElementValue(actor model.ActorID, id model.ElementID) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[actor][id]
	return v, ok
}

func (s *MemoryStore) SetElementValue(actor model.ActorID, id model.ElementID, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vals, ok := s.values[actor]
	if !ok {
		vals = make(map[model.ElementID]float64)
		s.values[actor] = vals
	}
	vals[id] = value
}

// Values returns a copy of the actor's stored values.
func (s *MemoryStore) Values(actor model.ActorID) model.ElementSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.ElementSnapshot(maps.Clone(s.values[actor]))
}

// Actors returns every live actor.
func (s *MemoryStore) Actors() []model.ActorID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ActorID, 0, len(s.alive))
	for id := range s.alive {
		out = append(out, id)
	}
	return out
}
