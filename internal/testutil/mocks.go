package testutil

import (
	"context"
	"maps"
	"sync"

	"github.com/udisondev/elemcore/internal/model"
)

// FixedRand — model.Rand, всегда возвращающий V.
// V=0 проходит любую вероятность > 0, V=1 не проходит ни одну.
type FixedRand struct {
	mu sync.Mutex
	V  float64
}

func (r *FixedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.V
}

// Set меняет возвращаемое значение.
func (r *FixedRand) Set(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.V = v
}

// ModifierCall — один вызов RecordingSink.
type ModifierCall struct {
	Op       string // "apply" | "remove"
	Actor    model.ActorID
	Modifier model.AttributeModifier
	ID       string
}

// RecordingSink — model.ModifierSink, который записывает вызовы и
// держит модификаторы так же, как хост: повторный Apply с тем же ID заменяет.
type RecordingSink struct {
	mu    sync.Mutex
	calls []ModifierCall
	held  map[model.ActorID]map[string]model.AttributeModifier
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{held: make(map[model.ActorID]map[string]model.AttributeModifier)}
}

func (s *RecordingSink) ApplyModifier(actor model.ActorID, mod model.AttributeModifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ModifierCall{Op: "apply", Actor: actor, Modifier: mod, ID: mod.ID})
	if s.held[actor] == nil {
		s.held[actor] = make(map[string]model.AttributeModifier)
	}
	s.held[actor][mod.ID] = mod
}

func (s *RecordingSink) RemoveModifier(actor model.ActorID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ModifierCall{Op: "remove", Actor: actor, ID: id})
	delete(s.held[actor], id)
}

// Calls возвращает копию всех вызовов.
func (s *RecordingSink) Calls() []ModifierCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ModifierCall(nil), s.calls...)
}

// Held возвращает модификаторы, которые сейчас держит actor.
func (s *RecordingSink) Held(actor model.ActorID) map[string]model.AttributeModifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := maps.Clone(s.held[actor])
	if out == nil {
		out = make(map[string]model.AttributeModifier)
	}
	return out
}

// MockDefinitionStore — in-memory хранилище определений (data.DefinitionStore).
// Не требует реального PostgreSQL.
type MockDefinitionStore struct {
	mu    sync.RWMutex
	rows  map[string]map[string][]byte
	Down  bool  // Ping возвращает ошибку
	Err   error // LoadDefinitions возвращает Err
	loads int
}

func NewMockDefinitionStore() *MockDefinitionStore {
	return &MockDefinitionStore{rows: make(map[string]map[string][]byte)}
}

// Put сохраняет payload под (dataType, id).
func (m *MockDefinitionStore) Put(dataType, id string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[dataType] == nil {
		m.rows[dataType] = make(map[string][]byte)
	}
	m.rows[dataType][id] = payload
}

func (m *MockDefinitionStore) LoadDefinitions(_ context.Context, dataType string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.Err != nil {
		return nil, m.Err
	}
	return maps.Clone(m.rows[dataType]), nil
}

func (m *MockDefinitionStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Down {
		return ErrSimulated
	}
	return nil
}

// Loads возвращает число вызовов LoadDefinitions.
func (m *MockDefinitionStore) Loads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loads
}
