package data

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// invalidator is the type-erased view of a Layer held by the Manager.
type invalidator interface {
	DataType() DataType
	Invalidate()
}

// Manager aggregates one Layer per data type and fans out reload notifications.
//
// Thread-safe. Layers are created on first use by LayerFor and live for the
// lifetime of the Manager.
type Manager struct {
	strategy    Strategy
	loadTimeout time.Duration

	mu        sync.RWMutex
	layers    map[DataType]invalidator
	listeners []func(DataType)
}

// Option configures a Manager.
type Option func(*Manager)

// WithStrategy sets the merge strategy used by every layer.
func WithStrategy(s Strategy) Option {
	return func(m *Manager) { m.strategy = s }
}

// WithLoadTimeout bounds a single merge pass (all sources of one type).
func WithLoadTimeout(d time.Duration) Option {
	return func(m *Manager) { m.loadTimeout = d }
}

// NewManager creates an empty Manager using PriorityHighest by default.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		strategy:    PriorityHighest,
		loadTimeout: 10 * time.Second,
		layers:      make(map[DataType]invalidator),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LayerFor returns the layer for dt, creating it on first use.
// Returns ErrTypeMismatch if dt was created with another record type.
func LayerFor[T any](m *Manager, dt DataType) (*Layer[T], error) {
	m.mu.RLock()
	existing, ok := m.layers[dt]
	m.mu.RUnlock()
	if ok {
		return castLayer[T](existing, dt)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.layers[dt]; ok {
		return castLayer[T](existing, dt)
	}
	l := newLayer[T](dt, m.strategy, m.loadTimeout, m.notify)
	m.layers[dt] = l
	return l, nil
}

// MustLayer is LayerFor for wiring code where a mismatch is a programming error.
func MustLayer[T any](m *Manager, dt DataType) *Layer[T] {
	l, err := LayerFor[T](m, dt)
	if err != nil {
		panic(err)
	}
	return l
}

func castLayer[T any](inv invalidator, dt DataType) (*Layer[T], error) {
	l, ok := inv.(*Layer[T])
	if !ok {
		return nil, fmt.Errorf("layer %s: %w", dt, ErrTypeMismatch)
	}
	return l, nil
}

// RegisterSource registers src for dt and invalidates that type's view.
func RegisterSource[T any](m *Manager, dt DataType, src Source[T]) error {
	l, err := LayerFor[T](m, dt)
	if err != nil {
		return err
	}
	l.RegisterSource(src)
	return nil
}

// Get returns the merged definition of id for dt.
func Get[T any](m *Manager, dt DataType, id string) (T, bool) {
	var zero T
	l, err := m.existing(dt)
	if err != nil {
		return zero, false
	}
	typed, ok := l.(*Layer[T])
	if !ok {
		return zero, false
	}
	return typed.Get(id)
}

// GetMap returns the merged view of dt, nil for unknown types.
// IMPORTANT: the map is shared and must not be modified.
func GetMap[T any](m *Manager, dt DataType) map[string]T {
	l, err := m.existing(dt)
	if err != nil {
		return nil
	}
	typed, ok := l.(*Layer[T])
	if !ok {
		return nil
	}
	return typed.All()
}

func (m *Manager) existing(dt DataType) (invalidator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.layers[dt]
	if !ok {
		return nil, fmt.Errorf("%s: %w", dt, ErrUnknownType)
	}
	return l, nil
}

// OnReload registers a listener called after a type is reloaded.
// Listeners run synchronously on the reloading goroutine.
func (m *Manager) OnReload(fn func(DataType)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// ReloadData drops the cached view of dt and notifies listeners.
func (m *Manager) ReloadData(dt DataType) error {
	l, err := m.existing(dt)
	if err != nil {
		return err
	}
	l.Invalidate()
	m.notify(dt)
	return nil
}

// ReloadAllData reloads every registered type in a stable order.
func (m *Manager) ReloadAllData() {
	for _, dt := range m.Types() {
		if err := m.ReloadData(dt); err != nil {
			slog.Warn("reload failed", "type", dt, "err", err)
		}
	}
}

// Types returns the registered data types sorted by name.
func (m *Manager) Types() []DataType {
	m.mu.RLock()
	types := make([]DataType, 0, len(m.layers))
	for dt := range m.layers {
		types = append(types, dt)
	}
	m.mu.RUnlock()

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (m *Manager) notify(dt DataType) {
	m.mu.RLock()
	listeners := make([]func(DataType), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	slog.Info("data reloaded", "type", dt, "listeners", len(listeners))
	for _, fn := range listeners {
		fn(dt)
	}
}
