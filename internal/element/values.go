package element

import (
	"fmt"

	"github.com/udisondev/elemcore/internal/model"
)

// Values reads and writes element values through the host store,
// clamping every write to the element's range.
type Values struct {
	registry *Registry
	store    model.ElementStore
}

// NewValues creates accessors over store.
func NewValues(registry *Registry, store model.ElementStore) *Values {
	return &Values{registry: registry, store: store}
}

// Registry returns the registry used for lookups.
func (v *Values) Registry() *Registry { return v.registry }

// Get returns the actor's value, or the element default when the store has none.
func (v *Values) Get(actor model.ActorID, id model.ElementID) (float64, error) {
	def, ok := v.registry.Get(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	val, ok := v.store.ElementValue(actor, id)
	if !ok {
		return def.DefaultValue, nil
	}
	return def.Clamp(val), nil
}

// Set writes clamp(value, min, max) and returns the stored value.
func (v *Values) Set(actor model.ActorID, id model.ElementID, value float64) (float64, error) {
	def, ok := v.registry.Get(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	clamped := def.Clamp(value)
	v.store.SetElementValue(actor, id, clamped)
	return clamped, nil
}

// Snapshot copies the actor's value of every registered element.
func (v *Values) Snapshot(actor model.ActorID) model.ElementSnapshot {
	ids := v.registry.IDs()
	snap := make(model.ElementSnapshot, len(ids))
	for _, id := range ids {
		if val, err := v.Get(actor, id); err == nil {
			snap[id] = val
		}
	}
	return snap
}
