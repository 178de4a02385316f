// Package element keeps element definitions and clamps element values
// written through the host's element store.
package element

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/udisondev/elemcore/internal/data"
	"github.com/udisondev/elemcore/internal/model"
)

// CodePriority is the priority of code registrations; they shadow config packs.
const CodePriority = 1000

var (
	ErrUnknownElement = errors.New("unknown element")
	ErrInvalidRange   = errors.New("invalid element range")
)

// Registry resolves element definitions from the merged elements layer.
// Register/Unregister manage the code-registration source of that layer.
type Registry struct {
	layer *data.Layer[model.ElementDefinition]
	code  *data.StaticSource[model.ElementDefinition]
}

// NewRegistry attaches a code source to the elements layer of m.
func NewRegistry(m *data.Manager) (*Registry, error) {
	layer, err := data.LayerFor[model.ElementDefinition](m, data.TypeElements)
	if err != nil {
		return nil, fmt.Errorf("element registry: %w", err)
	}
	code := data.NewStaticSource[model.ElementDefinition]("code", CodePriority)
	layer.RegisterSource(code)
	return &Registry{layer: layer, code: code}, nil
}

// Register adds or re-registers an element.
func (r *Registry) Register(def model.ElementDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRange, err)
	}
	if err := r.code.Put(def); err != nil {
		return err
	}
	r.layer.Invalidate()
	slog.Debug("element registered", "element", def.ID, "min", def.MinValue, "max", def.MaxValue)
	return nil
}

// Unregister removes a code registration. Definitions coming from packs stay.
func (r *Registry) Unregister(id model.ElementID) bool {
	if !r.code.Delete(string(id)) {
		return false
	}
	r.layer.Invalidate()
	return true
}

// Get returns the authoritative definition of id.
func (r *Registry) Get(id model.ElementID) (model.ElementDefinition, bool) {
	return r.layer.Get(string(id))
}

// IsRegistered reports whether id resolves to a definition.
func (r *Registry) IsRegistered(id model.ElementID) bool {
	_, ok := r.Get(id)
	return ok
}

// IDs returns every registered element id, sorted.
func (r *Registry) IDs() []model.ElementID {
	all := r.layer.All()
	ids := make([]model.ElementID, 0, len(all))
	for id := range all {
		ids = append(ids, model.ElementID(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clamp bounds v to the element's range.
func (r *Registry) Clamp(id model.ElementID, v float64) (float64, error) {
	def, ok := r.Get(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	return def.Clamp(v), nil
}
