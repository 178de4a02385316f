package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/udisondev/elemcore/internal/model"
)

// ErrUnknownBinding is returned by Bind for an entity type without a binding.
var ErrUnknownBinding = errors.New("unknown entity binding")

// Bind initializes actor from the entity binding of entityType: element
// values are written (clamped) and spawn mounts applied. Unknown elements
// are skipped with a warning.
func (e *Engine) Bind(actor model.ActorID, entityType string) error {
	b, ok := e.bindings.Get(entityType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBinding, entityType)
	}
	for id, v := range b.Elements {
		if _, err := e.Values.Set(actor, id, v); err != nil {
			slog.Warn("binding references unknown element", "binding", b.ID, "element", id, "err", err)
		}
	}
	for _, m := range b.Mounts {
		e.Mounts.ApplyMount(actor, m.Element, m.Amount, m.Duration, m.Probability, m.StackBehavior)
	}
	slog.Debug("entity bound", "actor", actor, "binding", b.ID,
		"elements", len(b.Elements), "mounts", len(b.Mounts))
	return nil
}

// Bindings returns the ids of every merged entity binding, sorted.
func (e *Engine) Bindings() []string {
	all := e.bindings.All()
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
