package reaction

import (
	"context"

	"github.com/udisondev/elemcore/internal/model"
)

// Handler is a host-registered extension that contributes to internal and
// induced reactions. Handlers run before the built-in evaluation and never
// replace it.
type Handler interface {
	Name() string
	CanHandleInternal(def model.ReactionDefinition, actor model.Subject) bool
	ProcessInternal(ctx context.Context, def model.ReactionDefinition, actor model.Subject) (Result, error)
	CanHandleInduced(def model.ReactionDefinition, attacker, target model.Subject) bool
	ProcessInduced(ctx context.Context, def model.ReactionDefinition, attacker, target model.Subject) (Result, error)
}

// RegisterHandler appends h; handlers run in registration order.
func (e *Engine) RegisterHandler(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Handlers returns a copy of the registered handlers.
func (e *Engine) Handlers() []Handler {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Handler, len(e.handlers))
	copy(out, e.handlers)
	return out
}
