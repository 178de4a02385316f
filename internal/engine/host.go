package engine

import (
	"maps"
	"sort"
	"sync"

	"github.com/udisondev/elemcore/internal/element"
	"github.com/udisondev/elemcore/internal/model"
)

// Host is everything the engine needs from the game it is embedded in.
type Host interface {
	model.ElementStore
	model.Liveness
	model.ModifierSink
	// Environment reports where actor stands, false when the host lost it.
	Environment(actor model.ActorID) (model.Environment, bool)
	// ApplyStatusEffect applies one status effect request.
	ApplyStatusEffect(actor model.ActorID, eff model.StatusEffect)
	// Actors lists live actors the engine should tick.
	Actors() []model.ActorID
}

// MemoryHost is an in-process Host for the simulator and tests.
type MemoryHost struct {
	*element.MemoryStore

	mu        sync.RWMutex
	env       map[model.ActorID]model.Environment
	modifiers map[model.ActorID]map[string]model.AttributeModifier
	effects   map[model.ActorID][]model.StatusEffect
}

func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		MemoryStore: element.NewMemoryStore(),
		env:         make(map[model.ActorID]model.Environment),
		modifiers:   make(map[model.ActorID]map[string]model.AttributeModifier),
		effects:     make(map[model.ActorID][]model.StatusEffect),
	}
}

// SpawnAt marks actor alive in env.
func (h *MemoryHost) SpawnAt(actor model.ActorID, env model.Environment) {
	h.MemoryStore.Spawn(actor)
	h.SetEnvironment(actor, env)
}

// Kill drops the actor with everything the host held for it.
func (h *MemoryHost) Kill(actor model.ActorID) {
	h.MemoryStore.Kill(actor)
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.env, actor)
	delete(h.modifiers, actor)
	delete(h.effects, actor)
}

func (h *MemoryHost) SetEnvironment(actor model.ActorID, env model.Environment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.env[actor] = env
}

func (h *MemoryHost) Environment(actor model.ActorID) (model.Environment, bool) {
	if !h.Alive(actor) {
		return model.Environment{}, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.env[actor], true
}

func (h *MemoryHost) ApplyModifier(actor model.ActorID, mod model.AttributeModifier) {
	h.mu.Lock()
	defer h.mu.Unlock()
	mods, ok := h.modifiers[actor]
	if !ok {
		mods = make(map[string]model.AttributeModifier)
		h.modifiers[actor] = mods
	}
	mods[mod.ID] = mod
}

func (h *MemoryHost) RemoveModifier(actor model.ActorID, modifierID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.modifiers[actor], modifierID)
}

func (h *MemoryHost) ApplyStatusEffect(actor model.ActorID, eff model.StatusEffect) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.effects[actor] = append(h.effects[actor], eff)
}

// Modifiers returns a copy of the modifiers held for actor.
func (h *MemoryHost) Modifiers(actor model.ActorID) map[string]model.AttributeModifier {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return maps.Clone(h.modifiers[actor])
}

// Effects returns the status effects applied to actor so far.
func (h *MemoryHost) Effects(actor model.ActorID) []model.StatusEffect {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]model.StatusEffect(nil), h.effects[actor]...)
}

// Actors returns live actors in id order.
func (h *MemoryHost) Actors() []model.ActorID {
	ids := h.MemoryStore.Actors()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
