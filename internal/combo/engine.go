// Package combo tracks which multi-element combinations each actor satisfies
// and drives the lifecycle of the attribute modifiers they grant.
package combo

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/udisondev/elemcore/internal/condition"
	"github.com/udisondev/elemcore/internal/data"
	"github.com/udisondev/elemcore/internal/model"
)

// Config tunes durations and the change-detection cache.
type Config struct {
	// CheckThreshold is the element delta below which a re-check is skipped.
	CheckThreshold float64
	// CacheMaxAge forces a re-check after this many ticks. 0 disables skipping.
	CacheMaxAge int64
	// DefaultDuration of combination modifiers, in ticks. <= 0 means permanent.
	DefaultDuration int32
	// RefreshMargin re-applies a timed modifier this many ticks before it expires.
	RefreshMargin int32
	// Durations overrides DefaultDuration per combination id.
	Durations map[string]int32
}

func DefaultConfig() Config {
	return Config{
		CheckThreshold:  0.01,
		CacheMaxAge:     40,
		DefaultDuration: 200,
		RefreshMargin:   20,
	}
}

// Transition lists the combinations that changed state during one check.
type Transition struct {
	Activated   []string
	Deactivated []string
}

// Changed reports whether any combination changed state.
func (t Transition) Changed() bool {
	return len(t.Activated) > 0 || len(t.Deactivated) > 0
}

// Engine evaluates combination definitions per actor.
//
// Checks of different actors may run concurrently; each actor's state has
// its own lock.
type Engine struct {
	cfg        Config
	layer      *data.Layer[model.CombinationDefinition]
	conditions *condition.Evaluator
	sink       model.ModifierSink
	subjects   model.SubjectSource
	clock      model.Clock
	limiter    *model.LogLimiter

	defsMu  sync.RWMutex
	defs    []model.CombinationDefinition
	tracked []model.ElementID
	loaded  bool

	mu     sync.RWMutex
	states map[model.ActorID]*actorState
}

// NewEngine binds the engine to the combination layer of m and subscribes
// it to combination reloads.
func NewEngine(cfg Config, m *data.Manager, conditions *condition.Evaluator, sink model.ModifierSink, subjects model.SubjectSource, clock model.Clock) (*Engine, error) {
	layer, err := data.LayerFor[model.CombinationDefinition](m, data.TypeCombinations)
	if err != nil {
		return nil, fmt.Errorf("combination engine: %w", err)
	}
	e := &Engine{
		cfg:        cfg,
		layer:      layer,
		conditions: conditions,
		sink:       sink,
		subjects:   subjects,
		clock:      clock,
		limiter:    model.NewLogLimiter(30 * time.Second),
		states:     make(map[model.ActorID]*actorState),
	}
	m.OnReload(func(dt data.DataType) {
		if dt == data.TypeCombinations {
			e.Reload()
		}
	})
	return e, nil
}

// CheckAndApply re-evaluates every combination for s and emits modifier
// add/remove requests for the ones that changed state. Running it twice
// with unchanged elements is a no-op.
func (e *Engine) CheckAndApply(s model.Subject) Transition {
	return e.check(s, false)
}

// Recheck is CheckAndApply without the change-detection shortcut.
func (e *Engine) Recheck(s model.Subject) Transition {
	return e.check(s, true)
}

func (e *Engine) check(s model.Subject, force bool) Transition {
	defs, tracked := e.definitions()
	st := e.state(s.ID)
	now := e.clock.Tick()

	st.mu.Lock()
	defer st.mu.Unlock()

	fresh := e.cfg.CacheMaxAge > 0 && now-st.checkedAt <= e.cfg.CacheMaxAge
	if !force && fresh && st.unchanged(s.Elements, tracked, e.cfg.CheckThreshold) {
		e.refresh(s.ID, st, now)
		return Transition{}
	}

	var tr Transition
	present := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		present[def.ID] = struct{}{}
		satisfied := e.satisfiedSafe(def, s)
		_, active := st.active[def.ID]
		switch {
		case satisfied && !active:
			e.activate(s.ID, st, def, now)
			tr.Activated = append(tr.Activated, def.ID)
		case !satisfied && active:
			e.deactivate(s.ID, st, def.ID)
			tr.Deactivated = append(tr.Deactivated, def.ID)
		}
	}
	// definitions removed by a reload
	for _, id := range st.activeIDs() {
		if _, ok := present[id]; !ok {
			e.deactivate(s.ID, st, id)
			tr.Deactivated = append(tr.Deactivated, id)
		}
	}

	e.refresh(s.ID, st, now)
	st.remember(s.Elements, tracked, now)

	sort.Strings(tr.Deactivated)
	return tr
}

// Satisfied reports whether s currently meets every requirement of def:
// required elements first, then forbidden ones, min values, conditions.
func (e *Engine) Satisfied(def model.CombinationDefinition, s model.Subject) bool {
	for _, id := range def.Required {
		if !s.Elements.Has(id) {
			return false
		}
	}
	for _, id := range def.Forbidden {
		if s.Elements.Has(id) {
			return false
		}
	}
	for id, threshold := range def.MinValues {
		if s.Elements.Value(id) < threshold {
			return false
		}
	}
	if def.Conditions != nil && !e.conditions.Evaluate(def.Conditions, s) {
		return false
	}
	return true
}

func (e *Engine) satisfiedSafe(def model.CombinationDefinition, s model.Subject) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.limiter.Warn("combo:"+def.ID, "combination evaluation panicked, treated as inactive",
				"combination", def.ID, "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	return e.Satisfied(def, s)
}

func (e *Engine) activate(actor model.ActorID, st *actorState, def model.CombinationDefinition, now int64) {
	st.active[def.ID] = struct{}{}
	duration := e.duration(def)
	for _, eff := range def.Effects {
		mod := model.AttributeModifier{
			ID:        ModifierID(def.ID, eff.Attribute),
			Attribute: eff.Attribute,
			Operation: eff.Operation,
			Amount:    eff.Amount,
			Duration:  duration,
		}
		st.modifiers[modifierKey{combo: def.ID, attribute: eff.Attribute}] = appliedModifier{combo: def.ID, modifier: mod, appliedAt: now}
		e.sink.ApplyModifier(actor, mod)
	}
}

func (e *Engine) deactivate(actor model.ActorID, st *actorState, comboID string) {
	delete(st.active, comboID)
	for key, am := range st.modifiers {
		if am.combo != comboID {
			continue
		}
		e.sink.RemoveModifier(actor, am.modifier.ID)
		delete(st.modifiers, key)
	}
}

// refresh re-applies timed modifiers that are about to expire while their
// combination stays active.
func (e *Engine) refresh(actor model.ActorID, st *actorState, now int64) {
	for key, am := range st.modifiers {
		if am.modifier.Permanent() {
			continue
		}
		expiresAt := am.appliedAt + int64(am.modifier.Duration)
		if now < expiresAt-int64(e.cfg.RefreshMargin) {
			continue
		}
		am.appliedAt = now
		st.modifiers[key] = am
		e.sink.ApplyModifier(actor, am.modifier)
	}
}

func (e *Engine) duration(def model.CombinationDefinition) int32 {
	if def.Duration != 0 {
		return def.Duration
	}
	if d, ok := e.cfg.Durations[def.ID]; ok {
		return d
	}
	return e.cfg.DefaultDuration
}

// Reload re-derives definitions from the data layer and re-checks every
// tracked actor. Actors the host no longer knows are dropped.
func (e *Engine) Reload() {
	e.defsMu.Lock()
	e.loaded = false
	e.defsMu.Unlock()

	for _, actor := range e.Tracked() {
		s, ok := e.subjects.Subject(actor)
		if !ok {
			e.Forget(actor)
			continue
		}
		e.Recheck(s)
	}
}

func (e *Engine) definitions() ([]model.CombinationDefinition, []model.ElementID) {
	e.defsMu.RLock()
	if e.loaded {
		defs, tracked := e.defs, e.tracked
		e.defsMu.RUnlock()
		return defs, tracked
	}
	e.defsMu.RUnlock()

	e.defsMu.Lock()
	defer e.defsMu.Unlock()
	if !e.loaded {
		e.defs, e.tracked = derive(e.layer.All())
		e.loaded = true
	}
	return e.defs, e.tracked
}

func derive(all map[string]model.CombinationDefinition) ([]model.CombinationDefinition, []model.ElementID) {
	defs := make([]model.CombinationDefinition, 0, len(all))
	seen := make(map[model.ElementID]struct{})
	var tracked []model.ElementID
	for _, def := range all {
		defs = append(defs, def)
		for _, id := range def.Elements() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			tracked = append(tracked, id)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	sort.Slice(tracked, func(i, j int) bool { return tracked[i] < tracked[j] })
	return defs, tracked
}

// Active returns the active combination ids of actor, sorted.
func (e *Engine) Active(actor model.ActorID) []string {
	st := e.lookup(actor)
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.activeIDs()
}

// IsActive reports whether comboID is active for actor.
func (e *Engine) IsActive(actor model.ActorID, comboID string) bool {
	st := e.lookup(actor)
	if st == nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.active[comboID]
	return ok
}

// Tracked returns actors with combination state, sorted.
func (e *Engine) Tracked() []model.ActorID {
	e.mu.RLock()
	out := make([]model.ActorID, 0, len(e.states))
	for id := range e.states {
		out = append(out, id)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Deactivate removes every modifier of actor and drops its state.
func (e *Engine) Deactivate(actor model.ActorID) {
	st := e.lookup(actor)
	if st == nil {
		return
	}
	st.mu.Lock()
	for _, id := range st.activeIDs() {
		e.deactivate(actor, st, id)
	}
	st.mu.Unlock()
	e.Forget(actor)
}

// Forget drops actor state without emitting removals; the host already
// discarded the actor's modifiers.
func (e *Engine) Forget(actor model.ActorID) {
	e.mu.Lock()
	delete(e.states, actor)
	e.mu.Unlock()
}

// Sweep forgets actors that are no longer alive and returns how many.
func (e *Engine) Sweep(live model.Liveness) int {
	n := 0
	for _, actor := range e.Tracked() {
		if !live.Alive(actor) {
			e.Forget(actor)
			n++
		}
	}
	return n
}

func (e *Engine) lookup(actor model.ActorID) *actorState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.states[actor]
}

func (e *Engine) state(actor model.ActorID) *actorState {
	if st := e.lookup(actor); st != nil {
		return st
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[actor]
	if !ok {
		st = newActorState()
		e.states[actor] = st
	}
	return st
}
