package reaction

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/udisondev/elemcore/internal/condition"
	"github.com/udisondev/elemcore/internal/data"
	"github.com/udisondev/elemcore/internal/model"
)

var tracer = otel.Tracer("github.com/udisondev/elemcore/internal/reaction")

// Engine resolves reactions from the merged reaction layers.
//
// Thread-safe: resolution only reads the merged views and the handler list.
type Engine struct {
	reactions     *data.Layer[model.ReactionDefinition]
	attackDefense *data.Layer[model.AttackDefenseReaction]
	conditions    *condition.Evaluator
	limiter       *model.LogLimiter

	mu       sync.RWMutex
	handlers []Handler
}

// NewEngine binds the engine to the reaction layers of m.
func NewEngine(m *data.Manager, conditions *condition.Evaluator) (*Engine, error) {
	reactions, err := data.LayerFor[model.ReactionDefinition](m, data.TypeReactions)
	if err != nil {
		return nil, fmt.Errorf("reaction engine: %w", err)
	}
	attackDefense, err := data.LayerFor[model.AttackDefenseReaction](m, data.TypeAttackDefense)
	if err != nil {
		return nil, fmt.Errorf("reaction engine: %w", err)
	}
	return &Engine{
		reactions:     reactions,
		attackDefense: attackDefense,
		conditions:    conditions,
		limiter:       model.NewLogLimiter(30 * time.Second),
	}, nil
}

// ResolveAttack composes the attack side: attack entries of triggered
// attack/defense reactions plus induced reactions, with queued mounts.
func (e *Engine) ResolveAttack(ctx context.Context, attacker, target model.Subject) Result {
	ctx, span := tracer.Start(ctx, "reaction.attack", trace.WithAttributes(
		attribute.Int64("attacker", int64(attacker.ID)),
		attribute.Int64("target", int64(target.ID)),
	))
	defer span.End()

	res := NewResult()
	for _, r := range e.sortedAttackDefense() {
		e.guard(r.ID, func() error {
			if !e.triggers(r, attacker, target) {
				return nil
			}
			local := NewResult()
			if r.Attack != nil {
				local.applyOutcome(*r.Attack)
			}
			e.queueMounts(&local, r, attacker, target)
			local.Triggered = append(local.Triggered, r.ID)
			res.Merge(local)
			return nil
		})
	}
	e.resolveInduced(ctx, &res, attacker, target)

	span.SetAttributes(attribute.Int("reactions.triggered", len(res.Triggered)))
	return res
}

// ResolveDefense composes the defense side for defender being hit by attacker.
// Mounts are queued by ResolveAttack only, so one exchange rolls them once.
func (e *Engine) ResolveDefense(ctx context.Context, defender, attacker model.Subject) Result {
	_, span := tracer.Start(ctx, "reaction.defense", trace.WithAttributes(
		attribute.Int64("defender", int64(defender.ID)),
		attribute.Int64("attacker", int64(attacker.ID)),
	))
	defer span.End()

	res := NewResult()
	for _, r := range e.sortedAttackDefense() {
		e.guard(r.ID, func() error {
			if r.Defense == nil || !e.triggers(r, attacker, defender) {
				return nil
			}
			local := NewResult()
			local.applyOutcome(*r.Defense)
			local.Triggered = append(local.Triggered, r.ID)
			res.Merge(local)
			return nil
		})
	}

	span.SetAttributes(attribute.Int("reactions.triggered", len(res.Triggered)))
	return res
}

// ResolveExchange merges the attack and defense results of one hit.
// The merged result is oriented from the attacker: the defender's self
// effects become target effects and its target effects land on the attacker.
func (e *Engine) ResolveExchange(ctx context.Context, attacker, target model.Subject) Result {
	res := e.ResolveAttack(ctx, attacker, target)
	res.Merge(e.ResolveDefense(ctx, target, attacker).Mirrored())
	return res
}

// ResolveInternal evaluates self-only reactions of actor. Each entry whose
// match elements are all active multiplies DamageMultiplier by
// rate * average(values).
func (e *Engine) ResolveInternal(ctx context.Context, actor model.Subject) Result {
	ctx, span := tracer.Start(ctx, "reaction.internal", trace.WithAttributes(
		attribute.Int64("actor", int64(actor.ID)),
	))
	defer span.End()

	res := NewResult()
	handlers := e.Handlers()
	for _, def := range e.definitions(model.ReactionInternal) {
		for _, h := range handlers {
			e.guard(h.Name()+"/"+def.Key, func() error {
				if !h.CanHandleInternal(def, actor) {
					return nil
				}
				hr, err := h.ProcessInternal(ctx, def, actor)
				if err != nil {
					return err
				}
				res.Merge(hr)
				return nil
			})
		}

		e.guard(def.Key, func() error {
			local := NewResult()
			for _, entry := range def.Entries {
				avg, ok := averageIfAllActive(actor.Elements, entry.MatchElements)
				if !ok {
					continue
				}
				local.DamageMultiplier *= entry.Rate * avg
				local.applyEffect(entry.Effect)
				local.Triggered = append(local.Triggered, def.Key)
			}
			res.Merge(local)
			return nil
		})
	}

	span.SetAttributes(attribute.Int("reactions.triggered", len(res.Triggered)))
	return res
}

// resolveInduced: an entry triggers when the attacker's strongest active
// element is MatchElements[0] and the target has MatchElements[1] active.
func (e *Engine) resolveInduced(ctx context.Context, res *Result, attacker, target model.Subject) {
	handlers := e.Handlers()
	strongest, _, hasAny := attacker.Elements.Strongest()

	for _, def := range e.definitions(model.ReactionInduced) {
		for _, h := range handlers {
			e.guard(h.Name()+"/"+def.Key, func() error {
				if !h.CanHandleInduced(def, attacker, target) {
					return nil
				}
				hr, err := h.ProcessInduced(ctx, def, attacker, target)
				if err != nil {
					return err
				}
				res.Merge(hr)
				return nil
			})
		}

		if !hasAny {
			continue
		}
		e.guard(def.Key, func() error {
			// partial results of a failing definition are discarded
			local := NewResult()
			for _, entry := range def.Entries {
				if len(entry.MatchElements) != 2 || len(entry.RateArray) != 2 {
					return fmt.Errorf("malformed induced entry in %s", def.Key)
				}
				if entry.MatchElements[0] != strongest || !target.Elements.Has(entry.MatchElements[1]) {
					continue
				}
				local.DamageRate *= entry.RateArray[0]
				local.DefenseRate *= entry.RateArray[1]
				local.applyEffect(entry.Effect)
				local.Triggered = append(local.Triggered, def.Key)
			}
			res.Merge(local)
			return nil
		})
	}
}

// triggers checks the element pair in either direction and the conditions.
func (e *Engine) triggers(r model.AttackDefenseReaction, attacker, target model.Subject) bool {
	a, b := r.ElementA, r.ElementB
	pair := (attacker.Elements.Has(a) && target.Elements.Has(b)) ||
		(attacker.Elements.Has(b) && target.Elements.Has(a))
	if !pair {
		return false
	}
	if c := r.Conditions; c != nil {
		if !e.conditions.Evaluate(c.Attacker, attacker) ||
			!e.conditions.Evaluate(c.Target, target) ||
			!e.conditions.Evaluate(c.World, attacker) {
			return false
		}
	}
	return true
}

func (e *Engine) queueMounts(res *Result, r model.AttackDefenseReaction, attacker, target model.Subject) {
	receiver := target.ID
	if r.MountReceiver() == model.MountOnSelf {
		receiver = attacker.ID
	}
	if r.Mount != nil {
		res.Mounts = append(res.Mounts, MountApplication{Actor: receiver, Mount: *r.Mount, Source: r.ID})
	}
	if r.AdvancedMount != nil {
		res.AdvancedMounts = append(res.AdvancedMounts, AdvancedMountApplication{Actor: receiver, Mount: *r.AdvancedMount, Source: r.ID})
	}
}

// guard runs one reaction or handler; errors and panics mean "did not trigger".
func (e *Engine) guard(key string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.limiter.Warn("reaction:"+key, "reaction evaluation panicked, skipped",
				"reaction", key, "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(); err != nil {
		e.limiter.Warn("reaction:"+key, "reaction evaluation failed, skipped",
			"reaction", key, "err", err)
	}
}

// sortedAttackDefense orders reactions by priority (highest first), then id.
func (e *Engine) sortedAttackDefense() []model.AttackDefenseReaction {
	all := e.attackDefense.All()
	out := make([]model.AttackDefenseReaction, 0, len(all))
	for _, r := range all {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (e *Engine) definitions(kind model.ReactionKind) []model.ReactionDefinition {
	all := e.reactions.All()
	out := make([]model.ReactionDefinition, 0, len(all))
	for _, def := range all {
		if def.Kind == kind {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func averageIfAllActive(elements model.ElementSnapshot, ids []model.ElementID) (float64, bool) {
	if len(ids) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, id := range ids {
		if !elements.Has(id) {
			return 0, false
		}
		sum += elements.Value(id)
	}
	return sum / float64(len(ids)), true
}
