package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/udisondev/elemcore/internal/model"
	"github.com/udisondev/elemcore/internal/reaction"
)

// ErrUnknownActor is returned when the host cannot resolve an actor.
var ErrUnknownActor = errors.New("unknown actor")

// Exchange resolves one hit of attacker on target, applies its side effects
// and returns the composed result. Damage itself stays with the host; use
// Result.FinalDamage.
func (e *Engine) Exchange(ctx context.Context, attacker, target model.ActorID) (reaction.Result, error) {
	a, ok := e.Subject(attacker)
	if !ok {
		return reaction.Result{}, fmt.Errorf("%w: attacker %d", ErrUnknownActor, attacker)
	}
	t, ok := e.Subject(target)
	if !ok {
		return reaction.Result{}, fmt.Errorf("%w: target %d", ErrUnknownActor, target)
	}
	res := e.Reactions.ResolveExchange(ctx, a, t)
	e.ApplyResult(attacker, target, res)
	return res, nil
}

// Internal resolves actor's self-only reactions and applies their effects.
func (e *Engine) Internal(ctx context.Context, actor model.ActorID) (reaction.Result, error) {
	s, ok := e.Subject(actor)
	if !ok {
		return reaction.Result{}, fmt.Errorf("%w: %d", ErrUnknownActor, actor)
	}
	res := e.Reactions.ResolveInternal(ctx, s)
	e.ApplyResult(actor, actor, res)
	return res, nil
}

// ApplyResult forwards status effects and modifiers to the host and applies
// queued mounts through the mount engine. Returns how many mounts landed.
func (e *Engine) ApplyResult(self, target model.ActorID, res reaction.Result) int {
	for _, eff := range res.TargetEffects {
		e.host.ApplyStatusEffect(target, eff)
	}
	for _, eff := range res.SelfEffects {
		e.host.ApplyStatusEffect(self, eff)
	}
	for _, mod := range res.TargetModifiers {
		e.host.ApplyModifier(target, mod)
	}
	for _, mod := range res.SelfModifiers {
		e.host.ApplyModifier(self, mod)
	}

	applied := 0
	for _, m := range res.Mounts {
		if e.Mounts.ApplyMount(m.Actor, m.Mount.Element, m.Mount.Amount, m.Mount.Duration, m.Mount.Probability, m.Mount.StackBehavior) {
			applied++
		}
	}
	for _, m := range res.AdvancedMounts {
		if e.Mounts.ApplyAdvanced(m.Actor, m.Mount) {
			applied++
		}
	}
	return applied
}
