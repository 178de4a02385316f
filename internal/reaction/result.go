// Package reaction resolves element reactions between two actors, or within one.
package reaction

import "github.com/udisondev/elemcore/internal/model"

// MountApplication is a mount queued for the host to apply through the
// mount engine. The probability roll happens there, once.
type MountApplication struct {
	Actor  model.ActorID
	Mount  model.MountData
	Source string // reaction id
}

// AdvancedMountApplication is the advanced counterpart of MountApplication.
type AdvancedMountApplication struct {
	Actor  model.ActorID
	Mount  model.AdvancedMountData
	Source string
}

// Result is the composed effect of every reaction triggered by one call.
// Multipliers and rates compose multiplicatively, extra damage and
// reduction additively; effect lists are appended without deduplication.
type Result struct {
	DamageMultiplier  float64
	DefenseMultiplier float64
	ExtraDamage       float64
	DamageReduction   float64

	// induced reactions: finalDamage = damage * DamageRate / DefenseRate
	DamageRate  float64
	DefenseRate float64

	TargetEffects   []model.StatusEffect
	SelfEffects     []model.StatusEffect
	TargetModifiers []model.AttributeModifier
	SelfModifiers   []model.AttributeModifier

	Mounts         []MountApplication
	AdvancedMounts []AdvancedMountApplication

	Triggered []string
}

// NewResult returns a result that leaves damage unchanged.
func NewResult() Result {
	return Result{
		DamageMultiplier:  1,
		DefenseMultiplier: 1,
		DamageRate:        1,
		DefenseRate:       1,
	}
}

// IsEmpty reports whether nothing triggered.
func (r *Result) IsEmpty() bool {
	return len(r.Triggered) == 0
}

func (r *Result) applyOutcome(o model.ReactionOutcome) {
	r.DamageMultiplier *= o.DamageMultiplier
	r.DefenseMultiplier *= o.DefenseMultiplier
	r.ExtraDamage += o.ExtraDamage
	r.DamageReduction += o.DamageReduction
	r.TargetEffects = append(r.TargetEffects, o.TargetEffects...)
	r.SelfEffects = append(r.SelfEffects, o.SelfEffects...)
	r.TargetModifiers = append(r.TargetModifiers, o.TargetModifiers...)
	r.SelfModifiers = append(r.SelfModifiers, o.SelfModifiers...)
}

func (r *Result) applyEffect(e model.ReactionEffect) {
	r.TargetEffects = append(r.TargetEffects, e.Afflict...)
	r.SelfEffects = append(r.SelfEffects, e.Empower...)
}

// Merge folds o into r with the same composition rules.
func (r *Result) Merge(o Result) {
	r.DamageMultiplier *= o.DamageMultiplier
	r.DefenseMultiplier *= o.DefenseMultiplier
	r.ExtraDamage += o.ExtraDamage
	r.DamageReduction += o.DamageReduction
	r.DamageRate *= o.DamageRate
	r.DefenseRate *= o.DefenseRate
	r.TargetEffects = append(r.TargetEffects, o.TargetEffects...)
	r.SelfEffects = append(r.SelfEffects, o.SelfEffects...)
	r.TargetModifiers = append(r.TargetModifiers, o.TargetModifiers...)
	r.SelfModifiers = append(r.SelfModifiers, o.SelfModifiers...)
	r.Mounts = append(r.Mounts, o.Mounts...)
	r.AdvancedMounts = append(r.AdvancedMounts, o.AdvancedMounts...)
	r.Triggered = append(r.Triggered, o.Triggered...)
}

// Mirrored returns r seen from the other actor: target and self effect and
// modifier lists swap places. Numeric terms are unchanged.
func (r Result) Mirrored() Result {
	r.TargetEffects, r.SelfEffects = r.SelfEffects, r.TargetEffects
	r.TargetModifiers, r.SelfModifiers = r.SelfModifiers, r.TargetModifiers
	return r
}

// FinalDamage applies the result to a base damage value:
//
//	max(0, base * DamageMultiplier * DefenseMultiplier * DamageRate / DefenseRate
//	       + ExtraDamage - DamageReduction)
func (r Result) FinalDamage(base float64) float64 {
	rate := r.DamageRate
	if r.DefenseRate != 0 {
		rate /= r.DefenseRate
	}
	dmg := base*r.DamageMultiplier*r.DefenseMultiplier*rate + r.ExtraDamage - r.DamageReduction
	return max(0, dmg)
}
