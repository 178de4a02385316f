package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ReactionKind distinguishes self-only from attacker-vs-target reactions.
type ReactionKind string

const (
	ReactionInternal ReactionKind = "internal"
	ReactionInduced  ReactionKind = "induced"
)

// ReactionDefinition groups entries of one kind under a key.
// Definitions are immutable once loaded and replaced wholesale on reload.
type ReactionDefinition struct {
	Key     string          `yaml:"key"`
	Kind    ReactionKind    `yaml:"kind"`
	Entries []ReactionEntry `yaml:"entries"`
}

// ReactionEntry matches one element (internal averaging) or a pair (induced).
// RateArray holds {damage rate, defense rate} for induced entries.
type ReactionEntry struct {
	MatchElements []ElementID    `yaml:"match_elements"`
	Rate          float64        `yaml:"rate,omitempty"`
	RateArray     []float64      `yaml:"rate_array,omitempty"`
	Effect        ReactionEffect `yaml:"effect"`
}

// ReactionEffect lists status effects for the target (afflict) and self (empower).
type ReactionEffect struct {
	Afflict []StatusEffect `yaml:"afflict,omitempty"`
	Empower []StatusEffect `yaml:"empower,omitempty"`
}

func (d ReactionDefinition) RecordID() string { return d.Key }

func (d ReactionDefinition) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("%w: reaction without key", ErrInvalidDefinition)
	}
	if len(d.Entries) == 0 {
		return fmt.Errorf("%w: reaction %s has no entries", ErrInvalidDefinition, d.Key)
	}
	for i, e := range d.Entries {
		switch d.Kind {
		case ReactionInternal:
			if len(e.MatchElements) == 0 {
				return fmt.Errorf("%w: reaction %s entry %d: no match elements", ErrInvalidDefinition, d.Key, i)
			}
		case ReactionInduced:
			if len(e.MatchElements) != 2 {
				return fmt.Errorf("%w: reaction %s entry %d: induced needs exactly 2 match elements", ErrInvalidDefinition, d.Key, i)
			}
			if len(e.RateArray) != 2 {
				return fmt.Errorf("%w: reaction %s entry %d: induced needs rate_array [damage, defense]", ErrInvalidDefinition, d.Key, i)
			}
			if e.RateArray[1] == 0 {
				return fmt.Errorf("%w: reaction %s entry %d: zero defense rate", ErrInvalidDefinition, d.Key, i)
			}
		default:
			return fmt.Errorf("%w: reaction %s: unknown kind %q", ErrInvalidDefinition, d.Key, d.Kind)
		}
	}
	return nil
}

// MountTarget selects who receives a reaction's mount.
type MountTarget string

const (
	MountOnTarget MountTarget = "target"
	MountOnSelf   MountTarget = "self"
)

// AttackDefenseReaction triggers when one side holds ElementA and the other ElementB.
type AttackDefenseReaction struct {
	ID            string              `yaml:"id"`
	ElementA      ElementID           `yaml:"element_a"`
	ElementB      ElementID           `yaml:"element_b"`
	Priority      int                 `yaml:"priority"`
	Conditions    *ReactionConditions `yaml:"conditions,omitempty"`
	Attack        *ReactionOutcome    `yaml:"attack,omitempty"`
	Defense       *ReactionOutcome    `yaml:"defense,omitempty"`
	Mount         *MountData          `yaml:"mount,omitempty"`
	AdvancedMount *AdvancedMountData  `yaml:"advanced_mount,omitempty"`
	MountTarget   MountTarget         `yaml:"mount_target,omitempty"`
}

func (r AttackDefenseReaction) RecordID() string { return r.ID }

func (r AttackDefenseReaction) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: attack/defense reaction without id", ErrInvalidDefinition)
	}
	if r.ElementA == "" || r.ElementB == "" {
		return fmt.Errorf("%w: reaction %s: element_a and element_b are required", ErrInvalidDefinition, r.ID)
	}
	if r.Mount != nil {
		if err := r.Mount.Validate(); err != nil {
			return fmt.Errorf("reaction %s: %w", r.ID, err)
		}
	}
	if r.AdvancedMount != nil {
		if err := r.AdvancedMount.Validate(); err != nil {
			return fmt.Errorf("reaction %s: %w", r.ID, err)
		}
	}
	switch r.MountTarget {
	case "", MountOnTarget, MountOnSelf:
	default:
		return fmt.Errorf("%w: reaction %s: unknown mount_target %q", ErrInvalidDefinition, r.ID, r.MountTarget)
	}
	return nil
}

// MountReceiver resolves the default mount target.
func (r AttackDefenseReaction) MountReceiver() MountTarget {
	if r.MountTarget == "" {
		return MountOnTarget
	}
	return r.MountTarget
}

// ReactionOutcome is one side (attack or defense) of an AttackDefenseReaction.
type ReactionOutcome struct {
	DamageMultiplier  float64             `yaml:"damage_multiplier"`
	DefenseMultiplier float64             `yaml:"defense_multiplier"`
	ExtraDamage       float64             `yaml:"extra_damage"`
	DamageReduction   float64             `yaml:"damage_reduction"`
	TargetEffects     []StatusEffect      `yaml:"target_effects,omitempty"`
	SelfEffects       []StatusEffect      `yaml:"self_effects,omitempty"`
	TargetModifiers   []AttributeModifier `yaml:"target_attribute_modifiers,omitempty"`
	SelfModifiers     []AttributeModifier `yaml:"self_attribute_modifiers,omitempty"`
}

// NeutralOutcome returns an outcome that changes nothing.
func NeutralOutcome() ReactionOutcome {
	return ReactionOutcome{DamageMultiplier: 1, DefenseMultiplier: 1}
}

func (o *ReactionOutcome) UnmarshalYAML(n *yaml.Node) error {
	type raw ReactionOutcome
	r := raw(NeutralOutcome())
	if err := n.Decode(&r); err != nil {
		return err
	}
	*o = ReactionOutcome(r)
	return nil
}
