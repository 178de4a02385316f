package model

import "fmt"

// CombinationEffect is one attribute modifier granted while a combination is active.
type CombinationEffect struct {
	Attribute string     `yaml:"attribute"`
	Operation ModifierOp `yaml:"operation"`
	Amount    float64    `yaml:"amount"`
}

// CombinationDefinition is a multi-element condition granting effects while satisfied.
// Required and Forbidden are not checked for overlap; an element in both sets
// makes the combination unreachable.
type CombinationDefinition struct {
	ID         string                `yaml:"id"`
	Required   []ElementID           `yaml:"required_elements"`
	Forbidden  []ElementID           `yaml:"forbidden_elements,omitempty"`
	MinValues  map[ElementID]float64 `yaml:"min_values,omitempty"`
	Effects    []CombinationEffect   `yaml:"effects"`
	Conditions *ConditionSpec        `yaml:"conditions,omitempty"`
	Duration   int32                 `yaml:"duration,omitempty"` // ticks, 0 = engine default
}

func (d CombinationDefinition) RecordID() string { return d.ID }

func (d CombinationDefinition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: combination without id", ErrInvalidDefinition)
	}
	if len(d.Required) == 0 && len(d.MinValues) == 0 {
		return fmt.Errorf("%w: combination %s: needs required_elements or min_values", ErrInvalidDefinition, d.ID)
	}
	for i, e := range d.Effects {
		if e.Attribute == "" {
			return fmt.Errorf("%w: combination %s effect %d: missing attribute", ErrInvalidDefinition, d.ID, i)
		}
	}
	return nil
}

// Elements returns every element the combination reads, without duplicates.
func (d CombinationDefinition) Elements() []ElementID {
	seen := make(map[ElementID]struct{}, len(d.Required)+len(d.Forbidden)+len(d.MinValues))
	out := make([]ElementID, 0, len(d.Required)+len(d.Forbidden)+len(d.MinValues))
	add := func(id ElementID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range d.Required {
		add(id)
	}
	for _, id := range d.Forbidden {
		add(id)
	}
	for id := range d.MinValues {
		add(id)
	}
	if d.Conditions != nil {
		for _, ec := range d.Conditions.Elements {
			add(ec.Element)
		}
	}
	return out
}
