package model

import "fmt"

// ElementDefinition describes one registered element.
// Invariant: MinValue <= DefaultValue <= MaxValue.
type ElementDefinition struct {
	ID           ElementID `yaml:"id"`
	DisplayName  string    `yaml:"display_name"`
	DefaultValue float64   `yaml:"default_value"`
	MinValue     float64   `yaml:"min_value"`
	MaxValue     float64   `yaml:"max_value"`
}

func (d ElementDefinition) RecordID() string { return string(d.ID) }

// Validate checks the id and the value range.
func (d ElementDefinition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: element without id", ErrInvalidDefinition)
	}
	if d.MinValue > d.DefaultValue || d.DefaultValue > d.MaxValue {
		return fmt.Errorf("%w: element %s: range [%g, %g] does not contain default %g",
			ErrInvalidDefinition, d.ID, d.MinValue, d.MaxValue, d.DefaultValue)
	}
	return nil
}

// Clamp bounds v to [MinValue, MaxValue].
func (d ElementDefinition) Clamp(v float64) float64 {
	return min(max(v, d.MinValue), d.MaxValue)
}
