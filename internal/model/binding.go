package model

import "fmt"

// EntityBinding assigns starting element values and spawn mounts to an entity type.
type EntityBinding struct {
	ID       string                `yaml:"id"` // host entity type, e.g. "minecraft:blaze"
	Elements map[ElementID]float64 `yaml:"elements"`
	Mounts   []MountData           `yaml:"mounts,omitempty"`
}

func (b EntityBinding) RecordID() string { return b.ID }

func (b EntityBinding) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("%w: entity binding without id", ErrInvalidDefinition)
	}
	for i, m := range b.Mounts {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("entity binding %s mount %d: %w", b.ID, i, err)
		}
	}
	return nil
}
