package model

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// StatusEffect is a request to apply a host status effect.
type StatusEffect struct {
	EffectID  string `yaml:"effect"`
	Duration  int32  `yaml:"duration"` // ticks
	Amplifier int32  `yaml:"amplifier"`
	Particles bool   `yaml:"particles"`
}

// ModifierOp defines how an attribute modifier is applied by the host.
type ModifierOp int8

const (
	OpAdd           ModifierOp = iota // flat bonus
	OpMultiplyBase                    // scales the base value
	OpMultiplyTotal                   // scales the final value
)

var modifierOpNames = [...]string{"add", "multiply_base", "multiply_total"}

func (op ModifierOp) String() string {
	if int(op) < len(modifierOpNames) {
		return modifierOpNames[op]
	}
	return fmt.Sprintf("ModifierOp(%d)", int8(op))
}

// ParseModifierOp accepts the config spellings of an operation.
func ParseModifierOp(s string) (ModifierOp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "addition", "":
		return OpAdd, nil
	case "multiply_base", "multiply", "multiply_base_value":
		return OpMultiplyBase, nil
	case "multiply_total":
		return OpMultiplyTotal, nil
	}
	return OpAdd, fmt.Errorf("unknown modifier operation %q", s)
}

func (op ModifierOp) MarshalYAML() (any, error) { return op.String(), nil }

func (op *ModifierOp) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseModifierOp(s)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// AttributeModifier is a request to add an attribute modifier on an actor.
// Duration 0 means permanent until removed.
type AttributeModifier struct {
	ID        string     `yaml:"id,omitempty"`
	Attribute string     `yaml:"attribute"`
	Operation ModifierOp `yaml:"operation"`
	Amount    float64    `yaml:"amount"`
	Duration  int32      `yaml:"duration,omitempty"`
}

// Permanent reports whether the modifier has no expiry.
func (m AttributeModifier) Permanent() bool { return m.Duration <= 0 }
