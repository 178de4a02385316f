package model

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// StackBehavior selects how a new mount joins the existing entries of an element.
type StackBehavior string

const (
	StackRefresh     StackBehavior = "refresh"
	StackAdd         StackBehavior = "add"
	StackIndependent StackBehavior = "independent"
	StackMax         StackBehavior = "max"
)

// Normalize maps unknown behaviors to StackRefresh.
func (b StackBehavior) Normalize() StackBehavior {
	switch StackBehavior(strings.ToLower(string(b))) {
	case StackAdd:
		return StackAdd
	case StackIndependent:
		return StackIndependent
	case StackMax:
		return StackMax
	default:
		return StackRefresh
	}
}

// Summed reports whether entries of this behavior add up.
// Refresh and max report the latest entry instead.
func (b StackBehavior) Summed() bool {
	b = b.Normalize()
	return b == StackAdd || b == StackIndependent
}

// MountData is the simple form of a mount application carried by reactions.
type MountData struct {
	Element       ElementID     `yaml:"element"`
	Amount        float64       `yaml:"amount"`
	Duration      int64         `yaml:"duration"`
	Probability   float64       `yaml:"probability"`
	StackBehavior StackBehavior `yaml:"stack_behavior"`
}

func (m MountData) Validate() error {
	if m.Element == "" {
		return fmt.Errorf("%w: mount without element", ErrInvalidDefinition)
	}
	if m.Duration <= 0 {
		return fmt.Errorf("%w: mount %s: duration must be positive", ErrInvalidDefinition, m.Element)
	}
	return nil
}

// ScalingType is the curve used by ScalingData.
type ScalingType string

const (
	ScaleLinear      ScalingType = "linear"
	ScaleExponential ScalingType = "exponential"
	ScaleLogarithmic ScalingType = "logarithmic"
)

// ScalingBasis is the input of a scaling curve.
type ScalingBasis string

const (
	BasedOnStacks       ScalingBasis = "stacks"
	BasedOnTime         ScalingBasis = "time"
	BasedOnElementValue ScalingBasis = "element_value"
)

type ScalingData struct {
	Type    ScalingType  `yaml:"type"`
	Factor  float64      `yaml:"factor"`
	BasedOn ScalingBasis `yaml:"based_on"`
}

// DecayType selects the read-time decay curve of a mount entry.
type DecayType string

const (
	DecayNone        DecayType = "none"
	DecayLinear      DecayType = "linear"
	DecayExponential DecayType = "exponential"
)

type DecayData struct {
	Type       DecayType `yaml:"type"`
	Rate       float64   `yaml:"rate"`
	DecayStart int64     `yaml:"decay_start"` // ticks after the entry starts
}

// AdvancedMountData is a mount with scaling, decay and a stack limit.
// Probability gates the whole application; the inner mount never re-rolls.
type AdvancedMountData struct {
	Element       ElementID     `yaml:"element"`
	BaseAmount    float64       `yaml:"base_amount"`
	BaseDuration  int64         `yaml:"base_duration"`
	Probability   float64       `yaml:"probability"`
	StackBehavior StackBehavior `yaml:"stack_behavior"`
	MaxStacks     int           `yaml:"max_stacks"`
	Scaling       *ScalingData  `yaml:"scaling,omitempty"`
	Decay         *DecayData    `yaml:"decay,omitempty"`
}

func (m AdvancedMountData) Validate() error {
	if m.Element == "" {
		return fmt.Errorf("%w: advanced mount without element", ErrInvalidDefinition)
	}
	if m.BaseDuration <= 0 {
		return fmt.Errorf("%w: advanced mount %s: base_duration must be positive", ErrInvalidDefinition, m.Element)
	}
	if m.MaxStacks < 0 {
		return fmt.Errorf("%w: advanced mount %s: negative max_stacks", ErrInvalidDefinition, m.Element)
	}
	return nil
}

func (m *MountData) UnmarshalYAML(n *yaml.Node) error {
	type raw MountData
	r := raw{Probability: 1, StackBehavior: StackRefresh}
	if err := n.Decode(&r); err != nil {
		return err
	}
	*m = MountData(r)
	return nil
}

func (m *AdvancedMountData) UnmarshalYAML(n *yaml.Node) error {
	type raw AdvancedMountData
	r := raw{Probability: 1, StackBehavior: StackAdd}
	if err := n.Decode(&r); err != nil {
		return err
	}
	*m = AdvancedMountData(r)
	return nil
}
