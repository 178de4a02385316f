package model

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConditionSpec is a flat set of optional predicates, all ANDed.
// A nil or empty spec always passes.
type ConditionSpec struct {
	Biome      *StringMatch        `yaml:"biome,omitempty"`
	Dimension  *StringMatch        `yaml:"dimension,omitempty"`
	Weather    *WeatherCondition   `yaml:"weather,omitempty"`
	Time       *TimeCondition      `yaml:"time,omitempty"`
	MoonPhase  *MoonPhaseCondition `yaml:"moon_phase,omitempty"`
	Elements   []ElementCondition  `yaml:"elements,omitempty"`
	Health     *HealthCondition    `yaml:"health,omitempty"`
	Difficulty string              `yaml:"difficulty,omitempty"`
}

// IsEmpty reports whether no predicate is set.
func (c *ConditionSpec) IsEmpty() bool {
	return c == nil || (c.Biome == nil && c.Dimension == nil && c.Weather == nil &&
		c.Time == nil && c.MoonPhase == nil && len(c.Elements) == 0 &&
		c.Health == nil && c.Difficulty == "")
}

// StringMatch matches one value or any value of a list.
// YAML accepts both a scalar and a sequence.
type StringMatch struct {
	Values []string
}

// Matches compares exactly against each value.
func (m StringMatch) Matches(v string) bool {
	for _, want := range m.Values {
		if want == v {
			return true
		}
	}
	return false
}

func (m *StringMatch) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		m.Values = []string{n.Value}
		return nil
	case yaml.SequenceNode:
		return n.Decode(&m.Values)
	}
	return fmt.Errorf("line %d: expected string or list of strings", n.Line)
}

func (m StringMatch) MarshalYAML() (any, error) {
	if len(m.Values) == 1 {
		return m.Values[0], nil
	}
	return m.Values, nil
}

// WeatherState is the symbolic weather derived from (raining, thundering).
type WeatherState string

const (
	WeatherClear   WeatherState = "clear"
	WeatherRain    WeatherState = "rain"
	WeatherThunder WeatherState = "thunder"
)

// WeatherCondition is either a symbolic State or an explicit partial
// {raining, thundering} spec where each present key must match.
type WeatherCondition struct {
	State      WeatherState `yaml:"-"`
	Raining    *bool        `yaml:"raining,omitempty"`
	Thundering *bool        `yaml:"thundering,omitempty"`
}

func (w *WeatherCondition) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		w.State = WeatherState(strings.ToLower(n.Value))
		return nil
	}
	type raw WeatherCondition
	var r raw
	if err := n.Decode(&r); err != nil {
		return err
	}
	*w = WeatherCondition(r)
	return nil
}

// TimeBucket is a symbolic slice of the 24000-tick day.
type TimeBucket string

const (
	TimeDay     TimeBucket = "day"
	TimeNight   TimeBucket = "night"
	TimeSunrise TimeBucket = "sunrise"
	TimeSunset  TimeBucket = "sunset"
)

// TimeCondition is either a symbolic Bucket or an explicit [Min, Max]
// range on worldTime mod 24000.
type TimeCondition struct {
	Bucket TimeBucket `yaml:"-"`
	Min    *int64     `yaml:"min,omitempty"`
	Max    *int64     `yaml:"max,omitempty"`
}

func (t *TimeCondition) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		t.Bucket = TimeBucket(strings.ToLower(n.Value))
		return nil
	case yaml.SequenceNode:
		var bounds []int64
		if err := n.Decode(&bounds); err != nil {
			return err
		}
		if len(bounds) != 2 {
			return fmt.Errorf("line %d: time range needs exactly two values", n.Line)
		}
		t.Min, t.Max = &bounds[0], &bounds[1]
		return nil
	}
	type raw TimeCondition
	var r raw
	if err := n.Decode(&r); err != nil {
		return err
	}
	*t = TimeCondition(r)
	return nil
}

// MoonPhaseCondition matches phase numbers (0 full .. 4 new .. 7)
// or the symbolic full/new flags.
type MoonPhaseCondition struct {
	Phases   []int `yaml:"phases,omitempty"`
	FullMoon bool  `yaml:"full_moon,omitempty"`
	NewMoon  bool  `yaml:"new_moon,omitempty"`
}

func (m *MoonPhaseCondition) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var p int
		if err := n.Decode(&p); err != nil {
			return err
		}
		m.Phases = []int{p}
		return nil
	case yaml.SequenceNode:
		return n.Decode(&m.Phases)
	}
	type raw MoonPhaseCondition
	var r raw
	if err := n.Decode(&r); err != nil {
		return err
	}
	*m = MoonPhaseCondition(r)
	return nil
}

// ElementCondition gates on presence and/or bounds of one element.
// Required defaults to true when omitted.
type ElementCondition struct {
	Element  ElementID `yaml:"element"`
	Required *bool     `yaml:"required,omitempty"`
	MinValue *float64  `yaml:"min_value,omitempty"`
	MaxValue *float64  `yaml:"max_value,omitempty"`
}

// IsRequired applies the default.
func (e ElementCondition) IsRequired() bool {
	return e.Required == nil || *e.Required
}

// HealthCondition bounds current health. Percentage passes when
// health >= percentage * maxHealth.
type HealthCondition struct {
	Min        *float64 `yaml:"min,omitempty"`
	Max        *float64 `yaml:"max,omitempty"`
	Percentage *float64 `yaml:"percentage,omitempty"`
}

// ReactionConditions splits reaction gating by whom it is evaluated against.
type ReactionConditions struct {
	Attacker *ConditionSpec `yaml:"attacker,omitempty"`
	Target   *ConditionSpec `yaml:"target,omitempty"`
	World    *ConditionSpec `yaml:"world,omitempty"`
}
