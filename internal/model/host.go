package model

import (
	"sort"
	"sync/atomic"
)

// Ticks in one day cycle of the host world.
const DayTicks = 24000

// Environment is the host's snapshot of where an actor stands.
// Empty Biome/Dimension mean the host could not resolve them.
type Environment struct {
	Biome      string
	Dimension  string
	Raining    bool
	Thundering bool
	WorldTime  int64
	Difficulty string
	Health     float64
	MaxHealth  float64
}

// Weather derives the symbolic weather state.
func (e Environment) Weather() WeatherState {
	switch {
	case e.Thundering:
		return WeatherThunder
	case e.Raining:
		return WeatherRain
	default:
		return WeatherClear
	}
}

// DayTime returns worldTime within the current day.
func (e Environment) DayTime() int64 {
	t := e.WorldTime % DayTicks
	if t < 0 {
		t += DayTicks
	}
	return t
}

// MoonPhase returns 0 (full) .. 4 (new) .. 7.
func (e Environment) MoonPhase() int {
	p := (e.WorldTime / DayTicks) % 8
	if p < 0 {
		p += 8
	}
	return int(p)
}

// ElementSnapshot is a read-only copy of an actor's element values.
type ElementSnapshot map[ElementID]float64

// Value returns 0 for missing elements.
func (s ElementSnapshot) Value(id ElementID) float64 { return s[id] }

// Has reports whether the element is active (value > 0).
func (s ElementSnapshot) Has(id ElementID) bool { return s[id] > 0 }

// Active returns active element ids in stable order.
func (s ElementSnapshot) Active() []ElementID {
	ids := make([]ElementID, 0, len(s))
	for id, v := range s {
		if v > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Strongest returns the active element with the highest value.
// Ties resolve to the lexicographically smallest id.
func (s ElementSnapshot) Strongest() (ElementID, float64, bool) {
	var (
		best    ElementID
		bestVal float64
		found   bool
	)
	for id, v := range s {
		if v <= 0 {
			continue
		}
		if !found || v > bestVal || (v == bestVal && id < best) {
			best, bestVal, found = id, v, true
		}
	}
	return best, bestVal, found
}

// Subject is everything evaluation needs to know about one actor.
type Subject struct {
	ID       ActorID
	Elements ElementSnapshot
	Env      Environment
}

// ElementStore is the host's element value storage.
type ElementStore interface {
	ElementValue(actor ActorID, id ElementID) (float64, bool)
	SetElementValue(actor ActorID, id ElementID, value float64)
}

// Liveness reports whether the host still knows a living actor.
type Liveness interface {
	Alive(actor ActorID) bool
}

// Clock is the host's monotonically increasing tick counter.
type Clock interface {
	Tick() int64
}

// Rand is the probability source; Float64 returns [0, 1).
type Rand interface {
	Float64() float64
}

// SubjectSource builds a fresh Subject for an actor, false when unknown.
type SubjectSource interface {
	Subject(actor ActorID) (Subject, bool)
}

// ModifierSink receives attribute modifier lifecycle requests.
// ApplyModifier with an existing ID replaces the previous modifier.
type ModifierSink interface {
	ApplyModifier(actor ActorID, mod AttributeModifier)
	RemoveModifier(actor ActorID, modifierID string)
}

// ManualClock is a Clock advanced explicitly; tests and the simulator use it.
type ManualClock struct {
	tick atomic.Int64
}

func (c *ManualClock) Tick() int64 { return c.tick.Load() }

// Advance moves the clock forward by n ticks.
func (c *ManualClock) Advance(n int64) { c.tick.Add(n) }

// Set jumps to an absolute tick.
func (c *ManualClock) Set(t int64) { c.tick.Store(t) }
