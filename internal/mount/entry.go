// Package mount manages temporary, stacking and decaying element bonuses.
package mount

import (
	"math"

	"github.com/udisondev/elemcore/internal/model"
)

// Entry is one applied mount.
type Entry struct {
	Amount    float64
	StartTick int64
	Duration  int64
	Behavior  model.StackBehavior
	Decay     *model.DecayData
}

// Expired reports whether the hard duration has elapsed at now.
func (e Entry) Expired(now int64) bool {
	return now-e.StartTick >= e.Duration
}

// Current returns the amount after decay at now, 0 once expired.
func (e Entry) Current(now int64) float64 {
	if e.Expired(now) {
		return 0
	}
	return decayed(e.Amount, e.Decay, now-e.StartTick)
}

// Remaining returns ticks left before expiry.
func (e Entry) Remaining(now int64) int64 {
	return max(0, e.StartTick+e.Duration-now)
}

func decayed(amount float64, d *model.DecayData, elapsed int64) float64 {
	if d == nil || elapsed < d.DecayStart {
		return amount
	}
	since := float64(elapsed - d.DecayStart)
	switch d.Type {
	case model.DecayLinear:
		return amount * max(0, 1-d.Rate*since)
	case model.DecayExponential:
		return amount * math.Exp(-d.Rate*since)
	default:
		return amount
	}
}

// scale computes the multiplier of an advanced mount.
// stacks counts the incoming application, so the first one scales by 1.
func scale(s *model.ScalingData, stacks int, now int64, elementValue float64) float64 {
	if s == nil {
		return 1
	}
	switch s.BasedOn {
	case model.BasedOnTime:
		return 1 + s.Factor*float64(now%model.DayTicks)/model.DayTicks
	case model.BasedOnElementValue:
		return 1 + s.Factor*elementValue/100
	}

	// stacks is the default basis
	n := float64(max(stacks, 1))
	switch s.Type {
	case model.ScaleExponential:
		return math.Pow(1+s.Factor, n-1)
	case model.ScaleLogarithmic:
		return 1 + s.Factor*math.Log(1+n-1)
	default:
		return 1 + s.Factor*(n-1)
	}
}
