package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvironment_Derived(t *testing.T) {
	env := Environment{WorldTime: 3*DayTicks + 13000, Raining: true}
	assert.EqualValues(t, 13000, env.DayTime())
	assert.Equal(t, 3, env.MoonPhase())
	assert.Equal(t, WeatherRain, env.Weather())

	env.Thundering = true
	assert.Equal(t, WeatherThunder, env.Weather())

	env = Environment{WorldTime: 8 * DayTicks}
	assert.Equal(t, 0, env.MoonPhase())
	assert.Equal(t, WeatherClear, env.Weather())
}

func TestElementSnapshot(t *testing.T) {
	s := ElementSnapshot{"core:fire": 10, "core:water": 10, "core:earth": 0, "core:air": 3}

	id, v, ok := s.Strongest()
	assert.True(t, ok)
	assert.Equal(t, ElementID("core:fire"), id) // tie with water, smaller id wins
	assert.Equal(t, 10.0, v)

	assert.True(t, s.Has("core:air"))
	assert.False(t, s.Has("core:earth"))
	assert.Equal(t, []ElementID{"core:air", "core:fire", "core:water"}, s.Active())

	_, _, ok = ElementSnapshot{}.Strongest()
	assert.False(t, ok)
}

func TestLogLimiter(t *testing.T) {
	now := time.Unix(100, 0)
	l := NewLogLimiter(time.Second)
	l.now = func() time.Time { return now }

	assert.True(t, l.Warn("k", "first"))
	assert.False(t, l.Warn("k", "again"))
	assert.True(t, l.Warn("other", "different key"))

	now = now.Add(time.Second)
	assert.True(t, l.Warn("k", "after interval"))
}
