package element

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/elemcore/internal/data"
	"github.com/udisondev/elemcore/internal/model"
	"github.com/udisondev/elemcore/internal/testutil"
)

func newTestRegistry(t *testing.T, defs ...model.ElementDefinition) *Registry {
	t.Helper()
	reg, err := NewRegistry(data.NewManager())
	require.NoError(t, err)
	for _, d := range defs {
		require.NoError(t, reg.Register(d))
	}
	return reg
}

var fire = model.ElementDefinition{ID: "core:fire", DisplayName: "Fire", DefaultValue: 0, MinValue: 0, MaxValue: 100}

func TestSetGet_Clamped(t *testing.T) {
	reg := newTestRegistry(t, fire,
		model.ElementDefinition{ID: "core:chill", DefaultValue: 0, MinValue: -50, MaxValue: 50})
	vals := NewValues(reg, NewMemoryStore())

	tests := []struct {
		id   model.ElementID
		in   float64
		want float64
	}{
		{"core:fire", 42, 42},
		{"core:fire", -3, 0},
		{"core:fire", 1000, 100},
		{"core:chill", -80, -50},
		{"core:chill", 49.5, 49.5},
	}
	for _, tt := range tests {
		stored, err := vals.Set(1, tt.id, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, stored)

		got, err := vals.Get(1, tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s <- %g", tt.id, tt.in)
	}
}

func TestGet_DefaultAndUnknown(t *testing.T) {
	reg := newTestRegistry(t, model.ElementDefinition{ID: "core:earth", DefaultValue: 5, MaxValue: 10})
	vals := NewValues(reg, NewMemoryStore())

	v, err := vals.Get(7, "core:earth")
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	_, err = vals.Get(7, "core:void")
	assert.ErrorIs(t, err, ErrUnknownElement)
	_, err = vals.Set(7, "core:void", 1)
	assert.ErrorIs(t, err, ErrUnknownElement)
}

func TestRegister_InvalidRange(t *testing.T) {
	reg := newTestRegistry(t)
	err := reg.Register(model.ElementDefinition{ID: "core:bad", MinValue: 10, DefaultValue: 0, MaxValue: 20})
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.False(t, reg.IsRegistered("core:bad"))
}

func TestRegister_ReRegisterAndUnregister(t *testing.T) {
	reg := newTestRegistry(t, fire)

	wider := fire
	wider.MaxValue = 500
	require.NoError(t, reg.Register(wider))
	c, err := reg.Clamp("core:fire", 400)
	require.NoError(t, err)
	assert.Equal(t, 400.0, c)

	assert.True(t, reg.Unregister("core:fire"))
	assert.False(t, reg.IsRegistered("core:fire"))
	assert.False(t, reg.Unregister("core:fire"))
}

type packSource struct {
	defs map[string]model.ElementDefinition
}

func (p packSource) SourceType() string      { return "pack" }
func (p packSource) Priority() int           { return 10 }
func (p packSource) SupportsHotReload() bool { return false }
func (p packSource) Available() bool         { return true }
func (p packSource) Load(context.Context) (map[string]model.ElementDefinition, error) {
	return p.defs, nil
}

func TestCodeRegistrationShadowsPacks(t *testing.T) {
	m := data.NewManager()
	require.NoError(t, data.RegisterSource[model.ElementDefinition](m, data.TypeElements, packSource{defs: map[string]model.ElementDefinition{
		"core:fire":  {ID: "core:fire", MaxValue: 10},
		"core:water": {ID: "core:water", MaxValue: 10},
	}}))
	reg, err := NewRegistry(m)
	require.NoError(t, err)
	require.NoError(t, reg.Register(fire))

	def, ok := reg.Get("core:fire")
	require.True(t, ok)
	assert.Equal(t, 100.0, def.MaxValue)
	assert.Equal(t, []model.ElementID{"core:fire", "core:water"}, reg.IDs())

	reg.Unregister("core:fire")
	def, ok = reg.Get("core:fire")
	require.True(t, ok, "pack definition takes over after unregistration")
	assert.Equal(t, 10.0, def.MaxValue)
}

func TestSnapshot(t *testing.T) {
	reg := newTestRegistry(t, fire, model.ElementDefinition{ID: "core:water", DefaultValue: 1, MaxValue: 10})
	store := NewMemoryStore()
	vals := NewValues(reg, store)
	_, err := vals.Set(3, "core:fire", 12)
	require.NoError(t, err)

	snap := vals.Snapshot(3)
	assert.Equal(t, model.ElementSnapshot{"core:fire": 12, "core:water": 1}, snap)
}

func TestSnapshot_ClampsEveryElement(t *testing.T) {
	fx := testutil.Fixtures
	reg := newTestRegistry(t, fx.Fire, fx.Water, fx.Storm)
	vals := NewValues(reg, NewMemoryStore())
	for id, v := range map[model.ElementID]float64{fx.Fire.ID: 1500, fx.Water.ID: 20.5, fx.Storm.ID: 80} {
		_, err := vals.Set(9, id, v)
		require.NoError(t, err)
	}

	testutil.AssertSnapshot(t, model.ElementSnapshot{
		fx.Fire.ID:  1000,
		fx.Water.ID: 20.5,
		fx.Storm.ID: 50,
	}, vals.Snapshot(9), 1e-9)
}

func TestMemoryStore_Liveness(t *testing.T) {
	s := NewMemoryStore()
	s.Spawn(1)
	s.SetElementValue(1, "core:fire", 3)
	assert.True(t, s.Alive(1))
	assert.Equal(t, []model.ActorID{1}, s.Actors())

	s.Kill(1)
	assert.False(t, s.Alive(1))
	_, ok := s.ElementValue(1, "core:fire")
	assert.False(t, ok)
}
