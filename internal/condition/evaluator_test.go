package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/elemcore/internal/model"
	"github.com/udisondev/elemcore/internal/testutil"
)

func spec(t *testing.T, src string) *model.ConditionSpec {
	t.Helper()
	var s model.ConditionSpec
	require.NoError(t, yaml.Unmarshal([]byte(src), &s))
	return &s
}

func subject(env model.Environment, elems model.ElementSnapshot) model.Subject {
	return model.Subject{ID: 1, Env: env, Elements: elems}
}

func TestEmptySpecPasses(t *testing.T) {
	e := NewEvaluator()
	assert.True(t, e.Evaluate(nil, model.Subject{}))
	assert.True(t, e.Evaluate(&model.ConditionSpec{}, model.Subject{}))
	assert.Zero(t, e.Evaluations())
}

func TestPredicates(t *testing.T) {
	base := model.Environment{
		Biome:      "plains",
		Dimension:  "overworld",
		WorldTime:  5*model.DayTicks + 13000, // sunset, moon phase 5
		Difficulty: "Hard",
		Health:     15,
		MaxHealth:  20,
	}
	elems := model.ElementSnapshot{"core:fire": 30, "core:water": 0}

	tests := []struct {
		name string
		src  string
		env  func(model.Environment) model.Environment
		want bool
	}{
		{"biome exact", "biome: plains", nil, true},
		{"biome list", "biome: [desert, plains]", nil, true},
		{"biome miss", "biome: desert", nil, false},
		{"biome unresolved", "biome: plains", func(e model.Environment) model.Environment { e.Biome = ""; return e }, false},
		{"dimension", "dimension: overworld", nil, true},
		{"dimension miss", "dimension: [nether, end]", nil, false},
		{"weather clear", "weather: clear", nil, true},
		{"weather rain miss", "weather: rain", nil, false},
		{"weather thunder", "weather: thunder", func(e model.Environment) model.Environment { e.Raining, e.Thundering = true, true; return e }, true},
		{"weather explicit", "weather: {raining: false}", nil, true},
		{"weather explicit miss", "weather: {raining: true, thundering: false}", nil, false},
		{"weather unknown", "weather: snow", nil, false},
		{"time night", "time: night", nil, true},
		{"time sunset", "time: sunset", nil, true},
		{"time day miss", "time: day", nil, false},
		{"time sunrise miss", "time: sunrise", nil, false},
		{"time range", "time: [12000, 13000]", nil, true},
		{"time range miss", "time: {min: 0, max: 12999}", nil, false},
		{"time range wraps", "time: [12500, 1000]", nil, true},
		{"time bucket unknown", "time: noon", nil, false},
		{"moon exact", "moon_phase: 5", nil, true},
		{"moon list miss", "moon_phase: [0, 4]", nil, false},
		{"full moon", "moon_phase: {full_moon: true}", func(e model.Environment) model.Environment { e.WorldTime = 8 * model.DayTicks; return e }, true},
		{"new moon", "moon_phase: {new_moon: true}", func(e model.Environment) model.Environment { e.WorldTime = 4 * model.DayTicks; return e }, true},
		{"element required", "elements: [{element: core:fire}]", nil, true},
		{"element required missing", "elements: [{element: core:water}]", nil, false},
		{"element min", "elements: [{element: core:fire, min_value: 30}]", nil, true},
		{"element min miss", "elements: [{element: core:fire, min_value: 31}]", nil, false},
		{"element max miss", "elements: [{element: core:fire, max_value: 10}]", nil, false},
		{"element absent", "elements: [{element: core:water, required: false}]", nil, true},
		{"element must be absent", "elements: [{element: core:fire, required: false}]", nil, false},
		{"element optional bounded", "elements: [{element: core:water, required: false, max_value: 5}]", nil, true},
		{"health range", "health: {min: 10, max: 15}", nil, true},
		{"health min miss", "health: {min: 16}", nil, false},
		{"health pct", "health: {percentage: 0.75}", nil, true},
		{"health pct miss", "health: {percentage: 0.8}", nil, false},
		{"health pct unresolved", "health: {percentage: 0.1}", func(e model.Environment) model.Environment { e.MaxHealth = 0; return e }, false},
		{"difficulty", "difficulty: HARD", nil, true},
		{"difficulty miss", "difficulty: peaceful", nil, false},
		{"all anded", "biome: plains\ntime: night\nelements: [{element: core:fire}]\ndifficulty: hard", nil, true},
		{"one fails", "biome: plains\ntime: day", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := base
			if tt.env != nil {
				env = tt.env(env)
			}
			e := NewEvaluator()
			assert.Equal(t, tt.want, e.Evaluate(spec(t, tt.src), subject(env, elems)))
		})
	}
}

type catalog struct{ biomes map[string]bool }

func (c catalog) KnownBiome(id string) bool  { return c.biomes[id] }
func (c catalog) KnownDimension(string) bool { return true }

func TestCatalogMissFailsClosed(t *testing.T) {
	e := NewEvaluator(WithCatalog(catalog{biomes: map[string]bool{"minecraft:plains": true}}))
	env := testutil.Fixtures.Plains

	assert.True(t, e.Evaluate(spec(t, "biome: minecraft:plains"), subject(env, nil)))
	// the actor stands in plains, but an unknown biome in the list fails the whole spec
	assert.False(t, e.Evaluate(spec(t, `biome: ["minecraft:plains", atlantis]`), subject(env, nil)))
}

func TestCache_HitWithinTTLAndExpiry(t *testing.T) {
	clock := &model.ManualClock{}
	cache := NewCache(clock, 100)
	e := NewEvaluator(WithCache(cache))

	s := spec(t, "elements: [{element: core:fire}]")
	subj := subject(model.Environment{}, model.ElementSnapshot{"core:fire": 1})

	assert.True(t, e.Evaluate(s, subj))
	assert.EqualValues(t, 1, e.Evaluations())

	// same spec content built separately hits the same entry
	clock.Advance(99)
	assert.True(t, e.Evaluate(spec(t, "elements: [{element: core:fire}]"), subj))
	assert.EqualValues(t, 1, e.Evaluations())

	// stale elements are ignored while the entry lives
	subj.Elements = model.ElementSnapshot{}
	assert.True(t, e.Evaluate(s, subj))
	assert.EqualValues(t, 1, e.Evaluations())

	clock.Advance(1)
	assert.False(t, e.Evaluate(s, subj))
	assert.EqualValues(t, 2, e.Evaluations())
}

func TestCache_KeyedByActor(t *testing.T) {
	clock := &model.ManualClock{}
	e := NewEvaluator(WithCache(NewCache(clock, 100)))
	s := spec(t, "elements: [{element: core:fire}]")

	a := model.Subject{ID: 1, Elements: model.ElementSnapshot{"core:fire": 1}}
	b := model.Subject{ID: 2}

	assert.True(t, e.Evaluate(s, a))
	assert.False(t, e.Evaluate(s, b))
	assert.EqualValues(t, 2, e.Evaluations())
}

func TestCache_DisabledMatchesEnabled(t *testing.T) {
	clock := &model.ManualClock{}
	cached := NewEvaluator(WithCache(NewCache(clock, 5)))
	plain := NewEvaluator()
	s := spec(t, "time: day\nhealth: {percentage: 0.5}")

	for tick := int64(0); tick < 30000; tick += 1500 {
		clock.Set(tick)
		cached.Cache().Clear()
		subj := subject(model.Environment{WorldTime: tick, Health: float64(tick % 20), MaxHealth: 20}, nil)
		assert.Equal(t, plain.Evaluate(s, subj), cached.Evaluate(s, subj), "tick %d", tick)
	}
}

func TestCache_PurgeAndForget(t *testing.T) {
	clock := &model.ManualClock{}
	c := NewCache(clock, 10)
	fp := FingerprintOf(&model.ConditionSpec{Difficulty: "easy"})

	c.Store(1, fp, true)
	c.Store(2, fp, false)
	assert.Equal(t, 2, c.Len())

	c.Forget(1)
	assert.Equal(t, 1, c.Len())

	clock.Advance(10)
	assert.Equal(t, 1, c.Purge())
	assert.Zero(t, c.Len())
}

func TestFingerprint(t *testing.T) {
	a := FingerprintOf(spec(t, "moon_phase: [4, 0]\nbiome: plains"))
	b := FingerprintOf(spec(t, "biome: [plains]\nmoon_phase: [0, 4]"))
	c := FingerprintOf(spec(t, "biome: desert\nmoon_phase: [0, 4]"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, FingerprintOf(spec(t, "weather: rain")), FingerprintOf(spec(t, "weather: clear")))
}
