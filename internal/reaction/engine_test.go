package reaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/elemcore/internal/condition"
	"github.com/udisondev/elemcore/internal/data"
	"github.com/udisondev/elemcore/internal/model"
	"github.com/udisondev/elemcore/internal/testutil"
)

const (
	fire  model.ElementID = "core:fire"
	water model.ElementID = "core:water"
	ice   model.ElementID = "core:ice"
	storm model.ElementID = "core:storm"
)

type fixture struct {
	engine    *Engine
	reactions *data.StaticSource[model.ReactionDefinition]
	pairs     *data.StaticSource[model.AttackDefenseReaction]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := data.NewManager()
	f := &fixture{
		reactions: data.NewStaticSource[model.ReactionDefinition]("test", 100),
		pairs:     data.NewStaticSource[model.AttackDefenseReaction]("test", 100),
	}
	require.NoError(t, data.RegisterSource[model.ReactionDefinition](m, data.TypeReactions, f.reactions))
	require.NoError(t, data.RegisterSource[model.AttackDefenseReaction](m, data.TypeAttackDefense, f.pairs))

	e, err := NewEngine(m, condition.NewEvaluator())
	require.NoError(t, err)
	f.engine = e
	return f
}

func (f *fixture) addReaction(t *testing.T, def model.ReactionDefinition) {
	t.Helper()
	require.NoError(t, f.reactions.Put(def))
	f.engine.reactions.Invalidate()
}

func (f *fixture) addPair(t *testing.T, r model.AttackDefenseReaction) {
	t.Helper()
	require.NoError(t, f.pairs.Put(r))
	f.engine.attackDefense.Invalidate()
}

func subject(id model.ActorID, elems model.ElementSnapshot) model.Subject {
	return model.Subject{ID: id, Elements: elems, Env: model.Environment{Biome: "plains", Health: 20, MaxHealth: 20}}
}

func outcome(dm, extra float64) *model.ReactionOutcome {
	o := model.NeutralOutcome()
	o.DamageMultiplier = dm
	o.ExtraDamage = extra
	return &o
}

func TestResolveAttack_InducedRates(t *testing.T) {
	f := newFixture(t)
	f.addReaction(t, model.ReactionDefinition{
		Key:  "steam",
		Kind: model.ReactionInduced,
		Entries: []model.ReactionEntry{{
			MatchElements: []model.ElementID{fire, water},
			RateArray:     []float64{1.5, 0.5},
			Effect: model.ReactionEffect{
				Afflict: []model.StatusEffect{{EffectID: "minecraft:weakness", Duration: 60}},
			},
		}},
	})

	attacker := subject(1, model.ElementSnapshot{fire: 10, ice: 3})
	target := subject(2, model.ElementSnapshot{water: 5})

	res := f.engine.ResolveAttack(context.Background(), attacker, target)
	assert.InDelta(t, 30.0, res.FinalDamage(10), 1e-9)
	assert.Equal(t, []string{"steam"}, res.Triggered)
	require.Len(t, res.TargetEffects, 1)
	assert.Equal(t, "minecraft:weakness", res.TargetEffects[0].EffectID)
}

func TestResolveAttack_InducedNeedsStrongestElement(t *testing.T) {
	f := newFixture(t)
	f.addReaction(t, model.ReactionDefinition{
		Key:  "steam",
		Kind: model.ReactionInduced,
		Entries: []model.ReactionEntry{{
			MatchElements: []model.ElementID{fire, water},
			RateArray:     []float64{1.5, 0.5},
		}},
	})

	attacker := subject(1, model.ElementSnapshot{fire: 2, ice: 8})
	target := subject(2, model.ElementSnapshot{water: 5})

	res := f.engine.ResolveAttack(context.Background(), attacker, target)
	assert.True(t, res.IsEmpty())
	assert.InDelta(t, 10.0, res.FinalDamage(10), 1e-9)
}

func TestResolveAttack_ComposesMultipleReactions(t *testing.T) {
	f := newFixture(t)
	f.addPair(t, model.AttackDefenseReaction{ID: "melt", ElementA: fire, ElementB: ice, Priority: 10, Attack: outcome(1.2, 2)})
	f.addPair(t, model.AttackDefenseReaction{ID: "scald", ElementA: fire, ElementB: water, Priority: 5, Attack: outcome(1.5, 3)})

	attacker := subject(1, model.ElementSnapshot{fire: 10})
	target := subject(2, model.ElementSnapshot{ice: 4, water: 4})

	res := f.engine.ResolveAttack(context.Background(), attacker, target)
	assert.InDelta(t, 1.8, res.DamageMultiplier, 1e-9)
	assert.InDelta(t, 5.0, res.ExtraDamage, 1e-9)
	assert.Equal(t, []string{"melt", "scald"}, res.Triggered)
}

func TestResolveAttack_PairEitherDirection(t *testing.T) {
	f := newFixture(t)
	f.addPair(t, model.AttackDefenseReaction{ID: "melt", ElementA: fire, ElementB: ice, Attack: outcome(2, 0)})

	res := f.engine.ResolveAttack(context.Background(),
		subject(1, model.ElementSnapshot{ice: 1}),
		subject(2, model.ElementSnapshot{fire: 1}))
	assert.InDelta(t, 2.0, res.DamageMultiplier, 1e-9)

	res = f.engine.ResolveAttack(context.Background(),
		subject(1, model.ElementSnapshot{ice: 1}),
		subject(2, model.ElementSnapshot{water: 1}))
	assert.True(t, res.IsEmpty())
}

func TestResolveAttack_ConditionsGate(t *testing.T) {
	f := newFixture(t)
	f.addPair(t, model.AttackDefenseReaction{
		ID: "melt", ElementA: fire, ElementB: ice,
		Attack: outcome(2, 0),
		Conditions: &model.ReactionConditions{
			Target: &model.ConditionSpec{Biome: &model.StringMatch{Values: []string{"desert"}}},
		},
	})

	attacker := subject(1, model.ElementSnapshot{fire: 1})
	target := subject(2, model.ElementSnapshot{ice: 1})

	res := f.engine.ResolveAttack(context.Background(), attacker, target)
	assert.True(t, res.IsEmpty(), "target stands in plains")

	target.Env.Biome = "desert"
	res = f.engine.ResolveAttack(context.Background(), attacker, target)
	assert.Equal(t, []string{"melt"}, res.Triggered)
}

func TestResolveAttack_QueuesMounts(t *testing.T) {
	f := newFixture(t)
	f.addPair(t, model.AttackDefenseReaction{
		ID: "freeze", ElementA: water, ElementB: ice,
		Mount: &model.MountData{Element: ice, Amount: 5, Duration: 40, Probability: 1},
	})
	f.addPair(t, model.AttackDefenseReaction{
		ID: "charge", ElementA: storm, ElementB: water,
		MountTarget: model.MountOnSelf,
		AdvancedMount: &model.AdvancedMountData{
			Element: storm, BaseAmount: 2, BaseDuration: 20, Probability: 1, StackBehavior: model.StackAdd,
		},
	})

	attacker := subject(1, model.ElementSnapshot{water: 1, storm: 1})
	target := subject(2, model.ElementSnapshot{ice: 1, water: 1})

	res := f.engine.ResolveAttack(context.Background(), attacker, target)
	require.Len(t, res.Mounts, 1)
	assert.Equal(t, model.ActorID(2), res.Mounts[0].Actor)
	assert.Equal(t, "freeze", res.Mounts[0].Source)
	require.Len(t, res.AdvancedMounts, 1)
	assert.Equal(t, model.ActorID(1), res.AdvancedMounts[0].Actor)

	def := f.engine.ResolveDefense(context.Background(), target, attacker)
	assert.Empty(t, def.Mounts)
}

func TestResolveExchange_MergesDefense(t *testing.T) {
	f := newFixture(t)
	defense := model.NeutralOutcome()
	defense.DefenseMultiplier = 0.5
	defense.DamageReduction = 1
	defense.SelfEffects = []model.StatusEffect{{EffectID: "test:shield", Duration: 40}}
	defense.TargetEffects = []model.StatusEffect{{EffectID: "test:burn", Duration: 40}}
	defense.SelfModifiers = []model.AttributeModifier{{ID: "ward", Attribute: "armor", Amount: 2}}
	f.addPair(t, model.AttackDefenseReaction{ID: "melt", ElementA: fire, ElementB: ice, Attack: outcome(2, 0), Defense: &defense})

	res := f.engine.ResolveExchange(context.Background(),
		subject(1, model.ElementSnapshot{fire: 1}),
		subject(2, model.ElementSnapshot{ice: 1}))

	// 10 * 2 * 0.5 - 1
	assert.InDelta(t, 9.0, res.FinalDamage(10), 1e-9)
	assert.Equal(t, []string{"melt", "melt"}, res.Triggered)

	// oriented from the attacker: the defender's own effects target the defender
	require.Len(t, res.TargetEffects, 1)
	assert.Equal(t, "test:shield", res.TargetEffects[0].EffectID)
	require.Len(t, res.SelfEffects, 1)
	assert.Equal(t, "test:burn", res.SelfEffects[0].EffectID)
	require.Len(t, res.TargetModifiers, 1)
	assert.Equal(t, "ward", res.TargetModifiers[0].ID)
	assert.Empty(t, res.SelfModifiers)
}

func TestGuard_PanicDiscardsLocalContribution(t *testing.T) {
	f := newFixture(t)
	res := NewResult()

	f.engine.guard("broken", func() error {
		local := NewResult()
		local.applyOutcome(*outcome(3, 4))
		if local.DamageMultiplier > 1 {
			panic("mount data corrupted")
		}
		res.Merge(local)
		return nil
	})
	f.engine.guard("failing", func() error {
		local := NewResult()
		local.applyOutcome(*outcome(5, 6))
		return testutil.ErrSimulated
	})

	assert.True(t, res.IsEmpty())
	assert.Equal(t, 1.0, res.DamageMultiplier)
	assert.Zero(t, res.ExtraDamage)
}

func TestResolveInternal_Averages(t *testing.T) {
	f := newFixture(t)
	f.addReaction(t, model.ReactionDefinition{
		Key:  "fusion",
		Kind: model.ReactionInternal,
		Entries: []model.ReactionEntry{
			{MatchElements: []model.ElementID{fire, ice}, Rate: 0.1, Effect: model.ReactionEffect{
				Empower: []model.StatusEffect{{EffectID: "minecraft:strength", Duration: 20}},
			}},
			{MatchElements: []model.ElementID{storm}, Rate: 2},
		},
	})

	res := f.engine.ResolveInternal(context.Background(), subject(1, model.ElementSnapshot{fire: 10, ice: 20}))
	// 0.1 * (10+20)/2
	assert.InDelta(t, 1.5, res.DamageMultiplier, 1e-9)
	require.Len(t, res.SelfEffects, 1)
	assert.Equal(t, "minecraft:strength", res.SelfEffects[0].EffectID)

	res = f.engine.ResolveInternal(context.Background(), subject(1, model.ElementSnapshot{fire: 10}))
	assert.True(t, res.IsEmpty())
}

type stubHandler struct {
	name    string
	result  Result
	err     error
	panics  bool
	handles bool
	calls   int
}

func (h *stubHandler) Name() string { return h.name }

func (h *stubHandler) CanHandleInternal(model.ReactionDefinition, model.Subject) bool {
	if h.panics {
		panic("boom")
	}
	return h.handles
}

func (h *stubHandler) ProcessInternal(context.Context, model.ReactionDefinition, model.Subject) (Result, error) {
	h.calls++
	return h.result, h.err
}

func (h *stubHandler) CanHandleInduced(model.ReactionDefinition, model.Subject, model.Subject) bool {
	return h.handles
}

func (h *stubHandler) ProcessInduced(context.Context, model.ReactionDefinition, model.Subject, model.Subject) (Result, error) {
	h.calls++
	return h.result, h.err
}

func TestHandlers_AugmentBuiltin(t *testing.T) {
	f := newFixture(t)
	f.addReaction(t, model.ReactionDefinition{
		Key:     "fusion",
		Kind:    model.ReactionInternal,
		Entries: []model.ReactionEntry{{MatchElements: []model.ElementID{fire}, Rate: 0.2}},
	})

	extra := NewResult()
	extra.ExtraDamage = 4
	extra.Triggered = []string{"stub"}
	good := &stubHandler{name: "good", handles: true, result: extra}
	failing := &stubHandler{name: "failing", handles: true, err: testutil.ErrSimulated, result: extra}
	panicking := &stubHandler{name: "panicking", panics: true}

	f.engine.RegisterHandler(panicking)
	f.engine.RegisterHandler(failing)
	f.engine.RegisterHandler(good)
	require.Len(t, f.engine.Handlers(), 3)

	res := f.engine.ResolveInternal(context.Background(), subject(1, model.ElementSnapshot{fire: 10}))
	assert.InDelta(t, 2.0, res.DamageMultiplier, 1e-9, "built-in still applies")
	assert.InDelta(t, 4.0, res.ExtraDamage, 1e-9, "only the successful handler contributes")
	assert.Equal(t, []string{"stub", "fusion"}, res.Triggered)
	assert.Equal(t, 1, good.calls)
	assert.Equal(t, 1, failing.calls)
}

func TestHandlers_Induced(t *testing.T) {
	f := newFixture(t)
	f.addReaction(t, model.ReactionDefinition{
		Key:  "steam",
		Kind: model.ReactionInduced,
		Entries: []model.ReactionEntry{{
			MatchElements: []model.ElementID{fire, water},
			RateArray:     []float64{2, 1},
		}},
	})
	boost := NewResult()
	boost.DamageMultiplier = 1.5
	f.engine.RegisterHandler(&stubHandler{name: "boost", handles: true, result: boost})

	res := f.engine.ResolveAttack(context.Background(),
		subject(1, model.ElementSnapshot{fire: 3}),
		subject(2, model.ElementSnapshot{water: 1}))
	assert.InDelta(t, 30.0, res.FinalDamage(10), 1e-9)
}

func TestFinalDamage(t *testing.T) {
	tests := []struct {
		name string
		res  func() Result
		base float64
		want float64
	}{
		{"neutral", NewResult, 10, 10},
		{"floored at zero", func() Result {
			r := NewResult()
			r.DamageReduction = 50
			return r
		}, 10, 0},
		{"rates", func() Result {
			r := NewResult()
			r.DamageRate = 2
			r.DefenseRate = 4
			r.ExtraDamage = 1
			return r
		}, 10, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.res()
			assert.InDelta(t, tt.want, r.FinalDamage(tt.base), 1e-9)
		})
	}
}
