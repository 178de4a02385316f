package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/elemcore/internal/combo"
	"github.com/udisondev/elemcore/internal/config"
	"github.com/udisondev/elemcore/internal/data"
	"github.com/udisondev/elemcore/internal/model"
	"github.com/udisondev/elemcore/internal/testutil"
)

const (
	fire  model.ElementID = "core:fire"
	water model.ElementID = "core:water"
	ice   model.ElementID = "core:ice"
)

const packYAML = `
elements:
  - id: core:fire
    max_value: 100
  - id: core:water
    max_value: 100
  - id: core:ice
    max_value: 100
reactions:
  - key: steam
    kind: induced
    entries:
      - match_elements: [core:fire, core:water]
        rate_array: [1.5, 0.5]
        effect:
          afflict:
            - effect: minecraft:weakness
              duration: 60
attack_defense_reactions:
  - id: freeze
    element_a: core:water
    element_b: core:ice
    attack:
      damage_multiplier: 1.2
    mount:
      element: core:ice
      amount: 5
      duration: 40
combinations:
  - id: steam_body
    required_elements: [core:fire, core:water]
    effects:
      - attribute: armor
        operation: add
        amount: 3
entity_bindings:
  - id: test:blaze
    elements:
      core:fire: 10
    mounts:
      - element: core:fire
        amount: 5
        duration: 100
`

type fixture struct {
	engine *Engine
	host   *MemoryHost
	fsys   fstest.MapFS
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	host := NewMemoryHost()
	e, err := New(config.DefaultEngine(), host, WithRand(&testutil.FixedRand{}))
	require.NoError(t, err)
	t.Cleanup(e.Close)

	fsys := fstest.MapFS{"pack.yaml": &fstest.MapFile{Data: []byte(packYAML)}}
	require.NoError(t, e.AddPack(data.Pack{FS: fsys, Path: "pack.yaml", Priority: 10, HotReload: true}))

	host.SpawnAt(1, model.Environment{Biome: "plains", Health: 20, MaxHealth: 20})
	host.SpawnAt(2, model.Environment{Biome: "plains", Health: 20, MaxHealth: 20})
	return &fixture{engine: e, host: host, fsys: fsys}
}

func (f *fixture) value(t *testing.T, actor model.ActorID, id model.ElementID) float64 {
	t.Helper()
	v, err := f.engine.Values.Get(actor, id)
	require.NoError(t, err)
	return v
}

func TestNew_RejectsUnknownStrategy(t *testing.T) {
	cfg := config.DefaultEngine()
	cfg.MergeStrategy = "random"
	_, err := New(cfg, NewMemoryHost())
	require.Error(t, err)
}

func TestPackDefinitionsReachComponents(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []model.ElementID{fire, ice, water}, f.engine.Elements.IDs())
	assert.Equal(t, []string{"test:blaze"}, f.engine.Bindings())
}

func TestBind(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Bind(1, "test:blaze"))
	assert.InDelta(t, 15.0, f.value(t, 1, fire), 1e-9, "binding value plus spawn mount")
	assert.Equal(t, 1, f.engine.Mounts.Count(1, fire))

	err := f.engine.Bind(1, "test:unknown")
	require.ErrorIs(t, err, ErrUnknownBinding)
}

func TestExchange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.Bind(1, "test:blaze"))
	_, err := f.engine.Values.Set(1, water, 1)
	require.NoError(t, err)
	_, err = f.engine.Values.Set(2, water, 5)
	require.NoError(t, err)
	_, err = f.engine.Values.Set(2, ice, 2)
	require.NoError(t, err)

	res, err := f.engine.Exchange(ctx, 1, 2)
	require.NoError(t, err)

	// 10 * 1.2 (freeze) * 1.5 / 0.5 (steam)
	assert.InDelta(t, 36.0, res.FinalDamage(10), 1e-9)
	assert.ElementsMatch(t, []string{"freeze", "steam"}, res.Triggered)
	assert.InDelta(t, 7.0, f.value(t, 2, ice), 1e-9, "freeze mount lands on the target")
	require.Len(t, f.host.Effects(2), 1)
	assert.Equal(t, "minecraft:weakness", f.host.Effects(2)[0].EffectID)

	_, err = f.engine.Exchange(ctx, 1, 99)
	require.ErrorIs(t, err, ErrUnknownActor)
}

const guardYAML = `
attack_defense_reactions:
  - id: guard
    element_a: core:fire
    element_b: core:water
    attack:
      target_effects:
        - effect: test:scorch
          duration: 20
    defense:
      defense_multiplier: 0.5
      self_effects:
        - effect: test:shield
          duration: 40
      target_effects:
        - effect: test:burn
          duration: 40
      self_attribute_modifiers:
        - id: guard_armor
          attribute: armor
          amount: 2
      target_attribute_modifiers:
        - id: guard_slow
          attribute: movement_speed
          operation: multiply_total
          amount: -0.2
`

func effectIDs(effects []model.StatusEffect) []string {
	ids := make([]string, 0, len(effects))
	for _, e := range effects {
		ids = append(ids, e.EffectID)
	}
	return ids
}

func TestExchange_DefenseEffectsLandOnTheirOwners(t *testing.T) {
	f := newFixture(t)
	fsys := fstest.MapFS{"guard.yaml": &fstest.MapFile{Data: []byte(guardYAML)}}
	require.NoError(t, f.engine.AddPack(data.Pack{FS: fsys, Path: "guard.yaml", Priority: 20}))
	_, err := f.engine.Values.Set(1, fire, 10)
	require.NoError(t, err)
	_, err = f.engine.Values.Set(2, water, 5)
	require.NoError(t, err)

	res, err := f.engine.Exchange(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Contains(t, res.Triggered, "guard")

	// attacker: the defender's retaliation
	assert.ElementsMatch(t, []string{"test:burn"}, effectIDs(f.host.Effects(1)))
	// defender: the attacker's hit, the induced affliction and its own guard
	assert.ElementsMatch(t, []string{"test:scorch", "minecraft:weakness", "test:shield"}, effectIDs(f.host.Effects(2)))

	assert.Contains(t, f.host.Modifiers(1), "guard_slow")
	assert.NotContains(t, f.host.Modifiers(1), "guard_armor")
	assert.Contains(t, f.host.Modifiers(2), "guard_armor")
	assert.NotContains(t, f.host.Modifiers(2), "guard_slow")
}

func TestTick_CombinationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Values.Set(1, fire, 3)
	require.NoError(t, err)
	_, err = f.engine.Values.Set(1, water, 1)
	require.NoError(t, err)

	rep := f.engine.Step(ctx)
	assert.Equal(t, 2, rep.Checked)
	assert.Equal(t, 1, rep.Activated)
	assert.Equal(t, []string{"steam_body"}, f.engine.Combos.Active(1))
	mods := f.host.Modifiers(1)
	require.Contains(t, mods, combo.ModifierID("steam_body", "armor"))
	assert.InDelta(t, 3.0, mods[combo.ModifierID("steam_body", "armor")].Amount, 1e-9)

	rep = f.engine.Step(ctx)
	assert.Zero(t, rep.Activated)
	assert.Len(t, f.host.Modifiers(1), 1)

	_, err = f.engine.Values.Set(1, water, 0)
	require.NoError(t, err)
	rep = f.engine.Step(ctx)
	assert.Equal(t, 1, rep.Deactivated)
	assert.Empty(t, f.host.Modifiers(1))
}

func TestTick_SweepsDeadActors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.Bind(1, "test:blaze"))
	f.engine.Step(ctx)
	require.Contains(t, f.engine.Combos.Tracked(), model.ActorID(1))

	f.host.Kill(1)
	var swept int
	for range config.DefaultEngine().MountSweepInterval {
		swept += f.engine.Step(ctx).Swept
	}
	assert.Equal(t, 1, swept)
	assert.NotContains(t, f.engine.Combos.Tracked(), model.ActorID(1))
	assert.NotContains(t, f.engine.Mounts.Tracked(), model.ActorID(1))
}

func TestWatcherReloadRechecksCombinations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Values.Set(1, fire, 3)
	require.NoError(t, err)
	_, err = f.engine.Values.Set(1, water, 1)
	require.NoError(t, err)
	f.engine.Step(ctx)
	require.True(t, f.engine.Combos.IsActive(1, "steam_body"))

	w := f.engine.Watcher()
	f.fsys["pack.yaml"] = &fstest.MapFile{Data: []byte(`
elements:
  - id: core:fire
    max_value: 100
  - id: core:water
    max_value: 100
  - id: core:ice
    max_value: 100
combinations:
  - id: steam_body
    required_elements: [core:fire, core:ice]
    effects:
      - attribute: armor
        amount: 3
`)}
	assert.Equal(t, []string{"pack.yaml"}, w.Check())

	assert.False(t, f.engine.Combos.IsActive(1, "steam_body"), "reload re-checks tracked actors")
	assert.Empty(t, f.host.Modifiers(1))
}

func TestScriptsFromConfig(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "glow.lua")
	require.NoError(t, os.WriteFile(script, []byte(`
function can_handle_internal(key, actor) return true end
function process_internal(key, actor) return { extra_damage = 2 } end
`), 0o644))

	cfg := config.DefaultEngine()
	cfg.Scripts = []config.Script{{Path: script}}
	e, err := New(cfg, NewMemoryHost())
	require.NoError(t, err)
	defer e.Close()
	assert.Len(t, e.Reactions.Handlers(), 1)

	cfg.Scripts = []config.Script{{Path: filepath.Join(dir, "missing.lua")}}
	_, err = New(cfg, NewMemoryHost())
	require.Error(t, err)
}

func TestPacksFromConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(packYAML), 0o644))

	cfg := config.DefaultEngine()
	cfg.Packs = []config.Pack{{Path: dir, Priority: 10}}
	e, err := New(cfg, NewMemoryHost())
	require.NoError(t, err)
	defer e.Close()

	assert.True(t, e.Elements.IsRegistered(fire))
	_, ok := data.Get[model.CombinationDefinition](e.Data, data.TypeCombinations, "steam_body")
	assert.True(t, ok)
}

func TestRun(t *testing.T) {
	cfg := config.DefaultEngine()
	cfg.TicksPerSecond = 1000
	e, err := New(cfg, NewMemoryHost())
	require.NoError(t, err)

	ctx, cancel := testutil.ContextWithCancel(t)
	var last TickReport
	err = e.Run(ctx, func(_ context.Context, rep TickReport) {
		last = rep
		if rep.Tick == 3 {
			cancel()
		}
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), last.Tick)
	assert.Equal(t, int64(3), e.Clock().Tick())
}
