// Package engine is the service context: it constructs and wires the data
// manager, element registry, condition evaluator and the mount, reaction and
// combination engines, and drives them from one tick loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/udisondev/elemcore/internal/combo"
	"github.com/udisondev/elemcore/internal/condition"
	"github.com/udisondev/elemcore/internal/config"
	"github.com/udisondev/elemcore/internal/data"
	"github.com/udisondev/elemcore/internal/element"
	"github.com/udisondev/elemcore/internal/model"
	"github.com/udisondev/elemcore/internal/mount"
	"github.com/udisondev/elemcore/internal/reaction"
)

// Engine holds every component. Fields are exported for queries; mutation
// goes through Engine methods or the components' own APIs.
type Engine struct {
	Data       *data.Manager
	Elements   *element.Registry
	Values     *element.Values
	Conditions *condition.Evaluator
	Mounts     *mount.Engine
	Reactions  *reaction.Engine
	Combos     *combo.Engine

	cfg      config.Engine
	host     Host
	clock    model.Clock
	manual   *model.ManualClock // nil when the host drives the clock
	rng      model.Rand
	store    data.DefinitionStore
	bindings *data.Layer[model.EntityBinding]
	packs    []data.Pack
	scripts  []*reaction.LuaHandler
	ticks    int64
}

// Option configures New.
type Option func(*Engine)

// WithClock makes the host drive time; Run then only triggers ticks.
func WithClock(c model.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRand replaces the probability source.
func WithRand(r model.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithDefinitionStore adds a database-backed source for every data type at
// cfg.Database.Priority.
func WithDefinitionStore(s data.DefinitionStore) Option {
	return func(e *Engine) { e.store = s }
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// New builds the engine from cfg. Packs, the definition store and scripts
// are registered here; loading stays lazy until first access.
func New(cfg config.Engine, host Host, opts ...Option) (*Engine, error) {
	strategy, err := data.ParseStrategy(cfg.MergeStrategy)
	if err != nil {
		return nil, fmt.Errorf("merge strategy: %w", err)
	}

	e := &Engine{cfg: cfg, host: host, rng: globalRand{}}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.manual = &model.ManualClock{}
		e.clock = e.manual
	}

	e.Data = data.NewManager(data.WithStrategy(strategy))
	if e.Elements, err = element.NewRegistry(e.Data); err != nil {
		return nil, err
	}
	e.Values = element.NewValues(e.Elements, host)
	if e.bindings, err = data.LayerFor[model.EntityBinding](e.Data, data.TypeEntityBindings); err != nil {
		return nil, err
	}

	var condOpts []condition.Option
	if cfg.ConditionCache {
		condOpts = append(condOpts, condition.WithCache(condition.NewCache(e.clock, cfg.ConditionCacheTTL)))
	}
	e.Conditions = condition.NewEvaluator(condOpts...)

	e.Mounts = mount.NewEngine(mount.Config{
		DefaultMaxStacks: cfg.MountMaxStacks,
		IndependentCap:   cfg.MountIndependentCap,
		SweepInterval:    cfg.MountSweepInterval,
	}, e.Values, host, e.clock, e.rng)

	if e.Reactions, err = reaction.NewEngine(e.Data, e.Conditions); err != nil {
		return nil, err
	}
	e.Combos, err = combo.NewEngine(combo.Config{
		CheckThreshold:  cfg.ComboCheckThreshold,
		CacheMaxAge:     cfg.ComboCacheMaxAge,
		DefaultDuration: cfg.ComboDefaultDuration,
		RefreshMargin:   cfg.ComboRefreshMargin,
		Durations:       cfg.ComboDurations,
	}, e.Data, e.Conditions, host, e, e.clock)
	if err != nil {
		return nil, err
	}

	for _, p := range cfg.Packs {
		if err := e.AddPack(packFromConfig(p)); err != nil {
			return nil, err
		}
	}
	if e.store != nil {
		if err := e.registerStore(cfg.Database.Priority); err != nil {
			return nil, err
		}
	}
	for _, s := range cfg.Scripts {
		h, err := reaction.LoadLuaHandler(s.Path)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.scripts = append(e.scripts, h)
		e.Reactions.RegisterHandler(h)
	}

	slog.Info("engine ready",
		"strategy", strategy,
		"packs", len(e.packs),
		"db", e.store != nil,
		"scripts", len(e.scripts))
	return e, nil
}

func packFromConfig(p config.Pack) data.Pack {
	abs, err := filepath.Abs(p.Path)
	if err != nil {
		abs = p.Path
	}
	return data.Pack{
		FS:        os.DirFS(filepath.Dir(abs)),
		Path:      filepath.Base(abs),
		Priority:  p.Priority,
		HotReload: p.HotReload,
	}
}

// AddPack registers pack as a source of every data type.
func (e *Engine) AddPack(p data.Pack) error {
	err := errors.Join(
		data.RegisterSource[model.ElementDefinition](e.Data, data.TypeElements, data.NewPackSource[model.ElementDefinition](p, data.TypeElements)),
		data.RegisterSource[model.ReactionDefinition](e.Data, data.TypeReactions, data.NewPackSource[model.ReactionDefinition](p, data.TypeReactions)),
		data.RegisterSource[model.AttackDefenseReaction](e.Data, data.TypeAttackDefense, data.NewPackSource[model.AttackDefenseReaction](p, data.TypeAttackDefense)),
		data.RegisterSource[model.CombinationDefinition](e.Data, data.TypeCombinations, data.NewPackSource[model.CombinationDefinition](p, data.TypeCombinations)),
		data.RegisterSource[model.EntityBinding](e.Data, data.TypeEntityBindings, data.NewPackSource[model.EntityBinding](p, data.TypeEntityBindings)),
	)
	if err != nil {
		return fmt.Errorf("pack %s: %w", p.Path, err)
	}
	e.packs = append(e.packs, p)
	return nil
}

func (e *Engine) registerStore(priority int) error {
	err := errors.Join(
		data.RegisterSource[model.ElementDefinition](e.Data, data.TypeElements, data.NewDBSource[model.ElementDefinition](e.store, data.TypeElements, priority)),
		data.RegisterSource[model.ReactionDefinition](e.Data, data.TypeReactions, data.NewDBSource[model.ReactionDefinition](e.store, data.TypeReactions, priority)),
		data.RegisterSource[model.AttackDefenseReaction](e.Data, data.TypeAttackDefense, data.NewDBSource[model.AttackDefenseReaction](e.store, data.TypeAttackDefense, priority)),
		data.RegisterSource[model.CombinationDefinition](e.Data, data.TypeCombinations, data.NewDBSource[model.CombinationDefinition](e.store, data.TypeCombinations, priority)),
		data.RegisterSource[model.EntityBinding](e.Data, data.TypeEntityBindings, data.NewDBSource[model.EntityBinding](e.store, data.TypeEntityBindings, priority)),
	)
	if err != nil {
		return fmt.Errorf("definition store: %w", err)
	}
	return nil
}

// Watcher returns a hot-reload watcher over the engine's hot-reload packs.
func (e *Engine) Watcher() *data.Watcher {
	return data.NewWatcher(e.Data, e.cfg.PackPollInterval, data.AllTypes, e.packs...)
}

// Clock returns the engine's tick source.
func (e *Engine) Clock() model.Clock { return e.clock }

// Subject snapshots actor for evaluation; false when the host lost it.
func (e *Engine) Subject(actor model.ActorID) (model.Subject, bool) {
	env, ok := e.host.Environment(actor)
	if !ok {
		return model.Subject{}, false
	}
	return model.Subject{ID: actor, Elements: e.Values.Snapshot(actor), Env: env}, true
}

// Reload re-reads every data type from its sources.
func (e *Engine) Reload(ctx context.Context) {
	e.Data.ReloadAllData()
	slog.InfoContext(ctx, "definitions reloaded", "types", len(e.Data.Types()))
}

// Close releases script states.
func (e *Engine) Close() {
	for _, h := range e.scripts {
		h.Close()
	}
	e.scripts = nil
}
