package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/elemcore/internal/config"
	"github.com/udisondev/elemcore/internal/db"
	"github.com/udisondev/elemcore/internal/engine"
	"github.com/udisondev/elemcore/internal/model"
	"github.com/udisondev/elemcore/internal/telemetry"
)

const ConfigPath = "config/elemcore.yaml"

// baseDamage of every simulated hit.
const baseDamage = 10

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("ELEMCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadEngine(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))
	slog.Info("elemcore simulator starting", "config", cfgPath, "tps", cfg.TicksPerSecond, "packs", len(cfg.Packs))

	shutdown, err := telemetry.Setup(ctx, "elemsim", cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	host := engine.NewMemoryHost()
	var opts []engine.Option
	if cfg.Database.Enabled {
		database, err := db.New(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()

		if err := db.RunMigrations(ctx, cfg.Database.DSN); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("definitions database ready", "priority", cfg.Database.Priority)
		opts = append(opts, engine.WithDefinitionStore(database.Definitions()))
	}

	eng, err := engine.New(cfg, host, opts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer eng.Close()

	actors := spawn(eng, host)
	if len(actors) == 0 {
		slog.Warn("no entity bindings loaded, nothing to simulate")
	}

	sim := &simulation{engine: eng, actors: actors, every: int64(cfg.TicksPerSecond)}
	watcher := eng.Watcher()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(gctx, sim.onTick)
	})

	g.Go(func() error {
		if err := watcher.Run(gctx); err != nil {
			return fmt.Errorf("pack watcher: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("simulation error: %w", err)
	}
	return nil
}

// spawn creates one actor per entity binding.
func spawn(eng *engine.Engine, host *engine.MemoryHost) []model.ActorID {
	var actors []model.ActorID
	for i, binding := range eng.Bindings() {
		id := model.ActorID(i + 1)
		host.SpawnAt(id, model.Environment{
			Biome:      "minecraft:plains",
			Dimension:  "minecraft:overworld",
			Difficulty: "normal",
			Health:     20,
			MaxHealth:  20,
		})
		if err := eng.Bind(id, binding); err != nil {
			slog.Warn("binding actor", "actor", id, "binding", binding, "err", err)
			continue
		}
		actors = append(actors, id)
		slog.Info("actor spawned", "actor", id, "binding", binding)
	}
	return actors
}

// simulation makes every actor hit the next one once per second of ticks.
type simulation struct {
	engine *engine.Engine
	actors []model.ActorID
	every  int64
}

func (s *simulation) onTick(ctx context.Context, rep engine.TickReport) {
	if len(s.actors) < 2 || rep.Tick%s.every != 0 {
		return
	}
	for i, attacker := range s.actors {
		target := s.actors[(i+1)%len(s.actors)]
		res, err := s.engine.Exchange(ctx, attacker, target)
		if err != nil {
			slog.Warn("exchange failed", "attacker", attacker, "target", target, "err", err)
			continue
		}
		if res.IsEmpty() {
			continue
		}
		slog.Info("exchange",
			"tick", rep.Tick,
			"attacker", attacker,
			"target", target,
			"reactions", res.Triggered,
			"damage", res.FinalDamage(baseDamage),
			"mounts", len(res.Mounts)+len(res.AdvancedMounts))
	}
	for _, actor := range s.actors {
		if active := s.engine.Combos.Active(actor); len(active) > 0 {
			slog.Info("combinations", "tick", rep.Tick, "actor", actor, "active", active)
		}
	}
}
