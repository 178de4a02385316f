package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/udisondev/elemcore/internal/mount"
)

var tracer = otel.Tracer("github.com/udisondev/elemcore/internal/engine")

// TickReport summarizes one Tick.
type TickReport struct {
	Tick        int64
	Mounts      mount.TickReport
	Checked     int
	Activated   int
	Deactivated int
	Swept       int
	Purged      int
}

// Tick advances every time-based component once: mounts decay and expire,
// combinations are re-checked for live actors, and every sweep interval
// dead actors are forgotten and expired condition results purged.
// The clock is not advanced here; Run does that for the engine-owned clock.
func (e *Engine) Tick(ctx context.Context) TickReport {
	_, span := tracer.Start(ctx, "engine.tick")
	defer span.End()

	e.ticks++
	rep := TickReport{Tick: e.clock.Tick()}
	rep.Mounts = e.Mounts.Tick()

	for _, actor := range e.host.Actors() {
		s, ok := e.Subject(actor)
		if !ok {
			continue
		}
		tr := e.Combos.CheckAndApply(s)
		rep.Checked++
		rep.Activated += len(tr.Activated)
		rep.Deactivated += len(tr.Deactivated)
	}

	if e.ticks%max(e.cfg.MountSweepInterval, 1) == 0 {
		rep.Swept = e.Combos.Sweep(e.host)
		if c := e.Conditions.Cache(); c != nil {
			rep.Purged = c.Purge()
		}
	}

	span.SetAttributes(
		attribute.Int("actors.checked", rep.Checked),
		attribute.Int("combos.activated", rep.Activated),
		attribute.Int("combos.deactivated", rep.Deactivated),
	)
	return rep
}

// Run ticks at cfg.TicksPerSecond until ctx is done. With the engine-owned
// clock each tick also advances time by one. onTick, if set, runs on the
// tick goroutine after every tick, so it may mutate engine state.
func (e *Engine) Run(ctx context.Context, onTick func(context.Context, TickReport)) error {
	ticker := time.NewTicker(e.cfg.TickInterval())
	defer ticker.Stop()

	slog.Info("tick loop started", "tps", e.cfg.TicksPerSecond)
	for {
		select {
		case <-ctx.Done():
			slog.Info("tick loop stopped", "ticks", e.ticks)
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			rep := e.Step(ctx)
			if onTick != nil {
				onTick(ctx, rep)
			}
		}
	}
}

// Step advances the engine-owned clock (if any) and ticks once.
func (e *Engine) Step(ctx context.Context) TickReport {
	if e.manual != nil {
		e.manual.Advance(1)
	}
	rep := e.Tick(ctx)
	if rep.Activated > 0 || rep.Deactivated > 0 || rep.Mounts.Untracked > 0 {
		slog.Debug("tick",
			"tick", rep.Tick,
			"activated", rep.Activated,
			"deactivated", rep.Deactivated,
			"mounts_expired", rep.Mounts.Expired,
			"untracked", rep.Mounts.Untracked)
	}
	return rep
}
