package data

import (
	"context"
	"io/fs"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DefaultPollInterval replaces a non-positive watcher interval.
const DefaultPollInterval = 2 * time.Second

// Watcher polls hot-reloadable packs and reloads the manager when a pack's
// content digest changes.
type Watcher struct {
	manager  *Manager
	interval time.Duration
	packs    []Pack
	types    []DataType

	digests map[string][blake2b.Size256]byte
}

// NewWatcher creates a watcher for the packs with HotReload set.
// types are the data types reloaded when any watched pack changes.
func NewWatcher(m *Manager, interval time.Duration, types []DataType, packs ...Pack) *Watcher {
	if interval <= 0 {
		slog.Warn("non-positive pack poll interval, using default",
			"interval", interval, "default", DefaultPollInterval)
		interval = DefaultPollInterval
	}
	w := &Watcher{
		manager:  m,
		interval: interval,
		types:    types,
		digests:  make(map[string][blake2b.Size256]byte),
	}
	for _, p := range packs {
		if p.HotReload {
			w.packs = append(w.packs, p)
		}
	}
	// baseline so the first poll does not reload unchanged packs
	for _, p := range w.packs {
		if d, err := packDigest(p); err == nil {
			w.digests[p.Path] = d
		}
	}
	return w
}

// Interval is the effective polling interval.
func (w *Watcher) Interval() time.Duration { return w.interval }

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.packs) == 0 {
		return nil
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("pack watcher started", "packs", len(w.packs), "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check compares digests once and reloads when anything changed.
// Returns the paths of changed packs.
func (w *Watcher) Check() []string {
	var changed []string
	for _, p := range w.packs {
		d, err := packDigest(p)
		if err != nil {
			slog.Warn("pack digest failed", "pack", p.Path, "err", err)
			continue
		}
		if prev, ok := w.digests[p.Path]; ok && prev == d {
			continue
		}
		w.digests[p.Path] = d
		changed = append(changed, p.Path)
	}
	if len(changed) == 0 {
		return nil
	}

	slog.Info("packs changed, reloading", "packs", changed)
	for _, dt := range w.types {
		if err := w.manager.ReloadData(dt); err != nil {
			slog.Debug("reload skipped", "type", dt, "err", err)
		}
	}
	return changed
}

func packDigest(p Pack) ([blake2b.Size256]byte, error) {
	var sum [blake2b.Size256]byte
	files, err := p.Files()
	if err != nil {
		return sum, err
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return sum, err
	}
	for _, f := range files {
		raw, err := fs.ReadFile(p.FS, f)
		if err != nil {
			return sum, err
		}
		h.Write([]byte(f))
		h.Write([]byte{0})
		h.Write(raw)
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
