package data

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("github.com/udisondev/elemcore/internal/data")

// Layer merges all sources of one data type into a cached view.
//
// Thread-safe: reads are lock-free against the cached view, registration and
// invalidation take the write lock. The view is rebuilt wholesale on the
// first read after invalidation; concurrent readers share one rebuild.
type Layer[T any] struct {
	dataType    DataType
	strategy    Strategy
	loadTimeout time.Duration
	notify      func(DataType)

	mu      sync.RWMutex
	sources []Source[T] // sorted by priority, highest first

	gen    atomic.Uint64
	merged atomic.Pointer[mergedView[T]]
	flight singleflight.Group
}

type mergedView[T any] struct {
	gen  uint64
	data map[string]T
}

func newLayer[T any](dt DataType, strategy Strategy, loadTimeout time.Duration, notify func(DataType)) *Layer[T] {
	return &Layer[T]{
		dataType:    dt,
		strategy:    strategy,
		loadTimeout: loadTimeout,
		notify:      notify,
	}
}

// DataType returns the type this layer serves.
func (l *Layer[T]) DataType() DataType { return l.dataType }

// Strategy returns the merge strategy of this layer.
func (l *Layer[T]) Strategy() Strategy { return l.strategy }

// RegisterSource adds a source keeping the list sorted by descending priority
// and drops the cached view. Sources of equal priority keep registration order.
func (l *Layer[T]) RegisterSource(src Source[T]) {
	l.mu.Lock()
	l.sources = append(l.sources, src)
	sort.SliceStable(l.sources, func(i, j int) bool {
		return l.sources[i].Priority() > l.sources[j].Priority()
	})
	l.mu.Unlock()

	slog.Debug("data source registered",
		"type", l.dataType,
		"source", src.SourceType(),
		"priority", src.Priority())

	l.Invalidate()
}

// Sources returns a copy of the registered sources, highest priority first.
func (l *Layer[T]) Sources() []Source[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Source[T], len(l.sources))
	copy(out, l.sources)
	return out
}

// Invalidate drops the cached view; the next read rebuilds it.
func (l *Layer[T]) Invalidate() {
	l.gen.Add(1)
	l.merged.Store(nil)
}

// Reload drops the cached view and notifies reload listeners.
func (l *Layer[T]) Reload() {
	l.Invalidate()
	if l.notify != nil {
		l.notify(l.dataType)
	}
}

// Get returns the authoritative definition for id.
func (l *Layer[T]) Get(id string) (T, bool) {
	v, ok := l.view()[id]
	return v, ok
}

// All returns the merged id→definition map.
// IMPORTANT: the map is shared between readers and must not be modified.
func (l *Layer[T]) All() map[string]T {
	return l.view()
}

// Len returns the number of merged definitions.
func (l *Layer[T]) Len() int {
	return len(l.view())
}

func (l *Layer[T]) view() map[string]T {
	gen := l.gen.Load()
	if mv := l.merged.Load(); mv != nil && mv.gen == gen {
		return mv.data
	}

	v, _, _ := l.flight.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		data := l.merge(gen)
		// Invalidation during the merge leaves the cache empty for the next reader.
		if l.gen.Load() == gen {
			l.merged.Store(&mergedView[T]{gen: gen, data: data})
		}
		return data, nil
	})
	return v.(map[string]T)
}

func (l *Layer[T]) merge(gen uint64) map[string]T {
	ctx := context.Background()
	if l.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.loadTimeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "data.merge", trace.WithAttributes(
		attribute.String("data.type", string(l.dataType)),
		attribute.String("data.strategy", l.strategy.String()),
		attribute.Int64("data.generation", int64(gen)),
	))
	defer span.End()

	sources := l.Sources()
	if l.strategy == SourceWhitelist {
		sources = whitelisted(sources)
	}

	result := make(map[string]T)
	loaded := 0

	apply := func(src Source[T]) {
		if !src.Available() {
			slog.Debug("data source unavailable, skipped",
				"type", l.dataType,
				"source", src.SourceType())
			return
		}
		payload, err := loadSafe(ctx, src)
		if err != nil {
			span.RecordError(err, trace.WithAttributes(attribute.String("data.source", src.SourceType())))
			slog.Warn("data source failed to load, skipped",
				"type", l.dataType,
				"source", src.SourceType(),
				"priority", src.Priority(),
				"err", err)
			return
		}
		loaded++
		for id, def := range payload {
			if l.strategy == Overwrite {
				result[id] = def
				continue
			}
			if _, claimed := result[id]; !claimed {
				result[id] = def
			}
		}
	}

	if l.strategy == Overwrite {
		for i := len(sources) - 1; i >= 0; i-- {
			apply(sources[i])
		}
	} else {
		for _, src := range sources {
			apply(src)
		}
	}

	if loaded == 0 && len(sources) > 0 {
		span.SetStatus(codes.Error, "no source loaded")
	}
	span.SetAttributes(attribute.Int("data.records", len(result)), attribute.Int("data.sources_loaded", loaded))

	slog.Debug("data merged",
		"type", l.dataType,
		"records", len(result),
		"sources", len(sources),
		"loaded", loaded)

	return result
}

// whitelisted keeps only available sources at the observed maximum priority.
func whitelisted[T any](sources []Source[T]) []Source[T] {
	top, found := 0, false
	for _, s := range sources {
		if !s.Available() {
			continue
		}
		if !found || s.Priority() > top {
			top, found = s.Priority(), true
		}
	}
	out := sources[:0:0]
	for _, s := range sources {
		if found && s.Priority() == top {
			out = append(out, s)
		}
	}
	return out
}

// loadSafe converts a panicking source into an error.
func loadSafe[T any](ctx context.Context, src Source[T]) (payload map[string]T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return src.Load(ctx)
}

type panicError struct{ value any }

func (e panicError) Error() string { return fmt.Sprintf("source panicked: %v", e.value) }
