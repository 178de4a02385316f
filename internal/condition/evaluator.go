// Package condition evaluates ConditionSpec predicates against an actor snapshot.
package condition

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/udisondev/elemcore/internal/model"
)

// Catalog lets the evaluator reject ids the host does not know.
// Without a catalog every referenced biome/dimension is accepted.
type Catalog interface {
	KnownBiome(id string) bool
	KnownDimension(id string) bool
}

// Evaluator ANDs every predicate of a spec. It never panics or returns an
// error: unresolvable values fail closed and are logged.
type Evaluator struct {
	cache   *Cache
	catalog Catalog
	limiter *model.LogLimiter

	evaluations atomic.Int64
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCache enables result caching. A nil cache disables it.
func WithCache(c *Cache) Option {
	return func(e *Evaluator) { e.cache = c }
}

// WithCatalog validates referenced biomes and dimensions.
func WithCatalog(c Catalog) Option {
	return func(e *Evaluator) { e.catalog = c }
}

// WithLogLimiter replaces the default warning limiter.
func WithLogLimiter(l *model.LogLimiter) Option {
	return func(e *Evaluator) { e.limiter = l }
}

func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{limiter: model.NewLogLimiter(30 * time.Second)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache returns the result cache, nil when disabled.
func (e *Evaluator) Cache() *Cache { return e.cache }

// Evaluations returns how many specs were evaluated without a cache hit.
func (e *Evaluator) Evaluations() int64 { return e.evaluations.Load() }

// Evaluate reports whether s satisfies spec. An empty spec always passes.
func (e *Evaluator) Evaluate(spec *model.ConditionSpec, s model.Subject) bool {
	if spec.IsEmpty() {
		return true
	}

	var key Fingerprint
	if e.cache != nil {
		key = FingerprintOf(spec)
		if result, ok := e.cache.Lookup(s.ID, key); ok {
			return result
		}
	}

	result := e.evaluateSafe(spec, s)

	if e.cache != nil {
		e.cache.Store(s.ID, key, result)
	}
	return result
}

func (e *Evaluator) evaluateSafe(spec *model.ConditionSpec, s model.Subject) (ok bool) {
	e.evaluations.Add(1)
	defer func() {
		if r := recover(); r != nil {
			e.limiter.Warn("condition:panic", "condition evaluation panicked, failing closed",
				"actor", s.ID, "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	return e.evaluate(spec, s)
}

func (e *Evaluator) evaluate(spec *model.ConditionSpec, s model.Subject) bool {
	env := s.Env

	if spec.Biome != nil && !e.matchRegistry("biome", env.Biome, *spec.Biome, e.knownBiome) {
		return false
	}
	if spec.Dimension != nil && !e.matchRegistry("dimension", env.Dimension, *spec.Dimension, e.knownDimension) {
		return false
	}
	if spec.Weather != nil && !e.matchWeather(*spec.Weather, env) {
		return false
	}
	if spec.Time != nil && !e.matchTime(*spec.Time, env) {
		return false
	}
	if spec.MoonPhase != nil && !matchMoonPhase(*spec.MoonPhase, env) {
		return false
	}
	for _, ec := range spec.Elements {
		if !matchElement(ec, s.Elements) {
			return false
		}
	}
	if spec.Health != nil && !e.matchHealth(*spec.Health, env) {
		return false
	}
	if spec.Difficulty != "" {
		if env.Difficulty == "" {
			e.limiter.Warn("condition:difficulty", "difficulty not resolved, failing closed", "actor", s.ID)
			return false
		}
		if !strings.EqualFold(spec.Difficulty, env.Difficulty) {
			return false
		}
	}
	return true
}

func (e *Evaluator) knownBiome(id string) bool {
	return e.catalog == nil || e.catalog.KnownBiome(id)
}

func (e *Evaluator) knownDimension(id string) bool {
	return e.catalog == nil || e.catalog.KnownDimension(id)
}

func (e *Evaluator) matchRegistry(kind, current string, want model.StringMatch, known func(string) bool) bool {
	if current == "" {
		e.limiter.Warn("condition:"+kind+":unresolved", kind+" not resolved, failing closed")
		return false
	}
	for _, v := range want.Values {
		if !known(v) {
			e.limiter.Warn("condition:"+kind+":"+v, "unknown "+kind+" in condition, failing closed", kind, v)
			return false
		}
	}
	return want.Matches(current)
}

func (e *Evaluator) matchWeather(w model.WeatherCondition, env model.Environment) bool {
	if w.State != "" {
		switch w.State {
		case model.WeatherClear, model.WeatherRain, model.WeatherThunder:
			return env.Weather() == w.State
		}
		e.limiter.Warn("condition:weather:"+string(w.State), "unknown weather state, failing closed", "state", w.State)
		return false
	}
	if w.Raining != nil && *w.Raining != env.Raining {
		return false
	}
	if w.Thundering != nil && *w.Thundering != env.Thundering {
		return false
	}
	return true
}

// Symbolic buckets over the 24000-tick day, [from, to).
var timeBuckets = map[model.TimeBucket][2]int64{
	model.TimeDay:     {0, 12000},
	model.TimeNight:   {12000, 24000},
	model.TimeSunrise: {0, 2000},
	model.TimeSunset:  {12000, 14000},
}

func (e *Evaluator) matchTime(tc model.TimeCondition, env model.Environment) bool {
	now := env.DayTime()
	if tc.Bucket != "" {
		b, ok := timeBuckets[tc.Bucket]
		if !ok {
			e.limiter.Warn("condition:time:"+string(tc.Bucket), "unknown time bucket, failing closed", "bucket", tc.Bucket)
			return false
		}
		return now >= b[0] && now < b[1]
	}

	lo, hi := int64(0), int64(model.DayTicks-1)
	if tc.Min != nil {
		lo = *tc.Min
	}
	if tc.Max != nil {
		hi = *tc.Max
	}
	if lo > hi {
		// range wraps midnight, e.g. [22000, 2000]
		return now >= lo || now <= hi
	}
	return now >= lo && now <= hi
}

func matchMoonPhase(mc model.MoonPhaseCondition, env model.Environment) bool {
	if len(mc.Phases) == 0 && !mc.FullMoon && !mc.NewMoon {
		return true
	}
	phase := env.MoonPhase()
	for _, p := range mc.Phases {
		if p == phase {
			return true
		}
	}
	return (mc.FullMoon && phase == 0) || (mc.NewMoon && phase == 4)
}

// matchElement: a required element must be active and within bounds.
// A non-required element without bounds must be absent; with bounds they
// are only checked while the element is active.
func matchElement(ec model.ElementCondition, elements model.ElementSnapshot) bool {
	has := elements.Has(ec.Element)
	bounded := ec.MinValue != nil || ec.MaxValue != nil

	if !ec.IsRequired() {
		if !bounded {
			return !has
		}
		if !has {
			return true
		}
	} else if !has {
		return false
	}

	v := elements.Value(ec.Element)
	if ec.MinValue != nil && v < *ec.MinValue {
		return false
	}
	if ec.MaxValue != nil && v > *ec.MaxValue {
		return false
	}
	return true
}

func (e *Evaluator) matchHealth(hc model.HealthCondition, env model.Environment) bool {
	if hc.Min != nil && env.Health < *hc.Min {
		return false
	}
	if hc.Max != nil && env.Health > *hc.Max {
		return false
	}
	if hc.Percentage != nil {
		if env.MaxHealth <= 0 {
			e.limiter.Warn("condition:health:max", "max health not resolved, failing closed")
			return false
		}
		return env.Health >= *hc.Percentage*env.MaxHealth
	}
	return true
}
