package mount

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/udisondev/elemcore/internal/element"
	"github.com/udisondev/elemcore/internal/model"
)

// Config holds stacking limits and the sweep cadence.
type Config struct {
	DefaultMaxStacks int   // cap for StackAdd when a request has none
	IndependentCap   int   // cap for StackIndependent
	SweepInterval    int64 // Tick calls between expiry sweeps
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		DefaultMaxStacks: 5,
		IndependentCap:   10,
		SweepInterval:    10,
	}
}

// Request is one mount application.
type Request struct {
	Element     model.ElementID
	Amount      float64
	Duration    int64
	Probability float64
	Behavior    model.StackBehavior
	MaxStacks   int // StackAdd only; 0 uses Config.DefaultMaxStacks
	Decay       *model.DecayData
}

// stack is the mount list of one element on one actor.
type stack struct {
	entries  []Entry
	behavior model.StackBehavior
	pushed   float64 // contribution last written to the host store
}

type actorState struct {
	mu     sync.Mutex
	stacks map[model.ElementID]*stack
}

// Engine tracks mounts per actor per element and writes base+aggregate
// into the host element store.
//
// Thread-safe. Mutations are expected on the tick goroutine; queries may
// come from any goroutine. State of one actor is guarded by its own lock.
type Engine struct {
	cfg     Config
	values  *element.Values
	live    model.Liveness
	clock   model.Clock
	rng     model.Rand
	limiter *model.LogLimiter

	mu     sync.RWMutex
	actors map[model.ActorID]*actorState
	ticks  int64
}

// NewEngine creates a mount engine writing through values.
func NewEngine(cfg Config, values *element.Values, live model.Liveness, clock model.Clock, rng model.Rand) *Engine {
	if cfg.IndependentCap <= 0 {
		cfg.IndependentCap = DefaultConfig().IndependentCap
	}
	if cfg.DefaultMaxStacks <= 0 {
		cfg.DefaultMaxStacks = DefaultConfig().DefaultMaxStacks
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	return &Engine{
		cfg:     cfg,
		values:  values,
		live:    live,
		clock:   clock,
		rng:     rng,
		limiter: model.NewLogLimiter(30 * time.Second),
		actors:  make(map[model.ActorID]*actorState),
	}
}

// ApplyMount rolls probability and applies a plain mount.
func (e *Engine) ApplyMount(actor model.ActorID, id model.ElementID, amount float64, duration int64, probability float64, behavior model.StackBehavior) bool {
	return e.Apply(actor, Request{
		Element:     id,
		Amount:      amount,
		Duration:    duration,
		Probability: probability,
		Behavior:    behavior,
	})
}

// Apply draws one sample against req.Probability and inserts the entry
// according to its stack behavior. Returns true when the mount was applied.
func (e *Engine) Apply(actor model.ActorID, req Request) bool {
	if e.rng.Float64() >= req.Probability {
		return false
	}
	if !e.values.Registry().IsRegistered(req.Element) {
		e.limiter.Warn("mount:unknown:"+string(req.Element), "mount for unregistered element ignored",
			"actor", actor, "element", req.Element)
		return false
	}
	if req.Duration <= 0 {
		slog.Debug("mount with non-positive duration ignored", "actor", actor, "element", req.Element)
		return false
	}

	now := e.clock.Tick()
	entry := Entry{
		Amount:    req.Amount,
		StartTick: now,
		Duration:  req.Duration,
		Behavior:  req.Behavior.Normalize(),
		Decay:     req.Decay,
	}

	st := e.state(actor)
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.stacks[req.Element]
	if !ok {
		s = &stack{}
		st.stacks[req.Element] = s
	}
	if !e.insert(s, entry, req.MaxStacks, now) {
		return false
	}
	e.push(actor, req.Element, s, now)
	return true
}

// ApplyAdvanced gates on data.Probability, scales BaseAmount by the
// actor's current stacks and applies without a second roll.
func (e *Engine) ApplyAdvanced(actor model.ActorID, data model.AdvancedMountData) bool {
	if e.rng.Float64() >= data.Probability {
		return false
	}

	now := e.clock.Tick()
	stacks := e.Count(actor, data.Element) + 1
	current := 0.0
	if data.Scaling != nil && data.Scaling.BasedOn == model.BasedOnElementValue {
		v, err := e.values.Get(actor, data.Element)
		if err == nil {
			current = v
		}
	}
	amount := data.BaseAmount * scale(data.Scaling, stacks, now, current)

	return e.Apply(actor, Request{
		Element:     data.Element,
		Amount:      amount,
		Duration:    data.BaseDuration,
		Probability: 1,
		Behavior:    data.StackBehavior,
		MaxStacks:   data.MaxStacks,
		Decay:       data.Decay,
	})
}

// insert places entry into s. Must be called with the actor lock held.
func (e *Engine) insert(s *stack, entry Entry, maxStacks int, now int64) bool {
	switch entry.Behavior {
	case model.StackAdd:
		limit := maxStacks
		if limit <= 0 {
			limit = e.cfg.DefaultMaxStacks
		}
		s.entries = append(evictOldest(s.entries, limit-1), entry)
	case model.StackIndependent:
		s.entries = append(evictOldest(s.entries, e.cfg.IndependentCap-1), entry)
	case model.StackMax:
		if len(s.entries) > 0 {
			cur := s.entries[len(s.entries)-1]
			if !cur.Expired(now) && entry.Amount <= cur.Amount {
				return false
			}
		}
		s.entries = append(s.entries[:0], entry)
	default:
		s.entries = append(s.entries[:0], entry)
	}
	s.behavior = entry.Behavior
	return true
}

// evictOldest drops entries from the front until at most keep remain (FIFO).
func evictOldest(entries []Entry, keep int) []Entry {
	keep = max(keep, 0)
	if len(entries) <= keep {
		return entries
	}
	n := copy(entries, entries[len(entries)-keep:])
	return entries[:n]
}

// aggregate sums summed behaviors, otherwise reports the latest live entry.
func (s *stack) aggregate(now int64) float64 {
	if s.behavior.Summed() {
		total := 0.0
		for _, en := range s.entries {
			total += en.Current(now)
		}
		return total
	}
	for i := len(s.entries) - 1; i >= 0; i-- {
		if !s.entries[i].Expired(now) {
			return s.entries[i].Current(now)
		}
	}
	return 0
}

// push writes base+aggregate. The base is the host value minus what was
// pushed last time, so external writes to the element are preserved.
// Must be called with the actor lock held.
func (e *Engine) push(actor model.ActorID, id model.ElementID, s *stack, now int64) {
	e.write(actor, id, s, s.aggregate(now))
}

func (e *Engine) write(actor model.ActorID, id model.ElementID, s *stack, agg float64) {
	current, err := e.values.Get(actor, id)
	if err != nil {
		e.limiter.Warn("mount:push:"+string(id), "mount push failed", "actor", actor, "element", id, "err", err)
		return
	}
	base := current - s.pushed
	stored, err := e.values.Set(actor, id, base+agg)
	if err != nil {
		e.limiter.Warn("mount:push:"+string(id), "mount push failed", "actor", actor, "element", id, "err", err)
		return
	}
	// clamping may cut the contribution; remember what actually landed
	s.pushed = stored - base
}

// TickReport summarizes one Tick call.
type TickReport struct {
	Actors    int
	Updated   int
	Expired   int
	Untracked int
	Swept     bool
}

// Tick recomputes every tracked aggregate and, every SweepInterval calls,
// removes expired entries and untracks dead or empty actors.
func (e *Engine) Tick() TickReport {
	now := e.clock.Tick()

	e.mu.Lock()
	e.ticks++
	sweep := e.ticks%e.cfg.SweepInterval == 0
	ids := make([]model.ActorID, 0, len(e.actors))
	for id := range e.actors {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	rep := TickReport{Actors: len(ids), Swept: sweep}
	var drop []model.ActorID

	for _, actor := range ids {
		st := e.lookup(actor)
		if st == nil {
			continue
		}
		alive := e.live == nil || e.live.Alive(actor)

		st.mu.Lock()
		if alive {
			for id, s := range st.stacks {
				e.push(actor, id, s, now)
				rep.Updated++
			}
		}
		if sweep {
			rep.Expired += e.sweepLocked(actor, st, now, alive)
			if !alive || len(st.stacks) == 0 {
				drop = append(drop, actor)
			}
		}
		st.mu.Unlock()
	}

	if len(drop) > 0 {
		e.mu.Lock()
		for _, actor := range drop {
			st, ok := e.actors[actor]
			if !ok {
				continue
			}
			st.mu.Lock()
			// an Apply may have raced in since the sweep
			if len(st.stacks) == 0 || (e.live != nil && !e.live.Alive(actor)) {
				delete(e.actors, actor)
				rep.Untracked++
			}
			st.mu.Unlock()
		}
		e.mu.Unlock()
		slog.Debug("mount sweep untracked actors", "count", rep.Untracked)
	}
	return rep
}

// sweepLocked drops expired entries and empty stacks.
func (e *Engine) sweepLocked(actor model.ActorID, st *actorState, now int64, alive bool) int {
	removed := 0
	for id, s := range st.stacks {
		n := 0
		for _, en := range s.entries {
			if en.Expired(now) {
				removed++
				continue
			}
			s.entries[n] = en
			n++
		}
		s.entries = s.entries[:n]
		if n == 0 {
			if alive {
				e.write(actor, id, s, 0)
			}
			delete(st.stacks, id)
		}
	}
	return removed
}

// RemoveMount clears every entry of id on actor and restores the base value.
func (e *Engine) RemoveMount(actor model.ActorID, id model.ElementID) bool {
	st := e.lookup(actor)
	if st == nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.stacks[id]
	if !ok {
		return false
	}
	s.entries = nil
	e.write(actor, id, s, 0)
	delete(st.stacks, id)
	return true
}

// Forget drops all mount state of actor without touching the host store.
func (e *Engine) Forget(actor model.ActorID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.actors, actor)
}

// Stacks returns a copy of the live entries of id on actor.
func (e *Engine) Stacks(actor model.ActorID, id model.ElementID) []Entry {
	st := e.lookup(actor)
	if st == nil {
		return nil
	}
	now := e.clock.Tick()
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.stacks[id]
	if !ok {
		return nil
	}
	out := make([]Entry, 0, len(s.entries))
	for _, en := range s.entries {
		if !en.Expired(now) {
			out = append(out, en)
		}
	}
	return out
}

// Count returns the number of live entries of id on actor.
func (e *Engine) Count(actor model.ActorID, id model.ElementID) int {
	return len(e.Stacks(actor, id))
}

// Aggregate returns the current contribution of id's mounts on actor.
func (e *Engine) Aggregate(actor model.ActorID, id model.ElementID) float64 {
	st := e.lookup(actor)
	if st == nil {
		return 0
	}
	now := e.clock.Tick()
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.stacks[id]
	if !ok {
		return 0
	}
	return s.aggregate(now)
}

// Tracked returns the tracked actor ids, sorted.
func (e *Engine) Tracked() []model.ActorID {
	e.mu.RLock()
	ids := make([]model.ActorID, 0, len(e.actors))
	for id := range e.actors {
		ids = append(ids, id)
	}
	e.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (e *Engine) lookup(actor model.ActorID) *actorState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.actors[actor]
}

func (e *Engine) state(actor model.ActorID) *actorState {
	if st := e.lookup(actor); st != nil {
		return st
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.actors[actor]
	if !ok {
		st = &actorState{stacks: make(map[model.ElementID]*stack)}
		e.actors[actor] = st
	}
	return st
}
