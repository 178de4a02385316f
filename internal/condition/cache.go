package condition

import (
	"fmt"
	"hash"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/udisondev/elemcore/internal/model"
)

// Fingerprint identifies a ConditionSpec by content.
type Fingerprint [blake2b.Size256]byte

// FingerprintOf hashes a canonical encoding of spec. Equal specs built
// independently (e.g. after a reload) produce equal fingerprints.
func FingerprintOf(spec *model.ConditionSpec) Fingerprint {
	h, _ := blake2b.New256(nil)
	if spec == nil {
		var fp Fingerprint
		copy(fp[:], h.Sum(nil))
		return fp
	}

	writeMatch(h, "biome", spec.Biome)
	writeMatch(h, "dimension", spec.Dimension)
	if w := spec.Weather; w != nil {
		fmt.Fprintf(h, "weather|%s|%s|%s;", w.State, optBool(w.Raining), optBool(w.Thundering))
	}
	if t := spec.Time; t != nil {
		fmt.Fprintf(h, "time|%s|%s|%s;", t.Bucket, optInt(t.Min), optInt(t.Max))
	}
	if m := spec.MoonPhase; m != nil {
		phases := append([]int(nil), m.Phases...)
		sort.Ints(phases)
		fmt.Fprintf(h, "moon|%v|%t|%t;", phases, m.FullMoon, m.NewMoon)
	}
	for _, ec := range spec.Elements {
		fmt.Fprintf(h, "element|%s|%s|%s|%s;", ec.Element, optBool(ec.Required), optFloat(ec.MinValue), optFloat(ec.MaxValue))
	}
	if hc := spec.Health; hc != nil {
		fmt.Fprintf(h, "health|%s|%s|%s;", optFloat(hc.Min), optFloat(hc.Max), optFloat(hc.Percentage))
	}
	if spec.Difficulty != "" {
		fmt.Fprintf(h, "difficulty|%s;", spec.Difficulty)
	}

	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

func writeMatch(h hash.Hash, name string, m *model.StringMatch) {
	if m == nil {
		return
	}
	fmt.Fprintf(h, "%s|%d", name, len(m.Values))
	for _, v := range m.Values {
		fmt.Fprintf(h, "|%q", v)
	}
	h.Write([]byte{';'})
}

func optBool(b *bool) string {
	if b == nil {
		return "-"
	}
	return strconv.FormatBool(*b)
}

func optInt(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

type cacheKey struct {
	actor model.ActorID
	spec  Fingerprint
}

type cacheEntry struct {
	result  bool
	expires int64
}

// Cache stores evaluation results per (actor, spec) for ttl ticks.
// It is an optimization only; Evaluator works the same without it.
//
// Thread-safe.
type Cache struct {
	ttl   int64
	clock model.Clock

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
}

// NewCache creates a cache whose entries live ttl ticks of clock.
func NewCache(clock model.Clock, ttl int64) *Cache {
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[cacheKey]cacheEntry),
	}
}

// Lookup returns a live entry; expired entries are dropped on read.
func (c *Cache) Lookup(actor model.ActorID, spec Fingerprint) (result, ok bool) {
	key := cacheKey{actor: actor, spec: spec}
	now := c.clock.Tick()

	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()
	if !found {
		return false, false
	}
	if now >= e.expires {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur.expires == e.expires {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return false, false
	}
	return e.result, true
}

// Store records a result valid until now+ttl.
func (c *Cache) Store(actor model.ActorID, spec Fingerprint, result bool) {
	if c.ttl <= 0 {
		return
	}
	e := cacheEntry{result: result, expires: c.clock.Tick() + c.ttl}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{actor: actor, spec: spec}] = e
}

// Forget drops every entry of actor.
func (c *Cache) Forget(actor model.ActorID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.actor == actor {
			delete(c.entries, k)
		}
	}
}

// Purge drops expired entries and returns how many were removed.
func (c *Cache) Purge() int {
	now := c.clock.Tick()

	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if now >= e.expires {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Clear drops everything, e.g. after definitions are reloaded.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of stored entries, expired included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
