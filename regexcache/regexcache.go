// Package regexcache contains a bounded cache of compiled regex rules.
//
// Compiling a regex is expensive, and filter lists can carry thousands of
// regex rules of which only a few are ever exercised. The cache keeps the
// rule source forever but compiles lazily and discards compiled forms under
// a configurable policy, so a discarded entry costs one recompilation on its
// next use instead of being an error.
package regexcache

import (
	"regexp"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

// Policy describes when a compiled regex becomes eligible for eviction. The
// zero value disables eviction entirely.
type Policy struct {
	// CleanupInterval is how often the owner is expected to call
	// [Cache.Sweep]. The cache itself does not run timers.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// DiscardUnused is the idle duration after which a compiled form is
	// discarded by Sweep. Zero disables age-based eviction.
	DiscardUnused time.Duration `yaml:"discard_unused"`

	// MaxCompiled bounds the number of entries kept compiled at the same
	// time. Zero means no bound.
	MaxCompiled int `yaml:"max_compiled"`
}

// DebugEntry is a read-only snapshot of one cache entry.
type DebugEntry struct {
	// Pattern is the regex source text.
	Pattern string `json:"regex"`

	// ID is the numeric identifier of the entry.
	ID uint64 `json:"id"`

	// UnusedSeconds is how long ago the entry was last used.
	UnusedSeconds int64 `json:"unused_sec"`

	// UsageCount is the number of times the entry matched input.
	UsageCount uint64 `json:"usage_count"`
}

// entry is a single cached regex. re is nil until the first use and again
// after a discard; bad is set when the pattern does not compile so that the
// compilation is not retried on every call.
type entry struct {
	lastUsed   time.Time
	re         *regexp.Regexp
	pattern    string
	id         uint64
	usageCount uint64
	bad        bool
}

// Cache is a usage-tracking store of regex rules.
type Cache struct {
	mu      sync.Mutex
	entries map[uint64]*entry
	now     func() time.Time
	policy  Policy
	nextID  uint64
}

// New returns a new empty cache.
func New() (c *Cache) {
	return &Cache{
		entries: map[uint64]*entry{},
		now:     time.Now,
	}
}

// SetClock replaces the time source. It is used by tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

// SetPolicy replaces the discard policy. The new policy takes effect on the
// next Sweep.
func (c *Cache) SetPolicy(p Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.policy = p
}

// Policy returns the current discard policy.
func (c *Cache) Policy() (p Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.policy
}

// Add registers a regex source and returns its identifier. The pattern is
// not compiled until the first Match call.
func (c *Cache) Add(pattern string) (id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.entries[c.nextID] = &entry{
		pattern:  pattern,
		id:       c.nextID,
		lastUsed: c.now(),
	}

	return c.nextID
}

// Match reports whether the regex with the given id matches text. Unknown
// ids and invalid patterns never match. A discarded entry is transparently
// recompiled.
func (c *Cache) Match(id uint64, text string) (matched bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || e.bad {
		return false
	}

	if e.re == nil {
		re, err := regexp.Compile(e.pattern)
		if err != nil {
			e.bad = true

			return false
		}

		e.re = re
	}

	e.lastUsed = c.now()
	matched = e.re.MatchString(text)
	if matched {
		e.usageCount++
	}

	return matched
}

// Discard drops the compiled form of the entry with the given id, keeping
// its source. Unknown ids are a no-op.
func (c *Cache) Discard(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok {
		e.re = nil
	}
}

// Sweep applies the discard policy: compiled forms idle for longer than
// DiscardUnused are dropped, and then the oldest compiled forms beyond
// MaxCompiled are dropped. It returns the number of discarded entries.
func (c *Cache) Sweep() (discarded int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	var compiled []*entry
	for _, e := range c.entries {
		if e.re == nil {
			continue
		}

		if c.policy.DiscardUnused > 0 && now.Sub(e.lastUsed) >= c.policy.DiscardUnused {
			e.re = nil
			discarded++

			continue
		}

		compiled = append(compiled, e)
	}

	if c.policy.MaxCompiled <= 0 || len(compiled) <= c.policy.MaxCompiled {
		return discarded
	}

	// Oldest first.
	slices.SortFunc(compiled, func(a, b *entry) (cmp int) {
		return a.lastUsed.Compare(b.lastUsed)
	})

	for _, e := range compiled[:len(compiled)-c.policy.MaxCompiled] {
		e.re = nil
		discarded++
	}

	return discarded
}

// CompiledCount returns the number of entries currently kept compiled.
func (c *Cache) CompiledCount() (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.re != nil {
			n++
		}
	}

	return n
}

// DebugEntries returns a snapshot of all entries ordered by id.
func (c *Cache) DebugEntries() (entries []DebugEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entries = make([]DebugEntry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, DebugEntry{
			Pattern:       e.pattern,
			ID:            e.id,
			UnusedSeconds: int64(now.Sub(e.lastUsed) / time.Second),
			UsageCount:    e.usageCount,
		})
	}

	slices.SortFunc(entries, func(a, b DebugEntry) (cmp int) {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	return entries
}
