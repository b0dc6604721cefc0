package regexcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock is a manually advanced time source.
type testClock struct {
	now time.Time
}

func newTestClock() (c *testClock) {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() (now time.Time) { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestCache_Match(t *testing.T) {
	c := New()

	id := c.Add(`banner[0-9]+`)
	require.NotZero(t, id)

	assert.True(t, c.Match(id, "https://example.org/banner123.png"))
	assert.False(t, c.Match(id, "https://example.org/index.html"))

	// Unknown ids never match.
	assert.False(t, c.Match(id+100, "https://example.org/banner123.png"))

	entries := c.DebugEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, `banner[0-9]+`, entries[0].Pattern)
	assert.EqualValues(t, 1, entries[0].UsageCount)
}

func TestCache_Match_badPattern(t *testing.T) {
	c := New()

	id := c.Add(`ba(nner`)
	assert.False(t, c.Match(id, "banner"))
	assert.False(t, c.Match(id, "banner"))
	assert.Equal(t, 0, c.CompiledCount())
}

func TestCache_Discard(t *testing.T) {
	c := New()

	id := c.Add(`/ads/`)
	require.True(t, c.Match(id, "https://example.org/ads/pixel.gif"))
	assert.Equal(t, 1, c.CompiledCount())

	c.Discard(id)
	assert.Equal(t, 0, c.CompiledCount())

	// Discarding an unknown id is a no-op.
	c.Discard(id + 100)

	// The entry is recompiled on the next use.
	assert.True(t, c.Match(id, "https://example.org/ads/pixel.gif"))
	assert.Equal(t, 1, c.CompiledCount())
}

func TestCache_Sweep_age(t *testing.T) {
	clock := newTestClock()

	c := New()
	c.SetClock(clock.Now)
	c.SetPolicy(Policy{DiscardUnused: time.Minute})

	idOld := c.Add(`old`)
	idNew := c.Add(`new`)

	require.True(t, c.Match(idOld, "old"))

	clock.Advance(2 * time.Minute)
	require.True(t, c.Match(idNew, "new"))

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.CompiledCount())

	entries := c.DebugEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, idOld, entries[0].ID)
	assert.EqualValues(t, 120, entries[0].UnusedSeconds)
	assert.Equal(t, idNew, entries[1].ID)
	assert.EqualValues(t, 0, entries[1].UnusedSeconds)
}

func TestCache_Sweep_bound(t *testing.T) {
	clock := newTestClock()

	c := New()
	c.SetClock(clock.Now)
	c.SetPolicy(Policy{MaxCompiled: 2})

	var ids []uint64
	for _, pat := range []string{`one`, `two`, `three`} {
		ids = append(ids, c.Add(pat))
	}

	for _, id := range ids {
		clock.Advance(time.Second)

		require.True(t, c.Match(id, "one two three"))
	}

	require.Equal(t, 3, c.CompiledCount())

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 2, c.CompiledCount())

	// The oldest compiled form was dropped; the source survives and the
	// entry still matches.
	assert.True(t, c.Match(ids[0], "one"))
}

func TestCache_SetPolicy(t *testing.T) {
	c := New()

	p := Policy{
		CleanupInterval: time.Minute,
		DiscardUnused:   time.Hour,
		MaxCompiled:     128,
	}
	c.SetPolicy(p)
	assert.Equal(t, p, c.Policy())
}
