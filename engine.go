// Package adblock contains the coordination layer around a replaceable
// compiled filter-matching client: request classification, tag-based rule
// subsets, compiled-regex discard policy and atomic client hot-swap on
// filter-list updates.
package adblock

import (
	"encoding/json"

	"github.com/AdguardTeam/golibs/log"
	"github.com/google/uuid"
	"github.com/shieldkit/adblock/internal/seqcheck"
	"github.com/shieldkit/adblock/regexcache"
)

// TestObserver is notified when the engine swaps in an updated client. It is
// used exclusively by test harnesses to detect completion of a load in
// synchronous test code; no other consumer should depend on it.
type TestObserver interface {
	OnEngineUpdated()
}

// DebugInfo is a read-only snapshot of the engine state.
type DebugInfo struct {
	// Generation identifies the currently active client. It changes on
	// every swap and is empty before the first load.
	Generation string

	// RegexData describes the regex rules tracked by the active client.
	RegexData []regexcache.DebugEntry

	// CompiledRegexCount is the number of regex rules the active client
	// currently keeps compiled.
	CompiledRegexCount int
}

// Engine owns exactly one active matching client at a time and serializes
// all access to it. The enabled tags and the regex discard policy survive
// client swaps and are re-applied to every new client before it becomes
// visible to callers.
//
// All methods must be called from one logical sequence. Concurrent calls are
// a caller bug and make the engine panic instead of synchronizing.
type Engine struct {
	client     Client
	factory    ClientFactory
	tags       *tagRegistry
	observer   TestObserver
	generation string
	policy     regexcache.Policy
	seq        seqcheck.Checker
}

// NewEngine returns an engine with an empty default client built by f. The
// engine takes sole ownership of every client f produces.
func NewEngine(f ClientFactory) (e *Engine) {
	return &Engine{
		client:  f.Compile(nil),
		factory: f,
		tags:    newTagRegistry(),
	}
}

// ShouldStartRequest classifies the request and matches it against the
// active client.
func (e *Engine) ShouldStartRequest(
	rawURL string,
	resType ResourceType,
	tabHost string,
	aggressive bool,
) (res MatchResult) {
	defer e.seq.Enter()()

	// Determine third-party here so the client doesn't need to figure it
	// out.
	r := NewRequest(rawURL, resType, tabHost, aggressive)
	res = e.client.Matches(r)

	metricRequestsChecked.WithLabelValues(outcomeLabel(res)).Inc()

	return res
}

// CspDirectives returns the Content-Security-Policy directives that apply to
// the response. ok is false when no directives apply; an empty string from
// the client is treated as no directives.
func (e *Engine) CspDirectives(
	rawURL string,
	resType ResourceType,
	tabHost string,
) (csp string, ok bool) {
	defer e.seq.Enter()()

	r := NewRequest(rawURL, resType, tabHost, false)
	csp = e.client.CspDirectives(r)

	return csp, csp != ""
}

// EnableTag enables or disables the optional rule subset named by tag.
// Enabling an already-enabled tag issues no client call; disabling always
// forwards to the client.
func (e *Engine) EnableTag(tag string, enabled bool) {
	defer e.seq.Enter()()

	if enabled {
		if e.tags.add(tag) {
			e.client.AddTag(tag)
		}
	} else {
		e.client.RemoveTag(tag)
		e.tags.remove(tag)
	}

	metricEnabledTags.Set(float64(len(e.tags.tags)))
}

// TagExists reports whether tag is currently enabled. It does not touch the
// client.
func (e *Engine) TagExists(tag string) (ok bool) {
	defer e.seq.Enter()()

	return e.tags.has(tag)
}

// UseResources forwards the resources JSON verbatim to the active client.
func (e *Engine) UseResources(resourcesJSON string) {
	defer e.seq.Enter()()

	e.client.UseResources(resourcesJSON)
}

// URLCosmeticResources returns the cosmetic resources for the given URL. If
// the client's output is not a JSON object, an empty object is returned
// rather than an error: a caller cannot distinguish "nothing matched" from
// malformed client output, and that's deliberate.
func (e *Engine) URLCosmeticResources(rawURL string) (res map[string]any) {
	defer e.seq.Enter()()

	raw := e.client.URLCosmeticResources(rawURL)

	err := json.Unmarshal([]byte(raw), &res)
	if err != nil || res == nil {
		log.Debug("adblock: cosmetic resources for %q: bad client output", rawURL)

		return map[string]any{}
	}

	return res
}

// HiddenClassIDSelectors returns the selectors to hide among the given class
// and id names. As with cosmetic resources, malformed client output degrades
// to an empty list.
func (e *Engine) HiddenClassIDSelectors(classes, ids, exceptions []string) (sels []string) {
	defer e.seq.Enter()()

	raw := e.client.HiddenClassIDSelectors(classes, ids, exceptions)

	err := json.Unmarshal([]byte(raw), &sels)
	if err != nil || sels == nil {
		log.Debug("adblock: hidden selectors: bad client output")

		return []string{}
	}

	return sels
}

// DiscardRegex drops the compiled form of the regex rule with the given id
// on the active client.
func (e *Engine) DiscardRegex(id uint64) {
	defer e.seq.Enter()()

	e.client.DiscardRegex(id)
	metricRegexDiscards.Inc()
}

// SetDiscardPolicy stores the regex discard policy and forwards it to the
// active client. The stored policy is re-applied to every future client.
func (e *Engine) SetDiscardPolicy(p regexcache.Policy) {
	defer e.seq.Enter()()

	e.policy = p
	e.client.SetDiscardPolicy(p)
}

// DebugInfo returns a snapshot of the engine and active client state.
func (e *Engine) DebugInfo() (info DebugInfo) {
	defer e.seq.Enter()()

	ci := e.client.DebugInfo()

	return DebugInfo{
		Generation:         e.generation,
		RegexData:          ci.RegexData,
		CompiledRegexCount: ci.CompiledRegexCount,
	}
}

// Serialize returns a snapshot of the active client that a later
// Load(deserialize=true) call accepts.
func (e *Engine) Serialize() (snapshot []byte) {
	defer e.seq.Enter()()

	return e.client.Serialize()
}

// Load builds a new client and atomically swaps it in. With deserialize
// false, buf is raw filter-list text and is always compiled, even when
// structurally invalid: the client absorbs errors and yields zero or partial
// rules. With deserialize true, buf is a snapshot from [Engine.Serialize];
// an empty buffer means nothing to load and the active client is left
// untouched.
func (e *Engine) Load(deserialize bool, buf []byte, resourcesJSON string) {
	defer e.seq.Enter()()

	if deserialize {
		if len(buf) == 0 {
			// An empty buffer will not load successfully. Keep the working
			// client instead of clobbering it.
			log.Debug("adblock: empty snapshot, skipping load")

			return
		}

		e.updateClient(e.factory.Deserialize(buf), resourcesJSON)

		return
	}

	e.updateClient(e.factory.Compile(buf), resourcesJSON)
}

// updateClient performs the swap sequence: replace the handle, re-apply the
// discard policy and resources, replay the enabled tags, then notify the
// observer. Callers hold the sequence guard, so no query can observe a new
// client with stale tags, resources or policy.
func (e *Engine) updateClient(c Client, resourcesJSON string) {
	e.client = c
	e.client.SetDiscardPolicy(e.policy)
	e.client.UseResources(resourcesJSON)
	for _, tag := range e.tags.list() {
		e.client.AddTag(tag)
	}

	e.generation = uuid.NewString()
	metricEngineSwaps.Inc()
	log.Debug("adblock: engine updated, generation %s", e.generation)

	if e.observer != nil {
		e.observer.OnEngineUpdated()
	}
}

// AddObserverForTest attaches the engine-update observer. Only test
// harnesses should use it.
func (e *Engine) AddObserverForTest(o TestObserver) {
	defer e.seq.Enter()()

	e.observer = o
}

// RemoveObserverForTest detaches the engine-update observer.
func (e *Engine) RemoveObserverForTest() {
	defer e.seq.Enter()()

	e.observer = nil
}
