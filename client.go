package adblock

import (
	"github.com/shieldkit/adblock/regexcache"
)

// MatchResult is the outcome of matching one request against the active
// client.
type MatchResult struct {
	// MockDataURL is a data: URL to serve instead of the real resource, if a
	// matching rule redirects it. Empty means no redirect.
	MockDataURL string

	// RewrittenURL is the URL the request should be rewritten to, if any.
	RewrittenURL string

	// DidMatchRule is true if any blocking rule matched.
	DidMatchRule bool

	// DidMatchException is true if an exception rule matched.
	DidMatchException bool

	// DidMatchImportant is true if the matching blocking rule is marked
	// important. An important rule overrides exceptions, so DidMatchImportant
	// implies DidMatchRule.
	DidMatchImportant bool
}

// ClientDebugInfo is a read-only snapshot of the client internals.
type ClientDebugInfo struct {
	// RegexData describes every regex rule tracked by the client.
	RegexData []regexcache.DebugEntry

	// CompiledRegexCount is the number of regex rules currently kept
	// compiled.
	CompiledRegexCount int
}

// Client is the opaque compiled ruleset the engine delegates matching to.
// The rule grammar and the matching algorithm are entirely the client's
// business; any conforming implementation, including a test stub, may be
// substituted.
type Client interface {
	// Matches looks for rules matching the classified request.
	Matches(r *Request) (res MatchResult)

	// CspDirectives returns the Content-Security-Policy directives the
	// matching rules add to the response. Empty means none.
	CspDirectives(r *Request) (csp string)

	// AddTag enables the optional rule subset named by tag.
	AddTag(tag string)

	// RemoveTag disables the optional rule subset named by tag.
	RemoveTag(tag string)

	// UseResources loads scriptlet and redirect resources from a JSON
	// document. Malformed input is the client's to deal with.
	UseResources(resourcesJSON string)

	// URLCosmeticResources returns a JSON object with the cosmetic
	// resources for the given URL.
	URLCosmeticResources(url string) (jsonData string)

	// HiddenClassIDSelectors returns a JSON list of selectors to hide among
	// the given class and id names, except the listed exceptions.
	HiddenClassIDSelectors(classes, ids, exceptions []string) (jsonData string)

	// DiscardRegex drops the compiled form of the regex rule with the given
	// id. Unknown ids are a no-op.
	DiscardRegex(id uint64)

	// SetDiscardPolicy configures eviction of compiled regex rules.
	SetDiscardPolicy(p regexcache.Policy)

	// DebugInfo returns a snapshot of the client internals.
	DebugInfo() (info ClientDebugInfo)

	// Serialize returns a snapshot of the compiled ruleset that
	// [ClientFactory.Deserialize] accepts.
	Serialize() (snapshot []byte)
}

// ClientFactory builds clients from either raw filter-list text or a
// previously serialized snapshot. Both methods absorb malformed input and
// return a client with zero or partial rules instead of failing.
type ClientFactory interface {
	// Compile builds a client from raw filter-list text.
	Compile(filters []byte) (c Client)

	// Deserialize builds a client from a snapshot produced by
	// [Client.Serialize].
	Deserialize(snapshot []byte) (c Client)
}
