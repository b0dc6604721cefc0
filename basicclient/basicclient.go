// Package basicclient contains a small self-contained implementation of the
// matching client contract. It supports a deliberately limited rule subset:
// host-anchored, substring and regex network rules with a handful of
// options, plus plain element-hiding rules. It exists so the engine works
// end to end without an external matching library; production setups bind a
// full-grammar client instead.
package basicclient

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"

	"github.com/AdguardTeam/golibs/log"
	"github.com/shieldkit/adblock"
	"github.com/shieldkit/adblock/internal/hostutil"
	"github.com/shieldkit/adblock/regexcache"
)

// resource is one entry of the resources JSON document: a redirect target
// that rules reference by name.
type resource struct {
	Name     string `json:"name"`
	MimeType string `json:"mimetype"`
	Content  string `json:"content"`
}

// Client is a compiled ruleset. It implements [adblock.Client].
type Client struct {
	regexes    *regexcache.Cache
	resources  map[string]resource
	activeTags map[string]struct{}
	network    []*networkRule
	cosmetic   []*cosmeticRule
	source     []byte
}

// type check
var _ adblock.Client = (*Client)(nil)

// compile parses the filter-list text. Unparseable lines are skipped, never
// reported: a structurally invalid list yields a client with zero or partial
// rules.
func compile(filters []byte) (c *Client) {
	c = &Client{
		regexes:    regexcache.New(),
		resources:  map[string]resource{},
		activeTags: map[string]struct{}{},
		source:     filters,
	}

	s := bufio.NewScanner(bytes.NewReader(filters))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())

		if strings.Contains(line, maskCosmetic) {
			cr, err := parseCosmeticRule(line)
			if err == nil {
				c.cosmetic = append(c.cosmetic, cr)
			}

			continue
		}

		if isComment(line) {
			continue
		}

		nr, err := parseNetworkRule(line)
		if err != nil {
			log.Debug("basicclient: skipping rule %q: %s", line, err)

			continue
		}

		if nr.isRegex {
			nr.regexID = c.regexes.Add(nr.pattern)
		}

		c.network = append(c.network, nr)
	}

	return c
}

// active reports whether the rule participates in matching under the
// current tag set.
func (c *Client) active(r *networkRule) (ok bool) {
	if r.tag == "" {
		return true
	}

	_, ok = c.activeTags[r.tag]

	return ok
}

// ruleMatches reports whether the rule matches the classified request.
func (c *Client) ruleMatches(nr *networkRule, r *adblock.Request) (ok bool) {
	if nr.thirdParty == 1 && !r.ThirdParty {
		return false
	}
	if nr.thirdParty == -1 && r.ThirdParty {
		return false
	}

	if len(nr.categories) > 0 {
		if _, ok = nr.categories[r.ResourceCategory]; !ok {
			return false
		}
	}

	switch {
	case nr.hostAnchor != "":
		return r.Hostname == nr.hostAnchor ||
			strings.HasSuffix(r.Hostname, "."+nr.hostAnchor)
	case nr.isRegex:
		return c.regexes.Match(nr.regexID, r.URL)
	default:
		return strings.Contains(r.URL, nr.pattern)
	}
}

// findMatches returns the effective blocking and exception rules for the
// request. Among blocking rules an important one wins.
func (c *Client) findMatches(r *adblock.Request) (block, exception *networkRule) {
	for _, nr := range c.network {
		if !c.active(nr) || !c.ruleMatches(nr, r) {
			continue
		}

		if nr.whitelist {
			if exception == nil {
				exception = nr
			}

			continue
		}

		if nr.csp != "" {
			// CSP rules contribute response directives only, they never
			// block the request itself.
			continue
		}

		if block == nil || (nr.important && !block.important) {
			block = nr
		}
	}

	return block, exception
}

// Matches implements the [adblock.Client] interface for *Client.
func (c *Client) Matches(r *adblock.Request) (res adblock.MatchResult) {
	block, exception := c.findMatches(r)
	if block == nil {
		return adblock.MatchResult{DidMatchException: exception != nil}
	}

	res = adblock.MatchResult{
		DidMatchRule:      true,
		DidMatchException: exception != nil && !block.important,
		DidMatchImportant: block.important,
	}

	if res.DidMatchException {
		return res
	}

	if block.redirect != "" {
		if rsc, ok := c.resources[block.redirect]; ok {
			res.MockDataURL = "data:" + rsc.MimeType + ";base64," + rsc.Content
		}
	}
	res.RewrittenURL = block.rewrite

	return res
}

// CspDirectives implements the [adblock.Client] interface for *Client. The
// directives of all matching $csp rules are joined; a matching exception
// disables them all.
func (c *Client) CspDirectives(r *adblock.Request) (csp string) {
	var directives []string
	var excepted bool
	for _, nr := range c.network {
		if !c.active(nr) || !c.ruleMatches(nr, r) {
			continue
		}

		switch {
		case nr.whitelist:
			excepted = true
		case nr.csp != "":
			directives = append(directives, nr.csp)
		}
	}

	if excepted {
		return ""
	}

	return strings.Join(directives, cspDirectivesDelim)
}

// AddTag implements the [adblock.Client] interface for *Client.
func (c *Client) AddTag(tag string) {
	c.activeTags[tag] = struct{}{}
}

// RemoveTag implements the [adblock.Client] interface for *Client.
func (c *Client) RemoveTag(tag string) {
	delete(c.activeTags, tag)
}

// UseResources implements the [adblock.Client] interface for *Client.
// Malformed JSON leaves the current resources untouched.
func (c *Client) UseResources(resourcesJSON string) {
	var list []resource
	err := json.Unmarshal([]byte(resourcesJSON), &list)
	if err != nil {
		log.Debug("basicclient: ignoring malformed resources: %s", err)

		return
	}

	c.resources = make(map[string]resource, len(list))
	for _, rsc := range list {
		c.resources[rsc.Name] = rsc
	}
}

// URLCosmeticResources implements the [adblock.Client] interface for
// *Client.
func (c *Client) URLCosmeticResources(url string) (jsonData string) {
	host := hostutil.Hostname(url)

	var selectors []string
	for _, cr := range c.cosmetic {
		if len(cr.hostnames) > 0 && cr.matchesHost(host) {
			selectors = append(selectors, cr.selector)
		}
	}

	data, err := json.Marshal(map[string]any{
		"hide_selectors": selectors,
	})
	if err != nil {
		return "{}"
	}

	return string(data)
}

// HiddenClassIDSelectors implements the [adblock.Client] interface for
// *Client. It answers from the generic element-hiding rules only.
func (c *Client) HiddenClassIDSelectors(classes, ids, exceptions []string) (jsonData string) {
	excluded := make(map[string]struct{}, len(exceptions))
	for _, sel := range exceptions {
		excluded[sel] = struct{}{}
	}

	generic := make(map[string]struct{})
	for _, cr := range c.cosmetic {
		if len(cr.hostnames) == 0 {
			generic[cr.selector] = struct{}{}
		}
	}

	selectors := []string{}
	add := func(sel string) {
		if _, ok := excluded[sel]; ok {
			return
		}
		if _, ok := generic[sel]; ok {
			selectors = append(selectors, sel)
		}
	}

	for _, class := range classes {
		add("." + class)
	}
	for _, id := range ids {
		add("#" + id)
	}

	data, err := json.Marshal(selectors)
	if err != nil {
		return "[]"
	}

	return string(data)
}

// DiscardRegex implements the [adblock.Client] interface for *Client.
func (c *Client) DiscardRegex(id uint64) {
	c.regexes.Discard(id)
}

// SetDiscardPolicy implements the [adblock.Client] interface for *Client.
func (c *Client) SetDiscardPolicy(p regexcache.Policy) {
	c.regexes.SetPolicy(p)
}

// DiscardPolicy returns the current regex discard policy.
func (c *Client) DiscardPolicy() (p regexcache.Policy) {
	return c.regexes.Policy()
}

// SweepRegexes applies the discard policy once. The owner is expected to
// call it at the policy's cleanup interval.
func (c *Client) SweepRegexes() (discarded int) {
	return c.regexes.Sweep()
}

// DebugInfo implements the [adblock.Client] interface for *Client.
func (c *Client) DebugInfo() (info adblock.ClientDebugInfo) {
	return adblock.ClientDebugInfo{
		RegexData:          c.regexes.DebugEntries(),
		CompiledRegexCount: c.regexes.CompiledCount(),
	}
}
