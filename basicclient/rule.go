package basicclient

import (
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	maskWhitelist      = "@@"
	maskRegexRule      = "/"
	maskCosmetic       = "##"
	optionsDelimiter   = '$'
	escapeCharacter    = '\\'
	commentMarkers     = "!#"
	cspDirectivesDelim = "; "
)

// ErrEmptyRule is returned when a rule line has no pattern at all.
const ErrEmptyRule errors.Error = "the rule is empty"

// ErrUnsupportedOption is returned for options outside the supported subset.
const ErrUnsupportedOption errors.Error = "unsupported rule option"

// categoryOptions is the set of resource-category option names. The values
// are exactly the canonical filter-option strings the classifier produces.
var categoryOptions = map[string]struct{}{
	"main_frame": {},
	"sub_frame":  {},
	"stylesheet": {},
	"script":     {},
	"image":      {},
	"font":       {},
	"other":      {},
	"object":     {},
	"media":      {},
	"xhr":        {},
	"ping":       {},
}

// networkRule is one parsed blocking or exception rule.
type networkRule struct {
	// text is the original rule line.
	text string

	// hostAnchor is set for ||host^ rules.
	hostAnchor string

	// pattern is the plain substring pattern for non-anchored rules.
	pattern string

	// tag gates the rule: it stays inactive until the tag is added.
	tag string

	// csp carries the $csp option value.
	csp string

	// redirect carries the $redirect option value, a resource name.
	redirect string

	// rewrite carries the $rewrite option value, a replacement URL.
	rewrite string

	// categories restricts the rule to the listed resource categories.
	// Empty means any category.
	categories map[string]struct{}

	// regexID is the id of the rule's pattern in the regex cache, when
	// isRegex is set.
	regexID uint64

	// thirdParty is 1 for $third-party rules, -1 for $~third-party and 0
	// when the rule doesn't care.
	thirdParty int8

	whitelist bool
	important bool
	isRegex   bool
}

// cosmeticRule is one parsed element-hiding rule.
type cosmeticRule struct {
	// selector is the CSS selector to hide.
	selector string

	// hostnames restricts the rule to the listed hosts and their
	// subdomains. Empty means the rule is generic.
	hostnames []string
}

// isComment reports whether the line is a comment or empty.
func isComment(line string) (ok bool) {
	return line == "" || strings.IndexByte(commentMarkers, line[0]) >= 0
}

// parseNetworkRule parses one network rule line. The returned rule still
// needs its regex pattern registered with the cache by the caller.
func parseNetworkRule(line string) (r *networkRule, err error) {
	r = &networkRule{text: line}

	pattern := line
	if strings.HasPrefix(pattern, maskWhitelist) {
		r.whitelist = true
		pattern = pattern[len(maskWhitelist):]
	}

	pattern, options := splitOptions(pattern)
	if pattern == "" {
		return nil, ErrEmptyRule
	}

	if options != "" {
		err = r.loadOptions(options)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case len(pattern) > 1 &&
		strings.HasPrefix(pattern, maskRegexRule) &&
		strings.HasSuffix(pattern, maskRegexRule):
		r.isRegex = true
		r.pattern = pattern[1 : len(pattern)-1]
	case strings.HasPrefix(pattern, "||"):
		r.hostAnchor = strings.TrimSuffix(pattern[2:], "^")
		if r.hostAnchor == "" {
			return nil, ErrEmptyRule
		}
	default:
		r.pattern = pattern
	}

	return r, nil
}

// splitOptions cuts the rule line at the last unescaped options delimiter.
// Regex rules keep their trailing slash intact.
func splitOptions(line string) (pattern, options string) {
	if strings.HasPrefix(line, maskRegexRule) && strings.HasSuffix(line, maskRegexRule) {
		return line, ""
	}

	for i := len(line) - 1; i > 0; i-- {
		if line[i] != optionsDelimiter {
			continue
		}

		if line[i-1] == escapeCharacter {
			continue
		}

		return line[:i], line[i+1:]
	}

	return line, ""
}

// loadOptions parses the comma-separated option list of the rule.
func (r *networkRule) loadOptions(options string) (err error) {
	for _, o := range strings.Split(options, ",") {
		name, value, _ := strings.Cut(o, "=")

		switch name {
		case "third-party", "3p":
			r.thirdParty = 1
		case "~third-party", "first-party", "~3p":
			r.thirdParty = -1
		case "important":
			r.important = true
		case "tag":
			r.tag = value
		case "csp":
			r.csp = value
		case "redirect":
			r.redirect = value
		case "rewrite":
			r.rewrite = value
		case "xmlhttprequest":
			r.addCategory("xhr")
		case "subdocument":
			r.addCategory("sub_frame")
		case "document":
			r.addCategory("main_frame")
		default:
			if _, ok := categoryOptions[name]; !ok {
				return errors.Annotate(ErrUnsupportedOption, "option %q: %w", name)
			}

			r.addCategory(name)
		}
	}

	return nil
}

func (r *networkRule) addCategory(category string) {
	if r.categories == nil {
		r.categories = map[string]struct{}{}
	}

	r.categories[category] = struct{}{}
}

// parseCosmeticRule parses one element-hiding rule line, e.g.
// "example.org##.banner" or the generic "###ad-frame".
func parseCosmeticRule(line string) (r *cosmeticRule, err error) {
	hosts, selector, ok := strings.Cut(line, maskCosmetic)
	if !ok || selector == "" {
		return nil, ErrEmptyRule
	}

	r = &cosmeticRule{selector: selector}
	if hosts != "" {
		r.hostnames = strings.Split(hosts, ",")
	}

	return r, nil
}

// matchesHost reports whether the cosmetic rule applies on the given host.
// Generic rules apply everywhere.
func (r *cosmeticRule) matchesHost(host string) (ok bool) {
	if len(r.hostnames) == 0 {
		return true
	}

	for _, h := range r.hostnames {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}

	return false
}
