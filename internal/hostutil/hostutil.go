// Package hostutil contains a fast, best-effort hostname extractor used on
// the request hot path instead of a full net/url parse.
package hostutil

import "strings"

// Hostname retrieves the hostname from the given URL-like string.
//
// NOTE: Hostname is an optimized, best-effort function. The result is not
// guaranteed to be correct for some edge cases of non-hierarchical URLs.
func Hostname(rawURL string) (hostname string) {
	_, rest, ok := strings.Cut(rawURL, "//")
	if !ok {
		// A non-hierarchical structured URL (e.g. stun: or mailto:),
		// https://tools.ietf.org/html/rfc4395#section-2.2.
		_, rest, ok = strings.Cut(rawURL, ":")
		if !ok {
			return ""
		}
	}

	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}

	if i := strings.LastIndexByte(rest, '@'); i >= 0 {
		rest = rest[i+1:]
	}

	if strings.HasPrefix(rest, "[") {
		// Bracketed IPv6 literal, possibly with a port.
		i := strings.IndexByte(rest, ']')
		if i < 0 {
			return ""
		}

		return rest[1:i]
	}

	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}

	return rest
}
