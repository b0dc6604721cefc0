package adblock

import (
	"strings"

	"github.com/shieldkit/adblock/internal/hostutil"
	"golang.org/x/net/publicsuffix"
)

// maxURLLength limits the URL length by 4 KiB. It appears that there can be
// URLs longer than a megabyte, and it makes no sense to go through the whole
// URL.
const maxURLLength = 4 * 1024

// ResourceType is the type of the resource being requested, as reported by
// the browser network stack.
type ResourceType int

// ResourceType values.
const (
	// TypeMainFrame is a top level page.
	TypeMainFrame ResourceType = iota
	// TypeSubFrame is a frame or an iframe.
	TypeSubFrame
	// TypeStylesheet is a CSS stylesheet.
	TypeStylesheet
	// TypeScript is an external script.
	TypeScript
	// TypeImage is an image (jpg/gif/png/etc).
	TypeImage
	// TypeFavicon is a favicon, filtered the same way as images.
	TypeFavicon
	// TypeFont is a font resource.
	TypeFont
	// TypeSubResource is an "other" subresource.
	TypeSubResource
	// TypeObject is an object (or embed) tag for a plugin.
	TypeObject
	// TypeMedia is a media resource.
	TypeMedia
	// TypeXHR is an XMLHttpRequest or fetch.
	TypeXHR
	// TypePing is a ping request for <a ping> or navigator.sendBeacon().
	TypePing
	// TypeWorker is the main resource of a dedicated worker.
	TypeWorker
	// TypeSharedWorker is the main resource of a shared worker.
	TypeSharedWorker
	// TypePrefetch is an explicitly requested prefetch.
	TypePrefetch
	// TypeServiceWorker is the main resource of a service worker.
	TypeServiceWorker
	// TypeCSPReport is a report of Content Security Policy violations.
	TypeCSPReport
	// TypePluginResource is a resource requested by a plugin.
	TypePluginResource
)

// FilterOption returns the canonical filter-option string for the resource
// type. Worker, prefetch, CSP-report and plugin resources have no filter
// option, so for them it returns an empty string and no option match is
// attempted.
func (t ResourceType) FilterOption() (option string) {
	switch t {
	case TypeMainFrame:
		return "main_frame"
	case TypeSubFrame:
		return "sub_frame"
	case TypeStylesheet:
		return "stylesheet"
	case TypeScript:
		return "script"
	case TypeImage, TypeFavicon:
		return "image"
	case TypeFont:
		return "font"
	case TypeSubResource:
		return "other"
	case TypeObject:
		return "object"
	case TypeMedia:
		return "media"
	case TypeXHR:
		return "xhr"
	case TypePing:
		return "ping"
	default:
		return ""
	}
}

// ResourceTypeFromString returns the resource type named by the canonical
// filter-option string. Unknown strings map to TypeSubResource.
func ResourceTypeFromString(s string) (t ResourceType) {
	switch s {
	case "main_frame", "document":
		return TypeMainFrame
	case "sub_frame", "subdocument":
		return TypeSubFrame
	case "stylesheet":
		return TypeStylesheet
	case "script":
		return TypeScript
	case "image":
		return TypeImage
	case "font":
		return TypeFont
	case "object":
		return TypeObject
	case "media":
		return TypeMedia
	case "xhr", "xmlhttprequest":
		return TypeXHR
	case "ping":
		return TypePing
	default:
		return TypeSubResource
	}
}

// Request carries everything the matching client needs to know about one
// outgoing request. All derived fields are computed by NewRequest so that the
// client stays network-topology-agnostic.
type Request struct {
	// URL is the full request URL.
	URL string

	// Hostname is the hostname extracted from URL.
	Hostname string

	// TabHost is the hostname of the page the request originates from.
	TabHost string

	// ResourceCategory is the canonical filter-option string for the
	// resource type, empty for unmapped types.
	ResourceCategory string

	// ResourceType is the original resource type.
	ResourceType ResourceType

	// ThirdParty is true when the request target and the tab do not share a
	// registrable domain or host.
	ThirdParty bool

	// AggressiveBlocking is true when the tab is in aggressive blocking
	// mode. It is carried for the client and not interpreted here.
	AggressiveBlocking bool
}

// NewRequest classifies a request. It is a pure function: it always returns
// a value, possibly with an empty resource category.
func NewRequest(rawURL string, resType ResourceType, tabHost string, aggressive bool) (r *Request) {
	if len(rawURL) > maxURLLength {
		rawURL = rawURL[:maxURLLength]
	}

	hostname := hostutil.Hostname(rawURL)

	return &Request{
		URL:                rawURL,
		Hostname:           hostname,
		TabHost:            tabHost,
		ResourceCategory:   resType.FilterOption(),
		ResourceType:       resType,
		ThirdParty:         !sameDomainOrHost(hostname, tabHost),
		AggressiveBlocking: aggressive,
	}
}

// sameDomainOrHost reports whether the two hosts are equal or share the same
// registrable domain. The public suffix list is used with private registries
// included, so "a.github.io" and "b.github.io" are not the same site.
func sameDomainOrHost(host, tabHost string) (ok bool) {
	if host == "" || tabHost == "" {
		return false
	}

	if host == tabHost {
		return true
	}

	d := effectiveTLDPlusOne(host)

	return d != "" && d == effectiveTLDPlusOne(tabHost)
}

// effectiveTLDPlusOne is a faster version of publicsuffix.EffectiveTLDPlusOne
// that avoids using fmt.Errorf when the domain is less or equal the suffix.
func effectiveTLDPlusOne(hostname string) (domain string) {
	hostnameLen := len(hostname)
	if hostnameLen < 1 {
		return ""
	}

	if hostname[0] == '.' || hostname[hostnameLen-1] == '.' {
		return ""
	}

	suffix, _ := publicsuffix.PublicSuffix(hostname)

	i := hostnameLen - len(suffix) - 1
	if i < 0 || hostname[i] != '.' {
		return ""
	}

	return hostname[1+strings.LastIndex(hostname[:i], "."):]
}
