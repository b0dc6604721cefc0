package adblock

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequest_thirdParty(t *testing.T) {
	testCases := []struct {
		name    string
		url     string
		tabHost string
		want    bool
	}{{
		name:    "same_host",
		url:     "https://example.com/x",
		tabHost: "example.com",
		want:    false,
	}, {
		name:    "subdomain",
		url:     "https://a.example.com/x",
		tabHost: "example.com",
		want:    false,
	}, {
		name:    "sibling_subdomains",
		url:     "https://a.example.com/x",
		tabHost: "b.example.com",
		want:    false,
	}, {
		name:    "different_domain",
		url:     "https://tracker.net/x",
		tabHost: "example.com",
		want:    true,
	}, {
		name:    "multipart_tld",
		url:     "https://cdn.example.org.uk/x",
		tabHost: "example.org.uk",
		want:    false,
	}, {
		name:    "private_registry",
		url:     "https://alice.github.io/x",
		tabHost: "bob.github.io",
		want:    true,
	}, {
		name:    "empty_tab_host",
		url:     "https://example.com/x",
		tabHost: "",
		want:    true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRequest(tc.url, TypeScript, tc.tabHost, false)
			assert.Equal(t, tc.want, r.ThirdParty)
		})
	}
}

func TestNewRequest_fields(t *testing.T) {
	r := NewRequest("https://sub.example.org/ad.js?x=1", TypeScript, "example.org", true)

	assert.Equal(t, "https://sub.example.org/ad.js?x=1", r.URL)
	assert.Equal(t, "sub.example.org", r.Hostname)
	assert.Equal(t, "example.org", r.TabHost)
	assert.Equal(t, "script", r.ResourceCategory)
	assert.Equal(t, TypeScript, r.ResourceType)
	assert.False(t, r.ThirdParty)
	assert.True(t, r.AggressiveBlocking)
}

func TestNewRequest_longURL(t *testing.T) {
	u := "https://example.org/" + strings.Repeat("a", maxURLLength)
	r := NewRequest(u, TypeSubResource, "example.org", false)

	assert.Len(t, r.URL, maxURLLength)
	assert.Equal(t, "example.org", r.Hostname)
}

func TestResourceType_FilterOption(t *testing.T) {
	testCases := []struct {
		name string
		in   ResourceType
		want string
	}{{
		name: "main_frame",
		in:   TypeMainFrame,
		want: "main_frame",
	}, {
		name: "sub_frame",
		in:   TypeSubFrame,
		want: "sub_frame",
	}, {
		name: "favicon_is_image",
		in:   TypeFavicon,
		want: "image",
	}, {
		name: "sub_resource",
		in:   TypeSubResource,
		want: "other",
	}, {
		name: "worker_unmapped",
		in:   TypeWorker,
		want: "",
	}, {
		name: "service_worker_unmapped",
		in:   TypeServiceWorker,
		want: "",
	}, {
		name: "csp_report_unmapped",
		in:   TypeCSPReport,
		want: "",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.FilterOption())
		})
	}
}

func TestResourceTypeFromString(t *testing.T) {
	assert.Equal(t, TypeMainFrame, ResourceTypeFromString("main_frame"))
	assert.Equal(t, TypeXHR, ResourceTypeFromString("xmlhttprequest"))
	assert.Equal(t, TypeSubResource, ResourceTypeFromString("bogus"))
}
