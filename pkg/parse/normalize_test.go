package parse

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL_NilInput(t *testing.T) {
	assert.Equal(t, "", NormalizeURL(nil))
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"UppercaseSchemeAndHost", "HTTP://WWW.Gardening.Cornell.EDU/homegardening/scene0391.html", "http://www.gardening.cornell.edu/homegardening/scene0391.html"},
		{"PathCasePreserved", "http://example.com/Scene0391.HTML", "http://example.com/Scene0391.HTML"},
		{"HTTPPort80Removed", "http://example.com:80/a", "http://example.com/a"},
		{"HTTPSPort443Removed", "https://example.com:443/a", "https://example.com/a"},
		{"NonDefaultPortKept", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"CrossedDefaultPortKept", "https://example.com:80/a", "https://example.com:80/a"},
		{"EmptyPathBecomesSlash", "http://example.com", "http://example.com/"},
		{"FragmentRemoved", "http://example.com/scene01.html#top", "http://example.com/scene01.html"},
		{"QueryKept", "http://example.com/list?page=2", "http://example.com/list?page=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := url.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, NormalizeURL(parsed))
		})
	}
}

func TestNormalizeURL_DoesNotModifyInput(t *testing.T) {
	parsed, err := url.Parse("HTTP://EXAMPLE.COM:80/path?q=1#section")
	require.NoError(t, err)
	before := *parsed

	_ = NormalizeURL(parsed)

	assert.Equal(t, before, *parsed)
}

func TestIdentityKey(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		expected string
	}{
		{"AbsoluteLink", "http://www.gardening.cornell.edu/homegardening/scene0391.html", "http://www.gardening.cornell.edu/homegardening/scene0391.html"},
		{"SurroundingWhitespace", "  http://example.com/a.html\n", "http://example.com/a.html"},
		{"HostCaseFolded", "http://EXAMPLE.com/a.html", "http://example.com/a.html"},
		{"RelativeLinkKeptVerbatim", "scene0391.html", "scene0391.html"},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IdentityKey(tt.link))
		})
	}
}

func TestIdentityKey_EquivalentLinksCollide(t *testing.T) {
	assert.Equal(t,
		IdentityKey("http://example.com:80/scene01.html#caption"),
		IdentityKey("HTTP://example.com/scene01.html"))
	assert.NotEqual(t,
		IdentityKey("http://example.com/scene01.html"),
		IdentityKey("http://example.com/scene02.html"))
}
