package parse

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a page URL for duplicate detection.
// It lowercases the scheme and host, drops default ports and the fragment,
// and turns an empty path into "/". Query strings are kept since catalogue
// pages may differ only by query. Does not modify the input *url.URL.
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	if host, port, err := net.SplitHostPort(normalized.Host); err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" && normalized.Host != "" {
		normalized.Path = "/"
	}
	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}

// IdentityKey returns the key a link is tracked under by the duplicate filter.
// Links that do not parse as request URIs are keyed by their trimmed text.
func IdentityKey(link string) string {
	trimmed := strings.TrimSpace(link)
	parsed, err := url.ParseRequestURI(trimmed)
	if err != nil {
		return trimmed
	}
	return NormalizeURL(parsed)
}
