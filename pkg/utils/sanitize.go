package utils

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`) // Characters invalid in Windows/Unix filenames
var consecutiveUnderscores = regexp.MustCompile(`_+`)

const maxFilenameLength = 100

// SanitizeFilename cleans a string to be safe for use as a filename component
func SanitizeFilename(name string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(name, "_")
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_ ")

	if len(sanitized) > maxFilenameLength {
		sanitized = sanitized[:maxFilenameLength]
		sanitized = strings.Trim(sanitized, "_ ")
	}

	if sanitized == "" {
		sanitized = "untitled"
	}
	return sanitized
}

// LastPathSegment returns the sanitized final path segment of an absolute link,
// e.g. "http://host/homegardening/scene0391.html" -> "scene0391.html".
func LastPathSegment(link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("%w: parsing URL '%s': %w", ErrParsing, link, err)
	}
	p := strings.TrimSuffix(parsed.Path, "/")
	if p == "" {
		return "", fmt.Errorf("%w: URL '%s' has no path segment", ErrParsing, link)
	}
	return SanitizeFilename(path.Base(p)), nil
}
