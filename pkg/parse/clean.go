package parse

import (
	"regexp"
	"strings"
)

var (
	lineBreaks = strings.NewReplacer("\n", "", "\t", "")
	spaceRuns  = regexp.MustCompile(` {2,}`)
)

// CleanFragment trims a text node, strips embedded newlines and tabs and
// collapses runs of spaces to a single space.
func CleanFragment(fragment string) string {
	cleaned := lineBreaks.Replace(strings.TrimSpace(fragment))
	return spaceRuns.ReplaceAllString(cleaned, " ")
}

// CleanFragments cleans every fragment and drops those left empty. Order is preserved.
func CleanFragments(fragments []string) []string {
	cleaned := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if c := CleanFragment(f); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return cleaned
}
