package parse

import (
	"regexp"
	"strings"
)

// bareTextAfterClose matches a run of untagged text sitting between a closing
// tag and the next opening bracket. Text letters and digits are any Unicode
// letter or number, so accented plant names are wrapped too.
var bareTextAfterClose = regexp.MustCompile(`</(\w+)>\s*\n*\s*([\p{L}\p{N}_,.: -]+)\n*\s*<`)

// PolishHTML rewrites raw page markup so XPath queries see every text run
// inside an element. Carriage returns become newlines, tabs are removed and
// bare text following a closing tag is wrapped in a <p> element.
// Applying it to its own output returns the output unchanged.
func PolishHTML(raw string) string {
	polished := strings.ReplaceAll(raw, "\r", "\n")
	polished = strings.ReplaceAll(polished, "\t", "")
	return bareTextAfterClose.ReplaceAllString(polished, "</${1}>\n<p>${2}</p><")
}
