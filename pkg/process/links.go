package process

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"flora-crawler/pkg/models"
	"flora-crawler/pkg/utils"
)

// LinkExtractor finds detail-page links on a list page
type LinkExtractor struct {
	base   *url.URL // Relative hrefs are resolved against this
	prefix string   // Only hrefs starting with this are detail pages
	log    *logrus.Entry
}

// NewLinkExtractor creates a LinkExtractor resolving links against baseURL
func NewLinkExtractor(baseURL, detailPrefix string, log *logrus.Entry) (*LinkExtractor, error) {
	base, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL '%s': %w", utils.ErrParsing, baseURL, err)
	}
	return &LinkExtractor{base: base, prefix: detailPrefix, log: log}, nil
}

// ExtractLinks returns a Leaf entry for every anchor whose href starts with the
// detail prefix, in document order. Duplicates are left to the caller's filter.
func (le *LinkExtractor) ExtractLinks(html string) ([]models.FrontierEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: loading list page HTML: %w", utils.ErrParsing, err)
	}

	var entries []models.FrontierEntry
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.HasPrefix(href, le.prefix) {
			return
		}
		linkURL, parseErr := le.base.Parse(href)
		if parseErr != nil {
			le.log.Warnf("Skipping invalid detail href '%s': %v", href, parseErr)
			return
		}
		entries = append(entries, models.FrontierEntry{Identity: linkURL.String(), Kind: models.KindLeaf})
	})

	le.log.Debugf("Found %d detail links", len(entries))
	return entries, nil
}
