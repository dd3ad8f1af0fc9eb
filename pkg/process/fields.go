package process

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"flora-crawler/pkg/config"
	"flora-crawler/pkg/models"
	"flora-crawler/pkg/parse"
	"flora-crawler/pkg/utils"
)

// Offsets of the grouped sections past the intro anchor count
const (
	siteCharsOffset      = 2
	plantTraitsOffset    = 4
	specialConsOffset    = 6
	growingInfoOffset    = 8
	varietiesOffset      = 10
	seasonParagraph      = 1
	familyParagraph      = 2
	descriptionParagraph = 3
	fragmentJoinSpacer   = " "
)

// FieldExtractor builds a Record from a detail page using XPath queries
type FieldExtractor struct {
	layout  config.LayoutConfig
	baseURL string
	log     *logrus.Entry
}

// NewFieldExtractor creates a FieldExtractor for the given page layout
func NewFieldExtractor(layout config.LayoutConfig, baseURL string, log *logrus.Entry) *FieldExtractor {
	return &FieldExtractor{layout: layout, baseURL: baseURL, log: log}
}

// Extract parses polished detail page markup into a Record.
// A missing name fails with ErrExtraction; a grouped section that cannot be
// grouped fails with ErrMalformedInput. The image defaults to the bare base URL.
func (fe *FieldExtractor) Extract(link, markup string) (*models.Record, error) {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("%w: loading detail page HTML: %w", utils.ErrParsing, err)
	}
	pageLog := fe.log.WithField("link", link)

	name, err := fe.name(doc)
	if err != nil {
		return nil, err
	}

	image, err := fe.image(doc)
	if err != nil {
		return nil, err
	}

	record := &models.Record{Source: link, Name: name, Image: image}

	paragraphs := []struct {
		dst *string
		pos int
	}{
		{&record.Season, seasonParagraph},
		{&record.Family, familyParagraph},
		{&record.Description, descriptionParagraph},
	}
	for _, p := range paragraphs {
		texts, err := fe.texts(doc, fmt.Sprintf(fe.layout.ParagraphXPath, p.pos))
		if err != nil {
			return nil, err
		}
		*p.dst = strings.Join(texts, fragmentJoinSpacer)
	}

	anchors, err := htmlquery.QueryAll(doc, fe.layout.IntroAnchorXPath)
	if err != nil {
		return nil, fmt.Errorf("%w: intro anchor query '%s': %w", utils.ErrExtraction, fe.layout.IntroAnchorXPath, err)
	}
	offset := len(anchors)
	pageLog.Debugf("Intro section offset: %d", offset)

	grouped := []struct {
		dst   **models.LabelGroup
		delta int
		field string
	}{
		{&record.SiteCharacteristics, siteCharsOffset, "site_chars"},
		{&record.PlantTraits, plantTraitsOffset, "plant_traits"},
		{&record.SpecialConsiderations, specialConsOffset, "special_cons"},
		{&record.GrowingInfo, growingInfoOffset, "growing_infos"},
	}
	for _, g := range grouped {
		texts, err := fe.texts(doc, fmt.Sprintf(fe.layout.IntroSectionXPath, offset+g.delta))
		if err != nil {
			return nil, err
		}
		labels, err := GroupLabels(texts)
		if err != nil {
			return nil, fmt.Errorf("grouping %s: %w", g.field, err)
		}
		*g.dst = labels
	}

	record.Varieties, err = fe.texts(doc, fmt.Sprintf(fe.layout.IntroSectionXPath, offset+varietiesOffset))
	if err != nil {
		return nil, err
	}

	pageLog.Debugf("Extracted record '%s'", record.Name)
	return record, nil
}

// name returns the last bold text node of the head container
func (fe *FieldExtractor) name(doc *html.Node) (string, error) {
	nodes, err := htmlquery.QueryAll(doc, fe.layout.NameXPath)
	if err != nil {
		return "", fmt.Errorf("%w: name query '%s': %w", utils.ErrExtraction, fe.layout.NameXPath, err)
	}
	if len(nodes) == 0 {
		return "", fmt.Errorf("%w: no name node matched '%s'", utils.ErrExtraction, fe.layout.NameXPath)
	}
	name := strings.TrimSpace(htmlquery.InnerText(nodes[len(nodes)-1]))
	if name == "" {
		return "", fmt.Errorf("%w: name node matched '%s' is empty", utils.ErrExtraction, fe.layout.NameXPath)
	}
	return name, nil
}

// image returns the caption anchor href joined to the base URL
func (fe *FieldExtractor) image(doc *html.Node) (string, error) {
	nodes, err := htmlquery.QueryAll(doc, fe.layout.ImageXPath)
	if err != nil {
		return "", fmt.Errorf("%w: image query '%s': %w", utils.ErrExtraction, fe.layout.ImageXPath, err)
	}
	href := ""
	if len(nodes) > 0 {
		href = strings.TrimSpace(htmlquery.SelectAttr(nodes[len(nodes)-1], "href"))
	}
	return fe.baseURL + href, nil
}

// texts runs a text() query and returns the cleaned fragments
func (fe *FieldExtractor) texts(doc *html.Node, expr string) ([]string, error) {
	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: query '%s': %w", utils.ErrExtraction, expr, err)
	}
	raw := make([]string, 0, len(nodes))
	for _, n := range nodes {
		raw = append(raw, htmlquery.InnerText(n))
	}
	return parse.CleanFragments(raw), nil
}
