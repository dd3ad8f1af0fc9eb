package models

import (
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// EntryKind tells the scheduler whether a page is expanded into children or extracted into a Record
type EntryKind int

const (
	KindList EntryKind = iota // Page linking to further pages
	KindLeaf                  // Detail page yielding one Record
)

// String implements fmt.Stringer for logging
func (k EntryKind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindLeaf:
		return "leaf"
	}
	return "unknown"
}

// FrontierEntry represents a page waiting in the crawl frontier
type FrontierEntry struct {
	Identity string // Absolute URL of the page
	Kind     EntryKind
}

// LabelGroup maps a section label to the ordered values that followed it.
// Keys are unique and iterate in insertion order.
type LabelGroup struct {
	m *orderedmap.OrderedMap[string, []string]
}

// NewLabelGroup returns an empty LabelGroup
func NewLabelGroup() *LabelGroup {
	return &LabelGroup{m: orderedmap.New[string, []string]()}
}

// Set stores values under label, replacing any previous values for it
func (g *LabelGroup) Set(label string, values []string) {
	if values == nil {
		values = []string{}
	}
	g.m.Set(label, values)
}

// Get returns the values stored under label
func (g *LabelGroup) Get(label string) ([]string, bool) {
	return g.m.Get(label)
}

// Len returns the number of labels
func (g *LabelGroup) Len() int {
	return g.m.Len()
}

// Labels returns the labels in insertion order
func (g *LabelGroup) Labels() []string {
	labels := make([]string, 0, g.m.Len())
	for pair := g.m.Oldest(); pair != nil; pair = pair.Next() {
		labels = append(labels, pair.Key)
	}
	return labels
}

// MarshalJSON encodes the group as a JSON object whose keys keep insertion order
func (g *LabelGroup) MarshalJSON() ([]byte, error) {
	return g.m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object of label -> list of strings, keeping key order
func (g *LabelGroup) UnmarshalJSON(data []byte) error {
	if g.m == nil {
		g.m = orderedmap.New[string, []string]()
	}
	return g.m.UnmarshalJSON(data)
}

// Record is the structured data extracted from one detail page.
// Created once by the field extractor and never modified afterwards.
type Record struct {
	Source                string      `json:"flw_source"`
	Name                  string      `json:"flw_name"`
	Season                string      `json:"flw_season"`
	Image                 string      `json:"flw_img"`
	Family                string      `json:"flw_family"`
	Description           string      `json:"flw_desc"`
	SiteCharacteristics   *LabelGroup `json:"flw_site_chars"`
	PlantTraits           *LabelGroup `json:"flw_plant_traits"`
	SpecialConsiderations *LabelGroup `json:"flw_special_cons"`
	GrowingInfo           *LabelGroup `json:"flw_growing_infos"`
	Varieties             []string    `json:"flw_varieties"`
}

// FailureReason is written to the failure log next to the failing link
type FailureReason string

const (
	ParseFailure FailureReason = "ParseFailure"
	SaveFailure  FailureReason = "SaveFailure"
)

// PageDBEntry stores the outcome of processing a page in the state ledger
type PageDBEntry struct {
	Status      PageStatus `json:"status"`
	Kind        string     `json:"kind"`
	ErrorType   string     `json:"error_type,omitempty"`   // Error category (on failure)
	RecordID    string     `json:"record_id,omitempty"`    // Identifier assigned by the record store
	ContentHash string     `json:"content_hash,omitempty"` // SHA-256 of the normalized markup
	ProcessedAt time.Time  `json:"processed_at,omitempty"`
	LastAttempt time.Time  `json:"last_attempt"`
}
