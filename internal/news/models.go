package news

import (
	"time"

	"github.com/TobiSchelling/NewsGrade/internal/sentiment"
)

// RawItem is an unprocessed search hit as returned by a source.
type RawItem struct {
	Title          string
	OriginalLink   string
	Link           string
	Description    string
	PublishedAtRaw string
	SourceQuery    string
}

// CanonicalURL prefers the publisher's original link over the
// aggregator's own link.
func (r RawItem) CanonicalURL() string {
	if r.OriginalLink != "" {
		return r.OriginalLink
	}
	return r.Link
}

// Item is a cleaned, graded news item ready to be served or cached.
type Item struct {
	ID          string          `json:"id"`
	Headline    string          `json:"headline"`
	Summary     string          `json:"summary"`
	Source      string          `json:"source"`
	URL         string          `json:"url"`
	Grade       sentiment.Grade `json:"grade"`
	Confidence  float64         `json:"confidence"`
	PublishedAt time.Time       `json:"published_at"`
	Region      string          `json:"region,omitempty"`
	Keywords    []string        `json:"keywords"`
}

// ExternalID is the cache key of an item within a category.
func ExternalID(category, itemID string) string {
	return category + "_" + itemID
}
