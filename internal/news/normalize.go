package news

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
)

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	entityPattern = regexp.MustCompile(`&(?:#[0-9]+|#[xX][0-9a-fA-F]+|[A-Za-z][A-Za-z0-9]*);`)
)

// StripHTML removes markup tags, turns character entities into spaces,
// and collapses whitespace. Malformed markup is left as is.
func StripHTML(text string) string {
	s := tagPattern.ReplaceAllString(text, "")
	s = entityPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// ExtractSource returns the host of rawURL without a leading "www.",
// or "Unknown" when the URL has no host.
func ExtractSource(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "Unknown"
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "Unknown"
	}
	return strings.TrimPrefix(host, "www.")
}

// ParsePublishedAt parses a source timestamp in any common layout
// (RFC 1123Z from search APIs, RFC 3339 from feeds). It falls back to now.
func ParsePublishedAt(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.UTC()
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return now.UTC()
	}
	return t.UTC()
}

// ItemID derives a stable identifier from an item's canonical URL so that
// repeated runs yield the same ID for the same article.
func ItemID(canonicalURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(canonicalURL)).String()
}
