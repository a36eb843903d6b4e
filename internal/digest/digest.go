package digest

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/TobiSchelling/NewsGrade/internal/news"
	"github.com/TobiSchelling/NewsGrade/internal/sentiment"
)

var sectionTitles = map[sentiment.Grade]string{
	sentiment.BigGood: "Big Good",
	sentiment.Good:    "Good",
	sentiment.Bad:     "Bad",
	sentiment.BigBad:  "Big Bad",
}

// Digest is a Markdown summary of one category's graded news.
type Digest struct {
	Title  string
	TLDR   string
	Body   string
	Counts map[sentiment.Grade]int
	Total  int
}

// Markdown renders the whole digest as one document.
func (d *Digest) Markdown() string {
	return fmt.Sprintf("# %s\n\n%s\n\n%s\n", d.Title, d.TLDR, d.Body)
}

// Compose groups items by grade, most positive first.
func Compose(category, region string, items []news.Item) *Digest {
	d := &Digest{
		Title:  title(category, region),
		Counts: make(map[sentiment.Grade]int),
		Total:  len(items),
	}

	if len(items) == 0 {
		d.TLDR = "- No news matched this category."
		d.Body = "No items available right now."
		return d
	}

	byGrade := make(map[sentiment.Grade][]news.Item)
	for _, it := range items {
		byGrade[it.Grade] = append(byGrade[it.Grade], it)
		d.Counts[it.Grade]++
	}

	d.TLDR = tldr(d.Counts, d.Total)
	d.Body = assembleBody(byGrade)
	return d
}

func title(category, region string) string {
	t := "News"
	if category != "" {
		r, size := utf8.DecodeRuneInString(category)
		t = string(unicode.ToUpper(r)) + category[size:] + " news"
	}
	if region != "" {
		t += " (" + strings.ToUpper(region) + ")"
	}
	return t
}

func tldr(counts map[sentiment.Grade]int, total int) string {
	var parts []string
	for _, g := range sentiment.Grades {
		if n := counts[g]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(sectionTitles[g])))
		}
	}
	return fmt.Sprintf("- %d stories: %s", total, strings.Join(parts, ", "))
}

func assembleBody(byGrade map[sentiment.Grade][]news.Item) string {
	var sections []string
	for _, g := range sentiment.Grades {
		items := byGrade[g]
		if len(items) == 0 {
			continue
		}
		var lines []string
		for _, it := range items {
			line := fmt.Sprintf("- [%s](%s) · %s · %.2f", escapeLinkText(it.Headline), it.URL, it.Source, it.Confidence)
			lines = append(lines, line)
		}
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", sectionTitles[g], strings.Join(lines, "\n")))
	}
	return strings.Join(sections, "\n\n---\n\n")
}

func escapeLinkText(s string) string {
	r := strings.NewReplacer("[", `\[`, "]", `\]`)
	return r.Replace(s)
}
