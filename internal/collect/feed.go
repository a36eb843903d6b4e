package collect

import (
	"context"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/NewsGrade/internal/news"
)

const feedMemoTTL = 5 * time.Minute

// FeedConfig represents a single feed configuration.
type FeedConfig struct {
	URL  string
	Name string
}

type parsedFeed struct {
	items     []*gofeed.Item
	fetchedAt time.Time
}

// FeedSource searches configured RSS/Atom feeds for entries matching a
// query. Parsed feeds are memoized briefly so that one fan-out over many
// queries fetches each feed once.
type FeedSource struct {
	feeds []FeedConfig
	now   func() time.Time

	mu   sync.Mutex
	memo map[string]parsedFeed
}

// NewFeedSource creates a new FeedSource.
func NewFeedSource(feeds []FeedConfig) *FeedSource {
	return &FeedSource{
		feeds: feeds,
		now:   time.Now,
		memo:  make(map[string]parsedFeed),
	}
}

func (fs *FeedSource) Name() string { return "feeds" }

// Search returns up to limit feed entries whose title or description
// contains one of the query's words.
func (fs *FeedSource) Search(ctx context.Context, query string, limit int) []news.RawItem {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	var out []news.RawItem
	for _, fc := range fs.feeds {
		items, err := fs.load(ctx, fc)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}
		for _, item := range items {
			if len(out) >= limit {
				return out
			}
			if !matches(item, terms) {
				continue
			}
			if raw, ok := toRawItem(item); ok {
				out = append(out, raw)
			}
		}
	}
	return out
}

func (fs *FeedSource) load(ctx context.Context, fc FeedConfig) ([]*gofeed.Item, error) {
	feedURL := fc.URL
	fs.mu.Lock()
	if p, ok := fs.memo[feedURL]; ok && fs.now().Sub(p.fetchedAt) < feedMemoTTL {
		fs.mu.Unlock()
		return p.items, nil
	}
	fs.mu.Unlock()

	feed, err := gofeed.NewParser().ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	fs.memo[feedURL] = parsedFeed{items: feed.Items, fetchedAt: fs.now()}
	fs.mu.Unlock()

	name := fc.Name
	if name == "" {
		name = feedName(feedURL)
	}
	log.Printf("Parsed %d entries from %s", len(feed.Items), name)
	return feed.Items, nil
}

func queryTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(f) >= 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

func matches(item *gofeed.Item, terms []string) bool {
	text := strings.ToLower(item.Title + " " + item.Description)
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func toRawItem(item *gofeed.Item) (news.RawItem, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	if link == "" || strings.TrimSpace(item.Title) == "" {
		return news.RawItem{}, false
	}

	published := item.Published
	if published == "" {
		published = item.Updated
	}

	description := item.Description
	if description == "" {
		description = item.Content
	}

	return news.RawItem{
		Title:          item.Title,
		Link:           link,
		Description:    description,
		PublishedAtRaw: published,
	}, true
}

func feedName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
