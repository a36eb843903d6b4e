package collect

import (
	"context"

	"github.com/TobiSchelling/NewsGrade/internal/config"
	"github.com/TobiSchelling/NewsGrade/internal/news"
)

// Source returns raw search hits for a single query. Implementations
// never fail: upstream errors are logged and produce an empty result.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, limit int) []news.RawItem
}

// Collector runs every configured source for a query.
type Collector struct {
	sources []Source
}

// NewCollector creates a collector over the given sources.
func NewCollector(sources ...Source) *Collector {
	return &Collector{sources: sources}
}

// FromConfig creates a collector with the Naver client and any configured
// feeds.
func FromConfig(cfg *config.Config) *Collector {
	var sources []Source

	naverCfg := cfg.Sources.Naver
	if naverCfg.Enabled {
		nc := NewNaverClient(naverCfg.ClientIDEnv, naverCfg.ClientSecretEnv)
		if naverCfg.Sort != "" {
			nc.Sort = naverCfg.Sort
		}
		if naverCfg.BaseURL != "" {
			nc.BaseURL = naverCfg.BaseURL
		}
		sources = append(sources, nc)
	}

	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]FeedConfig, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = FeedConfig{URL: f.URL, Name: f.Name}
		}
		sources = append(sources, NewFeedSource(feeds))
	}

	return NewCollector(sources...)
}

// Collect searches every source for query, keeping source order, and tags
// each hit with the query that produced it.
func (c *Collector) Collect(ctx context.Context, query string, limit int) []news.RawItem {
	var all []news.RawItem
	for _, src := range c.sources {
		for _, item := range src.Search(ctx, query, limit) {
			item.SourceQuery = query
			all = append(all, item)
		}
	}
	return all
}
