package pipeline

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/NewsGrade/internal/collect"
	"github.com/TobiSchelling/NewsGrade/internal/config"
	"github.com/TobiSchelling/NewsGrade/internal/dedup"
	"github.com/TobiSchelling/NewsGrade/internal/fetch"
	"github.com/TobiSchelling/NewsGrade/internal/news"
	"github.com/TobiSchelling/NewsGrade/internal/sentiment"
)

// Searcher returns raw items for a single query.
type Searcher interface {
	Collect(ctx context.Context, query string, limit int) []news.RawItem
}

// Summarizer fills in an empty summary for an article URL.
type Summarizer interface {
	Summary(ctx context.Context, articleURL string) string
}

// Options tune a pipeline run.
type Options struct {
	PerQueryLimit  int
	DedupThreshold float64
	Concurrency    int
}

// Pipeline turns search queries into deduplicated, graded news items.
type Pipeline struct {
	searcher   Searcher
	classifier sentiment.Classifier
	summarizer Summarizer
	opts       Options
	now        func() time.Time
}

// New creates a pipeline. summarizer may be nil.
func New(searcher Searcher, classifier sentiment.Classifier, summarizer Summarizer, opts Options) *Pipeline {
	if opts.PerQueryLimit <= 0 {
		opts.PerQueryLimit = 10
	}
	if opts.DedupThreshold <= 0 {
		opts.DedupThreshold = dedup.DefaultThreshold
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Pipeline{
		searcher:   searcher,
		classifier: classifier,
		summarizer: summarizer,
		opts:       opts,
		now:        time.Now,
	}
}

// FromConfig wires the collector, classifier chain and optional summary
// enrichment from configuration.
func FromConfig(cfg *config.Config) *Pipeline {
	var summarizer Summarizer
	if cfg.Enrich.Enabled {
		summarizer = fetch.NewSummaryFetcher(
			time.Duration(cfg.Enrich.TimeoutSeconds)*time.Second,
			cfg.Enrich.MaxSummaryChars,
		)
	}

	return New(
		collect.FromConfig(cfg),
		sentiment.FromConfig(cfg.Sentiment),
		summarizer,
		Options{
			PerQueryLimit:  cfg.Pipeline.PerQueryLimit,
			DedupThreshold: cfg.Pipeline.DedupThreshold,
			Concurrency:    cfg.Pipeline.Concurrency,
		},
	)
}

// Run collects every query, dedupes the merged results, and grades each
// surviving item. Failing queries contribute nothing; the only error
// returned is context cancellation.
func (p *Pipeline) Run(ctx context.Context, queries []string, region string) ([]news.Item, error) {
	results := make([][]news.RawItem, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			results[i] = p.searcher.Collect(gctx, q, p.opts.PerQueryLimit)
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var merged []news.RawItem
	for _, r := range results {
		merged = append(merged, r...)
	}

	unique := dedup.Dedupe(merged, p.opts.DedupThreshold)
	if len(merged) > 0 {
		log.Printf("Pipeline: %d raw items from %d queries, %d after dedup", len(merged), len(queries), len(unique))
	}

	items := make([]news.Item, 0, len(unique))
	for _, raw := range unique {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items = append(items, p.analyze(ctx, raw, region))
	}
	return items, nil
}

func (p *Pipeline) analyze(ctx context.Context, raw news.RawItem, region string) news.Item {
	canonical := raw.CanonicalURL()
	headline := news.StripHTML(raw.Title)
	summary := news.StripHTML(raw.Description)
	if summary == "" && p.summarizer != nil {
		summary = p.summarizer.Summary(ctx, canonical)
	}

	res, err := p.classifier.Classify(ctx, headline+" "+summary)
	if err != nil {
		log.Printf("Classification failed for %q: %v", headline, err)
		res = sentiment.Neutral
	}

	keywords := []string{}
	if raw.SourceQuery != "" {
		keywords = []string{raw.SourceQuery}
	}

	now := p.now()
	return news.Item{
		ID:          news.ItemID(canonical),
		Headline:    headline,
		Summary:     summary,
		Source:      news.ExtractSource(canonical),
		URL:         canonical,
		Grade:       res.Grade,
		Confidence:  res.Confidence,
		PublishedAt: news.ParsePublishedAt(raw.PublishedAtRaw, now),
		Region:      region,
		Keywords:    keywords,
	}
}
