// Package gateway serves graded news through a time-bounded cache.
//
// Reads return fresh rows only; writes are dispatched in the background
// and never surface errors to the caller. Concurrent misses for the same
// category and region share one pipeline run.
package gateway

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/TobiSchelling/NewsGrade/internal/config"
	"github.com/TobiSchelling/NewsGrade/internal/news"
)

const (
	defaultTTL      = time.Hour
	defaultMaxItems = 50
	writeTimeout    = 30 * time.Second
	runTimeout      = 2 * time.Minute
)

// ErrUnknownCategory is returned for a category missing from the config.
var ErrUnknownCategory = errors.New("unknown category")

// Store persists cached news rows.
type Store interface {
	FreshItems(ctx context.Context, category, region string, since time.Time, limit int) ([]news.Item, error)
	UpsertItems(ctx context.Context, category string, items []news.Item, createdAt time.Time) error
}

// Runner produces graded items for a set of queries.
type Runner interface {
	Run(ctx context.Context, queries []string, region string) ([]news.Item, error)
}

// Catalog resolves configured categories by name.
type Catalog interface {
	Category(name string) (config.Category, bool)
}

// Request asks for one category's news. Search, when set, bypasses the cache.
type Request struct {
	Category string
	Region   string
	Search   string
}

// Gateway fronts a pipeline with a cache store.
type Gateway struct {
	store    Store
	runner   Runner
	catalog  Catalog
	ttl      time.Duration
	maxItems int
	now      func() time.Time

	group   singleflight.Group
	pending sync.WaitGroup
}

// New creates a gateway. Zero ttl or maxItems select the defaults
// (one hour, 50 items).
func New(store Store, runner Runner, catalog Catalog, ttl time.Duration, maxItems int) *Gateway {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	return &Gateway{
		store:    store,
		runner:   runner,
		catalog:  catalog,
		ttl:      ttl,
		maxItems: maxItems,
		now:      time.Now,
	}
}

// Get returns the fresh cached items for category (and region, when set),
// newest-published first. A nil result is a miss; read errors are logged
// and reported as a miss.
func (g *Gateway) Get(ctx context.Context, category, region string) []news.Item {
	since := g.now().Add(-g.ttl)
	items, err := g.store.FreshItems(ctx, category, region, since, g.maxItems)
	if err != nil {
		log.Printf("Cache read failed for %s/%s: %v", category, region, err)
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

// Put writes items to the cache in the background. It returns immediately;
// failures are logged. Use Wait to block until pending writes finish.
func (g *Gateway) Put(ctx context.Context, category string, items []news.Item) {
	if len(items) == 0 {
		return
	}
	snapshot := append([]news.Item(nil), items...)
	createdAt := g.now()

	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		if err := g.store.UpsertItems(wctx, category, snapshot, createdAt); err != nil {
			log.Printf("Cache write failed for %s (%d items): %v", category, len(snapshot), err)
		}
	}()
}

// Wait blocks until every background write has finished.
func (g *Gateway) Wait() {
	g.pending.Wait()
}

// Load returns cached items for category/region, running the pipeline on a
// miss and caching its output. Concurrent misses for the same key share a
// single run. The shared run is detached from any one caller's
// cancellation; a caller whose ctx ends stops waiting and gets ctx.Err().
func (g *Gateway) Load(ctx context.Context, category, region string, queries []string) ([]news.Item, error) {
	if items := g.Get(ctx, category, region); items != nil {
		return items, nil
	}

	key := category + "|" + region
	ch := g.group.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runTimeout)
		defer cancel()
		// A run that finished while this call waited may already have
		// filled the cache.
		if items := g.Get(rctx, category, region); items != nil {
			return items, nil
		}
		items, err := g.runner.Run(rctx, queries, region)
		if err != nil {
			return nil, err
		}
		g.Put(rctx, category, items)
		return items, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]news.Item), nil
	}
}

// News resolves the request's queries and returns graded items. Search
// requests are never read from or written to the cache.
func (g *Gateway) News(ctx context.Context, req Request) ([]news.Item, error) {
	cat, ok := g.catalog.Category(req.Category)
	if !ok {
		return nil, ErrUnknownCategory
	}

	search := strings.TrimSpace(req.Search)
	queries := cat.QueriesFor(req.Region, search)
	if search != "" {
		return g.runner.Run(ctx, queries, req.Region)
	}
	return g.Load(ctx, req.Category, req.Region, queries)
}
