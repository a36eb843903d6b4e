package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TobiSchelling/NewsGrade/internal/config"
	"github.com/TobiSchelling/NewsGrade/internal/database"
	"github.com/TobiSchelling/NewsGrade/internal/news"
	"github.com/TobiSchelling/NewsGrade/internal/sentiment"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type mockRunner struct {
	mu      sync.Mutex
	calls   int32
	queries [][]string
	items   []news.Item
	err     error
	delay   time.Duration
}

func (m *mockRunner) Run(_ context.Context, queries []string, region string) ([]news.Item, error) {
	atomic.AddInt32(&m.calls, 1)
	m.mu.Lock()
	m.queries = append(m.queries, queries)
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([]news.Item, len(m.items))
	for i, it := range m.items {
		it.Region = region
		out[i] = it
	}
	return out, nil
}

type failingStore struct{ writes int32 }

func (f *failingStore) FreshItems(context.Context, string, string, time.Time, int) ([]news.Item, error) {
	return nil, errors.New("store down")
}

func (f *failingStore) UpsertItems(context.Context, string, []news.Item, time.Time) error {
	atomic.AddInt32(&f.writes, 1)
	return errors.New("store down")
}

var base = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func sampleItems() []news.Item {
	return []news.Item{
		{ID: "1", Headline: "one", URL: "https://a/1", Grade: sentiment.Good, Confidence: 0.6, PublishedAt: base.Add(-time.Hour), Keywords: []string{"q"}},
		{ID: "2", Headline: "two", URL: "https://a/2", Grade: sentiment.Bad, Confidence: 0.7, PublishedAt: base, Keywords: []string{"q"}},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newTestGateway(t *testing.T, store Store, runner Runner) *Gateway {
	g := New(store, runner, testConfig(t), 0, 0)
	g.now = func() time.Time { return base }
	return g
}

func TestPutThenGet(t *testing.T) {
	g := newTestGateway(t, openTestDB(t), &mockRunner{})
	ctx := context.Background()

	if got := g.Get(ctx, "crypto", ""); got != nil {
		t.Fatalf("expected miss on empty cache, got %v", got)
	}

	g.Put(ctx, "crypto", sampleItems())
	g.Wait()

	got := g.Get(ctx, "crypto", "")
	if len(got) != 2 || got[0].ID != "2" {
		t.Errorf("expected newest-published first, got %+v", got)
	}
}

func TestGetRespectsTTL(t *testing.T) {
	db := openTestDB(t)
	g := newTestGateway(t, db, &mockRunner{})
	ctx := context.Background()

	g.Put(ctx, "crypto", sampleItems())
	g.Wait()

	g.now = func() time.Time { return base.Add(59 * time.Minute) }
	if got := g.Get(ctx, "crypto", ""); got == nil {
		t.Error("expected hit within TTL")
	}
	g.now = func() time.Time { return base.Add(61 * time.Minute) }
	if got := g.Get(ctx, "crypto", ""); got != nil {
		t.Errorf("expected miss after TTL, got %d items", len(got))
	}
}

func TestPutEmptyIsNoop(t *testing.T) {
	store := &failingStore{}
	g := newTestGateway(t, store, &mockRunner{})
	g.Put(context.Background(), "crypto", nil)
	g.Wait()
	if store.writes != 0 {
		t.Errorf("expected no write for empty input, got %d", store.writes)
	}
}

func TestStoreFailuresAreSwallowed(t *testing.T) {
	store := &failingStore{}
	runner := &mockRunner{items: sampleItems()}
	g := newTestGateway(t, store, runner)

	items, err := g.Load(context.Background(), "crypto", "", []string{"q"})
	g.Wait()
	if err != nil {
		t.Fatalf("store failures must not reach the caller: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected pipeline output, got %d items", len(items))
	}
	if atomic.LoadInt32(&store.writes) != 1 {
		t.Errorf("expected one attempted write, got %d", store.writes)
	}
}

func TestPutSurvivesCancelledContext(t *testing.T) {
	g := newTestGateway(t, openTestDB(t), &mockRunner{})
	ctx, cancel := context.WithCancel(context.Background())

	g.Put(ctx, "kpop", sampleItems())
	cancel()
	g.Wait()

	if got := g.Get(context.Background(), "kpop", ""); len(got) != 2 {
		t.Errorf("expected background write to complete, got %d items", len(got))
	}
}

func TestLoadCachesPipelineOutput(t *testing.T) {
	runner := &mockRunner{items: sampleItems()}
	g := newTestGateway(t, openTestDB(t), runner)
	ctx := context.Background()

	first, err := g.Load(ctx, "stock", "kr", []string{"코스피 주식"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	g.Wait()

	second, _ := g.Load(ctx, "stock", "kr", []string{"코스피 주식"})
	if runner.calls != 1 {
		t.Errorf("expected the second load to hit the cache, got %d runs", runner.calls)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Errorf("unexpected sizes %d, %d", len(first), len(second))
	}
	if second[0].Region != "kr" {
		t.Errorf("expected region to survive caching, got %q", second[0].Region)
	}
}

func TestLoadCoalescesConcurrentMisses(t *testing.T) {
	runner := &mockRunner{items: sampleItems(), delay: 50 * time.Millisecond}
	g := newTestGateway(t, openTestDB(t), runner)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Load(context.Background(), "crypto", "", []string{"q"}); err != nil {
				t.Errorf("load: %v", err)
			}
		}()
	}
	wg.Wait()
	g.Wait()

	if n := atomic.LoadInt32(&runner.calls); n != 1 {
		t.Errorf("expected one pipeline run for concurrent misses, got %d", n)
	}
}

func TestLoadPropagatesRunnerError(t *testing.T) {
	runner := &mockRunner{err: context.Canceled}
	g := newTestGateway(t, openTestDB(t), runner)

	if _, err := g.Load(context.Background(), "crypto", "", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation error, got %v", err)
	}
}

func TestNewsResolvesQueries(t *testing.T) {
	runner := &mockRunner{items: sampleItems()}
	g := newTestGateway(t, openTestDB(t), runner)

	if _, err := g.News(context.Background(), Request{Category: "stock", Region: "eu"}); err != nil {
		t.Fatalf("news: %v", err)
	}
	want := []string{"유럽 증시", "유로 경제"}
	if !reflect.DeepEqual(runner.queries[0], want) {
		t.Errorf("expected %v, got %v", want, runner.queries[0])
	}
}

func TestNewsSearchBypassesCache(t *testing.T) {
	db := openTestDB(t)
	runner := &mockRunner{items: sampleItems()}
	g := newTestGateway(t, db, runner)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := g.News(ctx, Request{Category: "kpop", Search: "뉴진스"}); err != nil {
			t.Fatalf("news: %v", err)
		}
		g.Wait()
	}
	if runner.calls != 2 {
		t.Errorf("expected every search to run the pipeline, got %d", runner.calls)
	}
	if got := g.Get(ctx, "kpop", ""); got != nil {
		t.Errorf("search results must not be cached, got %d items", len(got))
	}
	want := []string{"뉴진스 뉴스", "뉴진스 컴백", "뉴진스"}
	if !reflect.DeepEqual(runner.queries[0], want) {
		t.Errorf("expected %v, got %v", want, runner.queries[0])
	}
}

func TestNewsUnknownCategory(t *testing.T) {
	g := newTestGateway(t, openTestDB(t), &mockRunner{})
	if _, err := g.News(context.Background(), Request{Category: "weather"}); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

// blockingRunner waits for release or for its context to end.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	calls   int32
}

func (b *blockingRunner) Run(ctx context.Context, _ []string, _ string) ([]news.Item, error) {
	if atomic.AddInt32(&b.calls, 1) == 1 {
		close(b.started)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
		return sampleItems(), nil
	}
}

func TestLoadCancelledCallerDoesNotFailOthers(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	g := newTestGateway(t, openTestDB(t), runner)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := g.Load(ctxA, "crypto", "", []string{"q"})
		errA <- err
	}()
	<-runner.started

	type result struct {
		items []news.Item
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		items, err := g.Load(context.Background(), "crypto", "", []string{"q"})
		resB <- result{items, err}
	}()

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("expected the cancelled caller to get context.Canceled, got %v", err)
	}

	// Give B time to join the in-flight run before it finishes.
	time.Sleep(20 * time.Millisecond)
	close(runner.release)

	b := <-resB
	if b.err != nil {
		t.Fatalf("live caller must not see another caller's cancellation: %v", b.err)
	}
	if len(b.items) != 2 {
		t.Errorf("expected 2 items, got %d", len(b.items))
	}
	g.Wait()
	if n := atomic.LoadInt32(&runner.calls); n != 1 {
		t.Errorf("expected one shared run, got %d", n)
	}
}
