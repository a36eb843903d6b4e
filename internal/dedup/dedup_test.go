package dedup

import (
	"reflect"
	"testing"

	"github.com/TobiSchelling/NewsGrade/internal/news"
)

func titles(items []news.RawItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func raw(titles ...string) []news.RawItem {
	items := make([]news.RawItem, len(titles))
	for i, t := range titles {
		items[i] = news.RawItem{Title: t, Link: "https://example.com/" + t}
	}
	return items
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("a b c", "a b d e"); got != 0.4 {
		t.Errorf("expected 0.4, got %v", got)
	}
	if got := Similarity("Bitcoin Rallies", "bitcoin rallies"); got != 1 {
		t.Errorf("expected case-insensitive match, got %v", got)
	}
	if got := Similarity("", "  "); got != 1 {
		t.Errorf("expected blank titles to be identical, got %v", got)
	}
	if got := Similarity("a", ""); got != 0 {
		t.Errorf("expected 0 against empty title, got %v", got)
	}
}

func TestDedupeThresholdBoundary(t *testing.T) {
	got := Dedupe(raw("a b c", "a b d e"), DefaultThreshold)
	if len(got) != 1 || got[0].Title != "a b c" {
		t.Errorf("similarity exactly at threshold should be a duplicate, got %v", titles(got))
	}

	// 2 shared of 6 total: 0.333 stays
	got = Dedupe(raw("a b c d", "a b e f"), DefaultThreshold)
	if len(got) != 2 {
		t.Errorf("expected both titles kept, got %v", titles(got))
	}
}

func TestDedupeFirstSeenWins(t *testing.T) {
	items := raw(
		"삼성전자 주가 급등 신고가",
		"코스피 하락 마감",
		"삼성전자 주가 급등 신고가 경신",
		"Nasdaq closes higher",
	)
	got := Dedupe(items, DefaultThreshold)
	want := []string{"삼성전자 주가 급등 신고가", "코스피 하락 마감", "Nasdaq closes higher"}
	if !reflect.DeepEqual(titles(got), want) {
		t.Errorf("expected %v, got %v", want, titles(got))
	}
}

func TestDedupeIdempotent(t *testing.T) {
	items := raw("a b c", "a b c d", "x y z", "x y", "p q r s")
	once := Dedupe(items, DefaultThreshold)
	twice := Dedupe(once, DefaultThreshold)
	if !reflect.DeepEqual(titles(once), titles(twice)) {
		t.Errorf("dedupe not idempotent: %v vs %v", titles(once), titles(twice))
	}
}

func TestDedupeNoSurvivingPairAboveThreshold(t *testing.T) {
	items := raw("a b c", "b c d", "c d e", "d e f", "e f g", "a g")
	got := Dedupe(items, DefaultThreshold)
	for i := range got {
		for j := i + 1; j < len(got); j++ {
			if s := Similarity(got[i].Title, got[j].Title); s >= DefaultThreshold {
				t.Errorf("%q and %q survived with similarity %v", got[i].Title, got[j].Title, s)
			}
		}
	}
}

func TestDedupeEdgeCases(t *testing.T) {
	if got := Dedupe(nil, DefaultThreshold); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
	got := Dedupe(raw("only one"), DefaultThreshold)
	if len(got) != 1 {
		t.Errorf("expected single item kept, got %d", len(got))
	}
}

func TestDedupeBlankTitles(t *testing.T) {
	items := []news.RawItem{{Title: "", Link: "a"}, {Title: " ", Link: "b"}, {Title: "kospi", Link: "c"}}
	got := Dedupe(items, DefaultThreshold)
	if len(got) != 2 || got[0].Link != "a" || got[1].Link != "c" {
		t.Errorf("expected the second blank title to be dropped, got %+v", got)
	}
}
