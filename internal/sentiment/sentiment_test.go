package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestGradeOrdering(t *testing.T) {
	if !BigBad.Less(Bad) || !Bad.Less(Good) || !Good.Less(BigGood) {
		t.Error("expected BigBad < Bad < Good < BigGood")
	}
	if Grade("meh").Valid() {
		t.Error("unknown grade should be invalid")
	}
}

func TestParseGrade(t *testing.T) {
	for in, want := range map[string]Grade{
		"BIG_GOOD": BigGood,
		"big_bad":  BigBad,
		" Good ":   Good,
	} {
		got, err := ParseGrade(in)
		if err != nil || got != want {
			t.Errorf("ParseGrade(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseGrade("neutral"); err == nil {
		t.Error("expected error for unknown grade")
	}
	if BigGood.Label() != "BIG_GOOD" {
		t.Errorf("unexpected label %q", BigGood.Label())
	}
}

func TestKeywordNeutralDefault(t *testing.T) {
	res := NewKeywordClassifier().Score("the quarterly meeting was held on tuesday")
	if res != Neutral {
		t.Errorf("expected neutral default, got %+v", res)
	}
}

func TestKeywordBoundaryBigGood(t *testing.T) {
	// four positive hits, one negative: r = 0.8
	res := NewKeywordClassifier().Score("Stocks surge in a rally to a record, bullish despite crash fears")
	if res.Grade != BigGood {
		t.Errorf("expected big_good, got %s", res.Grade)
	}
	if !approx(res.Confidence, 0.84) {
		t.Errorf("expected confidence 0.84, got %v", res.Confidence)
	}
}

func TestKeywordGradeBands(t *testing.T) {
	k := NewKeywordClassifier()

	res := k.Score("코스피 급락, 외국인 매도에 투자자 불안")
	if res.Grade != BigBad {
		t.Errorf("expected big_bad, got %s", res.Grade)
	}
	if !approx(res.Confidence, 0.9) {
		t.Errorf("expected capped formula 0.9, got %v", res.Confidence)
	}

	// one positive, one negative: r = 0.5
	res = k.Score("반등 속 우려")
	if res.Grade != Good {
		t.Errorf("expected good, got %s", res.Grade)
	}

	// one positive, three negative: r = 0.25
	res = k.Score("rally stalls amid crisis, risk and decline")
	if res.Grade != Bad || !approx(res.Confidence, 0.5+0.2*0.75) {
		t.Errorf("expected bad/0.65, got %+v", res)
	}
}

func TestKeywordCaseInsensitive(t *testing.T) {
	res := NewKeywordClassifier().Score("BITCOIN SOARS AFTER BREAKTHROUGH")
	if res.Grade != BigGood {
		t.Errorf("expected big_good, got %s", res.Grade)
	}
}

func TestKeywordConfidenceInRange(t *testing.T) {
	k := NewKeywordClassifier()
	texts := []string{"", "surge", "crash", "상승 하락", strings.Repeat("위기 ", 50)}
	for _, text := range texts {
		res := k.Score(text)
		if !res.Grade.Valid() {
			t.Errorf("%q: invalid grade %q", text, res.Grade)
		}
		if res.Confidence < 0 || res.Confidence > 1 {
			t.Errorf("%q: confidence %v out of range", text, res.Confidence)
		}
	}
}

func newModelServer(t *testing.T, status int, body string, gotInput *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		var req struct {
			Inputs string `json:"inputs"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if gotInput != nil {
			*gotInput = req.Inputs
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testModel(baseURL string) *ModelClassifier {
	m := NewModelClassifier("test/model", baseURL, "UNSET_ENV_FOR_TEST", 0)
	m.APIKey = "test-key"
	return m
}

func TestModelClassifierStars(t *testing.T) {
	cases := []struct {
		label string
		want  Grade
	}{
		{"5 stars", BigGood},
		{"4 stars", Good},
		{"3 stars", Bad},
		{"2 stars", Bad},
		{"1 star", BigBad},
	}
	for _, c := range cases {
		body := `[[{"label":"` + c.label + `","score":0.712},{"label":"9 stars","score":0.1}]]`
		srv := newModelServer(t, http.StatusOK, body, nil)
		res, err := testModel(srv.URL).Classify(context.Background(), "text")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.label, err)
		}
		if res.Grade != c.want {
			t.Errorf("%s: expected %s, got %s", c.label, c.want, res.Grade)
		}
		if res.Confidence != 0.71 {
			t.Errorf("%s: expected confidence 0.71, got %v", c.label, res.Confidence)
		}
	}
}

func TestModelClassifierFlatResponse(t *testing.T) {
	srv := newModelServer(t, http.StatusOK, `[{"label":"4 stars","score":0.6}]`, nil)
	res, err := testModel(srv.URL).Classify(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Grade != Good {
		t.Errorf("expected good, got %s", res.Grade)
	}
}

func TestModelClassifierTruncatesInput(t *testing.T) {
	var got string
	srv := newModelServer(t, http.StatusOK, `[[{"label":"3 stars","score":0.5}]]`, &got)
	m := testModel(srv.URL)

	if _, err := m.Classify(context.Background(), strings.Repeat("가", 600)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := utf8.RuneCountInString(got); n != 512 {
		t.Errorf("expected 512 runes sent, got %d", n)
	}
}

func TestModelClassifierFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"server error": {http.StatusServiceUnavailable, `{"error":"model loading"}`},
		"garbage":      {http.StatusOK, `not json`},
		"object":       {http.StatusOK, `{"error":"oops"}`},
		"empty":        {http.StatusOK, `[]`},
		"no label":     {http.StatusOK, `[[{"label":"positive","score":0.9}]]`},
	}
	for name, c := range cases {
		srv := newModelServer(t, c.status, c.body, nil)
		if _, err := testModel(srv.URL).Classify(context.Background(), "text"); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestModelClassifierNotConfigured(t *testing.T) {
	m := NewModelClassifier("", "", "UNSET_ENV_FOR_TEST", 0)
	if m.IsConfigured() {
		t.Fatal("expected unconfigured classifier")
	}
	if _, err := m.Classify(context.Background(), "x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

type failingClassifier struct{ calls int }

func (f *failingClassifier) Classify(context.Context, string) (Result, error) {
	f.calls++
	return Result{}, errors.New("unavailable")
}

func TestChainFallsBackToKeywords(t *testing.T) {
	failing := &failingClassifier{}
	chain := NewChain(failing, NewKeywordClassifier())

	res, err := chain.Classify(context.Background(), "비트코인 급등, 신고가 돌파")
	if err != nil {
		t.Fatalf("chain should never fail: %v", err)
	}
	if failing.calls != 1 {
		t.Errorf("expected primary tier to be tried once, got %d", failing.calls)
	}
	if res.Grade != BigGood {
		t.Errorf("expected big_good from keywords, got %s", res.Grade)
	}
}

func TestChainUsesPrimaryWhenAvailable(t *testing.T) {
	srv := newModelServer(t, http.StatusOK, `[[{"label":"1 star","score":0.93}]]`, nil)
	chain := NewChain(testModel(srv.URL), NewKeywordClassifier())

	res, _ := chain.Classify(context.Background(), "surge rally record")
	if res.Grade != BigBad || res.Confidence != 0.93 {
		t.Errorf("expected model result, got %+v", res)
	}
}

func TestChainAllTiersFail(t *testing.T) {
	res, err := NewChain(&failingClassifier{}).Classify(context.Background(), "x")
	if err != nil || res != Neutral {
		t.Errorf("expected neutral result, got %+v, %v", res, err)
	}
}
