package sentiment

import (
	"context"
	"math"
	"strings"
)

var positiveKeywords = []string{
	"상승", "급등", "호재", "신고가", "사상최고", "반등", "돌파", "상한가",
	"흑자", "성장", "수혜", "매수", "기대", "쏠린다", "주목", "강세",
	"컴백", "1위", "기록", "대박", "역대급", "성공", "흥행", "인기",
	"surge", "rally", "record", "bullish", "breakthrough", "soar",
}

var negativeKeywords = []string{
	"하락", "급락", "악재", "폭락", "약세", "손실", "적자", "위기",
	"매도", "공매도", "경고", "우려", "리스크", "불안", "침체", "하한가",
	"논란", "해체", "탈퇴", "사건", "고소", "처벌", "피소", "불화",
	"crash", "plunge", "bearish", "risk", "crisis", "plummet", "decline",
}

// KeywordClassifier grades text by counting positive and negative keyword
// hits. It never fails.
type KeywordClassifier struct {
	positive []string
	negative []string
}

// NewKeywordClassifier returns a classifier over the built-in keyword lists.
func NewKeywordClassifier() *KeywordClassifier {
	return NewKeywordClassifierWith(positiveKeywords, negativeKeywords)
}

// NewKeywordClassifierWith returns a classifier over custom keyword lists.
func NewKeywordClassifierWith(positive, negative []string) *KeywordClassifier {
	return &KeywordClassifier{
		positive: lowerAll(positive),
		negative: lowerAll(negative),
	}
}

// Classify implements Classifier.
func (k *KeywordClassifier) Classify(_ context.Context, text string) (Result, error) {
	return k.Score(text), nil
}

// Score grades text from keyword hit counts. Each keyword counts once.
func (k *KeywordClassifier) Score(text string) Result {
	lower := strings.ToLower(text)
	p := countHits(lower, k.positive)
	n := countHits(lower, k.negative)

	if p+n == 0 {
		return Neutral
	}

	r := float64(p) / float64(p+n)
	switch {
	case r >= 0.8:
		return Result{Grade: BigGood, Confidence: math.Min(0.6+0.3*r, 0.95)}
	case r >= 0.5:
		return Result{Grade: Good, Confidence: 0.5 + 0.2*r}
	case r >= 0.2:
		return Result{Grade: Bad, Confidence: 0.5 + 0.2*(1-r)}
	default:
		return Result{Grade: BigBad, Confidence: math.Min(0.6+0.3*(1-r), 0.95)}
	}
}

func countHits(text string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			hits++
		}
	}
	return hits
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
