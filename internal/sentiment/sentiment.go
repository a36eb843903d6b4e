package sentiment

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/TobiSchelling/NewsGrade/internal/config"
)

// Classifier grades a piece of text.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// Chain tries each tier in order and returns the first successful result.
// It never fails: if every tier errors, Neutral is returned.
type Chain struct {
	tiers []Classifier
}

// NewChain builds a fallback chain. The keyword tier should be last.
func NewChain(tiers ...Classifier) *Chain {
	return &Chain{tiers: tiers}
}

// Classify implements Classifier. The returned error is always nil.
func (c *Chain) Classify(ctx context.Context, text string) (Result, error) {
	for _, tier := range c.tiers {
		res, err := tier.Classify(ctx, text)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrNotConfigured) {
			log.Printf("Sentiment tier %T failed, falling back: %v", tier, err)
		}
	}
	return Neutral, nil
}

// FromConfig builds the two-tier chain: hosted model first when a key is
// available, keyword heuristic always.
func FromConfig(cfg config.Sentiment) *Chain {
	keyword := NewKeywordClassifier()

	model := NewModelClassifier(cfg.Model, cfg.BaseURL, cfg.APIKeyEnv, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if cfg.MaxInputChars > 0 {
		model.MaxInputChars = cfg.MaxInputChars
	}
	if model.IsConfigured() {
		log.Printf("Using sentiment model: %s", model.Model)
		return NewChain(model, keyword)
	}

	log.Println("Sentiment model not configured, using keyword classifier only")
	return NewChain(keyword)
}
