package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultModel         = "nlptown/bert-base-multilingual-uncased-sentiment"
	defaultModelBaseURL  = "https://api-inference.huggingface.co/models"
	defaultMaxInputChars = 512
)

// ErrNotConfigured is returned by the model tier when no API key is set.
var ErrNotConfigured = errors.New("sentiment model API key not configured")

// ModelClassifier grades text with a hosted star-rating model
// (1 to 5 stars) over the Hugging Face inference API.
type ModelClassifier struct {
	Model         string
	BaseURL       string
	APIKey        string
	MaxInputChars int
	client        *http.Client
}

// NewModelClassifier creates a model classifier reading its key from apiKeyEnv.
func NewModelClassifier(model, baseURL, apiKeyEnv string, timeout time.Duration) *ModelClassifier {
	if model == "" {
		model = defaultModel
	}
	if baseURL == "" {
		baseURL = defaultModelBaseURL
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &ModelClassifier{
		Model:         model,
		BaseURL:       strings.TrimRight(baseURL, "/"),
		APIKey:        os.Getenv(apiKeyEnv),
		MaxInputChars: defaultMaxInputChars,
		client:        &http.Client{Timeout: timeout},
	}
}

// IsConfigured checks if the API key is set.
func (m *ModelClassifier) IsConfigured() bool {
	return m.APIKey != ""
}

type candidate struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify implements Classifier.
func (m *ModelClassifier) Classify(ctx context.Context, text string) (Result, error) {
	if m.APIKey == "" {
		return Result{}, ErrNotConfigured
	}

	data, err := json.Marshal(map[string]string{"inputs": truncateRunes(text, m.MaxInputChars)})
	if err != nil {
		return Result{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.BaseURL+"/"+m.Model, bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("sentiment API error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("sentiment API returned %d: %s", resp.StatusCode, string(body))
	}

	cands, err := parseCandidates(body)
	if err != nil {
		return Result{}, err
	}
	return resultFromCandidates(cands)
}

// parseCandidates accepts both the nested [[{label,score}]] shape and a flat
// [{label,score}] list.
func parseCandidates(body []byte) ([]candidate, error) {
	var nested [][]candidate
	if err := json.Unmarshal(body, &nested); err == nil {
		if len(nested) == 0 {
			return nil, fmt.Errorf("empty sentiment response")
		}
		return nested[0], nil
	}

	var flat []candidate
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("decoding sentiment response: %w", err)
	}
	return flat, nil
}

func resultFromCandidates(cands []candidate) (Result, error) {
	if len(cands) == 0 {
		return Result{}, fmt.Errorf("no sentiment candidates in response")
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.Score > best.Score {
			best = c
		}
	}

	stars, err := parseStars(best.Label)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Grade:      gradeFromStars(stars),
		Confidence: clamp01(math.Round(best.Score*100) / 100),
	}, nil
}

// parseStars reads the leading integer of a label such as "4 stars".
func parseStars(label string) (int, error) {
	label = strings.TrimSpace(label)
	end := 0
	for end < len(label) && label[end] >= '0' && label[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("unparseable sentiment label %q", label)
	}
	return strconv.Atoi(label[:end])
}

func gradeFromStars(stars int) Grade {
	switch {
	case stars >= 5:
		return BigGood
	case stars >= 4:
		return Good
	case stars >= 2:
		return Bad
	default:
		return BigBad
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
