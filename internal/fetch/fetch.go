package fetch

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const maxBodyBytes = 4 << 20

// SummaryFetcher fills in missing summaries by extracting the article text
// with readability. Domains that answered with an HTTP error are skipped
// for the lifetime of the fetcher.
type SummaryFetcher struct {
	client   *http.Client
	maxChars int

	mu            sync.Mutex
	failedDomains map[string]struct{}
}

// NewSummaryFetcher creates a new summary fetcher.
func NewSummaryFetcher(timeout time.Duration, maxChars int) *SummaryFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if maxChars <= 0 {
		maxChars = 300
	}
	return &SummaryFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		maxChars:      maxChars,
		failedDomains: make(map[string]struct{}),
	}
}

// Summary returns a short plain-text summary of the article at articleURL,
// or "" when the page cannot be fetched or has no extractable text.
func (f *SummaryFetcher) Summary(ctx context.Context, articleURL string) string {
	u, err := url.Parse(articleURL)
	if err != nil || u.Host == "" {
		return ""
	}
	domain := strings.ToLower(u.Host)

	f.mu.Lock()
	_, failed := f.failedDomains[domain]
	f.mu.Unlock()
	if failed {
		return ""
	}

	text, httpErr := f.fetchArticleText(ctx, u)
	if httpErr != nil {
		f.mu.Lock()
		f.failedDomains[domain] = struct{}{}
		f.mu.Unlock()
		log.Printf("HTTP error for %s, skipping remaining from %s", articleURL, domain)
		return ""
	}
	if text == "" {
		return ""
	}
	return truncate(text, f.maxChars)
}

func (f *SummaryFetcher) fetchArticleText(ctx context.Context, u *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return "", nil
	}
	req.Header.Set("User-Agent", "NewsGrade/1.0 (news aggregator)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return "", nil
	}

	return strings.Join(strings.Fields(article.TextContent), " "), nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return strings.TrimSpace(string(runes[:maxChars])) + "..."
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
