package collect

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/TobiSchelling/NewsGrade/internal/news"
)

const (
	naverBaseURL    = "https://openapi.naver.com/v1/search/news.json"
	naverMaxDisplay = 100
)

// NaverClient searches the Naver news search API.
type NaverClient struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Sort         string
	client       *http.Client
}

// NewNaverClient creates a Naver client reading credentials from the
// named environment variables.
func NewNaverClient(clientIDEnv, clientSecretEnv string) *NaverClient {
	return &NaverClient{
		ClientID:     os.Getenv(clientIDEnv),
		ClientSecret: os.Getenv(clientSecretEnv),
		BaseURL:      naverBaseURL,
		Sort:         "date",
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *NaverClient) Name() string { return "naver" }

// IsConfigured returns whether both credentials are available.
func (c *NaverClient) IsConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Search fetches up to limit news items for query. Any failure is logged
// and yields an empty result.
func (c *NaverClient) Search(ctx context.Context, query string, limit int) []news.RawItem {
	if !c.IsConfigured() {
		log.Println("Naver API not configured, skipping search")
		return nil
	}

	if limit <= 0 {
		limit = 10
	}
	if limit > naverMaxDisplay {
		limit = naverMaxDisplay
	}

	params := url.Values{
		"query":   {query},
		"display": {strconv.Itoa(limit)},
		"sort":    {c.Sort},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		log.Printf("Naver request error: %v", err)
		return nil
	}
	req.Header.Set("X-Naver-Client-Id", c.ClientID)
	req.Header.Set("X-Naver-Client-Secret", c.ClientSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("Naver API error for %q: %v", query, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Naver API HTTP error for %q: %d", query, resp.StatusCode)
		return nil
	}

	var result struct {
		Items []struct {
			Title        string `json:"title"`
			OriginalLink string `json:"originallink"`
			Link         string `json:"link"`
			Description  string `json:"description"`
			PubDate      string `json:"pubDate"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("Naver decode error for %q: %v", query, err)
		return nil
	}

	items := make([]news.RawItem, 0, len(result.Items))
	for _, it := range result.Items {
		if it.Link == "" && it.OriginalLink == "" {
			continue
		}
		items = append(items, news.RawItem{
			Title:          it.Title,
			OriginalLink:   it.OriginalLink,
			Link:           it.Link,
			Description:    it.Description,
			PublishedAtRaw: it.PubDate,
		})
	}

	log.Printf("Fetched %d items from Naver for query: %s", len(items), query)
	return items
}
